package model

import (
	"time"

	"github.com/google/uuid"
)

// ProgressEvent is one entry in the append-only per-item progress log.
// Events are never mutated or deleted; the current status of an item is the
// most recent event for its ID.
type ProgressEvent struct {
	ID         string         `yaml:"id" json:"id"`
	Timestamp  string         `yaml:"timestamp" json:"timestamp"`
	Agent      string         `yaml:"agent" json:"agent"`
	ItemID     int            `yaml:"item_id" json:"item_id"`
	Status     ProgressStatus `yaml:"status" json:"status"`
	Percentage int            `yaml:"progress_percentage" json:"progress_percentage"`
	Blockers   []string       `yaml:"blockers,omitempty" json:"blockers,omitempty"`
	NextSteps  []string       `yaml:"next_steps,omitempty" json:"next_steps,omitempty"`
}

// NewProgressEvent builds a progress event stamped with the given time.
func NewProgressEvent(now time.Time, agent string, itemID int, status ProgressStatus, pct int, blockers, nextSteps []string) ProgressEvent {
	return ProgressEvent{
		ID:         uuid.NewString(),
		Timestamp:  now.UTC().Format(time.RFC3339),
		Agent:      agent,
		ItemID:     itemID,
		Status:     status,
		Percentage: pct,
		Blockers:   blockers,
		NextSteps:  nextSteps,
	}
}
