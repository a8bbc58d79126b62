package engine

import (
	"context"
	"fmt"

	"github.com/devswarm/coordd/internal/events"
	"github.com/devswarm/coordd/internal/model"
)

// ProgressUpdate is a caller-supplied progress report for an assigned item.
type ProgressUpdate struct {
	ItemID     int
	Status     model.ProgressStatus
	Percentage int
	Blockers   []string
	NextSteps  []string
}

// ProgressResult reports a recorded progress event.
type ProgressResult struct {
	Event    model.ProgressEvent `json:"event" yaml:"event"`
	Warnings []string            `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// RecordProgress appends a progress event for an assigned item. Out-of-order
// status transitions are recorded anyway; the anomaly is surfaced as a
// warning, since the log is the audit trail of what agents actually
// reported.
func (e *Engine) RecordProgress(ctx context.Context, upd ProgressUpdate) (*ProgressResult, error) {
	if !model.IsKnownStatus(upd.Status) {
		return nil, fmt.Errorf("unknown progress status %q", upd.Status)
	}

	e.mu.Lock()

	item, ok := e.items[upd.ItemID]
	if !ok {
		e.mu.Unlock()
		return nil, itemError(KindNotFound, upd.ItemID, "unknown work item")
	}
	if item.AssignedAgent == "" {
		e.mu.Unlock()
		return nil, itemError(KindNotAssigned, upd.ItemID, "item has no assigned agent")
	}
	if upd.Percentage < 0 || upd.Percentage > 100 {
		e.mu.Unlock()
		return nil, itemError(KindInvalidPercentage, upd.ItemID, fmt.Sprintf("percentage %d out of range [0,100]", upd.Percentage))
	}

	res := &ProgressResult{}
	if cur := e.currentStatusLocked(upd.ItemID); cur != nil {
		if err := model.ValidateProgressTransition(cur.Status, upd.Status); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("out-of-order status: %v", err))
		}
	}

	ev := model.NewProgressEvent(
		e.clock(), item.AssignedAgent, upd.ItemID, upd.Status, upd.Percentage, upd.Blockers, upd.NextSteps,
	)
	e.progress = append(e.progress, ev)
	e.touchItemLocked(item)
	e.saveLocked(&res.Warnings)
	res.Event = ev

	itemCopy := *item
	e.mu.Unlock()

	e.log(LogLevelInfo, "progress item=%d agent=%s status=%s pct=%d", upd.ItemID, ev.Agent, upd.Status, upd.Percentage)
	if e.notifier != nil {
		if err := e.notifier.ProgressRecorded(ctx, &itemCopy, ev); err != nil {
			e.log(LogLevelWarn, "progress_comment item=%d error=%v", upd.ItemID, err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("progress comment failed: %v", err))
		}
	}
	e.publish(events.EventProgressRecorded, map[string]any{
		"item_id": upd.ItemID,
		"agent":   ev.Agent,
		"status":  string(upd.Status),
		"pct":     upd.Percentage,
	})
	return res, nil
}

// currentStatusLocked returns the latest progress event for an item, or nil
// when none exists. Callers must hold e.mu.
func (e *Engine) currentStatusLocked(itemID int) *model.ProgressEvent {
	for i := len(e.progress) - 1; i >= 0; i-- {
		if e.progress[i].ItemID == itemID {
			ev := e.progress[i]
			return &ev
		}
	}
	return nil
}

// CurrentStatus returns a copy of the latest progress event for an item, or
// nil when the item has no progress history.
func (e *Engine) CurrentStatus(itemID int) *model.ProgressEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentStatusLocked(itemID)
}

// ProgressHistory returns the full ordered progress log for an item.
func (e *Engine) ProgressHistory(itemID int) []model.ProgressEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []model.ProgressEvent
	for _, ev := range e.progress {
		if ev.ItemID == itemID {
			out = append(out, ev)
		}
	}
	return out
}
