package model

import "fmt"

// ItemState mirrors the tracker's authoritative item state. The local copy
// may be briefly stale between reconciliation passes.
type ItemState string

const (
	ItemStateOpen   ItemState = "open"
	ItemStateClosed ItemState = "closed"
)

// ProgressStatus is the assignment-lifecycle status carried on progress events.
type ProgressStatus string

const (
	StatusAssigned       ProgressStatus = "assigned"
	StatusInProgress     ProgressStatus = "in_progress"
	StatusBlocked        ProgressStatus = "blocked"
	StatusReadyForReview ProgressStatus = "ready_for_review"
	StatusCompleted      ProgressStatus = "completed"
)

var knownProgressStatuses = map[ProgressStatus]bool{
	StatusAssigned:       true,
	StatusInProgress:     true,
	StatusBlocked:        true,
	StatusReadyForReview: true,
	StatusCompleted:      true,
}

// Assignment lifecycle: assigned → (in_progress | blocked | ready_for_review) → completed.
// The three mid-flight states may interchange freely.
var validProgressTransitions = map[ProgressStatus]map[ProgressStatus]bool{
	StatusAssigned: {
		StatusInProgress:     true,
		StatusBlocked:        true,
		StatusReadyForReview: true,
		StatusCompleted:      true,
	},
	StatusInProgress: {
		StatusBlocked:        true,
		StatusReadyForReview: true,
		StatusCompleted:      true,
	},
	StatusBlocked: {
		StatusInProgress:     true,
		StatusReadyForReview: true,
		StatusCompleted:      true,
	},
	StatusReadyForReview: {
		StatusInProgress: true,
		StatusBlocked:    true,
		StatusCompleted:  true,
	},
}

// IsKnownStatus reports whether s is one of the defined progress statuses.
func IsKnownStatus(s ProgressStatus) bool {
	return knownProgressStatuses[s]
}

// IsTerminal reports whether a progress status permits no further transitions.
func IsTerminal(s ProgressStatus) bool {
	return s == StatusCompleted
}

// ValidateProgressTransition checks an assignment status transition.
// Recording an event with the same status as the current one is allowed
// (repeated in_progress updates are the common case).
func ValidateProgressTransition(from, to ProgressStatus) error {
	if from == to {
		return nil
	}
	if IsTerminal(from) {
		return fmt.Errorf("cannot transition from terminal status %q", from)
	}
	allowed, ok := validProgressTransitions[from]
	if !ok {
		return fmt.Errorf("unknown status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid progress transition: %q → %q", from, to)
	}
	return nil
}
