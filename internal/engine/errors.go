package engine

import (
	"errors"
	"fmt"
)

// Kind classifies a coordination failure. Every operation that rejects a
// request reports one of these; callers inspect them with errors.As or
// IsKind rather than matching message text.
type Kind string

const (
	// KindNotFound — referenced item or agent does not exist locally.
	KindNotFound Kind = "not_found"
	// KindAgentUnavailable — target agent is at capacity.
	KindAgentUnavailable Kind = "agent_unavailable"
	// KindNoSuitableAgent — no agent met the minimum score threshold.
	KindNoSuitableAgent Kind = "no_suitable_agent"
	// KindDependencyBlocked — one or more prerequisite items not closed.
	KindDependencyBlocked Kind = "dependency_blocked"
	// KindAlreadyClosed — attempted assignment on a closed item.
	KindAlreadyClosed Kind = "already_closed"
	// KindNotAssigned — progress update on an item with no assignment.
	KindNotAssigned Kind = "not_assigned"
	// KindInvalidPercentage — out-of-range progress value.
	KindInvalidPercentage Kind = "invalid_percentage"
	// KindExternalUnavailable — tracker call failed or timed out. Local
	// state is unaffected; only the remote step degraded.
	KindExternalUnavailable Kind = "external_unavailable"
)

// Error is a classified coordination failure carrying the ids involved.
type Error struct {
	Kind   Kind
	ItemID int
	Agent  string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.ItemID != 0 {
		msg += fmt.Sprintf(" item=%d", e.ItemID)
	}
	if e.Agent != "" {
		msg += fmt.Sprintf(" agent=%s", e.Agent)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err carries the given failure kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}

func itemError(kind Kind, itemID int, detail string) *Error {
	return &Error{Kind: kind, ItemID: itemID, Detail: detail}
}

func agentError(kind Kind, itemID int, agent, detail string) *Error {
	return &Error{Kind: kind, ItemID: itemID, Agent: agent, Detail: detail}
}
