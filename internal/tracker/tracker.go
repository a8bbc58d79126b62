// Package tracker defines the issue-tracker collaborator boundary and its
// GitHub REST implementation. The engine only ever sees this interface; all
// remote failures degrade to local-only operation upstream.
package tracker

import (
	"context"
	"errors"
)

// ErrNotFound is returned by GetItem when the remote item does not exist.
// Callers use errors.Is to distinguish it from transport failures.
var ErrNotFound = errors.New("item not found")

// Item is the remote work-item shape the engine consumes. Fields beyond
// these are tracker implementation detail and are not modeled.
type Item struct {
	ID        int
	Title     string
	Body      string
	Labels    []string
	State     string
	UpdatedAt string
}

// Client is the issue-tracker contract. Implementations must enforce their
// own timeouts; no call may block indefinitely.
type Client interface {
	// ListItems fetches items filtered by state ("open", "closed", "all").
	ListItems(ctx context.Context, state string) ([]Item, error)
	// GetItem fetches a single item, or ErrNotFound.
	GetItem(ctx context.Context, id int) (Item, error)
	// PostComment posts a coordination comment to an item. Best-effort:
	// callers treat failure as a warning, never as a state rollback.
	PostComment(ctx context.Context, id int, body string) error
}
