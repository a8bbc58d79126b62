// Package notify renders coordination comments from embedded templates and
// posts them to the tracker. All posting is best-effort: failures are
// returned for the caller to surface as warnings, never as state rollbacks.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/devswarm/coordd/internal/infer"
	"github.com/devswarm/coordd/internal/model"
	"github.com/devswarm/coordd/internal/tracker"
	"github.com/devswarm/coordd/templates"
)

var funcs = template.FuncMap{
	"join": strings.Join,
	"joinInts": func(ids []int, sep string) string {
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = "#" + strconv.Itoa(id)
		}
		return strings.Join(parts, sep)
	},
}

// Notifier posts coordination comments with a per-call timeout.
type Notifier struct {
	client      tracker.Client
	tmpl        *template.Template
	timeout     time.Duration
	staleDays   int
	abandonDays int
}

// New parses the embedded templates and wraps the tracker client.
func New(client tracker.Client, cfg model.Config) (*Notifier, error) {
	tmpl, err := template.New("comments").Funcs(funcs).ParseFS(templates.FS,
		"assignment.md", "progress.md", "reminder.md", "reassignment.md")
	if err != nil {
		return nil, fmt.Errorf("parse comment templates: %w", err)
	}
	return &Notifier{
		client:      client,
		tmpl:        tmpl,
		timeout:     time.Duration(cfg.Tracker.TimeoutSec) * time.Second,
		staleDays:   cfg.Reconciler.StaleAfterDays,
		abandonDays: cfg.Reconciler.AbandonAfterDays,
	}, nil
}

// AssignmentCreated announces a fresh assignment on the item.
func (n *Notifier) AssignmentCreated(ctx context.Context, item *model.WorkItem, agent *model.Agent) error {
	body, err := n.render("assignment.md", map[string]any{
		"ItemID":       item.ID,
		"Agent":        agent.Name,
		"TimelineDays": item.EstimateDays(),
		"Skills":       agent.Skills,
		"Complexity":   item.EstimatedComplexity,
		"Priority":     infer.Priority(item.Labels),
		"Dependencies": item.Dependencies,
	})
	if err != nil {
		return err
	}
	return n.post(ctx, item.ID, body)
}

// ProgressRecorded posts a progress update comment.
func (n *Notifier) ProgressRecorded(ctx context.Context, item *model.WorkItem, ev model.ProgressEvent) error {
	body, err := n.render("progress.md", map[string]any{
		"Timestamp":  ev.Timestamp,
		"Agent":      ev.Agent,
		"Status":     string(ev.Status),
		"Percentage": ev.Percentage,
		"Blockers":   ev.Blockers,
		"NextSteps":  ev.NextSteps,
	})
	if err != nil {
		return err
	}
	return n.post(ctx, item.ID, body)
}

// StaleReminder nudges the assigned agent on an inactive item.
func (n *Notifier) StaleReminder(ctx context.Context, item *model.WorkItem) error {
	body, err := n.render("reminder.md", map[string]any{
		"Agent":       item.AssignedAgent,
		"StaleDays":   n.staleDays,
		"AbandonDays": n.abandonDays,
	})
	if err != nil {
		return err
	}
	return n.post(ctx, item.ID, body)
}

// Reassigned announces a forced reassignment of an abandoned item.
func (n *Notifier) Reassigned(ctx context.Context, item *model.WorkItem, fromAgent, toAgent string) error {
	body, err := n.render("reassignment.md", map[string]any{
		"FromAgent":   fromAgent,
		"ToAgent":     toAgent,
		"AbandonDays": n.abandonDays,
	})
	if err != nil {
		return err
	}
	return n.post(ctx, item.ID, body)
}

func (n *Notifier) render(name string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := n.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (n *Notifier) post(ctx context.Context, itemID int, body string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	return n.client.PostComment(ctx, itemID, body)
}
