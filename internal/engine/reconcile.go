package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devswarm/coordd/internal/events"
	"github.com/devswarm/coordd/internal/model"
	"github.com/devswarm/coordd/internal/tracker"
)

// Reassignment records one abandonment repair. ToAgent is empty when no
// replacement agent qualified; NoOp marks the case where reselection landed
// on the same agent and the link was left untouched.
type Reassignment struct {
	ItemID    int    `json:"item_id" yaml:"item_id"`
	FromAgent string `json:"from_agent" yaml:"from_agent"`
	ToAgent   string `json:"to_agent,omitempty" yaml:"to_agent,omitempty"`
	NoOp      bool   `json:"no_op,omitempty" yaml:"no_op,omitempty"`
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	StartedAt        string         `json:"started_at" yaml:"started_at"`
	FinishedAt       string         `json:"finished_at" yaml:"finished_at"`
	Synced           int            `json:"synced" yaml:"synced"`
	Created          []int          `json:"created,omitempty" yaml:"created,omitempty"`
	ClosedUnassigned []int          `json:"closed_unassigned,omitempty" yaml:"closed_unassigned,omitempty"`
	StaleItems       []int          `json:"stale_items,omitempty" yaml:"stale_items,omitempty"`
	Reassignments    []Reassignment `json:"reassignments,omitempty" yaml:"reassignments,omitempty"`
	Warnings         []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Reconcile runs one full reconciliation pass: pull the remote item set and
// fold it into local state, rebuild agent workloads from the surviving open
// items, then detect stale and abandoned assignments. A tracker outage
// degrades the pass to a warning; local state is never modified on partial
// remote data.
func (e *Engine) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{StartedAt: e.clock().UTC().Format(time.RFC3339)}

	if e.tracker == nil {
		report.Warnings = append(report.Warnings, "no tracker configured, skipping reconciliation")
		report.FinishedAt = e.clock().UTC().Format(time.RFC3339)
		return report, nil
	}

	remote, err := e.tracker.ListItems(ctx, "all")
	if err != nil {
		extErr := &Error{Kind: KindExternalUnavailable, Detail: "tracker list failed", Err: err}
		e.log(LogLevelWarn, "reconcile_list error=%v", err)
		report.Warnings = append(report.Warnings, extErr.Error())
		report.FinishedAt = e.clock().UTC().Format(time.RFC3339)
		return report, nil
	}

	e.syncRemote(remote, report)
	e.detectStaleness(ctx, report)

	report.FinishedAt = e.clock().UTC().Format(time.RFC3339)
	e.publish(events.EventSyncCompleted, map[string]any{
		"synced":  report.Synced,
		"created": len(report.Created),
		"stale":   len(report.StaleItems),
	})
	e.log(LogLevelInfo, "reconcile synced=%d created=%d closed=%d stale=%d reassigned=%d",
		report.Synced, len(report.Created), len(report.ClosedUnassigned),
		len(report.StaleItems), len(report.Reassignments))
	return report, nil
}

// syncRemote folds the remote item set into local state and rebuilds every
// agent's assignment list from the open items that still point at it.
func (e *Engine) syncRemote(remote []tracker.Item, report *ReconcileReport) {
	sort.Slice(remote, func(i, j int) bool { return remote[i].ID < remote[j].ID })

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range remote {
		report.Synced++
		if it, ok := e.items[r.ID]; ok {
			it.Title = r.Title
			it.Body = r.Body
			it.Labels = append([]string(nil), r.Labels...)
			it.UpdatedAt = r.UpdatedAt
			it.State = model.ItemState(r.State)
			if it.State == model.ItemStateClosed && it.AssignedAgent != "" {
				e.clearAssignmentLocked(it)
				report.ClosedUnassigned = append(report.ClosedUnassigned, it.ID)
			}
			continue
		}

		skills, complexity := e.classifier.Classify(r.Title+" "+r.Body, r.Labels)
		e.items[r.ID] = &model.WorkItem{
			ID:                  r.ID,
			Title:               r.Title,
			Body:                r.Body,
			Labels:              append([]string(nil), r.Labels...),
			State:               model.ItemState(r.State),
			RequiredSkills:      skills,
			EstimatedComplexity: complexity,
			UpdatedAt:           r.UpdatedAt,
		}
		report.Created = append(report.Created, r.ID)
	}

	// Agent workloads are derived state; rebuild them from the open items
	// so drift from crashes or manual snapshot edits self-heals.
	for _, name := range e.agentOrder {
		e.agents[name].CurrentAssignments = nil
	}
	for _, id := range e.sortedItemIDsLocked() {
		it := e.items[id]
		if it.State != model.ItemStateOpen || it.AssignedAgent == "" {
			continue
		}
		a, ok := e.agents[it.AssignedAgent]
		if !ok {
			// Assignee no longer in the pool; release the item.
			it.AssignedAgent = ""
			report.Warnings = append(report.Warnings, fmt.Sprintf("item %d assigned to unknown agent, released", id))
			continue
		}
		a.CurrentAssignments = append(a.CurrentAssignments, id)
	}

	e.saveLocked(&report.Warnings)
}

// detectStaleness fetches fresh remote timestamps for every open assigned
// item and applies the staleness policy: reminder past the stale threshold,
// forced reassignment past the abandonment threshold.
func (e *Engine) detectStaleness(ctx context.Context, report *ReconcileReport) {
	e.mu.Lock()
	var candidates []int
	for _, id := range e.sortedItemIDsLocked() {
		it := e.items[id]
		if it.State == model.ItemStateOpen && it.AssignedAgent != "" {
			candidates = append(candidates, id)
		}
	}
	staleAfter := time.Duration(e.cfg.Reconciler.StaleAfterDays) * 24 * time.Hour
	abandonAfter := time.Duration(e.cfg.Reconciler.AbandonAfterDays) * 24 * time.Hour
	concurrency := e.cfg.Reconciler.FetchConcurrency
	e.mu.Unlock()

	if len(candidates) == 0 {
		return
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	type fetched struct {
		id        int
		updatedAt time.Time
	}
	results := make([]fetched, len(candidates))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, id := range candidates {
		i, id := i, id
		g.Go(func() error {
			it, err := e.tracker.GetItem(ctx, id)
			if err != nil {
				results[i] = fetched{id: id}
				return fmt.Errorf("fetch item %d: %w", id, err)
			}
			ts, err := time.Parse(time.RFC3339, it.UpdatedAt)
			if err != nil {
				results[i] = fetched{id: id}
				return fmt.Errorf("item %d: bad updated_at %q", id, it.UpdatedAt)
			}
			results[i] = fetched{id: id, updatedAt: ts}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		extErr := &Error{Kind: KindExternalUnavailable, Detail: "staleness fetch failed", Err: err}
		report.Warnings = append(report.Warnings, extErr.Error())
	}

	now := e.clock().UTC()
	var stale, abandoned []int
	for _, r := range results {
		if r.updatedAt.IsZero() {
			continue // fetch failed, already warned
		}
		age := now.Sub(r.updatedAt)
		if age > staleAfter {
			stale = append(stale, r.id)
		}
		if age > abandonAfter {
			abandoned = append(abandoned, r.id)
		}
	}
	report.StaleItems = stale

	e.reassignAbandoned(ctx, abandoned, report)

	// Reminders only for items that are stale but not yet abandoned; the
	// abandoned ones get a reassignment comment instead.
	abandonedSet := make(map[int]bool, len(abandoned))
	for _, id := range abandoned {
		abandonedSet[id] = true
	}
	for _, id := range stale {
		if abandonedSet[id] {
			continue
		}
		e.mu.Lock()
		it, ok := e.items[id]
		var itemCopy model.WorkItem
		if ok {
			itemCopy = *it
		}
		e.mu.Unlock()
		if !ok {
			continue
		}
		e.publish(events.EventStaleReminder, map[string]any{
			"item_id": id,
			"agent":   itemCopy.AssignedAgent,
		})
		if e.notifier != nil {
			if err := e.notifier.StaleReminder(ctx, &itemCopy); err != nil {
				e.log(LogLevelWarn, "stale_reminder item=%d error=%v", id, err)
				report.Warnings = append(report.Warnings, fmt.Sprintf("stale reminder for item %d failed: %v", id, err))
			}
		}
	}
}

// reassignAbandoned releases each abandoned item and reselects the best
// available agent. Reselection landing on the same agent leaves the link
// untouched and records a no-op repair.
func (e *Engine) reassignAbandoned(ctx context.Context, abandoned []int, report *ReconcileReport) {
	if len(abandoned) == 0 {
		return
	}

	type pendingComment struct {
		item model.WorkItem
		from string
		to   string
	}
	var comments []pendingComment

	e.mu.Lock()
	for _, id := range abandoned {
		it, ok := e.items[id]
		if !ok || it.AssignedAgent == "" {
			continue
		}
		from := it.AssignedAgent

		next, _ := e.findBestAgentLockedExcludingCurrent(it)
		if next != nil && next.Name == from {
			report.Reassignments = append(report.Reassignments, Reassignment{
				ItemID: id, FromAgent: from, ToAgent: from, NoOp: true,
			})
			continue
		}

		e.clearAssignmentLocked(it)
		if next == nil {
			report.Reassignments = append(report.Reassignments, Reassignment{
				ItemID: id, FromAgent: from,
			})
			report.Warnings = append(report.Warnings, fmt.Sprintf("item %d released from %s, no replacement agent", id, from))
			continue
		}

		e.setAssignmentLocked(it, next)
		e.progress = append(e.progress, model.NewProgressEvent(
			e.clock(), next.Name, id, model.StatusAssigned, 0, nil, nil,
		))
		report.Reassignments = append(report.Reassignments, Reassignment{
			ItemID: id, FromAgent: from, ToAgent: next.Name,
		})
		comments = append(comments, pendingComment{item: *it, from: from, to: next.Name})
	}
	e.saveLocked(&report.Warnings)
	e.mu.Unlock()

	for _, c := range comments {
		e.log(LogLevelInfo, "reassigned item=%d from=%s to=%s", c.item.ID, c.from, c.to)
		e.publish(events.EventItemReassigned, map[string]any{
			"item_id": c.item.ID,
			"from":    c.from,
			"to":      c.to,
		})
		if e.notifier != nil {
			if err := e.notifier.Reassigned(ctx, &c.item, c.from, c.to); err != nil {
				e.log(LogLevelWarn, "reassignment_comment item=%d error=%v", c.item.ID, err)
				report.Warnings = append(report.Warnings, fmt.Sprintf("reassignment comment for item %d failed: %v", c.item.ID, err))
			}
		}
	}
}

// findBestAgentLockedExcludingCurrent reselects for an abandoned item. The
// current assignee is scored like any other agent, but its own hold on the
// item does not consume capacity for the comparison.
func (e *Engine) findBestAgentLockedExcludingCurrent(item *model.WorkItem) (*model.Agent, float64) {
	cur := item.AssignedAgent
	if cur == "" {
		return e.findBestAgentLocked(item)
	}
	// Temporarily release so the current agent competes on equal footing.
	e.clearAssignmentLocked(item)
	best, score := e.findBestAgentLocked(item)
	if a, ok := e.agents[cur]; ok {
		e.setAssignmentLocked(item, a)
	}
	return best, score
}
