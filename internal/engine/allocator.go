package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/devswarm/coordd/internal/events"
	"github.com/devswarm/coordd/internal/model"
)

// AssignResult reports a completed assignment. Warnings carry non-fatal
// follow-up failures (persistence, comment posting); the assignment itself
// is committed when err is nil.
type AssignResult struct {
	ItemID   int      `json:"item_id" yaml:"item_id"`
	Agent    string   `json:"agent" yaml:"agent"`
	Score    float64  `json:"score" yaml:"score"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// AutoAssignResult reports one auto-assignment pass.
type AutoAssignResult struct {
	Assigned []AssignResult `json:"assigned" yaml:"assigned"`
	Skipped  []int          `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Warnings []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// setAssignmentLocked commits the bidirectional agent<->item link. It is,
// together with clearAssignmentLocked, the only place the link is mutated.
// Callers must hold e.mu.
func (e *Engine) setAssignmentLocked(item *model.WorkItem, agent *model.Agent) {
	item.AssignedAgent = agent.Name
	if !agent.Holds(item.ID) {
		agent.CurrentAssignments = append(agent.CurrentAssignments, item.ID)
	}
}

// clearAssignmentLocked removes the bidirectional link, if any, and returns
// the agent the item was assigned to. Callers must hold e.mu.
func (e *Engine) clearAssignmentLocked(item *model.WorkItem) string {
	prev := item.AssignedAgent
	if prev == "" {
		return ""
	}
	item.AssignedAgent = ""
	if a, ok := e.agents[prev]; ok {
		kept := a.CurrentAssignments[:0]
		for _, id := range a.CurrentAssignments {
			if id != item.ID {
				kept = append(kept, id)
			}
		}
		a.CurrentAssignments = kept
	}
	return prev
}

// findBestAgentLocked selects the best available agent for an item, or nil
// when none qualifies. Items without skill requirements go to the least
// loaded available agent; otherwise the highest-scoring agent above the
// configured minimum wins. Ties break on lower load, then on pool order.
// Callers must hold e.mu.
func (e *Engine) findBestAgentLocked(item *model.WorkItem) (*model.Agent, float64) {
	if len(item.RequiredSkills) == 0 {
		var best *model.Agent
		for _, name := range e.agentOrder {
			a := e.agents[name]
			if !a.Available() {
				continue
			}
			if best == nil || a.Load() < best.Load() {
				best = a
			}
		}
		if best == nil {
			return nil, 0
		}
		return best, NeutralScore
	}

	var best *model.Agent
	bestScore := 0.0
	for _, name := range e.agentOrder {
		a := e.agents[name]
		if !a.Available() {
			continue
		}
		s := Score(a, item, e.cfg.Allocator.LoadPenalty)
		if s <= e.cfg.Allocator.MinScore {
			continue // a score at the threshold is still a poor fit
		}
		if best == nil || s > bestScore || (s == bestScore && a.Load() < best.Load()) {
			best = a
			bestScore = s
		}
	}
	return best, bestScore
}

// blockedByLocked returns the IDs of open dependencies preventing
// assignment. Unknown dependency IDs count as unresolved. Callers must
// hold e.mu.
func (e *Engine) blockedByLocked(item *model.WorkItem) []int {
	var blocking []int
	for _, dep := range item.Dependencies {
		d, ok := e.items[dep]
		if !ok || d.State != model.ItemStateClosed {
			blocking = append(blocking, dep)
		}
	}
	return blocking
}

// Assign assigns an item to an agent. With agentName empty the engine
// selects the best-fit agent; a named agent is used as-is provided it has
// spare capacity. An item already assigned elsewhere is moved: the old link
// is cleared and the new one committed in the same transaction.
func (e *Engine) Assign(ctx context.Context, itemID int, agentName string) (*AssignResult, error) {
	e.mu.Lock()

	item, ok := e.items[itemID]
	if !ok {
		e.mu.Unlock()
		return nil, itemError(KindNotFound, itemID, "unknown work item")
	}
	if item.State == model.ItemStateClosed {
		e.mu.Unlock()
		return nil, itemError(KindAlreadyClosed, itemID, "item is closed")
	}

	var agent *model.Agent
	var score float64
	if agentName == "" {
		agent, score = e.findBestAgentLocked(item)
		if agent == nil {
			e.mu.Unlock()
			return nil, itemError(KindNoSuitableAgent, itemID, "no agent meets the score threshold with spare capacity")
		}
	} else {
		agent, ok = e.agents[agentName]
		if !ok {
			e.mu.Unlock()
			return nil, agentError(KindNotFound, itemID, agentName, "unknown agent")
		}
		if !agent.Available() && !agent.Holds(itemID) {
			e.mu.Unlock()
			return nil, agentError(KindAgentUnavailable, itemID, agentName, fmt.Sprintf("at capacity %d/%d", agent.Load(), agent.MaxConcurrent))
		}
		score = Score(agent, item, e.cfg.Allocator.LoadPenalty)
	}

	if blocking := e.blockedByLocked(item); len(blocking) > 0 {
		e.mu.Unlock()
		return nil, itemError(KindDependencyBlocked, itemID, fmt.Sprintf("open dependencies %v", blocking))
	}

	res := &AssignResult{ItemID: itemID, Agent: agent.Name, Score: score}

	e.clearAssignmentLocked(item)
	e.setAssignmentLocked(item, agent)
	e.progress = append(e.progress, model.NewProgressEvent(
		e.clock(), agent.Name, itemID, model.StatusAssigned, 0, nil, nil,
	))
	e.saveLocked(&res.Warnings)

	itemCopy := *item
	agentCopy := *agent
	e.mu.Unlock()

	e.log(LogLevelInfo, "assigned item=%d agent=%s score=%.3f", itemID, agent.Name, score)
	if e.notifier != nil {
		if err := e.notifier.AssignmentCreated(ctx, &itemCopy, &agentCopy); err != nil {
			e.log(LogLevelWarn, "assignment_comment item=%d error=%v", itemID, err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("assignment comment failed: %v", err))
		}
	}
	e.publish(events.EventAssignmentCreated, map[string]any{
		"item_id": itemID,
		"agent":   agent.Name,
		"score":   score,
	})
	return res, nil
}

// AutoAssign assigns every open unassigned item to the best available
// agent, simplest items first. Items that cannot be assigned are skipped,
// not errors; one pass never assigns an item twice.
func (e *Engine) AutoAssign(ctx context.Context) (*AutoAssignResult, error) {
	e.mu.Lock()
	var pending []*model.WorkItem
	for _, id := range e.sortedItemIDsLocked() {
		it := e.items[id]
		if it.State == model.ItemStateOpen && it.AssignedAgent == "" {
			pending = append(pending, it)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].EstimatedComplexity != pending[j].EstimatedComplexity {
			return pending[i].EstimatedComplexity < pending[j].EstimatedComplexity
		}
		return pending[i].ID < pending[j].ID
	})
	ids := make([]int, len(pending))
	for i, it := range pending {
		ids[i] = it.ID
	}
	e.mu.Unlock()

	res := &AutoAssignResult{}
	for _, id := range ids {
		ar, err := e.Assign(ctx, id, "")
		if err != nil {
			res.Skipped = append(res.Skipped, id)
			e.log(LogLevelDebug, "auto_assign_skip item=%d reason=%v", id, err)
			continue
		}
		res.Assigned = append(res.Assigned, *ar)
		res.Warnings = append(res.Warnings, ar.Warnings...)
	}
	e.log(LogLevelInfo, "auto_assign assigned=%d skipped=%d", len(res.Assigned), len(res.Skipped))
	return res, nil
}

// Unassign releases an item from its agent. Unassigning an item that has
// no agent is a no-op.
func (e *Engine) Unassign(ctx context.Context, itemID int) error {
	e.mu.Lock()

	item, ok := e.items[itemID]
	if !ok {
		e.mu.Unlock()
		return itemError(KindNotFound, itemID, "unknown work item")
	}
	prev := e.clearAssignmentLocked(item)
	if prev == "" {
		e.mu.Unlock()
		return nil
	}
	e.saveLocked(nil)
	e.mu.Unlock()

	e.log(LogLevelInfo, "unassigned item=%d agent=%s", itemID, prev)
	e.publish(events.EventAssignmentCleared, map[string]any{
		"item_id": itemID,
		"agent":   prev,
	})
	return nil
}

// touchItemLocked refreshes the item's updated_at stamp. Callers must hold
// e.mu.
func (e *Engine) touchItemLocked(item *model.WorkItem) {
	item.UpdatedAt = e.clock().UTC().Format(time.RFC3339)
}
