package engine

import (
	"fmt"
	"time"
)

// AgentUtilization is one agent's slice of the utilization report.
type AgentUtilization struct {
	Workload         int      `json:"current_workload" yaml:"current_workload"`
	MaxCapacity      int      `json:"max_capacity" yaml:"max_capacity"`
	Utilization      float64  `json:"utilization" yaml:"utilization"`
	Skills           []string `json:"skills" yaml:"skills"`
	PerformanceScore float64  `json:"performance_score" yaml:"performance_score"`
}

// ItemCounts buckets the tracked items by assignment state.
type ItemCounts struct {
	Assigned   int `json:"assigned" yaml:"assigned"`
	Unassigned int `json:"unassigned" yaml:"unassigned"`
	Closed     int `json:"closed" yaml:"closed"`
}

// UtilizationReport is a read-only snapshot of pool capacity and workload.
// Generating it never mutates engine state.
type UtilizationReport struct {
	Timestamp           string                      `json:"timestamp" yaml:"timestamp"`
	Agents              map[string]AgentUtilization `json:"agents" yaml:"agents"`
	Items               ItemCounts                  `json:"items" yaml:"items"`
	ResourceUtilization float64                     `json:"resource_utilization" yaml:"resource_utilization"`
	Bottlenecks         []string                    `json:"bottlenecks,omitempty" yaml:"bottlenecks,omitempty"`
	Recommendations     []string                    `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
}

// Report computes current pool utilization, bottlenecks, and capacity
// recommendations.
func (e *Engine) Report() *UtilizationReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	rep := &UtilizationReport{
		Timestamp: e.clock().UTC().Format(time.RFC3339),
		Agents:    make(map[string]AgentUtilization, len(e.agentOrder)),
	}

	totalLoad, totalCap := 0, 0
	for _, name := range e.agentOrder {
		a := e.agents[name]
		load := a.Load()
		rep.Agents[name] = AgentUtilization{
			Workload:         load,
			MaxCapacity:      a.MaxConcurrent,
			Utilization:      float64(load) / float64(a.MaxConcurrent),
			Skills:           append([]string(nil), a.Skills...),
			PerformanceScore: a.PerformanceScore,
		}
		totalLoad += load
		totalCap += a.MaxConcurrent
		if load >= a.MaxConcurrent {
			rep.Bottlenecks = append(rep.Bottlenecks, name)
		}
	}
	if totalCap > 0 {
		rep.ResourceUtilization = float64(totalLoad) / float64(totalCap)
	}

	for _, id := range e.sortedItemIDsLocked() {
		it := e.items[id]
		switch {
		case !it.Open():
			rep.Items.Closed++
		case it.AssignedAgent != "":
			rep.Items.Assigned++
		default:
			rep.Items.Unassigned++
		}
	}

	if rep.ResourceUtilization > 0.8 {
		rep.Recommendations = append(rep.Recommendations, "pool utilization above 80%, consider expanding agent capacity")
	}
	if rep.Items.Unassigned > 0 {
		rep.Recommendations = append(rep.Recommendations, fmt.Sprintf("%d unassigned items need attention", rep.Items.Unassigned))
	}
	if rep.ResourceUtilization < 0.5 {
		rep.Recommendations = append(rep.Recommendations, "pool utilization below 50%, capacity available for more assignments")
	}

	return rep
}
