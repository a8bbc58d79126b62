// Package model defines the data structures for coordd's agent pool, work
// items, progress log, configuration, and persisted snapshot.
package model

// Agent is a development agent with a skill set and a concurrency cap.
// CurrentAssignments holds work-item IDs in assignment order; the engine
// keeps it consistent with each item's AssignedAgent field.
type Agent struct {
	Name               string   `yaml:"name" json:"name"`
	Skills             []string `yaml:"skills" json:"skills"`
	CurrentAssignments []int    `yaml:"current_assignments" json:"current_assignments"`
	MaxConcurrent      int      `yaml:"max_concurrent" json:"max_concurrent"`
	PerformanceScore   float64  `yaml:"performance_score" json:"performance_score"`
}

// Load returns the number of items currently assigned.
func (a *Agent) Load() int {
	return len(a.CurrentAssignments)
}

// Available reports whether the agent can take on new work.
func (a *Agent) Available() bool {
	return len(a.CurrentAssignments) < a.MaxConcurrent
}

// Holds reports whether the agent currently holds the given item.
func (a *Agent) Holds(itemID int) bool {
	for _, id := range a.CurrentAssignments {
		if id == itemID {
			return true
		}
	}
	return false
}

// HasSkill reports whether the agent carries the given capability tag.
func (a *Agent) HasSkill(skill string) bool {
	for _, s := range a.Skills {
		if s == skill {
			return true
		}
	}
	return false
}
