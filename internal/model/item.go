package model

// WorkItem is a unit of backlog work sourced from the external tracker.
// State, Title, Labels, Body, and UpdatedAt are the tracker's; AssignedAgent,
// RequiredSkills, EstimatedComplexity, and Dependencies are coordination
// metadata owned locally. Items are never deleted, only closed, so that
// dependency references stay resolvable.
type WorkItem struct {
	ID                  int       `yaml:"id" json:"id"`
	Title               string    `yaml:"title" json:"title"`
	Body                string    `yaml:"body,omitempty" json:"body,omitempty"`
	Labels              []string  `yaml:"labels" json:"labels"`
	State               ItemState `yaml:"state" json:"state"`
	AssignedAgent       string    `yaml:"assigned_agent,omitempty" json:"assigned_agent,omitempty"`
	RequiredSkills      []string  `yaml:"required_skills" json:"required_skills"`
	EstimatedComplexity int       `yaml:"estimated_complexity" json:"estimated_complexity"`
	Dependencies        []int     `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	UpdatedAt           string    `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Open reports whether the item is open per the last synced tracker state.
func (w *WorkItem) Open() bool {
	return w.State == ItemStateOpen
}

// Assigned reports whether the item currently has an assigned agent.
func (w *WorkItem) Assigned() bool {
	return w.AssignedAgent != ""
}

// HasLabel reports whether the item carries the given tracker label.
func (w *WorkItem) HasLabel(label string) bool {
	for _, l := range w.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// completionDays maps estimated complexity to an expected completion time in
// days, used for timeline estimates in assignment notifications.
var completionDays = map[int]int{1: 1, 2: 2, 3: 3, 4: 5, 5: 8}

// EstimateDays returns the expected completion time for the item's
// complexity. Unknown complexity values fall back to the medium estimate.
func (w *WorkItem) EstimateDays() int {
	if d, ok := completionDays[w.EstimatedComplexity]; ok {
		return d
	}
	return 3
}
