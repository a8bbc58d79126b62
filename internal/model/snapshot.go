package model

import "fmt"

const SnapshotSchemaVersion = 1

// Snapshot is the persisted form of the coordination graph. It is rewritten
// after every committed mutation and reloaded at startup; a freshly saved
// snapshot must reload to an identical graph.
type Snapshot struct {
	SchemaVersion int             `yaml:"schema_version"`
	Agents        []Agent         `yaml:"agents"`
	Items         []WorkItem      `yaml:"items"`
	Progress      []ProgressEvent `yaml:"progress"`
	UpdatedAt     string          `yaml:"updated_at"`
}

// Validate checks the structural invariants of the snapshot: unique IDs,
// capacity bounds, and the bidirectional assignment link between agents and
// items. A snapshot failing validation must not be loaded.
func (s *Snapshot) Validate() error {
	agents := make(map[string]*Agent, len(s.Agents))
	for i := range s.Agents {
		a := &s.Agents[i]
		if a.Name == "" {
			return fmt.Errorf("agent %d: empty name", i)
		}
		if _, dup := agents[a.Name]; dup {
			return fmt.Errorf("duplicate agent %q", a.Name)
		}
		if a.MaxConcurrent <= 0 {
			return fmt.Errorf("agent %q: max_concurrent must be positive, got %d", a.Name, a.MaxConcurrent)
		}
		if len(a.CurrentAssignments) > a.MaxConcurrent {
			return fmt.Errorf("agent %q: %d assignments exceed capacity %d",
				a.Name, len(a.CurrentAssignments), a.MaxConcurrent)
		}
		agents[a.Name] = a
	}

	items := make(map[int]*WorkItem, len(s.Items))
	for i := range s.Items {
		it := &s.Items[i]
		if _, dup := items[it.ID]; dup {
			return fmt.Errorf("duplicate item %d", it.ID)
		}
		items[it.ID] = it
	}

	// Item → agent direction.
	for _, it := range items {
		if it.AssignedAgent == "" {
			continue
		}
		a, ok := agents[it.AssignedAgent]
		if !ok {
			return fmt.Errorf("item %d assigned to unknown agent %q", it.ID, it.AssignedAgent)
		}
		if !a.Holds(it.ID) {
			return fmt.Errorf("item %d assigned to %q but missing from its assignment list", it.ID, a.Name)
		}
	}

	// Agent → item direction.
	for _, a := range agents {
		for _, id := range a.CurrentAssignments {
			it, ok := items[id]
			if !ok {
				return fmt.Errorf("agent %q holds unknown item %d", a.Name, id)
			}
			if it.AssignedAgent != a.Name {
				return fmt.Errorf("agent %q holds item %d but the item points to %q", a.Name, id, it.AssignedAgent)
			}
		}
	}

	return nil
}
