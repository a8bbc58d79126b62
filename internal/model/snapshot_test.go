package model

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func validSnapshot() Snapshot {
	return Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		Agents: []Agent{
			{
				Name:               "StringOperationsAgent",
				Skills:             []string{"string-processing"},
				CurrentAssignments: []int{101},
				MaxConcurrent:      2,
				PerformanceScore:   1.0,
			},
			{
				Name:             "GeneralPurposeAgent",
				Skills:           []string{"testing", "documentation"},
				MaxConcurrent:    3,
				PerformanceScore: 0.8,
			},
		},
		Items: []WorkItem{
			{
				ID:                  101,
				Title:               "String padding functions",
				Labels:              []string{"enhancement"},
				State:               ItemStateOpen,
				AssignedAgent:       "StringOperationsAgent",
				RequiredSkills:      []string{"string-processing"},
				EstimatedComplexity: 4,
				UpdatedAt:           "2026-08-20T10:00:00Z",
			},
			{
				ID:                  102,
				Title:               "Fix rounding bug",
				Labels:              []string{"bug"},
				State:               ItemStateOpen,
				RequiredSkills:      []string{"mathematical-operations"},
				EstimatedComplexity: 2,
				Dependencies:        []int{101},
			},
		},
		Progress: []ProgressEvent{
			{
				ID:         "6a1f0e9c-0000-0000-0000-000000000001",
				Timestamp:  "2026-08-20T10:00:00Z",
				Agent:      "StringOperationsAgent",
				ItemID:     101,
				Status:     StatusAssigned,
				Percentage: 0,
			},
		},
		UpdatedAt: "2026-08-20T10:00:00Z",
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := validSnapshot()

	data, err := yaml.Marshal(&snap)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded Snapshot
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if err := decoded.Validate(); err != nil {
		t.Fatalf("reloaded snapshot invalid: %v", err)
	}
	if len(decoded.Agents) != 2 || len(decoded.Items) != 2 || len(decoded.Progress) != 1 {
		t.Fatalf("shape changed on round-trip: %d agents, %d items, %d events",
			len(decoded.Agents), len(decoded.Items), len(decoded.Progress))
	}
	if decoded.Items[0].AssignedAgent != "StringOperationsAgent" {
		t.Errorf("assigned_agent lost: got %q", decoded.Items[0].AssignedAgent)
	}
	if got := decoded.Agents[0].CurrentAssignments; len(got) != 1 || got[0] != 101 {
		t.Errorf("current_assignments lost: got %v", got)
	}
	if len(decoded.Items[1].Dependencies) != 1 || decoded.Items[1].Dependencies[0] != 101 {
		t.Errorf("dependencies lost: got %v", decoded.Items[1].Dependencies)
	}
}

func TestSnapshotValidateDetectsDrift(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"item points to agent missing the id", func(s *Snapshot) {
			s.Agents[0].CurrentAssignments = nil
		}},
		{"agent holds item pointing elsewhere", func(s *Snapshot) {
			s.Items[0].AssignedAgent = "GeneralPurposeAgent"
		}},
		{"item assigned to unknown agent", func(s *Snapshot) {
			s.Items[0].AssignedAgent = "GhostAgent"
			s.Agents[0].CurrentAssignments = nil
		}},
		{"agent holds unknown item", func(s *Snapshot) {
			s.Agents[0].CurrentAssignments = []int{101, 999}
			// stay under capacity so the capacity check doesn't fire first
			s.Agents[0].MaxConcurrent = 3
		}},
		{"over capacity", func(s *Snapshot) {
			s.Agents[0].MaxConcurrent = 0
		}},
		{"duplicate agent", func(s *Snapshot) {
			s.Agents = append(s.Agents, s.Agents[0])
		}},
		{"duplicate item", func(s *Snapshot) {
			s.Items = append(s.Items, s.Items[1])
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := validSnapshot()
			tt.mutate(&snap)
			if err := snap.Validate(); err == nil {
				t.Error("Validate accepted an inconsistent snapshot")
			}
		})
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	cfg := Config{
		Tracker: TrackerConfig{Owner: "devswarm", Repo: "stdlib"},
		Agents:  DefaultAgents(),
	}
	cfg.ApplyDefaults()

	if cfg.Allocator.MinScore != 0.1 {
		t.Errorf("min_score default: got %g", cfg.Allocator.MinScore)
	}
	if cfg.Allocator.LoadPenalty != 0.3 {
		t.Errorf("load_penalty default: got %g", cfg.Allocator.LoadPenalty)
	}
	if cfg.Reconciler.StaleAfterDays != 3 || cfg.Reconciler.AbandonAfterDays != 7 {
		t.Errorf("staleness defaults: got %d/%d",
			cfg.Reconciler.StaleAfterDays, cfg.Reconciler.AbandonAfterDays)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	bad := cfg
	bad.Reconciler.AbandonAfterDays = 1
	if err := bad.Validate(); err == nil {
		t.Error("abandon threshold below stale threshold should be rejected")
	}

	bad = cfg
	bad.Agents = []Agent{{Name: "A", MaxConcurrent: 1, PerformanceScore: 2.0}}
	if err := bad.Validate(); err == nil {
		t.Error("performance_score above 1.5 should be rejected")
	}
}
