package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/devswarm/coordd/internal/model"
	yamlutil "github.com/devswarm/coordd/internal/yaml"
)

func TestRun_CreatesDirectoryStructure(t *testing.T) {
	dir := t.TempDir()

	base, err := Run(dir, "devswarm", "calclib")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if base != filepath.Join(dir, "coordination") {
		t.Errorf("base = %q", base)
	}

	for _, sub := range []string{"state", "logs", "locks"} {
		info, err := os.Stat(filepath.Join(base, sub))
		if err != nil || !info.IsDir() {
			t.Errorf("missing directory %s: %v", sub, err)
		}
	}

	if _, err := os.Stat(filepath.Join(base, "locks", "daemon.lock")); err != nil {
		t.Errorf("missing daemon.lock: %v", err)
	}
}

func TestRun_GeneratesConfigWithDefaultPool(t *testing.T) {
	dir := t.TempDir()

	base, err := Run(dir, "devswarm", "calclib")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var cfg model.Config
	if err := yamlutil.ReadInto(filepath.Join(base, "config.yaml"), &cfg); err != nil {
		t.Fatalf("read config: %v", err)
	}

	if cfg.Tracker.Owner != "devswarm" || cfg.Tracker.Repo != "calclib" {
		t.Errorf("tracker = %+v", cfg.Tracker)
	}
	if cfg.Project.Name != filepath.Base(dir) {
		t.Errorf("project name = %q", cfg.Project.Name)
	}
	if len(cfg.Agents) != len(model.DefaultAgents()) {
		t.Errorf("agent pool size = %d", len(cfg.Agents))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("generated config invalid: %v", err)
	}
	if cfg.Allocator.MinScore != 0.1 {
		t.Errorf("min_score = %v, want default 0.1", cfg.Allocator.MinScore)
	}
}

func TestRun_RepoDefaultsFromDirectory(t *testing.T) {
	dir := t.TempDir()

	base, err := Run(dir, "devswarm", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var cfg model.Config
	if err := yamlutil.ReadInto(filepath.Join(base, "config.yaml"), &cfg); err != nil {
		t.Fatalf("read config: %v", err)
	}
	if cfg.Tracker.Repo != filepath.Base(dir) {
		t.Errorf("repo = %q, want directory basename", cfg.Tracker.Repo)
	}
}

func TestRun_RejectsExistingDir(t *testing.T) {
	dir := t.TempDir()

	if _, err := Run(dir, "devswarm", "calclib"); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := Run(dir, "devswarm", "calclib"); err == nil {
		t.Fatal("second Run must refuse to overwrite")
	}
}
