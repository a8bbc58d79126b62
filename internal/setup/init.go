// Package setup handles coordination directory initialization.
package setup

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/devswarm/coordd/internal/model"
	yamlutil "github.com/devswarm/coordd/internal/yaml"
)

const coordDirName = "coordination"

// Run initializes the coordination/ directory structure in the given project
// directory: config.yaml with the stock agent pool, plus state, logs, and
// locks directories. Refuses to overwrite an existing setup.
func Run(projectDir, owner, repo string) (string, error) {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return "", fmt.Errorf("resolve project dir: %w", err)
	}

	base := filepath.Join(absDir, coordDirName)

	if _, err := os.Stat(base); err == nil {
		return "", fmt.Errorf("%s already exists", base)
	}

	dirs := []string{
		"state",
		"logs",
		"locks",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(base, d), 0755); err != nil {
			return "", fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	// The config is not validated here: owner may legitimately be blank
	// until the user fills it in, and the daemon validates at startup.
	cfg := generateConfig(absDir, owner, repo)
	if err := yamlutil.AtomicWrite(filepath.Join(base, "config.yaml"), cfg); err != nil {
		return "", fmt.Errorf("write config.yaml: %w", err)
	}

	// Empty daemon lock so the first daemon start does not race directory
	// creation.
	if err := os.WriteFile(filepath.Join(base, "locks", "daemon.lock"), nil, 0600); err != nil {
		return "", fmt.Errorf("create daemon.lock: %w", err)
	}

	return base, nil
}

// generateConfig builds the initial config with the stock agent pool.
// Owner/repo default from the project directory name when not given.
func generateConfig(absDir, owner, repo string) model.Config {
	if repo == "" {
		repo = filepath.Base(absDir)
	}

	cfg := model.Config{
		Project: model.ProjectConfig{
			Name:        filepath.Base(absDir),
			Description: "agent coordination for " + filepath.Base(absDir),
		},
		Tracker: model.TrackerConfig{
			Owner: owner,
			Repo:  repo,
		},
		Agents: model.DefaultAgents(),
	}
	cfg.ApplyDefaults()
	return cfg
}
