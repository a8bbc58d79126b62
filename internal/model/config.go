package model

import "fmt"

// Config is the engine configuration loaded from coordination/config.yaml.
type Config struct {
	Project    ProjectConfig    `yaml:"project"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Allocator  AllocatorConfig  `yaml:"allocator"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Daemon     DaemonConfig     `yaml:"daemon"`
	Logging    LoggingConfig    `yaml:"logging"`
	Agents     []Agent          `yaml:"agents"`
}

type ProjectConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type TrackerConfig struct {
	BaseURL        string `yaml:"base_url"`
	Owner          string `yaml:"owner"`
	Repo           string `yaml:"repo"`
	TokenEnv       string `yaml:"token_env"`
	TimeoutSec     int    `yaml:"timeout_sec"`
	MaxRetries     int    `yaml:"max_retries"`
	RetryBackoffMs int    `yaml:"retry_backoff_ms"`
}

type AllocatorConfig struct {
	// MinScore is the minimum affinity score required before an assignment
	// is forced; a best score at or below it yields no suitable agent.
	MinScore float64 `yaml:"min_score"`
	// LoadPenalty scales the score reduction applied per unit of relative
	// load: score *= 1 - LoadPenalty * load/capacity.
	LoadPenalty float64 `yaml:"load_penalty"`
}

type ReconcilerConfig struct {
	StaleAfterDays   int `yaml:"stale_after_days"`
	AbandonAfterDays int `yaml:"abandon_after_days"`
	// FetchConcurrency bounds the parallel remote timestamp fetches during
	// staleness detection.
	FetchConcurrency int `yaml:"fetch_concurrency"`
}

type DaemonConfig struct {
	PassIntervalSec    int `yaml:"pass_interval_sec"`
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ApplyDefaults fills zero-valued tuning knobs with the stock defaults.
func (c *Config) ApplyDefaults() {
	if c.Tracker.BaseURL == "" {
		c.Tracker.BaseURL = "https://api.github.com"
	}
	if c.Tracker.TokenEnv == "" {
		c.Tracker.TokenEnv = "COORDD_TRACKER_TOKEN"
	}
	if c.Tracker.TimeoutSec <= 0 {
		c.Tracker.TimeoutSec = 15
	}
	if c.Tracker.MaxRetries <= 0 {
		c.Tracker.MaxRetries = 3
	}
	if c.Tracker.RetryBackoffMs <= 0 {
		c.Tracker.RetryBackoffMs = 500
	}
	if c.Allocator.MinScore <= 0 {
		c.Allocator.MinScore = 0.1
	}
	if c.Allocator.LoadPenalty <= 0 {
		c.Allocator.LoadPenalty = 0.3
	}
	if c.Reconciler.StaleAfterDays <= 0 {
		c.Reconciler.StaleAfterDays = 3
	}
	if c.Reconciler.AbandonAfterDays <= 0 {
		c.Reconciler.AbandonAfterDays = 7
	}
	if c.Reconciler.FetchConcurrency <= 0 {
		c.Reconciler.FetchConcurrency = 4
	}
	if c.Daemon.PassIntervalSec <= 0 {
		c.Daemon.PassIntervalSec = 300
	}
	if c.Daemon.ShutdownTimeoutSec <= 0 {
		c.Daemon.ShutdownTimeoutSec = 30
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Tracker.Owner == "" || c.Tracker.Repo == "" {
		return fmt.Errorf("tracker.owner and tracker.repo are required")
	}
	if c.Reconciler.AbandonAfterDays < c.Reconciler.StaleAfterDays {
		return fmt.Errorf("reconciler.abandon_after_days (%d) must be >= stale_after_days (%d)",
			c.Reconciler.AbandonAfterDays, c.Reconciler.StaleAfterDays)
	}
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("agents: empty agent name")
		}
		if seen[a.Name] {
			return fmt.Errorf("agents: duplicate agent %q", a.Name)
		}
		seen[a.Name] = true
		if a.MaxConcurrent <= 0 {
			return fmt.Errorf("agent %q: max_concurrent must be positive", a.Name)
		}
		if a.PerformanceScore <= 0 || a.PerformanceScore > 1.5 {
			return fmt.Errorf("agent %q: performance_score must be in (0, 1.5], got %g", a.Name, a.PerformanceScore)
		}
	}
	return nil
}

// DefaultAgents is the stock agent pool installed by setup when no pool is
// configured. Profiles follow the project's observed work mix.
func DefaultAgents() []Agent {
	return []Agent{
		{
			Name:             "StringOperationsAgent",
			Skills:           []string{"string-processing", "text-manipulation", "unicode-handling"},
			MaxConcurrent:    2,
			PerformanceScore: 1.0,
		},
		{
			Name:             "MathLibraryAgent",
			Skills:           []string{"mathematical-operations", "algorithms", "numerical-computing"},
			MaxConcurrent:    2,
			PerformanceScore: 1.0,
		},
		{
			Name:             "FileSystemAgent",
			Skills:           []string{"file-operations", "io-handling", "data-persistence"},
			MaxConcurrent:    1,
			PerformanceScore: 1.0,
		},
		{
			Name:             "GeneralPurposeAgent",
			Skills:           []string{"documentation", "testing", "integration", "general-programming"},
			MaxConcurrent:    3,
			PerformanceScore: 0.8,
		},
	}
}
