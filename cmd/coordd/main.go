package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devswarm/coordd/internal/daemon"
	"github.com/devswarm/coordd/internal/engine"
	"github.com/devswarm/coordd/internal/events"
	"github.com/devswarm/coordd/internal/model"
	"github.com/devswarm/coordd/internal/notify"
	"github.com/devswarm/coordd/internal/setup"
	"github.com/devswarm/coordd/internal/tracker"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "setup":
		runSetup(os.Args[2:])
	case "daemon":
		runDaemon(os.Args[2:])
	case "sync":
		runSync(os.Args[2:])
	case "assign":
		runAssign(os.Args[2:])
	case "auto-assign":
		runAutoAssign(os.Args[2:])
	case "unassign":
		runUnassign(os.Args[2:])
	case "progress":
		runProgress(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "report":
		runReport(os.Args[2:])
	case "version":
		fmt.Printf("coordd %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runSetup(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: coordd setup <project_dir> [owner] [repo]")
		os.Exit(1)
	}
	owner, repo := "", ""
	if len(args) > 1 {
		owner = args[1]
	}
	if len(args) > 2 {
		repo = args[2]
	}
	base, err := setup.Run(args[0], owner, repo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Initialized %s\n", base)
}

func runDaemon(_ []string) {
	coordDir, cfg := mustLoad()

	bus := events.NewBus(64)
	eng := mustEngine(coordDir, cfg, bus)

	d, err := daemon.New(coordDir, cfg, eng, bus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create daemon: %v\n", err)
		os.Exit(1)
	}
	if err := d.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "daemon: %v\n", err)
		os.Exit(1)
	}
}

func runSync(_ []string) {
	coordDir, cfg := mustLoad()
	eng := mustEngine(coordDir, cfg, nil)

	ctx, cancel := opTimeout(cfg)
	defer cancel()

	report, err := eng.Reconcile(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sync: %v\n", err)
		os.Exit(1)
	}
	printYAML(report)
}

func runAssign(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: coordd assign <item-id> [agent]")
		os.Exit(1)
	}
	itemID := mustItemID(args[0])
	agent := ""
	if len(args) > 1 {
		agent = args[1]
	}

	coordDir, cfg := mustLoad()
	eng := mustEngine(coordDir, cfg, nil)

	ctx, cancel := opTimeout(cfg)
	defer cancel()

	res, err := eng.Assign(ctx, itemID, agent)
	if err != nil {
		fmt.Fprintf(os.Stderr, "assign: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("assigned item %d to %s (score %.3f)\n", res.ItemID, res.Agent, res.Score)
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
}

func runAutoAssign(_ []string) {
	coordDir, cfg := mustLoad()
	eng := mustEngine(coordDir, cfg, nil)

	ctx, cancel := opTimeout(cfg)
	defer cancel()

	res, err := eng.AutoAssign(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "auto-assign: %v\n", err)
		os.Exit(1)
	}
	for _, a := range res.Assigned {
		fmt.Printf("assigned item %d to %s (score %.3f)\n", a.ItemID, a.Agent, a.Score)
	}
	if len(res.Skipped) > 0 {
		fmt.Printf("skipped: %v\n", res.Skipped)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
}

func runUnassign(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: coordd unassign <item-id>")
		os.Exit(1)
	}
	itemID := mustItemID(args[0])

	coordDir, cfg := mustLoad()
	eng := mustEngine(coordDir, cfg, nil)

	ctx, cancel := opTimeout(cfg)
	defer cancel()

	if err := eng.Unassign(ctx, itemID); err != nil {
		fmt.Fprintf(os.Stderr, "unassign: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("unassigned item %d\n", itemID)
}

func runProgress(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: coordd progress <item-id> <status> <percentage> [note ...]")
		fmt.Fprintln(os.Stderr, "  statuses: assigned in_progress blocked ready_for_review completed")
		os.Exit(1)
	}
	itemID := mustItemID(args[0])
	pct, err := strconv.Atoi(args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid percentage %q\n", args[2])
		os.Exit(1)
	}

	upd := engine.ProgressUpdate{
		ItemID:     itemID,
		Status:     model.ProgressStatus(args[1]),
		Percentage: pct,
	}
	if len(args) > 3 {
		if upd.Status == model.StatusBlocked {
			upd.Blockers = args[3:]
		} else {
			upd.NextSteps = args[3:]
		}
	}

	coordDir, cfg := mustLoad()
	eng := mustEngine(coordDir, cfg, nil)

	ctx, cancel := opTimeout(cfg)
	defer cancel()

	res, err := eng.RecordProgress(ctx, upd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "progress: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("recorded %s at %d%% for item %d\n", res.Event.Status, res.Event.Percentage, itemID)
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
}

func runStatus(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: coordd status <item-id>")
		os.Exit(1)
	}
	itemID := mustItemID(args[0])

	coordDir, cfg := mustLoad()
	eng := mustEngine(coordDir, cfg, nil)

	hist := eng.ProgressHistory(itemID)
	if len(hist) == 0 {
		fmt.Printf("item %d has no progress history\n", itemID)
		return
	}
	printYAML(hist)
}

func runReport(args []string) {
	asJSON := len(args) > 0 && args[0] == "--json"

	coordDir, cfg := mustLoad()
	eng := mustEngine(coordDir, cfg, nil)

	rep := eng.Report()
	if asJSON {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "report: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}
	printYAML(rep)
}

// mustLoad locates the coordination directory and loads its config.
func mustLoad() (string, model.Config) {
	coordDir := findCoordDir()
	if coordDir == "" {
		fmt.Fprintln(os.Stderr, "error: coordination/ directory not found. Run 'coordd setup <dir>' first.")
		os.Exit(1)
	}
	cfg, err := loadConfig(coordDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	return coordDir, cfg
}

// mustEngine wires the engine with the GitHub tracker, comment notifier, and
// snapshot store.
func mustEngine(coordDir string, cfg model.Config, bus *events.Bus) *engine.Engine {
	client := tracker.NewGitHubClient(cfg.Tracker)
	notifier, err := notify.New(client, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init notifier: %v\n", err)
		os.Exit(1)
	}

	eng, err := engine.New(engine.Options{
		Config:   cfg,
		Tracker:  client,
		Notifier: notifier,
		Store:    engine.NewStore(filepath.Join(coordDir, "state", "snapshot.yaml")),
		Bus:      bus,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init engine: %v\n", err)
		os.Exit(1)
	}
	return eng
}

func opTimeout(cfg model.Config) (context.Context, context.CancelFunc) {
	// Generous outer bound per CLI invocation; individual tracker calls
	// enforce their own tighter timeout.
	sec := cfg.Tracker.TimeoutSec * (cfg.Tracker.MaxRetries + 1)
	if sec <= 0 {
		sec = 60
	}
	return context.WithTimeout(context.Background(), time.Duration(sec)*time.Second)
}

func mustItemID(arg string) int {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		fmt.Fprintf(os.Stderr, "invalid item id %q\n", arg)
		os.Exit(1)
	}
	return id
}

func findCoordDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, "coordination")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func loadConfig(coordDir string) (model.Config, error) {
	data, err := os.ReadFile(filepath.Join(coordDir, "config.yaml"))
	if err != nil {
		return model.Config{}, fmt.Errorf("read config.yaml: %w", err)
	}
	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.Config{}, fmt.Errorf("parse config.yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return model.Config{}, fmt.Errorf("config.yaml: %w", err)
	}
	return cfg, nil
}

func printYAML(v any) {
	data, err := yaml.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(data))
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `coordd %s — agent/issue assignment and resource allocation

Usage: coordd <command> [options]

Setup:
  setup <dir> [owner] [repo]   Initialize coordination/ directory

Coordination:
  sync                          Reconcile local state with the tracker
  assign <item-id> [agent]      Assign an item (best-fit when agent omitted)
  auto-assign                   Assign all open unassigned items
  unassign <item-id>            Release an item from its agent
  progress <item-id> <status> <pct> [note ...]
                                Record a progress update
  status <item-id>              Show an item's progress history
  report [--json]               Print the utilization report

Daemon:
  daemon                        Run the coordination daemon

Utilities:
  version                       Show version
  help                          Show this help

`, version)
}
