// Package engine implements the agent/work-item coordination core: scoring,
// capacity-constrained allocation, progress tracking, reconciliation against
// the external tracker, and utilization reporting.
//
// The engine is a single-writer state machine. Every mutation of the
// agent/item graph is serialized behind one mutex and committed atomically:
// an item pointing at an agent always appears in that agent's assignment
// list and vice versa. Tracker calls never run while the mutex is held;
// their failures degrade the affected step to local-only operation and are
// surfaced as warnings on the result.
package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/devswarm/coordd/internal/events"
	"github.com/devswarm/coordd/internal/infer"
	"github.com/devswarm/coordd/internal/model"
	"github.com/devswarm/coordd/internal/tracker"
)

// Clock supplies the current time; injected so staleness policy is testable.
type Clock func() time.Time

// LogLevel gates engine log output.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ParseLogLevel maps a config string to a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Notifier posts best-effort coordination comments to the tracker. A nil
// Notifier means local-only operation (no comments posted).
type Notifier interface {
	AssignmentCreated(ctx context.Context, item *model.WorkItem, agent *model.Agent) error
	ProgressRecorded(ctx context.Context, item *model.WorkItem, ev model.ProgressEvent) error
	StaleReminder(ctx context.Context, item *model.WorkItem) error
	Reassigned(ctx context.Context, item *model.WorkItem, fromAgent, toAgent string) error
}

// Options carries the engine's injected collaborators.
type Options struct {
	Config     model.Config
	Tracker    tracker.Client
	Notifier   Notifier
	Classifier infer.Classifier
	Store      *Store
	Bus        *events.Bus
	Clock      Clock
	Logger     *log.Logger
}

// Engine owns the agent/work-item graph and all assignment state
// transitions.
type Engine struct {
	mu sync.Mutex

	cfg        model.Config
	agents     map[string]*model.Agent
	agentOrder []string
	items      map[int]*model.WorkItem
	progress   []model.ProgressEvent

	tracker    tracker.Client
	notifier   Notifier
	classifier infer.Classifier
	store      *Store
	bus        *events.Bus
	clock      Clock

	logger   *log.Logger
	logLevel LogLevel
}

// New builds an engine from options. If a store is configured and a snapshot
// exists it is loaded and validated; agents declared in config but absent
// from the snapshot join the pool with no assignments (the pool may be
// extended without migration).
func New(opts Options) (*Engine, error) {
	if opts.Classifier == nil {
		opts.Classifier = infer.NewKeywordClassifier()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	e := &Engine{
		cfg:        opts.Config,
		agents:     make(map[string]*model.Agent),
		items:      make(map[int]*model.WorkItem),
		tracker:    opts.Tracker,
		notifier:   opts.Notifier,
		classifier: opts.Classifier,
		store:      opts.Store,
		bus:        opts.Bus,
		clock:      opts.Clock,
		logger:     opts.Logger,
		logLevel:   ParseLogLevel(opts.Config.Logging.Level),
	}

	if e.store != nil {
		snap, err := e.store.Load()
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		if snap != nil {
			e.restore(snap)
		}
	}

	for i := range opts.Config.Agents {
		a := opts.Config.Agents[i]
		if _, ok := e.agents[a.Name]; ok {
			continue // snapshot state wins for known agents
		}
		cp := a
		cp.CurrentAssignments = nil
		e.agents[cp.Name] = &cp
		e.agentOrder = append(e.agentOrder, cp.Name)
	}

	return e, nil
}

// restore replaces in-memory state with the snapshot's.
func (e *Engine) restore(snap *model.Snapshot) {
	e.agents = make(map[string]*model.Agent, len(snap.Agents))
	e.agentOrder = e.agentOrder[:0]
	for i := range snap.Agents {
		a := snap.Agents[i]
		e.agents[a.Name] = &a
		e.agentOrder = append(e.agentOrder, a.Name)
	}
	e.items = make(map[int]*model.WorkItem, len(snap.Items))
	for i := range snap.Items {
		it := snap.Items[i]
		e.items[it.ID] = &it
	}
	e.progress = append([]model.ProgressEvent(nil), snap.Progress...)
}

// UpdateConfig swaps the tuning knobs; used by the daemon when the config
// file changes on disk. The agent pool is only extended, never shrunk, so
// existing assignments stay valid.
func (e *Engine) UpdateConfig(cfg model.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg = cfg
	e.logLevel = ParseLogLevel(cfg.Logging.Level)
	for i := range cfg.Agents {
		a := cfg.Agents[i]
		if _, ok := e.agents[a.Name]; ok {
			continue
		}
		cp := a
		cp.CurrentAssignments = nil
		e.agents[cp.Name] = &cp
		e.agentOrder = append(e.agentOrder, cp.Name)
	}
	e.log(LogLevelInfo, "config_updated agents=%d", len(e.agentOrder))
}

// snapshotLocked assembles the current graph in deterministic order.
// Callers must hold e.mu.
func (e *Engine) snapshotLocked() *model.Snapshot {
	snap := &model.Snapshot{
		SchemaVersion: model.SnapshotSchemaVersion,
		UpdatedAt:     e.clock().UTC().Format(time.RFC3339),
	}
	for _, name := range e.agentOrder {
		snap.Agents = append(snap.Agents, *e.agents[name])
	}
	for _, id := range e.sortedItemIDsLocked() {
		snap.Items = append(snap.Items, *e.items[id])
	}
	snap.Progress = append([]model.ProgressEvent(nil), e.progress...)
	return snap
}

// saveLocked persists the snapshot after a committed mutation. Persistence
// failures do not roll the mutation back; the warning is surfaced to the
// caller. Callers must hold e.mu.
func (e *Engine) saveLocked(warnings *[]string) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(e.snapshotLocked()); err != nil {
		e.log(LogLevelError, "snapshot_save error=%v", err)
		if warnings != nil {
			*warnings = append(*warnings, fmt.Sprintf("snapshot save failed: %v", err))
		}
	}
}

// Snapshot returns a consistent copy of the current graph.
func (e *Engine) Snapshot() *model.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) sortedItemIDsLocked() []int {
	ids := make([]int, 0, len(e.items))
	for id := range e.items {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (e *Engine) publish(t events.EventType, data map[string]any) {
	if e.bus != nil {
		e.bus.Publish(t, data)
	}
}

func (e *Engine) log(level LogLevel, format string, args ...any) {
	if level < e.logLevel {
		return
	}
	levelStr := "INFO"
	switch level {
	case LogLevelDebug:
		levelStr = "DEBUG"
	case LogLevelWarn:
		levelStr = "WARN"
	case LogLevelError:
		levelStr = "ERROR"
	}
	msg := fmt.Sprintf(format, args...)
	e.logger.Printf("%s %s engine: %s", time.Now().Format(time.RFC3339), levelStr, msg)
}
