package engine

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/devswarm/coordd/internal/model"
	"github.com/devswarm/coordd/internal/tracker"
)

// fakeTracker is a scriptable in-memory tracker.Client.
type fakeTracker struct {
	mu       sync.Mutex
	items    map[int]tracker.Item
	listErr  error
	getErr   map[int]error
	postErr  error
	comments map[int][]string
}

func newFakeTracker(items ...tracker.Item) *fakeTracker {
	ft := &fakeTracker{
		items:    make(map[int]tracker.Item),
		getErr:   make(map[int]error),
		comments: make(map[int][]string),
	}
	for _, it := range items {
		ft.items[it.ID] = it
	}
	return ft
}

func (f *fakeTracker) ListItems(ctx context.Context, state string) ([]tracker.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []tracker.Item
	for _, it := range f.items {
		if state == "all" || it.State == state {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeTracker) GetItem(ctx context.Context, id int) (tracker.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErr[id]; err != nil {
		return tracker.Item{}, err
	}
	it, ok := f.items[id]
	if !ok {
		return tracker.Item{}, tracker.ErrNotFound
	}
	return it, nil
}

func (f *fakeTracker) PostComment(ctx context.Context, id int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.comments[id] = append(f.comments[id], body)
	return nil
}

// fakeNotifier counts notifications and can be told to fail.
type fakeNotifier struct {
	mu          sync.Mutex
	failWith    error
	assignments []int
	progress    []int
	reminders   []int
	reassigns   []int
}

func (f *fakeNotifier) AssignmentCreated(ctx context.Context, item *model.WorkItem, agent *model.Agent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.assignments = append(f.assignments, item.ID)
	return nil
}

func (f *fakeNotifier) ProgressRecorded(ctx context.Context, item *model.WorkItem, ev model.ProgressEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.progress = append(f.progress, item.ID)
	return nil
}

func (f *fakeNotifier) StaleReminder(ctx context.Context, item *model.WorkItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.reminders = append(f.reminders, item.ID)
	return nil
}

func (f *fakeNotifier) Reassigned(ctx context.Context, item *model.WorkItem, fromAgent, toAgent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.reassigns = append(f.reassigns, item.ID)
	return nil
}

// testClock returns a Clock frozen at a fixed instant.
func testClock(at time.Time) Clock {
	return func() time.Time { return at }
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testConfig(agents ...model.Agent) model.Config {
	cfg := model.Config{
		Tracker: model.TrackerConfig{Owner: "devswarm", Repo: "calclib"},
		Agents:  agents,
	}
	cfg.ApplyDefaults()
	return cfg
}

func testAgent(name string, capacity int, skills ...string) model.Agent {
	return model.Agent{
		Name:             name,
		Skills:           skills,
		MaxConcurrent:    capacity,
		PerformanceScore: 1.0,
	}
}

// newTestEngine builds an engine with a silenced logger and frozen clock.
func newTestEngine(cfg model.Config, tr tracker.Client, nt Notifier) *Engine {
	e, err := New(Options{
		Config:   cfg,
		Tracker:  tr,
		Notifier: nt,
		Clock:    testClock(testNow),
		Logger:   log.New(io.Discard, "", 0),
	})
	if err != nil {
		panic(err)
	}
	return e
}

// addItem installs a work item directly into engine state for tests,
// linking it to its agent when pre-assigned.
func (e *Engine) addItem(it model.WorkItem) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if it.UpdatedAt == "" {
		it.UpdatedAt = testNow.Format(time.RFC3339)
	}
	cp := it
	e.items[it.ID] = &cp
	if cp.AssignedAgent != "" {
		if a, ok := e.agents[cp.AssignedAgent]; ok && !a.Holds(cp.ID) {
			a.CurrentAssignments = append(a.CurrentAssignments, cp.ID)
		}
	}
}
