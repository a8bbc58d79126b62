// Package daemon runs the coordination loop: periodic reconciliation and
// auto-assignment passes, config hot-reload, and graceful shutdown. A file
// lock guarantees a single daemon per coordination directory.
package daemon

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/devswarm/coordd/internal/engine"
	"github.com/devswarm/coordd/internal/events"
	"github.com/devswarm/coordd/internal/lock"
	"github.com/devswarm/coordd/internal/model"
	yamlutil "github.com/devswarm/coordd/internal/yaml"
)

// Daemon is the long-running coordd process.
type Daemon struct {
	coordDir string

	// mu guards config and logLevel, which the fsnotify goroutine rewrites
	// on hot reload while the ticker loop and loggers read them.
	mu       sync.RWMutex
	config   model.Config
	logLevel engine.LogLevel

	logger  *log.Logger
	logFile io.Closer

	eng      *engine.Engine
	bus      *events.Bus
	audit    *events.AuditLogger
	fileLock *lock.FileLock
	watcher  *fsnotify.Watcher
	ticker   *time.Ticker

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown sync.Once

	forceExit atomic.Bool
}

// New creates a daemon logging to logs/daemon.log under the coordination
// directory.
func New(coordDir string, cfg model.Config, eng *engine.Engine, bus *events.Bus) (*Daemon, error) {
	logPath := filepath.Join(coordDir, "logs", "daemon.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open daemon log: %w", err)
	}

	return newDaemon(coordDir, cfg, eng, bus, logFile, logFile)
}

// newDaemon is the internal constructor for testing.
func newDaemon(coordDir string, cfg model.Config, eng *engine.Engine, bus *events.Bus, w io.Writer, closer io.Closer) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	passInterval := cfg.Daemon.PassIntervalSec
	if passInterval <= 0 {
		passInterval = 300
	}

	d := &Daemon{
		coordDir: coordDir,
		config:   cfg,
		logLevel: engine.ParseLogLevel(cfg.Logging.Level),
		logger:   log.New(w, "", 0),
		logFile:  closer,
		eng:      eng,
		bus:      bus,
		fileLock: lock.NewFileLock(filepath.Join(coordDir, "locks", "daemon.lock")),
		ticker:   time.NewTicker(time.Duration(passInterval) * time.Second),
		ctx:      ctx,
		cancel:   cancel,
	}

	return d, nil
}

// Run starts the daemon and blocks until shutdown completes.
func (d *Daemon) Run() error {
	if err := d.fileLock.TryLock(); err != nil {
		return fmt.Errorf("daemon lock: %w", err)
	}
	d.log(engine.LogLevelInfo, "daemon starting pid=%d", os.Getpid())

	// Audit trail: every coordination event lands in logs/audit.jsonl.
	if d.bus != nil {
		audit, err := events.NewAuditLogger(filepath.Join(d.coordDir, "logs", "audit.jsonl"), 0)
		if err != nil {
			d.cleanup()
			return fmt.Errorf("open audit log: %w", err)
		}
		d.audit = audit
		for _, et := range []events.EventType{
			events.EventAssignmentCreated,
			events.EventAssignmentCleared,
			events.EventProgressRecorded,
			events.EventStaleReminder,
			events.EventItemReassigned,
			events.EventSyncCompleted,
		} {
			d.bus.Subscribe(et, d.audit.RecordEvent)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.cleanup()
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	d.watcher = watcher

	// Watch the directory rather than the file: editors replace config.yaml
	// by rename, which drops a file-level watch.
	if err := watcher.Add(d.coordDir); err != nil {
		d.cleanup()
		return fmt.Errorf("watch %s: %w", d.coordDir, err)
	}

	d.wg.Add(2)
	go d.fsnotifyLoop()
	go d.tickerLoop()

	d.runPass()
	d.log(engine.LogLevelInfo, "daemon ready interval=%ds", d.currentConfig().Daemon.PassIntervalSec)

	d.waitSignals()

	return nil
}

// runPass executes one coordination pass: reconcile against the tracker,
// assign whatever became assignable, refresh the utilization report.
func (d *Daemon) runPass() {
	ctx, cancel := context.WithTimeout(d.ctx, time.Duration(d.currentConfig().Daemon.PassIntervalSec)*time.Second)
	defer cancel()

	report, err := d.eng.Reconcile(ctx)
	if err != nil {
		d.log(engine.LogLevelError, "reconcile error=%v", err)
		return
	}
	for _, w := range report.Warnings {
		d.log(engine.LogLevelWarn, "reconcile warning=%q", w)
	}

	assigned, err := d.eng.AutoAssign(ctx)
	if err != nil {
		d.log(engine.LogLevelError, "auto_assign error=%v", err)
		return
	}
	for _, w := range assigned.Warnings {
		d.log(engine.LogLevelWarn, "auto_assign warning=%q", w)
	}

	util := d.eng.Report()
	reportPath := filepath.Join(d.coordDir, "state", "report.yaml")
	if err := yamlutil.AtomicWrite(reportPath, util); err != nil {
		d.log(engine.LogLevelError, "report_write error=%v", err)
	}

	d.log(engine.LogLevelInfo, "pass synced=%d assigned=%d stale=%d utilization=%.2f",
		report.Synced, len(assigned.Assigned), len(report.StaleItems), util.ResourceUtilization)
}

// fsnotifyLoop reloads configuration when config.yaml changes on disk.
func (d *Daemon) fsnotifyLoop() {
	defer d.wg.Done()

	configPath := filepath.Join(d.coordDir, "config.yaml")
	for {
		select {
		case <-d.ctx.Done():
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Name != configPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				d.log(engine.LogLevelDebug, "fsnotify event=%s file=%s", event.Op, event.Name)
				d.reloadConfig(configPath)
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.log(engine.LogLevelError, "fsnotify error=%v", err)
		}
	}
}

// reloadConfig applies a changed config file, keeping the old configuration
// when the new one fails to parse or validate.
func (d *Daemon) reloadConfig(path string) {
	var cfg model.Config
	if err := yamlutil.ReadInto(path, &cfg); err != nil {
		d.log(engine.LogLevelError, "config_reload parse error=%v", err)
		return
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		d.log(engine.LogLevelError, "config_reload rejected error=%v", err)
		return
	}

	d.mu.Lock()
	d.config = cfg
	d.logLevel = engine.ParseLogLevel(cfg.Logging.Level)
	d.mu.Unlock()
	if cfg.Daemon.PassIntervalSec > 0 {
		d.ticker.Reset(time.Duration(cfg.Daemon.PassIntervalSec) * time.Second)
	}
	d.eng.UpdateConfig(cfg)
	d.log(engine.LogLevelInfo, "config_reloaded level=%s interval=%ds", cfg.Logging.Level, cfg.Daemon.PassIntervalSec)
}

// tickerLoop triggers coordination passes at the configured interval.
func (d *Daemon) tickerLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-d.ticker.C:
			d.log(engine.LogLevelDebug, "periodic pass triggered")
			d.runPass()
		}
	}
}

// waitSignals blocks until a shutdown signal is received.
func (d *Daemon) waitSignals() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	d.log(engine.LogLevelInfo, "received signal=%s, initiating graceful shutdown", sig)

	// Second signal → force exit
	go func() {
		<-sigCh
		d.log(engine.LogLevelWarn, "received second signal, forcing exit")
		d.forceExit.Store(true)
		os.Exit(1)
	}()

	d.Shutdown()
}

// Shutdown performs graceful shutdown (idempotent via sync.Once).
func (d *Daemon) Shutdown() {
	d.shutdown.Do(func() {
		d.log(engine.LogLevelInfo, "shutdown started")

		d.cancel()

		d.ticker.Stop()
		if d.watcher != nil {
			d.watcher.Close()
		}

		timeout := d.currentConfig().Daemon.ShutdownTimeoutSec
		if timeout <= 0 {
			timeout = 30
		}

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			d.log(engine.LogLevelInfo, "all goroutines drained")
		case <-time.After(time.Duration(timeout) * time.Second):
			d.log(engine.LogLevelWarn, "shutdown timeout after %ds, some operations may be incomplete", timeout)
		}

		d.cleanup()
		d.log(engine.LogLevelInfo, "daemon stopped")
	})
}

// cleanup releases resources.
func (d *Daemon) cleanup() {
	if d.bus != nil {
		d.bus.Close()
	}
	if d.audit != nil {
		d.audit.Close()
	}
	d.fileLock.Unlock()
	if d.logFile != nil {
		d.logFile.Close()
	}
}

// currentConfig returns a point-in-time copy of the active configuration.
func (d *Daemon) currentConfig() model.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

func (d *Daemon) log(level engine.LogLevel, format string, args ...any) {
	d.mu.RLock()
	minLevel := d.logLevel
	d.mu.RUnlock()
	if level < minLevel {
		return
	}
	levelStr := "INFO"
	switch level {
	case engine.LogLevelDebug:
		levelStr = "DEBUG"
	case engine.LogLevelWarn:
		levelStr = "WARN"
	case engine.LogLevelError:
		levelStr = "ERROR"
	}
	msg := fmt.Sprintf(format, args...)
	d.logger.Printf("%s %s daemon: %s", time.Now().Format(time.RFC3339), levelStr, msg)
}
