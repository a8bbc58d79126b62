package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMaxLogSize caps the live audit log at 50MB before rotation.
	DefaultMaxLogSize = 50 * 1024 * 1024
	logFileExtension  = ".jsonl"
	archiveDir        = "archive"
)

// AuditEntry is one line of the coordination audit log.
type AuditEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"event_type"`
	ItemID    int            `json:"item_id,omitempty"`
	Agent     string         `json:"agent,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// AuditLogger appends JSONL entries to a log file, rotating into an archive
// directory when the size cap is reached. Every write is fsynced; the log is
// the durable record of what the coordinator did and why.
type AuditLogger struct {
	mu          sync.Mutex
	file        *os.File
	currentSize int64
	maxSize     int64
	logPath     string
}

// NewAuditLogger opens (or creates) the audit log at logPath.
func NewAuditLogger(logPath string, maxSize int64) (*AuditLogger, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxLogSize
	}

	l := &AuditLogger{logPath: logPath, maxSize: maxSize}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := l.openLogFile(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *AuditLogger) openLogFile() error {
	file, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}
	l.file = file
	l.currentSize = stat.Size()
	return nil
}

// Record appends an entry for the given event type.
func (l *AuditLogger) Record(eventType string, itemID int, agent string, details map[string]any) error {
	entry := AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		ItemID:    itemID,
		Agent:     agent,
		Details:   details,
	}
	return l.write(&entry)
}

// RecordEvent appends an entry derived from a bus event. Suitable as a
// Subscriber: bus.Subscribe(t, logger.RecordEvent).
func (l *AuditLogger) RecordEvent(ev Event) {
	entry := AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: ev.Timestamp,
		EventType: string(ev.Type),
		Details:   ev.Data,
	}
	if id, ok := ev.Data["item_id"].(int); ok {
		entry.ItemID = id
	}
	if agent, ok := ev.Data["agent"].(string); ok {
		entry.Agent = agent
	}
	_ = l.write(&entry) // audit is best-effort from the bus path
}

func (l *AuditLogger) write(entry *AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	data = append(data, '\n')

	if l.currentSize+int64(len(data)) > l.maxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotate audit log: %w", err)
		}
	}

	n, err := l.file.Write(data)
	if err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync audit log: %w", err)
	}

	l.currentSize += int64(n)
	return nil
}

// rotate archives the current log and opens a fresh one. On any failure the
// live path is reopened so subsequent writes keep landing in the unrotated
// log instead of a closed handle.
func (l *AuditLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		_ = l.openLogFile()
		return err
	}

	dir := filepath.Join(filepath.Dir(l.logPath), archiveDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		_ = l.openLogFile()
		return err
	}

	base := filepath.Base(l.logPath)
	stamp := time.Now().UTC().Format("20060102_150405")
	archived := fmt.Sprintf("%s.%s%s", base[:len(base)-len(logFileExtension)], stamp, logFileExtension)

	if err := os.Rename(l.logPath, filepath.Join(dir, archived)); err != nil {
		_ = l.openLogFile()
		return err
	}
	return l.openLogFile()
}

// Close flushes and closes the log file.
func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return err
	}
	return l.file.Close()
}
