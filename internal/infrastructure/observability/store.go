// Package observability keeps a bounded, debounced on-disk record of recent
// runs and audit events for the operator UI. It is deliberately lossy: ring
// buffers rotate old entries out, and persistence is best-effort.
package observability

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

const (
	DefaultMaxRuns   = 100
	DefaultMaxEvents = 500

	runsFile   = "runs.json"
	eventsFile = "events.json"

	debounceInterval = 500 * time.Millisecond
)

// RunRecord is the persisted summary of one run.
type RunRecord struct {
	RequestID  string                  `json:"requestId"`
	TenantID   string                  `json:"tenantId,omitempty"`
	Status     valueobject.RunStatus   `json:"status"`
	Error      string                  `json:"error,omitempty"`
	StateTrace []valueobject.StateLabel `json:"stateTrace"`
	DurationMS int64                   `json:"durationMs"`
	Timestamp  time.Time               `json:"timestamp"`
}

// EventRecord is the persisted form of one audit event.
type EventRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	TenantID  string         `json:"tenantId,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
	EventType string         `json:"eventType"`
	Data      map[string]any `json:"data"`
}

// Config bounds the store.
type Config struct {
	DataDir   string
	MaxRuns   int
	MaxEvents int
}

// Store is the process-wide observability buffer. It implements audit.Sink
// for events and records run results separately. Writes are debounced to
// disk; the newest entries win when the buffers rotate.
type Store struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	runs   []RunRecord
	events []EventRecord
	dirty  bool
	timer  *time.Timer
	closed bool
}

// NewStore creates the store and its data directory.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.MaxRuns <= 0 {
		cfg.MaxRuns = DefaultMaxRuns
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, err
	}
	return &Store{cfg: cfg, logger: logger}, nil
}

// Write implements audit.Sink.
func (s *Store) Write(_ context.Context, event valueobject.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, EventRecord{
		Timestamp: event.Timestamp,
		TenantID:  event.TenantID,
		RequestID: event.RequestID,
		EventType: string(event.EventType),
		Data:      event.Data,
	})
	if len(s.events) > s.cfg.MaxEvents {
		s.events = s.events[len(s.events)-s.cfg.MaxEvents:]
	}
	s.markDirtyLocked()
	return nil
}

// RecordRun appends a run summary.
func (s *Store) RecordRun(rec RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append(s.runs, rec)
	if len(s.runs) > s.cfg.MaxRuns {
		s.runs = s.runs[len(s.runs)-s.cfg.MaxRuns:]
	}
	s.markDirtyLocked()
}

// Runs returns a copy of the buffered run records.
func (s *Store) Runs() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RunRecord(nil), s.runs...)
}

// Events returns a copy of the buffered event records.
func (s *Store) Events() []EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EventRecord(nil), s.events...)
}

// markDirtyLocked arms the debounce timer; rapid bursts of writes coalesce
// into one disk flush.
func (s *Store) markDirtyLocked() {
	s.dirty = true
	if s.closed || s.timer != nil {
		return
	}
	s.timer = time.AfterFunc(debounceInterval, s.flushTimer)
}

func (s *Store) flushTimer() {
	s.mu.Lock()
	s.timer = nil
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	s.dirty = false
	runs := append([]RunRecord(nil), s.runs...)
	events := append([]EventRecord(nil), s.events...)
	s.mu.Unlock()

	s.persist(runs, events)
}

// Flush forces an immediate write, for shutdown paths and tests.
func (s *Store) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.dirty = false
	runs := append([]RunRecord(nil), s.runs...)
	events := append([]EventRecord(nil), s.events...)
	s.mu.Unlock()

	s.persist(runs, events)
}

// Close flushes and stops further timer arming.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Flush()
}

func (s *Store) persist(runs []RunRecord, events []EventRecord) {
	if err := writeJSON(filepath.Join(s.cfg.DataDir, runsFile), runs); err != nil {
		s.logger.Warn("failed to persist runs", zap.Error(err))
	}
	if err := writeJSON(filepath.Join(s.cfg.DataDir, eventsFile), events); err != nil {
		s.logger.Warn("failed to persist events", zap.Error(err))
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
