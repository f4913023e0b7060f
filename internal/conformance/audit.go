package conformance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"evalgo.org/mycelium/internal/config"
	"evalgo.org/mycelium/models"
)

// AuditEntry is one line of the conformance audit trail.
type AuditEntry struct {
	ID            string                 `json:"id"`
	Timestamp     time.Time              `json:"timestamp"`
	OperationType string                 `json:"operation_type"`
	Target        string                 `json:"target,omitempty"`
	ViolationID   string                 `json:"violation_id,omitempty"`
	Ref           string                 `json:"ref,omitempty"`
	Success       bool                   `json:"success"`
	Error         string                 `json:"error,omitempty"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// AuditLogger appends conformance events to a JSONL file. Entries are
// buffered and written when the buffer fills, on the flush interval, or on Close.
type AuditLogger struct {
	config    config.AuditConfig
	file      *os.File
	mu        sync.Mutex
	buffer    []AuditEntry
	flushSize int
	stop      chan struct{}
	done      chan struct{}
}

// NewAuditLogger opens the audit file. A disabled config returns a logger
// whose methods do nothing.
func NewAuditLogger(cfg config.AuditConfig) (*AuditLogger, error) {
	flushSize := cfg.BufferSize
	if flushSize <= 0 {
		flushSize = 100
	}
	if !cfg.Enabled {
		return &AuditLogger{config: cfg, flushSize: flushSize}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	file, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	a := &AuditLogger{
		config:    cfg,
		file:      file,
		buffer:    make([]AuditEntry, 0, flushSize),
		flushSize: flushSize,
	}
	if cfg.FlushInterval > 0 {
		a.stop = make(chan struct{})
		a.done = make(chan struct{})
		go a.flushLoop(cfg.FlushInterval)
	}
	return a, nil
}

func (a *AuditLogger) flushLoop(interval time.Duration) {
	defer close(a.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = a.Flush()
		case <-a.stop:
			return
		}
	}
}

// LogRecord records a new violation.
func (a *AuditLogger) LogRecord(v *models.Violation) error {
	return a.writeEntry(AuditEntry{
		OperationType: "record",
		Target:        v.Target,
		ViolationID:   v.ID,
		Ref:           v.Ref.String(),
		Success:       true,
		Details: map[string]interface{}{
			"label":          v.Label,
			"violation_type": v.Type,
			"severity":       v.Severity,
		},
	})
}

// LogResolve records a resolution attempt.
func (a *AuditLogger) LogResolve(v *models.Violation, changed bool) error {
	return a.writeEntry(AuditEntry{
		OperationType: "resolve",
		Target:        v.Target,
		ViolationID:   v.ID,
		Ref:           v.Ref.String(),
		Success:       changed,
		Details: map[string]interface{}{
			"resolution": v.Resolution,
		},
	})
}

// LogIntegration records the outcome of an integration run.
func (a *AuditLogger) LogIntegration(runID, outcome string, details map[string]interface{}, runErr error) error {
	entry := AuditEntry{
		OperationType: "integration",
		Ref:           runID,
		Success:       outcome == "applied",
		Details:       details,
	}
	if entry.Details == nil {
		entry.Details = map[string]interface{}{}
	}
	entry.Details["outcome"] = outcome
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	return a.writeEntry(entry)
}

// LogCheck records a graph conformance check.
func (a *AuditLogger) LogCheck(target string, findings, recorded int) error {
	return a.writeEntry(AuditEntry{
		OperationType: "check",
		Target:        target,
		Success:       true,
		Details: map[string]interface{}{
			"findings": findings,
			"recorded": recorded,
		},
	})
}

func (a *AuditLogger) writeEntry(entry AuditEntry) error {
	if !a.config.Enabled {
		return nil
	}
	entry.ID = uuid.New().String()
	entry.Timestamp = time.Now().UTC()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.buffer = append(a.buffer, entry)
	if len(a.buffer) >= a.flushSize {
		return a.flushLocked()
	}
	return nil
}

// Flush writes all buffered entries to disk.
func (a *AuditLogger) Flush() error {
	if !a.config.Enabled {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked()
}

// flushLocked must be called with mu held.
func (a *AuditLogger) flushLocked() error {
	if len(a.buffer) == 0 || a.file == nil {
		return nil
	}
	for _, entry := range a.buffer {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal audit entry: %w", err)
		}
		if _, err := fmt.Fprintf(a.file, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write audit entry: %w", err)
		}
	}
	if err := a.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	a.buffer = a.buffer[:0]
	return nil
}

// Close stops the flush loop, flushes remaining entries and closes the file.
func (a *AuditLogger) Close() error {
	if !a.config.Enabled || a.file == nil {
		return nil
	}
	if a.stop != nil {
		close(a.stop)
		<-a.done
		a.stop = nil
	}
	if err := a.Flush(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.file.Close()
	a.file = nil
	return err
}
