// Package storage persists patches, spores, violations, version chains and
// graph snapshots. Backends: in-memory, SQLite (modernc.org/sqlite) and
// PostgreSQL (pgx). The SQL backends keep each record as a JSON payload row.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"evalgo.org/mycelium/internal/config"
	"evalgo.org/mycelium/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// PatchFilter narrows ListPatches. Zero values match everything.
type PatchFilter struct {
	Target string
	Status models.PatchStatus
	Spore  string
}

func (f PatchFilter) matches(p *models.Patch) bool {
	if f.Target != "" && p.Target != f.Target {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Spore != "" && p.Spore != f.Spore {
		return false
	}
	return true
}

// ViolationFilter narrows ListViolations. Zero values match everything.
type ViolationFilter struct {
	Target   string
	Status   models.ViolationStatus
	Severity models.Severity
	RefID    string
}

func (f ViolationFilter) matches(v *models.Violation) bool {
	if f.Target != "" && v.Target != f.Target {
		return false
	}
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	if f.Severity != "" && v.Severity != f.Severity {
		return false
	}
	if f.RefID != "" && v.Ref.ID != f.RefID {
		return false
	}
	return true
}

// Store is the persistence contract used by the engine components.
// Violations and version records are never deleted.
type Store interface {
	PutPatch(ctx context.Context, p *models.Patch) error
	GetPatch(ctx context.Context, id string) (*models.Patch, error)
	ListPatches(ctx context.Context, filter PatchFilter) ([]*models.Patch, error)
	PatchExists(ctx context.Context, id string) (bool, error)

	PutSpore(ctx context.Context, s *models.Spore) error
	GetSpore(ctx context.Context, id string) (*models.Spore, error)
	ListSpores(ctx context.Context) ([]*models.Spore, error)

	PutViolation(ctx context.Context, v *models.Violation) error
	GetViolation(ctx context.Context, id string) (*models.Violation, error)
	ListViolations(ctx context.Context, filter ViolationFilter) ([]*models.Violation, error)

	AppendVersionRecord(ctx context.Context, rec *models.VersionRecord) error
	ListVersionRecords(ctx context.Context, target string) ([]models.VersionRecord, error)

	PutSnapshot(ctx context.Context, target, version string, data []byte) error
	GetSnapshot(ctx context.Context, target string) (version string, data []byte, err error)
	ListSnapshotTargets(ctx context.Context) ([]string, error)

	Close() error
}

// New opens the backend selected by cfg.Storage.Driver.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Storage.Driver {
	case "", "memory":
		logger.Info("using in-memory storage")
		return NewMemory(), nil
	case "sqlite":
		logger.Info("opening sqlite storage", "path", cfg.Storage.Path)
		return OpenSQLite(ctx, cfg.Storage.Path)
	case "postgres":
		logger.Info("opening postgres storage")
		return OpenPostgres(ctx, cfg.Storage.DSN, cfg.Storage.MaxOpenConns)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
