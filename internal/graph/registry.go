package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"evalgo.org/mycelium/internal/storage"
)

// SnapshotStore is the slice of storage.Store the registry uses.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, target, version string, data []byte) error
	GetSnapshot(ctx context.Context, target string) (string, []byte, error)
	ListSnapshotTargets(ctx context.Context) ([]string, error)
}

// Registry resolves target ids to handles. Unknown targets are restored from
// their latest snapshot or created empty.
type Registry struct {
	mu        sync.Mutex
	graphs    map[string]Handle
	snapshots SnapshotStore
	logger    *slog.Logger
}

// NewRegistry creates a registry that restores and persists graphs through
// snapshots. A nil snapshot store keeps graphs in memory only.
func NewRegistry(snapshots SnapshotStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{graphs: make(map[string]Handle), snapshots: snapshots, logger: logger}
}

// Register installs an externally provided handle, replacing any existing one.
func (r *Registry) Register(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphs[h.ID()] = h
}

// Get returns the handle for target, loading or creating it as needed.
func (r *Registry) Get(ctx context.Context, target string) (Handle, error) {
	if target == "" {
		return nil, fmt.Errorf("target id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.graphs[target]; ok {
		return h, nil
	}

	m := NewMemory(target)
	if r.snapshots != nil {
		version, data, err := r.snapshots.GetSnapshot(ctx, target)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("load snapshot for %s: %w", target, err)
		default:
			triples, err := ParseNQuads(data)
			if err != nil {
				return nil, fmt.Errorf("decode snapshot for %s: %w", target, err)
			}
			m.Replace(triples)
			r.logger.Debug("restored graph snapshot", "target", target, "version", version, "triples", len(triples))
		}
	}
	r.graphs[target] = m
	return m, nil
}

// Lookup returns a registered handle without creating one.
func (r *Registry) Lookup(target string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.graphs[target]
	return h, ok
}

// Persist writes the target's current content as its latest snapshot.
func (r *Registry) Persist(ctx context.Context, target string) error {
	if r.snapshots == nil {
		return nil
	}
	h, ok := r.Lookup(target)
	if !ok {
		return fmt.Errorf("graph %s is not loaded", target)
	}
	version, err := h.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	data, err := h.Serialize(ctx, FormatNQuads)
	if err != nil {
		return err
	}
	return r.snapshots.PutSnapshot(ctx, target, version, data)
}

// IDs lists loaded and persisted targets.
func (r *Registry) IDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	r.mu.Lock()
	for id := range r.graphs {
		seen[id] = true
	}
	r.mu.Unlock()
	if r.snapshots != nil {
		persisted, err := r.snapshots.ListSnapshotTargets(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range persisted {
			seen[id] = true
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
