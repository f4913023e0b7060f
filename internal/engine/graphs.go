package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"evalgo.org/mycelium/internal/graph"
	"evalgo.org/mycelium/models"
)

// GraphVersion returns the current version token of target.
func (e *Engine) GraphVersion(ctx context.Context, target string) (string, error) {
	h, err := e.graphs.Get(ctx, target)
	if err != nil {
		return "", err
	}
	return h.CurrentVersion(ctx)
}

// VersionHistory returns the version chain of target, oldest first.
func (e *Engine) VersionHistory(ctx context.Context, target string) ([]models.VersionRecord, error) {
	return e.store.ListVersionRecords(ctx, target)
}

// ExportGraph serializes the current content of target.
func (e *Engine) ExportGraph(ctx context.Context, target string, format graph.Format) ([]byte, error) {
	h, err := e.graphs.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	return h.Serialize(ctx, format)
}

// ListGraphs returns the ids of every known target graph.
func (e *Engine) ListGraphs(ctx context.Context) ([]string, error) {
	return e.graphs.IDs(ctx)
}

// ErrInvalidGraphData is returned when imported graph data cannot be used.
var ErrInvalidGraphData = errors.New("invalid graph data")

type replacer interface {
	Replace(triples []models.Triple)
}

// ImportGraph replaces the content of target with data under the target
// lock and links the change into the version chain. Pending patches
// authored against the old content will fail their base version check
// until rebased.
func (e *Engine) ImportGraph(ctx context.Context, target string, format graph.Format, data []byte) (string, error) {
	triples, err := graph.Decode(format, data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidGraphData, err)
	}
	for _, t := range triples {
		if err := t.Validate(); err != nil {
			return "", fmt.Errorf("%w: triple %s: %v", ErrInvalidGraphData, t, err)
		}
	}

	release, err := e.coordinator.Acquire(ctx, target)
	if err != nil {
		return "", fmt.Errorf("acquire lock on %s: %w", target, err)
	}
	defer release()

	h, err := e.graphs.Get(ctx, target)
	if err != nil {
		return "", err
	}
	r, ok := h.(replacer)
	if !ok {
		return "", fmt.Errorf("graph %s does not support import", target)
	}
	previous, err := h.CurrentVersion(ctx)
	if err != nil {
		return "", err
	}
	r.Replace(triples)
	version, err := h.CurrentVersion(ctx)
	if err != nil {
		return "", err
	}
	if version != previous {
		rec := &models.VersionRecord{
			Target:    target,
			Previous:  previous,
			Next:      version,
			Operation: models.VersionImport,
			Timestamp: time.Now().UTC(),
		}
		if err := e.store.AppendVersionRecord(context.WithoutCancel(ctx), rec); err != nil {
			e.persist(ctx, target)
			return "", fmt.Errorf("append import record for %s: %w", target, err)
		}
	}
	e.logger.Info("graph imported", "target", target, "triples", len(triples), "version", version)
	e.persist(ctx, target)
	return version, nil
}

// ArchivedVersions lists the snapshot versions archived for target.
func (e *Engine) ArchivedVersions(ctx context.Context, target string) ([]string, error) {
	return e.archiver.Versions(ctx, target)
}
