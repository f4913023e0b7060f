package engine

import (
	"context"
	"errors"
	"fmt"

	"evalgo.org/mycelium/internal/applicator"
	"evalgo.org/mycelium/internal/patch"
	"evalgo.org/mycelium/internal/storage"
	"evalgo.org/mycelium/models"
)

// CreatePatch stores a new Draft patch. An empty base version defaults to
// the target's current version.
func (e *Engine) CreatePatch(ctx context.Context, req patch.CreateRequest) (*models.Patch, error) {
	if req.BaseVersion == "" && req.Target != "" {
		version, err := e.GraphVersion(ctx, req.Target)
		if err != nil {
			return nil, err
		}
		req.BaseVersion = version
	}
	return e.patches.Create(ctx, req)
}

// SubmitPatch moves a Draft patch to Pending.
func (e *Engine) SubmitPatch(ctx context.Context, id string) (*models.Patch, error) {
	return e.patches.Submit(ctx, id)
}

// GetPatch returns the stored patch with id.
func (e *Engine) GetPatch(ctx context.Context, id string) (*models.Patch, error) {
	return e.patches.Get(ctx, id)
}

// ListPatches returns the stored patches matching filter.
func (e *Engine) ListPatches(ctx context.Context, filter storage.PatchFilter) ([]*models.Patch, error) {
	return e.patches.List(ctx, filter)
}

// RebasePatch re-points a patch at newBase, or at the target's current
// version when newBase is empty. Failed and Reverted patches return to
// Pending.
func (e *Engine) RebasePatch(ctx context.Context, id, newBase string) (*models.Patch, error) {
	if newBase == "" {
		p, err := e.patches.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		newBase, err = e.GraphVersion(ctx, p.Target)
		if err != nil {
			return nil, err
		}
	}
	return e.patches.Rebase(ctx, id, newBase)
}

// ApplyPatch applies one Pending patch to its target under the target lock
// and returns the new version token.
func (e *Engine) ApplyPatch(ctx context.Context, id string) (string, error) {
	return e.single(ctx, id, false)
}

// RollbackPatch reverts one Applied patch under the target lock and returns
// the restored version token.
func (e *Engine) RollbackPatch(ctx context.Context, id string) (string, error) {
	return e.single(ctx, id, true)
}

func (e *Engine) single(ctx context.Context, id string, rollback bool) (string, error) {
	p, err := e.patches.Get(ctx, id)
	if err != nil {
		return "", err
	}
	release, err := e.coordinator.Acquire(ctx, p.Target)
	if err != nil {
		return "", fmt.Errorf("acquire lock on %s: %w", p.Target, err)
	}
	defer release()

	target, err := e.graphs.Get(ctx, p.Target)
	if err != nil {
		return "", err
	}

	var version string
	if rollback {
		version, err = e.applicator.Rollback(ctx, id, target)
	} else {
		version, err = e.applicator.Apply(ctx, id, target)
	}
	if err != nil {
		var applyErr *applicator.ApplyError
		if errors.As(err, &applyErr) && applyErr.Changed() {
			e.persist(ctx, p.Target)
		}
		return "", err
	}
	e.persist(ctx, p.Target)
	return version, nil
}
