// Package applicator applies and rolls back single patches against a graph.
//
// Apply checks the patch's base version against the target's current version
// before touching anything. Operations then run in order and in place; a
// failure part-way leaves the earlier operations applied and marks the patch
// Failed. Cancellation is not honored once the first operation has started.
package applicator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"evalgo.org/mycelium/internal/graph"
	"evalgo.org/mycelium/internal/metrics"
	"evalgo.org/mycelium/internal/patch"
	"evalgo.org/mycelium/models"
)

var (
	// ErrNotPending is returned when apply is called on a patch that is not Pending.
	ErrNotPending = errors.New("patch is not pending")
	// ErrNotApplied is returned when rollback is called on a patch that is not Applied.
	ErrNotApplied = errors.New("patch is not applied")
	// ErrTargetMismatch is returned when the handle is not the patch's target.
	ErrTargetMismatch = errors.New("patch target does not match graph")
)

// ConcurrentModificationError reports a stale base version. The target is untouched.
type ConcurrentModificationError struct {
	Patch    string
	Target   string
	Expected string
	Actual   string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("patch %s expects %s at version %s but it is at %s", e.Patch, e.Target, e.Expected, e.Actual)
}

// ApplyError reports a failure part-way through a patch. Operations before
// Index stay applied. Version is the target's version after the partial
// effect, empty when the target ended where it started.
type ApplyError struct {
	Patch     string
	Index     int
	Operation models.Operation
	Rollback  bool
	Version   string
	Err       error
}

func (e *ApplyError) Error() string {
	verb := "apply"
	if e.Rollback {
		verb = "rollback"
	}
	return fmt.Sprintf("%s of patch %s failed at operation %d (%s %s): %v", verb, e.Patch, e.Index, e.Operation.Kind, e.Operation.Triple, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Changed reports whether the failed call left the target at a new version.
func (e *ApplyError) Changed() bool { return e.Version != "" }

// History records version chain links.
type History interface {
	AppendVersionRecord(ctx context.Context, rec *models.VersionRecord) error
}

// Applicator mutates graphs on behalf of patches. It does not lock; callers
// hold the per-target lock.
type Applicator struct {
	patches *patch.Store
	history History
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an applicator that records version links in history.
func New(patches *patch.Store, history History, logger *slog.Logger) *Applicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applicator{
		patches: patches,
		history: history,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Apply applies the patch and returns the target's new version token.
func (a *Applicator) Apply(ctx context.Context, patchID string, target graph.Handle) (string, error) {
	p, err := a.patches.Get(ctx, patchID)
	if err != nil {
		return "", err
	}
	if p.Status != models.StatusPending {
		return "", fmt.Errorf("%w: %s is %s", ErrNotPending, p.ID, p.Status)
	}
	if p.Target != target.ID() {
		return "", fmt.Errorf("%w: %s targets %s, got %s", ErrTargetMismatch, p.ID, p.Target, target.ID())
	}

	before, err := target.CurrentVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("read version of %s: %w", target.ID(), err)
	}
	if p.BaseVersion != before {
		cme := &ConcurrentModificationError{Patch: p.ID, Target: p.Target, Expected: p.BaseVersion, Actual: before}
		metrics.PatchFailed("concurrent_modification")
		if _, terr := a.patches.Transition(ctx, p.ID, models.StatusFailed); terr != nil {
			return "", errors.Join(cme, terr)
		}
		a.logger.Warn("stale base version", "patch", p.ID, "target", p.Target, "expected", p.BaseVersion, "actual", before)
		return "", cme
	}

	steps := make([]step, len(p.Operations))
	for i, op := range p.Operations {
		steps[i] = step{index: i, op: op}
	}
	effective, err := a.run(ctx, p, target, steps, false)
	if err != nil {
		return "", a.partial(ctx, p, target, before, effective, err)
	}

	after, err := target.CurrentVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("read version of %s: %w", target.ID(), err)
	}
	if err := a.record(ctx, p, before, after, models.VersionApply); err != nil {
		return "", err
	}
	if _, err := a.patches.MarkApplied(ctx, p.ID, effective); err != nil {
		return "", err
	}

	metrics.PatchApplied(p.Target)
	a.logger.Info("patch applied", "patch", p.ID, "target", p.Target, "previous", before, "version", after, "changed", len(effective))
	return after, nil
}

// Rollback undoes an applied patch and returns the target's new version token.
// Only the operations that changed the graph on apply are inverted, newest first.
func (a *Applicator) Rollback(ctx context.Context, patchID string, target graph.Handle) (string, error) {
	p, err := a.patches.Get(ctx, patchID)
	if err != nil {
		return "", err
	}
	if p.Status != models.StatusApplied {
		return "", fmt.Errorf("%w: %s is %s", ErrNotApplied, p.ID, p.Status)
	}
	if p.Target != target.ID() {
		return "", fmt.Errorf("%w: %s targets %s, got %s", ErrTargetMismatch, p.ID, p.Target, target.ID())
	}

	before, err := target.CurrentVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("read version of %s: %w", target.ID(), err)
	}

	// MarkApplied always records the indices, so none means nothing to undo.
	indices := p.Effective
	steps := make([]step, 0, len(indices))
	for i := len(indices) - 1; i >= 0; i-- {
		idx := indices[i]
		if idx < 0 || idx >= len(p.Operations) {
			return "", fmt.Errorf("patch %s records unknown operation index %d", p.ID, idx)
		}
		steps = append(steps, step{index: idx, op: p.Operations[idx].Inverse()})
	}
	if effective, err := a.run(ctx, p, target, steps, true); err != nil {
		return "", a.partial(ctx, p, target, before, effective, err)
	}

	after, err := target.CurrentVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("read version of %s: %w", target.ID(), err)
	}
	if err := a.record(ctx, p, before, after, models.VersionRollback); err != nil {
		return "", err
	}
	if _, err := a.patches.Transition(ctx, p.ID, models.StatusReverted); err != nil {
		return "", err
	}

	metrics.PatchRolledBack(p.Target)
	a.logger.Info("patch rolled back", "patch", p.ID, "target", p.Target, "previous", before, "version", after)
	return after, nil
}

type step struct {
	index int
	op    models.Operation
}

// run executes steps in order and returns the indices that changed the graph.
// On failure the indices changed so far are still returned.
func (a *Applicator) run(ctx context.Context, p *models.Patch, target graph.Handle, steps []step, rollback bool) ([]int, error) {
	// a started patch runs to completion or failure
	opCtx := context.WithoutCancel(ctx)

	effective := make([]int, 0, len(steps))
	for _, s := range steps {
		changed, err := target.ApplyTriple(opCtx, s.op)
		if err != nil {
			applyErr := &ApplyError{Patch: p.ID, Index: s.index, Operation: s.op, Rollback: rollback, Err: err}
			metrics.PatchFailed("operation_error")
			a.logger.Error("patch operation failed", "patch", p.ID, "target", p.Target, "index", s.index, "rollback", rollback, "partial", len(effective), "error", err)
			if _, terr := a.patches.Transition(opCtx, p.ID, models.StatusFailed); terr != nil {
				return effective, errors.Join(applyErr, terr)
			}
			return effective, applyErr
		}
		if !changed {
			metrics.NoopOperation()
			a.logger.Debug("operation had no effect", "patch", p.ID, "index", s.index, "op", s.op.Kind, "triple", s.op.Triple.String())
			continue
		}
		effective = append(effective, s.index)
	}
	return effective, nil
}

// partial closes the version chain after a failed call that changed the
// target, so the next link starts from the graph's real version.
func (a *Applicator) partial(ctx context.Context, p *models.Patch, target graph.Handle, before string, effective []int, err error) error {
	if len(effective) == 0 {
		return err
	}
	ctx = context.WithoutCancel(ctx)
	after, verr := target.CurrentVersion(ctx)
	if verr != nil {
		return errors.Join(err, fmt.Errorf("read version of %s: %w", target.ID(), verr))
	}
	if after == before {
		return err
	}
	var applyErr *ApplyError
	if errors.As(err, &applyErr) {
		applyErr.Version = after
	}
	if rerr := a.record(ctx, p, before, after, models.VersionFailedPartial); rerr != nil {
		return errors.Join(err, rerr)
	}
	a.logger.Warn("partial patch effect recorded", "patch", p.ID, "target", p.Target, "previous", before, "version", after, "changed", len(effective))
	return err
}

func (a *Applicator) record(ctx context.Context, p *models.Patch, before, after string, op models.VersionOp) error {
	if a.history == nil {
		return nil
	}
	rec := &models.VersionRecord{
		Target:    p.Target,
		Previous:  before,
		Next:      after,
		PatchID:   p.ID,
		Operation: op,
		Timestamp: a.now(),
	}
	if err := a.history.AppendVersionRecord(ctx, rec); err != nil {
		return fmt.Errorf("append version record for %s: %w", p.ID, err)
	}
	return nil
}
