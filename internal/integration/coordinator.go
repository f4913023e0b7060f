// Package integration drives multi-spore integration: validate every spore,
// order the union of their patches once, then apply in that order under the
// target locks.
//
// Validation and ordering failures reject the whole batch before any graph
// is touched. Once application starts the batch is not atomic: the walk stops
// at the first failing patch and earlier patches stay applied.
package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"evalgo.org/mycelium/internal/applicator"
	"evalgo.org/mycelium/internal/conformance"
	"evalgo.org/mycelium/internal/graph"
	"evalgo.org/mycelium/internal/logging"
	"evalgo.org/mycelium/internal/metrics"
	"evalgo.org/mycelium/internal/patch"
	"evalgo.org/mycelium/internal/resolver"
	"evalgo.org/mycelium/internal/validation"
	"evalgo.org/mycelium/models"
)

var (
	// ErrDuplicatePatch is returned when two spores in one batch reference the same patch.
	ErrDuplicatePatch = errors.New("patch referenced by more than one spore")
	// ErrUnknownTarget is returned when a spore targets a graph that was not supplied.
	ErrUnknownTarget = errors.New("no graph supplied for target")
	// ErrEmptyBatch is returned when integrate is called without spores.
	ErrEmptyBatch = errors.New("no spores to integrate")
)

// Outcome summarizes an integration run.
type Outcome string

const (
	// OutcomeApplied means every patch in the order was applied or already applied.
	OutcomeApplied Outcome = "applied"
	// OutcomePartial means application stopped at a failing patch.
	OutcomePartial Outcome = "partial"
	// OutcomeRejected means the batch failed before any mutation.
	OutcomeRejected Outcome = "rejected"
)

// PatchState is the per-patch status within one run.
type PatchState string

const (
	StateApplied      PatchState = "applied"
	StateFailed       PatchState = "failed"
	StateNotAttempted PatchState = "not-attempted"
	StateSkipped      PatchState = "skipped"
)

// PatchResult reports what happened to one patch.
type PatchResult struct {
	ID      string     `json:"id"`
	Target  string     `json:"target"`
	State   PatchState `json:"state"`
	Version string     `json:"version,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// Result is returned by Integrate.
type Result struct {
	ID           string               `json:"id"`
	Outcome      Outcome              `json:"outcome"`
	Order        []string             `json:"order"`
	Applied      []string             `json:"applied"`
	Failed       []string             `json:"failed"`
	NotAttempted []string             `json:"notAttempted"`
	Skipped      []string             `json:"skipped,omitempty"`
	Patches      []PatchResult        `json:"patches"`
	Reports      []*validation.Report `json:"reports,omitempty"`
	Versions     map[string]string    `json:"versions,omitempty"`
	Error        string               `json:"error,omitempty"`
	StartedAt    time.Time            `json:"startedAt"`
	FinishedAt   time.Time            `json:"finishedAt"`
	failure      error
}

// Failure returns the error that stopped the run, if any.
func (r *Result) Failure() error { return r.failure }

// Targets lists the graphs the run touched or would have touched.
func (r *Result) Targets() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range r.Patches {
		if !seen[p.Target] {
			seen[p.Target] = true
			out = append(out, p.Target)
		}
	}
	sort.Strings(out)
	return out
}

// Coordinator runs integrations. It is safe for concurrent use; runs on
// overlapping targets serialize on TargetLocks.
type Coordinator struct {
	patches    *patch.Store
	validator  *validation.SporeValidator
	applicator *applicator.Applicator
	tracker    *conformance.Tracker
	audit      *conformance.AuditLogger
	locks      *TargetLocks
	timeout    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// Config wires a Coordinator. Tracker and Audit are optional.
type Config struct {
	Patches    *patch.Store
	Validator  *validation.SporeValidator
	Applicator *applicator.Applicator
	Tracker    *conformance.Tracker
	Audit      *conformance.AuditLogger
	Locks      *TargetLocks
	// LockTimeout bounds the wait for target locks; zero waits until ctx is done.
	LockTimeout time.Duration
	Logger      *slog.Logger
}

// New creates a coordinator from cfg. Missing locks and logger get defaults.
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		patches:    cfg.Patches,
		validator:  cfg.Validator,
		applicator: cfg.Applicator,
		tracker:    cfg.Tracker,
		audit:      cfg.Audit,
		locks:      cfg.Locks,
		timeout:    cfg.LockTimeout,
		logger:     cfg.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if c.locks == nil {
		c.locks = NewTargetLocks()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Locks exposes the per-target locks so single-patch operations can share them.
func (c *Coordinator) Locks() *TargetLocks { return c.locks }

// Acquire takes the target locks, giving up after the configured lock timeout.
func (c *Coordinator) Acquire(ctx context.Context, targets ...string) (func(), error) {
	if c.timeout <= 0 {
		return c.locks.Acquire(ctx, targets...)
	}
	lockCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.locks.Acquire(lockCtx, targets...)
}

// Integrate validates, orders and applies the patches of spores. A non-nil
// error means the batch was rejected and nothing was applied; the result
// still carries the validation reports. Application failures are reported
// in the result with a nil error.
func (c *Coordinator) Integrate(ctx context.Context, spores []*models.Spore, targets map[string]graph.Handle) (*Result, error) {
	res := &Result{
		ID:        models.GenerateID("integration"),
		StartedAt: c.now(),
		Versions:  map[string]string{},
	}
	logger := logging.FromContextOr(ctx, c.logger).With("integration", res.ID)

	order, pending, err := c.gate(ctx, spores, targets, res)
	if err != nil {
		return c.reject(ctx, res, logger, err)
	}
	res.Order = order

	touched := make([]string, 0, len(pending))
	for _, p := range pending {
		touched = append(touched, p.Target)
	}
	release, err := c.Acquire(ctx, touched...)
	if err != nil {
		return c.reject(ctx, res, logger, fmt.Errorf("acquire target locks: %w", err))
	}
	defer release()

	logger.Info("integration started", "spores", len(spores), "patches", len(order), "targets", uniqueSorted(touched))
	c.walk(ctx, order, pending, targets, res, logger)
	release()

	return c.finish(ctx, res, logger), nil
}

// gate runs every pre-mutation check and returns the resolved order of the
// patches still to apply.
func (c *Coordinator) gate(ctx context.Context, spores []*models.Spore, targets map[string]graph.Handle, res *Result) ([]string, map[string]*models.Patch, error) {
	if len(spores) == 0 {
		return nil, nil, ErrEmptyBatch
	}

	owner := map[string]string{}
	for _, s := range spores {
		if s == nil {
			return nil, nil, errors.New("nil spore in batch")
		}
		for _, id := range s.Patches {
			if prev, ok := owner[id]; ok && prev != s.ID {
				return nil, nil, fmt.Errorf("%w: %s is in spores %s and %s", ErrDuplicatePatch, id, prev, s.ID)
			}
			owner[id] = s.ID
		}
	}

	var invalid []*validation.Report
	for _, s := range spores {
		if len(s.Targets) == 0 {
			report, err := c.validator.Validate(ctx, s, nil)
			if err != nil {
				return nil, nil, err
			}
			res.Reports = append(res.Reports, report)
			invalid = append(invalid, report)
			continue
		}
		for _, t := range s.Targets {
			handle, ok := targets[t]
			if !ok || handle == nil {
				return nil, nil, fmt.Errorf("%w: %s (spore %s)", ErrUnknownTarget, t, s.ID)
			}
			report, err := c.validator.Validate(ctx, s, handle)
			if err != nil {
				return nil, nil, err
			}
			res.Reports = append(res.Reports, report)
			c.recordWarnings(ctx, s, report)
			if !report.Valid {
				invalid = append(invalid, report)
			}
		}
	}
	if len(invalid) > 0 {
		errs := make([]error, 0, len(invalid))
		for _, r := range invalid {
			errs = append(errs, &validation.ValidationError{Report: r})
		}
		return nil, nil, errors.Join(errs...)
	}

	ids := make([]string, 0, len(owner))
	for id := range owner {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	all, err := c.patches.GetMany(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	pending := make(map[string]*models.Patch, len(all))
	set := make([]*models.Patch, 0, len(all))
	for _, p := range all {
		if p.Status == models.StatusApplied {
			res.Skipped = append(res.Skipped, p.ID)
			res.Patches = append(res.Patches, PatchResult{ID: p.ID, Target: p.Target, State: StateSkipped})
			continue
		}
		pending[p.ID] = p
		set = append(set, p)
	}

	order, err := resolver.Resolve(set, c.external(ctx))
	if err != nil {
		return nil, nil, err
	}
	return order, pending, nil
}

// external treats any stored patch outside the batch as a satisfied prerequisite.
func (c *Coordinator) external(ctx context.Context) resolver.External {
	return existsFunc(func(id string) bool {
		ok, err := c.patches.Exists(ctx, id)
		if err != nil {
			c.logger.Warn("patch lookup failed during resolution", "patch", id, "error", err)
			return false
		}
		return ok
	})
}

type existsFunc func(id string) bool

func (f existsFunc) Has(id string) bool { return f(id) }

func (c *Coordinator) walk(ctx context.Context, order []string, pending map[string]*models.Patch, targets map[string]graph.Handle, res *Result, logger *slog.Logger) {
	for i, id := range order {
		p := pending[id]
		if err := ctx.Err(); err != nil {
			res.failure = fmt.Errorf("integration stopped before %s: %w", id, err)
			c.markNotAttempted(order[i:], pending, res)
			return
		}

		version, err := c.applicator.Apply(ctx, id, targets[p.Target])
		if err != nil {
			res.failure = err
			res.Failed = append(res.Failed, id)
			failed := PatchResult{ID: id, Target: p.Target, State: StateFailed, Error: err.Error()}
			var applyErr *applicator.ApplyError
			if errors.As(err, &applyErr) && applyErr.Changed() {
				// the target moved even though the patch failed
				failed.Version = applyErr.Version
				res.Versions[p.Target] = applyErr.Version
			}
			res.Patches = append(res.Patches, failed)
			logger.Warn("integration stopped at failing patch", "patch", id, "target", p.Target, "error", err)
			c.recordFailure(ctx, p, err)
			c.markNotAttempted(order[i+1:], pending, res)
			return
		}
		res.Applied = append(res.Applied, id)
		res.Versions[p.Target] = version
		res.Patches = append(res.Patches, PatchResult{ID: id, Target: p.Target, State: StateApplied, Version: version})
	}
}

func (c *Coordinator) markNotAttempted(ids []string, pending map[string]*models.Patch, res *Result) {
	for _, id := range ids {
		res.NotAttempted = append(res.NotAttempted, id)
		res.Patches = append(res.Patches, PatchResult{ID: id, Target: pending[id].Target, State: StateNotAttempted})
	}
}

func (c *Coordinator) reject(ctx context.Context, res *Result, logger *slog.Logger, err error) (*Result, error) {
	res.Outcome = OutcomeRejected
	res.failure = err
	res.Error = err.Error()
	res.FinishedAt = c.now()
	metrics.IntegrationFinished(string(res.Outcome), res.FinishedAt.Sub(res.StartedAt))
	c.recordRejection(ctx, res)
	c.auditRun(res)
	logger.Warn("integration rejected", "error", err)
	return res, err
}

func (c *Coordinator) finish(ctx context.Context, res *Result, logger *slog.Logger) *Result {
	res.Outcome = OutcomeApplied
	if res.failure != nil {
		res.Outcome = OutcomePartial
		res.Error = res.failure.Error()
	}
	res.FinishedAt = c.now()
	elapsed := res.FinishedAt.Sub(res.StartedAt)
	metrics.IntegrationFinished(string(res.Outcome), elapsed)
	c.auditRun(res)
	logger.Info("integration finished",
		"outcome", res.Outcome,
		"applied", len(res.Applied),
		"failed", len(res.Failed),
		"not_attempted", len(res.NotAttempted),
		"skipped", len(res.Skipped),
		"elapsed", elapsed)
	return res
}

func (c *Coordinator) auditRun(res *Result) {
	if c.audit == nil {
		return
	}
	details := map[string]interface{}{
		"applied":       res.Applied,
		"failed":        res.Failed,
		"not_attempted": res.NotAttempted,
		"skipped":       res.Skipped,
		"duration_ms":   res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
	}
	if err := c.audit.LogIntegration(res.ID, string(res.Outcome), details, res.failure); err != nil {
		c.logger.Warn("audit write failed", "integration", res.ID, "error", err)
	}
}

// recordWarnings keeps non-blocking validation findings as low severity violations.
func (c *Coordinator) recordWarnings(ctx context.Context, s *models.Spore, report *validation.Report) {
	if c.tracker == nil {
		return
	}
	for _, m := range report.Warnings() {
		c.record(ctx, conformance.RecordRequest{
			Target:   report.Target,
			Ref:      models.EntityRef{Kind: models.RefSpore, ID: s.ID},
			Label:    m.Check + " warning",
			Detail:   m.String(),
			Type:     "validation:" + m.Check,
			Severity: models.SeverityLow,
		})
	}
}

func (c *Coordinator) recordRejection(ctx context.Context, res *Result) {
	if c.tracker == nil {
		return
	}
	for _, report := range res.Reports {
		if report.Valid || report.Target == "" {
			continue
		}
		for _, m := range report.Errors() {
			ref := models.EntityRef{Kind: models.RefSpore, ID: report.Spore}
			if m.Patch != "" {
				ref = models.EntityRef{Kind: models.RefPatch, ID: m.Patch}
			}
			c.record(ctx, conformance.RecordRequest{
				Target:   report.Target,
				Ref:      ref,
				Label:    m.Check + " check failed",
				Detail:   m.String(),
				Type:     "validation:" + m.Check,
				Severity: models.SeverityHigh,
			})
		}
	}
}

func (c *Coordinator) recordFailure(ctx context.Context, p *models.Patch, err error) {
	if c.tracker == nil {
		return
	}
	kind, sev := "apply-failure", models.SeverityHigh
	var cme *applicator.ConcurrentModificationError
	if errors.As(err, &cme) {
		kind, sev = "concurrent-modification", models.SeverityMedium
	}
	c.record(ctx, conformance.RecordRequest{
		Target:   p.Target,
		Ref:      models.EntityRef{Kind: models.RefPatch, ID: p.ID},
		Label:    "patch " + p.ID + " failed during integration",
		Detail:   err.Error(),
		Type:     kind,
		Severity: sev,
	})
}

func (c *Coordinator) record(ctx context.Context, req conformance.RecordRequest) {
	if _, err := c.tracker.Record(context.WithoutCancel(ctx), req); err != nil {
		c.logger.Warn("violation record failed", "target", req.Target, "type", req.Type, "error", err)
	}
}

// Plan groups the pending patches of spores into dependency waves without
// validating or applying anything.
func (c *Coordinator) Plan(ctx context.Context, spores []*models.Spore) ([][]string, error) {
	if len(spores) == 0 {
		return nil, ErrEmptyBatch
	}
	seen := map[string]bool{}
	var ids []string
	for _, s := range spores {
		for _, id := range s.Patches {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	all, err := c.patches.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	set := make([]*models.Patch, 0, len(all))
	for _, p := range all {
		if p.Status != models.StatusApplied {
			set = append(set, p)
		}
	}
	return resolver.Waves(set, c.external(ctx))
}
