// Package conformance keeps the violation audit trail: recording findings,
// resolving them, and summarizing a target's conformance health.
package conformance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"evalgo.org/mycelium/internal/metrics"
	"evalgo.org/mycelium/internal/storage"
	"evalgo.org/mycelium/models"
)

// ErrInvalidViolation is returned when a record request is incomplete.
var ErrInvalidViolation = errors.New("invalid violation")

// ViolationStore is the persistence the tracker needs.
type ViolationStore interface {
	PutViolation(ctx context.Context, v *models.Violation) error
	GetViolation(ctx context.Context, id string) (*models.Violation, error)
	ListViolations(ctx context.Context, filter storage.ViolationFilter) ([]*models.Violation, error)
}

// RecordRequest describes a new violation.
type RecordRequest struct {
	Target   string           `json:"target" yaml:"target"`
	Ref      models.EntityRef `json:"ref" yaml:"ref"`
	Label    string           `json:"label" yaml:"label"`
	Detail   string           `json:"detail,omitempty" yaml:"detail,omitempty"`
	Type     string           `json:"violationType" yaml:"type"`
	Severity models.Severity  `json:"severity" yaml:"severity"`
}

// Statistics summarizes the violations of one target.
type Statistics struct {
	Target      string                  `json:"target"`
	Total       int                     `json:"total"`
	Resolved    int                     `json:"resolved"`
	Unresolved  int                     `json:"unresolved"`
	BySeverity  map[models.Severity]int `json:"bySeverity"`
	HealthScore int                     `json:"healthScore"`
}

// Tracker records and resolves violations. It never touches a graph.
type Tracker struct {
	store  ViolationStore
	audit  *AuditLogger
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a tracker. audit may be nil.
func NewTracker(store ViolationStore, audit *AuditLogger, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:  store,
		audit:  audit,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func validateRecord(req RecordRequest) error {
	if strings.TrimSpace(req.Target) == "" {
		return fmt.Errorf("%w: target is required", ErrInvalidViolation)
	}
	if !req.Ref.Kind.Valid() || req.Ref.ID == "" {
		return fmt.Errorf("%w: reference %q is not a spore, patch or graph", ErrInvalidViolation, req.Ref.String())
	}
	if strings.TrimSpace(req.Label) == "" {
		return fmt.Errorf("%w: label is required", ErrInvalidViolation)
	}
	if req.Type == "" {
		return fmt.Errorf("%w: violation type is required", ErrInvalidViolation)
	}
	if !req.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidViolation, req.Severity)
	}
	return nil
}

// Record stores a new open violation and returns its id.
func (t *Tracker) Record(ctx context.Context, req RecordRequest) (string, error) {
	if err := validateRecord(req); err != nil {
		return "", err
	}
	v := &models.Violation{
		ID:        models.GenerateID("violation"),
		Target:    req.Target,
		Ref:       req.Ref,
		Label:     req.Label,
		Detail:    req.Detail,
		Type:      req.Type,
		Severity:  req.Severity,
		Status:    models.ViolationOpen,
		CreatedAt: t.now(),
	}
	if err := t.store.PutViolation(ctx, v); err != nil {
		return "", fmt.Errorf("persist violation: %w", err)
	}
	t.auditRecord(v)
	t.logger.Info("violation recorded", "violation", v.ID, "target", v.Target, "ref", v.Ref.String(), "type", v.Type, "severity", v.Severity)
	t.refreshGauge(ctx, v.Target)
	return v.ID, nil
}

// Resolve marks a violation resolved. It returns false when the violation
// was already resolved; the original resolution is kept.
func (t *Tracker) Resolve(ctx context.Context, id, resolution string) (bool, error) {
	v, err := t.store.GetViolation(ctx, id)
	if err != nil {
		return false, err
	}
	if v.Status == models.ViolationResolved {
		t.auditResolve(v, false)
		return false, nil
	}
	at := t.now()
	v.Status = models.ViolationResolved
	v.Resolution = resolution
	v.ResolvedAt = &at
	if err := t.store.PutViolation(ctx, v); err != nil {
		return false, fmt.Errorf("persist violation %s: %w", id, err)
	}
	t.auditResolve(v, true)
	t.logger.Info("violation resolved", "violation", v.ID, "target", v.Target)
	t.refreshGauge(ctx, v.Target)
	return true, nil
}

// History lists every violation recorded against target, oldest first.
func (t *Tracker) History(ctx context.Context, target string) ([]*models.Violation, error) {
	return t.store.ListViolations(ctx, storage.ViolationFilter{Target: target})
}

// Query lists violations matching filter.
func (t *Tracker) Query(ctx context.Context, filter storage.ViolationFilter) ([]*models.Violation, error) {
	return t.store.ListViolations(ctx, filter)
}

// Statistics aggregates the violations of target.
func (t *Tracker) Statistics(ctx context.Context, target string) (*Statistics, error) {
	vs, err := t.History(ctx, target)
	if err != nil {
		return nil, err
	}
	return summarize(target, vs), nil
}

func summarize(target string, vs []*models.Violation) *Statistics {
	stats := &Statistics{
		Target:     target,
		BySeverity: make(map[models.Severity]int, len(models.Severities)),
	}
	for _, sev := range models.Severities {
		stats.BySeverity[sev] = 0
	}
	penalty := 0
	for _, v := range vs {
		stats.Total++
		stats.BySeverity[v.Severity]++
		if v.Status == models.ViolationResolved {
			stats.Resolved++
			continue
		}
		stats.Unresolved++
		penalty += v.Severity.Weight()
	}
	stats.HealthScore = healthScore(penalty)
	return stats
}

// healthScore maps the weighted open-violation penalty onto 0..100.
func healthScore(penalty int) int {
	score := 100 - penalty
	if score < 0 {
		return 0
	}
	return score
}

// RecordFindings stores each finding as a graph violation unless an open
// violation with the same rule and subject already exists. It returns the new ids.
func (t *Tracker) RecordFindings(ctx context.Context, target string, findings []Finding) ([]string, error) {
	open, err := t.store.ListViolations(ctx, storage.ViolationFilter{Target: target, Status: models.ViolationOpen})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(open))
	for _, v := range open {
		seen[v.Type+"|"+v.Label] = true
	}

	ids := make([]string, 0, len(findings))
	for _, f := range findings {
		key := f.Rule + "|" + f.Subject
		if seen[key] {
			continue
		}
		seen[key] = true
		id, err := t.Record(ctx, RecordRequest{
			Target:   target,
			Ref:      models.EntityRef{Kind: models.RefGraph, ID: target},
			Label:    f.Subject,
			Detail:   f.Message,
			Type:     f.Rule,
			Severity: f.Severity,
		})
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	if t.audit != nil {
		if err := t.audit.LogCheck(target, len(findings), len(ids)); err != nil {
			t.logger.Warn("audit write failed", "error", err)
		}
	}
	return ids, nil
}

func (t *Tracker) auditRecord(v *models.Violation) {
	if t.audit == nil {
		return
	}
	if err := t.audit.LogRecord(v); err != nil {
		t.logger.Warn("audit write failed", "violation", v.ID, "error", err)
	}
}

func (t *Tracker) auditResolve(v *models.Violation, changed bool) {
	if t.audit == nil {
		return
	}
	if err := t.audit.LogResolve(v, changed); err != nil {
		t.logger.Warn("audit write failed", "violation", v.ID, "error", err)
	}
}

func (t *Tracker) refreshGauge(ctx context.Context, target string) {
	open, err := t.store.ListViolations(ctx, storage.ViolationFilter{Target: target, Status: models.ViolationOpen})
	if err != nil {
		t.logger.Debug("open violation count unavailable", "target", target, "error", err)
		return
	}
	metrics.SetOpenViolations(target, len(open))
}
