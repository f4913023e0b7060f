package engine

import (
	"context"

	"evalgo.org/mycelium/internal/conformance"
	"evalgo.org/mycelium/internal/storage"
	"evalgo.org/mycelium/models"
)

// RecordViolation stores a manual audit entry and returns its id.
func (e *Engine) RecordViolation(ctx context.Context, req conformance.RecordRequest) (string, error) {
	return e.tracker.Record(ctx, req)
}

// ResolveViolation marks a violation resolved. changed is false when it was
// already resolved.
func (e *Engine) ResolveViolation(ctx context.Context, id, resolution string) (bool, error) {
	return e.tracker.Resolve(ctx, id, resolution)
}

// GetViolation returns one violation by id.
func (e *Engine) GetViolation(ctx context.Context, id string) (*models.Violation, error) {
	return e.store.GetViolation(ctx, id)
}

// GetViolationHistory lists every violation of target, oldest first.
func (e *Engine) GetViolationHistory(ctx context.Context, target string) ([]*models.Violation, error) {
	return e.tracker.History(ctx, target)
}

// QueryViolations lists violations matching filter.
func (e *Engine) QueryViolations(ctx context.Context, filter storage.ViolationFilter) ([]*models.Violation, error) {
	return e.tracker.Query(ctx, filter)
}

// ViolationStatistics summarizes the violations of target, or of every
// target when target is empty.
func (e *Engine) ViolationStatistics(ctx context.Context, target string) (*conformance.Statistics, error) {
	return e.tracker.Statistics(ctx, target)
}

// CheckConformance runs the graph rules over target and records new
// findings as violations. It returns all findings and the ids recorded.
func (e *Engine) CheckConformance(ctx context.Context, target string) ([]conformance.Finding, []string, error) {
	h, err := e.graphs.Get(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	findings, err := e.checker.Check(ctx, h)
	if err != nil {
		return nil, nil, err
	}
	recorded, err := e.tracker.RecordFindings(ctx, target, findings)
	if err != nil {
		return findings, recorded, err
	}
	return findings, recorded, nil
}
