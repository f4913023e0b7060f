// Package patch owns patch identity, metadata and lifecycle transitions.
package patch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"evalgo.org/mycelium/internal/storage"
	"evalgo.org/mycelium/models"
)

var (
	// ErrInvalidTransition is returned when a lifecycle change is not permitted.
	ErrInvalidTransition = errors.New("invalid patch status transition")
	// ErrInvalidPatch is returned when a create request fails validation.
	ErrInvalidPatch = errors.New("invalid patch")
	// ErrDuplicateID is returned when a caller-chosen id is already taken.
	ErrDuplicateID = errors.New("patch id already exists")
)

// CreateRequest carries the fields a new patch is created from.
type CreateRequest struct {
	// ID is optional; one is generated when empty.
	ID          string             `json:"id,omitempty" yaml:"id,omitempty"`
	Kind        models.PatchType   `json:"patchType" yaml:"type"`
	Target      string             `json:"target" yaml:"target"`
	Label       string             `json:"label,omitempty" yaml:"label,omitempty"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string             `json:"version,omitempty" yaml:"version,omitempty"`
	Operations  []models.Operation `json:"operations" yaml:"operations"`
	BaseVersion string             `json:"baseVersion" yaml:"base_version"`
	DependsOn   []string           `json:"dependsOn,omitempty" yaml:"depends_on,omitempty"`
	Spore       string             `json:"spore,omitempty" yaml:"spore,omitempty"`
}

// Store is the patch store. It is the only writer of patch records.
type Store struct {
	backend storage.Store
	logger  *slog.Logger
	now     func() time.Time
	// mu serializes read-modify-write cycles on records
	mu sync.Mutex
}

// NewStore creates a patch store on top of backend.
func NewStore(backend storage.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Create validates req and persists a new Draft patch.
func (s *Store) Create(ctx context.Context, req CreateRequest) (*models.Patch, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := req.ID
	if id == "" {
		id = models.GenerateID("patch")
	} else {
		exists, err := s.backend.PatchExists(ctx, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
	}
	if contains(req.DependsOn, id) {
		return nil, fmt.Errorf("%w: patch %s depends on itself", ErrInvalidPatch, id)
	}

	now := s.now()
	ops := make([]models.Operation, len(req.Operations))
	for i, op := range req.Operations {
		ops[i] = models.Operation{Kind: op.Kind, Triple: op.Triple.Normalize()}
	}
	p := &models.Patch{
		Context:     models.Context,
		Type:        models.PatchRecordType,
		ID:          id,
		Kind:        req.Kind,
		Target:      req.Target,
		Label:       req.Label,
		Description: req.Description,
		Version:     req.Version,
		Operations:  ops,
		BaseVersion: req.BaseVersion,
		DependsOn:   dedupe(req.DependsOn),
		Spore:       req.Spore,
		Status:      models.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.backend.PutPatch(ctx, p); err != nil {
		return nil, fmt.Errorf("persist patch: %w", err)
	}
	s.logger.Info("patch created", "patch", p.ID, "target", p.Target, "type", p.Kind, "operations", len(p.Operations))
	return p.Clone(), nil
}

func validateRequest(req CreateRequest) error {
	if !req.Kind.Valid() {
		return fmt.Errorf("%w: unknown patch type %q", ErrInvalidPatch, req.Kind)
	}
	if req.Target == "" {
		return fmt.Errorf("%w: target is required", ErrInvalidPatch)
	}
	if len(req.Operations) == 0 {
		return fmt.Errorf("%w: at least one operation is required", ErrInvalidPatch)
	}
	for i, op := range req.Operations {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("%w: operation %d: %v", ErrInvalidPatch, i, err)
		}
		if !req.Kind.Allows(op.Kind) {
			return fmt.Errorf("%w: operation %d: %s patch cannot %s triples", ErrInvalidPatch, i, req.Kind, op.Kind)
		}
	}
	for _, d := range req.DependsOn {
		if d == "" {
			return fmt.Errorf("%w: empty dependency id", ErrInvalidPatch)
		}
	}
	return nil
}

// Get returns a copy of the patch with id.
func (s *Store) Get(ctx context.Context, id string) (*models.Patch, error) {
	return s.backend.GetPatch(ctx, id)
}

// GetMany loads patches in the order given.
func (s *Store) GetMany(ctx context.Context, ids []string) ([]*models.Patch, error) {
	out := make([]*models.Patch, 0, len(ids))
	for _, id := range ids {
		p, err := s.backend.GetPatch(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// List returns the patches matching filter.
func (s *Store) List(ctx context.Context, filter storage.PatchFilter) ([]*models.Patch, error) {
	return s.backend.ListPatches(ctx, filter)
}

// Exists reports whether a patch with id has been stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	return s.backend.PatchExists(ctx, id)
}

// Submit moves a Draft patch to Pending.
func (s *Store) Submit(ctx context.Context, id string) (*models.Patch, error) {
	return s.Transition(ctx, id, models.StatusPending)
}

// Transition changes the status of a patch if the lifecycle allows it.
func (s *Store) Transition(ctx context.Context, id string, to models.PatchStatus) (*models.Patch, error) {
	return s.update(ctx, id, func(p *models.Patch) error {
		return transition(p, to)
	})
}

// MarkApplied records a successful apply together with the indices of the
// operations that changed the graph.
func (s *Store) MarkApplied(ctx context.Context, id string, effective []int) (*models.Patch, error) {
	return s.update(ctx, id, func(p *models.Patch) error {
		if err := transition(p, models.StatusApplied); err != nil {
			return err
		}
		p.Effective = append([]int{}, effective...)
		return nil
	})
}

// Rebase points a not-yet-applied patch at a new base version. Failed and
// Reverted patches return to Pending; Draft and Pending keep their status.
func (s *Store) Rebase(ctx context.Context, id, baseVersion string) (*models.Patch, error) {
	if baseVersion == "" {
		return nil, fmt.Errorf("%w: base version is required", ErrInvalidPatch)
	}
	return s.update(ctx, id, func(p *models.Patch) error {
		switch p.Status {
		case models.StatusDraft, models.StatusPending:
		case models.StatusFailed, models.StatusReverted:
			if err := transition(p, models.StatusPending); err != nil {
				return err
			}
		case models.StatusApplied:
			return fmt.Errorf("%w: cannot rebase applied patch %s", ErrInvalidTransition, p.ID)
		default:
			return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, p.Status)
		}
		p.BaseVersion = baseVersion
		p.Effective = nil
		return nil
	})
}

func (s *Store) update(ctx context.Context, id string, fn func(p *models.Patch) error) (*models.Patch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.backend.GetPatch(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := p.Status
	if err := fn(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()
	if err := s.backend.PutPatch(ctx, p); err != nil {
		return nil, fmt.Errorf("persist patch %s: %w", id, err)
	}
	if prev != p.Status {
		s.logger.Debug("patch status changed", "patch", id, "from", prev, "to", p.Status)
	}
	return p, nil
}

func transition(p *models.Patch, to models.PatchStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !p.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s cannot move from %s to %s", ErrInvalidTransition, p.ID, p.Status, to)
	}
	p.Status = to
	return nil
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
