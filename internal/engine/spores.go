package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"evalgo.org/mycelium/internal/graph"
	"evalgo.org/mycelium/internal/integration"
	"evalgo.org/mycelium/internal/validation"
	"evalgo.org/mycelium/models"
)

// ErrInvalidSpore is returned when a create request is malformed.
var ErrInvalidSpore = errors.New("invalid spore")

// SporeRequest carries the fields a new spore is created from.
type SporeRequest struct {
	// ID is optional; one is generated when empty.
	ID          string                  `json:"id,omitempty" yaml:"id,omitempty"`
	Label       string                  `json:"label,omitempty" yaml:"label,omitempty"`
	Description string                  `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string                  `json:"version,omitempty" yaml:"version,omitempty"`
	Level       models.ConformanceLevel `json:"conformanceLevel,omitempty" yaml:"conformance_level,omitempty"`
	Patches     []string                `json:"patches" yaml:"patches"`
	Targets     []string                `json:"targets" yaml:"targets"`
	// BaseVersions pins the expected version token per target.
	BaseVersions map[string]string `json:"baseVersions,omitempty" yaml:"base_versions,omitempty"`
}

// CreateSpore stores a spore. An empty level takes the configured default.
func (e *Engine) CreateSpore(ctx context.Context, req SporeRequest) (*models.Spore, error) {
	level := req.Level
	if level == "" {
		level = e.defaultLevel()
	}
	if !level.Valid() {
		return nil, fmt.Errorf("%w: unknown conformance level %q", ErrInvalidSpore, level)
	}
	if len(req.Patches) == 0 {
		return nil, fmt.Errorf("%w: at least one patch is required", ErrInvalidSpore)
	}
	if len(req.Targets) == 0 {
		return nil, fmt.Errorf("%w: at least one target is required", ErrInvalidSpore)
	}
	id := req.ID
	if id == "" {
		id = models.GenerateID("spore")
	} else if _, err := e.store.GetSpore(ctx, id); err == nil {
		return nil, fmt.Errorf("%w: spore %s already exists", ErrInvalidSpore, id)
	}

	s := &models.Spore{
		Context:      models.Context,
		Type:         models.SporeRecordType,
		ID:           id,
		Label:        req.Label,
		Description:  req.Description,
		Version:      req.Version,
		Level:        level,
		Patches:      append([]string(nil), req.Patches...),
		Targets:      append([]string(nil), req.Targets...),
		BaseVersions: req.BaseVersions,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.PutSpore(ctx, s); err != nil {
		return nil, fmt.Errorf("persist spore: %w", err)
	}
	e.logger.Info("spore created", "spore", s.ID, "level", s.Level, "patches", len(s.Patches), "targets", s.Targets)
	return s.Clone(), nil
}

// GetSpore returns the stored spore with id.
func (e *Engine) GetSpore(ctx context.Context, id string) (*models.Spore, error) {
	return e.store.GetSpore(ctx, id)
}

// ListSpores returns every stored spore.
func (e *Engine) ListSpores(ctx context.Context) ([]*models.Spore, error) {
	return e.store.ListSpores(ctx)
}

// MigrateSporeVersion sets the spore's author version. With pinBases the
// expected base versions are refreshed from the targets' current tokens.
func (e *Engine) MigrateSporeVersion(ctx context.Context, id, version string, pinBases bool) (*models.Spore, error) {
	if version == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidSpore)
	}
	s, err := e.store.GetSpore(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := s.Version
	s.Version = version
	if pinBases {
		s.BaseVersions = make(map[string]string, len(s.Targets))
		for _, target := range s.Targets {
			v, err := e.GraphVersion(ctx, target)
			if err != nil {
				return nil, err
			}
			s.BaseVersions[target] = v
		}
	}
	if err := e.store.PutSpore(ctx, s); err != nil {
		return nil, fmt.Errorf("persist spore: %w", err)
	}
	e.logger.Info("spore version migrated", "spore", id, "from", previous, "to", version, "pinned", pinBases)
	return s.Clone(), nil
}

// ValidateSpore checks a stored spore against each of its targets without
// applying anything. One report is returned per target.
func (e *Engine) ValidateSpore(ctx context.Context, id string) ([]*validation.Report, error) {
	s, err := e.store.GetSpore(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.validate(ctx, s)
}

func (e *Engine) validate(ctx context.Context, s *models.Spore) ([]*validation.Report, error) {
	if len(s.Targets) == 0 {
		report, err := e.validator.Validate(ctx, s, nil)
		if err != nil {
			return nil, err
		}
		return []*validation.Report{report}, nil
	}
	reports := make([]*validation.Report, 0, len(s.Targets))
	for _, target := range s.Targets {
		h, err := e.graphs.Get(ctx, target)
		if err != nil {
			return nil, err
		}
		report, err := e.validator.Validate(ctx, s, h)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// IntegrateSpores runs one integration over the stored spores. A non-nil
// error with a non-nil result means the batch was rejected at the gate.
// Touched targets are persisted and archived, then checked for conformance
// when configured.
func (e *Engine) IntegrateSpores(ctx context.Context, ids []string) (*integration.Result, error) {
	spores, err := e.loadSpores(ctx, ids)
	if err != nil {
		return nil, err
	}
	targets := map[string]graph.Handle{}
	for _, s := range spores {
		for _, id := range s.Targets {
			if _, ok := targets[id]; ok {
				continue
			}
			h, err := e.graphs.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			targets[id] = h
		}
	}

	res, err := e.coordinator.Integrate(ctx, spores, targets)
	if err != nil {
		return res, err
	}
	for target := range res.Versions {
		e.persist(ctx, target)
		if e.cfg.Engine.CheckConformance {
			if _, _, err := e.CheckConformance(context.WithoutCancel(ctx), target); err != nil {
				e.logger.Warn("post-integration conformance check failed", "target", target, "error", err)
			}
		}
	}
	return res, nil
}

// Plan returns the dependency waves of the spores' pending patches.
func (e *Engine) Plan(ctx context.Context, ids []string) ([][]string, error) {
	spores, err := e.loadSpores(ctx, ids)
	if err != nil {
		return nil, err
	}
	return e.coordinator.Plan(ctx, spores)
}

func (e *Engine) loadSpores(ctx context.Context, ids []string) ([]*models.Spore, error) {
	if len(ids) == 0 {
		return nil, integration.ErrEmptyBatch
	}
	spores := make([]*models.Spore, 0, len(ids))
	for _, id := range ids {
		s, err := e.store.GetSpore(ctx, id)
		if err != nil {
			return nil, err
		}
		spores = append(spores, s)
	}
	return spores, nil
}
