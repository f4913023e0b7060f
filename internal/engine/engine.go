// Package engine wires the patch store, resolver, applicator, validator,
// coordinator and conformance tracker behind one facade. The API server and
// the CLI only talk to an Engine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"evalgo.org/mycelium/internal/applicator"
	"evalgo.org/mycelium/internal/blob"
	"evalgo.org/mycelium/internal/config"
	"evalgo.org/mycelium/internal/conformance"
	"evalgo.org/mycelium/internal/graph"
	"evalgo.org/mycelium/internal/integration"
	"evalgo.org/mycelium/internal/patch"
	"evalgo.org/mycelium/internal/storage"
	"evalgo.org/mycelium/internal/validation"
	"evalgo.org/mycelium/models"
)

// Engine is safe for concurrent use.
type Engine struct {
	cfg         *config.Config
	store       storage.Store
	graphs      *graph.Registry
	patches     *patch.Store
	validator   *validation.SporeValidator
	documents   *validation.Validator
	applicator  *applicator.Applicator
	coordinator *integration.Coordinator
	tracker     *conformance.Tracker
	checker     *conformance.Checker
	audit       *conformance.AuditLogger
	archiver    *blob.Archiver
	logger      *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Options overrides the backends New would otherwise open from config.
type Options struct {
	Store  storage.Store
	Blobs  blob.Store
	Shapes validation.ShapesValidator
	Logger *slog.Logger
}

// New opens storage, the audit trail and the snapshot archive described by
// cfg and wires the components together.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := opts.Store
	if store == nil {
		var err error
		store, err = storage.New(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}

	blobs := opts.Blobs
	if blobs == nil {
		var err error
		blobs, err = blob.New(ctx, cfg.Blob)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("open snapshot archive: %w", err)
		}
	}

	audit, err := conformance.NewAuditLogger(cfg.Audit)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	patches := patch.NewStore(store, logger)
	tracker := conformance.NewTracker(store, audit, logger)
	validatorOpts := []validation.Option{
		validation.WithNamespaces(cfg.Engine.Namespaces...),
		validation.WithLogger(logger),
	}
	if opts.Shapes != nil {
		validatorOpts = append(validatorOpts, validation.WithShapes(opts.Shapes))
	}
	sporeValidator := validation.NewSporeValidator(patches, validatorOpts...)
	apply := applicator.New(patches, store, logger)

	e := &Engine{
		cfg:        cfg,
		store:      store,
		graphs:     graph.NewRegistry(store, logger),
		patches:    patches,
		validator:  sporeValidator,
		documents:  validation.New(),
		applicator: apply,
		coordinator: integration.New(integration.Config{
			Patches:     patches,
			Validator:   sporeValidator,
			Applicator:  apply,
			Tracker:     tracker,
			Audit:       audit,
			LockTimeout: cfg.Engine.LockTimeout,
			Logger:      logger,
		}),
		tracker:  tracker,
		checker:  conformance.NewChecker(),
		audit:    audit,
		archiver: blob.NewArchiver(blobs, logger),
		logger:   logger,
	}
	logger.Info("engine ready",
		"storage", cfg.Storage.Driver,
		"archive", cfg.Blob.Driver,
		"default_conformance", cfg.Engine.DefaultConformance,
		"namespaces", len(sporeValidator.Namespaces()))
	return e, nil
}

// Close flushes the audit trail and closes storage. Later calls return the
// first result.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = errors.Join(e.audit.Close(), e.store.Close())
	})
	return e.closeErr
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.Config { return e.cfg }

// Documents exposes the JSON-LD document validator used for uploads.
func (e *Engine) Documents() *validation.Validator { return e.documents }

// Graphs exposes the target registry, mainly so callers can register
// externally managed handles.
func (e *Engine) Graphs() *graph.Registry { return e.graphs }

func (e *Engine) defaultLevel() models.ConformanceLevel {
	if l, err := models.ParseConformanceLevel(e.cfg.Engine.DefaultConformance); err == nil {
		return l
	}
	return models.LevelModerate
}

// persist writes the latest snapshot of target and archives it. Both are
// best effort; the graph itself is already updated.
func (e *Engine) persist(ctx context.Context, target string) {
	ctx = context.WithoutCancel(ctx)
	if err := e.graphs.Persist(ctx, target); err != nil {
		e.logger.Warn("snapshot persist failed", "target", target, "error", err)
	}
	h, ok := e.graphs.Lookup(target)
	if !ok {
		return
	}
	_, _ = e.archiver.Archive(ctx, h)
}
