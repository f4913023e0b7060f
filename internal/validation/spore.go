package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"evalgo.org/mycelium/internal/graph"
	"evalgo.org/mycelium/internal/storage"
	"evalgo.org/mycelium/models"
)

// Level of a report message. Only errors block integration.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Check names, in evaluation order.
const (
	CheckType          = "type"
	CheckTarget        = "target"
	CheckPatches       = "patches"
	CheckMetadata      = "metadata"
	CheckNamespaces    = "namespaces"
	CheckIRIs          = "iris"
	CheckCompatibility = "compatibility"
	CheckShapes        = "shapes"
)

// Message is one validation finding.
type Message struct {
	Check string `json:"check"`
	Level Level  `json:"level"`
	Patch string `json:"patch,omitempty"`
	Field string `json:"field,omitempty"`
	Text  string `json:"text"`
}

func (m Message) String() string {
	if m.Patch != "" {
		return fmt.Sprintf("[%s] %s: patch %s: %s", m.Level, m.Check, m.Patch, m.Text)
	}
	return fmt.Sprintf("[%s] %s: %s", m.Level, m.Check, m.Text)
}

// Report is the result of validating one spore against one target.
type Report struct {
	Spore    string                  `json:"spore"`
	Target   string                  `json:"target"`
	Level    models.ConformanceLevel `json:"conformanceLevel"`
	Valid    bool                    `json:"valid"`
	Messages []Message               `json:"messages"`
}

func (r *Report) add(m Message) {
	r.Messages = append(r.Messages, m)
}

// Errors returns the blocking messages.
func (r *Report) Errors() []Message { return r.filter(LevelError) }

// Warnings returns the non-blocking messages.
func (r *Report) Warnings() []Message { return r.filter(LevelWarning) }

func (r *Report) filter(l Level) []Message {
	var out []Message
	for _, m := range r.Messages {
		if m.Level == l {
			out = append(out, m)
		}
	}
	return out
}

// ValidationError wraps a failed report.
type ValidationError struct {
	Report *Report
}

func (e *ValidationError) Error() string {
	errs := e.Report.Errors()
	parts := make([]string, 0, len(errs))
	for _, m := range errs {
		parts = append(parts, m.String())
	}
	return fmt.Sprintf("spore %s is not valid for %s at %s level: %s",
		e.Report.Spore, e.Report.Target, e.Report.Level, strings.Join(parts, "; "))
}

// ShapesValidator checks a graph against externally defined shapes.
type ShapesValidator interface {
	Check(ctx context.Context, target graph.Handle) (conforms bool, details string, err error)
}

// PatchLookup is the read side of the patch store.
type PatchLookup interface {
	Get(ctx context.Context, id string) (*models.Patch, error)
}

// SporeValidator checks a spore before any of its patches are applied.
// It only reads.
type SporeValidator struct {
	patches    PatchLookup
	validate   *validator.Validate
	namespaces []string
	shapes     ShapesValidator
	logger     *slog.Logger
}

type Option func(*SporeValidator)

// WithNamespaces registers namespaces in addition to the built-in vocabularies.
func WithNamespaces(ns ...string) Option {
	return func(v *SporeValidator) {
		for _, n := range ns {
			if n = strings.TrimSpace(n); n != "" {
				v.namespaces = append(v.namespaces, n)
			}
		}
	}
}

// WithShapes enables the shapes check at Strict level.
func WithShapes(s ShapesValidator) Option {
	return func(v *SporeValidator) { v.shapes = s }
}

// WithLogger sets the logger for validation outcomes.
func WithLogger(l *slog.Logger) Option {
	return func(v *SporeValidator) { v.logger = l }
}

// NewSporeValidator creates a validator that resolves patch ids through patches.
// The built-in namespaces are always registered.
func NewSporeValidator(patches PatchLookup, opts ...Option) *SporeValidator {
	v := &SporeValidator{
		patches:    patches,
		validate:   newStructValidator(),
		namespaces: append([]string(nil), models.BuiltinNamespaces...),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	sort.Strings(v.namespaces)
	return v
}

// Namespaces returns the registered namespaces.
func (v *SporeValidator) Namespaces() []string {
	return append([]string(nil), v.namespaces...)
}

// Validate checks spore against target. Structural failures (type, level,
// target reference) end validation early; every other check runs and adds
// its messages. The report is valid when it holds no error messages.
func (v *SporeValidator) Validate(ctx context.Context, spore *models.Spore, target graph.Handle) (*Report, error) {
	report := &Report{}
	if spore == nil {
		report.add(Message{Check: CheckType, Level: LevelError, Text: "spore is missing"})
		return report, nil
	}
	report.Spore = spore.ID
	report.Level = spore.Level
	if target != nil {
		report.Target = target.ID()
	}

	if !v.checkStructure(spore, target, report) {
		return report, nil
	}

	patches, err := v.checkPatches(ctx, spore, report)
	if err != nil {
		return nil, err
	}
	v.checkMetadata(spore, patches, report)
	if spore.Level.AtLeast(models.LevelModerate) {
		v.checkNamespaces(spore.Level, patches, report)
	}
	if spore.Level.AtLeast(models.LevelStrict) {
		v.checkIRIs(patches, report)
	}
	if err := v.checkCompatibility(ctx, spore, target, report); err != nil {
		return nil, err
	}
	if spore.Level.AtLeast(models.LevelStrict) && v.shapes != nil {
		conforms, details, err := v.shapes.Check(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("shapes check of %s: %w", target.ID(), err)
		}
		if !conforms {
			report.add(Message{Check: CheckShapes, Level: LevelError, Text: details})
		}
	}

	report.Valid = len(report.Errors()) == 0
	v.logger.Debug("spore validated", "spore", spore.ID, "target", report.Target, "level", spore.Level, "valid", report.Valid, "messages", len(report.Messages))
	return report, nil
}

func (v *SporeValidator) checkStructure(spore *models.Spore, target graph.Handle, report *Report) bool {
	switch {
	case spore.Type == "":
		report.add(Message{Check: CheckType, Level: LevelError, Field: "@type", Text: "type tag is missing"})
		return false
	case spore.Type != models.SporeRecordType:
		report.add(Message{Check: CheckType, Level: LevelError, Field: "@type", Text: fmt.Sprintf("type %q is not %s", spore.Type, models.SporeRecordType)})
		return false
	case spore.ID == "":
		report.add(Message{Check: CheckType, Level: LevelError, Field: "@id", Text: "spore id is missing"})
		return false
	case !spore.Level.Valid():
		report.add(Message{Check: CheckType, Level: LevelError, Field: "conformanceLevel", Text: fmt.Sprintf("unknown conformance level %q", spore.Level)})
		return false
	}

	switch {
	case len(spore.Targets) == 0:
		report.add(Message{Check: CheckTarget, Level: LevelError, Field: "targets", Text: "spore declares no target"})
		return false
	case target == nil:
		report.add(Message{Check: CheckTarget, Level: LevelError, Text: "no target graph supplied"})
		return false
	case !spore.HasTarget(target.ID()):
		report.add(Message{Check: CheckTarget, Level: LevelError, Field: "targets", Text: fmt.Sprintf("spore does not target %s", target.ID())})
		return false
	}
	return true
}

// checkPatches resolves every referenced patch. Patches for other targets of
// the same spore are returned too; only patches aimed outside the spore fail.
func (v *SporeValidator) checkPatches(ctx context.Context, spore *models.Spore, report *Report) ([]*models.Patch, error) {
	if len(spore.Patches) == 0 {
		report.add(Message{Check: CheckPatches, Level: LevelError, Field: "patches", Text: "spore references no patches"})
		return nil, nil
	}

	seen := make(map[string]bool, len(spore.Patches))
	patches := make([]*models.Patch, 0, len(spore.Patches))
	for _, id := range spore.Patches {
		if seen[id] {
			report.add(Message{Check: CheckPatches, Level: LevelError, Patch: id, Text: "listed more than once"})
			continue
		}
		seen[id] = true

		p, err := v.patches.Get(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			report.add(Message{Check: CheckPatches, Level: LevelError, Patch: id, Text: "patch does not exist"})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load patch %s: %w", id, err)
		}

		if !spore.HasTarget(p.Target) {
			report.add(Message{Check: CheckPatches, Level: LevelError, Patch: id, Field: "target",
				Text: fmt.Sprintf("targets %s which the spore does not declare", p.Target)})
		}
		switch p.Status {
		case models.StatusPending:
		case models.StatusApplied:
			report.add(Message{Check: CheckPatches, Level: LevelInfo, Patch: id, Text: "already applied; it will be skipped"})
		case models.StatusDraft, models.StatusFailed, models.StatusReverted:
			report.add(Message{Check: CheckPatches, Level: LevelError, Patch: id, Field: "status",
				Text: fmt.Sprintf("status is %s; only pending patches can be integrated", p.Status)})
		default:
			report.add(Message{Check: CheckPatches, Level: LevelError, Patch: id, Field: "status",
				Text: fmt.Sprintf("unknown status %q", p.Status)})
		}
		patches = append(patches, p)
	}
	return patches, nil
}

type strictPatchMetadata struct {
	Label       string `json:"label" validate:"required"`
	Description string `json:"description" validate:"required"`
	Target      string `json:"target" validate:"required"`
	Version     string `json:"version" validate:"required"`
}

type moderatePatchMetadata struct {
	Target  string `json:"target" validate:"required"`
	Version string `json:"version" validate:"required"`
}

type strictSporeMetadata struct {
	Label       string `json:"label" validate:"required"`
	Description string `json:"description" validate:"required"`
	Version     string `json:"version" validate:"required"`
}

func (v *SporeValidator) checkMetadata(spore *models.Spore, patches []*models.Patch, report *Report) {
	switch spore.Level {
	case models.LevelRelaxed:
		return
	case models.LevelStrict:
		v.requireFields(report, "", strictSporeMetadata{
			Label:       strings.TrimSpace(spore.Label),
			Description: strings.TrimSpace(spore.Description),
			Version:     strings.TrimSpace(spore.Version),
		})
	}

	for _, p := range patches {
		var meta interface{}
		switch spore.Level {
		case models.LevelModerate:
			meta = moderatePatchMetadata{
				Target:  strings.TrimSpace(p.Target),
				Version: strings.TrimSpace(p.Version),
			}
		case models.LevelStrict:
			meta = strictPatchMetadata{
				Label:       strings.TrimSpace(p.Label),
				Description: strings.TrimSpace(p.Description),
				Target:      strings.TrimSpace(p.Target),
				Version:     strings.TrimSpace(p.Version),
			}
		}
		v.requireFields(report, p.ID, meta)
	}
}

func (v *SporeValidator) requireFields(report *Report, patchID string, meta interface{}) {
	err := v.validate.Struct(meta)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		report.add(Message{Check: CheckMetadata, Level: LevelError, Patch: patchID, Text: err.Error()})
		return
	}
	for _, fe := range fieldErrs {
		owner := "spore"
		if patchID != "" {
			owner = "patch"
		}
		report.add(Message{
			Check: CheckMetadata,
			Level: LevelError,
			Patch: patchID,
			Field: fe.Field(),
			Text:  fmt.Sprintf("%s is missing required field %s", owner, fe.Field()),
		})
	}
}

// checkNamespaces warns at Moderate and fails at Strict for IRIs outside
// every registered namespace.
func (v *SporeValidator) checkNamespaces(level models.ConformanceLevel, patches []*models.Patch, report *Report) {
	msgLevel := LevelWarning
	if level.AtLeast(models.LevelStrict) {
		msgLevel = LevelError
	}
	for _, p := range patches {
		for _, iri := range patchIRIs(p) {
			if v.registered(iri) {
				continue
			}
			report.add(Message{
				Check: CheckNamespaces,
				Level: msgLevel,
				Patch: p.ID,
				Text:  fmt.Sprintf("IRI %s is not in a registered namespace", iri),
			})
		}
	}
}

func (v *SporeValidator) registered(iri string) bool {
	for _, ns := range v.namespaces {
		if strings.HasPrefix(iri, ns) {
			return true
		}
	}
	return false
}

// checkIRIs requires absolute http(s) or urn IRIs.
func (v *SporeValidator) checkIRIs(patches []*models.Patch, report *Report) {
	for _, p := range patches {
		for _, iri := range patchIRIs(p) {
			if wellFormedIRI(v.validate, iri) {
				continue
			}
			report.add(Message{
				Check: CheckIRIs,
				Level: LevelError,
				Patch: p.ID,
				Text:  fmt.Sprintf("IRI %q is not an absolute http, https or urn IRI", iri),
			})
		}
	}
}

func wellFormedIRI(validate *validator.Validate, iri string) bool {
	if validate.Var(iri, "required,uri") != nil {
		return false
	}
	u, err := url.Parse(iri)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	case "urn":
		return u.Opaque != ""
	default:
		return false
	}
}

// patchIRIs lists the distinct IRIs a patch touches, in first-seen order.
func patchIRIs(p *models.Patch) []string {
	seen := map[string]bool{}
	var out []string
	for _, op := range p.Operations {
		for _, iri := range op.Triple.IRIs() {
			if !seen[iri] {
				seen[iri] = true
				out = append(out, iri)
			}
		}
	}
	return out
}

// checkCompatibility compares the spore's expected base version for target
// with the target's current version.
func (v *SporeValidator) checkCompatibility(ctx context.Context, spore *models.Spore, target graph.Handle, report *Report) error {
	expected := spore.BaseVersions[target.ID()]
	if expected == "" {
		report.add(Message{Check: CheckCompatibility, Level: LevelInfo, Text: fmt.Sprintf("no base version declared for %s", target.ID())})
		return nil
	}
	current, err := target.CurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("read version of %s: %w", target.ID(), err)
	}
	if current == expected {
		return nil
	}
	level := LevelWarning
	if spore.Level.AtLeast(models.LevelStrict) {
		level = LevelError
	}
	report.add(Message{
		Check: CheckCompatibility,
		Level: level,
		Field: "baseVersions",
		Text:  fmt.Sprintf("target %s is at %s but the spore expects %s", target.ID(), current, expected),
	})
	return nil
}
