package conformance

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mycelium/internal/config"
	"evalgo.org/mycelium/internal/graph"
	"evalgo.org/mycelium/internal/storage"
	"evalgo.org/mycelium/models"
)

func sporeRef(id string) models.EntityRef {
	return models.EntityRef{Kind: models.RefSpore, ID: id}
}

func TestRecordAndResolve(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(storage.NewMemory(), nil, nil)

	id, err := tracker.Record(ctx, RecordRequest{
		Target:   "g1",
		Ref:      sporeRef("s1"),
		Label:    "missing description",
		Detail:   "patch p1 has no description",
		Type:     "metadata",
		Severity: models.SeverityHigh,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	history, err := tracker.History(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ViolationOpen, history[0].Status)
	assert.Nil(t, history[0].ResolvedAt)

	changed, err := tracker.Resolve(ctx, id, "description added")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = tracker.Resolve(ctx, id, "again")
	require.NoError(t, err)
	assert.False(t, changed)

	history, err = tracker.History(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, history, 1, "violations are never deleted")
	assert.Equal(t, models.ViolationResolved, history[0].Status)
	assert.Equal(t, "description added", history[0].Resolution)
	require.NotNil(t, history[0].ResolvedAt)
}

func TestHistoryOldestFirst(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(storage.NewMemory(), nil, nil)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	var ids []string
	for _, label := range []string{"first", "second", "third"} {
		id, err := tracker.Record(ctx, RecordRequest{
			Target: "g1", Ref: sporeRef("s1"), Label: label, Type: "metadata", Severity: models.SeverityLow,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	history, err := tracker.History(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, v := range history {
		assert.Equal(t, ids[i], v.ID)
	}
}

func TestResolveUnknown(t *testing.T) {
	tracker := NewTracker(storage.NewMemory(), nil, nil)
	_, err := tracker.Resolve(context.Background(), "violation-missing", "x")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordValidation(t *testing.T) {
	valid := RecordRequest{Target: "g1", Ref: sporeRef("s1"), Label: "l", Type: "t", Severity: models.SeverityLow}
	tests := []struct {
		name   string
		mutate func(r *RecordRequest)
	}{
		{"no target", func(r *RecordRequest) { r.Target = "" }},
		{"bad ref kind", func(r *RecordRequest) { r.Ref.Kind = "host" }},
		{"no ref id", func(r *RecordRequest) { r.Ref.ID = "" }},
		{"no label", func(r *RecordRequest) { r.Label = "  " }},
		{"no type", func(r *RecordRequest) { r.Type = "" }},
		{"bad severity", func(r *RecordRequest) { r.Severity = "urgent" }},
	}
	tracker := NewTracker(storage.NewMemory(), nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := tracker.Record(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidViolation)
		})
	}
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(storage.NewMemory(), nil, nil)

	record := func(target string, sev models.Severity) string {
		id, err := tracker.Record(ctx, RecordRequest{Target: target, Ref: sporeRef("s"), Label: "l", Type: "t", Severity: sev})
		require.NoError(t, err)
		return id
	}
	record("g1", models.SeverityLow)
	record("g1", models.SeverityCritical)
	high := record("g1", models.SeverityHigh)
	record("g2", models.SeverityCritical)

	_, err := tracker.Resolve(ctx, high, "fixed")
	require.NoError(t, err)

	stats, err := tracker.Statistics(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 2, stats.Unresolved)
	assert.Equal(t, 1, stats.BySeverity[models.SeverityLow])
	assert.Equal(t, 0, stats.BySeverity[models.SeverityMedium])
	assert.Equal(t, 1, stats.BySeverity[models.SeverityHigh])
	assert.Equal(t, 1, stats.BySeverity[models.SeverityCritical])
	assert.Equal(t, 100-1-10, stats.HealthScore)

	empty, err := tracker.Statistics(ctx, "g3")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
	assert.Equal(t, 100, empty.HealthScore)
}

func TestHealthScoreFloor(t *testing.T) {
	assert.Equal(t, 100, healthScore(0))
	assert.Equal(t, 0, healthScore(250))
}

func ontology(t *testing.T) *graph.Memory {
	t.Helper()
	ex := func(s string) models.Term { return models.IRI("http://example.org/onto#" + s) }
	typ := models.IRI(models.RDFType)
	g, err := graph.NewMemoryFrom("onto", []models.Triple{
		models.NewTriple(ex("Person"), typ, models.IRI(models.OWLClass)),
		models.NewTriple(ex("Person"), models.IRI(models.RDFSLabel), models.Literal("Person")),
		models.NewTriple(ex("Person"), models.IRI(models.RDFSComment), models.Literal("A human.")),
		models.NewTriple(ex("postal_address"), typ, models.IRI(models.RDFSClass)),
		models.NewTriple(ex("postal_address"), models.IRI(models.RDFSLabel), models.Literal("Address")),
		models.NewTriple(ex("hasName"), typ, models.IRI(models.OWLDatatypeProperty)),
		models.NewTriple(ex("hasName"), models.IRI(models.RDFSLabel), models.Literal("has name")),
		models.NewTriple(ex("hasName"), models.IRI(models.RDFSComment), models.Literal("Full name.")),
		models.NewTriple(ex("Knows"), typ, models.IRI(models.OWLObjectProperty)),
	})
	require.NoError(t, err)
	return g
}

func TestChecker(t *testing.T) {
	findings, err := NewChecker().Check(context.Background(), ontology(t))
	require.NoError(t, err)

	got := map[string][]string{}
	for _, f := range findings {
		got[localName(f.Subject)] = append(got[localName(f.Subject)], f.Rule)
	}
	assert.Equal(t, map[string][]string{
		"Knows":          {RuleDocumentation, RuleDocumentationNote, RulePropertyNaming},
		"postal_address": {RuleClassNaming, RuleDocumentationNote},
	}, got)
}

func TestRecordFindingsSkipsOpenDuplicates(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(storage.NewMemory(), nil, nil)
	g := ontology(t)

	findings, err := NewChecker().Check(ctx, g)
	require.NoError(t, err)

	first, err := tracker.RecordFindings(ctx, g.ID(), findings)
	require.NoError(t, err)
	assert.Len(t, first, len(findings))

	second, err := tracker.RecordFindings(ctx, g.ID(), findings)
	require.NoError(t, err)
	assert.Empty(t, second)

	// a resolved finding that reappears is recorded again
	_, err = tracker.Resolve(ctx, first[0], "renamed")
	require.NoError(t, err)
	third, err := tracker.RecordFindings(ctx, g.ID(), findings)
	require.NoError(t, err)
	assert.Len(t, third, 1)

	history, err := tracker.History(ctx, g.ID())
	require.NoError(t, err)
	for _, v := range history {
		assert.Equal(t, models.RefGraph, v.Ref.Kind)
	}
}

func TestLocalNameAndCase(t *testing.T) {
	assert.Equal(t, "Thing", localName("http://www.w3.org/2002/07/owl#Thing"))
	assert.Equal(t, "Person", localName("https://schema.org/Person"))
	assert.Equal(t, "urn:x", localName("urn:x"))
	assert.True(t, isPascalCase("PostalAddress"))
	assert.False(t, isPascalCase("postalAddress"))
	assert.False(t, isPascalCase("Postal_Address"))
	assert.True(t, isCamelCase("hasName"))
	assert.False(t, isCamelCase("HasName"))
	assert.False(t, isCamelCase(""))
}

func TestAuditLoggerWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "conformance.jsonl")
	audit, err := NewAuditLogger(config.AuditConfig{Enabled: true, Path: path, BufferSize: 10})
	require.NoError(t, err)

	tracker := NewTracker(storage.NewMemory(), audit, nil)
	ctx := context.Background()
	id, err := tracker.Record(ctx, RecordRequest{Target: "g1", Ref: sporeRef("s1"), Label: "l", Type: "t", Severity: models.SeverityMedium})
	require.NoError(t, err)
	_, err = tracker.Resolve(ctx, id, "done")
	require.NoError(t, err)
	require.NoError(t, audit.LogIntegration("run-1", "applied", map[string]interface{}{"applied": 2}, nil))
	require.NoError(t, audit.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var ops []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry AuditEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		assert.NotEmpty(t, entry.ID)
		ops = append(ops, entry.OperationType)
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"record", "resolve", "integration"}, ops)
}

func TestAuditLoggerDisabled(t *testing.T) {
	audit, err := NewAuditLogger(config.AuditConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, audit.LogCheck("g1", 1, 1))
	assert.NoError(t, audit.Flush())
	assert.NoError(t, audit.Close())
}
