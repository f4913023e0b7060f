package applicator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mycelium/internal/graph"
	"evalgo.org/mycelium/internal/patch"
	"evalgo.org/mycelium/internal/storage"
	"evalgo.org/mycelium/models"
)

func tr(s, o string) models.Triple {
	return models.NewTriple(models.IRI("http://e.org/"+s), models.IRI("http://e.org/p"), models.Literal(o))
}

type fixture struct {
	backend storage.Store
	patches *patch.Store
	app     *Applicator
	graph   *graph.Memory
}

func newFixture(t *testing.T, seed ...models.Triple) *fixture {
	t.Helper()
	return newFixtureOn(t, storage.NewMemory(), seed...)
}

func newFixtureOn(t *testing.T, backend storage.Store, seed ...models.Triple) *fixture {
	t.Helper()
	patches := patch.NewStore(backend, nil)
	g, err := graph.NewMemoryFrom("g1", seed)
	require.NoError(t, err)
	return &fixture{backend: backend, patches: patches, app: New(patches, backend, nil), graph: g}
}

func (f *fixture) pending(t *testing.T, kind models.PatchType, ops ...models.Operation) *models.Patch {
	t.Helper()
	ctx := context.Background()
	base, err := f.graph.CurrentVersion(ctx)
	require.NoError(t, err)
	p, err := f.patches.Create(ctx, patch.CreateRequest{Kind: kind, Target: "g1", Operations: ops, BaseVersion: base})
	require.NoError(t, err)
	p, err = f.patches.Submit(ctx, p.ID)
	require.NoError(t, err)
	return p
}

func TestApplyThenRollbackRestoresGraph(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, tr("a", "1"), tr("b", "2"))

	before, err := f.graph.CurrentVersion(ctx)
	require.NoError(t, err)
	beforeTriples, err := f.graph.Triples(ctx)
	require.NoError(t, err)

	p := f.pending(t, models.PatchComposite,
		models.Add(tr("c", "3")),
		models.Remove(tr("a", "1")),
	)

	after, err := f.app.Apply(ctx, p.ID, f.graph)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	has, _ := f.graph.Contains(ctx, tr("c", "3"))
	assert.True(t, has)
	has, _ = f.graph.Contains(ctx, tr("a", "1"))
	assert.False(t, has)

	stored, err := f.patches.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApplied, stored.Status)
	assert.Equal(t, []int{0, 1}, stored.Effective)

	restored, err := f.app.Rollback(ctx, p.ID, f.graph)
	require.NoError(t, err)
	assert.Equal(t, before, restored)

	afterTriples, err := f.graph.Triples(ctx)
	require.NoError(t, err)
	assert.Equal(t, beforeTriples, afterTriples)

	stored, err = f.patches.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReverted, stored.Status)

	records, err := f.backend.ListVersionRecords(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.VersionApply, records[0].Operation)
	assert.Equal(t, before, records[0].Previous)
	assert.Equal(t, after, records[0].Next)
	assert.Equal(t, models.VersionRollback, records[1].Operation)
	assert.Equal(t, after, records[1].Previous)
	assert.Equal(t, before, records[1].Next)
}

func TestRollbackSkipsOperationsThatHadNoEffect(t *testing.T) {
	ctx := context.Background()
	// the triple is already present, so the add is a no-op
	f := newFixture(t, tr("a", "1"))
	before, _ := f.graph.CurrentVersion(ctx)

	p := f.pending(t, models.PatchStructuralAdd, models.Add(tr("a", "1")), models.Add(tr("b", "2")))
	_, err := f.app.Apply(ctx, p.ID, f.graph)
	require.NoError(t, err)

	stored, _ := f.patches.Get(ctx, p.ID)
	assert.Equal(t, []int{1}, stored.Effective)

	restored, err := f.app.Rollback(ctx, p.ID, f.graph)
	require.NoError(t, err)
	assert.Equal(t, before, restored)

	has, _ := f.graph.Contains(ctx, tr("a", "1"))
	assert.True(t, has, "pre-existing triple must survive rollback")
}

func TestRollbackOfNoopPatchKeepsGraph(t *testing.T) {
	ctx := context.Background()
	sqlite, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	for name, backend := range map[string]storage.Store{"memory": storage.NewMemory(), "sqlite": sqlite} {
		t.Run(name, func(t *testing.T) {
			f := newFixtureOn(t, backend, tr("a", "1"))
			before, _ := f.graph.CurrentVersion(ctx)

			// every operation is a no-op against the seeded graph
			p := f.pending(t, models.PatchStructuralAdd, models.Add(tr("a", "1")))
			applied, err := f.app.Apply(ctx, p.ID, f.graph)
			require.NoError(t, err)
			assert.Equal(t, before, applied)

			stored, err := f.patches.Get(ctx, p.ID)
			require.NoError(t, err)
			assert.NotNil(t, stored.Effective)
			assert.Empty(t, stored.Effective)

			restored, err := f.app.Rollback(ctx, p.ID, f.graph)
			require.NoError(t, err)
			assert.Equal(t, before, restored)

			has, _ := f.graph.Contains(ctx, tr("a", "1"))
			assert.True(t, has, "pre-existing triple must survive rollback")
			assert.Equal(t, 1, f.graph.Len())
		})
	}
}

func TestApplyStaleBaseVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.pending(t, models.PatchStructuralAdd, models.Add(tr("a", "1")))

	// move the graph on underneath the patch
	_, err := f.graph.ApplyTriple(ctx, models.Add(tr("z", "9")))
	require.NoError(t, err)
	moved, _ := f.graph.CurrentVersion(ctx)

	_, err = f.app.Apply(ctx, p.ID, f.graph)
	var cme *ConcurrentModificationError
	require.ErrorAs(t, err, &cme)
	assert.Equal(t, p.BaseVersion, cme.Expected)
	assert.Equal(t, moved, cme.Actual)

	now, _ := f.graph.CurrentVersion(ctx)
	assert.Equal(t, moved, now, "graph must be untouched")
	has, _ := f.graph.Contains(ctx, tr("a", "1"))
	assert.False(t, has)

	stored, _ := f.patches.Get(ctx, p.ID)
	assert.Equal(t, models.StatusFailed, stored.Status)

	records, _ := f.backend.ListVersionRecords(ctx, "g1")
	assert.Empty(t, records)
}

type failingHandle struct {
	graph.Handle
	failAt int
	calls  int
}

func (h *failingHandle) ApplyTriple(ctx context.Context, op models.Operation) (bool, error) {
	if h.calls == h.failAt {
		h.calls++
		return false, errors.New("disk full")
	}
	h.calls++
	return h.Handle.ApplyTriple(ctx, op)
}

func TestApplyFailurePartWay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.pending(t, models.PatchStructuralAdd,
		models.Add(tr("a", "1")),
		models.Add(tr("b", "2")),
		models.Add(tr("c", "3")),
	)

	h := &failingHandle{Handle: f.graph, failAt: 1}
	_, err := f.app.Apply(ctx, p.ID, h)
	var applyErr *ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Equal(t, 1, applyErr.Index)
	assert.False(t, applyErr.Rollback)
	assert.EqualError(t, errors.Unwrap(applyErr), "disk full")

	has, _ := f.graph.Contains(ctx, tr("a", "1"))
	assert.True(t, has, "operations before the failure stay applied")
	has, _ = f.graph.Contains(ctx, tr("c", "3"))
	assert.False(t, has)

	stored, _ := f.patches.Get(ctx, p.ID)
	assert.Equal(t, models.StatusFailed, stored.Status)

	current, _ := f.graph.CurrentVersion(ctx)
	assert.True(t, applyErr.Changed())
	assert.Equal(t, current, applyErr.Version)

	records, err := f.backend.ListVersionRecords(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.VersionFailedPartial, records[0].Operation)
	assert.Equal(t, p.BaseVersion, records[0].Previous)
	assert.Equal(t, current, records[0].Next)
	assert.Equal(t, p.ID, records[0].PatchID)
}

func TestApplyFailureKeepsVersionChain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := f.pending(t, models.PatchStructuralAdd, models.Add(tr("a", "1")))
	_, err := f.app.Apply(ctx, first.ID, f.graph)
	require.NoError(t, err)

	broken := f.pending(t, models.PatchStructuralAdd, models.Add(tr("b", "2")), models.Add(tr("c", "3")))
	_, err = f.app.Apply(ctx, broken.ID, &failingHandle{Handle: f.graph, failAt: 1})
	require.Error(t, err)

	next := f.pending(t, models.PatchStructuralAdd, models.Add(tr("d", "4")))
	_, err = f.app.Apply(ctx, next.ID, f.graph)
	require.NoError(t, err)

	records, err := f.backend.ListVersionRecords(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []models.VersionOp{models.VersionApply, models.VersionFailedPartial, models.VersionApply},
		[]models.VersionOp{records[0].Operation, records[1].Operation, records[2].Operation})
	for i := 1; i < len(records); i++ {
		assert.Equal(t, records[i-1].Next, records[i].Previous, "chain broken between record %d and %d", i-1, i)
	}
}

func TestApplyFailureAtFirstOperationRecordsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.pending(t, models.PatchStructuralAdd, models.Add(tr("a", "1")))

	_, err := f.app.Apply(ctx, p.ID, &failingHandle{Handle: f.graph, failAt: 0})
	var applyErr *ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.False(t, applyErr.Changed())

	records, err := f.backend.ListVersionRecords(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestApplyRequiresPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	base, _ := f.graph.CurrentVersion(ctx)
	p, err := f.patches.Create(ctx, patch.CreateRequest{
		Kind: models.PatchStructuralAdd, Target: "g1", BaseVersion: base,
		Operations: []models.Operation{models.Add(tr("a", "1"))},
	})
	require.NoError(t, err)

	_, err = f.app.Apply(ctx, p.ID, f.graph)
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = f.app.Rollback(ctx, p.ID, f.graph)
	assert.ErrorIs(t, err, ErrNotApplied)
}

func TestApplyTargetMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.pending(t, models.PatchStructuralAdd, models.Add(tr("a", "1")))

	_, err := f.app.Apply(ctx, p.ID, graph.NewMemory("other"))
	assert.ErrorIs(t, err, ErrTargetMismatch)

	stored, _ := f.patches.Get(ctx, p.ID)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestSequentialPatchesAdvanceVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	seen := map[string]bool{}
	v0, _ := f.graph.CurrentVersion(ctx)
	seen[v0] = true

	for _, s := range []string{"a", "b", "c"} {
		p := f.pending(t, models.PatchStructuralAdd, models.Add(tr(s, s)))
		v, err := f.app.Apply(ctx, p.ID, f.graph)
		require.NoError(t, err)
		assert.False(t, seen[v], "version %s repeated", v)
		seen[v] = true
	}

	records, err := f.backend.ListVersionRecords(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i := 1; i < len(records); i++ {
		assert.Equal(t, records[i-1].Next, records[i].Previous)
	}
}
