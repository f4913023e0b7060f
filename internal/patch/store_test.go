package patch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mycelium/internal/storage"
	"evalgo.org/mycelium/models"
)

func addOp() models.Operation {
	return models.Add(models.NewTriple(models.IRI("http://e.org/s"), models.IRI("http://e.org/p"), models.Literal("o")))
}

func newStore() *Store {
	return NewStore(storage.NewMemory(), nil)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	p, err := s.Create(ctx, CreateRequest{
		Kind:       models.PatchStructuralAdd,
		Target:     "g1",
		Label:      "add thing",
		Operations: []models.Operation{addOp()},
		DependsOn:  []string{"b", "a", "b"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.StatusDraft, p.Status)
	assert.Equal(t, []string{"a", "b"}, p.DependsOn)
	assert.Equal(t, models.PatchRecordType, p.Type)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	remove := models.Remove(addOp().Triple)

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{name: "unknown type", req: CreateRequest{Kind: "rename", Target: "g", Operations: []models.Operation{addOp()}}},
		{name: "missing target", req: CreateRequest{Kind: models.PatchStructuralAdd, Operations: []models.Operation{addOp()}}},
		{name: "no operations", req: CreateRequest{Kind: models.PatchStructuralAdd, Target: "g"}},
		{name: "remove in add patch", req: CreateRequest{Kind: models.PatchStructuralAdd, Target: "g", Operations: []models.Operation{remove}}},
		{name: "add in remove patch", req: CreateRequest{Kind: models.PatchStructuralRemove, Target: "g", Operations: []models.Operation{addOp()}}},
		{name: "self dependency", req: CreateRequest{ID: "p1", Kind: models.PatchComposite, Target: "g", Operations: []models.Operation{addOp()}, DependsOn: []string{"p1"}}},
		{name: "empty dependency", req: CreateRequest{Kind: models.PatchComposite, Target: "g", Operations: []models.Operation{addOp()}, DependsOn: []string{""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newStore().Create(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPatch), "got %v", err)
		})
	}
}

func TestCreateDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	req := CreateRequest{ID: "p1", Kind: models.PatchComposite, Target: "g", Operations: []models.Operation{addOp()}}
	_, err := s.Create(ctx, req)
	require.NoError(t, err)
	_, err = s.Create(ctx, req)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	p, err := s.Create(ctx, CreateRequest{ID: "p1", Kind: models.PatchComposite, Target: "g", Operations: []models.Operation{addOp()}})
	require.NoError(t, err)

	_, err = s.Transition(ctx, "p1", models.StatusApplied)
	assert.ErrorIs(t, err, ErrInvalidTransition, "draft cannot be applied")

	p, err = s.Submit(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, p.Status)

	p, err = s.MarkApplied(ctx, p.ID, []int{0})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApplied, p.Status)
	assert.Equal(t, []int{0}, p.Effective)

	_, err = s.Rebase(ctx, p.ID, "sha256:new")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	p, err = s.Transition(ctx, p.ID, models.StatusReverted)
	require.NoError(t, err)

	p, err = s.Rebase(ctx, p.ID, "sha256:new")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, p.Status)
	assert.Equal(t, "sha256:new", p.BaseVersion)
	assert.Empty(t, p.Effective)

	_, err = s.Transition(ctx, p.ID, "archived")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.Submit(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListAndGetMany(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	for _, id := range []string{"c", "a", "b"} {
		_, err := s.Create(ctx, CreateRequest{ID: id, Kind: models.PatchComposite, Target: "g", Operations: []models.Operation{addOp()}})
		require.NoError(t, err)
	}

	all, err := s.List(ctx, storage.PatchFilter{Target: "g"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)

	many, err := s.GetMany(ctx, []string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, "c", many[0].ID)
	assert.Equal(t, "a", many[1].ID)

	_, err = s.GetMany(ctx, []string{"a", "zzz"})
	assert.Error(t, err)
}
