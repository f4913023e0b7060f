package graph

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mycelium/internal/storage"
	"evalgo.org/mycelium/models"
)

func triple(s, p, o string) models.Triple {
	return models.NewTriple(models.IRI("http://example.org/"+s), models.IRI("http://example.org/"+p), models.IRI("http://example.org/"+o))
}

func TestMemoryApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	g := NewMemory("g1")
	tr := triple("a", "knows", "b")

	changed, err := g.ApplyTriple(ctx, models.Add(tr))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = g.ApplyTriple(ctx, models.Add(tr))
	require.NoError(t, err)
	assert.False(t, changed, "re-adding a present triple is a no-op")

	changed, err = g.ApplyTriple(ctx, models.Remove(triple("x", "y", "z")))
	require.NoError(t, err)
	assert.False(t, changed, "removing an absent triple is a no-op")

	ok, err := g.Contains(ctx, tr)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, g.Len())
}

func TestMemoryRejectsInvalidTriple(t *testing.T) {
	g := NewMemory("g1")
	bad := models.NewTriple(models.Literal("s"), models.IRI("http://e.org/p"), models.Literal("o"))
	_, err := g.ApplyTriple(context.Background(), models.Add(bad))
	assert.Error(t, err)
}

func TestVersionIsContentDerived(t *testing.T) {
	ctx := context.Background()
	g := NewMemory("g1")
	empty, err := g.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(empty, "sha256:"))

	_, err = g.ApplyTriple(ctx, models.Add(triple("a", "p", "b")))
	require.NoError(t, err)
	v1, err := g.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, empty, v1)

	_, err = g.ApplyTriple(ctx, models.Remove(triple("a", "p", "b")))
	require.NoError(t, err)
	back, err := g.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, empty, back)

	// insertion order does not matter
	g1, err := NewMemoryFrom("x", []models.Triple{triple("a", "p", "b"), triple("c", "p", "d")})
	require.NoError(t, err)
	g2, err := NewMemoryFrom("y", []models.Triple{triple("c", "p", "d"), triple("a", "p", "b")})
	require.NoError(t, err)
	va, _ := g1.CurrentVersion(ctx)
	vb, _ := g2.CurrentVersion(ctx)
	assert.Equal(t, va, vb)
}

func TestLiteralsDistinguishDatatypeAndLanguage(t *testing.T) {
	ctx := context.Background()
	s, p := models.IRI("http://e.org/s"), models.IRI("http://e.org/p")
	g := NewMemory("g")
	for _, o := range []models.Term{models.Literal("1"), models.LangLiteral("1", "en"), models.TypedLiteral("1", "http://www.w3.org/2001/XMLSchema#integer")} {
		changed, err := g.ApplyTriple(ctx, models.Add(models.NewTriple(s, p, o)))
		require.NoError(t, err)
		assert.True(t, changed)
	}
	assert.Equal(t, 3, g.Len())
}

func TestNQuadsRoundTrip(t *testing.T) {
	ctx := context.Background()
	g, err := NewMemoryFrom("g", []models.Triple{
		triple("a", "p", "b"),
		models.NewTriple(models.IRI("http://example.org/a"), models.IRI("http://www.w3.org/2000/01/rdf-schema#label"), models.LangLiteral("Alpha", "en")),
		models.NewTriple(models.Blank("n0"), models.IRI("http://example.org/p"), models.Literal(`quoted "value"`)),
	})
	require.NoError(t, err)

	data, err := g.Serialize(ctx, FormatNQuads)
	require.NoError(t, err)

	parsed, err := ParseNQuads(data)
	require.NoError(t, err)
	g2, err := NewMemoryFrom("g2", parsed)
	require.NoError(t, err)

	v1, _ := g.CurrentVersion(ctx)
	v2, _ := g2.CurrentVersion(ctx)
	assert.Equal(t, v1, v2)
}

func TestJSONLDSerializeAndParse(t *testing.T) {
	ctx := context.Background()
	g, err := NewMemoryFrom("g", []models.Triple{
		models.NewTriple(models.IRI("http://example.org/a"), models.IRI("http://schema.org/name"), models.Literal("Alpha")),
	})
	require.NoError(t, err)

	data, err := g.Serialize(ctx, FormatJSONLD)
	require.NoError(t, err)
	assert.Contains(t, string(data), "http://example.org/a")

	var doc interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	triples, err := ParseJSONLD(doc)
	require.NoError(t, err)
	require.Len(t, triples, 1)
	assert.Equal(t, "Alpha", triples[0].Object.Value)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("json-ld")
	require.NoError(t, err)
	assert.Equal(t, FormatJSONLD, f)
	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatNQuads, f)
	_, err = ParseFormat("turtle")
	assert.Error(t, err)
}

func TestRegistryPersistAndRestore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	r1 := NewRegistry(store, nil)
	h, err := r1.Get(ctx, "g1")
	require.NoError(t, err)
	_, err = h.ApplyTriple(ctx, models.Add(triple("a", "p", "b")))
	require.NoError(t, err)
	require.NoError(t, r1.Persist(ctx, "g1"))
	want, _ := h.CurrentVersion(ctx)

	r2 := NewRegistry(store, nil)
	restored, err := r2.Get(ctx, "g1")
	require.NoError(t, err)
	got, _ := restored.CurrentVersion(ctx)
	assert.Equal(t, want, got)

	ids, err := r2.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, ids)

	_, err = r2.Get(ctx, "")
	assert.Error(t, err)
}

func TestRegistryRegisterExternalHandle(t *testing.T) {
	r := NewRegistry(nil, nil)
	ext := NewMemory("external")
	r.Register(ext)

	h, err := r.Get(context.Background(), "external")
	require.NoError(t, err)
	assert.Same(t, ext, h)
	assert.NoError(t, r.Persist(context.Background(), "external"))
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	src, err := NewMemoryFrom("src", []models.Triple{triple("a", "p", "b"), triple("b", "p", "c")})
	require.NoError(t, err)

	for _, format := range []Format{FormatNQuads, FormatJSONLD} {
		data, err := src.Serialize(ctx, format)
		require.NoError(t, err)
		loaded, err := Load("dst", format, data)
		require.NoError(t, err, format)
		assert.Equal(t, "dst", loaded.ID())
		assert.Equal(t, 2, loaded.Len(), format)
	}

	_, err = Load("dst", FormatJSONLD, []byte("{not json"))
	assert.Error(t, err)
	_, err = Decode("turtle", nil)
	assert.Error(t, err)
}
