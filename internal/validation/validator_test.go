package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mycelium/models"
)

func TestNew(t *testing.T) {
	v := New()
	assert.NotNil(t, v)
	assert.NotNil(t, v.structValidator)
	assert.NotNil(t, v.jsonldProcessor)
}

const validPatch = `{
	"@context": "https://evalgo.org/mycelium/v1",
	"@type": "Patch",
	"@id": "patch-1",
	"patchType": "structural-add",
	"target": "g1",
	"baseVersion": "sha256:abc",
	"operations": [
		{
			"op": "add",
			"triple": {
				"subject": {"termType": "iri", "value": "http://example.org/a"},
				"predicate": {"termType": "iri", "value": "http://example.org/p"},
				"object": {"termType": "literal", "value": "x"}
			}
		}
	]
}`

func TestValidatePatchDocument_Valid(t *testing.T) {
	result, p, err := New().ValidatePatchDocument([]byte(validPatch))
	require.NoError(t, err)
	assert.True(t, result.Valid, "%+v", result.Errors)
	require.NotNil(t, p)
	assert.Equal(t, "patch-1", p.ID)
	assert.Equal(t, models.PatchStructuralAdd, p.Kind)
	require.Len(t, p.Operations, 1)
	assert.Equal(t, models.OpAdd, p.Operations[0].Kind)
}

func TestValidatePatchDocument_MissingContext(t *testing.T) {
	doc := `{
		"@type": "Patch",
		"@id": "patch-1",
		"patchType": "composite",
		"target": "g1",
		"baseVersion": "v",
		"operations": [{"op": "add"}]
	}`
	result, p, err := New().ValidatePatchDocument([]byte(doc))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Nil(t, p)
	assert.True(t, hasField(result, "@context"), "Should have @context error")
}

func TestValidatePatchDocument_Fields(t *testing.T) {
	tests := []struct {
		name          string
		json          string
		expectedField string
	}{
		{
			name: "missing target",
			json: `{"@context": "https://evalgo.org/mycelium/v1", "@type": "Patch", "@id": "p",
				"patchType": "composite", "baseVersion": "v", "operations": [{"op": "add"}]}`,
			expectedField: "target",
		},
		{
			name: "unknown patch type",
			json: `{"@context": "https://evalgo.org/mycelium/v1", "@type": "Patch", "@id": "p",
				"patchType": "rename", "target": "g1", "baseVersion": "v", "operations": [{"op": "add"}]}`,
			expectedField: "patchType",
		},
		{
			name: "no operations",
			json: `{"@context": "https://evalgo.org/mycelium/v1", "@type": "Patch", "@id": "p",
				"patchType": "composite", "target": "g1", "baseVersion": "v", "operations": []}`,
			expectedField: "operations",
		},
		{
			name: "bad operation kind",
			json: `{"@context": "https://evalgo.org/mycelium/v1", "@type": "Patch", "@id": "p",
				"patchType": "composite", "target": "g1", "baseVersion": "v", "operations": [{"op": "upsert"}]}`,
			expectedField: "operations[0].op",
		},
		{
			name: "wrong type",
			json: `{"@context": "https://evalgo.org/mycelium/v1", "@type": "Spore", "@id": "p",
				"patchType": "composite", "target": "g1", "baseVersion": "v", "operations": [{"op": "add"}]}`,
			expectedField: "@type",
		},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _, err := v.ValidatePatchDocument([]byte(tt.json))
			require.NoError(t, err)
			assert.False(t, result.Valid)
			assert.True(t, hasField(result, tt.expectedField), "expected error on %s, got %+v", tt.expectedField, result.Errors)
		})
	}
}

func TestValidatePatchDocument_InvalidTriple(t *testing.T) {
	doc := `{
		"@context": "https://evalgo.org/mycelium/v1",
		"@type": "Patch",
		"@id": "patch-1",
		"patchType": "structural-add",
		"target": "g1",
		"baseVersion": "v",
		"operations": [{"op": "add", "triple": {
			"subject": {"termType": "literal", "value": "not a subject"},
			"predicate": {"termType": "iri", "value": "http://example.org/p"},
			"object": {"termType": "literal", "value": "x"}}}]
	}`
	result, p, err := New().ValidatePatchDocument([]byte(doc))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Nil(t, p)
	assert.True(t, hasField(result, "operations[0]"))
}

func TestValidatePatchDocument_InvalidJSON(t *testing.T) {
	result, _, err := New().ValidatePatchDocument([]byte(`{"@type": `))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, hasField(result, "document"))
}

func TestValidateSporeDocument(t *testing.T) {
	v := New()

	valid := `{
		"@context": "https://evalgo.org/mycelium/v1",
		"@type": "Spore",
		"@id": "spore-1",
		"conformanceLevel": "strict",
		"patches": ["p1", "p2"],
		"targets": ["g1"]
	}`
	result, s, err := v.ValidateSporeDocument([]byte(valid))
	require.NoError(t, err)
	assert.True(t, result.Valid, "%+v", result.Errors)
	require.NotNil(t, s)
	assert.Equal(t, models.LevelStrict, s.Level)
	assert.Equal(t, []string{"p1", "p2"}, s.Patches)

	invalid := `{
		"@context": "https://evalgo.org/mycelium/v1",
		"@type": "Spore",
		"@id": "spore-1",
		"conformanceLevel": "lenient",
		"patches": [],
		"targets": ["g1"]
	}`
	result, s, err = v.ValidateSporeDocument([]byte(invalid))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Nil(t, s)
	assert.True(t, hasField(result, "conformanceLevel"))
	assert.True(t, hasField(result, "patches"))
}

func hasField(r *Result, field string) bool {
	for _, e := range r.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}
