package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseTerm(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Term
		wantErr bool
	}{
		{name: "angle IRI", input: "<http://example.org/a>", want: IRI("http://example.org/a")},
		{name: "bare IRI", input: "urn:thing:1", want: IRI("urn:thing:1")},
		{name: "blank node", input: "_:b0", want: Blank("b0")},
		{name: "plain literal", input: `"hello"`, want: Literal("hello")},
		{name: "language literal", input: `"hallo"@de`, want: LangLiteral("hallo", "de")},
		{name: "typed literal", input: `"5"^^<http://www.w3.org/2001/XMLSchema#integer>`, want: TypedLiteral("5", "http://www.w3.org/2001/XMLSchema#integer")},
		{name: "escaped quote", input: `"say \"hi\""`, want: Literal(`say "hi"`)},
		{name: "empty", input: "", wantErr: true},
		{name: "unterminated IRI", input: "<http://x", wantErr: true},
		{name: "bare word", input: "hello", wantErr: true},
		{name: "bad suffix", input: `"x"zz`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTerm(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTermUnmarshalYAML(t *testing.T) {
	doc := `
subject: <http://example.org/Person>
predicate: http://www.w3.org/2000/01/rdf-schema#label
object: "Person"
`
	var tr Triple
	require.NoError(t, yaml.Unmarshal([]byte(doc), &tr))
	assert.Equal(t, IRI("http://example.org/Person"), tr.Subject)
	assert.Equal(t, IRI("http://www.w3.org/2000/01/rdf-schema#label"), tr.Predicate)
	assert.Equal(t, Literal("Person"), tr.Object)

	mapping := `
subject: {kind: iri, value: "http://example.org/a"}
predicate: <http://example.org/p>
object: '"hallo"@de'
`
	require.NoError(t, yaml.Unmarshal([]byte(mapping), &tr))
	assert.Equal(t, IRI("http://example.org/a"), tr.Subject)
	assert.Equal(t, LangLiteral("hallo", "de"), tr.Object)

	var bad Triple
	assert.Error(t, yaml.Unmarshal([]byte("subject: hello\n"), &bad))
}

func TestTermString(t *testing.T) {
	assert.Equal(t, "<http://example.org/a>", IRI("http://example.org/a").String())
	assert.Equal(t, `"x"`, Literal("x").String())
	assert.Equal(t, `"x"@en`, LangLiteral("x", "en").String())
	assert.Equal(t, "_:n1", Blank("_:n1").String())
	assert.Equal(t, `"a\"b"`, Literal(`a"b`).String())

	// an untyped literal and an explicit xsd:string literal are the same term
	assert.Equal(t, Term{Kind: TermLiteral, Value: "x"}.String(), Literal("x").String())
}

func TestTripleValidate(t *testing.T) {
	ok := NewTriple(IRI("http://e.org/s"), IRI("http://e.org/p"), Literal("o"))
	assert.NoError(t, ok.Validate())

	literalSubject := NewTriple(Literal("s"), IRI("http://e.org/p"), Literal("o"))
	assert.Error(t, literalSubject.Validate())

	blankPredicate := NewTriple(IRI("http://e.org/s"), Blank("p"), Literal("o"))
	assert.Error(t, blankPredicate.Validate())

	emptyLiteral := NewTriple(IRI("http://e.org/s"), IRI("http://e.org/p"), Literal(""))
	assert.NoError(t, emptyLiteral.Validate())
}

func TestOperationInverse(t *testing.T) {
	tr := NewTriple(IRI("http://e.org/s"), IRI("http://e.org/p"), IRI("http://e.org/o"))
	assert.Equal(t, Remove(tr), Add(tr).Inverse())
	assert.Equal(t, Add(tr), Remove(tr).Inverse())
	assert.Error(t, Operation{Kind: "upsert", Triple: tr}.Validate())
}

func TestPatchStatusTransitions(t *testing.T) {
	allowed := map[PatchStatus][]PatchStatus{
		StatusDraft:    {StatusPending},
		StatusPending:  {StatusApplied, StatusFailed},
		StatusApplied:  {StatusReverted, StatusFailed},
		StatusFailed:   {StatusPending},
		StatusReverted: {StatusPending},
	}
	all := []PatchStatus{StatusDraft, StatusPending, StatusApplied, StatusFailed, StatusReverted}

	for from, targets := range allowed {
		for _, to := range all {
			want := false
			for _, a := range targets {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}

	assert.False(t, PatchStatus("archived").CanTransition(StatusPending))
	_, err := ParsePatchStatus("archived")
	assert.Error(t, err)
}

func TestPatchTypeAllows(t *testing.T) {
	assert.True(t, PatchStructuralAdd.Allows(OpAdd))
	assert.False(t, PatchStructuralAdd.Allows(OpRemove))
	assert.True(t, PatchStructuralRemove.Allows(OpRemove))
	assert.False(t, PatchStructuralRemove.Allows(OpAdd))
	assert.True(t, PatchComposite.Allows(OpAdd))
	assert.True(t, PatchComposite.Allows(OpRemove))
	assert.False(t, PatchType("bogus").Allows(OpAdd))
}

func TestConformanceLevelOrdering(t *testing.T) {
	assert.True(t, LevelStrict.AtLeast(LevelModerate))
	assert.True(t, LevelModerate.AtLeast(LevelRelaxed))
	assert.True(t, LevelRelaxed.AtLeast(LevelRelaxed))
	assert.False(t, LevelRelaxed.AtLeast(LevelStrict))
	assert.False(t, ConformanceLevel("lenient").Valid())
}

func TestPatchClone(t *testing.T) {
	p := &Patch{ID: "p1", DependsOn: []string{"a"}, Operations: []Operation{Add(NewTriple(IRI("u:s"), IRI("u:p"), IRI("u:o")))}}
	c := p.Clone()
	c.DependsOn[0] = "b"
	c.Operations[0].Kind = OpRemove
	assert.Equal(t, "a", p.DependsOn[0])
	assert.Equal(t, OpAdd, p.Operations[0].Kind)
	assert.True(t, p.DependsOnPatch("a"))
}

func TestSeverityWeight(t *testing.T) {
	prev := 0
	for _, s := range Severities {
		assert.Greater(t, s.Weight(), prev)
		prev = s.Weight()
	}
}
