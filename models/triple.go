package models

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	XSDString     = NamespaceXSD + "string"
	RDFLangString = NamespaceRDF + "langString"
)

// TermKind identifies the RDF term category of a Term.
type TermKind string

const (
	TermIRI     TermKind = "iri"
	TermLiteral TermKind = "literal"
	TermBlank   TermKind = "blank"
)

// Term is a single RDF node: an IRI, a literal, or a blank node.
type Term struct {
	Kind     TermKind `json:"termType" yaml:"kind"`
	Value    string   `json:"value" yaml:"value"`
	Datatype string   `json:"datatype,omitempty" yaml:"datatype,omitempty"`
	Language string   `json:"language,omitempty" yaml:"language,omitempty"`
}

// IRI returns a named node term.
func IRI(value string) Term {
	return Term{Kind: TermIRI, Value: value}
}

// Literal returns a plain string literal.
func Literal(value string) Term {
	return Term{Kind: TermLiteral, Value: value, Datatype: XSDString}
}

func TypedLiteral(value, datatype string) Term {
	return Term{Kind: TermLiteral, Value: value, Datatype: datatype}
}

func LangLiteral(value, language string) Term {
	return Term{Kind: TermLiteral, Value: value, Datatype: RDFLangString, Language: language}
}

func Blank(label string) Term {
	return Term{Kind: TermBlank, Value: strings.TrimPrefix(label, "_:")}
}

// Normalize fills implied literal datatypes so equal terms compare equal.
func (t Term) Normalize() Term {
	if t.Kind == TermLiteral {
		if t.Language != "" {
			t.Datatype = RDFLangString
		} else if t.Datatype == "" {
			t.Datatype = XSDString
		}
	}
	if t.Kind == TermBlank {
		t.Value = strings.TrimPrefix(t.Value, "_:")
	}
	return t
}

// String renders the term in N-Triples notation.
func (t Term) String() string {
	t = t.Normalize()
	switch t.Kind {
	case TermIRI:
		return "<" + t.Value + ">"
	case TermBlank:
		return "_:" + t.Value
	case TermLiteral:
		quoted := `"` + escapeLiteral(t.Value) + `"`
		if t.Language != "" {
			return quoted + "@" + t.Language
		}
		if t.Datatype != XSDString {
			return quoted + "^^<" + t.Datatype + ">"
		}
		return quoted
	default:
		return "?" + t.Value
	}
}

func escapeLiteral(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)
	return r.Replace(s)
}

// ParseTerm reads the compact notation used in manifests and the CLI:
// <iri>, _:label, "literal", "literal"@lang, "literal"^^<datatype>.
// A bare value containing a colon is taken as an IRI.
func ParseTerm(s string) (Term, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Term{}, fmt.Errorf("empty term")
	case strings.HasPrefix(s, "<"):
		if !strings.HasSuffix(s, ">") || len(s) < 3 {
			return Term{}, fmt.Errorf("unterminated IRI %q", s)
		}
		return IRI(s[1 : len(s)-1]), nil
	case strings.HasPrefix(s, "_:"):
		if len(s) == 2 {
			return Term{}, fmt.Errorf("blank node without label")
		}
		return Blank(s), nil
	case strings.HasPrefix(s, `"`):
		end := strings.LastIndex(s, `"`)
		if end == 0 {
			return Term{}, fmt.Errorf("unterminated literal %q", s)
		}
		value := strings.NewReplacer(`\"`, `"`, `\n`, "\n", `\r`, "\r", `\\`, `\`).Replace(s[1:end])
		rest := s[end+1:]
		switch {
		case rest == "":
			return Literal(value), nil
		case strings.HasPrefix(rest, "@"):
			return LangLiteral(value, rest[1:]), nil
		case strings.HasPrefix(rest, "^^<") && strings.HasSuffix(rest, ">"):
			return TypedLiteral(value, rest[3:len(rest)-1]), nil
		default:
			return Term{}, fmt.Errorf("invalid literal suffix %q", rest)
		}
	case strings.Contains(s, ":"):
		return IRI(s), nil
	default:
		return Term{}, fmt.Errorf("cannot parse term %q", s)
	}
}

// UnmarshalYAML accepts either the mapping form or the compact notation
// read by ParseTerm. A quoted YAML scalar not written in that notation is a
// plain literal.
func (t *Term) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		quoted := node.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0
		v := node.Value
		if quoted && !strings.HasPrefix(v, `"`) && !strings.HasPrefix(v, "<") && !strings.HasPrefix(v, "_:") {
			*t = Literal(v)
			return nil
		}
		parsed, err := ParseTerm(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*t = parsed
		return nil
	}
	type plain Term
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*t = Term(p)
	return nil
}

// Triple is a subject-predicate-object statement in the default graph.
type Triple struct {
	Subject   Term `json:"subject" yaml:"subject"`
	Predicate Term `json:"predicate" yaml:"predicate"`
	Object    Term `json:"object" yaml:"object"`
}

// NewTriple builds a triple from its three terms.
func NewTriple(subject, predicate, object Term) Triple {
	return Triple{Subject: subject, Predicate: predicate, Object: object}
}

// Normalize returns the triple with every term normalized.
func (t Triple) Normalize() Triple {
	return Triple{Subject: t.Subject.Normalize(), Predicate: t.Predicate.Normalize(), Object: t.Object.Normalize()}
}

// Key is the canonical N-Triples line for the statement, without the trailing dot.
func (t Triple) Key() string {
	return t.Subject.String() + " " + t.Predicate.String() + " " + t.Object.String()
}

func (t Triple) String() string {
	return t.Key() + " ."
}

// Validate enforces RDF positional rules.
func (t Triple) Validate() error {
	if t.Subject.Kind != TermIRI && t.Subject.Kind != TermBlank {
		return fmt.Errorf("subject must be an IRI or blank node, got %q", t.Subject.Kind)
	}
	if t.Predicate.Kind != TermIRI {
		return fmt.Errorf("predicate must be an IRI, got %q", t.Predicate.Kind)
	}
	switch t.Object.Kind {
	case TermIRI, TermBlank, TermLiteral:
	default:
		return fmt.Errorf("unknown object term kind %q", t.Object.Kind)
	}
	if t.Subject.Value == "" || t.Predicate.Value == "" {
		return fmt.Errorf("subject and predicate values are required")
	}
	if t.Object.Kind != TermLiteral && t.Object.Value == "" {
		return fmt.Errorf("object value is required")
	}
	return nil
}

// IRIs lists the IRI terms used in the triple.
func (t Triple) IRIs() []string {
	var out []string
	for _, term := range []Term{t.Subject, t.Predicate, t.Object} {
		if term.Kind == TermIRI {
			out = append(out, term.Value)
		}
	}
	return out
}

// OperationKind is the mutation a single Operation performs.
type OperationKind string

const (
	OpAdd    OperationKind = "add"
	OpRemove OperationKind = "remove"
)

func (k OperationKind) Valid() bool {
	switch k {
	case OpAdd, OpRemove:
		return true
	default:
		return false
	}
}

// Inverse swaps add and remove.
func (k OperationKind) Inverse() OperationKind {
	switch k {
	case OpAdd:
		return OpRemove
	case OpRemove:
		return OpAdd
	default:
		return k
	}
}

// Operation is one triple-level instruction inside a patch.
type Operation struct {
	Kind   OperationKind `json:"op" yaml:"op"`
	Triple Triple        `json:"triple" yaml:"triple"`
}

func Add(t Triple) Operation    { return Operation{Kind: OpAdd, Triple: t} }
func Remove(t Triple) Operation { return Operation{Kind: OpRemove, Triple: t} }

// Inverse returns the operation that undoes o.
func (o Operation) Inverse() Operation {
	return Operation{Kind: o.Kind.Inverse(), Triple: o.Triple}
}

// Validate checks the operation kind and its triple.
func (o Operation) Validate() error {
	if !o.Kind.Valid() {
		return fmt.Errorf("unknown operation %q", o.Kind)
	}
	return o.Triple.Validate()
}
