package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/piprate/json-gold/ld"

	"evalgo.org/mycelium/models"
)

const (
	defaultGraph = "@default"
	nquadsFormat = "application/n-quads"
)

func toNode(t models.Term) ld.Node {
	t = t.Normalize()
	switch t.Kind {
	case models.TermIRI:
		return ld.NewIRI(t.Value)
	case models.TermBlank:
		return ld.NewBlankNode("_:" + t.Value)
	default:
		return ld.NewLiteral(t.Value, t.Datatype, t.Language)
	}
}

func fromNode(n ld.Node) (models.Term, error) {
	switch v := n.(type) {
	case *ld.IRI:
		return models.IRI(v.Value), nil
	case *ld.BlankNode:
		return models.Blank(v.Attribute), nil
	case *ld.Literal:
		return models.Term{Kind: models.TermLiteral, Value: v.Value, Datatype: v.Datatype, Language: v.Language}.Normalize(), nil
	default:
		return models.Term{}, fmt.Errorf("unsupported RDF node %T", n)
	}
}

// toDataset places the triples in the default graph of a json-gold dataset.
func toDataset(triples []models.Triple) *ld.RDFDataset {
	ds := ld.NewRDFDataset()
	quads := make([]*ld.Quad, 0, len(triples))
	for _, t := range triples {
		quads = append(quads, ld.NewQuad(toNode(t.Subject), toNode(t.Predicate), toNode(t.Object), defaultGraph))
	}
	ds.Graphs[defaultGraph] = quads
	return ds
}

// fromDataset reads the default graph; named graphs are rejected.
func fromDataset(ds *ld.RDFDataset) ([]models.Triple, error) {
	var out []models.Triple
	for name, quads := range ds.Graphs {
		if name != defaultGraph && len(quads) > 0 {
			return nil, fmt.Errorf("named graph %q not supported", name)
		}
		for _, q := range quads {
			s, err := fromNode(q.Subject)
			if err != nil {
				return nil, err
			}
			p, err := fromNode(q.Predicate)
			if err != nil {
				return nil, err
			}
			o, err := fromNode(q.Object)
			if err != nil {
				return nil, err
			}
			out = append(out, models.NewTriple(s, p, o))
		}
	}
	return out, nil
}

// canonicalNQuads renders triples as sorted N-Quads lines.
func canonicalNQuads(triples []models.Triple) (string, error) {
	if len(triples) == 0 {
		return "", nil
	}
	serializer := &ld.NQuadRDFSerializer{}
	raw, err := serializer.Serialize(toDataset(triples))
	if err != nil {
		return "", fmt.Errorf("serialize n-quads: %w", err)
	}
	text, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("unexpected n-quads output %T", raw)
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n", nil
}

// Fingerprint is the version token for a triple set.
func Fingerprint(triples []models.Triple) (string, error) {
	text, err := canonicalNQuads(triples)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(text))
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// ParseNQuads decodes N-Quads text in the default graph.
func ParseNQuads(data []byte) ([]models.Triple, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	ds, err := ld.ParseNQuads(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse n-quads: %w", err)
	}
	return fromDataset(ds)
}

// ParseJSONLD expands a JSON-LD document to triples.
func ParseJSONLD(doc interface{}) ([]models.Triple, error) {
	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")
	opts.Format = nquadsFormat
	out, err := proc.ToRDF(doc, opts)
	if err != nil {
		return nil, fmt.Errorf("json-ld to rdf: %w", err)
	}
	text, ok := out.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected rdf output %T", out)
	}
	return ParseNQuads([]byte(text))
}

// toJSONLD converts triples to a JSON-LD document, compacted when context is non-nil.
func toJSONLD(triples []models.Triple, context interface{}) (interface{}, error) {
	text, err := canonicalNQuads(triples)
	if err != nil {
		return nil, err
	}
	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")
	opts.Format = nquadsFormat
	doc, err := proc.FromRDF(text, opts)
	if err != nil {
		return nil, fmt.Errorf("rdf to json-ld: %w", err)
	}
	if context == nil {
		return doc, nil
	}
	compacted, err := proc.Compact(doc, context, ld.NewJsonLdOptions(""))
	if err != nil {
		return nil, fmt.Errorf("compact json-ld: %w", err)
	}
	return compacted, nil
}

// Decode parses N-Quads or JSON-LD input into triples.
func Decode(format Format, data []byte) ([]models.Triple, error) {
	switch format {
	case FormatNQuads, "":
		return ParseNQuads(data)
	case FormatJSONLD:
		var doc interface{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode json-ld: %w", err)
		}
		return ParseJSONLD(doc)
	default:
		return nil, fmt.Errorf("unknown graph format %q", format)
	}
}

// Load builds a Memory graph from serialized input.
func Load(id string, format Format, data []byte) (*Memory, error) {
	triples, err := Decode(format, data)
	if err != nil {
		return nil, err
	}
	return NewMemoryFrom(id, triples)
}
