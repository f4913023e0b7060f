package conformance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"evalgo.org/mycelium/internal/graph"
	"evalgo.org/mycelium/models"
)

// Rule ids reported by Checker.
const (
	RuleClassNaming       = "CLASS_NAMING_001"
	RulePropertyNaming    = "PROPERTY_NAMING_001"
	RuleDocumentation     = "DOCUMENTATION_001"
	RuleDocumentationNote = "DOCUMENTATION_002"
)

// Finding is one rule hit on a graph subject.
type Finding struct {
	Rule     string          `json:"rule"`
	Severity models.Severity `json:"severity"`
	Subject  string          `json:"subject"`
	Message  string          `json:"message"`
}

// Checker inspects a graph's classes and properties for naming and
// documentation rules. It only reads.
type Checker struct{}

// NewChecker creates a checker with the naming and documentation rules.
func NewChecker() *Checker { return &Checker{} }

var (
	classTypes    = []string{models.OWLClass, models.RDFSClass}
	propertyTypes = []string{models.OWLObjectProperty, models.OWLDatatypeProperty, models.RDFProperty}
)

// Check returns the findings for target, sorted by subject then rule.
func (c *Checker) Check(ctx context.Context, target graph.Handle) ([]Finding, error) {
	triples, err := target.Triples(ctx)
	if err != nil {
		return nil, fmt.Errorf("read triples of %s: %w", target.ID(), err)
	}

	types := map[string]map[string]bool{}
	labelled := map[string]bool{}
	commented := map[string]bool{}
	for _, t := range triples {
		if t.Subject.Kind != models.TermIRI {
			continue
		}
		s := t.Subject.Value
		switch t.Predicate.Value {
		case models.RDFType:
			if t.Object.Kind == models.TermIRI {
				if types[s] == nil {
					types[s] = map[string]bool{}
				}
				types[s][t.Object.Value] = true
			}
		case models.RDFSLabel:
			labelled[s] = true
		case models.RDFSComment:
			commented[s] = true
		}
	}

	var findings []Finding
	for subject, ts := range types {
		name := localName(subject)
		if hasAny(ts, classTypes) {
			if !isPascalCase(name) {
				findings = append(findings, Finding{
					Rule:     RuleClassNaming,
					Severity: models.SeverityMedium,
					Subject:  subject,
					Message:  fmt.Sprintf("class name %q should be in PascalCase", name),
				})
			}
			findings = append(findings, documentation(subject, "class", labelled, commented)...)
		}
		if hasAny(ts, propertyTypes) {
			if !isCamelCase(name) {
				findings = append(findings, Finding{
					Rule:     RulePropertyNaming,
					Severity: models.SeverityMedium,
					Subject:  subject,
					Message:  fmt.Sprintf("property name %q should be in camelCase", name),
				})
			}
			findings = append(findings, documentation(subject, "property", labelled, commented)...)
		}
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Subject != findings[j].Subject {
			return findings[i].Subject < findings[j].Subject
		}
		return findings[i].Rule < findings[j].Rule
	})
	return findings, nil
}

func documentation(subject, what string, labelled, commented map[string]bool) []Finding {
	var out []Finding
	if !labelled[subject] {
		out = append(out, Finding{
			Rule:     RuleDocumentation,
			Severity: models.SeverityHigh,
			Subject:  subject,
			Message:  fmt.Sprintf("%s %s is missing an rdfs:label", what, subject),
		})
	}
	if !commented[subject] {
		out = append(out, Finding{
			Rule:     RuleDocumentationNote,
			Severity: models.SeverityLow,
			Subject:  subject,
			Message:  fmt.Sprintf("%s %s is missing an rdfs:comment", what, subject),
		})
	}
	return out
}

func hasAny(set map[string]bool, want []string) bool {
	for _, w := range want {
		if set[w] {
			return true
		}
	}
	return false
}

// localName is the part of an IRI after the last '#' or '/'.
func localName(iri string) string {
	if i := strings.LastIndexAny(iri, "#/"); i >= 0 && i < len(iri)-1 {
		return iri[i+1:]
	}
	return iri
}

func isPascalCase(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return r != utf8.RuneError && unicode.IsUpper(r) && !strings.ContainsAny(name, "_- ")
}

func isCamelCase(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return r != utf8.RuneError && unicode.IsLower(r) && !strings.ContainsAny(name, "_- ")
}
