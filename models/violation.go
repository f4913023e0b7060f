package models

import (
	"fmt"
	"time"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity from least to most severe.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// Weight is the health-score penalty of one open violation.
func (s Severity) Weight() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 3
	case SeverityHigh:
		return 5
	case SeverityCritical:
		return 10
	default:
		return 0
	}
}

// ParseSeverity parses a severity name.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.Valid() {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

type ViolationStatus string

const (
	ViolationOpen     ViolationStatus = "open"
	ViolationResolved ViolationStatus = "resolved"
)

func (s ViolationStatus) Valid() bool {
	switch s {
	case ViolationOpen, ViolationResolved:
		return true
	default:
		return false
	}
}

// RefKind names the entity a violation is about.
type RefKind string

const (
	RefSpore RefKind = "spore"
	RefPatch RefKind = "patch"
	RefGraph RefKind = "graph"
)

func (k RefKind) Valid() bool {
	switch k {
	case RefSpore, RefPatch, RefGraph:
		return true
	default:
		return false
	}
}

type EntityRef struct {
	Kind RefKind `json:"kind"`
	ID   string  `json:"id"`
}

func (r EntityRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

type Violation struct {
	ID         string          `json:"@id"`
	Target     string          `json:"target"`
	Ref        EntityRef       `json:"ref"`
	Label      string          `json:"label"`
	Detail     string          `json:"detail,omitempty"`
	Type       string          `json:"violationType"`
	Severity   Severity        `json:"severity"`
	Status     ViolationStatus `json:"status"`
	Resolution string          `json:"resolution,omitempty"`
	CreatedAt  time.Time       `json:"timestamp"`
	ResolvedAt *time.Time      `json:"resolvedAt,omitempty"`
}

// Clone returns a deep copy.
func (v *Violation) Clone() *Violation {
	if v == nil {
		return nil
	}
	c := *v
	if v.ResolvedAt != nil {
		t := *v.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}
