package models

import (
	"fmt"
	"time"
)

// ConformanceLevel orders how much checking a spore must pass.
type ConformanceLevel string

const (
	LevelRelaxed  ConformanceLevel = "relaxed"
	LevelModerate ConformanceLevel = "moderate"
	LevelStrict   ConformanceLevel = "strict"
)

func (l ConformanceLevel) Valid() bool {
	return l.rank() > 0
}

func (l ConformanceLevel) rank() int {
	switch l {
	case LevelRelaxed:
		return 1
	case LevelModerate:
		return 2
	case LevelStrict:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether l is as strict as other or stricter.
func (l ConformanceLevel) AtLeast(other ConformanceLevel) bool {
	return l.rank() >= other.rank()
}

// ParseConformanceLevel parses a level name.
func ParseConformanceLevel(s string) (ConformanceLevel, error) {
	l := ConformanceLevel(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown conformance level %q", s)
	}
	return l, nil
}

// Spore bundles patches under a conformance contract.
type Spore struct {
	Context     string           `json:"@context" jsonld:"@context"`
	Type        string           `json:"@type" jsonld:"@type"`
	ID          string           `json:"@id" jsonld:"@id"`
	Label       string           `json:"label,omitempty" jsonld:"label"`
	Description string           `json:"description,omitempty" jsonld:"description"`
	Version     string           `json:"version,omitempty" jsonld:"version"`
	Level       ConformanceLevel `json:"conformanceLevel" jsonld:"conformanceLevel"`
	Patches     []string         `json:"patches" jsonld:"patches"`
	Targets     []string         `json:"targets" jsonld:"targets"`
	// BaseVersions maps a target to the version token the spore was authored against.
	BaseVersions map[string]string `json:"baseVersions,omitempty" jsonld:"baseVersions"`
	CreatedAt    time.Time         `json:"dateCreated" jsonld:"dateCreated"`
}

// Clone returns a deep copy.
func (s *Spore) Clone() *Spore {
	if s == nil {
		return nil
	}
	c := *s
	c.Patches = append([]string(nil), s.Patches...)
	c.Targets = append([]string(nil), s.Targets...)
	if s.BaseVersions != nil {
		c.BaseVersions = make(map[string]string, len(s.BaseVersions))
		for k, v := range s.BaseVersions {
			c.BaseVersions[k] = v
		}
	}
	return &c
}

// HasTarget reports whether the spore declares target.
func (s *Spore) HasTarget(target string) bool {
	for _, t := range s.Targets {
		if t == target {
			return true
		}
	}
	return false
}
