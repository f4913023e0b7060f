package models

import (
	"fmt"
	"time"
)

const (
	// Context is the JSON-LD context attached to persisted records.
	Context = "https://evalgo.org/mycelium/v1"

	PatchRecordType = "Patch"
	SporeRecordType = "Spore"
)

// PatchType classifies what kind of operations a patch may carry.
type PatchType string

const (
	PatchStructuralAdd    PatchType = "structural-add"
	PatchStructuralRemove PatchType = "structural-remove"
	PatchComposite        PatchType = "composite"
)

func (t PatchType) Valid() bool {
	switch t {
	case PatchStructuralAdd, PatchStructuralRemove, PatchComposite:
		return true
	default:
		return false
	}
}

// Allows reports whether an operation kind is permitted for the patch type.
func (t PatchType) Allows(k OperationKind) bool {
	switch t {
	case PatchStructuralAdd:
		return k == OpAdd
	case PatchStructuralRemove:
		return k == OpRemove
	case PatchComposite:
		return k.Valid()
	default:
		return false
	}
}

// ParsePatchType parses a patch type name.
func ParsePatchType(s string) (PatchType, error) {
	t := PatchType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown patch type %q", s)
	}
	return t, nil
}

// PatchStatus is the lifecycle state of a patch.
type PatchStatus string

const (
	StatusDraft    PatchStatus = "draft"
	StatusPending  PatchStatus = "pending"
	StatusApplied  PatchStatus = "applied"
	StatusFailed   PatchStatus = "failed"
	StatusReverted PatchStatus = "reverted"
)

func (s PatchStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApplied, StatusFailed, StatusReverted:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the lifecycle permits moving from s to next.
func (s PatchStatus) CanTransition(next PatchStatus) bool {
	switch s {
	case StatusDraft:
		return next == StatusPending
	case StatusPending:
		return next == StatusApplied || next == StatusFailed
	case StatusApplied:
		return next == StatusReverted || next == StatusFailed
	case StatusFailed:
		return next == StatusPending
	case StatusReverted:
		return next == StatusPending
	default:
		return false
	}
}

// ParsePatchStatus parses a status name.
func ParsePatchStatus(s string) (PatchStatus, error) {
	st := PatchStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown patch status %q", s)
	}
	return st, nil
}

type Patch struct {
	Context     string      `json:"@context" jsonld:"@context"`
	Type        string      `json:"@type" jsonld:"@type"`
	ID          string      `json:"@id" jsonld:"@id"`
	Kind        PatchType   `json:"patchType" jsonld:"patchType"`
	Target      string      `json:"target" jsonld:"target"`
	Label       string      `json:"label,omitempty" jsonld:"label"`
	Description string      `json:"description,omitempty" jsonld:"description"`
	Version     string      `json:"version,omitempty" jsonld:"version"`
	Operations  []Operation `json:"operations" jsonld:"operations"`
	BaseVersion string      `json:"baseVersion" jsonld:"baseVersion"`
	DependsOn   []string    `json:"dependsOn,omitempty" jsonld:"dependsOn"`
	Spore       string      `json:"spore,omitempty" jsonld:"spore"`
	Status      PatchStatus `json:"status" jsonld:"status"`
	// Effective holds the indices of operations that changed the graph on the last apply.
	Effective []int     `json:"effective"`
	CreatedAt time.Time `json:"dateCreated" jsonld:"dateCreated"`
	UpdatedAt time.Time `json:"dateModified" jsonld:"dateModified"`
}

// Clone returns a deep copy.
func (p *Patch) Clone() *Patch {
	if p == nil {
		return nil
	}
	c := *p
	c.Operations = append([]Operation(nil), p.Operations...)
	c.DependsOn = append([]string(nil), p.DependsOn...)
	if p.Effective != nil {
		c.Effective = append(make([]int, 0, len(p.Effective)), p.Effective...)
	}
	return &c
}

// DependsOnPatch reports whether id is a declared dependency.
func (p *Patch) DependsOnPatch(id string) bool {
	for _, d := range p.DependsOn {
		if d == id {
			return true
		}
	}
	return false
}
