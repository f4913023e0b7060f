package api

import (
	"evalgo.org/mycelium/internal/conformance"
	"evalgo.org/mycelium/internal/validation"
	"evalgo.org/mycelium/models"
)

// MessageResponse represents a simple message response.
type MessageResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// PatchesResponse represents a page of patches.
type PatchesResponse struct {
	Count   int             `json:"count"`
	Total   int             `json:"total"`
	Patches []*models.Patch `json:"patches"`
}

// SporesResponse represents a page of spores.
type SporesResponse struct {
	Count  int             `json:"count"`
	Total  int             `json:"total"`
	Spores []*models.Spore `json:"spores"`
}

// ViolationsResponse represents a page of violations.
type ViolationsResponse struct {
	Count      int                 `json:"count"`
	Total      int                 `json:"total"`
	Violations []*models.Violation `json:"violations"`
}

// VersionResponse carries the version token a graph holds after an operation.
type VersionResponse struct {
	Target  string `json:"target"`
	Version string `json:"version"`
}

// ApplyResponse is returned by apply and rollback.
type ApplyResponse struct {
	Patch   *models.Patch `json:"patch"`
	Version string        `json:"version"`
}

// RebaseRequest moves a failed or pending patch onto a new base version.
// An empty BaseVersion means the target's current version.
type RebaseRequest struct {
	BaseVersion string `json:"baseVersion"`
}

// MigrateRequest sets a spore's version label.
type MigrateRequest struct {
	Version  string `json:"version"`
	PinBases bool   `json:"pinBases"`
}

// BatchRequest names the spores of an integration or plan.
type BatchRequest struct {
	Spores []string `json:"spores"`
}

// PlanResponse lists the patch application waves of a batch.
type PlanResponse struct {
	Waves [][]string `json:"waves"`
}

// ValidationResponse wraps the per-target reports of one spore.
type ValidationResponse struct {
	Spore   string               `json:"spore"`
	Valid   bool                 `json:"valid"`
	Reports []*validation.Report `json:"reports"`
}

// DocumentErrorResponse is returned when a JSON-LD document fails validation.
type DocumentErrorResponse struct {
	Message string             `json:"message"`
	Result  *validation.Result `json:"result"`
}

// ResolveRequest closes a violation.
type ResolveRequest struct {
	Resolution string `json:"resolution"`
}

// ResolveResponse reports whether a resolve call changed the violation.
type ResolveResponse struct {
	ID      string `json:"id"`
	Changed bool   `json:"changed"`
}

// ConformanceResponse lists the findings of a conformance check and the
// violations they were recorded as.
type ConformanceResponse struct {
	Target     string                `json:"target"`
	Findings   []conformance.Finding `json:"findings"`
	Violations []string              `json:"violations"`
}

// HistoryResponse lists the version records of a target.
type HistoryResponse struct {
	Target  string                 `json:"target"`
	Records []models.VersionRecord `json:"records"`
}

// ArchiveResponse lists the archived snapshot versions of a target.
type ArchiveResponse struct {
	Target   string   `json:"target"`
	Versions []string `json:"versions"`
}
