// Package graph provides the target graphs patches are applied to.
//
// A Handle is the narrow mutation surface the engine needs: read the current
// version token, apply a single triple operation, and serialize. Memory is
// the bundled implementation; its version token is a SHA-256 fingerprint of
// the canonical N-Quads rendering of its triples, so two graphs with the same
// content always carry the same token.
package graph

import (
	"context"
	"fmt"

	"evalgo.org/mycelium/models"
)

// Format selects a serialization.
type Format string

const (
	FormatNQuads Format = "nquads"
	FormatJSONLD Format = "jsonld"
)

// ParseFormat maps a flag or file-extension style name to a Format.
// An empty name selects N-Quads.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatNQuads, "nq", "":
		return FormatNQuads, nil
	case FormatJSONLD, "json-ld", "json":
		return FormatJSONLD, nil
	default:
		return "", fmt.Errorf("unknown graph format %q", s)
	}
}

// Handle is a mutable triple set with a version token.
type Handle interface {
	// ID is the target identifier patches refer to.
	ID() string

	// CurrentVersion returns the opaque version token of the current content.
	CurrentVersion(ctx context.Context) (string, error)

	// ApplyTriple executes one add or remove. changed is false when the
	// operation was a no-op (adding a present triple, removing an absent one).
	ApplyTriple(ctx context.Context, op models.Operation) (changed bool, err error)

	Contains(ctx context.Context, t models.Triple) (bool, error)

	// Triples returns the content sorted by canonical key.
	Triples(ctx context.Context) ([]models.Triple, error)

	Serialize(ctx context.Context, format Format) ([]byte, error)
}
