// Package mycelium is a versioned patch integration engine for RDF graphs.
//
// # Overview
//
// Mycelium applies patches to named RDF graphs and keeps a version chain for
// every graph. A patch lists triple additions and removals authored against
// a base version of one target graph. Spores group patches for integration:
// each spore is validated against its targets at a conformance level, the
// pending patches are ordered by their dependencies, and each patch is
// applied under a per-target lock.
//
// The system consists of these parts:
//   - Patch store: patch records and their status lifecycle
//   - Dependency resolver: topological ordering and cycle detection
//   - Patch applicator: version-checked apply and effective-op rollback
//   - Spore validator: relaxed, moderate and strict gate checks
//   - Integration coordinator: batches, target locks and outcomes
//   - Conformance tracker: violations, audit trail and health scores
//   - Graph handles: in-memory triple sets with content version tokens
//
// # Architecture
//
//	┌─────────────────┐       ┌─────────────────┐
//	│   mycelium CLI  │       │  Go API client  │
//	│    (Cobra)      │       │ (pkg/mycelium)  │
//	└────────┬────────┘       └────────┬────────┘
//	         │                ┌────────▼────────┐
//	         │                │  API Server     │
//	         │                │  (Echo REST)    │
//	         │                └────────┬────────┘
//	┌────────▼─────────────────────────▼────────┐
//	│                  Engine                   │
//	│  patches · resolver · applicator · gate   │
//	│  coordinator · conformance · graphs       │
//	└────────┬─────────────────────────┬────────┘
//	┌────────▼────────┐       ┌────────▼────────┐
//	│  Storage        │       │  Snapshot       │
//	│ (memory/sqlite/ │       │  archive        │
//	│  postgres)      │       │  (fs/S3)        │
//	└─────────────────┘       └─────────────────┘
//
// # Core Features
//
// Patches:
//   - Draft, pending, applied, failed and reverted states
//   - Base version checks reject concurrent modifications
//   - Rollback reverts only the operations that changed the graph
//   - Rebase moves a failed or pending patch onto a new base
//
// Spores and integration:
//   - Gate checks for patch status, metadata, namespaces and IRIs
//   - Dependency waves across spores, cycles reported with their members
//   - Applied, partial and rejected outcomes with per-patch states
//
// Conformance:
//   - Class and property naming and documentation rules
//   - Violations with severities, resolution and health scores
//   - JSONL audit trail and scheduled sweeps
//
// REST API:
//   - Patch, spore, integration, violation and graph endpoints
//   - JSON-LD document intake for patches and spores
//   - JWT and API key auth with reader, writer and admin roles
//   - WebSocket feed of engine events, Prometheus metrics, Swagger docs
//
// # Usage
//
// Start the API server:
//
//	mycelium server --config config.yaml
//
// Integrate a change set:
//
//	mycelium integrate release-1.yaml
//
// Inspect a graph:
//
//	mycelium graph history people
//	mycelium violations stats people
//
// # Configuration
//
// Configuration can be provided via:
//   - YAML file (config.yaml)
//   - Environment variables (MYC_ prefix)
//   - .env file
//
// Example configuration:
//
//	server:
//	  host: 0.0.0.0
//	  port: 8080
//	storage:
//	  driver: sqlite
//	  path: ./data/mycelium.db
//	engine:
//	  default_conformance: moderate
//	  namespaces:
//	    - http://example.org/
//
// # API Endpoints
//
// Patches:
//   - GET    /api/v1/patches               - List patches (paginated)
//   - POST   /api/v1/patches               - Create draft patch
//   - POST   /api/v1/patches/jsonld        - Create patch from JSON-LD
//   - GET    /api/v1/patches/:id           - Get patch by ID
//   - POST   /api/v1/patches/:id/submit    - Draft to pending
//   - POST   /api/v1/patches/:id/apply     - Apply one patch
//   - POST   /api/v1/patches/:id/rollback  - Revert an applied patch
//   - POST   /api/v1/patches/:id/rebase    - Move onto a new base version
//
// Spores and integration:
//   - GET    /api/v1/spores                - List spores
//   - POST   /api/v1/spores                - Create spore
//   - GET    /api/v1/spores/:id/validate   - Run gate checks
//   - POST   /api/v1/spores/:id/migrate    - Set spore version
//   - POST   /api/v1/integrate             - Integrate spores
//   - POST   /api/v1/plan                  - Dependency waves
//
// Violations and graphs:
//   - GET    /api/v1/violations            - Query violations
//   - POST   /api/v1/violations/:id/resolve - Resolve violation
//   - GET    /api/v1/graphs/:id/version    - Current version token
//   - GET    /api/v1/graphs/:id/history    - Version chain
//   - GET    /api/v1/graphs/:id/export     - N-Quads or JSON-LD
//   - PUT    /api/v1/graphs/:id            - Replace graph content
//   - GET    /api/v1/graphs/:id/report     - HTML violation report
//
// # Development
//
// Run tests:
//
//	go test ./...
//
// Build the binary:
//
//	go build -o mycelium ./cmd/mycelium
//
// # Technology Stack
//
//   - Echo v4 (Web framework)
//   - SQLite (modernc) and PostgreSQL (pgx)
//   - json-gold (JSON-LD processing)
//   - Templ (HTML reports)
//   - Cobra and Viper (CLI and configuration)
//   - Prometheus client (metrics)
package mycelium
