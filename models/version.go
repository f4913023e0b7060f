package models

import "time"

type VersionOp string

// VersionFailedPartial links the version left behind by a patch that failed
// after some of its operations took effect. VersionImport links a wholesale
// graph replacement.
const (
	VersionApply         VersionOp = "apply"
	VersionRollback      VersionOp = "rollback"
	VersionFailedPartial VersionOp = "failed-partial"
	VersionImport        VersionOp = "import"
)

// VersionRecord is one link of a target's append-only version chain.
type VersionRecord struct {
	Sequence  int64     `json:"sequence"`
	Target    string    `json:"target"`
	Previous  string    `json:"previous"`
	Next      string    `json:"next"`
	PatchID   string    `json:"patchId,omitempty"`
	Operation VersionOp `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}
