package accounting

import (
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Sync options and aggregates
// ---------------------------------------------------------------------------

// SyncOptions controls one orchestration run.
type SyncOptions struct {
	// Kinds restricts the run to specific entity kinds. Empty means every
	// kind the provider supports. Step execution order is fixed regardless of
	// the order given here.
	Kinds []EntityKind
	// Direction applies to every step: push, pull, or bidirectional.
	Direction SyncDirection
	// IDs restricts push steps to specific internal IDs per kind. Kinds
	// without an entry push all unsynced records for the tenant.
	IDs map[EntityKind][]uuid.UUID
	// Force re-executes remote operations even when a mapping already exists.
	Force bool
	// Since is the pull watermark; nil pulls the provider's default horizon.
	Since *time.Time
}

// SyncError is one itemized failure inside an aggregate result. It is a
// record, not an exception: a failing entity never aborts its batch.
type SyncError struct {
	EntityID string `json:"entity_id"`
	Message  string `json:"message"`
	Code     string `json:"code"`
}

// PushOutcome reports what happened to one pushed entity.
type PushOutcome string

const (
	PushOutcomePushed  PushOutcome = "PUSHED"
	PushOutcomeSkipped PushOutcome = "SKIPPED"
	PushOutcomeFailed  PushOutcome = "FAILED"
)

// PushResult is the aggregate outcome of a bulk push. Bulk operations always
// return counts plus itemized errors, never an all-or-nothing failure.
type PushResult struct {
	Kind    EntityKind  `json:"kind"`
	Pushed  int         `json:"pushed"`
	Skipped int         `json:"skipped"`
	Failed  int         `json:"failed"`
	Errors  []SyncError `json:"errors"`
}

// PullRecord describes one provider-side record encountered during a pull.
// Records that cannot be matched to an internal record are reported with
// Imported=false and a human-readable reason instead of being dropped.
type PullRecord struct {
	ExternalID string `json:"external_id"`
	Imported   bool   `json:"imported"`
	Reason     string `json:"reason,omitempty"`
}

// PullResult is the aggregate outcome of a pull step.
type PullResult struct {
	Kind     EntityKind   `json:"kind"`
	Imported int          `json:"imported"`
	Skipped  int          `json:"skipped"`
	Failed   int          `json:"failed"`
	Records  []PullRecord `json:"records"`
	Errors   []SyncError  `json:"errors"`
}

// SyncRunResult is the transient aggregate produced by one orchestration
// invocation. Success is true iff no step recorded an error.
type SyncRunResult struct {
	EntitiesSynced map[string]int `json:"entities_synced"`
	Errors         []SyncError    `json:"errors"`
	Success        bool           `json:"success"`
	CompletedAt    time.Time      `json:"completed_at"`
}

// StepOrder is the fixed, deterministic order entity-kind steps execute in,
// so aggregation keys are stable across runs.
var StepOrder = []EntityKind{EntityKindContact, EntityKindInvoice, EntityKindPayment, EntityKindBank}
