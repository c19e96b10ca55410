package accounting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// EntitySyncMapping
// ---------------------------------------------------------------------------

var (
	ErrMappingInvalidTenantID   = errors.New("accounting: invalid tenant ID")
	ErrMappingInvalidInternalID = errors.New("accounting: invalid internal entity ID")
	ErrMappingInvalidExternalID = errors.New("accounting: invalid external entity ID")
	ErrMappingInvalidEntityKind = errors.New("accounting: invalid entity kind")
	ErrMappingNotFound          = errors.New("accounting: entity sync mapping not found")
)

// EntityKind identifies which class of record a mapping or sync step covers.
type EntityKind string

const (
	EntityKindContact EntityKind = "CONTACT"
	EntityKindInvoice EntityKind = "INVOICE"
	EntityKindPayment EntityKind = "PAYMENT"
	EntityKindBank    EntityKind = "BANK"
)

// IsValid returns true if the entity kind is known.
func (k EntityKind) IsValid() bool {
	switch k {
	case EntityKindContact, EntityKindInvoice, EntityKindPayment, EntityKindBank:
		return true
	default:
		return false
	}
}

func (k EntityKind) String() string { return string(k) }

// SyncDirection describes which way records flowed when a mapping was written.
type SyncDirection string

const (
	SyncDirectionPush SyncDirection = "PUSH"
	SyncDirectionPull SyncDirection = "PULL"
	SyncDirectionBoth SyncDirection = "BIDIRECTIONAL"
)

// IsValid returns true if the direction is known.
func (d SyncDirection) IsValid() bool {
	switch d {
	case SyncDirectionPush, SyncDirectionPull, SyncDirectionBoth:
		return true
	default:
		return false
	}
}

func (d SyncDirection) String() string { return string(d) }

// EntitySyncMapping records the correspondence between an internal record and
// its provider-assigned counterpart. (TenantID, EntityKind, InternalID) is
// unique; once written the mapping is reused on every later sync attempt
// unless the caller forces a re-sync. Deleting a mapping never touches the
// provider-side record.
type EntitySyncMapping struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	EntityKind EntityKind
	InternalID uuid.UUID
	ExternalID string
	// ExternalLabel is a human-readable provider reference, e.g. the invoice number.
	ExternalLabel string
	Direction     SyncDirection
	LastSyncedAt  time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewEntitySyncMapping creates a mapping after a first successful push or pull.
func NewEntitySyncMapping(
	tenantID uuid.UUID,
	kind EntityKind,
	internalID uuid.UUID,
	externalID string,
	direction SyncDirection,
) (*EntitySyncMapping, error) {
	if tenantID == uuid.Nil {
		return nil, ErrMappingInvalidTenantID
	}
	if !kind.IsValid() {
		return nil, ErrMappingInvalidEntityKind
	}
	if internalID == uuid.Nil {
		return nil, ErrMappingInvalidInternalID
	}
	if externalID == "" {
		return nil, ErrMappingInvalidExternalID
	}
	if !direction.IsValid() {
		direction = SyncDirectionPush
	}

	now := time.Now()
	return &EntitySyncMapping{
		ID:           uuid.New(),
		TenantID:     tenantID,
		EntityKind:   kind,
		InternalID:   internalID,
		ExternalID:   externalID,
		Direction:    direction,
		LastSyncedAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Touch records a successful re-sync against an existing mapping.
func (m *EntitySyncMapping) Touch(externalID, label string, direction SyncDirection) {
	if externalID != "" {
		m.ExternalID = externalID
	}
	if label != "" {
		m.ExternalLabel = label
	}
	if direction.IsValid() {
		m.Direction = direction
	}
	now := time.Now()
	m.LastSyncedAt = now
	m.UpdatedAt = now
}

// Validate checks the mapping invariants.
func (m *EntitySyncMapping) Validate() error {
	if m.TenantID == uuid.Nil {
		return ErrMappingInvalidTenantID
	}
	if !m.EntityKind.IsValid() {
		return ErrMappingInvalidEntityKind
	}
	if m.InternalID == uuid.Nil {
		return ErrMappingInvalidInternalID
	}
	if m.ExternalID == "" {
		return ErrMappingInvalidExternalID
	}
	return nil
}

// MappingRepository persists entity sync mappings, always tenant-scoped.
type MappingRepository interface {
	// Find returns the mapping for (tenant, kind, internal ID), or
	// ErrMappingNotFound.
	Find(ctx context.Context, tenantID uuid.UUID, kind EntityKind, internalID uuid.UUID) (*EntitySyncMapping, error)
	// FindByExternalID resolves a provider-assigned ID back to a mapping, or
	// ErrMappingNotFound.
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, kind EntityKind, externalID string) (*EntitySyncMapping, error)
	// Upsert writes the mapping, replacing any existing row for the same
	// (tenant, kind, internal ID) key. It never creates duplicates.
	Upsert(ctx context.Context, mapping *EntitySyncMapping) error
	// Delete removes the local mapping only; the provider record is untouched.
	Delete(ctx context.Context, tenantID uuid.UUID, kind EntityKind, internalID uuid.UUID) error
	// ListUnsyncedInternalIDs returns internal IDs of the given kind that have
	// no mapping yet, from the candidate set.
	ListUnsyncedInternalIDs(ctx context.Context, tenantID uuid.UUID, kind EntityKind, candidates []uuid.UUID) ([]uuid.UUID, error)
}
