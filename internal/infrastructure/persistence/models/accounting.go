package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Smashkat12/crechebooks-sub003/internal/domain/accounting"
)

// EntitySyncMappingModel is the persistence model for the EntitySyncMapping
// domain entity. The unique index on (tenant, kind, internal ID) backs the
// upsert that keeps pushes idempotent.
type EntitySyncMappingModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_sync_mapping_identity,priority:1"`
	EntityKind    string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_sync_mapping_identity,priority:2"`
	InternalID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_sync_mapping_identity,priority:3"`
	ExternalID    string    `gorm:"type:varchar(100);not null;index:idx_sync_mapping_external"`
	ExternalLabel string    `gorm:"type:varchar(255)"`
	Direction     string    `gorm:"type:varchar(20);not null"`
	LastSyncedAt  time.Time `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (EntitySyncMappingModel) TableName() string {
	return "entity_sync_mappings"
}

// ToDomain converts the persistence model to a domain EntitySyncMapping.
func (m *EntitySyncMappingModel) ToDomain() *accounting.EntitySyncMapping {
	return &accounting.EntitySyncMapping{
		ID:            m.ID,
		TenantID:      m.TenantID,
		EntityKind:    accounting.EntityKind(m.EntityKind),
		InternalID:    m.InternalID,
		ExternalID:    m.ExternalID,
		ExternalLabel: m.ExternalLabel,
		Direction:     accounting.SyncDirection(m.Direction),
		LastSyncedAt:  m.LastSyncedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain EntitySyncMapping.
func (m *EntitySyncMappingModel) FromDomain(e *accounting.EntitySyncMapping) {
	m.ID = e.ID
	m.TenantID = e.TenantID
	m.EntityKind = e.EntityKind.String()
	m.InternalID = e.InternalID
	m.ExternalID = e.ExternalID
	m.ExternalLabel = e.ExternalLabel
	m.Direction = e.Direction.String()
	m.LastSyncedAt = e.LastSyncedAt
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// EntitySyncMappingModelFromDomain creates a new persistence model from a domain mapping.
func EntitySyncMappingModelFromDomain(e *accounting.EntitySyncMapping) *EntitySyncMappingModel {
	m := &EntitySyncMappingModel{}
	m.FromDomain(e)
	return m
}

// ProviderConnectionModel is the persistence model for a tenant's provider
// authorization. One row per tenant.
type ProviderConnectionModel struct {
	TenantID         uuid.UUID `gorm:"type:uuid;primary_key"`
	Provider         string    `gorm:"type:varchar(50);not null"`
	ProviderTenantID string    `gorm:"type:varchar(100);not null"`
	AccessToken      string    `gorm:"type:text;not null"`
	RefreshToken     string    `gorm:"type:text;not null"`
	ExpiresAt        time.Time `gorm:"not null"`
	ConnectedAt      time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProviderConnectionModel) TableName() string {
	return "provider_connections"
}

// ToDomain converts the persistence model to a domain Connection.
func (m *ProviderConnectionModel) ToDomain() *accounting.Connection {
	return &accounting.Connection{
		TenantID:         m.TenantID,
		Provider:         m.Provider,
		ProviderTenantID: m.ProviderTenantID,
		AccessToken:      m.AccessToken,
		RefreshToken:     m.RefreshToken,
		ExpiresAt:        m.ExpiresAt,
		ConnectedAt:      m.ConnectedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// ProviderConnectionModelFromDomain creates a persistence model from a domain Connection.
func ProviderConnectionModelFromDomain(c *accounting.Connection) *ProviderConnectionModel {
	return &ProviderConnectionModel{
		TenantID:         c.TenantID,
		Provider:         c.Provider,
		ProviderTenantID: c.ProviderTenantID,
		AccessToken:      c.AccessToken,
		RefreshToken:     c.RefreshToken,
		ExpiresAt:        c.ExpiresAt,
		ConnectedAt:      c.ConnectedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// ParentModel is the persistence model for the Parent billing contact.
type ParentModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index:idx_parent_tenant"`
	FirstName string    `gorm:"type:varchar(100);not null"`
	LastName  string    `gorm:"type:varchar(100);not null"`
	Email     string    `gorm:"type:varchar(255);not null;index:idx_parent_email"`
	Phone     string    `gorm:"type:varchar(30)"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ParentModel) TableName() string {
	return "parents"
}

// ToDomain converts the persistence model to a domain Parent.
func (m *ParentModel) ToDomain() *accounting.Parent {
	return &accounting.Parent{
		ID:        m.ID,
		TenantID:  m.TenantID,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Email:     m.Email,
		Phone:     m.Phone,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ParentModelFromDomain creates a persistence model from a domain Parent.
func ParentModelFromDomain(p *accounting.Parent) *ParentModel {
	return &ParentModel{
		ID:        p.ID,
		TenantID:  p.TenantID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Phone:     p.Phone,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// InvoiceModel is the persistence model for an internal fee invoice. Line
// items are kept as a JSON document: they are read and written as a unit and
// never queried individually.
type InvoiceModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index:idx_invoice_tenant"`
	ParentID   uuid.UUID `gorm:"type:uuid;not null;index:idx_invoice_parent"`
	Number     string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_number"`
	IssueDate  time.Time `gorm:"not null"`
	DueDate    time.Time `gorm:"not null"`
	TotalCents int64     `gorm:"not null"`
	Status     string    `gorm:"type:varchar(20);not null"`
	LinesJSON  string    `gorm:"type:jsonb;column:lines"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *accounting.Invoice {
	inv := &accounting.Invoice{
		ID:         m.ID,
		TenantID:   m.TenantID,
		ParentID:   m.ParentID,
		Number:     m.Number,
		IssueDate:  m.IssueDate,
		DueDate:    m.DueDate,
		TotalCents: m.TotalCents,
		Status:     m.Status,
		Lines:      make([]accounting.InvoiceLine, 0),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.LinesJSON != "" {
		var lines []accounting.InvoiceLine
		if err := json.Unmarshal([]byte(m.LinesJSON), &lines); err == nil {
			inv.Lines = lines
		}
	}
	return inv
}

// InvoiceModelFromDomain creates a persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *accounting.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		ID:         inv.ID,
		TenantID:   inv.TenantID,
		ParentID:   inv.ParentID,
		Number:     inv.Number,
		IssueDate:  inv.IssueDate,
		DueDate:    inv.DueDate,
		TotalCents: inv.TotalCents,
		Status:     inv.Status,
		CreatedAt:  inv.CreatedAt,
		UpdatedAt:  inv.UpdatedAt,
	}
	if len(inv.Lines) > 0 {
		if raw, err := json.Marshal(inv.Lines); err == nil {
			m.LinesJSON = string(raw)
		}
	} else {
		m.LinesJSON = "[]"
	}
	return m
}

// PaymentModel is the persistence model for a receipt against an invoice.
type PaymentModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index:idx_payment_tenant"`
	InvoiceID   uuid.UUID `gorm:"type:uuid;not null;index:idx_payment_invoice"`
	ParentID    uuid.UUID `gorm:"type:uuid;not null"`
	AmountCents int64     `gorm:"not null"`
	PaidAt      time.Time `gorm:"not null"`
	Reference   string    `gorm:"type:varchar(100);index:idx_payment_reference"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *accounting.Payment {
	return &accounting.Payment{
		ID:          m.ID,
		TenantID:    m.TenantID,
		InvoiceID:   m.InvoiceID,
		ParentID:    m.ParentID,
		AmountCents: m.AmountCents,
		PaidAt:      m.PaidAt,
		Reference:   m.Reference,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// PaymentModelFromDomain creates a persistence model from a domain Payment.
func PaymentModelFromDomain(p *accounting.Payment) *PaymentModel {
	return &PaymentModel{
		ID:          p.ID,
		TenantID:    p.TenantID,
		InvoiceID:   p.InvoiceID,
		ParentID:    p.ParentID,
		AmountCents: p.AmountCents,
		PaidAt:      p.PaidAt,
		Reference:   p.Reference,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
