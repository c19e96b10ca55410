package accounting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// The persistence layer for business records lives outside this core; these
// are the narrow contracts it is reached through. Every lookup is scoped by
// tenant identifier.

var (
	ErrParentNotFound  = errors.New("accounting: parent not found")
	ErrInvoiceNotFound = errors.New("accounting: invoice not found")
	ErrPaymentNotFound = errors.New("accounting: payment not found")
)

// Parent is the billable contact for one or more enrolled children. It maps
// to a provider contact.
type Parent struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName returns the display name pushed to the provider.
func (p *Parent) FullName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// InvoiceLine is one fee line on an internal invoice, in cents.
type InvoiceLine struct {
	Description     string
	Quantity        int64
	UnitAmountCents int64
	AccountCode     string
}

// Invoice is an internal fee invoice, amounts in integer cents.
type Invoice struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	ParentID   uuid.UUID
	Number     string
	IssueDate  time.Time
	DueDate    time.Time
	TotalCents int64
	Status     string
	Lines      []InvoiceLine
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Payment is a receipt against an internal invoice, in cents.
type Payment struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	InvoiceID   uuid.UUID
	ParentID    uuid.UUID
	AmountCents int64
	PaidAt      time.Time
	Reference   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ParentRepository is the contact collaborator contract.
type ParentRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Parent, error)
	// FindByEmail returns ErrParentNotFound on a miss.
	FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*Parent, error)
	ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
	Save(ctx context.Context, parent *Parent) error
}

// InvoiceRepository is the invoice collaborator contract.
type InvoiceRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*Invoice, error)
	ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
	Save(ctx context.Context, invoice *Invoice) error
}

// PaymentRepository is the payment collaborator contract.
type PaymentRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)
	// FindByReference returns ErrPaymentNotFound on a miss.
	FindByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*Payment, error)
	ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
	Save(ctx context.Context, payment *Payment) error
}
