package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// AccountingProvider Port
// ---------------------------------------------------------------------------

// ErrProviderNotRegistered is returned by the registry for unknown provider names.
var ErrProviderNotRegistered = errors.New("accounting: provider not registered")

// Capabilities declares which entity kinds a provider can exchange. The
// orchestrator consults this instead of switching on vendor names.
type Capabilities struct {
	Provider         string `json:"provider"`
	SupportsContacts bool   `json:"supports_contacts"`
	SupportsInvoices bool   `json:"supports_invoices"`
	SupportsPayments bool   `json:"supports_payments"`
	SupportsBankFeed bool   `json:"supports_bank_feed"`
	SupportsJournals bool   `json:"supports_journals"`
}

// TokenSet is the provider authorization obtained from a code exchange or
// refresh. ProviderTenantID is the provider-side organisation identifier the
// tenant authorized access to.
type TokenSet struct {
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	ProviderTenantID string
}

// Expired reports whether the access token needs a refresh, with a small
// safety margin so a token never expires mid-request.
func (t *TokenSet) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt.Add(-30 * time.Second))
}

// ---------------------------------------------------------------------------
// Provider-side value objects (decimal major units at this boundary)
// ---------------------------------------------------------------------------

// ProviderContact is a contact record as the provider represents it.
type ProviderContact struct {
	ExternalID string
	Name       string
	Email      string
	Phone      string
	UpdatedAt  time.Time
}

// ProviderInvoiceLine is one line of a provider invoice. UnitAmount is in
// decimal major units (Rand).
type ProviderInvoiceLine struct {
	Description string
	Quantity    decimal.Decimal
	UnitAmount  decimal.Decimal
	AccountCode string
}

// ProviderInvoice is an invoice as the provider represents it.
type ProviderInvoice struct {
	ExternalID        string
	Number            string
	ContactExternalID string
	ContactEmail      string
	IssueDate         time.Time
	DueDate           time.Time
	Total             decimal.Decimal
	AmountDue         decimal.Decimal
	Status            string
	Lines             []ProviderInvoiceLine
	UpdatedAt         time.Time
}

// ProviderPayment is a payment applied to a provider invoice.
type ProviderPayment struct {
	ExternalID        string
	InvoiceExternalID string
	Amount            decimal.Decimal
	Date              time.Time
	Reference         string
}

// BankTransaction is one entry from the provider's bank feed.
type BankTransaction struct {
	ExternalID  string
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	Reference   string
	// Type is RECEIVE or SPEND.
	Type string
}

// AccountingProvider is the port every concrete accounting vendor adapter
// implements. It is defined in the domain layer; adapters live in the
// infrastructure layer and are selected once at startup.
//
// Lookup methods return (nil, nil) on a miss: an absent remote record means
// "create new", not a failure.
type AccountingProvider interface {
	// Name returns the provider code, e.g. "xero".
	Name() string

	// Capabilities reports which entity kinds this provider supports.
	Capabilities() Capabilities

	// AuthorizeURL builds the user-facing consent URL for the OAuth handshake.
	// state is the opaque encrypted state token; challenge is the S256 PKCE
	// code challenge derived from the verifier embedded in that state.
	AuthorizeURL(state, challenge string) string

	// ExchangeCode swaps an authorization code (plus the PKCE verifier) for a
	// token set scoped to the provider-side organisation.
	ExchangeCode(ctx context.Context, code, verifier string) (*TokenSet, error)

	// RefreshToken obtains a fresh token set from a refresh token.
	RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error)

	// Contacts
	CreateContact(ctx context.Context, tenantID uuid.UUID, contact *ProviderContact) (*ProviderContact, error)
	UpdateContact(ctx context.Context, tenantID uuid.UUID, contact *ProviderContact) (*ProviderContact, error)
	FindContactByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*ProviderContact, error)
	ListContactsSince(ctx context.Context, tenantID uuid.UUID, since *time.Time) ([]ProviderContact, error)

	// Invoices
	CreateInvoice(ctx context.Context, tenantID uuid.UUID, invoice *ProviderInvoice) (*ProviderInvoice, error)
	FindInvoiceByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*ProviderInvoice, error)
	ListInvoicesSince(ctx context.Context, tenantID uuid.UUID, since *time.Time) ([]ProviderInvoice, error)

	// Payments
	CreatePayment(ctx context.Context, tenantID uuid.UUID, payment *ProviderPayment) (*ProviderPayment, error)

	// Bank feed
	ListBankTransactions(ctx context.Context, tenantID uuid.UUID, since *time.Time) ([]BankTransaction, error)

	// Journals. Implementations whose Capabilities report
	// SupportsJournals=false may return a validation error.
	PostJournal(ctx context.Context, tenantID uuid.UUID, journal *Journal) (string, error)
}

// ProviderRegistry resolves the configured provider adapter by name. Business
// logic receives a single AccountingProvider at construction; the registry
// exists for wiring and capability discovery only.
type ProviderRegistry interface {
	Get(name string) (AccountingProvider, error)
	List() []AccountingProvider
}

// Registry is the map-backed ProviderRegistry used at wiring time. Register
// every adapter during startup before the first Get; it is not safe for
// concurrent mutation afterwards.
type Registry struct {
	providers map[string]AccountingProvider
	names     []string
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]AccountingProvider)}
}

// Register adds an adapter under its Name. Registering the same name again
// replaces the previous adapter.
func (r *Registry) Register(p AccountingProvider) {
	name := p.Name()
	if _, exists := r.providers[name]; !exists {
		r.names = append(r.names, name)
	}
	r.providers[name] = p
}

// Get resolves an adapter by name.
func (r *Registry) Get(name string) (AccountingProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, name)
	}
	return p, nil
}

// List returns the registered adapters in registration order.
func (r *Registry) List() []AccountingProvider {
	out := make([]AccountingProvider, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.providers[name])
	}
	return out
}

var _ ProviderRegistry = (*Registry)(nil)

// ---------------------------------------------------------------------------
// Connection
// ---------------------------------------------------------------------------

// Connection is a tenant's stored provider authorization.
type Connection struct {
	TenantID         uuid.UUID
	Provider         string
	ProviderTenantID string
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	ConnectedAt      time.Time
	UpdatedAt        time.Time
}

// ConnectionStatus is the controller-facing view of a tenant's connection.
type ConnectionStatus struct {
	Connected        bool       `json:"connected"`
	Provider         string     `json:"provider,omitempty"`
	ProviderTenantID string     `json:"provider_tenant_id,omitempty"`
	ConnectedAt      *time.Time `json:"connected_at,omitempty"`
	TokenExpiresAt   *time.Time `json:"token_expires_at,omitempty"`
}

// ConnectionRepository persists tenant provider authorizations.
// Find returns a NOT_CONNECTED domain error when no connection exists.
type ConnectionRepository interface {
	Find(ctx context.Context, tenantID uuid.UUID) (*Connection, error)
	Save(ctx context.Context, conn *Connection) error
	Delete(ctx context.Context, tenantID uuid.UUID) error
}
