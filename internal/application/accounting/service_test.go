package accounting

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smashkat12/crechebooks-sub003/internal/domain/accounting"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/cache"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/oauthstate"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

// passExecutor runs the operation directly; retry behavior has its own tests.
type passExecutor struct{}

func (passExecutor) Execute(ctx context.Context, _ string, op func(ctx context.Context) error) error {
	return op(ctx)
}

// fakeProvider counts remote calls so tests can assert idempotent pushes
// really skip the network.
type fakeProvider struct {
	createContactCalls int
	updateContactCalls int
	findByEmailCalls   int
	createInvoiceCalls int
	createPaymentCalls int
	postJournalCalls   int

	remoteContactsByEmail map[string]*accounting.ProviderContact
	listContacts          []accounting.ProviderContact
	listInvoices          []accounting.ProviderInvoice
	listBankTxs           []accounting.BankTransaction

	failContactNamed string
	nextID           int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{remoteContactsByEmail: make(map[string]*accounting.ProviderContact)}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Capabilities() accounting.Capabilities {
	return accounting.Capabilities{
		Provider:         "fake",
		SupportsContacts: true,
		SupportsInvoices: true,
		SupportsPayments: true,
		SupportsBankFeed: true,
		SupportsJournals: true,
	}
}

func (p *fakeProvider) AuthorizeURL(state, challenge string) string {
	return "https://provider.test/authorize?state=" + url.QueryEscape(state) + "&code_challenge=" + challenge
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code, verifier string) (*accounting.TokenSet, error) {
	if code != "good-code" {
		return nil, accounting.NewAuthenticationError("authorization code exchange rejected")
	}
	if verifier == "" {
		return nil, accounting.NewAuthenticationError("missing verifier")
	}
	return &accounting.TokenSet{
		AccessToken:      "access",
		RefreshToken:     "refresh",
		ExpiresAt:        time.Now().Add(30 * time.Minute),
		ProviderTenantID: "org-fake",
	}, nil
}

func (p *fakeProvider) RefreshToken(context.Context, string) (*accounting.TokenSet, error) {
	return &accounting.TokenSet{AccessToken: "access2", RefreshToken: "refresh2", ExpiresAt: time.Now().Add(30 * time.Minute)}, nil
}

func (p *fakeProvider) externalID(prefix string) string {
	p.nextID++
	return fmt.Sprintf("%s-%d", prefix, p.nextID)
}

func (p *fakeProvider) CreateContact(_ context.Context, _ uuid.UUID, contact *accounting.ProviderContact) (*accounting.ProviderContact, error) {
	p.createContactCalls++
	if contact.Name == p.failContactNamed {
		return nil, accounting.NewValidationError("contact rejected", "Email address must be valid.")
	}
	out := *contact
	out.ExternalID = p.externalID("contact")
	return &out, nil
}

func (p *fakeProvider) UpdateContact(_ context.Context, _ uuid.UUID, contact *accounting.ProviderContact) (*accounting.ProviderContact, error) {
	p.updateContactCalls++
	out := *contact
	return &out, nil
}

func (p *fakeProvider) FindContactByEmail(_ context.Context, _ uuid.UUID, email string) (*accounting.ProviderContact, error) {
	p.findByEmailCalls++
	return p.remoteContactsByEmail[email], nil
}

func (p *fakeProvider) ListContactsSince(context.Context, uuid.UUID, *time.Time) ([]accounting.ProviderContact, error) {
	return p.listContacts, nil
}

func (p *fakeProvider) CreateInvoice(_ context.Context, _ uuid.UUID, invoice *accounting.ProviderInvoice) (*accounting.ProviderInvoice, error) {
	p.createInvoiceCalls++
	out := *invoice
	if out.ExternalID == "" {
		out.ExternalID = p.externalID("invoice")
	}
	return &out, nil
}

func (p *fakeProvider) FindInvoiceByNumber(context.Context, uuid.UUID, string) (*accounting.ProviderInvoice, error) {
	return nil, nil
}

func (p *fakeProvider) ListInvoicesSince(context.Context, uuid.UUID, *time.Time) ([]accounting.ProviderInvoice, error) {
	return p.listInvoices, nil
}

func (p *fakeProvider) CreatePayment(_ context.Context, _ uuid.UUID, payment *accounting.ProviderPayment) (*accounting.ProviderPayment, error) {
	p.createPaymentCalls++
	out := *payment
	out.ExternalID = p.externalID("payment")
	return &out, nil
}

func (p *fakeProvider) ListBankTransactions(context.Context, uuid.UUID, *time.Time) ([]accounting.BankTransaction, error) {
	return p.listBankTxs, nil
}

func (p *fakeProvider) PostJournal(_ context.Context, _ uuid.UUID, _ *accounting.Journal) (string, error) {
	p.postJournalCalls++
	return p.externalID("journal"), nil
}

var _ accounting.AccountingProvider = (*fakeProvider)(nil)

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memConnectionRepo struct {
	conns map[uuid.UUID]*accounting.Connection
}

func newMemConnectionRepo() *memConnectionRepo {
	return &memConnectionRepo{conns: make(map[uuid.UUID]*accounting.Connection)}
}

func (r *memConnectionRepo) Find(_ context.Context, tenantID uuid.UUID) (*accounting.Connection, error) {
	conn, ok := r.conns[tenantID]
	if !ok {
		return nil, accounting.NewNotConnectedError(tenantID)
	}
	copied := *conn
	return &copied, nil
}

func (r *memConnectionRepo) Save(_ context.Context, conn *accounting.Connection) error {
	copied := *conn
	r.conns[conn.TenantID] = &copied
	return nil
}

func (r *memConnectionRepo) Delete(_ context.Context, tenantID uuid.UUID) error {
	delete(r.conns, tenantID)
	return nil
}

type mappingKey struct {
	tenantID   uuid.UUID
	kind       accounting.EntityKind
	internalID uuid.UUID
}

type memMappingRepo struct {
	rows map[mappingKey]*accounting.EntitySyncMapping
}

func newMemMappingRepo() *memMappingRepo {
	return &memMappingRepo{rows: make(map[mappingKey]*accounting.EntitySyncMapping)}
}

func (r *memMappingRepo) Find(_ context.Context, tenantID uuid.UUID, kind accounting.EntityKind, internalID uuid.UUID) (*accounting.EntitySyncMapping, error) {
	m, ok := r.rows[mappingKey{tenantID, kind, internalID}]
	if !ok {
		return nil, accounting.ErrMappingNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *memMappingRepo) FindByExternalID(_ context.Context, tenantID uuid.UUID, kind accounting.EntityKind, externalID string) (*accounting.EntitySyncMapping, error) {
	for _, m := range r.rows {
		if m.TenantID == tenantID && m.EntityKind == kind && m.ExternalID == externalID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, accounting.ErrMappingNotFound
}

func (r *memMappingRepo) Upsert(_ context.Context, mapping *accounting.EntitySyncMapping) error {
	if err := mapping.Validate(); err != nil {
		return err
	}
	copied := *mapping
	r.rows[mappingKey{mapping.TenantID, mapping.EntityKind, mapping.InternalID}] = &copied
	return nil
}

func (r *memMappingRepo) Delete(_ context.Context, tenantID uuid.UUID, kind accounting.EntityKind, internalID uuid.UUID) error {
	key := mappingKey{tenantID, kind, internalID}
	if _, ok := r.rows[key]; !ok {
		return accounting.ErrMappingNotFound
	}
	delete(r.rows, key)
	return nil
}

func (r *memMappingRepo) ListUnsyncedInternalIDs(_ context.Context, tenantID uuid.UUID, kind accounting.EntityKind, candidates []uuid.UUID) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(candidates))
	for _, id := range candidates {
		if _, ok := r.rows[mappingKey{tenantID, kind, id}]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

type memParentRepo struct {
	order   []uuid.UUID
	parents map[uuid.UUID]*accounting.Parent
}

func newMemParentRepo() *memParentRepo {
	return &memParentRepo{parents: make(map[uuid.UUID]*accounting.Parent)}
}

func (r *memParentRepo) add(p *accounting.Parent) {
	r.order = append(r.order, p.ID)
	r.parents[p.ID] = p
}

func (r *memParentRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*accounting.Parent, error) {
	p, ok := r.parents[id]
	if !ok || p.TenantID != tenantID {
		return nil, accounting.ErrParentNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *memParentRepo) FindByEmail(_ context.Context, tenantID uuid.UUID, email string) (*accounting.Parent, error) {
	for _, p := range r.parents {
		if p.TenantID == tenantID && p.Email == email {
			copied := *p
			return &copied, nil
		}
	}
	return nil, accounting.ErrParentNotFound
}

func (r *memParentRepo) ListIDs(_ context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(r.order))
	for _, id := range r.order {
		if r.parents[id].TenantID == tenantID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *memParentRepo) Save(_ context.Context, parent *accounting.Parent) error {
	if _, ok := r.parents[parent.ID]; !ok {
		r.order = append(r.order, parent.ID)
	}
	copied := *parent
	r.parents[parent.ID] = &copied
	return nil
}

type memInvoiceRepo struct {
	order    []uuid.UUID
	invoices map[uuid.UUID]*accounting.Invoice
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{invoices: make(map[uuid.UUID]*accounting.Invoice)}
}

func (r *memInvoiceRepo) add(inv *accounting.Invoice) {
	r.order = append(r.order, inv.ID)
	r.invoices[inv.ID] = inv
}

func (r *memInvoiceRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*accounting.Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return nil, accounting.ErrInvoiceNotFound
	}
	copied := *inv
	return &copied, nil
}

func (r *memInvoiceRepo) FindByNumber(_ context.Context, tenantID uuid.UUID, number string) (*accounting.Invoice, error) {
	for _, inv := range r.invoices {
		if inv.TenantID == tenantID && inv.Number == number {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, accounting.ErrInvoiceNotFound
}

func (r *memInvoiceRepo) ListIDs(_ context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(r.order))
	for _, id := range r.order {
		if r.invoices[id].TenantID == tenantID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *memInvoiceRepo) Save(_ context.Context, invoice *accounting.Invoice) error {
	if _, ok := r.invoices[invoice.ID]; !ok {
		r.order = append(r.order, invoice.ID)
	}
	copied := *invoice
	r.invoices[invoice.ID] = &copied
	return nil
}

type memPaymentRepo struct {
	order    []uuid.UUID
	payments map[uuid.UUID]*accounting.Payment
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{payments: make(map[uuid.UUID]*accounting.Payment)}
}

func (r *memPaymentRepo) add(p *accounting.Payment) {
	r.order = append(r.order, p.ID)
	r.payments[p.ID] = p
}

func (r *memPaymentRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*accounting.Payment, error) {
	p, ok := r.payments[id]
	if !ok || p.TenantID != tenantID {
		return nil, accounting.ErrPaymentNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *memPaymentRepo) FindByReference(_ context.Context, tenantID uuid.UUID, reference string) (*accounting.Payment, error) {
	for _, p := range r.payments {
		if p.TenantID == tenantID && p.Reference == reference {
			copied := *p
			return &copied, nil
		}
	}
	return nil, accounting.ErrPaymentNotFound
}

func (r *memPaymentRepo) ListIDs(_ context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(r.order))
	for _, id := range r.order {
		if r.payments[id].TenantID == tenantID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) Save(_ context.Context, payment *accounting.Payment) error {
	if _, ok := r.payments[payment.ID]; !ok {
		r.order = append(r.order, payment.ID)
	}
	copied := *payment
	r.payments[payment.ID] = &copied
	return nil
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	service  *SyncService
	provider *fakeProvider
	conns    *memConnectionRepo
	mappings *memMappingRepo
	parents  *memParentRepo
	invoices *memInvoiceRepo
	payments *memPaymentRepo
	tenantID uuid.UUID
}

const testStateSecret = "0123456789abcdef0123456789abcdef"

func newFixture(t *testing.T) *fixture {
	t.Helper()

	codec, err := oauthstate.NewCodec(testStateSecret)
	require.NoError(t, err)

	f := &fixture{
		provider: newFakeProvider(),
		conns:    newMemConnectionRepo(),
		mappings: newMemMappingRepo(),
		parents:  newMemParentRepo(),
		invoices: newMemInvoiceRepo(),
		payments: newMemPaymentRepo(),
		tenantID: uuid.New(),
	}
	f.service = NewSyncService(
		f.provider, f.conns, f.mappings, f.parents, f.invoices, f.payments,
		codec, cache.NewInMemoryPendingConnectionStore(), passExecutor{},
	)
	return f
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, f.conns.Save(context.Background(), &accounting.Connection{
		TenantID:         f.tenantID,
		Provider:         "fake",
		ProviderTenantID: "org-fake",
		AccessToken:      "access",
		RefreshToken:     "refresh",
		ExpiresAt:        time.Now().Add(time.Hour),
		ConnectedAt:      time.Now(),
	}))
}

func (f *fixture) addParent(t *testing.T, email string) *accounting.Parent {
	t.Helper()
	p := &accounting.Parent{
		ID:        uuid.New(),
		TenantID:  f.tenantID,
		FirstName: "Lerato",
		LastName:  "Mokoena",
		Email:     email,
		Phone:     "+27831112222",
	}
	f.parents.add(p)
	return p
}

func (f *fixture) addInvoice(t *testing.T, parentID uuid.UUID, number string) *accounting.Invoice {
	t.Helper()
	inv := &accounting.Invoice{
		ID:         uuid.New(),
		TenantID:   f.tenantID,
		ParentID:   parentID,
		Number:     number,
		IssueDate:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		DueDate:    time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC),
		TotalCents: 85050,
		Status:     "SENT",
		Lines: []accounting.InvoiceLine{
			{Description: "Monthly fees", Quantity: 1, UnitAmountCents: 85050, AccountCode: "200"},
		},
	}
	f.invoices.add(inv)
	return inv
}

// ---------------------------------------------------------------------------
// Connection lifecycle tests
// ---------------------------------------------------------------------------

func TestSyncService_ConnectAndCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	authorizeURL, err := f.service.Connect(ctx, f.tenantID, "/settings/accounting")
	require.NoError(t, err)

	parsed, err := url.Parse(authorizeURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)
	require.NotEmpty(t, parsed.Query().Get("code_challenge"))

	status, returnURL, err := f.service.HandleCallback(ctx, state, "good-code")
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, "fake", status.Provider)
	assert.Equal(t, "org-fake", status.ProviderTenantID)
	assert.Equal(t, "/settings/accounting", returnURL)

	conn, err := f.conns.Find(ctx, f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, "access", conn.AccessToken)
}

func TestSyncService_CallbackRejectsUnknownState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.service.HandleCallback(ctx, "not-a-real-token", "good-code")
	require.Error(t, err)
	assert.Equal(t, accounting.ErrorKindUnauthorizedState, accounting.KindOf(err))
}

func TestSyncService_CallbackRejectsSupersededFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.Connect(ctx, f.tenantID, "/a")
	require.NoError(t, err)
	_, err = f.service.Connect(ctx, f.tenantID, "/b")
	require.NoError(t, err)

	// The first flow's state no longer matches the pending record.
	firstState := urlQuery(t, first, "state")
	_, _, err = f.service.HandleCallback(ctx, firstState, "good-code")
	require.Error(t, err)
	assert.Equal(t, accounting.ErrorKindUnauthorizedState, accounting.KindOf(err))
}

func TestSyncService_CallbackIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	authorizeURL, err := f.service.Connect(ctx, f.tenantID, "/")
	require.NoError(t, err)
	state := urlQuery(t, authorizeURL, "state")

	_, _, err = f.service.HandleCallback(ctx, state, "good-code")
	require.NoError(t, err)

	_, _, err = f.service.HandleCallback(ctx, state, "good-code")
	require.Error(t, err, "a completed flow cannot be replayed")
	assert.Equal(t, accounting.ErrorKindUnauthorizedState, accounting.KindOf(err))
}

func TestSyncService_ConnectionStatusAndDisconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	status, err := f.service.GetConnectionStatus(ctx, f.tenantID)
	require.NoError(t, err)
	assert.False(t, status.Connected)

	f.connect(t)

	status, err = f.service.GetConnectionStatus(ctx, f.tenantID)
	require.NoError(t, err)
	assert.True(t, status.Connected)
	require.NotNil(t, status.TokenExpiresAt)

	require.NoError(t, f.service.Disconnect(ctx, f.tenantID))
	require.NoError(t, f.service.Disconnect(ctx, f.tenantID), "disconnect is idempotent")

	status, err = f.service.GetConnectionStatus(ctx, f.tenantID)
	require.NoError(t, err)
	assert.False(t, status.Connected)
}

func urlQuery(t *testing.T, raw, key string) string {
	t.Helper()
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	return parsed.Query().Get(key)
}

// ---------------------------------------------------------------------------
// Push tests
// ---------------------------------------------------------------------------

func TestSyncService_PushContact(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	ctx := context.Background()
	parent := f.addParent(t, "lerato@example.co.za")

	t.Run("first push creates the remote contact and a mapping", func(t *testing.T) {
		mapping, outcome, err := f.service.PushEntity(ctx, f.tenantID, accounting.EntityKindContact, parent.ID, false)
		require.NoError(t, err)
		assert.Equal(t, accounting.PushOutcomePushed, outcome)
		assert.NotEmpty(t, mapping.ExternalID)
		assert.Equal(t, 1, f.provider.createContactCalls)
	})

	t.Run("second push is skipped without touching the provider", func(t *testing.T) {
		remoteBefore := f.provider.createContactCalls + f.provider.updateContactCalls + f.provider.findByEmailCalls

		_, outcome, err := f.service.PushEntity(ctx, f.tenantID, accounting.EntityKindContact, parent.ID, false)
		require.NoError(t, err)
		assert.Equal(t, accounting.PushOutcomeSkipped, outcome)

		remoteAfter := f.provider.createContactCalls + f.provider.updateContactCalls + f.provider.findByEmailCalls
		assert.Equal(t, remoteBefore, remoteAfter, "a skipped push must not consume any remote call")
	})

	t.Run("force re-pushes as an update against the mapped external id", func(t *testing.T) {
		_, outcome, err := f.service.PushEntity(ctx, f.tenantID, accounting.EntityKindContact, parent.ID, true)
		require.NoError(t, err)
		assert.Equal(t, accounting.PushOutcomePushed, outcome)
		assert.Equal(t, 1, f.provider.updateContactCalls)
		assert.Equal(t, 1, f.provider.createContactCalls, "force must update, not create a duplicate")
	})
}

func TestSyncService_PushContactAdoptsExistingRemote(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	ctx := context.Background()

	parent := f.addParent(t, "existing@example.co.za")
	f.provider.remoteContactsByEmail["existing@example.co.za"] = &accounting.ProviderContact{
		ExternalID: "remote-77",
		Name:       "Existing Remote",
		Email:      "existing@example.co.za",
	}

	mapping, _, err := f.service.PushEntity(ctx, f.tenantID, accounting.EntityKindContact, parent.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "remote-77", mapping.ExternalID, "a remote contact with the same email is adopted")
	assert.Equal(t, 0, f.provider.createContactCalls)
	assert.Equal(t, 1, f.provider.updateContactCalls)
}

func TestSyncService_PushInvoicePushesContactFirst(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	ctx := context.Background()

	parent := f.addParent(t, "lerato@example.co.za")
	invoice := f.addInvoice(t, parent.ID, "INV-2026-001")

	mapping, _, err := f.service.PushEntity(ctx, f.tenantID, accounting.EntityKindInvoice, invoice.ID, false)
	require.NoError(t, err)
	assert.NotEmpty(t, mapping.ExternalID)
	assert.Equal(t, "INV-2026-001", mapping.ExternalLabel)
	assert.Equal(t, 1, f.provider.createContactCalls, "the parent contact is pushed first")
	assert.Equal(t, 1, f.provider.createInvoiceCalls)

	_, err = f.mappings.Find(ctx, f.tenantID, accounting.EntityKindContact, parent.ID)
	assert.NoError(t, err, "the implicit contact push records its own mapping")
}

func TestSyncService_PushRejectsBankKind(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	_, _, err := f.service.PushEntity(context.Background(), f.tenantID, accounting.EntityKindBank, uuid.New(), false)
	require.Error(t, err)
	assert.Equal(t, accounting.ErrorKindValidation, accounting.KindOf(err))
}

func TestSyncService_PushRequiresConnection(t *testing.T) {
	f := newFixture(t)
	parent := f.addParent(t, "x@example.co.za")

	_, _, err := f.service.PushEntity(context.Background(), f.tenantID, accounting.EntityKindContact, parent.ID, false)
	require.Error(t, err)
	assert.Equal(t, accounting.ErrorKindNotConnected, accounting.KindOf(err))
}

func TestSyncService_SyncEntityBulk(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	ctx := context.Background()

	good1 := f.addParent(t, "one@example.co.za")
	bad := f.addParent(t, "bad@example.co.za")
	bad.FirstName = "Broken"
	bad.LastName = "Record"
	good2 := f.addParent(t, "two@example.co.za")
	f.provider.failContactNamed = "Broken Record"

	result, err := f.service.SyncEntityBulk(ctx, f.tenantID, accounting.EntityKindContact, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pushed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, bad.ID.String(), result.Errors[0].EntityID)
	assert.Equal(t, string(accounting.ErrorKindValidation), result.Errors[0].Code)

	// The successes around the failure landed.
	for _, id := range []uuid.UUID{good1.ID, good2.ID} {
		_, err := f.mappings.Find(ctx, f.tenantID, accounting.EntityKindContact, id)
		assert.NoError(t, err)
	}

	t.Run("a second bulk run only picks up the unsynced record", func(t *testing.T) {
		f.provider.failContactNamed = ""
		result, err := f.service.SyncEntityBulk(ctx, f.tenantID, accounting.EntityKindContact, nil, false)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Pushed)
		assert.Equal(t, 0, result.Failed)
	})
}

// ---------------------------------------------------------------------------
// Pull tests
// ---------------------------------------------------------------------------

func TestSyncService_PullContacts(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	ctx := context.Background()

	matched := f.addParent(t, "known@example.co.za")
	f.provider.listContacts = []accounting.ProviderContact{
		{ExternalID: "c-1", Name: "Known Parent", Email: "known@example.co.za", Phone: "+27835556666"},
		{ExternalID: "c-2", Name: "Stranger", Email: "stranger@example.co.za"},
	}

	result, err := f.service.PullEntity(ctx, f.tenantID, accounting.EntityKindContact, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Records, 2)

	assert.True(t, result.Records[0].Imported)
	assert.False(t, result.Records[1].Imported)
	assert.Contains(t, result.Records[1].Reason, "stranger@example.co.za")

	updated, err := f.parents.FindByID(ctx, f.tenantID, matched.ID)
	require.NoError(t, err)
	assert.Equal(t, "+27835556666", updated.Phone)

	mapping, err := f.mappings.Find(ctx, f.tenantID, accounting.EntityKindContact, matched.ID)
	require.NoError(t, err)
	assert.Equal(t, "c-1", mapping.ExternalID)
	assert.Equal(t, accounting.SyncDirectionPull, mapping.Direction)
}

func TestSyncService_PullBankTransactions(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	ctx := context.Background()

	parent := f.addParent(t, "payer@example.co.za")
	invoice := f.addInvoice(t, parent.ID, "INV-2026-009")
	payment := &accounting.Payment{
		ID:          uuid.New(),
		TenantID:    f.tenantID,
		InvoiceID:   invoice.ID,
		ParentID:    parent.ID,
		AmountCents: 85050,
		PaidAt:      time.Now(),
		Reference:   "EFT-445",
	}
	f.payments.add(payment)

	f.provider.listBankTxs = []accounting.BankTransaction{
		{ExternalID: "bt-1", Amount: decimal.RequireFromString("850.50"), Reference: "EFT-445", Type: "RECEIVE"},
		{ExternalID: "bt-2", Amount: decimal.RequireFromString("120.00"), Reference: "UNKNOWN-REF", Type: "RECEIVE"},
	}

	result, err := f.service.PullEntity(ctx, f.tenantID, accounting.EntityKindBank, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	assert.False(t, result.Records[1].Imported)
	assert.Contains(t, result.Records[1].Reason, "UNKNOWN-REF")
}

func TestSyncService_PullRejectsPaymentKind(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	_, err := f.service.PullEntity(context.Background(), f.tenantID, accounting.EntityKindPayment, nil)
	require.Error(t, err)
	assert.Equal(t, accounting.ErrorKindValidation, accounting.KindOf(err))
}

// ---------------------------------------------------------------------------
// Journal tests
// ---------------------------------------------------------------------------

func TestSyncService_PostJournal(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	ctx := context.Background()

	journal := &accounting.Journal{
		Narration: "Monthly depreciation",
		Date:      time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		Lines: []accounting.JournalLine{
			{Description: "Depreciation expense", AccountCode: "416", DebitCents: 250000},
			{Description: "Accumulated depreciation", AccountCode: "710", CreditCents: 250000},
		},
	}

	id, err := f.service.PostJournal(ctx, f.tenantID, journal)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, f.provider.postJournalCalls)
}

func TestSyncService_PostJournalRejectsImbalanceBeforeNetwork(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	journal := &accounting.Journal{
		Narration: "broken",
		Lines: []accounting.JournalLine{
			{AccountCode: "416", DebitCents: 100},
			{AccountCode: "710", CreditCents: 50},
		},
	}

	_, err := f.service.PostJournal(context.Background(), f.tenantID, journal)
	require.Error(t, err)
	assert.Equal(t, accounting.ErrorKindValidation, accounting.KindOf(err))
	assert.True(t, strings.Contains(err.Error(), "100") && strings.Contains(err.Error(), "50"),
		"the imbalance message names both totals: %v", err)
	assert.Equal(t, 0, f.provider.postJournalCalls)
}
