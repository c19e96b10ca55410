package xero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub003/internal/domain/accounting"
)

// maxResponseSize is the maximum allowed response size from the Xero API (10MB).
const maxResponseSize = 10 * 1024 * 1024

// defaultRetryAfter is used when a 429 arrives without a usable Retry-After header.
const defaultRetryAfter = 60 * time.Second

// Adapter implements the AccountingProvider port for Xero.
type Adapter struct {
	config      *Config
	httpClient  *http.Client
	connections accounting.ConnectionRepository
	logger      *zap.Logger
}

// Option is a functional option for configuring the adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) { a.httpClient = client }
}

// NewAdapter creates a Xero adapter. The connection repository supplies the
// per-tenant authorization for API calls and receives refreshed tokens.
func NewAdapter(config *Config, connections accounting.ConnectionRepository, opts ...Option) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	a := &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		connections: connections,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name returns the provider code.
func (a *Adapter) Name() string { return "xero" }

// Capabilities reports the entity kinds Xero supports.
func (a *Adapter) Capabilities() accounting.Capabilities {
	return accounting.Capabilities{
		Provider:         a.Name(),
		SupportsContacts: true,
		SupportsInvoices: true,
		SupportsPayments: true,
		SupportsBankFeed: true,
		SupportsJournals: true,
	}
}

// ---------------------------------------------------------------------------
// OAuth
// ---------------------------------------------------------------------------

// AuthorizeURL builds the consent URL for the authorization-code flow with a
// PKCE S256 challenge.
func (a *Adapter) AuthorizeURL(state, challenge string) string {
	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", a.config.ClientID)
	values.Set("redirect_uri", a.config.RedirectURI)
	values.Set("scope", strings.Join(a.config.Scopes, " "))
	values.Set("state", state)
	values.Set("code_challenge", challenge)
	values.Set("code_challenge_method", "S256")
	return a.config.AuthorizeURL + "?" + values.Encode()
}

// ExchangeCode swaps an authorization code for a token set and resolves the
// organisation the user authorized.
func (a *Adapter) ExchangeCode(ctx context.Context, code, verifier string) (*accounting.TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", a.config.RedirectURI)
	form.Set("code_verifier", verifier)

	tokens, err := a.requestToken(ctx, form)
	if err != nil {
		return nil, err
	}

	providerTenantID, err := a.resolveProviderTenant(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	return &accounting.TokenSet{
		AccessToken:      tokens.AccessToken,
		RefreshToken:     tokens.RefreshToken,
		ExpiresAt:        time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second),
		ProviderTenantID: providerTenantID,
	}, nil
}

// RefreshToken obtains a fresh token set from a refresh token.
func (a *Adapter) RefreshToken(ctx context.Context, refreshToken string) (*accounting.TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	tokens, err := a.requestToken(ctx, form)
	if err != nil {
		return nil, err
	}

	return &accounting.TokenSet{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second),
	}, nil
}

// requestToken posts to the token endpoint with client basic auth.
func (a *Adapter) requestToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("xero: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(a.config.ClientID, a.config.ClientSecret)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, accounting.NewNetworkError("token endpoint unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, accounting.NewNetworkError("failed to read token response", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
			resp.StatusCode == http.StatusBadRequest {
			// The identity endpoint reports bad codes and bad client
			// credentials alike as 400 invalid_grant.
			return nil, accounting.NewAuthenticationError("authorization code exchange rejected")
		}
		return nil, a.classifyStatus(resp.StatusCode, resp.Header, body)
	}

	var tokens tokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, accounting.NewServerError("malformed token response", err)
	}
	return &tokens, nil
}

// resolveProviderTenant returns the organisation id the fresh token grants
// access to.
func (a *Adapter) resolveProviderTenant(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.ConnectionsURL, nil)
	if err != nil {
		return "", fmt.Errorf("xero: failed to create connections request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", accounting.NewNetworkError("connections endpoint unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", accounting.NewNetworkError("failed to read connections response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", a.classifyStatus(resp.StatusCode, resp.Header, body)
	}

	var entries []connectionEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return "", accounting.NewServerError("malformed connections response", err)
	}
	if len(entries) == 0 {
		return "", accounting.NewAuthenticationError("token grants access to no organisation")
	}
	return entries[0].TenantID, nil
}

// ---------------------------------------------------------------------------
// Contacts
// ---------------------------------------------------------------------------

func (a *Adapter) CreateContact(ctx context.Context, tenantID uuid.UUID, contact *accounting.ProviderContact) (*accounting.ProviderContact, error) {
	payload := contactsEnvelope{Contacts: []wireContact{fromProviderContact(contact)}}

	body, err := a.doRequest(ctx, tenantID, http.MethodPost, "/Contacts", nil, payload)
	if err != nil {
		return nil, err
	}
	return firstContact(body)
}

func (a *Adapter) UpdateContact(ctx context.Context, tenantID uuid.UUID, contact *accounting.ProviderContact) (*accounting.ProviderContact, error) {
	if contact.ExternalID == "" {
		return nil, accounting.NewValidationError("contact update requires an external id")
	}
	payload := contactsEnvelope{Contacts: []wireContact{fromProviderContact(contact)}}

	body, err := a.doRequest(ctx, tenantID, http.MethodPost, "/Contacts/"+url.PathEscape(contact.ExternalID), nil, payload)
	if err != nil {
		return nil, err
	}
	return firstContact(body)
}

func (a *Adapter) FindContactByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*accounting.ProviderContact, error) {
	query := url.Values{}
	query.Set("where", fmt.Sprintf("EmailAddress==%q", email))

	body, err := a.doRequest(ctx, tenantID, http.MethodGet, "/Contacts", query, nil)
	if err != nil {
		return nil, err
	}

	var envelope contactsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, accounting.NewServerError("malformed contacts response", err)
	}
	if len(envelope.Contacts) == 0 {
		return nil, nil
	}
	c := toProviderContact(&envelope.Contacts[0])
	return &c, nil
}

func (a *Adapter) ListContactsSince(ctx context.Context, tenantID uuid.UUID, since *time.Time) ([]accounting.ProviderContact, error) {
	body, err := a.doRequestSince(ctx, tenantID, "/Contacts", since)
	if err != nil {
		return nil, err
	}

	var envelope contactsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, accounting.NewServerError("malformed contacts response", err)
	}

	out := make([]accounting.ProviderContact, 0, len(envelope.Contacts))
	for i := range envelope.Contacts {
		out = append(out, toProviderContact(&envelope.Contacts[i]))
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Invoices
// ---------------------------------------------------------------------------

func (a *Adapter) CreateInvoice(ctx context.Context, tenantID uuid.UUID, invoice *accounting.ProviderInvoice) (*accounting.ProviderInvoice, error) {
	payload := invoicesEnvelope{Invoices: []wireInvoice{fromProviderInvoice(invoice)}}

	body, err := a.doRequest(ctx, tenantID, http.MethodPost, "/Invoices", nil, payload)
	if err != nil {
		return nil, err
	}

	var envelope invoicesEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, accounting.NewServerError("malformed invoices response", err)
	}
	if len(envelope.Invoices) == 0 {
		return nil, accounting.NewServerError("invoice create returned no invoice", nil)
	}
	inv := toProviderInvoice(&envelope.Invoices[0])
	return &inv, nil
}

func (a *Adapter) FindInvoiceByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*accounting.ProviderInvoice, error) {
	query := url.Values{}
	query.Set("InvoiceNumbers", number)

	body, err := a.doRequest(ctx, tenantID, http.MethodGet, "/Invoices", query, nil)
	if err != nil {
		return nil, err
	}

	var envelope invoicesEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, accounting.NewServerError("malformed invoices response", err)
	}
	if len(envelope.Invoices) == 0 {
		return nil, nil
	}
	inv := toProviderInvoice(&envelope.Invoices[0])
	return &inv, nil
}

func (a *Adapter) ListInvoicesSince(ctx context.Context, tenantID uuid.UUID, since *time.Time) ([]accounting.ProviderInvoice, error) {
	body, err := a.doRequestSince(ctx, tenantID, "/Invoices", since)
	if err != nil {
		return nil, err
	}

	var envelope invoicesEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, accounting.NewServerError("malformed invoices response", err)
	}

	out := make([]accounting.ProviderInvoice, 0, len(envelope.Invoices))
	for i := range envelope.Invoices {
		out = append(out, toProviderInvoice(&envelope.Invoices[i]))
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Payments
// ---------------------------------------------------------------------------

func (a *Adapter) CreatePayment(ctx context.Context, tenantID uuid.UUID, payment *accounting.ProviderPayment) (*accounting.ProviderPayment, error) {
	payload := paymentsEnvelope{Payments: []wirePayment{{
		Invoice:   &wireInvoice{InvoiceID: payment.InvoiceExternalID},
		Amount:    payment.Amount,
		Date:      formatDate(payment.Date),
		Reference: payment.Reference,
	}}}

	body, err := a.doRequest(ctx, tenantID, http.MethodPut, "/Payments", nil, payload)
	if err != nil {
		return nil, err
	}

	var envelope paymentsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, accounting.NewServerError("malformed payments response", err)
	}
	if len(envelope.Payments) == 0 {
		return nil, accounting.NewServerError("payment create returned no payment", nil)
	}
	p := toProviderPayment(&envelope.Payments[0])
	return &p, nil
}

// ---------------------------------------------------------------------------
// Bank feed
// ---------------------------------------------------------------------------

func (a *Adapter) ListBankTransactions(ctx context.Context, tenantID uuid.UUID, since *time.Time) ([]accounting.BankTransaction, error) {
	body, err := a.doRequestSince(ctx, tenantID, "/BankTransactions", since)
	if err != nil {
		return nil, err
	}

	var envelope bankTransactionsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, accounting.NewServerError("malformed bank transactions response", err)
	}

	out := make([]accounting.BankTransaction, 0, len(envelope.BankTransactions))
	for _, tx := range envelope.BankTransactions {
		description := ""
		if len(tx.LineItems) > 0 {
			description = tx.LineItems[0].Description
		}
		out = append(out, accounting.BankTransaction{
			ExternalID:  tx.BankTransactionID,
			Amount:      tx.Total,
			Date:        parseDate(tx.Date),
			Description: description,
			Reference:   tx.Reference,
			Type:        tx.Type,
		})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Journals
// ---------------------------------------------------------------------------

// PostJournal posts a balanced manual journal. Debits become positive line
// amounts and credits negative ones, which is how Xero encodes the two sides.
func (a *Adapter) PostJournal(ctx context.Context, tenantID uuid.UUID, journal *accounting.Journal) (string, error) {
	if err := journal.Validate(); err != nil {
		return "", err
	}

	lines := make([]wireJournalLine, 0, len(journal.Lines))
	for _, line := range journal.Lines {
		amount := accounting.CentsToMajor(line.DebitCents)
		if line.CreditCents > 0 {
			amount = accounting.CentsToMajor(line.CreditCents).Neg()
		}
		lines = append(lines, wireJournalLine{
			Description: line.Description,
			LineAmount:  amount,
			AccountCode: line.AccountCode,
		})
	}

	payload := manualJournalsEnvelope{ManualJournals: []wireManualJournal{{
		Narration:    journal.Narration,
		Date:         formatDate(journal.Date),
		Status:       "POSTED",
		JournalLines: lines,
	}}}

	body, err := a.doRequest(ctx, tenantID, http.MethodPut, "/ManualJournals", nil, payload)
	if err != nil {
		return "", err
	}

	var envelope manualJournalsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", accounting.NewServerError("malformed manual journals response", err)
	}
	if len(envelope.ManualJournals) == 0 {
		return "", accounting.NewServerError("journal post returned no journal", nil)
	}
	return envelope.ManualJournals[0].ManualJournalID, nil
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// accessToken resolves the tenant's stored authorization, refreshing and
// persisting the token set when it is expired.
func (a *Adapter) accessToken(ctx context.Context, tenantID uuid.UUID) (token, providerTenantID string, err error) {
	conn, err := a.connections.Find(ctx, tenantID)
	if err != nil {
		return "", "", err
	}

	tokens := &accounting.TokenSet{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		ExpiresAt:    conn.ExpiresAt,
	}
	if !tokens.Expired(time.Now()) {
		return conn.AccessToken, conn.ProviderTenantID, nil
	}

	refreshed, err := a.RefreshToken(ctx, conn.RefreshToken)
	if err != nil {
		return "", "", err
	}

	conn.AccessToken = refreshed.AccessToken
	conn.RefreshToken = refreshed.RefreshToken
	conn.ExpiresAt = refreshed.ExpiresAt
	conn.UpdatedAt = time.Now()
	if err := a.connections.Save(ctx, conn); err != nil {
		// The refreshed token is still usable for this request even if
		// persisting it failed.
		a.logger.Warn("failed to persist refreshed token", zap.String("tenant_id", tenantID.String()), zap.Error(err))
	}

	return conn.AccessToken, conn.ProviderTenantID, nil
}

// doRequest performs an authorized accounting API request and classifies
// non-2xx responses into domain errors.
func (a *Adapter) doRequest(ctx context.Context, tenantID uuid.UUID, method, path string, query url.Values, payload any) ([]byte, error) {
	return a.do(ctx, tenantID, method, path, query, payload, nil)
}

// doRequestSince performs a GET with an If-Modified-Since header, which is how
// the accounting API scopes incremental listings.
func (a *Adapter) doRequestSince(ctx context.Context, tenantID uuid.UUID, path string, since *time.Time) ([]byte, error) {
	var header http.Header
	if since != nil {
		header = http.Header{}
		header.Set("If-Modified-Since", since.UTC().Format(http.TimeFormat))
	}
	return a.do(ctx, tenantID, http.MethodGet, path, nil, nil, header)
}

func (a *Adapter) do(ctx context.Context, tenantID uuid.UUID, method, path string, query url.Values, payload any, extra http.Header) ([]byte, error) {
	token, providerTenantID, err := a.accessToken(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("xero: failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	endpoint := a.config.APIBaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("xero: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Xero-Tenant-Id", providerTenantID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, accounting.NewNetworkError("accounting api unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, accounting.NewNetworkError("failed to read accounting api response", err)
	}

	if resp.StatusCode >= 400 {
		return nil, a.classifyStatus(resp.StatusCode, resp.Header, body)
	}
	return body, nil
}

// classifyStatus maps an HTTP failure to the domain error taxonomy.
func (a *Adapter) classifyStatus(status int, header http.Header, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return accounting.NewAuthenticationError("accounting api rejected the credentials")

	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		var envelope apiError
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
			return accounting.NewValidationError(envelope.Message, envelope.validationMessages()...)
		}
		return accounting.NewValidationError("accounting api rejected the request")

	case status == http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		if raw := header.Get("Retry-After"); raw != "" {
			if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return accounting.NewRateLimitError("accounting api rate limit reached", retryAfter)

	case status >= 500:
		return accounting.NewServerError(fmt.Sprintf("accounting api returned HTTP %d", status), nil)

	default:
		return accounting.NewServerError(fmt.Sprintf("unexpected accounting api status %d", status), nil)
	}
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

func fromProviderContact(c *accounting.ProviderContact) wireContact {
	wc := wireContact{
		ContactID:    c.ExternalID,
		Name:         c.Name,
		EmailAddress: c.Email,
	}
	if c.Phone != "" {
		wc.Phones = []wirePhone{{PhoneType: "MOBILE", PhoneNumber: c.Phone}}
	}
	return wc
}

func toProviderContact(wc *wireContact) accounting.ProviderContact {
	c := accounting.ProviderContact{
		ExternalID: wc.ContactID,
		Name:       wc.Name,
		Email:      wc.EmailAddress,
	}
	if len(wc.Phones) > 0 {
		c.Phone = wc.Phones[0].PhoneNumber
	}
	if wc.UpdatedDate != nil {
		c.UpdatedAt = *wc.UpdatedDate
	}
	return c
}

func firstContact(body []byte) (*accounting.ProviderContact, error) {
	var envelope contactsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, accounting.NewServerError("malformed contacts response", err)
	}
	if len(envelope.Contacts) == 0 {
		return nil, accounting.NewServerError("contact write returned no contact", nil)
	}
	c := toProviderContact(&envelope.Contacts[0])
	return &c, nil
}

func fromProviderInvoice(inv *accounting.ProviderInvoice) wireInvoice {
	wi := wireInvoice{
		InvoiceID:     inv.ExternalID,
		Type:          "ACCREC",
		InvoiceNumber: inv.Number,
		Date:          formatDate(inv.IssueDate),
		DueDate:       formatDate(inv.DueDate),
		Status:        "AUTHORISED",
	}
	if inv.ContactExternalID != "" {
		wi.Contact = &wireContact{ContactID: inv.ContactExternalID}
	}
	for _, line := range inv.Lines {
		wi.LineItems = append(wi.LineItems, wireLineItem{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitAmount:  line.UnitAmount,
			AccountCode: line.AccountCode,
		})
	}
	return wi
}

func toProviderInvoice(wi *wireInvoice) accounting.ProviderInvoice {
	inv := accounting.ProviderInvoice{
		ExternalID: wi.InvoiceID,
		Number:     wi.InvoiceNumber,
		IssueDate:  parseDate(wi.Date),
		DueDate:    parseDate(wi.DueDate),
		Total:      wi.Total,
		AmountDue:  wi.AmountDue,
		Status:     wi.Status,
	}
	if wi.Contact != nil {
		inv.ContactExternalID = wi.Contact.ContactID
		inv.ContactEmail = wi.Contact.EmailAddress
	}
	for _, line := range wi.LineItems {
		inv.Lines = append(inv.Lines, accounting.ProviderInvoiceLine{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitAmount:  line.UnitAmount,
			AccountCode: line.AccountCode,
		})
	}
	if wi.UpdatedDate != nil {
		inv.UpdatedAt = *wi.UpdatedDate
	}
	return inv
}

func toProviderPayment(wp *wirePayment) accounting.ProviderPayment {
	p := accounting.ProviderPayment{
		ExternalID: wp.PaymentID,
		Amount:     wp.Amount,
		Date:       parseDate(wp.Date),
		Reference:  wp.Reference,
	}
	if wp.Invoice != nil {
		p.InvoiceExternalID = wp.Invoice.InvoiceID
	}
	return p
}

// Ensure Adapter implements the AccountingProvider port.
var _ accounting.AccountingProvider = (*Adapter)(nil)
