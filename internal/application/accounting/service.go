// Package accounting is the application layer for the external accounting
// synchronization. It owns the OAuth handshake, single-entity push/pull,
// bulk sync and journal posting, delegating remote calls to the provider
// adapter through the rate-limited retry executor.
package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub003/internal/domain/accounting"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/cache"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/oauthstate"
)

// DefaultPendingTTL bounds how long a started connect flow stays claimable.
// It matches the state token's max age.
const DefaultPendingTTL = oauthstate.DefaultMaxAge

// RemoteExecutor runs one provider call under rate limiting and retry. It is
// satisfied by *retry.Executor.
type RemoteExecutor interface {
	Execute(ctx context.Context, tenantKey string, op func(ctx context.Context) error) error
}

// SyncService coordinates the provider connection lifecycle and entity
// synchronization for one configured accounting provider.
type SyncService struct {
	provider    accounting.AccountingProvider
	connections accounting.ConnectionRepository
	mappings    accounting.MappingRepository
	parents     accounting.ParentRepository
	invoices    accounting.InvoiceRepository
	payments    accounting.PaymentRepository
	codec       *oauthstate.Codec
	pending     cache.PendingConnectionStore
	executor    RemoteExecutor
	logger      *zap.Logger

	stateMaxAge time.Duration
	pendingTTL  time.Duration
}

// SyncServiceOption is a functional option for configuring the service.
type SyncServiceOption func(*SyncService)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) SyncServiceOption {
	return func(s *SyncService) { s.logger = logger }
}

// WithStateMaxAge overrides how long an issued state token stays valid.
func WithStateMaxAge(d time.Duration) SyncServiceOption {
	return func(s *SyncService) {
		if d > 0 {
			s.stateMaxAge = d
			s.pendingTTL = d
		}
	}
}

// NewSyncService creates the accounting sync service.
func NewSyncService(
	provider accounting.AccountingProvider,
	connections accounting.ConnectionRepository,
	mappings accounting.MappingRepository,
	parents accounting.ParentRepository,
	invoices accounting.InvoiceRepository,
	payments accounting.PaymentRepository,
	codec *oauthstate.Codec,
	pending cache.PendingConnectionStore,
	executor RemoteExecutor,
	opts ...SyncServiceOption,
) *SyncService {
	s := &SyncService{
		provider:    provider,
		connections: connections,
		mappings:    mappings,
		parents:     parents,
		invoices:    invoices,
		payments:    payments,
		codec:       codec,
		pending:     pending,
		executor:    executor,
		logger:      zap.NewNop(),
		stateMaxAge: oauthstate.DefaultMaxAge,
		pendingTTL:  DefaultPendingTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCapabilities reports what the configured provider supports.
func (s *SyncService) GetCapabilities() accounting.Capabilities {
	return s.provider.Capabilities()
}

// ---------------------------------------------------------------------------
// Connection lifecycle
// ---------------------------------------------------------------------------

// Connect starts the OAuth handshake for a tenant. It returns the provider
// consent URL the caller should redirect the user to. Starting a new flow
// replaces any pending one for the same tenant.
func (s *SyncService) Connect(ctx context.Context, tenantID uuid.UUID, returnURL string) (string, error) {
	if tenantID == uuid.Nil {
		return "", accounting.NewValidationError("tenant id is required")
	}

	verifier, err := oauthstate.GenerateCodeVerifier()
	if err != nil {
		return "", fmt.Errorf("connect: %w", err)
	}

	state, err := s.codec.Encode(oauthstate.Payload{
		TenantID:     tenantID,
		ReturnURL:    returnURL,
		CodeVerifier: verifier,
	})
	if err != nil {
		return "", fmt.Errorf("connect: %w", err)
	}

	if err := s.pending.Put(ctx, tenantID, state, s.pendingTTL); err != nil {
		return "", fmt.Errorf("connect: storing pending flow: %w", err)
	}

	s.logger.Info("provider connect flow started",
		zap.String("tenant_id", tenantID.String()),
		zap.String("provider", s.provider.Name()),
	)
	return s.provider.AuthorizeURL(state, oauthstate.CodeChallengeS256(verifier)), nil
}

// HandleCallback completes the handshake: it authenticates the state token,
// checks it against the pending flow, exchanges the authorization code and
// stores the resulting connection. It returns the connection status and the
// return URL embedded in the state.
func (s *SyncService) HandleCallback(ctx context.Context, state, code string) (*accounting.ConnectionStatus, string, error) {
	if code == "" {
		return nil, "", accounting.NewValidationError("authorization code is required")
	}

	payload, err := s.codec.DecodeWithPKCE(state, s.stateMaxAge)
	if err != nil {
		return nil, "", err
	}

	pendingState, ok, err := s.pending.Get(ctx, payload.TenantID)
	if err != nil {
		return nil, "", fmt.Errorf("callback: reading pending flow: %w", err)
	}
	if !ok || pendingState != state {
		// A valid token that does not match the pending flow means the flow
		// was superseded or already completed. Treat it like any other
		// untrusted state.
		return nil, "", accounting.NewUnauthorizedStateError("no pending connection flow matches this state")
	}
	if err := s.pending.Delete(ctx, payload.TenantID); err != nil {
		s.logger.Warn("failed to clear pending connection flow",
			zap.String("tenant_id", payload.TenantID.String()), zap.Error(err))
	}

	var tokens *accounting.TokenSet
	err = s.executor.Execute(ctx, payload.TenantID.String(), func(ctx context.Context) error {
		var execErr error
		tokens, execErr = s.provider.ExchangeCode(ctx, code, payload.CodeVerifier)
		return execErr
	})
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	conn := &accounting.Connection{
		TenantID:         payload.TenantID,
		Provider:         s.provider.Name(),
		ProviderTenantID: tokens.ProviderTenantID,
		AccessToken:      tokens.AccessToken,
		RefreshToken:     tokens.RefreshToken,
		ExpiresAt:        tokens.ExpiresAt,
		ConnectedAt:      now,
		UpdatedAt:        now,
	}
	if err := s.connections.Save(ctx, conn); err != nil {
		return nil, "", fmt.Errorf("callback: persisting connection: %w", err)
	}

	s.logger.Info("provider connected",
		zap.String("tenant_id", payload.TenantID.String()),
		zap.String("provider", s.provider.Name()),
		zap.String("provider_tenant_id", tokens.ProviderTenantID),
	)
	return connectionStatus(conn), payload.ReturnURL, nil
}

// GetConnectionStatus reports whether the tenant has a live connection. A
// missing connection is a normal answer here, not an error.
func (s *SyncService) GetConnectionStatus(ctx context.Context, tenantID uuid.UUID) (*accounting.ConnectionStatus, error) {
	conn, err := s.connections.Find(ctx, tenantID)
	if err != nil {
		if accounting.KindOf(err) == accounting.ErrorKindNotConnected {
			return &accounting.ConnectionStatus{Connected: false}, nil
		}
		return nil, err
	}
	return connectionStatus(conn), nil
}

// Disconnect removes the tenant's stored authorization. Mappings are kept:
// reconnecting later resumes with the same external IDs. Disconnecting an
// unconnected tenant is a no-op.
func (s *SyncService) Disconnect(ctx context.Context, tenantID uuid.UUID) error {
	if err := s.connections.Delete(ctx, tenantID); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	s.logger.Info("provider disconnected", zap.String("tenant_id", tenantID.String()))
	return nil
}

func connectionStatus(conn *accounting.Connection) *accounting.ConnectionStatus {
	return &accounting.ConnectionStatus{
		Connected:        true,
		Provider:         conn.Provider,
		ProviderTenantID: conn.ProviderTenantID,
		ConnectedAt:      &conn.ConnectedAt,
		TokenExpiresAt:   &conn.ExpiresAt,
	}
}

// requireConnection is the precondition for every sync operation.
func (s *SyncService) requireConnection(ctx context.Context, tenantID uuid.UUID) error {
	_, err := s.connections.Find(ctx, tenantID)
	return err
}

// ---------------------------------------------------------------------------
// Push
// ---------------------------------------------------------------------------

// PushEntity pushes one internal record to the provider. When a mapping
// already exists and force is false the remote call is skipped entirely and
// the stored mapping is returned. Force re-executes the remote write against
// the mapped external ID.
func (s *SyncService) PushEntity(ctx context.Context, tenantID uuid.UUID, kind accounting.EntityKind, internalID uuid.UUID, force bool) (*accounting.EntitySyncMapping, accounting.PushOutcome, error) {
	if !kind.IsValid() {
		return nil, accounting.PushOutcomeFailed, accounting.NewValidationError(fmt.Sprintf("unknown entity kind %q", kind))
	}
	if err := s.requireConnection(ctx, tenantID); err != nil {
		return nil, accounting.PushOutcomeFailed, err
	}

	existing, err := s.mappings.Find(ctx, tenantID, kind, internalID)
	if err != nil && !errors.Is(err, accounting.ErrMappingNotFound) {
		return nil, accounting.PushOutcomeFailed, err
	}
	if existing != nil && !force {
		return existing, accounting.PushOutcomeSkipped, nil
	}

	var mapping *accounting.EntitySyncMapping
	switch kind {
	case accounting.EntityKindContact:
		mapping, err = s.pushContact(ctx, tenantID, internalID, existing)
	case accounting.EntityKindInvoice:
		mapping, err = s.pushInvoice(ctx, tenantID, internalID, existing)
	case accounting.EntityKindPayment:
		mapping, err = s.pushPayment(ctx, tenantID, internalID, existing)
	case accounting.EntityKindBank:
		return nil, accounting.PushOutcomeFailed, accounting.NewValidationError("bank transactions are pull-only")
	}
	if err != nil {
		return nil, accounting.PushOutcomeFailed, err
	}

	if err := s.mappings.Upsert(ctx, mapping); err != nil {
		return nil, accounting.PushOutcomeFailed, fmt.Errorf("push %s: persisting mapping: %w", kind, err)
	}
	return mapping, accounting.PushOutcomePushed, nil
}

// pushContact creates or updates the provider contact for a parent. Without a
// mapping it first looks the contact up by email so re-pushing after a lost
// mapping adopts the existing remote record instead of duplicating it.
func (s *SyncService) pushContact(ctx context.Context, tenantID, internalID uuid.UUID, existing *accounting.EntitySyncMapping) (*accounting.EntitySyncMapping, error) {
	parent, err := s.parents.FindByID(ctx, tenantID, internalID)
	if err != nil {
		return nil, err
	}

	contact := &accounting.ProviderContact{
		Name:  parent.FullName(),
		Email: parent.Email,
		Phone: parent.Phone,
	}

	externalID := ""
	if existing != nil {
		externalID = existing.ExternalID
	} else if parent.Email != "" {
		var remote *accounting.ProviderContact
		if err := s.execute(ctx, tenantID, func(ctx context.Context) error {
			var execErr error
			remote, execErr = s.provider.FindContactByEmail(ctx, tenantID, parent.Email)
			return execErr
		}); err != nil {
			return nil, err
		}
		if remote != nil {
			externalID = remote.ExternalID
		}
	}

	var pushed *accounting.ProviderContact
	if externalID != "" {
		contact.ExternalID = externalID
		err = s.execute(ctx, tenantID, func(ctx context.Context) error {
			var execErr error
			pushed, execErr = s.provider.UpdateContact(ctx, tenantID, contact)
			return execErr
		})
	} else {
		err = s.execute(ctx, tenantID, func(ctx context.Context) error {
			var execErr error
			pushed, execErr = s.provider.CreateContact(ctx, tenantID, contact)
			return execErr
		})
	}
	if err != nil {
		return nil, err
	}

	return s.buildMapping(existing, tenantID, accounting.EntityKindContact, internalID, pushed.ExternalID, pushed.Name)
}

// pushInvoice pushes an internal invoice. The parent contact is pushed first
// when it has no mapping yet, since the provider invoice must reference the
// remote contact.
func (s *SyncService) pushInvoice(ctx context.Context, tenantID, internalID uuid.UUID, existing *accounting.EntitySyncMapping) (*accounting.EntitySyncMapping, error) {
	invoice, err := s.invoices.FindByID(ctx, tenantID, internalID)
	if err != nil {
		return nil, err
	}

	contactMapping, err := s.mappings.Find(ctx, tenantID, accounting.EntityKindContact, invoice.ParentID)
	if errors.Is(err, accounting.ErrMappingNotFound) {
		contactMapping, _, err = s.PushEntity(ctx, tenantID, accounting.EntityKindContact, invoice.ParentID, false)
	}
	if err != nil {
		return nil, err
	}

	lines := make([]accounting.ProviderInvoiceLine, 0, len(invoice.Lines))
	for _, line := range invoice.Lines {
		lines = append(lines, accounting.ProviderInvoiceLine{
			Description: line.Description,
			Quantity:    decimal.NewFromInt(line.Quantity),
			UnitAmount:  accounting.CentsToMajor(line.UnitAmountCents),
			AccountCode: line.AccountCode,
		})
	}

	remote := &accounting.ProviderInvoice{
		Number:            invoice.Number,
		ContactExternalID: contactMapping.ExternalID,
		IssueDate:         invoice.IssueDate,
		DueDate:           invoice.DueDate,
		Lines:             lines,
	}
	if existing != nil {
		remote.ExternalID = existing.ExternalID
	}

	var pushed *accounting.ProviderInvoice
	if err := s.execute(ctx, tenantID, func(ctx context.Context) error {
		var execErr error
		pushed, execErr = s.provider.CreateInvoice(ctx, tenantID, remote)
		return execErr
	}); err != nil {
		return nil, err
	}

	return s.buildMapping(existing, tenantID, accounting.EntityKindInvoice, internalID, pushed.ExternalID, pushed.Number)
}

// pushPayment pushes a receipt against an already-synced invoice.
func (s *SyncService) pushPayment(ctx context.Context, tenantID, internalID uuid.UUID, existing *accounting.EntitySyncMapping) (*accounting.EntitySyncMapping, error) {
	payment, err := s.payments.FindByID(ctx, tenantID, internalID)
	if err != nil {
		return nil, err
	}

	invoiceMapping, err := s.mappings.Find(ctx, tenantID, accounting.EntityKindInvoice, payment.InvoiceID)
	if errors.Is(err, accounting.ErrMappingNotFound) {
		invoiceMapping, _, err = s.PushEntity(ctx, tenantID, accounting.EntityKindInvoice, payment.InvoiceID, false)
	}
	if err != nil {
		return nil, err
	}

	remote := &accounting.ProviderPayment{
		InvoiceExternalID: invoiceMapping.ExternalID,
		Amount:            accounting.CentsToMajor(payment.AmountCents),
		Date:              payment.PaidAt,
		Reference:         payment.Reference,
	}

	var pushed *accounting.ProviderPayment
	if err := s.execute(ctx, tenantID, func(ctx context.Context) error {
		var execErr error
		pushed, execErr = s.provider.CreatePayment(ctx, tenantID, remote)
		return execErr
	}); err != nil {
		return nil, err
	}

	return s.buildMapping(existing, tenantID, accounting.EntityKindPayment, internalID, pushed.ExternalID, payment.Reference)
}

// buildMapping touches the existing mapping or creates a fresh one.
func (s *SyncService) buildMapping(existing *accounting.EntitySyncMapping, tenantID uuid.UUID, kind accounting.EntityKind, internalID uuid.UUID, externalID, label string) (*accounting.EntitySyncMapping, error) {
	if existing != nil {
		existing.Touch(externalID, label, accounting.SyncDirectionPush)
		return existing, nil
	}
	mapping, err := accounting.NewEntitySyncMapping(tenantID, kind, internalID, externalID, accounting.SyncDirectionPush)
	if err != nil {
		return nil, err
	}
	mapping.ExternalLabel = label
	return mapping, nil
}

// SyncEntityBulk pushes a batch of records of one kind. It never aborts on a
// single failure: every record is attempted and failures are itemized in the
// result. When ids is empty, all records of that kind without a mapping are
// pushed.
func (s *SyncService) SyncEntityBulk(ctx context.Context, tenantID uuid.UUID, kind accounting.EntityKind, ids []uuid.UUID, force bool) (*accounting.PushResult, error) {
	if !kind.IsValid() {
		return nil, accounting.NewValidationError(fmt.Sprintf("unknown entity kind %q", kind))
	}
	if err := s.requireConnection(ctx, tenantID); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		all, err := s.listIDs(ctx, tenantID, kind)
		if err != nil {
			return nil, err
		}
		if force {
			ids = all
		} else {
			ids, err = s.mappings.ListUnsyncedInternalIDs(ctx, tenantID, kind, all)
			if err != nil {
				return nil, err
			}
		}
	}

	result := &accounting.PushResult{Kind: kind, Errors: make([]accounting.SyncError, 0)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, outcome, err := s.PushEntity(ctx, tenantID, kind, id, force)
		switch {
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors, syncError(id.String(), err))
		case outcome == accounting.PushOutcomeSkipped:
			result.Skipped++
		default:
			result.Pushed++
		}
	}
	return result, nil
}

func (s *SyncService) listIDs(ctx context.Context, tenantID uuid.UUID, kind accounting.EntityKind) ([]uuid.UUID, error) {
	switch kind {
	case accounting.EntityKindContact:
		return s.parents.ListIDs(ctx, tenantID)
	case accounting.EntityKindInvoice:
		return s.invoices.ListIDs(ctx, tenantID)
	case accounting.EntityKindPayment:
		return s.payments.ListIDs(ctx, tenantID)
	default:
		return nil, accounting.NewValidationError(fmt.Sprintf("entity kind %q cannot be pushed", kind))
	}
}

// ---------------------------------------------------------------------------
// Pull
// ---------------------------------------------------------------------------

// PullEntity imports provider-side records of one kind. Records that cannot
// be matched to an internal record are reported, never silently dropped.
func (s *SyncService) PullEntity(ctx context.Context, tenantID uuid.UUID, kind accounting.EntityKind, since *time.Time) (*accounting.PullResult, error) {
	if err := s.requireConnection(ctx, tenantID); err != nil {
		return nil, err
	}

	switch kind {
	case accounting.EntityKindContact:
		return s.pullContacts(ctx, tenantID, since)
	case accounting.EntityKindInvoice:
		return s.pullInvoices(ctx, tenantID, since)
	case accounting.EntityKindBank:
		return s.pullBankTransactions(ctx, tenantID, since)
	case accounting.EntityKindPayment:
		return nil, accounting.NewValidationError("payments are push-only")
	default:
		return nil, accounting.NewValidationError(fmt.Sprintf("unknown entity kind %q", kind))
	}
}

// pullContacts matches provider contacts to parents by email and refreshes
// the matched parents.
func (s *SyncService) pullContacts(ctx context.Context, tenantID uuid.UUID, since *time.Time) (*accounting.PullResult, error) {
	var remote []accounting.ProviderContact
	if err := s.execute(ctx, tenantID, func(ctx context.Context) error {
		var execErr error
		remote, execErr = s.provider.ListContactsSince(ctx, tenantID, since)
		return execErr
	}); err != nil {
		return nil, err
	}

	result := newPullResult(accounting.EntityKindContact)
	for _, contact := range remote {
		if contact.Email == "" {
			result.Skipped++
			result.Records = append(result.Records, accounting.PullRecord{
				ExternalID: contact.ExternalID,
				Imported:   false,
				Reason:     "provider contact has no email address",
			})
			continue
		}

		parent, err := s.parents.FindByEmail(ctx, tenantID, contact.Email)
		if errors.Is(err, accounting.ErrParentNotFound) {
			result.Skipped++
			result.Records = append(result.Records, accounting.PullRecord{
				ExternalID: contact.ExternalID,
				Imported:   false,
				Reason:     fmt.Sprintf("no parent matches email %s", contact.Email),
			})
			continue
		}
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, syncError(contact.ExternalID, err))
			continue
		}

		if contact.Phone != "" {
			parent.Phone = contact.Phone
		}
		parent.UpdatedAt = time.Now()
		if err := s.parents.Save(ctx, parent); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, syncError(contact.ExternalID, err))
			continue
		}
		if err := s.recordPull(ctx, tenantID, accounting.EntityKindContact, parent.ID, contact.ExternalID, contact.Name); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, syncError(contact.ExternalID, err))
			continue
		}

		result.Imported++
		result.Records = append(result.Records, accounting.PullRecord{ExternalID: contact.ExternalID, Imported: true})
	}
	return result, nil
}

// pullInvoices matches provider invoices to internal ones by invoice number
// and refreshes their provider-side status.
func (s *SyncService) pullInvoices(ctx context.Context, tenantID uuid.UUID, since *time.Time) (*accounting.PullResult, error) {
	var remote []accounting.ProviderInvoice
	if err := s.execute(ctx, tenantID, func(ctx context.Context) error {
		var execErr error
		remote, execErr = s.provider.ListInvoicesSince(ctx, tenantID, since)
		return execErr
	}); err != nil {
		return nil, err
	}

	result := newPullResult(accounting.EntityKindInvoice)
	for _, inv := range remote {
		invoice, err := s.invoices.FindByNumber(ctx, tenantID, inv.Number)
		if errors.Is(err, accounting.ErrInvoiceNotFound) {
			result.Skipped++
			result.Records = append(result.Records, accounting.PullRecord{
				ExternalID: inv.ExternalID,
				Imported:   false,
				Reason:     fmt.Sprintf("no internal invoice with number %s", inv.Number),
			})
			continue
		}
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, syncError(inv.ExternalID, err))
			continue
		}

		if inv.Status != "" {
			invoice.Status = inv.Status
		}
		invoice.UpdatedAt = time.Now()
		if err := s.invoices.Save(ctx, invoice); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, syncError(inv.ExternalID, err))
			continue
		}
		if err := s.recordPull(ctx, tenantID, accounting.EntityKindInvoice, invoice.ID, inv.ExternalID, inv.Number); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, syncError(inv.ExternalID, err))
			continue
		}

		result.Imported++
		result.Records = append(result.Records, accounting.PullRecord{ExternalID: inv.ExternalID, Imported: true})
	}
	return result, nil
}

// pullBankTransactions matches bank feed entries to recorded payments by
// reference. Unmatched entries are surfaced for manual reconciliation.
func (s *SyncService) pullBankTransactions(ctx context.Context, tenantID uuid.UUID, since *time.Time) (*accounting.PullResult, error) {
	var remote []accounting.BankTransaction
	if err := s.execute(ctx, tenantID, func(ctx context.Context) error {
		var execErr error
		remote, execErr = s.provider.ListBankTransactions(ctx, tenantID, since)
		return execErr
	}); err != nil {
		return nil, err
	}

	result := newPullResult(accounting.EntityKindBank)
	for _, tx := range remote {
		if tx.Reference == "" {
			result.Skipped++
			result.Records = append(result.Records, accounting.PullRecord{
				ExternalID: tx.ExternalID,
				Imported:   false,
				Reason:     "bank transaction has no reference",
			})
			continue
		}

		payment, err := s.payments.FindByReference(ctx, tenantID, tx.Reference)
		if errors.Is(err, accounting.ErrPaymentNotFound) {
			result.Skipped++
			result.Records = append(result.Records, accounting.PullRecord{
				ExternalID: tx.ExternalID,
				Imported:   false,
				Reason:     fmt.Sprintf("no payment matches reference %s", tx.Reference),
			})
			continue
		}
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, syncError(tx.ExternalID, err))
			continue
		}

		if err := s.recordPull(ctx, tenantID, accounting.EntityKindBank, payment.ID, tx.ExternalID, tx.Reference); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, syncError(tx.ExternalID, err))
			continue
		}

		result.Imported++
		result.Records = append(result.Records, accounting.PullRecord{ExternalID: tx.ExternalID, Imported: true})
	}
	return result, nil
}

// recordPull upserts the mapping written by a successful import.
func (s *SyncService) recordPull(ctx context.Context, tenantID uuid.UUID, kind accounting.EntityKind, internalID uuid.UUID, externalID, label string) error {
	existing, err := s.mappings.Find(ctx, tenantID, kind, internalID)
	if err != nil && !errors.Is(err, accounting.ErrMappingNotFound) {
		return err
	}

	var mapping *accounting.EntitySyncMapping
	if existing != nil {
		existing.Touch(externalID, label, accounting.SyncDirectionPull)
		mapping = existing
	} else {
		mapping, err = accounting.NewEntitySyncMapping(tenantID, kind, internalID, externalID, accounting.SyncDirectionPull)
		if err != nil {
			return err
		}
		mapping.ExternalLabel = label
	}
	return s.mappings.Upsert(ctx, mapping)
}

// ---------------------------------------------------------------------------
// Journals
// ---------------------------------------------------------------------------

// PostJournal validates the journal locally, then posts it. An unbalanced
// journal never consumes a network attempt.
func (s *SyncService) PostJournal(ctx context.Context, tenantID uuid.UUID, journal *accounting.Journal) (string, error) {
	if err := journal.Validate(); err != nil {
		return "", err
	}
	if err := s.requireConnection(ctx, tenantID); err != nil {
		return "", err
	}
	if !s.provider.Capabilities().SupportsJournals {
		return "", accounting.NewValidationError(
			fmt.Sprintf("provider %s does not support manual journals", s.provider.Name()))
	}

	var externalID string
	if err := s.execute(ctx, tenantID, func(ctx context.Context) error {
		var execErr error
		externalID, execErr = s.provider.PostJournal(ctx, tenantID, journal)
		return execErr
	}); err != nil {
		return "", err
	}

	s.logger.Info("journal posted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("external_id", externalID),
		zap.Int64("total_cents", journal.TotalDebits()),
	)
	return externalID, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *SyncService) execute(ctx context.Context, tenantID uuid.UUID, op func(ctx context.Context) error) error {
	return s.executor.Execute(ctx, tenantID.String(), op)
}

func newPullResult(kind accounting.EntityKind) *accounting.PullResult {
	return &accounting.PullResult{
		Kind:    kind,
		Records: make([]accounting.PullRecord, 0),
		Errors:  make([]accounting.SyncError, 0),
	}
}

// syncError flattens an error into the itemized aggregate form.
func syncError(entityID string, err error) accounting.SyncError {
	se := accounting.SyncError{EntityID: entityID, Message: err.Error(), Code: string(accounting.ErrorKindUnknown)}
	var domErr *accounting.Error
	if errors.As(err, &domErr) {
		se.Code = string(domErr.Kind)
		se.Message = domErr.Message
	}
	return se
}
