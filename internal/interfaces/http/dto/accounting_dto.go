package dto

import (
	"time"

	"github.com/Smashkat12/crechebooks-sub003/internal/domain/accounting"
)

// ConnectRequest starts the OAuth handshake with the accounting provider.
type ConnectRequest struct {
	// ReturnURL is where the frontend wants the user sent after the callback.
	ReturnURL string `json:"return_url" binding:"omitempty,max=2048"`
}

// ConnectResponse carries the provider consent URL to redirect the user to.
type ConnectResponse struct {
	AuthorizeURL string `json:"authorize_url"`
}

// CallbackResponse is returned once the OAuth callback completes.
type CallbackResponse struct {
	Status    *accounting.ConnectionStatus `json:"status"`
	ReturnURL string                       `json:"return_url,omitempty"`
}

// PushRequest pushes a single entity to the provider.
type PushRequest struct {
	Kind  string `json:"kind" binding:"required,oneof=CONTACT INVOICE PAYMENT"`
	ID    string `json:"id" binding:"required,uuid"`
	Force bool   `json:"force"`
}

// PushResponse reports one push outcome and the resulting mapping.
type PushResponse struct {
	Outcome string           `json:"outcome"`
	Mapping *MappingResponse `json:"mapping"`
}

// MappingResponse is the client view of an entity sync mapping.
type MappingResponse struct {
	EntityKind    string     `json:"entity_kind"`
	InternalID    string     `json:"internal_id"`
	ExternalID    string     `json:"external_id"`
	ExternalLabel string     `json:"external_label,omitempty"`
	Direction     string     `json:"direction"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
}

// NewMappingResponse converts a domain mapping for the wire.
func NewMappingResponse(m *accounting.EntitySyncMapping) *MappingResponse {
	if m == nil {
		return nil
	}
	resp := &MappingResponse{
		EntityKind:    m.EntityKind.String(),
		InternalID:    m.InternalID.String(),
		ExternalID:    m.ExternalID,
		ExternalLabel: m.ExternalLabel,
		Direction:     m.Direction.String(),
	}
	if !m.LastSyncedAt.IsZero() {
		resp.LastSyncedAt = &m.LastSyncedAt
	}
	return resp
}

// BulkSyncRequest pushes many entities of one kind. An empty IDs list means
// every unsynced record of that kind.
type BulkSyncRequest struct {
	Kind  string   `json:"kind" binding:"required,oneof=CONTACT INVOICE PAYMENT"`
	IDs   []string `json:"ids" binding:"omitempty,dive,uuid"`
	Force bool     `json:"force"`
}

// PullRequest imports provider-side changes for one kind.
type PullRequest struct {
	Kind string `json:"kind" binding:"required,oneof=CONTACT INVOICE BANK"`
	// Since is the incremental watermark; zero pulls the provider default horizon.
	Since *time.Time `json:"since"`
}

// JournalLineRequest is one journal line in integer cents. Exactly one of
// debit or credit should be set; the domain validates balance.
type JournalLineRequest struct {
	Description string `json:"description" binding:"max=500"`
	AccountCode string `json:"account_code" binding:"required"`
	DebitCents  int64  `json:"debit_cents" binding:"min=0"`
	CreditCents int64  `json:"credit_cents" binding:"min=0"`
}

// JournalRequest posts a manual journal to the provider.
type JournalRequest struct {
	Narration string               `json:"narration" binding:"required,max=4000"`
	Date      time.Time            `json:"date" binding:"required"`
	Lines     []JournalLineRequest `json:"lines" binding:"required,min=2,dive"`
}

// ToDomain converts the request into a domain journal.
func (r *JournalRequest) ToDomain() *accounting.Journal {
	lines := make([]accounting.JournalLine, 0, len(r.Lines))
	for _, line := range r.Lines {
		lines = append(lines, accounting.JournalLine{
			Description: line.Description,
			AccountCode: line.AccountCode,
			DebitCents:  line.DebitCents,
			CreditCents: line.CreditCents,
		})
	}
	return &accounting.Journal{
		Narration: r.Narration,
		Date:      r.Date,
		Lines:     lines,
	}
}

// JournalResponse carries the provider's journal identifier.
type JournalResponse struct {
	ExternalID string `json:"external_id"`
}

// SyncRequest runs a full orchestrated sync.
type SyncRequest struct {
	// Kinds restricts the run; empty means every supported kind.
	Kinds []string `json:"kinds" binding:"omitempty,dive,oneof=CONTACT INVOICE PAYMENT BANK"`
	// Direction is PUSH, PULL, or BIDIRECTIONAL; defaults to PUSH.
	Direction string     `json:"direction" binding:"omitempty,oneof=PUSH PULL BIDIRECTIONAL"`
	Force     bool       `json:"force"`
	Since     *time.Time `json:"since"`
}

// ToOptions converts the request into domain sync options.
func (r *SyncRequest) ToOptions() accounting.SyncOptions {
	kinds := make([]accounting.EntityKind, 0, len(r.Kinds))
	for _, k := range r.Kinds {
		kinds = append(kinds, accounting.EntityKind(k))
	}
	return accounting.SyncOptions{
		Kinds:     kinds,
		Direction: accounting.SyncDirection(r.Direction),
		Force:     r.Force,
		Since:     r.Since,
	}
}
