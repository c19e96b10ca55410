package xero

import (
	"time"

	"github.com/shopspring/decimal"
)

// tokenResponse is the payload from the token endpoint for both the code
// exchange and the refresh grant.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// connectionEntry is one authorized organisation from the connections endpoint.
type connectionEntry struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	TenantType string `json:"tenantType"`
	TenantName string `json:"tenantName"`
}

// apiError is the error envelope the accounting API returns on 400/422.
// Validation messages are nested per element.
type apiError struct {
	ErrorNumber int    `json:"ErrorNumber"`
	Type        string `json:"Type"`
	Message     string `json:"Message"`
	Elements    []struct {
		ValidationErrors []struct {
			Message string `json:"Message"`
		} `json:"ValidationErrors"`
	} `json:"Elements"`
}

// validationMessages flattens the nested per-element validation errors.
func (e *apiError) validationMessages() []string {
	var out []string
	for _, el := range e.Elements {
		for _, ve := range el.ValidationErrors {
			if ve.Message != "" {
				out = append(out, ve.Message)
			}
		}
	}
	return out
}

type wireContact struct {
	ContactID    string      `json:"ContactID,omitempty"`
	Name         string      `json:"Name"`
	EmailAddress string      `json:"EmailAddress,omitempty"`
	Phones       []wirePhone `json:"Phones,omitempty"`
	UpdatedDate  *time.Time  `json:"UpdatedDateUTC,omitempty"`
}

type wirePhone struct {
	PhoneType   string `json:"PhoneType"`
	PhoneNumber string `json:"PhoneNumber"`
}

type contactsEnvelope struct {
	Contacts []wireContact `json:"Contacts"`
}

type wireLineItem struct {
	Description string          `json:"Description"`
	Quantity    decimal.Decimal `json:"Quantity"`
	UnitAmount  decimal.Decimal `json:"UnitAmount"`
	AccountCode string          `json:"AccountCode,omitempty"`
}

type wireInvoice struct {
	InvoiceID     string          `json:"InvoiceID,omitempty"`
	Type          string          `json:"Type"`
	InvoiceNumber string          `json:"InvoiceNumber,omitempty"`
	Contact       *wireContact    `json:"Contact,omitempty"`
	Date          string          `json:"Date,omitempty"`
	DueDate       string          `json:"DueDate,omitempty"`
	Status        string          `json:"Status,omitempty"`
	Total         decimal.Decimal `json:"Total,omitempty"`
	AmountDue     decimal.Decimal `json:"AmountDue,omitempty"`
	LineItems     []wireLineItem  `json:"LineItems,omitempty"`
	UpdatedDate   *time.Time      `json:"UpdatedDateUTC,omitempty"`
}

type invoicesEnvelope struct {
	Invoices []wireInvoice `json:"Invoices"`
}

type wirePayment struct {
	PaymentID string          `json:"PaymentID,omitempty"`
	Invoice   *wireInvoice    `json:"Invoice,omitempty"`
	Amount    decimal.Decimal `json:"Amount"`
	Date      string          `json:"Date,omitempty"`
	Reference string          `json:"Reference,omitempty"`
}

type paymentsEnvelope struct {
	Payments []wirePayment `json:"Payments"`
}

type wireBankTransaction struct {
	BankTransactionID string          `json:"BankTransactionID"`
	Type              string          `json:"Type"`
	Total             decimal.Decimal `json:"Total"`
	Date              string          `json:"Date,omitempty"`
	Reference         string          `json:"Reference,omitempty"`
	LineItems         []wireLineItem  `json:"LineItems,omitempty"`
}

type bankTransactionsEnvelope struct {
	BankTransactions []wireBankTransaction `json:"BankTransactions"`
}

type wireJournalLine struct {
	Description string          `json:"Description,omitempty"`
	LineAmount  decimal.Decimal `json:"LineAmount"`
	AccountCode string          `json:"AccountCode"`
}

type wireManualJournal struct {
	ManualJournalID string            `json:"ManualJournalID,omitempty"`
	Narration       string            `json:"Narration"`
	Date            string            `json:"Date,omitempty"`
	Status          string            `json:"Status,omitempty"`
	JournalLines    []wireJournalLine `json:"JournalLines"`
}

type manualJournalsEnvelope struct {
	ManualJournals []wireManualJournal `json:"ManualJournals"`
}

// dateLayout is the calendar-date format the accounting API accepts.
const dateLayout = "2006-01-02"

// parseDate accepts the date formats the API has been observed to return.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
