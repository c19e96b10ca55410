package accounting

import (
	"fmt"
	"time"
)

// JournalLine is one side of a manual journal entry. Exactly one of
// DebitCents/CreditCents is expected to be non-zero per line, but lines with
// both zero are tolerated; only the overall balance is enforced.
type JournalLine struct {
	Description string `json:"description"`
	AccountCode string `json:"account_code"`
	DebitCents  int64  `json:"debit_cents"`
	CreditCents int64  `json:"credit_cents"`
}

// Journal is a manual journal entry in internal minor units.
type Journal struct {
	Narration string        `json:"narration"`
	Date      time.Time     `json:"date"`
	Lines     []JournalLine `json:"lines"`
}

// TotalDebits sums the debit side in cents.
func (j *Journal) TotalDebits() int64 {
	var total int64
	for _, line := range j.Lines {
		total += line.DebitCents
	}
	return total
}

// TotalCredits sums the credit side in cents.
func (j *Journal) TotalCredits() int64 {
	var total int64
	for _, line := range j.Lines {
		total += line.CreditCents
	}
	return total
}

// Validate enforces the double-entry invariant: total debits must equal total
// credits. A 0 == 0 balance is valid. An imbalance is a logic defect, raised
// as a validation error carrying both totals, and must be caught before any
// network attempt.
func (j *Journal) Validate() error {
	if len(j.Lines) == 0 {
		return NewValidationError("journal has no lines")
	}
	for i, line := range j.Lines {
		if line.AccountCode == "" {
			return NewValidationError(fmt.Sprintf("journal line %d has no account code", i))
		}
		if line.DebitCents < 0 || line.CreditCents < 0 {
			return NewValidationError(fmt.Sprintf("journal line %d has a negative amount", i))
		}
	}
	debits, credits := j.TotalDebits(), j.TotalCredits()
	if debits != credits {
		return NewValidationError(
			"journal is not balanced",
			fmt.Sprintf("total debits: %d cents", debits),
			fmt.Sprintf("total credits: %d cents", credits),
		)
	}
	return nil
}
