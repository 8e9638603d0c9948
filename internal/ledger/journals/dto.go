package journals

import (
	"fmt"
	"time"

	"github.com/harborbooks/harborbooks/internal/ledger/shared"
)

// LineInput describes one journal line on a create request.
type LineInput struct {
	AccountID   int64   `json:"account_id" validate:"required,gt=0"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
	Description string  `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Location    *string `json:"location,omitempty"`
	Vendor      *string `json:"vendor,omitempty"`
	Funder      *string `json:"funder,omitempty"`
}

// CreateInput groups the fields required to create a journal entry.
type CreateInput struct {
	Date         time.Time   `json:"transaction_date" validate:"required"`
	Type         string      `json:"journal_type,omitempty"`
	Memo         string      `json:"memo,omitempty"`
	SourceModule string      `json:"source_module,omitempty"`
	Reference    string      `json:"reference,omitempty"`
	Post         bool        `json:"post"`
	Lines        []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// Validate enforces per-line invariants. Balance is checked separately:
// unbalanced drafts may be stored, but never posted.
func (in CreateInput) Validate() error {
	if len(in.Lines) == 0 {
		return shared.ErrNoLines
	}
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("%w: line %d missing account", shared.ErrAccountNotFound, idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("%w: line %d", shared.ErrNegativeAmount, idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("%w: line %d", shared.ErrBothSides, idx)
		}
	}
	return nil
}

// Balanced reports whether total debits equal total credits within tolerance.
func (in CreateInput) Balanced() bool {
	debits := make([]float64, 0, len(in.Lines))
	credits := make([]float64, 0, len(in.Lines))
	for _, line := range in.Lines {
		debits = append(debits, line.Debit)
		credits = append(credits, line.Credit)
	}
	return shared.Balanced(shared.Sum2(debits...), shared.Sum2(credits...))
}
