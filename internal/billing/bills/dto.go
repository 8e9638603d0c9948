package bills

import (
	"errors"
	"fmt"
	"time"

	"github.com/harborbooks/harborbooks/internal/billing/shared"
)

// ErrLineInconsistent is returned when a supplied line amount disagrees with
// quantity times unit price by more than a cent.
var ErrLineInconsistent = errors.New("bills: line amount mismatch")

// LineInput is one bill line as submitted by a caller. Amount is optional;
// when supplied it must agree with quantity times unit price within a cent.
type LineInput struct {
	ExpenseAccountID int64   `json:"expense_account_id" validate:"required,gt=0"`
	Description      string  `json:"description" validate:"max=500"`
	Quantity         float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice        float64 `json:"unit_price" validate:"gte=0"`
	Amount           float64 `json:"amount" validate:"gte=0"`
}

// CreateInput creates a bill, optionally opening it in the same call.
type CreateInput struct {
	VendorID    int64       `json:"vendor_id" validate:"required,gt=0"`
	BillNumber  string      `json:"bill_number" validate:"max=100"`
	BillDate    time.Time   `json:"bill_date" validate:"required"`
	DueDate     time.Time   `json:"due_date" validate:"required"`
	TotalAmount float64     `json:"total_amount" validate:"gte=0"`
	TaxAmount   float64     `json:"tax_amount" validate:"gte=0"`
	TipAmount   float64     `json:"tip_amount" validate:"gte=0"`
	Status      string      `json:"status" validate:"omitempty,oneof=draft open DRAFT OPEN"`
	APAccountID int64       `json:"ap_account_id" validate:"omitempty,gt=0"`
	Lines       []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// Normalize fills derived line amounts and the bill total, and rejects
// amounts that disagree with quantity times unit price.
func (in *CreateInput) Normalize() error {
	for i := range in.Lines {
		line := &in.Lines[i]
		computed := shared.LineAmount(line.Quantity, line.UnitPrice)
		if line.Amount == 0 {
			line.Amount = computed
			continue
		}
		if !shared.AmountConsistent(line.Amount, line.Quantity, line.UnitPrice) {
			return fmt.Errorf("%w: line %d has %.2f, quantity x unit price gives %.2f", ErrLineInconsistent, i+1, line.Amount, computed)
		}
	}
	amounts := make([]float64, len(in.Lines))
	for i, line := range in.Lines {
		amounts[i] = line.Amount
	}
	if in.TotalAmount == 0 {
		in.TotalAmount = shared.Total(amounts, in.TaxAmount, in.TipAmount)
	}
	return nil
}

// UpdateInput replaces the mutable fields of a draft bill.
type UpdateInput struct {
	VendorID    int64       `json:"vendor_id" validate:"required,gt=0"`
	BillNumber  string      `json:"bill_number" validate:"max=100"`
	BillDate    time.Time   `json:"bill_date" validate:"required"`
	DueDate     time.Time   `json:"due_date" validate:"required"`
	TotalAmount float64     `json:"total_amount" validate:"gte=0"`
	TaxAmount   float64     `json:"tax_amount" validate:"gte=0"`
	TipAmount   float64     `json:"tip_amount" validate:"gte=0"`
	Lines       []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// BulkStatusInput applies one target status to a set of bills.
type BulkStatusInput struct {
	BillIDs []int64 `json:"bill_ids" validate:"required,min=1,dive,gt=0"`
	Status  string  `json:"status" validate:"required"`
}

// BulkFailure records one bill that could not be transitioned.
type BulkFailure struct {
	BillID int64  `json:"bill_id"`
	Reason string `json:"reason"`
}

// BulkStatusResult reports per-bill outcomes of a bulk transition. A failed
// bill never aborts its siblings.
type BulkStatusResult struct {
	Updated []int64       `json:"updated"`
	Failed  []BulkFailure `json:"failed"`
}
