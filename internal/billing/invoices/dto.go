package invoices

import (
	"errors"
	"fmt"
	"time"

	"github.com/harborbooks/harborbooks/internal/billing/shared"
)

// ErrLineInconsistent mirrors the bill-side check: a supplied line amount must
// agree with quantity times unit price within a cent.
var ErrLineInconsistent = errors.New("invoices: line amount mismatch")

// LineInput is one invoice line as submitted by a caller.
type LineInput struct {
	RevenueAccountID int64   `json:"revenue_account_id" validate:"required,gt=0"`
	Description      string  `json:"description" validate:"max=500"`
	Quantity         float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice        float64 `json:"unit_price" validate:"gte=0"`
	Amount           float64 `json:"amount" validate:"gte=0"`
}

// CreateInput creates an invoice.
type CreateInput struct {
	CustomerID    int64       `json:"customer_id" validate:"required,gt=0"`
	InvoiceNumber string      `json:"invoice_number" validate:"max=100"`
	InvoiceDate   time.Time   `json:"invoice_date" validate:"required"`
	DueDate       time.Time   `json:"due_date" validate:"required"`
	TotalAmount   float64     `json:"total_amount" validate:"gte=0"`
	Status        string      `json:"status" validate:"omitempty,oneof=draft open DRAFT OPEN"`
	ARAccountID   int64       `json:"ar_account_id" validate:"omitempty,gt=0"`
	Lines         []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// Normalize fills derived line amounts and the invoice total.
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
	if in.TotalAmount == 0 {
		amounts := make([]float64, len(in.Lines))
		for i, line := range in.Lines {
			amounts[i] = line.Amount
		}
		in.TotalAmount = shared.Total(amounts, 0, 0)
	}
	return nil
}

// UpdateInput replaces the mutable fields of a draft invoice.
type UpdateInput struct {
	CustomerID    int64       `json:"customer_id" validate:"required,gt=0"`
	InvoiceNumber string      `json:"invoice_number" validate:"max=100"`
	InvoiceDate   time.Time   `json:"invoice_date" validate:"required"`
	DueDate       time.Time   `json:"due_date" validate:"required"`
	TotalAmount   float64     `json:"total_amount" validate:"gte=0"`
	Lines         []LineInput `json:"lines" validate:"required,min=1,dive"`
}
