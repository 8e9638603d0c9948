package receipts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harborbooks/harborbooks/internal/billing/bills"
	billing "github.com/harborbooks/harborbooks/internal/billing/shared"
	ledger "github.com/harborbooks/harborbooks/internal/ledger/shared"
)

// ErrTotalMismatch is returned when a receipt's total disagrees with its
// subtotal plus tax plus tip by more than a cent.
var ErrTotalMismatch = errors.New("receipts: total does not match subtotal + tax + tip")

// BillCreator is the slice of the bill manager the automation needs.
type BillCreator interface {
	Create(ctx context.Context, userID int64, input bills.CreateInput) (bills.Bill, error)
}

// Service turns extracted receipts into draft bills. Every line is classified
// to an expense account before the bill transaction opens; a line that cannot
// be classified fails the whole receipt, since a draft with unallocated lines
// would be unusable.
type Service struct {
	bills    BillCreator
	vendors  VendorRepository
	resolver bills.AccountResolver
	logger   *slog.Logger
}

// NewService constructs the Service.
func NewService(billSvc BillCreator, vendors VendorRepository, resolver bills.AccountResolver, logger *slog.Logger) *Service {
	return &Service{bills: billSvc, vendors: vendors, resolver: resolver, logger: logger}
}

// BuildBill creates a draft bill from an extracted receipt. The due date
// defaults to thirty days after the receipt date.
func (s *Service) BuildBill(ctx context.Context, userID int64, receipt ExtractedReceipt) (bills.Bill, error) {
	if err := s.checkTotals(receipt); err != nil {
		return bills.Bill{}, err
	}

	vendorID, err := s.vendors.FindOrCreateVendor(ctx, userID, receipt.VendorName)
	if err != nil {
		return bills.Bill{}, err
	}

	lines := make([]bills.LineInput, len(receipt.Lines))
	for i, line := range receipt.Lines {
		category := line.Category
		if category == "" {
			category = line.Description
		}
		account, err := s.resolver.ResolveExpense(ctx, userID, category)
		if err != nil {
			return bills.Bill{}, fmt.Errorf("%w: line %d (%s): %v", ledger.ErrAccountResolution, i+1, line.Description, err)
		}
		amount := line.Amount
		if amount == 0 {
			amount = billing.LineAmount(line.Quantity, line.UnitPrice)
		}
		lines[i] = bills.LineInput{
			ExpenseAccountID: account.ID,
			Description:      line.Description,
			Quantity:         line.Quantity,
			UnitPrice:        line.UnitPrice,
			Amount:           amount,
		}
	}

	bill, err := s.bills.Create(ctx, userID, bills.CreateInput{
		VendorID:    vendorID,
		BillDate:    receipt.Date,
		DueDate:     receipt.Date.AddDate(0, 0, 30),
		TotalAmount: receipt.Total,
		TaxAmount:   receipt.TaxAmount,
		TipAmount:   receipt.TipAmount,
		Lines:       lines,
	})
	if err != nil {
		return bills.Bill{}, err
	}

	s.logger.Info("receipt converted to draft bill",
		slog.Int64("bill_id", bill.ID), slog.String("vendor", receipt.VendorName),
		slog.Float64("total", receipt.Total))
	return bill, nil
}

func (s *Service) checkTotals(receipt ExtractedReceipt) error {
	subtotal := receipt.Subtotal
	if subtotal == 0 {
		amounts := make([]float64, len(receipt.Lines))
		for i, line := range receipt.Lines {
			amount := line.Amount
			if amount == 0 {
				amount = billing.LineAmount(line.Quantity, line.UnitPrice)
			}
			amounts[i] = amount
		}
		subtotal = billing.Total(amounts, 0, 0)
	}
	expected := billing.Total([]float64{subtotal}, receipt.TaxAmount, receipt.TipAmount)
	if !ledger.WithinEpsilon(expected, receipt.Total) {
		return fmt.Errorf("%w: expected %.2f, got %.2f", ErrTotalMismatch, expected, receipt.Total)
	}
	return nil
}
