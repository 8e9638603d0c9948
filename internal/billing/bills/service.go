package bills

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	billing "github.com/harborbooks/harborbooks/internal/billing/shared"
	"github.com/harborbooks/harborbooks/internal/ledger/accounts"
	"github.com/harborbooks/harborbooks/internal/ledger/journals"
	ledger "github.com/harborbooks/harborbooks/internal/ledger/shared"
	internalShared "github.com/harborbooks/harborbooks/internal/shared"
)

var (
	// ErrNotDraft is returned when an edit targets a bill past DRAFT.
	ErrNotDraft = errors.New("bills: only draft bills can be edited")
	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("bills: invalid status transition")
)

// AccountResolver supplies the ledger accounts a bill transition needs.
// Resolution runs before the bill transaction opens so slow classifier paths
// never hold row locks.
type AccountResolver interface {
	ResolveExpense(ctx context.Context, userID int64, category string) (accounts.Account, error)
	ResolvePayment(ctx context.Context, userID int64) (accounts.Account, error)
	ResolvePayable(ctx context.Context, userID int64) (accounts.Account, error)
}

// AuditPort receives immutable audit records.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service drives the bill lifecycle. Every transition that has ledger side
// effects runs the status change and the side effects in one transaction.
type Service struct {
	repo     Repository
	resolver AccountResolver
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the Service.
func NewService(repo Repository, resolver AccountResolver, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, resolver: resolver, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns the user's bills with time-derived overdue status applied.
func (s *Service) List(ctx context.Context, userID int64) ([]Bill, error) {
	out, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range out {
		out[i].Status = out[i].EffectiveStatus(now)
	}
	return out, nil
}

// Get returns one bill, optionally with lines and payments.
func (s *Service) Get(ctx context.Context, userID, id int64, includeLines, includePayments bool) (Bill, error) {
	bill, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return Bill{}, err
	}
	bill.Status = bill.EffectiveStatus(s.now())
	if includeLines {
		if bill.Lines, err = s.repo.GetLines(ctx, bill.ID); err != nil {
			return Bill{}, err
		}
	}
	if includePayments {
		if bill.Payments, err = s.repo.GetPayments(ctx, bill.ID); err != nil {
			return Bill{}, err
		}
	}
	return bill, nil
}

// Create stores a bill in DRAFT, or opens it immediately when the caller asks
// for OPEN. Header, lines, and any opening journal share one transaction.
func (s *Service) Create(ctx context.Context, userID int64, input CreateInput) (Bill, error) {
	status := BillStatusDraft
	if input.Status != "" {
		parsed, err := ParseStatus(input.Status)
		if err != nil {
			return Bill{}, err
		}
		if parsed != BillStatusDraft && parsed != BillStatusOpen {
			return Bill{}, fmt.Errorf("%w: bills are created as draft or open", ErrInvalidTransition)
		}
		status = parsed
	}
	if err := input.Normalize(); err != nil {
		return Bill{}, err
	}

	apAccountID := input.APAccountID
	if apAccountID == 0 {
		ap, err := s.resolver.ResolvePayable(ctx, userID)
		if err != nil {
			return Bill{}, err
		}
		apAccountID = ap.ID
	}

	var sideAccounts openAccounts
	if status == BillStatusOpen {
		resolved, err := s.resolveOpenAccounts(ctx, userID, input.TaxAmount, input.TipAmount)
		if err != nil {
			return Bill{}, err
		}
		sideAccounts = resolved
	}

	lines := make([]BillLine, len(input.Lines))
	for i, in := range input.Lines {
		lines[i] = BillLine{
			ExpenseAccountID: in.ExpenseAccountID,
			Description:      in.Description,
			Quantity:         in.Quantity,
			UnitPrice:        in.UnitPrice,
			Amount:           in.Amount,
		}
	}

	var bill Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertBill(ctx, Bill{
			UserID:      userID,
			VendorID:    input.VendorID,
			BillNumber:  input.BillNumber,
			BillDate:    input.BillDate,
			DueDate:     input.DueDate,
			TotalAmount: input.TotalAmount,
			TaxAmount:   input.TaxAmount,
			TipAmount:   input.TipAmount,
			Status:      BillStatusDraft,
			APAccountID: apAccountID,
			CreatedBy:   userID,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, lines); err != nil {
			return err
		}
		for i := range lines {
			lines[i].BillID = inserted.ID
		}
		if status == BillStatusOpen {
			journalID, err := s.postOpenJournal(ctx, tx, inserted, lines, sideAccounts)
			if err != nil {
				return err
			}
			if err := tx.UpdateStatus(ctx, inserted.ID, BillStatusOpen, &journalID); err != nil {
				return err
			}
			inserted.Status = BillStatusOpen
			inserted.JournalID = &journalID
		}
		bill = inserted
		bill.Lines = lines
		return nil
	})
	if err != nil {
		return Bill{}, err
	}

	s.record(ctx, userID, "bill.create", bill.ID, map[string]any{
		"vendor_id": bill.VendorID, "total": bill.TotalAmount, "status": bill.Status,
	})
	return bill, nil
}

// Update replaces the mutable fields of a DRAFT bill, lines included.
func (s *Service) Update(ctx context.Context, userID, id int64, input UpdateInput) (Bill, error) {
	create := CreateInput{
		TotalAmount: input.TotalAmount,
		TaxAmount:   input.TaxAmount,
		TipAmount:   input.TipAmount,
		Lines:       input.Lines,
	}
	if err := create.Normalize(); err != nil {
		return Bill{}, err
	}
	input.Lines = create.Lines
	input.TotalAmount = create.TotalAmount

	var bill Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetBillForUpdate(ctx, userID, id)
		if err != nil {
			return err
		}
		if current.Status != BillStatusDraft {
			return ErrNotDraft
		}
		current.VendorID = input.VendorID
		current.BillNumber = input.BillNumber
		current.BillDate = input.BillDate
		current.DueDate = input.DueDate
		current.TotalAmount = input.TotalAmount
		current.TaxAmount = input.TaxAmount
		current.TipAmount = input.TipAmount
		if err := tx.UpdateBill(ctx, current); err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		lines := make([]BillLine, len(input.Lines))
		for i, in := range input.Lines {
			lines[i] = BillLine{
				BillID:           id,
				ExpenseAccountID: in.ExpenseAccountID,
				Description:      in.Description,
				Quantity:         in.Quantity,
				UnitPrice:        in.UnitPrice,
				Amount:           in.Amount,
			}
		}
		if err := tx.InsertLines(ctx, id, lines); err != nil {
			return err
		}
		bill = current
		bill.Lines = lines
		return nil
	})
	if err != nil {
		return Bill{}, err
	}

	s.record(ctx, userID, "bill.update", bill.ID, map[string]any{"total": bill.TotalAmount})
	return bill, nil
}

// UpdateStatus transitions one bill.
func (s *Service) UpdateStatus(ctx context.Context, userID, id int64, status string) (Bill, error) {
	target, err := ParseStatus(status)
	if err != nil {
		return Bill{}, err
	}
	bill, err := s.applyStatus(ctx, userID, id, target)
	if err != nil {
		return Bill{}, err
	}
	s.record(ctx, userID, "bill.status", bill.ID, map[string]any{"status": target})
	return bill, nil
}

// BulkUpdateStatus transitions many bills to one target status. Each bill
// runs in its own transaction; a failure is reported per bill and never
// aborts siblings.
func (s *Service) BulkUpdateStatus(ctx context.Context, userID int64, input BulkStatusInput) (BulkStatusResult, error) {
	target, err := ParseStatus(input.Status)
	if err != nil {
		return BulkStatusResult{}, err
	}
	if len(input.BillIDs) == 0 {
		return BulkStatusResult{}, errors.New("bills: bill_ids must not be empty")
	}

	ids := append([]int64(nil), input.BillIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := BulkStatusResult{Updated: []int64{}, Failed: []BulkFailure{}}
	for _, id := range ids {
		if _, err := s.applyStatus(ctx, userID, id, target); err != nil {
			s.logger.Warn("bulk status transition failed",
				slog.Int64("bill_id", id), slog.String("status", string(target)), slog.Any("error", err))
			result.Failed = append(result.Failed, BulkFailure{BillID: id, Reason: err.Error()})
			continue
		}
		result.Updated = append(result.Updated, id)
	}

	s.record(ctx, userID, "bill.bulk_status", 0, map[string]any{
		"status": target, "updated": len(result.Updated), "failed": len(result.Failed),
	})
	return result, nil
}

// ScanOverdue marks open bills past their due date as OVERDUE. It is meant
// to run from the background scheduler and spans all users.
func (s *Service) ScanOverdue(ctx context.Context, asOf time.Time) (int, error) {
	candidates, err := s.repo.ListOverdueCandidates(ctx, asOf)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, bill := range candidates {
		if _, err := s.applyStatus(ctx, bill.UserID, bill.ID, BillStatusOverdue); err != nil {
			s.logger.Warn("overdue scan skipped bill", slog.Int64("bill_id", bill.ID), slog.Any("error", err))
			continue
		}
		marked++
	}
	return marked, nil
}

func (s *Service) applyStatus(ctx context.Context, userID, id int64, target BillStatus) (Bill, error) {
	bill, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return Bill{}, err
	}
	if bill.Status == target {
		return bill, nil
	}
	if !canTransition(bill.Status, target) {
		return Bill{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, bill.Status, target)
	}

	switch target {
	case BillStatusOpen:
		return s.open(ctx, bill)
	case BillStatusPaid:
		return s.pay(ctx, bill)
	case BillStatusVoid:
		return s.transition(ctx, bill, BillStatusVoid)
	case BillStatusOverdue:
		if !bill.DueDate.Before(s.now()) {
			return Bill{}, fmt.Errorf("%w: bill %d is not past due", ErrInvalidTransition, bill.ID)
		}
		return s.transition(ctx, bill, BillStatusOverdue)
	}
	return Bill{}, fmt.Errorf("%w: %s", ErrInvalidTransition, target)
}

// open posts the accrual journal and moves the bill to OPEN in one
// transaction: expense debits per line plus tax and tip, one credit to AP.
func (s *Service) open(ctx context.Context, bill Bill) (Bill, error) {
	sideAccounts, err := s.resolveOpenAccounts(ctx, bill.UserID, bill.TaxAmount, bill.TipAmount)
	if err != nil {
		return Bill{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetBillForUpdate(ctx, bill.UserID, bill.ID)
		if err != nil {
			return err
		}
		if current.Status != BillStatusDraft {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, BillStatusOpen)
		}
		lines, err := tx.GetLines(ctx, current.ID)
		if err != nil {
			return err
		}
		journalID, err := s.postOpenJournal(ctx, tx, current, lines, sideAccounts)
		if err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, current.ID, BillStatusOpen, &journalID); err != nil {
			return err
		}
		bill = current
		bill.Status = BillStatusOpen
		bill.JournalID = &journalID
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	return bill, nil
}

// pay settles the remaining balance: a BillPayment row, a payment journal
// (debit AP, credit the payment account), and the PAID status, all in one
// transaction. A bill with nothing remaining just flips to PAID.
func (s *Service) pay(ctx context.Context, bill Bill) (Bill, error) {
	remaining := billing.Remaining(bill.TotalAmount, bill.AmountPaid)
	if remaining == 0 {
		return s.transition(ctx, bill, BillStatusPaid)
	}

	paymentAccount, err := s.resolver.ResolvePayment(ctx, bill.UserID)
	if err != nil {
		return Bill{}, fmt.Errorf("%w: %v", ledger.ErrAccountResolution, err)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetBillForUpdate(ctx, bill.UserID, bill.ID)
		if err != nil {
			return err
		}
		if current.Status != BillStatusOpen && current.Status != BillStatusOverdue {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, BillStatusPaid)
		}
		amount := billing.Remaining(current.TotalAmount, current.AmountPaid)
		if amount > 0 {
			payment, err := tx.InsertPayment(ctx, BillPayment{
				BillID:           current.ID,
				PaymentDate:      s.now(),
				AmountPaid:       amount,
				PaymentAccountID: paymentAccount.ID,
				Method:           "bank_transfer",
			})
			if err != nil {
				return err
			}
			if err := tx.ApplyPayment(ctx, current.ID, amount); err != nil {
				return err
			}
			if _, err := s.postJournal(ctx, tx, current.UserID,
				fmt.Sprintf("Payment for bill %s", billLabel(current)),
				"bill_payments", fmt.Sprintf("payment:%d", payment.ID),
				[]journals.Line{
					{AccountID: current.APAccountID, Debit: amount, Description: "Bill payment"},
					{AccountID: paymentAccount.ID, Credit: amount, Description: "Bill payment"},
				}); err != nil {
				return err
			}
			current.AmountPaid = billing.Total([]float64{current.AmountPaid, amount}, 0, 0)
		}
		if err := tx.UpdateStatus(ctx, current.ID, BillStatusPaid, nil); err != nil {
			return err
		}
		bill = current
		bill.Status = BillStatusPaid
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	return bill, nil
}

func (s *Service) transition(ctx context.Context, bill Bill, target BillStatus) (Bill, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetBillForUpdate(ctx, bill.UserID, bill.ID)
		if err != nil {
			return err
		}
		if current.Status != target && !canTransition(current.Status, target) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, target)
		}
		if err := tx.UpdateStatus(ctx, current.ID, target, nil); err != nil {
			return err
		}
		bill = current
		bill.Status = target
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	return bill, nil
}

type openAccounts struct {
	tax *accounts.Account
	tip *accounts.Account
}

func (s *Service) resolveOpenAccounts(ctx context.Context, userID int64, taxAmount, tipAmount float64) (openAccounts, error) {
	var out openAccounts
	if taxAmount > 0 {
		acct, err := s.resolver.ResolveExpense(ctx, userID, "Sales Tax")
		if err != nil {
			return openAccounts{}, fmt.Errorf("%w: %v", ledger.ErrAccountResolution, err)
		}
		out.tax = &acct
	}
	if tipAmount > 0 {
		acct, err := s.resolver.ResolveExpense(ctx, userID, "Tips")
		if err != nil {
			return openAccounts{}, fmt.Errorf("%w: %v", ledger.ErrAccountResolution, err)
		}
		out.tip = &acct
	}
	return out, nil
}

// postOpenJournal builds and posts the accrual entry for a bill. The credit
// to AP must equal the sum of the debits within a cent or the open fails.
func (s *Service) postOpenJournal(ctx context.Context, tx TxRepository, bill Bill, lines []BillLine, side openAccounts) (int64, error) {
	if len(lines) == 0 {
		return 0, ledger.ErrNoLines
	}
	var entry []journals.Line
	for _, line := range lines {
		entry = append(entry, journals.Line{
			AccountID:   line.ExpenseAccountID,
			Debit:       line.Amount,
			Description: line.Description,
		})
	}
	if bill.TaxAmount > 0 && side.tax != nil {
		entry = append(entry, journals.Line{AccountID: side.tax.ID, Debit: bill.TaxAmount, Description: "Sales tax"})
	}
	if bill.TipAmount > 0 && side.tip != nil {
		entry = append(entry, journals.Line{AccountID: side.tip.ID, Debit: bill.TipAmount, Description: "Tip"})
	}
	entry = append(entry, journals.Line{
		AccountID:   bill.APAccountID,
		Credit:      bill.TotalAmount,
		Description: fmt.Sprintf("Bill %s", billLabel(bill)),
	})

	var debits, credits []float64
	for _, line := range entry {
		debits = append(debits, line.Debit)
		credits = append(credits, line.Credit)
	}
	if !ledger.Balanced(ledger.Sum2(debits...), ledger.Sum2(credits...)) {
		return 0, fmt.Errorf("%w: bill %d lines do not sum to its total", ledger.ErrUnbalanced, bill.ID)
	}

	return s.postJournal(ctx, tx, bill.UserID,
		fmt.Sprintf("Bill %s", billLabel(bill)), "bills", fmt.Sprintf("bill:%d", bill.ID), entry)
}

// postJournal writes a posted journal inside the bill transaction.
func (s *Service) postJournal(ctx context.Context, tx TxRepository, userID int64, memo, sourceModule, reference string, lines []journals.Line) (int64, error) {
	number, err := tx.ReserveJournalNumber(ctx, userID)
	if err != nil {
		return 0, err
	}
	inserted, err := tx.InsertJournal(ctx, journals.Journal{
		UserID:       userID,
		Number:       number,
		Type:         "GENERAL",
		Date:         s.now(),
		Memo:         memo,
		SourceModule: sourceModule,
		Reference:    reference,
		IsPosted:     true,
		CreatedBy:    userID,
	})
	if err != nil {
		return 0, err
	}
	if err := tx.InsertJournalLines(ctx, inserted.ID, lines); err != nil {
		return 0, err
	}
	return inserted.ID, nil
}

func (s *Service) record(ctx context.Context, userID int64, action string, entityID int64, fields map[string]any) {
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		UserID:   userID,
		Action:   action,
		Entity:   "bill",
		EntityID: fmt.Sprintf("%d", entityID),
		Status:   "success",
		Context:  fields,
		At:       s.now(),
	})
}

func billLabel(b Bill) string {
	if b.BillNumber != "" {
		return b.BillNumber
	}
	return fmt.Sprintf("#%d", b.ID)
}
