package bills

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harborbooks/harborbooks/internal/ledger/accounts"
	"github.com/harborbooks/harborbooks/internal/ledger/journals"
	ledger "github.com/harborbooks/harborbooks/internal/ledger/shared"
	internalShared "github.com/harborbooks/harborbooks/internal/shared"
)

// fakeBillRepo mimics the transactional contract: mutations are staged and
// discarded when the callback errors.
type fakeBillRepo struct {
	nextID        int64
	nextJournalID int64
	counter       int64
	bills         map[int64]Bill
	lines         map[int64][]BillLine
	payments      map[int64][]BillPayment
	journals      map[int64]journals.Journal
	journalLines  map[int64][]journals.Line
}

func newFakeBillRepo() *fakeBillRepo {
	return &fakeBillRepo{
		bills:        map[int64]Bill{},
		lines:        map[int64][]BillLine{},
		payments:     map[int64][]BillPayment{},
		journals:     map[int64]journals.Journal{},
		journalLines: map[int64][]journals.Line{},
	}
}

func (r *fakeBillRepo) List(ctx context.Context, userID int64) ([]Bill, error) {
	var out []Bill
	for _, b := range r.bills {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeBillRepo) Get(ctx context.Context, userID, id int64) (Bill, error) {
	b, ok := r.bills[id]
	if !ok || b.UserID != userID {
		return Bill{}, ErrBillNotFound
	}
	return b, nil
}

func (r *fakeBillRepo) GetLines(ctx context.Context, billID int64) ([]BillLine, error) {
	return r.lines[billID], nil
}

func (r *fakeBillRepo) GetPayments(ctx context.Context, billID int64) ([]BillPayment, error) {
	return r.payments[billID], nil
}

func (r *fakeBillRepo) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]Bill, error) {
	var out []Bill
	for _, b := range r.bills {
		if b.Status == BillStatusOpen && b.DueDate.Before(asOf) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeBillRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := &fakeBillTx{
		bills:         map[int64]Bill{},
		lines:         map[int64][]BillLine{},
		payments:      map[int64][]BillPayment{},
		journals:      map[int64]journals.Journal{},
		journalLines:  map[int64][]journals.Line{},
		nextID:        r.nextID,
		nextJournalID: r.nextJournalID,
		counter:       r.counter,
	}
	for id, b := range r.bills {
		staged.bills[id] = b
	}
	for id, ls := range r.lines {
		staged.lines[id] = append([]BillLine(nil), ls...)
	}
	for id, ps := range r.payments {
		staged.payments[id] = append([]BillPayment(nil), ps...)
	}
	for id, j := range r.journals {
		staged.journals[id] = j
	}
	for id, ls := range r.journalLines {
		staged.journalLines[id] = append([]journals.Line(nil), ls...)
	}
	if err := fn(ctx, staged); err != nil {
		return err
	}
	r.bills = staged.bills
	r.lines = staged.lines
	r.payments = staged.payments
	r.journals = staged.journals
	r.journalLines = staged.journalLines
	r.nextID = staged.nextID
	r.nextJournalID = staged.nextJournalID
	r.counter = staged.counter
	return nil
}

type fakeBillTx struct {
	bills         map[int64]Bill
	lines         map[int64][]BillLine
	payments      map[int64][]BillPayment
	journals      map[int64]journals.Journal
	journalLines  map[int64][]journals.Line
	nextID        int64
	nextJournalID int64
	counter       int64
}

func (tx *fakeBillTx) GetBillForUpdate(ctx context.Context, userID, id int64) (Bill, error) {
	b, ok := tx.bills[id]
	if !ok || b.UserID != userID {
		return Bill{}, ErrBillNotFound
	}
	return b, nil
}

func (tx *fakeBillTx) GetLines(ctx context.Context, billID int64) ([]BillLine, error) {
	return tx.lines[billID], nil
}

func (tx *fakeBillTx) InsertBill(ctx context.Context, b Bill) (Bill, error) {
	tx.nextID++
	b.ID = tx.nextID
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	tx.bills[b.ID] = b
	return b, nil
}

func (tx *fakeBillTx) InsertLines(ctx context.Context, billID int64, lines []BillLine) error {
	for i := range lines {
		lines[i].BillID = billID
	}
	tx.lines[billID] = append(tx.lines[billID], lines...)
	return nil
}

func (tx *fakeBillTx) DeleteLines(ctx context.Context, billID int64) error {
	delete(tx.lines, billID)
	return nil
}

func (tx *fakeBillTx) UpdateBill(ctx context.Context, b Bill) error {
	if _, ok := tx.bills[b.ID]; !ok {
		return ErrBillNotFound
	}
	tx.bills[b.ID] = b
	return nil
}

func (tx *fakeBillTx) UpdateStatus(ctx context.Context, billID int64, status BillStatus, journalID *int64) error {
	b, ok := tx.bills[billID]
	if !ok {
		return ErrBillNotFound
	}
	b.Status = status
	if journalID != nil {
		b.JournalID = journalID
	}
	tx.bills[billID] = b
	return nil
}

func (tx *fakeBillTx) InsertPayment(ctx context.Context, p BillPayment) (BillPayment, error) {
	p.ID = int64(len(tx.payments[p.BillID]) + 1)
	p.CreatedAt = time.Now()
	tx.payments[p.BillID] = append(tx.payments[p.BillID], p)
	return p, nil
}

func (tx *fakeBillTx) ApplyPayment(ctx context.Context, billID int64, amount float64) error {
	b, ok := tx.bills[billID]
	if !ok {
		return ErrBillNotFound
	}
	b.AmountPaid += amount
	tx.bills[billID] = b
	return nil
}

func (tx *fakeBillTx) ReserveJournalNumber(ctx context.Context, userID int64) (int64, error) {
	tx.counter++
	return tx.counter, nil
}

func (tx *fakeBillTx) InsertJournal(ctx context.Context, j journals.Journal) (journals.Journal, error) {
	tx.nextJournalID++
	j.ID = tx.nextJournalID
	tx.journals[j.ID] = j
	return j, nil
}

func (tx *fakeBillTx) InsertJournalLines(ctx context.Context, journalID int64, lines []journals.Line) error {
	tx.journalLines[journalID] = append(tx.journalLines[journalID], lines...)
	return nil
}

// fakeResolver hands out fixed accounts per role.
type fakeResolver struct {
	expense accounts.Account
	payment accounts.Account
	payable accounts.Account
	fail    bool
}

func (r *fakeResolver) ResolveExpense(ctx context.Context, userID int64, category string) (accounts.Account, error) {
	if r.fail {
		return accounts.Account{}, ledger.ErrAccountResolution
	}
	return r.expense, nil
}

func (r *fakeResolver) ResolvePayment(ctx context.Context, userID int64) (accounts.Account, error) {
	if r.fail {
		return accounts.Account{}, ledger.ErrAccountResolution
	}
	return r.payment, nil
}

func (r *fakeResolver) ResolvePayable(ctx context.Context, userID int64) (accounts.Account, error) {
	if r.fail {
		return accounts.Account{}, ledger.ErrAccountResolution
	}
	return r.payable, nil
}

type recordingAudit struct {
	logs []internalShared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log internalShared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestService(repo *fakeBillRepo) *Service {
	resolver := &fakeResolver{
		expense: accounts.Account{ID: 900, Code: 50090, Name: "Sales Tax", Type: accounts.AccountTypeExpense},
		payment: accounts.Account{ID: 800, Code: 10010, Name: "Business Bank Account", Type: accounts.AccountTypeAsset},
		payable: accounts.Account{ID: 1100, Code: 20001, Name: "Accounts Payable", Type: accounts.AccountTypeLiability},
	}
	return NewService(repo, resolver, &recordingAudit{}, slog.Default())
}

func simpleBill(total float64) CreateInput {
	return CreateInput{
		VendorID: 5,
		BillDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		DueDate:  time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{ExpenseAccountID: 5010, Quantity: 1, UnitPrice: total},
		},
	}
}

func TestCreateDraftDefaultsTotalAndAP(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestService(repo)

	bill, err := svc.Create(context.Background(), 7, simpleBill(100))
	require.NoError(t, err)
	require.Equal(t, BillStatusDraft, bill.Status)
	require.Equal(t, 100.0, bill.TotalAmount)
	require.Equal(t, int64(1100), bill.APAccountID)
	require.Nil(t, bill.JournalID)
	require.Empty(t, repo.journals)
}

func TestCreateRejectsInconsistentLineAmount(t *testing.T) {
	svc := newTestService(newFakeBillRepo())

	input := simpleBill(100)
	input.Lines[0].Amount = 105
	_, err := svc.Create(context.Background(), 7, input)
	require.ErrorIs(t, err, ErrLineInconsistent)
}

func TestOpenPostsAccrualJournal(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestService(repo)

	bill, err := svc.Create(context.Background(), 7, simpleBill(100))
	require.NoError(t, err)

	opened, err := svc.UpdateStatus(context.Background(), 7, bill.ID, "open")
	require.NoError(t, err)
	require.Equal(t, BillStatusOpen, opened.Status)
	require.NotNil(t, opened.JournalID)

	j := repo.journals[*opened.JournalID]
	require.True(t, j.IsPosted)
	require.Equal(t, "bills", j.SourceModule)

	lines := repo.journalLines[*opened.JournalID]
	require.Len(t, lines, 2)
	require.Equal(t, int64(5010), lines[0].AccountID)
	require.Equal(t, 100.0, lines[0].Debit)
	require.Equal(t, int64(1100), lines[1].AccountID)
	require.Equal(t, 100.0, lines[1].Credit)
}

func TestOpenWithTaxAndTipDebitsResolvedAccounts(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestService(repo)

	input := simpleBill(28)
	input.TaxAmount = 2
	input.TipAmount = 3
	input.Status = "open"
	bill, err := svc.Create(context.Background(), 7, input)
	require.NoError(t, err)
	require.Equal(t, BillStatusOpen, bill.Status)
	require.Equal(t, 33.0, bill.TotalAmount)
	require.NotNil(t, bill.JournalID)

	lines := repo.journalLines[*bill.JournalID]
	require.Len(t, lines, 4)
	var debits, credits float64
	for _, line := range lines {
		debits += line.Debit
		credits += line.Credit
	}
	require.InDelta(t, 33.0, debits, 0.001)
	require.InDelta(t, 33.0, credits, 0.001)
}

func TestOpenFailsWhenTotalDisagrees(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestService(repo)

	input := simpleBill(100)
	input.TotalAmount = 150
	bill, err := svc.Create(context.Background(), 7, input)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), 7, bill.ID, "open")
	require.ErrorIs(t, err, ledger.ErrUnbalanced)

	// Nothing persisted: status unchanged, no journal.
	stored, err := svc.Get(context.Background(), 7, bill.ID, false, false)
	require.NoError(t, err)
	require.Equal(t, BillStatusDraft, stored.Status)
	require.Nil(t, stored.JournalID)
	require.Empty(t, repo.journals)
}

func TestPaidCreatesPaymentForRemaining(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestService(repo)
	fixed := time.Date(2025, 7, 10, 9, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return fixed })

	input := simpleBill(28)
	input.TaxAmount = 2
	input.TipAmount = 3
	input.Status = "open"
	bill, err := svc.Create(context.Background(), 7, input)
	require.NoError(t, err)

	paid, err := svc.UpdateStatus(context.Background(), 7, bill.ID, "paid")
	require.NoError(t, err)
	require.Equal(t, BillStatusPaid, paid.Status)
	require.Equal(t, 33.0, paid.AmountPaid)

	payments := repo.payments[bill.ID]
	require.Len(t, payments, 1)
	require.Equal(t, 33.0, payments[0].AmountPaid)
	require.Equal(t, int64(800), payments[0].PaymentAccountID)
	require.Equal(t, fixed, payments[0].PaymentDate)

	// Accrual journal plus payment journal.
	require.Len(t, repo.journals, 2)
}

func TestPaidIsIdempotent(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestService(repo)

	input := simpleBill(100)
	input.Status = "open"
	bill, err := svc.Create(context.Background(), 7, input)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), 7, bill.ID, "paid")
	require.NoError(t, err)
	again, err := svc.UpdateStatus(context.Background(), 7, bill.ID, "paid")
	require.NoError(t, err)
	require.Equal(t, BillStatusPaid, again.Status)
	require.Len(t, repo.payments[bill.ID], 1)
}

func TestDraftCannotBePaid(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestService(repo)

	bill, err := svc.Create(context.Background(), 7, simpleBill(100))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), 7, bill.ID, "paid")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestBulkStatusContinuesPastFailures(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestService(repo)

	var ids []int64
	for i := 0; i < 3; i++ {
		input := simpleBill(50)
		input.Status = "open"
		bill, err := svc.Create(context.Background(), 7, input)
		require.NoError(t, err)
		ids = append(ids, bill.ID)
	}
	// Void the middle bill so its paid transition fails.
	_, err := svc.UpdateStatus(context.Background(), 7, ids[1], "void")
	require.NoError(t, err)

	result, err := svc.BulkUpdateStatus(context.Background(), 7, BulkStatusInput{BillIDs: ids, Status: "paid"})
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{ids[0], ids[2]}, result.Updated)
	require.Len(t, result.Failed, 1)
	require.Equal(t, ids[1], result.Failed[0].BillID)

	for _, id := range []int64{ids[0], ids[2]} {
		b, err := svc.Get(context.Background(), 7, id, false, false)
		require.NoError(t, err)
		require.Equal(t, BillStatusPaid, b.Status)
	}
}

func TestBulkStatusRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(newFakeBillRepo())

	_, err := svc.BulkUpdateStatus(context.Background(), 7, BulkStatusInput{BillIDs: []int64{1}, Status: "archived"})
	require.Error(t, err)
}

func TestUpdateOnlyWhileDraft(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestService(repo)

	input := simpleBill(100)
	input.Status = "open"
	bill, err := svc.Create(context.Background(), 7, input)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), 7, bill.ID, UpdateInput{
		VendorID: 5,
		BillDate: bill.BillDate,
		DueDate:  bill.DueDate,
		Lines:    []LineInput{{ExpenseAccountID: 5010, Quantity: 2, UnitPrice: 10}},
	})
	require.ErrorIs(t, err, ErrNotDraft)
}

func TestScanOverdueMarksPastDueOpenBills(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestService(repo)

	input := simpleBill(100)
	input.Status = "open"
	bill, err := svc.Create(context.Background(), 7, input)
	require.NoError(t, err)

	asOf := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return asOf })
	marked, err := svc.ScanOverdue(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 1, marked)

	stored, err := svc.Get(context.Background(), 7, bill.ID, false, false)
	require.NoError(t, err)
	require.Equal(t, BillStatusOverdue, stored.Status)
}

func TestEffectiveStatusDerivesOverdue(t *testing.T) {
	b := Bill{Status: BillStatusOpen, DueDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)}
	require.Equal(t, BillStatusOverdue, b.EffectiveStatus(time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, BillStatusOpen, b.EffectiveStatus(time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)))
}
