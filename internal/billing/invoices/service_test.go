package invoices

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harborbooks/harborbooks/internal/ledger/accounts"
	internalShared "github.com/harborbooks/harborbooks/internal/shared"
)

type fakeInvoiceRepo struct {
	nextID   int64
	invoices map[int64]Invoice
	lines    map[int64][]InvoiceLine
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: map[int64]Invoice{}, lines: map[int64][]InvoiceLine{}}
}

func (r *fakeInvoiceRepo) List(ctx context.Context, userID int64) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.UserID == userID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) Get(ctx context.Context, userID, id int64) (Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok || inv.UserID != userID {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (r *fakeInvoiceRepo) GetLines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error) {
	return r.lines[invoiceID], nil
}

func (r *fakeInvoiceRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := &fakeInvoiceTx{
		invoices: map[int64]Invoice{},
		lines:    map[int64][]InvoiceLine{},
		nextID:   r.nextID,
	}
	for id, inv := range r.invoices {
		staged.invoices[id] = inv
	}
	for id, ls := range r.lines {
		staged.lines[id] = append([]InvoiceLine(nil), ls...)
	}
	if err := fn(ctx, staged); err != nil {
		return err
	}
	r.invoices = staged.invoices
	r.lines = staged.lines
	r.nextID = staged.nextID
	return nil
}

type fakeInvoiceTx struct {
	invoices map[int64]Invoice
	lines    map[int64][]InvoiceLine
	nextID   int64
}

func (tx *fakeInvoiceTx) GetInvoiceForUpdate(ctx context.Context, userID, id int64) (Invoice, error) {
	inv, ok := tx.invoices[id]
	if !ok || inv.UserID != userID {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (tx *fakeInvoiceTx) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	tx.nextID++
	inv.ID = tx.nextID
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	tx.invoices[inv.ID] = inv
	return inv, nil
}

func (tx *fakeInvoiceTx) InsertLines(ctx context.Context, invoiceID int64, lines []InvoiceLine) error {
	tx.lines[invoiceID] = append(tx.lines[invoiceID], lines...)
	return nil
}

func (tx *fakeInvoiceTx) DeleteLines(ctx context.Context, invoiceID int64) error {
	delete(tx.lines, invoiceID)
	return nil
}

func (tx *fakeInvoiceTx) UpdateInvoice(ctx context.Context, inv Invoice) error {
	if _, ok := tx.invoices[inv.ID]; !ok {
		return ErrInvoiceNotFound
	}
	tx.invoices[inv.ID] = inv
	return nil
}

func (tx *fakeInvoiceTx) UpdateStatus(ctx context.Context, invoiceID int64, status InvoiceStatus) error {
	inv, ok := tx.invoices[invoiceID]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Status = status
	tx.invoices[invoiceID] = inv
	return nil
}

type fixedReceivable struct {
	account accounts.Account
}

func (r *fixedReceivable) ResolveReceivable(ctx context.Context, userID int64) (accounts.Account, error) {
	return r.account, nil
}

type discardAudit struct{}

func (discardAudit) Record(ctx context.Context, log internalShared.AuditLog) error { return nil }

func newTestService(repo *fakeInvoiceRepo) *Service {
	resolver := &fixedReceivable{account: accounts.Account{ID: 1200, Code: 10020, Name: "Accounts Receivable", Type: accounts.AccountTypeAsset}}
	return NewService(repo, resolver, discardAudit{}, slog.Default())
}

func simpleInvoice(total float64) CreateInput {
	return CreateInput{
		CustomerID:  9,
		InvoiceDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{RevenueAccountID: 40010, Quantity: 1, UnitPrice: total},
		},
	}
}

func TestCreateDefaultsARAccount(t *testing.T) {
	svc := newTestService(newFakeInvoiceRepo())

	inv, err := svc.Create(context.Background(), 7, simpleInvoice(250))
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusDraft, inv.Status)
	require.Equal(t, 250.0, inv.TotalAmount)
	require.Equal(t, int64(1200), inv.ARAccountID)
	require.Len(t, inv.Lines, 1)
}

func TestCreateOpenDirectly(t *testing.T) {
	svc := newTestService(newFakeInvoiceRepo())

	input := simpleInvoice(250)
	input.Status = "open"
	inv, err := svc.Create(context.Background(), 7, input)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusOpen, inv.Status)
}

func TestCreateRejectsTerminalStatus(t *testing.T) {
	svc := newTestService(newFakeInvoiceRepo())

	input := simpleInvoice(250)
	input.Status = "paid"
	_, err := svc.Create(context.Background(), 7, input)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCreateRejectsInconsistentLineAmount(t *testing.T) {
	svc := newTestService(newFakeInvoiceRepo())

	input := simpleInvoice(250)
	input.Lines[0].Amount = 260
	_, err := svc.Create(context.Background(), 7, input)
	require.ErrorIs(t, err, ErrLineInconsistent)
}

func TestUpdateReplacesDraftLines(t *testing.T) {
	repo := newFakeInvoiceRepo()
	svc := newTestService(repo)

	inv, err := svc.Create(context.Background(), 7, simpleInvoice(250))
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), 7, inv.ID, UpdateInput{
		CustomerID:  9,
		InvoiceDate: inv.InvoiceDate,
		DueDate:     inv.DueDate,
		Lines: []LineInput{
			{RevenueAccountID: 40010, Quantity: 2, UnitPrice: 100},
			{RevenueAccountID: 40020, Quantity: 1, UnitPrice: 50},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 250.0, updated.TotalAmount)
	require.Len(t, repo.lines[inv.ID], 2)
	require.Equal(t, 200.0, repo.lines[inv.ID][0].Amount)
}

func TestUpdateOnlyWhileDraft(t *testing.T) {
	svc := newTestService(newFakeInvoiceRepo())

	input := simpleInvoice(250)
	input.Status = "open"
	inv, err := svc.Create(context.Background(), 7, input)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), 7, inv.ID, UpdateInput{
		CustomerID:  9,
		InvoiceDate: inv.InvoiceDate,
		DueDate:     inv.DueDate,
		Lines:       []LineInput{{RevenueAccountID: 40010, Quantity: 1, UnitPrice: 10}},
	})
	require.ErrorIs(t, err, ErrNotDraft)
}

func TestStatusTransitions(t *testing.T) {
	repo := newFakeInvoiceRepo()
	svc := newTestService(repo)

	inv, err := svc.Create(context.Background(), 7, simpleInvoice(250))
	require.NoError(t, err)

	opened, err := svc.UpdateStatus(context.Background(), 7, inv.ID, "open")
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusOpen, opened.Status)

	paid, err := svc.UpdateStatus(context.Background(), 7, inv.ID, "paid")
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPaid, paid.Status)

	// Terminal: nothing moves a paid invoice.
	_, err = svc.UpdateStatus(context.Background(), 7, inv.ID, "void")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDraftCannotBePaid(t *testing.T) {
	svc := newTestService(newFakeInvoiceRepo())

	inv, err := svc.Create(context.Background(), 7, simpleInvoice(250))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), 7, inv.ID, "paid")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOverdueRequiresPastDue(t *testing.T) {
	svc := newTestService(newFakeInvoiceRepo())
	svc.WithNow(func() time.Time { return time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) })

	input := simpleInvoice(250)
	input.Status = "open"
	inv, err := svc.Create(context.Background(), 7, input)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), 7, inv.ID, "overdue")
	require.ErrorIs(t, err, ErrInvalidTransition)

	svc.WithNow(func() time.Time { return time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC) })
	marked, err := svc.UpdateStatus(context.Background(), 7, inv.ID, "overdue")
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusOverdue, marked.Status)
}

func TestListDerivesOverdue(t *testing.T) {
	svc := newTestService(newFakeInvoiceRepo())

	input := simpleInvoice(250)
	input.Status = "open"
	_, err := svc.Create(context.Background(), 7, input)
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC) })
	list, err := svc.List(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, InvoiceStatusOverdue, list[0].Status)
}
