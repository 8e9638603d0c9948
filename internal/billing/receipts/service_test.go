package receipts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harborbooks/harborbooks/internal/billing/bills"
	"github.com/harborbooks/harborbooks/internal/ledger/accounts"
	ledger "github.com/harborbooks/harborbooks/internal/ledger/shared"
)

type recordingBillCreator struct {
	created []bills.CreateInput
	nextID  int64
}

func (c *recordingBillCreator) Create(ctx context.Context, userID int64, input bills.CreateInput) (bills.Bill, error) {
	c.created = append(c.created, input)
	c.nextID++
	return bills.Bill{
		ID:          c.nextID,
		UserID:      userID,
		VendorID:    input.VendorID,
		BillDate:    input.BillDate,
		DueDate:     input.DueDate,
		TotalAmount: input.TotalAmount,
		Status:      bills.BillStatusDraft,
	}, nil
}

type fakeVendorRepo struct {
	nextID  int64
	vendors map[string]int64
}

func newFakeVendorRepo() *fakeVendorRepo {
	return &fakeVendorRepo{vendors: map[string]int64{}}
}

func (r *fakeVendorRepo) FindOrCreateVendor(ctx context.Context, userID int64, name string) (int64, error) {
	key := strings.ToLower(name)
	if id, ok := r.vendors[key]; ok {
		return id, nil
	}
	r.nextID++
	r.vendors[key] = r.nextID
	return r.nextID, nil
}

// categoryResolver maps category names to fixed expense accounts and fails on
// anything it has never seen.
type categoryResolver struct {
	byCategory map[string]accounts.Account
}

func (r *categoryResolver) ResolveExpense(ctx context.Context, userID int64, category string) (accounts.Account, error) {
	if acct, ok := r.byCategory[category]; ok {
		return acct, nil
	}
	return accounts.Account{}, errors.New("no account for " + category)
}

func (r *categoryResolver) ResolvePayment(ctx context.Context, userID int64) (accounts.Account, error) {
	return accounts.Account{ID: 800}, nil
}

func (r *categoryResolver) ResolvePayable(ctx context.Context, userID int64) (accounts.Account, error) {
	return accounts.Account{ID: 1100}, nil
}

func newTestService(creator *recordingBillCreator, vendors *fakeVendorRepo) *Service {
	resolver := &categoryResolver{byCategory: map[string]accounts.Account{
		"Meals":           {ID: 501, Code: 50020, Name: "Meals & Entertainment"},
		"Office Supplies": {ID: 502, Code: 50030, Name: "Office Supplies"},
		"stapler refills": {ID: 502, Code: 50030, Name: "Office Supplies"},
	}}
	return NewService(creator, vendors, resolver, slog.Default())
}

func groceryReceipt() ExtractedReceipt {
	return ExtractedReceipt{
		VendorName: "Corner Deli",
		Date:       time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		Subtotal:   28,
		TaxAmount:  2,
		TipAmount:  3,
		Total:      33,
		Lines: []ExtractedLine{
			{Description: "team lunch", Category: "Meals", Quantity: 1, UnitPrice: 28},
		},
	}
}

func TestBuildBillCreatesDraft(t *testing.T) {
	creator := &recordingBillCreator{}
	vendors := newFakeVendorRepo()
	svc := newTestService(creator, vendors)

	bill, err := svc.BuildBill(context.Background(), 7, groceryReceipt())
	require.NoError(t, err)
	require.Equal(t, bills.BillStatusDraft, bill.Status)
	require.Equal(t, 33.0, bill.TotalAmount)
	require.Equal(t, time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC), bill.DueDate)

	require.Len(t, creator.created, 1)
	input := creator.created[0]
	require.Equal(t, "", input.Status)
	require.Equal(t, 2.0, input.TaxAmount)
	require.Equal(t, 3.0, input.TipAmount)
	require.Len(t, input.Lines, 1)
	require.Equal(t, int64(501), input.Lines[0].ExpenseAccountID)
	require.Equal(t, 28.0, input.Lines[0].Amount)
}

func TestBuildBillReusesVendor(t *testing.T) {
	creator := &recordingBillCreator{}
	vendors := newFakeVendorRepo()
	svc := newTestService(creator, vendors)

	first, err := svc.BuildBill(context.Background(), 7, groceryReceipt())
	require.NoError(t, err)
	second, err := svc.BuildBill(context.Background(), 7, groceryReceipt())
	require.NoError(t, err)
	require.Equal(t, first.VendorID, second.VendorID)
	require.Len(t, vendors.vendors, 1)
}

func TestBuildBillFallsBackToDescriptionCategory(t *testing.T) {
	creator := &recordingBillCreator{}
	svc := newTestService(creator, newFakeVendorRepo())

	receipt := groceryReceipt()
	receipt.Lines = []ExtractedLine{
		{Description: "stapler refills", Quantity: 1, UnitPrice: 28},
	}
	_, err := svc.BuildBill(context.Background(), 7, receipt)
	require.NoError(t, err)
	require.Equal(t, int64(502), creator.created[0].Lines[0].ExpenseAccountID)
}

func TestBuildBillComputesMissingLineAmounts(t *testing.T) {
	creator := &recordingBillCreator{}
	svc := newTestService(creator, newFakeVendorRepo())

	receipt := groceryReceipt()
	receipt.Subtotal = 0
	receipt.Lines = []ExtractedLine{
		{Description: "sandwiches", Category: "Meals", Quantity: 4, UnitPrice: 7},
	}
	_, err := svc.BuildBill(context.Background(), 7, receipt)
	require.NoError(t, err)
	require.Equal(t, 28.0, creator.created[0].Lines[0].Amount)
}

func TestBuildBillRejectsTotalMismatch(t *testing.T) {
	creator := &recordingBillCreator{}
	svc := newTestService(creator, newFakeVendorRepo())

	receipt := groceryReceipt()
	receipt.Total = 40
	_, err := svc.BuildBill(context.Background(), 7, receipt)
	require.ErrorIs(t, err, ErrTotalMismatch)
	require.Empty(t, creator.created)
}

func TestBuildBillToleratesCentRounding(t *testing.T) {
	creator := &recordingBillCreator{}
	svc := newTestService(creator, newFakeVendorRepo())

	receipt := groceryReceipt()
	receipt.Total = 33.01
	_, err := svc.BuildBill(context.Background(), 7, receipt)
	require.NoError(t, err)
}

func TestBuildBillFailsWhenLineCannotBeClassified(t *testing.T) {
	creator := &recordingBillCreator{}
	svc := newTestService(creator, newFakeVendorRepo())

	receipt := groceryReceipt()
	receipt.Subtotal = 56
	receipt.Total = 61
	receipt.Lines = append(receipt.Lines, ExtractedLine{
		Description: "mystery charge", Category: "Cryptid Services", Quantity: 1, UnitPrice: 28,
	})
	_, err := svc.BuildBill(context.Background(), 7, receipt)
	require.ErrorIs(t, err, ledger.ErrAccountResolution)
	require.Empty(t, creator.created)
}
