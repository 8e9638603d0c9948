package accounts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harborbooks/harborbooks/internal/classify"
	"github.com/harborbooks/harborbooks/internal/ledger/shared"
)

// fakeAccountRepo keeps accounts in memory. hiddenCodes simulates codes taken
// by concurrent writers: invisible to UsedCodes but rejected on Create, the
// way a unique-index violation surfaces.
type fakeAccountRepo struct {
	mu          sync.Mutex
	nextID      int64
	accounts    []Account
	hiddenCodes map[int]bool
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{hiddenCodes: map[int]bool{}}
}

func (r *fakeAccountRepo) add(userID int64, code int, name string, typ AccountType) Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a := Account{ID: r.nextID, UserID: userID, Code: code, Name: name, Type: typ, IsActive: true}
	r.accounts = append(r.accounts, a)
	return a
}

func (r *fakeAccountRepo) List(ctx context.Context, userID int64) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Account
	for _, a := range r.accounts {
		if a.UserID == userID && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) Get(ctx context.Context, userID, id int64) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.UserID == userID && a.ID == id {
			return a, nil
		}
	}
	return Account{}, shared.ErrAccountNotFound
}

func (r *fakeAccountRepo) FindByName(ctx context.Context, userID int64, name string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.UserID == userID && a.IsActive && strings.EqualFold(a.Name, name) {
			return a, nil
		}
	}
	return Account{}, shared.ErrAccountNotFound
}

func (r *fakeAccountRepo) FindByCode(ctx context.Context, userID int64, code int) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.UserID == userID && a.IsActive && a.Code == code {
			return a, nil
		}
	}
	return Account{}, shared.ErrAccountNotFound
}

func (r *fakeAccountRepo) ListByType(ctx context.Context, userID int64, typ AccountType) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Account
	for _, a := range r.accounts {
		if a.UserID == userID && a.IsActive && a.Type == typ {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) UsedCodes(ctx context.Context, userID int64, lo, hi int) (map[int]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	used := map[int]bool{}
	for _, a := range r.accounts {
		if a.UserID == userID && a.IsActive && a.Code >= lo && a.Code <= hi {
			used[a.Code] = true
		}
	}
	return used, nil
}

func (r *fakeAccountRepo) Create(ctx context.Context, account Account) (Account, error) {
	r.mu.Lock()
	hidden := r.hiddenCodes[account.Code]
	taken := false
	for _, a := range r.accounts {
		if a.UserID == account.UserID && a.IsActive && a.Code == account.Code {
			taken = true
			break
		}
	}
	r.mu.Unlock()
	if hidden || taken {
		return Account{}, shared.ErrCodeTaken
	}
	return r.add(account.UserID, account.Code, account.Name, account.Type), nil
}

func (r *fakeAccountRepo) CreateIfAbsent(ctx context.Context, account Account) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.UserID == account.UserID && a.IsActive && a.Code == account.Code {
			return a, nil
		}
	}
	r.nextID++
	a := Account{ID: r.nextID, UserID: account.UserID, Code: account.Code, Name: account.Name, Type: account.Type, IsActive: true}
	r.accounts = append(r.accounts, a)
	return a, nil
}

func (r *fakeAccountRepo) Deactivate(ctx context.Context, userID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.accounts {
		if a.UserID == userID && a.ID == id && a.IsActive {
			r.accounts[i].IsActive = false
			return nil
		}
	}
	return shared.ErrAccountNotFound
}

func newTestResolver(repo Repository, classifier *classify.Resolver) *Resolver {
	return NewResolver(repo, classifier, DefaultResolverConfig(), nil)
}

func TestNextCodeSkipsUsed(t *testing.T) {
	repo := newFakeAccountRepo()
	repo.add(7, 50000, "Rent", AccountTypeExpense)
	repo.add(7, 50001, "Utilities", AccountTypeExpense)

	code, err := newTestResolver(repo, nil).NextCode(context.Background(), 7, AccountTypeExpense)
	require.NoError(t, err)
	require.Equal(t, 50002, code)
}

func TestCreateAccountRetriesOnCollision(t *testing.T) {
	repo := newFakeAccountRepo()
	repo.add(7, 52000, "Travel", AccountTypeExpense)
	// Codes grabbed between the scan and the insert.
	repo.hiddenCodes[50000] = true
	repo.hiddenCodes[50001] = true

	r := newTestResolver(repo, nil)
	acct, err := r.createAccount(context.Background(), 7, "Postage", AccountTypeExpense)
	require.NoError(t, err)
	require.Equal(t, 50002, acct.Code)
}

func TestNextCodeFallsBackPastExhaustedRange(t *testing.T) {
	repo := newFakeAccountRepo()
	for code := 50000; code <= 59999; code++ {
		repo.add(7, code, fmt.Sprintf("Expense %d", code), AccountTypeExpense)
	}

	r := newTestResolver(repo, nil)
	r.WithNow(func() time.Time { return time.Unix(0, 1234567) })

	code, err := r.NextCode(context.Background(), 7, AccountTypeExpense)
	require.NoError(t, err)
	require.Equal(t, 64567, code)
}

func TestCreateAccountSucceedsWhenRangeExhausted(t *testing.T) {
	repo := newFakeAccountRepo()
	for code := 50000; code <= 59999; code++ {
		repo.add(7, code, fmt.Sprintf("Expense %d", code), AccountTypeExpense)
	}
	// An earlier overflow code is already taken; creation probes past it.
	repo.add(7, 64567, "Overflow", AccountTypeExpense)

	r := newTestResolver(repo, nil)
	r.WithNow(func() time.Time { return time.Unix(0, 1234567) })

	acct, err := r.createAccount(context.Background(), 7, "Consulting", AccountTypeExpense)
	require.NoError(t, err)
	require.Equal(t, 64568, acct.Code)
}

func TestResolveExpenseExactNameWins(t *testing.T) {
	repo := newFakeAccountRepo()
	want := repo.add(7, 50000, "Office Supplies", AccountTypeExpense)

	acct, err := newTestResolver(repo, nil).ResolveExpense(context.Background(), 7, "office supplies")
	require.NoError(t, err)
	require.Equal(t, want.ID, acct.ID)
}

func TestResolveExpenseUsesClassifier(t *testing.T) {
	repo := newFakeAccountRepo()
	repo.add(7, 50000, "Office Supplies", AccountTypeExpense)
	want := repo.add(7, 50001, "Software", AccountTypeExpense)

	classifier := classify.NewResolver(nil, time.Second, 0.6, nil)
	acct, err := newTestResolver(repo, classifier).ResolveExpense(context.Background(), 7, "annual software license")
	require.NoError(t, err)
	require.Equal(t, want.ID, acct.ID)
}

func TestResolveExpenseCreatesCategoryAccount(t *testing.T) {
	repo := newFakeAccountRepo()

	acct, err := newTestResolver(repo, nil).ResolveExpense(context.Background(), 7, "Vehicle Maintenance")
	require.NoError(t, err)
	require.Equal(t, "Vehicle Maintenance", acct.Name)
	require.Equal(t, AccountTypeExpense, acct.Type)
	require.Equal(t, 50000, acct.Code)
}

func TestResolveExpenseEmptyCategoryFallsToDefault(t *testing.T) {
	repo := newFakeAccountRepo()

	acct, err := newTestResolver(repo, nil).ResolveExpense(context.Background(), 7, "  ")
	require.NoError(t, err)
	require.Equal(t, "General Expenses", acct.Name)
	require.Equal(t, 50010, acct.Code)
}

func TestResolvePaymentPrefersBank(t *testing.T) {
	repo := newFakeAccountRepo()
	repo.add(7, 10020, "Petty Cash", AccountTypeAsset)
	want := repo.add(7, 10030, "Main Bank Checking", AccountTypeAsset)

	acct, err := newTestResolver(repo, nil).ResolvePayment(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, want.ID, acct.ID)
}

func TestResolvePaymentFallsToCash(t *testing.T) {
	repo := newFakeAccountRepo()
	want := repo.add(7, 10020, "Petty Cash", AccountTypeAsset)

	acct, err := newTestResolver(repo, nil).ResolvePayment(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, want.ID, acct.ID)
}

func TestResolvePaymentCreatesDefaultBank(t *testing.T) {
	repo := newFakeAccountRepo()

	acct, err := newTestResolver(repo, nil).ResolvePayment(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "Business Bank Account", acct.Name)
	require.Equal(t, 10010, acct.Code)
}

func TestEnsureDefaultNeverDuplicates(t *testing.T) {
	repo := newFakeAccountRepo()
	r := newTestResolver(repo, nil)

	var wg sync.WaitGroup
	results := make([]Account, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acct, err := r.ResolvePayment(context.Background(), 7)
			require.NoError(t, err)
			results[i] = acct
		}(i)
	}
	wg.Wait()

	for _, acct := range results {
		require.Equal(t, results[0].ID, acct.ID)
	}
	all, err := repo.List(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestResolvePayableReusesExistingLiability(t *testing.T) {
	repo := newFakeAccountRepo()
	want := repo.add(7, 21000, "Trade Creditors", AccountTypeLiability)

	acct, err := newTestResolver(repo, nil).ResolvePayable(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, want.ID, acct.ID)
}

func TestResolvePayableCreatesCanonicalDefault(t *testing.T) {
	repo := newFakeAccountRepo()

	acct, err := newTestResolver(repo, nil).ResolvePayable(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "Accounts Payable", acct.Name)
	require.Equal(t, 20001, acct.Code)
}
