package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/harborbooks/harborbooks/internal/classify"
	"github.com/harborbooks/harborbooks/internal/ledger/shared"
)

// ResolverConfig carries the canonical default account codes. Passed in
// explicitly; the resolver never reads the environment.
type ResolverConfig struct {
	APCode      int
	ARCode      int
	BankCode    int
	CashCode    int
	ExpenseCode int
	RevenueCode int
}

// DefaultResolverConfig returns the standard code assignments.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		APCode:      20001,
		ARCode:      11000,
		BankCode:    10010,
		CashCode:    10020,
		ExpenseCode: 50010,
		RevenueCode: 40010,
	}
}

// Resolver maps semantic roles (expense category, payable, payment account) to
// concrete accounts, creating them when absent. The classifier slow path runs
// before any caller opens its write transaction, so resolution never holds
// row locks across network I/O.
type Resolver struct {
	repo     Repository
	classify *classify.Resolver
	cfg      ResolverConfig
	logger   *slog.Logger
	group    singleflight.Group
	now      func() time.Time
}

// NewResolver constructs a Resolver. classifier may be nil.
func NewResolver(repo Repository, classifier *classify.Resolver, cfg ResolverConfig, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, classify: classifier, cfg: cfg, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (r *Resolver) WithNow(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// ResolveExpense finds or creates the expense account for a category.
func (r *Resolver) ResolveExpense(ctx context.Context, userID int64, category string) (Account, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return r.ensureDefault(ctx, userID, r.cfg.ExpenseCode, "General Expenses", AccountTypeExpense)
	}

	if acct, err := r.repo.FindByName(ctx, userID, category); err == nil && acct.Type == AccountTypeExpense {
		return acct, nil
	}

	existing, err := r.repo.ListByType(ctx, userID, AccountTypeExpense)
	if err != nil {
		return Account{}, fmt.Errorf("resolver: list expense accounts: %w", err)
	}
	if r.classify != nil && len(existing) > 0 {
		candidates := make([]classify.Candidate, 0, len(existing))
		for _, a := range existing {
			candidates = append(candidates, classify.Candidate{ID: a.ID, Name: a.Name})
		}
		if matchID := r.classify.Match(ctx, category, candidates); matchID != nil {
			for _, a := range existing {
				if a.ID == *matchID {
					return a, nil
				}
			}
		}
	}

	if acct, err := r.createAccount(ctx, userID, category, AccountTypeExpense); err == nil {
		return acct, nil
	} else if r.logger != nil {
		r.logger.Warn("create expense account", slog.String("category", category), slog.Any("error", err))
	}
	if len(existing) > 0 {
		return existing[0], nil
	}
	return r.ensureDefault(ctx, userID, r.cfg.ExpenseCode, "General Expenses", AccountTypeExpense)
}

// ResolvePayment finds the account payments are disbursed from: an existing
// bank account, else an existing cash account, else an auto-created default
// bank account.
func (r *Resolver) ResolvePayment(ctx context.Context, userID int64) (Account, error) {
	assets, err := r.repo.ListByType(ctx, userID, AccountTypeAsset)
	if err != nil {
		return Account{}, fmt.Errorf("resolver: list asset accounts: %w", err)
	}
	if acct, ok := firstNamed(assets, "bank", "checking"); ok {
		return acct, nil
	}
	if acct, ok := firstNamed(assets, "cash"); ok {
		return acct, nil
	}
	return r.ensureDefault(ctx, userID, r.cfg.BankCode, "Business Bank Account", AccountTypeAsset)
}

// ResolvePayable finds or creates the accounts payable account.
func (r *Resolver) ResolvePayable(ctx context.Context, userID int64) (Account, error) {
	return r.resolveCanonical(ctx, userID, "Accounts Payable", AccountTypeLiability, r.cfg.APCode)
}

// ResolveReceivable finds or creates the accounts receivable account.
func (r *Resolver) ResolveReceivable(ctx context.Context, userID int64) (Account, error) {
	return r.resolveCanonical(ctx, userID, "Accounts Receivable", AccountTypeAsset, r.cfg.ARCode)
}

// ResolveRevenue finds or creates the default revenue account.
func (r *Resolver) ResolveRevenue(ctx context.Context, userID int64) (Account, error) {
	return r.resolveCanonical(ctx, userID, "Sales Revenue", AccountTypeRevenue, r.cfg.RevenueCode)
}

func (r *Resolver) resolveCanonical(ctx context.Context, userID int64, name string, typ AccountType, code int) (Account, error) {
	if acct, err := r.repo.FindByName(ctx, userID, name); err == nil && acct.Type == typ {
		return acct, nil
	}
	existing, err := r.repo.ListByType(ctx, userID, typ)
	if err != nil {
		return Account{}, fmt.Errorf("resolver: list %s accounts: %w", strings.ToLower(string(typ)), err)
	}
	if acct, ok := firstNamed(existing, strings.ToLower(name)); ok {
		return acct, nil
	}
	if len(existing) > 0 {
		return existing[0], nil
	}
	return r.ensureDefault(ctx, userID, code, name, typ)
}

// NextCode returns the lowest unused code in the type's standard range,
// falling back to a timestamp-derived code when the range is exhausted.
func (r *Resolver) NextCode(ctx context.Context, userID int64, typ AccountType) (int, error) {
	lo, hi := typ.CodeRange()
	if lo == 0 {
		return 0, fmt.Errorf("resolver: no code range for type %q", typ)
	}
	used, err := r.repo.UsedCodes(ctx, userID, lo, hi)
	if err != nil {
		return 0, fmt.Errorf("resolver: scan used codes: %w", err)
	}
	for code := lo; code <= hi; code++ {
		if !used[code] {
			return code, nil
		}
	}
	return r.timestampCode(lo, hi), nil
}

// timestampCode seeds a code past the top of the standard range once every
// code in [lo,hi] is in use. A collision with an earlier overflow code
// surfaces as ErrCodeTaken on insert and the caller probes upward from there.
func (r *Resolver) timestampCode(lo, hi int) int {
	span := int64(hi - lo + 1)
	return hi + 1 + int(r.now().UnixNano()%span)
}

func (r *Resolver) createAccount(ctx context.Context, userID int64, name string, typ AccountType) (Account, error) {
	const maxAttempts = 5
	code, err := r.NextCode(ctx, userID, typ)
	if err != nil {
		return Account{}, err
	}
	_, hi := typ.CodeRange()
	for attempt := 0; attempt < maxAttempts; attempt++ {
		acct, err := r.repo.Create(ctx, Account{UserID: userID, Code: code, Name: name, Type: typ})
		if err == nil {
			return acct, nil
		}
		if !errors.Is(err, shared.ErrCodeTaken) {
			return Account{}, err
		}
		// Concurrent creation grabbed the code; probe the next one. Overflow
		// codes past hi keep probing upward rather than rescanning.
		code++
		if code == hi+1 {
			next, err := r.NextCode(ctx, userID, typ)
			if err != nil {
				return Account{}, err
			}
			code = next
		}
	}
	return Account{}, shared.ErrAccountResolution
}

// ensureDefault creates the canonical default account if missing. Singleflight
// collapses concurrent in-process callers; the partial unique index on
// (user_id, code) makes the insert race-free across processes.
func (r *Resolver) ensureDefault(ctx context.Context, userID int64, code int, name string, typ AccountType) (Account, error) {
	key := fmt.Sprintf("default:%d:%d", userID, code)
	result, err, _ := r.group.Do(key, func() (any, error) {
		return r.repo.CreateIfAbsent(ctx, Account{UserID: userID, Code: code, Name: name, Type: typ})
	})
	if err != nil {
		return Account{}, fmt.Errorf("%w: ensure default %q: %v", shared.ErrAccountResolution, name, err)
	}
	return result.(Account), nil
}

func firstNamed(accounts []Account, needles ...string) (Account, bool) {
	for _, needle := range needles {
		for _, a := range accounts {
			if strings.Contains(strings.ToLower(a.Name), needle) {
				return a, true
			}
		}
	}
	return Account{}, false
}
