package accounts

import (
	"context"
	"fmt"
	"strings"

	ledger "github.com/harborbooks/harborbooks/internal/ledger/shared"
)

// Service wraps chart-of-accounts operations.
type Service struct {
	repo     Repository
	resolver *Resolver
}

// NewService constructs the Service.
func NewService(repo Repository, resolver *Resolver) *Service {
	return &Service{repo: repo, resolver: resolver}
}

// Resolver exposes the account resolver for collaborating services.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// List returns all active accounts for the user ordered by code.
func (s *Service) List(ctx context.Context, userID int64) ([]Account, error) {
	return s.repo.List(ctx, userID)
}

// Get returns a single account.
func (s *Service) Get(ctx context.Context, userID, id int64) (Account, error) {
	return s.repo.Get(ctx, userID, id)
}

// Create adds an account. When no code is supplied the next unused code in
// the type's standard range is assigned.
func (s *Service) Create(ctx context.Context, userID int64, name string, typ AccountType, code int) (Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Account{}, fmt.Errorf("accounts: name required")
	}
	if !typ.Valid() {
		return Account{}, fmt.Errorf("accounts: invalid type %q", typ)
	}
	if code == 0 {
		next, err := s.resolver.NextCode(ctx, userID, typ)
		if err != nil {
			return Account{}, err
		}
		code = next
	} else if lo, hi := typ.CodeRange(); code < lo || code > hi {
		return Account{}, fmt.Errorf("accounts: code %d outside %s range %d-%d", code, typ, lo, hi)
	}
	return s.repo.Create(ctx, Account{UserID: userID, Code: code, Name: name, Type: typ})
}

// Deactivate soft-deletes an account. Accounts are never hard-deleted because
// journal and bill lines keep referencing them.
func (s *Service) Deactivate(ctx context.Context, userID, id int64) error {
	if _, err := s.repo.Get(ctx, userID, id); err != nil {
		return ledger.ErrAccountNotFound
	}
	return s.repo.Deactivate(ctx, userID, id)
}
