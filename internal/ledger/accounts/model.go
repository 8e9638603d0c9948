package accounts

import "time"

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// CodeRange returns the inclusive standard numbering range for the type.
func (t AccountType) CodeRange() (lo, hi int) {
	switch t {
	case AccountTypeAsset:
		return 10000, 19999
	case AccountTypeLiability:
		return 20000, 29999
	case AccountTypeEquity:
		return 30000, 39999
	case AccountTypeRevenue:
		return 40000, 49999
	case AccountTypeExpense:
		return 50000, 59999
	}
	return 0, 0
}

// Valid reports whether the type is a known category.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// Account models a chart of accounts node. Codes are unique among a user's
// active accounts.
type Account struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"-"`
	Code      int         `json:"code"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
