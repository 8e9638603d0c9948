package journals

import "time"

// Journal is a ledger transaction header. Once posted it is immutable;
// corrections happen through reversing entries.
type Journal struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"-"`
	Number       int64     `json:"journal_number"`
	Type         string    `json:"journal_type"`
	Date         time.Time `json:"transaction_date"`
	Memo         string    `json:"memo"`
	SourceModule string    `json:"source_module,omitempty"`
	Reference    string    `json:"reference,omitempty"`
	IsPosted     bool      `json:"is_posted"`
	ReversalOfID *int64    `json:"reversal_of_journal_id,omitempty"`
	ReversedByID *int64    `json:"reversed_by_journal_id,omitempty"`
	CreatedBy    int64     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Lines        []Line    `json:"lines,omitempty"`
}

// Line stores a debit or credit amount for an account. Exactly one of
// Debit/Credit is nonzero on a valid line.
type Line struct {
	ID          int64     `json:"id"`
	JournalID   int64     `json:"journal_id"`
	AccountID   int64     `json:"account_id"`
	Debit       float64   `json:"debit"`
	Credit      float64   `json:"credit"`
	Description string    `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Vendor      *string   `json:"vendor,omitempty"`
	Funder      *string   `json:"funder,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
