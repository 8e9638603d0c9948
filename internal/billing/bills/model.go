package bills

import (
	"fmt"
	"strings"
	"time"

	"github.com/harborbooks/harborbooks/internal/billing/attachments"
)

// BillStatus enumerates bill lifecycle values. PAID and VOID are terminal.
// OVERDUE is a time-derived refinement of OPEN.
type BillStatus string

const (
	BillStatusDraft   BillStatus = "DRAFT"
	BillStatusOpen    BillStatus = "OPEN"
	BillStatusPaid    BillStatus = "PAID"
	BillStatusVoid    BillStatus = "VOID"
	BillStatusOverdue BillStatus = "OVERDUE"
)

// ParseStatus normalises a caller-supplied status string.
func ParseStatus(s string) (BillStatus, error) {
	status := BillStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case BillStatusDraft, BillStatusOpen, BillStatusPaid, BillStatusVoid, BillStatusOverdue:
		return status, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// Terminal reports whether the status permits no further transitions.
func (s BillStatus) Terminal() bool {
	return s == BillStatusPaid || s == BillStatusVoid
}

// canTransition encodes the state machine: Draft→Open→Paid, Draft/Open→Void,
// Open→Overdue, Overdue→Paid/Void.
func canTransition(from, to BillStatus) bool {
	switch from {
	case BillStatusDraft:
		return to == BillStatusOpen || to == BillStatusVoid
	case BillStatusOpen:
		return to == BillStatusPaid || to == BillStatusVoid || to == BillStatusOverdue
	case BillStatusOverdue:
		return to == BillStatusPaid || to == BillStatusVoid
	}
	return false
}

// Bill is a payable obligation to a vendor.
type Bill struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"-"`
	VendorID    int64      `json:"vendor_id"`
	BillNumber  string     `json:"bill_number,omitempty"`
	BillDate    time.Time  `json:"bill_date"`
	DueDate     time.Time  `json:"due_date"`
	TotalAmount float64    `json:"total_amount"`
	AmountPaid  float64    `json:"amount_paid"`
	TaxAmount   float64    `json:"tax_amount,omitempty"`
	TipAmount   float64    `json:"tip_amount,omitempty"`
	Status      BillStatus `json:"status"`
	APAccountID int64      `json:"ap_account_id"`
	JournalID   *int64     `json:"journal_id,omitempty"`
	CreatedBy   int64      `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Lines       []BillLine               `json:"lines,omitempty"`
	Payments    []BillPayment            `json:"payments,omitempty"`
	Attachments []attachments.Attachment `json:"attachments,omitempty"`
}

// EffectiveStatus reports OVERDUE for open bills past their due date without
// requiring a stored transition.
func (b Bill) EffectiveStatus(now time.Time) BillStatus {
	if b.Status == BillStatusOpen && b.DueDate.Before(now.Truncate(24*time.Hour)) {
		return BillStatusOverdue
	}
	return b.Status
}

// BillLine allocates part of a bill to an expense account.
type BillLine struct {
	ID               int64     `json:"id"`
	BillID           int64     `json:"bill_id"`
	ExpenseAccountID int64     `json:"expense_account_id"`
	Description      string    `json:"description,omitempty"`
	Quantity         float64   `json:"quantity"`
	UnitPrice        float64   `json:"unit_price"`
	Amount           float64   `json:"amount"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BillPayment is a disbursement against a bill.
type BillPayment struct {
	ID               int64     `json:"id"`
	BillID           int64     `json:"bill_id"`
	PaymentDate      time.Time `json:"payment_date"`
	AmountPaid       float64   `json:"amount_paid"`
	PaymentAccountID int64     `json:"payment_account_id"`
	Method           string    `json:"method,omitempty"`
	Reference        string    `json:"reference,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
