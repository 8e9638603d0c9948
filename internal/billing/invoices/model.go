package invoices

import (
	"fmt"
	"strings"
	"time"
)

// InvoiceStatus mirrors the bill lifecycle on the receivable side.
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "DRAFT"
	InvoiceStatusOpen    InvoiceStatus = "OPEN"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusVoid    InvoiceStatus = "VOID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

// ParseStatus normalises a caller-supplied status string.
func ParseStatus(s string) (InvoiceStatus, error) {
	status := InvoiceStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case InvoiceStatusDraft, InvoiceStatusOpen, InvoiceStatusPaid, InvoiceStatusVoid, InvoiceStatusOverdue:
		return status, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

func canTransition(from, to InvoiceStatus) bool {
	switch from {
	case InvoiceStatusDraft:
		return to == InvoiceStatusOpen || to == InvoiceStatusVoid
	case InvoiceStatusOpen:
		return to == InvoiceStatusPaid || to == InvoiceStatusVoid || to == InvoiceStatusOverdue
	case InvoiceStatusOverdue:
		return to == InvoiceStatusPaid || to == InvoiceStatusVoid
	}
	return false
}

// Invoice is a receivable owed by a customer.
type Invoice struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"-"`
	CustomerID    int64         `json:"customer_id"`
	InvoiceNumber string        `json:"invoice_number,omitempty"`
	InvoiceDate   time.Time     `json:"invoice_date"`
	DueDate       time.Time     `json:"due_date"`
	TotalAmount   float64       `json:"total_amount"`
	AmountPaid    float64       `json:"amount_paid"`
	Status        InvoiceStatus `json:"status"`
	ARAccountID   int64         `json:"ar_account_id"`
	CreatedBy     int64         `json:"created_by"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	Lines []InvoiceLine `json:"lines,omitempty"`
}

// EffectiveStatus reports OVERDUE for open invoices past their due date.
func (inv Invoice) EffectiveStatus(now time.Time) InvoiceStatus {
	if inv.Status == InvoiceStatusOpen && inv.DueDate.Before(now.Truncate(24*time.Hour)) {
		return InvoiceStatusOverdue
	}
	return inv.Status
}

// InvoiceLine allocates part of an invoice to a revenue account.
type InvoiceLine struct {
	ID               int64     `json:"id"`
	InvoiceID        int64     `json:"invoice_id"`
	RevenueAccountID int64     `json:"revenue_account_id"`
	Description      string    `json:"description,omitempty"`
	Quantity         float64   `json:"quantity"`
	UnitPrice        float64   `json:"unit_price"`
	Amount           float64   `json:"amount"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
