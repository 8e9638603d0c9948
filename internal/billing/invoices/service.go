package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harborbooks/harborbooks/internal/ledger/accounts"
	ledger "github.com/harborbooks/harborbooks/internal/ledger/shared"
	internalShared "github.com/harborbooks/harborbooks/internal/shared"
)

var (
	// ErrNotDraft is returned when an edit targets an invoice past DRAFT.
	ErrNotDraft = errors.New("invoices: only draft invoices can be edited")
	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("invoices: invalid status transition")
)

// AccountResolver supplies the receivable account when a caller omits one.
type AccountResolver interface {
	ResolveReceivable(ctx context.Context, userID int64) (accounts.Account, error)
}

// AuditPort receives immutable audit records.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service drives the invoice lifecycle. Invoices share the bill state machine
// but carry no journal or payment side effects.
type Service struct {
	repo     Repository
	resolver AccountResolver
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the Service.
func NewService(repo Repository, resolver AccountResolver, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, resolver: resolver, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns the user's invoices with time-derived overdue status applied.
func (s *Service) List(ctx context.Context, userID int64) ([]Invoice, error) {
	out, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range out {
		out[i].Status = out[i].EffectiveStatus(now)
	}
	return out, nil
}

// Get returns one invoice, optionally with its lines.
func (s *Service) Get(ctx context.Context, userID, id int64, includeLines bool) (Invoice, error) {
	inv, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return Invoice{}, err
	}
	inv.Status = inv.EffectiveStatus(s.now())
	if includeLines {
		if inv.Lines, err = s.repo.GetLines(ctx, inv.ID); err != nil {
			return Invoice{}, err
		}
	}
	return inv, nil
}

// Create stores an invoice in DRAFT or OPEN. Header and lines share one
// transaction.
func (s *Service) Create(ctx context.Context, userID int64, input CreateInput) (Invoice, error) {
	status := InvoiceStatusDraft
	if input.Status != "" {
		parsed, err := ParseStatus(input.Status)
		if err != nil {
			return Invoice{}, err
		}
		if parsed != InvoiceStatusDraft && parsed != InvoiceStatusOpen {
			return Invoice{}, fmt.Errorf("%w: invoices are created as draft or open", ErrInvalidTransition)
		}
		status = parsed
	}
	if err := input.Normalize(); err != nil {
		return Invoice{}, err
	}

	arAccountID := input.ARAccountID
	if arAccountID == 0 {
		ar, err := s.resolver.ResolveReceivable(ctx, userID)
		if err != nil {
			return Invoice{}, fmt.Errorf("%w: %v", ledger.ErrAccountResolution, err)
		}
		arAccountID = ar.ID
	}

	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertInvoice(ctx, Invoice{
			UserID:        userID,
			CustomerID:    input.CustomerID,
			InvoiceNumber: input.InvoiceNumber,
			InvoiceDate:   input.InvoiceDate,
			DueDate:       input.DueDate,
			TotalAmount:   input.TotalAmount,
			Status:        status,
			ARAccountID:   arAccountID,
			CreatedBy:     userID,
		})
		if err != nil {
			return err
		}
		lines := make([]InvoiceLine, len(input.Lines))
		for i, in := range input.Lines {
			lines[i] = InvoiceLine{
				InvoiceID:        inserted.ID,
				RevenueAccountID: in.RevenueAccountID,
				Description:      in.Description,
				Quantity:         in.Quantity,
				UnitPrice:        in.UnitPrice,
				Amount:           in.Amount,
			}
		}
		if err := tx.InsertLines(ctx, inserted.ID, lines); err != nil {
			return err
		}
		inv = inserted
		inv.Lines = lines
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	s.record(ctx, userID, "invoice.create", inv.ID, map[string]any{
		"customer_id": inv.CustomerID, "total": inv.TotalAmount, "status": inv.Status,
	})
	return inv, nil
}

// Update replaces the mutable fields of a DRAFT invoice, lines included.
func (s *Service) Update(ctx context.Context, userID, id int64, input UpdateInput) (Invoice, error) {
	create := CreateInput{TotalAmount: input.TotalAmount, Lines: input.Lines}
	if err := create.Normalize(); err != nil {
		return Invoice{}, err
	}
	input.Lines = create.Lines
	input.TotalAmount = create.TotalAmount

	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, userID, id)
		if err != nil {
			return err
		}
		if current.Status != InvoiceStatusDraft {
			return ErrNotDraft
		}
		current.CustomerID = input.CustomerID
		current.InvoiceNumber = input.InvoiceNumber
		current.InvoiceDate = input.InvoiceDate
		current.DueDate = input.DueDate
		current.TotalAmount = input.TotalAmount
		if err := tx.UpdateInvoice(ctx, current); err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		lines := make([]InvoiceLine, len(input.Lines))
		for i, in := range input.Lines {
			lines[i] = InvoiceLine{
				InvoiceID:        id,
				RevenueAccountID: in.RevenueAccountID,
				Description:      in.Description,
				Quantity:         in.Quantity,
				UnitPrice:        in.UnitPrice,
				Amount:           in.Amount,
			}
		}
		if err := tx.InsertLines(ctx, id, lines); err != nil {
			return err
		}
		inv = current
		inv.Lines = lines
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	s.record(ctx, userID, "invoice.update", inv.ID, map[string]any{"total": inv.TotalAmount})
	return inv, nil
}

// UpdateStatus transitions one invoice.
func (s *Service) UpdateStatus(ctx context.Context, userID, id int64, status string) (Invoice, error) {
	target, err := ParseStatus(status)
	if err != nil {
		return Invoice{}, err
	}

	var inv Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, userID, id)
		if err != nil {
			return err
		}
		if current.Status == target {
			inv = current
			return nil
		}
		if !canTransition(current.Status, target) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, target)
		}
		if target == InvoiceStatusOverdue && !current.DueDate.Before(s.now()) {
			return fmt.Errorf("%w: invoice %d is not past due", ErrInvalidTransition, current.ID)
		}
		if err := tx.UpdateStatus(ctx, current.ID, target); err != nil {
			return err
		}
		inv = current
		inv.Status = target
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	s.record(ctx, userID, "invoice.status", inv.ID, map[string]any{"status": inv.Status})
	return inv, nil
}

func (s *Service) record(ctx context.Context, userID int64, action string, entityID int64, fields map[string]any) {
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		UserID:   userID,
		Action:   action,
		Entity:   "invoice",
		EntityID: fmt.Sprintf("%d", entityID),
		Status:   "success",
		Context:  fields,
		At:       s.now(),
	})
}
