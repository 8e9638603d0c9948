package invoices

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborbooks/harborbooks/internal/platform/db"
)

// ErrInvoiceNotFound is returned when an invoice does not exist for the user.
var ErrInvoiceNotFound = errors.New("invoices: invoice not found")

// Repository encapsulates DB operations for invoices.
type Repository interface {
	List(ctx context.Context, userID int64) ([]Invoice, error)
	Get(ctx context.Context, userID, id int64) (Invoice, error)
	GetLines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available inside an invoice transaction.
type TxRepository interface {
	GetInvoiceForUpdate(ctx context.Context, userID, id int64) (Invoice, error)
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	InsertLines(ctx context.Context, invoiceID int64, lines []InvoiceLine) error
	DeleteLines(ctx context.Context, invoiceID int64) error
	UpdateInvoice(ctx context.Context, inv Invoice) error
	UpdateStatus(ctx context.Context, invoiceID int64, status InvoiceStatus) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a Repository over a pgx pool.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const invoiceColumns = `id, user_id, customer_id, invoice_number, invoice_date, due_date, total_amount, amount_paid, status, ar_account_id, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.UserID, &inv.CustomerID, &inv.InvoiceNumber, &inv.InvoiceDate,
		&inv.DueDate, &inv.TotalAmount, &inv.AmountPaid, &inv.Status, &inv.ARAccountID,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func (r *repository) List(ctx context.Context, userID int64) ([]Invoice, error) {
	rows, err := r.db.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE user_id=$1 ORDER BY invoice_date DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.UserID, &inv.CustomerID, &inv.InvoiceNumber, &inv.InvoiceDate,
			&inv.DueDate, &inv.TotalAmount, &inv.AmountPaid, &inv.Status, &inv.ARAccountID,
			&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, userID, id int64) (Invoice, error) {
	return scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE user_id=$1 AND id=$2`, userID, id))
}

func (r *repository) GetLines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error) {
	rows, err := r.db.Query(ctx, `SELECT id, invoice_id, revenue_account_id, description, quantity, unit_price, amount, created_at, updated_at
FROM invoice_lines WHERE invoice_id=$1 ORDER BY id ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []InvoiceLine
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.RevenueAccountID, &line.Description,
			&line.Quantity, &line.UnitPrice, &line.Amount, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// WithTx runs fn inside a RepeatableRead transaction, with db.WithTx
// retrying serialization conflicts.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, userID, id int64) (Invoice, error) {
	return scanInvoice(r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE user_id=$1 AND id=$2 FOR UPDATE`, userID, id))
}

func (r *txRepository) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO invoices (user_id, customer_id, invoice_number, invoice_date, due_date, total_amount, amount_paid, status, ar_account_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at, updated_at`,
		inv.UserID, inv.CustomerID, inv.InvoiceNumber, inv.InvoiceDate, inv.DueDate,
		toNumeric(inv.TotalAmount), toNumeric(inv.AmountPaid), inv.Status, inv.ARAccountID, inv.CreatedBy)
	if err := row.Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (r *txRepository) InsertLines(ctx context.Context, invoiceID int64, lines []InvoiceLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO invoice_lines (invoice_id, revenue_account_id, description, quantity, unit_price, amount)
VALUES ($1,$2,$3,$4,$5,$6)`,
			invoiceID, line.RevenueAccountID, line.Description, toQuantity(line.Quantity),
			toQuantity(line.UnitPrice), toNumeric(line.Amount)); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) DeleteLines(ctx context.Context, invoiceID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id=$1`, invoiceID)
	return err
}

func (r *txRepository) UpdateInvoice(ctx context.Context, inv Invoice) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE invoices SET customer_id=$3, invoice_number=$4, invoice_date=$5, due_date=$6, total_amount=$7, updated_at=NOW()
WHERE user_id=$1 AND id=$2`,
		inv.UserID, inv.ID, inv.CustomerID, inv.InvoiceNumber, inv.InvoiceDate, inv.DueDate, toNumeric(inv.TotalAmount))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, invoiceID int64, status InvoiceStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET status=$2, updated_at=NOW() WHERE id=$1`, invoiceID, status)
	return err
}

// toNumeric formats money columns, which carry two decimal places.
func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}

// toQuantity formats quantity and unit-price columns, which carry four.
func toQuantity(v float64) any {
	return fmt.Sprintf("%.4f", v)
}
