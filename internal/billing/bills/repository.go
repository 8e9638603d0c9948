package bills

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborbooks/harborbooks/internal/ledger/journals"
	"github.com/harborbooks/harborbooks/internal/platform/db"
)

// ErrBillNotFound is returned when a bill does not exist for the user.
var ErrBillNotFound = errors.New("bills: bill not found")

// Repository encapsulates DB operations for bills.
type Repository interface {
	List(ctx context.Context, userID int64) ([]Bill, error)
	Get(ctx context.Context, userID, id int64) (Bill, error)
	GetLines(ctx context.Context, billID int64) ([]BillLine, error)
	GetPayments(ctx context.Context, billID int64) ([]BillPayment, error)
	ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]Bill, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available inside a bill transaction.
// The journal methods mirror the ledger repository; the duplication keeps a
// bill's status change, its journal, and its payment in one transaction.
type TxRepository interface {
	GetBillForUpdate(ctx context.Context, userID, id int64) (Bill, error)
	GetLines(ctx context.Context, billID int64) ([]BillLine, error)
	InsertBill(ctx context.Context, b Bill) (Bill, error)
	InsertLines(ctx context.Context, billID int64, lines []BillLine) error
	DeleteLines(ctx context.Context, billID int64) error
	UpdateBill(ctx context.Context, b Bill) error
	UpdateStatus(ctx context.Context, billID int64, status BillStatus, journalID *int64) error
	InsertPayment(ctx context.Context, p BillPayment) (BillPayment, error)
	ApplyPayment(ctx context.Context, billID int64, amount float64) error

	ReserveJournalNumber(ctx context.Context, userID int64) (int64, error)
	InsertJournal(ctx context.Context, j journals.Journal) (journals.Journal, error)
	InsertJournalLines(ctx context.Context, journalID int64, lines []journals.Line) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a Repository over a pgx pool.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const billColumns = `id, user_id, vendor_id, bill_number, bill_date, due_date, total_amount, amount_paid, tax_amount, tip_amount, status, ap_account_id, journal_id, created_by, created_at, updated_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.UserID, &b.VendorID, &b.BillNumber, &b.BillDate, &b.DueDate,
		&b.TotalAmount, &b.AmountPaid, &b.TaxAmount, &b.TipAmount, &b.Status, &b.APAccountID,
		&b.JournalID, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, ErrBillNotFound
		}
		return Bill{}, err
	}
	return b, nil
}

func (r *repository) List(ctx context.Context, userID int64) ([]Bill, error) {
	rows, err := r.db.Query(ctx, `SELECT `+billColumns+` FROM bills WHERE user_id=$1 ORDER BY bill_date DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bill
	for rows.Next() {
		var b Bill
		if err := rows.Scan(&b.ID, &b.UserID, &b.VendorID, &b.BillNumber, &b.BillDate, &b.DueDate,
			&b.TotalAmount, &b.AmountPaid, &b.TaxAmount, &b.TipAmount, &b.Status, &b.APAccountID,
			&b.JournalID, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, userID, id int64) (Bill, error) {
	return scanBill(r.db.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE user_id=$1 AND id=$2`, userID, id))
}

func (r *repository) GetLines(ctx context.Context, billID int64) ([]BillLine, error) {
	return queryBillLines(ctx, r.db, billID)
}

func (r *repository) GetPayments(ctx context.Context, billID int64) ([]BillPayment, error) {
	rows, err := r.db.Query(ctx, `SELECT id, bill_id, payment_date, amount_paid, payment_account_id, method, reference, created_at
FROM bill_payments WHERE bill_id=$1 ORDER BY id ASC`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BillPayment
	for rows.Next() {
		var p BillPayment
		if err := rows.Scan(&p.ID, &p.BillID, &p.PaymentDate, &p.AmountPaid, &p.PaymentAccountID,
			&p.Method, &p.Reference, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListOverdueCandidates returns open bills past their due date across all
// users, for the overdue scan job.
func (r *repository) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]Bill, error) {
	rows, err := r.db.Query(ctx, `SELECT `+billColumns+` FROM bills WHERE status=$1 AND due_date < $2 ORDER BY id ASC`,
		BillStatusOpen, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bill
	for rows.Next() {
		var b Bill
		if err := rows.Scan(&b.ID, &b.UserID, &b.VendorID, &b.BillNumber, &b.BillDate, &b.DueDate,
			&b.TotalAmount, &b.AmountPaid, &b.TaxAmount, &b.TipAmount, &b.Status, &b.APAccountID,
			&b.JournalID, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// WithTx runs fn inside a RepeatableRead transaction, with db.WithTx
// retrying serialization conflicts from the journal counter upsert.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetBillForUpdate(ctx context.Context, userID, id int64) (Bill, error) {
	return scanBill(r.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE user_id=$1 AND id=$2 FOR UPDATE`, userID, id))
}

func (r *txRepository) GetLines(ctx context.Context, billID int64) ([]BillLine, error) {
	return queryBillLines(ctx, r.tx, billID)
}

func (r *txRepository) InsertBill(ctx context.Context, b Bill) (Bill, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO bills (user_id, vendor_id, bill_number, bill_date, due_date, total_amount, amount_paid, tax_amount, tip_amount, status, ap_account_id, journal_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id, created_at, updated_at`,
		b.UserID, b.VendorID, b.BillNumber, b.BillDate, b.DueDate, toNumeric(b.TotalAmount),
		toNumeric(b.AmountPaid), toNumeric(b.TaxAmount), toNumeric(b.TipAmount), b.Status,
		b.APAccountID, b.JournalID, b.CreatedBy)
	if err := row.Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return Bill{}, err
	}
	return b, nil
}

func (r *txRepository) InsertLines(ctx context.Context, billID int64, lines []BillLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO bill_lines (bill_id, expense_account_id, description, quantity, unit_price, amount)
VALUES ($1,$2,$3,$4,$5,$6)`,
			billID, line.ExpenseAccountID, line.Description, toQuantity(line.Quantity),
			toQuantity(line.UnitPrice), toNumeric(line.Amount)); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) DeleteLines(ctx context.Context, billID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM bill_lines WHERE bill_id=$1`, billID)
	return err
}

func (r *txRepository) UpdateBill(ctx context.Context, b Bill) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE bills SET vendor_id=$3, bill_number=$4, bill_date=$5, due_date=$6, total_amount=$7, tax_amount=$8, tip_amount=$9, updated_at=NOW()
WHERE user_id=$1 AND id=$2`,
		b.UserID, b.ID, b.VendorID, b.BillNumber, b.BillDate, b.DueDate,
		toNumeric(b.TotalAmount), toNumeric(b.TaxAmount), toNumeric(b.TipAmount))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, billID int64, status BillStatus, journalID *int64) error {
	var err error
	if journalID != nil {
		_, err = r.tx.Exec(ctx, `UPDATE bills SET status=$2, journal_id=$3, updated_at=NOW() WHERE id=$1`, billID, status, *journalID)
	} else {
		_, err = r.tx.Exec(ctx, `UPDATE bills SET status=$2, updated_at=NOW() WHERE id=$1`, billID, status)
	}
	return err
}

func (r *txRepository) InsertPayment(ctx context.Context, p BillPayment) (BillPayment, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO bill_payments (bill_id, payment_date, amount_paid, payment_account_id, method, reference)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at`,
		p.BillID, p.PaymentDate, toNumeric(p.AmountPaid), p.PaymentAccountID, p.Method, p.Reference)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return BillPayment{}, err
	}
	return p, nil
}

func (r *txRepository) ApplyPayment(ctx context.Context, billID int64, amount float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE bills SET amount_paid = amount_paid + $2, updated_at=NOW() WHERE id=$1`, billID, toNumeric(amount))
	return err
}

// ReserveJournalNumber duplicates the ledger counter upsert; it is needed
// here for transaction context.
func (r *txRepository) ReserveJournalNumber(ctx context.Context, userID int64) (int64, error) {
	var number int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_counters (user_id, last_number) VALUES ($1, 1)
ON CONFLICT (user_id) DO UPDATE SET last_number = journal_counters.last_number + 1
RETURNING last_number`, userID).Scan(&number)
	if err != nil {
		return 0, fmt.Errorf("bills: reserve journal number: %w", err)
	}
	return number, nil
}

func (r *txRepository) InsertJournal(ctx context.Context, j journals.Journal) (journals.Journal, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journals (user_id, journal_number, journal_type, transaction_date, memo, source_module, reference, is_posted, reversal_of_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at, updated_at`,
		j.UserID, j.Number, j.Type, j.Date, j.Memo, j.SourceModule, j.Reference, j.IsPosted, j.ReversalOfID, j.CreatedBy)
	if err := row.Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return journals.Journal{}, err
	}
	return j, nil
}

func (r *txRepository) InsertJournalLines(ctx context.Context, journalID int64, lines []journals.Line) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (journal_id, account_id, debit, credit, description, category, location, vendor, funder)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			journalID, line.AccountID, toNumeric(line.Debit), toNumeric(line.Credit), line.Description,
			line.Category, line.Location, line.Vendor, line.Funder); err != nil {
			return err
		}
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryBillLines(ctx context.Context, q queryer, billID int64) ([]BillLine, error) {
	rows, err := q.Query(ctx, `SELECT id, bill_id, expense_account_id, description, quantity, unit_price, amount, created_at, updated_at
FROM bill_lines WHERE bill_id=$1 ORDER BY id ASC`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []BillLine
	for rows.Next() {
		var line BillLine
		if err := rows.Scan(&line.ID, &line.BillID, &line.ExpenseAccountID, &line.Description,
			&line.Quantity, &line.UnitPrice, &line.Amount, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// toNumeric formats money columns, which carry two decimal places.
func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}

// toQuantity formats quantity and unit-price columns, which carry four.
func toQuantity(v float64) any {
	return fmt.Sprintf("%.4f", v)
}
