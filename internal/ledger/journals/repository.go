package journals

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborbooks/harborbooks/internal/ledger/shared"
	"github.com/harborbooks/harborbooks/internal/platform/db"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	List(ctx context.Context, userID int64) ([]Journal, error)
	Get(ctx context.Context, userID, id int64, includeLines bool) (Journal, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	ReserveNumber(ctx context.Context, userID int64) (int64, error)
	InsertJournal(ctx context.Context, j Journal) (Journal, error)
	InsertLines(ctx context.Context, journalID int64, lines []Line) error
	GetJournalForUpdate(ctx context.Context, userID, id int64) (Journal, []Line, error)
	MarkPosted(ctx context.Context, id int64) error
	LinkReversal(ctx context.Context, originalID, reversalID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a Repository over a pgx pool.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const journalColumns = `id, user_id, journal_number, journal_type, transaction_date, memo, source_module, reference, is_posted, reversal_of_id, reversed_by_id, created_by, created_at, updated_at`

func scanJournal(row pgx.Row) (Journal, error) {
	var j Journal
	err := row.Scan(&j.ID, &j.UserID, &j.Number, &j.Type, &j.Date, &j.Memo, &j.SourceModule, &j.Reference,
		&j.IsPosted, &j.ReversalOfID, &j.ReversedByID, &j.CreatedBy, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, shared.ErrJournalNotFound
		}
		return Journal{}, err
	}
	return j, nil
}

func (r *repository) List(ctx context.Context, userID int64) ([]Journal, error) {
	rows, err := r.db.Query(ctx, `SELECT `+journalColumns+` FROM journals WHERE user_id=$1 ORDER BY journal_number DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Journal
	for rows.Next() {
		var j Journal
		err := rows.Scan(&j.ID, &j.UserID, &j.Number, &j.Type, &j.Date, &j.Memo, &j.SourceModule, &j.Reference,
			&j.IsPosted, &j.ReversalOfID, &j.ReversedByID, &j.CreatedBy, &j.CreatedAt, &j.UpdatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, j)
	}
	return entries, rows.Err()
}

func (r *repository) Get(ctx context.Context, userID, id int64, includeLines bool) (Journal, error) {
	j, err := scanJournal(r.db.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE user_id=$1 AND id=$2`, userID, id))
	if err != nil {
		return Journal{}, err
	}
	if includeLines {
		lines, err := queryLines(ctx, r.db, id)
		if err != nil {
			return Journal{}, err
		}
		j.Lines = lines
	}
	return j, nil
}

// WithTx runs fn inside a RepeatableRead transaction. db.WithTx retries
// serialization conflicts, so the counter upsert in ReserveNumber never
// surfaces a 40001 to callers creating journals concurrently.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

// ReserveNumber hands out the next journal number for the user via an upsert
// on journal_counters, so concurrent creations can never derive the same
// number.
func (r *txRepository) ReserveNumber(ctx context.Context, userID int64) (int64, error) {
	var number int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_counters (user_id, last_number) VALUES ($1, 1)
ON CONFLICT (user_id) DO UPDATE SET last_number = journal_counters.last_number + 1
RETURNING last_number`, userID).Scan(&number)
	if err != nil {
		return 0, fmt.Errorf("journals: reserve number: %w", err)
	}
	return number, nil
}

func (r *txRepository) InsertJournal(ctx context.Context, j Journal) (Journal, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journals (user_id, journal_number, journal_type, transaction_date, memo, source_module, reference, is_posted, reversal_of_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at, updated_at`,
		j.UserID, j.Number, j.Type, j.Date, j.Memo, j.SourceModule, j.Reference, j.IsPosted, j.ReversalOfID, j.CreatedBy)
	if err := row.Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return Journal{}, err
	}
	return j, nil
}

func (r *txRepository) InsertLines(ctx context.Context, journalID int64, lines []Line) error {
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

func (r *txRepository) GetJournalForUpdate(ctx context.Context, userID, id int64) (Journal, []Line, error) {
	j, err := scanJournal(r.tx.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE user_id=$1 AND id=$2 FOR UPDATE`, userID, id))
	if err != nil {
		return Journal{}, nil, err
	}
	lines, err := queryLines(ctx, r.tx, id)
	if err != nil {
		return Journal{}, nil, err
	}
	return j, lines, nil
}

func (r *txRepository) MarkPosted(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journals SET is_posted=TRUE, updated_at=NOW() WHERE id=$1 AND NOT is_posted`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrPosted
	}
	return nil
}

func (r *txRepository) LinkReversal(ctx context.Context, originalID, reversalID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journals SET reversed_by_id=$2, updated_at=NOW() WHERE id=$1 AND reversed_by_id IS NULL`, originalID, reversalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAlreadyReversed
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q queryer, journalID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, journal_id, account_id, debit, credit, description, category, location, vendor, funder, created_at, updated_at
FROM journal_lines WHERE journal_id=$1 ORDER BY id ASC`, journalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.Debit, &line.Credit, &line.Description,
			&line.Category, &line.Location, &line.Vendor, &line.Funder, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
