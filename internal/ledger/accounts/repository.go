package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborbooks/harborbooks/internal/ledger/shared"
)

// Repository encapsulates DB operations for the chart of accounts. All reads
// and writes are scoped by the owning user.
type Repository interface {
	List(ctx context.Context, userID int64) ([]Account, error)
	Get(ctx context.Context, userID, id int64) (Account, error)
	FindByName(ctx context.Context, userID int64, name string) (Account, error)
	FindByCode(ctx context.Context, userID int64, code int) (Account, error)
	ListByType(ctx context.Context, userID int64, typ AccountType) ([]Account, error)
	UsedCodes(ctx context.Context, userID int64, lo, hi int) (map[int]bool, error)
	Create(ctx context.Context, account Account) (Account, error)
	CreateIfAbsent(ctx context.Context, account Account) (Account, error)
	Deactivate(ctx context.Context, userID, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a Repository over a pgx pool.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, user_id, code, name, type, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.UserID, &a.Code, &a.Name, &a.Type, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) List(ctx context.Context, userID int64) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id=$1 AND is_active ORDER BY code`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func (r *repository) Get(ctx context.Context, userID, id int64) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id=$1 AND id=$2`, userID, id))
}

func (r *repository) FindByName(ctx context.Context, userID int64, name string) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE user_id=$1 AND is_active AND lower(name)=lower($2) ORDER BY code LIMIT 1`, userID, name))
}

func (r *repository) FindByCode(ctx context.Context, userID int64, code int) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE user_id=$1 AND is_active AND code=$2`, userID, code))
}

func (r *repository) ListByType(ctx context.Context, userID int64, typ AccountType) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE user_id=$1 AND is_active AND type=$2 ORDER BY code`, userID, typ)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func (r *repository) UsedCodes(ctx context.Context, userID int64, lo, hi int) (map[int]bool, error) {
	rows, err := r.db.Query(ctx, `SELECT code FROM accounts
WHERE user_id=$1 AND is_active AND code BETWEEN $2 AND $3`, userID, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	used := make(map[int]bool)
	for rows.Next() {
		var code int
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		used[code] = true
	}
	return used, rows.Err()
}

func (r *repository) Create(ctx context.Context, account Account) (Account, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (user_id, code, name, type, is_active)
VALUES ($1,$2,$3,$4,TRUE) RETURNING `+accountColumns, account.UserID, account.Code, account.Name, account.Type)
	created, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, shared.ErrCodeTaken
		}
		return Account{}, err
	}
	return created, nil
}

// CreateIfAbsent inserts the account unless one with the same code already
// exists for the user, in which case the existing row is returned. The
// uq_accounts_user_code partial unique index makes this the reservation step
// for default-account creation.
func (r *repository) CreateIfAbsent(ctx context.Context, account Account) (Account, error) {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts (user_id, code, name, type, is_active)
VALUES ($1,$2,$3,$4,TRUE) ON CONFLICT (user_id, code) WHERE is_active DO NOTHING`,
		account.UserID, account.Code, account.Name, account.Type)
	if err != nil {
		return Account{}, err
	}
	return r.FindByCode(ctx, account.UserID, account.Code)
}

func (r *repository) Deactivate(ctx context.Context, userID, id int64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET is_active=FALSE, updated_at=NOW()
WHERE user_id=$1 AND id=$2 AND is_active`, userID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func collectAccounts(rows pgx.Rows) ([]Account, error) {
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Code, &a.Name, &a.Type, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
