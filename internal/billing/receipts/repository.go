package receipts

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// VendorRepository resolves vendor names to rows, creating on first sight.
type VendorRepository interface {
	FindOrCreateVendor(ctx context.Context, userID int64, name string) (int64, error)
}

type vendorRepository struct {
	db *pgxpool.Pool
}

// NewVendorRepository constructs a VendorRepository over a pgx pool.
func NewVendorRepository(db *pgxpool.Pool) VendorRepository {
	return &vendorRepository{db: db}
}

// FindOrCreateVendor inserts the vendor, letting the partial unique index on
// (user_id, lower(name)) absorb concurrent creations, then reads back the
// surviving row.
func (r *vendorRepository) FindOrCreateVendor(ctx context.Context, userID int64, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("receipts: vendor name required")
	}
	_, err := r.db.Exec(ctx, `INSERT INTO vendors (user_id, name) VALUES ($1, $2)
ON CONFLICT (user_id, lower(name)) WHERE is_active DO NOTHING`, userID, name)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.db.QueryRow(ctx, `SELECT id FROM vendors WHERE user_id=$1 AND lower(name)=lower($2) AND is_active`, userID, name).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}
