package attachments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAttachmentNotFound is returned when an attachment does not exist for the
// user.
var ErrAttachmentNotFound = errors.New("attachments: attachment not found")

// Repository encapsulates DB operations for attachments.
type Repository interface {
	Get(ctx context.Context, userID, id int64) (Attachment, error)
	ListForEntity(ctx context.Context, userID int64, entityType EntityType, entityID int64) ([]Attachment, error)
	Insert(ctx context.Context, a Attachment) (Attachment, error)
	Delete(ctx context.Context, userID, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a Repository over a pgx pool.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const attachmentColumns = `id, user_id, entity_type, entity_id, file_name, file_path, file_type, file_size, uploaded_by, uploaded_at`

func (r *repository) Get(ctx context.Context, userID, id int64) (Attachment, error) {
	var a Attachment
	err := r.db.QueryRow(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE user_id=$1 AND id=$2`, userID, id).
		Scan(&a.ID, &a.UserID, &a.EntityType, &a.EntityID, &a.FileName, &a.FilePath,
			&a.FileType, &a.FileSize, &a.UploadedBy, &a.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Attachment{}, ErrAttachmentNotFound
		}
		return Attachment{}, err
	}
	return a, nil
}

func (r *repository) ListForEntity(ctx context.Context, userID int64, entityType EntityType, entityID int64) ([]Attachment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+attachmentColumns+` FROM attachments
WHERE user_id=$1 AND entity_type=$2 AND entity_id=$3 ORDER BY id ASC`, userID, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.UserID, &a.EntityType, &a.EntityID, &a.FileName, &a.FilePath,
			&a.FileType, &a.FileSize, &a.UploadedBy, &a.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) Insert(ctx context.Context, a Attachment) (Attachment, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO attachments (user_id, entity_type, entity_id, file_name, file_path, file_type, file_size, uploaded_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, uploaded_at`,
		a.UserID, a.EntityType, a.EntityID, a.FileName, a.FilePath, a.FileType, a.FileSize, a.UploadedBy)
	if err := row.Scan(&a.ID, &a.UploadedAt); err != nil {
		return Attachment{}, err
	}
	return a, nil
}

func (r *repository) Delete(ctx context.Context, userID, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM attachments WHERE user_id=$1 AND id=$2`, userID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAttachmentNotFound
	}
	return nil
}
