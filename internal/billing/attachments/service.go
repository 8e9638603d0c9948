package attachments

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	internalShared "github.com/harborbooks/harborbooks/internal/shared"
)

// AuditPort receives immutable audit records.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service binds uploaded files to bills and journals.
type Service struct {
	repo   Repository
	store  Store
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs the Service.
func NewService(repo Repository, store Store, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, store: store, audit: audit, logger: logger}
}

// ListForEntity returns the attachments bound to one bill or journal.
func (s *Service) ListForEntity(ctx context.Context, userID int64, entityType EntityType, entityID int64) ([]Attachment, error) {
	return s.repo.ListForEntity(ctx, userID, entityType, entityID)
}

// Attach stores the blob then records its metadata. Binding does not depend
// on the target entity's status.
func (s *Service) Attach(ctx context.Context, userID int64, entityType EntityType, entityID int64, fileName, fileType string, body io.Reader) (Attachment, error) {
	path, size, err := s.store.Put(ctx, fileName, body)
	if err != nil {
		return Attachment{}, err
	}
	attachment, err := s.repo.Insert(ctx, Attachment{
		UserID:     userID,
		EntityType: entityType,
		EntityID:   entityID,
		FileName:   fileName,
		FilePath:   path,
		FileType:   fileType,
		FileSize:   size,
		UploadedBy: userID,
	})
	if err != nil {
		// The row failed, so the blob is orphaned; clean it up.
		if derr := s.store.Delete(ctx, path); derr != nil {
			s.logger.Warn("orphaned attachment blob", slog.String("path", path), slog.Any("error", derr))
		}
		return Attachment{}, err
	}

	_ = s.audit.Record(ctx, internalShared.AuditLog{
		UserID: userID, Action: "attachment.create", Entity: string(entityType),
		EntityID: fmt.Sprintf("%d", entityID),
		Status:   "success", Context: map[string]any{"file_name": fileName, "file_size": size},
		At: time.Now(),
	})
	return attachment, nil
}

// Delete removes the blob best-effort, then the row unconditionally. A blob
// that cannot be removed is logged, never surfaced.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	attachment, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, attachment.FilePath); err != nil {
		s.logger.Warn("attachment blob delete failed",
			slog.Int64("attachment_id", id), slog.String("path", attachment.FilePath), slog.Any("error", err))
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	_ = s.audit.Record(ctx, internalShared.AuditLog{
		UserID: userID, Action: "attachment.delete", Entity: string(attachment.EntityType),
		EntityID: fmt.Sprintf("%d", attachment.EntityID), Status: "success",
		Context: map[string]any{"file_name": attachment.FileName},
		At:      time.Now(),
	})
	return nil
}
