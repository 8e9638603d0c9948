package attachments

import (
	"fmt"
	"strings"
	"time"
)

// EntityType names the record an attachment is bound to.
type EntityType string

const (
	EntityBill    EntityType = "bill"
	EntityJournal EntityType = "journal"
)

// ParseEntityType normalises a caller-supplied entity type.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case EntityBill, EntityJournal:
		return t, nil
	}
	return "", fmt.Errorf("invalid entity type %q", s)
}

// Attachment binds a stored file to a bill or journal. Binding is independent
// of the target's lifecycle status.
type Attachment struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"-"`
	EntityType EntityType `json:"entity_type"`
	EntityID   int64      `json:"entity_id"`
	FileName   string     `json:"file_name"`
	FilePath   string     `json:"-"`
	FileType   string     `json:"file_type,omitempty"`
	FileSize   int64      `json:"file_size"`
	UploadedBy int64      `json:"uploaded_by"`
	UploadedAt time.Time  `json:"uploaded_at"`
}
