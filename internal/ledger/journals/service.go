package journals

import (
	"context"
	"fmt"
	"time"

	ledger "github.com/harborbooks/harborbooks/internal/ledger/shared"
	internalShared "github.com/harborbooks/harborbooks/internal/shared"
)

// AuditPort receives immutable audit records. Failures are logged by callers
// and never propagate.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service owns the journal balance invariant: create, post, and reverse
// balanced entries.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns the user's journals, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]Journal, error) {
	return s.repo.List(ctx, userID)
}

// Get returns a single journal, optionally with its lines.
func (s *Service) Get(ctx context.Context, userID, id int64, includeLines bool) (Journal, error) {
	return s.repo.Get(ctx, userID, id, includeLines)
}

// Create stores a journal. When input.Post is set the entry must balance and
// is marked posted atomically with the insert; otherwise an unbalanced draft
// is permitted. Header and lines share one transaction: if any line insert
// fails nothing persists.
func (s *Service) Create(ctx context.Context, userID int64, input CreateInput) (Journal, error) {
	if err := input.Validate(); err != nil {
		return Journal{}, err
	}
	if input.Post && !input.Balanced() {
		return Journal{}, ledger.ErrUnbalanced
	}
	journalType := input.Type
	if journalType == "" {
		journalType = "GENERAL"
	}

	var entry Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.ReserveNumber(ctx, userID)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertJournal(ctx, Journal{
			UserID:       userID,
			Number:       number,
			Type:         journalType,
			Date:         input.Date,
			Memo:         input.Memo,
			SourceModule: input.SourceModule,
			Reference:    input.Reference,
			IsPosted:     input.Post,
			CreatedBy:    userID,
		})
		if err != nil {
			return err
		}
		lines := toLines(inserted.ID, input.Lines)
		if err := tx.InsertLines(ctx, inserted.ID, lines); err != nil {
			return err
		}
		inserted.Lines = lines
		entry = inserted
		return nil
	})
	if err != nil {
		return Journal{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, internalShared.AuditLog{
			UserID:   userID,
			Action:   "journal.create",
			Entity:   "journal",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Context: map[string]any{
				"number": entry.Number,
				"posted": entry.IsPosted,
			},
			At: s.now(),
		})
	}
	return entry, nil
}

// Post marks the journal posted. Posting is one-way and requires the entry to
// balance within tolerance; posted journals are never edited in place.
func (s *Service) Post(ctx context.Context, userID, id int64) (Journal, error) {
	var entry Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, lines, err := tx.GetJournalForUpdate(ctx, userID, id)
		if err != nil {
			return err
		}
		if current.IsPosted {
			return ledger.ErrPosted
		}
		if !balancedLines(lines) {
			return ledger.ErrUnbalanced
		}
		if err := tx.MarkPosted(ctx, current.ID); err != nil {
			return err
		}
		current.IsPosted = true
		current.Lines = lines
		entry = current
		return nil
	})
	if err != nil {
		return Journal{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, internalShared.AuditLog{
			UserID:   userID,
			Action:   "journal.post",
			Entity:   "journal",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Context:  map[string]any{"number": entry.Number},
			At:       s.now(),
		})
	}
	return entry, nil
}

// Reverse creates a new unposted journal dated now that offsets a posted
// journal: every line is copied with debit and credit swapped, and the two
// entries are cross-linked. The reversal is left in draft for review.
func (s *Service) Reverse(ctx context.Context, userID, id int64) (Journal, error) {
	var reversal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, lines, err := tx.GetJournalForUpdate(ctx, userID, id)
		if err != nil {
			return err
		}
		if !original.IsPosted {
			return ledger.ErrNotPosted
		}
		if original.ReversedByID != nil {
			return ledger.ErrAlreadyReversed
		}

		number, err := tx.ReserveNumber(ctx, userID)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertJournal(ctx, Journal{
			UserID:       userID,
			Number:       number,
			Type:         original.Type,
			Date:         s.now(),
			Memo:         fmt.Sprintf("Reversal of journal #%d", original.Number),
			SourceModule: original.SourceModule,
			Reference:    original.Reference,
			IsPosted:     false,
			ReversalOfID: &original.ID,
			CreatedBy:    userID,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, reverseLines(inserted.ID, lines)); err != nil {
			return err
		}
		if err := tx.LinkReversal(ctx, original.ID, inserted.ID); err != nil {
			return err
		}
		inserted.Lines = reverseLines(inserted.ID, lines)
		reversal = inserted
		return nil
	})
	if err != nil {
		return Journal{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, internalShared.AuditLog{
			UserID:   userID,
			Action:   "journal.reverse",
			Entity:   "journal",
			EntityID: fmt.Sprintf("%d", id),
			Context: map[string]any{
				"reversal_id":     reversal.ID,
				"reversal_number": reversal.Number,
			},
			At: s.now(),
		})
	}
	return reversal, nil
}

func toLines(journalID int64, inputs []LineInput) []Line {
	out := make([]Line, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, Line{
			JournalID:   journalID,
			AccountID:   in.AccountID,
			Debit:       ledger.Round2(in.Debit),
			Credit:      ledger.Round2(in.Credit),
			Description: in.Description,
			Category:    in.Category,
			Location:    in.Location,
			Vendor:      in.Vendor,
			Funder:      in.Funder,
		})
	}
	return out
}

func reverseLines(journalID int64, lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		out = append(out, Line{
			JournalID:   journalID,
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
			Category:    line.Category,
			Location:    line.Location,
			Vendor:      line.Vendor,
			Funder:      line.Funder,
		})
	}
	return out
}

func balancedLines(lines []Line) bool {
	debits := make([]float64, 0, len(lines))
	credits := make([]float64, 0, len(lines))
	for _, line := range lines {
		debits = append(debits, line.Debit)
		credits = append(credits, line.Credit)
	}
	return ledger.Balanced(ledger.Sum2(debits...), ledger.Sum2(credits...))
}
