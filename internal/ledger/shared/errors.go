package shared

import "errors"

var (
	// ErrUnbalanced indicates debit != credit beyond tolerance.
	ErrUnbalanced = errors.New("ledger: journal lines must balance")
	// ErrNoLines indicates an empty line list.
	ErrNoLines = errors.New("ledger: journal requires at least one line")
	// ErrBothSides indicates a line with debit and credit both nonzero.
	ErrBothSides = errors.New("ledger: line cannot carry both debit and credit")
	// ErrNegativeAmount indicates a negative debit or credit.
	ErrNegativeAmount = errors.New("ledger: amounts must not be negative")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("ledger: journal not found")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrPosted indicates an attempted mutation of a posted journal.
	ErrPosted = errors.New("ledger: journal is posted and immutable")
	// ErrNotPosted indicates reversal of an unposted journal.
	ErrNotPosted = errors.New("ledger: journal is not posted")
	// ErrAlreadyReversed indicates a second reversal attempt.
	ErrAlreadyReversed = errors.New("ledger: journal already reversed")
	// ErrAccountResolution indicates the resolver exhausted all fallbacks.
	ErrAccountResolution = errors.New("ledger: unable to resolve an account")
	// ErrCodeTaken indicates an account code collision on insert.
	ErrCodeTaken = errors.New("ledger: account code already in use")
	// ErrAccountInactive indicates use of a deactivated account.
	ErrAccountInactive = errors.New("ledger: account is inactive")
)
