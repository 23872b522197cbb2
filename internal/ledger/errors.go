package ledger

import "errors"

var (
	// ErrUnbalanced indicates total debits != total credits.
	ErrUnbalanced = errors.New("ledger: entry does not balance, debits must equal credits")
	// ErrNoLines indicates an entry without lines.
	ErrNoLines = errors.New("ledger: entry has no lines")
	// ErrEntryNotFound indicates a missing journal entry.
	ErrEntryNotFound = errors.New("ledger: entry not found")
	// ErrInvalidAccount indicates a line referencing an unknown account.
	ErrInvalidAccount = errors.New("ledger: invalid account")
	// ErrAlreadyPosted rejects re-posting a posted entry.
	ErrAlreadyPosted = errors.New("ledger: entry already posted")
	// ErrInvalidStatus indicates a disallowed lifecycle transition.
	ErrInvalidStatus = errors.New("ledger: invalid status transition")
)
