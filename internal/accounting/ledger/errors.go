package ledger

import "errors"

var (
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("ledger: posting requires at least two lines")
	// ErrSourceAlreadyLinked indicates the source document already has an
	// active posting of this journal type.
	ErrSourceAlreadyLinked = errors.New("ledger: source already linked to an active posting")
	// ErrPostingNotFound indicates a missing posting.
	ErrPostingNotFound = errors.New("ledger: posting not found")
	// ErrAlreadyReversed indicates a reversal of a reversed posting.
	ErrAlreadyReversed = errors.New("ledger: posting already reversed")
)
