package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// PostingStatus enumerates posting lifecycle values. Postings are never
// hard-deleted: a mistake is undone by an equal-and-opposite reversal set.
type PostingStatus string

const (
	PostingStatusPosted   PostingStatus = "POSTED"
	PostingStatusReversed PostingStatus = "REVERSED"
)

// ReconStatus marks a ledger line against an external bank statement.
type ReconStatus string

const (
	ReconUncleared ReconStatus = "UNCLEARED"
	ReconCleared   ReconStatus = "CLEARED"
)

// Posting is the transaction grouping of ledger lines written for one
// business event. Lines sharing a posting always balance.
type Posting struct {
	ID          int64
	Number      int64
	Date        time.Time
	Source      SourceRef
	JournalType string
	Reference   string
	Description string
	Status      PostingStatus
	PostedBy    int64
	PostedAt    time.Time
	ReversalOf  *int64
	CreatedAt   time.Time
	Lines       []Line
}

// Line is a single-sided ledger movement: exactly one of Debit/Credit is
// nonzero. Immutable once posted, except for reconciliation metadata.
type Line struct {
	ID          int64
	PostingID   int64
	AccountID   int64
	Date        time.Time
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
	ReconID     *int64
	ReconStatus ReconStatus
	ReconDate   *time.Time
	CreatedAt   time.Time
}
