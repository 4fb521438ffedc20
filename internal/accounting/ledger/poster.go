package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

// AccountGuard verifies an account may receive postings (exists, active, leaf).
type AccountGuard interface {
	EnsurePostable(ctx context.Context, accountID int64) error
}

// TxHook runs inside the posting transaction, before lines are written.
// Document services use it to compare-and-swap their status so the status
// change and the ledger lines commit or roll back as one unit. The tx is nil
// when the repository is not SQL-backed (tests).
type TxHook func(ctx context.Context, tx pgx.Tx) error

// PostingCounter records posting metrics.
type PostingCounter interface {
	PostingRecorded(journalType string)
}

// Repository encapsulates DB operations for postings.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPosting(ctx context.Context, id int64) (Posting, error)
	ListBySource(ctx context.Context, src SourceRef) ([]Posting, error)
}

// TxRepository exposes operations available within a posting transaction.
type TxRepository interface {
	// Tx returns the underlying transaction for same-unit document updates,
	// nil for non-SQL implementations.
	Tx() pgx.Tx
	InsertPosting(ctx context.Context, p Posting) (Posting, error)
	InsertLines(ctx context.Context, postingID int64, lines []LineInput) error
	LinkSource(ctx context.Context, src SourceRef, journalType string, postingID int64) error
	UnlinkSource(ctx context.Context, src SourceRef, journalType string) error
	GetPostingWithLines(ctx context.Context, id int64) (Posting, error)
	GetActiveBySource(ctx context.Context, src SourceRef, journalType string) (Posting, error)
	MarkReversed(ctx context.Context, postingID, reversalID int64) error
}

// Poster turns validated posting inputs into balanced ledger line sets,
// written atomically together with the originating document's status change.
type Poster struct {
	repo    Repository
	guard   AccountGuard
	bus     *shared.Bus
	metrics PostingCounter
	now     func() time.Time
}

// NewPoster constructs a Poster. guard, bus and metrics may be nil.
func NewPoster(repo Repository, guard AccountGuard, bus *shared.Bus, metrics PostingCounter) *Poster {
	return &Poster{repo: repo, guard: guard, bus: bus, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (p *Poster) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Post validates the input, runs the caller's hooks and persists the posting
// with its lines in one transaction. If validation fails nothing is
// persisted; if any write fails the whole unit rolls back.
func (p *Poster) Post(ctx context.Context, in PostingInput, hooks ...TxHook) (Posting, error) {
	if err := in.Validate(); err != nil {
		return Posting{}, err
	}
	if err := p.checkAccounts(ctx, in.Lines); err != nil {
		return Posting{}, err
	}
	var posting Posting
	err := p.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, hook := range hooks {
			if err := hook(ctx, tx.Tx()); err != nil {
				return err
			}
		}
		var err error
		posting, err = p.insertPosting(ctx, tx, in, nil)
		return err
	})
	if err != nil {
		return Posting{}, err
	}
	p.published(ctx, in, posting)
	return posting, nil
}

// Reverse writes an equal-and-opposite counter-set for a posted posting and
// marks the original reversed. Ledger lines are never deleted: the reversal
// preserves the audit trail.
func (p *Poster) Reverse(ctx context.Context, postingID, actorID int64, memo string, hooks ...TxHook) (Posting, error) {
	var reversal Posting
	err := p.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, hook := range hooks {
			if err := hook(ctx, tx.Tx()); err != nil {
				return err
			}
		}
		var err error
		reversal, err = p.reverseInTx(ctx, tx, postingID, actorID, memo)
		return err
	})
	if err != nil {
		return Posting{}, err
	}
	return reversal, nil
}

// Repost reverses any active posting for (source, journal type), then posts
// the new line set, all in one transaction. This is the edit path: edits
// never mutate or delete posted lines.
func (p *Poster) Repost(ctx context.Context, in PostingInput, hooks ...TxHook) (Posting, error) {
	if err := in.Validate(); err != nil {
		return Posting{}, err
	}
	if err := p.checkAccounts(ctx, in.Lines); err != nil {
		return Posting{}, err
	}
	var posting Posting
	err := p.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, hook := range hooks {
			if err := hook(ctx, tx.Tx()); err != nil {
				return err
			}
		}
		active, err := tx.GetActiveBySource(ctx, in.Source, in.JournalType)
		switch {
		case err == nil:
			memo := fmt.Sprintf("Repost of %s %s", in.JournalType, in.Reference)
			if _, err := p.reverseInTx(ctx, tx, active.ID, in.PostedBy, memo); err != nil {
				return err
			}
		case errors.Is(err, ErrPostingNotFound):
		default:
			return err
		}
		posting, err = p.insertPosting(ctx, tx, in, nil)
		return err
	})
	if err != nil {
		return Posting{}, err
	}
	p.published(ctx, in, posting)
	return posting, nil
}

// GetBySource lists all postings ever written for a document, reversals included.
func (p *Poster) GetBySource(ctx context.Context, src SourceRef) ([]Posting, error) {
	return p.repo.ListBySource(ctx, src)
}

func (p *Poster) checkAccounts(ctx context.Context, lines []LineInput) error {
	if p.guard == nil {
		return nil
	}
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		if err := p.guard.EnsurePostable(ctx, line.AccountID); err != nil {
			return fmt.Errorf("ledger: account %d: %w", line.AccountID, err)
		}
	}
	return nil
}

func (p *Poster) insertPosting(ctx context.Context, tx TxRepository, in PostingInput, reversalOf *int64) (Posting, error) {
	posting := Posting{
		Date:        in.Date,
		Source:      in.Source,
		JournalType: in.JournalType,
		Reference:   in.Reference,
		Description: in.Description,
		Status:      PostingStatusPosted,
		PostedBy:    in.PostedBy,
		PostedAt:    p.now(),
		ReversalOf:  reversalOf,
	}
	inserted, err := tx.InsertPosting(ctx, posting)
	if err != nil {
		return Posting{}, err
	}
	if err := tx.InsertLines(ctx, inserted.ID, in.Lines); err != nil {
		return Posting{}, err
	}
	if reversalOf == nil {
		if err := tx.LinkSource(ctx, in.Source, in.JournalType, inserted.ID); err != nil {
			return Posting{}, err
		}
	}
	inserted.Lines = toLines(inserted.ID, in.Date, in.Lines, p.now())
	return inserted, nil
}

func (p *Poster) reverseInTx(ctx context.Context, tx TxRepository, postingID, actorID int64, memo string) (Posting, error) {
	original, err := tx.GetPostingWithLines(ctx, postingID)
	if err != nil {
		return Posting{}, err
	}
	if original.Status != PostingStatusPosted {
		return Posting{}, ErrAlreadyReversed
	}
	if memo == "" {
		memo = fmt.Sprintf("Reversal of posting %d", original.Number)
	}
	in := PostingInput{
		Date:        original.Date,
		Source:      original.Source,
		JournalType: original.JournalType,
		Reference:   original.Reference,
		Description: memo,
		PostedBy:    actorID,
		Lines:       reverseLines(original.Lines),
	}
	reversal, err := p.insertPosting(ctx, tx, in, &original.ID)
	if err != nil {
		return Posting{}, err
	}
	if err := tx.MarkReversed(ctx, original.ID, reversal.ID); err != nil {
		return Posting{}, err
	}
	if err := tx.UnlinkSource(ctx, original.Source, original.JournalType); err != nil {
		return Posting{}, err
	}
	return reversal, nil
}

func (p *Poster) published(ctx context.Context, in PostingInput, posting Posting) {
	if p.metrics != nil {
		p.metrics.PostingRecorded(in.JournalType)
	}
	if p.bus != nil {
		p.bus.Publish(ctx, shared.DocumentPosted{
			Module:    string(in.Source.Kind),
			Ref:       in.Source.ID,
			PostingID: posting.ID,
			PostedBy:  in.PostedBy,
			At:        posting.PostedAt,
		})
	}
}

func reverseLines(lines []Line) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
		})
	}
	return out
}

func toLines(postingID int64, date time.Time, lines []LineInput, ts time.Time) []Line {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		out = append(out, Line{
			PostingID:   postingID,
			AccountID:   line.AccountID,
			Date:        date,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
			ReconStatus: ReconUncleared,
			CreatedAt:   ts,
		})
	}
	return out
}
