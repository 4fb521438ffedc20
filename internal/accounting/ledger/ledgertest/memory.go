// Package ledgertest provides an in-memory posting repository for tests of
// document services that post to the ledger.
package ledgertest

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
)

// MemoryRepository implements ledger.Repository in memory with
// snapshot-and-restore transaction semantics.
type MemoryRepository struct {
	postings map[int64]ledger.Posting
	links    map[string]int64
	nextID   int64
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		postings: make(map[int64]ledger.Posting),
		links:    make(map[string]int64),
	}
}

func linkKey(src ledger.SourceRef, journalType string) string {
	return string(src.Kind) + ":" + src.ID.String() + ":" + journalType
}

// Postings returns every stored posting ordered by id.
func (r *MemoryRepository) Postings() []ledger.Posting {
	out := make([]ledger.Posting, 0, len(r.postings))
	for id := int64(1); id <= r.nextID; id++ {
		if p, ok := r.postings[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	snapshotPostings := make(map[int64]ledger.Posting, len(r.postings))
	for k, v := range r.postings {
		snapshotPostings[k] = v
	}
	snapshotLinks := make(map[string]int64, len(r.links))
	for k, v := range r.links {
		snapshotLinks[k] = v
	}
	snapshotID := r.nextID
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.postings = snapshotPostings
		r.links = snapshotLinks
		r.nextID = snapshotID
		return err
	}
	return nil
}

func (r *MemoryRepository) GetPosting(_ context.Context, id int64) (ledger.Posting, error) {
	p, ok := r.postings[id]
	if !ok {
		return ledger.Posting{}, ledger.ErrPostingNotFound
	}
	return p, nil
}

func (r *MemoryRepository) ListBySource(_ context.Context, src ledger.SourceRef) ([]ledger.Posting, error) {
	var out []ledger.Posting
	for id := int64(1); id <= r.nextID; id++ {
		if p, ok := r.postings[id]; ok && p.Source == src {
			out = append(out, p)
		}
	}
	return out, nil
}

type memoryTx struct {
	repo *MemoryRepository
}

func (t *memoryTx) Tx() pgx.Tx { return nil }

func (t *memoryTx) InsertPosting(_ context.Context, p ledger.Posting) (ledger.Posting, error) {
	t.repo.nextID++
	p.ID = t.repo.nextID
	p.Number = t.repo.nextID
	p.CreatedAt = time.Now()
	t.repo.postings[p.ID] = p
	return p, nil
}

func (t *memoryTx) InsertLines(_ context.Context, postingID int64, lines []ledger.LineInput) error {
	p := t.repo.postings[postingID]
	for _, in := range lines {
		p.Lines = append(p.Lines, ledger.Line{
			PostingID:   postingID,
			AccountID:   in.AccountID,
			Date:        p.Date,
			Debit:       in.Debit,
			Credit:      in.Credit,
			Description: in.Description,
			ReconStatus: ledger.ReconUncleared,
			CreatedAt:   time.Now(),
		})
	}
	t.repo.postings[postingID] = p
	return nil
}

func (t *memoryTx) LinkSource(_ context.Context, src ledger.SourceRef, journalType string, postingID int64) error {
	key := linkKey(src, journalType)
	if _, ok := t.repo.links[key]; ok {
		return ledger.ErrSourceAlreadyLinked
	}
	t.repo.links[key] = postingID
	return nil
}

func (t *memoryTx) UnlinkSource(_ context.Context, src ledger.SourceRef, journalType string) error {
	delete(t.repo.links, linkKey(src, journalType))
	return nil
}

func (t *memoryTx) GetPostingWithLines(_ context.Context, id int64) (ledger.Posting, error) {
	p, ok := t.repo.postings[id]
	if !ok {
		return ledger.Posting{}, ledger.ErrPostingNotFound
	}
	return p, nil
}

func (t *memoryTx) GetActiveBySource(_ context.Context, src ledger.SourceRef, journalType string) (ledger.Posting, error) {
	id, ok := t.repo.links[linkKey(src, journalType)]
	if !ok {
		return ledger.Posting{}, ledger.ErrPostingNotFound
	}
	return t.repo.postings[id], nil
}

func (t *memoryTx) MarkReversed(_ context.Context, postingID, _ int64) error {
	p, ok := t.repo.postings[postingID]
	if !ok || p.Status != ledger.PostingStatusPosted {
		return ledger.ErrPostingNotFound
	}
	p.Status = ledger.PostingStatusReversed
	t.repo.postings[postingID] = p
	return nil
}
