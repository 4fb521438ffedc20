package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

var (
	testDate = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	testUUID = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
)

type memoryLedgerRepo struct {
	postings map[int64]Posting
	links    map[string]int64
	nextID   int64
	failLink bool
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{
		postings: make(map[int64]Posting),
		links:    make(map[string]int64),
	}
}

func linkKey(src SourceRef, journalType string) string {
	return string(src.Kind) + ":" + src.ID.String() + ":" + journalType
}

func (r *memoryLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshotPostings := make(map[int64]Posting, len(r.postings))
	for k, v := range r.postings {
		snapshotPostings[k] = v
	}
	snapshotLinks := make(map[string]int64, len(r.links))
	for k, v := range r.links {
		snapshotLinks[k] = v
	}
	snapshotID := r.nextID
	if err := fn(ctx, &memoryLedgerTx{repo: r}); err != nil {
		r.postings = snapshotPostings
		r.links = snapshotLinks
		r.nextID = snapshotID
		return err
	}
	return nil
}

func (r *memoryLedgerRepo) GetPosting(ctx context.Context, id int64) (Posting, error) {
	p, ok := r.postings[id]
	if !ok {
		return Posting{}, ErrPostingNotFound
	}
	return p, nil
}

func (r *memoryLedgerRepo) ListBySource(ctx context.Context, src SourceRef) ([]Posting, error) {
	var out []Posting
	for id := int64(1); id <= r.nextID; id++ {
		p, ok := r.postings[id]
		if ok && p.Source == src {
			out = append(out, p)
		}
	}
	return out, nil
}

type memoryLedgerTx struct {
	repo *memoryLedgerRepo
}

func (t *memoryLedgerTx) Tx() pgx.Tx { return nil }

func (t *memoryLedgerTx) InsertPosting(ctx context.Context, p Posting) (Posting, error) {
	t.repo.nextID++
	p.ID = t.repo.nextID
	p.Number = t.repo.nextID
	p.CreatedAt = time.Now()
	t.repo.postings[p.ID] = p
	return p, nil
}

func (t *memoryLedgerTx) InsertLines(ctx context.Context, postingID int64, lines []LineInput) error {
	p := t.repo.postings[postingID]
	p.Lines = toLines(postingID, p.Date, lines, time.Now())
	t.repo.postings[postingID] = p
	return nil
}

func (t *memoryLedgerTx) LinkSource(ctx context.Context, src SourceRef, journalType string, postingID int64) error {
	if t.repo.failLink {
		return errors.New("link write failed")
	}
	key := linkKey(src, journalType)
	if _, ok := t.repo.links[key]; ok {
		return ErrSourceAlreadyLinked
	}
	t.repo.links[key] = postingID
	return nil
}

func (t *memoryLedgerTx) UnlinkSource(ctx context.Context, src SourceRef, journalType string) error {
	delete(t.repo.links, linkKey(src, journalType))
	return nil
}

func (t *memoryLedgerTx) GetPostingWithLines(ctx context.Context, id int64) (Posting, error) {
	p, ok := t.repo.postings[id]
	if !ok {
		return Posting{}, ErrPostingNotFound
	}
	return p, nil
}

func (t *memoryLedgerTx) GetActiveBySource(ctx context.Context, src SourceRef, journalType string) (Posting, error) {
	id, ok := t.repo.links[linkKey(src, journalType)]
	if !ok {
		return Posting{}, ErrPostingNotFound
	}
	return t.repo.postings[id], nil
}

func (t *memoryLedgerTx) MarkReversed(ctx context.Context, postingID, reversalID int64) error {
	p, ok := t.repo.postings[postingID]
	if !ok || p.Status != PostingStatusPosted {
		return ErrPostingNotFound
	}
	p.Status = PostingStatusReversed
	t.repo.postings[postingID] = p
	return nil
}

type stubGuard struct {
	rejected map[int64]error
}

func (g stubGuard) EnsurePostable(ctx context.Context, accountID int64) error {
	if err, ok := g.rejected[accountID]; ok {
		return err
	}
	return nil
}

func transferInput() PostingInput {
	return PostingInput{
		Date:        testDate,
		Source:      NewSourceRef(KindCashBankTransfer, testUUID),
		JournalType: "transfer",
		Reference:   "TRF-20260314-0001",
		PostedBy:    7,
		Lines: []LineInput{
			Debit(2, dec("1000000"), "transfer in"),
			Credit(1, dec("1000000"), "transfer out"),
		},
	}
}

func TestPosterPost(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	poster := NewPoster(repo, stubGuard{}, nil, nil)

	hookRan := false
	posting, err := poster.Post(ctx, transferInput(), func(ctx context.Context, tx pgx.Tx) error {
		hookRan = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, hookRan)
	require.Equal(t, PostingStatusPosted, posting.Status)
	require.Len(t, posting.Lines, 2)
	require.True(t, posting.Lines[0].Debit.Equal(dec("1000000")))
	require.True(t, posting.Lines[1].Credit.Equal(dec("1000000")))

	// Same source + journal type cannot be posted twice.
	_, err = poster.Post(ctx, transferInput())
	require.ErrorIs(t, err, ErrSourceAlreadyLinked)
}

func TestPosterPostHookFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	poster := NewPoster(repo, stubGuard{}, nil, nil)

	_, err := poster.Post(ctx, transferInput(), func(ctx context.Context, tx pgx.Tx) error {
		return errors.New("status changed concurrently")
	})
	require.Error(t, err)
	require.Empty(t, repo.postings)
	require.Empty(t, repo.links)
}

func TestPosterPostPersistenceFailureLeavesNoPartialState(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	repo.failLink = true
	poster := NewPoster(repo, stubGuard{}, nil, nil)

	_, err := poster.Post(ctx, transferInput())
	require.Error(t, err)
	require.Empty(t, repo.postings, "no orphan lines after rollback")
}

func TestPosterRejectsNonPostableAccount(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	guard := stubGuard{rejected: map[int64]error{2: errors.New("not a leaf")}}
	poster := NewPoster(repo, guard, nil, nil)

	_, err := poster.Post(ctx, transferInput())
	require.Error(t, err)
	require.Empty(t, repo.postings)
}

func TestPosterReverse(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	poster := NewPoster(repo, stubGuard{}, nil, nil)

	posting, err := poster.Post(ctx, transferInput())
	require.NoError(t, err)

	reversal, err := poster.Reverse(ctx, posting.ID, 7, "")
	require.NoError(t, err)
	require.Equal(t, posting.ID, *reversal.ReversalOf)
	require.True(t, reversal.Lines[0].Credit.Equal(dec("1000000")), "sides swapped")
	require.True(t, reversal.Lines[1].Debit.Equal(dec("1000000")))

	stored, err := repo.GetPosting(ctx, posting.ID)
	require.NoError(t, err)
	require.Equal(t, PostingStatusReversed, stored.Status)

	// A reversed posting cannot be reversed again.
	_, err = poster.Reverse(ctx, posting.ID, 7, "")
	require.ErrorIs(t, err, ErrAlreadyReversed)

	// After reversal the source is free again.
	_, err = poster.Post(ctx, transferInput())
	require.NoError(t, err)
}

func TestPosterRepost(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	poster := NewPoster(repo, stubGuard{}, nil, nil)

	first, err := poster.Post(ctx, transferInput())
	require.NoError(t, err)

	edited := transferInput()
	edited.Lines = []LineInput{
		Debit(2, dec("1250000"), "transfer in"),
		Credit(1, dec("1250000"), "transfer out"),
	}
	second, err := poster.Repost(ctx, edited)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	// Original ends reversed, with a counter-set in between: three postings total.
	all, err := poster.GetBySource(ctx, edited.Source)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, PostingStatusReversed, all[0].Status)
	require.Equal(t, PostingStatusPosted, all[1].Status)
	require.NotNil(t, all[1].ReversalOf)
	require.Equal(t, PostingStatusPosted, all[2].Status)

	// Repost on a fresh source behaves like Post.
	fresh := transferInput()
	fresh.Source.ID = uuid.MustParse("11111111-2222-3333-4444-555555555555")
	_, err = poster.Repost(ctx, fresh)
	require.NoError(t, err)
}
