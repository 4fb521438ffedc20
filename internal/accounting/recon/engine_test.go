package recon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

type memoryReconRepo struct {
	recs  map[int64]Reconciliation
	lines map[int64]ledger.Line
}

func newMemoryReconRepo() *memoryReconRepo {
	return &memoryReconRepo{recs: map[int64]Reconciliation{}, lines: map[int64]ledger.Line{}}
}

func (m *memoryReconRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	recs := make(map[int64]Reconciliation, len(m.recs))
	for k, v := range m.recs {
		recs[k] = v
	}
	lines := make(map[int64]ledger.Line, len(m.lines))
	for k, v := range m.lines {
		lines[k] = v
	}
	if err := fn(ctx, (*memoryReconTx)(m)); err != nil {
		m.recs = recs
		m.lines = lines
		return err
	}
	return nil
}

func (m *memoryReconRepo) Get(_ context.Context, id int64) (Reconciliation, error) {
	rec, ok := m.recs[id]
	if !ok {
		return Reconciliation{}, shared.ErrNotFound
	}
	return rec, nil
}

func (m *memoryReconRepo) ListUnclearedLines(_ context.Context, accountID int64, until time.Time) ([]ledger.Line, error) {
	var out []ledger.Line
	for _, line := range m.lines {
		if line.AccountID == accountID && line.ReconStatus == ledger.ReconUncleared && !line.Date.After(until) {
			out = append(out, line)
		}
	}
	return out, nil
}

type memoryReconTx memoryReconRepo

func (m *memoryReconTx) GetForUpdate(ctx context.Context, id int64) (Reconciliation, error) {
	return (*memoryReconRepo)(m).Get(ctx, id)
}

func (m *memoryReconTx) ClearLines(_ context.Context, reconID int64, lineIDs []int64, date time.Time) (int64, error) {
	var affected int64
	for _, id := range lineIDs {
		line, ok := m.lines[id]
		if !ok || line.ReconStatus != ledger.ReconUncleared {
			continue
		}
		line.ReconID = &reconID
		line.ReconStatus = ledger.ReconCleared
		d := date
		line.ReconDate = &d
		m.lines[id] = line
		affected++
	}
	return affected, nil
}

func (m *memoryReconTx) Complete(_ context.Context, id int64, at time.Time) error {
	rec, ok := m.recs[id]
	if !ok {
		return shared.ErrNotFound
	}
	rec.Status = StatusCompleted
	rec.CompletedAt = &at
	m.recs[id] = rec
	return nil
}

func reconActor() shared.Actor {
	return shared.NewActor(7, "siti", "recon.clear", "recon.complete")
}

func stmtDay(day int) time.Time {
	return time.Date(2026, time.March, day, 0, 0, 0, 0, time.UTC)
}

func bankLine(id int64, day int, debit, credit int64, desc string) ledger.Line {
	return ledger.Line{
		ID:          id,
		AccountID:   1101,
		Date:        stmtDay(day),
		Debit:       decimal.NewFromInt(debit),
		Credit:      decimal.NewFromInt(credit),
		Description: desc,
		ReconStatus: ledger.ReconUncleared,
	}
}

func TestMarkClearedAllOrNothing(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.recs[1] = Reconciliation{ID: 1, AccountID: 1101, StatementDate: stmtDay(31), Status: StatusOpen}
	repo.lines[10] = bankLine(10, 3, 500000, 0, "setoran tunai")
	engine := NewEngine(repo, nil)

	err := engine.MarkCleared(context.Background(), 1, []int64{10, 99}, reconActor())
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ledger.ReconUncleared, repo.lines[10].ReconStatus, "partial clears must roll back")

	require.NoError(t, engine.MarkCleared(context.Background(), 1, []int64{10}, reconActor()))
	got := repo.lines[10]
	require.Equal(t, ledger.ReconCleared, got.ReconStatus)
	require.NotNil(t, got.ReconID)
	require.Equal(t, int64(1), *got.ReconID)
}

func TestMarkClearedRequiresPermission(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.recs[1] = Reconciliation{ID: 1, AccountID: 1101, StatementDate: stmtDay(31), Status: StatusOpen}
	engine := NewEngine(repo, nil)

	err := engine.MarkCleared(context.Background(), 1, []int64{10}, shared.NewActor(2, "budi"))
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestMarkClearedRejectsCompletedPeriod(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.recs[1] = Reconciliation{ID: 1, AccountID: 1101, StatementDate: stmtDay(31), Status: StatusCompleted}
	repo.lines[10] = bankLine(10, 3, 500000, 0, "setoran tunai")
	engine := NewEngine(repo, nil)

	err := engine.MarkCleared(context.Background(), 1, []int64{10}, reconActor())
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestAutoMatch(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.recs[1] = Reconciliation{ID: 1, AccountID: 1101, StatementDate: stmtDay(31), Status: StatusOpen}
	repo.lines[10] = bankLine(10, 3, 500000, 0, "TRF-20260303-0001")
	repo.lines[11] = bankLine(11, 5, 0, 250000, "pembayaran listrik")
	// Two same-day same-amount lines: ambiguous without a reference.
	repo.lines[12] = bankLine(12, 9, 100000, 0, "setoran a")
	repo.lines[13] = bankLine(13, 9, 100000, 0, "setoran b")
	engine := NewEngine(repo, nil)

	report, err := engine.AutoMatch(context.Background(), 1, []StatementLine{
		{Date: stmtDay(3), Amount: decimal.NewFromInt(500000), Reference: "TRF-20260303-0001"},
		{Date: stmtDay(5), Amount: decimal.NewFromInt(-250000)},
		{Date: stmtDay(9), Amount: decimal.NewFromInt(100000)},
		{Date: stmtDay(21), Amount: decimal.NewFromInt(42000)},
	}, reconActor())
	require.NoError(t, err)

	require.Len(t, report.Matched, 2)
	matched := map[int64]bool{}
	for _, m := range report.Matched {
		matched[m.LedgerLineID] = true
	}
	require.True(t, matched[10], "reference fingerprint should match the transfer")
	require.True(t, matched[11], "unique date+amount should match the credit line")
	require.Len(t, report.Ambiguous, 1)
	require.Len(t, report.Unmatched, 1)

	require.Equal(t, ledger.ReconCleared, repo.lines[10].ReconStatus)
	require.Equal(t, ledger.ReconCleared, repo.lines[11].ReconStatus)
	require.Equal(t, ledger.ReconUncleared, repo.lines[12].ReconStatus)
	require.Equal(t, ledger.ReconUncleared, repo.lines[13].ReconStatus)
}

func TestAutoMatchPrefersReferenceOverAmbiguity(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.recs[1] = Reconciliation{ID: 1, AccountID: 1101, StatementDate: stmtDay(31), Status: StatusOpen}
	repo.lines[20] = bankLine(20, 12, 750000, 0, "INV-20260312-0007")
	repo.lines[21] = bankLine(21, 12, 750000, 0, "setoran lain")
	engine := NewEngine(repo, nil)

	report, err := engine.AutoMatch(context.Background(), 1, []StatementLine{
		{Date: stmtDay(12), Amount: decimal.NewFromInt(750000), Reference: "INV-20260312-0007"},
	}, reconActor())
	require.NoError(t, err)
	require.Len(t, report.Matched, 1)
	require.Equal(t, int64(20), report.Matched[0].LedgerLineID)
}

func TestComplete(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.recs[1] = Reconciliation{ID: 1, AccountID: 1101, StatementDate: stmtDay(31), Status: StatusOpen}
	engine := NewEngine(repo, nil)
	engine.WithNow(func() time.Time { return stmtDay(31) })

	require.NoError(t, engine.Complete(context.Background(), 1, reconActor()))
	rec := repo.recs[1]
	require.Equal(t, StatusCompleted, rec.Status)
	require.NotNil(t, rec.CompletedAt)

	err := engine.Complete(context.Background(), 1, reconActor())
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
}
