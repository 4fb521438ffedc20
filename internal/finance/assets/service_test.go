package assets

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger/ledgertest"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

type memoryAssetRepo struct {
	assets  map[uuid.UUID]Asset
	entries map[uuid.UUID]Entry
	order   []uuid.UUID
}

func newMemoryAssetRepo() *memoryAssetRepo {
	return &memoryAssetRepo{assets: map[uuid.UUID]Asset{}, entries: map[uuid.UUID]Entry{}}
}

func (m *memoryAssetRepo) GetAsset(_ context.Context, id uuid.UUID) (Asset, error) {
	a, ok := m.assets[id]
	if !ok {
		return Asset{}, shared.ErrNotFound
	}
	return a, nil
}

func (m *memoryAssetRepo) InsertAsset(_ context.Context, a Asset) error {
	m.assets[a.ID] = a
	return nil
}

func (m *memoryAssetRepo) ListDepreciable(_ context.Context, cutoff time.Time) ([]Asset, error) {
	var out []Asset
	for _, a := range m.assets {
		if a.Status == StatusActive && !a.UsageDate.After(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryAssetRepo) SetDepreciation(_ context.Context, _ pgx.Tx, assetID uuid.UUID, accumulated, bookValue decimal.Decimal) error {
	a, ok := m.assets[assetID]
	if !ok {
		return shared.ErrNotFound
	}
	a.AccumulatedDepreciation = accumulated
	a.BookValue = bookValue
	m.assets[assetID] = a
	return nil
}

func (m *memoryAssetRepo) GetEntry(_ context.Context, id uuid.UUID) (Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, shared.ErrNotFound
	}
	return e, nil
}

func (m *memoryAssetRepo) ListEntries(_ context.Context, assetID uuid.UUID) ([]Entry, error) {
	var out []Entry
	for _, id := range m.order {
		if e := m.entries[id]; e.AssetID == assetID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryAssetRepo) HasRecordedPeriod(_ context.Context, assetID uuid.UUID, month, year int) (bool, error) {
	for _, e := range m.entries {
		if e.AssetID == assetID && e.PeriodMonth == month && e.PeriodYear == year && e.Status == EntryRecorded {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryAssetRepo) InsertEntry(_ context.Context, _ pgx.Tx, e Entry) error {
	m.entries[e.ID] = e
	m.order = append(m.order, e.ID)
	return nil
}

func (m *memoryAssetRepo) EntryStatusCAS(_ context.Context, _ pgx.Tx, id uuid.UUID, from, to EntryStatus) error {
	e, ok := m.entries[id]
	if !ok || e.Status != from {
		return shared.ErrConcurrencyConflict
	}
	e.Status = to
	m.entries[id] = e
	return nil
}

type assetFixture struct {
	svc    *Service
	repo   *memoryAssetRepo
	ledger *ledgertest.MemoryRepository
}

func newFixture(t *testing.T) *assetFixture {
	t.Helper()
	repo := newMemoryAssetRepo()
	ledgerRepo := ledgertest.NewMemoryRepository()
	poster := ledger.NewPoster(ledgerRepo, nil, nil, nil)
	svc := NewService(repo, poster, nil)
	return &assetFixture{svc: svc, repo: repo, ledger: ledgerRepo}
}

func accountingActor() shared.Actor {
	return shared.NewActor(3, "ani", "assets.create", "assets.depreciate")
}

func millions(v int64) decimal.Decimal { return decimal.NewFromInt(v * 1_000_000) }

func machineAsset() Input {
	return Input{
		Code:             "AST-001",
		Name:             "Mesin potong kayu",
		PurchaseDate:     time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC),
		UsageDate:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PurchaseCost:     millions(12),
		SalvageValue:     decimal.Zero,
		UsefulLifeMonths: 12,
		AssetAccountID:   1210,
		ExpenseAccountID: 6200,
		AccumAccountID:   1290,
	}
}

func period(month int) time.Time {
	return time.Date(2026, time.Month(month), 28, 0, 0, 0, 0, time.UTC)
}

func TestFullDepreciationAndReversal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := accountingActor()

	a, err := f.svc.Create(ctx, machineAsset(), actor)
	require.NoError(t, err)
	require.True(t, a.MonthlyDepreciation().Equal(millions(1)))

	var last Entry
	for month := 1; month <= 12; month++ {
		last, err = f.svc.AddDepreciationEntry(ctx, a.ID, period(month), actor)
		require.NoError(t, err)
	}
	require.True(t, last.BookValue.IsZero())

	stored, _ := f.svc.Get(ctx, a.ID)
	require.True(t, stored.AccumulatedDepreciation.Equal(millions(12)))
	require.True(t, stored.BookValue.IsZero())

	// A 13th period would push book value under the salvage floor.
	_, err = f.svc.AddDepreciationEntry(ctx, a.ID, period(12).AddDate(0, 1, 0), actor)
	var perr *shared.PreconditionError
	require.ErrorAs(t, err, &perr)

	// Reversing one entry puts its amount back on the book value.
	require.NoError(t, f.svc.ReverseDepreciationEntry(ctx, last.ID, actor))
	stored, _ = f.svc.Get(ctx, a.ID)
	require.True(t, stored.AccumulatedDepreciation.Equal(millions(11)))
	require.True(t, stored.BookValue.Equal(millions(1)))

	entries, _ := f.svc.Entries(ctx, a.ID)
	require.Len(t, entries, 12)
	require.Equal(t, EntryReversed, entries[11].Status)
}

func TestDepreciationJournalLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := accountingActor()

	a, err := f.svc.Create(ctx, machineAsset(), actor)
	require.NoError(t, err)
	_, err = f.svc.AddDepreciationEntry(ctx, a.ID, period(1), actor)
	require.NoError(t, err)

	postings := f.ledger.Postings()
	require.Len(t, postings, 1)
	require.Len(t, postings[0].Lines, 2)
	require.Equal(t, int64(6200), postings[0].Lines[0].AccountID)
	require.True(t, postings[0].Lines[0].Debit.Equal(millions(1)))
	require.Equal(t, int64(1290), postings[0].Lines[1].AccountID)
	require.True(t, postings[0].Lines[1].Credit.Equal(millions(1)))
}

func TestDuplicatePeriodIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := accountingActor()

	a, err := f.svc.Create(ctx, machineAsset(), actor)
	require.NoError(t, err)
	_, err = f.svc.AddDepreciationEntry(ctx, a.ID, period(1), actor)
	require.NoError(t, err)

	_, err = f.svc.AddDepreciationEntry(ctx, a.ID, period(1).AddDate(0, 0, 2), actor)
	var perr *shared.PreconditionError
	require.ErrorAs(t, err, &perr)
	require.Len(t, f.ledger.Postings(), 1)
}

func TestDepreciationBeforeUsageDateIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := accountingActor()

	a, err := f.svc.Create(ctx, machineAsset(), actor)
	require.NoError(t, err)

	_, err = f.svc.AddDepreciationEntry(ctx, a.ID, time.Date(2025, 12, 28, 0, 0, 0, 0, time.UTC), actor)
	var perr *shared.PreconditionError
	require.ErrorAs(t, err, &perr)
}

func TestReverseTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := accountingActor()

	a, err := f.svc.Create(ctx, machineAsset(), actor)
	require.NoError(t, err)
	e, err := f.svc.AddDepreciationEntry(ctx, a.ID, period(1), actor)
	require.NoError(t, err)

	require.NoError(t, f.svc.ReverseDepreciationEntry(ctx, e.ID, actor))
	err = f.svc.ReverseDepreciationEntry(ctx, e.ID, actor)
	var perr *shared.PreconditionError
	require.ErrorAs(t, err, &perr)
}

func TestRunMonthlyReportsPerAssetFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := accountingActor()

	machine, err := f.svc.Create(ctx, machineAsset(), actor)
	require.NoError(t, err)

	truck := machineAsset()
	truck.Code = "AST-002"
	truck.Name = "Truk pengiriman"
	truckAsset, err := f.svc.Create(ctx, truck, actor)
	require.NoError(t, err)

	// The machine already has January recorded, the truck does not.
	_, err = f.svc.AddDepreciationEntry(ctx, machine.ID, period(1), actor)
	require.NoError(t, err)

	report, err := f.svc.RunMonthly(ctx, period(1), actor)
	require.NoError(t, err)
	require.Equal(t, 1, report.Success)
	require.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	require.Contains(t, report.Errors[0], "Mesin potong kayu")

	truckStored, _ := f.svc.Get(ctx, truckAsset.ID)
	require.True(t, truckStored.AccumulatedDepreciation.Equal(millions(1)))
}

func TestPostAcquisitionIsOneShot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := accountingActor()

	a, err := f.svc.Create(ctx, machineAsset(), actor)
	require.NoError(t, err)

	_, err = f.svc.PostAcquisition(ctx, a.ID, 2110, actor)
	require.NoError(t, err)

	_, err = f.svc.PostAcquisition(ctx, a.ID, 2110, actor)
	require.ErrorIs(t, err, ledger.ErrSourceAlreadyLinked)
	require.Len(t, f.ledger.Postings(), 1)
}
