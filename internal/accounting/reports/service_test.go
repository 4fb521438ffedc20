package reports

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

type memoryReportRepo struct {
	rows  []TrialBalanceRow
	calls int
}

func (m *memoryReportRepo) TrialBalanceRows(ctx context.Context, asOf time.Time) ([]TrialBalanceRow, error) {
	m.calls++
	return m.rows, nil
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(t *testing.T, repo Repository) (*Service, *Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	return NewService(repo, cache, nil), cache
}

func TestTrialBalanceTotals(t *testing.T) {
	repo := &memoryReportRepo{rows: []TrialBalanceRow{
		{AccountID: 1, Code: "1111", Name: "Kas", Type: "asset", Debit: money("500000"), Credit: money("100000")},
		{AccountID: 2, Code: "4100", Name: "Penjualan", Type: "revenue", Debit: money("0"), Credit: money("400000")},
	}}
	svc, _ := newTestService(t, repo)

	report, err := svc.TrialBalance(context.Background(), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)
	require.True(t, report.TotalDebit.Equal(money("500000")))
	require.True(t, report.TotalCredit.Equal(money("500000")))
	require.True(t, report.Balanced())
}

func TestTrialBalanceIsCached(t *testing.T) {
	repo := &memoryReportRepo{rows: []TrialBalanceRow{
		{AccountID: 1, Code: "1111", Name: "Kas", Type: "asset", Debit: money("100"), Credit: money("100")},
	}}
	svc, _ := newTestService(t, repo)
	asOf := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	_, err := svc.TrialBalance(context.Background(), asOf)
	require.NoError(t, err)
	_, err = svc.TrialBalance(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)
}

func TestPostingEventInvalidatesCache(t *testing.T) {
	repo := &memoryReportRepo{}
	svc, _ := newTestService(t, repo)
	bus := shared.NewBus(nil)
	svc.SubscribeInvalidation(bus)
	asOf := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	_, err := svc.TrialBalance(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)

	bus.Publish(context.Background(), shared.DocumentPosted{Module: "cash_bank", PostingID: 7})

	_, err = svc.TrialBalance(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestNilCacheFallsThrough(t *testing.T) {
	repo := &memoryReportRepo{rows: []TrialBalanceRow{
		{AccountID: 1, Code: "1111", Name: "Kas", Type: "asset", Debit: money("50"), Credit: money("50")},
	}}
	svc := NewService(repo, NewCache(nil, 0), nil)

	report, err := svc.TrialBalance(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	require.Equal(t, 1, repo.calls)
}
