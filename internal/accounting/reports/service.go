package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

// Repository reads aggregated posting totals.
type Repository interface {
	TrialBalanceRows(ctx context.Context, asOf time.Time) ([]TrialBalanceRow, error)
}

// Service serves accounting reports through the cache.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
}

// NewService constructs the report service.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// SubscribeInvalidation bumps the cache version whenever a posting lands.
// Reports served before the next bump may miss the newest posting; the TTL
// bounds how long that window can last when the bump itself fails.
func (s *Service) SubscribeInvalidation(bus *shared.Bus) {
	if bus == nil {
		return
	}
	bus.Subscribe(func(ctx context.Context, evt shared.Event) {
		if _, ok := evt.(shared.DocumentPosted); !ok {
			return
		}
		if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
			s.logger.Warn("report cache bump failed", slog.Any("error", err))
		}
	})
}

// TrialBalance returns per-account posted totals up to asOf.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	key, err := s.cache.BuildKey(ctx, "reports", "trial_balance", asOf.Format("2006-01-02"))
	if err != nil {
		return TrialBalance{}, err
	}
	var report TrialBalance
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		rows, err := s.repo.TrialBalanceRows(ctx, asOf)
		if err != nil {
			return nil, err
		}
		report := TrialBalance{AsOf: asOf, Rows: rows, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
		for _, row := range rows {
			report.TotalDebit = report.TotalDebit.Add(row.Debit)
			report.TotalCredit = report.TotalCredit.Add(row.Credit)
		}
		return report, nil
	})
	if err != nil {
		return TrialBalance{}, err
	}
	return report, nil
}
