package assets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

const (
	journalDepreciation = "DEPRECIATION"
	journalAcquisition  = "ASSET_ACQUISITION"
)

// Repository persists assets and depreciation entries.
type Repository interface {
	GetAsset(ctx context.Context, id uuid.UUID) (Asset, error)
	InsertAsset(ctx context.Context, a Asset) error
	// ListDepreciable returns active assets whose usage date is on or before
	// the cutoff.
	ListDepreciable(ctx context.Context, cutoff time.Time) ([]Asset, error)
	// SetDepreciation rewrites the denormalized accumulated and book values.
	SetDepreciation(ctx context.Context, tx pgx.Tx, assetID uuid.UUID, accumulated, bookValue decimal.Decimal) error
	GetEntry(ctx context.Context, id uuid.UUID) (Entry, error)
	ListEntries(ctx context.Context, assetID uuid.UUID) ([]Entry, error)
	HasRecordedPeriod(ctx context.Context, assetID uuid.UUID, month, year int) (bool, error)
	InsertEntry(ctx context.Context, tx pgx.Tx, e Entry) error
	EntryStatusCAS(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to EntryStatus) error
}

// Service owns asset depreciation. Book value is always recomputed from the
// recorded entries inside the operation that changes them, there is no
// implicit recalculation anywhere else.
type Service struct {
	repo   Repository
	poster *ledger.Poster
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, poster *ledger.Poster, logger *slog.Logger) *Service {
	return &Service{repo: repo, poster: poster, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Input carries the fields of a new asset.
type Input struct {
	Code             string
	Name             string
	PurchaseDate     time.Time
	UsageDate        time.Time
	PurchaseCost     decimal.Decimal
	SalvageValue     decimal.Decimal
	UsefulLifeMonths int
	AssetAccountID   int64
	ExpenseAccountID int64
	AccumAccountID   int64
}

func (in Input) validate() error {
	if in.Name == "" {
		return shared.Validationf("name required")
	}
	if in.PurchaseDate.IsZero() || in.UsageDate.IsZero() {
		return shared.Validationf("purchase and usage dates required")
	}
	if in.PurchaseCost.Sign() <= 0 {
		return shared.Validationf("purchase cost must be positive")
	}
	if in.SalvageValue.Sign() < 0 || in.SalvageValue.GreaterThan(in.PurchaseCost) {
		return shared.Validationf("salvage value must be between zero and purchase cost")
	}
	if in.UsefulLifeMonths <= 0 {
		return shared.Validationf("useful life must be positive")
	}
	if in.AssetAccountID == 0 || in.ExpenseAccountID == 0 || in.AccumAccountID == 0 {
		return shared.Validationf("asset, expense and accumulated depreciation accounts required")
	}
	return nil
}

// Create stores an active asset with a zero depreciation position.
func (s *Service) Create(ctx context.Context, in Input, actor shared.Actor) (Asset, error) {
	if !actor.Can("assets.create") {
		return Asset{}, shared.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return Asset{}, err
	}
	now := s.now()
	a := Asset{
		ID:                      uuid.New(),
		Code:                    in.Code,
		Name:                    in.Name,
		Status:                  StatusActive,
		PurchaseDate:            in.PurchaseDate,
		UsageDate:               in.UsageDate,
		PurchaseCost:            in.PurchaseCost,
		SalvageValue:            in.SalvageValue,
		UsefulLifeMonths:        in.UsefulLifeMonths,
		AccumulatedDepreciation: decimal.Zero,
		BookValue:               in.PurchaseCost,
		AssetAccountID:          in.AssetAccountID,
		ExpenseAccountID:        in.ExpenseAccountID,
		AccumAccountID:          in.AccumAccountID,
		CreatedBy:               actor.ID,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := s.repo.InsertAsset(ctx, a); err != nil {
		return Asset{}, err
	}
	return a, nil
}

// PostAcquisition posts the purchase journal: Dr fixed asset, Cr the funding
// account. The source link makes it one-shot.
func (s *Service) PostAcquisition(ctx context.Context, id uuid.UUID, creditAccountID int64, actor shared.Actor) (ledger.Posting, error) {
	if !actor.Can("assets.create") {
		return ledger.Posting{}, shared.ErrUnauthorized
	}
	if creditAccountID == 0 {
		return ledger.Posting{}, shared.Validationf("funding account required")
	}
	a, err := s.repo.GetAsset(ctx, id)
	if err != nil {
		return ledger.Posting{}, err
	}
	return s.poster.Post(ctx, ledger.PostingInput{
		Date:        a.PurchaseDate,
		Source:      ledger.NewSourceRef(ledger.KindAssetDepreciation, a.ID),
		JournalType: journalAcquisition,
		Reference:   a.Code,
		Description: fmt.Sprintf("Asset acquisition %s", a.Name),
		PostedBy:    actor.ID,
		Lines: []ledger.LineInput{
			ledger.Debit(a.AssetAccountID, a.PurchaseCost, a.Name),
			ledger.Credit(creditAccountID, a.PurchaseCost, a.Name),
		},
	})
}

// AddDepreciationEntry records one monthly charge for the given period and
// posts Dr depreciation expense, Cr accumulated depreciation. The asset's
// accumulated total is recomputed from its recorded entries, not read from
// the denormalized column.
func (s *Service) AddDepreciationEntry(ctx context.Context, assetID uuid.UUID, period time.Time, actor shared.Actor) (Entry, error) {
	if !actor.Can("assets.depreciate") {
		return Entry{}, shared.ErrUnauthorized
	}
	a, err := s.repo.GetAsset(ctx, assetID)
	if err != nil {
		return Entry{}, err
	}
	if a.Status != StatusActive {
		return Entry{}, shared.Preconditionf("asset %s is not active", a.Name)
	}
	if a.UsageDate.After(period) {
		return Entry{}, shared.Preconditionf("asset %s is not in use until %s", a.Name, a.UsageDate.Format("2006-01-02"))
	}
	exists, err := s.repo.HasRecordedPeriod(ctx, assetID, int(period.Month()), period.Year())
	if err != nil {
		return Entry{}, err
	}
	if exists {
		return Entry{}, shared.Preconditionf("depreciation for %s already recorded in %s", a.Name, period.Format("2006-01"))
	}
	accumulated, err := s.recordedTotal(ctx, assetID)
	if err != nil {
		return Entry{}, err
	}
	amount := a.MonthlyDepreciation()
	newTotal := accumulated.Add(amount)
	newBook := a.PurchaseCost.Sub(newTotal)
	if newBook.LessThan(a.SalvageValue) {
		return Entry{}, shared.Preconditionf("asset %s is fully depreciated", a.Name)
	}
	e := Entry{
		ID:               uuid.New(),
		AssetID:          assetID,
		Date:             period,
		PeriodMonth:      int(period.Month()),
		PeriodYear:       period.Year(),
		Amount:           amount,
		AccumulatedTotal: newTotal,
		BookValue:        newBook,
		Status:           EntryRecorded,
		Notes:            fmt.Sprintf("Monthly depreciation %s", period.Format("January 2006")),
		CreatedAt:        s.now(),
	}
	in := ledger.PostingInput{
		Date:        period,
		Source:      ledger.NewSourceRef(ledger.KindAssetDepreciation, e.ID),
		JournalType: journalDepreciation,
		Reference:   fmt.Sprintf("DEP-%s-%s", period.Format("200601"), a.Code),
		Description: fmt.Sprintf("Depreciation %s for %s", a.Name, period.Format("January 2006")),
		PostedBy:    actor.ID,
		Lines: []ledger.LineInput{
			ledger.Debit(a.ExpenseAccountID, amount, a.Name),
			ledger.Credit(a.AccumAccountID, amount, a.Name),
		},
	}
	_, err = s.poster.Post(ctx, in,
		func(ctx context.Context, tx pgx.Tx) error {
			return s.repo.InsertEntry(ctx, tx, e)
		},
		func(ctx context.Context, tx pgx.Tx) error {
			return s.repo.SetDepreciation(ctx, tx, assetID, newTotal, newBook)
		})
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// ReverseDepreciationEntry undoes one recorded entry: its journal is
// reversed with a counter-posting and the asset's accumulated total and
// book value are recomputed without it.
func (s *Service) ReverseDepreciationEntry(ctx context.Context, entryID uuid.UUID, actor shared.Actor) error {
	if !actor.Can("assets.depreciate") {
		return shared.ErrUnauthorized
	}
	e, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if e.Status != EntryRecorded {
		return shared.Preconditionf("depreciation entry is already reversed")
	}
	a, err := s.repo.GetAsset(ctx, e.AssetID)
	if err != nil {
		return err
	}
	accumulated, err := s.recordedTotal(ctx, e.AssetID)
	if err != nil {
		return err
	}
	newTotal := accumulated.Sub(e.Amount)
	newBook := a.PurchaseCost.Sub(newTotal)
	posting, err := s.activePosting(ctx, ledger.NewSourceRef(ledger.KindAssetDepreciation, e.ID))
	if err != nil {
		return err
	}
	memo := fmt.Sprintf("Reversal of depreciation %s %s", a.Name, e.Date.Format("2006-01"))
	_, err = s.poster.Reverse(ctx, posting.ID, actor.ID, memo,
		func(ctx context.Context, tx pgx.Tx) error {
			return s.repo.EntryStatusCAS(ctx, tx, e.ID, EntryRecorded, EntryReversed)
		},
		func(ctx context.Context, tx pgx.Tx) error {
			return s.repo.SetDepreciation(ctx, tx, e.AssetID, newTotal, newBook)
		})
	return err
}

// RunMonthly depreciates every eligible asset for the period. One asset's
// failure does not stop the batch.
func (s *Service) RunMonthly(ctx context.Context, period time.Time, actor shared.Actor) (BatchReport, error) {
	if !actor.Can("assets.depreciate") {
		return BatchReport{}, shared.ErrUnauthorized
	}
	eligible, err := s.repo.ListDepreciable(ctx, period)
	if err != nil {
		return BatchReport{}, err
	}
	var report BatchReport
	for _, a := range eligible {
		if _, err := s.AddDepreciationEntry(ctx, a.ID, period, actor); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", a.Name, err))
			if s.logger != nil {
				s.logger.Error("asset depreciation failed",
					slog.String("asset", a.Name),
					slog.Any("error", err))
			}
			continue
		}
		report.Success++
	}
	if s.logger != nil {
		s.logger.Info("monthly depreciation finished",
			slog.String("period", period.Format("2006-01")),
			slog.Int("success", report.Success),
			slog.Int("failed", report.Failed))
	}
	return report, nil
}

// Get returns one asset.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Asset, error) {
	return s.repo.GetAsset(ctx, id)
}

// Entries lists an asset's depreciation entries oldest first.
func (s *Service) Entries(ctx context.Context, assetID uuid.UUID) ([]Entry, error) {
	return s.repo.ListEntries(ctx, assetID)
}

func (s *Service) recordedTotal(ctx context.Context, assetID uuid.UUID) (decimal.Decimal, error) {
	entries, err := s.repo.ListEntries(ctx, assetID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range entries {
		if e.Status == EntryRecorded {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

func (s *Service) activePosting(ctx context.Context, src ledger.SourceRef) (ledger.Posting, error) {
	postings, err := s.poster.GetBySource(ctx, src)
	if err != nil {
		return ledger.Posting{}, err
	}
	for _, p := range postings {
		if p.Status == ledger.PostingStatusPosted {
			return p, nil
		}
	}
	return ledger.Posting{}, ledger.ErrPostingNotFound
}
