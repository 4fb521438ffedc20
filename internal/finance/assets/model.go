// Package assets manages fixed assets and their straight-line monthly
// depreciation entries.
package assets

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates asset lifecycle values. Only active assets depreciate.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDisposed Status = "disposed"
)

// Asset is one fixed asset. AccumulatedDepreciation and BookValue are
// denormalized from the recorded depreciation entries and are rewritten by
// every operation that adds or reverses an entry, never updated in place by
// anything else.
type Asset struct {
	ID                      uuid.UUID
	Code                    string
	Name                    string
	Status                  Status
	PurchaseDate            time.Time
	UsageDate               time.Time
	PurchaseCost            decimal.Decimal
	SalvageValue            decimal.Decimal
	UsefulLifeMonths        int
	AccumulatedDepreciation decimal.Decimal
	BookValue               decimal.Decimal
	AssetAccountID          int64
	ExpenseAccountID        int64
	AccumAccountID          int64
	CreatedBy               int64
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// MonthlyDepreciation is the straight-line amount per period.
func (a Asset) MonthlyDepreciation() decimal.Decimal {
	if a.UsefulLifeMonths <= 0 {
		return decimal.Zero
	}
	return a.PurchaseCost.Sub(a.SalvageValue).
		Div(decimal.NewFromInt(int64(a.UsefulLifeMonths))).Round(2)
}

// EntryStatus enumerates depreciation entry states. Entries are never
// deleted, a wrong one is reversed.
type EntryStatus string

const (
	EntryRecorded EntryStatus = "recorded"
	EntryReversed EntryStatus = "reversed"
)

// Entry is one monthly depreciation charge. AccumulatedTotal and BookValue
// snapshot the asset's position after this entry was recorded.
type Entry struct {
	ID               uuid.UUID
	AssetID          uuid.UUID
	Date             time.Time
	PeriodMonth      int
	PeriodYear       int
	Amount           decimal.Decimal
	AccumulatedTotal decimal.Decimal
	BookValue        decimal.Decimal
	Status           EntryStatus
	Notes            string
	CreatedAt        time.Time
}

// BatchReport summarises one monthly depreciation run over all assets.
type BatchReport struct {
	Success int
	Failed  int
	Errors  []string
}
