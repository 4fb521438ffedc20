// Package quotations manages sales quotations and their approval flow.
package quotations

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates quotation lifecycle values.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusRequestApprove Status = "request_approve"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusExpired        Status = "expired"
)

// Quotation is one sales quotation. Totals are derived from the items and
// recomputed on every edit; they are never accepted from the caller.
type Quotation struct {
	ID           uuid.UUID
	Number       string
	Date         time.Time
	CustomerName string
	ValidUntil   time.Time
	Status       Status
	Total        decimal.Decimal
	Notes        string
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Items        []Item
}

// Item is one quoted line. Subtotal is derived.
type Item struct {
	ID          int64
	ItemID      int64
	Description string
	Qty         decimal.Decimal
	UnitPrice   decimal.Decimal
	DiscountPct decimal.Decimal
	TaxPct      decimal.Decimal
	Subtotal    decimal.Decimal
}
