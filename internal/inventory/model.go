// Package inventory tracks on-hand and reserved quantities per item and
// warehouse, with an append-only movement trail.
package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
)

// MovementKind enumerates supported stock movements.
type MovementKind string

const (
	// MovementIn represents an inbound receipt.
	MovementIn MovementKind = "IN"
	// MovementOut represents an outbound issue.
	MovementOut MovementKind = "OUT"
	// MovementReserve earmarks available stock for a document.
	MovementReserve MovementKind = "RESERVE"
	// MovementRelease returns a reservation to available stock.
	MovementRelease MovementKind = "RELEASE"
	// MovementAdjust indicates manual corrections.
	MovementAdjust MovementKind = "ADJUST"
)

// Stock summarises one item in one warehouse. Available and reserved are
// tracked separately so approvals can hold stock before it ships.
type Stock struct {
	ID           int64
	ItemID       int64
	WarehouseID  int64
	QtyAvailable decimal.Decimal
	QtyReserved  decimal.Decimal
	UpdatedAt    time.Time
}

// OnHand is the total physical quantity, reserved included.
func (s Stock) OnHand() decimal.Decimal {
	return s.QtyAvailable.Add(s.QtyReserved)
}

// Movement is one append-only stock mutation.
type Movement struct {
	ID          int64
	ItemID      int64
	WarehouseID int64
	Kind        MovementKind
	Qty         decimal.Decimal
	Source      ledger.SourceRef
	Note        string
	ActorID     int64
	CreatedAt   time.Time
}

// Demand is one line of a stock availability check.
type Demand struct {
	ItemID      int64
	WarehouseID int64
	Qty         decimal.Decimal
}

// Shortage reports a demand line that available stock cannot cover.
type Shortage struct {
	ItemID      int64
	WarehouseID int64
	Required    decimal.Decimal
	Available   decimal.Decimal
}
