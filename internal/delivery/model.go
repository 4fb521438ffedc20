// Package delivery manages delivery orders from draft through approval,
// shipment and customer confirmation.
package delivery

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates delivery order lifecycle values.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusRequestApprove Status = "request_approve"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusSent           Status = "sent"
	StatusConfirmed      Status = "confirmed"
	StatusReceived       Status = "received"
)

// Order is one delivery order. SuratJalan is the shipping document number;
// approval is blocked until it is filled in.
type Order struct {
	ID           uuid.UUID
	Number       string
	Date         time.Time
	CustomerName string
	WarehouseID  int64
	SuratJalan   string
	Description  string
	Status       Status
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Items        []Item
}

// Item is one shipped line. UnitCost carries the inventory valuation used
// for the cost-of-goods posting.
type Item struct {
	ID                 int64
	ItemID             int64
	Description        string
	Qty                decimal.Decimal
	UnitCost           decimal.Decimal
	InventoryAccountID int64
	CogsAccountID      int64
}

// Cost is the item's ledger amount.
func (i Item) Cost() decimal.Decimal {
	return i.Qty.Mul(i.UnitCost).Round(2)
}
