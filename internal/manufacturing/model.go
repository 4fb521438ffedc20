// Package manufacturing manages production orders, their material checks
// and the material issues that move stock into work in progress.
package manufacturing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates production order lifecycle values.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusReleased   Status = "released"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Order is one production order with its bill of materials.
type Order struct {
	ID          uuid.UUID
	Number      string
	Date        time.Time
	ProductName string
	WarehouseID int64
	Status      Status
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Materials   []Material
}

// Material is one required component. UnitCost carries the inventory
// valuation used for the work-in-progress posting.
type Material struct {
	ID                 int64
	ItemID             int64
	Description        string
	QtyRequired        decimal.Decimal
	UnitCost           decimal.Decimal
	InventoryAccountID int64
}

// Cost is the material's ledger amount.
func (m Material) Cost() decimal.Decimal {
	return m.QtyRequired.Mul(m.UnitCost).Round(2)
}

// Fulfillment snapshots, per material, how much of the requirement the
// warehouse could cover at check time. Percent is capped at 100.
type Fulfillment struct {
	ID        int64
	OrderID   uuid.UUID
	ItemID    int64
	Required  decimal.Decimal
	Available decimal.Decimal
	Percent   decimal.Decimal
	CheckedAt time.Time
}

// Report is the outcome of one material check.
type Report struct {
	OrderID     uuid.UUID
	Satisfiable bool
	Lines       []Fulfillment
}

// Issue is one material issue document: the stock draw that feeds an order.
type Issue struct {
	ID        uuid.UUID
	Number    string
	OrderID   uuid.UUID
	Date      time.Time
	CreatedBy int64
	CreatedAt time.Time
}
