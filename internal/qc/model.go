// Package qc manages incoming quality controls and the purchase returns
// generated from failed quantities.
package qc

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates quality control lifecycle values.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Control is one incoming inspection. ReturnAccountID is the receivable
// account debited when failed goods go back to the supplier.
type Control struct {
	ID              uuid.UUID
	Number          string
	Date            time.Time
	SupplierName    string
	WarehouseID     int64
	ReturnAccountID int64
	Status          Status
	CreatedBy       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Items           []Item
}

// Item is one inspected line. ReturnProcessed marks lines whose failed
// quantity already produced a purchase return, which is what makes the
// automation safe to re-run.
type Item struct {
	ID                 int64
	ItemID             int64
	Description        string
	QtyPassed          decimal.Decimal
	QtyFailed          decimal.Decimal
	UnitCost           decimal.Decimal
	InventoryAccountID int64
	ReturnProcessed    bool
}

// Return is one purchase return generated from a failed QC line.
type Return struct {
	ID        uuid.UUID
	Number    string
	ControlID uuid.UUID
	QCItemID  int64
	ItemID    int64
	Qty       decimal.Decimal
	UnitCost  decimal.Decimal
	CreatedBy int64
	CreatedAt time.Time
}

// Amount is the return's ledger value.
func (r Return) Amount() decimal.Decimal {
	return r.Qty.Mul(r.UnitCost).Round(2)
}

// RunResult summarises one automation run over a completed control.
type RunResult struct {
	Processed int
	Created   []string
	Errors    []string
}
