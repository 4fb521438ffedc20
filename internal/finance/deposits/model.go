// Package deposits manages customer and supplier deposits: money held up
// front, consumed by later documents, with an append-only movement log.
package deposits

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OwnerKind tells whose money the deposit holds.
type OwnerKind string

const (
	OwnerCustomer OwnerKind = "customer"
	OwnerSupplier OwnerKind = "supplier"
)

// Status enumerates deposit lifecycle values.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Deposit is one held balance. For a customer deposit AccountID is the
// cash/bank account the money arrived on and CounterAccountID the customer
// holdings liability. For a supplier deposit AccountID is the purchase
// advance account and CounterAccountID the cash/bank account paid from.
// Remaining always equals Amount minus Used.
type Deposit struct {
	ID               uuid.UUID
	Number           string
	Date             time.Time
	OwnerKind        OwnerKind
	OwnerID          int64
	OwnerName        string
	AccountID        int64
	CounterAccountID int64
	Amount           decimal.Decimal
	Used             decimal.Decimal
	Remaining        decimal.Decimal
	Note             string
	Status           Status
	CreatedBy        int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LogType enumerates deposit movement kinds.
type LogType string

const (
	LogCreate LogType = "create"
	LogUse    LogType = "use"
	LogReturn LogType = "return"
	LogCancel LogType = "cancel"
)

// Log is one append-only deposit movement. Amount is the movement's size,
// always positive; the type determines the sign of its effect on the
// remaining balance.
type Log struct {
	ID        uuid.UUID
	DepositID uuid.UUID
	Type      LogType
	Amount    decimal.Decimal
	Note      string
	CreatedBy int64
	CreatedAt time.Time
}

// Delta is the log entry's effect on the remaining balance.
func (l Log) Delta() decimal.Decimal {
	if l.Type == LogCreate {
		return l.Amount
	}
	return l.Amount.Neg()
}
