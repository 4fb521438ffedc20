// Package cashbank manages cash and bank vouchers: in/out transactions with
// account breakdowns and transfers between cash or bank accounts.
package cashbank

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction tells whether money enters or leaves the cash/bank account.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Status enumerates voucher lifecycle values.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusPosted Status = "posted"
	StatusVoided Status = "voided"
)

// Transaction is a cash or bank voucher. The header amount is always
// positive; details break it down per contra account and must sum to the
// header amount. A negative detail amount posts on the opposite side.
type Transaction struct {
	ID          uuid.UUID
	Number      string
	Date        time.Time
	AccountID   int64
	Direction   Direction
	Amount      decimal.Decimal
	Description string
	Status      Status
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Details     []Detail
}

// Detail is one breakdown line of a voucher.
type Detail struct {
	ID          int64
	AccountID   int64
	Amount      decimal.Decimal
	Description string
}

// Transfer moves money between two cash or bank accounts. Other costs are
// bank fees charged to the sending account and booked to a fee expense
// account.
type Transfer struct {
	ID            uuid.UUID
	Number        string
	Date          time.Time
	FromAccountID int64
	ToAccountID   int64
	Amount        decimal.Decimal
	OtherCosts    decimal.Decimal
	FeeAccountID  int64
	Description   string
	Status        Status
	CreatedBy     int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
