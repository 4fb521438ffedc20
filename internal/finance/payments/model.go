// Package payments manages payment requests: expenditure approvals that are
// settled by a cash/bank disbursement once approved.
package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates payment request lifecycle values.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
)

// Request is one payment request. TransactionID is set exactly once, when
// the approved request is settled by a cash/bank transaction.
type Request struct {
	ID            uuid.UUID
	Number        string
	Date          time.Time
	PayeeName     string
	Amount        decimal.Decimal
	Description   string
	Status        Status
	TransactionID *uuid.UUID
	ApprovedBy    *int64
	ApprovedAt    *time.Time
	CreatedBy     int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Settled reports whether a cash/bank transaction already exists for the
// request.
func (r Request) Settled() bool {
	return r.TransactionID != nil
}
