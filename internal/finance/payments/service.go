package payments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
	"github.com/nusantara-erp/nusantara-erp/internal/cashbank"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

const (
	moduleName   = "payment_request"
	numberPrefix = "PAY"
)

// Repository persists payment requests.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Request, error)
	Insert(ctx context.Context, r Request) error
	Update(ctx context.Context, r Request) error
	StatusCAS(ctx context.Context, id uuid.UUID, from, to Status) error
	SetApproval(ctx context.Context, id uuid.UUID, approvedBy int64, approvedAt time.Time) error
	// LinkTransaction sets the settlement transaction, but only when no
	// transaction is linked yet. A second link attempt fails.
	LinkTransaction(ctx context.Context, id, transactionID uuid.UUID) error
}

// Numberer issues document numbers.
type Numberer interface {
	Next(ctx context.Context, prefix string, date time.Time) (string, error)
}

// Payer creates and posts the settlement transaction. Satisfied by
// cashbank.Service.
type Payer interface {
	CreateTransaction(ctx context.Context, in cashbank.TransactionInput, actor shared.Actor) (cashbank.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (cashbank.Transaction, error)
	PostTransaction(ctx context.Context, id uuid.UUID, actor shared.Actor) (ledger.Posting, error)
}

// Service owns the payment request lifecycle.
type Service struct {
	repo      Repository
	payer     Payer
	approvals shared.ApprovalRecorder
	numbers   Numberer
	bus       *shared.Bus
	fsm       *shared.StateMachine[Status]
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, payer Payer, approvals shared.ApprovalRecorder, numbers Numberer, bus *shared.Bus, logger *slog.Logger) *Service {
	fsm := shared.NewStateMachine[Status]("payment_request").
		Allow(StatusDraft, StatusPendingApproval, "payments.submit").
		Allow(StatusPendingApproval, StatusApproved, "payments.approve").
		Allow(StatusPendingApproval, StatusRejected, "payments.approve")
	return &Service{
		repo:      repo,
		payer:     payer,
		approvals: approvals,
		numbers:   numbers,
		bus:       bus,
		fsm:       fsm,
		logger:    logger,
		now:       time.Now,
	}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Input carries the editable fields of a payment request.
type Input struct {
	Date        time.Time
	PayeeName   string
	Amount      decimal.Decimal
	Description string
}

func (in Input) validate() error {
	if in.Date.IsZero() {
		return shared.Validationf("date required")
	}
	if in.PayeeName == "" {
		return shared.Validationf("payee required")
	}
	if in.Amount.Sign() <= 0 {
		return shared.Validationf("amount must be positive")
	}
	return nil
}

// Create stores a draft payment request.
func (s *Service) Create(ctx context.Context, in Input, actor shared.Actor) (Request, error) {
	if !actor.Can("payments.create") {
		return Request{}, shared.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return Request{}, err
	}
	number, err := s.numbers.Next(ctx, numberPrefix, in.Date)
	if err != nil {
		return Request{}, err
	}
	now := s.now()
	r := Request{
		ID:          uuid.New(),
		Number:      number,
		Date:        in.Date,
		PayeeName:   in.PayeeName,
		Amount:      in.Amount,
		Description: in.Description,
		Status:      StatusDraft,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, r); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Update edits a draft request.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input, actor shared.Actor) (Request, error) {
	if !actor.Can("payments.create") {
		return Request{}, shared.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return Request{}, err
	}
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if r.Status != StatusDraft {
		return Request{}, shared.Validationf("only draft requests can be edited, %s is %s", r.Number, r.Status)
	}
	r.Date = in.Date
	r.PayeeName = in.PayeeName
	r.Amount = in.Amount
	r.Description = in.Description
	r.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, r); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Submit sends a draft for approval.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	return s.transition(ctx, id, StatusPendingApproval, actor, shared.ApprovalSubmit, "")
}

// Approve approves a pending request, recording the approver.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, comment string, actor shared.Actor) error {
	if err := s.transition(ctx, id, StatusApproved, actor, shared.ApprovalApprove, comment); err != nil {
		return err
	}
	if err := s.repo.SetApproval(ctx, id, actor.ID, s.now()); err != nil {
		return err
	}
	return nil
}

// Reject rejects a pending request. A reason is mandatory.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string, actor shared.Actor) error {
	if reason == "" {
		return shared.Validationf("rejection reason required")
	}
	if err := s.transition(ctx, id, StatusRejected, actor, shared.ApprovalReject, reason); err != nil {
		return err
	}
	return s.repo.SetApproval(ctx, id, actor.ID, s.now())
}

// SettlementInput names the cash/bank account the payment is disbursed from
// and the expense account it settles.
type SettlementInput struct {
	CashAccountID    int64
	ExpenseAccountID int64
}

// Settle creates and posts the cash/bank disbursement for an approved
// request. The transaction link is written with a null guard, so a second
// settlement attempt fails before any money moves. When a linked transaction
// exists but is still a draft, a retry posts it instead of failing, so a
// crash between link and post does not strand the request without a journal.
func (s *Service) Settle(ctx context.Context, id uuid.UUID, in SettlementInput, actor shared.Actor) (cashbank.Transaction, error) {
	if !actor.Can("payments.settle") {
		return cashbank.Transaction{}, shared.ErrUnauthorized
	}
	if in.CashAccountID == 0 || in.ExpenseAccountID == 0 {
		return cashbank.Transaction{}, shared.Validationf("cash and expense accounts required")
	}
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return cashbank.Transaction{}, err
	}
	if r.Status != StatusApproved {
		return cashbank.Transaction{}, shared.Preconditionf("payment request %s is not approved", r.Number)
	}
	if r.Settled() {
		return s.resumeSettlement(ctx, r, actor)
	}
	t, err := s.payer.CreateTransaction(ctx, cashbank.TransactionInput{
		Date:        r.Date,
		AccountID:   in.CashAccountID,
		Direction:   cashbank.DirectionOut,
		Amount:      r.Amount,
		Description: fmt.Sprintf("Payment %s to %s", r.Number, r.PayeeName),
		Details: []cashbank.Detail{
			{AccountID: in.ExpenseAccountID, Amount: r.Amount, Description: r.Description},
		},
	}, actor)
	if err != nil {
		return cashbank.Transaction{}, err
	}
	// The null-guarded link is the one-shot gate. If a concurrent settle won,
	// the freshly created draft transaction is left unposted and no journal
	// is written.
	if err := s.repo.LinkTransaction(ctx, r.ID, t.ID); err != nil {
		return cashbank.Transaction{}, err
	}
	if _, err := s.payer.PostTransaction(ctx, t.ID, actor); err != nil {
		return cashbank.Transaction{}, err
	}
	if s.logger != nil {
		s.logger.Info("payment request settled",
			slog.String("number", r.Number),
			slog.String("transaction", t.Number))
	}
	return t, nil
}

// resumeSettlement finishes a settlement whose transaction was linked but
// never posted. An already-posted transaction means the request is done.
func (s *Service) resumeSettlement(ctx context.Context, r Request, actor shared.Actor) (cashbank.Transaction, error) {
	t, err := s.payer.GetTransaction(ctx, *r.TransactionID)
	if err != nil {
		return cashbank.Transaction{}, err
	}
	if t.Status != cashbank.StatusDraft {
		return cashbank.Transaction{}, shared.Preconditionf("payment request %s is already settled", r.Number)
	}
	if _, err := s.payer.PostTransaction(ctx, t.ID, actor); err != nil {
		return cashbank.Transaction{}, err
	}
	if s.logger != nil {
		s.logger.Info("payment settlement resumed",
			slog.String("number", r.Number),
			slog.String("transaction", t.Number))
	}
	return t, nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	return s.repo.Get(ctx, id)
}

// History lists the approval trail of a request.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]shared.ApprovalLog, error) {
	if s.approvals == nil {
		return nil, nil
	}
	return s.approvals.List(ctx, moduleName, id)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, target Status, actor shared.Actor, action shared.ApprovalAction, comment string) error {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.fsm.Transition(ctx, r.ID, r.Status, target, actor); err != nil {
		return err
	}
	if err := s.repo.StatusCAS(ctx, r.ID, r.Status, target); err != nil {
		return err
	}
	s.record(ctx, r.ID, actor, action, target, comment)
	s.bus.Publish(ctx, shared.DocumentStatusChanged{
		Module:  moduleName,
		Ref:     r.ID,
		From:    string(r.Status),
		To:      string(target),
		ActorID: actor.ID,
		At:      s.now(),
	})
	return nil
}

func (s *Service) record(ctx context.Context, ref uuid.UUID, actor shared.Actor, action shared.ApprovalAction, status Status, comment string) {
	if s.approvals == nil {
		return
	}
	err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  moduleName,
		RefID:   ref,
		ActorID: actor.ID,
		Action:  action,
		Status:  string(status),
		Comment: comment,
		At:      s.now(),
	})
	if err != nil && s.logger != nil {
		s.logger.Error("approval log write failed", slog.Any("error", err))
	}
}
