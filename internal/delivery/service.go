package delivery

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
	"github.com/nusantara-erp/nusantara-erp/internal/inventory"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

const (
	journalDelivery = "DELIVERY"
	numberPrefix    = "DO"
)

// Repository persists delivery orders.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Order, error)
	Insert(ctx context.Context, o Order) error
	Update(ctx context.Context, o Order) error
	// StatusCAS flips the status only when the current value still matches
	// from. tx may be nil outside a posting transaction.
	StatusCAS(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to Status) error
}

// Numberer issues document numbers.
type Numberer interface {
	Next(ctx context.Context, prefix string, date time.Time) (string, error)
}

// StockTxFactory binds inventory writes to a caller-owned transaction so the
// stock commit joins the cost-of-goods posting transaction.
type StockTxFactory func(tx pgx.Tx) inventory.TxRepository

// Service owns the delivery order lifecycle.
type Service struct {
	repo      Repository
	poster    *ledger.Poster
	stock     *inventory.Service
	stockTx   StockTxFactory
	approvals shared.ApprovalRecorder
	numbers   Numberer
	bus       *shared.Bus
	fsm       *shared.StateMachine[Status]
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service. The approval guard on the approve edge requires
// a Surat Jalan number on the order.
func NewService(repo Repository, poster *ledger.Poster, stock *inventory.Service, stockTx StockTxFactory, approvals shared.ApprovalRecorder, numbers Numberer, bus *shared.Bus, logger *slog.Logger) *Service {
	s := &Service{
		repo:      repo,
		poster:    poster,
		stock:     stock,
		stockTx:   stockTx,
		approvals: approvals,
		numbers:   numbers,
		bus:       bus,
		logger:    logger,
		now:       time.Now,
	}
	s.fsm = shared.NewStateMachine[Status]("delivery_order").
		Allow(StatusDraft, StatusRequestApprove, "delivery.submit").
		AllowIf(StatusRequestApprove, StatusApproved, "delivery.approve", s.suratJalanGuard).
		Allow(StatusRequestApprove, StatusRejected, "delivery.approve").
		Allow(StatusRejected, StatusDraft, "delivery.submit").
		Allow(StatusApproved, StatusSent, "delivery.send").
		Allow(StatusSent, StatusConfirmed, "delivery.confirm").
		Allow(StatusSent, StatusReceived, "delivery.confirm")
	return s
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Input carries the editable fields of a delivery order.
type Input struct {
	Date         time.Time
	CustomerName string
	WarehouseID  int64
	SuratJalan   string
	Description  string
	Items        []Item
}

func (in Input) validate() error {
	if in.Date.IsZero() {
		return shared.Validationf("date required")
	}
	if in.WarehouseID == 0 {
		return shared.Validationf("warehouse required")
	}
	if len(in.Items) == 0 {
		return shared.Validationf("at least one item required")
	}
	for i, item := range in.Items {
		if item.ItemID == 0 {
			return shared.Validationf("item %d: product required", i)
		}
		if item.Qty.Sign() <= 0 {
			return shared.Validationf("item %d: quantity must be positive", i)
		}
		if item.UnitCost.Sign() < 0 {
			return shared.Validationf("item %d: unit cost must not be negative", i)
		}
		if item.InventoryAccountID == 0 || item.CogsAccountID == 0 {
			return shared.Validationf("item %d: inventory and cost accounts required", i)
		}
	}
	return nil
}

// Create stores a draft order and assigns its number.
func (s *Service) Create(ctx context.Context, in Input, actor shared.Actor) (Order, error) {
	if !actor.Can("delivery.create") {
		return Order{}, shared.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return Order{}, err
	}
	number, err := s.numbers.Next(ctx, numberPrefix, in.Date)
	if err != nil {
		return Order{}, err
	}
	now := s.now()
	o := Order{
		ID:           uuid.New(),
		Number:       number,
		Date:         in.Date,
		CustomerName: in.CustomerName,
		WarehouseID:  in.WarehouseID,
		SuratJalan:   in.SuratJalan,
		Description:  in.Description,
		Status:       StatusDraft,
		CreatedBy:    actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Items:        in.Items,
	}
	if err := s.repo.Insert(ctx, o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Update replaces the editable fields of a draft or rejected order.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input, actor shared.Actor) (Order, error) {
	if !actor.Can("delivery.create") {
		return Order{}, shared.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return Order{}, err
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.Status != StatusDraft && o.Status != StatusRejected {
		return Order{}, shared.Validationf("delivery order %s is %s and can no longer be edited", o.Number, o.Status)
	}
	o.Date = in.Date
	o.CustomerName = in.CustomerName
	o.WarehouseID = in.WarehouseID
	o.SuratJalan = in.SuratJalan
	o.Description = in.Description
	o.Items = in.Items
	o.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Submit requests approval for a draft order.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	return s.transition(ctx, id, StatusRequestApprove, actor, shared.ApprovalSubmit, "")
}

// Approve moves a submitted order to approved. Every item's reservation and
// the status flip commit in one stock transaction, so a failure on any line
// leaves neither reservations nor a half-approved order behind. The edge is
// guarded: the order must carry a Surat Jalan number.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, actor shared.Actor, comment string) error {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.fsm.Transition(ctx, o.ID, o.Status, StatusApproved, actor); err != nil {
		return err
	}
	inputs := make([]inventory.MovementInput, 0, len(o.Items))
	for _, item := range o.Items {
		inputs = append(inputs, inventory.MovementInput{
			ItemID:      item.ItemID,
			WarehouseID: o.WarehouseID,
			Qty:         item.Qty,
			Source:      ledger.NewSourceRef(ledger.KindDeliveryOrder, o.ID),
			Note:        "Reserved for " + o.Number,
			ActorID:     actor.ID,
		})
	}
	err = s.stock.ReserveAll(ctx, inputs, func(ctx context.Context, tx inventory.TxRepository) error {
		return s.repo.StatusCAS(ctx, tx.Tx(), o.ID, o.Status, StatusApproved)
	})
	if err != nil {
		return err
	}
	s.record(ctx, o.ID, actor, shared.ApprovalApprove, StatusApproved, comment)
	s.statusChanged(ctx, o.ID, o.Status, StatusApproved, actor)
	return nil
}

// Reject declines a submitted order.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, actor shared.Actor, comment string) error {
	return s.transition(ctx, id, StatusRejected, actor, shared.ApprovalReject, comment)
}

// Send ships the order: the cost-of-goods journal, the stock commit and the
// status change are written in one transaction.
func (s *Service) Send(ctx context.Context, id uuid.UUID, actor shared.Actor) (ledger.Posting, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return ledger.Posting{}, err
	}
	if err := s.fsm.Transition(ctx, o.ID, o.Status, StatusSent, actor); err != nil {
		return ledger.Posting{}, err
	}
	posting, err := s.poster.Post(ctx, s.cogsPosting(o, actor.ID),
		func(ctx context.Context, tx pgx.Tx) error {
			return s.repo.StatusCAS(ctx, tx, o.ID, StatusApproved, StatusSent)
		},
		func(ctx context.Context, tx pgx.Tx) error {
			stockTx := s.stockTx(tx)
			for _, item := range o.Items {
				err := s.stock.CommitReservationTx(ctx, stockTx, inventory.MovementInput{
					ItemID:      item.ItemID,
					WarehouseID: o.WarehouseID,
					Qty:         item.Qty,
					Source:      ledger.NewSourceRef(ledger.KindDeliveryOrder, o.ID),
					Note:        "Shipped on " + o.Number,
					ActorID:     actor.ID,
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		return ledger.Posting{}, err
	}
	s.record(ctx, o.ID, actor, shared.ApprovalSend, StatusSent, "")
	s.statusChanged(ctx, o.ID, o.Status, StatusSent, actor)
	return posting, nil
}

// Confirm records the customer's confirmation of a sent order.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	return s.transition(ctx, id, StatusConfirmed, actor, shared.ApprovalReceive, "")
}

// Receive records physical receipt of a sent order.
func (s *Service) Receive(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	return s.transition(ctx, id, StatusReceived, actor, shared.ApprovalReceive, "")
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, target Status, actor shared.Actor, action shared.ApprovalAction, comment string) error {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.fsm.Transition(ctx, o.ID, o.Status, target, actor); err != nil {
		return err
	}
	if err := s.repo.StatusCAS(ctx, nil, o.ID, o.Status, target); err != nil {
		return err
	}
	s.record(ctx, o.ID, actor, action, target, comment)
	s.statusChanged(ctx, o.ID, o.Status, target, actor)
	return nil
}

func (s *Service) suratJalanGuard(ctx context.Context, ref uuid.UUID) error {
	o, err := s.repo.Get(ctx, ref)
	if err != nil {
		return err
	}
	if o.SuratJalan == "" {
		return shared.Preconditionf("delivery order %s has no Surat Jalan", o.Number)
	}
	return nil
}

func (s *Service) cogsPosting(o Order, actorID int64) ledger.PostingInput {
	lines := make([]ledger.LineInput, 0, len(o.Items)*2)
	for _, item := range o.Items {
		cost := item.Cost()
		lines = append(lines,
			ledger.Debit(item.CogsAccountID, cost, item.Description),
			ledger.Credit(item.InventoryAccountID, cost, item.Description))
	}
	return ledger.PostingInput{
		Date:        o.Date,
		Source:      ledger.NewSourceRef(ledger.KindDeliveryOrder, o.ID),
		JournalType: journalDelivery,
		Reference:   o.Number,
		Description: "Cost of goods for " + o.Number,
		PostedBy:    actorID,
		Lines:       lines,
	}
}

func (s *Service) record(ctx context.Context, ref uuid.UUID, actor shared.Actor, action shared.ApprovalAction, status Status, comment string) {
	if s.approvals == nil {
		return
	}
	err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  "delivery_order",
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

func (s *Service) statusChanged(ctx context.Context, ref uuid.UUID, from, to Status, actor shared.Actor) {
	s.bus.Publish(ctx, shared.DocumentStatusChanged{
		Module:  "delivery_order",
		Ref:     ref,
		From:    string(from),
		To:      string(to),
		ActorID: actor.ID,
		At:      s.now(),
	})
}
