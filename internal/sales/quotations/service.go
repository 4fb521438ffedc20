package quotations

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/sales/pricing"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

const numberPrefix = "QT"

// Repository persists quotations.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Quotation, error)
	Insert(ctx context.Context, q Quotation) error
	Update(ctx context.Context, q Quotation) error
	StatusCAS(ctx context.Context, id uuid.UUID, from, to Status) error
	// ListPendingBefore returns quotations awaiting approval whose validity
	// lapsed before the cutoff.
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]Quotation, error)
}

// Numberer issues document numbers.
type Numberer interface {
	Next(ctx context.Context, prefix string, date time.Time) (string, error)
}

// Service owns the quotation lifecycle.
type Service struct {
	repo    Repository
	numbers Numberer
	bus     *shared.Bus
	fsm     *shared.StateMachine[Status]
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, numbers Numberer, bus *shared.Bus, logger *slog.Logger) *Service {
	fsm := shared.NewStateMachine[Status]("quotation").
		Allow(StatusDraft, StatusRequestApprove, "sales.submit").
		Allow(StatusRequestApprove, StatusApproved, "sales.approve").
		Allow(StatusRequestApprove, StatusRejected, "sales.approve").
		Allow(StatusRequestApprove, StatusExpired, "")
	return &Service{repo: repo, numbers: numbers, bus: bus, fsm: fsm, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Input carries the editable fields of a quotation.
type Input struct {
	Date         time.Time
	CustomerName string
	ValidUntil   time.Time
	Notes        string
	Items        []Item
}

func (in Input) validate() error {
	if in.Date.IsZero() {
		return shared.Validationf("date required")
	}
	if in.CustomerName == "" {
		return shared.Validationf("customer required")
	}
	if len(in.Items) == 0 {
		return shared.Validationf("at least one item required")
	}
	for i, item := range in.Items {
		if item.Qty.Sign() <= 0 {
			return shared.Validationf("item %d: quantity must be positive", i)
		}
		if item.UnitPrice.Sign() < 0 {
			return shared.Validationf("item %d: unit price must not be negative", i)
		}
		if item.DiscountPct.Sign() < 0 || item.DiscountPct.GreaterThan(decimal.NewFromInt(100)) {
			return shared.Validationf("item %d: discount must be between 0 and 100", i)
		}
		if item.TaxPct.Sign() < 0 {
			return shared.Validationf("item %d: tax must not be negative", i)
		}
	}
	return nil
}

// Create stores a draft quotation with derived totals.
func (s *Service) Create(ctx context.Context, in Input, actor shared.Actor) (Quotation, error) {
	if !actor.Can("sales.create") {
		return Quotation{}, shared.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return Quotation{}, err
	}
	number, err := s.numbers.Next(ctx, numberPrefix, in.Date)
	if err != nil {
		return Quotation{}, err
	}
	now := s.now()
	q := Quotation{
		ID:           uuid.New(),
		Number:       number,
		Date:         in.Date,
		CustomerName: in.CustomerName,
		ValidUntil:   in.ValidUntil,
		Status:       StatusDraft,
		Notes:        in.Notes,
		CreatedBy:    actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	q.Items, q.Total = computeTotals(in.Items)
	if err := s.repo.Insert(ctx, q); err != nil {
		return Quotation{}, err
	}
	return q, nil
}

// Update replaces the editable fields of a draft quotation and recomputes
// its totals.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input, actor shared.Actor) (Quotation, error) {
	if !actor.Can("sales.create") {
		return Quotation{}, shared.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return Quotation{}, err
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	if q.Status != StatusDraft {
		return Quotation{}, shared.Validationf("quotation %s is %s and can no longer be edited", q.Number, q.Status)
	}
	q.Date = in.Date
	q.CustomerName = in.CustomerName
	q.ValidUntil = in.ValidUntil
	q.Notes = in.Notes
	q.Items, q.Total = computeTotals(in.Items)
	q.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, q); err != nil {
		return Quotation{}, err
	}
	return q, nil
}

// Submit moves a draft quotation into the approval queue.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	return s.transition(ctx, id, StatusRequestApprove, actor)
}

// Approve records the approval decision. An approved quotation can later be
// converted to a sale order.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	return s.transition(ctx, id, StatusApproved, actor)
}

// Reject records a rejection.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	return s.transition(ctx, id, StatusRejected, actor)
}

// ExpireOverdue flips pending quotations past their validity date to expired.
// Scheduled automation calls it with the system actor; it returns how many
// quotations were expired.
func (s *Service) ExpireOverdue(ctx context.Context, actor shared.Actor) (int, error) {
	overdue, err := s.repo.ListPendingBefore(ctx, s.now())
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, q := range overdue {
		if err := s.fsm.Transition(ctx, q.ID, q.Status, StatusExpired, actor); err != nil {
			continue
		}
		if err := s.repo.StatusCAS(ctx, q.ID, q.Status, StatusExpired); err != nil {
			if s.logger != nil {
				s.logger.Warn("expire quotation skipped", slog.String("number", q.Number), slog.Any("error", err))
			}
			continue
		}
		expired++
		s.statusChanged(ctx, q.ID, q.Status, StatusExpired, actor)
	}
	return expired, nil
}

// Get returns one quotation.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Quotation, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, target Status, actor shared.Actor) error {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.fsm.Transition(ctx, q.ID, q.Status, target, actor); err != nil {
		return err
	}
	if err := s.repo.StatusCAS(ctx, q.ID, q.Status, target); err != nil {
		return err
	}
	s.statusChanged(ctx, q.ID, q.Status, target, actor)
	return nil
}

func (s *Service) statusChanged(ctx context.Context, ref uuid.UUID, from, to Status, actor shared.Actor) {
	s.bus.Publish(ctx, shared.DocumentStatusChanged{
		Module:  "quotation",
		Ref:     ref,
		From:    string(from),
		To:      string(to),
		ActorID: actor.ID,
		At:      s.now(),
	})
}

func computeTotals(items []Item) ([]Item, decimal.Decimal) {
	out := make([]Item, len(items))
	total := decimal.Zero
	for i, item := range items {
		item.Subtotal = pricing.Subtotal(item.Qty, item.UnitPrice, item.DiscountPct, item.TaxPct)
		out[i] = item
		total = total.Add(item.Subtotal)
	}
	return out, total
}
