package qc

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

const numberPrefixControl = "QC"

// Repository persists quality controls and their returns.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Control, error)
	Insert(ctx context.Context, c Control) error
	StatusCAS(ctx context.Context, id uuid.UUID, from, to Status) error
	// MarkItemProcessed flips the processed marker on a QC line, but only when
	// it is still unprocessed. tx may be nil outside a posting transaction.
	MarkItemProcessed(ctx context.Context, tx pgx.Tx, itemID int64) error
	InsertReturn(ctx context.Context, tx pgx.Tx, ret Return) error
	ListReturns(ctx context.Context, controlID uuid.UUID) ([]Return, error)
}

// Numberer issues document numbers.
type Numberer interface {
	Next(ctx context.Context, prefix string, date time.Time) (string, error)
}

// Service owns the quality control lifecycle.
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
	fsm := shared.NewStateMachine[Status]("quality_control").
		Allow(StatusDraft, StatusInProgress, "qc.start").
		Allow(StatusInProgress, StatusCompleted, "qc.complete")
	return &Service{repo: repo, numbers: numbers, bus: bus, fsm: fsm, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Input carries the editable fields of a quality control.
type Input struct {
	Date            time.Time
	SupplierName    string
	WarehouseID     int64
	ReturnAccountID int64
	Items           []Item
}

func (in Input) validate() error {
	if in.Date.IsZero() {
		return shared.Validationf("date required")
	}
	if in.WarehouseID == 0 {
		return shared.Validationf("warehouse required")
	}
	if in.ReturnAccountID == 0 {
		return shared.Validationf("return account required")
	}
	if len(in.Items) == 0 {
		return shared.Validationf("at least one item required")
	}
	for i, item := range in.Items {
		if item.ItemID == 0 {
			return shared.Validationf("item %d: product required", i)
		}
		if item.QtyPassed.Sign() < 0 || item.QtyFailed.Sign() < 0 {
			return shared.Validationf("item %d: quantities must not be negative", i)
		}
		if item.QtyPassed.Sign() == 0 && item.QtyFailed.Sign() == 0 {
			return shared.Validationf("item %d: nothing inspected", i)
		}
		if item.QtyFailed.Sign() > 0 && item.InventoryAccountID == 0 {
			return shared.Validationf("item %d: inventory account required for failed quantity", i)
		}
	}
	return nil
}

// Create stores a draft quality control.
func (s *Service) Create(ctx context.Context, in Input, actor shared.Actor) (Control, error) {
	if !actor.Can("qc.create") {
		return Control{}, shared.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return Control{}, err
	}
	number, err := s.numbers.Next(ctx, numberPrefixControl, in.Date)
	if err != nil {
		return Control{}, err
	}
	now := s.now()
	c := Control{
		ID:              uuid.New(),
		Number:          number,
		Date:            in.Date,
		SupplierName:    in.SupplierName,
		WarehouseID:     in.WarehouseID,
		ReturnAccountID: in.ReturnAccountID,
		Status:          StatusDraft,
		CreatedBy:       actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           in.Items,
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		return Control{}, err
	}
	return c, nil
}

// Start begins the inspection.
func (s *Service) Start(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	return s.transition(ctx, id, StatusInProgress, actor)
}

// Complete closes the inspection. Completed controls become eligible for
// purchase return automation.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	return s.transition(ctx, id, StatusCompleted, actor)
}

// Get returns one control.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Control, error) {
	return s.repo.Get(ctx, id)
}

// Returns lists the purchase returns generated for a control.
func (s *Service) Returns(ctx context.Context, id uuid.UUID) ([]Return, error) {
	return s.repo.ListReturns(ctx, id)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, target Status, actor shared.Actor) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.fsm.Transition(ctx, c.ID, c.Status, target, actor); err != nil {
		return err
	}
	if err := s.repo.StatusCAS(ctx, c.ID, c.Status, target); err != nil {
		return err
	}
	s.bus.Publish(ctx, shared.DocumentStatusChanged{
		Module:  "quality_control",
		Ref:     c.ID,
		From:    string(c.Status),
		To:      string(target),
		ActorID: actor.ID,
		At:      s.now(),
	})
	return nil
}
