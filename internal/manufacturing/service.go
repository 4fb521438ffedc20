package manufacturing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/accounts"
	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
	"github.com/nusantara-erp/nusantara-erp/internal/inventory"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

// WIPAccountCode is the work-in-progress account debited by material issues.
const WIPAccountCode = "1140.02"

const (
	journalMaterialIssue = "MATERIAL_ISSUE"
	numberPrefixOrder    = "MO"
	numberPrefixIssue    = "MI"
)

var hundred = decimal.NewFromInt(100)

// Repository persists production orders, fulfillment snapshots and issues.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Order, error)
	Insert(ctx context.Context, o Order) error
	StatusCAS(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to Status) error
	SaveFulfillment(ctx context.Context, orderID uuid.UUID, lines []Fulfillment) error
	ListFulfillment(ctx context.Context, orderID uuid.UUID) ([]Fulfillment, error)
	InsertIssue(ctx context.Context, tx pgx.Tx, issue Issue) error
	GetIssueByOrder(ctx context.Context, orderID uuid.UUID) (Issue, error)
}

// Numberer issues document numbers.
type Numberer interface {
	Next(ctx context.Context, prefix string, date time.Time) (string, error)
}

// AccountDirectory resolves chart-of-accounts rows.
type AccountDirectory interface {
	GetByCode(ctx context.Context, code string) (accounts.Account, error)
}

// StockTxFactory binds inventory writes to a caller-owned transaction.
type StockTxFactory func(tx pgx.Tx) inventory.TxRepository

// Service owns the production order lifecycle.
type Service struct {
	repo     Repository
	poster   *ledger.Poster
	stock    *inventory.Service
	stockTx  StockTxFactory
	accounts AccountDirectory
	numbers  Numberer
	bus      *shared.Bus
	fsm      *shared.StateMachine[Status]
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, poster *ledger.Poster, stock *inventory.Service, stockTx StockTxFactory, dir AccountDirectory, numbers Numberer, bus *shared.Bus, logger *slog.Logger) *Service {
	fsm := shared.NewStateMachine[Status]("production_order").
		Allow(StatusDraft, StatusReleased, "mfg.release").
		Allow(StatusDraft, StatusCancelled, "mfg.release").
		Allow(StatusReleased, StatusCancelled, "mfg.release").
		Allow(StatusReleased, StatusInProgress, "mfg.issue").
		Allow(StatusInProgress, StatusCompleted, "mfg.complete")
	return &Service{
		repo:     repo,
		poster:   poster,
		stock:    stock,
		stockTx:  stockTx,
		accounts: dir,
		numbers:  numbers,
		bus:      bus,
		fsm:      fsm,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Input carries the editable fields of a production order.
type Input struct {
	Date        time.Time
	ProductName string
	WarehouseID int64
	Materials   []Material
}

func (in Input) validate() error {
	if in.Date.IsZero() {
		return shared.Validationf("date required")
	}
	if in.WarehouseID == 0 {
		return shared.Validationf("warehouse required")
	}
	if len(in.Materials) == 0 {
		return shared.Validationf("at least one material required")
	}
	for i, m := range in.Materials {
		if m.ItemID == 0 {
			return shared.Validationf("material %d: item required", i)
		}
		if m.QtyRequired.Sign() <= 0 {
			return shared.Validationf("material %d: required quantity must be positive", i)
		}
		if m.UnitCost.Sign() < 0 {
			return shared.Validationf("material %d: unit cost must not be negative", i)
		}
		if m.InventoryAccountID == 0 {
			return shared.Validationf("material %d: inventory account required", i)
		}
	}
	return nil
}

// Create stores a draft production order.
func (s *Service) Create(ctx context.Context, in Input, actor shared.Actor) (Order, error) {
	if !actor.Can("mfg.create") {
		return Order{}, shared.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return Order{}, err
	}
	number, err := s.numbers.Next(ctx, numberPrefixOrder, in.Date)
	if err != nil {
		return Order{}, err
	}
	now := s.now()
	o := Order{
		ID:          uuid.New(),
		Number:      number,
		Date:        in.Date,
		ProductName: in.ProductName,
		WarehouseID: in.WarehouseID,
		Status:      StatusDraft,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Materials:   in.Materials,
	}
	if err := s.repo.Insert(ctx, o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Release moves a draft order to released, making it eligible for material
// issue.
func (s *Service) Release(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	return s.transition(ctx, id, StatusReleased, actor)
}

// Complete closes an in-progress order.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	return s.transition(ctx, id, StatusCompleted, actor)
}

// Cancel aborts an order that has not consumed material yet.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	return s.transition(ctx, id, StatusCancelled, actor)
}

// CheckMaterials verifies that available stock covers every material of the
// order and stores a fulfillment snapshot per line. The report says how much
// of each requirement the warehouse can cover right now.
func (s *Service) CheckMaterials(ctx context.Context, id uuid.UUID) (Report, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}
	checkedAt := s.now()
	report := Report{OrderID: o.ID, Satisfiable: true}
	for _, m := range o.Materials {
		stock, err := s.stock.GetStock(ctx, m.ItemID, o.WarehouseID)
		if err != nil && !errors.Is(err, inventory.ErrStockNotFound) {
			return Report{}, err
		}
		line := Fulfillment{
			OrderID:   o.ID,
			ItemID:    m.ItemID,
			Required:  m.QtyRequired,
			Available: stock.QtyAvailable,
			Percent:   fulfillmentPercent(m.QtyRequired, stock.QtyAvailable),
			CheckedAt: checkedAt,
		}
		if stock.QtyAvailable.LessThan(m.QtyRequired) {
			report.Satisfiable = false
		}
		report.Lines = append(report.Lines, line)
	}
	if err := s.repo.SaveFulfillment(ctx, o.ID, report.Lines); err != nil {
		return Report{}, err
	}
	return report, nil
}

// IssueMaterials creates the material issue for a released order: material
// stock leaves the warehouse and its value moves to work in progress, in one
// transaction with the order's status change. Orders whose materials are not
// fully coverable are rejected.
func (s *Service) IssueMaterials(ctx context.Context, id uuid.UUID, actor shared.Actor) (Issue, ledger.Posting, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return Issue{}, ledger.Posting{}, err
	}
	if err := s.fsm.Transition(ctx, o.ID, o.Status, StatusInProgress, actor); err != nil {
		return Issue{}, ledger.Posting{}, err
	}
	report, err := s.CheckMaterials(ctx, id)
	if err != nil {
		return Issue{}, ledger.Posting{}, err
	}
	if !report.Satisfiable {
		return Issue{}, ledger.Posting{}, shared.Preconditionf("order %s: insufficient material stock", o.Number)
	}
	wip, err := s.accounts.GetByCode(ctx, WIPAccountCode)
	if err != nil {
		return Issue{}, ledger.Posting{}, fmt.Errorf("manufacturing: resolve WIP account %s: %w", WIPAccountCode, err)
	}
	number, err := s.numbers.Next(ctx, numberPrefixIssue, o.Date)
	if err != nil {
		return Issue{}, ledger.Posting{}, err
	}
	issue := Issue{
		ID:        uuid.New(),
		Number:    number,
		OrderID:   o.ID,
		Date:      o.Date,
		CreatedBy: actor.ID,
		CreatedAt: s.now(),
	}
	posting, err := s.poster.Post(ctx, s.issuePosting(o, issue, wip.ID, actor.ID),
		func(ctx context.Context, tx pgx.Tx) error {
			return s.repo.StatusCAS(ctx, tx, o.ID, StatusReleased, StatusInProgress)
		},
		func(ctx context.Context, tx pgx.Tx) error {
			return s.repo.InsertIssue(ctx, tx, issue)
		},
		func(ctx context.Context, tx pgx.Tx) error {
			stockTx := s.stockTx(tx)
			for _, m := range o.Materials {
				err := s.stock.IssueTx(ctx, stockTx, inventory.MovementInput{
					ItemID:      m.ItemID,
					WarehouseID: o.WarehouseID,
					Qty:         m.QtyRequired,
					Source:      ledger.NewSourceRef(ledger.KindMaterialIssue, issue.ID),
					Note:        "Issued for " + o.Number,
					ActorID:     actor.ID,
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		return Issue{}, ledger.Posting{}, err
	}
	s.statusChanged(ctx, o.ID, o.Status, StatusInProgress, actor)
	return issue, posting, nil
}

// Fulfillment returns the latest stored snapshot for an order.
func (s *Service) Fulfillment(ctx context.Context, orderID uuid.UUID) ([]Fulfillment, error) {
	return s.repo.ListFulfillment(ctx, orderID)
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, target Status, actor shared.Actor) error {
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
	s.statusChanged(ctx, o.ID, o.Status, target, actor)
	return nil
}

func (s *Service) issuePosting(o Order, issue Issue, wipAccountID, actorID int64) ledger.PostingInput {
	total := decimal.Zero
	lines := make([]ledger.LineInput, 0, len(o.Materials)+1)
	for _, m := range o.Materials {
		cost := m.Cost()
		total = total.Add(cost)
		lines = append(lines, ledger.Credit(m.InventoryAccountID, cost, m.Description))
	}
	lines = append([]ledger.LineInput{
		ledger.Debit(wipAccountID, total, "Materials for "+o.Number),
	}, lines...)
	return ledger.PostingInput{
		Date:        o.Date,
		Source:      ledger.NewSourceRef(ledger.KindMaterialIssue, issue.ID),
		JournalType: journalMaterialIssue,
		Reference:   issue.Number,
		Description: "Material issue for " + o.Number,
		PostedBy:    actorID,
		Lines:       lines,
	}
}

func (s *Service) statusChanged(ctx context.Context, ref uuid.UUID, from, to Status, actor shared.Actor) {
	s.bus.Publish(ctx, shared.DocumentStatusChanged{
		Module:  "production_order",
		Ref:     ref,
		From:    string(from),
		To:      string(to),
		ActorID: actor.ID,
		At:      s.now(),
	})
}

func fulfillmentPercent(required, available decimal.Decimal) decimal.Decimal {
	if required.Sign() <= 0 {
		return hundred
	}
	pct := available.Div(required).Mul(hundred).Round(2)
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}
