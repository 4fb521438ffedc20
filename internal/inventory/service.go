package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

// ErrStockNotFound indicates a missing stock row.
var ErrStockNotFound = errors.New("inventory: stock not found")

// Repository abstracts persistence for the service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStock(ctx context.Context, itemID, warehouseID int64) (Stock, error)
	ListMovements(ctx context.Context, itemID, warehouseID int64, limit int) ([]Movement, error)
}

// TxRepository exposes operations available within a stock transaction.
type TxRepository interface {
	GetStockForUpdate(ctx context.Context, itemID, warehouseID int64) (Stock, error)
	UpsertStock(ctx context.Context, stock Stock) error
	InsertMovement(ctx context.Context, movement Movement) error
	// Tx returns the underlying transaction, nil for non-SQL repositories.
	Tx() pgx.Tx
}

// MovementInput describes one requested stock mutation.
type MovementInput struct {
	ItemID      int64
	WarehouseID int64
	Qty         decimal.Decimal
	Source      ledger.SourceRef
	Note        string
	ActorID     int64
}

func (in MovementInput) validate() error {
	if in.ItemID == 0 || in.WarehouseID == 0 {
		return shared.Validationf("item and warehouse required")
	}
	if in.Qty.Sign() <= 0 {
		return shared.Validationf("quantity must be positive")
	}
	return nil
}

// Idempotency guards movement keys so a retried document action cannot move
// stock twice.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates stock movements and reservations.
type Service struct {
	repo          Repository
	idempotency   Idempotency
	logger        *slog.Logger
	now           func() time.Time
	allowNegative bool
}

// NewService builds Service. The idempotency store may be nil for callers
// that guard duplicates themselves.
func NewService(repo Repository, idem Idempotency, logger *slog.Logger) *Service {
	return &Service{repo: repo, idempotency: idem, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// AllowNegativeStock lets plain issues drive available quantity below zero.
// Reservation-backed issues still require sufficient reserved quantity.
func (s *Service) AllowNegativeStock(allow bool) {
	s.allowNegative = allow
}

// Receive posts an inbound movement, increasing available stock.
func (s *Service) Receive(ctx context.Context, in MovementInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	key, err := s.markOnce(ctx, MovementIn, in)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return s.receiveTx(ctx, tx, in)
	})
	if err != nil {
		s.unmark(ctx, key)
	}
	return err
}

// Issue posts an outbound movement against available stock.
func (s *Service) Issue(ctx context.Context, in MovementInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	key, err := s.markOnce(ctx, MovementOut, in)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return s.issueTx(ctx, tx, in, false)
	})
	if err != nil {
		s.unmark(ctx, key)
	}
	return err
}

// Reserve earmarks available stock for a document. It fails when available
// quantity cannot cover the request.
func (s *Service) Reserve(ctx context.Context, in MovementInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return s.reserveTx(ctx, tx, in)
	})
}

// ReserveAll earmarks stock for every input inside one transaction. The
// optional then callback runs in the same transaction after the last
// reservation, so a caller can flip its document status atomically with the
// reservations; a failure on any line leaves no reservation behind.
func (s *Service) ReserveAll(ctx context.Context, ins []MovementInput, then func(ctx context.Context, tx TxRepository) error) error {
	for _, in := range ins {
		if err := in.validate(); err != nil {
			return err
		}
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, in := range ins {
			if err := s.reserveTx(ctx, tx, in); err != nil {
				return err
			}
		}
		if then != nil {
			return then(ctx, tx)
		}
		return nil
	})
}

// Release returns a reservation to available stock, for example when an
// approved document is cancelled.
func (s *Service) Release(ctx context.Context, in MovementInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return s.releaseTx(ctx, tx, in)
	})
}

// CommitReservation consumes reserved stock on shipment. The quantity leaves
// the reserved bucket without touching availability.
func (s *Service) CommitReservation(ctx context.Context, in MovementInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return s.issueTx(ctx, tx, in, true)
	})
}

// Check verifies that available stock covers every demand line. It returns
// the shortages found; an empty slice means the demand is satisfiable.
func (s *Service) Check(ctx context.Context, demands []Demand) ([]Shortage, error) {
	var shortages []Shortage
	for _, d := range demands {
		stock, err := s.repo.GetStock(ctx, d.ItemID, d.WarehouseID)
		if err != nil && !errors.Is(err, ErrStockNotFound) {
			return nil, err
		}
		if stock.QtyAvailable.LessThan(d.Qty) {
			shortages = append(shortages, Shortage{
				ItemID:      d.ItemID,
				WarehouseID: d.WarehouseID,
				Required:    d.Qty,
				Available:   stock.QtyAvailable,
			})
		}
	}
	return shortages, nil
}

// GetStock returns the current stock row.
func (s *Service) GetStock(ctx context.Context, itemID, warehouseID int64) (Stock, error) {
	return s.repo.GetStock(ctx, itemID, warehouseID)
}

// ListMovements returns recent movements for an item in a warehouse.
func (s *Service) ListMovements(ctx context.Context, itemID, warehouseID int64, limit int) ([]Movement, error) {
	return s.repo.ListMovements(ctx, itemID, warehouseID, limit)
}

// ReceiveTx, IssueTx, ReserveTx, ReleaseTx and CommitReservationTx run the
// same mutations against a caller-owned transaction, so stock and journal
// writes commit together.

func (s *Service) ReceiveTx(ctx context.Context, tx TxRepository, in MovementInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	return s.receiveTx(ctx, tx, in)
}

func (s *Service) IssueTx(ctx context.Context, tx TxRepository, in MovementInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	return s.issueTx(ctx, tx, in, false)
}

func (s *Service) ReserveTx(ctx context.Context, tx TxRepository, in MovementInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	return s.reserveTx(ctx, tx, in)
}

func (s *Service) ReleaseTx(ctx context.Context, tx TxRepository, in MovementInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	return s.releaseTx(ctx, tx, in)
}

func (s *Service) CommitReservationTx(ctx context.Context, tx TxRepository, in MovementInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	return s.issueTx(ctx, tx, in, true)
}

func (s *Service) receiveTx(ctx context.Context, tx TxRepository, in MovementInput) error {
	stock, err := s.lockStock(ctx, tx, in.ItemID, in.WarehouseID)
	if err != nil {
		return err
	}
	stock.QtyAvailable = stock.QtyAvailable.Add(in.Qty)
	return s.apply(ctx, tx, stock, in, MovementIn, in.Qty)
}

func (s *Service) issueTx(ctx context.Context, tx TxRepository, in MovementInput, fromReserved bool) error {
	stock, err := s.lockStock(ctx, tx, in.ItemID, in.WarehouseID)
	if err != nil {
		return err
	}
	if fromReserved {
		if stock.QtyReserved.LessThan(in.Qty) {
			return shared.Preconditionf("item %d: reserved %s cannot cover %s",
				in.ItemID, stock.QtyReserved.String(), in.Qty.String())
		}
		stock.QtyReserved = stock.QtyReserved.Sub(in.Qty)
	} else {
		if !s.allowNegative && stock.QtyAvailable.LessThan(in.Qty) {
			return shared.Preconditionf("item %d: available %s cannot cover %s",
				in.ItemID, stock.QtyAvailable.String(), in.Qty.String())
		}
		stock.QtyAvailable = stock.QtyAvailable.Sub(in.Qty)
	}
	return s.apply(ctx, tx, stock, in, MovementOut, in.Qty.Neg())
}

func (s *Service) reserveTx(ctx context.Context, tx TxRepository, in MovementInput) error {
	stock, err := s.lockStock(ctx, tx, in.ItemID, in.WarehouseID)
	if err != nil {
		return err
	}
	if stock.QtyAvailable.LessThan(in.Qty) {
		return shared.Preconditionf("item %d: available %s cannot cover reservation of %s",
			in.ItemID, stock.QtyAvailable.String(), in.Qty.String())
	}
	stock.QtyAvailable = stock.QtyAvailable.Sub(in.Qty)
	stock.QtyReserved = stock.QtyReserved.Add(in.Qty)
	return s.apply(ctx, tx, stock, in, MovementReserve, in.Qty)
}

func (s *Service) releaseTx(ctx context.Context, tx TxRepository, in MovementInput) error {
	stock, err := s.lockStock(ctx, tx, in.ItemID, in.WarehouseID)
	if err != nil {
		return err
	}
	qty := in.Qty
	if stock.QtyReserved.LessThan(qty) {
		qty = stock.QtyReserved
	}
	if qty.Sign() == 0 {
		return nil
	}
	stock.QtyReserved = stock.QtyReserved.Sub(qty)
	stock.QtyAvailable = stock.QtyAvailable.Add(qty)
	return s.apply(ctx, tx, stock, in, MovementRelease, qty)
}

func (s *Service) lockStock(ctx context.Context, tx TxRepository, itemID, warehouseID int64) (Stock, error) {
	stock, err := tx.GetStockForUpdate(ctx, itemID, warehouseID)
	if errors.Is(err, ErrStockNotFound) {
		return Stock{ItemID: itemID, WarehouseID: warehouseID, QtyAvailable: decimal.Zero, QtyReserved: decimal.Zero}, nil
	}
	return stock, err
}

func (s *Service) apply(ctx context.Context, tx TxRepository, stock Stock, in MovementInput, kind MovementKind, qty decimal.Decimal) error {
	stock.UpdatedAt = s.now()
	if err := tx.UpsertStock(ctx, stock); err != nil {
		return err
	}
	movement := Movement{
		ItemID:      in.ItemID,
		WarehouseID: in.WarehouseID,
		Kind:        kind,
		Qty:         qty,
		Source:      in.Source,
		Note:        in.Note,
		ActorID:     in.ActorID,
		CreatedAt:   s.now(),
	}
	if err := tx.InsertMovement(ctx, movement); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Debug("stock movement applied",
			slog.Int64("item_id", in.ItemID),
			slog.Int64("warehouse_id", in.WarehouseID),
			slog.String("kind", string(kind)),
			slog.String("qty", qty.String()))
	}
	return nil
}

func (s *Service) markOnce(ctx context.Context, kind MovementKind, in MovementInput) (string, error) {
	if s.idempotency == nil || in.Source.IsZero() {
		return "", nil
	}
	key := fmt.Sprintf("%s:%s:%s:%d", in.Source.Kind, in.Source.ID, kind, in.WarehouseID)
	if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
		return "", err
	}
	return key, nil
}

// unmark rolls the key back after a failed movement so the same request can
// be retried.
func (s *Service) unmark(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idempotency.Delete(ctx, key); err != nil && s.logger != nil {
		s.logger.Warn("idempotency key rollback failed",
			slog.String("key", key),
			slog.Any("error", err))
	}
}
