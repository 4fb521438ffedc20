package manufacturing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/accounts"
	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger/ledgertest"
	"github.com/nusantara-erp/nusantara-erp/internal/inventory"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

type memoryMfgRepo struct {
	orders       map[uuid.UUID]Order
	fulfillments map[uuid.UUID][]Fulfillment
	issues       map[uuid.UUID]Issue
}

func (m *memoryMfgRepo) Get(_ context.Context, id uuid.UUID) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, shared.ErrNotFound
	}
	return o, nil
}

func (m *memoryMfgRepo) Insert(_ context.Context, o Order) error {
	m.orders[o.ID] = o
	return nil
}

func (m *memoryMfgRepo) StatusCAS(_ context.Context, _ pgx.Tx, id uuid.UUID, from, to Status) error {
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return shared.ErrConcurrencyConflict
	}
	o.Status = to
	m.orders[id] = o
	return nil
}

func (m *memoryMfgRepo) SaveFulfillment(_ context.Context, orderID uuid.UUID, lines []Fulfillment) error {
	m.fulfillments[orderID] = lines
	return nil
}

func (m *memoryMfgRepo) ListFulfillment(_ context.Context, orderID uuid.UUID) ([]Fulfillment, error) {
	return m.fulfillments[orderID], nil
}

func (m *memoryMfgRepo) InsertIssue(_ context.Context, _ pgx.Tx, issue Issue) error {
	m.issues[issue.ID] = issue
	return nil
}

func (m *memoryMfgRepo) GetIssueByOrder(_ context.Context, orderID uuid.UUID) (Issue, error) {
	for _, issue := range m.issues {
		if issue.OrderID == orderID {
			return issue, nil
		}
	}
	return Issue{}, shared.ErrNotFound
}

type stockKey struct {
	item, warehouse int64
}

type memoryStockRepo struct {
	stocks    map[stockKey]inventory.Stock
	movements []inventory.Movement
}

func (m *memoryStockRepo) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	stocks := make(map[stockKey]inventory.Stock, len(m.stocks))
	for k, v := range m.stocks {
		stocks[k] = v
	}
	count := len(m.movements)
	if err := fn(ctx, (*memoryStockTx)(m)); err != nil {
		m.stocks = stocks
		m.movements = m.movements[:count]
		return err
	}
	return nil
}

func (m *memoryStockRepo) GetStock(_ context.Context, itemID, warehouseID int64) (inventory.Stock, error) {
	stock, ok := m.stocks[stockKey{itemID, warehouseID}]
	if !ok {
		return inventory.Stock{}, inventory.ErrStockNotFound
	}
	return stock, nil
}

func (m *memoryStockRepo) ListMovements(_ context.Context, itemID, warehouseID int64, _ int) ([]inventory.Movement, error) {
	var out []inventory.Movement
	for _, mv := range m.movements {
		if mv.ItemID == itemID && mv.WarehouseID == warehouseID {
			out = append(out, mv)
		}
	}
	return out, nil
}

type memoryStockTx memoryStockRepo

func (m *memoryStockTx) Tx() pgx.Tx { return nil }

func (m *memoryStockTx) GetStockForUpdate(ctx context.Context, itemID, warehouseID int64) (inventory.Stock, error) {
	return (*memoryStockRepo)(m).GetStock(ctx, itemID, warehouseID)
}

func (m *memoryStockTx) UpsertStock(_ context.Context, stock inventory.Stock) error {
	m.stocks[stockKey{stock.ItemID, stock.WarehouseID}] = stock
	return nil
}

func (m *memoryStockTx) InsertMovement(_ context.Context, movement inventory.Movement) error {
	m.movements = append(m.movements, movement)
	return nil
}

type seqNumberer struct {
	n int
}

func (s *seqNumberer) Next(_ context.Context, prefix string, date time.Time) (string, error) {
	s.n++
	return fmt.Sprintf("%s-%s-%04d", prefix, date.Format("20060102"), s.n), nil
}

type stubDirectory struct{}

func (stubDirectory) GetByCode(_ context.Context, code string) (accounts.Account, error) {
	if code == WIPAccountCode {
		return accounts.Account{ID: 1142, Code: code, Name: "Barang Dalam Proses"}, nil
	}
	return accounts.Account{}, shared.ErrNotFound
}

type mfgFixture struct {
	svc    *Service
	repo   *memoryMfgRepo
	stocks *memoryStockRepo
	ledger *ledgertest.MemoryRepository
}

func newFixture(t *testing.T) *mfgFixture {
	t.Helper()
	repo := &memoryMfgRepo{
		orders:       map[uuid.UUID]Order{},
		fulfillments: map[uuid.UUID][]Fulfillment{},
		issues:       map[uuid.UUID]Issue{},
	}
	stocks := &memoryStockRepo{stocks: map[stockKey]inventory.Stock{}}
	ledgerRepo := ledgertest.NewMemoryRepository()
	stockSvc := inventory.NewService(stocks, nil, nil)
	poster := ledger.NewPoster(ledgerRepo, nil, nil, nil)
	stockTx := func(pgx.Tx) inventory.TxRepository { return (*memoryStockTx)(stocks) }
	svc := NewService(repo, poster, stockSvc, stockTx, stubDirectory{}, &seqNumberer{}, nil, nil)
	return &mfgFixture{svc: svc, repo: repo, stocks: stocks, ledger: ledgerRepo}
}

func productionActor() shared.Actor {
	return shared.NewActor(8, "joko", "mfg.create", "mfg.release", "mfg.issue", "mfg.complete")
}

var mfgDate = time.Date(2026, 7, 6, 0, 0, 0, 0, time.UTC)

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func (f *mfgFixture) seedStock(itemID, available int64) {
	f.stocks.stocks[stockKey{itemID, 1}] = inventory.Stock{
		ItemID:       itemID,
		WarehouseID:  1,
		QtyAvailable: decimal.NewFromInt(available),
	}
}

func sampleOrder() Input {
	return Input{
		Date:        mfgDate,
		ProductName: "Lemari dua pintu",
		WarehouseID: 1,
		Materials: []Material{
			{ItemID: 20, Description: "Papan kayu", QtyRequired: qty(50), UnitCost: decimal.NewFromInt(40_000), InventoryAccountID: 1131},
			{ItemID: 21, Description: "Engsel", QtyRequired: qty(4), UnitCost: decimal.NewFromInt(15_000), InventoryAccountID: 1132},
		},
	}
}

func TestCheckMaterialsShortStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedStock(20, 40)
	f.seedStock(21, 100)

	order, err := f.svc.Create(ctx, sampleOrder(), productionActor())
	require.NoError(t, err)

	report, err := f.svc.CheckMaterials(ctx, order.ID)
	require.NoError(t, err)
	require.False(t, report.Satisfiable)
	require.Len(t, report.Lines, 2)

	require.True(t, report.Lines[0].Required.Equal(qty(50)))
	require.True(t, report.Lines[0].Available.Equal(qty(40)))
	require.True(t, report.Lines[0].Percent.Equal(decimal.NewFromInt(80)))
	require.True(t, report.Lines[1].Percent.Equal(decimal.NewFromInt(100)), "coverage is capped at 100")

	// The snapshot is persisted for later inspection.
	stored, err := f.svc.Fulfillment(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
}

func TestIssueMaterialsRejectedOnShortStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := productionActor()
	f.seedStock(20, 40)
	f.seedStock(21, 100)

	order, err := f.svc.Create(ctx, sampleOrder(), actor)
	require.NoError(t, err)
	require.NoError(t, f.svc.Release(ctx, order.ID, actor))

	_, _, err = f.svc.IssueMaterials(ctx, order.ID, actor)
	var perr *shared.PreconditionError
	require.ErrorAs(t, err, &perr)

	stored, _ := f.svc.Get(ctx, order.ID)
	require.Equal(t, StatusReleased, stored.Status)
	require.Empty(t, f.ledger.Postings())
}

func TestIssueMaterialsPostsWIP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := productionActor()
	f.seedStock(20, 60)
	f.seedStock(21, 10)

	order, err := f.svc.Create(ctx, sampleOrder(), actor)
	require.NoError(t, err)
	require.NoError(t, f.svc.Release(ctx, order.ID, actor))

	issue, posting, err := f.svc.IssueMaterials(ctx, order.ID, actor)
	require.NoError(t, err)
	require.Contains(t, issue.Number, "MI-")

	// Dr WIP for the total, Cr each material's inventory account.
	require.Len(t, posting.Lines, 3)
	total := decimal.NewFromInt(2_060_000)
	require.Equal(t, int64(1142), posting.Lines[0].AccountID)
	require.True(t, posting.Lines[0].Debit.Equal(total))
	require.True(t, posting.Lines[1].Credit.Equal(decimal.NewFromInt(2_000_000)))
	require.True(t, posting.Lines[2].Credit.Equal(decimal.NewFromInt(60_000)))

	stored, _ := f.svc.Get(ctx, order.ID)
	require.Equal(t, StatusInProgress, stored.Status)

	stock := f.stocks.stocks[stockKey{20, 1}]
	require.True(t, stock.QtyAvailable.Equal(qty(10)))

	require.NoError(t, f.svc.Complete(ctx, order.ID, actor))
	stored, _ = f.svc.Get(ctx, order.ID)
	require.Equal(t, StatusCompleted, stored.Status)
}

func TestIssueMaterialsFromDraftIsIllegal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := productionActor()
	f.seedStock(20, 60)
	f.seedStock(21, 10)

	order, err := f.svc.Create(ctx, sampleOrder(), actor)
	require.NoError(t, err)

	_, _, err = f.svc.IssueMaterials(ctx, order.ID, actor)
	require.True(t, shared.IsIllegalTransition(err))
}
