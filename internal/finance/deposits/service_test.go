package deposits

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
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

type memoryDepositRepo struct {
	deposits map[uuid.UUID]Deposit
	logs     []Log
}

func (m *memoryDepositRepo) Get(_ context.Context, id uuid.UUID) (Deposit, error) {
	d, ok := m.deposits[id]
	if !ok {
		return Deposit{}, shared.ErrNotFound
	}
	return d, nil
}

func (m *memoryDepositRepo) Insert(_ context.Context, _ pgx.Tx, d Deposit) error {
	m.deposits[d.ID] = d
	return nil
}

func (m *memoryDepositRepo) Apply(_ context.Context, _ pgx.Tx, log Log) (decimal.Decimal, error) {
	d, ok := m.deposits[log.DepositID]
	if !ok || d.Status != StatusActive {
		return decimal.Zero, shared.ErrConcurrencyConflict
	}
	if log.Type != LogCreate {
		if d.Remaining.LessThan(log.Amount) {
			return decimal.Zero, shared.ErrConcurrencyConflict
		}
		d.Used = d.Used.Add(log.Amount)
		d.Remaining = d.Remaining.Sub(log.Amount)
		m.deposits[log.DepositID] = d
	}
	m.logs = append(m.logs, log)
	return d.Remaining, nil
}

func (m *memoryDepositRepo) ListLogs(_ context.Context, depositID uuid.UUID) ([]Log, error) {
	var out []Log
	for _, l := range m.logs {
		if l.DepositID == depositID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memoryDepositRepo) StatusCAS(_ context.Context, _ pgx.Tx, id uuid.UUID, from, to Status) error {
	d, ok := m.deposits[id]
	if !ok || d.Status != from {
		return shared.ErrConcurrencyConflict
	}
	d.Status = to
	m.deposits[id] = d
	return nil
}

type stubDirectory struct{}

func (stubDirectory) GetByCode(_ context.Context, code string) (accounts.Account, error) {
	if code == CustomerHoldingsAccountCode {
		return accounts.Account{ID: 2164, Code: code, Name: "Hutang Titipan Konsumen"}, nil
	}
	return accounts.Account{}, shared.ErrNotFound
}

type seqNumberer struct {
	n int
}

func (s *seqNumberer) Next(_ context.Context, prefix string, date time.Time) (string, error) {
	s.n++
	return fmt.Sprintf("%s-%s-%04d", prefix, date.Format("20060102"), s.n), nil
}

type depositFixture struct {
	svc    *Service
	repo   *memoryDepositRepo
	ledger *ledgertest.MemoryRepository
}

func newFixture(t *testing.T) *depositFixture {
	t.Helper()
	repo := &memoryDepositRepo{deposits: map[uuid.UUID]Deposit{}}
	ledgerRepo := ledgertest.NewMemoryRepository()
	poster := ledger.NewPoster(ledgerRepo, nil, nil, nil)
	svc := NewService(repo, poster, stubDirectory{}, &seqNumberer{}, nil, nil)
	return &depositFixture{svc: svc, repo: repo, ledger: ledgerRepo}
}

func treasuryActor() shared.Actor {
	return shared.NewActor(6, "rudi", "deposits.create", "deposits.use", "deposits.return", "deposits.cancel")
}

var depositDate = time.Date(2026, 7, 27, 0, 0, 0, 0, time.UTC)

func customerDeposit(amount int64) Input {
	return Input{
		Date:      depositDate,
		OwnerKind: OwnerCustomer,
		OwnerID:   42,
		OwnerName: "CV Mebel Sejahtera",
		AccountID: 1112,
		Amount:    decimal.NewFromInt(amount),
	}
}

func TestRemainingFollowsLogDeltas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := treasuryActor()

	d, err := f.svc.Create(ctx, customerDeposit(1000), actor)
	require.NoError(t, err)

	d, err = f.svc.Use(ctx, d.ID, decimal.NewFromInt(300), "DP pesanan", actor)
	require.NoError(t, err)
	d, err = f.svc.Use(ctx, d.ID, decimal.NewFromInt(200), "DP pesanan", actor)
	require.NoError(t, err)

	require.True(t, d.Remaining.Equal(decimal.NewFromInt(500)))
	require.True(t, d.Used.Equal(decimal.NewFromInt(500)))
	require.True(t, d.Remaining.Equal(d.Amount.Sub(d.Used)))

	ok, expected, err := f.svc.Reconcile(ctx, d.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, expected.Equal(decimal.NewFromInt(500)))

	logs, _ := f.svc.Logs(ctx, d.ID)
	require.Len(t, logs, 3)
	require.Equal(t, LogCreate, logs[0].Type)
}

func TestCreatePostsOpeningJournal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, customerDeposit(1_000_000), treasuryActor())
	require.NoError(t, err)
	require.Equal(t, int64(2164), d.CounterAccountID, "holdings account resolved by code")

	postings := f.ledger.Postings()
	require.Len(t, postings, 1)
	require.Len(t, postings[0].Lines, 2)
	require.Equal(t, int64(1112), postings[0].Lines[0].AccountID)
	require.True(t, postings[0].Lines[0].Debit.Equal(decimal.NewFromInt(1_000_000)))
	require.Equal(t, int64(2164), postings[0].Lines[1].AccountID)
	require.True(t, postings[0].Lines[1].Credit.Equal(decimal.NewFromInt(1_000_000)))
}

func TestUseBeyondRemainingIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := treasuryActor()

	d, err := f.svc.Create(ctx, customerDeposit(1000), actor)
	require.NoError(t, err)

	_, err = f.svc.Use(ctx, d.ID, decimal.NewFromInt(1500), "", actor)
	var perr *shared.PreconditionError
	require.ErrorAs(t, err, &perr)

	stored, _ := f.svc.Get(ctx, d.ID)
	require.True(t, stored.Remaining.Equal(decimal.NewFromInt(1000)))
}

func TestDepositClosesWhenExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := treasuryActor()

	d, err := f.svc.Create(ctx, customerDeposit(1000), actor)
	require.NoError(t, err)

	d, err = f.svc.Use(ctx, d.ID, decimal.NewFromInt(1000), "", actor)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, d.Status)
	require.True(t, d.Remaining.IsZero())

	_, err = f.svc.Use(ctx, d.ID, decimal.NewFromInt(1), "", actor)
	var perr *shared.PreconditionError
	require.ErrorAs(t, err, &perr)
}

func TestReturnFundsPostsMirrorJournal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := treasuryActor()

	d, err := f.svc.Create(ctx, customerDeposit(1000), actor)
	require.NoError(t, err)

	d, err = f.svc.ReturnFunds(ctx, d.ID, decimal.NewFromInt(400), "pengembalian", actor)
	require.NoError(t, err)
	require.True(t, d.Remaining.Equal(decimal.NewFromInt(600)))

	postings := f.ledger.Postings()
	require.Len(t, postings, 2)
	ret := postings[1]
	require.Equal(t, int64(2164), ret.Lines[0].AccountID)
	require.True(t, ret.Lines[0].Debit.Equal(decimal.NewFromInt(400)))
	require.Equal(t, int64(1112), ret.Lines[1].AccountID)
	require.True(t, ret.Lines[1].Credit.Equal(decimal.NewFromInt(400)))

	ok, _, err := f.svc.Reconcile(ctx, d.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCancelReversesOpeningJournal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := treasuryActor()

	d, err := f.svc.Create(ctx, customerDeposit(1000), actor)
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(ctx, d.ID, "salah input", actor))

	stored, _ := f.svc.Get(ctx, d.ID)
	require.Equal(t, StatusClosed, stored.Status)
	require.True(t, stored.Remaining.IsZero())

	postings := f.ledger.Postings()
	require.Len(t, postings, 2)
	require.Equal(t, ledger.PostingStatusReversed, postings[0].Status)
	require.NotNil(t, postings[1].ReversalOf)
}

func TestCancelPartiallyUsedIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := treasuryActor()

	d, err := f.svc.Create(ctx, customerDeposit(1000), actor)
	require.NoError(t, err)
	_, err = f.svc.Use(ctx, d.ID, decimal.NewFromInt(100), "", actor)
	require.NoError(t, err)

	err = f.svc.Cancel(ctx, d.ID, "", actor)
	var perr *shared.PreconditionError
	require.ErrorAs(t, err, &perr)
}

func TestSupplierDepositRequiresPaymentAccount(t *testing.T) {
	f := newFixture(t)
	in := customerDeposit(1000)
	in.OwnerKind = OwnerSupplier

	_, err := f.svc.Create(context.Background(), in, treasuryActor())
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
}
