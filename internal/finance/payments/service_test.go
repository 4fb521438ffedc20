package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
	"github.com/nusantara-erp/nusantara-erp/internal/cashbank"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

type memoryPaymentRepo struct {
	requests map[uuid.UUID]Request
}

func (m *memoryPaymentRepo) Get(_ context.Context, id uuid.UUID) (Request, error) {
	r, ok := m.requests[id]
	if !ok {
		return Request{}, shared.ErrNotFound
	}
	return r, nil
}

func (m *memoryPaymentRepo) Insert(_ context.Context, r Request) error {
	m.requests[r.ID] = r
	return nil
}

func (m *memoryPaymentRepo) Update(_ context.Context, r Request) error {
	if _, ok := m.requests[r.ID]; !ok {
		return shared.ErrNotFound
	}
	m.requests[r.ID] = r
	return nil
}

func (m *memoryPaymentRepo) StatusCAS(_ context.Context, id uuid.UUID, from, to Status) error {
	r, ok := m.requests[id]
	if !ok || r.Status != from {
		return shared.ErrConcurrencyConflict
	}
	r.Status = to
	m.requests[id] = r
	return nil
}

func (m *memoryPaymentRepo) SetApproval(_ context.Context, id uuid.UUID, approvedBy int64, approvedAt time.Time) error {
	r, ok := m.requests[id]
	if !ok {
		return shared.ErrNotFound
	}
	r.ApprovedBy = &approvedBy
	r.ApprovedAt = &approvedAt
	m.requests[id] = r
	return nil
}

func (m *memoryPaymentRepo) LinkTransaction(_ context.Context, id, transactionID uuid.UUID) error {
	r, ok := m.requests[id]
	if !ok {
		return shared.ErrNotFound
	}
	if r.TransactionID != nil {
		return shared.ErrConcurrencyConflict
	}
	r.TransactionID = &transactionID
	m.requests[id] = r
	return nil
}

type stubPayer struct {
	created map[uuid.UUID]cashbank.Transaction
	posted  []uuid.UUID
	n       int
}

func (p *stubPayer) CreateTransaction(_ context.Context, in cashbank.TransactionInput, _ shared.Actor) (cashbank.Transaction, error) {
	p.n++
	t := cashbank.Transaction{
		ID:          uuid.New(),
		Number:      fmt.Sprintf("CBO-%04d", p.n),
		Date:        in.Date,
		AccountID:   in.AccountID,
		Direction:   in.Direction,
		Amount:      in.Amount,
		Description: in.Description,
		Status:      cashbank.StatusDraft,
		Details:     in.Details,
	}
	p.created[t.ID] = t
	return t, nil
}

func (p *stubPayer) GetTransaction(_ context.Context, id uuid.UUID) (cashbank.Transaction, error) {
	t, ok := p.created[id]
	if !ok {
		return cashbank.Transaction{}, shared.ErrNotFound
	}
	return t, nil
}

func (p *stubPayer) PostTransaction(_ context.Context, id uuid.UUID, _ shared.Actor) (ledger.Posting, error) {
	t, ok := p.created[id]
	if !ok {
		return ledger.Posting{}, shared.ErrNotFound
	}
	t.Status = cashbank.StatusPosted
	p.created[id] = t
	p.posted = append(p.posted, id)
	return ledger.Posting{}, nil
}

type memoryRecorder struct {
	logs []shared.ApprovalLog
}

func (m *memoryRecorder) Record(_ context.Context, log shared.ApprovalLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func (m *memoryRecorder) List(_ context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	var out []shared.ApprovalLog
	for _, l := range m.logs {
		if l.Module == module && l.RefID == ref {
			out = append(out, l)
		}
	}
	return out, nil
}

type seqNumberer struct {
	n int
}

func (s *seqNumberer) Next(_ context.Context, prefix string, date time.Time) (string, error) {
	s.n++
	return fmt.Sprintf("%s-%s-%04d", prefix, date.Format("20060102"), s.n), nil
}

type paymentFixture struct {
	svc   *Service
	repo  *memoryPaymentRepo
	payer *stubPayer
	logs  *memoryRecorder
}

func newFixture(t *testing.T) *paymentFixture {
	t.Helper()
	repo := &memoryPaymentRepo{requests: map[uuid.UUID]Request{}}
	payer := &stubPayer{created: map[uuid.UUID]cashbank.Transaction{}}
	logs := &memoryRecorder{}
	svc := NewService(repo, payer, logs, &seqNumberer{}, nil, nil)
	return &paymentFixture{svc: svc, repo: repo, payer: payer, logs: logs}
}

func financeActor() shared.Actor {
	return shared.NewActor(5, "dewi", "payments.create", "payments.submit", "payments.approve", "payments.settle")
}

var paymentDate = time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)

func sampleRequest() Input {
	return Input{
		Date:        paymentDate,
		PayeeName:   "PT Listrik Negara",
		Amount:      decimal.NewFromInt(750_000),
		Description: "Tagihan listrik Juli",
	}
}

func (f *paymentFixture) approvedRequest(t *testing.T) Request {
	t.Helper()
	ctx := context.Background()
	actor := financeActor()
	r, err := f.svc.Create(ctx, sampleRequest(), actor)
	require.NoError(t, err)
	require.NoError(t, f.svc.Submit(ctx, r.ID, actor))
	require.NoError(t, f.svc.Approve(ctx, r.ID, "ok", actor))
	stored, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	return stored
}

func TestSettleCreatesAndPostsDisbursement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.approvedRequest(t)

	tx, err := f.svc.Settle(ctx, r.ID, SettlementInput{CashAccountID: 1112, ExpenseAccountID: 6100}, financeActor())
	require.NoError(t, err)
	require.Equal(t, cashbank.DirectionOut, tx.Direction)
	require.True(t, tx.Amount.Equal(decimal.NewFromInt(750_000)))
	require.Len(t, f.payer.posted, 1)

	stored, _ := f.svc.Get(ctx, r.ID)
	require.True(t, stored.Settled())
	require.Equal(t, tx.ID, *stored.TransactionID)
}

func TestSettleIsOneShot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := financeActor()
	r := f.approvedRequest(t)

	_, err := f.svc.Settle(ctx, r.ID, SettlementInput{CashAccountID: 1112, ExpenseAccountID: 6100}, actor)
	require.NoError(t, err)

	_, err = f.svc.Settle(ctx, r.ID, SettlementInput{CashAccountID: 1112, ExpenseAccountID: 6100}, actor)
	var perr *shared.PreconditionError
	require.ErrorAs(t, err, &perr)
	require.Len(t, f.payer.posted, 1, "no second disbursement is posted")
}

func TestSettleLinkGuardStopsConcurrentSettles(t *testing.T) {
	// Two settles race past the status read. The null-guarded link lets only
	// the first one through, the loser never posts.
	f := newFixture(t)
	ctx := context.Background()
	r := f.approvedRequest(t)

	other := uuid.New()
	require.NoError(t, f.repo.LinkTransaction(ctx, r.ID, other))

	_, err := f.svc.Settle(ctx, r.ID, SettlementInput{CashAccountID: 1112, ExpenseAccountID: 6100}, financeActor())
	require.Error(t, err)
	require.Empty(t, f.payer.posted)
}

func TestSettleResumesUnpostedTransaction(t *testing.T) {
	// A crash between the transaction link and the posting leaves the request
	// settled on paper with a draft voucher. The retry posts it.
	f := newFixture(t)
	ctx := context.Background()
	actor := financeActor()
	r := f.approvedRequest(t)

	draft, err := f.payer.CreateTransaction(ctx, cashbank.TransactionInput{
		Date:      paymentDate,
		AccountID: 1112,
		Direction: cashbank.DirectionOut,
		Amount:    r.Amount,
	}, actor)
	require.NoError(t, err)
	require.NoError(t, f.repo.LinkTransaction(ctx, r.ID, draft.ID))

	tx, err := f.svc.Settle(ctx, r.ID, SettlementInput{CashAccountID: 1112, ExpenseAccountID: 6100}, actor)
	require.NoError(t, err)
	require.Equal(t, draft.ID, tx.ID)
	require.Len(t, f.payer.posted, 1)

	// Once posted, another settle fails without a second disbursement.
	_, err = f.svc.Settle(ctx, r.ID, SettlementInput{CashAccountID: 1112, ExpenseAccountID: 6100}, actor)
	var perr *shared.PreconditionError
	require.ErrorAs(t, err, &perr)
	require.Len(t, f.payer.posted, 1)
}

func TestSettleRequiresApprovedStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := financeActor()

	r, err := f.svc.Create(ctx, sampleRequest(), actor)
	require.NoError(t, err)

	_, err = f.svc.Settle(ctx, r.ID, SettlementInput{CashAccountID: 1112, ExpenseAccountID: 6100}, actor)
	var perr *shared.PreconditionError
	require.ErrorAs(t, err, &perr)
}

func TestApproveFromDraftIsIllegal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := financeActor()

	r, err := f.svc.Create(ctx, sampleRequest(), actor)
	require.NoError(t, err)

	err = f.svc.Approve(ctx, r.ID, "ok", actor)
	require.True(t, shared.IsIllegalTransition(err))
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := financeActor()

	r, err := f.svc.Create(ctx, sampleRequest(), actor)
	require.NoError(t, err)
	require.NoError(t, f.svc.Submit(ctx, r.ID, actor))

	err = f.svc.Reject(ctx, r.ID, "", actor)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)

	require.NoError(t, f.svc.Reject(ctx, r.ID, "budget exceeded", actor))
	stored, _ := f.svc.Get(ctx, r.ID)
	require.Equal(t, StatusRejected, stored.Status)
}

func TestApprovalTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.approvedRequest(t)

	history, err := f.svc.History(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, shared.ApprovalSubmit, history[0].Action)
	require.Equal(t, shared.ApprovalApprove, history[1].Action)
	require.NotNil(t, r.ApprovedBy)
	require.Equal(t, int64(5), *r.ApprovedBy)
}

func TestSubmitWithoutPermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, sampleRequest(), financeActor())
	require.NoError(t, err)

	err = f.svc.Submit(ctx, r.ID, shared.NewActor(2, "budi"))
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}
