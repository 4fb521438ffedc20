package quotations

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

type memoryQuotationRepo struct {
	quotations map[uuid.UUID]Quotation
}

func (m *memoryQuotationRepo) Get(_ context.Context, id uuid.UUID) (Quotation, error) {
	q, ok := m.quotations[id]
	if !ok {
		return Quotation{}, shared.ErrNotFound
	}
	return q, nil
}

func (m *memoryQuotationRepo) Insert(_ context.Context, q Quotation) error {
	m.quotations[q.ID] = q
	return nil
}

func (m *memoryQuotationRepo) Update(_ context.Context, q Quotation) error {
	stored, ok := m.quotations[q.ID]
	if !ok {
		return shared.ErrNotFound
	}
	q.Status = stored.Status
	m.quotations[q.ID] = q
	return nil
}

func (m *memoryQuotationRepo) StatusCAS(_ context.Context, id uuid.UUID, from, to Status) error {
	q, ok := m.quotations[id]
	if !ok || q.Status != from {
		return shared.ErrConcurrencyConflict
	}
	q.Status = to
	m.quotations[id] = q
	return nil
}

func (m *memoryQuotationRepo) ListPendingBefore(_ context.Context, cutoff time.Time) ([]Quotation, error) {
	var out []Quotation
	for _, q := range m.quotations {
		if q.Status == StatusRequestApprove && q.ValidUntil.Before(cutoff) {
			out = append(out, q)
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

func salesActor() shared.Actor {
	return shared.NewActor(6, "dewi", "sales.create", "sales.submit", "sales.approve")
}

var quoteDate = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newQuotationService() (*Service, *memoryQuotationRepo) {
	repo := &memoryQuotationRepo{quotations: map[uuid.UUID]Quotation{}}
	return NewService(repo, &seqNumberer{}, nil, nil), repo
}

func TestCreateComputesTotals(t *testing.T) {
	svc, _ := newQuotationService()

	q, err := svc.Create(context.Background(), Input{
		Date:         quoteDate,
		CustomerName: "PT Sinar Abadi",
		ValidUntil:   quoteDate.AddDate(0, 0, 14),
		Items: []Item{
			{ItemID: 1, Description: "Meja kerja", Qty: d("10"), UnitPrice: d("5000"), DiscountPct: d("10"), TaxPct: d("11")},
			{ItemID: 2, Description: "Kursi", Qty: d("3"), UnitPrice: d("12500")},
		},
	}, salesActor())
	require.NoError(t, err)

	require.True(t, q.Items[0].Subtotal.Equal(d("49950")))
	require.True(t, q.Items[1].Subtotal.Equal(d("37500")))
	require.True(t, q.Total.Equal(d("87450")))
	require.Contains(t, q.Number, "QT-20260601-")
}

func TestUpdateRecomputesTotals(t *testing.T) {
	svc, _ := newQuotationService()
	ctx := context.Background()
	actor := salesActor()

	q, err := svc.Create(ctx, Input{
		Date:         quoteDate,
		CustomerName: "PT Sinar Abadi",
		Items:        []Item{{ItemID: 1, Qty: d("1"), UnitPrice: d("100000")}},
	}, actor)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, q.ID, Input{
		Date:         quoteDate,
		CustomerName: "PT Sinar Abadi",
		Items:        []Item{{ItemID: 1, Qty: d("2"), UnitPrice: d("100000"), TaxPct: d("11")}},
	}, actor)
	require.NoError(t, err)
	require.True(t, updated.Total.Equal(d("222000")))
}

func TestLifecycle(t *testing.T) {
	svc, _ := newQuotationService()
	ctx := context.Background()
	actor := salesActor()

	q, err := svc.Create(ctx, Input{
		Date:         quoteDate,
		CustomerName: "PT Sinar Abadi",
		Items:        []Item{{ItemID: 1, Qty: d("1"), UnitPrice: d("100000")}},
	}, actor)
	require.NoError(t, err)

	// Approving a draft is illegal; it must be submitted first.
	err = svc.Approve(ctx, q.ID, actor)
	require.True(t, shared.IsIllegalTransition(err))

	require.NoError(t, svc.Submit(ctx, q.ID, actor))
	require.NoError(t, svc.Approve(ctx, q.ID, actor))

	stored, _ := svc.Get(ctx, q.ID)
	require.Equal(t, StatusApproved, stored.Status)

	// Approved quotations can no longer be edited.
	_, err = svc.Update(ctx, q.ID, Input{
		Date:         quoteDate,
		CustomerName: "PT Sinar Abadi",
		Items:        []Item{{ItemID: 1, Qty: d("1"), UnitPrice: d("1")}},
	}, actor)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestExpireOverdue(t *testing.T) {
	svc, repo := newQuotationService()
	ctx := context.Background()
	actor := salesActor()

	fresh, err := svc.Create(ctx, Input{
		Date:         quoteDate,
		CustomerName: "PT Sinar Abadi",
		ValidUntil:   quoteDate.AddDate(0, 1, 0),
		Items:        []Item{{ItemID: 1, Qty: d("1"), UnitPrice: d("100000")}},
	}, actor)
	require.NoError(t, err)
	stale, err := svc.Create(ctx, Input{
		Date:         quoteDate,
		CustomerName: "CV Maju Jaya",
		ValidUntil:   quoteDate.AddDate(0, 0, 7),
		Items:        []Item{{ItemID: 1, Qty: d("1"), UnitPrice: d("50000")}},
	}, actor)
	require.NoError(t, err)
	require.NoError(t, svc.Submit(ctx, fresh.ID, actor))
	require.NoError(t, svc.Submit(ctx, stale.ID, actor))

	svc.WithNow(func() time.Time { return quoteDate.AddDate(0, 0, 10) })
	expired, err := svc.ExpireOverdue(ctx, shared.SystemActor())
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	require.Equal(t, StatusExpired, repo.quotations[stale.ID].Status)
	require.Equal(t, StatusRequestApprove, repo.quotations[fresh.ID].Status)
}
