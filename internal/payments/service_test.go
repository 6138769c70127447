package payments

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rentique-erp/rentique-erp/internal/orders"
	"github.com/rentique-erp/rentique-erp/internal/shared"
)

type memoryRepo struct {
	payments    map[int64]*Payment
	nextID      int64
	nextAllocID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{payments: make(map[int64]*Payment)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) Get(_ context.Context, id int64) (*Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *p
	clone.Allocations = append([]Allocation(nil), p.Allocations...)
	return &clone, nil
}

func (r *memoryRepo) List(_ context.Context, req ListPaymentsRequest) ([]Payment, int, error) {
	var out []Payment
	for _, p := range r.payments {
		if req.OrderID != nil && p.OrderID != *req.OrderID {
			continue
		}
		if req.Status != nil && p.Status != *req.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Create(_ context.Context, p Payment) (int64, error) {
	r.nextID++
	p.ID = r.nextID
	p.Allocations = nil
	r.payments[p.ID] = &p
	return p.ID, nil
}

func (r *memoryRepo) InsertAllocation(_ context.Context, alloc Allocation) (int64, error) {
	p, ok := r.payments[alloc.PaymentID]
	if !ok {
		return 0, ErrNotFound
	}
	r.nextAllocID++
	alloc.ID = r.nextAllocID
	p.Allocations = append(p.Allocations, alloc)
	return alloc.ID, nil
}

func (r *memoryRepo) UpdateStatusCAS(_ context.Context, id int64, from, to Status, at time.Time) (bool, error) {
	p, ok := r.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	switch to {
	case StatusPaid:
		p.PaidAt = &at
	case StatusCanceled:
		p.CanceledAt = &at
	}
	return true, nil
}

type stubOrderLedger struct {
	balances map[int64]float64
	applied  []map[int64]float64
	err      error
}

func (s *stubOrderLedger) ApplyAllocations(_ context.Context, orderID int64, allocations map[int64]float64) (*orders.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.applied = append(s.applied, allocations)
	return &orders.Order{ID: orderID}, nil
}

func (s *stubOrderLedger) ItemBalances(_ context.Context, _ int64) (map[int64]float64, error) {
	return s.balances, nil
}

type stubCashbox struct {
	incomes []float64
	refs    []string
}

func (s *stubCashbox) RecordIncome(_ context.Context, _ int64, amount float64, ref string) error {
	s.incomes = append(s.incomes, amount)
	s.refs = append(s.refs, ref)
	return nil
}

type fixture struct {
	repo    *memoryRepo
	ledger  *stubOrderLedger
	cashbox *stubCashbox
	svc     *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:    newMemoryRepo(),
		ledger:  &stubOrderLedger{balances: map[int64]float64{10: 400, 11: 200}},
		cashbox: &stubCashbox{},
	}
	f.svc = NewService(f.repo, f.ledger, f.cashbox, nil, nil, slog.Default())
	return f
}

func recordRequest() RecordPaymentRequest {
	return RecordPaymentRequest{
		OrderID:   7,
		CashboxID: 3,
		Amount:    600,
		Type:      TypeInitial,
		Allocations: []AllocationRequest{
			{ClothID: 10, Amount: 400},
			{ClothID: 11, Amount: 200},
		},
	}
}

func TestRecordOpensPendingPayment(t *testing.T) {
	f := newFixture()

	p, err := f.svc.Record(context.Background(), recordRequest(), "")
	require.NoError(t, err)
	require.Equal(t, StatusPending, p.Status)
	require.Len(t, p.Allocations, 2)
	require.InDelta(t, 600, p.AllocatedTotal(), 1e-9)

	// Nothing flows before the payment settles.
	require.Empty(t, f.ledger.applied)
	require.Empty(t, f.cashbox.incomes)
}

func TestRecordRejectsAllocationMismatch(t *testing.T) {
	f := newFixture()

	req := recordRequest()
	req.Allocations[1].Amount = 150
	_, err := f.svc.Record(context.Background(), req, "")
	require.ErrorIs(t, err, shared.ErrValidation)

	req = recordRequest()
	req.Allocations[0].Amount = -400
	_, err = f.svc.Record(context.Background(), req, "")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordRejectsClothNotOnOrder(t *testing.T) {
	f := newFixture()

	// A pending payment allocated to a foreign cloth could never settle.
	req := recordRequest()
	req.Allocations[0].ClothID = 999999
	_, err := f.svc.Record(context.Background(), req, "")
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, f.repo.payments)
}

func TestRecordRejectsAllocationBeyondRemaining(t *testing.T) {
	f := newFixture()
	f.ledger.balances = map[int64]float64{10: 300, 11: 200}

	_, err := f.svc.Record(context.Background(), recordRequest(), "")
	require.ErrorIs(t, err, shared.ErrInsufficientAllocation)
	require.Empty(t, f.repo.payments)
}

func TestMarkPaidAppliesAllocationsAndCashboxIncome(t *testing.T) {
	f := newFixture()
	p, err := f.svc.Record(context.Background(), recordRequest(), "")
	require.NoError(t, err)

	paid, err := f.svc.MarkPaid(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	require.Len(t, f.ledger.applied, 1)
	require.InDelta(t, 400, f.ledger.applied[0][10], 1e-9)
	require.InDelta(t, 200, f.ledger.applied[0][11], 1e-9)

	require.Equal(t, []float64{600}, f.cashbox.incomes)
	require.Equal(t, []string{"payment:1"}, f.cashbox.refs)
}

func TestMarkPaidIsOneShot(t *testing.T) {
	f := newFixture()
	p, err := f.svc.Record(context.Background(), recordRequest(), "")
	require.NoError(t, err)

	_, err = f.svc.MarkPaid(context.Background(), p.ID)
	require.NoError(t, err)

	// The second settle loses the compare-and-set and must not credit
	// the order or the cashbox again.
	_, err = f.svc.MarkPaid(context.Background(), p.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.Len(t, f.ledger.applied, 1)
	require.Len(t, f.cashbox.incomes, 1)
}

func TestMarkPaidRevertsWhenOrderRejectsAllocations(t *testing.T) {
	f := newFixture()
	p, err := f.svc.Record(context.Background(), recordRequest(), "")
	require.NoError(t, err)

	f.ledger.err = shared.ErrInsufficientAllocation
	_, err = f.svc.MarkPaid(context.Background(), p.ID)
	require.ErrorIs(t, err, shared.ErrInsufficientAllocation)

	after, err := f.svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, after.Status)
	require.Empty(t, f.cashbox.incomes)

	// Fixing the order side lets the same payment settle cleanly.
	f.ledger.err = nil
	paid, err := f.svc.MarkPaid(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
}

func TestMarkCanceledOnlyFromPending(t *testing.T) {
	f := newFixture()
	p, err := f.svc.Record(context.Background(), recordRequest(), "")
	require.NoError(t, err)

	canceled, err := f.svc.MarkCanceled(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, canceled.Status)

	_, err = f.svc.MarkCanceled(context.Background(), p.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = f.svc.MarkPaid(context.Background(), p.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.Empty(t, f.ledger.applied)
}

func TestPaidPaymentsNeverCancel(t *testing.T) {
	f := newFixture()
	p, err := f.svc.Record(context.Background(), recordRequest(), "")
	require.NoError(t, err)

	_, err = f.svc.MarkPaid(context.Background(), p.ID)
	require.NoError(t, err)

	_, err = f.svc.MarkCanceled(context.Background(), p.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}
