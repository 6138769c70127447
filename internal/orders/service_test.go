package orders

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rentique-erp/rentique-erp/internal/calendar"
	"github.com/rentique-erp/rentique-erp/internal/shared"
)

type memoryRepo struct {
	orders     map[int64]*Order
	nextID     int64
	nextItemID int64
	overdue    map[int64]bool
	txErr      error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: make(map[int64]*Order), overdue: make(map[int64]bool)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.txErr != nil {
		return r.txErr
	}
	return fn(ctx, r)
}

func (r *memoryRepo) Get(_ context.Context, id int64) (*Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *order
	clone.Items = append([]OrderItem(nil), order.Items...)
	return &clone, nil
}

func (r *memoryRepo) List(_ context.Context, req ListOrdersRequest) ([]Order, int, error) {
	var out []Order
	for _, order := range r.orders {
		if req.Status != nil && order.Status != *req.Status {
			continue
		}
		out = append(out, *order)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Create(_ context.Context, order Order) (int64, error) {
	r.nextID++
	order.ID = r.nextID
	order.Items = nil
	r.orders[order.ID] = &order
	return order.ID, nil
}

func (r *memoryRepo) InsertItem(_ context.Context, item OrderItem) (int64, error) {
	order, ok := r.orders[item.OrderID]
	if !ok {
		return 0, ErrNotFound
	}
	r.nextItemID++
	item.ID = r.nextItemID
	order.Items = append(order.Items, item)
	return item.ID, nil
}

func (r *memoryRepo) DeleteItems(_ context.Context, orderID int64) error {
	if order, ok := r.orders[orderID]; ok {
		order.Items = nil
	}
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	delete(r.orders, id)
	return nil
}

func (r *memoryRepo) UpdateFinancials(_ context.Context, id int64, total, paid, remaining float64, status Status) error {
	order, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	order.TotalPrice, order.Paid, order.Remaining, order.Status = total, paid, remaining, status
	return nil
}

func (r *memoryRepo) UpdateStatusCAS(_ context.Context, id int64, from, to Status) (bool, error) {
	order, ok := r.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	return true, nil
}

func (r *memoryRepo) SetDelivered(_ context.Context, id int64, at time.Time) (bool, error) {
	order, ok := r.orders[id]
	if !ok || order.Status != StatusPaid {
		return false, nil
	}
	order.Status = StatusDelivered
	order.DeliveredAt = &at
	return true, nil
}

func (r *memoryRepo) UpdateDiscount(_ context.Context, id int64, discountType DiscountType, discountValue float64) error {
	order, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	order.DiscountType, order.DiscountValue = discountType, discountValue
	return nil
}

func (r *memoryRepo) UpdateItemPayment(_ context.Context, itemID int64, paid, remaining float64) error {
	for _, order := range r.orders {
		for i := range order.Items {
			if order.Items[i].ID == itemID {
				order.Items[i].Paid = paid
				order.Items[i].Remaining = remaining
				return nil
			}
		}
	}
	return ErrNotFound
}

func (r *memoryRepo) SetItemReturnable(_ context.Context, itemID int64, returnable bool) error {
	for _, order := range r.orders {
		for i := range order.Items {
			if order.Items[i].ID == itemID {
				order.Items[i].Returnable = returnable
				return nil
			}
		}
	}
	return ErrNotFound
}

func (r *memoryRepo) SetOverdueFlag(_ context.Context, id int64, overdue bool) error {
	r.overdue[id] = overdue
	return nil
}

func (r *memoryRepo) ListDelivered(_ context.Context) ([]Order, error) {
	var out []Order
	for _, order := range r.orders {
		if order.Status == StatusDelivered {
			clone := *order
			clone.Items = append([]OrderItem(nil), order.Items...)
			out = append(out, clone)
		}
	}
	return out, nil
}

type stubReservations struct {
	commitErr      error
	committed      [][]calendar.ItemRequest
	released       []int64
	returned       [][2]int64
	returnedRanges []calendar.Range
}

func (s *stubReservations) CommitForOrder(_ context.Context, orderID int64, items []calendar.ItemRequest) ([]calendar.Reservation, error) {
	if s.commitErr != nil {
		return nil, s.commitErr
	}
	s.committed = append(s.committed, items)
	return nil, nil
}

func (s *stubReservations) ModifyOrder(_ context.Context, orderID int64, items []calendar.ItemRequest) ([]calendar.Reservation, error) {
	if s.commitErr != nil {
		return nil, s.commitErr
	}
	s.committed = append(s.committed, items)
	return nil, nil
}

func (s *stubReservations) ReleaseForReturn(_ context.Context, orderID, itemID int64, r calendar.Range) error {
	s.returned = append(s.returned, [2]int64{orderID, itemID})
	s.returnedRanges = append(s.returnedRanges, r)
	return nil
}

func (s *stubReservations) ReleaseOrder(_ context.Context, orderID int64) error {
	s.released = append(s.released, orderID)
	return nil
}

type stubCustody struct{ open bool }

func (s *stubCustody) HasOpen(context.Context, int64) (bool, error) { return s.open, nil }

type stubClients struct{ nextID int64 }

func (s *stubClients) Register(context.Context, NewClientDetails) (int64, error) {
	s.nextID++
	return 1000 + s.nextID, nil
}

type stubWardrobe struct {
	rented   []int64
	returned []int64
}

func (s *stubWardrobe) MarkRented(_ context.Context, ids []int64) error {
	s.rented = append(s.rented, ids...)
	return nil
}

func (s *stubWardrobe) MarkReturned(_ context.Context, id int64) error {
	s.returned = append(s.returned, id)
	return nil
}

type fixture struct {
	repo         *memoryRepo
	reservations *stubReservations
	custody      *stubCustody
	wardrobe     *stubWardrobe
	svc          *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:         newMemoryRepo(),
		reservations: &stubReservations{},
		custody:      &stubCustody{},
		wardrobe:     &stubWardrobe{},
	}
	f.svc = NewService(f.repo, f.reservations, f.custody, &stubClients{}, f.wardrobe, nil, nil, slog.Default())
	return f
}

func rentItem(clothID int64, price float64, deliveryDay, days int) OrderItemRequest {
	delivery := time.Date(2025, 6, deliveryDay, 0, 0, 0, 0, time.UTC)
	return OrderItemRequest{
		ClothID:      clothID,
		Type:         ItemRent,
		Price:        price,
		Quantity:     1,
		DaysOfRent:   days,
		DeliveryDate: &delivery,
	}
}

func createRequest(items ...OrderItemRequest) CreateOrderRequest {
	return CreateOrderRequest{
		ExistingClient: &ExistingClientRef{ClientID: 5},
		EntityType:     "branch",
		EntityID:       1,
		Items:          items,
	}
}

func TestCreateOrderCommitsReservations(t *testing.T) {
	f := newFixture()
	order, err := f.svc.Create(context.Background(), createRequest(rentItem(10, 600, 10, 5), rentItem(11, 400, 10, 5)), "")
	require.NoError(t, err)
	require.Equal(t, StatusCreated, order.Status)
	require.InDelta(t, 1000, order.TotalPrice, 1e-9)
	require.InDelta(t, 1000, order.Remaining, 1e-9)
	require.Len(t, f.reservations.committed, 1)
	require.Len(t, f.reservations.committed[0], 2)
}

func TestCreateOrderRollsBackOnConflict(t *testing.T) {
	f := newFixture()
	f.reservations.commitErr = shared.ErrConflict

	_, err := f.svc.Create(context.Background(), createRequest(rentItem(10, 600, 10, 5)), "")
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Empty(t, f.repo.orders, "conflicting order must not persist")
}

func TestCreateOrderRejectsAmbiguousClientVariant(t *testing.T) {
	f := newFixture()
	req := createRequest(rentItem(10, 600, 10, 5))
	req.NewClient = &NewClientDetails{Name: "N", Phone: "123"}

	_, err := f.svc.Create(context.Background(), req, "")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateOrderRegistersNewClient(t *testing.T) {
	f := newFixture()
	req := createRequest(rentItem(10, 600, 10, 5))
	req.ExistingClient = nil
	req.NewClient = &NewClientDetails{Name: "Walk In", Phone: "0100"}

	order, err := f.svc.Create(context.Background(), req, "")
	require.NoError(t, err)
	require.Equal(t, int64(1001), order.ClientID)
}

func payInFull(t *testing.T, f *fixture, orderID int64, clothID int64, amount float64) {
	t.Helper()
	_, err := f.svc.ApplyAllocations(context.Background(), orderID, map[int64]float64{clothID: amount})
	require.NoError(t, err)
}

func TestPaymentProgressionDrivesStatus(t *testing.T) {
	f := newFixture()
	order, err := f.svc.Create(context.Background(), createRequest(rentItem(10, 1000, 10, 5)), "")
	require.NoError(t, err)

	updated, err := f.svc.ApplyAllocations(context.Background(), order.ID, map[int64]float64{10: 400})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyPaid, updated.Status)
	require.InDelta(t, 600, updated.Remaining, 1e-9)

	updated, err = f.svc.ApplyAllocations(context.Background(), order.ID, map[int64]float64{10: 600})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, updated.Status)
	require.InDelta(t, 0, updated.Remaining, 1e-9)

	// Conservation: item_paid + item_remaining == effective price.
	got, err := f.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	item := got.Items[0]
	require.InDelta(t, item.EffectivePrice(), item.Paid+item.Remaining, 1e-9)
}

func TestApplyAllocationsRejectsOverAllocation(t *testing.T) {
	f := newFixture()
	order, err := f.svc.Create(context.Background(), createRequest(rentItem(10, 1000, 10, 5)), "")
	require.NoError(t, err)

	_, err = f.svc.ApplyAllocations(context.Background(), order.ID, map[int64]float64{10: 1500})
	require.ErrorIs(t, err, shared.ErrInsufficientAllocation)
}

func TestApplyAllocationsRejectsForeignItem(t *testing.T) {
	f := newFixture()
	order, err := f.svc.Create(context.Background(), createRequest(rentItem(10, 1000, 10, 5)), "")
	require.NoError(t, err)

	_, err = f.svc.ApplyAllocations(context.Background(), order.ID, map[int64]float64{99: 100})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeliverRequiresCustodyForRentals(t *testing.T) {
	f := newFixture()
	order, err := f.svc.Create(context.Background(), createRequest(rentItem(10, 1000, 10, 5)), "")
	require.NoError(t, err)
	payInFull(t, f, order.ID, 10, 1000)

	_, err = f.svc.Deliver(context.Background(), order.ID)
	require.ErrorIs(t, err, shared.ErrCustodyRequired)

	f.custody.open = true
	delivered, err := f.svc.Deliver(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, delivered.Status)
	require.Equal(t, []int64{10}, f.wardrobe.rented)
}

func TestDeliverRequiresPaidStatus(t *testing.T) {
	f := newFixture()
	order, err := f.svc.Create(context.Background(), createRequest(rentItem(10, 1000, 10, 5)), "")
	require.NoError(t, err)

	_, err = f.svc.Deliver(context.Background(), order.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestBuyOrderDeliversWithoutCustody(t *testing.T) {
	f := newFixture()
	req := createRequest(OrderItemRequest{ClothID: 10, Type: ItemBuy, Price: 500, Quantity: 1})
	order, err := f.svc.Create(context.Background(), req, "")
	require.NoError(t, err)
	payInFull(t, f, order.ID, 10, 500)

	delivered, err := f.svc.Deliver(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, delivered.Status)
}

func deliverRental(t *testing.T, f *fixture, items ...OrderItemRequest) *Order {
	t.Helper()
	order, err := f.svc.Create(context.Background(), createRequest(items...), "")
	require.NoError(t, err)
	for _, item := range items {
		payInFull(t, f, order.ID, item.ClothID, item.Price*float64(item.Quantity))
	}
	f.custody.open = true
	delivered, err := f.svc.Deliver(context.Background(), order.ID)
	require.NoError(t, err)
	return delivered
}

func TestReturnLastItemFlipsOrderToReturned(t *testing.T) {
	f := newFixture()
	order := deliverRental(t, f, rentItem(10, 600, 10, 5), rentItem(11, 400, 10, 5))

	after, err := f.svc.ReturnItem(context.Background(), order.ID, order.Items[0].ID)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, after.Status)
	require.False(t, after.Items[0].Returnable)

	after, err = f.svc.ReturnItem(context.Background(), order.ID, order.Items[1].ID)
	require.NoError(t, err)
	require.Equal(t, StatusReturned, after.Status)
	require.Equal(t, []int64{10, 11}, f.wardrobe.returned)
}

func TestReturnReleasesOnlyThatItemsRange(t *testing.T) {
	f := newFixture()
	// The same garment booked twice on one order, for disjoint ranges.
	order, err := f.svc.Create(context.Background(), createRequest(rentItem(10, 600, 10, 5), rentItem(10, 600, 20, 5)), "")
	require.NoError(t, err)

	_, err = f.svc.ReturnItem(context.Background(), order.ID, order.Items[0].ID)
	require.NoError(t, err)

	require.Len(t, f.reservations.returnedRanges, 1)
	require.True(t, f.reservations.returnedRanges[0].Start.Equal(time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)))
	require.True(t, f.reservations.returnedRanges[0].End.Equal(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)))
}

func TestReturnItemTwiceFails(t *testing.T) {
	f := newFixture()
	order := deliverRental(t, f, rentItem(10, 600, 10, 5), rentItem(11, 400, 10, 5))

	_, err := f.svc.ReturnItem(context.Background(), order.ID, order.Items[0].ID)
	require.NoError(t, err)
	_, err = f.svc.ReturnItem(context.Background(), order.ID, order.Items[0].ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestFinishReturnsOutstandingItems(t *testing.T) {
	f := newFixture()
	order := deliverRental(t, f, rentItem(10, 600, 10, 5), rentItem(11, 400, 10, 5))

	finished, err := f.svc.Finish(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReturned, finished.Status)
	require.Len(t, f.reservations.returned, 2)
}

func TestCancelReleasesReservations(t *testing.T) {
	f := newFixture()
	order, err := f.svc.Create(context.Background(), createRequest(rentItem(10, 600, 10, 5)), "")
	require.NoError(t, err)

	canceled, err := f.svc.Cancel(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, canceled.Status)
	require.Equal(t, []int64{order.ID}, f.reservations.released)

	_, err = f.svc.Cancel(context.Background(), order.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestUpdateEnforcesReplacementPriceFloor(t *testing.T) {
	f := newFixture()
	order, err := f.svc.Create(context.Background(), createRequest(rentItem(10, 600, 10, 5)), "")
	require.NoError(t, err)
	originalItemID := order.Items[0].ID

	cheaper := rentItem(20, 500, 10, 5)
	cheaper.ReplacesItemID = &originalItemID
	_, err = f.svc.Update(context.Background(), order.ID, UpdateOrderRequest{Items: []OrderItemRequest{cheaper}})
	require.ErrorIs(t, err, shared.ErrValidation)

	pricier := rentItem(20, 700, 10, 5)
	pricier.ReplacesItemID = &originalItemID
	updated, err := f.svc.Update(context.Background(), order.ID, UpdateOrderRequest{Items: []OrderItemRequest{pricier}})
	require.NoError(t, err)
	require.InDelta(t, 700, updated.TotalPrice, 1e-9)
	require.Equal(t, int64(20), updated.Items[0].ClothID)
}

func TestUpdateRestoresReservationsOnPersistFailure(t *testing.T) {
	f := newFixture()
	order, err := f.svc.Create(context.Background(), createRequest(rentItem(10, 600, 10, 5)), "")
	require.NoError(t, err)

	f.repo.txErr = errors.New("storage down")
	replacement := rentItem(20, 700, 10, 5)
	_, err = f.svc.Update(context.Background(), order.ID, UpdateOrderRequest{Items: []OrderItemRequest{replacement}})
	require.Error(t, err)

	// The swap ran for the new set, then again to put the old set back.
	require.Len(t, f.reservations.committed, 3)
	require.Equal(t, int64(20), f.reservations.committed[1][0].ItemID)
	require.Equal(t, int64(10), f.reservations.committed[2][0].ItemID)
}

func TestUpdateAfterDeliveryFails(t *testing.T) {
	f := newFixture()
	order := deliverRental(t, f, rentItem(10, 600, 10, 5))

	_, err := f.svc.Update(context.Background(), order.ID, UpdateOrderRequest{Items: []OrderItemRequest{rentItem(20, 700, 10, 5)}})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestOverdueIsDerivedFromLatestDeliveryDate(t *testing.T) {
	f := newFixture()
	order := deliverRental(t, f, rentItem(10, 600, 10, 5), rentItem(11, 400, 12, 5))

	// Latest range end is day 17. Day 16: not overdue yet.
	f.svc.now = func() time.Time { return time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC) }
	view, err := f.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.False(t, view.IsOverdue)

	f.svc.now = func() time.Time { return time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC) }
	view, err = f.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, view.IsOverdue)
}

func TestMarkOverdueSnapshots(t *testing.T) {
	f := newFixture()
	order := deliverRental(t, f, rentItem(10, 600, 10, 5))

	stamped, err := f.svc.MarkOverdueSnapshots(context.Background(), time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, stamped)
	require.True(t, f.repo.overdue[order.ID])

	stamped, err = f.svc.MarkOverdueSnapshots(context.Background(), time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 0, stamped)
}
