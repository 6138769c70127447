package transfers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rentique-erp/rentique-erp/internal/inventory"
	"github.com/rentique-erp/rentique-erp/internal/shared"
)

type memoryRepo struct {
	transfers  map[int64]*Transfer
	nextID     int64
	nextItemID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{transfers: make(map[int64]*Transfer)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) Get(_ context.Context, id int64) (*Transfer, error) {
	t, ok := r.transfers[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *t
	clone.Items = append([]TransferItem(nil), t.Items...)
	return &clone, nil
}

func (r *memoryRepo) List(_ context.Context, req ListTransfersRequest) ([]Transfer, int, error) {
	var out []Transfer
	for _, t := range r.transfers {
		if req.Status != nil && t.Status != *req.Status {
			continue
		}
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Create(_ context.Context, t Transfer) (int64, error) {
	r.nextID++
	t.ID = r.nextID
	t.Items = nil
	r.transfers[t.ID] = &t
	return t.ID, nil
}

func (r *memoryRepo) InsertItem(_ context.Context, item TransferItem) (int64, error) {
	t, ok := r.transfers[item.TransferID]
	if !ok {
		return 0, ErrNotFound
	}
	r.nextItemID++
	item.ID = r.nextItemID
	t.Items = append(t.Items, item)
	return item.ID, nil
}

func (r *memoryRepo) DecideItemCAS(_ context.Context, itemID int64, to ItemStatus) (bool, error) {
	for _, t := range r.transfers {
		for i := range t.Items {
			if t.Items[i].ID != itemID {
				continue
			}
			if t.Items[i].Status != ItemPending {
				return false, nil
			}
			t.Items[i].Status = to
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	t, ok := r.transfers[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	return nil
}

type stubStock struct {
	items map[int64]inventory.Item
	moves []int64
}

func newStubStock() *stubStock {
	s := &stubStock{items: make(map[int64]inventory.Item)}
	for _, id := range []int64{10, 11, 12} {
		s.items[id] = inventory.Item{
			ID:         id,
			Status:     inventory.StatusReadyForRent,
			HolderType: inventory.HolderBranch,
			HolderID:   1,
		}
	}
	return s
}

func (s *stubStock) ListByIDs(_ context.Context, ids []int64) ([]inventory.Item, error) {
	var out []inventory.Item
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *stubStock) MoveHolder(_ context.Context, id int64, holderType inventory.HolderType, holderID int64) error {
	item := s.items[id]
	item.HolderType = holderType
	item.HolderID = holderID
	s.items[id] = item
	s.moves = append(s.moves, id)
	return nil
}

type fixture struct {
	repo  *memoryRepo
	stock *stubStock
	svc   *Service
}

func newFixture() *fixture {
	f := &fixture{repo: newMemoryRepo(), stock: newStubStock()}
	f.svc = NewService(f.repo, f.stock, nil, slog.Default())
	return f
}

func createRequest(clothIDs ...int64) CreateTransferRequest {
	return CreateTransferRequest{
		FromType:     inventory.HolderBranch,
		FromID:       1,
		ToType:       inventory.HolderWorkshop,
		ToID:         4,
		TransferDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		ClothIDs:     clothIDs,
	}
}

func TestCreateOpensPendingTransfer(t *testing.T) {
	f := newFixture()

	tr, err := f.svc.Create(context.Background(), createRequest(10, 11))
	require.NoError(t, err)
	require.Equal(t, StatusPending, tr.Status)
	require.Len(t, tr.Items, 2)
	require.NotEqual(t, tr.RefID.String(), "00000000-0000-0000-0000-000000000000")
	for _, item := range tr.Items {
		require.Equal(t, ItemPending, item.Status)
	}
}

func TestCreateChecksExistenceAndHolder(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), createRequest(10, 99))
	require.ErrorIs(t, err, shared.ErrNotFound)

	misplaced := f.stock.items[11]
	misplaced.HolderType = inventory.HolderFactory
	f.stock.items[11] = misplaced
	_, err = f.svc.Create(context.Background(), createRequest(10, 11))
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.Create(context.Background(), createRequest(10, 10))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestFullApproveMovesEveryItem(t *testing.T) {
	f := newFixture()
	tr, err := f.svc.Create(context.Background(), createRequest(10, 11, 12))
	require.NoError(t, err)

	approved, err := f.svc.Approve(context.Background(), tr.ID, DecisionRequest{})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.ElementsMatch(t, []int64{10, 11, 12}, f.stock.moves)
	for _, id := range []int64{10, 11, 12} {
		require.Equal(t, inventory.HolderWorkshop, f.stock.items[id].HolderType)
		require.Equal(t, int64(4), f.stock.items[id].HolderID)
	}
}

func TestFullRejectMovesNothing(t *testing.T) {
	f := newFixture()
	tr, err := f.svc.Create(context.Background(), createRequest(10, 11))
	require.NoError(t, err)

	rejected, err := f.svc.Reject(context.Background(), tr.ID, DecisionRequest{})
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Empty(t, f.stock.moves)
	require.Equal(t, inventory.HolderBranch, f.stock.items[10].HolderType)
}

func TestPartialDecisionsAggregateDeterministically(t *testing.T) {
	f := newFixture()
	tr, err := f.svc.Create(context.Background(), createRequest(10, 11, 12))
	require.NoError(t, err)

	after, err := f.svc.Approve(context.Background(), tr.ID, DecisionRequest{ClothIDs: []int64{10}})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyPending, after.Status)
	require.Equal(t, []int64{10}, f.stock.moves)

	after, err = f.svc.Reject(context.Background(), tr.ID, DecisionRequest{ClothIDs: []int64{11}})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyPending, after.Status)

	after, err = f.svc.Reject(context.Background(), tr.ID, DecisionRequest{ClothIDs: []int64{12}})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyApproved, after.Status)
	require.Equal(t, []int64{10}, f.stock.moves)
}

func TestDecidedItemsStayDecided(t *testing.T) {
	f := newFixture()
	tr, err := f.svc.Create(context.Background(), createRequest(10, 11))
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), tr.ID, DecisionRequest{ClothIDs: []int64{10}})
	require.NoError(t, err)

	_, err = f.svc.Reject(context.Background(), tr.ID, DecisionRequest{ClothIDs: []int64{10}})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = f.svc.Approve(context.Background(), tr.ID, DecisionRequest{ClothIDs: []int64{10}})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	// The item moved exactly once.
	require.Equal(t, []int64{10}, f.stock.moves)
}

func TestDecisionRejectsForeignItems(t *testing.T) {
	f := newFixture()
	tr, err := f.svc.Create(context.Background(), createRequest(10))
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), tr.ID, DecisionRequest{ClothIDs: []int64{11}})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestFullDecisionOnSettledTransferFails(t *testing.T) {
	f := newFixture()
	tr, err := f.svc.Create(context.Background(), createRequest(10))
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), tr.ID, DecisionRequest{})
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), tr.ID, DecisionRequest{})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}
