package inventory

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	items map[int64]Item
}

func newMemoryRepo(items ...Item) *memoryRepo {
	r := &memoryRepo{items: make(map[int64]Item)}
	for _, item := range items {
		r.items[item.ID] = item
	}
	return r
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) Get(_ context.Context, id int64) (*Item, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

func (r *memoryRepo) ListByIDs(_ context.Context, ids []int64) ([]Item, error) {
	var out []Item
	for _, id := range ids {
		if item, ok := r.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Item, int, error) {
	var out []Item
	for _, item := range r.items {
		if filter.Status != nil && item.Status != *filter.Status {
			continue
		}
		out = append(out, item)
	}
	return out, len(out), nil
}

func (r *memoryRepo) UpdateStatus(_ context.Context, id int64, from, to ItemStatus) error {
	item, ok := r.items[id]
	if !ok || item.Status != from {
		return ErrNotFound
	}
	item.Status = to
	r.items[id] = item
	return nil
}

func (r *memoryRepo) SetStatus(_ context.Context, id int64, status ItemStatus) error {
	item, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	item.Status = status
	r.items[id] = item
	return nil
}

func (r *memoryRepo) UpdateHolder(_ context.Context, id int64, holderType HolderType, holderID int64) error {
	item, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	item.HolderType = holderType
	item.HolderID = holderID
	r.items[id] = item
	return nil
}

func TestMarkRentedRequiresReadyStatus(t *testing.T) {
	repo := newMemoryRepo(
		Item{ID: 1, Status: StatusReadyForRent},
		Item{ID: 2, Status: StatusRepairing},
	)
	svc := NewService(repo, slog.Default())
	ctx := context.Background()

	require.NoError(t, svc.MarkRented(ctx, []int64{1}))
	require.Equal(t, StatusRented, repo.items[1].Status)

	err := svc.MarkRented(ctx, []int64{2})
	require.Error(t, err)
	require.Equal(t, StatusRepairing, repo.items[2].Status)
}

func TestMarkReturnedRoundTrip(t *testing.T) {
	repo := newMemoryRepo(Item{ID: 1, Status: StatusRented})
	svc := NewService(repo, slog.Default())

	require.NoError(t, svc.MarkReturned(context.Background(), 1))
	require.Equal(t, StatusReadyForRent, repo.items[1].Status)
}

func TestMoveHolder(t *testing.T) {
	repo := newMemoryRepo(Item{ID: 1, Status: StatusReadyForRent, HolderType: HolderBranch, HolderID: 10})
	svc := NewService(repo, slog.Default())

	require.NoError(t, svc.MoveHolder(context.Background(), 1, HolderWorkshop, 3))
	require.Equal(t, HolderWorkshop, repo.items[1].HolderType)
	require.Equal(t, int64(3), repo.items[1].HolderID)
}
