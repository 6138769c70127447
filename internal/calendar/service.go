package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/rentique-erp/rentique-erp/internal/observability"
	"github.com/rentique-erp/rentique-erp/internal/shared"
)

// ItemRequest asks for one item over one range. Zero ranges (buy, tailoring)
// are accepted and skipped; they cannot conflict.
type ItemRequest struct {
	ItemID int64
	Range  Range
}

// Service owns reservation commits and releases. Every commit is a single
// atomic check-and-insert per order batch: the per-item redis locks serialise
// writers, the transaction re-checks overlap against committed rows.
type Service struct {
	repo    Repository
	locks   *shared.Mutex
	cache   *AvailabilityCache
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewService(repo Repository, locks *shared.Mutex, cache *AvailabilityCache, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{repo: repo, locks: locks, cache: cache, metrics: metrics, logger: logger}
}

// CommitForOrder reserves every requested range or nothing at all. A single
// conflicting item fails the whole batch with ErrConflict.
func (s *Service) CommitForOrder(ctx context.Context, orderID int64, items []ItemRequest) ([]Reservation, error) {
	dated := datedOnly(items)
	if len(dated) == 0 {
		return nil, nil
	}

	release, err := s.lockItems(ctx, itemIDs(dated))
	if err != nil {
		return nil, err
	}
	defer release()

	var committed []Reservation
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		idx, err := s.loadIndex(ctx, repo, itemIDs(dated))
		if err != nil {
			return err
		}
		for _, req := range dated {
			if hits := idx.Conflicts(req.ItemID, req.Range, 0); len(hits) > 0 {
				s.metrics.ReservationConflict()
				return fmt.Errorf("item %d already reserved for %s..%s: %w",
					req.ItemID, hits[0].Range.Start.Format("2006-01-02"), hits[0].Range.End.Format("2006-01-02"), shared.ErrConflict)
			}
			res := Reservation{ItemID: req.ItemID, OrderID: orderID, Range: req.Range}
			id, err := repo.Insert(ctx, res)
			if err != nil {
				return fmt.Errorf("insert reservation: %w", err)
			}
			res.ID = id
			idx.Insert(res)
			committed = append(committed, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, itemIDs(dated)...)
	return committed, nil
}

// ModifyOrder swaps the order's reservations for a new item set in one
// transaction. The old ranges are released and the new ones committed
// atomically, so the items are never double-free or double-booked in between.
func (s *Service) ModifyOrder(ctx context.Context, orderID int64, items []ItemRequest) ([]Reservation, error) {
	dated := datedOnly(items)

	existing, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	touched := itemIDs(dated)
	for _, res := range existing {
		touched = append(touched, res.ItemID)
	}
	touched = dedupe(touched)
	if len(touched) == 0 {
		return nil, nil
	}

	release, err := s.lockItems(ctx, touched)
	if err != nil {
		return nil, err
	}
	defer release()

	var committed []Reservation
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.DeleteByOrder(ctx, orderID); err != nil {
			return fmt.Errorf("release previous reservations: %w", err)
		}
		idx, err := s.loadIndex(ctx, repo, touched)
		if err != nil {
			return err
		}
		for _, req := range dated {
			if hits := idx.Conflicts(req.ItemID, req.Range, 0); len(hits) > 0 {
				s.metrics.ReservationConflict()
				return fmt.Errorf("item %d already reserved: %w", req.ItemID, shared.ErrConflict)
			}
			res := Reservation{ItemID: req.ItemID, OrderID: orderID, Range: req.Range}
			id, err := repo.Insert(ctx, res)
			if err != nil {
				return fmt.Errorf("insert reservation: %w", err)
			}
			res.ID = id
			idx.Insert(res)
			committed = append(committed, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, touched...)
	return committed, nil
}

// ReleaseForReturn frees exactly the returned range. The order may hold the
// same item for other, still-active ranges; those stay committed.
func (s *Service) ReleaseForReturn(ctx context.Context, orderID, itemID int64, r Range) error {
	if r.IsZero() {
		return nil
	}
	if _, err := s.repo.DeleteByOrderItemRange(ctx, orderID, itemID, r); err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	s.cache.Invalidate(ctx, itemID)
	return nil
}

// ReleaseOrder frees every range held by the order. Cancellation releases
// synchronously, so conflict checks never see a canceled order's ranges.
func (s *Service) ReleaseOrder(ctx context.Context, orderID int64) error {
	existing, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if _, err := s.repo.DeleteByOrder(ctx, orderID); err != nil {
		return fmt.Errorf("release order reservations: %w", err)
	}
	ids := make([]int64, 0, len(existing))
	for _, res := range existing {
		ids = append(ids, res.ItemID)
	}
	s.cache.Invalidate(ctx, ids...)
	return nil
}

// IsAvailable answers an availability query against committed state.
func (s *Service) IsAvailable(ctx context.Context, itemID int64, r Range) (bool, error) {
	if r.IsZero() {
		return true, nil
	}
	existing, err := s.repo.ListActiveByItems(ctx, []int64{itemID})
	if err != nil {
		return false, err
	}
	return NewIndex(existing).IsAvailable(itemID, r), nil
}

// UnavailableRanges returns committed ranges per item, served from cache
// where possible.
func (s *Service) UnavailableRanges(ctx context.Context, ids []int64) (map[int64][]Range, error) {
	out := make(map[int64][]Range, len(ids))
	var misses []int64
	for _, id := range ids {
		if ranges, ok := s.cache.Get(ctx, id); ok {
			out[id] = ranges
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}

	existing, err := s.repo.ListActiveByItems(ctx, misses)
	if err != nil {
		return nil, err
	}
	fresh := NewIndex(existing).UnavailableRanges(misses)
	for id, ranges := range fresh {
		out[id] = ranges
		s.cache.Set(ctx, id, ranges)
	}
	return out, nil
}

func (s *Service) lockItems(ctx context.Context, ids []int64) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = shared.ItemLockKey(id)
	}
	return s.locks.AcquireAll(ctx, keys)
}

func (s *Service) loadIndex(ctx context.Context, repo Repository, ids []int64) (*Index, error) {
	existing, err := repo.ListActiveByItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}
	return NewIndex(existing), nil
}

func datedOnly(items []ItemRequest) []ItemRequest {
	out := make([]ItemRequest, 0, len(items))
	for _, req := range items {
		if !req.Range.IsZero() {
			out = append(out, req)
		}
	}
	return out
}

func itemIDs(items []ItemRequest) []int64 {
	ids := make([]int64, 0, len(items))
	for _, req := range items {
		ids = append(ids, req.ItemID)
	}
	return dedupe(ids)
}

func dedupe(ids []int64) []int64 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:0]
	var last int64 = -1
	for _, id := range ids {
		if id != last {
			out = append(out, id)
			last = id
		}
	}
	return out
}
