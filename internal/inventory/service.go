package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rentique-erp/rentique-erp/internal/shared"
)

// Service exposes guarded item mutations for the order and transfer flows.
// Nothing outside those flows may flip an item's status or holder.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Get(ctx context.Context, id int64) (*Item, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return nil, fmt.Errorf("item %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return item, nil
}

func (s *Service) ListByIDs(ctx context.Context, ids []int64) ([]Item, error) {
	return s.repo.ListByIDs(ctx, ids)
}

func (s *Service) List(ctx context.Context, filter ListFilter, p shared.Pagination) ([]Item, shared.Pagination, error) {
	filter.Limit = p.PerPage
	filter.Offset = p.Offset()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, p, err
	}
	return items, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// MarkRented flips ready items to rented when a rental order is delivered.
func (s *Service) MarkRented(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if err := s.repo.UpdateStatus(ctx, id, StatusReadyForRent, StatusRented); err != nil {
			return fmt.Errorf("mark item %d rented: %w", id, err)
		}
	}
	return nil
}

// MarkReturned puts a rented item back on the rack.
func (s *Service) MarkReturned(ctx context.Context, id int64) error {
	if err := s.repo.UpdateStatus(ctx, id, StatusRented, StatusReadyForRent); err != nil {
		return fmt.Errorf("mark item %d returned: %w", id, err)
	}
	return nil
}

// MoveHolder reassigns the item to a new location when a transfer item is
// approved.
func (s *Service) MoveHolder(ctx context.Context, id int64, holderType HolderType, holderID int64) error {
	if err := s.repo.UpdateHolder(ctx, id, holderType, holderID); err != nil {
		return fmt.Errorf("move item %d to %s %d: %w", id, holderType, holderID, err)
	}
	return nil
}
