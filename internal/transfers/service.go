package transfers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rentique-erp/rentique-erp/internal/inventory"
	"github.com/rentique-erp/rentique-erp/internal/shared"
)

// Stock is the inventory surface transfers drive: approving an item hands it
// to the destination holder.
type Stock interface {
	ListByIDs(ctx context.Context, ids []int64) ([]inventory.Item, error)
	MoveHolder(ctx context.Context, id int64, holderType inventory.HolderType, holderID int64) error
}

// Approvals keeps the decision history per transfer.
type Approvals interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

type Service struct {
	repo      Repository
	stock     Stock
	approvals Approvals
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, stock Stock, approvals Approvals, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		stock:     stock,
		approvals: approvals,
		logger:    logger,
		now:       time.Now,
	}
}

// Create opens a pending transfer for the named garments. Every garment must
// exist and currently sit at the source location.
func (s *Service) Create(ctx context.Context, req CreateTransferRequest) (*Transfer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	items, err := s.stock.ListByIDs(ctx, req.ClothIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]inventory.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	for _, clothID := range req.ClothIDs {
		item, ok := byID[clothID]
		if !ok {
			return nil, fmt.Errorf("cloth %d: %w", clothID, shared.ErrNotFound)
		}
		if item.HolderType != req.FromType || item.HolderID != req.FromID {
			return nil, fmt.Errorf("cloth %d is not held by %s %d: %w",
				clothID, req.FromType, req.FromID, shared.ErrValidation)
		}
	}

	transfer := Transfer{
		RefID:        uuid.New(),
		FromType:     req.FromType,
		FromID:       req.FromID,
		ToType:       req.ToType,
		ToID:         req.ToID,
		TransferDate: req.TransferDate,
		Status:       StatusPending,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Create(ctx, transfer)
		if err != nil {
			return fmt.Errorf("create transfer: %w", err)
		}
		transfer.ID = id
		for _, clothID := range req.ClothIDs {
			item := TransferItem{TransferID: id, ClothID: clothID, Status: ItemPending}
			if _, err := repo.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("insert transfer item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordApproval(ctx, transfer.RefID, shared.ApprovalSubmit, "")
	return s.repo.Get(ctx, transfer.ID)
}

// Approve settles the named subset (or every remaining item) as approved and
// moves each approved garment to the destination holder.
func (s *Service) Approve(ctx context.Context, id int64, req DecisionRequest) (*Transfer, error) {
	return s.decide(ctx, id, req, ItemApproved)
}

// Reject settles the named subset (or every remaining item) as rejected.
func (s *Service) Reject(ctx context.Context, id int64, req DecisionRequest) (*Transfer, error) {
	return s.decide(ctx, id, req, ItemRejected)
}

func (s *Service) decide(ctx context.Context, id int64, req DecisionRequest, to ItemStatus) (*Transfer, error) {
	transfer, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	byCloth := make(map[int64]*TransferItem, len(transfer.Items))
	for i := range transfer.Items {
		byCloth[transfer.Items[i].ClothID] = &transfer.Items[i]
	}

	// No subset means the decision covers every still-pending item.
	targets := req.ClothIDs
	if len(targets) == 0 {
		for _, item := range transfer.Items {
			if item.Status == ItemPending {
				targets = append(targets, item.ClothID)
			}
		}
		if len(targets) == 0 {
			return nil, fmt.Errorf("transfer %d has no pending items: %w", id, shared.ErrInvalidTransition)
		}
	}

	var moved []int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		for _, clothID := range targets {
			item, ok := byCloth[clothID]
			if !ok {
				return fmt.Errorf("cloth %d not on transfer %d: %w", clothID, id, shared.ErrValidation)
			}
			ok, err := repo.DecideItemCAS(ctx, item.ID, to)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("cloth %d on transfer %d already decided: %w", clothID, id, shared.ErrInvalidTransition)
			}
			item.Status = to
			if to == ItemApproved {
				moved = append(moved, clothID)
			}
		}
		return repo.UpdateStatus(ctx, id, AggregateStatus(transfer.Items))
	})
	if err != nil {
		return nil, err
	}

	for _, clothID := range moved {
		if err := s.stock.MoveHolder(ctx, clothID, transfer.ToType, transfer.ToID); err != nil {
			s.logger.Error("move transferred item",
				slog.Int64("transfer_id", id), slog.Int64("cloth_id", clothID), slog.Any("error", err))
		}
	}

	action := shared.ApprovalApprove
	if to == ItemRejected {
		action = shared.ApprovalReject
	}
	s.recordApproval(ctx, transfer.RefID, action, req.Note)
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Transfer, error) {
	return s.get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListTransfersRequest) ([]Transfer, shared.Pagination, error) {
	rows, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(req.Page, req.PerPage, total), nil
}

func (s *Service) get(ctx context.Context, id int64) (*Transfer, error) {
	transfer, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("transfer %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return transfer, nil
}

func (s *Service) recordApproval(ctx context.Context, ref uuid.UUID, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	log := shared.ApprovalLog{
		Module:  "transfers",
		RefID:   ref,
		ActorID: shared.ActorFromContext(ctx),
		Action:  action,
		Note:    note,
		At:      s.now(),
	}
	if err := s.approvals.Record(ctx, log); err != nil {
		s.logger.Warn("record approval", slog.String("action", string(action)), slog.Any("error", err))
	}
}
