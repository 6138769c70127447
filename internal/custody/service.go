package custody

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/rentique-erp/rentique-erp/internal/shared"
)

// OrderLookup answers whether an order rents anything; deposits on pure
// sale orders are refused.
type OrderLookup interface {
	IsRental(ctx context.Context, orderID int64) (bool, error)
}

// Auditor records custody resolutions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type Service struct {
	repo   Repository
	orders OrderLookup
	audit  Auditor
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, orderLookup OrderLookup, audit Auditor, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		orders: orderLookup,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// Open takes a deposit against a rental order. The record stays pending
// until exactly one resolve lands.
func (s *Service) Open(ctx context.Context, orderID int64, req OpenCustodyRequest) (*Custody, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rental, err := s.orders.IsRental(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !rental {
		return nil, fmt.Errorf("order %d rents nothing, custody not applicable: %w", orderID, shared.ErrValidation)
	}

	c := Custody{
		OrderID:     orderID,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		Photos:      req.Photos,
		Status:      StatusPending,
	}
	if c.ID, err = s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create custody: %w", err)
	}

	s.recordAudit(ctx, "custody.open", c.ID, map[string]any{"order_id": orderID, "type": string(req.Type)})
	return s.repo.Get(ctx, c.ID)
}

// ResolveCustody closes the deposit exactly once. Concurrent resolves race on
// the pending status; the loser gets an invalid transition.
func (s *Service) ResolveCustody(ctx context.Context, id int64, req ResolveCustodyRequest) (*Custody, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, ok := Resolve(current.Status, req.Action)
	if !ok {
		return nil, fmt.Errorf("custody %d already %s: %w", id, current.Status, shared.ErrInvalidTransition)
	}

	moved, err := s.repo.ResolveCAS(ctx, id, next, req.ReasonOfKept, req.AckPhotos, s.now())
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("custody %d resolved concurrently: %w", id, shared.ErrInvalidTransition)
	}

	s.recordAudit(ctx, "custody.resolve", id, map[string]any{"action": string(req.Action), "status": string(next)})
	return s.repo.Get(ctx, id)
}

// HasOpen reports whether the order holds a pending deposit; the order
// lifecycle gates rental delivery on it.
func (s *Service) HasOpen(ctx context.Context, orderID int64) (bool, error) {
	n, err := s.repo.CountOpenByOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Custody, error) {
	return s.get(ctx, id)
}

func (s *Service) ListByOrder(ctx context.Context, orderID int64) ([]Custody, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

func (s *Service) get(ctx context.Context, id int64) (*Custody, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("custody %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return c, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, custodyID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "custody",
		EntityID: strconv.FormatInt(custodyID, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}
