package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/rentique-erp/rentique-erp/internal/orders"
	"github.com/rentique-erp/rentique-erp/internal/shared"
)

const amountEpsilon = 1e-6

// OrderLedger credits a paid payment against the order's items and exposes
// the per-cloth balances a new payment must fit inside.
type OrderLedger interface {
	ApplyAllocations(ctx context.Context, orderID int64, allocations map[int64]float64) (*orders.Order, error)
	ItemBalances(ctx context.Context, orderID int64) (map[int64]float64, error)
}

// CashboxSink receives the cash side of a paid payment.
type CashboxSink interface {
	RecordIncome(ctx context.Context, cashboxID int64, amount float64, reference string) error
}

// Auditor records ledger actions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Idempotency guards payment recording against client retries.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

type Service struct {
	repo    Repository
	orders  OrderLedger
	cashbox CashboxSink
	audit   Auditor
	idem    Idempotency
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(
	repo Repository,
	orderLedger OrderLedger,
	cashbox CashboxSink,
	audit Auditor,
	idem Idempotency,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:    repo,
		orders:  orderLedger,
		cashbox: cashbox,
		audit:   audit,
		idem:    idem,
		logger:  logger,
		now:     time.Now,
	}
}

// Record opens a pending payment. Nothing moves on the order or the cashbox
// until the payment is marked paid.
func (s *Service) Record(ctx context.Context, req RecordPaymentRequest, idemKey string) (*Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if idemKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idemKey, "payments"); err != nil {
			return nil, err
		}
	}

	// A pending payment that could never settle is worse than a rejected
	// one, so the allocations are held against the order up front and
	// re-checked when the payment is marked paid.
	balances, err := s.orders.ItemBalances(ctx, req.OrderID)
	if err != nil {
		s.releaseIdem(ctx, idemKey)
		return nil, err
	}
	for _, alloc := range req.Allocations {
		remaining, ok := balances[alloc.ClothID]
		if !ok {
			s.releaseIdem(ctx, idemKey)
			return nil, fmt.Errorf("cloth %d not on order %d: %w", alloc.ClothID, req.OrderID, shared.ErrValidation)
		}
		if alloc.Amount > remaining+amountEpsilon {
			s.releaseIdem(ctx, idemKey)
			return nil, fmt.Errorf("allocation %.2f exceeds remaining %.2f on cloth %d: %w",
				alloc.Amount, remaining, alloc.ClothID, shared.ErrInsufficientAllocation)
		}
	}

	payment := Payment{
		OrderID:   req.OrderID,
		CashboxID: req.CashboxID,
		Amount:    req.Amount,
		Status:    StatusPending,
		Type:      req.Type,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Create(ctx, payment)
		if err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		payment.ID = id
		for _, alloc := range req.Allocations {
			a := Allocation{PaymentID: id, ClothID: alloc.ClothID, Amount: alloc.Amount}
			if a.ID, err = repo.InsertAllocation(ctx, a); err != nil {
				return fmt.Errorf("insert allocation: %w", err)
			}
			payment.Allocations = append(payment.Allocations, a)
		}
		return nil
	})
	if err != nil {
		s.releaseIdem(ctx, idemKey)
		return nil, err
	}

	s.recordAudit(ctx, "payment.record", payment.ID, map[string]any{"order_id": req.OrderID, "amount": req.Amount})
	return s.repo.Get(ctx, payment.ID)
}

// MarkPaid settles the payment exactly once. The pending->paid flip is a
// compare-and-set, so a second call loses the race and reports an invalid
// transition instead of crediting the order twice. If the order rejects the
// allocations the flip is undone and the payment stays pending.
func (s *Service) MarkPaid(ctx context.Context, id int64) (*Payment, error) {
	payment, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	moved, err := s.repo.UpdateStatusCAS(ctx, id, StatusPending, StatusPaid, s.now())
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("payment %d is %s, only pending payments settle: %w", id, payment.Status, shared.ErrInvalidTransition)
	}

	if _, err := s.orders.ApplyAllocations(ctx, payment.OrderID, payment.AllocationMap()); err != nil {
		if _, revertErr := s.repo.UpdateStatusCAS(ctx, id, StatusPaid, StatusPending, s.now()); revertErr != nil {
			s.logger.Error("revert payment after allocation failure",
				slog.Int64("payment_id", id), slog.Any("error", revertErr))
		}
		return nil, err
	}

	if s.cashbox != nil {
		ref := "payment:" + strconv.FormatInt(id, 10)
		if err := s.cashbox.RecordIncome(ctx, payment.CashboxID, payment.Amount, ref); err != nil {
			s.logger.Error("record cashbox income",
				slog.Int64("payment_id", id), slog.Int64("cashbox_id", payment.CashboxID), slog.Any("error", err))
		}
	}

	s.recordAudit(ctx, "payment.paid", id, map[string]any{"order_id": payment.OrderID, "amount": payment.Amount})
	return s.repo.Get(ctx, id)
}

// MarkCanceled voids a pending payment. Paid payments never cancel; the
// money already moved.
func (s *Service) MarkCanceled(ctx context.Context, id int64) (*Payment, error) {
	payment, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	moved, err := s.repo.UpdateStatusCAS(ctx, id, StatusPending, StatusCanceled, s.now())
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("payment %d is %s, only pending payments cancel: %w", id, payment.Status, shared.ErrInvalidTransition)
	}

	s.recordAudit(ctx, "payment.cancel", id, nil)
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Payment, error) {
	return s.get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListPaymentsRequest) ([]Payment, shared.Pagination, error) {
	rows, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(req.Page, req.PerPage, total), nil
}

func (s *Service) get(ctx context.Context, id int64) (*Payment, error) {
	payment, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("payment %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return payment, nil
}

func (s *Service) releaseIdem(ctx context.Context, key string) {
	if key == "" || s.idem == nil {
		return
	}
	if err := s.idem.Delete(ctx, key); err != nil {
		s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, paymentID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "payment",
		EntityID: strconv.FormatInt(paymentID, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}
