package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/rentique-erp/rentique-erp/internal/calendar"
	"github.com/rentique-erp/rentique-erp/internal/shared"
)

// ReservationService is the calendar surface the lifecycle drives.
type ReservationService interface {
	CommitForOrder(ctx context.Context, orderID int64, items []calendar.ItemRequest) ([]calendar.Reservation, error)
	ModifyOrder(ctx context.Context, orderID int64, items []calendar.ItemRequest) ([]calendar.Reservation, error)
	ReleaseForReturn(ctx context.Context, orderID, itemID int64, r calendar.Range) error
	ReleaseOrder(ctx context.Context, orderID int64) error
}

// CustodyChecker gates delivery of rental orders.
type CustodyChecker interface {
	HasOpen(ctx context.Context, orderID int64) (bool, error)
}

// ClientDirectory registers walk-in clients; the directory itself lives
// outside this core.
type ClientDirectory interface {
	Register(ctx context.Context, details NewClientDetails) (int64, error)
}

// Wardrobe flips garment statuses as side effects of lifecycle transitions.
type Wardrobe interface {
	MarkRented(ctx context.Context, ids []int64) error
	MarkReturned(ctx context.Context, id int64) error
}

// Auditor records lifecycle transitions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Idempotency guards create/payment style endpoints against retries.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

type Service struct {
	repo         Repository
	reservations ReservationService
	custody      CustodyChecker
	clients      ClientDirectory
	wardrobe     Wardrobe
	audit        Auditor
	idem         Idempotency
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(
	repo Repository,
	reservations ReservationService,
	custody CustodyChecker,
	clients ClientDirectory,
	wardrobe Wardrobe,
	audit Auditor,
	idem Idempotency,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:         repo,
		reservations: reservations,
		custody:      custody,
		clients:      clients,
		wardrobe:     wardrobe,
		audit:        audit,
		idem:         idem,
		logger:       logger,
		now:          time.Now,
	}
}

const amountEpsilon = 1e-6

// Create validates the draft, persists it, and commits every rental range
// all-or-nothing. A conflict on any item rolls the whole order back.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest, idemKey string) (*Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if idemKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idemKey, "orders"); err != nil {
			return nil, err
		}
	}

	clientID, err := s.resolveClient(ctx, req)
	if err != nil {
		return nil, err
	}

	discount := req.DiscountType
	if discount == "" {
		discount = DiscountNone
	}
	order := Order{
		ClientID:      clientID,
		EntityType:    req.EntityType,
		EntityID:      req.EntityID,
		Status:        StatusCreated,
		DiscountType:  discount,
		DiscountValue: req.DiscountValue,
	}
	for _, itemReq := range req.Items {
		order.Items = append(order.Items, itemReq.toItem())
	}
	order.RecomputeTotals()

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Create(ctx, order)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		order.ID = id
		for i := range order.Items {
			order.Items[i].OrderID = id
			itemID, err := repo.InsertItem(ctx, order.Items[i])
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			order.Items[i].ID = itemID
		}
		return nil
	})
	if err != nil {
		s.releaseIdem(ctx, idemKey)
		return nil, err
	}

	if _, err := s.reservations.CommitForOrder(ctx, order.ID, s.rangeRequests(order.Items)); err != nil {
		// All-or-nothing: the persisted draft goes away with the failed commit.
		if delErr := s.repo.Delete(ctx, order.ID); delErr != nil {
			s.logger.Error("rollback order after conflict", slog.Int64("order_id", order.ID), slog.Any("error", delErr))
		}
		s.releaseIdem(ctx, idemKey)
		return nil, err
	}

	s.recordAudit(ctx, "order.create", order.ID, map[string]any{"total": order.TotalPrice})
	return s.repo.Get(ctx, order.ID)
}

// Update swaps the order's item set. Replacement items must not be cheaper
// than the items they replace, and the reservation swap is atomic.
func (s *Service) Update(ctx context.Context, id int64, req UpdateOrderRequest) (*Order, error) {
	existing, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch existing.Status {
	case StatusDelivered, StatusReturned, StatusCanceled:
		return nil, fmt.Errorf("order %d is %s: %w", id, existing.Status, shared.ErrInvalidTransition)
	}

	byID := make(map[int64]OrderItem, len(existing.Items))
	for _, item := range existing.Items {
		byID[item.ID] = item
	}
	for _, itemReq := range req.Items {
		if err := itemReq.Validate(); err != nil {
			return nil, err
		}
		if itemReq.ReplacesItemID == nil {
			continue
		}
		original, ok := byID[*itemReq.ReplacesItemID]
		if !ok {
			return nil, fmt.Errorf("replaced item %d not on order %d: %w", *itemReq.ReplacesItemID, id, shared.ErrValidation)
		}
		replacement := itemReq.toItem()
		if replacement.EffectivePrice() < original.EffectivePrice()-amountEpsilon {
			return nil, fmt.Errorf("replacement for item %d priced below %.2f: %w",
				original.ID, original.EffectivePrice(), shared.ErrValidation)
		}
	}

	updated := *existing
	if req.DiscountType != nil {
		updated.DiscountType = *req.DiscountType
	}
	if req.DiscountValue != nil {
		updated.DiscountValue = *req.DiscountValue
	}
	updated.Items = nil
	for _, itemReq := range req.Items {
		updated.Items = append(updated.Items, itemReq.toItem())
	}
	// Money already taken stays taken; the new total decides the status.
	paid := existing.Paid
	updated.RecomputeTotals()
	updated.Paid = paid
	updated.Remaining = updated.TotalPrice - paid
	if updated.Remaining < 0 {
		updated.Remaining = 0
	}
	updated.Status = StatusForPayment(existing.Status, updated.Paid, updated.TotalPrice)

	if _, err := s.reservations.ModifyOrder(ctx, id, s.rangeRequests(updated.Items)); err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.DeleteItems(ctx, id); err != nil {
			return err
		}
		for i := range updated.Items {
			updated.Items[i].OrderID = id
			if _, err := repo.InsertItem(ctx, updated.Items[i]); err != nil {
				return err
			}
		}
		if err := repo.UpdateDiscount(ctx, id, updated.DiscountType, updated.DiscountValue); err != nil {
			return err
		}
		return repo.UpdateFinancials(ctx, id, updated.TotalPrice, updated.Paid, updated.Remaining, updated.Status)
	})
	if err != nil {
		// The swap already committed; put the previous item set back so
		// availability and the persisted order keep agreeing.
		if _, rbErr := s.reservations.ModifyOrder(ctx, id, s.rangeRequests(existing.Items)); rbErr != nil {
			s.logger.Error("restore reservations after failed update", slog.Int64("order_id", id), slog.Any("error", rbErr))
		}
		return nil, fmt.Errorf("update order: %w", err)
	}

	s.recordAudit(ctx, "order.update", id, map[string]any{"total": updated.TotalPrice})
	return s.repo.Get(ctx, id)
}

// ApplyAllocations credits payment money against individual items and
// recomputes the order's paid/remaining and payment status. Called by the
// payment ledger when a payment lands in paid.
func (s *Service) ApplyAllocations(ctx context.Context, orderID int64, allocations map[int64]float64) (*Order, error) {
	order, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	byCloth := make(map[int64]*OrderItem, len(order.Items))
	for i := range order.Items {
		byCloth[order.Items[i].ClothID] = &order.Items[i]
	}
	for clothID, amount := range allocations {
		item, ok := byCloth[clothID]
		if !ok {
			return nil, fmt.Errorf("cloth %d not on order %d: %w", clothID, orderID, shared.ErrValidation)
		}
		if amount <= 0 {
			return nil, fmt.Errorf("allocation for cloth %d must be positive: %w", clothID, shared.ErrValidation)
		}
		if amount > item.Remaining+amountEpsilon {
			return nil, fmt.Errorf("allocation %.2f exceeds remaining %.2f on cloth %d: %w",
				amount, item.Remaining, clothID, shared.ErrInsufficientAllocation)
		}
		item.Paid += amount
		item.Remaining = item.EffectivePrice() - item.Paid
		if item.Remaining < 0 {
			item.Remaining = 0
		}
	}

	order.RecomputeTotals()
	order.Status = StatusForPayment(order.Status, order.Paid, order.TotalPrice)

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		for _, item := range order.Items {
			if err := repo.UpdateItemPayment(ctx, item.ID, item.Paid, item.Remaining); err != nil {
				return err
			}
		}
		return repo.UpdateFinancials(ctx, orderID, order.TotalPrice, order.Paid, order.Remaining, order.Status)
	})
	if err != nil {
		return nil, fmt.Errorf("apply allocations: %w", err)
	}
	return order, nil
}

// Deliver hands the garments over. Rental orders must be fully paid and must
// hold an open custody record; the missing-custody failure is a first-class
// outcome the client reacts to.
func (s *Service) Deliver(ctx context.Context, id int64) (*Order, error) {
	order, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != StatusPaid {
		return nil, fmt.Errorf("deliver requires status paid, order %d is %s: %w", id, order.Status, shared.ErrInvalidTransition)
	}
	if order.HasRentItems() {
		open, err := s.custody.HasOpen(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("check custody: %w", err)
		}
		if !open {
			return nil, fmt.Errorf("order %d: %w", id, shared.ErrCustodyRequired)
		}
	}

	moved, err := s.repo.SetDelivered(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("order %d left paid concurrently: %w", id, shared.ErrInvalidTransition)
	}

	var rentClothIDs []int64
	for _, item := range order.Items {
		if item.Type == ItemRent {
			rentClothIDs = append(rentClothIDs, item.ClothID)
		}
	}
	if len(rentClothIDs) > 0 {
		if err := s.wardrobe.MarkRented(ctx, rentClothIDs); err != nil {
			s.logger.Error("mark items rented", slog.Int64("order_id", id), slog.Any("error", err))
		}
	}

	s.recordAudit(ctx, "order.deliver", id, nil)
	return s.repo.Get(ctx, id)
}

// ReturnItem takes one garment back, releases its range, and closes the
// order when nothing returnable is left.
func (s *Service) ReturnItem(ctx context.Context, orderID, itemID int64) (*Order, error) {
	order, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var target *OrderItem
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			target = &order.Items[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("item %d not on order %d: %w", itemID, orderID, shared.ErrNotFound)
	}
	if !target.Returnable {
		return nil, fmt.Errorf("item %d is not returnable: %w", itemID, shared.ErrInvalidTransition)
	}

	if err := s.repo.SetItemReturnable(ctx, itemID, false); err != nil {
		return nil, err
	}
	target.Returnable = false
	if err := s.reservations.ReleaseForReturn(ctx, orderID, target.ClothID, target.RentalRange()); err != nil {
		return nil, err
	}
	if err := s.wardrobe.MarkReturned(ctx, target.ClothID); err != nil {
		s.logger.Error("mark item returned", slog.Int64("cloth_id", target.ClothID), slog.Any("error", err))
	}

	allDone := true
	for _, item := range order.Items {
		if item.Returnable {
			allDone = false
			break
		}
	}
	if allDone && order.Status == StatusDelivered {
		if _, err := s.repo.UpdateStatusCAS(ctx, orderID, StatusDelivered, StatusReturned); err != nil {
			return nil, err
		}
	}

	s.recordAudit(ctx, "order.return_item", orderID, map[string]any{"item_id": itemID})
	return s.repo.Get(ctx, orderID)
}

// Finish closes a delivered order, returning any garments still out.
func (s *Service) Finish(ctx context.Context, id int64) (*Order, error) {
	order, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != StatusDelivered {
		return nil, fmt.Errorf("finish requires status delivered, order %d is %s: %w", id, order.Status, shared.ErrInvalidTransition)
	}

	for _, item := range order.Items {
		if !item.Returnable {
			continue
		}
		if err := s.repo.SetItemReturnable(ctx, item.ID, false); err != nil {
			return nil, err
		}
		if err := s.reservations.ReleaseForReturn(ctx, id, item.ClothID, item.RentalRange()); err != nil {
			return nil, err
		}
		if err := s.wardrobe.MarkReturned(ctx, item.ClothID); err != nil {
			s.logger.Error("mark item returned", slog.Int64("cloth_id", item.ClothID), slog.Any("error", err))
		}
	}

	moved, err := s.repo.UpdateStatusCAS(ctx, id, StatusDelivered, StatusReturned)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("order %d left delivered concurrently: %w", id, shared.ErrInvalidTransition)
	}

	s.recordAudit(ctx, "order.finish", id, nil)
	return s.repo.Get(ctx, id)
}

// Cancel voids the order from any non-canceled state and releases every
// reservation it holds in the same flow, so availability checks never see
// the canceled ranges.
func (s *Service) Cancel(ctx context.Context, id int64) (*Order, error) {
	order, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == StatusCanceled {
		return nil, fmt.Errorf("order %d already canceled: %w", id, shared.ErrInvalidTransition)
	}

	moved, err := s.repo.UpdateStatusCAS(ctx, id, order.Status, StatusCanceled)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("order %d changed concurrently: %w", id, shared.ErrInvalidTransition)
	}
	if err := s.reservations.ReleaseOrder(ctx, id); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "order.cancel", id, nil)
	return s.repo.Get(ctx, id)
}

// ItemBalances reports the remaining balance per cloth, so the payment
// ledger can refuse allocations at record time instead of at settlement.
func (s *Service) ItemBalances(ctx context.Context, orderID int64) (map[int64]float64, error) {
	order, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]float64, len(order.Items))
	for _, item := range order.Items {
		out[item.ClothID] = item.Remaining
	}
	return out, nil
}

// IsRental lets the custody ledger refuse deposits on pure sale orders.
func (s *Service) IsRental(ctx context.Context, orderID int64) (bool, error) {
	order, err := s.get(ctx, orderID)
	if err != nil {
		return false, err
	}
	return order.HasRentItems(), nil
}

func (s *Service) Get(ctx context.Context, id int64) (*OrderView, error) {
	order, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := NewOrderView(*order, s.now())
	return &view, nil
}

func (s *Service) List(ctx context.Context, req ListOrdersRequest) ([]OrderView, shared.Pagination, error) {
	rows, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	now := s.now()
	views := make([]OrderView, 0, len(rows))
	for _, order := range rows {
		views = append(views, NewOrderView(order, now))
	}
	return views, shared.NewPagination(req.Page, req.PerPage, total), nil
}

// MarkOverdueSnapshots stamps the is_overdue flag on delivered orders whose
// latest delivery date has passed. Run from the background scan; reads stay
// derived, the flag only feeds list filters.
func (s *Service) MarkOverdueSnapshots(ctx context.Context, now time.Time) (int, error) {
	delivered, err := s.repo.ListDelivered(ctx)
	if err != nil {
		return 0, err
	}
	var stamped int
	for _, order := range delivered {
		if !order.IsOverdue(now) {
			continue
		}
		if err := s.repo.SetOverdueFlag(ctx, order.ID, true); err != nil {
			return stamped, err
		}
		stamped++
	}
	return stamped, nil
}

func (s *Service) get(ctx context.Context, id int64) (*Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("order %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return order, nil
}

func (s *Service) resolveClient(ctx context.Context, req CreateOrderRequest) (int64, error) {
	if req.ExistingClient != nil {
		return req.ExistingClient.ClientID, nil
	}
	clientID, err := s.clients.Register(ctx, *req.NewClient)
	if err != nil {
		return 0, fmt.Errorf("register client: %w", err)
	}
	return clientID, nil
}

func (s *Service) rangeRequests(items []OrderItem) []calendar.ItemRequest {
	out := make([]calendar.ItemRequest, 0, len(items))
	for _, item := range items {
		out = append(out, calendar.ItemRequest{ItemID: item.ClothID, Range: item.RentalRange()})
	}
	return out
}

func (s *Service) releaseIdem(ctx context.Context, key string) {
	if key == "" || s.idem == nil {
		return
	}
	if err := s.idem.Delete(ctx, key); err != nil {
		s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "order",
		EntityID: strconv.FormatInt(orderID, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}
