package payments

import (
	"fmt"

	"github.com/rentique-erp/rentique-erp/internal/shared"
)

type AllocationRequest struct {
	ClothID int64   `json:"cloth_id" validate:"required"`
	Amount  float64 `json:"amount" validate:"required,gt=0"`
}

type RecordPaymentRequest struct {
	OrderID     int64               `json:"order_id" validate:"required"`
	CashboxID   int64               `json:"cashbox_id" validate:"required"`
	Amount      float64             `json:"amount" validate:"required,gt=0"`
	Type        Type                `json:"type" validate:"required,oneof=initial fee normal"`
	Allocations []AllocationRequest `json:"allocations" validate:"required,min=1,dive"`
}

// Validate enforces the ledger invariant up front: the allocations must
// account for the full amount, no more, no less.
func (r RecordPaymentRequest) Validate() error {
	if r.Amount <= 0 {
		return fmt.Errorf("amount must be positive: %w", shared.ErrValidation)
	}
	var sum float64
	for _, alloc := range r.Allocations {
		if alloc.Amount <= 0 {
			return fmt.Errorf("allocation for cloth %d must be positive: %w", alloc.ClothID, shared.ErrValidation)
		}
		sum += alloc.Amount
	}
	if diff := sum - r.Amount; diff > amountEpsilon || diff < -amountEpsilon {
		return fmt.Errorf("allocations sum to %.2f, payment amount is %.2f: %w", sum, r.Amount, shared.ErrValidation)
	}
	return nil
}

type ListPaymentsRequest struct {
	OrderID   *int64  `json:"-"`
	CashboxID *int64  `json:"-"`
	Status    *Status `json:"-"`
	Page      int     `json:"-"`
	PerPage   int     `json:"-"`
}
