package payments

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusCanceled Status = "canceled"
)

type Type string

const (
	TypeInitial Type = "initial"
	TypeFee     Type = "fee"
	TypeNormal  Type = "normal"
)

// Payment is one ledger entry against an order. Its allocations pin the
// amount to individual order items; their sum always equals Amount.
type Payment struct {
	ID          int64        `json:"id" db:"id"`
	OrderID     int64        `json:"order_id" db:"order_id"`
	CashboxID   int64        `json:"cashbox_id" db:"cashbox_id"`
	Amount      float64      `json:"amount" db:"amount"`
	Status      Status       `json:"status" db:"status"`
	Type        Type         `json:"type" db:"type"`
	Allocations []Allocation `json:"allocations" db:"-"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	PaidAt      *time.Time   `json:"paid_at,omitempty" db:"paid_at"`
	CanceledAt  *time.Time   `json:"canceled_at,omitempty" db:"canceled_at"`
}

// Allocation assigns part of a payment to one garment on the order.
type Allocation struct {
	ID        int64   `json:"id" db:"id"`
	PaymentID int64   `json:"payment_id" db:"payment_id"`
	ClothID   int64   `json:"cloth_id" db:"cloth_id"`
	Amount    float64 `json:"amount" db:"amount"`
}

// AllocationMap flattens the allocations for the order ledger.
func (p Payment) AllocationMap() map[int64]float64 {
	out := make(map[int64]float64, len(p.Allocations))
	for _, alloc := range p.Allocations {
		out[alloc.ClothID] += alloc.Amount
	}
	return out
}

// AllocatedTotal sums the allocations.
func (p Payment) AllocatedTotal() float64 {
	var sum float64
	for _, alloc := range p.Allocations {
		sum += alloc.Amount
	}
	return sum
}
