package orders

import (
	"time"

	"github.com/rentique-erp/rentique-erp/internal/calendar"
)

type Status string

const (
	StatusCreated       Status = "created"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusDelivered     Status = "delivered"
	StatusReturned      Status = "returned"
	StatusCanceled      Status = "canceled"
	// StatusOverdue is derived at read time, never persisted as the order
	// status. List endpoints expose it through the is_overdue flag.
	StatusOverdue Status = "overdue"
)

type DiscountType string

const (
	DiscountNone       DiscountType = "none"
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type ItemType string

const (
	ItemRent      ItemType = "rent"
	ItemBuy       ItemType = "buy"
	ItemTailoring ItemType = "tailoring"
)

type Order struct {
	ID            int64        `json:"id" db:"id"`
	ClientID      int64        `json:"client_id" db:"client_id"`
	EntityType    string       `json:"entity_type" db:"entity_type"`
	EntityID      int64        `json:"entity_id" db:"entity_id"`
	Status        Status       `json:"status" db:"status"`
	DiscountType  DiscountType `json:"discount_type" db:"discount_type"`
	DiscountValue float64      `json:"discount_value" db:"discount_value"`
	TotalPrice    float64      `json:"total_price" db:"total_price"`
	Paid          float64      `json:"paid" db:"paid"`
	Remaining     float64      `json:"remaining" db:"remaining"`
	DeliveredAt   *time.Time   `json:"delivered_at,omitempty" db:"delivered_at"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
	Items         []OrderItem  `json:"items,omitempty" db:"-"`
}

type OrderItem struct {
	ID            int64        `json:"id" db:"id"`
	OrderID       int64        `json:"order_id" db:"order_id"`
	ClothID       int64        `json:"cloth_id" db:"cloth_id"`
	Type          ItemType     `json:"type" db:"type"`
	Price         float64      `json:"price" db:"price"`
	Quantity      int          `json:"quantity" db:"quantity"`
	DaysOfRent    int          `json:"days_of_rent" db:"days_of_rent"`
	OccasionDate  *time.Time   `json:"occasion_date,omitempty" db:"occasion_date"`
	DeliveryDate  *time.Time   `json:"delivery_date,omitempty" db:"delivery_date"`
	DiscountType  DiscountType `json:"discount_type" db:"discount_type"`
	DiscountValue float64      `json:"discount_value" db:"discount_value"`
	Returnable    bool         `json:"returnable" db:"returnable"`
	Paid          float64      `json:"item_paid" db:"item_paid"`
	Remaining     float64      `json:"item_remaining" db:"item_remaining"`
}

// EffectivePrice is price*quantity less the item discount, floored at zero.
// The invariant item_paid + item_remaining == EffectivePrice holds after
// every payment operation.
func (i OrderItem) EffectivePrice() float64 {
	base := i.Price * float64(i.Quantity)
	switch i.DiscountType {
	case DiscountPercentage:
		base -= base * i.DiscountValue / 100
	case DiscountFixed:
		base -= i.DiscountValue
	}
	if base < 0 {
		return 0
	}
	return base
}

// RentalRange is the half-open interval the garment is committed for. Buy
// and tailoring items return a zero range and skip reservation.
func (i OrderItem) RentalRange() calendar.Range {
	if i.Type != ItemRent || i.DeliveryDate == nil || i.DaysOfRent <= 0 {
		return calendar.Range{}
	}
	start := *i.DeliveryDate
	return calendar.Range{Start: start, End: start.AddDate(0, 0, i.DaysOfRent)}
}

// HasRentItems reports whether the order rents at least one garment, which
// makes custody mandatory before delivery.
func (o *Order) HasRentItems() bool {
	for _, item := range o.Items {
		if item.Type == ItemRent {
			return true
		}
	}
	return false
}

// LatestDeliveryDate is the overdue trigger: the latest delivery date among
// the order's rent items.
func (o *Order) LatestDeliveryDate() *time.Time {
	var latest *time.Time
	for i := range o.Items {
		item := o.Items[i]
		if item.Type != ItemRent || item.DeliveryDate == nil {
			continue
		}
		end := item.RentalRange().End
		if latest == nil || end.After(*latest) {
			latest = &end
		}
	}
	return latest
}

// IsOverdue derives the read-time overdue status.
func (o *Order) IsOverdue(now time.Time) bool {
	if o.Status != StatusDelivered {
		return false
	}
	latest := o.LatestDeliveryDate()
	return latest != nil && now.After(*latest)
}

// IsReturned mirrors the list-endpoint flag.
func (o *Order) IsReturned() bool {
	return o.Status == StatusReturned
}

// ItemsTotal sums the items' effective prices before the order discount.
func (o *Order) ItemsTotal() float64 {
	var sum float64
	for _, item := range o.Items {
		sum += item.EffectivePrice()
	}
	return sum
}

// RecomputeTotals recalculates total, paid, and remaining from the items and
// the order-level discount.
func (o *Order) RecomputeTotals() {
	total := o.ItemsTotal()
	switch o.DiscountType {
	case DiscountPercentage:
		total -= total * o.DiscountValue / 100
	case DiscountFixed:
		total -= o.DiscountValue
	}
	if total < 0 {
		total = 0
	}
	var paid float64
	for _, item := range o.Items {
		paid += item.Paid
	}
	o.TotalPrice = total
	o.Paid = paid
	o.Remaining = total - paid
	if o.Remaining < 0 {
		o.Remaining = 0
	}
}
