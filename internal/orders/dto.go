package orders

import (
	"fmt"
	"time"

	"github.com/rentique-erp/rentique-erp/internal/shared"
)

// ExistingClientRef selects an already registered client.
type ExistingClientRef struct {
	ClientID int64 `json:"client_id" validate:"required,gt=0"`
}

// NewClientDetails registers a walk-in client as part of order creation. The
// client record itself is stored by an external directory.
type NewClientDetails struct {
	Name  string `json:"name" validate:"required,max=120"`
	Phone string `json:"phone" validate:"required,max=30"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// CreateOrderRequest is a tagged union over the client variants: exactly one
// of ExistingClient or NewClient must be set.
type CreateOrderRequest struct {
	ExistingClient *ExistingClientRef `json:"existing_client,omitempty"`
	NewClient      *NewClientDetails  `json:"new_client,omitempty"`
	EntityType     string             `json:"entity_type" validate:"required,oneof=branch factory workshop"`
	EntityID       int64              `json:"entity_id" validate:"required,gt=0"`
	DiscountType   DiscountType       `json:"discount_type" validate:"omitempty,oneof=none percentage fixed"`
	DiscountValue  float64            `json:"discount_value" validate:"gte=0"`
	Items          []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// Validate enforces the variant invariant on top of the field tags.
func (r CreateOrderRequest) Validate() error {
	if (r.ExistingClient == nil) == (r.NewClient == nil) {
		return fmt.Errorf("exactly one of existing_client or new_client must be set: %w", shared.ErrValidation)
	}
	for _, item := range r.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type OrderItemRequest struct {
	ClothID       int64        `json:"cloth_id" validate:"required,gt=0"`
	Type          ItemType     `json:"type" validate:"required,oneof=rent buy tailoring"`
	Price         float64      `json:"price" validate:"gte=0"`
	Quantity      int          `json:"quantity" validate:"required,gt=0"`
	DaysOfRent    int          `json:"days_of_rent" validate:"gte=0"`
	OccasionDate  *time.Time   `json:"occasion_date,omitempty"`
	DeliveryDate  *time.Time   `json:"delivery_date,omitempty"`
	DiscountType  DiscountType `json:"discount_type" validate:"omitempty,oneof=none percentage fixed"`
	DiscountValue float64      `json:"discount_value" validate:"gte=0"`
	// ReplacesItemID names the original order item this one replaces during
	// an edit. The replacement price floor is enforced against it.
	ReplacesItemID *int64 `json:"replaces_item_id,omitempty"`
}

// Validate checks the cross-field rules the tags cannot express.
func (r OrderItemRequest) Validate() error {
	if r.Type == ItemRent {
		if r.DeliveryDate == nil {
			return fmt.Errorf("rent item %d requires delivery_date: %w", r.ClothID, shared.ErrValidation)
		}
		if r.DaysOfRent <= 0 {
			return fmt.Errorf("rent item %d requires days_of_rent > 0: %w", r.ClothID, shared.ErrValidation)
		}
	}
	if r.Price < 0 || r.DiscountValue < 0 {
		return fmt.Errorf("negative amount on item %d: %w", r.ClothID, shared.ErrValidation)
	}
	return nil
}

func (r OrderItemRequest) toItem() OrderItem {
	discount := r.DiscountType
	if discount == "" {
		discount = DiscountNone
	}
	item := OrderItem{
		ClothID:       r.ClothID,
		Type:          r.Type,
		Price:         r.Price,
		Quantity:      r.Quantity,
		DaysOfRent:    r.DaysOfRent,
		OccasionDate:  r.OccasionDate,
		DeliveryDate:  r.DeliveryDate,
		DiscountType:  discount,
		DiscountValue: r.DiscountValue,
		Returnable:    r.Type == ItemRent,
	}
	item.Remaining = item.EffectivePrice()
	return item
}

// UpdateOrderRequest replaces the order's item set. Items carrying
// ReplacesItemID are price-checked against the item they replace.
type UpdateOrderRequest struct {
	DiscountType  *DiscountType      `json:"discount_type,omitempty" validate:"omitempty,oneof=none percentage fixed"`
	DiscountValue *float64           `json:"discount_value,omitempty" validate:"omitempty,gte=0"`
	Items         []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type ListOrdersRequest struct {
	ClientID   *int64
	Status     *Status
	EntityType *string
	EntityID   *int64
	Page       int
	PerPage    int
}

// OrderView decorates an order with the derived read-time flags the list
// endpoints expose.
type OrderView struct {
	Order
	IsOverdue  bool `json:"is_overdue"`
	IsReturned bool `json:"is_returned"`
}

// NewOrderView derives the flags at read time.
func NewOrderView(o Order, now time.Time) OrderView {
	return OrderView{Order: o, IsOverdue: o.IsOverdue(now), IsReturned: o.IsReturned()}
}
