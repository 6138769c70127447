package inventory

import "time"

// ItemStatus tracks the physical condition and placement of a garment.
type ItemStatus string

const (
	StatusReadyForRent ItemStatus = "ready_for_rent"
	StatusRented       ItemStatus = "rented"
	StatusRepairing    ItemStatus = "repairing"
	StatusDamaged      ItemStatus = "damaged"
	StatusBurned       ItemStatus = "burned"
	StatusScratched    ItemStatus = "scratched"
	StatusDead         ItemStatus = "dead"
)

// HolderType identifies which kind of location currently holds an item.
type HolderType string

const (
	HolderBranch   HolderType = "branch"
	HolderFactory  HolderType = "factory"
	HolderWorkshop HolderType = "workshop"
)

// Item is a single physical garment. Status and holder mutate only as side
// effects of order and transfer transitions, never directly.
type Item struct {
	ID         int64      `json:"id" db:"id"`
	Code       string     `json:"code" db:"code"`
	Name       string     `json:"name" db:"name"`
	Type       string     `json:"type" db:"type"`
	Status     ItemStatus `json:"status" db:"status"`
	HolderType HolderType `json:"entity_type" db:"holder_type"`
	HolderID   int64      `json:"entity_id" db:"holder_id"`
	RentPrice  float64    `json:"rent_price" db:"rent_price"`
	SalePrice  float64    `json:"sale_price" db:"sale_price"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// Rentable reports whether the item may be put on a rental order.
func (i Item) Rentable() bool {
	return i.Status == StatusReadyForRent
}
