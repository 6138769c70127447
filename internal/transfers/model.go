package transfers

import (
	"time"

	"github.com/google/uuid"

	"github.com/rentique-erp/rentique-erp/internal/inventory"
)

type Status string

const (
	StatusPending           Status = "pending"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusPartiallyPending  Status = "partially_pending"
	StatusPartiallyApproved Status = "partially_approved"
)

type ItemStatus string

const (
	ItemPending  ItemStatus = "pending"
	ItemApproved ItemStatus = "approved"
	ItemRejected ItemStatus = "rejected"
)

// Transfer moves garments between locations. The header status is never set
// directly; it is recomputed from the item statuses after every decision.
type Transfer struct {
	ID           int64                `json:"id" db:"id"`
	RefID        uuid.UUID            `json:"ref_id" db:"ref_id"`
	FromType     inventory.HolderType `json:"from_type" db:"from_type"`
	FromID       int64                `json:"from_id" db:"from_id"`
	ToType       inventory.HolderType `json:"to_type" db:"to_type"`
	ToID         int64                `json:"to_id" db:"to_id"`
	TransferDate time.Time            `json:"transfer_date" db:"transfer_date"`
	Status       Status               `json:"status" db:"status"`
	Items        []TransferItem       `json:"items" db:"-"`
	CreatedAt    time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at" db:"updated_at"`
}

type TransferItem struct {
	ID         int64      `json:"id" db:"id"`
	TransferID int64      `json:"transfer_id" db:"transfer_id"`
	ClothID    int64      `json:"cloth_id" db:"cloth_id"`
	Status     ItemStatus `json:"status" db:"status"`
}
