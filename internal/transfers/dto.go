package transfers

import (
	"fmt"
	"time"

	"github.com/rentique-erp/rentique-erp/internal/inventory"
	"github.com/rentique-erp/rentique-erp/internal/shared"
)

type CreateTransferRequest struct {
	FromType     inventory.HolderType `json:"from_type" validate:"required,oneof=branch factory workshop"`
	FromID       int64                `json:"from_id" validate:"required"`
	ToType       inventory.HolderType `json:"to_type" validate:"required,oneof=branch factory workshop"`
	ToID         int64                `json:"to_id" validate:"required"`
	TransferDate time.Time            `json:"transfer_date" validate:"required"`
	ClothIDs     []int64              `json:"cloth_ids" validate:"required,min=1"`
}

func (r CreateTransferRequest) Validate() error {
	if len(r.ClothIDs) == 0 {
		return fmt.Errorf("transfer needs at least one item: %w", shared.ErrValidation)
	}
	if r.FromType == r.ToType && r.FromID == r.ToID {
		return fmt.Errorf("transfer source and destination are the same: %w", shared.ErrValidation)
	}
	seen := make(map[int64]struct{}, len(r.ClothIDs))
	for _, id := range r.ClothIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("cloth %d listed twice: %w", id, shared.ErrValidation)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// DecisionRequest names the subset to decide; empty means the whole transfer.
type DecisionRequest struct {
	ClothIDs []int64 `json:"cloth_ids"`
	Note     string  `json:"note"`
}

type ListTransfersRequest struct {
	Status  *Status `json:"-"`
	Page    int     `json:"-"`
	PerPage int     `json:"-"`
}
