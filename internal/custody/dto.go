package custody

import (
	"fmt"

	"github.com/rentique-erp/rentique-erp/internal/shared"
)

type OpenCustodyRequest struct {
	Type        Type     `json:"type" validate:"required,oneof=money physical_item document"`
	Amount      float64  `json:"amount"`
	Description string   `json:"description"`
	Photos      []string `json:"photos"`
}

func (r OpenCustodyRequest) Validate() error {
	switch r.Type {
	case TypeMoney:
		if r.Amount <= 0 {
			return fmt.Errorf("money custody needs a positive amount: %w", shared.ErrValidation)
		}
	case TypePhysicalItem, TypeDocument:
		if len(r.Photos) == 0 {
			return fmt.Errorf("%s custody needs opening photo evidence: %w", r.Type, shared.ErrValidation)
		}
	default:
		return fmt.Errorf("unknown custody type %q: %w", r.Type, shared.ErrValidation)
	}
	return nil
}

type ResolveCustodyRequest struct {
	Action       Action   `json:"action" validate:"required,oneof=returned_to_user forfeit"`
	ReasonOfKept *string  `json:"reason_of_kept"`
	AckPhotos    []string `json:"ack_photos" validate:"required,min=1"`
}

// Validate enforces the evidence rules: every resolution carries at least one
// acknowledgement photo, and keeping the deposit needs a stated reason.
func (r ResolveCustodyRequest) Validate() error {
	if len(r.AckPhotos) == 0 {
		return fmt.Errorf("resolution needs at least one acknowledgement photo: %w", shared.ErrValidation)
	}
	if r.Action == ActionForfeit && (r.ReasonOfKept == nil || *r.ReasonOfKept == "") {
		return fmt.Errorf("forfeit needs reason_of_kept: %w", shared.ErrValidation)
	}
	return nil
}
