package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a reservation overlap on an inventory item.
	ErrConflict = errors.New("reservation conflict")
	// ErrInvalidTransition indicates a state change not permitted from the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrCustodyRequired blocks delivery of a rental order until an open custody record exists.
	ErrCustodyRequired = errors.New("custody required before delivery")
	// ErrInsufficientAllocation indicates a payment allocation exceeding an item's remaining balance.
	ErrInsufficientAllocation = errors.New("allocation exceeds remaining balance")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
)
