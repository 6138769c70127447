package orders

// The lifecycle is a transition table rather than scattered conditionals so
// the permitted moves stay auditable in one place.
//
//	created -> {partially_paid, paid, canceled}
//	partially_paid -> {paid, canceled}
//	paid -> {partially_paid, delivered, canceled}
//	delivered -> {returned, canceled}
//	returned, canceled -> (terminal)
//
// paid -> partially_paid covers an edit that raises the total of an already
// paid order.
var transitions = map[Status]map[Status]bool{
	StatusCreated: {
		StatusPartiallyPaid: true,
		StatusPaid:          true,
		StatusCanceled:      true,
	},
	StatusPartiallyPaid: {
		StatusPaid:     true,
		StatusCanceled: true,
	},
	StatusPaid: {
		StatusPartiallyPaid: true,
		StatusDelivered:     true,
		StatusCanceled:      true,
	},
	StatusDelivered: {
		StatusReturned: true,
		StatusCanceled: true,
	},
	StatusReturned: {},
	StatusCanceled: {},
}

// CanTransition reports whether the move is permitted.
func CanTransition(from, to Status) bool {
	allowed, ok := transitions[from]
	return ok && allowed[to]
}

// StatusForPayment derives the pre-delivery payment status from the paid and
// total amounts. Delivered and terminal states are never overridden by
// payment arithmetic.
func StatusForPayment(current Status, paid, total float64) Status {
	switch current {
	case StatusDelivered, StatusReturned, StatusCanceled:
		return current
	}
	switch {
	case paid <= 0:
		return StatusCreated
	case paid < total:
		return StatusPartiallyPaid
	default:
		return StatusPaid
	}
}
