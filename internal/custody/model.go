package custody

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusReturned Status = "returned"
	StatusLost     Status = "lost"
)

type Type string

const (
	TypeMoney        Type = "money"
	TypePhysicalItem Type = "physical_item"
	TypeDocument     Type = "document"
)

type Action string

const (
	ActionReturnedToUser Action = "returned_to_user"
	ActionForfeit        Action = "forfeit"
)

// transitions is the resolution table: pending is the only live state and
// each action lands on exactly one terminal status.
var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionReturnedToUser: StatusReturned,
		ActionForfeit:        StatusLost,
	},
}

// Resolve returns the terminal status for an action, or false when the
// custody already left pending.
func Resolve(current Status, action Action) (Status, bool) {
	next, ok := transitions[current][action]
	return next, ok
}

// Custody is a deposit held against a rental order until the garments come
// back. Money custodies carry an amount, physical/document ones carry the
// opening photo evidence.
type Custody struct {
	ID           int64      `json:"id" db:"id"`
	OrderID      int64      `json:"order_id" db:"order_id"`
	Type         Type       `json:"type" db:"type"`
	Amount       float64    `json:"amount" db:"amount"`
	Description  string     `json:"description" db:"description"`
	Photos       []string   `json:"photos" db:"photos"`
	Status       Status     `json:"status" db:"status"`
	ReasonOfKept *string    `json:"reason_of_kept,omitempty" db:"reason_of_kept"`
	AckPhotos    []string   `json:"ack_photos" db:"ack_photos"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}
