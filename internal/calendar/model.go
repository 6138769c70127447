package calendar

import "time"

// Range is a half-open date interval [Start, End). Touching ranges do not
// overlap, so a garment returned on day 15 can go out again the same day.
type Range struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// Overlaps reports whether two half-open ranges intersect.
func (r Range) Overlaps(other Range) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// IsZero reports whether the range covers no days. Buy and tailoring items
// carry zero ranges and never enter the index.
func (r Range) IsZero() bool {
	return !r.Start.Before(r.End)
}

// Reservation commits one inventory item to one order for a date range.
type Reservation struct {
	ID        int64     `json:"id" db:"id"`
	ItemID    int64     `json:"cloth_id" db:"item_id"`
	OrderID   int64     `json:"order_id" db:"order_id"`
	Range     Range     `json:"range" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
