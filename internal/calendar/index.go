package calendar

import "sort"

// Index is the per-item calendar of committed ranges. It is a pure in-memory
// structure; the service loads the relevant rows under lock, consults the
// index, and persists the outcome in the same transaction.
type Index struct {
	byItem map[int64][]Reservation
}

// NewIndex builds an index from existing reservations, keeping each item's
// ranges sorted by start date.
func NewIndex(existing []Reservation) *Index {
	idx := &Index{byItem: make(map[int64][]Reservation)}
	for _, res := range existing {
		idx.Insert(res)
	}
	return idx
}

// Insert adds a reservation, preserving start-date order.
func (x *Index) Insert(res Reservation) {
	ranges := x.byItem[res.ItemID]
	pos := sort.Search(len(ranges), func(i int) bool {
		return ranges[i].Range.Start.After(res.Range.Start)
	})
	ranges = append(ranges, Reservation{})
	copy(ranges[pos+1:], ranges[pos:])
	ranges[pos] = res
	x.byItem[res.ItemID] = ranges
}

// Remove drops the reservation owned by the given order for the given item.
func (x *Index) Remove(itemID, orderID int64) {
	ranges := x.byItem[itemID]
	kept := ranges[:0]
	for _, res := range ranges {
		if res.OrderID != orderID {
			kept = append(kept, res)
		}
	}
	x.byItem[itemID] = kept
}

// Conflicts returns reservations overlapping the candidate range. Ranges
// owned by ignoreOrderID are skipped so an order edit does not collide with
// the reservation it is about to replace.
func (x *Index) Conflicts(itemID int64, r Range, ignoreOrderID int64) []Reservation {
	if r.IsZero() {
		return nil
	}
	var hits []Reservation
	for _, res := range x.byItem[itemID] {
		if !r.Start.Before(res.Range.End) {
			continue
		}
		if !res.Range.Start.Before(r.End) {
			// Sorted by start, nothing later can overlap.
			break
		}
		if ignoreOrderID != 0 && res.OrderID == ignoreOrderID {
			continue
		}
		hits = append(hits, res)
	}
	return hits
}

// IsAvailable reports whether the item is free for the whole range.
func (x *Index) IsAvailable(itemID int64, r Range) bool {
	return len(x.Conflicts(itemID, r, 0)) == 0
}

// UnavailableRanges returns the committed ranges per item, sorted by start.
func (x *Index) UnavailableRanges(itemIDs []int64) map[int64][]Range {
	out := make(map[int64][]Range, len(itemIDs))
	for _, id := range itemIDs {
		ranges := make([]Range, 0, len(x.byItem[id]))
		for _, res := range x.byItem[id] {
			ranges = append(ranges, res.Range)
		}
		out[id] = ranges
	}
	return out
}
