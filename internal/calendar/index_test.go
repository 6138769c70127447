package calendar

import (
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func TestRangeOverlapsHalfOpen(t *testing.T) {
	a := Range{Start: day(10), End: day(15)}

	cases := []struct {
		name string
		b    Range
		want bool
	}{
		{"inside", Range{Start: day(11), End: day(14)}, true},
		{"straddles start", Range{Start: day(8), End: day(11)}, true},
		{"straddles end", Range{Start: day(14), End: day(18)}, true},
		{"touching end does not conflict", Range{Start: day(15), End: day(18)}, false},
		{"touching start does not conflict", Range{Start: day(5), End: day(10)}, false},
		{"disjoint", Range{Start: day(20), End: day(25)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := a.Overlaps(tc.b); got != tc.want {
				t.Fatalf("Overlaps(%v, %v) = %v, want %v", a, tc.b, got, tc.want)
			}
			if got := tc.b.Overlaps(a); got != tc.want {
				t.Fatalf("overlap must be symmetric")
			}
		})
	}
}

func TestIndexRetryAfterConflictSucceedsOnBoundary(t *testing.T) {
	idx := NewIndex(nil)
	idx.Insert(Reservation{ID: 1, ItemID: 7, OrderID: 100, Range: Range{Start: day(10), End: day(15)}})

	// Order B wants [14,18): overlaps the committed [10,15).
	if idx.IsAvailable(7, Range{Start: day(14), End: day(18)}) {
		t.Fatal("expected [14,18) to conflict with [10,15)")
	}
	// Retry with [15,18): half-open boundary, no overlap.
	if !idx.IsAvailable(7, Range{Start: day(15), End: day(18)}) {
		t.Fatal("expected [15,18) to be free after [10,15)")
	}
}

func TestIndexConflictsIgnoresOwnOrder(t *testing.T) {
	idx := NewIndex([]Reservation{
		{ID: 1, ItemID: 7, OrderID: 100, Range: Range{Start: day(10), End: day(15)}},
		{ID: 2, ItemID: 7, OrderID: 200, Range: Range{Start: day(20), End: day(25)}},
	})

	hits := idx.Conflicts(7, Range{Start: day(12), End: day(22)}, 100)
	if len(hits) != 1 || hits[0].OrderID != 200 {
		t.Fatalf("expected only order 200 to conflict, got %+v", hits)
	}
}

func TestIndexKeepsRangesSorted(t *testing.T) {
	idx := NewIndex(nil)
	idx.Insert(Reservation{ID: 3, ItemID: 1, OrderID: 3, Range: Range{Start: day(20), End: day(22)}})
	idx.Insert(Reservation{ID: 1, ItemID: 1, OrderID: 1, Range: Range{Start: day(5), End: day(8)}})
	idx.Insert(Reservation{ID: 2, ItemID: 1, OrderID: 2, Range: Range{Start: day(10), End: day(12)}})

	ranges := idx.UnavailableRanges([]int64{1})[1]
	if len(ranges) != 3 {
		t.Fatalf("expected 3 ranges, got %d", len(ranges))
	}
	for i := 1; i < len(ranges); i++ {
		if ranges[i].Start.Before(ranges[i-1].Start) {
			t.Fatalf("ranges not sorted by start: %v", ranges)
		}
	}
}

func TestIndexNoOverlapInvariant(t *testing.T) {
	idx := NewIndex(nil)
	accepted := []Range{}
	candidates := []Range{
		{Start: day(1), End: day(5)},
		{Start: day(4), End: day(9)},
		{Start: day(5), End: day(7)},
		{Start: day(6), End: day(8)},
		{Start: day(9), End: day(12)},
	}
	var nextID int64
	for _, c := range candidates {
		if idx.IsAvailable(42, c) {
			nextID++
			idx.Insert(Reservation{ID: nextID, ItemID: 42, OrderID: nextID, Range: c})
			accepted = append(accepted, c)
		}
	}
	for i := range accepted {
		for j := i + 1; j < len(accepted); j++ {
			if accepted[i].Overlaps(accepted[j]) {
				t.Fatalf("committed ranges overlap: %v and %v", accepted[i], accepted[j])
			}
		}
	}
	if len(accepted) != 3 {
		t.Fatalf("expected [1,5) [5,7) [9,12) to be accepted, got %d ranges", len(accepted))
	}
}

func TestZeroRangeNeverConflicts(t *testing.T) {
	idx := NewIndex([]Reservation{{ID: 1, ItemID: 7, OrderID: 1, Range: Range{Start: day(1), End: day(30)}}})
	if !idx.IsAvailable(7, Range{Start: day(10), End: day(10)}) {
		t.Fatal("zero-length range must never conflict")
	}
}
