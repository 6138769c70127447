package transfers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func itemsWith(statuses ...ItemStatus) []TransferItem {
	out := make([]TransferItem, len(statuses))
	for i, s := range statuses {
		out[i] = TransferItem{ID: int64(i + 1), ClothID: int64(100 + i), Status: s}
	}
	return out
}

func TestAggregateStatus(t *testing.T) {
	cases := []struct {
		name  string
		items []TransferItem
		want  Status
	}{
		{"no items", nil, StatusPending},
		{"all pending", itemsWith(ItemPending, ItemPending), StatusPending},
		{"all approved", itemsWith(ItemApproved, ItemApproved), StatusApproved},
		{"all rejected", itemsWith(ItemRejected, ItemRejected), StatusRejected},
		{"approved and pending", itemsWith(ItemApproved, ItemPending), StatusPartiallyPending},
		{"rejected and pending", itemsWith(ItemRejected, ItemPending), StatusPartiallyPending},
		{"all three", itemsWith(ItemApproved, ItemRejected, ItemPending), StatusPartiallyPending},
		{"approved and rejected", itemsWith(ItemApproved, ItemRejected), StatusPartiallyApproved},
		{"single pending", itemsWith(ItemPending), StatusPending},
		{"single approved", itemsWith(ItemApproved), StatusApproved},
		{"single rejected", itemsWith(ItemRejected), StatusRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, AggregateStatus(tc.items))
		})
	}
}

// Every reachable combination of item counts maps to exactly one status; the
// aggregation is total over the space of (pending, approved, rejected).
func TestAggregateStatusIsTotal(t *testing.T) {
	for pending := 0; pending <= 3; pending++ {
		for approved := 0; approved <= 3; approved++ {
			for rejected := 0; rejected <= 3; rejected++ {
				var items []TransferItem
				for i := 0; i < pending; i++ {
					items = append(items, TransferItem{Status: ItemPending})
				}
				for i := 0; i < approved; i++ {
					items = append(items, TransferItem{Status: ItemApproved})
				}
				for i := 0; i < rejected; i++ {
					items = append(items, TransferItem{Status: ItemRejected})
				}

				got := AggregateStatus(items)
				total := len(items)
				switch {
				case total == 0 || pending == total:
					require.Equal(t, StatusPending, got)
				case approved == total:
					require.Equal(t, StatusApproved, got)
				case rejected == total:
					require.Equal(t, StatusRejected, got)
				case pending > 0:
					require.Equal(t, StatusPartiallyPending, got)
				default:
					require.Equal(t, StatusPartiallyApproved, got)
				}
			}
		}
	}
}
