package transfers

// AggregateStatus derives the header status from the item statuses. The rule
// is deterministic and total:
//
//	all pending                      -> pending
//	all approved                     -> approved
//	all rejected                     -> rejected
//	any pending among decided items  -> partially_pending
//	mixed approved/rejected, settled -> partially_approved
func AggregateStatus(items []TransferItem) Status {
	var pending, approved, rejected int
	for _, item := range items {
		switch item.Status {
		case ItemApproved:
			approved++
		case ItemRejected:
			rejected++
		default:
			pending++
		}
	}

	total := len(items)
	switch {
	case total == 0 || pending == total:
		return StatusPending
	case approved == total:
		return StatusApproved
	case rejected == total:
		return StatusRejected
	case pending > 0:
		return StatusPartiallyPending
	default:
		return StatusPartiallyApproved
	}
}
