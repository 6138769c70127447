package orders

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusCreated, StatusPartiallyPaid, true},
		{StatusCreated, StatusPaid, true},
		{StatusCreated, StatusCanceled, true},
		{StatusCreated, StatusDelivered, false},
		{StatusPartiallyPaid, StatusPaid, true},
		{StatusPartiallyPaid, StatusDelivered, false},
		{StatusPaid, StatusDelivered, true},
		{StatusPaid, StatusPartiallyPaid, true},
		{StatusDelivered, StatusReturned, true},
		{StatusDelivered, StatusPaid, false},
		{StatusReturned, StatusCanceled, false},
		{StatusCanceled, StatusCreated, false},
		{StatusCanceled, StatusCanceled, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusForPayment(t *testing.T) {
	cases := []struct {
		name        string
		current     Status
		paid, total float64
		want        Status
	}{
		{"nothing paid", StatusCreated, 0, 1000, StatusCreated},
		{"partial", StatusCreated, 400, 1000, StatusPartiallyPaid},
		{"exact", StatusPartiallyPaid, 1000, 1000, StatusPaid},
		{"overpaid", StatusPartiallyPaid, 1200, 1000, StatusPaid},
		{"delivered sticks", StatusDelivered, 400, 1000, StatusDelivered},
		{"canceled sticks", StatusCanceled, 1000, 1000, StatusCanceled},
		{"edit pushed total above paid", StatusPaid, 1000, 1500, StatusPartiallyPaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StatusForPayment(tc.current, tc.paid, tc.total); got != tc.want {
				t.Fatalf("StatusForPayment(%s, %v, %v) = %s, want %s", tc.current, tc.paid, tc.total, got, tc.want)
			}
		})
	}
}

func TestEffectivePrice(t *testing.T) {
	cases := []struct {
		name string
		item OrderItem
		want float64
	}{
		{"no discount", OrderItem{Price: 500, Quantity: 2, DiscountType: DiscountNone}, 1000},
		{"percentage", OrderItem{Price: 500, Quantity: 2, DiscountType: DiscountPercentage, DiscountValue: 10}, 900},
		{"fixed", OrderItem{Price: 500, Quantity: 2, DiscountType: DiscountFixed, DiscountValue: 300}, 700},
		{"discount beyond price floors at zero", OrderItem{Price: 100, Quantity: 1, DiscountType: DiscountFixed, DiscountValue: 500}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.item.EffectivePrice(); got != tc.want {
				t.Fatalf("EffectivePrice() = %v, want %v", got, tc.want)
			}
		})
	}
}
