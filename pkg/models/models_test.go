package models

import "testing"

func TestValidUpdateStatus(t *testing.T) {
	valid := []string{StatusPending, StatusPreparing, StatusOutForDelivery, StatusDelivered}
	for _, s := range valid {
		if !ValidUpdateStatus(s) {
			t.Errorf("expected %q to be a valid update status", s)
		}
	}

	invalid := []string{StatusCanceled, "", "Pending", "shipped"}
	for _, s := range invalid {
		if ValidUpdateStatus(s) {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestOrderTotalItems(t *testing.T) {
	order := Order{Items: []OrderItem{
		{MenuItemID: 1, Quantity: 2},
		{MenuItemID: 2, Quantity: 3},
	}}
	if got := order.TotalItems(); got != 5 {
		t.Errorf("TotalItems() = %d, want 5", got)
	}

	empty := Order{}
	if got := empty.TotalItems(); got != 0 {
		t.Errorf("TotalItems() on empty order = %d, want 0", got)
	}
}
