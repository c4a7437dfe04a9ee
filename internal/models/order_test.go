package models

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to string }{
		{OrderStatusPending, OrderStatusProcessing},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusProcessing, OrderStatusShipped},
		{OrderStatusProcessing, OrderStatusCancelled},
		{OrderStatusShipped, OrderStatusDelivered},
	}
	for _, tc := range allowed {
		if !CanTransitionOrderStatus(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to string }{
		{OrderStatusPending, OrderStatusShipped},
		{OrderStatusPending, OrderStatusDelivered},
		{OrderStatusShipped, OrderStatusCancelled},
		{OrderStatusDelivered, OrderStatusProcessing},
		{OrderStatusCancelled, OrderStatusPending},
		{OrderStatusDelivered, OrderStatusDelivered},
	}
	for _, tc := range denied {
		if CanTransitionOrderStatus(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be denied", tc.from, tc.to)
		}
	}
}

func TestIsOrderStatus(t *testing.T) {
	for _, s := range []string{OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled} {
		if !IsOrderStatus(s) {
			t.Fatalf("expected %s to be a known status", s)
		}
	}
	if IsOrderStatus("returned") {
		t.Fatal("expected unknown status to be rejected")
	}
}
