package lifecycle

import (
	"testing"

	"scrapPickup/models"
)

func TestTransitionGraphIsExactlyTheLegalEdges(t *testing.T) {
	legal := map[[2]models.OrderStatus]bool{
		{models.OrderStatusPending, models.OrderStatusAccepted}:    true,
		{models.OrderStatusPending, models.OrderStatusCancelled}:   true,
		{models.OrderStatusAccepted, models.OrderStatusInTransit}:  true,
		{models.OrderStatusAccepted, models.OrderStatusCancelled}:  true,
		{models.OrderStatusInTransit, models.OrderStatusCompleted}: true,
	}
	for _, from := range models.OrderStatuses {
		for _, to := range models.OrderStatuses {
			want := legal[[2]models.OrderStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range models.OrderStatuses {
		want := s == models.OrderStatusCompleted || s == models.OrderStatusCancelled
		if IsTerminal(s) != want {
			t.Errorf("IsTerminal(%s) = %v", s, !want)
		}
	}
	next := Successors(models.OrderStatusPending)
	next[0] = models.OrderStatusCompleted
	if !CanTransition(models.OrderStatusPending, models.OrderStatusAccepted) {
		t.Fatalf("Successors must return a copy")
	}
}
