// Package lifecycle implements the pickup order state machine.
//
//	Pending -> Accepted -> In Transit -> Completed
//	   \           \
//	    `-----------`--> Cancelled
//
// Completed and Cancelled are terminal. No state is ever re-entered.
package lifecycle

import "scrapPickup/models"

var successors = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:   {models.OrderStatusAccepted, models.OrderStatusCancelled},
	models.OrderStatusAccepted:  {models.OrderStatusInTransit, models.OrderStatusCancelled},
	models.OrderStatusInTransit: {models.OrderStatusCompleted},
}

// CanTransition reports whether to is a legal successor of from.
func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range successors[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Successors returns the statuses reachable in one step from s.
func Successors(s models.OrderStatus) []models.OrderStatus {
	out := make([]models.OrderStatus, len(successors[s]))
	copy(out, successors[s])
	return out
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s models.OrderStatus) bool {
	return len(successors[s]) == 0
}
