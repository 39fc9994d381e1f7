package models

// OrderStats aggregates the whole order table for the admin dashboard.
// Revenue and weight are summed over completed orders only.
type OrderStats struct {
	TotalOrders     int64   `db:"total_orders" json:"totalOrders"`
	PendingOrders   int64   `db:"pending_orders" json:"pendingOrders"`
	AcceptedOrders  int64   `db:"accepted_orders" json:"acceptedOrders"`
	InTransitOrders int64   `db:"in_transit_orders" json:"inTransitOrders"`
	CompletedOrders int64   `db:"completed_orders" json:"completedOrders"`
	CancelledOrders int64   `db:"cancelled_orders" json:"cancelledOrders"`
	TotalRevenue    float64 `db:"total_revenue" json:"totalRevenue"`
	TotalWeight     float64 `db:"total_weight" json:"totalWeight"`
}
