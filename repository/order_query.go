package repository

import (
	"context"
	"strings"
	"time"

	"scrapPickup/models"
)

// ListByUser returns a user's orders newest first, optionally narrowed to one status.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, status *models.OrderStatus) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = ?`
	args := []any{userID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY ordered_at DESC, order_id DESC`

	out := []models.Order{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, storageErr("list user orders", err)
	}
	return out, nil
}

// OrderSort is a closed set of admin listing sort keys.
type OrderSort string

const (
	OrderSortOrderedAt      OrderSort = "orderedAt"
	OrderSortWeight         OrderSort = "weight"
	OrderSortEstimatedPrice OrderSort = "estimatedPrice"
	OrderSortStatus         OrderSort = "status"
)

var orderSortColumn = map[OrderSort]string{
	OrderSortOrderedAt:      "ordered_at",
	OrderSortWeight:         "weight",
	OrderSortEstimatedPrice: "estimated_price",
	OrderSortStatus:         "status",
}

// ParseOrderSort accepts only known sort keys. An empty key means orderedAt.
func ParseOrderSort(s string) (OrderSort, bool) {
	if s == "" {
		return OrderSortOrderedAt, true
	}
	k := OrderSort(s)
	_, ok := orderSortColumn[k]
	return k, ok
}

// ListOrdersAdminParams represents filters and pagination for ListAdmin (admin).
type ListOrdersAdminParams struct {
	Status *models.OrderStatus
	UserID string
	Sort   OrderSort
	Asc    bool
	Limit  int
	Offset int
}

// ListAdmin returns a page of orders matching the filters and the total number of matches.
func (r *OrderRepository) ListAdmin(ctx context.Context, p ListOrdersAdminParams) ([]models.Order, int64, error) {
	col, ok := orderSortColumn[p.Sort]
	if !ok {
		col = "ordered_at"
	}
	dir := "DESC"
	if p.Asc {
		dir = "ASC"
	}
	limit, offset := page(p.Limit, p.Offset, 20, 100)

	var where []string
	var args []any
	if p.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*p.Status))
	}
	if p.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, p.UserID)
	}
	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM orders`+filter, args...); err != nil {
		return nil, 0, storageErr("count admin orders", err)
	}
	query := `SELECT ` + orderColumns + ` FROM orders` + filter +
		` ORDER BY ` + col + ` ` + dir + `, order_id ` + dir + ` LIMIT ? OFFSET ?`
	out := []models.Order{}
	if err := r.db.SelectContext(ctx, &out, query, append(args, limit, offset)...); err != nil {
		return nil, 0, storageErr("list admin orders", err)
	}
	return out, total, nil
}

// Stats computes dashboard counters in one pass over the table.
func (r *OrderRepository) Stats(ctx context.Context) (*models.OrderStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var s models.OrderStats
	err := r.db.GetContext(ctx, &s, `
SELECT
  COUNT(*) AS total_orders,
  COALESCE(SUM(CASE WHEN status = 'Pending' THEN 1 ELSE 0 END), 0) AS pending_orders,
  COALESCE(SUM(CASE WHEN status = 'Accepted' THEN 1 ELSE 0 END), 0) AS accepted_orders,
  COALESCE(SUM(CASE WHEN status = 'In Transit' THEN 1 ELSE 0 END), 0) AS in_transit_orders,
  COALESCE(SUM(CASE WHEN status = 'Completed' THEN 1 ELSE 0 END), 0) AS completed_orders,
  COALESCE(SUM(CASE WHEN status = 'Cancelled' THEN 1 ELSE 0 END), 0) AS cancelled_orders,
  COALESCE(SUM(CASE WHEN status = 'Completed' THEN COALESCE(final_price, estimated_price) ELSE 0 END), 0) AS total_revenue,
  COALESCE(SUM(CASE WHEN status = 'Completed' THEN weight ELSE 0 END), 0) AS total_weight
FROM orders`)
	if err != nil {
		return nil, storageErr("order stats", err)
	}
	return &s, nil
}
