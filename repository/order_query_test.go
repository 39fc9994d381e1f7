package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"scrapPickup/internal/testutil"
	"scrapPickup/models"
)

func seedOrders(t *testing.T, repo *OrderRepository) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		o := newOrder(fmt.Sprintf("ORD%02d", i), "u1", base.Add(time.Duration(i)*time.Hour))
		o.Weight = float64(i + 1)
		o.EstimatedPrice = float64(10 * (i + 1))
		if err := repo.Create(ctx, o); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	other := newOrder("ORD99", "u2", base)
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("create other: %v", err)
	}
}

func TestOrderRepository_ListByUser(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "orders_list_user")
	repo := NewOrderRepository(d)
	seedOrders(t, repo)
	ctx := context.Background()

	list, err := repo.ListByUser(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("len = %d, want 5", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].OrderedAt.After(list[i-1].OrderedAt) {
			t.Fatalf("orders not newest first at %d", i)
		}
	}

	if ok, _ := repo.ApplyStatusChange(ctx, "ORD01", StatusChange{From: models.OrderStatusPending, To: models.OrderStatusCancelled, At: time.Now()}); !ok {
		t.Fatalf("cancel not applied")
	}
	cancelled := models.OrderStatusCancelled
	list, err = repo.ListByUser(ctx, "u1", &cancelled)
	if err != nil || len(list) != 1 || list[0].OrderID != "ORD01" {
		t.Fatalf("filtered list: %v %+v", err, list)
	}

	empty, err := repo.ListByUser(ctx, "nobody", nil)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list: %v %v", err, empty)
	}
}

func TestOrderRepository_ListAdmin(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "orders_list_admin")
	repo := NewOrderRepository(d)
	seedOrders(t, repo)
	ctx := context.Background()

	list, total, err := repo.ListAdmin(ctx, ListOrdersAdminParams{Sort: OrderSortWeight, Asc: false, Limit: 2})
	if err != nil {
		t.Fatalf("list admin: %v", err)
	}
	if total != 6 || len(list) != 2 {
		t.Fatalf("total=%d len=%d", total, len(list))
	}
	if list[0].Weight < list[1].Weight {
		t.Fatalf("expected weight desc: %v then %v", list[0].Weight, list[1].Weight)
	}

	list, total, err = repo.ListAdmin(ctx, ListOrdersAdminParams{UserID: "u2"})
	if err != nil || total != 1 || len(list) != 1 || list[0].UserID != "u2" {
		t.Fatalf("user filter: %v total=%d %+v", err, total, list)
	}

	pending := models.OrderStatusPending
	list, total, err = repo.ListAdmin(ctx, ListOrdersAdminParams{Status: &pending, Sort: OrderSortEstimatedPrice, Asc: true, Limit: 10, Offset: 4})
	if err != nil || total != 6 || len(list) != 2 {
		t.Fatalf("offset page: %v total=%d len=%d", err, total, len(list))
	}

	if _, ok := ParseOrderSort("weight"); !ok {
		t.Fatalf("weight should parse")
	}
	if k, ok := ParseOrderSort(""); !ok || k != OrderSortOrderedAt {
		t.Fatalf("empty sort should default to orderedAt")
	}
	if _, ok := ParseOrderSort("user_id; DROP TABLE orders"); ok {
		t.Fatalf("unknown sort key accepted")
	}
}

func TestOrderRepository_Stats(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "orders_stats")
	repo := NewOrderRepository(d)
	ctx := context.Background()

	empty, err := repo.Stats(ctx)
	if err != nil || empty.TotalOrders != 0 || empty.TotalRevenue != 0 {
		t.Fatalf("empty stats: %v %+v", err, empty)
	}

	seedOrders(t, repo)
	now := time.Now()
	// ORD00 completes with a final price, ORD01 with its estimate.
	for _, id := range []string{"ORD00", "ORD01"} {
		repo.ApplyStatusChange(ctx, id, StatusChange{From: models.OrderStatusPending, To: models.OrderStatusAccepted, At: now})
		repo.ApplyStatusChange(ctx, id, StatusChange{From: models.OrderStatusAccepted, To: models.OrderStatusInTransit, At: now})
	}
	repo.ApplyStatusChange(ctx, "ORD00", StatusChange{From: models.OrderStatusInTransit, To: models.OrderStatusCompleted, At: now, FinalPrice: testutil.Float(12.5)})
	repo.ApplyStatusChange(ctx, "ORD01", StatusChange{From: models.OrderStatusInTransit, To: models.OrderStatusCompleted, At: now})
	repo.ApplyStatusChange(ctx, "ORD02", StatusChange{From: models.OrderStatusPending, To: models.OrderStatusCancelled, At: now})

	s, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.TotalOrders != 6 || s.CompletedOrders != 2 || s.CancelledOrders != 1 || s.PendingOrders != 3 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.TotalRevenue != 32.5 {
		t.Fatalf("revenue = %v, want 32.5", s.TotalRevenue)
	}
	if s.TotalWeight != 3 {
		t.Fatalf("weight = %v, want 3", s.TotalWeight)
	}
}
