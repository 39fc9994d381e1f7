package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"scrapPickup/internal/db"
	"scrapPickup/internal/testutil"
	"scrapPickup/models"
)

func TestLoyaltyRepository_EnsureAndIncrement(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "loyalty_increment")
	repo := NewLoyaltyRepository(d)
	ctx := context.Background()
	now := time.Now()

	none, err := repo.Get(ctx, "u1")
	if err != nil || none != nil {
		t.Fatalf("expected nil,nil before first use: %v %+v", err, none)
	}
	p, err := repo.EnsureDefault(ctx, "u1", now)
	if err != nil || p == nil || p.TotalOrders != 0 || p.Tier != models.TierNone {
		t.Fatalf("ensure default: %v %+v", err, p)
	}
	// EnsureDefault never resets an existing record.
	if _, err := repo.Increment(ctx, "u1", 40, now); err != nil {
		t.Fatalf("increment: %v", err)
	}
	p, _ = repo.EnsureDefault(ctx, "u1", now)
	if p.TotalOrders != 1 || p.TotalEarnings != 40 {
		t.Fatalf("ensure overwrote totals: %+v", p)
	}

	n, err := repo.Increment(ctx, "u2", 15.5, now)
	if err != nil || n != 1 {
		t.Fatalf("first accrual should create the record: n=%d err=%v", n, err)
	}
	n, _ = repo.Increment(ctx, "u2", 4.5, now)
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
	p, _ = repo.Get(ctx, "u2")
	if p.TotalEarnings != 20 {
		t.Fatalf("earnings = %v, want 20", p.TotalEarnings)
	}
}

func TestLoyaltyRepository_RecountFromCreditedOrders(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "loyalty_recount")
	repo := NewLoyaltyRepository(d)
	orders := NewOrderRepository(d)
	ctx := context.Background()
	now := time.Now()

	seedOrders(t, orders)
	for _, id := range []string{"ORD00", "ORD01"} {
		orders.ApplyStatusChange(ctx, id, StatusChange{From: models.OrderStatusPending, To: models.OrderStatusAccepted, At: now})
		orders.ApplyStatusChange(ctx, id, StatusChange{From: models.OrderStatusAccepted, To: models.OrderStatusInTransit, At: now})
	}
	orders.ApplyStatusChange(ctx, "ORD00", StatusChange{From: models.OrderStatusInTransit, To: models.OrderStatusCompleted, At: now, FinalPrice: testutil.Float(12.5)})
	orders.ApplyStatusChange(ctx, "ORD01", StatusChange{From: models.OrderStatusInTransit, To: models.OrderStatusCompleted, At: now})

	err := db.InTx(ctx, d, func(tx *sqlx.Tx) error {
		c, err := orders.ClaimAccrualTx(ctx, tx, "ORD00")
		if err != nil || c == nil || !c.Claimed || c.UserID != "u1" || c.Amount != 12.5 {
			return fmt.Errorf("first claim: %v %+v", err, c)
		}
		if c, _ = orders.ClaimAccrualTx(ctx, tx, "ORD00"); c.Claimed || c.Status != models.OrderStatusCompleted {
			return fmt.Errorf("second claim: %+v", c)
		}
		if c, _ = orders.ClaimAccrualTx(ctx, tx, "ORD02"); c.Claimed || c.Status != models.OrderStatusPending {
			return fmt.Errorf("pending claim: %+v", c)
		}
		if c, err = orders.ClaimAccrualTx(ctx, tx, "ORDnone"); c != nil || err != nil {
			return fmt.Errorf("missing order: %v %+v", err, c)
		}
		if n, err := repo.RecountTx(ctx, tx, "u1", now); err != nil || n != 1 {
			return fmt.Errorf("recount before claiming the rest: n=%d err=%v", n, err)
		}
		if n, err := orders.ClaimAccrualsTx(ctx, tx, "u1"); err != nil || n != 1 {
			return fmt.Errorf("claim rest: n=%d err=%v", n, err)
		}
		n, err := repo.RecountTx(ctx, tx, "u1", now)
		if err != nil || n != 2 {
			return fmt.Errorf("recount: n=%d err=%v", n, err)
		}
		return repo.SetDerivedTx(ctx, tx, "u1", 0.2, models.TierNone, now)
	})
	if err != nil {
		t.Fatal(err)
	}
	p, _ := repo.Get(ctx, "u1")
	if p.TotalOrders != 2 || p.TotalEarnings != 32.5 || p.Progress != 0.2 {
		t.Fatalf("recounted record: %+v", p)
	}
}

func TestLoyaltyRepository_ConcurrentIncrementsAreNotLost(t *testing.T) {
	d := testutil.OpenFileDB(t)
	repo := NewLoyaltyRepository(d)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Increment(ctx, "hot", 5, time.Now()); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("increment: %v", err)
	}
	p, err := repo.Get(ctx, "hot")
	if err != nil || p.TotalOrders != workers || p.TotalEarnings != 5*workers {
		t.Fatalf("lost updates: %v %+v", err, p)
	}
}

func TestLoyaltyRepository_OverrideAndDelete(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "loyalty_override")
	repo := NewLoyaltyRepository(d)
	ctx := context.Background()
	now := time.Now()

	repo.Increment(ctx, "u1", 30, now)
	p, err := repo.SetOverride(ctx, "u1", 1, models.TierPlatinum, now)
	if err != nil || p.Tier != models.TierPlatinum || p.TotalOrders != 1 || p.TotalEarnings != 30 {
		t.Fatalf("override should keep totals: %v %+v", err, p)
	}

	err = db.InTx(ctx, d, func(tx *sqlx.Tx) error {
		n, err := repo.DeleteTx(ctx, tx, "u1")
		if n != 1 {
			return fmt.Errorf("deleted %d rows", n)
		}
		return err
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if p, _ := repo.Get(ctx, "u1"); p != nil {
		t.Fatalf("record survived delete: %+v", p)
	}
}

func TestLoyaltyRepository_ListSortsAndPages(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "loyalty_list")
	repo := NewLoyaltyRepository(d)
	ctx := context.Background()
	now := time.Now()

	// a: 3 orders / 30, b: 1 order / 100, c: 2 orders / 20
	for i := 0; i < 3; i++ {
		repo.Increment(ctx, "a", 10, now)
	}
	repo.Increment(ctx, "b", 100, now)
	repo.Increment(ctx, "c", 10, now)
	repo.Increment(ctx, "c", 10, now)

	byOrders, err := repo.List(ctx, LoyaltySortOrders, 10, 0)
	if err != nil || len(byOrders) != 3 || byOrders[0].UserID != "a" || byOrders[2].UserID != "b" {
		t.Fatalf("by orders: %v %+v", err, byOrders)
	}
	byEarnings, _ := repo.List(ctx, LoyaltySortEarnings, 10, 0)
	if byEarnings[0].UserID != "b" || byEarnings[2].UserID != "c" {
		t.Fatalf("by earnings: %+v", byEarnings)
	}
	second, _ := repo.List(ctx, LoyaltySortOrders, 1, 1)
	if len(second) != 1 || second[0].UserID != "c" {
		t.Fatalf("page 2: %+v", second)
	}
	if n, err := repo.Count(ctx); err != nil || n != 3 {
		t.Fatalf("count: %v %d", err, n)
	}
}
