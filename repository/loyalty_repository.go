package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"scrapPickup/models"
)

const loyaltyColumns = `user_id, total_orders, total_earnings, progress, tier, updated_at`

type LoyaltyRepository struct {
	db *sqlx.DB
}

func NewLoyaltyRepository(db *sqlx.DB) *LoyaltyRepository {
	return &LoyaltyRepository{db: db}
}

// Get returns the user's record, or nil, nil when none exists yet.
func (r *LoyaltyRepository) Get(ctx context.Context, userID string) (*models.LoyaltyProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var p models.LoyaltyProgress
	err := r.db.GetContext(ctx, &p, `SELECT `+loyaltyColumns+` FROM loyalty_progress WHERE user_id = ?`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get loyalty", err)
	}
	return &p, nil
}

// EnsureDefault creates the zero record when absent and returns the stored row.
func (r *LoyaltyRepository) EnsureDefault(ctx context.Context, userID string, now time.Time) (*models.LoyaltyProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO loyalty_progress (user_id, total_orders, total_earnings, progress, tier, updated_at)
VALUES (?, 0, 0, 0, ?, ?)
ON CONFLICT(user_id) DO NOTHING`, userID, string(models.TierNone), now.UTC())
	if err != nil {
		return nil, storageErr("ensure loyalty", err)
	}
	return r.Get(ctx, userID)
}

// Increment adds one order and amount to the user's totals in a single statement,
// creating the record on first accrual, and returns the new order count.
func (r *LoyaltyRepository) Increment(ctx context.Context, userID string, amount float64, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return increment(ctx, r.db, userID, amount, now)
}

// IncrementTx is Increment inside an existing transaction.
func (r *LoyaltyRepository) IncrementTx(ctx context.Context, tx *sqlx.Tx, userID string, amount float64, now time.Time) (int64, error) {
	return increment(ctx, tx, userID, amount, now)
}

func increment(ctx context.Context, q sqlx.QueryerContext, userID string, amount float64, now time.Time) (int64, error) {
	var n int64
	err := q.QueryRowxContext(ctx, `
INSERT INTO loyalty_progress (user_id, total_orders, total_earnings, progress, tier, updated_at)
VALUES (?, 1, ?, 0, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  total_orders = total_orders + 1,
  total_earnings = total_earnings + excluded.total_earnings,
  updated_at = excluded.updated_at
RETURNING total_orders`, userID, amount, string(models.TierNone), now.UTC()).Scan(&n)
	if err != nil {
		return 0, storageErr("increment loyalty", err)
	}
	return n, nil
}

// RecountTx rebuilds the user's totals from their credited orders in one statement
// and returns the order count.
func (r *LoyaltyRepository) RecountTx(ctx context.Context, tx *sqlx.Tx, userID string, now time.Time) (int64, error) {
	var n int64
	err := tx.QueryRowxContext(ctx, `
INSERT INTO loyalty_progress (user_id, total_orders, total_earnings, progress, tier, updated_at)
SELECT ?, COUNT(*), COALESCE(SUM(COALESCE(final_price, estimated_price)), 0), 0, ?, ?
FROM orders WHERE user_id = ? AND accrued = 1
ON CONFLICT(user_id) DO UPDATE SET
  total_orders = excluded.total_orders,
  total_earnings = excluded.total_earnings,
  updated_at = excluded.updated_at
RETURNING total_orders`, userID, string(models.TierNone), now.UTC(), userID).Scan(&n)
	if err != nil {
		return 0, storageErr("recount loyalty", err)
	}
	return n, nil
}

// SetDerivedTx writes progress and tier computed from the count the same
// transaction just stored.
func (r *LoyaltyRepository) SetDerivedTx(ctx context.Context, tx *sqlx.Tx, userID string, progress float64, tier models.Tier, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
UPDATE loyalty_progress SET progress = ?, tier = ?, updated_at = ?
WHERE user_id = ?`, progress, string(tier), now.UTC(), userID)
	return storageErr("set derived loyalty", err)
}

// SetOverride stores an admin-chosen progress and tier, leaving totals untouched.
func (r *LoyaltyRepository) SetOverride(ctx context.Context, userID string, progress float64, tier models.Tier, now time.Time) (*models.LoyaltyProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO loyalty_progress (user_id, total_orders, total_earnings, progress, tier, updated_at)
VALUES (?, 0, 0, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  progress = excluded.progress,
  tier = excluded.tier,
  updated_at = excluded.updated_at`, userID, progress, string(tier), now.UTC())
	if err != nil {
		return nil, storageErr("override loyalty", err)
	}
	return r.Get(ctx, userID)
}

// DeleteTx removes the user's record inside an existing transaction.
func (r *LoyaltyRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, userID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM loyalty_progress WHERE user_id = ?`, userID)
	if err != nil {
		return 0, storageErr("delete loyalty", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// LoyaltySort is a closed set of leaderboard sort keys.
type LoyaltySort string

const (
	LoyaltySortOrders   LoyaltySort = "orders"
	LoyaltySortEarnings LoyaltySort = "earnings"
	LoyaltySortRecent   LoyaltySort = "recent"
)

var loyaltyOrderBy = map[LoyaltySort]string{
	LoyaltySortOrders:   "total_orders DESC, total_earnings DESC, user_id ASC",
	LoyaltySortEarnings: "total_earnings DESC, total_orders DESC, user_id ASC",
	LoyaltySortRecent:   "updated_at DESC, user_id ASC",
}

// List returns one page of records in the requested order.
func (r *LoyaltyRepository) List(ctx context.Context, sort LoyaltySort, limit, offset int) ([]models.LoyaltyProgress, error) {
	orderBy, ok := loyaltyOrderBy[sort]
	if !ok {
		orderBy = loyaltyOrderBy[LoyaltySortOrders]
	}
	limit, offset = page(limit, offset, 50, 100)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out := []models.LoyaltyProgress{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+loyaltyColumns+` FROM loyalty_progress ORDER BY `+orderBy+` LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, storageErr("list loyalty", err)
	}
	return out, nil
}

// Count returns the number of loyalty records.
func (r *LoyaltyRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM loyalty_progress`); err != nil {
		return 0, storageErr("count loyalty", err)
	}
	return n, nil
}
