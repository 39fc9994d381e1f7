package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"scrapPickup/models"
)

const orderColumns = `order_id, user_id, pickup_address, pickup_lat, pickup_lng, customer_name, customer_phone,
scrap_type, weight, estimated_price, final_price, image_urls, status, ordered_at, accepted_at, pickup_at,
completed_at, cancelled_at, cancellation_reason, driver_id, driver_name, driver_phone, payment_status,
payment_method, customer_notes, admin_notes`

// OrderRepository is the core repository for Order entities.
// It handles basic CRUD operations and query building.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order. Status defaults to Pending and payment to Pending/Cash.
// A clashing order_id is reported as ErrDuplicate.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	if o == nil {
		return errors.New("order is nil")
	}
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = models.PaymentStatusPending
	}
	if o.PaymentMethod == "" {
		o.PaymentMethod = models.PaymentMethodCash
	}
	if o.ImageURLs == nil {
		o.ImageURLs = models.StringList{}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.db.NamedExecContext(ctx, `INSERT INTO orders (
order_id, user_id, pickup_address, pickup_lat, pickup_lng, customer_name, customer_phone, scrap_type,
weight, estimated_price, image_urls, status, ordered_at, payment_status, payment_method, customer_notes
) VALUES (
:order_id, :user_id, :pickup_address, :pickup_lat, :pickup_lng, :customer_name, :customer_phone, :scrap_type,
:weight, :estimated_price, :image_urls, :status, :ordered_at, :payment_status, :payment_method, :customer_notes
)`, o)
	return storageErr("insert order", err)
}

// GetByID fetches an order by its ID. Returns nil, nil when absent.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var o models.Order
	err := r.db.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE order_id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get order", err)
	}
	return &o, nil
}

// GetOwned fetches an order only when userID owns it. Foreign orders look absent.
func (r *OrderRepository) GetOwned(ctx context.Context, id, userID string) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var o models.Order
	err := r.db.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE order_id = ? AND user_id = ?`, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get owned order", err)
	}
	return &o, nil
}

// Driver is the pickup agent assigned to an order.
type Driver struct {
	ID    *string
	Name  *string
	Phone *string
}

// StatusChange describes one lifecycle step as persisted.
type StatusChange struct {
	From               models.OrderStatus
	To                 models.OrderStatus
	At                 time.Time
	FinalPrice         *float64
	CancellationReason *string
	Driver             *Driver
	AdminNotes         *string
}

// statusStamp is the timestamp column a status sets when it is reached.
var statusStamp = map[models.OrderStatus]string{
	models.OrderStatusAccepted:  "accepted_at",
	models.OrderStatusInTransit: "pickup_at",
	models.OrderStatusCompleted: "completed_at",
	models.OrderStatusCancelled: "cancelled_at",
}

// ApplyStatusChange moves the order from ch.From to ch.To as a compare-and-swap on
// the current status. It reports false when no row matched, either because the
// order does not exist or because another writer changed its status first.
// final_price is only written while still unset.
func (r *OrderRepository) ApplyStatusChange(ctx context.Context, id string, ch StatusChange) (bool, error) {
	col, ok := statusStamp[ch.To]
	if !ok {
		return false, fmt.Errorf("no timestamp for status %q", ch.To)
	}
	sets := []string{"status = ?", col + " = ?"}
	args := []any{string(ch.To), ch.At.UTC()}
	if ch.FinalPrice != nil {
		sets = append(sets, "final_price = COALESCE(final_price, ?)")
		args = append(args, *ch.FinalPrice)
	}
	if ch.CancellationReason != nil {
		sets = append(sets, "cancellation_reason = ?")
		args = append(args, *ch.CancellationReason)
	}
	if d := ch.Driver; d != nil {
		if d.ID != nil {
			sets = append(sets, "driver_id = ?")
			args = append(args, *d.ID)
		}
		if d.Name != nil {
			sets = append(sets, "driver_name = ?")
			args = append(args, *d.Name)
		}
		if d.Phone != nil {
			sets = append(sets, "driver_phone = ?")
			args = append(args, *d.Phone)
		}
	}
	if ch.AdminNotes != nil {
		sets = append(sets, "admin_notes = ?")
		args = append(args, *ch.AdminNotes)
	}
	args = append(args, id, string(ch.From))

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET `+strings.Join(sets, ", ")+` WHERE order_id = ? AND status = ?`, args...)
	if err != nil {
		return false, storageErr("update order status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("update order status", err)
	}
	return n == 1, nil
}

// AccrualClaim is the outcome of crediting an order to its owner's loyalty record.
// Claimed is false when the order is not completed or was credited before.
type AccrualClaim struct {
	UserID  string
	Status  models.OrderStatus
	Amount  float64
	Claimed bool
}

// ClaimAccrualTx marks a completed order as credited, at most once per order, and
// returns its owner and authoritative price. Returns nil, nil when the order is absent.
func (r *OrderRepository) ClaimAccrualTx(ctx context.Context, tx *sqlx.Tx, id string) (*AccrualClaim, error) {
	c := AccrualClaim{Status: models.OrderStatusCompleted, Claimed: true}
	err := tx.QueryRowxContext(ctx, `
UPDATE orders SET accrued = 1
WHERE order_id = ? AND status = 'Completed' AND accrued = 0
RETURNING user_id, COALESCE(final_price, estimated_price)`, id).Scan(&c.UserID, &c.Amount)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, storageErr("claim accrual", err)
	}
	var row struct {
		UserID string             `db:"user_id"`
		Status models.OrderStatus `db:"status"`
	}
	err = tx.GetContext(ctx, &row, `SELECT user_id, status FROM orders WHERE order_id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("claim accrual", err)
	}
	return &AccrualClaim{UserID: row.UserID, Status: row.Status}, nil
}

// ClaimAccrualsTx marks every completed, uncredited order of the user as credited
// and returns how many it marked.
func (r *OrderRepository) ClaimAccrualsTx(ctx context.Context, tx *sqlx.Tx, userID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
UPDATE orders SET accrued = 1
WHERE user_id = ? AND status = 'Completed' AND accrued = 0`, userID)
	if err != nil {
		return 0, storageErr("claim accruals", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// UpdatePayment sets payment status and/or method. Returns false when the order is absent.
func (r *OrderRepository) UpdatePayment(ctx context.Context, id string, status *models.PaymentStatus, method *models.PaymentMethod) (bool, error) {
	if status == nil && method == nil {
		return false, errors.New("nothing to update")
	}
	var sets []string
	var args []any
	if status != nil {
		sets = append(sets, "payment_status = ?")
		args = append(args, string(*status))
	}
	if method != nil {
		sets = append(sets, "payment_method = ?")
		args = append(args, string(*method))
	}
	args = append(args, id)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET `+strings.Join(sets, ", ")+` WHERE order_id = ?`, args...)
	if err != nil {
		return false, storageErr("update payment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("update payment", err)
	}
	return n == 1, nil
}
