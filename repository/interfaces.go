package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"scrapPickup/models"
)

// AdminRepositoryI defines operations on registered administrators.
type AdminRepositoryI interface {
	Create(ctx context.Context, uid, username string) (*models.Admin, error)
	Ensure(ctx context.Context, uid, username string) error
	GetByUID(ctx context.Context, uid string) (*models.Admin, error)
	List(ctx context.Context, limit, offset int) ([]models.Admin, error)
}

// OrderRepositoryI defines operations on Order entities.
type OrderRepositoryI interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetOwned(ctx context.Context, id, userID string) (*models.Order, error)
	ApplyStatusChange(ctx context.Context, id string, ch StatusChange) (bool, error)
	UpdatePayment(ctx context.Context, id string, status *models.PaymentStatus, method *models.PaymentMethod) (bool, error)
	ListByUser(ctx context.Context, userID string, status *models.OrderStatus) ([]models.Order, error)
	ListAdmin(ctx context.Context, p ListOrdersAdminParams) ([]models.Order, int64, error)
	Stats(ctx context.Context) (*models.OrderStats, error)
	ClaimAccrualTx(ctx context.Context, tx *sqlx.Tx, id string) (*AccrualClaim, error)
	ClaimAccrualsTx(ctx context.Context, tx *sqlx.Tx, userID string) (int64, error)
}

// LoyaltyRepositoryI defines operations on per-user loyalty records.
type LoyaltyRepositoryI interface {
	Get(ctx context.Context, userID string) (*models.LoyaltyProgress, error)
	EnsureDefault(ctx context.Context, userID string, now time.Time) (*models.LoyaltyProgress, error)
	Increment(ctx context.Context, userID string, amount float64, now time.Time) (int64, error)
	IncrementTx(ctx context.Context, tx *sqlx.Tx, userID string, amount float64, now time.Time) (int64, error)
	RecountTx(ctx context.Context, tx *sqlx.Tx, userID string, now time.Time) (int64, error)
	SetDerivedTx(ctx context.Context, tx *sqlx.Tx, userID string, progress float64, tier models.Tier, now time.Time) error
	SetOverride(ctx context.Context, userID string, progress float64, tier models.Tier, now time.Time) (*models.LoyaltyProgress, error)
	DeleteTx(ctx context.Context, tx *sqlx.Tx, userID string) (int64, error)
	List(ctx context.Context, sort LoyaltySort, limit, offset int) ([]models.LoyaltyProgress, error)
	Count(ctx context.Context) (int64, error)
}

// RateRepositoryI defines operations on the rate table.
type RateRepositoryI interface {
	List(ctx context.Context, activeOnly bool) ([]models.RateEntry, error)
	Get(ctx context.Context, t models.ScrapType) (*models.RateEntry, error)
	Upsert(ctx context.Context, t models.ScrapType, u models.RateUpdate, editor string, now time.Time) (*models.RateEntry, error)
	InsertIfAbsent(ctx context.Context, e *models.RateEntry) (bool, error)
}

// AddressRepositoryI defines operations on saved addresses.
type AddressRepositoryI interface {
	List(ctx context.Context, userID string) ([]models.Address, error)
	Add(ctx context.Context, a *models.Address) error
	Delete(ctx context.Context, id, userID string) (bool, error)
	SetDefault(ctx context.Context, id, userID string) (bool, error)
	DeleteByUserTx(ctx context.Context, tx *sqlx.Tx, userID string) (int64, error)
}

var (
	_ AdminRepositoryI   = (*AdminRepository)(nil)
	_ OrderRepositoryI   = (*OrderRepository)(nil)
	_ LoyaltyRepositoryI = (*LoyaltyRepository)(nil)
	_ RateRepositoryI    = (*RateRepository)(nil)
	_ AddressRepositoryI = (*AddressRepository)(nil)
)
