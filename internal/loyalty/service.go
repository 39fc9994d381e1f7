package loyalty

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"scrapPickup/internal/db"
	"scrapPickup/internal/errs"
	"scrapPickup/internal/logging"
	"scrapPickup/models"
	"scrapPickup/repository"
)

// OrderLedger marks completed orders as credited so each counts exactly once.
type OrderLedger interface {
	ClaimAccrualTx(ctx context.Context, tx *sqlx.Tx, orderID string) (*repository.AccrualClaim, error)
	ClaimAccrualsTx(ctx context.Context, tx *sqlx.Tx, userID string) (int64, error)
}

// Service owns every write to loyalty records.
type Service struct {
	db        *sqlx.DB
	progress  repository.LoyaltyRepositoryI
	addresses repository.AddressRepositoryI
	orders    OrderLedger
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewService(d *sqlx.DB, progress repository.LoyaltyRepositoryI, addresses repository.AddressRepositoryI, orders OrderLedger, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{db: d, progress: progress, addresses: addresses, orders: orders, log: log, now: time.Now}
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errs.Validation("userId is required", map[string]string{"userId": "is required"})
	}
	return nil
}

// Get returns the user's progress, creating the zero record on first read.
func (s *Service) Get(ctx context.Context, userID string) (*models.LoyaltyProgress, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.progress.EnsureDefault(ctx, userID, s.now())
}

// Accrue credits a completed order to its owner. The order is claimed, the totals
// incremented and progress re-derived in one transaction, so a retried or repeated
// call for the same order changes nothing.
func (s *Service) Accrue(ctx context.Context, orderID string) (*models.LoyaltyProgress, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, errs.Validation("orderId is required", map[string]string{"orderId": "is required"})
	}
	now := s.now()
	var (
		claim *repository.AccrualClaim
		n     int64
	)
	err := db.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		c, err := s.orders.ClaimAccrualTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		switch {
		case c == nil:
			return errs.NotFound("order not found")
		case c.Status != models.OrderStatusCompleted:
			return errs.InvalidTransition("order is %s, only completed orders accrue", c.Status)
		}
		claim = c
		if !c.Claimed {
			return nil
		}
		if n, err = s.progress.IncrementTx(ctx, tx, c.UserID, c.Amount, now); err != nil {
			return err
		}
		progress, tier := Derive(n)
		return s.progress.SetDerivedTx(ctx, tx, c.UserID, progress, tier, now)
	})
	if err != nil {
		return nil, storageFailure(err)
	}
	entry := logging.WithContext(ctx, s.log).WithFields(logrus.Fields{"uid": claim.UserID, "order_id": orderID})
	if !claim.Claimed {
		entry.Debug("order already credited")
		return s.progress.EnsureDefault(ctx, claim.UserID, now)
	}
	progress, tier := Derive(n)
	entry.WithFields(logrus.Fields{"total_orders": n, "tier": tier, "progress": progress}).Info("loyalty accrued")
	return s.progress.Get(ctx, claim.UserID)
}

func storageFailure(err error) error {
	if _, ok := errs.As(err); !ok {
		return errs.Dependency("storage unavailable", err)
	}
	return err
}

// SetOverride stores an admin-chosen progress value, clamped to [0,1].
// Totals are not touched.
func (s *Service) SetOverride(ctx context.Context, userID string, progress float64) (*models.LoyaltyProgress, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	clamped := Clamp(progress)
	tier := OverrideTier(clamped)
	p, err := s.progress.SetOverride(ctx, userID, clamped, tier, s.now())
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, s.log).WithFields(logrus.Fields{"uid": userID, "progress": clamped, "tier": tier}).Info("loyalty override set")
	return p, nil
}

// Rederive rebuilds totals from the user's completed orders, crediting any whose
// accrual failed after completion. Claiming and recounting share one transaction
// with every accrual, so none is lost or counted twice.
func (s *Service) Rederive(ctx context.Context, userID string) (*models.LoyaltyProgress, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	now := s.now()
	var repaired, n int64
	err := db.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if repaired, err = s.orders.ClaimAccrualsTx(ctx, tx, userID); err != nil {
			return err
		}
		if n, err = s.progress.RecountTx(ctx, tx, userID, now); err != nil {
			return err
		}
		progress, tier := Derive(n)
		return s.progress.SetDerivedTx(ctx, tx, userID, progress, tier, now)
	})
	if err != nil {
		return nil, storageFailure(err)
	}
	logging.WithContext(ctx, s.log).WithFields(logrus.Fields{"uid": userID, "total_orders": n, "repaired": repaired}).Info("loyalty re-derived")
	return s.progress.Get(ctx, userID)
}

// Erasure counts what an account-data deletion removed.
type Erasure struct {
	LoyaltyRecords int64 `json:"loyaltyRecords"`
	Addresses      int64 `json:"addresses"`
}

// Erase deletes the user's loyalty record and saved addresses in one transaction.
// Orders are kept for the operator's books.
func (s *Service) Erase(ctx context.Context, userID string) (*Erasure, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var out Erasure
	err := db.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		n, err := s.addresses.DeleteByUserTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		out.Addresses = n
		n, err = s.progress.DeleteTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		out.LoyaltyRecords = n
		return nil
	})
	if err != nil {
		return nil, storageFailure(err)
	}
	logging.WithContext(ctx, s.log).WithFields(logrus.Fields{"uid": userID, "addresses": out.Addresses}).Info("user data erased")
	return &out, nil
}
