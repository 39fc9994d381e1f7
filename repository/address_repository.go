package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"scrapPickup/internal/db"
	"scrapPickup/models"
)

const addressColumns = `id, user_id, label, address, latitude, longitude, is_default, created_at`

type AddressRepository struct {
	db *sqlx.DB
}

func NewAddressRepository(db *sqlx.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

// List returns the user's addresses, default first, then newest first.
func (r *AddressRepository) List(ctx context.Context, userID string) ([]models.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	out := []models.Address{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+addressColumns+` FROM addresses WHERE user_id = ?
ORDER BY is_default DESC, created_at DESC, id ASC`, userID)
	if err != nil {
		return nil, storageErr("list addresses", err)
	}
	return out, nil
}

// Add inserts a. When a is the default, the user's previous default is cleared in
// the same transaction.
func (r *AddressRepository) Add(ctx context.Context, a *models.Address) error {
	if a == nil {
		return errors.New("address is nil")
	}
	a.CreatedAt = a.CreatedAt.UTC()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := db.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if a.IsDefault {
			if err := clearDefault(ctx, tx, a.UserID); err != nil {
				return err
			}
		}
		_, err := tx.NamedExecContext(ctx, `INSERT INTO addresses (`+addressColumns+`)
VALUES (:id, :user_id, :label, :address, :latitude, :longitude, :is_default, :created_at)`, a)
		return err
	})
	return storageErr("add address", err)
}

func clearDefault(ctx context.Context, tx *sqlx.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE addresses SET is_default = 0 WHERE user_id = ? AND is_default = 1`, userID)
	return err
}

// Delete removes the address only when userID owns it. Returns false otherwise.
func (r *AddressRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `DELETE FROM addresses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, storageErr("delete address", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("delete address", err)
	}
	return n == 1, nil
}

// SetDefault makes the owned address the user's only default. Returns false when
// the address does not exist or belongs to someone else; nothing changes then.
func (r *AddressRepository) SetDefault(ctx context.Context, id, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	errMissing := errors.New("address missing")
	err := db.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM addresses WHERE id = ? AND user_id = ?`, id, userID); err != nil {
			return err
		}
		if n == 0 {
			return errMissing
		}
		if err := clearDefault(ctx, tx, userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE addresses SET is_default = 1 WHERE id = ? AND user_id = ?`, id, userID)
		return err
	})
	if errors.Is(err, errMissing) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("set default address", err)
	}
	return true, nil
}

// DeleteByUserTx removes every address of the user inside an existing transaction.
func (r *AddressRepository) DeleteByUserTx(ctx context.Context, tx *sqlx.Tx, userID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM addresses WHERE user_id = ?`, userID)
	if err != nil {
		return 0, storageErr("delete addresses", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
