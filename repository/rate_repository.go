package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"scrapPickup/models"
)

const rateColumns = `scrap_type, price_per_kg, description, is_active, last_updated_by, updated_at`

type RateRepository struct {
	db *sqlx.DB
}

func NewRateRepository(db *sqlx.DB) *RateRepository {
	return &RateRepository{db: db}
}

// List returns rates sorted by scrap type; activeOnly hides disabled entries.
func (r *RateRepository) List(ctx context.Context, activeOnly bool) ([]models.RateEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	query := `SELECT ` + rateColumns + ` FROM rates`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY scrap_type ASC`
	out := []models.RateEntry{}
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, storageErr("list rates", err)
	}
	return out, nil
}

// Get returns one rate, or nil, nil when the type has never been priced.
func (r *RateRepository) Get(ctx context.Context, t models.ScrapType) (*models.RateEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var e models.RateEntry
	err := r.db.GetContext(ctx, &e, `SELECT `+rateColumns+` FROM rates WHERE scrap_type = ?`, string(t))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get rate", err)
	}
	return &e, nil
}

// Upsert creates the rate or applies the non-nil fields of u to the existing row
// in a single statement. New rows need a price; description defaults to empty and
// the entry starts active.
func (r *RateRepository) Upsert(ctx context.Context, t models.ScrapType, u models.RateUpdate, editor string, now time.Time) (*models.RateEntry, error) {
	var price, desc, active any
	if u.PricePerKg != nil {
		price = *u.PricePerKg
	}
	if u.Description != nil {
		desc = *u.Description
	}
	if u.IsActive != nil {
		active = *u.IsActive
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO rates (scrap_type, price_per_kg, description, is_active, last_updated_by, updated_at)
VALUES (?, COALESCE(?, 0), COALESCE(?, ''), COALESCE(?, 1), ?, ?)
ON CONFLICT(scrap_type) DO UPDATE SET
  price_per_kg = COALESCE(?, price_per_kg),
  description = COALESCE(?, description),
  is_active = COALESCE(?, is_active),
  last_updated_by = excluded.last_updated_by,
  updated_at = excluded.updated_at`,
		string(t), price, desc, active, editor, now.UTC(),
		price, desc, active)
	if err != nil {
		return nil, storageErr("upsert rate", err)
	}
	return r.Get(ctx, t)
}

// InsertIfAbsent stores e unless a rate for its type already exists.
func (r *RateRepository) InsertIfAbsent(ctx context.Context, e *models.RateEntry) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	e.UpdatedAt = e.UpdatedAt.UTC()
	res, err := r.db.NamedExecContext(ctx, `
INSERT INTO rates (scrap_type, price_per_kg, description, is_active, last_updated_by, updated_at)
VALUES (:scrap_type, :price_per_kg, :description, :is_active, :last_updated_by, :updated_at)
ON CONFLICT(scrap_type) DO NOTHING`, e)
	if err != nil {
		return false, storageErr("seed rate", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("seed rate", err)
	}
	return n == 1, nil
}
