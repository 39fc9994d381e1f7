package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"scrapPickup/models"
)

type AdminRepository struct {
	db *sqlx.DB
}

func NewAdminRepository(db *sqlx.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// Create inserts a new admin with the given uid and username.
// Returns ErrDuplicate when either is already taken.
func (r *AdminRepository) Create(ctx context.Context, uid, username string) (*models.Admin, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a := models.NewAdmin(uid, username)
	a.CreatedAt = time.Now().UTC()
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO admins (uid, username, role, created_at) VALUES (:uid, :username, :role, :created_at)`, a)
	if err != nil {
		return nil, storageErr("create admin", err)
	}
	return a, nil
}

// Ensure creates the admin unless the uid is already registered. Used for seeding.
func (r *AdminRepository) Ensure(ctx context.Context, uid, username string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO admins (uid, username, role, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT(uid) DO NOTHING`, uid, username, models.RoleAdmin, time.Now().UTC())
	return storageErr("ensure admin", err)
}

// GetByUID returns the admin or nil, nil when the uid is not registered.
func (r *AdminRepository) GetByUID(ctx context.Context, uid string) (*models.Admin, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var a models.Admin
	err := r.db.GetContext(ctx, &a, `SELECT uid, username, role, created_at FROM admins WHERE uid = ?`, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get admin", err)
	}
	return &a, nil
}

func (r *AdminRepository) List(ctx context.Context, limit, offset int) ([]models.Admin, error) {
	limit, offset = page(limit, offset, 100, 500)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out := []models.Admin{}
	if err := r.db.SelectContext(ctx, &out, `SELECT uid, username, role, created_at FROM admins ORDER BY username LIMIT ? OFFSET ?`, limit, offset); err != nil {
		return nil, storageErr("list admins", err)
	}
	return out, nil
}

func (r *AdminRepository) Delete(ctx context.Context, uid string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `DELETE FROM admins WHERE uid = ?`, uid)
	return storageErr("delete admin", err)
}
