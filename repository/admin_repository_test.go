package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"scrapPickup/internal/errs"
	"scrapPickup/internal/testutil"
)

func TestAdminRepository_CRUD(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "adminrepo")
	repo := NewAdminRepository(d)
	ctx := context.Background()

	a, err := repo.Create(ctx, "uid-1", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Role != "admin" {
		t.Fatalf("unexpected role: %+v", a)
	}
	if _, err := repo.Create(ctx, "uid-2", "alice"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate username: %v", err)
	}
	if err := repo.Ensure(ctx, "uid-1", "renamed"); err != nil {
		t.Fatalf("ensure existing: %v", err)
	}
	g, err := repo.GetByUID(ctx, "uid-1")
	if err != nil || g == nil || g.Username != "alice" {
		t.Fatalf("ensure must not overwrite: %v %+v", err, g)
	}
	if err := repo.Ensure(ctx, "uid-3", "bob"); err != nil {
		t.Fatalf("ensure new: %v", err)
	}
	list, err := repo.List(ctx, 10, 0)
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %v len=%d", err, len(list))
	}
	if err := repo.Delete(ctx, "uid-3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	gone, err := repo.GetByUID(ctx, "uid-3")
	if err != nil || gone != nil {
		t.Fatalf("expected nil after delete: %v %+v", err, gone)
	}
}

func TestAdminRepository_DriverFailureIsDependency(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer mockDB.Close()
	repo := NewAdminRepository(sqlx.NewDb(mockDB, "sqlite3"))

	mock.ExpectQuery("SELECT uid, username, role, created_at FROM admins").
		WithArgs("uid-1").
		WillReturnError(errors.New("disk I/O error"))

	_, err = repo.GetByUID(context.Background(), "uid-1")
	if !errors.Is(err, errs.ErrDependency) {
		t.Fatalf("err = %v, want dependency", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
