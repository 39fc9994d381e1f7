package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"scrapPickup/internal/testutil"
	"scrapPickup/models"
)

func addr(user, label string, def bool, at time.Time) *models.Address {
	return &models.Address{
		ID:        uuid.NewString(),
		UserID:    user,
		Label:     label,
		Address:   label + " street",
		IsDefault: def,
		CreatedAt: at,
	}
}

func countDefaults(list []models.Address) int {
	n := 0
	for _, a := range list {
		if a.IsDefault {
			n++
		}
	}
	return n
}

func TestAddressRepository_SingleDefault(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "addresses_default")
	repo := NewAddressRepository(d)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	home := addr("u1", "Home", true, base)
	work := addr("u1", "Work", true, base.Add(time.Minute))
	gym := addr("u1", "Gym", false, base.Add(2*time.Minute))
	for _, a := range []*models.Address{home, work, gym} {
		if err := repo.Add(ctx, a); err != nil {
			t.Fatalf("add %s: %v", a.Label, err)
		}
	}
	list, err := repo.List(ctx, "u1")
	if err != nil || len(list) != 3 {
		t.Fatalf("list: %v %d", err, len(list))
	}
	if countDefaults(list) != 1 || list[0].ID != work.ID {
		t.Fatalf("expected Work as sole default listed first: %+v", list)
	}
	if list[1].ID != gym.ID {
		t.Fatalf("non-defaults should be newest first: %+v", list)
	}

	ok, err := repo.SetDefault(ctx, home.ID, "u1")
	if err != nil || !ok {
		t.Fatalf("set default: ok=%v err=%v", ok, err)
	}
	list, _ = repo.List(ctx, "u1")
	if countDefaults(list) != 1 || list[0].ID != home.ID {
		t.Fatalf("Home should be the only default: %+v", list)
	}

	// Another user's address cannot be made default and nothing changes.
	ok, err = repo.SetDefault(ctx, home.ID, "u2")
	if err != nil || ok {
		t.Fatalf("foreign set default: ok=%v err=%v", ok, err)
	}
	list, _ = repo.List(ctx, "u1")
	if countDefaults(list) != 1 {
		t.Fatalf("defaults changed by foreign call")
	}
}

func TestAddressRepository_PartialIndexRejectsSecondDefault(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "addresses_index")
	repo := NewAddressRepository(d)
	ctx := context.Background()
	if err := repo.Add(ctx, addr("u1", "Home", true, time.Now())); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := d.ExecContext(ctx, `INSERT INTO addresses (id, user_id, label, address, is_default, created_at) VALUES (?, 'u1', 'X', 'Y', 1, ?)`, uuid.NewString(), time.Now().UTC())
	if err == nil || !isUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if !errors.Is(storageErr("insert", err), ErrDuplicate) {
		t.Fatalf("storageErr should classify as duplicate")
	}
}

func TestAddressRepository_DeleteIsOwnerScoped(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "addresses_delete")
	repo := NewAddressRepository(d)
	ctx := context.Background()
	a := addr("u1", "Home", false, time.Now())
	if err := repo.Add(ctx, a); err != nil {
		t.Fatalf("add: %v", err)
	}
	if ok, err := repo.Delete(ctx, a.ID, "u2"); err != nil || ok {
		t.Fatalf("foreign delete: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.Delete(ctx, a.ID, "u1"); err != nil || !ok {
		t.Fatalf("owner delete: ok=%v err=%v", ok, err)
	}
	if ok, _ := repo.Delete(ctx, a.ID, "u1"); ok {
		t.Fatalf("second delete should find nothing")
	}
}
