package addressbook

import (
	"context"
	"errors"
	"testing"

	"scrapPickup/internal/errs"
	"scrapPickup/internal/testutil"
	"scrapPickup/models"
	"scrapPickup/repository"
)

func newService(t *testing.T, name string) *Service {
	t.Helper()
	return NewService(repository.NewAddressRepository(testutil.OpenInMemoryDB(t, name)), nil)
}

func defaults(list []models.Address) []string {
	var ids []string
	for _, a := range list {
		if a.IsDefault {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func TestAtMostOneDefault(t *testing.T) {
	s := newService(t, "addressbook_default")
	ctx := context.Background()

	first, err := s.Add(ctx, "u1", models.NewAddressInput{Label: "Home", Address: "1 Main St", IsDefault: true})
	if err != nil {
		t.Fatalf("add first: %v", err)
	}
	second, err := s.Add(ctx, "u1", models.NewAddressInput{Label: "Work", Address: "2 Side St", IsDefault: true,
		Latitude: testutil.Float(12.9), Longitude: testutil.Float(77.6)})
	if err != nil {
		t.Fatalf("add second: %v", err)
	}
	list, _ := s.List(ctx, "u1")
	if d := defaults(list); len(d) != 1 || d[0] != second.ID {
		t.Fatalf("defaults = %v, want only %s", d, second.ID)
	}

	if err := s.SetDefault(ctx, "u1", first.ID); err != nil {
		t.Fatalf("set default: %v", err)
	}
	list, _ = s.List(ctx, "u1")
	if d := defaults(list); len(d) != 1 || d[0] != first.ID {
		t.Fatalf("defaults = %v, want only %s", d, first.ID)
	}
}

func TestAddValidation(t *testing.T) {
	s := newService(t, "addressbook_validation")
	ctx := context.Background()
	cases := []struct {
		name string
		in   models.NewAddressInput
	}{
		{"blank label", models.NewAddressInput{Label: "  ", Address: "x"}},
		{"blank address", models.NewAddressInput{Label: "Home"}},
		{"latitude out of range", models.NewAddressInput{Label: "Home", Address: "x", Latitude: testutil.Float(91), Longitude: testutil.Float(0)}},
		{"half coordinate", models.NewAddressInput{Label: "Home", Address: "x", Latitude: testutil.Float(10)}},
	}
	for _, c := range cases {
		if _, err := s.Add(ctx, "u1", c.in); !errors.Is(err, errs.ErrValidation) {
			t.Errorf("%s: err = %v, want validation", c.name, err)
		}
	}
	if list, _ := s.List(ctx, "u1"); len(list) != 0 {
		t.Fatalf("invalid input persisted: %+v", list)
	}
}

func TestForeignAddressesAreNotFound(t *testing.T) {
	s := newService(t, "addressbook_foreign")
	ctx := context.Background()
	a, err := s.Add(ctx, "owner", models.NewAddressInput{Label: "Home", Address: "1 Main St"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Delete(ctx, "intruder", a.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("foreign delete: %v", err)
	}
	if err := s.SetDefault(ctx, "intruder", a.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("foreign set default: %v", err)
	}
	if err := s.Delete(ctx, "owner", a.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if err := s.Delete(ctx, "owner", a.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("repeat delete: %v", err)
	}
}
