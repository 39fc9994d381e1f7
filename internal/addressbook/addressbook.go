// Package addressbook manages a user's saved pickup addresses.
package addressbook

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"scrapPickup/internal/errs"
	"scrapPickup/internal/geo"
	"scrapPickup/internal/logging"
	"scrapPickup/internal/validate"
	"scrapPickup/models"
	"scrapPickup/repository"
)

type Service struct {
	addresses repository.AddressRepositoryI
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewService(addresses repository.AddressRepositoryI, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{addresses: addresses, log: log, now: time.Now}
}

// List returns the user's addresses with the default first.
func (s *Service) List(ctx context.Context, userID string) ([]models.Address, error) {
	return s.addresses.List(ctx, userID)
}

// Add saves a new address. Saving it as default demotes the previous default.
func (s *Service) Add(ctx context.Context, userID string, in models.NewAddressInput) (*models.Address, error) {
	in.Label = strings.TrimSpace(in.Label)
	in.Address = strings.TrimSpace(in.Address)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := geo.CheckPair(in.Latitude, in.Longitude); err != nil {
		return nil, errs.Validation(err.Error(), map[string]string{"latitude": err.Error()})
	}
	a := &models.Address{
		ID:        uuid.NewString(),
		UserID:    userID,
		Label:     in.Label,
		Address:   in.Address,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		IsDefault: in.IsDefault,
		CreatedAt: s.now().UTC(),
	}
	if err := s.addresses.Add(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errs.Conflict("another default address was saved concurrently; retry")
		}
		return nil, err
	}
	logging.WithContext(ctx, s.log).WithFields(logrus.Fields{"address_id": a.ID, "default": a.IsDefault}).Info("address added")
	return a, nil
}

// Delete removes an owned address. Foreign and missing ids look the same.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.addresses.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NotFound("address not found")
	}
	return nil
}

// SetDefault makes an owned address the only default.
func (s *Service) SetDefault(ctx context.Context, userID, id string) error {
	ok, err := s.addresses.SetDefault(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return errs.Conflict("default address changed concurrently; retry")
		}
		return err
	}
	if !ok {
		return errs.NotFound("address not found")
	}
	return nil
}
