// Package rates manages the per-material price table and price estimates.
package rates

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"scrapPickup/internal/errs"
	"scrapPickup/internal/logging"
	"scrapPickup/internal/validate"
	"scrapPickup/models"
	"scrapPickup/repository"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Defaults returns the seed rate table shipped with the binary.
func Defaults() ([]models.RateEntry, error) {
	var doc struct {
		Rates []models.RateEntry `yaml:"rates"`
	}
	if err := yaml.Unmarshal(defaultsYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse default rates: %w", err)
	}
	for i, r := range doc.Rates {
		st, ok := models.ParseScrapType(string(r.ScrapType))
		if !ok {
			return nil, fmt.Errorf("default rate %d: unknown scrap type %q", i, r.ScrapType)
		}
		doc.Rates[i].ScrapType = st
	}
	return doc.Rates, nil
}

type Service struct {
	rates repository.RateRepositoryI
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewService(rates repository.RateRepositoryI, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{rates: rates, log: log, now: time.Now}
}

func parseType(raw string) (models.ScrapType, error) {
	st, ok := models.ParseScrapType(raw)
	if !ok {
		return "", errs.Validation(fmt.Sprintf("unknown scrap type %q", raw), map[string]string{"scrapType": "must be a known scrap type"})
	}
	return st, nil
}

// List returns rates sorted by scrap type. Public callers pass activeOnly.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]models.RateEntry, error) {
	return s.rates.List(ctx, activeOnly)
}

// Upsert creates the rate for scrapType or applies the supplied fields to it.
// Creating a rate requires a price.
func (s *Service) Upsert(ctx context.Context, scrapType string, u models.RateUpdate, editorID string) (*models.RateEntry, error) {
	st, err := parseType(scrapType)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(u); err != nil {
		return nil, err
	}
	if u.PricePerKg == nil && u.Description == nil && u.IsActive == nil {
		return nil, errs.Validation("nothing to update", nil)
	}
	if u.PricePerKg != nil && (math.IsNaN(*u.PricePerKg) || math.IsInf(*u.PricePerKg, 0)) {
		return nil, errs.Validation("pricePerKg must be a number", map[string]string{"pricePerKg": "must be a number"})
	}
	if u.PricePerKg == nil {
		existing, err := s.rates.Get(ctx, st)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, errs.Validation("pricePerKg is required for a new rate", map[string]string{"pricePerKg": "is required"})
		}
	}
	e, err := s.rates.Upsert(ctx, st, u, editorID, s.now())
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, s.log).WithFields(logrus.Fields{"scrap_type": st, "price_per_kg": e.PricePerKg, "active": e.IsActive}).Info("rate updated")
	return e, nil
}

// InitResult reports a seeding run.
type InitResult struct {
	Created int                `json:"created"`
	Rates   []models.RateEntry `json:"rates"`
}

// Initialize seeds the default table without overwriting existing entries and
// returns every default type as now stored.
func (s *Service) Initialize(ctx context.Context, editorID string) (*InitResult, error) {
	defaults, err := Defaults()
	if err != nil {
		return nil, err
	}
	out := &InitResult{Rates: make([]models.RateEntry, 0, len(defaults))}
	now := s.now()
	for i := range defaults {
		e := defaults[i]
		e.LastUpdatedBy = editorID
		e.UpdatedAt = now
		created, err := s.rates.InsertIfAbsent(ctx, &e)
		if err != nil {
			return nil, err
		}
		if created {
			out.Created++
		}
		stored, err := s.rates.Get(ctx, e.ScrapType)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			out.Rates = append(out.Rates, *stored)
		}
	}
	logging.WithContext(ctx, s.log).WithField("created", out.Created).Info("default rates initialized")
	return out, nil
}

// Quote is a price estimate for a given weight of one material.
type Quote struct {
	ScrapType      models.ScrapType `json:"scrapType"`
	Weight         float64          `json:"weight"`
	PricePerKg     float64          `json:"pricePerKg"`
	EstimatedPrice float64          `json:"estimatedPrice"`
}

// Estimate prices weight kilograms at the active rate, rounded to 2 decimals.
func (s *Service) Estimate(ctx context.Context, scrapType string, weight float64) (*Quote, error) {
	st, err := parseType(scrapType)
	if err != nil {
		return nil, err
	}
	if !(weight > 0) || math.IsInf(weight, 0) {
		return nil, errs.Validation("weight must be greater than 0", map[string]string{"weight": "must be greater than 0"})
	}
	e, err := s.rates.Get(ctx, st)
	if err != nil {
		return nil, err
	}
	if e == nil || !e.IsActive {
		return nil, errs.NotFound(fmt.Sprintf("no active rate for %s", st))
	}
	price := decimal.NewFromFloat(e.PricePerKg).Mul(decimal.NewFromFloat(weight)).Round(2)
	return &Quote{
		ScrapType:      st,
		Weight:         weight,
		PricePerKg:     e.PricePerKg,
		EstimatedPrice: price.InexactFloat64(),
	}, nil
}
