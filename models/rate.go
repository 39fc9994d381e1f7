package models

import (
	"strings"
	"time"
)

// ScrapType is the closed set of material categories accepted for pickup and pricing.
type ScrapType string

const (
	ScrapNewspaper   ScrapType = "Newspaper"
	ScrapPaper       ScrapType = "Paper"
	ScrapCardboard   ScrapType = "Cardboard"
	ScrapPlastic     ScrapType = "Plastic"
	ScrapMetal       ScrapType = "Metal"
	ScrapGlass       ScrapType = "Glass"
	ScrapEWaste      ScrapType = "E-waste"
	ScrapElectronics ScrapType = "Electronics"
	ScrapMixed       ScrapType = "Mixed"
	ScrapOther       ScrapType = "Other"
)

// ScrapTypes lists every accepted category.
var ScrapTypes = []ScrapType{
	ScrapNewspaper,
	ScrapPaper,
	ScrapCardboard,
	ScrapPlastic,
	ScrapMetal,
	ScrapGlass,
	ScrapEWaste,
	ScrapElectronics,
	ScrapMixed,
	ScrapOther,
}

// ParseScrapType matches s case-insensitively, so "E-Waste" and "e-waste" both map to ScrapEWaste.
func ParseScrapType(s string) (ScrapType, bool) {
	s = strings.TrimSpace(s)
	for _, st := range ScrapTypes {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// RateEntry is the admin-controlled price for one scrap type.
type RateEntry struct {
	ScrapType     ScrapType `db:"scrap_type" json:"scrapType" yaml:"scrapType"`
	PricePerKg    float64   `db:"price_per_kg" json:"pricePerKg" yaml:"pricePerKg"`
	Description   string    `db:"description" json:"description" yaml:"description"`
	IsActive      bool      `db:"is_active" json:"isActive" yaml:"isActive"`
	LastUpdatedBy string    `db:"last_updated_by" json:"lastUpdatedBy" yaml:"-"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt" yaml:"-"`
}

// RateUpdate carries the fields an admin may change; nil fields are left as they are.
type RateUpdate struct {
	PricePerKg  *float64 `json:"pricePerKg" validate:"omitempty,gte=0"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
	IsActive    *bool    `json:"isActive"`
}
