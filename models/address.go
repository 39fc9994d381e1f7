package models

import "time"

// Address is a saved pickup location. At most one per user has IsDefault set.
type Address struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Label     string    `db:"label" json:"label"`
	Address   string    `db:"address" json:"address"`
	Latitude  *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64  `db:"longitude" json:"longitude,omitempty"`
	IsDefault bool      `db:"is_default" json:"isDefault"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewAddressInput is the schema for saving an address.
type NewAddressInput struct {
	Label     string   `json:"label" validate:"required,max=60"`
	Address   string   `json:"address" validate:"required,max=500"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,lat"`
	Longitude *float64 `json:"longitude" validate:"omitempty,lng"`
	IsDefault bool     `json:"isDefault"`
}
