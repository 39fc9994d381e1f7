// Package geo validates WGS84 coordinates attached to pickups and saved addresses.
package geo

import (
	"errors"
	"math"
)

const (
	MaxLatitude  = 90.0
	MaxLongitude = 180.0
)

// ErrHalfCoordinate is returned when only one of latitude/longitude is supplied.
var ErrHalfCoordinate = errors.New("latitude and longitude must be provided together")

// ValidLatitude reports whether lat is a finite value in [-90, 90].
func ValidLatitude(lat float64) bool {
	return !math.IsNaN(lat) && !math.IsInf(lat, 0) && math.Abs(lat) <= MaxLatitude
}

// ValidLongitude reports whether lng is a finite value in [-180, 180].
func ValidLongitude(lng float64) bool {
	return !math.IsNaN(lng) && !math.IsInf(lng, 0) && math.Abs(lng) <= MaxLongitude
}

// CheckPair accepts either no coordinates or a complete, in-range pair.
func CheckPair(lat, lng *float64) error {
	switch {
	case lat == nil && lng == nil:
		return nil
	case lat == nil || lng == nil:
		return ErrHalfCoordinate
	}
	if !ValidLatitude(*lat) {
		return errors.New("latitude out of range")
	}
	if !ValidLongitude(*lng) {
		return errors.New("longitude out of range")
	}
	return nil
}
