// Package loyalty derives VIP progress from completed orders and keeps it current.
package loyalty

import (
	"math"

	"github.com/shopspring/decimal"

	"scrapPickup/models"
)

var progressPerOrder = decimal.RequireFromString("0.1")

// TierFor maps a progress fraction onto the accrual tiers. It never yields Platinum.
func TierFor(progress float64) models.Tier {
	switch {
	case progress >= 0.75:
		return models.TierGold
	case progress >= 0.5:
		return models.TierSilver
	case progress >= 0.25:
		return models.TierBronze
	}
	return models.TierNone
}

// Derive computes progress and tier for a completed-order count.
// Progress grows 0.1 per order and saturates at 1.0, which is still Gold.
func Derive(totalOrders int64) (float64, models.Tier) {
	if totalOrders < 0 {
		totalOrders = 0
	}
	p := decimal.NewFromInt(totalOrders).Mul(progressPerOrder)
	if p.GreaterThan(decimal.NewFromInt(1)) {
		p = decimal.NewFromInt(1)
	}
	f := p.InexactFloat64()
	return f, TierFor(f)
}

// Clamp bounds an override value to [0,1].
func Clamp(progress float64) float64 {
	switch {
	case progress < 0 || math.IsNaN(progress):
		return 0
	case progress > 1:
		return 1
	}
	return progress
}

// OverrideTier is the tier for an admin-set progress value. Platinum is only
// reachable here, at exactly 1.0.
func OverrideTier(progress float64) models.Tier {
	progress = Clamp(progress)
	if progress == 1 {
		return models.TierPlatinum
	}
	return TierFor(progress)
}
