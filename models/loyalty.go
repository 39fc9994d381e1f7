package models

import "time"

// Tier is the ordered loyalty classification.
type Tier string

const (
	TierNone     Tier = "None"
	TierBronze   Tier = "Bronze"
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
)

var tierRank = map[Tier]int{
	TierNone:     0,
	TierBronze:   1,
	TierSilver:   2,
	TierGold:     3,
	TierPlatinum: 4,
}

// Rank orders tiers: None < Bronze < Silver < Gold < Platinum. Unknown tiers rank -1.
func (t Tier) Rank() int {
	if r, ok := tierRank[t]; ok {
		return r
	}
	return -1
}

// LoyaltyProgress holds one user's accumulators and the tier derived from them.
type LoyaltyProgress struct {
	UserID        string    `db:"user_id" json:"userId"`
	TotalOrders   int64     `db:"total_orders" json:"totalOrders"`
	TotalEarnings float64   `db:"total_earnings" json:"totalEarnings"`
	Progress      float64   `db:"progress" json:"vipProgress"`
	Tier          Tier      `db:"tier" json:"vipLevel"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}
