package models

import "time"

// Subscription tiers known to the priority resolver. Anything else, including
// an empty tier, is treated as the free tier.
const (
	TierAgency  = "agency"
	TierPro     = "pro"
	TierStarter = "starter"
	TierFree    = "free"
)

// User owns one or more sites
type User struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Email     string    `gorm:"size:255" json:"email"`
	Tier      string    `gorm:"size:40" json:"tier"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
