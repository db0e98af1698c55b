package models

import "time"

const (
	TierFree    = "free"
	TierCreator = "creator"
	TierPro     = "pro"
)

type Profile struct {
	ID               string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	SubscriptionTier string    `gorm:"type:varchar(16);default:free" json:"subscription_tier"`
	Credits          int       `json:"credits"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}
