package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TierChange records a promotion or demotion. The history answers "which rate
// was active when this order was placed", so tier moves never reprice orders
// already placed.
type TierChange struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	PartnerID      uint            `gorm:"not null;index" json:"partner_id"`
	FromTier       string          `gorm:"size:20;not null" json:"from_tier"`
	ToTier         string          `gorm:"size:20;not null" json:"to_tier"`
	TrailingVolume decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"trailing_volume"`
	EffectiveAt    time.Time       `gorm:"not null;index" json:"effective_at"`
	CreatedAt      time.Time       `json:"created_at"`

	Partner Partner `gorm:"foreignKey:PartnerID" json:"-"`
}

func (TierChange) TableName() string { return "tier_changes" }
