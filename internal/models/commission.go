package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Commission is the earning computed for an attributed order once it becomes
// commission-eligible. Mutated only by status transitions.
type Commission struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	OrderID   string `gorm:"uniqueIndex;size:64;not null" json:"order_id"`
	PartnerID uint   `gorm:"not null;index" json:"partner_id"`

	// OrderAmount is the order's commissionable amount; kept for the tier
	// engine's trailing-volume query. PlacedAt is when the order was placed,
	// which fixes the rate regardless of later tier changes.
	OrderAmount decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"order_amount"`
	PlacedAt    time.Time       `gorm:"not null;index" json:"placed_at"`
	Rate        decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"rate"`
	Tier        string          `gorm:"size:20;not null" json:"tier"`

	GrossAmount decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"gross_amount"`
	TDSAmount   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"tds_amount"`
	NetAmount   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"net_amount"`

	Status      string     `gorm:"size:20;not null;index" json:"status"` // PENDING, APPROVED, PAID, CANCELLED
	ApprovedAt  *time.Time `json:"approved_at"`
	CancelledAt *time.Time `json:"cancelled_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Partner Partner `gorm:"foreignKey:PartnerID" json:"-"`
}

func (Commission) TableName() string { return "commissions" }
