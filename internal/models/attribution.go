package models

import (
	"time"

	"gorm.io/gorm"
)

// ReferralTouch records the most recent referral code captured for a customer
// session. Attribution is last-touch: each capture overwrites the previous one
// until an order is finalized.
type ReferralTouch struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CustomerID   string    `gorm:"uniqueIndex;size:64;not null" json:"customer_id"`
	ReferralCode string    `gorm:"size:20;not null" json:"referral_code"`
	CapturedAt   time.Time `gorm:"not null" json:"captured_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (ReferralTouch) TableName() string { return "referral_touches" }

// Attribution links an order to the partner who referred it. At most one row
// per order; immutable once written.
type Attribution struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OrderID      string    `gorm:"uniqueIndex;size:64;not null" json:"order_id"`
	PartnerID    uint      `gorm:"not null;index" json:"partner_id"`
	ReferralCode string    `gorm:"size:20;not null" json:"referral_code"`
	CustomerID   string    `gorm:"size:64;index" json:"customer_id"`
	CapturedAt   time.Time `gorm:"not null" json:"captured_at"`
	CreatedAt    time.Time `json:"created_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	Partner Partner `gorm:"foreignKey:PartnerID" json:"-"`
}

func (Attribution) TableName() string { return "attributions" }
