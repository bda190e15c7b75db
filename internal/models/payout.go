package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payout is a partner withdrawal request. PENDING reserves funds without
// touching the ledger; the debit happens at approval. PAID, FAILED and
// CANCELLED are terminal.
type Payout struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	PartnerID uint            `gorm:"not null;index" json:"partner_id"`
	Reference string          `gorm:"uniqueIndex;size:64;not null" json:"reference"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`

	Status        string `gorm:"size:20;not null;index" json:"status"` // PENDING, APPROVED, PAID, FAILED, CANCELLED
	ProviderRef   string `gorm:"size:128" json:"provider_ref"`
	SettlementRef string `gorm:"size:128" json:"settlement_ref"`
	FailureReason string `gorm:"size:255" json:"failure_reason"`

	ApprovedAt *time.Time `json:"approved_at"`
	SettledAt  *time.Time `json:"settled_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Partner Partner `gorm:"foreignKey:PartnerID" json:"-"`
}

func (Payout) TableName() string { return "payouts" }
