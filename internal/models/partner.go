package models

import (
	"time"

	"partnerly/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Partner struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"size:120;not null" json:"name"`
	Email        string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string `gorm:"size:255" json:"-"`
	Role         string `gorm:"size:20;not null;index;default:'PARTNER'" json:"role"` // PARTNER | ADMIN
	// CustomerID is the partner's identity on the commerce side, used for the
	// self-referral check at attribution time.
	CustomerID   string `gorm:"uniqueIndex;size:64" json:"customer_id"`
	ReferralCode string `gorm:"uniqueIndex;size:20;not null" json:"referral_code"`

	Tier            string `gorm:"size:20;not null;index;default:'BRONZE'" json:"tier"`
	DemotionStrikes int    `gorm:"not null;default:0" json:"-"` // consecutive under-threshold evaluations

	Status    string `gorm:"size:20;not null;index;default:'ACTIVE'" json:"status"` // ACTIVE, SUSPENDED, BLOCKED
	KYCStatus string `gorm:"size:20;not null;index;default:'PENDING'" json:"kyc_status"`
	KYCDocURL string `gorm:"size:512" json:"-"`

	// Bank details are required only to request a payout.
	BankName    string `gorm:"size:120" json:"bank_name"`
	BankAccount string `gorm:"size:40" json:"bank_account"`
	BankIFSC    string `gorm:"size:20" json:"bank_ifsc"`

	// WalletBalance is a cached projection of the ledger sum, maintained in the
	// same transaction as every ledger append. The ledger is the record of truth.
	WalletBalance decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"wallet_balance"`
	// PayoutsHalted is set when reconciliation finds the cache diverged from the
	// ledger sum; cleared only by an operator resolving the mismatch.
	PayoutsHalted bool `gorm:"not null;default:false" json:"payouts_halted"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Partner) TableName() string { return "partners" }

func (p *Partner) IsActive() bool { return p.Status == domain.PartnerActive }

func (p *Partner) HasBankDetails() bool {
	return p.BankName != "" && p.BankAccount != "" && p.BankIFSC != ""
}
