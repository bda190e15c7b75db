package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one signed balance movement for a partner. Append-only:
// entries are never updated or deleted, and compensation is always a new
// entry. Seq is a per-partner monotonic sequence; (partner_id, seq) is unique.
type LedgerEntry struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	PartnerID uint            `gorm:"not null;index:idx_ledger_partner_seq,unique" json:"partner_id"`
	Seq       uint            `gorm:"not null;index:idx_ledger_partner_seq,unique" json:"seq"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"` // positive = credit, negative = debit
	Reason    string          `gorm:"size:30;not null;index" json:"reason"`
	RefType   string          `gorm:"size:20;not null" json:"ref_type"` // COMMISSION | PAYOUT
	RefID     uint            `gorm:"not null;index" json:"ref_id"`
	// BalanceAfter is the running sum after this entry, written in the same
	// transaction. A cache for reads; the sum of amounts is the truth.
	BalanceAfter decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`

	Partner Partner `gorm:"foreignKey:PartnerID" json:"-"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }
