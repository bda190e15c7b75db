package repository

import (
	"errors"
	"log"
	"strings"
	"time"

	"partnerly/internal/domain"
	"partnerly/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maxLockAttempts = 3
	lockRetryDelay  = 50 * time.Millisecond
)

// LedgerRepository owns the append-only ledger. Every balance-affecting write
// goes through WithPartnerLock so appends for one partner never interleave.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// WithPartnerLock runs fn inside a transaction holding a row lock on the
// partner, the single-writer-per-partner discipline for ledger appends.
// Lock contention is retried with backoff and surfaces as ConcurrencyConflict
// rather than blocking indefinitely.
func (r *LedgerRepository) WithPartnerLock(partnerID uint, fn func(tx *gorm.DB, partner *models.Partner) error) error {
	var lastErr error
	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		err := r.db.Transaction(func(tx *gorm.DB) error {
			q := tx
			if tx.Dialector.Name() == "mysql" {
				q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
			}
			var p models.Partner
			if err := q.First(&p, partnerID).Error; err != nil {
				return err
			}
			return fn(tx, &p)
		})
		if err == nil {
			return nil
		}
		if !isLockConflict(err) {
			return err
		}
		lastErr = err
		time.Sleep(time.Duration(attempt+1) * lockRetryDelay)
	}
	log.Printf("[ledger] lock contention for partner %d after %d attempts: %v", partnerID, maxLockAttempts, lastErr)
	return domain.ErrConcurrencyConflict
}

func isLockConflict(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Deadlock found") ||
		strings.Contains(msg, "Lock wait timeout") ||
		strings.Contains(msg, "database is locked")
}

// AppendTx appends one signed entry for the partner inside the caller's
// transaction (which must hold the partner lock). The per-partner sequence and
// the cached wallet balance are advanced in the same transaction.
func (r *LedgerRepository) AppendTx(tx *gorm.DB, partner *models.Partner, amount decimal.Decimal, reason, refType string, refID uint) (*models.LedgerEntry, error) {
	var last models.LedgerEntry
	seq := uint(1)
	err := tx.Where("partner_id = ?", partner.ID).Order("seq DESC").First(&last).Error
	if err == nil {
		seq = last.Seq + 1
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	balance := partner.WalletBalance.Add(amount)
	entry := &models.LedgerEntry{
		PartnerID:    partner.ID,
		Seq:          seq,
		Amount:       amount,
		Reason:       reason,
		RefType:      refType,
		RefID:        refID,
		BalanceAfter: balance,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&models.Partner{}).Where("id = ?", partner.ID).
		Update("wallet_balance", balance).Error; err != nil {
		return nil, err
	}
	partner.WalletBalance = balance
	return entry, nil
}

// Balance recomputes the true balance as the sum of all entries.
func (r *LedgerRepository) Balance(partnerID uint) (decimal.Decimal, error) {
	return r.sumTx(r.db, partnerID)
}

func (r *LedgerRepository) sumTx(tx *gorm.DB, partnerID uint) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := tx.Model(&models.LedgerEntry{}).
		Where("partner_id = ?", partnerID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// VerifyTx checks the cached balance against the ledger sum inside the
// caller's locked transaction. On divergence it halts the partner's payouts
// and reports ReconciliationMismatch; no money may move until an operator
// resolves it.
func (r *LedgerRepository) VerifyTx(tx *gorm.DB, partner *models.Partner) error {
	sum, err := r.sumTx(tx, partner.ID)
	if err != nil {
		return err
	}
	if sum.Equal(partner.WalletBalance) {
		return nil
	}
	log.Printf("[ledger] reconciliation mismatch for partner %d: cache=%s sum=%s",
		partner.ID, partner.WalletBalance.String(), sum.String())
	if err := tx.Model(&models.Partner{}).Where("id = ?", partner.ID).
		Update("payouts_halted", true).Error; err != nil {
		return err
	}
	return domain.ErrReconciliationMismatch
}

// Resolve re-derives the cached balance from the ledger sum and lifts the
// payout halt. Operator action only.
func (r *LedgerRepository) Resolve(partnerID uint) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.WithPartnerLock(partnerID, func(tx *gorm.DB, p *models.Partner) error {
		sum, err := r.sumTx(tx, partnerID)
		if err != nil {
			return err
		}
		balance = sum
		return tx.Model(&models.Partner{}).Where("id = ?", partnerID).
			Updates(map[string]interface{}{"wallet_balance": sum, "payouts_halted": false}).Error
	})
	return balance, err
}

// List returns a partner's ledger entries newest first.
func (r *LedgerRepository) List(partnerID uint, limit, offset int) ([]models.LedgerEntry, int64, error) {
	q := r.db.Model(&models.LedgerEntry{}).Where("partner_id = ?", partnerID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.LedgerEntry
	err := q.Order("seq DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}
