package repository

import (
	"partnerly/internal/domain"
	"partnerly/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PayoutRepository struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) GetByID(id uint) (*models.Payout, error) {
	var p models.Payout
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PayoutRepository) GetByReference(ref string) (*models.Payout, error) {
	var p models.Payout
	if err := r.db.Where("reference = ?", ref).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ReservedTx sums the partner's PENDING payouts inside the caller's
// transaction. Pending requests reserve balance before any ledger debit, so
// concurrent requests cannot double-withdraw; APPROVED payouts are excluded
// because their debit is already in the ledger.
func (r *PayoutRepository) ReservedTx(tx *gorm.DB, partnerID uint) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := tx.Model(&models.Payout{}).
		Where("partner_id = ? AND status = ?", partnerID, domain.PayoutPending).
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

func (r *PayoutRepository) UpdateProviderRef(id uint, providerRef string) error {
	return r.db.Model(&models.Payout{}).Where("id = ?", id).Update("provider_ref", providerRef).Error
}

func (r *PayoutRepository) List(partnerID uint, status string, limit, offset int) ([]models.Payout, int64, error) {
	q := r.db.Model(&models.Payout{})
	if partnerID != 0 {
		q = q.Where("partner_id = ?", partnerID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Payout
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}
