package repository

import (
	"time"

	"partnerly/internal/domain"
	"partnerly/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CommissionRepository struct {
	db *gorm.DB
}

func NewCommissionRepository(db *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

func (r *CommissionRepository) GetByOrderID(orderID string) (*models.Commission, error) {
	var c models.Commission
	if err := r.db.Where("order_id = ?", orderID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommissionRepository) GetByID(id uint) (*models.Commission, error) {
	var c models.Commission
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns a partner's commissions newest first, optionally filtered by status.
func (r *CommissionRepository) List(partnerID uint, status string, limit, offset int) ([]models.Commission, int64, error) {
	q := r.db.Model(&models.Commission{}).Where("partner_id = ?", partnerID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Commission
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

// TrailingVolume sums the gross order value of a partner's approved (or paid)
// commissions for orders placed after the cutoff. Feeds the tier engine.
func (r *CommissionRepository) TrailingVolume(partnerID uint, since time.Time) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.Model(&models.Commission{}).
		Where("partner_id = ? AND status IN ? AND placed_at >= ?",
			partnerID, []string{domain.CommissionApproved, domain.CommissionPaid}, since).
		Select("COALESCE(SUM(order_amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// EarningsSince sums net amounts credited to a partner since the cutoff
// (dashboard "this period" figure).
func (r *CommissionRepository) EarningsSince(partnerID uint, since time.Time) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.Model(&models.Commission{}).
		Where("partner_id = ? AND status IN ? AND created_at >= ?",
			partnerID, []string{domain.CommissionApproved, domain.CommissionPaid}, since).
		Select("COALESCE(SUM(net_amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}
