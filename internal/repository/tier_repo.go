package repository

import (
	"errors"
	"time"

	"partnerly/internal/domain"
	"partnerly/internal/models"

	"gorm.io/gorm"
)

type TierRepository struct {
	db *gorm.DB
}

func NewTierRepository(db *gorm.DB) *TierRepository {
	return &TierRepository{db: db}
}

func (r *TierRepository) Create(tc *models.TierChange) error {
	return r.db.Create(tc).Error
}

// TierAt returns the tier a partner held at the given instant, from the
// change history. Before the first recorded change the partner held the base
// tier. Commission rates are resolved with this so later tier moves never
// reprice orders already placed.
func (r *TierRepository) TierAt(partnerID uint, at time.Time) (domain.TierSpec, error) {
	var tc models.TierChange
	err := r.db.Where("partner_id = ? AND effective_at <= ?", partnerID, at).
		Order("effective_at DESC").
		First(&tc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.TierByName(domain.TierBronze), nil
	}
	if err != nil {
		return domain.TierSpec{}, err
	}
	return domain.TierByName(tc.ToTier), nil
}

func (r *TierRepository) ListByPartnerID(partnerID uint, limit int) ([]models.TierChange, error) {
	var list []models.TierChange
	err := r.db.Where("partner_id = ?", partnerID).
		Order("effective_at DESC").Limit(limit).
		Find(&list).Error
	return list, err
}
