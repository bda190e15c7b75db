package repository

import (
	"time"

	"partnerly/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttributionRepository struct {
	db *gorm.DB
}

func NewAttributionRepository(db *gorm.DB) *AttributionRepository {
	return &AttributionRepository{db: db}
}

// UpsertTouch records the latest referral code captured for a customer.
// Last-touch: a newer capture overwrites the previous one.
func (r *AttributionRepository) UpsertTouch(customerID, code string, capturedAt time.Time) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"referral_code", "captured_at", "updated_at"}),
	}).Create(&models.ReferralTouch{
		CustomerID:   customerID,
		ReferralCode: code,
		CapturedAt:   capturedAt,
	}).Error
}

func (r *AttributionRepository) GetTouch(customerID string) (*models.ReferralTouch, error) {
	var t models.ReferralTouch
	if err := r.db.Where("customer_id = ?", customerID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *AttributionRepository) Create(a *models.Attribution) error {
	return r.db.Create(a).Error
}

func (r *AttributionRepository) GetByOrderID(orderID string) (*models.Attribution, error) {
	var a models.Attribution
	if err := r.db.Where("order_id = ?", orderID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttributionRepository) ListByPartnerID(partnerID uint, limit, offset int) ([]models.Attribution, error) {
	var list []models.Attribution
	err := r.db.Where("partner_id = ?", partnerID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}
