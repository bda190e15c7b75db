package repository

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"partnerly/internal/models"

	"gorm.io/gorm"
)

type PartnerRepository struct {
	db *gorm.DB
}

func NewPartnerRepository(db *gorm.DB) *PartnerRepository {
	return &PartnerRepository{db: db}
}

// generateReferralCode returns an 8-character uppercase hex referral code.
func generateReferralCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// Create persists a new partner, assigning a unique referral code with
// collision retries.
func (r *PartnerRepository) Create(p *models.Partner) error {
	for i := 0; i < 10; i++ {
		code, err := generateReferralCode()
		if err != nil {
			return err
		}
		p.ReferralCode = code
		err = r.db.Create(p).Error
		if err == nil {
			return nil
		}
		// Only a referral code collision warrants a retry; duplicates on
		// email or customer_id are the caller's problem.
		if !isDuplicateKey(err) || !strings.Contains(err.Error(), "referral_code") {
			return err
		}
	}
	return fmt.Errorf("failed to generate a unique referral code after retries")
}

func isDuplicateKey(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}

func (r *PartnerRepository) GetByID(id uint) (*models.Partner, error) {
	var p models.Partner
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PartnerRepository) GetByEmail(email string) (*models.Partner, error) {
	var p models.Partner
	if err := r.db.Where("email = ?", email).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByReferralCode returns the partner owning a referral code, regardless of status.
func (r *PartnerRepository) GetByReferralCode(code string) (*models.Partner, error) {
	var p models.Partner
	if err := r.db.Where("referral_code = ?", code).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PartnerRepository) Update(p *models.Partner) error {
	return r.db.Save(p).Error
}

func (r *PartnerRepository) UpdateBankDetails(id uint, bankName, account, ifsc string) error {
	return r.db.Model(&models.Partner{}).Where("id = ?", id).Updates(map[string]interface{}{
		"bank_name":    bankName,
		"bank_account": account,
		"bank_ifsc":    ifsc,
	}).Error
}

func (r *PartnerRepository) SetKYC(id uint, status, docURL string) error {
	updates := map[string]interface{}{"kyc_status": status}
	if docURL != "" {
		updates["kyc_doc_url"] = docURL
	}
	return r.db.Model(&models.Partner{}).Where("id = ?", id).Updates(updates).Error
}

// ListActiveIDs returns the IDs of all active partners, for the tier sweep.
func (r *PartnerRepository) ListActiveIDs(status string) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Partner{}).Where("status = ? AND role = ?", status, "PARTNER").Pluck("id", &ids).Error
	return ids, err
}
