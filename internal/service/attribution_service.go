package service

import (
	"errors"
	"log"
	"time"

	"partnerly/internal/domain"
	"partnerly/internal/models"
	"partnerly/internal/repository"

	"gorm.io/gorm"
)

const defaultAttributionWindowDays = 7

// AttributionService resolves referral codes into partner identities and
// stamps orders. Every failure path is a silent no-op: the buyer-facing
// checkout flow is never blocked by attribution.
type AttributionService struct {
	attributionRepo *repository.AttributionRepository
	partnerRepo     *repository.PartnerRepository
	settingRepo     *repository.SettingRepository
}

func NewAttributionService(
	attributionRepo *repository.AttributionRepository,
	partnerRepo *repository.PartnerRepository,
	settingRepo *repository.SettingRepository,
) *AttributionService {
	return &AttributionService{
		attributionRepo: attributionRepo,
		partnerRepo:     partnerRepo,
		settingRepo:     settingRepo,
	}
}

// CaptureTouch records a referral code seen during a customer session.
// Last-touch: a later capture for the same customer overwrites the earlier one.
func (s *AttributionService) CaptureTouch(customerID, code string, capturedAt time.Time) error {
	if customerID == "" || code == "" {
		return nil
	}
	return s.attributionRepo.UpsertTouch(customerID, code, capturedAt)
}

// Attribute resolves the referral for an order and writes the Attribution
// row. asOf is the order event timestamp the attribution window is measured
// against. When referralCode is empty the customer's latest captured touch is
// used. Returns (nil, nil) when the order proceeds unattributed; the reason
// is logged, never surfaced. Idempotent: an existing attribution is returned
// as-is.
func (s *AttributionService) Attribute(orderID, customerID, referralCode string, capturedAt, asOf time.Time) (*models.Attribution, error) {
	if existing, err := s.attributionRepo.GetByOrderID(orderID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if referralCode == "" {
		touch, err := s.attributionRepo.GetTouch(customerID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		referralCode = touch.ReferralCode
		capturedAt = touch.CapturedAt
	}

	partner, err := s.partnerRepo.GetByReferralCode(referralCode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[attribution] order %s: %v (code=%s)", orderID, domain.ErrUnknownReferralCode, referralCode)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !partner.IsActive() {
		log.Printf("[attribution] order %s: partner %d not active", orderID, partner.ID)
		return nil, nil
	}
	if partner.CustomerID != "" && partner.CustomerID == customerID {
		log.Printf("[attribution] order %s: %v (partner=%d)", orderID, domain.ErrSelfReferral, partner.ID)
		return nil, nil
	}

	window := time.Duration(s.settingRepo.GetInt(domain.SettingAttributionWindow, defaultAttributionWindowDays)) * 24 * time.Hour
	if asOf.Sub(capturedAt) > window {
		log.Printf("[attribution] order %s: %v (captured=%s asOf=%s)", orderID, domain.ErrAttributionExpired,
			capturedAt.Format(time.RFC3339), asOf.Format(time.RFC3339))
		return nil, nil
	}

	a := &models.Attribution{
		OrderID:      orderID,
		PartnerID:    partner.ID,
		ReferralCode: referralCode,
		CustomerID:   customerID,
		CapturedAt:   capturedAt,
	}
	if err := s.attributionRepo.Create(a); err != nil {
		// Unique order_id: a concurrent retry won the race, return its row.
		if existing, gerr := s.attributionRepo.GetByOrderID(orderID); gerr == nil {
			return existing, nil
		}
		return nil, err
	}
	return a, nil
}
