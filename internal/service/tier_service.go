package service

import (
	"context"
	"log"
	"time"

	"partnerly/internal/domain"
	"partnerly/internal/models"
	"partnerly/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	defaultTierWindowDays   = 90
	defaultDemotionGrace    = "0.10"
	demotionStrikesToDemote = 2
)

// TierService assigns commission tiers from trailing order volume. Promotion
// is immediate; demotion needs two consecutive under-threshold evaluations
// (hysteresis) so short volume dips don't flap the tier. Changes never
// reprice already-placed orders.
type TierService struct {
	partnerRepo    *repository.PartnerRepository
	commissionRepo *repository.CommissionRepository
	tierRepo       *repository.TierRepository
	settingRepo    *repository.SettingRepository
}

func NewTierService(
	partnerRepo *repository.PartnerRepository,
	commissionRepo *repository.CommissionRepository,
	tierRepo *repository.TierRepository,
	settingRepo *repository.SettingRepository,
) *TierService {
	return &TierService{
		partnerRepo:    partnerRepo,
		commissionRepo: commissionRepo,
		tierRepo:       tierRepo,
		settingRepo:    settingRepo,
	}
}

// TrailingVolume returns the partner's gross order value over the rolling window.
func (s *TierService) TrailingVolume(partnerID uint, now time.Time) (decimal.Decimal, error) {
	days := s.settingRepo.GetInt(domain.SettingTierWindowDays, defaultTierWindowDays)
	return s.commissionRepo.TrailingVolume(partnerID, now.AddDate(0, 0, -days))
}

// Reevaluate recomputes the partner's tier. Returns the recorded change, or
// nil when the tier held.
func (s *TierService) Reevaluate(partnerID uint) (*models.TierChange, error) {
	partner, err := s.partnerRepo.GetByID(partnerID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	volume, err := s.TrailingVolume(partnerID, now)
	if err != nil {
		return nil, err
	}

	currentRank := domain.TierRank(partner.Tier)
	targetRank := 0
	for i, t := range domain.Tiers {
		if volume.GreaterThanOrEqual(t.MinVolume) {
			targetRank = i
		}
	}

	switch {
	case targetRank > currentRank:
		// Promotion is immediate on crossing the threshold.
		return s.record(partner, domain.Tiers[targetRank].Name, volume, now)

	case targetRank < currentRank:
		grace := s.settingRepo.GetDecimal(domain.SettingTierDemotionGrace, decimal.RequireFromString(defaultDemotionGrace))
		holdLine := domain.Tiers[currentRank].MinVolume.Mul(decimal.NewFromInt(1).Sub(grace))
		if volume.GreaterThanOrEqual(holdLine) {
			// Inside the grace margin: the tier holds and strikes reset.
			return nil, s.resetStrikes(partner)
		}
		partner.DemotionStrikes++
		if partner.DemotionStrikes < demotionStrikesToDemote {
			return nil, s.partnerRepo.Update(partner)
		}
		// Two consecutive strikes: demote one tier.
		return s.record(partner, domain.Tiers[currentRank-1].Name, volume, now)

	default:
		return nil, s.resetStrikes(partner)
	}
}

func (s *TierService) resetStrikes(partner *models.Partner) error {
	if partner.DemotionStrikes == 0 {
		return nil
	}
	partner.DemotionStrikes = 0
	return s.partnerRepo.Update(partner)
}

func (s *TierService) record(partner *models.Partner, toTier string, volume decimal.Decimal, now time.Time) (*models.TierChange, error) {
	tc := &models.TierChange{
		PartnerID:      partner.ID,
		FromTier:       partner.Tier,
		ToTier:         toTier,
		TrailingVolume: volume,
		EffectiveAt:    now,
	}
	if err := s.tierRepo.Create(tc); err != nil {
		return nil, err
	}
	log.Printf("[tier] partner %d %s -> %s (trailing volume %s)", partner.ID, partner.Tier, toTier, volume.String())
	partner.Tier = toTier
	partner.DemotionStrikes = 0
	if err := s.partnerRepo.Update(partner); err != nil {
		return nil, err
	}
	return tc, nil
}

// RunSweeper re-evaluates every active partner on a fixed interval, the
// once-per-day batch pass independent of request handling.
func (s *TierService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("[tier] sweeper started, interval %s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[tier] sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce runs a single batch evaluation over all active partners.
func (s *TierService) SweepOnce() {
	ids, err := s.partnerRepo.ListActiveIDs(domain.PartnerActive)
	if err != nil {
		log.Printf("[tier] sweep list partners: %v", err)
		return
	}
	for _, id := range ids {
		if _, err := s.Reevaluate(id); err != nil {
			// Tier evaluation degrades gracefully: the tier stays unchanged.
			log.Printf("[tier] reevaluate partner %d: %v", id, err)
		}
	}
}
