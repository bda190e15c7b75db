package service

import (
	"errors"
	"log"
	"time"

	"partnerly/internal/domain"
	"partnerly/internal/models"
	"partnerly/internal/repository"
	"partnerly/internal/ws"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const defaultTDSRate = "0.05"

// OrderEvent is the normalized order lifecycle event consumed from the order
// subsystem (at-least-once delivery).
type OrderEvent struct {
	OrderID         string
	CustomerID      string
	PartnerEligible bool
	Amount          decimal.Decimal // commissionable amount: total minus shipping, taxes, excluded items
	PlacedAt        time.Time
	OccurredAt      time.Time
	HighRisk        bool
	ReferralCode    string // set when the checkout collaborator forwarded a code with the event
	CapturedAt      time.Time
}

// CommissionService turns completed attributed orders into tax-withheld
// ledger credits, and reverses them when orders are cancelled or returned.
type CommissionService struct {
	commissionRepo *repository.CommissionRepository
	ledgerRepo     *repository.LedgerRepository
	tierRepo       *repository.TierRepository
	settingRepo    *repository.SettingRepository
	hub            *ws.Hub
}

func NewCommissionService(
	commissionRepo *repository.CommissionRepository,
	ledgerRepo *repository.LedgerRepository,
	tierRepo *repository.TierRepository,
	settingRepo *repository.SettingRepository,
	hub *ws.Hub,
) *CommissionService {
	return &CommissionService{
		commissionRepo: commissionRepo,
		ledgerRepo:     ledgerRepo,
		tierRepo:       tierRepo,
		settingRepo:    settingRepo,
		hub:            hub,
	}
}

// Compute creates the commission for a completed order. The rate is the one
// the partner held when the order was placed; gross, withholding and net are
// rounded half-even to 2 places. In the default flow the ledger credit and
// the APPROVED transition happen in the same transaction; high-risk orders
// stay PENDING for manual approval. Idempotent per order.
func (s *CommissionService) Compute(attribution *models.Attribution, ev OrderEvent) (*models.Commission, error) {
	if existing, err := s.commissionRepo.GetByOrderID(ev.OrderID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tier, err := s.tierRepo.TierAt(attribution.PartnerID, ev.PlacedAt)
	if err != nil {
		return nil, err
	}
	tdsRate := s.settingRepo.GetDecimal(domain.SettingTDSRate, decimal.RequireFromString(defaultTDSRate))

	gross := ev.Amount.Mul(tier.Rate).RoundBank(2)
	tds := gross.Mul(tdsRate).RoundBank(2)
	net := gross.Sub(tds)

	hold := ev.HighRisk && s.settingRepo.GetInt(domain.SettingHighRiskAutoHold, 1) == 1

	commission := &models.Commission{
		OrderID:     ev.OrderID,
		PartnerID:   attribution.PartnerID,
		OrderAmount: ev.Amount,
		PlacedAt:    ev.PlacedAt,
		Rate:        tier.Rate,
		Tier:        tier.Name,
		GrossAmount: gross,
		TDSAmount:   tds,
		NetAmount:   net,
		Status:      domain.CommissionPending,
	}

	err = s.ledgerRepo.WithPartnerLock(attribution.PartnerID, func(tx *gorm.DB, partner *models.Partner) error {
		if err := tx.Create(commission).Error; err != nil {
			return err
		}
		if hold {
			return nil
		}
		return s.approveTx(tx, partner, commission)
	})
	if err != nil {
		// Unique order_id: a redelivered event lost the race.
		if existing, gerr := s.commissionRepo.GetByOrderID(ev.OrderID); gerr == nil {
			return existing, nil
		}
		return nil, err
	}
	if hold {
		log.Printf("[commission] order %s held for review (high risk), gross=%s", ev.OrderID, gross.String())
	} else {
		s.notifyCredit(commission)
	}
	return commission, nil
}

func (s *CommissionService) approveTx(tx *gorm.DB, partner *models.Partner, c *models.Commission) error {
	if _, err := s.ledgerRepo.AppendTx(tx, partner, c.NetAmount, domain.ReasonCommissionCredit, domain.RefCommission, c.ID); err != nil {
		return err
	}
	now := time.Now()
	return tx.Model(c).Updates(map[string]interface{}{
		"status":      domain.CommissionApproved,
		"approved_at": now,
	}).Error
}

// Approve releases a held commission: credits the ledger and moves it to
// APPROVED in one transaction. No-op when already approved; cancelled
// commissions cannot be approved.
func (s *CommissionService) Approve(commissionID uint) (*models.Commission, error) {
	c, err := s.commissionRepo.GetByID(commissionID)
	if err != nil {
		return nil, err
	}
	switch c.Status {
	case domain.CommissionApproved, domain.CommissionPaid:
		return c, nil
	case domain.CommissionCancelled:
		return nil, domain.ErrInvalidStateTransition
	}
	err = s.ledgerRepo.WithPartnerLock(c.PartnerID, func(tx *gorm.DB, partner *models.Partner) error {
		var fresh models.Commission
		if err := tx.First(&fresh, c.ID).Error; err != nil {
			return err
		}
		switch fresh.Status {
		case domain.CommissionApproved, domain.CommissionPaid:
			c.Status = fresh.Status
			return nil // replayed approval already landed
		case domain.CommissionCancelled:
			return domain.ErrInvalidStateTransition
		}
		return s.approveTx(tx, partner, c)
	})
	if err != nil {
		return nil, err
	}
	s.notifyCredit(c)
	return c, nil
}

// Reverse cancels the commission for a cancelled/returned order. An approved
// commission gets a compensating negative entry equal to the original credit,
// in the same transaction as the CANCELLED transition; the original entry is
// never mutated. The balance may go negative; that blocks payouts, not
// bookkeeping. Idempotent per order.
func (s *CommissionService) Reverse(orderID string) (*models.Commission, error) {
	c, err := s.commissionRepo.GetByOrderID(orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[commission] reversal for order %s: no commission on file", orderID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if c.Status == domain.CommissionCancelled {
		return c, nil
	}
	var credited bool
	err = s.ledgerRepo.WithPartnerLock(c.PartnerID, func(tx *gorm.DB, partner *models.Partner) error {
		var err error
		credited, err = s.reverseTx(tx, partner, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[commission] order %s reversed, net=%s credited=%v", orderID, c.NetAmount.String(), credited)
	if s.hub != nil && credited {
		s.hub.BroadcastToPartner(c.PartnerID, map[string]interface{}{
			"type":       "commission.reversed",
			"order_id":   c.OrderID,
			"net_amount": c.NetAmount,
		})
	}
	return c, nil
}

// reverseTx cancels the commission inside the caller's locked transaction.
// The fresh row decides everything: a redelivered reversal that lost the race
// to another worker finds CANCELLED and appends nothing, and the compensating
// entry is only written when the credit had actually landed.
func (s *CommissionService) reverseTx(tx *gorm.DB, partner *models.Partner, c *models.Commission) (credited bool, err error) {
	var fresh models.Commission
	if err := tx.First(&fresh, c.ID).Error; err != nil {
		return false, err
	}
	if fresh.Status == domain.CommissionCancelled {
		*c = fresh
		return false, nil
	}
	credited = fresh.Status == domain.CommissionApproved || fresh.Status == domain.CommissionPaid
	if credited {
		if _, err := s.ledgerRepo.AppendTx(tx, partner, c.NetAmount.Neg(), domain.ReasonCommissionReversal, domain.RefCommission, c.ID); err != nil {
			return false, err
		}
	}
	now := time.Now()
	return credited, tx.Model(c).Updates(map[string]interface{}{
		"status":       domain.CommissionCancelled,
		"cancelled_at": now,
	}).Error
}

func (s *CommissionService) notifyCredit(c *models.Commission) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToPartner(c.PartnerID, map[string]interface{}{
		"type":       "commission.credited",
		"order_id":   c.OrderID,
		"net_amount": c.NetAmount,
	})
}
