package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"partnerly/internal/domain"
	"partnerly/internal/models"
	"partnerly/internal/repository"
	"partnerly/internal/ws"
	"partnerly/pkg/settlement"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayoutService drives withdrawal requests through
// PENDING -> APPROVED -> PAID | FAILED, or PENDING -> CANCELLED.
// The ledger debit happens at approval, inside the same transaction as the
// status change; a failed settlement credits the amount back the same way.
type PayoutService struct {
	payoutRepo  *repository.PayoutRepository
	partnerRepo *repository.PartnerRepository
	ledgerRepo  *repository.LedgerRepository
	provider    settlement.Provider
	hub         *ws.Hub
}

func NewPayoutService(
	payoutRepo *repository.PayoutRepository,
	partnerRepo *repository.PartnerRepository,
	ledgerRepo *repository.LedgerRepository,
	provider settlement.Provider,
	hub *ws.Hub,
) *PayoutService {
	return &PayoutService{
		payoutRepo:  payoutRepo,
		partnerRepo: partnerRepo,
		ledgerRepo:  ledgerRepo,
		provider:    provider,
		hub:         hub,
	}
}

// Request creates a PENDING payout without touching the ledger. The
// availability check runs under the partner lock: the ledger sum is verified
// against the cache, and amounts reserved by other pending requests are
// subtracted, so two concurrent requests cannot both claim the same balance.
func (s *PayoutService) Request(partnerID uint, amount decimal.Decimal) (*models.Payout, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidStateTransition
	}
	partner, err := s.partnerRepo.GetByID(partnerID)
	if err != nil {
		return nil, err
	}
	if !partner.IsActive() {
		return nil, domain.ErrPartnerInactive
	}
	if partner.KYCStatus != domain.KYCVerified {
		return nil, domain.ErrKYCRequired
	}
	if !partner.HasBankDetails() {
		return nil, domain.ErrBankDetailsRequired
	}

	payout := &models.Payout{
		PartnerID: partnerID,
		Reference: fmt.Sprintf("po-%s", uuid.New().String()),
		Amount:    amount,
		Status:    domain.PayoutPending,
	}
	err = s.ledgerRepo.WithPartnerLock(partnerID, func(tx *gorm.DB, p *models.Partner) error {
		if p.PayoutsHalted {
			return domain.ErrReconciliationMismatch
		}
		if err := s.ledgerRepo.VerifyTx(tx, p); err != nil {
			return err
		}
		reserved, err := s.payoutRepo.ReservedTx(tx, partnerID)
		if err != nil {
			return err
		}
		available := p.WalletBalance.Sub(reserved)
		if amount.GreaterThan(available) {
			return domain.ErrInsufficientBalance
		}
		return tx.Create(payout).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[payout] partner %d requested %s (%s)", partnerID, amount.String(), payout.Reference)
	return payout, nil
}

// Approve moves a PENDING payout to APPROVED and debits the ledger in the
// same transaction, then asks the banking rail to start the transfer.
// Replaying an approval is a no-op; approving a terminal payout is a
// state-transition error.
func (s *PayoutService) Approve(ctx context.Context, payoutID uint) (*models.Payout, error) {
	payout, err := s.payoutRepo.GetByID(payoutID)
	if err != nil {
		return nil, err
	}
	switch payout.Status {
	case domain.PayoutApproved:
		return payout, nil
	case domain.PayoutPending:
	default:
		return nil, domain.ErrInvalidStateTransition
	}

	var partner *models.Partner
	var replayed bool
	err = s.ledgerRepo.WithPartnerLock(payout.PartnerID, func(tx *gorm.DB, p *models.Partner) error {
		partner = p
		var err error
		replayed, err = s.approvePayoutTx(tx, p, payout)
		return err
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		// A racing duplicate already debited and initiated the transfer.
		return payout, nil
	}
	s.notify(payout)

	// Transfer initiation is best-effort after the debit commits; a rail
	// outage leaves the payout APPROVED for a later settle call.
	if s.provider != nil {
		resp, err := s.provider.InitiateTransfer(ctx, settlement.TransferRequest{
			Reference:   payout.Reference,
			Amount:      payout.Amount.StringFixed(2),
			Currency:    "INR",
			BankName:    partner.BankName,
			BankAccount: partner.BankAccount,
			BankIFSC:    partner.BankIFSC,
		})
		if err != nil {
			log.Printf("[payout] transfer initiation failed for %s: %v", payout.Reference, err)
		} else if resp.ProviderRef != "" {
			payout.ProviderRef = resp.ProviderRef
			if err := s.payoutRepo.UpdateProviderRef(payout.ID, resp.ProviderRef); err != nil {
				log.Printf("[payout] save provider ref for %s: %v", payout.Reference, err)
			}
		}
	}
	return payout, nil
}

// approvePayoutTx debits the ledger and flips the payout to APPROVED inside
// the caller's locked transaction. Reports replayed=true when a concurrent
// approval already landed, so the caller can skip re-initiating the transfer.
func (s *PayoutService) approvePayoutTx(tx *gorm.DB, p *models.Partner, payout *models.Payout) (replayed bool, err error) {
	var fresh models.Payout
	if err := tx.First(&fresh, payout.ID).Error; err != nil {
		return false, err
	}
	if fresh.Status == domain.PayoutApproved {
		*payout = fresh
		return true, nil
	}
	if fresh.Status != domain.PayoutPending {
		return false, domain.ErrInvalidStateTransition
	}
	if _, err := s.ledgerRepo.AppendTx(tx, p, payout.Amount.Neg(), domain.ReasonPayoutDebit, domain.RefPayout, payout.ID); err != nil {
		return false, err
	}
	now := time.Now()
	payout.Status = domain.PayoutApproved
	payout.ApprovedAt = &now
	return false, tx.Model(payout).Updates(map[string]interface{}{
		"status":      domain.PayoutApproved,
		"approved_at": now,
	}).Error
}

// Settle resolves an APPROVED payout. Success records the settlement
// reference; failure credits the amount back in the same transaction as the
// FAILED transition. Replaying with the same outcome is a no-op; replaying
// with the opposite outcome is a state-transition error.
func (s *PayoutService) Settle(payoutID uint, success bool, refOrReason string) (*models.Payout, error) {
	payout, err := s.payoutRepo.GetByID(payoutID)
	if err != nil {
		return nil, err
	}
	switch payout.Status {
	case domain.PayoutPaid:
		if success {
			return payout, nil
		}
		return nil, domain.ErrInvalidStateTransition
	case domain.PayoutFailed:
		if !success {
			return payout, nil
		}
		return nil, domain.ErrInvalidStateTransition
	case domain.PayoutApproved:
	default:
		return nil, domain.ErrInvalidStateTransition
	}

	err = s.ledgerRepo.WithPartnerLock(payout.PartnerID, func(tx *gorm.DB, p *models.Partner) error {
		var fresh models.Payout
		if err := tx.First(&fresh, payout.ID).Error; err != nil {
			return err
		}
		if fresh.Status != domain.PayoutApproved {
			if (fresh.Status == domain.PayoutPaid && success) || (fresh.Status == domain.PayoutFailed && !success) {
				payout.Status = fresh.Status
				return nil
			}
			return domain.ErrInvalidStateTransition
		}
		now := time.Now()
		if success {
			payout.Status = domain.PayoutPaid
			payout.SettlementRef = refOrReason
			payout.SettledAt = &now
			return tx.Model(payout).Updates(map[string]interface{}{
				"status":         domain.PayoutPaid,
				"settlement_ref": refOrReason,
				"settled_at":     now,
			}).Error
		}
		// Bounced transfer: the funds return to the spendable balance.
		if _, err := s.ledgerRepo.AppendTx(tx, p, payout.Amount, domain.ReasonPayoutRefund, domain.RefPayout, payout.ID); err != nil {
			return err
		}
		payout.Status = domain.PayoutFailed
		payout.FailureReason = refOrReason
		payout.SettledAt = &now
		return tx.Model(payout).Updates(map[string]interface{}{
			"status":         domain.PayoutFailed,
			"failure_reason": refOrReason,
			"settled_at":     now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[payout] %s settled status=%s", payout.Reference, payout.Status)
	s.notify(payout)
	return payout, nil
}

// Cancel withdraws a PENDING payout before any ledger debit. No ledger
// effect. Cancelling an already-cancelled payout is a no-op.
func (s *PayoutService) Cancel(payoutID, partnerID uint) (*models.Payout, error) {
	payout, err := s.payoutRepo.GetByID(payoutID)
	if err != nil {
		return nil, err
	}
	if partnerID != 0 && payout.PartnerID != partnerID {
		return nil, gorm.ErrRecordNotFound
	}
	switch payout.Status {
	case domain.PayoutCancelled:
		return payout, nil
	case domain.PayoutPending:
	default:
		return nil, domain.ErrInvalidStateTransition
	}
	err = s.ledgerRepo.WithPartnerLock(payout.PartnerID, func(tx *gorm.DB, p *models.Partner) error {
		var fresh models.Payout
		if err := tx.First(&fresh, payout.ID).Error; err != nil {
			return err
		}
		if fresh.Status == domain.PayoutCancelled {
			return nil
		}
		if fresh.Status != domain.PayoutPending {
			return domain.ErrInvalidStateTransition
		}
		payout.Status = domain.PayoutCancelled
		return tx.Model(payout).Update("status", domain.PayoutCancelled).Error
	})
	if err != nil {
		return nil, err
	}
	s.notify(payout)
	return payout, nil
}

func (s *PayoutService) notify(p *models.Payout) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToPartner(p.PartnerID, map[string]interface{}{
		"type":      "payout." + p.Status,
		"reference": p.Reference,
		"amount":    p.Amount,
	})
}
