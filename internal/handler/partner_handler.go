package handler

import (
	"net/http"
	"strconv"
	"time"

	"partnerly/internal/domain"
	"partnerly/internal/middleware"
	"partnerly/internal/repository"
	"partnerly/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PartnerHandler serves the partner-portal read model: dashboard stats,
// commission history, ledger history, and profile updates.
type PartnerHandler struct {
	partnerRepo    *repository.PartnerRepository
	commissionRepo *repository.CommissionRepository
	ledgerRepo     *repository.LedgerRepository
	payoutRepo     *repository.PayoutRepository
	tierRepo       *repository.TierRepository
	tierSvc        *service.TierService
}

func NewPartnerHandler(
	partnerRepo *repository.PartnerRepository,
	commissionRepo *repository.CommissionRepository,
	ledgerRepo *repository.LedgerRepository,
	payoutRepo *repository.PayoutRepository,
	tierRepo *repository.TierRepository,
	tierSvc *service.TierService,
) *PartnerHandler {
	return &PartnerHandler{
		partnerRepo:    partnerRepo,
		commissionRepo: commissionRepo,
		ledgerRepo:     ledgerRepo,
		payoutRepo:     payoutRepo,
		tierRepo:       tierRepo,
		tierSvc:        tierSvc,
	}
}

func (h *PartnerHandler) GetProfile(c *gin.Context) {
	partnerID := middleware.GetPartnerID(c)
	p, err := h.partnerRepo.GetByID(partnerID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "partner not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// GetDashboard returns balances, tier progress, and this-period earnings.
// Read-only projections over the ledger and commission records.
func (h *PartnerHandler) GetDashboard(c *gin.Context) {
	partnerID := middleware.GetPartnerID(c)
	p, err := h.partnerRepo.GetByID(partnerID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "partner not found"})
		return
	}
	now := time.Now()
	volume, err := h.tierSvc.TrailingVolume(partnerID, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats error"})
		return
	}
	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	earnings, err := h.commissionRepo.EarningsSince(partnerID, periodStart)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats error"})
		return
	}

	// Pending payout requests reserve balance before any ledger debit.
	pending, _, err := h.payoutRepo.List(partnerID, domain.PayoutPending, 100, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats error"})
		return
	}
	reserved := decimal.Zero
	for _, po := range pending {
		reserved = reserved.Add(po.Amount)
	}

	tier := domain.TierByName(p.Tier)
	reply := gin.H{
		"balance":           p.WalletBalance,
		"reserved":          reserved,
		"available":         p.WalletBalance.Sub(reserved),
		"tier":              p.Tier,
		"tier_rate":         tier.Rate,
		"trailing_volume":   volume,
		"period_earnings":   earnings,
		"kyc_status":        p.KYCStatus,
		"payouts_halted":    p.PayoutsHalted,
	}
	if rank := domain.TierRank(p.Tier); rank+1 < len(domain.Tiers) {
		next := domain.Tiers[rank+1]
		reply["next_tier"] = next.Name
		reply["next_tier_volume"] = next.MinVolume
		reply["next_tier_remaining"] = decimal.Max(next.MinVolume.Sub(volume), decimal.Zero)
	}
	c.JSON(http.StatusOK, reply)
}

// ListCommissions returns the partner's commission history, filterable by
// status, paginated.
func (h *PartnerHandler) ListCommissions(c *gin.Context) {
	partnerID := middleware.GetPartnerID(c)
	status := c.Query("status")
	limit, offset := pagination(c)
	list, total, err := h.commissionRepo.List(partnerID, status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commissions": list, "total": total, "limit": limit, "offset": offset})
}

func (h *PartnerHandler) ListLedger(c *gin.Context) {
	partnerID := middleware.GetPartnerID(c)
	limit, offset := pagination(c)
	list, total, err := h.ledgerRepo.List(partnerID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": list, "total": total, "limit": limit, "offset": offset})
}

func (h *PartnerHandler) ListTierHistory(c *gin.Context) {
	partnerID := middleware.GetPartnerID(c)
	list, err := h.tierRepo.ListByPartnerID(partnerID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"changes": list})
}

// UpdateBankDetails stores the account a payout settles to. Required before
// any withdrawal request.
func (h *PartnerHandler) UpdateBankDetails(c *gin.Context) {
	partnerID := middleware.GetPartnerID(c)
	var req struct {
		BankName    string `json:"bank_name" binding:"required"`
		BankAccount string `json:"bank_account" binding:"required"`
		BankIFSC    string `json:"bank_ifsc" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.partnerRepo.UpdateBankDetails(partnerID, req.BankName, req.BankAccount, req.BankIFSC); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
