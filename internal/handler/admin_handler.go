package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"partnerly/internal/middleware"
	"partnerly/internal/repository"
	"partnerly/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler is the ops surface: payout approval/settlement, held
// commission approval, KYC decisions, reconciliation. Every money action is
// audit-logged.
type AdminHandler struct {
	payoutSvc     *service.PayoutService
	commissionSvc *service.CommissionService
	partnerRepo   *repository.PartnerRepository
	payoutRepo    *repository.PayoutRepository
	ledgerRepo    *repository.LedgerRepository
	auditRepo     *repository.AuditLogRepository
}

func NewAdminHandler(
	payoutSvc *service.PayoutService,
	commissionSvc *service.CommissionService,
	partnerRepo *repository.PartnerRepository,
	payoutRepo *repository.PayoutRepository,
	ledgerRepo *repository.LedgerRepository,
	auditRepo *repository.AuditLogRepository,
) *AdminHandler {
	return &AdminHandler{
		payoutSvc:     payoutSvc,
		commissionSvc: commissionSvc,
		partnerRepo:   partnerRepo,
		payoutRepo:    payoutRepo,
		ledgerRepo:    ledgerRepo,
		auditRepo:     auditRepo,
	}
}

func (h *AdminHandler) audit(c *gin.Context, action, resource string, resourceID uint) {
	actorID := middleware.GetPartnerID(c)
	if err := h.auditRepo.Log(&actorID, action, resource, strconv.FormatUint(uint64(resourceID), 10), c.ClientIP(), ""); err != nil {
		// Audit writes never block the operation; the action already landed.
		_ = err
	}
}

// ApprovePayout reserves the funds: ledger debit and APPROVED transition in
// one transaction, then the bank transfer is initiated.
func (h *AdminHandler) ApprovePayout(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payout id"})
		return
	}
	payout, err := h.payoutSvc.Approve(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(payoutErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	h.audit(c, "payout.approve", "payout", payout.ID)
	c.JSON(http.StatusOK, gin.H{"id": payout.ID, "status": payout.Status, "provider_ref": payout.ProviderRef})
}

// SettlePayout records the settlement outcome manually (the settlement
// webhook does the same automatically).
func (h *AdminHandler) SettlePayout(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payout id"})
		return
	}
	var req struct {
		Success   bool   `json:"success"`
		Reference string `json:"reference"` // settlement ref on success, failure reason otherwise
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payout, err := h.payoutSvc.Settle(uint(id), req.Success, req.Reference)
	if err != nil {
		c.JSON(payoutErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	h.audit(c, fmt.Sprintf("payout.settle.%v", req.Success), "payout", payout.ID)
	c.JSON(http.StatusOK, gin.H{"id": payout.ID, "status": payout.Status})
}

func (h *AdminHandler) ListPayouts(c *gin.Context) {
	status := c.Query("status")
	limit, offset := pagination(c)
	list, total, err := h.payoutRepo.List(0, status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": list, "total": total, "limit": limit, "offset": offset})
}

// ApproveCommission releases a high-risk commission held in PENDING.
func (h *AdminHandler) ApproveCommission(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid commission id"})
		return
	}
	commission, err := h.commissionSvc.Approve(uint(id))
	if err != nil {
		c.JSON(payoutErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	h.audit(c, "commission.approve", "commission", commission.ID)
	c.JSON(http.StatusOK, gin.H{"id": commission.ID, "status": commission.Status})
}

// SetKYC records the KYC collaborator's decision for a partner.
func (h *AdminHandler) SetKYC(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid partner id"})
		return
	}
	var req struct {
		Status string `json:"status" binding:"required,oneof=PENDING VERIFIED REJECTED"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.partnerRepo.SetKYC(uint(id), req.Status, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	h.audit(c, "kyc."+req.Status, "partner", uint(id))
	c.JSON(http.StatusOK, gin.H{"partner_id": id, "kyc_status": req.Status})
}

// SetPartnerStatus suspends or reactivates a partner (never hard-deleted).
func (h *AdminHandler) SetPartnerStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid partner id"})
		return
	}
	var req struct {
		Status string `json:"status" binding:"required,oneof=ACTIVE SUSPENDED BLOCKED"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.partnerRepo.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "partner not found"})
		return
	}
	p.Status = req.Status
	if err := h.partnerRepo.Update(p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	h.audit(c, "partner.status."+req.Status, "partner", p.ID)
	c.JSON(http.StatusOK, gin.H{"partner_id": p.ID, "status": p.Status})
}

// Reconcile re-derives a partner's cached balance from the ledger sum and
// lifts the payout halt.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid partner id"})
		return
	}
	balance, err := h.ledgerRepo.Resolve(uint(id))
	if err != nil {
		c.JSON(payoutErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	h.audit(c, "ledger.reconcile", "partner", uint(id))
	c.JSON(http.StatusOK, gin.H{"partner_id": id, "balance": balance})
}

func (h *AdminHandler) ListAudit(c *gin.Context) {
	limit, offset := pagination(c)
	list, err := h.auditRepo.List(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": list})
}
