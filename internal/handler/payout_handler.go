package handler

import (
	"errors"
	"net/http"
	"strconv"

	"partnerly/internal/domain"
	"partnerly/internal/middleware"
	"partnerly/internal/repository"
	"partnerly/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PayoutHandler struct {
	payoutSvc  *service.PayoutService
	payoutRepo *repository.PayoutRepository
}

func NewPayoutHandler(payoutSvc *service.PayoutService, payoutRepo *repository.PayoutRepository) *PayoutHandler {
	return &PayoutHandler{payoutSvc: payoutSvc, payoutRepo: payoutRepo}
}

// Request creates a withdrawal request against the spendable balance.
func (h *PayoutHandler) Request(c *gin.Context) {
	partnerID := middleware.GetPartnerID(c)
	var req struct {
		Amount decimal.Decimal `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payout, err := h.payoutSvc.Request(partnerID, req.Amount)
	if err != nil {
		c.JSON(payoutErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":        payout.ID,
		"reference": payout.Reference,
		"amount":    payout.Amount,
		"status":    payout.Status,
	})
}

// Cancel withdraws a payout request that has not been approved yet.
func (h *PayoutHandler) Cancel(c *gin.Context) {
	partnerID := middleware.GetPartnerID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payout id"})
		return
	}
	payout, err := h.payoutSvc.Cancel(uint(id), partnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "payout not found"})
			return
		}
		c.JSON(payoutErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": payout.ID, "status": payout.Status})
}

func (h *PayoutHandler) List(c *gin.Context) {
	partnerID := middleware.GetPartnerID(c)
	status := c.Query("status")
	limit, offset := pagination(c)
	list, total, err := h.payoutRepo.List(partnerID, status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": list, "total": total, "limit": limit, "offset": offset})
}

// payoutErrorStatus maps the engine's error taxonomy onto HTTP statuses.
func payoutErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrBankDetailsRequired),
		errors.Is(err, domain.ErrPartnerInactive):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrKYCRequired):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrReconciliationMismatch):
		return http.StatusLocked
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
