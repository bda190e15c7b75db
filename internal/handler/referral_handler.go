package handler

import (
	"net/http"
	"time"

	"partnerly/internal/middleware"
	"partnerly/internal/repository"
	"partnerly/internal/service"

	"github.com/gin-gonic/gin"
)

type ReferralHandler struct {
	attributionSvc  *service.AttributionService
	attributionRepo *repository.AttributionRepository
	partnerRepo     *repository.PartnerRepository
}

func NewReferralHandler(
	attributionSvc *service.AttributionService,
	attributionRepo *repository.AttributionRepository,
	partnerRepo *repository.PartnerRepository,
) *ReferralHandler {
	return &ReferralHandler{
		attributionSvc:  attributionSvc,
		attributionRepo: attributionRepo,
		partnerRepo:     partnerRepo,
	}
}

// Capture records a referral touch from the checkout/session collaborator.
// Always 200: a bad code must never break the storefront.
func (h *ReferralHandler) Capture(c *gin.Context) {
	var req struct {
		CustomerID   string    `json:"customer_id" binding:"required"`
		ReferralCode string    `json:"referral_code" binding:"required"`
		CapturedAt   time.Time `json:"captured_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CapturedAt.IsZero() {
		req.CapturedAt = time.Now()
	}
	if err := h.attributionSvc.CaptureTouch(req.CustomerID, req.ReferralCode, req.CapturedAt); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "capture failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"captured": true})
}

// MyCode returns the partner's shareable referral code.
func (h *ReferralHandler) MyCode(c *gin.Context) {
	partnerID := middleware.GetPartnerID(c)
	p, err := h.partnerRepo.GetByID(partnerID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "partner not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"referral_code": p.ReferralCode})
}

// MyAttributions lists orders attributed to the partner, newest first.
func (h *ReferralHandler) MyAttributions(c *gin.Context) {
	partnerID := middleware.GetPartnerID(c)
	limit, offset := pagination(c)
	list, err := h.attributionRepo.ListByPartnerID(partnerID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attributions": list, "limit": limit, "offset": offset})
}
