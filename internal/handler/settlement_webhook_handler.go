package handler

import (
	"crypto/hmac"
	"log"
	"net/http"

	"partnerly/config"
	"partnerly/internal/repository"
	"partnerly/internal/service"

	"github.com/gin-gonic/gin"
)

// settlementCallback is the banking rail's confirmation payload.
type settlementCallback struct {
	Reference     string `json:"reference"` // payout reference echoed back
	ProviderRef   string `json:"provider_ref"`
	Status        string `json:"status"` // COMPLETED or a failure status
	StatusCode    string `json:"status_code"`
	Description   string `json:"status_description"`
	SettlementRef string `json:"settlement_ref"`
}

type SettlementWebhookHandler struct {
	cfg        *config.Config
	payoutSvc  *service.PayoutService
	payoutRepo *repository.PayoutRepository
}

func NewSettlementWebhookHandler(cfg *config.Config, payoutSvc *service.PayoutService, payoutRepo *repository.PayoutRepository) *SettlementWebhookHandler {
	return &SettlementWebhookHandler{cfg: cfg, payoutSvc: payoutSvc, payoutRepo: payoutRepo}
}

// Handle resolves an approved payout from the rail's callback. COMPLETED
// settles success; anything else settles failure and refunds the ledger.
// Replayed callbacks are no-ops.
func (h *SettlementWebhookHandler) Handle(c *gin.Context) {
	if h.cfg.Webhook.SettlementSecret != "" {
		got := c.GetHeader("X-Webhook-Secret")
		if !hmac.Equal([]byte(got), []byte(h.cfg.Webhook.SettlementSecret)) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
	}
	var payload settlementCallback
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if payload.Reference == "" {
		log.Printf("[settlement callback] no reference in payload")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	payout, err := h.payoutRepo.GetByReference(payload.Reference)
	if err != nil {
		log.Printf("[settlement callback] payout not found for reference=%s", payload.Reference)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	success := payload.Status == "COMPLETED"
	refOrReason := payload.SettlementRef
	if !success {
		refOrReason = payload.Description
		if refOrReason == "" {
			refOrReason = payload.Status
		}
	}
	if _, err := h.payoutSvc.Settle(payout.ID, success, refOrReason); err != nil {
		log.Printf("[settlement callback] settle %s: %v", payload.Reference, err)
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
