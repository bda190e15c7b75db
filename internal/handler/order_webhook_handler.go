package handler

import (
	"crypto/hmac"
	"log"
	"net/http"
	"time"

	"partnerly/config"
	"partnerly/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// orderEventPayload is the strict schema for order lifecycle events. Events
// are delivered at least once; everything downstream is idempotent.
type orderEventPayload struct {
	Event           string          `json:"event" binding:"required"` // order.placed, order.completed, order.cancelled, order.returned
	OrderID         string          `json:"order_id" binding:"required"`
	CustomerID      string          `json:"customer_id"`
	PartnerEligible bool            `json:"partner_eligible"`
	Amount          decimal.Decimal `json:"commissionable_amount"`
	PlacedAt        time.Time       `json:"placed_at"`
	OccurredAt      time.Time       `json:"occurred_at"`
	HighRisk        bool            `json:"high_risk"`
	ReferralCode    string          `json:"referral_code"`
	CapturedAt      time.Time       `json:"captured_at"`
}

type OrderWebhookHandler struct {
	cfg            *config.Config
	attributionSvc *service.AttributionService
	commissionSvc  *service.CommissionService
	tierSvc        *service.TierService
}

func NewOrderWebhookHandler(
	cfg *config.Config,
	attributionSvc *service.AttributionService,
	commissionSvc *service.CommissionService,
	tierSvc *service.TierService,
) *OrderWebhookHandler {
	return &OrderWebhookHandler{
		cfg:            cfg,
		attributionSvc: attributionSvc,
		commissionSvc:  commissionSvc,
		tierSvc:        tierSvc,
	}
}

// Handle processes order subsystem events. Attribution failures degrade to an
// unattributed order; ledger failures are surfaced so the sender retries.
func (h *OrderWebhookHandler) Handle(c *gin.Context) {
	if h.cfg.Webhook.OrderSecret != "" {
		got := c.GetHeader("X-Webhook-Secret")
		if !hmac.Equal([]byte(got), []byte(h.cfg.Webhook.OrderSecret)) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
	}
	var payload orderEventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = time.Now()
	}

	switch payload.Event {
	case "order.placed":
		if payload.PartnerEligible {
			if _, err := h.attributionSvc.Attribute(payload.OrderID, payload.CustomerID, payload.ReferralCode,
				payload.CapturedAt, payload.OccurredAt); err != nil {
				log.Printf("[orders] attribute %s: %v", payload.OrderID, err)
			}
		}
		c.JSON(http.StatusOK, gin.H{"received": true})

	case "order.completed":
		if !payload.PartnerEligible {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		// Late attribution tolerates a missed order.placed delivery.
		attribution, err := h.attributionSvc.Attribute(payload.OrderID, payload.CustomerID, payload.ReferralCode,
			payload.CapturedAt, payload.OccurredAt)
		if err != nil {
			log.Printf("[orders] attribute %s: %v", payload.OrderID, err)
		}
		if attribution == nil {
			c.JSON(http.StatusOK, gin.H{"received": true, "attributed": false})
			return
		}
		ev := service.OrderEvent{
			OrderID:         payload.OrderID,
			CustomerID:      payload.CustomerID,
			PartnerEligible: payload.PartnerEligible,
			Amount:          payload.Amount,
			PlacedAt:        payload.PlacedAt,
			OccurredAt:      payload.OccurredAt,
			HighRisk:        payload.HighRisk,
		}
		commission, err := h.commissionSvc.Compute(attribution, ev)
		if err != nil {
			log.Printf("[orders] commission %s: %v", payload.OrderID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "commission computation failed"})
			return
		}
		// Fresh approved volume can promote the partner right away.
		if _, err := h.tierSvc.Reevaluate(attribution.PartnerID); err != nil {
			log.Printf("[orders] tier reevaluate partner %d: %v", attribution.PartnerID, err)
		}
		c.JSON(http.StatusOK, gin.H{"received": true, "commission_status": commission.Status})

	case "order.cancelled", "order.returned":
		commission, err := h.commissionSvc.Reverse(payload.OrderID)
		if err != nil {
			log.Printf("[orders] reverse %s: %v", payload.OrderID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "commission reversal failed"})
			return
		}
		reply := gin.H{"received": true}
		if commission != nil {
			reply["commission_status"] = commission.Status
		}
		c.JSON(http.StatusOK, reply)

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type"})
	}
}
