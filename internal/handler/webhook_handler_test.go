package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"partnerly/config"
	"partnerly/internal/database"
	"partnerly/internal/domain"
	"partnerly/internal/models"
	"partnerly/internal/repository"
	"partnerly/internal/service"
	"partnerly/pkg/settlement"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testWebhookSecret = "test-secret"

type webhookFixture struct {
	db        *gorm.DB
	engine    *gin.Engine
	payoutSvc *service.PayoutService
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	cfg := &config.Config{}
	cfg.Webhook.OrderSecret = testWebhookSecret
	cfg.Webhook.SettlementSecret = testWebhookSecret

	partnerRepo := repository.NewPartnerRepository(db)
	attributionRepo := repository.NewAttributionRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	tierRepo := repository.NewTierRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	attributionSvc := service.NewAttributionService(attributionRepo, partnerRepo, settingRepo)
	commissionSvc := service.NewCommissionService(commissionRepo, ledgerRepo, tierRepo, settingRepo, nil)
	tierSvc := service.NewTierService(partnerRepo, commissionRepo, tierRepo, settingRepo)
	payoutSvc := service.NewPayoutService(payoutRepo, partnerRepo, ledgerRepo, &settlement.StubProvider{}, nil)

	engine := gin.New()
	engine.POST("/webhooks/orders", NewOrderWebhookHandler(cfg, attributionSvc, commissionSvc, tierSvc).Handle)
	engine.POST("/webhooks/settlement", NewSettlementWebhookHandler(cfg, payoutSvc, payoutRepo).Handle)

	return &webhookFixture{db: db, engine: engine, payoutSvc: payoutSvc}
}

func (f *webhookFixture) createPartner(t *testing.T, name string) *models.Partner {
	t.Helper()
	p := &models.Partner{
		Name:         name,
		Email:        name + "@example.com",
		Role:         domain.RolePartner,
		CustomerID:   "cust-" + name,
		ReferralCode: "REF" + name,
		Tier:         domain.TierBronze,
		Status:       domain.PartnerActive,
		KYCStatus:    domain.KYCVerified,
		BankName:     "HDFC",
		BankAccount:  "00112233445566",
		BankIFSC:     "HDFC0000123",
	}
	if err := f.db.Create(p).Error; err != nil {
		t.Fatalf("create partner: %v", err)
	}
	return p
}

func (f *webhookFixture) post(t *testing.T, path, secret string, payload map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestOrderWebhookRejectsBadSecret(t *testing.T) {
	f := newWebhookFixture(t)
	w := f.post(t, "/webhooks/orders", "wrong", map[string]interface{}{
		"event":    "order.completed",
		"order_id": "ord-1",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestOrderWebhookRejectsUnknownEvent(t *testing.T) {
	f := newWebhookFixture(t)
	w := f.post(t, "/webhooks/orders", testWebhookSecret, map[string]interface{}{
		"event":    "order.mystery",
		"order_id": "ord-1",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestOrderCompletedCreditsCommission(t *testing.T) {
	f := newWebhookFixture(t)
	p := f.createPartner(t, "alice")
	now := time.Now()

	w := f.post(t, "/webhooks/orders", testWebhookSecret, map[string]interface{}{
		"event":                 "order.completed",
		"order_id":              "ord-1",
		"customer_id":           "cust-buyer",
		"partner_eligible":      true,
		"commissionable_amount": "10000",
		"placed_at":             now.Format(time.RFC3339),
		"occurred_at":           now.Format(time.RFC3339),
		"referral_code":         p.ReferralCode,
		"captured_at":           now.Format(time.RFC3339),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var c models.Commission
	if err := f.db.Where("order_id = ?", "ord-1").First(&c).Error; err != nil {
		t.Fatalf("commission not created: %v", err)
	}
	if c.Status != domain.CommissionApproved {
		t.Fatalf("expected APPROVED, got %s", c.Status)
	}
	if !c.NetAmount.Equal(decimal.RequireFromString("950")) {
		t.Fatalf("net %s, want 950", c.NetAmount)
	}

	var partner models.Partner
	if err := f.db.First(&partner, p.ID).Error; err != nil {
		t.Fatalf("reload partner: %v", err)
	}
	if !partner.WalletBalance.Equal(decimal.RequireFromString("950")) {
		t.Fatalf("wallet %s, want 950", partner.WalletBalance)
	}

	// Redelivery must not credit twice.
	w = f.post(t, "/webhooks/orders", testWebhookSecret, map[string]interface{}{
		"event":                 "order.completed",
		"order_id":              "ord-1",
		"customer_id":           "cust-buyer",
		"partner_eligible":      true,
		"commissionable_amount": "10000",
		"placed_at":             now.Format(time.RFC3339),
		"occurred_at":           now.Format(time.RFC3339),
		"referral_code":         p.ReferralCode,
		"captured_at":           now.Format(time.RFC3339),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("redelivery: expected 200, got %d", w.Code)
	}
	var count int64
	f.db.Model(&models.LedgerEntry{}).Where("partner_id = ?", p.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 ledger entry after redelivery, got %d", count)
	}
}

func TestOrderCancelledReversesCommission(t *testing.T) {
	f := newWebhookFixture(t)
	p := f.createPartner(t, "alice")
	now := time.Now()

	payload := map[string]interface{}{
		"event":                 "order.completed",
		"order_id":              "ord-1",
		"customer_id":           "cust-buyer",
		"partner_eligible":      true,
		"commissionable_amount": "10000",
		"placed_at":             now.Format(time.RFC3339),
		"occurred_at":           now.Format(time.RFC3339),
		"referral_code":         p.ReferralCode,
		"captured_at":           now.Format(time.RFC3339),
	}
	if w := f.post(t, "/webhooks/orders", testWebhookSecret, payload); w.Code != http.StatusOK {
		t.Fatalf("completed: expected 200, got %d", w.Code)
	}

	w := f.post(t, "/webhooks/orders", testWebhookSecret, map[string]interface{}{
		"event":    "order.returned",
		"order_id": "ord-1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("returned: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var c models.Commission
	if err := f.db.Where("order_id = ?", "ord-1").First(&c).Error; err != nil {
		t.Fatalf("commission: %v", err)
	}
	if c.Status != domain.CommissionCancelled {
		t.Fatalf("expected CANCELLED, got %s", c.Status)
	}
	var partner models.Partner
	if err := f.db.First(&partner, p.ID).Error; err != nil {
		t.Fatalf("reload partner: %v", err)
	}
	if !partner.WalletBalance.IsZero() {
		t.Fatalf("wallet %s, want 0", partner.WalletBalance)
	}
}

func TestUnattributedOrderProceedsWithoutCommission(t *testing.T) {
	f := newWebhookFixture(t)
	now := time.Now()

	w := f.post(t, "/webhooks/orders", testWebhookSecret, map[string]interface{}{
		"event":                 "order.completed",
		"order_id":              "ord-1",
		"customer_id":           "cust-buyer",
		"partner_eligible":      true,
		"commissionable_amount": "10000",
		"placed_at":             now.Format(time.RFC3339),
		"occurred_at":           now.Format(time.RFC3339),
		"referral_code":         "NOSUCHCODE",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var count int64
	f.db.Model(&models.Commission{}).Count(&count)
	if count != 0 {
		t.Fatalf("unknown code must not create a commission, got %d", count)
	}
}

func TestSettlementCallbackResolvesPayout(t *testing.T) {
	f := newWebhookFixture(t)
	p := f.createPartner(t, "alice")

	ledgerRepo := repository.NewLedgerRepository(f.db)
	if err := ledgerRepo.WithPartnerLock(p.ID, func(tx *gorm.DB, fresh *models.Partner) error {
		_, err := ledgerRepo.AppendTx(tx, fresh, decimal.RequireFromString("500"), domain.ReasonCommissionCredit, domain.RefCommission, 1)
		return err
	}); err != nil {
		t.Fatalf("fund partner: %v", err)
	}

	payout, err := f.payoutSvc.Request(p.ID, decimal.RequireFromString("500"))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.payoutSvc.Approve(context.Background(), payout.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	w := f.post(t, "/webhooks/settlement", testWebhookSecret, map[string]interface{}{
		"reference":      payout.Reference,
		"status":         "COMPLETED",
		"settlement_ref": "utr-42",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var fresh models.Payout
	if err := f.db.First(&fresh, payout.ID).Error; err != nil {
		t.Fatalf("reload payout: %v", err)
	}
	if fresh.Status != domain.PayoutPaid || fresh.SettlementRef != "utr-42" {
		t.Fatalf("expected PAID/utr-42, got %s/%s", fresh.Status, fresh.SettlementRef)
	}
}

func TestSettlementCallbackUnknownReferenceAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)
	w := f.post(t, "/webhooks/settlement", testWebhookSecret, map[string]interface{}{
		"reference": "po-nope",
		"status":    "COMPLETED",
	})
	// Unknown references are acknowledged so the rail stops retrying.
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}
