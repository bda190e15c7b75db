package router

import (
	"time"

	"partnerly/config"
	"partnerly/internal/handler"
	"partnerly/internal/middleware"
	"partnerly/internal/repository"
	"partnerly/internal/service"
	"partnerly/internal/ws"
	"partnerly/pkg/cloudinary"
	"partnerly/pkg/settlement"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, cloud cloudinary.Client, provider settlement.Provider) (*gin.Engine, *service.TierService) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	partnerRepo := repository.NewPartnerRepository(db)
	attributionRepo := repository.NewAttributionRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	tierRepo := repository.NewTierRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	hub := ws.NewHub()

	// Services
	authSvc := service.NewAuthService(cfg, partnerRepo)
	attributionSvc := service.NewAttributionService(attributionRepo, partnerRepo, settingRepo)
	commissionSvc := service.NewCommissionService(commissionRepo, ledgerRepo, tierRepo, settingRepo, hub)
	tierSvc := service.NewTierService(partnerRepo, commissionRepo, tierRepo, settingRepo)
	payoutSvc := service.NewPayoutService(payoutRepo, partnerRepo, ledgerRepo, provider, hub)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	partnerHandler := handler.NewPartnerHandler(partnerRepo, commissionRepo, ledgerRepo, payoutRepo, tierRepo, tierSvc)
	payoutHandler := handler.NewPayoutHandler(payoutSvc, payoutRepo)
	referralHandler := handler.NewReferralHandler(attributionSvc, attributionRepo, partnerRepo)
	kycHandler := handler.NewKYCHandler(partnerRepo, cloud)
	adminHandler := handler.NewAdminHandler(payoutSvc, commissionSvc, partnerRepo, payoutRepo, ledgerRepo, auditRepo)
	orderWebhookHandler := handler.NewOrderWebhookHandler(cfg, attributionSvc, commissionSvc, tierSvc)
	settlementWebhookHandler := handler.NewSettlementWebhookHandler(cfg, payoutSvc, payoutRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)
	// Payout requests get a tighter per-partner budget on top of the IP limit.
	payoutLimiter := middleware.RateLimitPartner(middleware.NewInMemoryRateLimiter(10, time.Minute))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
		}

		// Checkout collaborator: referral touch capture, unauthenticated.
		api.POST("/referrals/capture", referralHandler.Capture)

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("/profile", partnerHandler.GetProfile)
			me.GET("/dashboard", partnerHandler.GetDashboard)
			me.GET("/commissions", partnerHandler.ListCommissions)
			me.GET("/ledger", partnerHandler.ListLedger)
			me.GET("/tier-history", partnerHandler.ListTierHistory)
			me.PATCH("/bank-details", partnerHandler.UpdateBankDetails)
			me.GET("/referral-code", referralHandler.MyCode)
			me.GET("/attributions", referralHandler.MyAttributions)
			me.POST("/kyc/document", kycHandler.UploadDocument)
			me.GET("/payouts", payoutHandler.List)
			me.POST("/payouts", payoutLimiter, payoutHandler.Request)
			me.POST("/payouts/:id/cancel", payoutLimiter, payoutHandler.Cancel)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.GET("/payouts", adminHandler.ListPayouts)
			admin.POST("/payouts/:id/approve", adminHandler.ApprovePayout)
			admin.POST("/payouts/:id/settle", adminHandler.SettlePayout)
			admin.POST("/commissions/:id/approve", adminHandler.ApproveCommission)
			admin.PATCH("/partners/:id/kyc", adminHandler.SetKYC)
			admin.PATCH("/partners/:id/status", adminHandler.SetPartnerStatus)
			admin.POST("/partners/:id/reconcile", adminHandler.Reconcile)
			admin.GET("/audit", adminHandler.ListAudit)
		}

		api.POST("/webhooks/orders", orderWebhookHandler.Handle)
		api.POST("/webhooks/settlement", settlementWebhookHandler.Handle)
	}

	r.GET("/ws/partner", ws.UpgradePartnerWS(&cfg.JWT, hub))

	return r, tierSvc
}
