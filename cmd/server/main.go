package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"partnerly/config"
	"partnerly/internal/database"
	"partnerly/internal/domain"
	"partnerly/internal/repository"
	"partnerly/internal/router"
	"partnerly/pkg/cloudinary"
	"partnerly/pkg/settlement"
)

func main() {
	cfg := config.Load()
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	database.SeedAdmin(db)

	settingRepo := repository.NewSettingRepository(db)
	if err := settingRepo.SeedDefaults(map[string]string{
		domain.SettingTDSRate:           "0.05",
		domain.SettingAttributionWindow: "7",
		domain.SettingTierWindowDays:    "90",
		domain.SettingTierDemotionGrace: "0.10",
		domain.SettingHighRiskAutoHold:  "1",
	}); err != nil {
		log.Fatalf("seed settings: %v", err)
	}

	cloud, err := cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
	if err != nil {
		log.Fatalf("cloudinary: %v", err)
	}

	var provider settlement.Provider = &settlement.StubProvider{}
	if cfg.Settlement.BaseURL != "" {
		provider = settlement.NewBankAPIProvider(cfg.Settlement.BaseURL, cfg.Settlement.APIKey, cfg.Settlement.WebhookBaseURL)
	} else {
		log.Printf("[settlement] no SETTLEMENT_BASE_URL set, using stub provider")
	}

	engine, tierSvc := router.Setup(cfg, db, cloud, provider)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go tierSvc.RunSweeper(sweepCtx, cfg.Tier.SweepInterval)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Printf("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")
	stopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server shutdown:", err)
	}
	fmt.Println("server stopped")
}
