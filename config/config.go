package config

import (
	"os"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Cloudinary CloudinaryConfig
	Webhook    WebhookConfig
	Settlement SettlementConfig
	Tier       TierConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

// WebhookConfig holds shared secrets for inbound event callbacks.
type WebhookConfig struct {
	OrderSecret      string
	SettlementSecret string
}

// SettlementConfig for the bank transfer API used to pay out partners.
type SettlementConfig struct {
	BaseURL        string
	APIKey         string
	WebhookBaseURL string // callback will be WebhookBaseURL + /api/v1/webhooks/settlement
}

type TierConfig struct {
	SweepInterval time.Duration // how often the tier re-evaluation batch runs
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8088"),
			Env:          getEnv("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_DSN", "partnerly:partnerly@tcp(localhost:3306)/partnerly?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret:  getEnv("JWT_ACCESS_SECRET", "change-me-in-production"),
			RefreshSecret: getEnv("JWT_REFRESH_SECRET", "change-me-refresh"),
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
			Issuer:        "partnerly",
		},
		Cloudinary: CloudinaryConfig{
			CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		},
		Webhook: WebhookConfig{
			OrderSecret:      getEnv("ORDER_WEBHOOK_SECRET", ""),
			SettlementSecret: getEnv("SETTLEMENT_WEBHOOK_SECRET", ""),
		},
		Settlement: SettlementConfig{
			BaseURL:        getEnv("SETTLEMENT_BASE_URL", ""),
			APIKey:         getEnv("SETTLEMENT_API_KEY", ""),
			WebhookBaseURL: getEnv("SETTLEMENT_WEBHOOK_BASE_URL", ""),
		},
		Tier: TierConfig{
			SweepInterval: 24 * time.Hour,
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
