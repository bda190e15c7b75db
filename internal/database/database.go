package database

import (
	"partnerly/config"
	"partnerly/internal/domain"
	"partnerly/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Partner{},
		&models.ReferralTouch{},
		&models.Attribution{},
		&models.Commission{},
		&models.LedgerEntry{},
		&models.Payout{},
		&models.TierChange{},
		&models.SystemSetting{},
		&models.AuditLog{},
	)
}

// SeedAdmin creates a default admin account if none exists yet.
func SeedAdmin(db *gorm.DB) {
	var count int64
	db.Model(&models.Partner{}).Where("role = ?", domain.RoleAdmin).Count(&count)
	if count > 0 {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-change-me"), bcrypt.DefaultCost)
	if err != nil {
		return
	}
	db.Create(&models.Partner{
		Name:         "Operations",
		Email:        "ops@partnerly.local",
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		CustomerID:   "ops",
		ReferralCode: "OPS00000",
		Status:       domain.PartnerActive,
		KYCStatus:    domain.KYCVerified,
	})
}
