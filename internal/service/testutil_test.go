package service

import (
	"fmt"
	"testing"

	"partnerly/internal/database"
	"partnerly/internal/domain"
	"partnerly/internal/models"
	"partnerly/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database migrated with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
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
	return db
}

// createPartner inserts an active, KYC-verified partner with bank details.
// The name doubles as the referral code and customer identity, so each test
// partner needs a distinct name.
func createPartner(t *testing.T, db *gorm.DB, name string) *models.Partner {
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
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create partner %s: %v", name, err)
	}
	return p
}

func reloadPartner(t *testing.T, db *gorm.DB, id uint) *models.Partner {
	t.Helper()
	var p models.Partner
	if err := db.First(&p, id).Error; err != nil {
		t.Fatalf("reload partner %d: %v", id, err)
	}
	return &p
}

// creditLedger appends a commission credit directly, for tests that need a
// funded balance without going through the commission flow.
func creditLedger(t *testing.T, db *gorm.DB, partnerID uint, amount decimal.Decimal) {
	t.Helper()
	ledgerRepo := repository.NewLedgerRepository(db)
	err := ledgerRepo.WithPartnerLock(partnerID, func(tx *gorm.DB, p *models.Partner) error {
		_, err := ledgerRepo.AppendTx(tx, p, amount, domain.ReasonCommissionCredit, domain.RefCommission, 1)
		return err
	})
	if err != nil {
		t.Fatalf("credit ledger: %v", err)
	}
}

func ledgerEntries(t *testing.T, db *gorm.DB, partnerID uint) []models.LedgerEntry {
	t.Helper()
	var entries []models.LedgerEntry
	if err := db.Where("partner_id = ?", partnerID).Order("seq ASC").Find(&entries).Error; err != nil {
		t.Fatalf("list ledger entries: %v", err)
	}
	return entries
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func assertDecimal(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(mustDecimal(t, want)) {
		t.Fatalf("got %s, want %s", got.String(), want)
	}
}
