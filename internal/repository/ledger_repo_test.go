package repository

import (
	"errors"
	"fmt"
	"testing"

	"partnerly/internal/database"
	"partnerly/internal/domain"
	"partnerly/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

func newTestPartner(t *testing.T, db *gorm.DB) *models.Partner {
	t.Helper()
	p := &models.Partner{
		Name:         "alice",
		Email:        "alice@example.com",
		Role:         domain.RolePartner,
		CustomerID:   "cust-alice",
		ReferralCode: "REFALICE",
		Tier:         domain.TierBronze,
		Status:       domain.PartnerActive,
		KYCStatus:    domain.KYCVerified,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create partner: %v", err)
	}
	return p
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func appendEntry(t *testing.T, repo *LedgerRepository, partnerID uint, amount, reason string) *models.LedgerEntry {
	t.Helper()
	var entry *models.LedgerEntry
	err := repo.WithPartnerLock(partnerID, func(tx *gorm.DB, p *models.Partner) error {
		var err error
		entry, err = repo.AppendTx(tx, p, d(amount), reason, domain.RefCommission, 1)
		return err
	})
	if err != nil {
		t.Fatalf("append %s: %v", amount, err)
	}
	return entry
}

func TestAppendSequencesAndRunningBalance(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db)
	p := newTestPartner(t, db)

	e1 := appendEntry(t, repo, p.ID, "100.00", domain.ReasonCommissionCredit)
	e2 := appendEntry(t, repo, p.ID, "-40.00", domain.ReasonPayoutDebit)
	e3 := appendEntry(t, repo, p.ID, "5.25", domain.ReasonCommissionCredit)

	if e1.Seq != 1 || e2.Seq != 2 || e3.Seq != 3 {
		t.Fatalf("expected seq 1,2,3, got %d,%d,%d", e1.Seq, e2.Seq, e3.Seq)
	}
	if !e1.BalanceAfter.Equal(d("100.00")) || !e2.BalanceAfter.Equal(d("60.00")) || !e3.BalanceAfter.Equal(d("65.25")) {
		t.Fatalf("running balances wrong: %s, %s, %s", e1.BalanceAfter, e2.BalanceAfter, e3.BalanceAfter)
	}

	sum, err := repo.Balance(p.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !sum.Equal(d("65.25")) {
		t.Fatalf("ledger sum %s, want 65.25", sum)
	}

	var fresh models.Partner
	if err := db.First(&fresh, p.ID).Error; err != nil {
		t.Fatalf("reload partner: %v", err)
	}
	if !fresh.WalletBalance.Equal(sum) {
		t.Fatalf("cache %s diverged from ledger sum %s", fresh.WalletBalance, sum)
	}
}

func TestSequencesAreIndependentPerPartner(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db)
	p1 := newTestPartner(t, db)
	p2 := &models.Partner{
		Name:         "bob",
		Email:        "bob@example.com",
		Role:         domain.RolePartner,
		CustomerID:   "cust-bob",
		ReferralCode: "REFBOB",
		Tier:         domain.TierBronze,
		Status:       domain.PartnerActive,
		KYCStatus:    domain.KYCVerified,
	}
	if err := db.Create(p2).Error; err != nil {
		t.Fatalf("create partner: %v", err)
	}

	appendEntry(t, repo, p1.ID, "10", domain.ReasonCommissionCredit)
	appendEntry(t, repo, p1.ID, "10", domain.ReasonCommissionCredit)
	e := appendEntry(t, repo, p2.ID, "10", domain.ReasonCommissionCredit)
	if e.Seq != 1 {
		t.Fatalf("second partner must start at seq 1, got %d", e.Seq)
	}
}

func TestVerifyHaltsOnMismatchAndResolveRederives(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db)
	p := newTestPartner(t, db)
	appendEntry(t, repo, p.ID, "100.00", domain.ReasonCommissionCredit)

	if err := db.Model(p).Update("wallet_balance", d("250.00")).Error; err != nil {
		t.Fatalf("corrupt cache: %v", err)
	}

	err := repo.WithPartnerLock(p.ID, func(tx *gorm.DB, fresh *models.Partner) error {
		return repo.VerifyTx(tx, fresh)
	})
	if !errors.Is(err, domain.ErrReconciliationMismatch) {
		t.Fatalf("expected reconciliation mismatch, got %v", err)
	}
	var halted models.Partner
	if err := db.First(&halted, p.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !halted.PayoutsHalted {
		t.Fatal("mismatch must halt payouts")
	}

	balance, err := repo.Resolve(p.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !balance.Equal(d("100.00")) {
		t.Fatalf("resolved balance %s, want 100.00", balance)
	}
	var resolved models.Partner
	if err := db.First(&resolved, p.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if resolved.PayoutsHalted || !resolved.WalletBalance.Equal(d("100.00")) {
		t.Fatalf("resolve must lift the halt and fix the cache, got halted=%v balance=%s",
			resolved.PayoutsHalted, resolved.WalletBalance)
	}
}

func TestLockConflictRetriesThenSurfacesConcurrencyConflict(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db)
	p := newTestPartner(t, db)

	attempts := 0
	err := repo.WithPartnerLock(p.ID, func(tx *gorm.DB, _ *models.Partner) error {
		attempts++
		return errors.New("database is locked")
	})
	if !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict after exhausted retries, got %v", err)
	}
	if attempts != maxLockAttempts {
		t.Fatalf("expected %d attempts, got %d", maxLockAttempts, attempts)
	}
}

func TestNonConflictErrorIsNotRetried(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db)
	p := newTestPartner(t, db)

	boom := errors.New("constraint violation")
	attempts := 0
	err := repo.WithPartnerLock(p.ID, func(tx *gorm.DB, _ *models.Partner) error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("non-conflict errors must not retry, got %d attempts", attempts)
	}
}

func TestListNewestFirst(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db)
	p := newTestPartner(t, db)
	appendEntry(t, repo, p.ID, "10", domain.ReasonCommissionCredit)
	appendEntry(t, repo, p.ID, "20", domain.ReasonCommissionCredit)

	list, total, err := repo.List(p.ID, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Fatalf("expected 2 entries, got total=%d len=%d", total, len(list))
	}
	if list[0].Seq != 2 {
		t.Fatalf("expected newest first, got seq %d", list[0].Seq)
	}
}
