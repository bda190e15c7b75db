package service

import (
	"testing"
	"time"

	"partnerly/internal/domain"
	"partnerly/internal/models"
	"partnerly/internal/repository"

	"gorm.io/gorm"
)

func newCommissionService(db *gorm.DB) *CommissionService {
	return NewCommissionService(
		repository.NewCommissionRepository(db),
		repository.NewLedgerRepository(db),
		repository.NewTierRepository(db),
		repository.NewSettingRepository(db),
		nil,
	)
}

func TestComputeCreditsNetOfWithholding(t *testing.T) {
	db := newTestDB(t)
	svc := newCommissionService(db)
	p := createPartner(t, db, "alice")

	c, err := svc.Compute(&models.Attribution{PartnerID: p.ID}, OrderEvent{
		OrderID:  "ord-1",
		Amount:   mustDecimal(t, "10000"),
		PlacedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	assertDecimal(t, c.GrossAmount, "1000")
	assertDecimal(t, c.TDSAmount, "50")
	assertDecimal(t, c.NetAmount, "950")
	if c.Tier != domain.TierBronze {
		t.Fatalf("expected BRONZE rate, got %s", c.Tier)
	}
	if c.Status != domain.CommissionApproved {
		t.Fatalf("expected APPROVED, got %s", c.Status)
	}

	entries := ledgerEntries(t, db, p.ID)
	if len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(entries))
	}
	assertDecimal(t, entries[0].Amount, "950")
	if entries[0].Reason != domain.ReasonCommissionCredit {
		t.Fatalf("expected commission credit, got %s", entries[0].Reason)
	}
	assertDecimal(t, reloadPartner(t, db, p.ID).WalletBalance, "950")
}

func TestComputeRoundsHalfEven(t *testing.T) {
	db := newTestDB(t)
	svc := newCommissionService(db)
	p := createPartner(t, db, "alice")

	cases := []struct {
		orderID string
		amount  string
		gross   string
		tds     string
		net     string
	}{
		{"ord-down", "100.25", "10.02", "0.50", "9.52"}, // 10.025 ties to even 2
		{"ord-up", "100.75", "10.08", "0.50", "9.58"},   // 10.075 ties to even 8
		{"ord-tds", "101.00", "10.10", "0.50", "9.60"},  // TDS 0.505 ties to even 0
	}
	for _, tc := range cases {
		c, err := svc.Compute(&models.Attribution{PartnerID: p.ID}, OrderEvent{
			OrderID:  tc.orderID,
			Amount:   mustDecimal(t, tc.amount),
			PlacedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("%s: compute: %v", tc.orderID, err)
		}
		if !c.GrossAmount.Equal(mustDecimal(t, tc.gross)) {
			t.Errorf("%s: gross %s, want %s", tc.orderID, c.GrossAmount, tc.gross)
		}
		if !c.TDSAmount.Equal(mustDecimal(t, tc.tds)) {
			t.Errorf("%s: tds %s, want %s", tc.orderID, c.TDSAmount, tc.tds)
		}
		if !c.NetAmount.Equal(mustDecimal(t, tc.net)) {
			t.Errorf("%s: net %s, want %s", tc.orderID, c.NetAmount, tc.net)
		}
	}
}

func TestComputeIdempotentPerOrder(t *testing.T) {
	db := newTestDB(t)
	svc := newCommissionService(db)
	p := createPartner(t, db, "alice")
	ev := OrderEvent{OrderID: "ord-1", Amount: mustDecimal(t, "10000"), PlacedAt: time.Now()}

	first, err := svc.Compute(&models.Attribution{PartnerID: p.ID}, ev)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	second, err := svc.Compute(&models.Attribution{PartnerID: p.ID}, ev)
	if err != nil {
		t.Fatalf("redelivered compute: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("redelivery created a second commission: %d vs %d", second.ID, first.ID)
	}
	if entries := ledgerEntries(t, db, p.ID); len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry after redelivery, got %d", len(entries))
	}
	assertDecimal(t, reloadPartner(t, db, p.ID).WalletBalance, "950")
}

func TestHighRiskOrderHeldUntilApproved(t *testing.T) {
	db := newTestDB(t)
	svc := newCommissionService(db)
	p := createPartner(t, db, "alice")

	c, err := svc.Compute(&models.Attribution{PartnerID: p.ID}, OrderEvent{
		OrderID:  "ord-1",
		Amount:   mustDecimal(t, "10000"),
		PlacedAt: time.Now(),
		HighRisk: true,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if c.Status != domain.CommissionPending {
		t.Fatalf("high-risk commission must stay PENDING, got %s", c.Status)
	}
	if entries := ledgerEntries(t, db, p.ID); len(entries) != 0 {
		t.Fatalf("held commission must not credit the ledger, got %d entries", len(entries))
	}

	released, err := svc.Approve(c.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if released.Status != domain.CommissionApproved {
		t.Fatalf("expected APPROVED, got %s", released.Status)
	}
	assertDecimal(t, reloadPartner(t, db, p.ID).WalletBalance, "950")

	// Replayed approval must not credit twice.
	if _, err := svc.Approve(c.ID); err != nil {
		t.Fatalf("replayed approve: %v", err)
	}
	if entries := ledgerEntries(t, db, p.ID); len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry after replay, got %d", len(entries))
	}
}

func TestReverseApprovedCommission(t *testing.T) {
	db := newTestDB(t)
	svc := newCommissionService(db)
	p := createPartner(t, db, "alice")

	if _, err := svc.Compute(&models.Attribution{PartnerID: p.ID}, OrderEvent{
		OrderID:  "ord-1",
		Amount:   mustDecimal(t, "10000"),
		PlacedAt: time.Now(),
	}); err != nil {
		t.Fatalf("compute: %v", err)
	}

	c, err := svc.Reverse("ord-1")
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if c.Status != domain.CommissionCancelled {
		t.Fatalf("expected CANCELLED, got %s", c.Status)
	}

	entries := ledgerEntries(t, db, p.ID)
	if len(entries) != 2 {
		t.Fatalf("expected credit + compensating entry, got %d", len(entries))
	}
	assertDecimal(t, entries[1].Amount, "-950")
	if entries[1].Reason != domain.ReasonCommissionReversal {
		t.Fatalf("expected reversal entry, got %s", entries[1].Reason)
	}
	assertDecimal(t, reloadPartner(t, db, p.ID).WalletBalance, "0")

	// Redelivered reversal is a no-op.
	if _, err := svc.Reverse("ord-1"); err != nil {
		t.Fatalf("replayed reverse: %v", err)
	}
	if entries := ledgerEntries(t, db, p.ID); len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries after replay, got %d", len(entries))
	}
}

func TestReverseReplayAfterLostRaceIsNoOp(t *testing.T) {
	db := newTestDB(t)
	svc := newCommissionService(db)
	p := createPartner(t, db, "alice")

	c, err := svc.Compute(&models.Attribution{PartnerID: p.ID}, OrderEvent{
		OrderID:  "ord-1",
		Amount:   mustDecimal(t, "10000"),
		PlacedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	// A redelivered cancellation reads APPROVED, then loses the partner lock
	// to another worker that commits the reversal first.
	stale := *c
	if _, err := svc.Reverse("ord-1"); err != nil {
		t.Fatalf("reverse: %v", err)
	}

	ledgerRepo := repository.NewLedgerRepository(db)
	err = ledgerRepo.WithPartnerLock(p.ID, func(tx *gorm.DB, partner *models.Partner) error {
		credited, err := svc.reverseTx(tx, partner, &stale)
		if credited {
			t.Error("replayed reversal must not credit a second compensating entry")
		}
		return err
	})
	if err != nil {
		t.Fatalf("replayed reverseTx: %v", err)
	}
	if stale.Status != domain.CommissionCancelled {
		t.Fatalf("replay must adopt the fresh status, got %s", stale.Status)
	}

	entries := ledgerEntries(t, db, p.ID)
	if len(entries) != 2 {
		t.Fatalf("expected credit + one reversal, got %d entries", len(entries))
	}
	assertDecimal(t, reloadPartner(t, db, p.ID).WalletBalance, "0")
}

func TestReverseHeldCommissionSkipsLedger(t *testing.T) {
	db := newTestDB(t)
	svc := newCommissionService(db)
	p := createPartner(t, db, "alice")

	if _, err := svc.Compute(&models.Attribution{PartnerID: p.ID}, OrderEvent{
		OrderID:  "ord-1",
		Amount:   mustDecimal(t, "10000"),
		PlacedAt: time.Now(),
		HighRisk: true,
	}); err != nil {
		t.Fatalf("compute: %v", err)
	}

	c, err := svc.Reverse("ord-1")
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if c.Status != domain.CommissionCancelled {
		t.Fatalf("expected CANCELLED, got %s", c.Status)
	}
	if entries := ledgerEntries(t, db, p.ID); len(entries) != 0 {
		t.Fatalf("uncredited commission must not produce ledger entries, got %d", len(entries))
	}

	// A cancelled commission can no longer be released.
	if _, err := svc.Approve(c.ID); err != domain.ErrInvalidStateTransition {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestReverseUnknownOrderIsNoOp(t *testing.T) {
	db := newTestDB(t)
	svc := newCommissionService(db)

	c, err := svc.Reverse("ord-nope")
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil commission, got %+v", c)
	}
}

func TestRateFixedAtOrderPlacement(t *testing.T) {
	db := newTestDB(t)
	svc := newCommissionService(db)
	p := createPartner(t, db, "alice")
	now := time.Now()

	// Promotion lands between the order being placed and completing.
	if err := db.Create(&models.TierChange{
		PartnerID:      p.ID,
		FromTier:       domain.TierBronze,
		ToTier:         domain.TierSilver,
		TrailingVolume: mustDecimal(t, "300000"),
		EffectiveAt:    now,
	}).Error; err != nil {
		t.Fatalf("record tier change: %v", err)
	}

	before, err := svc.Compute(&models.Attribution{PartnerID: p.ID}, OrderEvent{
		OrderID:  "ord-before",
		Amount:   mustDecimal(t, "10000"),
		PlacedAt: now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if before.Tier != domain.TierBronze {
		t.Fatalf("order placed before the promotion must use BRONZE, got %s", before.Tier)
	}
	assertDecimal(t, before.GrossAmount, "1000")

	after, err := svc.Compute(&models.Attribution{PartnerID: p.ID}, OrderEvent{
		OrderID:  "ord-after",
		Amount:   mustDecimal(t, "10000"),
		PlacedAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if after.Tier != domain.TierSilver {
		t.Fatalf("order placed after the promotion must use SILVER, got %s", after.Tier)
	}
	assertDecimal(t, after.GrossAmount, "1200")
}
