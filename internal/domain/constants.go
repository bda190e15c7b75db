package domain

import "github.com/shopspring/decimal"

const (
	RolePartner = "PARTNER"
	RoleAdmin   = "ADMIN"
)

const (
	PartnerActive    = "ACTIVE"
	PartnerSuspended = "SUSPENDED"
	PartnerBlocked   = "BLOCKED"
)

const (
	KYCPending  = "PENDING"
	KYCVerified = "VERIFIED"
	KYCRejected = "REJECTED"
)

const (
	CommissionPending   = "PENDING"
	CommissionApproved  = "APPROVED"
	CommissionPaid      = "PAID"
	CommissionCancelled = "CANCELLED"
)

const (
	PayoutPending   = "PENDING"
	PayoutApproved  = "APPROVED"
	PayoutPaid      = "PAID"
	PayoutFailed    = "FAILED"
	PayoutCancelled = "CANCELLED"
)

// Ledger reason codes. Every entry traces to exactly one commission or payout.
const (
	ReasonCommissionCredit   = "COMMISSION_CREDIT"
	ReasonCommissionReversal = "COMMISSION_REVERSAL"
	ReasonPayoutDebit        = "PAYOUT_DEBIT"
	ReasonPayoutRefund       = "PAYOUT_REFUND"
)

const (
	RefCommission = "COMMISSION"
	RefPayout     = "PAYOUT"
)

// System setting keys (admin-tunable, seeded on boot).
const (
	SettingTDSRate            = "commission.tds_rate"        // fraction, e.g. 0.05
	SettingAttributionWindow  = "attribution.window_days"    // days a referral touch is honored
	SettingTierWindowDays     = "tier.window_days"           // trailing volume window
	SettingTierDemotionGrace  = "tier.demotion_grace"        // fraction below threshold tolerated
	SettingHighRiskAutoHold   = "commission.high_risk_hold"  // "1" = high-risk orders need manual approval
)

const (
	TierBronze   = "BRONZE"
	TierSilver   = "SILVER"
	TierGold     = "GOLD"
	TierPlatinum = "PLATINUM"
)

// TierSpec is one bracket of the commission rate schedule.
type TierSpec struct {
	Name      string
	Rate      decimal.Decimal // commission rate applied to the commissionable amount
	MinVolume decimal.Decimal // trailing gross order value needed to hold the tier
}

// Tiers is the rate schedule in ascending order. Index position is the tier rank.
var Tiers = []TierSpec{
	{Name: TierBronze, Rate: decimal.NewFromFloat(0.10), MinVolume: decimal.Zero},
	{Name: TierSilver, Rate: decimal.NewFromFloat(0.12), MinVolume: decimal.NewFromInt(250000)},
	{Name: TierGold, Rate: decimal.NewFromFloat(0.15), MinVolume: decimal.NewFromInt(1000000)},
	{Name: TierPlatinum, Rate: decimal.NewFromFloat(0.18), MinVolume: decimal.NewFromInt(5000000)},
}

// TierRank returns the position of a tier name in the schedule, or 0 (BRONZE) if unknown.
func TierRank(name string) int {
	for i, t := range Tiers {
		if t.Name == name {
			return i
		}
	}
	return 0
}

// TierByName returns the schedule entry for a tier name, defaulting to the base tier.
func TierByName(name string) TierSpec {
	return Tiers[TierRank(name)]
}
