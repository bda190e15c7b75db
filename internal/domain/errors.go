package domain

import "errors"

// Attribution outcomes that degrade to a no-op (the order proceeds unattributed).
var (
	ErrUnknownReferralCode  = errors.New("unknown or inactive referral code")
	ErrSelfReferral         = errors.New("partner cannot refer their own order")
	ErrDuplicateAttribution = errors.New("order already attributed")
	ErrAttributionExpired   = errors.New("referral capture outside attribution window")
)

// Money movement errors, always surfaced to the caller.
var (
	ErrInsufficientBalance    = errors.New("insufficient spendable balance")
	ErrKYCRequired            = errors.New("KYC verification required")
	ErrBankDetailsRequired    = errors.New("bank details required")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConcurrencyConflict    = errors.New("ledger write contention, retry")
	ErrReconciliationMismatch = errors.New("balance cache diverges from ledger sum")
	ErrPartnerInactive        = errors.New("partner is not active")
)
