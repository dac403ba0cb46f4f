package domain

const (
	// BaseCurrency is the settlement currency for every wallet.
	BaseCurrency = "KES"

	RoleUser  = "user"
	RoleAdmin = "admin"

	// Wallet buckets
	BucketAvailable = "available"
	BucketRental    = "rental"

	// Wallet entry kinds
	EntryDeposit          = "deposit"
	EntryRentalLock       = "rental_lock"
	EntryRentalRelease    = "rental_release"
	EntryRentalYield      = "rental_yield"
	EntryRentalRefund     = "rental_refund"
	EntryReferralReward   = "referral_reward"
	EntryAdminAward       = "admin_award"
	EntryWithdrawalHold   = "withdrawal_hold"
	EntryWithdrawalRefund = "withdrawal_refund"

	// Entry reference types
	RefPayment    = "payment"
	RefRental     = "rental"
	RefReferral   = "referral"
	RefWithdrawal = "withdrawal"
	RefUser       = "user"

	RentalStatusActive    = "active"
	RentalStatusCompleted = "completed"
	RentalStatusFailed    = "failed"

	PaymentMethodMpesa  = "mpesa"
	PaymentMethodWallet = "wallet"

	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"

	ReferralStatusPending   = "pending"
	ReferralStatusCompleted = "completed"

	WithdrawalStatusPending    = "pending"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusApproved   = "approved"
	WithdrawalStatusPaid       = "paid"
	WithdrawalStatusRejected   = "rejected"
)
