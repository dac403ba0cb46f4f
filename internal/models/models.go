package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInsufficientFunds is returned when a wallet bucket cannot cover a movement.
var ErrInsufficientFunds = errors.New("insufficient funds")

// WalletSummary is the user-facing view of a wallet.
type WalletSummary struct {
	UserID        uuid.UUID `json:"user_id"`
	Currency      string    `json:"currency"`
	Balance       int64     `json:"balance_cents"`
	RentalBalance int64     `json:"rental_balance_cents"`
	Total         int64     `json:"total_cents"`
}

// Profile is a user without credentials, enriched with the wallet.
type Profile struct {
	ID           uuid.UUID      `json:"id"`
	Email        string         `json:"email"`
	FullName     string         `json:"full_name"`
	PhoneNumber  string         `json:"phone_number"`
	Role         string         `json:"role"`
	IsActive     bool           `json:"is_active"`
	ReferralCode string         `json:"referral_code"`
	DateJoined   time.Time      `json:"date_joined"`
	Wallet       *WalletSummary `json:"wallet,omitempty"`
}

// RentalView adds maturity information to a stored rental.
type RentalView struct {
	ID             uuid.UUID  `json:"id"`
	Currency       string     `json:"currency"`
	Amount         int64      `json:"amount_cents"`
	ExpectedReturn int64      `json:"expected_return_cents"`
	Status         string     `json:"status"`
	DurationDays   int32      `json:"duration_days"`
	CreatedAt      time.Time  `json:"created_at"`
	EndDate        time.Time  `json:"end_date"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	IsMature       bool       `json:"is_mature"`
	DaysRemaining  int        `json:"days_remaining"`
}

// TokenPair is returned by login and registration.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// AuthResult bundles the issued tokens with the authenticated profile.
type AuthResult struct {
	TokenPair
	User Profile `json:"user"`
}

// Page is the envelope used by paged list endpoints.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
	Count  int   `json:"count"`
	Total  int64 `json:"total_count"`
}
