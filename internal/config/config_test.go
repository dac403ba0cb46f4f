package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-0123456789-test-secret"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("MPESA_ENV", "mock")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 15*time.Minute, cfg.PasswordResetTTL)
	assert.Equal(t, int32(20), cfg.RentalDurationDays)
	assert.True(t, cfg.RentalReturnMultiplier.Equal(decimal.NewFromInt(2)))
	assert.True(t, cfg.ReferralRewardRate.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, int64(10_000), cfg.WithdrawalMinAmount)
	assert.Equal(t, 48*time.Hour, cfg.WithdrawalEscalation)
	assert.Equal(t, 24*time.Hour, cfg.PaymentExpiry)
}

func TestLoadPrefixedNames(t *testing.T) {
	t.Setenv("LIQUIDITY_JWT_SECRET", testSecret)
	t.Setenv("LIQUIDITY_PORT", "9090")
	t.Setenv("LIQUIDITY_MPESA_ENV", "mock")
	t.Setenv("LIQUIDITY_RENTAL_DURATION_DAYS", "30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, int32(30), cfg.RentalDurationDays)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing_secret",
			env:  map[string]string{"JWT_SECRET": "", "MPESA_ENV": "mock"},
			want: "JWT_SECRET is required",
		},
		{
			name: "short_secret",
			env:  map[string]string{"JWT_SECRET": "short", "MPESA_ENV": "mock"},
			want: "at least 32 characters",
		},
		{
			name: "bad_duration",
			env:  map[string]string{"JWT_SECRET": testSecret, "MPESA_ENV": "mock", "PAYMENT_EXPIRY": "soon"},
			want: "invalid PAYMENT_EXPIRY",
		},
		{
			name: "reward_rate_out_of_range",
			env:  map[string]string{"JWT_SECRET": testSecret, "MPESA_ENV": "mock", "REFERRAL_REWARD_RATE": "1.5"},
			want: "REFERRAL_REWARD_RATE",
		},
		{
			name: "sandbox_without_credentials",
			env:  map[string]string{"JWT_SECRET": testSecret, "MPESA_ENV": "sandbox"},
			want: "MPESA_CALLBACK_URL, MPESA_CONSUMER_KEY",
		},
		{
			name: "unknown_mpesa_env",
			env:  map[string]string{"JWT_SECRET": testSecret, "MPESA_ENV": "staging"},
			want: "MPESA_ENV must be one of",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
