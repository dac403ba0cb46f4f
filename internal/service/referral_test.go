package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralRewardPaidOnceOnFirstRental(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	referrer := env.createUser(t, "referrer@example.com", nil)
	referred := env.createUser(t, "referred@example.com", &referrer.ID)
	env.fund(t, referred.ID, shillings(3000))

	_, err := env.rentals.Create(ctx, CreateRentalRequest{UserID: referred.ID, Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, shillings(500), env.wallet(t, referrer.ID).Balance)

	_, err = env.rentals.Create(ctx, CreateRentalRequest{UserID: referred.ID, Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, shillings(500), env.wallet(t, referrer.ID).Balance, "second rental must not pay again")

	overview, err := env.referrals.Overview(ctx, referrer.ID)
	require.NoError(t, err)
	require.Len(t, overview.Referrals, 1)
	assert.Equal(t, shillings(500), overview.Referrals[0].Reward)
	assert.NotNil(t, overview.Referrals[0].RewardedAt)
	env.requireBalanced(t)
}

func TestReferralNoRewardWithoutReferrer(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "solo@example.com", nil)
	env.fund(t, user.ID, shillings(1000))

	_, err := env.rentals.Create(ctx, CreateRentalRequest{UserID: user.ID, Currency: "EUR"})
	require.NoError(t, err)
	env.requireBalanced(t)
}

func TestReferralCodeLink(t *testing.T) {
	env := setupTestEnv(t)
	user := env.createUser(t, "code@example.com", nil)

	code, err := env.referrals.Code(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ReferralCode, code.Code)
	assert.True(t, strings.HasSuffix(code.Link, "/register?ref="+user.ReferralCode))
}
