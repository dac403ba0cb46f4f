package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestKycGetCreatesStub(t *testing.T) {
	env := setupTestEnv(t)
	user := env.createUser(t, "wanjiru@example.com", nil)
	ctx := context.Background()

	profile, err := env.kyc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.FullName, profile.FullName)
	assert.Equal(t, "wanjiru@example.com", profile.Email)
	assert.False(t, profile.IsVerified)

	again, err := env.kyc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, again.ID)

	_, err = env.kyc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestKycUpdateValidation(t *testing.T) {
	env := setupTestEnv(t)
	user := env.createUser(t, "otieno@example.com", nil)
	ctx := context.Background()

	var verr *ValidationError
	_, err := env.kyc.Update(ctx, user.ID, UpdateKycRequest{DateOfBirth: strPtr("01/02/1990")})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "date_of_birth", verr.Field)

	_, err = env.kyc.Update(ctx, user.ID, UpdateKycRequest{DateOfBirth: strPtr("2999-01-01")})
	require.ErrorAs(t, err, &verr)

	_, err = env.kyc.Update(ctx, user.ID, UpdateKycRequest{PhoneNumber: strPtr("12345")})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "phone_number", verr.Field)

	profile, err := env.kyc.Update(ctx, user.ID, UpdateKycRequest{
		PhoneNumber: strPtr("0712345678"),
		NationalID:  strPtr(" 12345678 "),
		DateOfBirth: strPtr("1990-02-01"),
		Address:     strPtr("Nairobi"),
	})
	require.NoError(t, err)
	assert.Equal(t, "254712345678", profile.PhoneNumber)
	assert.Equal(t, "12345678", profile.NationalID)
	require.NotNil(t, profile.DateOfBirth)
	assert.Equal(t, "1990-02-01", profile.DateOfBirth.Format(dateLayout))
}

func TestKycIdentityChangeClearsVerification(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.createUser(t, "admin@example.com", nil)
	user := env.createUser(t, "kamau@example.com", nil)
	ctx := context.Background()

	profile, err := env.kyc.Update(ctx, user.ID, UpdateKycRequest{NationalID: strPtr("11111111")})
	require.NoError(t, err)

	verified, err := env.kyc.Verify(ctx, admin.ID, profile.ID)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.NotNil(t, verified.VerifiedAt)

	page, err := env.kyc.List(ctx, "verified", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)

	kept, err := env.kyc.Update(ctx, user.ID, UpdateKycRequest{Address: strPtr("Mombasa")})
	require.NoError(t, err)
	assert.True(t, kept.IsVerified)

	cleared, err := env.kyc.Update(ctx, user.ID, UpdateKycRequest{NationalID: strPtr("22222222")})
	require.NoError(t, err)
	assert.False(t, cleared.IsVerified)

	page, err = env.kyc.List(ctx, "pending", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)

	_, err = env.kyc.List(ctx, "bogus", 0, 0)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = env.kyc.Verify(ctx, admin.ID, uuid.New())
	assert.ErrorIs(t, err, ErrKycNotFound)
}
