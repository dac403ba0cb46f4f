package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/liquifund/liquidity/internal/domain"
	"github.com/liquifund/liquidity/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const strongPassword = "Sup3r$ecret"

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{strongPassword, false},
		{"Ab1!", true},
		{"alllower1!", true},
		{"ALLUPPER1!", true},
		{"NoDigits!!", true},
		{"NoSpecial12", true},
		{"Spaces Are1?", false},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewReferralCode(t *testing.T) {
	code := NewReferralCode()
	assert.Len(t, code, 12)
	assert.Regexp(t, `^[0-9A-F]{12}$`, code)
	assert.NotEqual(t, code, NewReferralCode())
}

func TestTokenManager(t *testing.T) {
	m := NewTokenManager(TokenConfig{
		Secret:     []byte(testSecret),
		Issuer:     "liquidity-test",
		Audience:   "liquidity-clients",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		ResetTTL:   time.Minute,
	})
	user := repository.User{ID: uuid.New(), Role: domain.RoleAdmin, PasswordHash: "hash"}

	pair, err := m.IssuePair(user)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)

	claims, id, err := m.Parse(pair.AccessToken, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
	assert.Equal(t, domain.RoleAdmin, claims.Role)

	_, _, err = m.Parse(pair.AccessToken, TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, _, err = m.Parse(pair.RefreshToken, TokenTypeRefresh)
	assert.NoError(t, err)

	other := NewTokenManager(TokenConfig{Secret: []byte("another-secret"), Issuer: "liquidity-test", Audience: "liquidity-clients", AccessTTL: time.Minute})
	_, _, err = other.Parse(pair.AccessToken, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, _, err = m.Parse(pair.AccessToken, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken, "access token must expire")
	_, _, err = m.Parse(pair.RefreshToken, TokenTypeRefresh)
	assert.NoError(t, err)
}

func TestRegisterAndLogin(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	referrer := env.createUser(t, "inviter@example.com", nil)

	res, err := env.auth.Register(ctx, RegisterRequest{
		Email:        "  New.User@Example.com ",
		FullName:     "New User",
		PhoneNumber:  "0712345678",
		Password:     strongPassword,
		ReferralCode: referrer.ReferralCode,
	})
	require.NoError(t, err)
	assert.Equal(t, "new.user@example.com", res.User.Email)
	assert.NotEmpty(t, res.AccessToken)
	require.NotNil(t, res.User.Wallet)
	assert.Zero(t, res.User.Wallet.Balance)

	referrals, err := env.store.Queries().ListReferralsByReferrer(ctx, referrer.ID)
	require.NoError(t, err)
	require.Len(t, referrals, 1)
	assert.Equal(t, res.User.ID, *referrals[0].ReferredID)

	_, err = env.auth.Register(ctx, RegisterRequest{Email: "new.user@example.com", FullName: "Dup", Password: strongPassword})
	assert.ErrorIs(t, err, ErrEmailTaken)

	login, err := env.auth.Login(ctx, LoginRequest{Email: "NEW.USER@example.com", Password: strongPassword, UserAgent: "test"})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)

	_, err = env.auth.Login(ctx, LoginRequest{Email: "new.user@example.com", Password: "Wr0ng!pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, LoginRequest{Email: "ghost@example.com", Password: strongPassword})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, env.users.SetActive(ctx, referrer.ID, res.User.ID, false))
	_, err = env.auth.Login(ctx, LoginRequest{Email: "new.user@example.com", Password: strongPassword})
	assert.ErrorIs(t, err, ErrUserBlocked)
	_, err = env.auth.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrUserBlocked)
}

func TestRegisterIgnoresUnknownReferralCode(t *testing.T) {
	env := setupTestEnv(t)
	res, err := env.auth.Register(context.Background(), RegisterRequest{
		Email:        "lonely@example.com",
		FullName:     "Lonely",
		Password:     strongPassword,
		ReferralCode: "FFFFFFFFFFFF",
	})
	require.NoError(t, err)

	user, err := env.store.Queries().GetUser(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.Nil(t, user.ReferredBy)
}

func TestPasswordResetIsSingleUse(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	_, err := env.auth.Register(ctx, RegisterRequest{Email: "forgot@example.com", FullName: "Forgot", Password: strongPassword})
	require.NoError(t, err)

	require.NoError(t, env.auth.ForgotPassword(ctx, "ghost@example.com"))
	assert.Empty(t, env.notifier.lastReset())

	require.NoError(t, env.auth.ForgotPassword(ctx, "forgot@example.com"))
	link, err := url.Parse(env.notifier.lastReset())
	require.NoError(t, err)
	assert.Equal(t, "/reset-password", link.Path)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	require.NoError(t, env.auth.ResetPassword(ctx, token, "N3w&Better"))
	assert.ErrorIs(t, env.auth.ResetPassword(ctx, token, "An0ther&One"), ErrInvalidToken)

	_, err = env.auth.Login(ctx, LoginRequest{Email: "forgot@example.com", Password: "N3w&Better"})
	assert.NoError(t, err)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 255))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "", truncate("é", 1))
	assert.Equal(t, "aé", truncate("aéb", 3))
	assert.Equal(t, "a", truncate("a€", 3))

	ua := "Mozilla/5.0 " + strings.Repeat("日本", 100)
	got := truncate(ua, 255)
	assert.LessOrEqual(t, len(got), 255)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasPrefix(ua, got))
}

func TestLoginStoresMultibyteUserAgent(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	res, err := env.auth.Register(ctx, RegisterRequest{Email: "agent@example.com", FullName: "Agent", Password: strongPassword})
	require.NoError(t, err)

	ua := strings.Repeat("é", 200)
	_, err = env.auth.Login(ctx, LoginRequest{Email: "agent@example.com", Password: strongPassword, UserAgent: ua, IPAddress: "127.0.0.1"})
	require.NoError(t, err)

	var stored string
	require.NoError(t, env.pool.QueryRow(ctx, `SELECT user_agent FROM user_sessions WHERE user_id = $1`, res.User.ID).Scan(&stored))
	assert.True(t, utf8.ValidString(stored))
	assert.Equal(t, strings.Repeat("é", 127), stored)
}
