package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/liquifund/liquidity/internal/domain"
	"github.com/liquifund/liquidity/internal/models"
	"github.com/liquifund/liquidity/internal/notify"
	"github.com/liquifund/liquidity/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const passwordSpecials = `!@#$%^&*(),.?":{}|<>`

// AuthService handles registration, login and password recovery.
type AuthService struct {
	store        QueryStore
	tokens       *TokenManager
	notifier     notify.Notifier
	audit        *AuditService
	frontendURL  string
	passwordCost int
}

func NewAuthService(store QueryStore, tokens *TokenManager, notifier notify.Notifier, frontendURL string) *AuthService {
	return &AuthService{
		store:        store,
		tokens:       tokens,
		notifier:     notifier,
		audit:        NewAuditService(),
		frontendURL:  strings.TrimRight(frontendURL, "/"),
		passwordCost: bcrypt.DefaultCost,
	}
}

// WithPasswordCost overrides the bcrypt cost.
func (s *AuthService) WithPasswordCost(cost int) *AuthService {
	s.passwordCost = cost
	return s
}

type RegisterRequest struct {
	Email        string
	FullName     string
	PhoneNumber  string
	Password     string
	ReferralCode string
}

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

// ValidatePassword enforces the password policy.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return invalid("password", "must be at least 8 characters")
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	switch {
	case !upper:
		return invalid("password", "must contain an upper-case letter")
	case !lower:
		return invalid("password", "must contain a lower-case letter")
	case !digit:
		return invalid("password", "must contain a digit")
	case !special:
		return invalid("password", "must contain one of %s", passwordSpecials)
	}
	return nil
}

// NewReferralCode derives a 12 character upper-case code from a random UUID.
func NewReferralCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:12])
}

// Register creates the user, the wallet and, when the referral code resolves,
// the referral link in one transaction.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.AuthResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalid("email", "a valid email is required")
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, invalid("full_name", "is required")
	}
	phone := ""
	if strings.TrimSpace(req.PhoneNumber) != "" {
		normalized, err := domain.NormalizePhone(req.PhoneNumber)
		if err != nil {
			return nil, invalid("phone_number", "%v", err)
		}
		phone = normalized
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.passwordCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var referrer *repository.User
	if code := strings.ToUpper(strings.TrimSpace(req.ReferralCode)); code != "" {
		ref, err := s.store.Queries().GetUserByReferralCode(ctx, code)
		switch {
		case err == nil:
			referrer = &ref
		case errors.Is(err, pgx.ErrNoRows):
			zap.L().Warn("ignoring unknown referral code", zap.String("code", code), zap.String("email", email))
		default:
			return nil, fmt.Errorf("resolve referral code: %w", err)
		}
	}

	var user repository.User
	var wallet repository.Wallet
	err = s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		if _, err := qtx.GetUserByEmail(ctx, email); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("check email: %w", err)
		}

		params := repository.CreateUserParams{
			ID:           uuid.New(),
			Email:        email,
			FullName:     fullName,
			PhoneNumber:  phone,
			PasswordHash: string(hash),
			Role:         domain.RoleUser,
			ReferralCode: NewReferralCode(),
		}
		if referrer != nil {
			params.ReferredBy = &referrer.ID
		}

		var err error
		user, err = qtx.CreateUser(ctx, params)
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		wallet, err = qtx.CreateWallet(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}

		if referrer != nil {
			if _, err := qtx.UpsertReferral(ctx, repository.UpsertReferralParams{
				ID:            uuid.New(),
				ReferrerID:    referrer.ID,
				ReferredID:    &user.ID,
				ReferredEmail: user.Email,
				ReferredName:  user.FullName,
				Status:        domain.ReferralStatusCompleted,
			}); err != nil {
				return fmt.Errorf("record referral: %w", err)
			}
		}

		return s.audit.Write(ctx, qtx, "user", user.ID, &user.ID, "registered", "", domain.RoleUser, nil)
	})
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, err
	}
	return &models.AuthResult{TokenPair: pair, User: buildProfile(user, &wallet)}, nil
}

// Login verifies credentials, records a session and issues tokens. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*models.AuthResult, error) {
	queries := s.store.Queries()
	user, err := queries.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserBlocked
	}

	if _, err := queries.InsertUserSession(ctx, repository.InsertUserSessionParams{
		ID:        uuid.New(),
		UserID:    user.ID,
		UserAgent: truncate(req.UserAgent, 255),
		IPAddress: req.IPAddress,
		LoginAt:   time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, err
	}
	var walletPtr *repository.Wallet
	if wallet, err := queries.GetWallet(ctx, user.ID); err == nil {
		walletPtr = &wallet
	}
	return &models.AuthResult{TokenPair: pair, User: buildProfile(user, walletPtr)}, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	_, userID, err := s.tokens.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	user, err := s.store.Queries().GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUserBlocked
	}
	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

// Logout closes the user's most recent open session.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.store.Queries().CloseLatestUserSession(ctx, userID); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// ForgotPassword issues a reset link when the email exists. It reports
// success either way.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.store.Queries().GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil
	}

	token, err := s.tokens.IssueReset(user)
	if err != nil {
		return err
	}
	link := s.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
	if err := s.notifier.PasswordReset(ctx, user.Email, user.FullName, link); err != nil {
		zap.L().Error("password reset notification failed", zap.Error(err), zap.String("user_id", user.ID.String()))
	}
	return nil
}

// ResetPassword sets a new password using a reset token.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, userID, err := s.tokens.Parse(token, TokenTypePasswordReset)
	if err != nil {
		return err
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.passwordCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		user, err := qtx.GetUser(ctx, userID)
		if err != nil {
			return notFound(err, ErrInvalidToken)
		}
		if claims.Fingerprint != passwordFingerprint(user.PasswordHash) {
			return ErrInvalidToken
		}
		rows, err := qtx.UpdateUserPassword(ctx, userID, string(hash))
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if err := requireExactlyOne(rows, "update password"); err != nil {
			return err
		}
		return s.audit.Write(ctx, qtx, "user", userID, &userID, "password_reset", "", "", nil)
	})
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
