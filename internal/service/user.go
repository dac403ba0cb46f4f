package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/liquifund/liquidity/internal/domain"
	"github.com/liquifund/liquidity/internal/models"
	"github.com/liquifund/liquidity/internal/repository"
	"go.uber.org/zap"
)

// UserService manages profiles and the admin user tools.
type UserService struct {
	store  QueryStore
	ledger *Ledger
	audit  *AuditService
}

func NewUserService(store QueryStore, ledger *Ledger) *UserService {
	return &UserService{store: store, ledger: ledger, audit: NewAuditService()}
}

type UpdateProfileRequest struct {
	FullName    *string
	PhoneNumber *string
}

func buildProfile(user repository.User, wallet *repository.Wallet) models.Profile {
	p := models.Profile{
		ID:           user.ID,
		Email:        user.Email,
		FullName:     user.FullName,
		PhoneNumber:  user.PhoneNumber,
		Role:         user.Role,
		IsActive:     user.IsActive,
		ReferralCode: user.ReferralCode,
		DateJoined:   user.CreatedAt,
	}
	if wallet != nil {
		summary := walletSummary(*wallet)
		p.Wallet = &summary
	}
	return p
}

func walletSummary(w repository.Wallet) models.WalletSummary {
	return models.WalletSummary{
		UserID:        w.UserID,
		Currency:      domain.BaseCurrency,
		Balance:       w.Balance,
		RentalBalance: w.RentalBalance,
		Total:         w.Balance + w.RentalBalance,
	}
}

func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	queries := s.store.Queries()
	user, err := queries.GetUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	var walletPtr *repository.Wallet
	wallet, err := queries.GetWallet(ctx, userID)
	switch {
	case err == nil:
		walletPtr = &wallet
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	profile := buildProfile(user, walletPtr)
	return &profile, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*models.Profile, error) {
	current, err := s.store.Queries().GetUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}

	params := repository.UpdateUserProfileParams{
		ID:          userID,
		FullName:    current.FullName,
		PhoneNumber: current.PhoneNumber,
	}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, invalid("full_name", "cannot be empty")
		}
		params.FullName = name
	}
	if req.PhoneNumber != nil {
		if strings.TrimSpace(*req.PhoneNumber) == "" {
			params.PhoneNumber = ""
		} else {
			phone, err := domain.NormalizePhone(*req.PhoneNumber)
			if err != nil {
				return nil, invalid("phone_number", "%v", err)
			}
			params.PhoneNumber = phone
		}
	}

	if _, err := s.store.Queries().UpdateUserProfile(ctx, params); err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return s.GetProfile(ctx, userID)
}

// DeleteAccount removes the user once nothing is owed to them.
func (s *UserService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	return s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		if _, err := qtx.GetWalletForUpdate(ctx, userID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("lock wallet: %w", err)
		}
		obligations, err := qtx.GetUserObligations(ctx, userID)
		if err != nil {
			return fmt.Errorf("load obligations: %w", err)
		}
		if obligations.WalletTotal > 0 || obligations.ActiveRentals > 0 || obligations.OpenWithdrawals > 0 {
			return ErrAccountHasObligations
		}
		rows, err := qtx.DeleteUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if rows == 0 {
			return ErrUserNotFound
		}
		return s.audit.Write(ctx, qtx, "user", userID, &userID, "deleted", "", "", nil)
	})
}

func (s *UserService) ListUsers(ctx context.Context, search string, limit, offset int32) (*models.Page[models.Profile], error) {
	limit, offset = clampPage(limit, offset)
	search = strings.TrimSpace(search)
	queries := s.store.Queries()

	users, err := queries.ListUsers(ctx, repository.ListUsersParams{Search: search, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	total, err := queries.CountUsers(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	items := make([]models.Profile, 0, len(users))
	for _, u := range users {
		var walletPtr *repository.Wallet
		if wallet, err := queries.GetWallet(ctx, u.ID); err == nil {
			walletPtr = &wallet
		}
		items = append(items, buildProfile(u, walletPtr))
	}
	return &models.Page[models.Profile]{Items: items, Limit: limit, Offset: offset, Count: len(items), Total: total}, nil
}

// SetActive blocks or unblocks a non-admin user.
func (s *UserService) SetActive(ctx context.Context, actorID, userID uuid.UUID, active bool) error {
	return s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		user, err := qtx.GetUser(ctx, userID)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		if user.Role == domain.RoleAdmin {
			return ErrCannotBlockAdmin
		}
		rows, err := qtx.SetUserActive(ctx, userID, active)
		if err != nil {
			return fmt.Errorf("set user active: %w", err)
		}
		if err := requireExactlyOne(rows, "set user active"); err != nil {
			return err
		}
		action := "unblocked"
		if !active {
			action = "blocked"
		}
		return s.audit.Write(ctx, qtx, "user", userID, &actorID, action, activeState(user.IsActive), activeState(active), nil)
	})
}

func activeState(active bool) string {
	if active {
		return "active"
	}
	return "blocked"
}

// Award credits a user's available balance and marks their KYC verified,
// creating the profile when it does not exist yet.
func (s *UserService) Award(ctx context.Context, actorID, userID uuid.UUID, amount int64, note string) (*models.WalletSummary, error) {
	if amount <= 0 {
		return nil, invalid("amount", "must be greater than zero")
	}

	var wallet repository.Wallet
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		user, err := qtx.GetUser(ctx, userID)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		movementID, err := s.ledger.Credit(ctx, qtx, userID, amount, domain.EntryAdminAward, domain.RefUser, userID)
		if err != nil {
			return err
		}

		kyc, err := ensureKyc(ctx, qtx, user)
		if err != nil {
			return err
		}
		if !kyc.IsVerified {
			if _, err := qtx.VerifyKyc(ctx, kyc.ID, time.Now().UTC()); err != nil {
				return fmt.Errorf("verify kyc: %w", err)
			}
		}

		wallet, err = qtx.GetWallet(ctx, userID)
		if err != nil {
			return fmt.Errorf("reload wallet: %w", err)
		}
		return s.audit.Write(ctx, qtx, "user", userID, &actorID, "awarded", "", "", map[string]any{
			"amount_cents": amount,
			"movement_id":  movementID,
			"note":         note,
		})
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("wallet award credited",
		zap.String("user_id", userID.String()),
		zap.String("actor_id", actorID.String()),
		zap.Int64("amount_cents", amount),
	)
	summary := walletSummary(wallet)
	return &summary, nil
}

// PromoteAdmin grants the admin role to the account with email.
func (s *UserService) PromoteAdmin(ctx context.Context, email string) error {
	rows, err := s.store.Queries().SetUserRoleByEmail(ctx, normalizeEmail(email), domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("promote admin: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Wallet returns the user's balances.
func (s *UserService) Wallet(ctx context.Context, userID uuid.UUID) (*models.WalletSummary, error) {
	wallet, err := s.store.Queries().GetWallet(ctx, userID)
	if err != nil {
		return nil, notFound(err, ErrWalletNotFound)
	}
	summary := walletSummary(wallet)
	return &summary, nil
}

// WalletEntries pages through the user's journal, newest first.
func (s *UserService) WalletEntries(ctx context.Context, userID uuid.UUID, limit, offset int32) (*models.Page[repository.WalletEntry], error) {
	limit, offset = clampPage(limit, offset)
	entries, err := s.store.Queries().ListWalletEntries(ctx, repository.ListWalletEntriesParams{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list wallet entries: %w", err)
	}
	if entries == nil {
		entries = []repository.WalletEntry{}
	}
	return &models.Page[repository.WalletEntry]{Items: entries, Limit: limit, Offset: offset, Count: len(entries)}, nil
}

// IsActive reports whether the account exists and is not blocked.
func (s *UserService) IsActive(ctx context.Context, userID uuid.UUID) (bool, error) {
	user, err := s.store.Queries().GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("load user: %w", err)
	}
	return user.IsActive, nil
}
