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
)

const dateLayout = "2006-01-02"

// KycService keeps one identity profile per user.
type KycService struct {
	store QueryStore
	audit *AuditService
	now   func() time.Time
}

func NewKycService(store QueryStore) *KycService {
	return &KycService{store: store, audit: NewAuditService(), now: time.Now}
}

type UpdateKycRequest struct {
	FullName    *string
	PhoneNumber *string
	NationalID  *string
	DateOfBirth *string
	Address     *string
}

// ensureKyc returns the user's locked profile, creating a stub from the
// account details when none exists.
func ensureKyc(ctx context.Context, qtx *repository.Queries, user repository.User) (repository.KycProfile, error) {
	profile, err := qtx.GetKycByUserForUpdate(ctx, user.ID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return repository.KycProfile{}, fmt.Errorf("load kyc: %w", err)
	}
	if err := qtx.InsertKyc(ctx, repository.InsertKycParams{
		ID:          uuid.New(),
		UserID:      user.ID,
		FullName:    user.FullName,
		Email:       user.Email,
		PhoneNumber: user.PhoneNumber,
	}); err != nil {
		return repository.KycProfile{}, fmt.Errorf("create kyc: %w", err)
	}
	profile, err = qtx.GetKycByUserForUpdate(ctx, user.ID)
	if err != nil {
		return repository.KycProfile{}, fmt.Errorf("reload kyc: %w", err)
	}
	return profile, nil
}

// Get returns the user's profile, creating the stub on first access.
func (s *KycService) Get(ctx context.Context, userID uuid.UUID) (*repository.KycProfile, error) {
	var profile repository.KycProfile
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		user, err := qtx.GetUser(ctx, userID)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		profile, err = ensureKyc(ctx, qtx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Update changes the profile. Editing the national id or date of birth of a
// verified profile sends it back for verification.
func (s *KycService) Update(ctx context.Context, userID uuid.UUID, req UpdateKycRequest) (*repository.KycProfile, error) {
	var dob *time.Time
	if req.DateOfBirth != nil && strings.TrimSpace(*req.DateOfBirth) != "" {
		parsed, err := time.Parse(dateLayout, strings.TrimSpace(*req.DateOfBirth))
		if err != nil {
			return nil, invalid("date_of_birth", "must be formatted YYYY-MM-DD")
		}
		if parsed.After(s.now()) {
			return nil, invalid("date_of_birth", "cannot be in the future")
		}
		dob = &parsed
	}
	var phone string
	if req.PhoneNumber != nil && strings.TrimSpace(*req.PhoneNumber) != "" {
		normalized, err := domain.NormalizePhone(*req.PhoneNumber)
		if err != nil {
			return nil, invalid("phone_number", "%v", err)
		}
		phone = normalized
	}

	var updated repository.KycProfile
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		user, err := qtx.GetUser(ctx, userID)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		current, err := ensureKyc(ctx, qtx, user)
		if err != nil {
			return err
		}

		params := repository.UpdateKycParams{
			ID:          current.ID,
			FullName:    current.FullName,
			PhoneNumber: current.PhoneNumber,
			NationalID:  current.NationalID,
			DateOfBirth: current.DateOfBirth,
			Address:     current.Address,
			IsVerified:  current.IsVerified,
		}
		if req.FullName != nil {
			params.FullName = strings.TrimSpace(*req.FullName)
		}
		if req.PhoneNumber != nil {
			params.PhoneNumber = phone
		}
		if req.Address != nil {
			params.Address = strings.TrimSpace(*req.Address)
		}
		if req.NationalID != nil {
			nationalID := strings.TrimSpace(*req.NationalID)
			if nationalID != current.NationalID {
				params.IsVerified = false
			}
			params.NationalID = nationalID
		}
		if req.DateOfBirth != nil {
			if !sameDate(dob, current.DateOfBirth) {
				params.IsVerified = false
			}
			params.DateOfBirth = dob
		}

		updated, err = qtx.UpdateKyc(ctx, params)
		if err != nil {
			return fmt.Errorf("update kyc: %w", err)
		}
		if current.IsVerified && !updated.IsVerified {
			return s.audit.Write(ctx, qtx, "kyc", current.ID, &userID, "verification_cleared", "verified", "pending", nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Format(dateLayout) == b.Format(dateLayout)
}

// List filters by status: "verified", "pending" or "all".
func (s *KycService) List(ctx context.Context, status string, limit, offset int32) (*models.Page[repository.KycProfile], error) {
	limit, offset = clampPage(limit, offset)
	params := repository.ListKycParams{Limit: limit, Offset: offset}
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "", "all":
	case "verified":
		v := true
		params.Verified = &v
	case "pending":
		v := false
		params.Verified = &v
	default:
		return nil, invalid("status", "must be verified, pending or all")
	}

	items, err := s.store.Queries().ListKyc(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list kyc: %w", err)
	}
	if items == nil {
		items = []repository.KycProfile{}
	}
	return &models.Page[repository.KycProfile]{Items: items, Limit: limit, Offset: offset, Count: len(items)}, nil
}

// Verify marks a profile verified.
func (s *KycService) Verify(ctx context.Context, actorID, kycID uuid.UUID) (*repository.KycProfile, error) {
	var verified repository.KycProfile
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		current, err := qtx.GetKycForUpdate(ctx, kycID)
		if err != nil {
			return notFound(err, ErrKycNotFound)
		}
		if current.IsVerified {
			verified = current
			return nil
		}
		verified, err = qtx.VerifyKyc(ctx, kycID, s.now().UTC())
		if err != nil {
			return fmt.Errorf("verify kyc: %w", err)
		}
		return s.audit.Write(ctx, qtx, "kyc", kycID, &actorID, "verified", "pending", "verified", nil)
	})
	if err != nil {
		return nil, err
	}
	return &verified, nil
}
