package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/liquifund/liquidity/internal/models"
	"github.com/liquifund/liquidity/internal/repository"
)

const maxSupportMessage = 5000

// SupportService stores user messages and admin replies.
type SupportService struct {
	store QueryStore
}

func NewSupportService(store QueryStore) *SupportService {
	return &SupportService{store: store}
}

type CreateSupportMessageRequest struct {
	UserID  uuid.UUID
	Name    string
	Email   string
	Message string
}

type UpdateSupportMessageRequest struct {
	Reply  *string `json:"reply"`
	IsRead *bool   `json:"is_read"`
}

// Create stores a message. Name and email default to the sender's profile.
func (s *SupportService) Create(ctx context.Context, req CreateSupportMessageRequest) (*repository.SupportMessage, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, invalid("message", "is required")
	}
	if len(message) > maxSupportMessage {
		return nil, invalid("message", "must be at most %d characters", maxSupportMessage)
	}

	user, err := s.store.Queries().GetUser(ctx, req.UserID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = user.FullName
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		email = user.Email
	}

	msg, err := s.store.Queries().InsertSupportMessage(ctx, repository.InsertSupportMessageParams{
		ID:      uuid.New(),
		UserID:  &req.UserID,
		Name:    name,
		Email:   email,
		Message: message,
	})
	if err != nil {
		return nil, fmt.Errorf("insert support message: %w", err)
	}
	return &msg, nil
}

func (s *SupportService) ListOwn(ctx context.Context, userID uuid.UUID) ([]repository.SupportMessage, error) {
	items, err := s.store.Queries().ListUserSupportMessages(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list support messages: %w", err)
	}
	if items == nil {
		items = []repository.SupportMessage{}
	}
	return items, nil
}

func (s *SupportService) List(ctx context.Context, unreadOnly bool, limit, offset int32) (*models.Page[repository.SupportMessage], error) {
	limit, offset = clampPage(limit, offset)
	items, err := s.store.Queries().ListSupportMessages(ctx, repository.ListSupportMessagesParams{
		UnreadOnly: unreadOnly,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list support messages: %w", err)
	}
	if items == nil {
		items = []repository.SupportMessage{}
	}
	return &models.Page[repository.SupportMessage]{Items: items, Limit: limit, Offset: offset, Count: len(items)}, nil
}

// Update sets the admin reply and/or read flag.
func (s *SupportService) Update(ctx context.Context, id uuid.UUID, req UpdateSupportMessageRequest) (*repository.SupportMessage, error) {
	if req.Reply == nil && req.IsRead == nil {
		return nil, invalid("body", "reply or is_read is required")
	}
	msg, err := s.store.Queries().UpdateSupportMessage(ctx, repository.UpdateSupportMessageParams{
		ID:     id,
		Reply:  req.Reply,
		IsRead: req.IsRead,
	})
	if err != nil {
		return nil, notFound(err, ErrSupportMessageAbsent)
	}
	return &msg, nil
}
