package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liquifund/liquidity/internal/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const settingsCacheKey = "settings:system"

// SettingsService serves the system settings singleton through a short
// lived Redis cache.
type SettingsService struct {
	store QueryStore
	redis redis.Cmdable
	ttl   time.Duration
	audit *AuditService
}

func NewSettingsService(store QueryStore, rdb redis.Cmdable, ttl time.Duration) *SettingsService {
	return &SettingsService{store: store, redis: rdb, ttl: ttl, audit: NewAuditService()}
}

type UpdateSettingsRequest struct {
	MaintenanceMode    *bool `json:"maintenance_mode"`
	EmailNotifications *bool `json:"email_notifications"`
}

func (s *SettingsService) Get(ctx context.Context) (*repository.SystemSettings, error) {
	if s.redis != nil && s.ttl > 0 {
		raw, err := s.redis.Get(ctx, settingsCacheKey).Bytes()
		if err == nil {
			var cached repository.SystemSettings
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		} else if err != redis.Nil {
			zap.L().Warn("redis settings lookup failed", zap.Error(err))
		}
	}

	settings, err := s.store.Queries().GetSystemSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load system settings: %w", err)
	}
	s.cache(ctx, settings)
	return &settings, nil
}

func (s *SettingsService) Update(ctx context.Context, actorID uuid.UUID, req UpdateSettingsRequest) (*repository.SystemSettings, error) {
	var updated repository.SystemSettings
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		prev, err := qtx.GetSystemSettings(ctx)
		if err != nil {
			return fmt.Errorf("load system settings: %w", err)
		}
		updated, err = qtx.UpdateSystemSettings(ctx, repository.UpdateSystemSettingsParams{
			MaintenanceMode:    req.MaintenanceMode,
			EmailNotifications: req.EmailNotifications,
		})
		if err != nil {
			return fmt.Errorf("update system settings: %w", err)
		}
		return s.audit.Write(ctx, qtx, "system_settings", uuid.Nil, &actorID, "updated",
			settingsState(prev), settingsState(updated), nil)
	})
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := s.redis.Del(ctx, settingsCacheKey).Err(); err != nil {
			zap.L().Warn("redis settings invalidation failed", zap.Error(err))
		}
	}
	zap.L().Info("system settings updated",
		zap.Bool("maintenance_mode", updated.MaintenanceMode),
		zap.Bool("email_notifications", updated.EmailNotifications),
		zap.String("actor_id", actorID.String()),
	)
	return &updated, nil
}

func settingsState(st repository.SystemSettings) string {
	return fmt.Sprintf("maintenance=%t,email=%t", st.MaintenanceMode, st.EmailNotifications)
}

// MaintenanceEnabled reports the maintenance flag. Lookup failures leave the
// platform open.
func (s *SettingsService) MaintenanceEnabled(ctx context.Context) bool {
	settings, err := s.Get(ctx)
	if err != nil {
		zap.L().Error("maintenance flag lookup failed", zap.Error(err))
		return false
	}
	return settings.MaintenanceMode
}

func (s *SettingsService) EmailNotificationsEnabled(ctx context.Context) bool {
	settings, err := s.Get(ctx)
	if err != nil {
		zap.L().Error("email notification flag lookup failed", zap.Error(err))
		return true
	}
	return settings.EmailNotifications
}

func (s *SettingsService) cache(ctx context.Context, settings repository.SystemSettings) {
	if s.redis == nil || s.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(settings)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, settingsCacheKey, payload, s.ttl).Err(); err != nil {
		zap.L().Warn("redis settings cache set failed", zap.Error(err))
	}
}
