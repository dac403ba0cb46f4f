package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "idempotency:"

// mirror is a best-effort Redis copy of finished records. Every failure is
// logged and treated as a miss; a nil mirror is valid and always misses.
type mirror struct {
	rdb redis.Cmdable
	ttl time.Duration
}

type mirrorEntry struct {
	Key         string `json:"key"`
	Hash        string `json:"hash"`
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
}

func newMirror(rdb redis.Cmdable, ttl time.Duration) *mirror {
	if rdb == nil {
		return nil
	}
	return &mirror{rdb: rdb, ttl: ttl}
}

func (m *mirror) get(ctx context.Context, key string) (*Record, bool) {
	if m == nil {
		return nil, false
	}
	raw, err := m.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("idempotency mirror read failed", zap.Error(err))
		}
		return nil, false
	}
	var e mirrorEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		zap.L().Warn("idempotency mirror entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &Record{
		Key:         e.Key,
		RequestHash: e.Hash,
		Status:      e.Status,
		Body:        e.Body,
		ContentType: e.ContentType,
		ServedBy:    servedByRedis,
	}, true
}

func (m *mirror) put(ctx context.Context, rec *Record) {
	if m == nil {
		return
	}
	raw, err := json.Marshal(mirrorEntry{
		Key:         rec.Key,
		Hash:        rec.RequestHash,
		Status:      rec.Status,
		Body:        rec.Body,
		ContentType: rec.ContentType,
	})
	if err != nil {
		zap.L().Warn("idempotency mirror encode failed", zap.Error(err))
		return
	}
	if err := m.rdb.Set(ctx, redisKeyPrefix+rec.Key, raw, m.ttl).Err(); err != nil {
		zap.L().Warn("idempotency mirror write failed", zap.Error(err))
	}
}
