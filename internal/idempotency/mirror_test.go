package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements the two commands the mirror uses.
type fakeRedis struct {
	redis.Cmdable
	data    map[string]string
	ttls    map[string]time.Duration
	readErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.readErr != nil {
		return redis.NewStringResult("", f.readErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestMirrorRoundTrip(t *testing.T) {
	rdb := newFakeRedis()
	m := newMirror(rdb, time.Hour)
	ctx := context.Background()

	_, ok := m.get(ctx, "u1:k")
	assert.False(t, ok)

	m.put(ctx, &Record{Key: "u1:k", RequestHash: "h", Status: 201, Body: []byte(`{"ok":true}`), ContentType: "application/json"})
	assert.Equal(t, time.Hour, rdb.ttls["idempotency:u1:k"])

	rec, ok := m.get(ctx, "u1:k")
	require.True(t, ok)
	assert.Equal(t, 201, rec.Status)
	assert.Equal(t, "h", rec.RequestHash)
	assert.JSONEq(t, `{"ok":true}`, string(rec.Body))
	assert.Equal(t, servedByRedis, rec.ServedBy)
}

func TestMirrorTreatsFailuresAsMisses(t *testing.T) {
	rdb := newFakeRedis()
	m := newMirror(rdb, time.Hour)
	ctx := context.Background()

	rdb.data["idempotency:bad"] = "not json"
	_, ok := m.get(ctx, "bad")
	assert.False(t, ok)

	rdb.readErr = errors.New("connection refused")
	_, ok = m.get(ctx, "bad")
	assert.False(t, ok)
}

func TestNilMirror(t *testing.T) {
	var m *mirror
	assert.Nil(t, newMirror(nil, time.Hour))
	m.put(context.Background(), &Record{Key: "k"})
	_, ok := m.get(context.Background(), "k")
	assert.False(t, ok)
}
