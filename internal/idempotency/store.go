// Package idempotency stores the first response to every keyed money-moving
// request so retries replay it instead of moving money twice.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/liquifund/liquidity/internal/repository"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound     = errors.New("idempotency key not found")
	ErrHashMismatch = errors.New("idempotency key body mismatch")
	ErrInProgress   = errors.New("idempotency key in progress")
)

const (
	servedByPostgres = "postgres"
	servedByRedis    = "redis"

	minPoll = 25 * time.Millisecond
	maxPoll = 400 * time.Millisecond
)

// Record is a finished response ready to be replayed.
type Record struct {
	Key         string
	RequestHash string
	Status      int
	Body        []byte
	ContentType string
	ServedBy    string
}

func recordFromRow(row repository.IdempotencyKey) *Record {
	return &Record{
		Key:         row.IdempotencyKey,
		RequestHash: row.RequestHash,
		Status:      int(row.ResponseStatus),
		Body:        row.ResponseBody,
		ContentType: row.ContentType,
		ServedBy:    servedByPostgres,
	}
}

// Store keeps records in Postgres, which decides every reservation. Finished
// records are mirrored into Redis when a client is configured.
type Store struct {
	queries *repository.Queries
	mirror  *mirror
	ttl     time.Duration
}

func NewStore(rdb redis.Cmdable, db repository.DBTX, ttl time.Duration) *Store {
	return &Store{queries: repository.New(db), mirror: newMirror(rdb, ttl), ttl: ttl}
}

// ScopedKey namespaces a client supplied key by the caller, so two users
// sending the same key never share a response.
func ScopedKey(owner, key string) string {
	if owner == "" {
		return "anon:" + key
	}
	return owner + ":" + key
}

// Lookup returns the finished record for key. ErrNotFound means the key is
// free, ErrInProgress that another request holds it.
func (s *Store) Lookup(ctx context.Context, key, requestHash string) (*Record, error) {
	if rec, ok := s.mirror.get(ctx, key); ok {
		if rec.RequestHash != requestHash {
			return nil, ErrHashMismatch
		}
		return rec, nil
	}

	row, err := s.queries.GetIdempotencyKey(ctx, key)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	case row.RequestHash != requestHash:
		return nil, ErrHashMismatch
	case row.InProgress:
		return nil, ErrInProgress
	}

	rec := recordFromRow(row)
	s.mirror.put(ctx, rec)
	return rec, nil
}

// Reserve claims key for this request. It reports false when another request
// already holds or finished the key.
func (s *Store) Reserve(ctx context.Context, key, requestHash, method, path string) (bool, error) {
	_, err := s.queries.ReserveIdempotencyKey(ctx, repository.ReserveIdempotencyKeyParams{
		IdempotencyKey: key,
		RequestHash:    requestHash,
		Method:         method,
		Path:           path,
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
}

// Finalize stores the response for a reservation held by this request.
func (s *Store) Finalize(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) (*Record, error) {
	row, err := s.queries.FinalizeIdempotencyKey(ctx, repository.FinalizeIdempotencyKeyParams{
		ResponseStatus: int32(status),
		ResponseBody:   body,
		ContentType:    contentType,
		IdempotencyKey: key,
		RequestHash:    requestHash,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finalize idempotency key: %w", err)
	}
	rec := recordFromRow(row)
	s.mirror.put(ctx, rec)
	return rec, nil
}

// Release forgets an unfinished reservation. Server errors are released
// rather than stored so the client may retry with the same key.
func (s *Store) Release(ctx context.Context, key, requestHash string) error {
	if _, err := s.queries.ReleaseIdempotencyKey(ctx, key, requestHash); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Purge deletes records last touched before the retention window.
func (s *Store) Purge(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.queries.PurgeIdempotencyKeys(ctx, now.Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("purge idempotency keys: %w", err)
	}
	return n, nil
}

// WaitForCompletion polls until the holder of key finishes, backing off from
// minPoll to maxPoll. A released key surfaces as ErrNotFound.
func (s *Store) WaitForCompletion(ctx context.Context, key, requestHash string) (*Record, error) {
	delay := minPoll
	timer := time.NewTimer(delay)
	defer timer.Stop()
	for {
		rec, err := s.Lookup(ctx, key, requestHash)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, ErrInProgress) {
			return rec, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, maxPoll)
		timer.Reset(delay)
	}
}
