package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/liquifund/liquidity/internal/api/problem"
	"github.com/liquifund/liquidity/internal/idempotency"
	"github.com/liquifund/liquidity/internal/observability"
	"go.uber.org/zap"
)

const (
	idempotencyHeader       = "Idempotency-Key"
	replayHeader            = "X-Idempotent-Replay"
	maxIdempotencyKeyLength = 255
)

// IdempotencyMiddleware enforces the Idempotency-Key contract on the routes it
// wraps. Keys are scoped to the authenticated user. The first response is
// stored and replayed for retries with the same body; server errors are
// released so the client can retry them. Safe methods pass through.
func IdempotencyMiddleware(store *idempotency.Store, logger *zap.Logger) func(http.Handler) http.Handler {
	g := &idemGuard{store: store, log: logger}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			g.serve(w, r, next)
		})
	}
}

func isSafeMethod(m string) bool {
	return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
}

type idemGuard struct {
	store *idempotency.Store
	log   *zap.Logger
}

func (g *idemGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	switch {
	case clientKey == "":
		observability.IncrementIdempotencyEvent("missing_key")
		g.reject(w, r, http.StatusBadRequest, "idempotency/missing-key", "Idempotency-Key header is required")
		return
	case len(clientKey) > maxIdempotencyKeyLength:
		g.reject(w, r, http.StatusBadRequest, "idempotency/invalid-key", "Idempotency-Key is too long")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		g.reject(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	key := idempotency.ScopedKey(UserIDFromContext(r.Context()), clientKey)
	hash := hashRequest(r.Method, r.URL.Path, body)
	ctx := r.Context()

	rec, err := g.store.Lookup(ctx, key, hash)
	switch {
	case err == nil:
		observability.IncrementIdempotencyEvent("replay")
		replay(w, rec)
		return
	case errors.Is(err, idempotency.ErrHashMismatch):
		g.keyReused(w, r)
		return
	case errors.Is(err, idempotency.ErrInProgress):
		g.awaitHolder(w, r, key, hash, "replay_after_wait")
		return
	case !errors.Is(err, idempotency.ErrNotFound):
		observability.IncrementIdempotencyEvent("lookup_error")
		g.log.Warn("idempotency lookup failed", zap.Error(err))
	}

	reserved, err := g.store.Reserve(ctx, key, hash, r.Method, r.URL.Path)
	if err != nil {
		observability.IncrementIdempotencyEvent("reserve_error")
		g.log.Error("idempotency reserve failed", zap.Error(err))
		g.reject(w, r, http.StatusServiceUnavailable, "idempotency/unavailable", "idempotency unavailable")
		return
	}
	if !reserved {
		g.awaitHolder(w, r, key, hash, "replay_after_reserve")
		return
	}
	observability.IncrementIdempotencyEvent("reserved")

	cw := &capturingWriter{ResponseWriter: w, status: http.StatusOK}
	next.ServeHTTP(cw, r)
	g.settle(r, key, hash, cw)
}

// settle releases the reservation after a server error and stores the
// response otherwise.
func (g *idemGuard) settle(r *http.Request, key, hash string, cw *capturingWriter) {
	ctx := r.Context()
	if cw.status >= http.StatusInternalServerError {
		if err := g.store.Release(ctx, key, hash); err != nil {
			g.log.Warn("idempotency release failed", zap.Error(err), zap.String("key", key))
		}
		observability.IncrementIdempotencyEvent("released")
		return
	}

	contentType := cw.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	if _, err := g.store.Finalize(ctx, key, hash, cw.status, cw.buf.Bytes(), contentType); err != nil {
		observability.IncrementIdempotencyEvent("finalize_error")
		g.log.Warn("idempotency finalize failed", zap.Error(err), zap.String("key", key))
		return
	}
	observability.IncrementIdempotencyEvent("finalized")
}

func (g *idemGuard) awaitHolder(w http.ResponseWriter, r *http.Request, key, hash, outcome string) {
	rec, err := g.store.WaitForCompletion(r.Context(), key, hash)
	switch {
	case err == nil:
		observability.IncrementIdempotencyEvent(outcome)
		replay(w, rec)
	case errors.Is(err, idempotency.ErrHashMismatch):
		g.keyReused(w, r)
	default:
		observability.IncrementIdempotencyEvent("in_progress_conflict")
		g.log.Warn("idempotency wait failed", zap.Error(err))
		g.reject(w, r, http.StatusConflict, "idempotency/in-progress", "a request with this Idempotency-Key is still processing")
	}
}

func (g *idemGuard) keyReused(w http.ResponseWriter, r *http.Request) {
	observability.IncrementIdempotencyEvent("hash_mismatch")
	g.reject(w, r, http.StatusUnprocessableEntity, "idempotency/key-reused", "Idempotency-Key was already used with a different request")
}

func (g *idemGuard) reject(w http.ResponseWriter, r *http.Request, status int, slug, detail string) {
	problem.Write(w, r, status, problem.Type(slug), "", detail)
}

// hashRequest fingerprints method, path and body so a key reused for a
// different request is detected.
func hashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// capturingWriter copies the response body aside while writing it through.
type capturingWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (c *capturingWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *capturingWriter) Write(b []byte) (int, error) {
	c.buf.Write(b)
	return c.ResponseWriter.Write(b)
}

func replay(w http.ResponseWriter, rec *idempotency.Record) {
	h := w.Header()
	h.Set("Content-Type", rec.ContentType)
	h.Set(replayHeader, rec.ServedBy)
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}
