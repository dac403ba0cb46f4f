package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const maxTraceIDLength = 128

// TraceMiddleware assigns every request a trace id. It honours X-Trace-ID,
// then X-Request-ID, then the trace-id of a W3C traceparent header, and
// otherwise mints a UUID. Ids that are oversized or carry characters unsafe
// for logs are discarded.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := incomingTraceID(r.Header)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		r.Header.Set("X-Trace-ID", traceID)
		w.Header().Set("X-Trace-ID", traceID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), traceContextKey, traceID)))
	})
}

func incomingTraceID(h http.Header) string {
	for _, name := range []string{"X-Trace-ID", "X-Request-ID"} {
		if id := strings.TrimSpace(h.Get(name)); validTraceID(id) {
			return id
		}
	}
	// version-traceid-parentid-flags
	parts := strings.Split(h.Get("Traceparent"), "-")
	if len(parts) == 4 && len(parts[1]) == 32 && validTraceID(parts[1]) && strings.Trim(parts[1], "0") != "" {
		return parts[1]
	}
	return ""
}

func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.' || c == ':':
		default:
			return false
		}
	}
	return true
}
