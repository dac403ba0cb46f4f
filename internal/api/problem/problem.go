// Package problem writes RFC 7807 problem documents. Every error the API
// returns goes through Write so clients can switch on the type URI.
package problem

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	contentType = "application/problem+json"
	baseTypeURL = "https://errors.liquidity.app/"
	blankType   = "about:blank"
)

// Details is the problem body. Field names the offending request field for
// validation failures.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	RequestID string `json:"request_id"`
	Field     string `json:"field,omitempty"`
}

// Type expands a slug such as "wallet/insufficient-funds" into a type URI.
// Absolute URIs pass through.
func Type(slug string) string {
	if slug == "" {
		return blankType
	}
	if strings.Contains(slug, "://") || slug == blankType {
		return slug
	}
	return baseTypeURL + slug
}

// Write sends a problem response.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	send(w, r, Details{Type: problemType, Title: title, Status: status, Detail: detail})
}

// WriteField sends a problem response tied to one request field.
func WriteField(w http.ResponseWriter, r *http.Request, status int, problemType, field, detail string) {
	send(w, r, Details{Type: problemType, Status: status, Detail: detail, Field: field})
}

func send(w http.ResponseWriter, r *http.Request, d Details) {
	if d.Title == "" {
		d.Title = http.StatusText(d.Status)
	}
	if d.Type == "" {
		d.Type = blankType
	}
	if r != nil {
		d.Instance = r.URL.Path
		d.RequestID = r.Header.Get("X-Trace-ID")
	}
	if d.RequestID == "" {
		d.RequestID = w.Header().Get("X-Trace-ID")
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(d.Status)
	_ = json.NewEncoder(w).Encode(d)
}
