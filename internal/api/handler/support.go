package handler

import (
	"net/http"

	"github.com/liquifund/liquidity/internal/service"
)

type SupportHandler struct {
	support *service.SupportService
}

func NewSupportHandler(support *service.SupportService) *SupportHandler {
	return &SupportHandler{support: support}
}

type createSupportMessageRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Create handles POST /v1/support/messages.
func (h *SupportHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req createSupportMessageRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	msg, err := h.support.Create(r.Context(), service.CreateSupportMessageRequest{
		UserID:  actorID,
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
	})
	if err != nil {
		writeServiceError(w, r, err, "create support message")
		return
	}
	RespondJSON(w, http.StatusCreated, msg)
}

// List handles GET /v1/support/messages.
func (h *SupportHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	items, err := h.support.ListOwn(r.Context(), actorID)
	if err != nil {
		writeServiceError(w, r, err, "list support messages")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}
