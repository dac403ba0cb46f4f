package handler

import (
	"net/http"

	"github.com/liquifund/liquidity/internal/service"
)

type SettingsHandler struct {
	settings *service.SettingsService
}

func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Maintenance handles GET /v1/settings/maintenance. It is public so clients
// can show a banner before signing in.
func (h *SettingsHandler) Maintenance(w http.ResponseWriter, r *http.Request) {
	st, err := h.settings.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "get maintenance status")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]bool{"maintenance_mode": st.MaintenanceMode})
}

// Get handles GET /v1/admin/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.settings.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "get settings")
		return
	}
	RespondJSON(w, http.StatusOK, st)
}

// Update handles PATCH /v1/admin/settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req service.UpdateSettingsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.MaintenanceMode == nil && req.EmailNotifications == nil {
		RespondError(w, r, http.StatusBadRequest, "request/empty-update", "no settings to update")
		return
	}
	st, err := h.settings.Update(r.Context(), actorID, req)
	if err != nil {
		writeServiceError(w, r, err, "update settings")
		return
	}
	RespondJSON(w, http.StatusOK, st)
}
