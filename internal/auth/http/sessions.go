package http

import (
	"net/http"

	"github.com/aussiebroadwan/orgauth/internal/auth/service"
	"github.com/aussiebroadwan/orgauth/pkg/httpx"
	"github.com/aussiebroadwan/orgauth/pkg/slogx"
)

// SessionsHandler serves the authenticated user's refresh-session
// management endpoints.
type SessionsHandler struct {
	AuthService *service.AuthService
}

// HandleList serves GET /v1/sessions.
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	sessions, err := h.AuthService.ListSessions(ctx, id.UserID)
	if err != nil {
		slogx.FromContext(ctx).Error("list sessions failed", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResponse(s))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// HandleRevoke serves DELETE /v1/sessions/{id}. Only the owner's sessions
// are visible; anyone else's id yields 404.
func (h *SessionsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	sessionID := r.PathValue("id")
	if sessionID == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.AuthService.RevokeSession(ctx, sessionID, id.UserID); err != nil {
		mapServiceError(err).WriteError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
