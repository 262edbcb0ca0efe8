package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/orgauth/internal/auth/domain"
	"github.com/aussiebroadwan/orgauth/internal/auth/service"
	"github.com/aussiebroadwan/orgauth/pkg/httpx"
	"github.com/aussiebroadwan/orgauth/pkg/slogx"
)

// AuthHandler serves the credential and token lifecycle endpoints.
type AuthHandler struct {
	AuthService *service.AuthService
}

func clientMeta(r *http.Request) domain.ClientMeta {
	return domain.ClientMeta{
		UserAgent: r.UserAgent(),
		IP:        httpx.IPKeyExtractor(r),
	}
}

func decodeJSON(r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v) == nil
}

// HandleRegister serves POST /v1/auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req registerRequest
	if !decodeJSON(r, &req) || req.Email == "" || req.Password == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	u, pair, err := h.AuthService.Register(ctx, req.Email, req.Password, req.Name, req.OrganizationID, clientMeta(r))
	if err != nil {
		apiErr := mapServiceError(err)
		if apiErr == ErrServerError {
			log.Error("register failed", "err", err)
		}
		apiErr.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authResponse{
		User:  toUserResponse(u),
		Token: toTokenResponse(pair),
	})
}

// HandleLogin serves POST /v1/auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if !decodeJSON(r, &req) || req.Email == "" || req.Password == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	u, pair, err := h.AuthService.Login(ctx, req.Email, req.Password, req.RememberMe, clientMeta(r))
	if err != nil {
		apiErr := mapServiceError(err)
		if apiErr == ErrServerError {
			log.Error("login failed", "err", err)
		}
		apiErr.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authResponse{
		User:  toUserResponse(u),
		Token: toTokenResponse(pair),
	})
}

// HandleRefresh serves POST /v1/auth/refresh. Rotation is mandatory: the
// presented refresh token dies whether or not the call succeeds.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req refreshRequest
	if !decodeJSON(r, &req) || req.RefreshToken == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.AuthService.RefreshAccessToken(ctx, req.RefreshToken, clientMeta(r))
	if err != nil {
		apiErr := mapServiceError(err)
		if apiErr == ErrServerError {
			log.Error("refresh failed", "err", err)
		}
		apiErr.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTokenResponse(pair))
}

// HandleLogout serves POST /v1/auth/logout.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req logoutRequest
	if !decodeJSON(r, &req) || req.RefreshToken == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.AuthService.Logout(ctx, req.RefreshToken); err != nil {
		mapServiceError(err).WriteError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLogoutAll serves POST /v1/auth/logout-all for the authenticated
// user.
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	count, err := h.AuthService.LogoutAll(ctx, id.UserID)
	if err != nil {
		slogx.FromContext(ctx).Error("logout-all failed", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]int64{"revoked_sessions": count})
}

// HandleChangePassword serves POST /v1/auth/password for the authenticated
// user. Success logs every device out.
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	id, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	var req changePasswordRequest
	if !decodeJSON(r, &req) || req.CurrentPassword == "" || req.NewPassword == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.AuthService.ChangePassword(ctx, id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		apiErr := mapServiceError(err)
		if apiErr == ErrServerError {
			log.Error("change password failed", "err", err)
		}
		apiErr.WriteError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe serves GET /v1/auth/me.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IdentityFromContext(r.Context())
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	var orgID *string
	if id.OrganizationID != "" {
		v := id.OrganizationID
		orgID = &v
	}
	httpx.WriteJSON(w, http.StatusOK, userResponse{
		ID:             id.UserID,
		Email:          id.Email,
		Role:           id.Role,
		OrganizationID: orgID,
	})
}
