package http

import (
	"time"

	"github.com/aussiebroadwan/orgauth/internal/auth/domain"
)

type registerRequest struct {
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	Name           string  `json:"name"`
	OrganizationID *string `json:"organization_id,omitempty"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type createOrgRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
}

type reparentRequest struct {
	ParentID *string `json:"parent_id"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type userResponse struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	OrganizationID *string `json:"organization_id,omitempty"`
}

type authResponse struct {
	User  userResponse  `json:"user"`
	Token tokenResponse `json:"token"`
}

type sessionResponse struct {
	ID         string    `json:"id"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	RememberMe bool      `json:"remember_me"`
	UserAgent  string    `json:"user_agent,omitempty"`
	IP         string    `json:"ip,omitempty"`
}

type orgResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
	Active   bool    `json:"active"`
}

type scopeResponse struct {
	CanAccessAll    bool     `json:"can_access_all"`
	OrganizationIDs []string `json:"organization_ids"`
}

type healthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		Role:           u.Role.String(),
		OrganizationID: u.OrganizationID,
	}
}

func toTokenResponse(pair *domain.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	}
}

func toSessionResponse(s domain.RefreshSession) sessionResponse {
	return sessionResponse{
		ID:         s.ID,
		IssuedAt:   s.IssuedAt,
		ExpiresAt:  s.ExpiresAt,
		LastUsedAt: s.LastUsedAt,
		RememberMe: s.RememberMe,
		UserAgent:  s.UserAgent,
		IP:         s.IP,
	}
}

func toOrgResponse(o domain.Organization) orgResponse {
	return orgResponse{
		ID:       o.ID,
		Name:     o.Name,
		ParentID: o.ParentID,
		Active:   o.Active,
	}
}
