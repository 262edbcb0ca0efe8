package service

import "errors"

// Authentication and session errors. These are the internal taxonomy; the
// HTTP layer maps them to client-facing codes and keeps the precise kind
// for server-side logs only.
var (
	ErrInvalidCredentials     = errors.New("invalid_credentials")
	ErrAccountDisabled        = errors.New("account_disabled")
	ErrEmailAlreadyExists     = errors.New("email_already_exists")
	ErrInvalidToken           = errors.New("invalid_token")
	ErrTokenExpired           = errors.New("token_expired")
	ErrInvalidTokenType       = errors.New("invalid_token_type")
	ErrInvalidRefreshToken    = errors.New("invalid_refresh_token")
	ErrRefreshTokenExpired    = errors.New("refresh_token_expired")
	ErrIdleTimeout            = errors.New("idle_timeout")
	ErrTokenReuseDetected     = errors.New("token_reuse_detected")
	ErrUserNotFound           = errors.New("user_not_found")
	ErrTokenNotFound          = errors.New("token_not_found")
	ErrSessionNotFound        = errors.New("session_not_found")
	ErrInvalidCurrentPassword = errors.New("invalid_current_password")
)

// Organization hierarchy errors.
var (
	ErrCycleDetected    = errors.New("cycle_detected")
	ErrMaxDepthExceeded = errors.New("max_depth_exceeded")
	ErrOrgNotFound      = errors.New("organization_not_found")
)
