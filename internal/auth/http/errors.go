package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/orgauth/internal/auth/service"
	"github.com/aussiebroadwan/orgauth/pkg/httpx"
)

// APIError is the wire form of every handler failure: a stable machine
// code plus a human-readable description.
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the stable error code (e.g., "invalid_credentials")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

var (
	// ErrInvalidRequest is returned when the request body is malformed or
	// missing required fields.
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        "invalid_request",
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidCredentials deliberately covers both unknown-account and
	// wrong-password failures.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        "invalid_credentials",
		Description: "invalid email or password",
	}

	ErrAccountDisabled = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        "account_disabled",
		Description: "the account is disabled",
	}

	ErrEmailTaken = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        "email_already_exists",
		Description: "an account with this email already exists",
	}

	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        "invalid_token",
		Description: "the token is invalid, expired, or revoked",
	}

	ErrTokenReuse = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        "token_reuse_detected",
		Description: "refresh token reuse detected; all sessions revoked",
	}

	ErrForbidden = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        "forbidden",
		Description: "insufficient privileges for this resource",
	}

	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        "not_found",
		Description: "the requested resource does not exist",
	}

	ErrCycle = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        "cycle_detected",
		Description: "the new parent is a descendant of the organization",
	}

	ErrTooDeep = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        "max_depth_exceeded",
		Description: "the organization tree depth limit would be exceeded",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        "server_error",
		Description: "an unexpected error occurred",
	}
)

// mapServiceError translates service sentinels into wire errors. Anything
// unmapped is a server error the handler should also log.
func mapServiceError(err error) *APIError {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidCurrentPassword):
		return ErrInvalidCredentials
	case errors.Is(err, service.ErrAccountDisabled):
		return ErrAccountDisabled
	case errors.Is(err, service.ErrEmailAlreadyExists):
		return ErrEmailTaken
	case errors.Is(err, service.ErrTokenReuseDetected):
		return ErrTokenReuse
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrInvalidTokenType),
		errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrRefreshTokenExpired),
		errors.Is(err, service.ErrIdleTimeout):
		return ErrInvalidToken
	case errors.Is(err, service.ErrTokenNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrOrgNotFound):
		return ErrNotFound
	case errors.Is(err, service.ErrCycleDetected):
		return ErrCycle
	case errors.Is(err, service.ErrMaxDepthExceeded):
		return ErrTooDeep
	default:
		return ErrServerError
	}
}
