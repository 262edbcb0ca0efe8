package domain

import "time"

// RevocationReason records why a refresh session left the active state.
// The set is closed so the session state machine can be matched exhaustively.
type RevocationReason string

const (
	ReasonRotated            RevocationReason = "rotated"
	ReasonLogout             RevocationReason = "logout"
	ReasonLogoutAll          RevocationReason = "logout_all"
	ReasonPasswordChange     RevocationReason = "password_change"
	ReasonExpired            RevocationReason = "expired"
	ReasonIdleTimeout        RevocationReason = "idle_timeout"
	ReasonSuspiciousActivity RevocationReason = "suspicious_activity"
)

// ClientMeta is the request metadata captured when a session is issued.
type ClientMeta struct {
	UserAgent string
	IP        string
}

// RefreshSession models one issued refresh token. The raw token is never
// stored; TokenHash is its SHA-256 fingerprint (base64url). At most one
// non-revoked session exists per fingerprint.
type RefreshSession struct {
	ID            string
	UserID        string
	TokenHash     string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	LastUsedAt    time.Time
	Revoked       bool
	RevokedReason RevocationReason // empty while active
	RevokedAt     *time.Time
	RememberMe    bool
	UserAgent     string
	IP            string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TokenPair is what the auth endpoints return: the short-lived access token
// and the long-lived refresh token.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // seconds until access expiry
}
