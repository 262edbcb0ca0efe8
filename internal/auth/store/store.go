package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/orgauth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// CleanupPolicy controls which refresh sessions the housekeeping sweep may
// permanently delete.
type CleanupPolicy struct {
	// IdleWindow is how long an unused session survives (normal logins).
	IdleWindow time.Duration
	// IdleWindowRememberMe is the extended window for remember-me sessions.
	IdleWindowRememberMe time.Duration
	// RevokedRetention is how long revoked rows are kept for auditing and
	// theft detection before hard deletion.
	RevokedRetention time.Duration
}

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable.
type Store interface {
	Users() Users
	RefreshSessions() RefreshSessions
	Organizations() Organizations

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., refresh
	// rotation). The caller MUST call Commit() or Rollback() on the result.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login. Email matching is exact.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// UpdateLastLogin records a successful login.
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error

	// ListUserOrganizationIDs returns the user's directly-assigned
	// organization ids (primary organization plus explicit memberships),
	// deduplicated.
	ListUserOrganizationIDs(ctx context.Context, userID string) ([]string, error)

	// AddUserOrganization assigns a direct organization membership.
	AddUserOrganization(ctx context.Context, userID, orgID string) error

	// RemoveUserOrganization removes a direct organization membership.
	RemoveUserOrganization(ctx context.Context, userID, orgID string) error
}

type RefreshSessions interface {
	// CreateRefreshSession stores a new refresh session record. The token
	// fingerprint is unique; a fingerprint is never reused.
	CreateRefreshSession(ctx context.Context, s domain.RefreshSession) error

	// GetRefreshSessionByHash returns the session by token fingerprint.
	// When includeRevoked is true, revoked rows are returned as well; theft
	// detection depends on seeing them.
	GetRefreshSessionByHash(ctx context.Context, hash string, includeRevoked bool) (domain.RefreshSession, error)

	// ListUserRefreshSessions returns all non-revoked, non-expired sessions
	// for a user, newest first.
	ListUserRefreshSessions(ctx context.Context, userID string) ([]domain.RefreshSession, error)

	// RevokeRefreshSession conditionally revokes the session matching the
	// fingerprint (revoke-if-not-already-revoked). Returns true when this
	// call performed the revocation; false when the session was missing or
	// already revoked. Only one of two racing callers observes true.
	RevokeRefreshSession(ctx context.Context, hash string, reason domain.RevocationReason) (bool, error)

	// RevokeRefreshSessionByID revokes by session id, constrained to the
	// owning user so cross-user attempts look identical to not-found.
	RevokeRefreshSessionByID(ctx context.Context, id, userID string, reason domain.RevocationReason) (bool, error)

	// RevokeAllUserRefreshSessions bulk-revokes every non-revoked session
	// for a user and returns the number affected.
	RevokeAllUserRefreshSessions(ctx context.Context, userID string, reason domain.RevocationReason) (int64, error)

	// DeleteStaleRefreshSessions permanently deletes sessions that are
	// expired, idle-timed-out, or revoked beyond the retention window.
	DeleteStaleRefreshSessions(ctx context.Context, now time.Time, policy CleanupPolicy) (int64, error)
}

type Organizations interface {
	// GetOrganizationByID returns a single organization.
	GetOrganizationByID(ctx context.Context, id string) (domain.Organization, error)

	// ListActiveOrganizations returns every active organization. The scope
	// resolver indexes this snapshot by id for traversal.
	ListActiveOrganizations(ctx context.Context) ([]domain.Organization, error)

	// CreateOrganization inserts a node. Parent validation (cycle, depth)
	// happens in the service layer before this is called.
	CreateOrganization(ctx context.Context, o domain.Organization) error

	// UpdateOrganizationParent re-parents a node. nil parentID makes it a
	// root.
	UpdateOrganizationParent(ctx context.Context, orgID string, parentID *string) error
}
