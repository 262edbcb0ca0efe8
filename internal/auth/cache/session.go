package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aussiebroadwan/orgauth/internal/auth/domain"
)

const (
	// DefaultProfileTTL is how long a cached user profile stays hot.
	DefaultProfileTTL = 15 * time.Minute

	// DefaultScopeTTL matches the access-token TTL so a stale scope can
	// outlive a token by at most one cache window.
	DefaultScopeTTL = 15 * time.Minute
)

// SessionCache holds hot user profile data, the per-user monotonic session
// version counter, and resolved organization scopes. It is best-effort: a
// miss is always resolvable from the durable store or a safe default
// (session version = 1).
type SessionCache struct {
	kv         KV
	profileTTL time.Duration
	scopeTTL   time.Duration
}

func NewSessionCache(kv KV) *SessionCache {
	return &SessionCache{
		kv:         kv,
		profileTTL: DefaultProfileTTL,
		scopeTTL:   DefaultScopeTTL,
	}
}

const scopeEpochKey = "scope:epoch"

func userKey(userID string) string    { return "user:" + userID }
func versionKey(userID string) string { return "sv:" + userID }
func scopeKey(userID string, role domain.Role) string {
	return "scope:" + userID + ":" + role.String()
}

// GetUser returns the cached profile or nil on miss.
func (c *SessionCache) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	raw, found, err := c.kv.Get(ctx, userKey(userID))
	if err != nil || !found {
		return nil, err
	}

	var u domain.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		// Corrupt entry: drop it and treat as a miss.
		_ = c.kv.Delete(ctx, userKey(userID))
		return nil, nil
	}
	return &u, nil
}

func (c *SessionCache) SetUser(ctx context.Context, u domain.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal user profile: %w", err)
	}
	return c.kv.Set(ctx, userKey(u.ID), string(data), c.profileTTL)
}

func (c *SessionCache) DeleteUser(ctx context.Context, userID string) error {
	return c.kv.Delete(ctx, userKey(userID))
}

// GetSessionVersion returns the user's current session version, defaulting
// to 1 when the counter is absent (it is rebuildable, never persisted).
func (c *SessionCache) GetSessionVersion(ctx context.Context, userID string) (int64, error) {
	raw, found, err := c.kv.Get(ctx, versionKey(userID))
	if err != nil {
		return 0, err
	}
	if !found {
		return 1, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return 1, nil
	}
	return v, nil
}

func (c *SessionCache) SetSessionVersion(ctx context.Context, userID string, version int64) error {
	return c.kv.Set(ctx, versionKey(userID), strconv.FormatInt(version, 10), 0)
}

// IncrementSessionVersion bumps the counter and returns the new version.
// An absent counter reads as 1, so the first increment must land on 2 or
// tokens minted against the default would survive the bump.
func (c *SessionCache) IncrementSessionVersion(ctx context.Context, userID string) (int64, error) {
	v, err := c.kv.Increment(ctx, versionKey(userID))
	if err != nil {
		return 0, err
	}
	if v == 1 {
		return c.kv.Increment(ctx, versionKey(userID))
	}
	return v, nil
}

// InvalidateUserSession bumps the session version and drops the cached
// profile. Any access token minted before this call fails the session
// version check even though its signature still verifies.
func (c *SessionCache) InvalidateUserSession(ctx context.Context, userID string) error {
	if _, err := c.IncrementSessionVersion(ctx, userID); err != nil {
		return err
	}
	return c.DeleteUser(ctx, userID)
}

// scopeEntry is the stored form of a resolved scope. The epoch pins the
// entry to the organization tree it was computed against; a tree mutation
// bumps the epoch and orphans every older entry at once.
type scopeEntry struct {
	Epoch int64           `json:"epoch"`
	Scope domain.OrgScope `json:"scope"`
}

// GetScope returns the cached organization scope for a (user, role) pair,
// or nil on miss. Entries computed against an older tree epoch read as
// misses and are dropped.
func (c *SessionCache) GetScope(ctx context.Context, userID string, role domain.Role) (*domain.OrgScope, error) {
	raw, found, err := c.kv.Get(ctx, scopeKey(userID, role))
	if err != nil || !found {
		return nil, err
	}

	var e scopeEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		_ = c.kv.Delete(ctx, scopeKey(userID, role))
		return nil, nil
	}

	epoch, err := c.ScopeEpoch(ctx)
	if err != nil {
		return nil, err
	}
	if e.Epoch != epoch {
		_ = c.kv.Delete(ctx, scopeKey(userID, role))
		return nil, nil
	}
	return &e.Scope, nil
}

func (c *SessionCache) SetScope(ctx context.Context, userID string, role domain.Role, scope domain.OrgScope) error {
	epoch, err := c.ScopeEpoch(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(scopeEntry{Epoch: epoch, Scope: scope})
	if err != nil {
		return fmt.Errorf("marshal org scope: %w", err)
	}
	return c.kv.Set(ctx, scopeKey(userID, role), string(data), c.scopeTTL)
}

// InvalidateScope drops the cached scope for every role of one user; the
// role set is closed so the keys are enumerable without a scan. Used when
// one user's memberships or role change.
func (c *SessionCache) InvalidateScope(ctx context.Context, userID string) error {
	for _, role := range domain.Roles {
		if err := c.kv.Delete(ctx, scopeKey(userID, role)); err != nil {
			return err
		}
	}
	return nil
}

// ScopeEpoch returns the current organization-tree epoch (1 when absent).
func (c *SessionCache) ScopeEpoch(ctx context.Context) (int64, error) {
	raw, found, err := c.kv.Get(ctx, scopeEpochKey)
	if err != nil {
		return 0, err
	}
	if !found {
		return 1, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return 1, nil
	}
	return v, nil
}

// BumpScopeEpoch invalidates every cached scope at once. Called when any
// organization is created, moved, or deleted.
func (c *SessionCache) BumpScopeEpoch(ctx context.Context) error {
	v, err := c.kv.Increment(ctx, scopeEpochKey)
	if err != nil {
		return err
	}
	if v == 1 {
		// Absent epoch reads as 1; the first bump must land past it.
		_, err = c.kv.Increment(ctx, scopeEpochKey)
	}
	return err
}
