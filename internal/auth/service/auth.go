package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/orgauth/internal/auth/cache"
	"github.com/aussiebroadwan/orgauth/internal/auth/domain"
	"github.com/aussiebroadwan/orgauth/internal/auth/store"
	"github.com/aussiebroadwan/orgauth/pkg/cryptox"
	"github.com/aussiebroadwan/orgauth/pkg/idx"
	"github.com/aussiebroadwan/orgauth/pkg/jwtx"
	"github.com/aussiebroadwan/orgauth/pkg/slogx"
)

// Idle windows for refresh sessions. A session unused for longer than its
// window is revoked on next use and swept by housekeeping.
const (
	DefaultIdleWindow           = 7 * 24 * time.Hour
	DefaultIdleWindowRememberMe = 30 * 24 * time.Hour
)

// errRotationRace signals that the conditional revoke inside a rotation
// affected zero rows: another caller rotated the same token concurrently.
// The loser must treat this as theft detection, not a benign race.
var errRotationRace = errors.New("rotation race lost")

// TokenInfo is what VerifyToken attaches to the request context.
type TokenInfo struct {
	UserID         string
	Email          string
	Role           domain.Role
	OrganizationID *string
}

// AuthService orchestrates the session lifecycle: registration, login,
// token verification, mandatory refresh rotation with theft detection,
// password changes, and logout.
type AuthService struct {
	Store store.Store
	Cache *cache.SessionCache
	Codec *jwtx.Codec

	Audience []string

	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RememberMeTTL time.Duration

	IdleWindow           time.Duration
	IdleWindowRememberMe time.Duration
}

// NewAuthService applies the default TTLs and idle windows.
func NewAuthService(st store.Store, c *cache.SessionCache, codec *jwtx.Codec, audience []string) *AuthService {
	return &AuthService{
		Store:                st,
		Cache:                c,
		Codec:                codec,
		Audience:             audience,
		AccessTTL:            jwtx.DefaultAccessTTL,
		RefreshTTL:           jwtx.DefaultRefreshTTL,
		RememberMeTTL:        jwtx.DefaultRememberMeTTL,
		IdleWindow:           DefaultIdleWindow,
		IdleWindowRememberMe: DefaultIdleWindowRememberMe,
	}
}

// Register creates a new user with the lowest-privilege role and issues a
// token pair. Fails with ErrEmailAlreadyExists when the email is taken.
func (s *AuthService) Register(
	ctx context.Context,
	email, password, name string,
	orgID *string,
	meta domain.ClientMeta,
) (domain.User, *domain.TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, nil, err
	}

	u := domain.User{
		ID:             idx.New().String(),
		Email:          email,
		Name:           name,
		PasswordHash:   hash,
		Role:           domain.RoleUser,
		OrganizationID: orgID,
		Active:         true,
	}

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, nil, ErrEmailAlreadyExists
		}
		return domain.User{}, nil, err
	}

	pair, err := s.issueTokens(ctx, u, false, meta)
	if err != nil {
		return domain.User{}, nil, err
	}
	return u, pair, nil
}

// Login verifies credentials and issues a token pair. Unknown email and
// wrong password return the identical ErrInvalidCredentials so callers
// cannot enumerate accounts.
func (s *AuthService) Login(
	ctx context.Context,
	email, password string,
	rememberMe bool,
	meta domain.ClientMeta,
) (domain.User, *domain.TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a verification anyway so the unknown-email path costs
			// the same as a wrong password.
			_ = cryptox.VerifyPassword(password, dummyHash)
			return domain.User{}, nil, ErrInvalidCredentials
		}
		return domain.User{}, nil, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		l.Info("login password mismatch", slog.String("user_id", u.ID))
		return domain.User{}, nil, ErrInvalidCredentials
	}

	if !u.Active {
		return domain.User{}, nil, ErrAccountDisabled
	}

	now := time.Now().UTC()
	if err := s.Store.Users().UpdateLastLogin(ctx, u.ID, now); err != nil {
		return domain.User{}, nil, err
	}
	u.LastLoginAt = &now

	pair, err := s.issueTokens(ctx, u, rememberMe, meta)
	if err != nil {
		return domain.User{}, nil, err
	}
	return u, pair, nil
}

// VerifyToken validates an access token, re-fetches the user, and checks
// the claim's session version against the current one so a bulk
// invalidation rejects stale-but-unexpired tokens immediately.
func (s *AuthService) VerifyToken(ctx context.Context, accessToken string) (TokenInfo, error) {
	claims, err := s.Codec.VerifyAccess(accessToken)
	if err != nil {
		return TokenInfo{}, mapCodecError(err)
	}

	u, err := s.loadUser(ctx, claims.Subject)
	if err != nil {
		return TokenInfo{}, err
	}
	if !u.Active {
		return TokenInfo{}, ErrAccountDisabled
	}

	current, err := s.Cache.GetSessionVersion(ctx, u.ID)
	if err != nil {
		// Cache failure: fall back to the safe default rather than
		// rejecting live traffic.
		slogx.FromContext(ctx).Warn("session version unavailable, assuming default",
			slog.Any("error", err))
		current = 1
	}
	if claims.SessionVersion < current {
		slogx.FromContext(ctx).Info("access token stale session version",
			slog.String("user_id", u.ID),
			slog.Int64("token_sv", claims.SessionVersion),
			slog.Int64("current_sv", current))
		return TokenInfo{}, ErrInvalidToken
	}

	return TokenInfo{
		UserID:         u.ID,
		Email:          u.Email,
		Role:           u.Role,
		OrganizationID: u.OrganizationID,
	}, nil
}

// RefreshAccessToken implements mandatory single-use rotation. Presenting
// an already-revoked refresh token is treated as theft: every session for
// the owning user is revoked before the error surfaces.
func (s *AuthService) RefreshAccessToken(
	ctx context.Context,
	rawRefreshToken string,
	meta domain.ClientMeta,
) (*domain.TokenPair, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	claims, err := s.Codec.VerifyRefresh(rawRefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, jwtx.ErrWrongType):
			return nil, ErrInvalidTokenType
		case errors.Is(err, jwtx.ErrExpired):
			return nil, ErrRefreshTokenExpired
		default:
			return nil, ErrInvalidRefreshToken
		}
	}

	// Theft detection needs to see revoked rows, so the lookup includes
	// them and the check happens before any mutation.
	fp := cryptox.FingerprintToken(rawRefreshToken)
	sess, err := s.Store.RefreshSessions().GetRefreshSessionByHash(ctx, fp, true)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	if sess.Revoked {
		return nil, s.handleTokenReuse(ctx, sess)
	}

	// The stored expiry can precede the claim expiry (verifier leeway, TTL
	// changes), so a lapsed row is retired here instead of waiting for the
	// housekeeping sweep.
	if now.After(sess.ExpiresAt) {
		_, _ = s.Store.RefreshSessions().RevokeRefreshSession(ctx, fp, domain.ReasonExpired)
		return nil, ErrRefreshTokenExpired
	}

	if s.IsIdleTimedOut(sess, now) {
		_, _ = s.Store.RefreshSessions().RevokeRefreshSession(ctx, fp, domain.ReasonIdleTimeout)
		return nil, ErrIdleTimeout
	}

	u, err := s.loadUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrAccountDisabled
	}

	pair, err := s.rotate(ctx, u, sess, fp, meta, now)
	if errors.Is(err, errRotationRace) {
		// Two callers raced the same token; the loser treats it exactly
		// like replay of a revoked token.
		l.Warn("refresh rotation race lost, treating as reuse",
			slog.String("user_id", u.ID), slog.String("session_id", sess.ID))
		return nil, s.handleTokenReuse(ctx, sess)
	}
	return pair, err
}

// ChangePassword updates the hash and revokes every session for the user;
// all other devices are logged out.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, newPassword string) error {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := cryptox.VerifyPassword(current, u.PasswordHash); err != nil {
		return ErrInvalidCurrentPassword
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	count, err := s.Store.RefreshSessions().RevokeAllUserRefreshSessions(ctx, userID, domain.ReasonPasswordChange)
	if err != nil {
		return err
	}

	s.invalidateCachedSession(ctx, userID)

	slogx.FromContext(ctx).Info("password changed, sessions revoked",
		slog.String("user_id", userID), slog.Int64("revoked", count))
	return nil
}

// Logout revokes exactly the presented refresh session. Idempotence is the
// caller's signal: a second call reports ErrTokenNotFound.
func (s *AuthService) Logout(ctx context.Context, rawRefreshToken string) error {
	fp := cryptox.FingerprintToken(rawRefreshToken)
	ok, err := s.Store.RefreshSessions().RevokeRefreshSession(ctx, fp, domain.ReasonLogout)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTokenNotFound
	}
	return nil
}

// LogoutAll revokes every session for the user and bumps the session
// version so outstanding access tokens die with them.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	count, err := s.Store.RefreshSessions().RevokeAllUserRefreshSessions(ctx, userID, domain.ReasonLogoutAll)
	if err != nil {
		return 0, err
	}
	s.invalidateCachedSession(ctx, userID)
	return count, nil
}

// ListSessions returns the user's live refresh sessions, newest first.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]domain.RefreshSession, error) {
	return s.Store.RefreshSessions().ListUserRefreshSessions(ctx, userID)
}

// RevokeSession revokes one session by id, only when it belongs to userID.
// Cross-user attempts report ErrSessionNotFound to avoid leaking existence.
func (s *AuthService) RevokeSession(ctx context.Context, sessionID, userID string) error {
	ok, err := s.Store.RefreshSessions().RevokeRefreshSessionByID(ctx, sessionID, userID, domain.ReasonLogout)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// IsIdleTimedOut reports whether the session has gone unused past its idle
// window. Missing remember_me is stored as false, which means the shorter
// window applies.
func (s *AuthService) IsIdleTimedOut(sess domain.RefreshSession, now time.Time) bool {
	window := s.IdleWindow
	if sess.RememberMe {
		window = s.IdleWindowRememberMe
	}
	return now.Sub(sess.LastUsedAt) > window
}

// handleTokenReuse is the security response to a replayed refresh token:
// revoke everything the user has, then surface the failure. The side effect
// must complete even though the operation still reports an error.
func (s *AuthService) handleTokenReuse(ctx context.Context, sess domain.RefreshSession) error {
	count, err := s.Store.RefreshSessions().RevokeAllUserRefreshSessions(ctx, sess.UserID, domain.ReasonSuspiciousActivity)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to revoke sessions after token reuse",
			slog.String("user_id", sess.UserID), slog.Any("error", err))
		return err
	}
	s.invalidateCachedSession(ctx, sess.UserID)
	slogx.FromContext(ctx).Warn("refresh token reuse detected",
		slog.String("user_id", sess.UserID),
		slog.String("session_id", sess.ID),
		slog.Int64("revoked", count))
	return ErrTokenReuseDetected
}

// rotate revokes the old session and creates the replacement atomically.
// The conditional revoke decides the winner between concurrent refreshes.
func (s *AuthService) rotate(
	ctx context.Context,
	u domain.User,
	old domain.RefreshSession,
	oldFP string,
	meta domain.ClientMeta,
	now time.Time,
) (*domain.TokenPair, error) {
	sv, err := s.sessionVersion(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	accessToken, refreshToken, expiresAt, err := s.signPair(u, sv, old.RememberMe, now)
	if err != nil {
		return nil, err
	}

	newSess := domain.RefreshSession{
		ID:         idx.New().String(),
		UserID:     u.ID,
		TokenHash:  cryptox.FingerprintToken(refreshToken),
		IssuedAt:   now,
		ExpiresAt:  expiresAt,
		LastUsedAt: now,
		RememberMe: old.RememberMe,
		UserAgent:  meta.UserAgent,
		IP:         meta.IP,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		ok, err := tx.RefreshSessions().RevokeRefreshSession(ctx, oldFP, domain.ReasonRotated)
		if err != nil {
			return err
		}
		if !ok {
			return errRotationRace
		}
		return tx.RefreshSessions().CreateRefreshSession(ctx, newSess)
	})
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// issueTokens signs a fresh pair and durably records the refresh session
// before anything is returned, so a stolen token is always detectable.
func (s *AuthService) issueTokens(
	ctx context.Context,
	u domain.User,
	rememberMe bool,
	meta domain.ClientMeta,
) (*domain.TokenPair, error) {
	now := time.Now().UTC()

	sv, err := s.sessionVersion(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	accessToken, refreshToken, expiresAt, err := s.signPair(u, sv, rememberMe, now)
	if err != nil {
		return nil, err
	}

	sess := domain.RefreshSession{
		ID:         idx.New().String(),
		UserID:     u.ID,
		TokenHash:  cryptox.FingerprintToken(refreshToken),
		IssuedAt:   now,
		ExpiresAt:  expiresAt,
		LastUsedAt: now,
		RememberMe: rememberMe,
		UserAgent:  meta.UserAgent,
		IP:         meta.IP,
	}
	if err := s.Store.RefreshSessions().CreateRefreshSession(ctx, sess); err != nil {
		return nil, err
	}

	// Best-effort profile warm-up; the durable store remains the source of
	// truth on a miss.
	if err := s.Cache.SetUser(ctx, u); err != nil {
		slogx.FromContext(ctx).Warn("failed to cache user profile", slog.Any("error", err))
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
	}, nil
}

func (s *AuthService) signPair(
	u domain.User,
	sessionVersion int64,
	rememberMe bool,
	now time.Time,
) (accessToken, refreshToken string, refreshExpiresAt time.Time, err error) {
	orgID := ""
	if u.OrganizationID != nil {
		orgID = *u.OrganizationID
	}

	accessClaims := jwtx.NewClaims(
		jwtx.TokenTypeAccess, u.ID,
		u.Role.String(), orgID, sessionVersion,
		s.AccessTTL, s.Codec.Issuer(), s.Audience, now,
	)
	accessToken, err = s.Codec.SignAccess(accessClaims)
	if err != nil {
		return "", "", time.Time{}, err
	}

	refreshTTL := s.RefreshTTL
	if rememberMe {
		refreshTTL = s.RememberMeTTL
	}
	refreshClaims := jwtx.NewClaims(
		jwtx.TokenTypeRefresh, u.ID,
		u.Role.String(), orgID, sessionVersion,
		refreshTTL, s.Codec.Issuer(), s.Audience, now,
	)
	refreshToken, err = s.Codec.SignRefresh(refreshClaims)
	if err != nil {
		return "", "", time.Time{}, err
	}

	return accessToken, refreshToken, now.Add(refreshTTL), nil
}

// loadUser resolves a user via the cache first, falling back to the store.
func (s *AuthService) loadUser(ctx context.Context, userID string) (domain.User, error) {
	if cached, err := s.Cache.GetUser(ctx, userID); err == nil && cached != nil {
		return *cached, nil
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	if err := s.Cache.SetUser(ctx, u); err != nil {
		slogx.FromContext(ctx).Warn("failed to cache user profile", slog.Any("error", err))
	}
	return u, nil
}

func (s *AuthService) sessionVersion(ctx context.Context, userID string) (int64, error) {
	sv, err := s.Cache.GetSessionVersion(ctx, userID)
	if err != nil {
		// Safe default: the counter is rebuildable and never persisted.
		return 1, nil
	}
	return sv, nil
}

func (s *AuthService) invalidateCachedSession(ctx context.Context, userID string) {
	if err := s.Cache.InvalidateUserSession(ctx, userID); err != nil {
		slogx.FromContext(ctx).Error("failed to invalidate cached session",
			slog.String("user_id", userID), slog.Any("error", err))
	}
}

func mapCodecError(err error) error {
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, jwtx.ErrWrongType):
		return ErrInvalidTokenType
	default:
		return ErrInvalidToken
	}
}

// dummyHash is a valid argon2id hash of a random throwaway value, verified
// against on unknown-email logins to level response timing.
const dummyHash = "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$t1qFvyl2zYqNN8L0Mnd9Yg6Ck8uwBo1NADUF0DReUQ0"
