package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/orgauth/internal/auth/domain"
	"github.com/aussiebroadwan/orgauth/internal/auth/store"
)

type refreshSessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, user_id, token_hash, issued_at, expires_at, last_used_at,
	revoked, revoked_reason, revoked_at, remember_me, user_agent, ip, created_at, updated_at`

func (r *refreshSessionsRepo) CreateRefreshSession(ctx context.Context, s domain.RefreshSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions
			(id, user_id, token_hash, issued_at, expires_at, last_used_at, remember_me, user_agent, ip)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.TokenHash,
		s.IssuedAt.UTC(), s.ExpiresAt.UTC(), s.LastUsedAt.UTC(),
		s.RememberMe, s.UserAgent, s.IP,
	)
	return mapConstraint(err)
}

func (r *refreshSessionsRepo) GetRefreshSessionByHash(
	ctx context.Context,
	hash string,
	includeRevoked bool,
) (domain.RefreshSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM refresh_sessions WHERE token_hash = ?`
	if !includeRevoked {
		query += ` AND revoked = 0`
	}
	return scanSession(r.db.QueryRowContext(ctx, query, hash))
}

func (r *refreshSessionsRepo) ListUserRefreshSessions(
	ctx context.Context,
	userID string,
) ([]domain.RefreshSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM refresh_sessions
		WHERE user_id = ? AND revoked = 0 AND expires_at > ?
		ORDER BY issued_at DESC`,
		userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.RefreshSession
	for rows.Next() {
		s, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// RevokeRefreshSession is the atomic conditional update the rotation race
// hinges on: the WHERE revoked = 0 guard means only one of two concurrent
// callers sees an affected row.
func (r *refreshSessionsRepo) RevokeRefreshSession(
	ctx context.Context,
	hash string,
	reason domain.RevocationReason,
) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_sessions
		SET revoked = 1, revoked_reason = ?, revoked_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE token_hash = ? AND revoked = 0`,
		string(reason), time.Now().UTC(), hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *refreshSessionsRepo) RevokeRefreshSessionByID(
	ctx context.Context,
	id, userID string,
	reason domain.RevocationReason,
) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_sessions
		SET revoked = 1, revoked_reason = ?, revoked_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ? AND revoked = 0`,
		string(reason), time.Now().UTC(), id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *refreshSessionsRepo) RevokeAllUserRefreshSessions(
	ctx context.Context,
	userID string,
	reason domain.RevocationReason,
) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_sessions
		SET revoked = 1, revoked_reason = ?, revoked_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND revoked = 0`,
		string(reason), time.Now().UTC(), userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshSessionsRepo) DeleteStaleRefreshSessions(
	ctx context.Context,
	now time.Time,
	policy store.CleanupPolicy,
) (int64, error) {
	now = now.UTC()
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_sessions
		WHERE expires_at <= ?
		   OR (remember_me = 0 AND last_used_at <= ?)
		   OR (remember_me = 1 AND last_used_at <= ?)
		   OR (revoked = 1 AND revoked_at IS NOT NULL AND revoked_at <= ?)`,
		now,
		now.Add(-policy.IdleWindow),
		now.Add(-policy.IdleWindowRememberMe),
		now.Add(-policy.RevokedRetention),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row *sql.Row) (domain.RefreshSession, error) {
	s, err := scanSessionFrom(row)
	if err != nil {
		return domain.RefreshSession{}, mapNotFound(err)
	}
	return s, nil
}

func scanSessionRows(rows *sql.Rows) (domain.RefreshSession, error) {
	return scanSessionFrom(rows)
}

func scanSessionFrom(sc rowScanner) (domain.RefreshSession, error) {
	var (
		s         domain.RefreshSession
		reason    string
		revokedAt sql.NullTime
	)
	err := sc.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.IssuedAt, &s.ExpiresAt, &s.LastUsedAt,
		&s.Revoked, &reason, &revokedAt, &s.RememberMe, &s.UserAgent, &s.IP,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.RefreshSession{}, err
	}
	s.RevokedReason = domain.RevocationReason(reason)
	s.RevokedAt = mapNullTimePtr(revokedAt)
	return s, nil
}
