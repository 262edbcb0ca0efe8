package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/orgauth/internal/auth/domain"
	"github.com/aussiebroadwan/orgauth/internal/auth/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, name, password_hash, role, organization_id,
	active, last_login_at, email_verified_at, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, organization_id, active, email_verified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, string(u.Role),
		mapOptionalString(u.OrganizationID), u.Active, optionalTime(u.EmailVerifiedAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newHash, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_login_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		at.UTC(), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) ListUserOrganizationIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT organization_id FROM users
			WHERE id = ? AND organization_id IS NOT NULL
		UNION
		SELECT organization_id FROM user_organizations WHERE user_id = ?`,
		userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *usersRepo) AddUserOrganization(ctx context.Context, userID, orgID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_organizations (user_id, organization_id) VALUES (?, ?)`,
		userID, orgID)
	return err
}

func (r *usersRepo) RemoveUserOrganization(ctx context.Context, userID, orgID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM user_organizations WHERE user_id = ? AND organization_id = ?`,
		userID, orgID)
	return err
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u          domain.User
		role       string
		orgID      sql.NullString
		lastLogin  sql.NullTime
		verifiedAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &orgID,
		&u.Active, &lastLogin, &verifiedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.Role = domain.Role(role)
	u.OrganizationID = mapNullString(orgID)
	u.LastLoginAt = mapNullTimePtr(lastLogin)
	u.EmailVerifiedAt = mapNullTimePtr(verifiedAt)
	return u, nil
}

func optionalTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// requireRow maps a zero-row UPDATE to store.ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
