package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/orgauth/internal/auth/domain"
)

type organizationsRepo struct {
	db dbtx
}

const orgColumns = `id, name, parent_id, active, created_at, updated_at`

func (r *organizationsRepo) GetOrganizationByID(ctx context.Context, id string) (domain.Organization, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE id = ?`, id)

	var (
		o      domain.Organization
		parent sql.NullString
	)
	if err := row.Scan(&o.ID, &o.Name, &parent, &o.Active, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return domain.Organization{}, mapNotFound(err)
	}
	o.ParentID = mapNullString(parent)
	return o, nil
}

func (r *organizationsRepo) ListActiveOrganizations(ctx context.Context) ([]domain.Organization, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []domain.Organization
	for rows.Next() {
		var (
			o      domain.Organization
			parent sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.Name, &parent, &o.Active, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.ParentID = mapNullString(parent)
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (r *organizationsRepo) CreateOrganization(ctx context.Context, o domain.Organization) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, parent_id, active) VALUES (?, ?, ?, ?)`,
		o.ID, o.Name, mapOptionalString(o.ParentID), o.Active)
	return mapConstraint(err)
}

func (r *organizationsRepo) UpdateOrganizationParent(ctx context.Context, orgID string, parentID *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE organizations SET parent_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		mapOptionalString(parentID), orgID)
	if err != nil {
		return err
	}
	return requireRow(res)
}
