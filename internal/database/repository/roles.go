package repository

import (
	"context"
	"database/sql"
)

// RoleRepo handles user_roles. Rows are keyed by user id; email is an
// alternate lookup key.
type RoleRepo struct{ db *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{db: db} }

// Lookup returns the role document of the user with id or email.
func (r *RoleRepo) Lookup(ctx context.Context, idOrEmail string) (map[string]any, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, email, role FROM user_roles WHERE id = ? OR (email != '' AND email = ?) LIMIT 1`, idOrEmail, idOrEmail)
	var id, email, role string
	if err := row.Scan(&id, &email, &role); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return map[string]any{"id": id, "email": email, "role": role}, nil
}

func (r *RoleRepo) Upsert(ctx context.Context, id, email, role string) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO user_roles(id, email, role, updated_at)
	VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
	 email=excluded.email,
	 role=excluded.role,
	 updated_at=CURRENT_TIMESTAMP;
	`, id, email, role)
	return err
}
