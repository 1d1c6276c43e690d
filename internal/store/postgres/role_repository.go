// Copyright 2026 The DealDesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dealdesk/dealdesk/internal/role"
)

// RoleRepository implements role.Repository. Every read filters on
// organization_id in the WHERE clause so cross-tenant rows never leave the
// database.
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Create inserts a role. A (organization_id, name) collision surfaces as
// role.ErrRoleNameTaken.
func (r *RoleRepository) Create(ctx context.Context, ro *role.Role) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO roles (id, organization_id, name, description, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ro.ID, ro.OrganizationID, ro.Name, ro.Description, ro.IsDefault, ro.CreatedAt, ro.UpdatedAt)

	if err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return role.ErrRoleNameTaken
		}
		return fmt.Errorf("failed to create role: %w", err)
	}

	return nil
}

// GetByID retrieves a role scoped to one organization
func (r *RoleRepository) GetByID(ctx context.Context, organizationID, roleID string) (*role.Role, error) {
	return r.getOne(ctx, `
		SELECT id, organization_id, name, description, is_default, created_at, updated_at
		FROM roles
		WHERE id = $1 AND organization_id = $2
	`, roleID, organizationID)
}

// GetByName retrieves a role by its organization-unique name
func (r *RoleRepository) GetByName(ctx context.Context, organizationID, name string) (*role.Role, error) {
	return r.getOne(ctx, `
		SELECT id, organization_id, name, description, is_default, created_at, updated_at
		FROM roles
		WHERE organization_id = $1 AND name = $2
	`, organizationID, name)
}

func (r *RoleRepository) getOne(ctx context.Context, query string, args ...any) (*role.Role, error) {
	var ro role.Role

	err := r.db.pool.QueryRow(ctx, query, args...).Scan(
		&ro.ID, &ro.OrganizationID, &ro.Name, &ro.Description,
		&ro.IsDefault, &ro.CreatedAt, &ro.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, role.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	return &ro, nil
}

// List returns the organization's roles, defaults first
func (r *RoleRepository) List(ctx context.Context, organizationID string) ([]*role.Role, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, organization_id, name, description, is_default, created_at, updated_at
		FROM roles
		WHERE organization_id = $1
		ORDER BY is_default DESC, name
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*role.Role
	for rows.Next() {
		var ro role.Role
		if err := rows.Scan(
			&ro.ID, &ro.OrganizationID, &ro.Name, &ro.Description,
			&ro.IsDefault, &ro.CreatedAt, &ro.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, &ro)
	}

	return roles, rows.Err()
}

// Update applies the non-nil fields and returns the updated row
func (r *RoleRepository) Update(ctx context.Context, organizationID, roleID string, upd role.Update) (*role.Role, error) {
	var ro role.Role

	err := r.db.pool.QueryRow(ctx, `
		UPDATE roles
		SET name        = COALESCE($3, name),
		    description = COALESCE($4, description),
		    updated_at  = $5
		WHERE id = $1 AND organization_id = $2
		RETURNING id, organization_id, name, description, is_default, created_at, updated_at
	`, roleID, organizationID, upd.Name, upd.Description, time.Now().UTC()).Scan(
		&ro.ID, &ro.OrganizationID, &ro.Name, &ro.Description,
		&ro.IsDefault, &ro.CreatedAt, &ro.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, role.ErrRoleNotFound
		}
		if pgErrorCode(err) == codeUniqueViolation {
			return nil, role.ErrRoleNameTaken
		}
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	return &ro, nil
}

// Delete removes the role and its permission grants in one transaction
func (r *RoleRepository) Delete(ctx context.Context, organizationID, roleID string) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM role_permissions WHERE role_id = $1
	`, roleID); err != nil {
		return fmt.Errorf("failed to delete role permissions: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM roles WHERE id = $1 AND organization_id = $2
	`, roleID, organizationID)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return role.ErrRoleNotFound
	}

	return tx.Commit(ctx)
}

// AssignmentCount reports live user_roles references to the role
func (r *RoleRepository) AssignmentCount(ctx context.Context, roleID string) (int, error) {
	var count int
	err := r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM user_roles WHERE role_id = $1
	`, roleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count assignments: %w", err)
	}
	return count, nil
}
