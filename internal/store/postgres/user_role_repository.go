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
	"database/sql"
	"fmt"

	"github.com/dealdesk/dealdesk/internal/authz"
	"github.com/dealdesk/dealdesk/internal/permission"
)

// UserRoleRepository implements authz.AssignmentRepository. The unique
// (user_id, role_id, organization_id) constraint is the single authority
// for duplicate grants; concurrent writers race on it, not on application
// checks.
type UserRoleRepository struct {
	db *DB
}

// NewUserRoleRepository creates a new user role repository
func NewUserRoleRepository(db *DB) *UserRoleRepository {
	return &UserRoleRepository{db: db}
}

// Create inserts one assignment
func (r *UserRoleRepository) Create(ctx context.Context, ur *authz.UserRole) error {
	var assignedBy sql.NullString
	if ur.AssignedByID != "" {
		assignedBy = sql.NullString{String: ur.AssignedByID, Valid: true}
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO user_roles (id, user_id, role_id, organization_id, assigned_by_id, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ur.ID, ur.UserID, ur.RoleID, ur.OrganizationID, assignedBy, ur.AssignedAt)

	if err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return authz.ErrRoleAlreadyAssigned
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	return nil
}

// Delete removes the matching assignment, reporting whether a row existed
func (r *UserRoleRepository) Delete(ctx context.Context, organizationID, userID, roleID string) (bool, error) {
	tag, err := r.db.pool.Exec(ctx, `
		DELETE FROM user_roles
		WHERE organization_id = $1 AND user_id = $2 AND role_id = $3
	`, organizationID, userID, roleID)

	if err != nil {
		return false, fmt.Errorf("failed to delete assignment: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListForUser returns the user's assignments within one organization
func (r *UserRoleRepository) ListForUser(ctx context.Context, organizationID, userID string) ([]*authz.UserRole, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, user_id, role_id, organization_id, assigned_by_id, assigned_at
		FROM user_roles
		WHERE organization_id = $1 AND user_id = $2
		ORDER BY assigned_at
	`, organizationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*authz.UserRole
	for rows.Next() {
		var ur authz.UserRole
		var assignedBy sql.NullString

		if err := rows.Scan(
			&ur.ID, &ur.UserID, &ur.RoleID, &ur.OrganizationID,
			&assignedBy, &ur.AssignedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		if assignedBy.Valid {
			ur.AssignedByID = assignedBy.String
		}
		assignments = append(assignments, &ur)
	}

	return assignments, rows.Err()
}

// PermissionsForUser resolves the user's effective permission set in one
// query. DISTINCT collapses grants shared by several of the user's roles.
func (r *UserRoleRepository) PermissionsForUser(ctx context.Context, organizationID, userID string) ([]*permission.Permission, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT DISTINCT p.id, p.feature_area, p.permission_type, p.description, p.created_at
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.organization_id = $1 AND ur.user_id = $2
		ORDER BY p.feature_area, p.permission_type
	`, organizationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user permissions: %w", err)
	}
	defer rows.Close()

	return scanPermissions(rows)
}
