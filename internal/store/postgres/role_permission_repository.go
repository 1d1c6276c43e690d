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
	"fmt"

	"github.com/dealdesk/dealdesk/internal/permission"
)

// RolePermissionRepository implements role.PermissionRepository over the
// role_permissions join table.
type RolePermissionRepository struct {
	db *DB
}

// NewRolePermissionRepository creates a new role permission repository
func NewRolePermissionRepository(db *DB) *RolePermissionRepository {
	return &RolePermissionRepository{db: db}
}

// Add appends one grant. Idempotent: a grant the role already holds is a
// no-op, which is what makes re-seeding safe.
func (r *RolePermissionRepository) Add(ctx context.Context, roleID, permissionID string) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT (role_id, permission_id) DO NOTHING
	`, roleID, permissionID)

	if err != nil {
		return fmt.Errorf("failed to add role permission: %w", err)
	}
	return nil
}

// ReplaceAll swaps the role's grant set inside one transaction so readers
// never observe the transient empty state.
func (r *RolePermissionRepository) ReplaceAll(ctx context.Context, roleID string, permissionIDs []string) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM role_permissions WHERE role_id = $1
	`, roleID); err != nil {
		return fmt.Errorf("failed to clear role permissions: %w", err)
	}

	for _, permissionID := range permissionIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			VALUES ($1, $2)
		`, roleID, permissionID); err != nil {
			return fmt.Errorf("failed to insert role permission %s: %w", permissionID, err)
		}
	}

	return tx.Commit(ctx)
}

// ListForRole resolves the role's grants against the catalog
func (r *RolePermissionRepository) ListForRole(ctx context.Context, roleID string) ([]*permission.Permission, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT p.id, p.feature_area, p.permission_type, p.description, p.created_at
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.feature_area, p.permission_type
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
	}
	defer rows.Close()

	return scanPermissions(rows)
}
