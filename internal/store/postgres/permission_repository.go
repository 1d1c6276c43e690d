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

	"github.com/jackc/pgx/v5"

	"github.com/dealdesk/dealdesk/internal/permission"
)

// PermissionRepository implements permission.Repository against the global
// catalog table.
type PermissionRepository struct {
	db *DB
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(db *DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// Insert adds a catalog row. The (feature_area, permission_type) unique
// constraint makes concurrent seeding safe.
func (r *PermissionRepository) Insert(ctx context.Context, p *permission.Permission) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO permissions (id, feature_area, permission_type, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (feature_area, permission_type) DO NOTHING
	`, p.ID, p.FeatureArea, p.PermissionType, p.Description, p.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert permission: %w", err)
	}
	return nil
}

// List returns the complete catalog
func (r *PermissionRepository) List(ctx context.Context) ([]*permission.Permission, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, feature_area, permission_type, description, created_at
		FROM permissions
		ORDER BY feature_area, permission_type
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	return scanPermissions(rows)
}

// GetByKey retrieves a catalog row by its semantic key
func (r *PermissionRepository) GetByKey(ctx context.Context, featureArea string, permissionType permission.Type) (*permission.Permission, error) {
	var p permission.Permission

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, feature_area, permission_type, description, created_at
		FROM permissions
		WHERE feature_area = $1 AND permission_type = $2
	`, featureArea, permissionType).Scan(
		&p.ID, &p.FeatureArea, &p.PermissionType, &p.Description, &p.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, permission.ErrPermissionNotFound
		}
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}

	return &p, nil
}

func scanPermissions(rows pgx.Rows) ([]*permission.Permission, error) {
	var perms []*permission.Permission
	for rows.Next() {
		var p permission.Permission
		if err := rows.Scan(&p.ID, &p.FeatureArea, &p.PermissionType, &p.Description, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, &p)
	}
	return perms, rows.Err()
}
