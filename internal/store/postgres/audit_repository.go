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
	"encoding/json"
	"fmt"

	"github.com/dealdesk/dealdesk/internal/audit"
)

// AuditRepository implements audit.Store. The activity_events table is
// append-only: this type has no update or delete method on purpose.
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends one event
func (r *AuditRepository) Insert(ctx context.Context, event *audit.Event) error {
	var metadata []byte
	if event.Metadata != nil {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal event metadata: %w", err)
		}
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO activity_events (
			id, organization_id, entity_type, entity_id, actor_id,
			event_type, description, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		event.ID, event.OrganizationID, event.EntityType, event.EntityID,
		event.ActorID, event.Type, event.Description, metadata, event.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// List returns the organization's events, newest first
func (r *AuditRepository) List(ctx context.Context, organizationID string, filter audit.Filter) ([]*audit.Event, error) {
	query := `
		SELECT id, organization_id, entity_type, entity_id, actor_id,
		       event_type, description, metadata, created_at
		FROM activity_events
		WHERE organization_id = $1
	`
	args := []any{organizationID}

	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		query += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		query += fmt.Sprintf(" AND entity_id = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND event_type = $%d", len(args))
	}

	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*audit.Event
	for rows.Next() {
		var e audit.Event
		var metadata []byte

		if err := rows.Scan(
			&e.ID, &e.OrganizationID, &e.EntityType, &e.EntityID, &e.ActorID,
			&e.Type, &e.Description, &metadata, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event metadata: %w", err)
			}
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}
