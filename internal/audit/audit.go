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

package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dealdesk/dealdesk/internal/id"
)

// Entity types
const (
	EntityRole            = "role"
	EntityUserRole        = "user_role"
	EntityPermissionCheck = "permission_check"
	EntityOrganization    = "organization"
	EntityPermission      = "permission"
)

// Event types
const (
	TypeCreated  = "created"
	TypeUpdated  = "updated"
	TypeDeleted  = "deleted"
	TypeAssigned = "assigned"
	TypeRemoved  = "removed"
	TypeRejected = "rejected"
	TypeSeeded   = "seeded"
)

// ActorSystem identifies seed-time and bootstrap mutations that have no
// human actor behind them.
const ActorSystem = "system"

var ErrInvalidEvent = errors.New("invalid audit event")

// Event is one append-only activity record. Events are never updated or
// deleted; they are the compliance trail for every access-control mutation
// and every rejected authorization decision.
type Event struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	EntityType     string         `json:"entity_type"`
	EntityID       string         `json:"entity_id"`
	ActorID        string         `json:"actor_id"`
	Type           string         `json:"type"`
	Description    string         `json:"description"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Filter narrows an organization-scoped audit query.
type Filter struct {
	EntityType string
	EntityID   string
	Type       string
	Limit      int
	Offset     int
}

// Store defines the interface for audit persistence
type Store interface {
	Insert(ctx context.Context, event *Event) error
	List(ctx context.Context, organizationID string, filter Filter) ([]*Event, error)
}

// Recorder is the append interface handed to the other services. A failed
// Record is a failed operation for the caller: the trail is a compliance
// control, not best-effort telemetry.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Service persists audit events and mirrors them to the structured log.
type Service struct {
	store Store
}

// NewService creates a new audit service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Record appends one event. The persistence error propagates so that the
// mutation that mandated the event fails with it.
func (s *Service) Record(ctx context.Context, event Event) error {
	if event.OrganizationID == "" {
		return fmt.Errorf("%w: organization_id is required", ErrInvalidEvent)
	}
	if event.EntityType == "" || event.Type == "" {
		return fmt.Errorf("%w: entity_type and type are required", ErrInvalidEvent)
	}
	if event.ID == "" {
		event.ID = id.NewUUIDv7()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.ActorID == "" {
		event.ActorID = ActorSystem
	}

	if err := s.store.Insert(ctx, &event); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	s.mirror(ctx, event)
	return nil
}

// Query returns events for one organization, newest first.
func (s *Service) Query(ctx context.Context, organizationID string, filter Filter) ([]*Event, error) {
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidEvent)
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.store.List(ctx, organizationID, filter)
}

// mirror writes the persisted event to slog so the trail is also visible in
// the log pipeline. The mirror is best-effort; persistence already happened.
func (s *Service) mirror(ctx context.Context, event Event) {
	attrs := []any{
		slog.String("audit_id", event.ID),
		slog.String("organization_id", event.OrganizationID),
		slog.String("entity_type", event.EntityType),
		slog.String("entity_id", event.EntityID),
		slog.String("actor_id", event.ActorID),
		slog.String("audit_type", event.Type),
		slog.Time("timestamp", event.CreatedAt),
	}

	if len(event.Metadata) > 0 {
		group := []any{}
		for k, v := range event.Metadata {
			// Redact secrets
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// isSecret checks if a metadata key likely contains a secret
func isSecret(key string) bool {
	lower := strings.ToLower(key)
	secrets := []string{"password", "secret", "token", "key", "hash", "credential", "authorization"}
	for _, s := range secrets {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
