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

package authz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dealdesk/dealdesk/internal/audit"
	"github.com/dealdesk/dealdesk/internal/id"
	"github.com/dealdesk/dealdesk/internal/observability/logger"
	"github.com/dealdesk/dealdesk/internal/observability/metrics"
	"github.com/dealdesk/dealdesk/internal/permission"
	"github.com/dealdesk/dealdesk/internal/role"
)

// Service provides user-role assignment and the authorization decision
// engine. Effective permissions are recomputed from storage on every query;
// role cardinality per user is low enough that the join beats any cache
// invalidation scheme.
type Service struct {
	assignments AssignmentRepository
	roles       role.Repository
	rolePerms   role.PermissionRepository
	recorder    audit.Recorder
	metrics     *metrics.AuthzMetrics
}

// NewService creates a new authorization service. metrics may be nil.
func NewService(
	assignments AssignmentRepository,
	roles role.Repository,
	rolePerms role.PermissionRepository,
	recorder audit.Recorder,
	m *metrics.AuthzMetrics,
) *Service {
	return &Service{
		assignments: assignments,
		roles:       roles,
		rolePerms:   rolePerms,
		recorder:    recorder,
		metrics:     m,
	}
}

// AssignRole grants a role to a user within an organization. The role must
// resolve inside that organization; a role from another tenant is
// indistinguishable from a missing one. A duplicate grant fails with
// ErrRoleAlreadyAssigned.
func (s *Service) AssignRole(ctx context.Context, organizationID, userID, roleID, assignedByID string) (*UserRole, error) {
	if organizationID == "" || userID == "" || roleID == "" {
		return nil, fmt.Errorf("%w: organization_id, user_id and role_id are required", ErrInvalidInput)
	}

	// Scoped lookup keeps cross-tenant roles invisible.
	r, err := s.roles.GetByID(ctx, organizationID, roleID)
	if err != nil {
		return nil, err
	}

	ur := &UserRole{
		ID:             id.NewUUIDv7(),
		UserID:         userID,
		RoleID:         r.ID,
		OrganizationID: organizationID,
		AssignedByID:   assignedByID,
		AssignedAt:     time.Now().UTC(),
	}

	if err := s.assignments.Create(ctx, ur); err != nil {
		return nil, err
	}

	if err := s.recorder.Record(ctx, audit.Event{
		OrganizationID: organizationID,
		EntityType:     audit.EntityUserRole,
		EntityID:       ur.ID,
		ActorID:        assignedByID,
		Type:           audit.TypeAssigned,
		Description:    fmt.Sprintf("role %q assigned to user", r.Name),
		Metadata:       map[string]any{"user_id": userID, "role_id": r.ID, "role_name": r.Name},
	}); err != nil {
		return nil, err
	}

	return ur, nil
}

// RemoveRole revokes a role from a user. Returns false without error when
// the assignment did not exist.
func (s *Service) RemoveRole(ctx context.Context, organizationID, userID, roleID, actorID string) (bool, error) {
	if organizationID == "" || userID == "" || roleID == "" {
		return false, fmt.Errorf("%w: organization_id, user_id and role_id are required", ErrInvalidInput)
	}

	removed, err := s.assignments.Delete(ctx, organizationID, userID, roleID)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}

	if err := s.recorder.Record(ctx, audit.Event{
		OrganizationID: organizationID,
		EntityType:     audit.EntityUserRole,
		EntityID:       roleID,
		ActorID:        actorID,
		Type:           audit.TypeRemoved,
		Description:    "role removed from user",
		Metadata:       map[string]any{"user_id": userID, "role_id": roleID},
	}); err != nil {
		return false, err
	}

	return true, nil
}

// GetUserRoles returns the roles a user holds within one organization.
func (s *Service) GetUserRoles(ctx context.Context, organizationID, userID string) ([]*role.Role, error) {
	if organizationID == "" || userID == "" {
		return nil, fmt.Errorf("%w: organization_id and user_id are required", ErrInvalidInput)
	}

	assignments, err := s.assignments.ListForUser(ctx, organizationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	roles := make([]*role.Role, 0, len(assignments))
	for _, ur := range assignments {
		r, err := s.roles.GetByID(ctx, organizationID, ur.RoleID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve role %s: %w", ur.RoleID, err)
		}
		roles = append(roles, r)
	}
	return roles, nil
}

// GetUserPermissions computes the user's effective permission set: the union
// of every held role's permissions, deduplicated by semantic key.
func (s *Service) GetUserPermissions(ctx context.Context, organizationID, userID string) ([]*permission.Permission, error) {
	if organizationID == "" || userID == "" {
		return nil, fmt.Errorf("%w: organization_id and user_id are required", ErrInvalidInput)
	}

	assignments, err := s.assignments.ListForUser(ctx, organizationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	sets := make([][]*permission.Permission, 0, len(assignments))
	for _, ur := range assignments {
		perms, err := s.rolePerms.ListForRole(ctx, ur.RoleID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve permissions for role %s: %w", ur.RoleID, err)
		}
		sets = append(sets, perms)
	}

	return EffectiveSet(sets...), nil
}

// Authorize answers "may this user perform this action on this feature area
// in this organization". Deny-by-default: any storage failure resolves to
// Deny alongside the error. Every Deny is appended to the audit trail;
// Allows are not individually audited to keep read-path volume bounded.
func (s *Service) Authorize(ctx context.Context, organizationID, userID, featureArea string, permissionType permission.Type) (Decision, error) {
	if organizationID == "" || userID == "" || featureArea == "" || permissionType == "" {
		return Deny, fmt.Errorf("%w: all authorization parameters are required", ErrInvalidInput)
	}

	// Single-query resolution keeps the hot read path to one round trip.
	effective, err := s.assignments.PermissionsForUser(ctx, organizationID, userID)
	if err != nil {
		s.metrics.RecordDecision(ctx, string(Deny))
		return Deny, fmt.Errorf("failed to resolve effective permissions: %w", err)
	}

	decision := Decide(effective, featureArea, permissionType)
	s.metrics.RecordDecision(ctx, string(decision))

	if decision == Deny {
		slog.InfoContext(ctx, "authorization denied",
			logger.Component("authz"),
			logger.OrgID(organizationID),
			logger.UserID(userID),
			logger.FeatureArea(featureArea),
			logger.PermissionType(string(permissionType)),
		)
		if err := s.recorder.Record(ctx, audit.Event{
			OrganizationID: organizationID,
			EntityType:     audit.EntityPermissionCheck,
			EntityID:       featureArea + ":" + string(permissionType),
			ActorID:        userID,
			Type:           audit.TypeRejected,
			Description:    fmt.Sprintf("access to %s:%s rejected", featureArea, permissionType),
			Metadata:       map[string]any{"feature_area": featureArea, "permission_type": string(permissionType)},
		}); err != nil {
			// The decision stands but the caller must see the trail gap.
			return Deny, err
		}
	}

	return decision, nil
}
