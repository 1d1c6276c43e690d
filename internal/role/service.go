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

package role

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dealdesk/dealdesk/internal/audit"
	"github.com/dealdesk/dealdesk/internal/id"
)

// Service provides role registry business logic
type Service struct {
	repo     Repository
	permRepo PermissionRepository
	recorder audit.Recorder
}

// NewService creates a new role service
func NewService(repo Repository, permRepo PermissionRepository, recorder audit.Recorder) *Service {
	return &Service{
		repo:     repo,
		permRepo: permRepo,
		recorder: recorder,
	}
}

// CreateRole creates a role inside one organization. The name must be unique
// within that organization.
func (s *Service) CreateRole(ctx context.Context, organizationID, actorID, name, description string, isDefault bool) (*Role, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	r := &Role{
		ID:             id.NewUUIDv7(),
		OrganizationID: organizationID,
		Name:           name,
		Description:    strings.TrimSpace(description),
		IsDefault:      isDefault,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// The unique constraint on (organization_id, name) is the authority;
	// the repository maps its violation to ErrRoleNameTaken.
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}

	if err := s.recorder.Record(ctx, audit.Event{
		OrganizationID: organizationID,
		EntityType:     audit.EntityRole,
		EntityID:       r.ID,
		ActorID:        actorID,
		Type:           audit.TypeCreated,
		Description:    fmt.Sprintf("role %q created", name),
		Metadata:       map[string]any{"role_name": name, "is_default": isDefault},
	}); err != nil {
		return nil, err
	}

	return r, nil
}

// GetRole retrieves one role scoped to an organization. A role that exists
// under a different organization yields ErrRoleNotFound.
func (s *Service) GetRole(ctx context.Context, organizationID, roleID string) (*Role, error) {
	if organizationID == "" || roleID == "" {
		return nil, fmt.Errorf("%w: organization_id and role_id are required", ErrInvalidInput)
	}
	return s.repo.GetByID(ctx, organizationID, roleID)
}

// GetRoleByName looks a role up by its organization-unique name.
func (s *Service) GetRoleByName(ctx context.Context, organizationID, name string) (*Role, error) {
	if organizationID == "" || name == "" {
		return nil, fmt.Errorf("%w: organization_id and name are required", ErrInvalidInput)
	}
	return s.repo.GetByName(ctx, organizationID, name)
}

// GetRoleWithPermissions returns the role plus its resolved permission set.
func (s *Service) GetRoleWithPermissions(ctx context.Context, organizationID, roleID string) (*RoleWithPermissions, error) {
	r, err := s.GetRole(ctx, organizationID, roleID)
	if err != nil {
		return nil, err
	}
	perms, err := s.permRepo.ListForRole(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve role permissions: %w", err)
	}
	return &RoleWithPermissions{Role: *r, Permissions: perms}, nil
}

// ListRoles lists the organization's roles.
func (s *Service) ListRoles(ctx context.Context, organizationID string) ([]*Role, error) {
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.repo.List(ctx, organizationID)
}

// UpdateRole renames or re-describes a role.
func (s *Service) UpdateRole(ctx context.Context, organizationID, actorID, roleID string, upd Update) (*Role, error) {
	if organizationID == "" || roleID == "" {
		return nil, fmt.Errorf("%w: organization_id and role_id are required", ErrInvalidInput)
	}
	if upd.Name != nil {
		trimmed := strings.TrimSpace(*upd.Name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		upd.Name = &trimmed
	}

	r, err := s.repo.Update(ctx, organizationID, roleID, upd)
	if err != nil {
		return nil, err
	}

	if err := s.recorder.Record(ctx, audit.Event{
		OrganizationID: organizationID,
		EntityType:     audit.EntityRole,
		EntityID:       roleID,
		ActorID:        actorID,
		Type:           audit.TypeUpdated,
		Description:    fmt.Sprintf("role %q updated", r.Name),
	}); err != nil {
		return nil, err
	}

	return r, nil
}

// DeleteRole removes a role. Default roles are permanent fixtures of every
// organization and refuse deletion; roles with active assignments refuse
// deletion so a delete never orphans live grants.
func (s *Service) DeleteRole(ctx context.Context, organizationID, actorID, roleID string) error {
	r, err := s.GetRole(ctx, organizationID, roleID)
	if err != nil {
		return err
	}

	if r.IsDefault {
		return ErrRoleProtected
	}

	count, err := s.repo.AssignmentCount(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("failed to count role assignments: %w", err)
	}
	if count > 0 {
		return ErrRoleInUse
	}

	if err := s.repo.Delete(ctx, organizationID, r.ID); err != nil {
		return err
	}

	return s.recorder.Record(ctx, audit.Event{
		OrganizationID: organizationID,
		EntityType:     audit.EntityRole,
		EntityID:       r.ID,
		ActorID:        actorID,
		Type:           audit.TypeDeleted,
		Description:    fmt.Sprintf("role %q deleted", r.Name),
		Metadata:       map[string]any{"role_name": r.Name},
	})
}

// AddPermission appends a single permission to a role. This is the additive
// seed-time path; administrators go through SetPermissions.
func (s *Service) AddPermission(ctx context.Context, organizationID, roleID, permissionID string) error {
	if _, err := s.GetRole(ctx, organizationID, roleID); err != nil {
		return err
	}
	return s.permRepo.Add(ctx, roleID, permissionID)
}

// SetPermissions replaces a role's entire permission set with the given
// list. The swap is atomic with respect to readers.
func (s *Service) SetPermissions(ctx context.Context, organizationID, actorID, roleID string, permissionIDs []string) error {
	if _, err := s.GetRole(ctx, organizationID, roleID); err != nil {
		return err
	}

	if err := s.permRepo.ReplaceAll(ctx, roleID, permissionIDs); err != nil {
		return err
	}

	return s.recorder.Record(ctx, audit.Event{
		OrganizationID: organizationID,
		EntityType:     audit.EntityRole,
		EntityID:       roleID,
		ActorID:        actorID,
		Type:           audit.TypeUpdated,
		Description:    "role permission set replaced",
		Metadata:       map[string]any{"permission_count": len(permissionIDs)},
	})
}
