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

package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dealdesk/dealdesk/internal/audit"
	"github.com/dealdesk/dealdesk/internal/observability/logger"
	"github.com/dealdesk/dealdesk/internal/permission"
	"github.com/dealdesk/dealdesk/internal/role"
)

// Seeder provisions the default role set for an organization. Seeding is
// idempotent: roles are matched by name and grants are applied additively,
// so re-running after a partial failure completes the missing pieces without
// clobbering permission sets an admin has since customized.
type Seeder struct {
	roles    *role.Service
	perms    permission.Repository
	recorder audit.Recorder
}

func NewSeeder(roles *role.Service, perms permission.Repository, recorder audit.Recorder) *Seeder {
	return &Seeder{roles: roles, perms: perms, recorder: recorder}
}

// SeedOrganizationDefaults ensures the four default roles exist in the
// organization with at least their canonical permission grants. It returns
// the number of roles created on this run.
func (s *Seeder) SeedOrganizationDefaults(ctx context.Context, organizationID string) (int, error) {
	created := 0

	for _, name := range DefaultRoleNames {
		r, existed, err := s.ensureRole(ctx, organizationID, name)
		if err != nil {
			return created, fmt.Errorf("ensure role %q: %w", name, err)
		}
		if !existed {
			created++
		}

		if err := s.grantDefaults(ctx, organizationID, r); err != nil {
			return created, fmt.Errorf("grant defaults for %q: %w", name, err)
		}
	}

	if created > 0 {
		if err := s.recorder.Record(ctx, audit.Event{
			OrganizationID: organizationID,
			EntityType:     audit.EntityOrganization,
			EntityID:       organizationID,
			ActorID:        audit.ActorSystem,
			Type:           audit.TypeSeeded,
			Description:    "seeded default roles",
			Metadata:       map[string]any{"roles_created": created},
		}); err != nil {
			return created, err
		}
	}

	slog.InfoContext(ctx, "organization defaults seeded",
		logger.OrgID(organizationID),
		slog.Int("roles_created", created))
	return created, nil
}

func (s *Seeder) ensureRole(ctx context.Context, organizationID, name string) (*role.Role, bool, error) {
	r, err := s.roles.GetRoleByName(ctx, organizationID, name)
	if err == nil {
		return r, true, nil
	}
	if !errors.Is(err, role.ErrRoleNotFound) {
		return nil, false, err
	}

	r, err = s.roles.CreateRole(ctx, organizationID, audit.ActorSystem, name, defaultRoleDescriptions[name], true)
	if err != nil {
		// Another seeder instance may have raced us to the insert.
		if errors.Is(err, role.ErrRoleNameTaken) {
			r, err = s.roles.GetRoleByName(ctx, organizationID, name)
			return r, true, err
		}
		return nil, false, err
	}
	return r, false, nil
}

// grantDefaults adds the canonical grants additively. Grants the role already
// holds, canonical or custom, are left untouched.
func (s *Seeder) grantDefaults(ctx context.Context, organizationID string, r *role.Role) error {
	for _, seed := range DefaultRoleSeeds(r.Name) {
		p, err := s.perms.GetByKey(ctx, seed.FeatureArea, seed.PermissionType)
		if err != nil {
			return fmt.Errorf("resolve %s:%s: %w", seed.FeatureArea, seed.PermissionType, err)
		}
		if err := s.roles.AddPermission(ctx, organizationID, r.ID, p.ID); err != nil {
			return err
		}
	}
	return nil
}
