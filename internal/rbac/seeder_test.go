package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealdesk/dealdesk/internal/audit"
	"github.com/dealdesk/dealdesk/internal/id"
	"github.com/dealdesk/dealdesk/internal/permission"
	"github.com/dealdesk/dealdesk/internal/role"
)

// memCatalog is a seeded in-memory permission.Repository.
type memCatalog struct {
	perms map[string]*permission.Permission
}

func newMemCatalog(t *testing.T) *memCatalog {
	t.Helper()
	m := &memCatalog{perms: make(map[string]*permission.Permission)}
	for _, s := range permission.Seeds() {
		p := &permission.Permission{
			ID:             id.NewUUIDv7(),
			FeatureArea:    s.FeatureArea,
			PermissionType: s.PermissionType,
			Description:    s.Description,
		}
		m.perms[p.Key()] = p
	}
	return m
}

func (m *memCatalog) Insert(ctx context.Context, p *permission.Permission) error {
	m.perms[p.Key()] = p
	return nil
}

func (m *memCatalog) List(ctx context.Context) ([]*permission.Permission, error) {
	var out []*permission.Permission
	for _, p := range m.perms {
		out = append(out, p)
	}
	return out, nil
}

func (m *memCatalog) GetByKey(ctx context.Context, featureArea string, permissionType permission.Type) (*permission.Permission, error) {
	p, ok := m.perms[featureArea+":"+string(permissionType)]
	if !ok {
		return nil, permission.ErrPermissionNotFound
	}
	return p, nil
}

// memRoleRepo backs role.Service for seeder tests.
type memRoleRepo struct {
	roles map[string]*role.Role
}

func (m *memRoleRepo) Create(ctx context.Context, r *role.Role) error {
	for _, existing := range m.roles {
		if existing.OrganizationID == r.OrganizationID && existing.Name == r.Name {
			return role.ErrRoleNameTaken
		}
	}
	cp := *r
	m.roles[r.ID] = &cp
	return nil
}

func (m *memRoleRepo) GetByID(ctx context.Context, organizationID, roleID string) (*role.Role, error) {
	r, ok := m.roles[roleID]
	if !ok || r.OrganizationID != organizationID {
		return nil, role.ErrRoleNotFound
	}
	return r, nil
}

func (m *memRoleRepo) GetByName(ctx context.Context, organizationID, name string) (*role.Role, error) {
	for _, r := range m.roles {
		if r.OrganizationID == organizationID && r.Name == name {
			return r, nil
		}
	}
	return nil, role.ErrRoleNotFound
}

func (m *memRoleRepo) List(ctx context.Context, organizationID string) ([]*role.Role, error) {
	var out []*role.Role
	for _, r := range m.roles {
		if r.OrganizationID == organizationID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRoleRepo) Update(ctx context.Context, organizationID, roleID string, upd role.Update) (*role.Role, error) {
	return nil, role.ErrRoleNotFound
}

func (m *memRoleRepo) Delete(ctx context.Context, organizationID, roleID string) error {
	delete(m.roles, roleID)
	return nil
}

func (m *memRoleRepo) AssignmentCount(ctx context.Context, roleID string) (int, error) {
	return 0, nil
}

// memGrants is a role.PermissionRepository tracking grants per role.
type memGrants struct {
	grants map[string]map[string]bool
}

func (m *memGrants) Add(ctx context.Context, roleID, permissionID string) error {
	if m.grants[roleID] == nil {
		m.grants[roleID] = make(map[string]bool)
	}
	m.grants[roleID][permissionID] = true
	return nil
}

func (m *memGrants) ReplaceAll(ctx context.Context, roleID string, permissionIDs []string) error {
	set := make(map[string]bool, len(permissionIDs))
	for _, id := range permissionIDs {
		set[id] = true
	}
	m.grants[roleID] = set
	return nil
}

func (m *memGrants) ListForRole(ctx context.Context, roleID string) ([]*permission.Permission, error) {
	var out []*permission.Permission
	for id := range m.grants[roleID] {
		out = append(out, &permission.Permission{ID: id})
	}
	return out, nil
}

type nopRecorder struct{}

func (nopRecorder) Record(ctx context.Context, e audit.Event) error { return nil }

func newSeederFixture(t *testing.T) (*Seeder, *memRoleRepo, *memGrants, *memCatalog) {
	t.Helper()
	catalog := newMemCatalog(t)
	roleRepo := &memRoleRepo{roles: make(map[string]*role.Role)}
	grants := &memGrants{grants: make(map[string]map[string]bool)}
	roleSvc := role.NewService(roleRepo, grants, nopRecorder{})
	return NewSeeder(roleSvc, catalog, nopRecorder{}), roleRepo, grants, catalog
}

// TestPurpose: Validates that seeding provisions all default roles with their
// canonical permission grants.
// Scope: Unit Test
// Expected: Four default roles exist, each flagged is_default, with grant
// counts matching the canonical filters.
// Test Case ID: SED-01
func TestSeeder_SeedsDefaultRoles(t *testing.T) {
	seeder, roleRepo, grants, _ := newSeederFixture(t)
	ctx := context.Background()

	created, err := seeder.SeedOrganizationDefaults(ctx, "org-a")
	require.NoError(t, err)
	assert.Equal(t, len(DefaultRoleNames), created)

	for _, name := range DefaultRoleNames {
		r, err := roleRepo.GetByName(ctx, "org-a", name)
		require.NoError(t, err, name)
		assert.True(t, r.IsDefault, name)
		assert.Len(t, grants.grants[r.ID], len(DefaultRoleSeeds(name)), name)
	}

	admin, err := roleRepo.GetByName(ctx, "org-a", RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, grants.grants[admin.ID], len(permission.Seeds()))
}

// TestPurpose: Validates idempotency: re-running the seeder changes nothing.
// Scope: Unit Test
// Expected: The second run creates zero roles and leaves grants untouched.
// Test Case ID: SED-02
func TestSeeder_Idempotent(t *testing.T) {
	seeder, roleRepo, grants, _ := newSeederFixture(t)
	ctx := context.Background()

	_, err := seeder.SeedOrganizationDefaults(ctx, "org-a")
	require.NoError(t, err)

	before := make(map[string]int)
	for id, g := range grants.grants {
		before[id] = len(g)
	}

	created, err := seeder.SeedOrganizationDefaults(ctx, "org-a")
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Len(t, roleRepo.roles, len(DefaultRoleNames))
	for id, g := range grants.grants {
		assert.Equal(t, before[id], len(g))
	}
}

// TestPurpose: Validates that re-seeding preserves grants an administrator
// added on top of the defaults.
// Scope: Unit Test
// Expected: The custom grant survives a second seeding run.
// Test Case ID: SED-03
func TestSeeder_PreservesCustomizedGrants(t *testing.T) {
	seeder, roleRepo, grants, _ := newSeederFixture(t)
	ctx := context.Background()

	_, err := seeder.SeedOrganizationDefaults(ctx, "org-a")
	require.NoError(t, err)

	client, err := roleRepo.GetByName(ctx, "org-a", RoleClient)
	require.NoError(t, err)
	require.NoError(t, grants.Add(ctx, client.ID, "custom-grant"))
	want := len(grants.grants[client.ID])

	_, err = seeder.SeedOrganizationDefaults(ctx, "org-a")
	require.NoError(t, err)
	assert.Len(t, grants.grants[client.ID], want)
	assert.True(t, grants.grants[client.ID]["custom-grant"])
}

// TestPurpose: Validates the canonical permission filters behind each default role.
// Scope: Unit Test
// Expected: Admin holds everything; Manager never deletes; Team Member has no
// project creation; Client is view-only across its areas.
// Test Case ID: SED-04
func TestDefaultRoleSeeds_CanonicalFilters(t *testing.T) {
	has := func(name, area string, pt permission.Type) bool {
		for _, s := range DefaultRoleSeeds(name) {
			if s.FeatureArea == area && s.PermissionType == pt {
				return true
			}
		}
		return false
	}

	assert.Len(t, DefaultRoleSeeds(RoleAdmin), len(permission.Seeds()))
	assert.True(t, has(RoleAdmin, permission.AreaClients, permission.TypeDelete))

	for _, s := range DefaultRoleSeeds(RoleManager) {
		assert.NotEqual(t, permission.TypeDelete, s.PermissionType)
	}
	assert.True(t, has(RoleManager, permission.AreaClients, permission.TypeEdit))
	assert.False(t, has(RoleManager, permission.AreaRoles, permission.TypeCreate))

	assert.True(t, has(RoleTeamMember, permission.AreaTasks, permission.TypeCreate))
	assert.True(t, has(RoleTeamMember, permission.AreaProjects, permission.TypeView))
	assert.False(t, has(RoleTeamMember, permission.AreaProjects, permission.TypeCreate))
	assert.False(t, has(RoleTeamMember, permission.AreaInvoices, permission.TypeView))

	for _, s := range DefaultRoleSeeds(RoleClient) {
		assert.Equal(t, permission.TypeView, s.PermissionType)
	}
	assert.True(t, has(RoleClient, permission.AreaInvoices, permission.TypeView))
	assert.False(t, has(RoleClient, permission.AreaDeals, permission.TypeView))

	assert.Nil(t, DefaultRoleSeeds("No Such Role"))
}
