package authz

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealdesk/dealdesk/internal/audit"
	"github.com/dealdesk/dealdesk/internal/permission"
	"github.com/dealdesk/dealdesk/internal/role"
)

// memAssignments enforces the unique (user, role, organization) triple the
// way the database constraint does, mutex-guarded so concurrent writers
// exercise the same race the constraint resolves in production.
type memAssignments struct {
	mu    sync.Mutex
	rows  []*UserRole
	perms *memRolePerms
}

func (m *memAssignments) Create(ctx context.Context, ur *UserRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.UserID == ur.UserID && row.RoleID == ur.RoleID && row.OrganizationID == ur.OrganizationID {
			return ErrRoleAlreadyAssigned
		}
	}
	cp := *ur
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memAssignments) Delete(ctx context.Context, organizationID, userID, roleID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range m.rows {
		if row.OrganizationID == organizationID && row.UserID == userID && row.RoleID == roleID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memAssignments) ListForUser(ctx context.Context, organizationID, userID string) ([]*UserRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*UserRole
	for _, row := range m.rows {
		if row.OrganizationID == organizationID && row.UserID == userID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAssignments) PermissionsForUser(ctx context.Context, organizationID, userID string) ([]*permission.Permission, error) {
	assignments, _ := m.ListForUser(ctx, organizationID, userID)
	sets := make([][]*permission.Permission, 0, len(assignments))
	for _, ur := range assignments {
		sets = append(sets, m.perms.grants[ur.RoleID])
	}
	return EffectiveSet(sets...), nil
}

// memRoles is a map-backed role.Repository covering what the authz service reads.
type memRoles struct {
	roles map[string]*role.Role
}

func (m *memRoles) Create(ctx context.Context, r *role.Role) error {
	m.roles[r.ID] = r
	return nil
}

func (m *memRoles) GetByID(ctx context.Context, organizationID, roleID string) (*role.Role, error) {
	r, ok := m.roles[roleID]
	if !ok || r.OrganizationID != organizationID {
		return nil, role.ErrRoleNotFound
	}
	return r, nil
}

func (m *memRoles) GetByName(ctx context.Context, organizationID, name string) (*role.Role, error) {
	for _, r := range m.roles {
		if r.OrganizationID == organizationID && r.Name == name {
			return r, nil
		}
	}
	return nil, role.ErrRoleNotFound
}

func (m *memRoles) List(ctx context.Context, organizationID string) ([]*role.Role, error) {
	return nil, nil
}

func (m *memRoles) Update(ctx context.Context, organizationID, roleID string, upd role.Update) (*role.Role, error) {
	return nil, role.ErrRoleNotFound
}

func (m *memRoles) Delete(ctx context.Context, organizationID, roleID string) error {
	return role.ErrRoleNotFound
}

func (m *memRoles) AssignmentCount(ctx context.Context, roleID string) (int, error) {
	return 0, nil
}

// memRolePerms maps role id to granted permissions.
type memRolePerms struct {
	grants map[string][]*permission.Permission
}

func (m *memRolePerms) Add(ctx context.Context, roleID, permissionID string) error { return nil }

func (m *memRolePerms) ReplaceAll(ctx context.Context, roleID string, permissionIDs []string) error {
	return nil
}

func (m *memRolePerms) ListForRole(ctx context.Context, roleID string) ([]*permission.Permission, error) {
	return m.grants[roleID], nil
}

type captureRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureRecorder) Record(ctx context.Context, e audit.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *captureRecorder) last() audit.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

type fixture struct {
	svc     *Service
	assigns *memAssignments
	roles   *memRoles
	perms   *memRolePerms
	rec     *captureRecorder
}

func newFixture() *fixture {
	perms := &memRolePerms{grants: make(map[string][]*permission.Permission)}
	assigns := &memAssignments{perms: perms}
	roles := &memRoles{roles: make(map[string]*role.Role)}
	rec := &captureRecorder{}
	return &fixture{
		svc:     NewService(assigns, roles, perms, rec, nil),
		assigns: assigns,
		roles:   roles,
		perms:   perms,
		rec:     rec,
	}
}

func (f *fixture) addRole(roleID, orgID, name string, grants ...*permission.Permission) {
	f.roles.roles[roleID] = &role.Role{ID: roleID, OrganizationID: orgID, Name: name}
	f.perms.grants[roleID] = grants
}

// TestPurpose: Validates role assignment and the duplicate-grant conflict.
// Scope: Unit Test
// Expected: The first grant succeeds and is audited; the second identical
// grant fails with ErrRoleAlreadyAssigned.
// Test Case ID: ASN-01
func TestAuthzService_AssignRole_DuplicateConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addRole("role-1", "org-a", "Manager")

	ur, err := f.svc.AssignRole(ctx, "org-a", "user-1", "role-1", "admin-1")
	require.NoError(t, err)
	assert.NotEmpty(t, ur.ID)
	assert.Equal(t, "admin-1", ur.AssignedByID)
	assert.Equal(t, audit.TypeAssigned, f.rec.last().Type)

	_, err = f.svc.AssignRole(ctx, "org-a", "user-1", "role-1", "admin-1")
	assert.ErrorIs(t, err, ErrRoleAlreadyAssigned)
}

// TestPurpose: Validates that concurrent duplicate grants resolve to exactly
// one winner, the rest observing the conflict error.
// Scope: Unit Test (concurrency)
// Expected: Of N parallel attempts exactly one succeeds.
// Test Case ID: ASN-02
func TestAuthzService_AssignRole_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addRole("role-1", "org-a", "Manager")

	const n = 16
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AssignRole(ctx, "org-a", "user-1", "role-1", "admin-1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, ErrRoleAlreadyAssigned):
			conflicts++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
}

// TestPurpose: Validates that a role belonging to another organization cannot
// be assigned, and that the failure does not reveal the role exists.
// Scope: Unit Test
// Security: Multi-tenant Data Separation (CWE-284); anti-enumeration.
// Expected: ErrRoleNotFound, identical to a genuinely missing role.
// Test Case ID: ASN-03
func TestAuthzService_AssignRole_CrossTenantInvisible(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addRole("role-1", "org-a", "Manager")

	_, err := f.svc.AssignRole(ctx, "org-b", "user-1", "role-1", "admin-1")
	assert.ErrorIs(t, err, role.ErrRoleNotFound)

	_, err = f.svc.AssignRole(ctx, "org-b", "user-1", "no-such-role", "admin-1")
	assert.ErrorIs(t, err, role.ErrRoleNotFound)
}

// TestPurpose: Validates revocation semantics.
// Scope: Unit Test
// Expected: Removing an existing grant returns true and audits; removing a
// missing grant returns false without error and without an audit entry.
// Test Case ID: ASN-04
func TestAuthzService_RemoveRole(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addRole("role-1", "org-a", "Manager")

	_, err := f.svc.AssignRole(ctx, "org-a", "user-1", "role-1", "admin-1")
	require.NoError(t, err)
	auditCount := len(f.rec.events)

	removed, err := f.svc.RemoveRole(ctx, "org-a", "user-1", "role-1", "admin-1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, audit.TypeRemoved, f.rec.last().Type)

	removed, err = f.svc.RemoveRole(ctx, "org-a", "user-1", "role-1", "admin-1")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Len(t, f.rec.events, auditCount+1)
}

// TestPurpose: Validates the end-to-end authorization scenario: a user with
// several roles is allowed the union of their grants, and revoking a role
// immediately withdraws the permissions only it provided.
// Scope: Unit Test
// Expected: Allow on a shared grant, Deny on an absent one, and Deny on a
// revoked role's exclusive grant right after removal.
// Test Case ID: AZD-01
func TestAuthzService_Authorize_MultiRoleUnion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.addRole("mgr", "org-a", "Manager",
		perm(permission.AreaClients, permission.TypeView),
		perm(permission.AreaClients, permission.TypeEdit),
		perm(permission.AreaProjects, permission.TypeCreate),
	)
	f.addRole("member", "org-a", "Team Member",
		perm(permission.AreaClients, permission.TypeView),
		perm(permission.AreaProjects, permission.TypeView),
	)

	_, err := f.svc.AssignRole(ctx, "org-a", "user-1", "mgr", "admin-1")
	require.NoError(t, err)
	_, err = f.svc.AssignRole(ctx, "org-a", "user-1", "member", "admin-1")
	require.NoError(t, err)

	d, err := f.svc.Authorize(ctx, "org-a", "user-1", permission.AreaClients, permission.TypeView)
	require.NoError(t, err)
	assert.Equal(t, Allow, d)

	d, err = f.svc.Authorize(ctx, "org-a", "user-1", permission.AreaClients, permission.TypeDelete)
	require.NoError(t, err)
	assert.Equal(t, Deny, d)

	// Only the Manager role grants projects:create.
	removed, err := f.svc.RemoveRole(ctx, "org-a", "user-1", "mgr", "admin-1")
	require.NoError(t, err)
	require.True(t, removed)

	d, err = f.svc.Authorize(ctx, "org-a", "user-1", permission.AreaProjects, permission.TypeCreate)
	require.NoError(t, err)
	assert.Equal(t, Deny, d)

	d, err = f.svc.Authorize(ctx, "org-a", "user-1", permission.AreaProjects, permission.TypeView)
	require.NoError(t, err)
	assert.Equal(t, Allow, d)
}

// TestPurpose: Validates that every Deny lands on the audit trail as a
// rejected permission check, while Allows do not.
// Scope: Unit Test
// Security: Access-denial evidence for incident review.
// Expected: One rejected event per Deny, none for Allow.
// Test Case ID: AZD-02
func TestAuthzService_Authorize_DenyAudited(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addRole("viewer", "org-a", "Viewer", perm(permission.AreaReports, permission.TypeView))

	_, err := f.svc.AssignRole(ctx, "org-a", "user-1", "viewer", "admin-1")
	require.NoError(t, err)
	before := len(f.rec.events)

	d, err := f.svc.Authorize(ctx, "org-a", "user-1", permission.AreaReports, permission.TypeView)
	require.NoError(t, err)
	assert.Equal(t, Allow, d)
	assert.Len(t, f.rec.events, before)

	d, err = f.svc.Authorize(ctx, "org-a", "user-1", permission.AreaReports, permission.TypeExport)
	require.NoError(t, err)
	assert.Equal(t, Deny, d)
	require.Len(t, f.rec.events, before+1)

	e := f.rec.last()
	assert.Equal(t, audit.EntityPermissionCheck, e.EntityType)
	assert.Equal(t, audit.TypeRejected, e.Type)
	assert.Equal(t, "user-1", e.ActorID)
}

// TestPurpose: Validates that effective permissions do not leak across
// organizations for the same user id.
// Scope: Unit Test
// Security: Multi-tenant Data Separation (CWE-284)
// Expected: A grant in org-a decides nothing in org-b.
// Test Case ID: AZD-03
func TestAuthzService_Authorize_OrganizationIsolation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addRole("mgr", "org-a", "Manager", perm(permission.AreaDeals, permission.TypeEdit))

	_, err := f.svc.AssignRole(ctx, "org-a", "user-1", "mgr", "admin-1")
	require.NoError(t, err)

	d, err := f.svc.Authorize(ctx, "org-a", "user-1", permission.AreaDeals, permission.TypeEdit)
	require.NoError(t, err)
	assert.Equal(t, Allow, d)

	d, err = f.svc.Authorize(ctx, "org-b", "user-1", permission.AreaDeals, permission.TypeEdit)
	require.NoError(t, err)
	assert.Equal(t, Deny, d)
}

// TestPurpose: Validates fail-closed behavior on incomplete input.
// Scope: Unit Test
// Security: Deny-by-default.
// Expected: Missing parameters produce Deny plus ErrInvalidInput.
// Test Case ID: AZD-04
func TestAuthzService_Authorize_InvalidInputDenies(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	d, err := f.svc.Authorize(ctx, "", "user-1", permission.AreaDeals, permission.TypeView)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, Deny, d)

	d, err = f.svc.Authorize(ctx, "org-a", "user-1", "", permission.TypeView)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, Deny, d)
}

// TestPurpose: Validates that GetUserRoles resolves the user's assignments to roles.
// Scope: Unit Test
// Expected: Exactly the assigned roles come back, scoped to the organization.
// Test Case ID: AZD-05
func TestAuthzService_GetUserRoles(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addRole("mgr", "org-a", "Manager")
	f.addRole("member", "org-a", "Team Member")

	_, err := f.svc.AssignRole(ctx, "org-a", "user-1", "mgr", "admin-1")
	require.NoError(t, err)
	_, err = f.svc.AssignRole(ctx, "org-a", "user-1", "member", "admin-1")
	require.NoError(t, err)

	roles, err := f.svc.GetUserRoles(ctx, "org-a", "user-1")
	require.NoError(t, err)
	assert.Len(t, roles, 2)

	roles, err = f.svc.GetUserRoles(ctx, "org-b", "user-1")
	require.NoError(t, err)
	assert.Empty(t, roles)
}
