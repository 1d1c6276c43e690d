package role

import (
	"context"
	"errors"
	"time"

	"github.com/dealdesk/dealdesk/internal/permission"
)

// Domain errors
var (
	// ErrRoleNotFound covers both a missing role and a role owned by another
	// organization. The two cases are deliberately indistinguishable so a
	// caller cannot probe for role ids across tenant boundaries.
	ErrRoleNotFound = errors.New("role not found")

	ErrRoleNameTaken = errors.New("role name already exists in organization")
	ErrRoleProtected = errors.New("default role cannot be deleted")
	ErrRoleInUse     = errors.New("role has active user assignments")
	ErrInvalidInput  = errors.New("invalid input")
)

// Role is a per-organization named collection of catalog permissions.
type Role struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	IsDefault      bool      `json:"is_default"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RoleWithPermissions joins a role with its resolved permission set.
type RoleWithPermissions struct {
	Role
	Permissions []*permission.Permission `json:"permissions"`
}

// Update carries the mutable fields of a role. Nil means "leave unchanged".
type Update struct {
	Name        *string
	Description *string
}

// Repository defines the interface for role persistence. Every read takes
// the organization id so cross-tenant rows are invisible at the query level,
// not filtered after the fact.
type Repository interface {
	Create(ctx context.Context, r *Role) error
	GetByID(ctx context.Context, organizationID, roleID string) (*Role, error)
	GetByName(ctx context.Context, organizationID, name string) (*Role, error)
	List(ctx context.Context, organizationID string) ([]*Role, error)
	Update(ctx context.Context, organizationID, roleID string, upd Update) (*Role, error)

	// Delete removes the role and its role_permissions rows in one
	// transaction. It does not check assignments; the service does.
	Delete(ctx context.Context, organizationID, roleID string) error

	// AssignmentCount reports how many user_roles rows reference the role.
	AssignmentCount(ctx context.Context, roleID string) (int, error)
}

// PermissionRepository is the role↔permission join surface.
type PermissionRepository interface {
	// Add appends a single role_permissions row. Seed-time only.
	Add(ctx context.Context, roleID, permissionID string) error

	// ReplaceAll atomically replaces the role's entire permission set.
	// Readers never observe the transient empty state.
	ReplaceAll(ctx context.Context, roleID string, permissionIDs []string) error

	// ListForRole resolves the role's permissions against the catalog.
	ListForRole(ctx context.Context, roleID string) ([]*permission.Permission, error)
}
