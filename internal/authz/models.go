package authz

import (
	"context"
	"errors"
	"time"

	"github.com/dealdesk/dealdesk/internal/permission"
)

// Domain errors
var (
	// ErrRoleAlreadyAssigned is the conflict outcome for a duplicate
	// (user, role, organization) grant. Callers must treat it as an error,
	// not a no-op; the storage unique constraint is what raises it under
	// concurrent attempts.
	ErrRoleAlreadyAssigned = errors.New("role already assigned to user")

	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrInvalidInput       = errors.New("invalid input")
)

// Decision is the outcome vocabulary of an authorization query.
type Decision string

const (
	Allow Decision = "allow"
	Deny  Decision = "deny"
)

// UserRole grants one role to one user within one organization.
// The triple (UserID, RoleID, OrganizationID) is unique.
type UserRole struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	RoleID         string    `json:"role_id"`
	OrganizationID string    `json:"organization_id"`
	AssignedByID   string    `json:"assigned_by_id,omitempty"` // empty for seed-time grants
	AssignedAt     time.Time `json:"assigned_at"`
}

// AssignmentRepository defines the interface for user-role persistence.
type AssignmentRepository interface {
	// Create inserts one assignment. A duplicate triple must surface as
	// ErrRoleAlreadyAssigned, enforced by the storage layer's unique
	// constraint so concurrent writers race safely.
	Create(ctx context.Context, ur *UserRole) error

	// Delete removes the matching assignment. Returns false when no such
	// row existed.
	Delete(ctx context.Context, organizationID, userID, roleID string) (bool, error)

	// ListForUser returns the user's assignments within one organization.
	ListForUser(ctx context.Context, organizationID, userID string) ([]*UserRole, error)

	// PermissionsForUser resolves the user's deduplicated effective
	// permission set in one join across user_roles, role_permissions and
	// the catalog.
	PermissionsForUser(ctx context.Context, organizationID, userID string) ([]*permission.Permission, error)
}
