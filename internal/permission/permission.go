package permission

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrPermissionNotFound = errors.New("permission not found")
	ErrInvalidPermission  = errors.New("invalid permission")
)

// Type is one of the closed set of actions a permission can govern.
type Type string

const (
	TypeView   Type = "view"
	TypeCreate Type = "create"
	TypeEdit   Type = "edit"
	TypeDelete Type = "delete"
	TypeExport Type = "export"
)

// Permission is a global catalog entry. It is not organization-scoped; roles
// reference catalog entries, and roles carry the tenant boundary.
// The semantic key is the (FeatureArea, PermissionType) pair.
type Permission struct {
	ID             string    `json:"id"`
	FeatureArea    string    `json:"feature_area"`
	PermissionType Type      `json:"permission_type"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
}

// Key returns the semantic identity of a permission. Effective-set
// deduplication uses this, never the row ID, so the same logical permission
// reached through two roles counts once.
func (p *Permission) Key() string {
	return p.FeatureArea + ":" + string(p.PermissionType)
}

// Repository defines the interface for catalog persistence
type Repository interface {
	Insert(ctx context.Context, p *Permission) error
	List(ctx context.Context) ([]*Permission, error)
	GetByKey(ctx context.Context, featureArea string, permissionType Type) (*Permission, error)
}
