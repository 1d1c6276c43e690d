package organization

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("organization not found")
	ErrAlreadyExists = errors.New("organization already exists")
)

// Status constants
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Organization is the tenant root. Every role and user-role assignment is
// scoped to exactly one organization; lifecycle beyond create/read is owned
// by the account-management collaborator.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository defines the interface for organization storage. List pages in
// creation order; implementations clamp nonsensical limits to a default.
type Repository interface {
	Create(ctx context.Context, org *Organization) error
	GetByID(ctx context.Context, id string) (*Organization, error)
	List(ctx context.Context, limit, offset int) ([]*Organization, error)
}
