package auth

import (
	"strings"
	"time"
)

// Resource type names recognised by permission grants.
const (
	ResourceFile  = "file"
	ResourceLink  = "link"
	ResourceForm  = "form"
	ResourceAdmin = "admin"
)

// Action names attached to grants. ReadWrite satisfies requirements that
// accept either action; there is no deny action of any kind.
const (
	ActionRead      = "read"
	ActionReadWrite = "read-write"
)

// Administrative role names used for checker bypass lists.
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// User is an account holder. Verified starts false and flips only through a
// completed account-verification session.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Verified     bool      `json:"verified"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Role is a named or anonymous group of users. Ownership roles synthesized at
// resource creation have an empty Name and exactly one member.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Permission grants one action on a resource type to one role. An empty
// ResourceID makes the grant global for the resource type; otherwise it is
// scoped to exactly that instance.
type Permission struct {
	ID         string    `json:"id"`
	RoleID     string    `json:"role_id"`
	Resource   string    `json:"resource"`
	Action     string    `json:"action"`
	ResourceID string    `json:"resource_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Key renders the grant in its canonical "resource:action" or
// "resource:id:action" form, the shape stored by earlier schema revisions and
// still used in audit output.
func (p Permission) Key() string {
	parts := []string{p.Resource}
	if p.ResourceID != "" {
		parts = append(parts, p.ResourceID)
	}
	parts = append(parts, p.Action)
	return strings.Join(parts, ":")
}

// Global reports whether the grant applies to every instance of its resource
// type.
func (p Permission) Global() bool { return p.ResourceID == "" }
