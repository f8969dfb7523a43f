package auth

import (
	"fmt"

	"filecrate.org/internal/ids"
)

// PermissionBuilder assembles one Permission bound to one role, one resource
// type and one action, with an optional instance scope. Build never persists;
// the caller stages the result into whatever transaction also carries the
// role and the protected resource.
type PermissionBuilder struct {
	roleID     string
	resource   string
	action     string
	resourceID string
}

// NewPermission starts an empty builder.
func NewPermission() *PermissionBuilder {
	return &PermissionBuilder{}
}

// ForRole sets the role the grant belongs to.
func (b *PermissionBuilder) ForRole(roleID string) *PermissionBuilder {
	b.roleID = roleID
	return b
}

// Resource sets the resource type name.
func (b *PermissionBuilder) Resource(name string) *PermissionBuilder {
	b.resource = name
	return b
}

// Action sets the granted action name.
func (b *PermissionBuilder) Action(name string) *PermissionBuilder {
	b.action = name
	return b
}

// ResourceID scopes the grant to a single resource instance. Leaving it unset
// produces a global grant for the resource type.
func (b *PermissionBuilder) ResourceID(id string) *PermissionBuilder {
	b.resourceID = id
	return b
}

// Build finalises the permission. Role, resource and action are mandatory;
// a missing one is a programming error on the call site, reported eagerly
// rather than defaulted.
func (b *PermissionBuilder) Build() (Permission, error) {
	if b.roleID == "" {
		return Permission{}, fmt.Errorf("%w: permission role is not set", ErrInvalidInput)
	}
	if b.resource == "" {
		return Permission{}, fmt.Errorf("%w: permission resource is not set", ErrInvalidInput)
	}
	if b.action == "" {
		return Permission{}, fmt.Errorf("%w: permission action is not set", ErrInvalidInput)
	}
	return Permission{
		ID:         ids.New(),
		RoleID:     b.roleID,
		Resource:   b.resource,
		Action:     b.action,
		ResourceID: b.resourceID,
	}, nil
}
