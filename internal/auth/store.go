package auth

import "context"

// UserStore manages user accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	SetVerified(ctx context.Context, id string) error
}

// RoleStore resolves role membership. RolesForUser returns every role the
// user belongs to with its permissions preloaded, which is all a Checker
// needs; grant mutation happens only through resource creation transactions
// or explicit administration.
type RoleStore interface {
	CreateRole(ctx context.Context, role *Role, memberIDs []string) error
	FindRole(ctx context.Context, id string) (*Role, error)
	FindRoleByName(ctx context.Context, name string) (*Role, error)
	AddRoleMember(ctx context.Context, roleID, userID string) error
	Grant(ctx context.Context, perm *Permission) error
	RolesForUser(ctx context.Context, userID string) ([]Role, error)
}
