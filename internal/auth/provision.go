package auth

import (
	"fmt"
	"strings"

	"filecrate.org/internal/ids"
)

// OwnershipGrant is the pair of records minted for the creator of a protected
// resource: an unnamed single-member role and a read-write permission scoped
// to the new resource instance. Both must be committed in the same
// transaction as the resource itself.
type OwnershipGrant struct {
	Role       Role
	MemberID   string
	Permission Permission
}

// ProvisionOwnership synthesizes the ownership grant for a freshly created
// resource. Nothing is persisted here; the caller stages the role, the
// membership and the permission alongside the resource so the whole creation
// commits or rolls back as one unit.
func ProvisionOwnership(creatorID, resource, resourceID string) (OwnershipGrant, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return OwnershipGrant{}, fmt.Errorf("%w: creator is required", ErrInvalidInput)
	}
	if strings.TrimSpace(resourceID) == "" {
		return OwnershipGrant{}, fmt.Errorf("%w: resource id is required", ErrInvalidInput)
	}

	role := Role{ID: ids.New()}
	perm, err := NewPermission().
		ForRole(role.ID).
		Resource(resource).
		ResourceID(resourceID).
		Action(ActionReadWrite).
		Build()
	if err != nil {
		return OwnershipGrant{}, err
	}
	role.Permissions = []Permission{perm}
	return OwnershipGrant{Role: role, MemberID: creatorID, Permission: perm}, nil
}
