package auth

import (
	"errors"
	"testing"
)

func TestPermissionBuilderBuild(t *testing.T) {
	perm, err := NewPermission().
		ForRole("role-1").
		Resource(ResourceFile).
		ResourceID("f-9").
		Action(ActionReadWrite).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if perm.ID == "" {
		t.Fatalf("expected generated permission id")
	}
	if perm.RoleID != "role-1" || perm.Resource != ResourceFile || perm.Action != ActionReadWrite {
		t.Fatalf("unexpected permission: %+v", perm)
	}
	if perm.Key() != "file:f-9:read-write" {
		t.Fatalf("unexpected key: %s", perm.Key())
	}
}

func TestPermissionBuilderGlobalGrant(t *testing.T) {
	perm, err := NewPermission().
		ForRole("role-1").
		Resource(ResourceAdmin).
		Action(ActionReadWrite).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !perm.Global() {
		t.Fatalf("expected global grant")
	}
	if perm.Key() != "admin:read-write" {
		t.Fatalf("unexpected key: %s", perm.Key())
	}
}

func TestPermissionBuilderRejectsMissingFields(t *testing.T) {
	cases := []*PermissionBuilder{
		NewPermission().Resource(ResourceFile).Action(ActionRead),
		NewPermission().ForRole("role-1").Action(ActionRead),
		NewPermission().ForRole("role-1").Resource(ResourceFile),
	}
	for i, b := range cases {
		if _, err := b.Build(); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestProvisionOwnership(t *testing.T) {
	grant, err := ProvisionOwnership("user-1", ResourceFile, "f-1")
	if err != nil {
		t.Fatalf("ProvisionOwnership: %v", err)
	}
	if grant.Role.ID == "" || grant.Role.Name != "" {
		t.Fatalf("expected unnamed role with id, got %+v", grant.Role)
	}
	if grant.MemberID != "user-1" {
		t.Fatalf("unexpected member: %s", grant.MemberID)
	}
	p := grant.Permission
	if p.RoleID != grant.Role.ID || p.Resource != ResourceFile || p.ResourceID != "f-1" || p.Action != ActionReadWrite {
		t.Fatalf("unexpected permission: %+v", p)
	}

	// The synthesized role satisfies an instance-scoped read-write check and
	// nothing else does.
	if err := NewChecker([]Role{grant.Role}, []Requirement{
		Instance(ResourceFile, "f-1", ActionReadWrite),
	}).Check(); err != nil {
		t.Fatalf("owner role denied: %v", err)
	}
	if err := NewChecker(nil, []Requirement{
		Instance(ResourceFile, "f-1", ActionReadWrite),
	}).Check(); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger allowed: %v", err)
	}
}

func TestProvisionOwnershipValidation(t *testing.T) {
	if _, err := ProvisionOwnership("", ResourceFile, "f-1"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty creator, got %v", err)
	}
	if _, err := ProvisionOwnership("user-1", ResourceFile, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty resource id, got %v", err)
	}
}
