package auth

import (
	"fmt"
	"strings"
)

// Mode selects how multiple requirements combine into one decision.
type Mode int

const (
	// ModeAll requires every requirement to be individually satisfied.
	ModeAll Mode = iota
	// ModeEither allows the check when at least one requirement is satisfied.
	ModeEither
)

// Requirement describes one permission a check demands. An empty ResourceID
// matches only global grants; a set one matches only grants scoped to that
// same instance. Actions lists every action name that satisfies the
// requirement, so a "read" requirement can accept read-write grants without
// modelling an action hierarchy.
type Requirement struct {
	Resource   string
	ResourceID string
	Actions    []string
}

// Global builds a requirement matched only by global grants.
func Global(resource string, actions ...string) Requirement {
	return Requirement{Resource: resource, Actions: actions}
}

// Instance builds a requirement scoped to one resource instance.
func Instance(resource, resourceID string, actions ...string) Requirement {
	return Requirement{Resource: resource, ResourceID: resourceID, Actions: actions}
}

// Checker evaluates a set of requirements against the acting user's roles.
// It only reads data handed to it at construction; it performs no I/O and
// mutates nothing, so concurrent checks over shared role data are safe.
type Checker struct {
	roles        []Role
	requirements []Requirement
	bypass       map[string]struct{}
	mode         Mode
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithBypassRoles names roles that satisfy any check unconditionally. The
// list is explicit configuration, never ambient state, so checks stay
// deterministic and testable in isolation.
func WithBypassRoles(names ...string) CheckerOption {
	return func(c *Checker) {
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			c.bypass[name] = struct{}{}
		}
	}
}

// WithMode overrides the default all-required combination.
func WithMode(mode Mode) CheckerOption {
	return func(c *Checker) { c.mode = mode }
}

// NewChecker builds a checker over the acting roles and requirement list.
func NewChecker(roles []Role, requirements []Requirement, opts ...CheckerOption) *Checker {
	c := &Checker{
		roles:        roles,
		requirements: requirements,
		bypass:       make(map[string]struct{}),
		mode:         ModeAll,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns nil when the acting roles satisfy the requirements, and an
// ErrForbidden-wrapped error otherwise. Bypass roles short-circuit before any
// requirement is evaluated.
func (c *Checker) Check() error {
	for _, role := range c.roles {
		if _, ok := c.bypass[role.Name]; ok && role.Name != "" {
			return nil
		}
	}

	if len(c.requirements) == 0 {
		return fmt.Errorf("%w: no requirement satisfiable", ErrForbidden)
	}

	satisfied := 0
	for _, req := range c.requirements {
		if c.satisfies(req) {
			satisfied++
			if c.mode == ModeEither {
				return nil
			}
		} else if c.mode == ModeAll {
			return fmt.Errorf("%w: missing %s", ErrForbidden, requirementKey(req))
		}
	}
	if c.mode == ModeAll && satisfied == len(c.requirements) {
		return nil
	}
	return fmt.Errorf("%w: no requirement satisfiable", ErrForbidden)
}

func (c *Checker) satisfies(req Requirement) bool {
	for _, role := range c.roles {
		for _, grant := range role.Permissions {
			if grant.Resource != req.Resource {
				continue
			}
			if grant.ResourceID != req.ResourceID {
				continue
			}
			for _, action := range req.Actions {
				if grant.Action == action {
					return true
				}
			}
		}
	}
	return false
}

func requirementKey(req Requirement) string {
	parts := []string{req.Resource}
	if req.ResourceID != "" {
		parts = append(parts, req.ResourceID)
	}
	parts = append(parts, strings.Join(req.Actions, "|"))
	return strings.Join(parts, ":")
}
