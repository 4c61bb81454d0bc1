// Package rbac resolves role names to permission sets and decides whether a
// caller may perform a guarded operation.
//
// The registry is built once at startup and never mutated afterwards, so a
// single *Registry is shared by every request without locking.
package rbac

import (
	"fmt"
	"sort"

	"github.com/rl1809/bookshelf/internal/core/domain"
)

// PermissionSet is an immutable set of permission names.
type PermissionSet struct {
	perms map[string]struct{}
}

func newPermissionSet(perms []string) PermissionSet {
	m := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		if p != "" {
			m[p] = struct{}{}
		}
	}
	return PermissionSet{perms: m}
}

// Has reports whether permission is in the set.
func (s PermissionSet) Has(permission string) bool {
	_, ok := s.perms[permission]
	return ok
}

func (s PermissionSet) Len() int {
	return len(s.perms)
}

// List returns the permissions in sorted order.
func (s PermissionSet) List() []string {
	out := make([]string, 0, len(s.perms))
	for p := range s.perms {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Registry maps role names to their permission sets.
type Registry struct {
	roles map[string]PermissionSet
}

// NewRegistry builds a registry from a role table. Role names must be
// non-empty and unique.
func NewRegistry(roles []domain.Role) (*Registry, error) {
	m := make(map[string]PermissionSet, len(roles))
	for _, r := range roles {
		if r.Name == "" {
			return nil, fmt.Errorf("role with empty name")
		}
		if _, dup := m[r.Name]; dup {
			return nil, fmt.Errorf("duplicate role %q", r.Name)
		}
		m[r.Name] = newPermissionSet(r.Permissions)
	}
	return &Registry{roles: m}, nil
}

// Resolve returns the permissions granted to roleName. Unknown roles, including
// anonymous callers, resolve to the empty set.
func (r *Registry) Resolve(roleName string) PermissionSet {
	if set, ok := r.roles[roleName]; ok {
		return set
	}
	return PermissionSet{}
}

// HasRole reports whether roleName is defined.
func (r *Registry) HasRole(roleName string) bool {
	_, ok := r.roles[roleName]
	return ok
}

// Allows reports whether roleName grants permission.
func (r *Registry) Allows(roleName, permission string) bool {
	return r.Resolve(roleName).Has(permission)
}

// Authorize admits the caller iff its role grants permission. A nil identity
// is treated as the anonymous role.
func (r *Registry) Authorize(id *domain.Identity, permission string) error {
	role := domain.RoleAnonymous
	if id != nil && id.Role != "" {
		role = id.Role
	}
	if !r.Allows(role, permission) {
		return domain.ErrForbidden
	}
	return nil
}

// AuthorizeSelf admits the caller when it acts on its own userID, and
// otherwise falls back to the permission check.
func (r *Registry) AuthorizeSelf(id *domain.Identity, userID, permission string) error {
	if id != nil && id.ID != "" && id.ID == userID {
		return nil
	}
	return r.Authorize(id, permission)
}
