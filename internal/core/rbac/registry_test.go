package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/bookshelf/internal/core/domain"
)

func testRoles() []domain.Role {
	return []domain.Role{
		{Name: "admin", Permissions: []string{"add_book", "update_book", "delete_book", "manage_loans"}},
		{Name: "user", Permissions: []string{"change_password"}},
		{Name: "anonymous"},
	}
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]domain.Role{{Name: "admin"}, {Name: "admin"}})
	require.Error(t, err)

	_, err = NewRegistry([]domain.Role{{Name: ""}})
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	reg, err := NewRegistry(testRoles())
	require.NoError(t, err)

	assert.Equal(t, []string{"add_book", "delete_book", "manage_loans", "update_book"}, reg.Resolve("admin").List())
	assert.True(t, reg.Resolve("user").Has("change_password"))
	assert.Equal(t, 0, reg.Resolve("anonymous").Len())
	assert.Equal(t, 0, reg.Resolve("ghost").Len())
	assert.False(t, reg.Resolve("ghost").Has("add_book"))
}

func TestAuthorize_MatchesResolve(t *testing.T) {
	reg, err := NewRegistry(testRoles())
	require.NoError(t, err)

	perms := []string{"add_book", "update_book", "delete_book", "manage_loans", "change_password", "view_users"}
	for _, role := range []string{"admin", "user", "anonymous", "ghost"} {
		for _, p := range perms {
			err := reg.Authorize(&domain.Identity{ID: "u1", Role: role}, p)
			if reg.Resolve(role).Has(p) {
				assert.NoError(t, err, "role=%s perm=%s", role, p)
			} else {
				assert.True(t, errors.Is(err, domain.ErrForbidden), "role=%s perm=%s", role, p)
			}
		}
	}
}

func TestAuthorize_NilIdentityIsAnonymous(t *testing.T) {
	reg, err := NewRegistry([]domain.Role{{Name: "anonymous", Permissions: []string{"browse"}}})
	require.NoError(t, err)

	assert.NoError(t, reg.Authorize(nil, "browse"))
	assert.ErrorIs(t, reg.Authorize(nil, "add_book"), domain.ErrForbidden)
	assert.NoError(t, reg.Authorize(&domain.Identity{ID: "x"}, "browse"))
}

func TestAuthorizeSelf(t *testing.T) {
	reg, err := NewRegistry(testRoles())
	require.NoError(t, err)

	self := &domain.Identity{ID: "u1", Role: "user"}
	assert.NoError(t, reg.AuthorizeSelf(self, "u1", "manage_loans"))
	assert.ErrorIs(t, reg.AuthorizeSelf(self, "u2", "manage_loans"), domain.ErrForbidden)

	admin := &domain.Identity{ID: "a1", Role: "admin"}
	assert.NoError(t, reg.AuthorizeSelf(admin, "u2", "manage_loans"))
	assert.ErrorIs(t, reg.AuthorizeSelf(nil, "", "manage_loans"), domain.ErrForbidden)
}
