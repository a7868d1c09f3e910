package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardCanModifyMeta(t *testing.T) {
	var guard Guard

	tests := []struct {
		name    string
		group   *Group
		allowed bool
	}{
		{"plain group", &Group{Name: "team"}, true},
		{"system group", &Group{Name: "Default access", System: true, PlatformDefault: true}, false},
		{"custom default fork", &Group{Name: "Custom default access", PlatformDefault: true}, false},
		{"admin default", &Group{Name: "Default admin access", System: true, AdminDefault: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.CanModifyMeta(tt.group)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "cannot be modified")
			}
		})
	}
}

func TestGuardCanDelete(t *testing.T) {
	var guard Guard

	assert.NoError(t, guard.CanDelete(&Group{Name: "team"}))

	// Deleting the tenant's custom fork reverts to the public default.
	assert.NoError(t, guard.CanDelete(&Group{Name: "Custom default access", PlatformDefault: true}))

	err := guard.CanDelete(&Group{Name: "Default access", System: true, PlatformDefault: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be deleted")
}

func TestGuardCanModifyRoles(t *testing.T) {
	var guard Guard

	t.Run("plain group, no fork", func(t *testing.T) {
		fork, err := guard.CanModifyRoles(&Group{Name: "team"})
		require.NoError(t, err)
		assert.False(t, fork)
	})

	t.Run("custom default fork, no further forking", func(t *testing.T) {
		fork, err := guard.CanModifyRoles(&Group{Name: "Custom default access", PlatformDefault: true})
		require.NoError(t, err)
		assert.False(t, fork)
	})

	t.Run("public platform default requires fork", func(t *testing.T) {
		fork, err := guard.CanModifyRoles(&Group{Name: "Default access", System: true, PlatformDefault: true})
		require.NoError(t, err)
		assert.True(t, fork)
	})

	t.Run("admin default is always rejected", func(t *testing.T) {
		_, err := guard.CanModifyRoles(&Group{Name: "Default admin access", System: true, AdminDefault: true})
		require.Error(t, err)
	})

	t.Run("other system groups are rejected", func(t *testing.T) {
		_, err := guard.CanModifyRoles(&Group{Name: "locked", System: true})
		require.Error(t, err)
	})
}

func TestGuardCanModifyPrincipals(t *testing.T) {
	var guard Guard

	assert.NoError(t, guard.CanModifyPrincipals(&Group{Name: "team"}))

	for _, g := range []*Group{
		{Name: "Default access", System: true, PlatformDefault: true},
		{Name: "Custom default access", PlatformDefault: true},
		{Name: "Default admin access", System: true, AdminDefault: true},
	} {
		err := guard.CanModifyPrincipals(g)
		require.Error(t, err, g.Name)
		assert.Contains(t, err.Error(), "cannot add or remove principals")
	}
}
