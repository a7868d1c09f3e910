package rbac

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPrincipalTypeValid(t *testing.T) {
	assert.True(t, PrincipalUser.Valid())
	assert.True(t, PrincipalServiceAccount.Valid())
	assert.False(t, PrincipalType("bot").Valid())
	assert.False(t, PrincipalType("").Valid())
}

func TestIsReservedGroupName(t *testing.T) {
	tests := []struct {
		name     string
		reserved bool
	}{
		{"Default access", true},
		{"default access", true},
		{"DEFAULT ACCESS", true},
		{"  Custom default access  ", true},
		{"custom default access", true},
		{"Default admin access", false},
		{"My group", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.reserved, IsReservedGroupName(tt.name))
		})
	}
}

func TestGroupIsDefault(t *testing.T) {
	assert.False(t, (&Group{}).IsDefault())
	assert.True(t, (&Group{PlatformDefault: true}).IsDefault())
	assert.True(t, (&Group{AdminDefault: true}).IsDefault())
	assert.False(t, (&Group{System: true}).IsDefault())
}

func TestSystemPolicyName(t *testing.T) {
	id := uuid.MustParse("6cfb58b8-7eb8-4d5c-963b-0bf9e74e8a38")
	assert.Equal(t, "System Policy for Group 6cfb58b8-7eb8-4d5c-963b-0bf9e74e8a38", SystemPolicyName(id))
}
