package rbac

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PrincipalType distinguishes human users from service accounts.
type PrincipalType string

const (
	PrincipalUser           PrincipalType = "user"
	PrincipalServiceAccount PrincipalType = "service-account"
)

// Valid reports whether t is a known principal type.
func (t PrincipalType) Valid() bool {
	return t == PrincipalUser || t == PrincipalServiceAccount
}

// Group names that are reserved for the platform and cannot be used for
// custom groups (compared case-insensitively).
const (
	DefaultAccessGroupName      = "Default access"
	CustomDefaultAccessName     = "Custom default access"
	DefaultAdminAccessGroupName = "Default admin access"
)

// IsReservedGroupName reports whether name collides with a platform group name.
func IsReservedGroupName(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case strings.ToLower(DefaultAccessGroupName), strings.ToLower(CustomDefaultAccessName):
		return true
	}
	return false
}

// Tenant represents an isolated customer namespace. The public tenant holds
// the shared platform-default and admin-default groups visible to every
// tenant that has not forked its own.
type Tenant struct {
	ID        int64     `json:"-"`
	Name      string    `json:"name"`
	OrgID     string    `json:"org_id"`
	AccountID string    `json:"account_id"`
	Ready     bool      `json:"ready"`
	CreatedAt time.Time `json:"created"`
}

// PublicTenantName is the well-known name of the shared tenant.
const PublicTenantName = "public"

// Principal represents an identity inside a tenant. Usernames are stored
// lowercase and compared case-insensitively.
type Principal struct {
	ID           int64         `json:"-"`
	UUID         uuid.UUID     `json:"uuid"`
	Username     string        `json:"username"`
	TenantID     int64         `json:"-"`
	Type         PrincipalType `json:"type"`
	CrossAccount bool          `json:"-"`
	// ServiceAccountID carries the upstream client ID for service accounts.
	ServiceAccountID string `json:"service_account_id,omitempty"`
}

// Group is a named collection of principals with attached roles (via
// policies). The three flags are mutually constraining: a system group is
// platform managed and immutable; at most one platform_default and one
// admin_default group exist per tenant.
type Group struct {
	ID              int64     `json:"-"`
	UUID            uuid.UUID `json:"uuid"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	TenantID        int64     `json:"-"`
	System          bool      `json:"system"`
	PlatformDefault bool      `json:"platform_default"`
	AdminDefault    bool      `json:"admin_default"`
	CreatedAt       time.Time `json:"created"`
	UpdatedAt       time.Time `json:"modified"`

	// Computed on list/detail reads, not persisted.
	PrincipalCount int `json:"principalCount"`
	RoleCount      int `json:"roleCount"`
	PolicyCount    int `json:"policyCount,omitempty"`
}

// IsDefault reports whether the group is a default group of either kind.
func (g *Group) IsDefault() bool {
	return g.PlatformDefault || g.AdminDefault
}

// Role is a named bundle of permissions. System roles are platform managed.
// ExternalTenant names the external service a role was sourced from, if any.
type Role struct {
	ID              int64     `json:"-"`
	UUID            uuid.UUID `json:"uuid"`
	Name            string    `json:"name"`
	DisplayName     string    `json:"display_name"`
	Description     string    `json:"description"`
	TenantID        int64     `json:"-"`
	System          bool      `json:"system"`
	PlatformDefault bool      `json:"platform_default"`
	AdminDefault    bool      `json:"admin_default"`
	Version         int       `json:"version"`
	ExternalTenant  *string   `json:"external_tenant,omitempty"`
	CreatedAt       time.Time `json:"created"`
	UpdatedAt       time.Time `json:"modified"`
}

// Policy joins a group to a set of roles. Role attachment always flows
// through a policy; the service maintains one system policy per group for
// API-driven attachments.
type Policy struct {
	ID          int64     `json:"-"`
	UUID        uuid.UUID `json:"uuid"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TenantID    int64     `json:"-"`
	GroupID     int64     `json:"-"`
	System      bool      `json:"system"`
	CreatedAt   time.Time `json:"created"`
	UpdatedAt   time.Time `json:"modified"`
}

// SystemPolicyName returns the canonical name for a group's auto-created
// system policy.
func SystemPolicyName(groupUUID uuid.UUID) string {
	return "System Policy for Group " + groupUUID.String()
}

// GroupRoles is a group detail plus its attached role set, used by the
// nested roles endpoints.
type GroupRoles struct {
	Group *Group  `json:"-"`
	Roles []*Role `json:"data"`
}

// ServiceAccountPresence reports, per requested client ID, whether a
// matching service account principal is a member of the group.
type ServiceAccountPresence struct {
	ClientID string `json:"clientID"`
	InGroup  bool   `json:"is_in_group"`
}
