package rbac

import (
	"strings"

	"github.com/google/uuid"
)

// Pagination defaults mirror the public API contract.
const (
	DefaultLimit = 10
	MaxLimit     = 1000
)

// NameMatch controls how the group name filter compares.
const (
	MatchPartial = "partial"
	MatchExact   = "exact"
)

// RoleDiscriminator controls how the role_names group filter combines.
const (
	DiscriminatorAny = "any"
	DiscriminatorAll = "all"
)

// GroupFilter narrows a tenant's group list.
type GroupFilter struct {
	Name              string
	NameMatch         string
	UUIDs             []uuid.UUID
	System            *bool
	PlatformDefault   *bool
	AdminDefault      *bool
	RoleNames         []string
	RoleDiscriminator string
	Username          string
	OrderBy           string
	Limit             int
	Offset            int
}

// Validate rejects unknown enum values. A bad OrderBy on the group list is
// deliberately not an error; unknown keys are ignored (see orderSQL).
func (f *GroupFilter) Validate() error {
	if f.NameMatch != "" && f.NameMatch != MatchPartial && f.NameMatch != MatchExact {
		return NewInvalidParameter("name_match query parameter value '%s' is invalid. [partial, exact] are valid inputs.", f.NameMatch)
	}
	if f.RoleDiscriminator != "" && f.RoleDiscriminator != DiscriminatorAny && f.RoleDiscriminator != DiscriminatorAll {
		return NewInvalidParameter("role_discriminator query parameter value '%s' is invalid. [all, any] are valid inputs.", f.RoleDiscriminator)
	}
	return nil
}

var groupOrderColumns = map[string]string{
	"name":            "name",
	"modified":        "updated_at",
	"principalCount":  "principal_count",
	"policyCount":     "policy_count",
	"-name":           "name DESC",
	"-modified":       "updated_at DESC",
	"-principalCount": "principal_count DESC",
	"-policyCount":    "policy_count DESC",
}

// orderSQL maps OrderBy to a column expression, falling back to name for
// unknown keys.
func (f *GroupFilter) orderSQL() string {
	if col, ok := groupOrderColumns[f.OrderBy]; ok {
		return col
	}
	return "name"
}

// RoleFilter narrows the role set of a group (the nested roles endpoints).
// Substring filters compare case-insensitively.
type RoleFilter struct {
	Name           string
	DisplayName    string
	Description    string
	System         *bool
	ExternalTenant string
	// Exclude flips the query to the complement: tenant-visible roles NOT
	// attached to the group.
	Exclude bool
	// Scope "principal" drops admin-only roles from an excluded listing.
	Scope   string
	OrderBy string
	Limit   int
	Offset  int
}

var roleOrderColumns = map[string]string{
	"name":          "r.name",
	"display_name":  "r.display_name",
	"modified":      "r.updated_at",
	"-name":         "r.name DESC",
	"-display_name": "r.display_name DESC",
	"-modified":     "r.updated_at DESC",
}

// Validate rejects unknown order keys. Unlike the group list, the nested
// role listing treats a bad key as a caller error.
func (f *RoleFilter) Validate() error {
	if f.OrderBy != "" {
		if _, ok := roleOrderColumns[f.OrderBy]; !ok {
			key := strings.TrimPrefix(f.OrderBy, "-")
			return NewInvalidParameter("Invalid ordering input '%s' provided.", key)
		}
	}
	if f.Scope != "" && f.Scope != "principal" && f.Scope != "org_id" && f.Scope != "account" {
		return NewInvalidParameter("scope query parameter value '%s' is invalid. [account, org_id, principal] are valid inputs.", f.Scope)
	}
	return nil
}

func (f *RoleFilter) orderSQL() string {
	if col, ok := roleOrderColumns[f.OrderBy]; ok {
		return col
	}
	return "r.name"
}

// PrincipalFilter narrows a group's member listing.
type PrincipalFilter struct {
	Type PrincipalType
	// UsernameContains filters members by username substring.
	UsernameContains string
	OrderBy          string
	AdminOnly        bool
	UsernameOnly     bool
	Limit            int
	Offset           int
}

// Validate enforces the narrow ordering contract of the principal listing:
// only username, ascending or descending.
func (f *PrincipalFilter) Validate() error {
	switch f.OrderBy {
	case "", "username", "-username":
		return nil
	}
	key := strings.TrimPrefix(f.OrderBy, "-")
	return NewInvalidParameter("Invalid ordering input '%s' provided.", key)
}

// SortOrder translates OrderBy into the gateway's sort order parameter.
func (f *PrincipalFilter) SortOrder() string {
	if f.OrderBy == "-username" {
		return "desc"
	}
	return "asc"
}

// NormalizePagination clamps limit and offset to sane values, preserving the
// legacy behavior of silently replacing invalid inputs with defaults.
func NormalizePagination(limit, offset int) (int, int) {
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Window computes the client-side pagination window over a set of total
// items, collapsing to zero when the offset runs past the end.
func Window(total, limit, offset int) (int, int) {
	if offset >= total {
		return 0, 0
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return offset, end
}
