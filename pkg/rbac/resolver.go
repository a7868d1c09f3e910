package rbac

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Directory answers existence and admin questions about users from the
// external principal directory.
type Directory interface {
	UserExists(ctx context.Context, orgID, username string) (exists bool, orgAdmin bool, err error)
}

// Resolver computes group membership for principals, including the implicit
// membership every non-cross-account principal has in the tenant's visible
// default groups.
type Resolver struct {
	store     *Store
	directory Directory
	// memberships caches resolved group sets by tenant and username. Any
	// group or membership mutation purges the whole cache; entries are
	// cheap to rebuild.
	memberships *lru.Cache[string, []*Group]
}

// NewResolver creates a resolver backed by the store and directory.
func NewResolver(store *Store, directory Directory) (*Resolver, error) {
	cache, err := lru.New[string, []*Group](4096)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership cache: %w", err)
	}
	return &Resolver{store: store, directory: directory, memberships: cache}, nil
}

// Invalidate drops all cached membership resolutions. Called after any
// mutation that can change group visibility or membership.
func (r *Resolver) Invalidate() {
	r.memberships.Purge()
}

func membershipKey(tenantID int64, username string) string {
	return fmt.Sprintf("%d:%s", tenantID, username)
}

// GroupsForUsername returns every group the named principal belongs to
// within the tenant, explicit memberships plus the visible default groups.
// Unknown usernames (per the directory) are a caller error.
func (r *Resolver) GroupsForUsername(ctx context.Context, tenant, publicTenant *Tenant, username string) ([]*Group, error) {
	key := membershipKey(tenant.ID, username)
	if groups, ok := r.memberships.Get(key); ok {
		return groups, nil
	}

	var (
		crossAccount bool
		orgAdmin     bool
		explicit     []*Group
	)

	principal, err := r.store.GetPrincipalByUsername(ctx, tenant.ID, username)
	switch {
	case err == nil:
		crossAccount = principal.CrossAccount
		explicit, err = r.explicitGroups(ctx, principal.ID)
		if err != nil {
			return nil, err
		}
		if principal.Type == PrincipalUser {
			orgAdmin, err = r.isOrgAdmin(ctx, tenant, username)
			if err != nil {
				return nil, err
			}
		}
	case IsNotFound(err):
		// No local record. The directory decides whether the username is
		// real; real users still carry the implicit default memberships.
		exists, admin, derr := r.directory.UserExists(ctx, tenant.OrgID, username)
		if derr != nil {
			return nil, derr
		}
		if !exists {
			return nil, NewInvalidParameter("Principal '%s' not found in the directory", username)
		}
		orgAdmin = admin
	default:
		return nil, err
	}

	groups := explicit
	if !crossAccount {
		defaults, err := r.visibleDefaults(ctx, tenant, publicTenant, orgAdmin)
		if err != nil {
			return nil, err
		}
		groups = append(groups, defaults...)
	}

	r.memberships.Add(key, groups)
	return groups, nil
}

func (r *Resolver) isOrgAdmin(ctx context.Context, tenant *Tenant, username string) (bool, error) {
	exists, admin, err := r.directory.UserExists(ctx, tenant.OrgID, username)
	if err != nil {
		return false, err
	}
	return exists && admin, nil
}

func (r *Resolver) explicitGroups(ctx context.Context, principalID int64) ([]*Group, error) {
	query := `
		SELECT ` + groupColumns + `
		FROM groups g
		JOIN group_principals gp ON gp.group_id = g.id
		WHERE gp.principal_id = $1
		ORDER BY g.name
	`
	rows, err := r.store.q.QueryContext(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query principal groups: %w", err)
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// visibleDefaults returns the default groups the tenant currently sees: its
// own forked copies when present, otherwise the shared public ones. The
// admin default only applies to org admins.
func (r *Resolver) visibleDefaults(ctx context.Context, tenant, publicTenant *Tenant, orgAdmin bool) ([]*Group, error) {
	var defaults []*Group

	platform, err := r.VisibleDefaultGroup(ctx, tenant, publicTenant, false)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	if platform != nil {
		defaults = append(defaults, platform)
	}

	if orgAdmin {
		admin, err := r.VisibleDefaultGroup(ctx, tenant, publicTenant, true)
		if err != nil && !IsNotFound(err) {
			return nil, err
		}
		if admin != nil {
			defaults = append(defaults, admin)
		}
	}
	return defaults, nil
}

// VisibleDefaultGroup resolves which default group of the given kind the
// tenant sees. The resolution is computed at query time; deleting a custom
// fork reverts visibility to the public group with no stored pointer.
func (r *Resolver) VisibleDefaultGroup(ctx context.Context, tenant, publicTenant *Tenant, admin bool) (*Group, error) {
	group, err := r.store.GetDefaultGroup(ctx, tenant.ID, admin)
	if err == nil {
		return group, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	return r.store.GetDefaultGroup(ctx, publicTenant.ID, admin)
}
