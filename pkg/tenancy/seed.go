package tenancy

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/wcmitchell/insights-rbac/pkg/rbac"
)

// roleSeed describes a system role shipped with the service. Platform roles
// land on the "Default access" group's policy, admin roles on the
// "Default admin access" policy.
type roleSeed struct {
	name        string
	displayName string
	description string
	platform    bool
	admin       bool
}

var systemRoleSeeds = []roleSeed{
	{
		name:        "User Access principal viewer",
		displayName: "User Access principal viewer",
		description: "Grants read access to principals and groups",
		platform:    true,
	},
	{
		name:        "User Access administrator",
		displayName: "User Access administrator",
		description: "Grants full access to manage user access",
		admin:       true,
	},
}

// EnsureDefaults creates the public tenant, its platform groups, and the
// system roles if they do not exist. Runs at startup after migrations;
// idempotent.
func EnsureDefaults(ctx context.Context, store *rbac.Store, logger *logrus.Logger) error {
	public, err := store.GetTenantByName(ctx, rbac.PublicTenantName)
	if rbac.IsNotFound(err) {
		public = &rbac.Tenant{Name: rbac.PublicTenantName, Ready: true}
		if err := store.CreateTenant(ctx, public); err != nil {
			return fmt.Errorf("failed to create public tenant: %w", err)
		}
		logger.Info("created public tenant")
	} else if err != nil {
		return err
	}

	platformPolicy, err := ensureDefaultGroup(ctx, store, public, &rbac.Group{
		Name:            rbac.DefaultAccessGroupName,
		Description:     "Default access group that gets assigned to all users",
		TenantID:        public.ID,
		System:          true,
		PlatformDefault: true,
	}, false)
	if err != nil {
		return err
	}

	adminPolicy, err := ensureDefaultGroup(ctx, store, public, &rbac.Group{
		Name:         rbac.DefaultAdminAccessGroupName,
		Description:  "Default access group that gets assigned to all org admins",
		TenantID:     public.ID,
		System:       true,
		AdminDefault: true,
	}, true)
	if err != nil {
		return err
	}

	if err := ensureSystemRoles(ctx, store, public, platformPolicy, adminPolicy, logger); err != nil {
		return err
	}

	return store.MarkTenantReady(ctx, public.ID)
}

func ensureDefaultGroup(ctx context.Context, store *rbac.Store, public *rbac.Tenant, group *rbac.Group, admin bool) (*rbac.Policy, error) {
	existing, err := store.GetDefaultGroup(ctx, public.ID, admin)
	if err == nil {
		return store.GetOrCreateSystemPolicy(ctx, existing)
	}
	if !rbac.IsNotFound(err) {
		return nil, err
	}

	if err := store.CreateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", group.Name, err)
	}
	return store.GetOrCreateSystemPolicy(ctx, group)
}

// ensureSystemRoles upserts the shipped system roles in the public tenant
// and keeps them attached to the matching default policy. Attachment is a
// no-op for roles already present.
func ensureSystemRoles(ctx context.Context, store *rbac.Store, public *rbac.Tenant, platformPolicy, adminPolicy *rbac.Policy, logger *logrus.Logger) error {
	for _, seed := range systemRoleSeeds {
		role, err := store.GetRoleByName(ctx, public.ID, seed.name)
		if rbac.IsNotFound(err) {
			role = &rbac.Role{
				Name:            seed.name,
				DisplayName:     seed.displayName,
				Description:     seed.description,
				TenantID:        public.ID,
				System:          true,
				PlatformDefault: seed.platform,
				AdminDefault:    seed.admin,
			}
			if err := store.CreateRole(ctx, role); err != nil {
				return fmt.Errorf("failed to seed role %s: %w", seed.name, err)
			}
			logger.WithField("role", seed.name).Info("seeded system role")
		} else if err != nil {
			return err
		}

		var policy *rbac.Policy
		switch {
		case seed.platform:
			policy = platformPolicy
		case seed.admin:
			policy = adminPolicy
		default:
			continue
		}
		if err := store.AttachRoles(ctx, policy.ID, []int64{role.ID}); err != nil {
			return err
		}
	}
	return nil
}
