package rbac

import (
	"context"
	"fmt"
)

// ForkDefaultGroup copies the shared public platform-default group into the
// tenant, producing the tenant-owned "Custom default access" group. The
// fork carries the public group's current role set in a fresh system policy;
// the public group itself is never touched. Must run inside the same
// transaction as the mutation that triggered it.
func ForkDefaultGroup(ctx context.Context, store *Store, tenant *Tenant, public *Group) (*Group, error) {
	custom := &Group{
		Name:            CustomDefaultAccessName,
		Description:     public.Description,
		TenantID:        tenant.ID,
		System:          false,
		PlatformDefault: public.PlatformDefault,
		AdminDefault:    public.AdminDefault,
	}
	if err := store.CreateGroup(ctx, custom); err != nil {
		return nil, fmt.Errorf("failed to fork default group: %w", err)
	}

	policy, err := store.GetOrCreateSystemPolicy(ctx, custom)
	if err != nil {
		return nil, fmt.Errorf("failed to create fork policy: %w", err)
	}

	roleIDs, err := store.GroupRoleIDs(ctx, public.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read default role set: %w", err)
	}
	if err := store.AttachRoles(ctx, policy.ID, roleIDs); err != nil {
		return nil, fmt.Errorf("failed to copy default role set: %w", err)
	}
	return custom, nil
}
