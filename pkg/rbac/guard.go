package rbac

// Guard enforces the protection rules around platform-managed groups.
// Rejections surface as validation errors (HTTP 400) rather than 403; the
// caller is naming a resource that cannot legally be targeted, not lacking
// permission.
type Guard struct{}

// CanModifyMeta reports whether a group's name and description can change.
// Every default-flagged or system group is locked.
func (Guard) CanModifyMeta(g *Group) error {
	if g.System || g.IsDefault() {
		return NewForbidden("%s is reserved, cannot be modified", g.Name)
	}
	return nil
}

// CanDelete reports whether a group can be deleted. System groups are
// immortal; a tenant's custom default fork is deletable, which reverts the
// tenant to the public default.
func (Guard) CanDelete(g *Group) error {
	if g.System {
		return NewForbidden("%s is reserved, cannot be deleted", g.Name)
	}
	return nil
}

// CanModifyRoles reports whether roles may be attached or detached. The
// returned fork flag is set when the target is the shared public platform
// default, which must be copied into the tenant before mutation.
func (Guard) CanModifyRoles(g *Group) (fork bool, err error) {
	if g.AdminDefault {
		return false, NewForbidden("%s is reserved, cannot be modified", g.Name)
	}
	if g.System && !g.PlatformDefault {
		return false, NewForbidden("%s is reserved, cannot be modified", g.Name)
	}
	return g.System && g.PlatformDefault, nil
}

// CanModifyPrincipals reports whether membership may change. Default groups
// of either kind never hold explicit members.
func (Guard) CanModifyPrincipals(g *Group) error {
	if g.System || g.IsDefault() {
		return NewForbidden("%s is reserved, cannot add or remove principals", g.Name)
	}
	return nil
}
