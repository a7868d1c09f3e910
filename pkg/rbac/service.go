package rbac

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wcmitchell/insights-rbac/pkg/audit"
	"github.com/wcmitchell/insights-rbac/pkg/notifications"
	"github.com/wcmitchell/insights-rbac/pkg/proxy"
)

// DirectoryClient is the slice of the principal directory the service uses.
type DirectoryClient interface {
	Lookup(ctx context.Context, orgID string, usernames []string, opts proxy.Options) ([]proxy.User, error)
	UserExists(ctx context.Context, orgID, username string) (exists bool, orgAdmin bool, err error)
}

// ServiceAccountClient fetches service accounts from the platform SSO API.
type ServiceAccountClient interface {
	LookupServiceAccounts(ctx context.Context, orgID string, clientIDs []string) ([]proxy.ServiceAccount, error)
}

// Service orchestrates group mutations. Every mutation runs in a single
// transaction covering the entity change, any default-group fork, and the
// audit record; notifications fire after commit.
type Service struct {
	store     *Store
	guard     Guard
	resolver  *Resolver
	directory DirectoryClient
	accounts  ServiceAccountClient
	audit     audit.Logger
	notifier  notifications.Notifier
	logger    *logrus.Logger

	publicTenant *Tenant
}

// NewService wires a service.
func NewService(store *Store, resolver *Resolver, directory DirectoryClient, accounts ServiceAccountClient, auditLogger audit.Logger, notifier notifications.Notifier, logger *logrus.Logger) *Service {
	return &Service{
		store:     store,
		resolver:  resolver,
		directory: directory,
		accounts:  accounts,
		audit:     auditLogger,
		notifier:  notifier,
		logger:    logger,
	}
}

// PublicTenant returns the shared tenant, loading it on first use.
func (s *Service) PublicTenant(ctx context.Context) (*Tenant, error) {
	if s.publicTenant != nil {
		return s.publicTenant, nil
	}
	tenant, err := s.store.GetTenantByName(ctx, PublicTenantName)
	if err != nil {
		return nil, fmt.Errorf("failed to load public tenant: %w", err)
	}
	s.publicTenant = tenant
	return tenant, nil
}

// hookList accumulates post-commit callbacks during a transaction.
type hookList struct {
	hooks []func(context.Context)
}

func (h *hookList) add(fn func(context.Context)) {
	h.hooks = append(h.hooks, fn)
}

// inTransaction runs fn in a transaction. Hooks registered by fn run only
// after a successful commit; hook failures are logged and swallowed.
func (s *Service) inTransaction(ctx context.Context, fn func(ctx context.Context, tx *Store, post *hookList) error) error {
	dbtx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	post := &hookList{}
	if err := fn(ctx, s.store.WithTx(dbtx), post); err != nil {
		dbtx.Rollback()
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, hook := range post.hooks {
		hook(ctx)
	}
	return nil
}

func (s *Service) notify(eventType notifications.EventType, tenant *Tenant, payload notifications.Payload) func(context.Context) {
	return func(ctx context.Context) {
		envelope := notifications.NewEnvelope(eventType, tenant.AccountID, tenant.OrgID, payload)
		if err := s.notifier.Notify(ctx, envelope); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"event_type": eventType,
				"org_id":     tenant.OrgID,
			}).Error("failed to deliver notification")
		}
	}
}

func groupPayload(group *Group, requester string) notifications.Payload {
	return notifications.Payload{
		Name:     group.Name,
		Username: requester,
		UUID:     group.UUID.String(),
	}
}

// visibleTenantIDs returns the tenant scope for group and role lookups.
func (s *Service) visibleTenantIDs(ctx context.Context, tenant *Tenant) ([]int64, error) {
	public, err := s.PublicTenant(ctx)
	if err != nil {
		return nil, err
	}
	return []int64{tenant.ID, public.ID}, nil
}

// --- Group lifecycle ---

// CreateGroup creates a tenant-owned group.
func (s *Service) CreateGroup(ctx context.Context, tenant *Tenant, requester, name, description string) (*Group, error) {
	if IsReservedGroupName(name) {
		return nil, NewInvalidParameter("%s is reserved, please use another name", name)
	}

	group := &Group{
		Name:        name,
		Description: description,
		TenantID:    tenant.ID,
	}
	err := s.inTransaction(ctx, func(ctx context.Context, tx *Store, post *hookList) error {
		if err := tx.CreateGroup(ctx, group); err != nil {
			return err
		}
		if err := s.audit.Log(ctx, tx.q, &audit.Record{
			Requester:   requester,
			Description: fmt.Sprintf("Created group %s", group.Name),
			Resource:    audit.ResourceGroup,
			Action:      audit.ActionCreate,
			TenantID:    tenant.ID,
		}); err != nil {
			return err
		}
		post.add(s.notify(notifications.EventGroupCreated, tenant, groupPayload(group, requester)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.resolver.Invalidate()
	return group, nil
}

// GetGroup fetches a group visible to the tenant.
func (s *Service) GetGroup(ctx context.Context, tenant *Tenant, id uuid.UUID) (*Group, error) {
	tenantIDs, err := s.visibleTenantIDs(ctx, tenant)
	if err != nil {
		return nil, err
	}
	return s.store.GetGroupByUUID(ctx, id, tenantIDs...)
}

// ListGroups lists the groups visible to a tenant. A username filter
// resolves membership first (including implicit default membership) and
// then applies the remaining filters to that set.
func (s *Service) ListGroups(ctx context.Context, tenant *Tenant, filter *GroupFilter) ([]*Group, int, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}
	public, err := s.PublicTenant(ctx)
	if err != nil {
		return nil, 0, err
	}

	if filter.Username != "" {
		memberOf, err := s.resolver.GroupsForUsername(ctx, tenant, public, filter.Username)
		if err != nil {
			return nil, 0, err
		}
		if len(memberOf) == 0 {
			return nil, 0, nil
		}
		scoped := *filter
		scoped.UUIDs = make([]uuid.UUID, len(memberOf))
		for i, g := range memberOf {
			scoped.UUIDs[i] = g.UUID
		}
		return s.store.ListGroups(ctx, tenant.ID, public.ID, &scoped)
	}

	return s.store.ListGroups(ctx, tenant.ID, public.ID, filter)
}

// UpdateGroup renames a group or changes its description.
func (s *Service) UpdateGroup(ctx context.Context, tenant *Tenant, requester string, id uuid.UUID, name, description string) (*Group, error) {
	if IsReservedGroupName(name) {
		return nil, NewInvalidParameter("%s is reserved, please use another name", name)
	}

	var group *Group
	err := s.inTransaction(ctx, func(ctx context.Context, tx *Store, post *hookList) error {
		tenantIDs, err := s.visibleTenantIDs(ctx, tenant)
		if err != nil {
			return err
		}
		group, err = tx.GetGroupByUUID(ctx, id, tenantIDs...)
		if err != nil {
			return err
		}
		if err := s.guard.CanModifyMeta(group); err != nil {
			return err
		}

		group.Name = name
		group.Description = description
		if err := tx.UpdateGroup(ctx, group); err != nil {
			return err
		}
		if err := s.audit.Log(ctx, tx.q, &audit.Record{
			Requester:   requester,
			Description: fmt.Sprintf("Edited group %s", group.Name),
			Resource:    audit.ResourceGroup,
			Action:      audit.ActionEdit,
			TenantID:    tenant.ID,
		}); err != nil {
			return err
		}
		post.add(s.notify(notifications.EventGroupUpdated, tenant, groupPayload(group, requester)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.resolver.Invalidate()
	return group, nil
}

// DeleteGroup deletes a group. Deleting a tenant's custom default fork
// reverts default-group visibility to the shared public group; nothing is
// stored to make that happen, resolution is computed per query.
func (s *Service) DeleteGroup(ctx context.Context, tenant *Tenant, requester string, id uuid.UUID) error {
	err := s.inTransaction(ctx, func(ctx context.Context, tx *Store, post *hookList) error {
		tenantIDs, err := s.visibleTenantIDs(ctx, tenant)
		if err != nil {
			return err
		}
		group, err := tx.GetGroupByUUID(ctx, id, tenantIDs...)
		if err != nil {
			return err
		}
		if err := s.guard.CanDelete(group); err != nil {
			return err
		}
		if err := tx.DeleteGroup(ctx, group.ID); err != nil {
			return err
		}
		if err := s.audit.Log(ctx, tx.q, &audit.Record{
			Requester:   requester,
			Description: fmt.Sprintf("Deleted group %s", group.Name),
			Resource:    audit.ResourceGroup,
			Action:      audit.ActionDelete,
			TenantID:    tenant.ID,
		}); err != nil {
			return err
		}
		post.add(s.notify(notifications.EventGroupDeleted, tenant, groupPayload(group, requester)))
		return nil
	})
	if err != nil {
		return err
	}
	s.resolver.Invalidate()
	return nil
}

// --- Roles ---

// ParseRoleUUIDs parses role identifiers, rejecting the whole batch when any
// is malformed.
func ParseRoleUUIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(strings.TrimSpace(r))
		if err != nil {
			return nil, NewInvalidParameter("Role id %s is invalid", r)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// resolveRoleTarget loads the group and applies the role-mutation guard,
// forking the shared default into the tenant when required. The returned
// group is the one the mutation applies to.
func (s *Service) resolveRoleTarget(ctx context.Context, tx *Store, tenant *Tenant, requester string, id uuid.UUID, post *hookList) (*Group, error) {
	tenantIDs, err := s.visibleTenantIDs(ctx, tenant)
	if err != nil {
		return nil, err
	}
	group, err := tx.GetGroupByUUID(ctx, id, tenantIDs...)
	if err != nil {
		return nil, err
	}
	fork, err := s.guard.CanModifyRoles(group)
	if err != nil {
		return nil, err
	}
	if !fork {
		return group, nil
	}

	custom, err := ForkDefaultGroup(ctx, tx, tenant, group)
	if err != nil {
		return nil, err
	}
	post.add(s.notify(notifications.EventPlatformDefaultTurnedCustom, tenant, groupPayload(custom, requester)))
	return custom, nil
}

// AttachRoles adds roles to a group through its system policy. All role IDs
// must be well-formed; IDs that match no visible role are skipped. The
// returned group is the mutation target, which differs from the addressed
// group when a default fork occurred.
func (s *Service) AttachRoles(ctx context.Context, tenant *Tenant, requester string, id uuid.UUID, roleUUIDs []uuid.UUID) (*Group, error) {
	var target *Group
	err := s.inTransaction(ctx, func(ctx context.Context, tx *Store, post *hookList) error {
		var err error
		target, err = s.resolveRoleTarget(ctx, tx, tenant, requester, id, post)
		if err != nil {
			return err
		}

		tenantIDs, err := s.visibleTenantIDs(ctx, tenant)
		if err != nil {
			return err
		}
		roles, err := tx.GetRolesByUUIDs(ctx, tenantIDs, roleUUIDs)
		if err != nil {
			return err
		}

		policy, err := tx.GetOrCreateSystemPolicy(ctx, target)
		if err != nil {
			return err
		}
		roleIDs := make([]int64, len(roles))
		for i, r := range roles {
			roleIDs[i] = r.ID
		}
		if err := tx.AttachRoles(ctx, policy.ID, roleIDs); err != nil {
			return err
		}
		if err := tx.TouchGroup(ctx, target.ID); err != nil {
			return err
		}

		if err := s.audit.Log(ctx, tx.q, &audit.Record{
			Requester:   requester,
			Description: fmt.Sprintf("Added roles to group %s: %s", target.Name, roleNames(roles)),
			Resource:    audit.ResourceGroup,
			Action:      audit.ActionAdd,
			TenantID:    tenant.ID,
		}); err != nil {
			return err
		}

		event := notifications.EventGroupUpdated
		if target.PlatformDefault {
			event = notifications.EventCustomDefaultAccessUpdated
		}
		for _, role := range roles {
			payload := groupPayload(target, requester)
			payload.Operation = notifications.OperationAdded
			payload.Role = &notifications.RoleRef{UUID: role.UUID.String(), Name: role.Name}
			post.add(s.notify(event, tenant, payload))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.resolver.Invalidate()
	return target, nil
}

// DetachRoles removes roles from a group. The same fork rules apply as for
// attachment.
func (s *Service) DetachRoles(ctx context.Context, tenant *Tenant, requester string, id uuid.UUID, roleUUIDs []uuid.UUID) error {
	err := s.inTransaction(ctx, func(ctx context.Context, tx *Store, post *hookList) error {
		target, err := s.resolveRoleTarget(ctx, tx, tenant, requester, id, post)
		if err != nil {
			return err
		}

		tenantIDs, err := s.visibleTenantIDs(ctx, tenant)
		if err != nil {
			return err
		}
		roles, err := tx.GetRolesByUUIDs(ctx, tenantIDs, roleUUIDs)
		if err != nil {
			return err
		}
		roleIDs := make([]int64, len(roles))
		for i, r := range roles {
			roleIDs[i] = r.ID
		}
		if err := tx.DetachRoles(ctx, target.ID, roleIDs); err != nil {
			return err
		}
		if err := tx.TouchGroup(ctx, target.ID); err != nil {
			return err
		}

		if err := s.audit.Log(ctx, tx.q, &audit.Record{
			Requester:   requester,
			Description: fmt.Sprintf("Removed roles from group %s: %s", target.Name, roleNames(roles)),
			Resource:    audit.ResourceGroup,
			Action:      audit.ActionRemove,
			TenantID:    tenant.ID,
		}); err != nil {
			return err
		}

		event := notifications.EventGroupUpdated
		if target.PlatformDefault {
			event = notifications.EventCustomDefaultAccessUpdated
		}
		for _, role := range roles {
			payload := groupPayload(target, requester)
			payload.Operation = notifications.OperationRemoved
			payload.Role = &notifications.RoleRef{UUID: role.UUID.String(), Name: role.Name}
			post.add(s.notify(event, tenant, payload))
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.resolver.Invalidate()
	return nil
}

// ListGroupRoles lists a group's attached roles, or the complement with
// filter.Exclude set.
func (s *Service) ListGroupRoles(ctx context.Context, tenant *Tenant, id uuid.UUID, filter *RoleFilter) ([]*Role, int, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}
	tenantIDs, err := s.visibleTenantIDs(ctx, tenant)
	if err != nil {
		return nil, 0, err
	}
	group, err := s.store.GetGroupByUUID(ctx, id, tenantIDs...)
	if err != nil {
		return nil, 0, err
	}
	return s.store.ListGroupRoles(ctx, tenantIDs, group.ID, filter)
}

func roleNames(roles []*Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// --- Principals ---

// AddPrincipals attaches user and service account principals to a group.
// Users are validated against the directory; the mutation applies only to
// the confirmed ones, and confirming none is an error.
func (s *Service) AddPrincipals(ctx context.Context, tenant *Tenant, requester string, id uuid.UUID, usernames, clientIDs []string) (*Group, error) {
	for _, clientID := range clientIDs {
		if _, err := uuid.Parse(clientID); err != nil {
			return nil, NewInvalidParameter("The specified client ID '%s' is not a valid UUID", clientID)
		}
	}

	var confirmed []proxy.User
	if len(usernames) > 0 {
		users, err := s.directory.Lookup(ctx, tenant.OrgID, usernames, proxy.Options{})
		if err != nil {
			return nil, upstreamError(err)
		}
		confirmed = users
		if len(confirmed) == 0 {
			return nil, NewNotFound("User(s) %s not found", strings.Join(usernames, ", "))
		}
	}

	var group *Group
	err := s.inTransaction(ctx, func(ctx context.Context, tx *Store, post *hookList) error {
		tenantIDs, err := s.visibleTenantIDs(ctx, tenant)
		if err != nil {
			return err
		}
		group, err = tx.GetGroupByUUID(ctx, id, tenantIDs...)
		if err != nil {
			return err
		}
		if err := s.guard.CanModifyPrincipals(group); err != nil {
			return err
		}

		var principalIDs []int64
		var added []string
		for _, user := range confirmed {
			principal, err := s.getOrCreatePrincipal(ctx, tx, tenant.ID, &Principal{
				Username: user.Username,
				TenantID: tenant.ID,
				Type:     PrincipalUser,
			})
			if err != nil {
				return err
			}
			principalIDs = append(principalIDs, principal.ID)
			added = append(added, principal.Username)
		}
		for _, clientID := range clientIDs {
			principal, err := s.getOrCreatePrincipal(ctx, tx, tenant.ID, &Principal{
				Username:         "service-account-" + clientID,
				TenantID:         tenant.ID,
				Type:             PrincipalServiceAccount,
				ServiceAccountID: clientID,
			})
			if err != nil {
				return err
			}
			principalIDs = append(principalIDs, principal.ID)
			added = append(added, principal.Username)
		}

		if err := tx.AddGroupPrincipals(ctx, group.ID, principalIDs); err != nil {
			return err
		}
		if err := tx.TouchGroup(ctx, group.ID); err != nil {
			return err
		}

		if err := s.audit.Log(ctx, tx.q, &audit.Record{
			Requester:   requester,
			Description: fmt.Sprintf("Added principals to group %s: %s", group.Name, strings.Join(added, ", ")),
			Resource:    audit.ResourceGroup,
			Action:      audit.ActionAdd,
			TenantID:    tenant.ID,
		}); err != nil {
			return err
		}

		for _, username := range added {
			payload := groupPayload(group, requester)
			payload.Operation = notifications.OperationAdded
			payload.Principal = username
			post.add(s.notify(notifications.EventGroupUpdated, tenant, payload))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.resolver.Invalidate()
	return group, nil
}

func (s *Service) getOrCreatePrincipal(ctx context.Context, tx *Store, tenantID int64, principal *Principal) (*Principal, error) {
	existing, err := tx.GetPrincipalByUsername(ctx, tenantID, principal.Username)
	if err == nil {
		return existing, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	if err := tx.CreatePrincipal(ctx, principal); err != nil {
		return nil, err
	}
	return principal, nil
}

// RemovePrincipals detaches principals from a group by username or service
// account client ID. Requesting a principal that is not in the group is an
// error naming both sides.
func (s *Service) RemovePrincipals(ctx context.Context, tenant *Tenant, requester string, id uuid.UUID, usernames, clientIDs []string) error {
	if len(usernames) == 0 && len(clientIDs) == 0 {
		return NewInvalidParameter("Query parameter 'usernames' or 'service-accounts' is required.")
	}

	targets := append([]string{}, usernames...)
	for _, clientID := range clientIDs {
		targets = append(targets, "service-account-"+clientID)
	}

	err := s.inTransaction(ctx, func(ctx context.Context, tx *Store, post *hookList) error {
		tenantIDs, err := s.visibleTenantIDs(ctx, tenant)
		if err != nil {
			return err
		}
		group, err := tx.GetGroupByUUID(ctx, id, tenantIDs...)
		if err != nil {
			return err
		}
		if err := s.guard.CanModifyPrincipals(group); err != nil {
			return err
		}

		removed, err := tx.RemoveGroupPrincipals(ctx, group.ID, targets)
		if err != nil {
			return err
		}
		if len(removed) < len(targets) {
			return NewNotFound("User(s) {'%s'} not found in the group '%s'.",
				strings.Join(missingUsernames(targets, removed), "', '"), group.Name)
		}
		if err := tx.TouchGroup(ctx, group.ID); err != nil {
			return err
		}

		names := make([]string, len(removed))
		for i, p := range removed {
			names[i] = p.Username
		}
		if err := s.audit.Log(ctx, tx.q, &audit.Record{
			Requester:   requester,
			Description: fmt.Sprintf("Removed principals from group %s: %s", group.Name, strings.Join(names, ", ")),
			Resource:    audit.ResourceGroup,
			Action:      audit.ActionRemove,
			TenantID:    tenant.ID,
		}); err != nil {
			return err
		}

		for _, p := range removed {
			payload := groupPayload(group, requester)
			payload.Operation = notifications.OperationRemoved
			payload.Principal = p.Username
			post.add(s.notify(notifications.EventGroupUpdated, tenant, payload))
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.resolver.Invalidate()
	return nil
}

func missingUsernames(requested []string, removed []*Principal) []string {
	got := make(map[string]bool, len(removed))
	for _, p := range removed {
		got[p.Username] = true
	}
	var missing []string
	for _, r := range requested {
		if !got[strings.ToLower(r)] {
			missing = append(missing, strings.ToLower(r))
		}
	}
	return missing
}

// PrincipalsPage is the result of a group membership listing.
type PrincipalsPage struct {
	Users           []proxy.User
	ServiceAccounts []proxy.ServiceAccount
	Total           int
}

// ListGroupPrincipals lists a group's members. User principals are enriched
// through the directory, preserving the directory's ordering; service
// accounts are enriched through the SSO API and paginated client-side.
func (s *Service) ListGroupPrincipals(ctx context.Context, tenant *Tenant, id uuid.UUID, filter *PrincipalFilter) (*PrincipalsPage, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	tenantIDs, err := s.visibleTenantIDs(ctx, tenant)
	if err != nil {
		return nil, err
	}
	group, err := s.store.GetGroupByUUID(ctx, id, tenantIDs...)
	if err != nil {
		return nil, err
	}

	if filter.Type == PrincipalServiceAccount {
		return s.listServiceAccounts(ctx, tenant, group, filter)
	}
	return s.listUsers(ctx, tenant, group, filter)
}

func (s *Service) listUsers(ctx context.Context, tenant *Tenant, group *Group, filter *PrincipalFilter) (*PrincipalsPage, error) {
	local := *filter
	local.Type = PrincipalUser
	principals, err := s.store.ListGroupPrincipals(ctx, group.ID, &local)
	if err != nil {
		return nil, err
	}
	if len(principals) == 0 {
		return &PrincipalsPage{}, nil
	}

	usernames := make([]string, len(principals))
	for i, p := range principals {
		usernames[i] = p.Username
	}
	limit, offset := NormalizePagination(filter.Limit, filter.Offset)
	users, err := s.directory.Lookup(ctx, tenant.OrgID, usernames, proxy.Options{
		SortOrder:    filter.SortOrder(),
		UsernameOnly: filter.UsernameOnly,
		AdminOnly:    filter.AdminOnly,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return nil, upstreamError(err)
	}
	return &PrincipalsPage{Users: users, Total: len(principals)}, nil
}

func (s *Service) listServiceAccounts(ctx context.Context, tenant *Tenant, group *Group, filter *PrincipalFilter) (*PrincipalsPage, error) {
	if s.accounts == nil {
		return nil, NewUpstream(http.StatusServiceUnavailable, "IT service", "Service account gateway is not configured", nil)
	}
	local := *filter
	principals, err := s.store.ListGroupPrincipals(ctx, group.ID, &local)
	if err != nil {
		return nil, err
	}
	if len(principals) == 0 {
		return &PrincipalsPage{}, nil
	}

	clientIDs := make([]string, len(principals))
	for i, p := range principals {
		clientIDs[i] = p.ServiceAccountID
	}
	accounts, err := s.accounts.LookupServiceAccounts(ctx, tenant.OrgID, clientIDs)
	if err != nil {
		return nil, upstreamError(err)
	}

	limit, offset := NormalizePagination(filter.Limit, filter.Offset)
	start, end := Window(len(accounts), limit, offset)
	return &PrincipalsPage{ServiceAccounts: accounts[start:end], Total: len(accounts)}, nil
}

// CheckServiceAccountPresence answers, per client ID, whether a matching
// service account is in the group. The client ID filter must be used alone
// and every ID must be a well-formed UUID.
func (s *Service) CheckServiceAccountPresence(ctx context.Context, tenant *Tenant, id uuid.UUID, rawClientIDs string, otherParams bool) ([]ServiceAccountPresence, error) {
	if otherParams {
		return nil, NewInvalidParameter("The 'service_account_client_ids' parameter is incompatible with any other query parameter. Please, use it alone")
	}

	var clientIDs []string
	for _, c := range strings.Split(rawClientIDs, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			clientIDs = append(clientIDs, c)
		}
	}
	if len(clientIDs) == 0 {
		return nil, NewInvalidParameter("Not a single client ID was specified for the client IDs filter")
	}
	for _, c := range clientIDs {
		if _, err := uuid.Parse(c); err != nil {
			return nil, NewInvalidParameter("The specified client ID '%s' is not a valid UUID", c)
		}
	}

	tenantIDs, err := s.visibleTenantIDs(ctx, tenant)
	if err != nil {
		return nil, err
	}
	group, err := s.store.GetGroupByUUID(ctx, id, tenantIDs...)
	if err != nil {
		return nil, err
	}
	present, err := s.store.ServiceAccountsInGroup(ctx, group.ID, clientIDs)
	if err != nil {
		return nil, err
	}

	results := make([]ServiceAccountPresence, len(clientIDs))
	for i, c := range clientIDs {
		results[i] = ServiceAccountPresence{ClientID: c, InGroup: present[c]}
	}
	return results, nil
}

// GroupsForUsername exposes the resolver through the service.
func (s *Service) GroupsForUsername(ctx context.Context, tenant *Tenant, username string) ([]*Group, error) {
	public, err := s.PublicTenant(ctx)
	if err != nil {
		return nil, err
	}
	return s.resolver.GroupsForUsername(ctx, tenant, public, username)
}

// upstreamError converts a gateway StatusError into a domain error that
// preserves the upstream status and detail.
func upstreamError(err error) error {
	var se *proxy.StatusError
	if errors.As(err, &se) {
		detail := "Unexpected error."
		source := "principal directory"
		if len(se.Errors) > 0 {
			detail = se.Errors[0].Detail
			source = se.Errors[0].Source
		}
		return NewUpstream(se.StatusCode, source, detail, err)
	}
	return err
}
