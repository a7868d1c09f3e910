package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// querier is satisfied by both *sql.DB and *sql.Tx so store methods can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store handles RBAC data persistence
type Store struct {
	db *sql.DB
	q  querier
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// WithTx returns a store whose operations run inside tx.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: s.db, q: tx}
}

// DB exposes the underlying handle for transaction management.
func (s *Store) DB() *sql.DB { return s.db }

// translateError maps Postgres constraint violations to domain errors.
func translateError(err error, what string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return NewConflict("%s already exists", what)
	}
	return err
}

// --- Tenants ---

// CreateTenant inserts a tenant.
func (s *Store) CreateTenant(ctx context.Context, tenant *Tenant) error {
	query := `
		INSERT INTO tenants (name, org_id, account_id, ready, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	now := time.Now()
	err := s.q.QueryRowContext(ctx, query,
		tenant.Name, tenant.OrgID, tenant.AccountID, tenant.Ready, now,
	).Scan(&tenant.ID)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", translateError(err, "tenant "+tenant.Name))
	}
	tenant.CreatedAt = now
	return nil
}

// GetTenantByName retrieves a tenant by its unique name.
func (s *Store) GetTenantByName(ctx context.Context, name string) (*Tenant, error) {
	return s.getTenant(ctx, "name = $1", name)
}

// GetTenantByOrgID retrieves a tenant by org ID.
func (s *Store) GetTenantByOrgID(ctx context.Context, orgID string) (*Tenant, error) {
	return s.getTenant(ctx, "org_id = $1", orgID)
}

func (s *Store) getTenant(ctx context.Context, where string, arg any) (*Tenant, error) {
	query := `
		SELECT id, name, org_id, account_id, ready, created_at
		FROM tenants
		WHERE ` + where
	var t Tenant
	err := s.q.QueryRowContext(ctx, query, arg).Scan(
		&t.ID, &t.Name, &t.OrgID, &t.AccountID, &t.Ready, &t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, NewNotFound("tenant not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

// MarkTenantReady flips the ready flag after seeding completes.
func (s *Store) MarkTenantReady(ctx context.Context, tenantID int64) error {
	if _, err := s.q.ExecContext(ctx, "UPDATE tenants SET ready = TRUE WHERE id = $1", tenantID); err != nil {
		return fmt.Errorf("failed to mark tenant ready: %w", err)
	}
	return nil
}

// --- Principals ---

// CreatePrincipal inserts a principal. Usernames are stored lowercase.
func (s *Store) CreatePrincipal(ctx context.Context, principal *Principal) error {
	if principal.UUID == uuid.Nil {
		principal.UUID = uuid.New()
	}
	principal.Username = strings.ToLower(principal.Username)
	query := `
		INSERT INTO principals (uuid, username, tenant_id, type, cross_account, service_account_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.q.QueryRowContext(ctx, query,
		principal.UUID, principal.Username, principal.TenantID,
		principal.Type, principal.CrossAccount, principal.ServiceAccountID,
	).Scan(&principal.ID)
	if err != nil {
		return fmt.Errorf("failed to create principal: %w", translateError(err, "principal "+principal.Username))
	}
	return nil
}

// GetPrincipalByUsername retrieves a tenant's principal, matching the
// username case-insensitively.
func (s *Store) GetPrincipalByUsername(ctx context.Context, tenantID int64, username string) (*Principal, error) {
	query := `
		SELECT id, uuid, username, tenant_id, type, cross_account, service_account_id
		FROM principals
		WHERE tenant_id = $1 AND username = LOWER($2)
	`
	var p Principal
	err := s.q.QueryRowContext(ctx, query, tenantID, username).Scan(
		&p.ID, &p.UUID, &p.Username, &p.TenantID, &p.Type, &p.CrossAccount, &p.ServiceAccountID,
	)
	if err == sql.ErrNoRows {
		return nil, NewNotFound("principal %s not found", strings.ToLower(username))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get principal: %w", err)
	}
	return &p, nil
}

// AddGroupPrincipals attaches principals to a group, ignoring ones already
// attached.
func (s *Store) AddGroupPrincipals(ctx context.Context, groupID int64, principalIDs []int64) error {
	query := `
		INSERT INTO group_principals (group_id, principal_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING
	`
	if _, err := s.q.ExecContext(ctx, query, groupID, pq.Array(principalIDs)); err != nil {
		return fmt.Errorf("failed to add group principals: %w", err)
	}
	return nil
}

// RemoveGroupPrincipals detaches principals from a group by username and
// returns the removed principals. Usernames not in the group are reported by
// the caller.
func (s *Store) RemoveGroupPrincipals(ctx context.Context, groupID int64, usernames []string) ([]*Principal, error) {
	lowered := make([]string, len(usernames))
	for i, u := range usernames {
		lowered[i] = strings.ToLower(u)
	}
	query := `
		DELETE FROM group_principals gp
		USING principals p
		WHERE gp.group_id = $1 AND p.id = gp.principal_id AND p.username = ANY($2)
		RETURNING p.id, p.uuid, p.username, p.tenant_id, p.type, p.cross_account, p.service_account_id
	`
	rows, err := s.q.QueryContext(ctx, query, groupID, pq.Array(lowered))
	if err != nil {
		return nil, fmt.Errorf("failed to remove group principals: %w", err)
	}
	defer rows.Close()

	var removed []*Principal
	for rows.Next() {
		var p Principal
		if err := rows.Scan(&p.ID, &p.UUID, &p.Username, &p.TenantID, &p.Type, &p.CrossAccount, &p.ServiceAccountID); err != nil {
			return nil, fmt.Errorf("failed to scan removed principal: %w", err)
		}
		removed = append(removed, &p)
	}
	return removed, rows.Err()
}

// ListGroupPrincipals returns a group's members matching the filter, ordered
// by username.
func (s *Store) ListGroupPrincipals(ctx context.Context, groupID int64, filter *PrincipalFilter) ([]*Principal, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT p.id, p.uuid, p.username, p.tenant_id, p.type, p.cross_account, p.service_account_id
		FROM principals p
		JOIN group_principals gp ON gp.principal_id = p.id
		WHERE gp.group_id = $1
	`)
	args := []any{groupID}

	if filter.Type != "" {
		args = append(args, string(filter.Type))
		fmt.Fprintf(&sb, " AND p.type = $%d", len(args))
	}
	if filter.UsernameContains != "" {
		args = append(args, "%"+strings.ToLower(filter.UsernameContains)+"%")
		fmt.Fprintf(&sb, " AND p.username LIKE $%d", len(args))
	}
	sb.WriteString(" ORDER BY p.username")
	if filter.OrderBy == "-username" {
		sb.WriteString(" DESC")
	}

	rows, err := s.q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list group principals: %w", err)
	}
	defer rows.Close()

	var principals []*Principal
	for rows.Next() {
		var p Principal
		if err := rows.Scan(&p.ID, &p.UUID, &p.Username, &p.TenantID, &p.Type, &p.CrossAccount, &p.ServiceAccountID); err != nil {
			return nil, fmt.Errorf("failed to scan principal: %w", err)
		}
		principals = append(principals, &p)
	}
	return principals, rows.Err()
}

// ServiceAccountsInGroup returns the subset of clientIDs that belong to a
// service account principal attached to the group.
func (s *Store) ServiceAccountsInGroup(ctx context.Context, groupID int64, clientIDs []string) (map[string]bool, error) {
	query := `
		SELECT p.service_account_id
		FROM principals p
		JOIN group_principals gp ON gp.principal_id = p.id
		WHERE gp.group_id = $1 AND p.type = 'service-account' AND p.service_account_id = ANY($2)
	`
	rows, err := s.q.QueryContext(ctx, query, groupID, pq.Array(clientIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query service accounts: %w", err)
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan service account id: %w", err)
		}
		present[id] = true
	}
	return present, rows.Err()
}

// --- Groups ---

const groupColumns = `g.id, g.uuid, g.name, g.description, g.tenant_id, g.system, g.platform_default, g.admin_default, g.created_at, g.updated_at`

func scanGroup(scanner interface{ Scan(...any) error }, extra ...any) (*Group, error) {
	var g Group
	dest := []any{
		&g.ID, &g.UUID, &g.Name, &g.Description, &g.TenantID,
		&g.System, &g.PlatformDefault, &g.AdminDefault, &g.CreatedAt, &g.UpdatedAt,
	}
	dest = append(dest, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGroup inserts a group.
func (s *Store) CreateGroup(ctx context.Context, group *Group) error {
	if group.UUID == uuid.Nil {
		group.UUID = uuid.New()
	}
	query := `
		INSERT INTO groups (uuid, name, description, tenant_id, system, platform_default, admin_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	now := time.Now()
	err := s.q.QueryRowContext(ctx, query,
		group.UUID, group.Name, group.Description, group.TenantID,
		group.System, group.PlatformDefault, group.AdminDefault, now, now,
	).Scan(&group.ID)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", translateError(err, "group "+group.Name))
	}
	group.CreatedAt = now
	group.UpdatedAt = now
	return nil
}

// GetGroupByUUID retrieves a group by UUID, scoped to the given tenants.
// Callers pass the requesting tenant plus the public tenant so shared
// default groups stay addressable.
func (s *Store) GetGroupByUUID(ctx context.Context, id uuid.UUID, tenantIDs ...int64) (*Group, error) {
	query := `
		SELECT ` + groupColumns + `,
			(SELECT COUNT(*) FROM group_principals gp JOIN principals p ON p.id = gp.principal_id WHERE gp.group_id = g.id AND p.type = 'user') AS principal_count,
			(SELECT COUNT(DISTINCT pr.role_id) FROM policies po JOIN policy_roles pr ON pr.policy_id = po.id WHERE po.group_id = g.id) AS role_count,
			(SELECT COUNT(*) FROM policies po WHERE po.group_id = g.id) AS policy_count
		FROM groups g
		WHERE g.uuid = $1 AND g.tenant_id = ANY($2)
	`
	row := s.q.QueryRowContext(ctx, query, id, pq.Array(tenantIDs))
	var g Group
	err := row.Scan(
		&g.ID, &g.UUID, &g.Name, &g.Description, &g.TenantID,
		&g.System, &g.PlatformDefault, &g.AdminDefault, &g.CreatedAt, &g.UpdatedAt,
		&g.PrincipalCount, &g.RoleCount, &g.PolicyCount,
	)
	if err == sql.ErrNoRows {
		return nil, NewNotFound("group with uuid %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &g, nil
}

// visibleGroupsClause selects a tenant's own groups plus the public default
// groups it has not shadowed with a custom fork. arg positions: $1 tenant,
// $2 public tenant.
const visibleGroupsClause = `(
		g.tenant_id = $1
		OR (g.tenant_id = $2 AND g.platform_default AND NOT EXISTS (
			SELECT 1 FROM groups c WHERE c.tenant_id = $1 AND c.platform_default))
		OR (g.tenant_id = $2 AND g.admin_default AND NOT EXISTS (
			SELECT 1 FROM groups c WHERE c.tenant_id = $1 AND c.admin_default))
	)`

// ListGroups returns the groups visible to a tenant, filtered, ordered, and
// paginated, along with the total count before pagination.
func (s *Store) ListGroups(ctx context.Context, tenantID, publicTenantID int64, filter *GroupFilter) ([]*Group, int, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT ` + groupColumns + `,
			(SELECT COUNT(*) FROM group_principals gp JOIN principals p ON p.id = gp.principal_id WHERE gp.group_id = g.id AND p.type = 'user') AS principal_count,
			(SELECT COUNT(DISTINCT pr.role_id) FROM policies po JOIN policy_roles pr ON pr.policy_id = po.id WHERE po.group_id = g.id) AS role_count,
			(SELECT COUNT(*) FROM policies po WHERE po.group_id = g.id) AS policy_count,
			COUNT(*) OVER() AS total
		FROM groups g
		WHERE `)
	sb.WriteString(visibleGroupsClause)
	args := []any{tenantID, publicTenantID}

	if filter.Name != "" {
		if filter.NameMatch == MatchExact {
			args = append(args, strings.ToLower(filter.Name))
			fmt.Fprintf(&sb, " AND LOWER(g.name) = $%d", len(args))
		} else {
			args = append(args, "%"+strings.ToLower(filter.Name)+"%")
			fmt.Fprintf(&sb, " AND LOWER(g.name) LIKE $%d", len(args))
		}
	}
	if len(filter.UUIDs) > 0 {
		ids := make([]string, len(filter.UUIDs))
		for i, id := range filter.UUIDs {
			ids[i] = id.String()
		}
		args = append(args, pq.Array(ids))
		fmt.Fprintf(&sb, " AND g.uuid = ANY($%d::uuid[])", len(args))
	}
	if filter.System != nil {
		args = append(args, *filter.System)
		fmt.Fprintf(&sb, " AND g.system = $%d", len(args))
	}
	if filter.PlatformDefault != nil {
		args = append(args, *filter.PlatformDefault)
		fmt.Fprintf(&sb, " AND g.platform_default = $%d", len(args))
	}
	if filter.AdminDefault != nil {
		args = append(args, *filter.AdminDefault)
		fmt.Fprintf(&sb, " AND g.admin_default = $%d", len(args))
	}
	if len(filter.RoleNames) > 0 {
		lowered := make([]string, len(filter.RoleNames))
		for i, n := range filter.RoleNames {
			lowered[i] = strings.ToLower(n)
		}
		args = append(args, pq.Array(lowered))
		if filter.RoleDiscriminator == DiscriminatorAll {
			n := len(args)
			args = append(args, len(lowered))
			fmt.Fprintf(&sb, ` AND (SELECT COUNT(DISTINCT LOWER(r.name)) FROM policies po
				JOIN policy_roles pr ON pr.policy_id = po.id
				JOIN roles r ON r.id = pr.role_id
				WHERE po.group_id = g.id AND LOWER(r.name) = ANY($%d)) = $%d`, n, len(args))
		} else {
			fmt.Fprintf(&sb, ` AND EXISTS (SELECT 1 FROM policies po
				JOIN policy_roles pr ON pr.policy_id = po.id
				JOIN roles r ON r.id = pr.role_id
				WHERE po.group_id = g.id AND LOWER(r.name) = ANY($%d))`, len(args))
		}
	}

	sb.WriteString(" ORDER BY " + filter.orderSQL())
	limit, offset := NormalizePagination(filter.Limit, filter.Offset)
	args = append(args, limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	args = append(args, offset)
	fmt.Fprintf(&sb, " OFFSET $%d", len(args))

	rows, err := s.q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*Group
	var total int
	for rows.Next() {
		var g Group
		if err := rows.Scan(
			&g.ID, &g.UUID, &g.Name, &g.Description, &g.TenantID,
			&g.System, &g.PlatformDefault, &g.AdminDefault, &g.CreatedAt, &g.UpdatedAt,
			&g.PrincipalCount, &g.RoleCount, &g.PolicyCount, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, &g)
	}
	return groups, total, rows.Err()
}

// UpdateGroup persists a group's name and description.
func (s *Store) UpdateGroup(ctx context.Context, group *Group) error {
	query := `
		UPDATE groups SET name = $1, description = $2, updated_at = $3
		WHERE id = $4
	`
	now := time.Now()
	if _, err := s.q.ExecContext(ctx, query, group.Name, group.Description, now, group.ID); err != nil {
		return fmt.Errorf("failed to update group: %w", translateError(err, "group "+group.Name))
	}
	group.UpdatedAt = now
	return nil
}

// TouchGroup bumps a group's modification time.
func (s *Store) TouchGroup(ctx context.Context, groupID int64) error {
	if _, err := s.q.ExecContext(ctx, "UPDATE groups SET updated_at = NOW() WHERE id = $1", groupID); err != nil {
		return fmt.Errorf("failed to touch group: %w", err)
	}
	return nil
}

// DeleteGroup removes a group; memberships and policies cascade.
func (s *Store) DeleteGroup(ctx context.Context, groupID int64) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM groups WHERE id = $1", groupID); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}

// GetDefaultGroup returns a tenant's default group of the given kind, or a
// not-found error.
func (s *Store) GetDefaultGroup(ctx context.Context, tenantID int64, admin bool) (*Group, error) {
	column := "platform_default"
	if admin {
		column = "admin_default"
	}
	query := `
		SELECT ` + groupColumns + `
		FROM groups g
		WHERE g.tenant_id = $1 AND g.` + column
	g, err := scanGroup(s.q.QueryRowContext(ctx, query, tenantID))
	if err == sql.ErrNoRows {
		return nil, NewNotFound("default group not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default group: %w", err)
	}
	return g, nil
}

// --- Roles ---

const roleColumns = `r.id, r.uuid, r.name, r.display_name, r.description, r.tenant_id, r.system, r.platform_default, r.admin_default, r.version, r.external_tenant, r.created_at, r.updated_at`

func scanRole(scanner interface{ Scan(...any) error }, extra ...any) (*Role, error) {
	var r Role
	var ext sql.NullString
	dest := []any{
		&r.ID, &r.UUID, &r.Name, &r.DisplayName, &r.Description, &r.TenantID,
		&r.System, &r.PlatformDefault, &r.AdminDefault, &r.Version, &ext,
		&r.CreatedAt, &r.UpdatedAt,
	}
	dest = append(dest, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}
	if ext.Valid {
		r.ExternalTenant = &ext.String
	}
	return &r, nil
}

// CreateRole inserts a role.
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	if role.UUID == uuid.Nil {
		role.UUID = uuid.New()
	}
	if role.Version == 0 {
		role.Version = 1
	}
	query := `
		INSERT INTO roles (uuid, name, display_name, description, tenant_id, system, platform_default, admin_default, version, external_tenant, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	now := time.Now()
	err := s.q.QueryRowContext(ctx, query,
		role.UUID, role.Name, role.DisplayName, role.Description, role.TenantID,
		role.System, role.PlatformDefault, role.AdminDefault, role.Version,
		role.ExternalTenant, now, now,
	).Scan(&role.ID)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", translateError(err, "role "+role.Name))
	}
	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// GetRoleByName returns a tenant's role by exact name.
func (s *Store) GetRoleByName(ctx context.Context, tenantID int64, name string) (*Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles r WHERE r.tenant_id = $1 AND r.name = $2`
	role, err := scanRole(s.q.QueryRowContext(ctx, query, tenantID, name))
	if err == sql.ErrNoRows {
		return nil, NewNotFound("role named %s not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// GetRolesByUUIDs resolves role UUIDs within the given tenants. UUIDs with
// no matching role are simply absent from the result.
func (s *Store) GetRolesByUUIDs(ctx context.Context, tenantIDs []int64, ids []uuid.UUID) ([]*Role, error) {
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	query := `
		SELECT ` + roleColumns + `
		FROM roles r
		WHERE r.uuid = ANY($1::uuid[]) AND r.tenant_id = ANY($2)
	`
	rows, err := s.q.QueryContext(ctx, query, pq.Array(strIDs), pq.Array(tenantIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// appendRoleFilters adds the shared role filter predicates to a query.
func appendRoleFilters(sb *strings.Builder, args []any, filter *RoleFilter) []any {
	if filter.Name != "" {
		args = append(args, "%"+strings.ToLower(filter.Name)+"%")
		fmt.Fprintf(sb, " AND LOWER(r.name) LIKE $%d", len(args))
	}
	if filter.DisplayName != "" {
		args = append(args, "%"+strings.ToLower(filter.DisplayName)+"%")
		fmt.Fprintf(sb, " AND LOWER(r.display_name) LIKE $%d", len(args))
	}
	if filter.Description != "" {
		args = append(args, "%"+strings.ToLower(filter.Description)+"%")
		fmt.Fprintf(sb, " AND LOWER(r.description) LIKE $%d", len(args))
	}
	if filter.System != nil {
		args = append(args, *filter.System)
		fmt.Fprintf(sb, " AND r.system = $%d", len(args))
	}
	if filter.ExternalTenant != "" {
		args = append(args, filter.ExternalTenant)
		fmt.Fprintf(sb, " AND r.external_tenant = $%d", len(args))
	}
	return args
}

// ListGroupRoles returns the roles attached to a group, or with Exclude set,
// the tenant-visible roles NOT attached to it. The total count before
// pagination is returned alongside.
func (s *Store) ListGroupRoles(ctx context.Context, tenantIDs []int64, groupID int64, filter *RoleFilter) ([]*Role, int, error) {
	var sb strings.Builder
	var args []any

	if filter.Exclude {
		sb.WriteString(`
			SELECT ` + roleColumns + `, COUNT(*) OVER() AS total
			FROM roles r
			WHERE r.tenant_id = ANY($1)
			AND NOT EXISTS (
				SELECT 1 FROM policy_roles pr
				JOIN policies po ON po.id = pr.policy_id
				WHERE pr.role_id = r.id AND po.group_id = $2)
		`)
		args = []any{pq.Array(tenantIDs), groupID}
		if filter.Scope == "principal" {
			sb.WriteString(`
			AND NOT EXISTS (
				SELECT 1 FROM policy_roles apr
				JOIN policies apo ON apo.id = apr.policy_id
				JOIN groups ag ON ag.id = apo.group_id
				WHERE apr.role_id = r.id AND ag.admin_default)
			`)
		}
	} else {
		// Dedupe in the subquery: a role attached through several policies
		// must appear (and count) once.
		sb.WriteString(`
			SELECT ` + roleColumns + `, COUNT(*) OVER() AS total
			FROM roles r
			WHERE r.id IN (
				SELECT pr.role_id FROM policy_roles pr
				JOIN policies po ON po.id = pr.policy_id
				WHERE po.group_id = $1)
		`)
		args = []any{groupID}
	}

	args = appendRoleFilters(&sb, args, filter)

	sb.WriteString(" ORDER BY " + filter.orderSQL())
	limit, offset := NormalizePagination(filter.Limit, filter.Offset)
	args = append(args, limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	args = append(args, offset)
	fmt.Fprintf(&sb, " OFFSET $%d", len(args))

	rows, err := s.q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list group roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	var total int
	for rows.Next() {
		r, err := scanRole(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, total, rows.Err()
}

// GroupRoleIDs returns the distinct IDs of all roles attached to a group.
func (s *Store) GroupRoleIDs(ctx context.Context, groupID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT pr.role_id
		FROM policy_roles pr
		JOIN policies po ON po.id = pr.policy_id
		WHERE po.group_id = $1
	`
	rows, err := s.q.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group role ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan role id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- Policies ---

// CreatePolicy inserts a policy.
func (s *Store) CreatePolicy(ctx context.Context, policy *Policy) error {
	if policy.UUID == uuid.Nil {
		policy.UUID = uuid.New()
	}
	query := `
		INSERT INTO policies (uuid, name, description, tenant_id, group_id, system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	now := time.Now()
	err := s.q.QueryRowContext(ctx, query,
		policy.UUID, policy.Name, policy.Description, policy.TenantID,
		policy.GroupID, policy.System, now, now,
	).Scan(&policy.ID)
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", translateError(err, "policy "+policy.Name))
	}
	policy.CreatedAt = now
	policy.UpdatedAt = now
	return nil
}

// GetOrCreateSystemPolicy returns the group's system policy, creating it
// with the canonical name if it does not exist yet.
func (s *Store) GetOrCreateSystemPolicy(ctx context.Context, group *Group) (*Policy, error) {
	query := `
		SELECT id, uuid, name, description, tenant_id, group_id, system, created_at, updated_at
		FROM policies
		WHERE group_id = $1 AND system
	`
	var p Policy
	err := s.q.QueryRowContext(ctx, query, group.ID).Scan(
		&p.ID, &p.UUID, &p.Name, &p.Description, &p.TenantID, &p.GroupID, &p.System, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == nil {
		return &p, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get system policy: %w", err)
	}

	policy := &Policy{
		Name:     SystemPolicyName(group.UUID),
		TenantID: group.TenantID,
		GroupID:  group.ID,
		System:   true,
	}
	if err := s.CreatePolicy(ctx, policy); err != nil {
		return nil, err
	}
	return policy, nil
}

// AttachRoles adds roles to a policy, ignoring ones already attached.
func (s *Store) AttachRoles(ctx context.Context, policyID int64, roleIDs []int64) error {
	if len(roleIDs) == 0 {
		return nil
	}
	query := `
		INSERT INTO policy_roles (policy_id, role_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING
	`
	if _, err := s.q.ExecContext(ctx, query, policyID, pq.Array(roleIDs)); err != nil {
		return fmt.Errorf("failed to attach roles: %w", err)
	}
	return nil
}

// DetachRoles removes roles from all of a group's policies.
func (s *Store) DetachRoles(ctx context.Context, groupID int64, roleIDs []int64) error {
	if len(roleIDs) == 0 {
		return nil
	}
	query := `
		DELETE FROM policy_roles pr
		USING policies po
		WHERE po.id = pr.policy_id AND po.group_id = $1 AND pr.role_id = ANY($2)
	`
	if _, err := s.q.ExecContext(ctx, query, groupID, pq.Array(roleIDs)); err != nil {
		return fmt.Errorf("failed to detach roles: %w", err)
	}
	return nil
}
