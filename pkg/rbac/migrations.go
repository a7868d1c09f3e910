package rbac

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all RBAC migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create tenants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenants (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					org_id VARCHAR(36) NOT NULL DEFAULT '',
					account_id VARCHAR(36) NOT NULL DEFAULT '',
					ready BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE UNIQUE INDEX idx_tenants_org_id ON tenants(org_id) WHERE org_id <> '';
			`,
		},
		{
			Version:     2,
			Description: "Create principals table",
			SQL: `
				CREATE TABLE IF NOT EXISTS principals (
					id BIGSERIAL PRIMARY KEY,
					uuid UUID NOT NULL UNIQUE,
					username VARCHAR(255) NOT NULL,
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					type VARCHAR(20) NOT NULL DEFAULT 'user',
					cross_account BOOLEAN NOT NULL DEFAULT FALSE,
					service_account_id VARCHAR(255) NOT NULL DEFAULT '',
					UNIQUE(tenant_id, username)
				);

				CREATE INDEX idx_principals_tenant_id ON principals(tenant_id);
				CREATE INDEX idx_principals_username ON principals(username);
				CREATE INDEX idx_principals_service_account_id ON principals(service_account_id) WHERE service_account_id <> '';
			`,
		},
		{
			Version:     3,
			Description: "Create groups table",
			SQL: `
				CREATE TABLE IF NOT EXISTS groups (
					id BIGSERIAL PRIMARY KEY,
					uuid UUID NOT NULL UNIQUE,
					name VARCHAR(150) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					system BOOLEAN NOT NULL DEFAULT FALSE,
					platform_default BOOLEAN NOT NULL DEFAULT FALSE,
					admin_default BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_groups_tenant_id ON groups(tenant_id);
				CREATE UNIQUE INDEX idx_groups_tenant_lower_name ON groups(tenant_id, LOWER(name));
				CREATE UNIQUE INDEX idx_groups_one_platform_default ON groups(tenant_id) WHERE platform_default;
				CREATE UNIQUE INDEX idx_groups_one_admin_default ON groups(tenant_id) WHERE admin_default;
			`,
		},
		{
			Version:     4,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					uuid UUID NOT NULL UNIQUE,
					name VARCHAR(150) NOT NULL,
					display_name VARCHAR(150) NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					system BOOLEAN NOT NULL DEFAULT FALSE,
					platform_default BOOLEAN NOT NULL DEFAULT FALSE,
					admin_default BOOLEAN NOT NULL DEFAULT FALSE,
					version INT NOT NULL DEFAULT 1,
					external_tenant VARCHAR(150),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, name)
				);

				CREATE INDEX idx_roles_tenant_id ON roles(tenant_id);
				CREATE INDEX idx_roles_external_tenant ON roles(external_tenant);
			`,
		},
		{
			Version:     5,
			Description: "Create policies and policy_roles tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS policies (
					id BIGSERIAL PRIMARY KEY,
					uuid UUID NOT NULL UNIQUE,
					name VARCHAR(150) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
					system BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, name)
				);

				CREATE INDEX idx_policies_group_id ON policies(group_id);

				CREATE TABLE IF NOT EXISTS policy_roles (
					id BIGSERIAL PRIMARY KEY,
					policy_id BIGINT NOT NULL REFERENCES policies(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					UNIQUE(policy_id, role_id)
				);

				CREATE INDEX idx_policy_roles_role_id ON policy_roles(role_id);
			`,
		},
		{
			Version:     6,
			Description: "Create group_principals table",
			SQL: `
				CREATE TABLE IF NOT EXISTS group_principals (
					id BIGSERIAL PRIMARY KEY,
					group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
					principal_id BIGINT NOT NULL REFERENCES principals(id) ON DELETE CASCADE,
					UNIQUE(group_id, principal_id)
				);

				CREATE INDEX idx_group_principals_principal_id ON group_principals(principal_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rbac_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM rbac_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO rbac_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
