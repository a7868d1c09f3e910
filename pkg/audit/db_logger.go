package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DBLogger appends audit records to PostgreSQL.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger and ensures the
// audit_logs table exists.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_logs table: %w", err)
	}
	return logger, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		created TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		principal_username VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		resource_type VARCHAR(32) NOT NULL,
		action VARCHAR(32) NOT NULL,
		tenant_id BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_tenant_id ON audit_logs(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_resource_type ON audit_logs(resource_type);
	`
	_, err := l.db.Exec(query)
	return err
}

// Log appends a record through db, which may be the transaction of the
// change being described.
func (l *DBLogger) Log(ctx context.Context, db Execer, record *Record) error {
	if db == nil {
		db = l.db
	}
	if record.Created.IsZero() {
		record.Created = time.Now()
	}
	query := `
		INSERT INTO audit_logs (created, principal_username, description, resource_type, action, tenant_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := db.ExecContext(ctx, query,
		record.Created, record.Requester, record.Description,
		record.Resource, record.Action, record.TenantID,
	); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// Search returns records matching the filter, newest first.
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Record, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, created, principal_username, description, resource_type, action, tenant_id
		FROM audit_logs
		WHERE 1=1
	`)
	var args []any

	if filter.TenantID != 0 {
		args = append(args, filter.TenantID)
		fmt.Fprintf(&sb, " AND tenant_id = $%d", len(args))
	}
	if filter.Requester != "" {
		args = append(args, filter.Requester)
		fmt.Fprintf(&sb, " AND principal_username = $%d", len(args))
	}
	if filter.Resource != "" {
		args = append(args, filter.Resource)
		fmt.Fprintf(&sb, " AND resource_type = $%d", len(args))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		fmt.Fprintf(&sb, " AND action = $%d", len(args))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		fmt.Fprintf(&sb, " AND created >= $%d", len(args))
	}
	if filter.Until != nil {
		args = append(args, *filter.Until)
		fmt.Fprintf(&sb, " AND created < $%d", len(args))
	}

	sb.WriteString(" ORDER BY created DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := l.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Created, &r.Requester, &r.Description, &r.Resource, &r.Action, &r.TenantID); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// Cleanup deletes records older than retentionDays and reports how many
// were removed.
func (l *DBLogger) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result, err := l.db.ExecContext(ctx, "DELETE FROM audit_logs WHERE created < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up audit logs: %w", err)
	}
	return result.RowsAffected()
}
