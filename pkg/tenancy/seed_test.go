package tenancy

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcmitchell/insights-rbac/pkg/rbac"
)

func seedGroupRows(id int64, name string, platformDefault, adminDefault bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "uuid", "name", "description", "tenant_id",
		"system", "platform_default", "admin_default", "created_at", "updated_at",
	}).AddRow(id, uuid.New(), name, "", 1, true, platformDefault, adminDefault, now, now)
}

func policyRows(id, groupID int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "uuid", "name", "description", "tenant_id", "group_id", "system", "created_at", "updated_at",
	}).AddRow(id, uuid.New(), rbac.SystemPolicyName(uuid.New()), "", 1, groupID, true, now, now)
}

func seedRoleRows(id int64, name string, platformDefault, adminDefault bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "uuid", "name", "display_name", "description", "tenant_id",
		"system", "platform_default", "admin_default", "version", "external_tenant",
		"created_at", "updated_at",
	}).AddRow(id, uuid.New(), name, name, "", 1, true, platformDefault, adminDefault, 1, nil, now, now)
}

func TestEnsureDefaultsFreshDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mock.ExpectQuery("FROM tenants").
		WithArgs(rbac.PublicTenantName).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO tenants").
		WithArgs(rbac.PublicTenantName, "", "", true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	// Platform default group plus its system policy.
	mock.ExpectQuery("g.platform_default").
		WithArgs(int64(1)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO groups").
		WithArgs(sqlmock.AnyArg(), rbac.DefaultAccessGroupName, sqlmock.AnyArg(), int64(1),
			true, true, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery("FROM policies").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO policies").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	// Admin default group plus its system policy.
	mock.ExpectQuery("g.admin_default").
		WithArgs(int64(1)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO groups").
		WithArgs(sqlmock.AnyArg(), rbac.DefaultAdminAccessGroupName, sqlmock.AnyArg(), int64(1),
			true, false, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectQuery("FROM policies").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO policies").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	// System roles get created and attached to the matching default policy.
	mock.ExpectQuery("FROM roles r").
		WithArgs(int64(1), "User Access principal viewer").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO roles").
		WithArgs(sqlmock.AnyArg(), "User Access principal viewer", "User Access principal viewer",
			sqlmock.AnyArg(), int64(1), true, true, false, 1, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectExec("INSERT INTO policy_roles").
		WithArgs(int64(1), pq.Array([]int64{10})).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery("FROM roles r").
		WithArgs(int64(1), "User Access administrator").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO roles").
		WithArgs(sqlmock.AnyArg(), "User Access administrator", "User Access administrator",
			sqlmock.AnyArg(), int64(1), true, false, true, 1, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec("INSERT INTO policy_roles").
		WithArgs(int64(2), pq.Array([]int64{11})).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("UPDATE tenants SET ready").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = EnsureDefaults(context.Background(), rbac.NewStore(db), logger)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureDefaultsIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mock.ExpectQuery("FROM tenants").
		WithArgs(rbac.PublicTenantName).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "org_id", "account_id", "ready", "created_at"}).
			AddRow(1, rbac.PublicTenantName, "", "", true, time.Now()))

	// Everything already exists; nothing gets created.
	mock.ExpectQuery("g.platform_default").
		WithArgs(int64(1)).
		WillReturnRows(seedGroupRows(1, rbac.DefaultAccessGroupName, true, false))
	mock.ExpectQuery("FROM policies").
		WillReturnRows(policyRows(1, 1))

	mock.ExpectQuery("g.admin_default").
		WithArgs(int64(1)).
		WillReturnRows(seedGroupRows(2, rbac.DefaultAdminAccessGroupName, false, true))
	mock.ExpectQuery("FROM policies").
		WillReturnRows(policyRows(2, 2))

	// Existing roles are reused; attachment is a conflict-free no-op.
	mock.ExpectQuery("FROM roles r").
		WithArgs(int64(1), "User Access principal viewer").
		WillReturnRows(seedRoleRows(10, "User Access principal viewer", true, false))
	mock.ExpectExec("INSERT INTO policy_roles").
		WithArgs(int64(1), pq.Array([]int64{10})).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery("FROM roles r").
		WithArgs(int64(1), "User Access administrator").
		WillReturnRows(seedRoleRows(11, "User Access administrator", false, true))
	mock.ExpectExec("INSERT INTO policy_roles").
		WithArgs(int64(2), pq.Array([]int64{11})).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec("UPDATE tenants SET ready").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = EnsureDefaults(context.Background(), rbac.NewStore(db), logger)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
