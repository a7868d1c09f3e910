package tenancy

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcmitchell/insights-rbac/pkg/rbac"
)

func setupTenancy(t *testing.T, cache *Cache) (*Service, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewService(rbac.NewStore(db), cache, logger), mock, func() { db.Close() }
}

func tenantRows(id int64, name, orgID, accountID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "org_id", "account_id", "ready", "created_at"}).
		AddRow(id, name, orgID, accountID, true, time.Now())
}

func TestGetOrCreateTenantExisting(t *testing.T) {
	svc, mock, cleanup := setupTenancy(t, nil)
	defer cleanup()

	mock.ExpectQuery("FROM tenants").
		WithArgs("1234567").
		WillReturnRows(tenantRows(7, "org1234567", "1234567", "54321"))

	tenant, err := svc.GetOrCreateTenant(context.Background(), "1234567", "54321")
	require.NoError(t, err)
	assert.Equal(t, int64(7), tenant.ID)
	assert.Equal(t, "org1234567", tenant.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateTenantFirstContact(t *testing.T) {
	svc, mock, cleanup := setupTenancy(t, nil)
	defer cleanup()

	mock.ExpectQuery("FROM tenants").
		WithArgs("1234567").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO tenants").
		WithArgs("org1234567", "1234567", "54321", true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))

	tenant, err := svc.GetOrCreateTenant(context.Background(), "1234567", "54321")
	require.NoError(t, err)
	assert.Equal(t, int64(8), tenant.ID)
	assert.Equal(t, "org1234567", tenant.Name)
	assert.True(t, tenant.Ready)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateTenantLostCreationRace(t *testing.T) {
	svc, mock, cleanup := setupTenancy(t, nil)
	defer cleanup()

	mock.ExpectQuery("FROM tenants").
		WithArgs("1234567").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO tenants").
		WillReturnError(&pq.Error{Code: "23505"})
	// Another request created the row between the miss and the insert.
	mock.ExpectQuery("FROM tenants").
		WithArgs("1234567").
		WillReturnRows(tenantRows(9, "org1234567", "1234567", "54321"))

	tenant, err := svc.GetOrCreateTenant(context.Background(), "1234567", "54321")
	require.NoError(t, err)
	assert.Equal(t, int64(9), tenant.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateTenantRequiresOrgID(t *testing.T) {
	svc, mock, cleanup := setupTenancy(t, nil)
	defer cleanup()

	_, err := svc.GetOrCreateTenant(context.Background(), "", "54321")
	require.Error(t, err)
	de, ok := rbac.AsError(err)
	require.True(t, ok)
	assert.Equal(t, rbac.CodeInvalidParameter, de.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateTenantUsesCache(t *testing.T) {
	cache, _ := setupCache(t)
	svc, mock, cleanup := setupTenancy(t, cache)
	defer cleanup()

	mock.ExpectQuery("FROM tenants").
		WithArgs("1234567").
		WillReturnRows(tenantRows(7, "org1234567", "1234567", "54321"))

	// First call populates the cache, second never touches the database.
	_, err := svc.GetOrCreateTenant(context.Background(), "1234567", "54321")
	require.NoError(t, err)
	tenant, err := svc.GetOrCreateTenant(context.Background(), "1234567", "54321")
	require.NoError(t, err)
	assert.Equal(t, int64(7), tenant.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
