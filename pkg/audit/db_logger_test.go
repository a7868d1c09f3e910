package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDBLogger(t *testing.T) (*DBLogger, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	logger, err := NewDBLogger(db)
	require.NoError(t, err)
	return logger, mock, func() { db.Close() }
}

func TestNewDBLogger(t *testing.T) {
	t.Run("nil database", func(t *testing.T) {
		_, err := NewDBLogger(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database connection is required")
	})

	t.Run("table creation error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").
			WillReturnError(errors.New("permission denied"))

		_, err = NewDBLogger(db)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to ensure audit_logs table")
	})
}

func TestDBLoggerLog(t *testing.T) {
	logger, mock, cleanup := setupDBLogger(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), "admin", "Created group team a", ResourceGroup, ActionCreate, int64(2)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &Record{
		Requester:   "admin",
		Description: "Created group team a",
		Resource:    ResourceGroup,
		Action:      ActionCreate,
		TenantID:    2,
	}
	// A nil Execer falls back to the logger's own handle.
	err := logger.Log(context.Background(), nil, record)
	require.NoError(t, err)
	assert.False(t, record.Created.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLoggerLogJoinsTransaction(t *testing.T) {
	logger, mock, cleanup := setupDBLogger(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := logger.db.Begin()
	require.NoError(t, err)

	err = logger.Log(context.Background(), tx, &Record{
		Requester: "admin",
		Resource:  ResourceGroup,
		Action:    ActionDelete,
		TenantID:  2,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLoggerSearch(t *testing.T) {
	logger, mock, cleanup := setupDBLogger(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "created", "principal_username", "description", "resource_type", "action", "tenant_id",
	}).
		AddRow(2, now, "admin", "Deleted group team b", "group", "delete", 2).
		AddRow(1, now.Add(-time.Hour), "admin", "Created group team a", "group", "create", 2)

	mock.ExpectQuery("FROM audit_logs").
		WithArgs(int64(2), ResourceGroup, 10).
		WillReturnRows(rows)

	records, err := logger.Search(context.Background(), SearchFilter{
		TenantID: 2,
		Resource: ResourceGroup,
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Deleted group team b", records[0].Description)
	assert.Equal(t, ActionCreate, records[1].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLoggerCleanup(t *testing.T) {
	logger, mock, cleanup := setupDBLogger(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM audit_logs WHERE created").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 42))

	pruned, err := logger.Cleanup(context.Background(), 90)
	require.NoError(t, err)
	assert.Equal(t, int64(42), pruned)
	assert.NoError(t, mock.ExpectationsWereMet())
}
