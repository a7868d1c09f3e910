package audit

import (
	"context"
)

// Store provides read and maintenance access to the audit log.
type Store interface {
	// Search searches audit records based on filters
	Search(ctx context.Context, filter SearchFilter) ([]*Record, error)

	// Cleanup removes audit records older than the retention period
	Cleanup(ctx context.Context, retentionDays int) (int64, error)
}

// DBStore implements Store on top of the database logger.
type DBStore struct {
	logger *DBLogger
}

// NewDBStore creates a new database-backed audit store
func NewDBStore(logger *DBLogger) *DBStore {
	return &DBStore{logger: logger}
}

// Search searches audit records based on filters
func (s *DBStore) Search(ctx context.Context, filter SearchFilter) ([]*Record, error) {
	return s.logger.Search(ctx, filter)
}

// Cleanup removes audit records older than the retention period
func (s *DBStore) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	return s.logger.Cleanup(ctx, retentionDays)
}
