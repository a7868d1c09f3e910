// Package tenancy resolves callers to tenants and maintains the shared
// public tenant and its platform groups.
package tenancy

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/wcmitchell/insights-rbac/pkg/rbac"
)

// Service resolves org IDs to tenants, creating tenant rows on first
// contact.
type Service struct {
	store  *rbac.Store
	cache  *Cache
	logger *logrus.Logger
}

// NewService creates a tenancy service. cache may be nil.
func NewService(store *rbac.Store, cache *Cache, logger *logrus.Logger) *Service {
	return &Service{store: store, cache: cache, logger: logger}
}

// GetOrCreateTenant returns the tenant for an org ID, creating it when the
// org is seen for the first time.
func (s *Service) GetOrCreateTenant(ctx context.Context, orgID, accountID string) (*rbac.Tenant, error) {
	if orgID == "" {
		return nil, rbac.NewInvalidParameter("org_id is required")
	}

	if s.cache != nil {
		if tenant := s.cache.Get(ctx, orgID); tenant != nil {
			return tenant, nil
		}
	}

	tenant, err := s.store.GetTenantByOrgID(ctx, orgID)
	if rbac.IsNotFound(err) {
		tenant = &rbac.Tenant{
			Name:      "org" + orgID,
			OrgID:     orgID,
			AccountID: accountID,
			Ready:     true,
		}
		if cerr := s.store.CreateTenant(ctx, tenant); cerr != nil {
			// Lost a creation race; the row exists now.
			if de, ok := rbac.AsError(cerr); ok && de.Code == rbac.CodeConflict {
				return s.store.GetTenantByOrgID(ctx, orgID)
			}
			return nil, cerr
		}
		s.logger.WithField("org_id", orgID).Info("created tenant")
	} else if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, tenant)
	}
	return tenant, nil
}
