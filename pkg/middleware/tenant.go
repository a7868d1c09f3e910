package middleware

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/wcmitchell/insights-rbac/pkg/contextkeys"
	"github.com/wcmitchell/insights-rbac/pkg/httputil"
	"github.com/wcmitchell/insights-rbac/pkg/rbac"
	"github.com/wcmitchell/insights-rbac/pkg/tenancy"
)

// TenantFromContext retrieves the tenant resolved for the request.
func TenantFromContext(ctx context.Context) (*rbac.Tenant, bool) {
	tenant, ok := ctx.Value(contextkeys.TenantKey).(*rbac.Tenant)
	return tenant, ok
}

// ResolveTenant maps the caller's org to a tenant, creating one on first
// contact. Must run after RequireIdentity.
func ResolveTenant(tenants *tenancy.Service, logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				httputil.WriteUnauthorized(w, "A valid identity header is required.")
				return
			}

			tenant, err := tenants.GetOrCreateTenant(r.Context(), identity.OrgID, identity.AccountNumber)
			if err != nil {
				logger.WithError(err).WithField("org_id", identity.OrgID).Error("failed to resolve tenant")
				httputil.WriteInternalError(w, err)
				return
			}

			ctx := contextkeys.WithTenant(r.Context(), tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
