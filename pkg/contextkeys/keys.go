// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains *middleware.Identity
	// Set by: middleware.IdentityMiddleware (pkg/middleware/identity.go)
	// Required by: All tenant-scoped API endpoints
	IdentityKey Key = "identity"

	// TenantKey contains *rbac.Tenant
	// Set by: middleware.TenantMiddleware (pkg/middleware/tenant.go)
	// Required by: All tenant-scoped API endpoints
	TenantKey Key = "tenant"

	// RequesterKey contains the caller's username string
	// Set by: middleware.RequireIdentity
	// Used by: Handlers, audit trail
	RequesterKey Key = "requester"

	// RequestIDKey contains request ID string (UUID)
	// Set by: HTTP middleware, observability layer
	// Used by: Logger, audit trail, distributed tracing
	RequestIDKey Key = "request_id"
)

// WithIdentity adds the caller identity to the context
func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// WithTenant adds the resolved tenant to the context
func WithTenant(ctx context.Context, tenant interface{}) context.Context {
	return context.WithValue(ctx, TenantKey, tenant)
}

// WithRequester adds the caller's username to the context
func WithRequester(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, RequesterKey, username)
}

// GetRequester retrieves the caller's username from context
func GetRequester(ctx context.Context) string {
	if username, ok := ctx.Value(RequesterKey).(string); ok {
		return username
	}
	return ""
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
