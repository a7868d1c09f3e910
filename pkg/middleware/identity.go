// Package middleware provides the HTTP middleware chain: caller identity
// extraction, tenant resolution, and request logging.
package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/wcmitchell/insights-rbac/pkg/contextkeys"
	"github.com/wcmitchell/insights-rbac/pkg/httputil"
)

// IdentityHeader is the platform header carrying the authenticated caller,
// base64-encoded JSON placed there by the gateway.
const IdentityHeader = "x-rh-identity"

// IdentityUser is the user block of an identity.
type IdentityUser struct {
	Username string `json:"username"`
	OrgAdmin bool   `json:"is_org_admin"`
}

// Identity is the authenticated caller context.
type Identity struct {
	OrgID         string       `json:"org_id"`
	AccountNumber string       `json:"account_number"`
	Type          string       `json:"type"`
	User          IdentityUser `json:"user"`
}

type identityEnvelope struct {
	Identity Identity `json:"identity"`
}

// IdentityFromContext retrieves the caller identity set by the middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(contextkeys.IdentityKey).(*Identity)
	return identity, ok
}

// RequireIdentity decodes the identity header and rejects requests without
// a valid one.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(IdentityHeader)
		if raw == "" {
			httputil.WriteUnauthorized(w, "A valid identity header is required.")
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			httputil.WriteUnauthorized(w, "The identity header could not be decoded.")
			return
		}
		var envelope identityEnvelope
		if err := json.Unmarshal(decoded, &envelope); err != nil || envelope.Identity.OrgID == "" {
			httputil.WriteUnauthorized(w, "The identity header is malformed.")
			return
		}

		ctx := contextkeys.WithIdentity(r.Context(), &envelope.Identity)
		ctx = contextkeys.WithRequester(ctx, envelope.Identity.User.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID assigns each request a UUID for log and trace correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("x-rh-insights-request-id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("x-rh-insights-request-id", id)
		ctx := contextkeys.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
