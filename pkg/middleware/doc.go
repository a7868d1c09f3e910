// Package middleware provides HTTP middleware for identity extraction,
// tenant resolution, request logging, and rate limiting.
//
// Requests carry a base64 JSON identity header (x-rh-identity) naming the
// org, account, and requesting user. RequireIdentity decodes it and rejects
// requests without an org id; ResolveTenant then looks up or creates the
// tenant and places it on the context for the handlers.
//
// RateLimit is a Redis-backed fixed-window limiter keyed per org, shared
// across instances.
package middleware
