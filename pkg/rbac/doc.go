// Package rbac implements the multi-tenant group and role management core.
//
// # Overview
//
// Groups collect principals (users and service accounts) and carry roles
// through policies. Every tenant sees the shared platform and admin default
// groups owned by the public tenant until it customizes the platform default,
// at which point a tenant-owned "Custom default access" fork shadows the
// shared one. Deleting the fork restores the shared default at query time.
//
// # Components
//
//   - Store: PostgreSQL persistence for tenants, principals, groups, roles
//     and policies. One default group per kind per tenant is enforced with
//     partial unique indexes.
//   - Guard: rejects mutations of system-owned and default groups.
//   - Resolver: resolves a username to its effective group set, including
//     the visible defaults, with an in-process LRU cache.
//   - Service: orchestrates mutations. Each mutation runs in a single
//     transaction covering the entity change, any default-group fork, and
//     the audit record; notifications fire after commit.
//   - Handlers: the /groups HTTP surface.
//
// # Error Handling
//
// Domain failures are typed (*Error) with a code and an HTTP status.
// Validation failures, guard rejections, and conflicts all surface as 400;
// unknown entities as 404. Upstream gateway failures pass the gateway's
// status code through untranslated.
//
// # Related Packages
//
//   - pkg/proxy: principal directory and service account gateways
//   - pkg/notifications: post-commit event delivery
//   - pkg/audit: append-only audit trail
//   - pkg/tenancy: tenant lookup and public-tenant seeding
package rbac
