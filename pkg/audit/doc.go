// Package audit provides an append-only audit trail for group and role
// mutations.
//
// Records capture who changed what: requester, action (create, delete, edit,
// add, remove), resource kind, a human-readable description, and the tenant.
// The DB logger accepts an Execer so a record can be appended inside the same
// transaction as the change it describes; nothing is written if the
// transaction rolls back.
//
// Retention is handled by Cleanup, scheduled from cmd/rbac-server.
package audit
