// Package audit records administrative changes to RBAC resources in an
// append-only log.
package audit

import (
	"time"
)

// Resource identifies what kind of object a record describes.
type Resource string

const (
	ResourceGroup      Resource = "group"
	ResourceRole       Resource = "role"
	ResourceUser       Resource = "user"
	ResourcePermission Resource = "permission"
)

// Action identifies what happened to the resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionDelete Action = "delete"
	ActionEdit   Action = "edit"
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// Record is a single audit log entry. Records are written inside the same
// transaction as the change they describe and are never updated.
type Record struct {
	ID          int64     `json:"id"`
	Created     time.Time `json:"created"`
	Requester   string    `json:"principal_username"`
	Description string    `json:"description"`
	Resource    Resource  `json:"resource_type"`
	Action      Action    `json:"action"`
	TenantID    int64     `json:"-"`
}

// SearchFilter narrows an audit log query.
type SearchFilter struct {
	TenantID  int64
	Requester string
	Resource  Resource
	Action    Action
	Since     *time.Time
	Until     *time.Time
	Limit     int
	Offset    int
}
