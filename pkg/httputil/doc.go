// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WritePaginated(w, count, limit, offset, data)
//
// Error responses use the {"errors":[{detail,status,source}]} envelope:
//
//	httputil.WriteError(w, http.StatusBadRequest, "Invalid input")
//	httputil.WriteErrors(w, status, details)
//	httputil.WriteNotFound(w, "Group not found")
//
// # Request Parsing
//
// JSON parsing:
//
//	var req GroupIn
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// Query parameters:
//
//	limit := httputil.ParseQueryInt(r, "limit", 10)
//	system, err := httputil.ParseQueryBool(r, "system")
//	names := httputil.ParseQueryMulti(r, "role_names")
//
// # Related Packages
//
//   - pkg/middleware: Identity, tenant, and rate limit middleware
package httputil
