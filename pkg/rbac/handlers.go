package rbac

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/wcmitchell/insights-rbac/pkg/audit"
	"github.com/wcmitchell/insights-rbac/pkg/contextkeys"
	"github.com/wcmitchell/insights-rbac/pkg/httputil"
)

// Handlers provides HTTP handlers for group management.
type Handlers struct {
	service    *Service
	auditStore audit.Store
	logger     *logrus.Logger
}

// NewHandlers creates new group management handlers
func NewHandlers(service *Service, auditStore audit.Store, logger *logrus.Logger) *Handlers {
	return &Handlers{service: service, auditStore: auditStore, logger: logger}
}

// RegisterRoutes registers all group management routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/groups/", h.CreateGroup).Methods("POST")
	router.HandleFunc("/groups/", h.ListGroups).Methods("GET")
	router.HandleFunc("/groups/{uuid}/", h.GetGroup).Methods("GET")
	router.HandleFunc("/groups/{uuid}/", h.UpdateGroup).Methods("PUT")
	router.HandleFunc("/groups/{uuid}/", h.DeleteGroup).Methods("DELETE")

	router.HandleFunc("/groups/{uuid}/roles/", h.ListGroupRoles).Methods("GET")
	router.HandleFunc("/groups/{uuid}/roles/", h.AttachRoles).Methods("POST")
	router.HandleFunc("/groups/{uuid}/roles/", h.DetachRoles).Methods("DELETE")

	router.HandleFunc("/groups/{uuid}/principals/", h.ListGroupPrincipals).Methods("GET")
	router.HandleFunc("/groups/{uuid}/principals/", h.AddPrincipals).Methods("POST")
	router.HandleFunc("/groups/{uuid}/principals/", h.RemovePrincipals).Methods("DELETE")

	router.HandleFunc("/audit/", h.ListAuditRecords).Methods("GET")
}

// tenantFromRequest pulls the tenant resolved by the middleware chain.
func tenantFromRequest(r *http.Request) (*Tenant, bool) {
	tenant, ok := r.Context().Value(contextkeys.TenantKey).(*Tenant)
	return tenant, ok
}

// writeServiceError renders a domain error, passing upstream status and
// source through untouched.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	if de, ok := AsError(err); ok {
		status := de.HTTPStatus()
		httputil.WriteErrors(w, status, []httputil.ErrorDetail{{
			Detail: de.Detail,
			Status: strconv.Itoa(status),
			Source: de.Source,
		}})
		return
	}
	h.logger.WithError(err).Error("unhandled service error")
	httputil.WriteInternalError(w, err)
}

func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["uuid"]
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid UUID provided: "+raw)
		return uuid.Nil, false
	}
	return id, true
}

// --- Group lifecycle ---

type groupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateGroup creates a group for the caller's tenant.
func (h *Handlers) CreateGroup(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "A valid identity header is required.")
		return
	}

	var req groupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		httputil.WriteBadRequest(w, "Field 'name' is required.")
		return
	}

	group, err := h.service.CreateGroup(r.Context(), tenant, contextkeys.GetRequester(r.Context()), req.Name, req.Description)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, group)
}

// ListGroups lists the groups visible to the tenant.
func (h *Handlers) ListGroups(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "A valid identity header is required.")
		return
	}

	filter, err := groupFilterFromRequest(r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	groups, total, err := h.service.ListGroups(r.Context(), tenant, filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if groups == nil {
		groups = []*Group{}
	}
	limit, offset := NormalizePagination(filter.Limit, filter.Offset)
	httputil.WritePaginated(w, total, limit, offset, groups)
}

// groupFilterFromRequest builds the group list filter from query
// parameters. Unknown order_by keys are accepted and ignored downstream.
func groupFilterFromRequest(r *http.Request) (*GroupFilter, error) {
	system, err := httputil.ParseQueryBool(r, "system")
	if err != nil {
		return nil, NewInvalidParameter("%s", err)
	}
	platformDefault, err := httputil.ParseQueryBool(r, "platform_default")
	if err != nil {
		return nil, NewInvalidParameter("%s", err)
	}
	adminDefault, err := httputil.ParseQueryBool(r, "admin_default")
	if err != nil {
		return nil, NewInvalidParameter("%s", err)
	}

	var uuids []uuid.UUID
	for _, raw := range httputil.ParseQueryMulti(r, "uuid") {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, NewInvalidParameter("Invalid UUID provided: %s", raw)
		}
		uuids = append(uuids, id)
	}

	return &GroupFilter{
		Name:              httputil.ParseQueryString(r, "name", ""),
		NameMatch:         httputil.ParseQueryString(r, "name_match", ""),
		UUIDs:             uuids,
		System:            system,
		PlatformDefault:   platformDefault,
		AdminDefault:      adminDefault,
		RoleNames:         httputil.ParseQueryMulti(r, "role_names"),
		RoleDiscriminator: httputil.ParseQueryString(r, "role_discriminator", ""),
		Username:          httputil.ParseQueryString(r, "username", ""),
		OrderBy:           httputil.ParseQueryString(r, "order_by", ""),
		Limit:             httputil.ParseQueryInt(r, "limit", DefaultLimit),
		Offset:            httputil.ParseQueryInt(r, "offset", 0),
	}, nil
}

// GetGroup returns a single group with its computed counts.
func (h *Handlers) GetGroup(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "A valid identity header is required.")
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	group, err := h.service.GetGroup(r.Context(), tenant, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, group)
}

// UpdateGroup renames a group or changes its description.
func (h *Handlers) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "A valid identity header is required.")
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	var req groupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		httputil.WriteBadRequest(w, "Field 'name' is required.")
		return
	}

	group, err := h.service.UpdateGroup(r.Context(), tenant, contextkeys.GetRequester(r.Context()), id, req.Name, req.Description)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, group)
}

// DeleteGroup deletes a group.
func (h *Handlers) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "A valid identity header is required.")
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteGroup(r.Context(), tenant, contextkeys.GetRequester(r.Context()), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// --- Roles ---

type attachRolesRequest struct {
	Roles []string `json:"roles"`
}

// AttachRoles adds roles to a group.
func (h *Handlers) AttachRoles(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "A valid identity header is required.")
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	var req attachRolesRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Roles) == 0 {
		httputil.WriteBadRequest(w, "Field 'roles' is required.")
		return
	}
	roleUUIDs, err := ParseRoleUUIDs(req.Roles)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	target, err := h.service.AttachRoles(r.Context(), tenant, contextkeys.GetRequester(r.Context()), id, roleUUIDs)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	roles, total, err := h.service.ListGroupRoles(r.Context(), tenant, target.UUID, &RoleFilter{Limit: MaxLimit})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if roles == nil {
		roles = []*Role{}
	}
	httputil.WritePaginated(w, total, MaxLimit, 0, roles)
}

// DetachRoles removes the roles named in the query string from a group.
func (h *Handlers) DetachRoles(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "A valid identity header is required.")
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	raw := httputil.ParseQueryList(r, "roles")
	if len(raw) == 0 {
		httputil.WriteBadRequest(w, "Query parameter 'roles' is required.")
		return
	}
	roleUUIDs, err := ParseRoleUUIDs(raw)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if err := h.service.DetachRoles(r.Context(), tenant, contextkeys.GetRequester(r.Context()), id, roleUUIDs); err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListGroupRoles lists a group's roles, or the complement with exclude=true.
func (h *Handlers) ListGroupRoles(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "A valid identity header is required.")
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	exclude, err := httputil.ParseQueryBool(r, "exclude")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	system, err := httputil.ParseQueryBool(r, "role_system")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	filter := &RoleFilter{
		Name:           httputil.ParseQueryString(r, "role_name", ""),
		DisplayName:    httputil.ParseQueryString(r, "role_display_name", ""),
		Description:    httputil.ParseQueryString(r, "role_description", ""),
		System:         system,
		ExternalTenant: httputil.ParseQueryString(r, "role_external_tenant", ""),
		Exclude:        exclude != nil && *exclude,
		Scope:          httputil.ParseQueryString(r, "scope", ""),
		OrderBy:        httputil.ParseQueryString(r, "order_by", ""),
		Limit:          httputil.ParseQueryInt(r, "limit", DefaultLimit),
		Offset:         httputil.ParseQueryInt(r, "offset", 0),
	}

	roles, total, err := h.service.ListGroupRoles(r.Context(), tenant, id, filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if roles == nil {
		roles = []*Role{}
	}
	limit, offset := NormalizePagination(filter.Limit, filter.Offset)
	httputil.WritePaginated(w, total, limit, offset, roles)
}

// --- Principals ---

type principalRef struct {
	Username string `json:"username,omitempty"`
	ClientID string `json:"clientID,omitempty"`
	Type     string `json:"type,omitempty"`
}

type addPrincipalsRequest struct {
	Principals []principalRef `json:"principals"`
}

// AddPrincipals attaches principals to a group.
func (h *Handlers) AddPrincipals(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "A valid identity header is required.")
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	var req addPrincipalsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Principals) == 0 {
		httputil.WriteBadRequest(w, "Field 'principals' is required.")
		return
	}

	var usernames, clientIDs []string
	for _, p := range req.Principals {
		switch {
		case p.Type == string(PrincipalServiceAccount):
			if p.ClientID == "" {
				httputil.WriteBadRequest(w, "Field 'clientID' is required for service accounts.")
				return
			}
			clientIDs = append(clientIDs, p.ClientID)
		case p.Username != "":
			usernames = append(usernames, p.Username)
		default:
			httputil.WriteBadRequest(w, "Field 'username' is required.")
			return
		}
	}

	group, err := h.service.AddPrincipals(r.Context(), tenant, contextkeys.GetRequester(r.Context()), id, usernames, clientIDs)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, group)
}

// RemovePrincipals detaches principals named in the query string.
func (h *Handlers) RemovePrincipals(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "A valid identity header is required.")
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	usernames := httputil.ParseQueryList(r, "usernames")
	clientIDs := httputil.ParseQueryList(r, "service-accounts")

	if err := h.service.RemovePrincipals(r.Context(), tenant, contextkeys.GetRequester(r.Context()), id, usernames, clientIDs); err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListGroupPrincipals lists a group's members. With the
// service_account_client_ids filter it instead answers a presence check.
func (h *Handlers) ListGroupPrincipals(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "A valid identity header is required.")
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	if query.Has("service_account_client_ids") {
		otherParams := false
		for key := range query {
			if key != "service_account_client_ids" {
				otherParams = true
				break
			}
		}
		results, err := h.service.CheckServiceAccountPresence(r.Context(), tenant, id,
			query.Get("service_account_client_ids"), otherParams)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		httputil.WritePaginated(w, len(results), len(results), 0, results)
		return
	}

	principalType := httputil.ParseQueryString(r, "principal_type", string(PrincipalUser))
	if !PrincipalType(principalType).Valid() {
		httputil.WriteBadRequest(w,
			"principal_type query parameter value '"+principalType+"' is invalid. [user, service-account] are valid inputs.")
		return
	}
	adminOnly, err := httputil.ParseQueryBool(r, "admin_only")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	usernameOnly, err := httputil.ParseQueryBool(r, "username_only")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	filter := &PrincipalFilter{
		Type:             PrincipalType(principalType),
		UsernameContains: httputil.ParseQueryString(r, "principal_username", ""),
		OrderBy:          httputil.ParseQueryString(r, "order_by", ""),
		AdminOnly:        adminOnly != nil && *adminOnly,
		UsernameOnly:     usernameOnly != nil && *usernameOnly,
		Limit:            httputil.ParseQueryInt(r, "limit", DefaultLimit),
		Offset:           httputil.ParseQueryInt(r, "offset", 0),
	}

	page, err := h.service.ListGroupPrincipals(r.Context(), tenant, id, filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	limit, offset := NormalizePagination(filter.Limit, filter.Offset)
	if filter.Type == PrincipalServiceAccount {
		httputil.WritePaginated(w, page.Total, limit, offset, page.ServiceAccounts)
		return
	}
	httputil.WritePaginated(w, page.Total, limit, offset, page.Users)
}

// --- Audit ---

// ListAuditRecords lists the tenant's audit trail, newest first.
func (h *Handlers) ListAuditRecords(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "A valid identity header is required.")
		return
	}

	limit, offset := NormalizePagination(
		httputil.ParseQueryInt(r, "limit", DefaultLimit),
		httputil.ParseQueryInt(r, "offset", 0),
	)
	records, err := h.auditStore.Search(r.Context(), audit.SearchFilter{
		TenantID: tenant.ID,
		Resource: audit.Resource(httputil.ParseQueryString(r, "resource", "")),
		Action:   audit.Action(httputil.ParseQueryString(r, "action", "")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if records == nil {
		records = []*audit.Record{}
	}
	httputil.WritePaginated(w, len(records), limit, offset, records)
}
