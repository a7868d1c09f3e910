package rbac

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcmitchell/insights-rbac/pkg/audit"
	"github.com/wcmitchell/insights-rbac/pkg/contextkeys"
	"github.com/wcmitchell/insights-rbac/pkg/httputil"
	"github.com/wcmitchell/insights-rbac/pkg/notifications"
)

type fakeAuditStore struct {
	records []*audit.Record
	filter  audit.SearchFilter
}

func (s *fakeAuditStore) Search(_ context.Context, filter audit.SearchFilter) ([]*audit.Record, error) {
	s.filter = filter
	return s.records, nil
}

func (s *fakeAuditStore) Cleanup(context.Context, int) (int64, error) { return 0, nil }

type handlerFixture struct {
	router     *mux.Router
	mock       sqlmock.Sqlmock
	recorder   *notifications.Recorder
	auditStore *fakeAuditStore
	tenant     *Tenant
}

func setupHandlers(t *testing.T, directory *fakeDirectoryClient) (*handlerFixture, func()) {
	svc, mock, recorder, cleanup := setupService(t, directory, nil)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	auditStore := &fakeAuditStore{}

	router := mux.NewRouter()
	NewHandlers(svc, auditStore, logger).RegisterRoutes(router)

	return &handlerFixture{
		router:     router,
		mock:       mock,
		recorder:   recorder,
		auditStore: auditStore,
		tenant:     &Tenant{ID: 2, OrgID: "1234567", AccountID: "54321"},
	}, cleanup
}

// do issues a request with the tenant and requester already resolved, the
// way the middleware chain leaves them.
func (f *handlerFixture) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := contextkeys.WithTenant(req.Context(), f.tenant)
	ctx = contextkeys.WithRequester(ctx, "admin")
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func errorDetail(t *testing.T, w *httptest.ResponseRecorder) httputil.ErrorDetail {
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	return resp.Errors[0]
}

func TestHandlersCreateGroup(t *testing.T) {
	f, cleanup := setupHandlers(t, &fakeDirectoryClient{})
	defer cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO groups").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	f.mock.ExpectCommit()

	w := f.do("POST", "/groups/", `{"name":"team a","description":"first team"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var group Group
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &group))
	assert.Equal(t, "team a", group.Name)
	assert.NotEqual(t, uuid.Nil, group.UUID)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestHandlersCreateGroupValidation(t *testing.T) {
	f, cleanup := setupHandlers(t, &fakeDirectoryClient{})
	defer cleanup()

	t.Run("missing name", func(t *testing.T) {
		w := f.do("POST", "/groups/", `{"description":"no name"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Field 'name' is required.", errorDetail(t, w).Detail)
	})

	t.Run("reserved name", func(t *testing.T) {
		w := f.do("POST", "/groups/", `{"name":"Default access"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, errorDetail(t, w).Detail, "is reserved, please use another name")
	})

	t.Run("malformed body", func(t *testing.T) {
		w := f.do("POST", "/groups/", `{not json`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestHandlersRequireTenant(t *testing.T) {
	f, cleanup := setupHandlers(t, &fakeDirectoryClient{})
	defer cleanup()

	// No tenant in the request context.
	req := httptest.NewRequest("GET", "/groups/", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "A valid identity header is required.", errorDetail(t, w).Detail)
}

func TestHandlersInvalidPathUUID(t *testing.T) {
	f, cleanup := setupHandlers(t, &fakeDirectoryClient{})
	defer cleanup()

	w := f.do("GET", "/groups/not-a-uuid/", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid UUID provided: not-a-uuid", errorDetail(t, w).Detail)
}

func TestHandlersListGroups(t *testing.T) {
	f, cleanup := setupHandlers(t, &fakeDirectoryClient{})
	defer cleanup()

	id := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "uuid", "name", "description", "tenant_id",
		"system", "platform_default", "admin_default", "created_at", "updated_at",
		"principal_count", "role_count", "policy_count", "total",
	}).AddRow(5, id, "team a", "", 2, false, false, false, now, now, 1, 2, 1, 1)

	f.mock.ExpectQuery("FROM groups g").
		WillReturnRows(rows)

	w := f.do("GET", "/groups/?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Meta httputil.PaginationMeta `json:"meta"`
		Data []*Group                `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Meta.Count)
	assert.Equal(t, 10, resp.Meta.Limit)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "team a", resp.Data[0].Name)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestHandlersListGroupsBadNameMatch(t *testing.T) {
	f, cleanup := setupHandlers(t, &fakeDirectoryClient{})
	defer cleanup()

	w := f.do("GET", "/groups/?name=team&name_match=bogus", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t,
		"name_match query parameter value 'bogus' is invalid. [partial, exact] are valid inputs.",
		errorDetail(t, w).Detail)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestHandlersDeleteSystemGroupRejected(t *testing.T) {
	f, cleanup := setupHandlers(t, &fakeDirectoryClient{})
	defer cleanup()

	id := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "uuid", "name", "description", "tenant_id",
		"system", "platform_default", "admin_default", "created_at", "updated_at",
		"principal_count", "role_count", "policy_count",
	}).AddRow(10, id, DefaultAccessGroupName, "", 1, true, true, false, now, now, 0, 2, 1)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM groups g").
		WillReturnRows(rows)
	f.mock.ExpectRollback()

	w := f.do("DELETE", "/groups/"+id.String()+"/", "")
	// Guard rejections are validation errors, not 403s.
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorDetail(t, w).Detail, "is reserved, cannot be deleted")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestHandlersAttachRolesValidation(t *testing.T) {
	f, cleanup := setupHandlers(t, &fakeDirectoryClient{})
	defer cleanup()

	id := uuid.New()

	t.Run("empty roles", func(t *testing.T) {
		w := f.do("POST", "/groups/"+id.String()+"/roles/", `{"roles":[]}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Field 'roles' is required.", errorDetail(t, w).Detail)
	})

	t.Run("malformed role id", func(t *testing.T) {
		w := f.do("POST", "/groups/"+id.String()+"/roles/", `{"roles":["nope"]}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Role id nope is invalid", errorDetail(t, w).Detail)
	})
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestHandlersDetachRolesRequiresQuery(t *testing.T) {
	f, cleanup := setupHandlers(t, &fakeDirectoryClient{})
	defer cleanup()

	w := f.do("DELETE", "/groups/"+uuid.NewString()+"/roles/", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Query parameter 'roles' is required.", errorDetail(t, w).Detail)
}

func TestHandlersListRolesBadOrdering(t *testing.T) {
	f, cleanup := setupHandlers(t, &fakeDirectoryClient{})
	defer cleanup()

	// Nested role listings reject unknown order_by keys outright, unlike
	// the top-level group list which silently ignores them.
	w := f.do("GET", "/groups/"+uuid.NewString()+"/roles/?order_by=bogus", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid ordering input 'bogus' provided.", errorDetail(t, w).Detail)
}

func TestHandlersListPrincipalsBadType(t *testing.T) {
	f, cleanup := setupHandlers(t, &fakeDirectoryClient{})
	defer cleanup()

	w := f.do("GET", "/groups/"+uuid.NewString()+"/principals/?principal_type=robot", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t,
		"principal_type query parameter value 'robot' is invalid. [user, service-account] are valid inputs.",
		errorDetail(t, w).Detail)
}

func TestHandlersPresenceCheckRejectsMixedParams(t *testing.T) {
	f, cleanup := setupHandlers(t, &fakeDirectoryClient{})
	defer cleanup()

	target := "/groups/" + uuid.NewString() + "/principals/?service_account_client_ids=" + uuid.NewString() + "&limit=10"
	w := f.do("GET", target, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t,
		"The 'service_account_client_ids' parameter is incompatible with any other query parameter. Please, use it alone",
		errorDetail(t, w).Detail)
}

func TestHandlersRemovePrincipalsRequiresQuery(t *testing.T) {
	f, cleanup := setupHandlers(t, &fakeDirectoryClient{})
	defer cleanup()

	w := f.do("DELETE", "/groups/"+uuid.NewString()+"/principals/", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Query parameter 'usernames' or 'service-accounts' is required.", errorDetail(t, w).Detail)
}

func TestHandlersListAuditRecords(t *testing.T) {
	f, cleanup := setupHandlers(t, &fakeDirectoryClient{})
	defer cleanup()

	f.auditStore.records = []*audit.Record{
		{Requester: "admin", Description: "Created group team a", Resource: audit.ResourceGroup, Action: audit.ActionCreate, TenantID: 2},
	}

	w := f.do("GET", "/audit/?resource=group&action=create", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, int64(2), f.auditStore.filter.TenantID)
	assert.Equal(t, audit.ResourceGroup, f.auditStore.filter.Resource)
	assert.Equal(t, audit.ActionCreate, f.auditStore.filter.Action)

	var resp struct {
		Meta httputil.PaginationMeta `json:"meta"`
		Data []*audit.Record         `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Meta.Count)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Created group team a", resp.Data[0].Description)
}
