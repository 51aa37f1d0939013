package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/daas/internal/model"
	"github.com/imamik/daas/internal/store"
)

func newAPIRouter(t *testing.T, requester *MockRequester) (http.Handler, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	r := chi.NewRouter()
	NewAPI(requester, st, logr.Discard()).Routes(r)
	return r, st
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPI_RequestAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		serverID   string
		body       string
		requestErr error
		wantStatus int
		wantCalls  []string
	}{
		{"accepted", testServerID, `{"action":"Provision"}`, nil, http.StatusAccepted, []string{"srv-1:Provision"}},
		{"unknown action", testServerID, `{"action":"Destroy"}`, nil, http.StatusBadRequest, nil},
		{"malformed body", testServerID, `{`, nil, http.StatusBadRequest, nil},
		{"unknown server", "missing", `{"action":"Provision"}`, nil, http.StatusNotFound, nil},
		{"none rejected by engine", testServerID, `{"action":"None"}`, ErrInvalidAction, http.StatusBadRequest, []string{"srv-1:None"}},
		{"deprovision in progress", testServerID, `{"action":"Reconfigure"}`, ErrDeprovisionInProgress, http.StatusConflict, []string{"srv-1:Reconfigure"}},
		{"shutting down", testServerID, `{"action":"Provision"}`, ErrShuttingDown, http.StatusServiceUnavailable, []string{"srv-1:Provision"}},
		{"unexpected", testServerID, `{"action":"Provision"}`, fmt.Errorf("boom"), http.StatusInternalServerError, []string{"srv-1:Provision"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			requester := &MockRequester{Err: tt.requestErr}
			h, st := newAPIRouter(t, requester)
			require.NoError(t, st.CreateServer(context.Background(), newServer()))

			rec := doRequest(h, http.MethodPost, "/api/v1/servers/"+tt.serverID+"/actions", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCalls, requester.Requests)
		})
	}
}

func TestAPI_RequestAction_ResponseBody(t *testing.T) {
	t.Parallel()
	h, st := newAPIRouter(t, &MockRequester{})
	require.NoError(t, st.CreateServer(context.Background(), newServer()))

	rec := doRequest(h, http.MethodPost, "/api/v1/servers/srv-1/actions", `{"action":"Deprovision"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp ActionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ActionResponse{ServerID: testServerID, Action: model.ActionDeprovision}, resp)
}

func TestAPI_CreateServer(t *testing.T) {
	t.Parallel()
	h, st := newAPIRouter(t, &MockRequester{})

	body := `{"id":"srv-9","tenantId":"t","name":"orders","memoryLimitMB":2048,"exposeExternally":true,
		"status":"Ready","phase":"IngressRoute","adminPassword":"ignored"}`
	rec := doRequest(h, http.MethodPost, "/api/v1/servers", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "ignored")

	stored, err := st.LoadServer(context.Background(), "srv-9")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.Equal(t, model.PhaseNone, stored.Phase)
	assert.Equal(t, model.ActionNone, stored.Action)
	assert.Empty(t, stored.AdminPassword)
	assert.Equal(t, 2048, stored.MemoryLimitMB)

	rec = doRequest(h, http.MethodPost, "/api/v1/servers", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_CreateServer_GeneratesID(t *testing.T) {
	t.Parallel()
	h, st := newAPIRouter(t, &MockRequester{})

	rec := doRequest(h, http.MethodPost, "/api/v1/servers", `{"name":"orders"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.ServerRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	_, err := st.LoadServer(context.Background(), created.ID)
	assert.NoError(t, err)

	rec = doRequest(h, http.MethodPost, "/api/v1/servers", `{"name":"x","memoryLimitMB":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_GetServer_RedactsCredentials(t *testing.T) {
	t.Parallel()
	h, st := newAPIRouter(t, &MockRequester{})
	ctx := context.Background()
	require.NoError(t, st.CreateServer(ctx, newServer(atPhase(model.PhaseIngressRoute, model.StatusReady))))
	require.NoError(t, st.CreateDatabase(ctx, newDatabase("db-1", "sales")))

	rec := doRequest(h, http.MethodGet, "/api/v1/servers/srv-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Existing-Pa55word")
	assert.NotContains(t, rec.Body.String(), "Db-Pa55word")

	var view struct {
		ID        string                  `json:"id"`
		Phase     model.Phase             `json:"phase"`
		Databases []*model.DatabaseRecord `json:"databases"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, testServerID, view.ID)
	assert.Equal(t, model.PhaseIngressRoute, view.Phase)
	require.Len(t, view.Databases, 1)
	assert.Equal(t, "sales", view.Databases[0].Name)

	rec = doRequest(h, http.MethodGet, "/api/v1/servers/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CreateDatabase(t *testing.T) {
	t.Parallel()
	h, st := newAPIRouter(t, &MockRequester{})
	ctx := context.Background()
	require.NoError(t, st.CreateServer(ctx, newServer()))

	rec := doRequest(h, http.MethodPost, "/api/v1/servers/srv-1/databases",
		`{"id":"db-1","name":"sales","userName":"sales_owner","status":"Ready"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	stored, err := st.LoadDatabase(ctx, "db-1")
	require.NoError(t, err)
	assert.Equal(t, testServerID, stored.ServerID)
	assert.Equal(t, model.DatabasePending, stored.Status)
	assert.Len(t, stored.Password, dbPasswordLength)

	rec = doRequest(h, http.MethodPost, "/api/v1/servers/srv-1/databases", `{"name":"sales"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(h, http.MethodPost, "/api/v1/servers/missing/databases", `{"name":"a","userName":"b"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_DeleteDatabase_MarksForDrop(t *testing.T) {
	t.Parallel()
	requester := &MockRequester{}
	h, st := newAPIRouter(t, requester)
	ctx := context.Background()
	require.NoError(t, st.CreateServer(ctx, newServer()))
	require.NoError(t, st.CreateServer(ctx, newServer(func(s *model.ServerRecord) { s.ID = "srv-2" })))
	require.NoError(t, st.CreateDatabase(ctx, newDatabase("db-1", "sales", func(d *model.DatabaseRecord) {
		d.Status = model.DatabaseReady
	})))

	rec := doRequest(h, http.MethodDelete, "/api/v1/servers/srv-2/databases/db-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(h, http.MethodDelete, "/api/v1/servers/srv-1/databases/db-1", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	stored, err := st.LoadDatabase(ctx, "db-1")
	require.NoError(t, err)
	assert.Equal(t, model.ActionDeprovision, stored.Action)
	assert.Equal(t, model.DatabaseReady, stored.Status)
	assert.Empty(t, requester.Requests, "the drop waits for the next reconfigure")

	rec = doRequest(h, http.MethodDelete, "/api/v1/servers/srv-1/databases/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
