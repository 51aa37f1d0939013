package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/daas/internal/httpserver"
	"github.com/imamik/daas/internal/orchestrator"
)

func TestRequest_Accepted(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/servers/srv-1/actions", r.URL.Path)

		var body orchestrator.ActionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Provision", body.Action)

		httpserver.WriteJSON(w, http.StatusAccepted, orchestrator.ActionResponse{ServerID: "srv-1", Action: "Provision"})
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, Request(context.Background(), srv.URL+"/", "srv-1", "Provision", &out))
	assert.Equal(t, "Provision accepted for server srv-1\n", out.String())
}

func TestRequest_Rejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpserver.WriteError(w, http.StatusConflict, "deprovision in progress")
	}))
	defer srv.Close()

	err := Request(context.Background(), srv.URL, "srv-1", "Reconfigure", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "deprovision in progress")
}

func TestRequest_UnknownActionNeverSent(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	err := Request(context.Background(), srv.URL, "srv-1", "Destroy", &bytes.Buffer{})
	assert.ErrorContains(t, err, `unknown action "Destroy"`)
	assert.False(t, called)
}
