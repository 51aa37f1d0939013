package sqlproxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"

	"github.com/imamik/daas/internal/httpserver"
	"github.com/imamik/daas/internal/logging"
	"github.com/imamik/daas/pkg/sqlapi"
)

// maxRequestBytes bounds a request body.
const maxRequestBytes = 8 << 20

// BatchExecutor is implemented by Executor.
type BatchExecutor interface {
	ExecuteCommand(ctx context.Context, req sqlapi.Request) (*sqlapi.Result, error)
	ExecuteQuery(ctx context.Context, req sqlapi.Request) (*sqlapi.Result, error)
}

// Handler exposes an executor over HTTP.
type Handler struct {
	exec BatchExecutor
	log  logr.Logger
}

// NewHandler returns the HTTP handler for the proxy routes.
func NewHandler(exec BatchExecutor, log logr.Logger) *Handler {
	return &Handler{exec: exec, log: log}
}

// Routes mounts the SQL endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post(sqlapi.CommandPath, h.serve(h.exec.ExecuteCommand))
	r.Post(sqlapi.QueryPath, h.serve(h.exec.ExecuteQuery))
}

// NewRouter builds the full proxy router including health endpoints.
func NewRouter(exec BatchExecutor, log logr.Logger, requestTimeout time.Duration, ready httpserver.ReadyFunc) http.Handler {
	r := httpserver.NewRouter(log, requestTimeout, ready)
	NewHandler(exec, log).Routes(r)
	return r
}

type executeFunc func(ctx context.Context, req sqlapi.Request) (*sqlapi.Result, error)

func (h *Handler) serve(execute executeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromRequest(r, h.log)

		req, err := decodeRequest(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		if err != nil {
			httpserver.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		result, err := execute(r.Context(), req)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				httpserver.WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			log.Error(err, "batch execution failed")
			httpserver.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpserver.WriteJSON(w, http.StatusOK, result)
	}
}

// decodeRequest keeps numeric parameter values as json.Number so integers
// and decimals are bound without float rounding.
func decodeRequest(body io.Reader) (sqlapi.Request, error) {
	var req sqlapi.Request
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	return req, nil
}
