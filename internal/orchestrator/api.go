package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/imamik/daas/internal/httpserver"
	"github.com/imamik/daas/internal/logging"
	"github.com/imamik/daas/internal/model"
	"github.com/imamik/daas/internal/store"
	"github.com/imamik/daas/internal/util/keygen"
)

// Routes served by the operator API.
const (
	ServersPath   = "/api/v1/servers"
	ServerPath    = ServersPath + "/{serverID}"
	ActionsPath   = ServerPath + "/actions"
	DatabasesPath = ServerPath + "/databases"
	DatabasePath  = DatabasesPath + "/{databaseID}"
)

const (
	maxBodyBytes     = 1 << 20
	dbPasswordLength = 24
)

// ActionRequest is the body of a POST to ActionsPath.
type ActionRequest struct {
	Action string `json:"action"`
}

// ActionResponse acknowledges an accepted action. Completion is reported
// through status events and the stored record.
type ActionResponse struct {
	ServerID string       `json:"serverId"`
	Action   model.Action `json:"action"`
}

// ServerView is a server as returned by the API, without credentials.
type ServerView struct {
	*model.ServerRecord
	Databases []*model.DatabaseRecord `json:"databases"`
}

// API exposes action requests and record registration over HTTP.
type API struct {
	engine actionRequester
	store  store.Store
	log    logr.Logger
}

// NewAPI creates the operator API for engine.
func NewAPI(engine actionRequester, st store.Store, log logr.Logger) *API {
	return &API{engine: engine, store: st, log: log.WithName("api")}
}

// Routes mounts the operator endpoints on r.
func (a *API) Routes(r chi.Router) {
	r.Post(ServersPath, a.createServer)
	r.Get(ServerPath, a.getServer)
	r.Post(ActionsPath, a.requestAction)
	r.Post(DatabasesPath, a.createDatabase)
	r.Delete(DatabasePath, a.deleteDatabase)
}

func (a *API) requestAction(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverID")

	var body ActionRequest
	if err := decode(w, r, &body); err != nil {
		httpserver.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	action, err := model.ParseAction(body.Action)
	if err != nil {
		httpserver.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := a.store.LoadServer(r.Context(), serverID); err != nil {
		a.storeError(w, r, err)
		return
	}

	err = a.engine.RequestAction(serverID, action)
	switch {
	case err == nil:
		httpserver.WriteJSON(w, http.StatusAccepted, ActionResponse{ServerID: serverID, Action: action})
	case errors.Is(err, ErrDeprovisionInProgress):
		httpserver.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidAction):
		httpserver.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrShuttingDown):
		httpserver.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logging.FromRequest(r, a.log).Error(err, "action request failed", "serverID", serverID)
		httpserver.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func (a *API) createServer(w http.ResponseWriter, r *http.Request) {
	var srv model.ServerRecord
	if err := decode(w, r, &srv); err != nil {
		httpserver.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if srv.ID == "" {
		srv.ID = uuid.NewString()
	}
	if srv.MemoryLimitMB < 0 || srv.StorageSizeMB < 0 {
		httpserver.WriteError(w, http.StatusBadRequest, "memoryLimitMB and storageSizeMB must not be negative")
		return
	}
	srv.Action = model.ActionNone
	srv.Phase = model.PhaseNone
	srv.Status = model.StatusPending
	srv.AdminPassword = ""
	srv.PublicEndpoint = nil
	srv.LastError = ""

	if err := a.store.CreateServer(r.Context(), &srv); err != nil {
		a.storeError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusCreated, redactServer(&srv))
}

func (a *API) getServer(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverID")
	srv, err := a.store.LoadServer(r.Context(), serverID)
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	dbs, err := a.store.ListDatabases(r.Context(), serverID)
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	view := ServerView{ServerRecord: redactServer(srv), Databases: make([]*model.DatabaseRecord, 0, len(dbs))}
	for _, db := range dbs {
		view.Databases = append(view.Databases, redactDatabase(db))
	}
	httpserver.WriteJSON(w, http.StatusOK, view)
}

func (a *API) createDatabase(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverID")

	var db model.DatabaseRecord
	if err := decode(w, r, &db); err != nil {
		httpserver.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if db.Name == "" || db.UserName == "" {
		httpserver.WriteError(w, http.StatusBadRequest, "name and userName are required")
		return
	}
	if db.ID == "" {
		db.ID = uuid.NewString()
	}
	if db.Password == "" {
		pw, err := keygen.GeneratePassword(dbPasswordLength)
		if err != nil {
			httpserver.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		db.Password = pw
	}
	db.ServerID = serverID
	db.Action = model.ActionNone
	db.Status = model.DatabasePending
	db.LastError = ""

	if err := a.store.CreateDatabase(r.Context(), &db); err != nil {
		a.storeError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusCreated, redactDatabase(&db))
}

// deleteDatabase marks a database for removal. The drop runs with the next
// Reconfigure of its server.
func (a *API) deleteDatabase(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverID")
	databaseID := chi.URLParam(r, "databaseID")

	for attempt := 0; ; attempt++ {
		db, err := a.store.LoadDatabase(r.Context(), databaseID)
		if err != nil {
			a.storeError(w, r, err)
			return
		}
		if db.ServerID != serverID {
			httpserver.WriteError(w, http.StatusNotFound, fmt.Sprintf("database %s not found on server %s", databaseID, serverID))
			return
		}
		db.Action = model.ActionDeprovision
		err = a.store.SaveDatabase(r.Context(), db)
		if errors.Is(err, store.ErrConflict) && attempt < maxSaveAttempts {
			continue
		}
		if err != nil {
			a.storeError(w, r, err)
			return
		}
		httpserver.WriteJSON(w, http.StatusAccepted, redactDatabase(db))
		return
	}
}

func (a *API) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpserver.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		httpserver.WriteError(w, http.StatusConflict, err.Error())
	default:
		logging.FromRequest(r, a.log).Error(err, "store operation failed")
		httpserver.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func redactServer(s *model.ServerRecord) *model.ServerRecord {
	c := *s
	c.AdminPassword = ""
	return &c
}

func redactDatabase(d *model.DatabaseRecord) *model.DatabaseRecord {
	c := *d
	c.Password = ""
	return &c
}
