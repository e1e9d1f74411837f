package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/flow"

	"archflow/internal/api"
	"archflow/internal/config"
	"archflow/internal/logging"
	"archflow/internal/services"
	"archflow/internal/store"
	"archflow/internal/workflow"
)

// maxBodyBytes bounds request bodies; MODS records are the largest payloads.
const maxBodyBytes = 4 << 20

type apiServer struct {
	bind        string
	profilePath string
	logger      *slog.Logger
	store       *store.Store
	manager     *workflow.Manager

	router *flow.Mux
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
}

func newAPIServer(cfg *config.Config, st *store.Store, mgr *workflow.Manager, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:        strings.TrimSpace(cfg.Paths.APIBind),
		profilePath: cfg.Paths.Profile,
		logger:      logging.NewComponentLogger(logger, "api-server"),
		store:       st,
		manager:     mgr,
	}
	srv.router = srv.routes()
	srv.server = &http.Server{
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() *flow.Mux {
	mux := flow.New()
	mux.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "no route for " + r.URL.Path, Kind: string(services.KindNotFound)})
	})
	mux.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusMethodNotAllowed, api.ErrorResponse{Error: "method not allowed", Kind: string(services.KindValidation)})
	})
	mux.Use(requestContext(s.logger))

	mux.HandleFunc("/api/health", s.handleHealth, http.MethodGet)
	mux.HandleFunc("/api/profiles/jobs", s.handleJobDefinitions, http.MethodGet)
	mux.HandleFunc("/api/profile/reload", s.handleProfileReload, http.MethodPost)

	mux.HandleFunc("/api/jobs", s.handleListJobs, http.MethodGet)
	mux.HandleFunc("/api/jobs", s.handleAddJob, http.MethodPost)
	mux.HandleFunc("/api/jobs/:id|^[0-9]+$", s.handleGetJob, http.MethodGet)
	mux.HandleFunc("/api/jobs/:id|^[0-9]+$", s.handleUpdateJob, http.MethodPatch)
	mux.HandleFunc("/api/jobs/:id|^[0-9]+$/tasks", s.handleAddTask, http.MethodPost)

	mux.HandleFunc("/api/tasks", s.handleListTasks, http.MethodGet)
	mux.HandleFunc("/api/tasks/:id|^[0-9]+$", s.handleGetTask, http.MethodGet)
	mux.HandleFunc("/api/tasks/:id|^[0-9]+$", s.handleUpdateTask, http.MethodPatch)

	mux.HandleFunc("/api/materials", s.handleListMaterials, http.MethodGet)
	mux.HandleFunc("/api/materials/:id|^[0-9]+$", s.handleUpdateMaterial, http.MethodPatch)

	mux.HandleFunc("/api/params", s.handleListParams, http.MethodGet)

	mux.HandleFunc("/api/batches", s.handleListBatches, http.MethodGet)
	mux.HandleFunc("/api/batches", s.handleAddBatch, http.MethodPost)
	mux.HandleFunc("/api/batches/:id|^[0-9]+$", s.handleGetBatch, http.MethodGet)
	mux.HandleFunc("/api/batches/:id|^[0-9]+$", s.handleUpdateBatch, http.MethodPatch)
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return services.Wrap(services.ErrConfiguration, "daemon", "listen", "paths.api_bind is empty", nil)
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{Status: "ok", Driver: s.store.Driver(), Database: "ok"}
	status := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = err.Error()
		status = http.StatusServiceUnavailable
	}
	if p, err := s.manager.Profile(); err == nil {
		resp.Profile = api.FromProfile(p)
	} else {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

func (s *apiServer) handleJobDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.manager.JobDefinitions(r.URL.Query().Get(api.QueryLocale))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ListResponse[api.JobDefinition]{Items: api.FromJobDefinitions(defs)})
}

func (s *apiServer) handleProfileReload(w http.ResponseWriter, r *http.Request) {
	var req api.ReloadRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		path = s.profilePath
	}
	p, err := s.manager.ReloadProfile(r.Context(), path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromProfile(p))
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := api.JobFilterFromQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views, err := s.manager.FindJob(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ListResponse[api.Job]{Items: api.FromJobViews(views), Offset: filter.Offset})
}

func (s *apiServer) handleAddJob(w http.ResponseWriter, r *http.Request) {
	var req api.AddJobRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	job, err := s.manager.AddJob(r.Context(), req.Workflow())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromJob(job))
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	job, err := s.manager.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

func (s *apiServer) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var patch api.JobPatch
	if err := decodeBody(r, &patch, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	job, err := s.manager.UpdateJob(r.Context(), patch.Workflow(id))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

func (s *apiServer) handleAddTask(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req api.AddTaskRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	task, err := s.manager.AddTask(r.Context(), jobID, strings.TrimSpace(req.Task), req.Owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromTask(task))
}

func (s *apiServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := api.TaskFilterFromQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views, err := s.manager.FindTask(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ListResponse[api.Task]{Items: api.FromTaskViews(views), Offset: filter.Offset})
}

func (s *apiServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	task, err := s.manager.GetTask(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromTask(task))
}

func (s *apiServer) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var patch api.TaskPatch
	if err := decodeBody(r, &patch, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	task, err := s.manager.UpdateTask(r.Context(), patch.Workflow(id))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromTask(task))
}

func (s *apiServer) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	filter, err := api.MaterialFilterFromQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views, err := s.manager.FindMaterial(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ListResponse[api.Material]{Items: api.FromMaterialViews(views), Offset: filter.Offset})
}

func (s *apiServer) handleUpdateMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var patch api.MaterialPatch
	if err := decodeBody(r, &patch, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	material, err := s.manager.UpdateMaterial(r.Context(), patch.Workflow(id))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromMaterial(material))
}

func (s *apiServer) handleListParams(w http.ResponseWriter, r *http.Request) {
	filter, err := api.ParamFilterFromQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views, err := s.manager.FindParameter(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ListResponse[api.Param]{Items: api.FromParamViews(views), Offset: filter.Offset})
}

func (s *apiServer) handleListBatches(w http.ResponseWriter, r *http.Request) {
	filter, err := api.BatchFilterFromQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views, err := s.manager.FindBatch(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ListResponse[api.Batch]{Items: api.FromBatchViews(views), Offset: filter.Offset})
}

func (s *apiServer) handleAddBatch(w http.ResponseWriter, r *http.Request) {
	var req api.BatchRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	batch, err := s.manager.AddBatch(r.Context(), req.Workflow())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromBatch(batch))
}

func (s *apiServer) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	batch, err := s.manager.GetBatch(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromBatch(batch))
}

func (s *apiServer) handleUpdateBatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var patch api.BatchPatch
	if err := decodeBody(r, &patch, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	batch, err := s.manager.UpdateBatch(r.Context(), patch.Workflow(id))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromBatch(batch))
}

func pathID(r *http.Request) (int64, error) {
	raw := flow.Param(r.Context(), "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, services.Wrap(services.ErrValidation, "api", "path", fmt.Sprintf("invalid id %q", raw), nil)
	}
	return id, nil
}

// decodeBody reads a JSON request body into dst. Unknown fields are rejected
// so misspelled patch fields do not silently do nothing.
func decodeBody(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return services.Wrap(services.ErrValidation, "api", "decode body", "invalid JSON body", err)
	}
	return nil
}

// statusFor maps error markers to HTTP status codes.
func statusFor(err error) int {
	switch services.Classify(err) {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindIntegration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := logging.WithContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	} else {
		logger.Debug("request rejected",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.FromError(err))
}
