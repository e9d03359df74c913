package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/ridgeline-io/ridgeline/pkg/cluster"
	"github.com/ridgeline-io/ridgeline/pkg/events"
	"github.com/ridgeline-io/ridgeline/pkg/fleet"
	"github.com/ridgeline-io/ridgeline/pkg/log"
	"github.com/ridgeline-io/ridgeline/pkg/metrics"
	"github.com/ridgeline-io/ridgeline/pkg/types"
	"github.com/ridgeline-io/ridgeline/pkg/update"
	"github.com/ridgeline-io/ridgeline/pkg/validate"
)

// Service is the lifecycle surface the API exposes. *cluster.Controller
// implements it; tests substitute a fake.
type Service interface {
	Create(ctx context.Context, name string, doc []byte, opts cluster.ValidateOptions) (*types.ClusterInfo, error)
	Update(ctx context.Context, name string, doc []byte, opts cluster.UpdateOptions) (*update.Report, error)
	Delete(ctx context.Context, name string, keepLogs bool) error
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Status(ctx context.Context, name string) (*types.ClusterInfo, error)
	List(ctx context.Context) ([]*types.ClusterInfo, error)
	DescribeConfig(ctx context.Context, name string) ([]byte, error)
	ExportLogs(ctx context.Context, name, bucket, prefix string) (string, error)
}

// Server is the thin HTTP front over the lifecycle controller
type Server struct {
	service Service
	events  *events.Recorder
	router  *mux.Router
	log     zerolog.Logger
}

// NewServer creates the API server and registers every route. The recorder
// backs the event listing endpoint and may be nil when the caller does not
// retain events.
func NewServer(service Service, recorder *events.Recorder) *Server {
	s := &Server{
		service: service,
		events:  recorder,
		router:  mux.NewRouter(),
		log:     log.WithComponent("api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.requestLogger)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	v1.HandleFunc("/clusters", s.handleList).Methods(http.MethodGet)
	v1.HandleFunc("/clusters", s.handleCreate).Methods(http.MethodPost)
	v1.HandleFunc("/clusters/{name}", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/clusters/{name}", s.handleUpdate).Methods(http.MethodPut)
	v1.HandleFunc("/clusters/{name}", s.handleDelete).Methods(http.MethodDelete)
	v1.HandleFunc("/clusters/{name}/config", s.handleConfig).Methods(http.MethodGet)
	v1.HandleFunc("/clusters/{name}/fleet/start", s.handleStart).Methods(http.MethodPost)
	v1.HandleFunc("/clusters/{name}/fleet/stop", s.handleStop).Methods(http.MethodPost)
	v1.HandleFunc("/clusters/{name}/logs/export", s.handleExportLogs).Methods(http.MethodPost)
}

// Start runs the HTTP server until the listener fails
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("API server listening")
	return server.ListenAndServe()
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler { return s.router }

type createRequest struct {
	Name               string `json:"name"`
	Config             string `json:"config"`
	SuppressValidators bool   `json:"suppressValidators,omitempty"`
	FailureLevel       string `json:"failureLevel,omitempty"`
}

type updateRequest struct {
	Config             string `json:"config"`
	Force              bool   `json:"force,omitempty"`
	SuppressValidators bool   `json:"suppressValidators,omitempty"`
	FailureLevel       string `json:"failureLevel,omitempty"`
}

type exportLogsRequest struct {
	Bucket string `json:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

type exportLogsResponse struct {
	TaskID string `json:"taskId"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		s.writeErrorKind(w, http.StatusNotImplemented, "NotImplemented", "event retention is not enabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeErrorKind(w, http.StatusBadRequest, "BadRequest", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	s.writeJSON(w, http.StatusOK, s.events.Events(r.URL.Query().Get("cluster"), limit))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	infos, err := s.service.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorKind(w, http.StatusBadRequest, "BadRequest", "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" || req.Config == "" {
		s.writeErrorKind(w, http.StatusBadRequest, "BadRequest", "name and config are required")
		return
	}
	level, err := validate.ParseSeverity(req.FailureLevel)
	if err != nil {
		s.writeErrorKind(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	info, err := s.service.Create(r.Context(), req.Name, []byte(req.Config), cluster.ValidateOptions{
		SuppressValidators: req.SuppressValidators,
		FailureLevel:       level,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, info)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.Status(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.DescribeConfig(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorKind(w, http.StatusBadRequest, "BadRequest", "invalid request body: "+err.Error())
		return
	}
	if req.Config == "" {
		s.writeErrorKind(w, http.StatusBadRequest, "BadRequest", "config is required")
		return
	}
	level, err := validate.ParseSeverity(req.FailureLevel)
	if err != nil {
		s.writeErrorKind(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	report, err := s.service.Update(r.Context(), name, []byte(req.Config), cluster.UpdateOptions{
		ValidateOptions: cluster.ValidateOptions{
			SuppressValidators: req.SuppressValidators,
			FailureLevel:       level,
		},
		Force: req.Force,
	})
	if err != nil {
		var updateErr *cluster.UpdateError
		if errors.As(err, &updateErr) {
			// The denied report is the response body, not just the message
			s.writeJSON(w, http.StatusConflict, map[string]interface{}{
				"error":  errorBody{Kind: updateErr.Kind(), Message: updateErr.Error()},
				"report": reportView(updateErr.Report),
			})
			return
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{"report": reportView(report)})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	keepLogs := r.URL.Query().Get("keepLogs") == "true"

	if err := s.service.Delete(r.Context(), name, keepLogs); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Start(r.Context(), mux.Vars(r)["name"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Stop(r.Context(), mux.Vars(r)["name"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportLogs(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req exportLogsRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	taskID, err := s.service.ExportLogs(r.Context(), name, req.Bucket, req.Prefix)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, exportLogsResponse{TaskID: taskID})
}

// verdictView is the wire form of one evaluated change
type verdictView struct {
	Path         string `json:"path"`
	Policy       string `json:"policy"`
	Result       string `json:"result"`
	FailReason   string `json:"failReason,omitempty"`
	ActionNeeded string `json:"actionNeeded,omitempty"`
}

func reportView(r *update.Report) []verdictView {
	if r == nil {
		return nil
	}
	out := make([]verdictView, 0, len(r.Verdicts))
	for _, v := range r.Verdicts {
		if !v.Display {
			continue
		}
		out = append(out, verdictView{
			Path:         v.Change.PathString(),
			Policy:       v.Policy,
			Result:       string(v.Result),
			FailReason:   v.FailReason,
			ActionNeeded: v.ActionNeeded,
		})
	}
	return out
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeErrorKind(w http.ResponseWriter, status int, kind, message string) {
	s.writeJSON(w, status, errorResponse{Error: errorBody{Kind: kind, Message: message}})
}

// writeError maps domain errors to HTTP statuses through their stable kinds
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind, status := classify(err)
	s.writeErrorKind(w, status, kind, err.Error())
}

func classify(err error) (string, int) {
	var kinded interface{ Kind() string }
	if errors.As(err, &kinded) {
		switch kind := kinded.Kind(); kind {
		case "ClusterNotFound":
			return kind, http.StatusNotFound
		case "ConcurrentUpdate", "ClusterUpdate":
			return kind, http.StatusConflict
		case "ConfigValidation", "InvalidValue", "UnknownField", "DisallowedField", "TooManySections", "InvalidLabel":
			return kind, http.StatusBadRequest
		default:
			return kind, http.StatusInternalServerError
		}
	}

	var concurrent *fleet.ConcurrentUpdateError
	if errors.As(err, &concurrent) {
		return concurrent.Kind(), http.StatusConflict
	}

	var merr *multierror.Error
	if errors.As(err, &merr) {
		// Aggregated parse errors from document loading
		return "InvalidConfiguration", http.StatusBadRequest
	}

	return "Internal", http.StatusInternalServerError
}
