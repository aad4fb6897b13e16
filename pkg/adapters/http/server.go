package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/flowgraph"
	"github.com/aretw0/flowgraph/internal/presentation/graph"
	"github.com/aretw0/flowgraph/pkg/domain"
	graphdef "github.com/aretw0/flowgraph/pkg/graph"
	"github.com/aretw0/flowgraph/pkg/workflow"
)

// MaxBodyBytes caps the size of request bodies.
const MaxBodyBytes = 1 << 20

// Service is the part of *workflow.Service the HTTP adapter depends on.
type Service interface {
	Tools() []string
	CreateGraph(ctx context.Context, def graphdef.Definition) (*workflow.Graph, error)
	Graph(id string) (*workflow.Graph, error)
	Graphs() []*workflow.Graph
	RunGraph(ctx context.Context, req workflow.RunRequest) (*domain.RunRecord, error)
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)
	ListRuns(ctx context.Context) ([]*domain.RunRecord, error)
}

// Server exposes a workflow service over HTTP.
type Server struct {
	service      Service
	streams      *StreamManager
	metrics      http.Handler
	logger       *slog.Logger
	defaultGraph string
	runTimeout   time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStreams attaches the stream manager whose hooks feed GET /events.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithDefaultGraph sets the graph returned by GET /graph/default/code-review.
func WithDefaultGraph(id string) Option {
	return func(s *Server) {
		s.defaultGraph = id
	}
}

// WithRunTimeout bounds the context passed to each run. Zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.runTimeout = d
	}
}

// NewServer creates a server for svc.
func NewServer(svc Service, opts ...Option) *Server {
	s := &Server{
		service: svc,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.streams == nil {
		s.streams = NewStreamManager(s.logger)
	}
	return s
}

// Handler returns the routed handler, wrapped with CORS.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Get("/events", s.SubscribeEvents)

	r.Get("/graphs", s.ListGraphs)
	r.Post("/graph/create", s.CreateGraph)
	r.Post("/graph/run", s.RunGraph)
	r.Get("/graph/default/code-review", s.GetDefaultGraph)
	r.Get("/graph/state/{run_id}", s.GetRunState)
	r.Get("/graph/{graph_id}", s.GetGraph)
	r.Get("/runs", s.ListRuns)

	return enableCORS(r)
}

// NewHandler creates a new HTTP handler for the service.
func NewHandler(svc Service, opts ...Option) http.Handler {
	return NewServer(svc, opts...).Handler()
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GraphCreated is the response of POST /graph/create.
type GraphCreated struct {
	GraphID string `json:"graph_id"`
	Name    string `json:"name"`
}

// GraphView is the response of GET /graph/{graph_id}.
type GraphView struct {
	*workflow.Graph
	Mermaid string `json:"mermaid"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":     "flowgraph-http",
		"version": strings.TrimSpace(flowgraph.Version),
		"tools":   s.service.Tools(),
	})
}

// ListGraphs handles GET /graphs.
func (s *Server) ListGraphs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Graphs())
}

// CreateGraph handles POST /graph/create.
func (s *Server) CreateGraph(w http.ResponseWriter, r *http.Request) {
	var def graphdef.Definition
	if !s.decode(w, r, &def) {
		return
	}

	g, err := s.service.CreateGraph(r.Context(), def)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, GraphCreated{GraphID: g.ID, Name: g.Name})
}

// GetGraph handles GET /graph/{graph_id}. With ?run_id= the diagram
// highlights the path taken by that run.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.service.Graph(chi.URLParam(r, "graph_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var overlay *graph.RunOverlay
	if runID := r.URL.Query().Get("run_id"); runID != "" {
		rec, err := s.service.GetRun(r.Context(), runID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		overlay = graph.OverlayOf(rec)
	}
	s.writeJSON(w, http.StatusOK, GraphView{Graph: g, Mermaid: graph.GenerateMermaid(&g.Definition, overlay)})
}

// GetDefaultGraph handles GET /graph/default/code-review.
func (s *Server) GetDefaultGraph(w http.ResponseWriter, r *http.Request) {
	if s.defaultGraph == "" {
		s.writeError(w, r, fmt.Errorf("%w: no default graph configured", workflow.ErrGraphNotFound))
		return
	}
	g, err := s.service.Graph(s.defaultGraph)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, GraphCreated{GraphID: g.ID, Name: g.Name})
}

// RunGraph handles POST /graph/run.
// A run that fails inside the engine answers 422 with the full record.
func (s *Server) RunGraph(w http.ResponseWriter, r *http.Request) {
	var req workflow.RunRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	rec, err := s.service.RunGraph(ctx, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if rec.Status == domain.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, rec)
}

// GetRunState handles GET /graph/state/{run_id}.
func (s *Server) GetRunState(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.GetRun(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListRuns(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

// -- Helpers --

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(v); err != nil {
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "err", err)
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "err", err)
	} else {
		s.logger.Warn("Request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error(), ErrorKind: kindOf(status, err)})
}

func kindOf(status int, err error) string {
	var invalidState *workflow.InvalidStateError
	switch {
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusConflict:
		return "conflict"
	case status == http.StatusGatewayTimeout:
		return "timeout"
	case errors.As(err, &invalidState):
		return "invalid_state"
	default:
		return domain.KindOf(err)
	}
}

func statusOf(err error) int {
	var (
		invalidConfig *domain.InvalidConfigurationError
		invalidState  *workflow.InvalidStateError
	)
	switch {
	case errors.Is(err, workflow.ErrGraphNotFound), errors.Is(err, workflow.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrRunExists):
		return http.StatusConflict
	case errors.As(err, &invalidConfig), errors.As(err, &invalidState):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
