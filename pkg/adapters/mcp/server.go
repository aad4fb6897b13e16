package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/flowgraph"
	"github.com/aretw0/flowgraph/internal/presentation/graph"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/workflow"
)

const (
	graphsURI   = "flowgraph://graphs"
	runURIScope = "flowgraph://runs/"
)

// Service is the part of *workflow.Service the MCP server depends on.
type Service interface {
	Graph(id string) (*workflow.Graph, error)
	Graphs() []*workflow.Graph
	RunGraph(ctx context.Context, req workflow.RunRequest) (*domain.RunRecord, error)
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)
	ListRuns(ctx context.Context) ([]*domain.RunRecord, error)
}

// GraphSummary describes a catalogued graph.
type GraphSummary struct {
	GraphID   string `json:"graph_id" jsonschema_description:"Identifier used to run the graph"`
	Name      string `json:"name"`
	StartNode string `json:"start_node"`
	MaxSteps  int    `json:"max_steps"`
	Nodes     int    `json:"nodes" jsonschema_description:"Number of nodes"`
}

// GraphList is the output of list_graphs.
type GraphList struct {
	Graphs []GraphSummary `json:"graphs"`
}

// GraphDetail is the output of get_graph.
type GraphDetail struct {
	*workflow.Graph
	Mermaid string `json:"mermaid" jsonschema_description:"Mermaid flowchart of the graph"`
}

// RunList is the output of list_runs.
type RunList struct {
	Runs []*domain.RunRecord `json:"runs"`
}

// Server exposes a workflow service as an MCP server.
type Server struct {
	service   Service
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance. A nil logger uses slog.Default.
func NewServer(svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		service:   svc,
		logger:    logger,
		mcpServer: server.NewMCPServer("flowgraph-mcp", strings.TrimSpace(flowgraph.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and shuts it down
// when ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_graphs",
		mcp.WithDescription("List the graphs available for execution."),
		mcp.WithOutputSchema[GraphList](),
	), mcp.NewStructuredToolHandler(s.handleListGraphs))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get a graph definition with its Mermaid diagram."),
		mcp.WithString("graph_id", mcp.Required(), mcp.Description("Graph identifier")),
		mcp.WithString("run_id", mcp.Description("Highlight the path taken by this run")),
	), mcp.NewStructuredToolHandler(s.handleGetGraph))

	s.mcpServer.AddTool(mcp.NewTool("run_graph",
		mcp.WithDescription("Run a graph to completion and return its run record."),
		mcp.WithString("graph_id", mcp.Required(), mcp.Description("Graph identifier")),
		mcp.WithString("initial_state", mcp.Description("JSON object used as the initial state")),
		mcp.WithString("run_id", mcp.Description("Optional run identifier; generated when omitted")),
		mcp.WithOutputSchema[domain.RunRecord](),
	), mcp.NewStructuredToolHandler(s.handleRunGraph))

	s.mcpServer.AddTool(mcp.NewTool("get_run",
		mcp.WithDescription("Get the stored record of a finished run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run identifier")),
		mcp.WithOutputSchema[domain.RunRecord](),
	), mcp.NewStructuredToolHandler(s.handleGetRun))

	s.mcpServer.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List the stored run records."),
		mcp.WithOutputSchema[RunList](),
	), mcp.NewStructuredToolHandler(s.handleListRuns))
}

func (s *Server) handleListGraphs(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (GraphList, error) {
	graphs := s.service.Graphs()
	list := GraphList{Graphs: make([]GraphSummary, 0, len(graphs))}
	for _, g := range graphs {
		list.Graphs = append(list.Graphs, GraphSummary{
			GraphID:   g.ID,
			Name:      g.Name,
			StartNode: g.StartNode,
			MaxSteps:  g.MaxSteps,
			Nodes:     len(g.Nodes),
		})
	}
	return list, nil
}

func (s *Server) handleGetGraph(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (GraphDetail, error) {
	id, _ := args["graph_id"].(string)
	g, err := s.service.Graph(id)
	if err != nil {
		return GraphDetail{}, err
	}
	var overlay *graph.RunOverlay
	if runID, _ := args["run_id"].(string); runID != "" {
		rec, err := s.service.GetRun(ctx, runID)
		if err != nil {
			return GraphDetail{}, err
		}
		overlay = graph.OverlayOf(rec)
	}
	return GraphDetail{Graph: g, Mermaid: graph.GenerateMermaid(&g.Definition, overlay)}, nil
}

func (s *Server) handleRunGraph(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.RunRecord, error) {
	req := workflow.RunRequest{}
	req.GraphID, _ = args["graph_id"].(string)
	req.RunID, _ = args["run_id"].(string)

	initial, err := parseState(args["initial_state"])
	if err != nil {
		s.logger.Warn("MCP run_graph: initial state rejected", "err", err)
		return domain.RunRecord{}, err
	}
	req.InitialState = initial

	rec, err := s.service.RunGraph(ctx, req)
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("run failed: %w", err)
	}
	if rec.Status == domain.StatusFailed {
		s.logger.Warn("MCP run_graph: run failed", "run_id", rec.RunID, "kind", rec.ErrorKind)
	}
	return *rec, nil
}

func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.RunRecord, error) {
	id, _ := args["run_id"].(string)
	rec, err := s.service.GetRun(ctx, id)
	if err != nil {
		return domain.RunRecord{}, err
	}
	return *rec, nil
}

func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (RunList, error) {
	records, err := s.service.ListRuns(ctx)
	if err != nil {
		return RunList{}, err
	}
	return RunList{Runs: records}, nil
}

// parseState accepts the initial state as a JSON string or as an object.
func parseState(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return map[string]any{}, nil
		}
		state := map[string]any{}
		if err := json.Unmarshal([]byte(v), &state); err != nil {
			return nil, fmt.Errorf("initial_state must be a JSON object: %w", err)
		}
		return state, nil
	default:
		return nil, fmt.Errorf("initial_state must be a JSON object, got %T", raw)
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(graphsURI, "Catalogued Graphs",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.service.Graphs())
		if err != nil {
			return nil, fmt.Errorf("failed to encode graphs: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      graphsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})

	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(runURIScope+"{run_id}", "Run Record",
		mcp.WithTemplateMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		uri := request.Params.URI
		rec, err := s.service.GetRun(ctx, strings.TrimPrefix(uri, runURIScope))
		if err != nil {
			return nil, err
		}
		jsonBytes, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to encode run: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
