package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/flowgraph/internal/config"
	"github.com/aretw0/flowgraph/internal/logging"
	redisAdapter "github.com/aretw0/flowgraph/pkg/adapters/redis"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/persistence/middleware"
	"github.com/aretw0/flowgraph/pkg/tools/codereview"
	"github.com/aretw0/flowgraph/pkg/workflow"
)

const reviewYAML = `
name: review
start_node: extract
max_steps: 50
nodes:
  extract: {tool_name: extract_functions}
  complexity: {tool_name: check_complexity}
  issues: {tool_name: detect_issues}
  suggest: {tool_name: suggest_improvements}
edges:
  extract: complexity
  complexity: issues
  issues: suggest
  suggest: ""
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestApp(t *testing.T, mutate func(*config.Config)) *App {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	app, err := NewApp(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestNewApp_Memory(t *testing.T) {
	app := newTestApp(t, nil)

	assert.NotEmpty(t, app.CodeReviewGraphID)
	assert.NotNil(t, app.Metrics)
	assert.True(t, app.Tools.Has(codereview.ToolSuggestImprovements))

	g, err := app.Service.Graph(app.CodeReviewGraphID)
	require.NoError(t, err)
	assert.Equal(t, codereview.GraphName, g.Name)
}

func TestNewApp_PreloadsGraphFiles(t *testing.T) {
	path := writeFile(t, t.TempDir(), "review.yaml", reviewYAML)
	app := newTestApp(t, func(c *config.Config) {
		c.Server.CodeReview = false
		c.Graphs = []string{path}
	})

	assert.Empty(t, app.CodeReviewGraphID)
	graphs := app.Service.Graphs()
	require.Len(t, graphs, 1)
	assert.Equal(t, "review", graphs[0].Name)
}

func TestNewApp_BadGraphFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "name: bad\nstart_node: a\nnodes:\n  a: {tool_name: missing}\n")
	cfg := config.Default()
	cfg.Graphs = []string{path}

	_, err := NewApp(context.Background(), cfg, logging.NewNop())
	var invalid *domain.InvalidConfigurationError
	assert.ErrorAs(t, err, &invalid)
}

func TestNewApp_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	app := newTestApp(t, func(c *config.Config) {
		c.Store.Driver = config.DriverRedis
		c.Store.Redis.Addr = mr.Addr()
	})
	_, ok := app.Store.(*redisAdapter.Store)
	require.True(t, ok)

	rec, err := app.Service.RunGraph(context.Background(), workflow.RunRequest{
		GraphID:      app.CodeReviewGraphID,
		RunID:        "redis-run",
		InitialState: map[string]any{"code": "def ok():\n    return 1\n"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTerminated, rec.Status)
	assert.True(t, mr.Exists("flowgraph:run:redis-run"))
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Store.Driver = config.DriverRedis
	cfg.Store.Redis.Addr = addr
	_, err = NewApp(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestNewApp_CommandTools(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("command tools use sh")
	}
	dir := t.TempDir()
	tools := writeFile(t, dir, "tools.yaml", `
tools:
  - name: stamp
    command: sh
    args: ["-c", "echo '{\"stamped\": true}'"]
`)
	graphPath := writeFile(t, dir, "stamp.yaml", "name: stamp\nstart_node: s\nnodes:\n  s: {tool_name: stamp}\n")
	app := newTestApp(t, func(c *config.Config) {
		c.ToolsFile = tools
		c.Server.CodeReview = false
		c.Graphs = []string{graphPath}
	})
	require.True(t, app.Tools.Has("stamp"))

	rec, err := app.Service.RunGraph(context.Background(), workflow.RunRequest{GraphID: app.Service.Graphs()[0].ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTerminated, rec.Status)
	assert.Equal(t, true, rec.FinalState["stamped"])
}

func TestNewApp_SecureStore(t *testing.T) {
	mr := miniredis.RunT(t)
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	app := newTestApp(t, func(c *config.Config) {
		c.Store.Driver = config.DriverRedis
		c.Store.Redis.Addr = mr.Addr()
		c.Store.EncryptionKey = key
		c.Store.RedactKeys = []string{"^code$"}
	})

	_, err := app.Service.RunGraph(context.Background(), workflow.RunRequest{
		GraphID:      app.CodeReviewGraphID,
		RunID:        "secure-run",
		InitialState: map[string]any{"code": "def ok():\n    return 1\n"},
	})
	require.NoError(t, err)

	raw, err := mr.Get("flowgraph:run:secure-run")
	require.NoError(t, err)
	assert.NotContains(t, raw, "def ok")
	assert.Contains(t, raw, middleware.EnvelopeKey)

	stored, err := app.Service.GetRun(context.Background(), "secure-run")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, stored.FinalState["code"])
	assert.Equal(t, domain.StatusTerminated, stored.Status)
}

func TestNewApp_BadEncryptionKey(t *testing.T) {
	cfg := config.Default()
	cfg.Store.EncryptionKey = "too-short"
	_, err := NewApp(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, "store.encryption_key")
}

func TestApp_Handler(t *testing.T) {
	app := newTestApp(t, nil)
	h := app.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/graph/default/code-review", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, app.CodeReviewGraphID, body["graph_id"])

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApp_ServeStopsOnCancel(t *testing.T) {
	app := newTestApp(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, "127.0.0.1:0") }()

	cancel()
	assert.NoError(t, <-done)
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeFile(t, dir, "review.yaml", reviewYAML)
	clean := writeFile(t, dir, "clean.json", `{"code": "def ok():\n    return 1\n"}`)
	other := writeFile(t, dir, "other.yaml", "code: |\n  def f():\n      return 2\n")

	app := newTestApp(t, func(c *config.Config) { c.Server.CodeReview = false })

	var out bytes.Buffer
	err := RunFile(context.Background(), app, RunOptions{
		GraphPath:  graphPath,
		StateFiles: []string{clean, other},
		Parallel:   2,
	}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "== "+clean)
	assert.Contains(t, out.String(), "== "+other)
	assert.Contains(t, out.String(), "TERMINATED")

	runs, err := app.Service.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunFile_JSONAndFailure(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeFile(t, dir, "loop.yaml", `
name: loop
start_node: extract
nodes:
  extract: {tool_name: extract_functions}
edges:
  extract: extract
`)
	app := newTestApp(t, func(c *config.Config) { c.Server.CodeReview = false })

	var out bytes.Buffer
	err := RunFile(context.Background(), app, RunOptions{GraphPath: graphPath, MaxSteps: 3, JSON: true}, &out)
	assert.ErrorIs(t, err, ErrRunFailed)

	var rec domain.RunRecord
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	assert.Equal(t, domain.StatusFailed, rec.Status)
	assert.Equal(t, "max_steps_exceeded", rec.ErrorKind)
	assert.Equal(t, 3, rec.StepsTaken)
}

func TestLoadState(t *testing.T) {
	dir := t.TempDir()

	state, err := LoadState(writeFile(t, dir, "s.json", `{"threshold": 0.5}`))
	require.NoError(t, err)
	assert.Equal(t, 0.5, state["threshold"])

	_, err = LoadState(writeFile(t, dir, "bad.json", `[1]`))
	assert.Error(t, err)

	_, err = LoadState(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, nil)

	def, warnings, err := ValidateFile(writeFile(t, dir, "ok.yaml", reviewYAML), app.Tools)
	require.NoError(t, err)
	assert.Equal(t, "review", def.Name)
	assert.Empty(t, warnings)

	_, warnings, err = ValidateFile(writeFile(t, dir, "island.yaml", `
name: island
start_node: a
nodes:
  a: {tool_name: extract_functions}
  b: {tool_name: check_complexity}
`), app.Tools)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "'b'")

	_, _, err = ValidateFile(writeFile(t, dir, "broken.yaml", `
name: broken
start_node: a
nodes:
  a: {tool_name: nope}
edges:
  a: ghost
`), app.Tools)
	assert.Error(t, err)
}
