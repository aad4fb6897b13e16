// Package command exposes operator-declared executables as graph tools.
//
// A command tool receives the run state as a JSON object on stdin. Scalar
// state keys are also exported as FLOWGRAPH_ARG_<KEY> environment
// variables. A JSON object printed on stdout is merged into the state and
// may set the routing override; any other output is stored under the
// tool's output key. A non-zero exit fails the node with stderr attached.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/registry"
)

// EnvPrefix prefixes the environment variables derived from state keys.
const EnvPrefix = "FLOWGRAPH_ARG_"

// GracePeriod is how long a cancelled command may take to exit after the
// interrupt before it is killed.
const GracePeriod = 5 * time.Second

var envUnsafe = regexp.MustCompile(`[^A-Z0-9_]`)

// Tool runs one external command per node execution.
type Tool struct {
	spec    Spec
	baseDir string
	logger  *slog.Logger
}

// Option configures a Tool.
type Option func(*Tool)

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) Option {
	return func(t *Tool) {
		t.baseDir = dir
	}
}

// WithLogger sets the logger used for command diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tool) {
		t.logger = logger
	}
}

// New creates a command tool.
func New(spec Spec, opts ...Option) *Tool {
	if spec.OutputKey == "" {
		spec.OutputKey = spec.Name + "_output"
	}
	t := &Tool{spec: spec, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register adds a tool for every spec to reg.
func Register(reg *registry.Registry, specs []Spec, opts ...Option) error {
	if err := validate(specs); err != nil {
		return err
	}
	for _, s := range specs {
		if err := reg.Register(s.Name, New(s, opts...)); err != nil {
			return err
		}
	}
	return nil
}

// Spec returns the tool declaration.
func (t *Tool) Spec() Spec { return t.spec }

// Apply runs the command with the state on stdin.
func (t *Tool) Apply(ctx context.Context, state domain.State) (domain.State, error) {
	input, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state for %s: %w", t.spec.Name, err)
	}

	if t.spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, t.spec.Command, t.spec.Args...)
	cmd.Dir = t.baseDir
	cmd.Env = append(cmd.Environ(), t.environment(state)...)
	cmd.Stdin = bytes.NewReader(input)
	if runtime.GOOS != "windows" {
		cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	}
	cmd.WaitDelay = GracePeriod

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	t.logger.Debug("Command finished", "tool", t.spec.Name, "duration", time.Since(start), "err", err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", t.spec.Name, ctxErr)
		}
		return nil, fmt.Errorf("%s: execution failed: %w. Stderr: %s", t.spec.Name, err, strings.TrimSpace(stderr.String()))
	}

	return t.merge(state, stdout.Bytes())
}

func (t *Tool) merge(state domain.State, output []byte) (domain.State, error) {
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) == 0 {
		return state, nil
	}

	if trimmed[0] == '{' {
		update := map[string]any{}
		if err := json.Unmarshal(trimmed, &update); err == nil {
			for k, v := range update {
				state[k] = v
			}
			return state, nil
		}
	}

	state[t.spec.OutputKey] = string(trimmed)
	return state, nil
}

// environment exports the declared variables plus scalar state keys.
// Structured values are passed as JSON; stdin carries the full state.
func (t *Tool) environment(state domain.State) []string {
	env := make([]string, 0, len(t.spec.Environment)+len(state))
	for k, v := range t.spec.Environment {
		env = append(env, k+"="+v)
	}
	for k, v := range state {
		if k == domain.OverrideKey {
			continue
		}
		var val string
		switch v.(type) {
		case string, int, int64, float64, bool:
			val = fmt.Sprintf("%v", v)
		case nil:
			val = ""
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				continue
			}
			val = string(raw)
		}
		env = append(env, EnvPrefix+envUnsafe.ReplaceAllString(strings.ToUpper(k), "_")+"="+val)
	}
	return env
}
