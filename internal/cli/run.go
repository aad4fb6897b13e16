package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/flowgraph/internal/presentation/tui"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/graph"
	"github.com/aretw0/flowgraph/pkg/workflow"
)

// ErrRunFailed is returned by RunFile when at least one run ended in
// domain.StatusFailed.
var ErrRunFailed = errors.New("run failed")

// RunOptions configures RunFile.
type RunOptions struct {
	GraphPath  string
	StateFiles []string // one run per file; a single empty state when none
	MaxSteps   int      // overrides the definition when > 0
	Parallel   int      // concurrent runs; <= 0 means unbounded
	Verbose    bool     // print the full run report
	JSON       bool     // print records as JSON instead of the report
}

// RunFile loads a graph definition, registers it in the app and runs it
// once per state file, printing the results to out in input order.
func RunFile(ctx context.Context, app *App, opts RunOptions, out io.Writer) error {
	def, err := graph.LoadDefinition(opts.GraphPath)
	if err != nil {
		return err
	}
	if opts.MaxSteps > 0 {
		def.MaxSteps = opts.MaxSteps
	}

	g, err := app.Service.CreateGraph(ctx, *def)
	if err != nil {
		return err
	}

	states := make([]map[string]any, max(len(opts.StateFiles), 1))
	for i, path := range opts.StateFiles {
		if states[i], err = LoadState(path); err != nil {
			return err
		}
	}

	records := make([]*domain.RunRecord, len(states))
	eg, egCtx := errgroup.WithContext(ctx)
	if opts.Parallel > 0 {
		eg.SetLimit(opts.Parallel)
	}
	for i, state := range states {
		eg.Go(func() error {
			rec, err := app.Service.RunGraph(egCtx, workflow.RunRequest{GraphID: g.ID, InitialState: state})
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	if err := printRecords(out, records, opts); err != nil {
		return err
	}

	failed := 0
	for _, rec := range records {
		if rec.Status == domain.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d runs failed", ErrRunFailed, failed, len(records))
	}
	return nil
}

func printRecords(out io.Writer, records []*domain.RunRecord, opts RunOptions) error {
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if len(records) == 1 {
			return enc.Encode(records[0])
		}
		return enc.Encode(records)
	}

	for i, rec := range records {
		if len(opts.StateFiles) > 1 {
			if _, err := fmt.Fprintf(out, "== %s\n", opts.StateFiles[i]); err != nil {
				return err
			}
		}
		if err := tui.PrintRun(out, rec, opts.Verbose); err != nil {
			return err
		}
	}
	return nil
}

// LoadState reads an initial state from a JSON or YAML file (by extension).
func LoadState(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	state := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &state)
	default:
		err = yaml.Unmarshal(data, &state)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse state: %w", path, err)
	}
	return state, nil
}
