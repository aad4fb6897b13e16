package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/runs"
)

var (
	// ErrGraphNotFound is returned when a graph ID is not in the catalog.
	ErrGraphNotFound = errors.New("graph not found")

	// ErrRunNotFound is returned when a run ID has no stored record.
	ErrRunNotFound = domain.ErrRunNotFound

	// ErrRunExists is returned when a caller-provided run ID is already taken.
	ErrRunExists = runs.ErrRunExists
)

// InvalidStateError reports an initial state rejected by the graph's state schema.
type InvalidStateError struct {
	GraphID  string
	Problems []string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("initial state does not match schema of graph %s: %s", e.GraphID, strings.Join(e.Problems, "; "))
}
