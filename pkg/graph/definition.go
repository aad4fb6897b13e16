package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// DefaultMaxSteps is applied by loaders when a definition leaves max_steps unset
// and the deployer did not configure another default.
const DefaultMaxSteps = 100

// NodeSpec binds a node id to a registered tool.
type NodeSpec struct {
	Tool string `yaml:"tool_name" json:"tool_name"`
}

// Definition is the declarative description of a graph.
type Definition struct {
	Name      string              `yaml:"name" json:"name"`
	Nodes     map[string]NodeSpec `yaml:"nodes" json:"nodes"`
	Edges     map[string]string   `yaml:"edges" json:"edges"` // empty (or null) target = terminal
	StartNode string              `yaml:"start_node" json:"start_node"`
	MaxSteps  int                 `yaml:"max_steps,omitempty" json:"max_steps,omitempty"`

	// StateSchema is an optional JSON Schema the initial state must satisfy.
	StateSchema map[string]any `yaml:"state_schema,omitempty" json:"state_schema,omitempty"`
}

// Has reports whether id is a node of the definition.
func (d *Definition) Has(id string) bool {
	_, ok := d.Nodes[id]
	return ok
}

// NodeIDs returns the node ids in sorted order.
func (d *Definition) NodeIDs() []string {
	ids := make([]string, 0, len(d.Nodes))
	for id := range d.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Check performs the structural checks required before a graph can be run:
// a start node that belongs to the graph and a tool for every node.
// Dangling edges are allowed here; they fail at run time (see Validate for
// the strict variant).
func (d *Definition) Check() error {
	if len(d.Nodes) == 0 {
		return domain.Invalidf("graph %q has no nodes", d.Name)
	}
	if d.StartNode == "" {
		return domain.Invalidf("graph %q has no start_node", d.Name)
	}
	if !d.Has(d.StartNode) {
		return domain.Invalidf("start_node %q must be one of the graph nodes", d.StartNode)
	}
	for _, id := range d.NodeIDs() {
		if d.Nodes[id].Tool == "" {
			return domain.Invalidf("node %q missing tool_name", id)
		}
	}
	if d.MaxSteps < 0 {
		return domain.Invalidf("max_steps must be positive, got %d", d.MaxSteps)
	}
	return nil
}

// EdgeTable builds the edge table of the definition.
func (d *Definition) EdgeTable() *EdgeTable {
	table := NewEdgeTable(d)
	for from, to := range d.Edges {
		table.SetDefault(from, to)
	}
	return table
}

// ParseDefinition decodes a definition. Format is "json" or "yaml".
func ParseDefinition(data []byte, format string) (*Definition, error) {
	var def Definition
	switch strings.ToLower(format) {
	case "json":
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse graph json: %w", err)
		}
	case "yaml", "yml", "":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse graph yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported graph format %q", format)
	}
	return &def, nil
}

// LoadDefinition reads a graph definition file (YAML or JSON, by extension).
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	format := "yaml"
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		format = "json"
	}

	def, err := ParseDefinition(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return def, nil
}
