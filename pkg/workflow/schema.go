package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// compileSchema prepares the optional state schema of a graph.
func compileSchema(raw map[string]any) (*gojsonschema.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, domain.Invalidf("state_schema is not serializable: %v", err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, domain.Invalidf("invalid state_schema: %v", err)
	}
	return schema, nil
}

// validateState checks the initial state against schema. The state goes
// through JSON first so Go numeric types compare like decoded request bodies.
func validateState(graphID string, schema *gojsonschema.Schema, state map[string]any) error {
	if schema == nil {
		return nil
	}
	if state == nil {
		state = map[string]any{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return &InvalidStateError{GraphID: graphID, Problems: []string{err.Error()}}
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &InvalidStateError{GraphID: graphID, Problems: problems}
}
