package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Spec declares an external command exposed as a tool.
type Spec struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`

	// OutputKey receives stdout when it is not a JSON object.
	// Defaults to "<name>_output".
	OutputKey string `yaml:"output_key" json:"output_key"`

	// Timeout bounds a single invocation. Zero means the run context only.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// ConfigFile is the structure of tools.yaml.
type ConfigFile struct {
	Tools []Spec `yaml:"tools" json:"tools"`
}

// LoadFile reads a tools file (YAML or JSON, chosen by extension).
func LoadFile(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tools config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := validate(cfg.Tools); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg.Tools, nil
}

func validate(specs []Spec) error {
	var errs []error
	seen := make(map[string]bool, len(specs))
	for i, s := range specs {
		switch {
		case s.Name == "":
			errs = append(errs, fmt.Errorf("tools[%d]: name is required", i))
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("tools[%d]: duplicate tool %q", i, s.Name))
		}
		seen[s.Name] = true
		if s.Command == "" {
			errs = append(errs, fmt.Errorf("tools[%d]: command is required", i))
		}
		if s.Timeout < 0 {
			errs = append(errs, fmt.Errorf("tools[%d]: timeout must not be negative", i))
		}
	}
	return errors.Join(errs...)
}
