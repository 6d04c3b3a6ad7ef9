package harness

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Suite is a named list of scenarios with run settings.
type Suite struct {
	// Name identifies the suite in reports.
	Name string `yaml:"name"`

	// Description explains what the suite covers.
	Description string `yaml:"description,omitempty"`

	// Parallel bounds concurrent child processes. Zero means one.
	Parallel int `yaml:"parallel,omitempty"`

	// FailFast stops starting scenarios after the first failure.
	FailFast bool `yaml:"fail_fast,omitempty"`

	// Timeout bounds each scenario's child process. Zero means no limit.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Scenarios run in this order; results are reported in this order.
	Scenarios []Descriptor `yaml:"scenarios"`
}

// ParseSuite parses a suite document. Unknown fields are rejected.
func ParseSuite(data []byte) (*Suite, error) {
	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateSuite(&suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return &suite, nil
}

// LoadSuite reads and parses a suite file.
func LoadSuite(fs afero.Fs, path string) (*Suite, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	return ParseSuite(data)
}

// Check reports scenarios whose tags are not registered.
func (s *Suite) Check(r *Registry) error {
	var errs []error
	for i, d := range s.Scenarios {
		if _, err := r.Resolve(d); err != nil {
			errs = append(errs, fmt.Errorf("scenarios[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// validateSuite checks the structure of a parsed suite. Whether its tags
// are registered is Check's job, since that depends on the registry.
func validateSuite(s *Suite) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if len(s.Scenarios) == 0 {
		return fmt.Errorf("scenarios list is required and must be non-empty")
	}

	if s.Parallel < 0 {
		return fmt.Errorf("parallel must be >= 0, got %d", s.Parallel)
	}

	if s.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %s", s.Timeout)
	}

	for i, d := range s.Scenarios {
		if d.Type == "" {
			return fmt.Errorf("scenarios[%d]: type is required", i)
		}
	}
	return nil
}
