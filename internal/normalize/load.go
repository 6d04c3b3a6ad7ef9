package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// rulesFile is the document layout of a mask rules file.
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// ParseRules decodes a rules document. Unknown keys are rejected.
func ParseRules(data []byte) ([]Rule, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f rulesFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("normalize: parse rules: %w", err)
	}
	return f.Rules, nil
}

// LoadRules reads and parses a rules file from fs.
func LoadRules(fs afero.Fs, path string) ([]Rule, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("normalize: read rules: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// LoadRuleSet compiles the rules at path, or the embedded defaults when
// path is empty.
func LoadRuleSet(fs afero.Fs, path string) (*RuleSet, error) {
	if path == "" {
		return Default()
	}
	rules, err := LoadRules(fs, path)
	if err != nil {
		return nil, err
	}
	return Compile(rules)
}
