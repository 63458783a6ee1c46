package config

import (
	"encoding/json"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Parse decodes a configuration file from fs at path. YAML and JSON are
// structurally identical, so the format is picked by extension: .json is
// decoded as JSON, .yaml/.yml as YAML, and any other name is tried as YAML
// first with JSON as the fallback.
func Parse(fs afero.Fs, path string) (*Test, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	return ParseBytes(data, path)
}

// ParseBytes decodes raw config bytes, choosing the decoder from the file
// extension hint in name (may be empty, in which case YAML is tried first).
func ParseBytes(data []byte, name string) (*Test, error) {
	var t Test
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".json"):
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, err
		}
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &t); err != nil {
			if jsonErr := json.Unmarshal(data, &t); jsonErr != nil {
				return nil, err
			}
		}
	}
	applyDefaults(&t)
	return &t, nil
}

// applyDefaults fills in the documented defaults (CSV mode/exhaustion,
// scenario loop count) so later code never has to guard against the zero
// value meaning "unset".
func applyDefaults(t *Test) {
	for i := range t.Scenarios {
		s := &t.Scenarios[i]
		if s.Loop <= 0 {
			s.Loop = 1
		}
		if s.CSV != nil {
			if s.CSV.Mode == "" {
				s.CSV.Mode = "next"
			}
			if s.CSV.Exhaustion == "" {
				s.CSV.Exhaustion = "cycle"
			}
			if s.CSV.Delimiter == "" {
				s.CSV.Delimiter = ","
			}
		}
		for j := range s.Steps {
			if s.Steps[j].Retry != nil && s.Steps[j].Retry.MaxAttempts <= 0 {
				s.Steps[j].Retry.MaxAttempts = 1
			}
		}
	}
}
