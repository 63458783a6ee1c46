package output

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Spec is one parsed `outputs[]` config entry, shaped `name` or
// `name=argument` — e.g. `json=./results.json`,
// `influxdb=http://localhost:8086/loadtest`, `graphite=localhost:2003`.
type Spec struct {
	Name     string
	Argument string
}

// ParseSpec splits a raw `outputs[]` entry into its name and argument.
func ParseSpec(raw string) Spec {
	if idx := strings.IndexByte(raw, '='); idx >= 0 {
		return Spec{Name: raw[:idx], Argument: raw[idx+1:]}
	}
	return Spec{Name: raw}
}

// Build constructs the Manager for a test's configured outputs: a
// tagged-variant sink {JSON, CSV, InfluxDB/line-protocol, Graphite,
// webhook} per entry, dispatched through a name->constructor map.
func Build(raw []string, fs afero.Fs, log logrus.FieldLogger) (*Manager, error) {
	mgr := NewManager(log)
	for _, r := range raw {
		spec := ParseSpec(r)
		out, err := construct(spec, fs)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", r, err)
		}
		mgr.Add(spec.Name, out)
	}
	return mgr, nil
}

func construct(spec Spec, fs afero.Fs) (Output, error) {
	switch spec.Name {
	case "json":
		path := spec.Argument
		if path == "" {
			path = "results.json"
		}
		return NewJSON(fs, path), nil
	case "csv":
		path := spec.Argument
		if path == "" {
			path = "results.csv"
		}
		return NewCSV(fs, path), nil
	case "influxdb":
		return NewInfluxDB(spec.Argument)
	case "graphite":
		return NewGraphite(spec.Argument)
	case "webhook":
		return NewWebhook(spec.Argument)
	default:
		return nil, fmt.Errorf("unknown output type %q", spec.Name)
	}
}
