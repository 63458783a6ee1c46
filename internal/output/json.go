package output

import (
	"encoding/json"
	"sync"

	"github.com/spf13/afero"

	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/metrics"
)

// jsonDocument is the persisted-state JSON shape: {testName, summary,
// results[], timeline_data[], step_statistics[], error_details[]}.
type jsonDocument struct {
	TestName        string                        `json:"testName"`
	Summary         metrics.Summary               `json:"summary"`
	Results         []lib.Result                  `json:"results"`
	TimelineData    []metrics.TimelineBucket       `json:"timeline_data"`
	StepStatistics  map[string]metrics.StepStats   `json:"step_statistics"`
	ErrorDetails    []metrics.ErrorExemplar        `json:"error_details"`
}

// JSONOutput buffers results in memory and writes the full document once,
// on Finalize (WriteSummary only stores the summary), since the configured
// shape is a single document per run
// rather than a stream of newline-delimited records.
type JSONOutput struct {
	fs   afero.Fs
	path string

	mu      sync.Mutex
	summary metrics.Summary
	results []lib.Result
}

// NewJSON builds a JSON output writing to path.
func NewJSON(fs afero.Fs, path string) *JSONOutput {
	return &JSONOutput{fs: fs, path: path}
}

func (o *JSONOutput) Initialize() error {
	return nil
}

func (o *JSONOutput) WriteResult(r lib.Result) {
	o.mu.Lock()
	o.results = append(o.results, r)
	o.mu.Unlock()
}

func (o *JSONOutput) WriteSummary(s metrics.Summary) {
	o.mu.Lock()
	o.summary = s
	o.mu.Unlock()
}

func (o *JSONOutput) Finalize() error {
	o.mu.Lock()
	doc := jsonDocument{
		TestName:       o.summary.TestName,
		Summary:        o.summary,
		Results:        o.results,
		TimelineData:   o.summary.Timeline,
		StepStatistics: o.summary.PerStep,
		ErrorDetails:   o.summary.TopErrors,
	}
	o.mu.Unlock()

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(o.fs, o.path, b, 0o644)
}
