package output

import (
	"encoding/csv"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/metrics"
)

// csvHeader describes one row per Result rather than per metric sample:
// the timestamp and VU/iteration/scenario/step identity columns first, then
// the outcome columns. There is no metric-name or value column.
var csvHeader = []string{
	"timestamp", "vu_id", "iteration", "scenario", "step_name", "action",
	"duration_ms", "success", "status_code", "error_kind", "error_message",
}

// CSVOutput writes one row per result, streamed as results arrive (unlike
// JSONOutput, which buffers a single document).
type CSVOutput struct {
	fs   afero.Fs
	path string

	mu  sync.Mutex
	f   afero.File
	w   *csv.Writer
}

// NewCSV builds a CSV output writing to path.
func NewCSV(fs afero.Fs, path string) *CSVOutput {
	return &CSVOutput{fs: fs, path: path}
}

func (o *CSVOutput) Initialize() error {
	f, err := o.fs.Create(o.path)
	if err != nil {
		return err
	}
	o.f = f
	o.w = csv.NewWriter(f)
	return o.w.Write(csvHeader)
}

func (o *CSVOutput) WriteResult(r lib.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.w == nil {
		return
	}
	_ = o.w.Write([]string{
		r.Timestamp.Format(time.RFC3339Nano),
		strconv.FormatInt(r.VUID, 10),
		strconv.FormatInt(r.Iteration, 10),
		r.Scenario,
		r.StepName,
		r.Action,
		strconv.FormatFloat(r.DurationMS, 'f', -1, 64),
		strconv.FormatBool(r.Success),
		strconv.Itoa(r.StatusCode),
		string(r.ErrorKind),
		r.ErrorMessage,
	})
}

// WriteSummary is a no-op for CSV — the row-per-result format has no
// trailing-section convention; CSV's persisted layout is results only.
func (o *CSVOutput) WriteSummary(metrics.Summary) {}

func (o *CSVOutput) Finalize() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.w != nil {
		o.w.Flush()
		if err := o.w.Error(); err != nil {
			return err
		}
	}
	if o.f != nil {
		return o.f.Close()
	}
	return nil
}
