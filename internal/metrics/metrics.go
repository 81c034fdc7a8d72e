// Package metrics defines the minimal metrics contract the import pipeline
// emits against. Core code depends only on Backend; the Datadog
// implementation lives in a subpackage so pipelines without a metrics sink
// pay nothing.
package metrics

// Labels are metric dimensions, e.g. {"source": "file", "status": "ok"}.
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe for
// concurrent use.
type Backend interface {
	// IncCounter adds delta to a named counter. Non-positive deltas are
	// ignored.
	IncCounter(name string, delta float64, labels Labels)

	// ObserveHistogram records one sample of a named distribution. Negative
	// values are ignored.
	ObserveHistogram(name string, value float64, labels Labels)
}

// Metric names emitted by the pipeline. Backends may ignore names they do
// not know.
const (
	// ImportAttemptsTotal counts import attempts by source type and outcome.
	// Labels: source, status.
	ImportAttemptsTotal = "import_attempts_total"

	// ImportTablesTotal counts tables committed, by input format.
	// Labels: format.
	ImportTablesTotal = "import_tables_total"

	// ImportRowsTotal counts rows committed, by input format.
	// Labels: format.
	ImportRowsTotal = "import_rows_total"

	// ImportFailuresTotal counts failures by pipeline stage.
	// Labels: stage.
	ImportFailuresTotal = "import_failures_total"

	// ImportStageDurationSeconds samples per-stage wall time.
	// Labels: stage, status.
	ImportStageDurationSeconds = "import_stage_duration_seconds"

	// FetchBytes samples downloaded payload sizes for URL imports.
	// Labels: status.
	FetchBytes = "import_fetch_bytes"
)

// Nop is a Backend that discards everything. Use it when metrics are
// disabled so callers never nil-check.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}

var _ Backend = Nop{}
