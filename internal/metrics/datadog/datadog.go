// Package datadog implements a Datadog backend for the internal/metrics
// package.
//
// Metrics are buffered in memory and submitted on a ticker (default once per
// minute), with a final flush on Close. Short-lived CLI imports get one
// tail flush; the long-running server gets a time series.
//
// Concurrency model:
//   - pipeline goroutines call IncCounter/ObserveHistogram at any time
//   - Flush snapshots and resets buffers under a mutex, then submits
//     out-of-lock
//   - the flush loop calls Flush periodically; Close stops the loop
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"tableimport/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to
	// "tableimport".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets these; tests use
	// them to avoid real submission and nondeterministic clocks.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal slice of the Datadog SDK the backend
// needs. The SDK exposes a concrete *datadogV2.MetricsApi, which cannot be
// stubbed without real HTTP; depending on this interface keeps tests
// deterministic.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	attemptCounts map[string]float64 // source\x00status -> count
	tableCounts   map[string]float64 // format -> count
	rowCounts     map[string]float64 // format -> count
	failureCounts map[string]float64 // stage -> count
	stageDur      map[string][]float64
	fetchBytes    map[string][]float64 // status -> samples
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client.
//
// Edge cases:
//   - If opts.FlushEvery <= 0, defaults to 60s.
//   - If opts.JobName is empty, defaults to "tableimport".
//   - Environment tag selection uses ENV then DD_ENV, otherwise env:unknown.
//
// Network errors surface from Flush, not from construction.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "tableimport"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		client := dd.NewAPIClient(dd.NewConfiguration())
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),

		baseTags: baseTags,

		now:       nowFn,
		newTicker: newTicker,

		attemptCounts: make(map[string]float64),
		tableCounts:   make(map[string]float64),
		rowCounts:     make(map[string]float64),
		failureCounts: make(map[string]float64),
		stageDur:      make(map[string][]float64),
		fetchBytes:    make(map[string][]float64),
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the background flush loop and performs one final Flush.
// Close must be called at most once.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend. Unknown metric names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.ImportAttemptsTotal:
		k := pairKey(labelOr(labels, "source", "unknown"), labelOr(labels, "status", "unknown"))
		b.attemptCounts[k] += delta

	case metrics.ImportTablesTotal:
		b.tableCounts[labelOr(labels, "format", "unknown")] += delta

	case metrics.ImportRowsTotal:
		b.rowCounts[labelOr(labels, "format", "unknown")] += delta

	case metrics.ImportFailuresTotal:
		b.failureCounts[labelOr(labels, "stage", "unknown")] += delta
	}
}

// ObserveHistogram implements metrics.Backend. Unknown metric names are
// ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.ImportStageDurationSeconds:
		k := pairKey(labelOr(labels, "stage", "unknown"), labelOr(labels, "status", "unknown"))
		b.stageDur[k] = append(b.stageDur[k], value)

	case metrics.FetchBytes:
		status := labelOr(labels, "status", "unknown")
		b.fetchBytes[status] = append(b.fetchBytes[status], value)
	}
}

// snapshot holds one flush window's buffered state, detached from the
// backend so payload building runs without the lock.
type snapshot struct {
	attemptCounts map[string]float64
	tableCounts   map[string]float64
	rowCounts     map[string]float64
	failureCounts map[string]float64
	stageDur      map[string][]float64
	fetchBytes    map[string][]float64
}

// snapshotAndReset grabs current buffered metrics and resets the buffers.
// Call with no lock held; it takes the lock internally and returns detached
// maps.
func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		attemptCounts: b.attemptCounts,
		tableCounts:   b.tableCounts,
		rowCounts:     b.rowCounts,
		failureCounts: b.failureCounts,
		stageDur:      b.stageDur,
		fetchBytes:    b.fetchBytes,
	}

	b.attemptCounts = make(map[string]float64)
	b.tableCounts = make(map[string]float64)
	b.rowCounts = make(map[string]float64)
	b.failureCounts = make(map[string]float64)
	b.stageDur = make(map[string][]float64)
	b.fetchBytes = make(map[string][]float64)

	return s
}

func (s snapshot) isEmpty() bool {
	return len(s.attemptCounts) == 0 &&
		len(s.tableCounts) == 0 &&
		len(s.rowCounts) == 0 &&
		len(s.failureCounts) == 0 &&
		len(s.stageDur) == 0 &&
		len(s.fetchBytes) == 0
}

// Flush submits buffered metrics to Datadog and resets local buffers.
//
// Edge cases:
//   - Returns nil if there is nothing to submit.
//   - Safe to call concurrently with IncCounter/ObserveHistogram.
//   - Buffers reset even if submission fails; delivery is best-effort.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	series := b.buildSeries(snap, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries constructs Datadog series for a snapshot at a fixed
// timestamp. Pure: no locks, no network, no clocks.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.attemptCounts)+len(s.tableCounts)+32)

	for k, v := range s.attemptCounts {
		if v == 0 {
			continue
		}
		source, status := splitPairKey(k)
		tags := withTags(b.baseTags, "source:"+source, "status:"+status)
		series = append(series, countSeries("tableimport.attempts.total", v, tags, nowUnix))
	}

	for format, v := range s.tableCounts {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "format:"+format)
		series = append(series, countSeries("tableimport.tables.total", v, tags, nowUnix))
	}

	for format, v := range s.rowCounts {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "format:"+format)
		series = append(series, countSeries("tableimport.rows.total", v, tags, nowUnix))
	}

	for stage, v := range s.failureCounts {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "stage:"+stage)
		series = append(series, countSeries("tableimport.failures.total", v, tags, nowUnix))
	}

	for k, samples := range s.stageDur {
		stage, status := splitPairKey(k)
		tags := withTags(b.baseTags, "stage:"+stage, "status:"+status)
		addPercentiles(&series, "tableimport.stage.duration_seconds", tags, samples, nowUnix)
	}

	for status, samples := range s.fetchBytes {
		tags := withTags(b.baseTags, "status:"+status)
		addPercentiles(&series, "tableimport.fetch.bytes", tags, samples, nowUnix)
	}

	return series
}

// addPercentiles appends a fixed set of percentile gauges for a sample set.
// Empty sample sets produce nothing; the input slice is not mutated.
func addPercentiles(series *[]datadogV2.MetricSeries, metricPrefix string, tags []string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series, gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix))
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func labelOr(labels metrics.Labels, key, fallback string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return fallback
}

func pairKey(a, b string) string {
	return a + "\x00" + b
}

func splitPairKey(k string) (a, b string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:import".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
