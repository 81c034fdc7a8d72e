// Package importer coordinates one import attempt from raw input to
// committed tables.
//
// The package is responsible for:
//   - The per-attempt state machine Idle -> Staged -> Committed | Rejected
//   - Size and format guardrails, enforced before any parser runs
//   - Format dispatch to the delimited, JSON, workbook, and HTML parsers
//   - Commit-time identifier assignment against the live identifier set
//   - The refresh flow, which skips naming and validates the schema instead
//
// Every failure an attempt can produce is one of the recoverable taxonomy
// errors in internal/table; nothing here panics or propagates a fault past
// the attempt boundary.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"tableimport/internal/dbsource"
	"tableimport/internal/infer"
	"tableimport/internal/ingest"
	"tableimport/internal/metrics"
	"tableimport/internal/naming"
	"tableimport/internal/parser/delimited"
	"tableimport/internal/parser/htmltable"
	"tableimport/internal/parser/jsonrows"
	"tableimport/internal/parser/workbook"
	"tableimport/internal/refresh"
	"tableimport/internal/table"
)

// State is the lifecycle position of one import attempt.
type State string

const (
	StateIdle      State = "idle"
	StateStaged    State = "staged"
	StateCommitted State = "committed"
	StateRejected  State = "rejected"
)

// Input formats an attempt can stage. Database imports bypass text parsing.
const (
	FormatCSV      = "csv"
	FormatTSV      = "tsv"
	FormatJSON     = "json"
	FormatWorkbook = "xlsx"
	FormatHTML     = "html"
	FormatDatabase = "database"
)

// Collaborators are the external operations the orchestrator hands finished
// tables to. LoadTable inserts or replaces the table in the loaded set;
// FetchFieldSemanticType asks the backend to refine column semantic types
// and is fire-and-forget.
type Collaborators interface {
	LoadTable(ctx context.Context, t *table.Table) error
	FetchFieldSemanticType(ctx context.Context, t *table.Table)
}

// TextFetcher retrieves text content for URL imports and stream refreshes.
// *fetch.Client satisfies it.
type TextFetcher interface {
	FetchText(ctx context.Context, url string) (body string, contentType string, err error)
}

// Ingestor submits database-sourced tables to the downstream ingest
// collaborator. *ingest.Client satisfies it.
type Ingestor interface {
	Submit(ctx context.Context, r ingest.Request) (*ingest.Response, error)
}

// Limits are the guardrails checked before parsing.
type Limits struct {
	MaxPasteBytes     int64
	MaxFileBytes      int64
	AllowedExtensions []string
	DisableFileUpload bool
	DisableDatabase   bool
}

// Options configures an Importer.
type Options struct {
	Limits        Limits
	Collaborators Collaborators

	// Fetcher serves URL imports and stream refreshes. Required only when
	// those paths are used.
	Fetcher TextFetcher

	// Database serves database imports and database refreshes. Required only
	// when those paths are used.
	Database dbsource.Source

	// Ingest, when set, receives one ingest request per committed
	// database-sourced table, carrying the table's import directive.
	Ingest Ingestor

	// ExistingIDs reads the live identifier set. Commit reads it at commit
	// time, not stage time, so concurrent attempts never mint colliding IDs.
	ExistingIDs func() map[string]struct{}

	// Metrics defaults to metrics.Nop. Logger defaults to slog.Default().
	Metrics metrics.Backend
	Logger  *slog.Logger

	// Unexported test seams.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
}

// Importer runs import attempts. Attempts are causally independent; the
// only shared state is the live identifier set read through ExistingIDs.
type Importer struct {
	limits  Limits
	collab  Collaborators
	fetcher TextFetcher
	db      dbsource.Source
	ingest  Ingestor

	existingIDs func() map[string]struct{}

	metrics metrics.Backend
	log     *slog.Logger

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
}

// New constructs an Importer.
//
// Edge cases:
//   - Collaborators and ExistingIDs are required; New panics without them
//     since no attempt can commit.
func New(opts Options) *Importer {
	if opts.Collaborators == nil {
		panic("importer: Options.Collaborators is required")
	}
	if opts.ExistingIDs == nil {
		panic("importer: Options.ExistingIDs is required")
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	return &Importer{
		limits:      opts.Limits,
		collab:      opts.Collaborators,
		fetcher:     opts.Fetcher,
		db:          opts.Database,
		ingest:      opts.Ingest,
		existingIDs: opts.ExistingIDs,
		metrics:     m,
		log:         log,
		now:         now,
		newTicker:   newTicker,
	}
}

// Staged is one parsed-but-not-committed table held for review. The caller
// may deselect it or set an import directive before committing.
type Staged struct {
	Table         *table.Table
	SuggestedName string
	Format        string
	Source        table.Source
	Selected      bool
	Directive     table.ImportDirective
}

// Attempt is the state of one import attempt. Reason is set when the
// attempt is Rejected.
type Attempt struct {
	ID     string
	State  State
	Staged []*Staged
	Reason error
}

func newAttempt() *Attempt {
	return &Attempt{ID: uuid.NewString(), State: StateIdle}
}

func (imp *Importer) reject(a *Attempt, source string, err error) (*Attempt, error) {
	a.State = StateRejected
	a.Reason = err
	imp.metrics.IncCounter(metrics.ImportAttemptsTotal, 1, metrics.Labels{"source": source, "status": "rejected"})
	imp.metrics.IncCounter(metrics.ImportFailuresTotal, 1, metrics.Labels{"stage": "stage"})
	imp.log.Warn("import rejected", "attempt", a.ID, "source", source, "reason", err.Error())
	return a, err
}

func (imp *Importer) stage(a *Attempt, format string, src table.Source, tables ...*table.Table) {
	for _, t := range tables {
		suggested := t.DisplayID
		if suggested == "" {
			suggested = "table"
		}
		a.Staged = append(a.Staged, &Staged{
			Table:         t,
			SuggestedName: suggested,
			Format:        format,
			Source:        src,
			Selected:      true,
		})
	}
	a.State = StateStaged
}

// StagePaste parses pasted text into a staged attempt.
//
// The paste size ceiling is enforced before parsing. Input that reads as a
// JSON document routes through the object-array normalizer, everything else
// through the delimited parser.
func (imp *Importer) StagePaste(text string) (*Attempt, error) {
	a := newAttempt()
	start := imp.now()

	if int64(len(text)) > imp.limits.MaxPasteBytes {
		return imp.reject(a, "paste", &table.SizeLimitError{
			What: "paste", Limit: imp.limits.MaxPasteBytes, Size: int64(len(text)),
		})
	}

	format := FormatCSV
	var (
		t   *table.Table
		err error
	)
	if looksLikeJSON(text) {
		format = FormatJSON
		t, err = jsonrows.Parse(text)
	} else {
		if delimited.DetectDelimiter(text) == '\t' {
			format = FormatTSV
		}
		t, err = delimited.Parse(text)
	}
	imp.observeStage("parse", start, err)
	if err != nil {
		return imp.reject(a, "paste", err)
	}

	imp.stage(a, format, table.Source{Type: table.SourcePaste}, t)
	return a, nil
}

// StageFile parses an uploaded file into a staged attempt.
//
// Guardrail order: disable flag, extension allow-list, size ceiling, then
// format dispatch by extension. Workbooks stage one table per sheet.
func (imp *Importer) StageFile(filename string, data []byte) (*Attempt, error) {
	a := newAttempt()
	start := imp.now()

	if imp.limits.DisableFileUpload {
		return imp.reject(a, "file", fmt.Errorf("file upload is disabled on this server"))
	}

	ext := strings.ToLower(path.Ext(filename))
	if !imp.extensionAllowed(ext) {
		return imp.reject(a, "file", &table.UnsupportedFormatError{Name: filename})
	}
	if int64(len(data)) > imp.limits.MaxFileBytes {
		return imp.reject(a, "file", &table.SizeLimitError{
			What: "file", Limit: imp.limits.MaxFileBytes, Size: int64(len(data)),
		})
	}

	base := naming.NormalizeFieldName(strings.TrimSuffix(path.Base(filename), ext))
	src := table.Source{Type: table.SourceFile}

	switch ext {
	case ".xlsx", ".xls":
		sheets, err := workbook.Load(data)
		imp.observeStage("parse", start, err)
		if err != nil {
			return imp.reject(a, "file", err)
		}
		for _, sheet := range sheets {
			sheet.Table.DisplayID = sheet.Name
			imp.stage(a, FormatWorkbook, src, sheet.Table)
		}
		return a, nil

	case ".json":
		t, err := jsonrows.Parse(delimited.DecodeText(data))
		imp.observeStage("parse", start, err)
		if err != nil {
			return imp.reject(a, "file", err)
		}
		t.DisplayID = base
		imp.stage(a, FormatJSON, src, t)
		return a, nil

	default: // .csv, .tsv
		text := delimited.DecodeText(data)
		format := FormatCSV
		if ext == ".tsv" || delimited.DetectDelimiter(text) == '\t' {
			format = FormatTSV
		}
		t, err := delimited.Parse(text)
		imp.observeStage("parse", start, err)
		if err != nil {
			return imp.reject(a, "file", err)
		}
		t.DisplayID = base
		imp.stage(a, format, src, t)
		return a, nil
	}
}

// StageURL fetches a URL and parses the body into a staged attempt.
//
// Format selection: URL suffix first (.csv, .tsv, .json), then content
// type, then content sniffing. HTML pages stage one table per <table>
// element found.
func (imp *Importer) StageURL(ctx context.Context, url string) (*Attempt, error) {
	a := newAttempt()
	if imp.fetcher == nil {
		return imp.reject(a, "url", fmt.Errorf("url import is not configured"))
	}

	fetchStart := imp.now()
	body, contentType, err := imp.fetcher.FetchText(ctx, url)
	imp.observeStage("fetch", fetchStart, err)
	if err != nil {
		return imp.reject(a, "url", err)
	}
	imp.metrics.ObserveHistogram(metrics.FetchBytes, float64(len(body)), metrics.Labels{"status": "200"})

	base := urlBaseName(url)
	src := table.Source{Type: table.SourceURL, URL: url}
	format := sniffTextFormat(url, contentType, body)

	parseStart := imp.now()
	switch format {
	case FormatHTML:
		tables, err := htmltable.Extract(body)
		imp.observeStage("parse", parseStart, err)
		if err != nil {
			return imp.reject(a, "url", err)
		}
		for _, t := range tables {
			t.DisplayID = base
		}
		imp.stage(a, FormatHTML, src, tables...)
		return a, nil

	case FormatJSON:
		t, err := jsonrows.Parse(body)
		imp.observeStage("parse", parseStart, err)
		if err != nil {
			return imp.reject(a, "url", err)
		}
		t.DisplayID = base
		imp.stage(a, FormatJSON, src, t)
		return a, nil

	default:
		t, err := delimited.Parse(body)
		imp.observeStage("parse", parseStart, err)
		if err != nil {
			return imp.reject(a, "url", err)
		}
		t.DisplayID = base
		imp.stage(a, format, src, t)
		return a, nil
	}
}

// StageDatabase fetches the selected tables from the configured database
// source and stages one table per selection.
//
// Selections with mode "none" are skipped. Each staged table carries a
// database source tag with CanRefresh set, and keeps its directive for the
// downstream ingest request.
func (imp *Importer) StageDatabase(ctx context.Context, selections map[string]table.ImportDirective) (*Attempt, error) {
	a := newAttempt()

	if imp.limits.DisableDatabase {
		return imp.reject(a, "database", fmt.Errorf("database import is disabled on this server"))
	}
	if imp.db == nil {
		return imp.reject(a, "database", fmt.Errorf("no database source configured"))
	}

	for name, d := range selections {
		if d.Mode == table.ImportNone {
			continue
		}
		if err := d.Validate(); err != nil {
			return imp.reject(a, "database", err)
		}

		start := imp.now()
		names, rows, err := imp.db.FetchRows(ctx, name, d)
		imp.observeStage("fetch", start, err)
		if err != nil {
			return imp.reject(a, "database", err)
		}

		t := &table.Table{
			DisplayID: naming.NormalizeFieldName(name),
			Names:     names,
			Metadata:  infer.Columns(names, rows, 0),
			Rows:      rows,
		}
		t.NormalizeRows()
		src := table.Source{
			Type:          table.SourceDatabase,
			DatabaseTable: name,
			CanRefresh:    true,
		}
		imp.stage(a, FormatDatabase, src, t)
		a.Staged[len(a.Staged)-1].Directive = d
	}

	if len(a.Staged) == 0 {
		return imp.reject(a, "database", fmt.Errorf("no tables selected"))
	}
	return a, nil
}

// Commit finalizes a staged attempt: every selected table gets a unique
// identifier resolved against the live identifier set, its source tag, and
// is handed to the Load collaborator, then the semantic-type collaborator.
//
// Batch semantics are per-table: a table that fails to load does not roll
// back its siblings. When some tables load and some fail, the attempt is
// Committed and the returned error is a PartialBatchError listing both
// sides. When every table fails, the attempt is Rejected.
//
// A table whose Load succeeded but whose ingest submission failed is not
// unloaded: it appears in PartialBatchError.Failed yet remains with the
// Load collaborator, usable locally and eligible for a retried import.
func (imp *Importer) Commit(ctx context.Context, a *Attempt) ([]*table.Table, error) {
	if a.State != StateStaged {
		return nil, fmt.Errorf("commit: attempt is %s, not staged", a.State)
	}

	selected := make([]*Staged, 0, len(a.Staged))
	for _, s := range a.Staged {
		if s.Selected && s.Directive.Mode != table.ImportNone {
			selected = append(selected, s)
		}
	}
	if len(selected) == 0 {
		a.State = StateRejected
		a.Reason = fmt.Errorf("commit: no tables selected")
		return nil, a.Reason
	}

	// Live set read at commit time; IDs minted within this batch join it so
	// sibling sheets never collide with each other.
	live := imp.existingIDs()

	var loaded []*table.Table
	failed := make(map[string]string)

	start := imp.now()
	for _, s := range selected {
		t := s.Table
		t.ID = naming.Resolve(s.SuggestedName, live)
		live[t.ID] = struct{}{}
		t.Anchored = true
		t.CreatedBy = "user"
		t.Source = s.Source

		if err := imp.collab.LoadTable(ctx, t); err != nil {
			failed[t.ID] = err.Error()
			imp.metrics.IncCounter(metrics.ImportFailuresTotal, 1, metrics.Labels{"stage": "load"})
			imp.log.Warn("table load failed", "attempt", a.ID, "table", t.ID, "err", err.Error())
			continue
		}
		if err := imp.submitIngest(ctx, s, t); err != nil {
			failed[t.ID] = err.Error()
			imp.metrics.IncCounter(metrics.ImportFailuresTotal, 1, metrics.Labels{"stage": "ingest"})
			imp.log.Warn("table ingest failed", "attempt", a.ID, "table", t.ID, "err", err.Error())
			continue
		}
		imp.collab.FetchFieldSemanticType(ctx, t)

		loaded = append(loaded, t)
		imp.metrics.IncCounter(metrics.ImportTablesTotal, 1, metrics.Labels{"format": s.Format})
		imp.metrics.IncCounter(metrics.ImportRowsTotal, float64(len(t.Rows)), metrics.Labels{"format": s.Format})
		imp.log.Info("table committed", "attempt", a.ID, "table", t.ID, "format", s.Format, "rows", len(t.Rows))
	}
	sourceLabel := "unknown"
	if len(selected) > 0 {
		sourceLabel = string(selected[0].Source.Type)
	}

	switch {
	case len(failed) == 0:
		a.State = StateCommitted
		imp.observeStage("commit", start, nil)
		imp.metrics.IncCounter(metrics.ImportAttemptsTotal, 1, metrics.Labels{"source": sourceLabel, "status": "committed"})
		return loaded, nil

	case len(loaded) == 0:
		a.State = StateRejected
		a.Reason = &table.PartialBatchError{Failed: failed}
		imp.observeStage("commit", start, a.Reason)
		imp.metrics.IncCounter(metrics.ImportAttemptsTotal, 1, metrics.Labels{"source": sourceLabel, "status": "rejected"})
		return nil, a.Reason

	default:
		a.State = StateCommitted
		names := make([]string, 0, len(loaded))
		for _, t := range loaded {
			names = append(names, t.ID)
		}
		err := &table.PartialBatchError{Loaded: names, Failed: failed}
		imp.observeStage("commit", start, err)
		imp.metrics.IncCounter(metrics.ImportAttemptsTotal, 1, metrics.Labels{"source": sourceLabel, "status": "partial"})
		return loaded, err
	}
}

// Refresh re-fetches a refreshable table's rows, validates the schema
// against the existing column set, and installs the replacement on success.
//
// Naming is skipped: the table identity is fixed. The replacement is whole,
// never a merge.
//
// Errors:
//   - When the source is not refreshable.
//   - SchemaMismatchError when the candidate columns differ.
//   - NetworkError / dbsource errors from the re-fetch.
func (imp *Importer) Refresh(ctx context.Context, t *table.Table) error {
	if !t.Source.Refreshable() {
		return fmt.Errorf("refresh: source type %q is not refreshable", t.Source.Type)
	}

	start := imp.now()
	rows, err := imp.refetchRows(ctx, t)
	if err != nil {
		imp.observeStage("refresh", start, err)
		imp.metrics.IncCounter(metrics.ImportFailuresTotal, 1, metrics.Labels{"stage": "refresh"})
		return err
	}

	validated, err := refresh.Validate(t.Names, rows)
	imp.observeStage("refresh", start, err)
	if err != nil {
		imp.metrics.IncCounter(metrics.ImportFailuresTotal, 1, metrics.Labels{"stage": "refresh"})
		return err
	}

	refresh.Replace(t, validated)
	t.SetLastRefreshed(imp.now())
	imp.log.Info("table refreshed", "table", t.ID, "rows", len(validated))
	return nil
}

// submitIngest posts one committed database-sourced table to the ingest
// collaborator. Other sources and unconfigured ingest are no-ops: their
// rows already live with the Load collaborator.
func (imp *Importer) submitIngest(ctx context.Context, s *Staged, t *table.Table) error {
	if imp.ingest == nil || s.Source.Type != table.SourceDatabase {
		return nil
	}

	req := ingest.Request{
		DataLoaderType: "database",
		DataLoaderParams: map[string]any{
			"table": s.Source.DatabaseTable,
		},
		TableName: t.ID,
	}
	if s.Directive.Mode == table.ImportSubset {
		req.ImportOptions = &ingest.ImportOptions{
			RowLimit:    s.Directive.RowLimit,
			SortColumns: s.Directive.SortColumns,
			SortOrder:   s.Directive.SortOrder,
		}
	}
	_, err := imp.ingest.Submit(ctx, req)
	return err
}

func (imp *Importer) refetchRows(ctx context.Context, t *table.Table) ([]table.Row, error) {
	switch t.Source.Type {
	case table.SourceStream:
		if imp.fetcher == nil {
			return nil, fmt.Errorf("refresh: no fetcher configured")
		}
		body, contentType, err := imp.fetcher.FetchText(ctx, t.Source.URL)
		if err != nil {
			return nil, err
		}
		parsed, err := parseRefreshBody(t.Source.URL, contentType, body)
		if err != nil {
			return nil, err
		}
		return parsed.Rows, nil

	case table.SourceDatabase:
		if imp.db == nil {
			return nil, fmt.Errorf("refresh: no database source configured")
		}
		_, rows, err := imp.db.FetchRows(ctx, t.Source.DatabaseTable, table.ImportDirective{Mode: table.ImportFull})
		return rows, err

	default:
		return nil, fmt.Errorf("refresh: source type %q is not refreshable", t.Source.Type)
	}
}

func parseRefreshBody(url, contentType, body string) (*table.Table, error) {
	switch sniffTextFormat(url, contentType, body) {
	case FormatJSON:
		return jsonrows.Parse(body)
	default:
		return delimited.Parse(body)
	}
}

func (imp *Importer) extensionAllowed(ext string) bool {
	for _, allowed := range imp.limits.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (imp *Importer) observeStage(stage string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	imp.metrics.ObserveHistogram(metrics.ImportStageDurationSeconds,
		imp.now().Sub(start).Seconds(),
		metrics.Labels{"stage": stage, "status": status})
}

func looksLikeJSON(text string) bool {
	trimmed := strings.TrimLeft(text, " \t\r\n\uFEFF")
	return strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{")
}

// sniffTextFormat picks a parser for fetched text: URL suffix, then content
// type, then content inspection.
func sniffTextFormat(url, contentType, body string) string {
	lowered := strings.ToLower(url)
	if i := strings.IndexAny(lowered, "?#"); i >= 0 {
		lowered = lowered[:i]
	}
	switch {
	case strings.HasSuffix(lowered, ".csv"):
		return FormatCSV
	case strings.HasSuffix(lowered, ".tsv"):
		return FormatTSV
	case strings.HasSuffix(lowered, ".json"):
		return FormatJSON
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "text/html"):
		return FormatHTML
	case strings.Contains(ct, "json"):
		return FormatJSON
	case strings.Contains(ct, "text/tab-separated-values"):
		return FormatTSV
	case strings.Contains(ct, "csv"):
		return FormatCSV
	}

	if htmltable.Sniff(body) {
		return FormatHTML
	}
	if looksLikeJSON(body) {
		return FormatJSON
	}
	if delimited.DetectDelimiter(body) == '\t' {
		return FormatTSV
	}
	return FormatCSV
}

// urlBaseName derives a suggested table name from the URL's last path
// segment.
func urlBaseName(url string) string {
	trimmed := url
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	base := path.Base(trimmed)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	name := naming.NormalizeFieldName(base)
	if name == "" || name == "field" {
		return "table"
	}
	return name
}
