package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"tableimport/internal/dbsource"
	"tableimport/internal/ingest"
	"tableimport/internal/metrics"
	"tableimport/internal/table"
)

// fakeCollab records loaded tables and can be told to fail specific IDs.
type fakeCollab struct {
	mu        sync.Mutex
	loaded    []*table.Table
	semantic  []string
	failIDs   map[string]bool
	loadError error
}

func (f *fakeCollab) LoadTable(_ context.Context, t *table.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[t.ID] {
		return fmt.Errorf("backend rejected %s", t.ID)
	}
	if f.loadError != nil {
		return f.loadError
	}
	f.loaded = append(f.loaded, t)
	return nil
}

func (f *fakeCollab) FetchFieldSemanticType(_ context.Context, t *table.Table) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.semantic = append(f.semantic, t.ID)
}

// fakeFetcher serves canned bodies per URL.
type fakeFetcher struct {
	bodies      map[string]string
	contentType string
	err         error
	calls       int
	mu          sync.Mutex
}

func (f *fakeFetcher) FetchText(_ context.Context, url string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", "", f.err
	}
	return f.bodies[url], f.contentType, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeDB implements dbsource.Source with fixed rows per table.
type fakeDB struct {
	columns map[string][]string
	rows    map[string][]table.Row
	err     error
}

func (f *fakeDB) Close() {}

func (f *fakeDB) ListTables(context.Context) ([]dbsource.TableInfo, error) {
	var out []dbsource.TableInfo
	for name, rows := range f.rows {
		out = append(out, dbsource.TableInfo{Name: name, RowCount: int64(len(rows))})
	}
	return out, nil
}

func (f *fakeDB) FetchRows(_ context.Context, name string, _ table.ImportDirective) ([]string, []table.Row, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	cols, ok := f.columns[name]
	if !ok {
		return nil, nil, fmt.Errorf("no such table %q", name)
	}
	return cols, f.rows[name], nil
}

// fakeMetrics records histogram observations by name.
type fakeMetrics struct {
	mu         sync.Mutex
	histograms []observation
}

type observation struct {
	name   string
	labels metrics.Labels
}

func (f *fakeMetrics) IncCounter(string, float64, metrics.Labels) {}

func (f *fakeMetrics) ObserveHistogram(name string, _ float64, labels metrics.Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make(metrics.Labels, len(labels))
	for k, v := range labels {
		copied[k] = v
	}
	f.histograms = append(f.histograms, observation{name: name, labels: copied})
}

// stageStatus returns the status label of the last stage-duration sample
// for the given stage, or "" when none was recorded.
func (f *fakeMetrics) stageStatus(stage string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := ""
	for _, o := range f.histograms {
		if o.name == metrics.ImportStageDurationSeconds && o.labels["stage"] == stage {
			status = o.labels["status"]
		}
	}
	return status
}

func testLimits() Limits {
	return Limits{
		MaxPasteBytes:     1 << 20,
		MaxFileBytes:      10 << 20,
		AllowedExtensions: []string{".csv", ".tsv", ".json", ".xlsx", ".xls"},
	}
}

func newTestImporter(t *testing.T, opts Options) (*Importer, *fakeCollab) {
	t.Helper()
	collab := &fakeCollab{}
	if opts.Collaborators == nil {
		opts.Collaborators = collab
	}
	if opts.ExistingIDs == nil {
		opts.ExistingIDs = func() map[string]struct{} { return map[string]struct{}{} }
	}
	if opts.Limits.MaxPasteBytes == 0 {
		opts.Limits = testLimits()
	}
	return New(opts), collab
}

// TestStagePaste_EndToEnd covers the paste scenario end to end: parsing,
// typing, staging, and commit against an empty identifier set.
func TestStagePaste_EndToEnd(t *testing.T) {
	t.Parallel()

	imp, collab := newTestImporter(t, Options{})

	a, err := imp.StagePaste("x,y\n1,a\n2,b\n")
	if err != nil {
		t.Fatalf("StagePaste() error: %v", err)
	}
	if a.State != StateStaged {
		t.Fatalf("state = %s, want staged", a.State)
	}
	if len(a.Staged) != 1 {
		t.Fatalf("staged %d tables, want 1", len(a.Staged))
	}

	staged := a.Staged[0]
	if got := staged.Table.Names; len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Errorf("names = %v, want [x y]", got)
	}
	if staged.Table.Metadata["x"].Type != table.Integer {
		t.Errorf("x type = %s, want integer", staged.Table.Metadata["x"].Type)
	}
	if staged.Table.Metadata["y"].Type != table.String {
		t.Errorf("y type = %s, want string", staged.Table.Metadata["y"].Type)
	}
	if staged.Source.Type != table.SourcePaste {
		t.Errorf("source type = %s, want paste", staged.Source.Type)
	}

	loaded, err := imp.Commit(context.Background(), a)
	if err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if a.State != StateCommitted {
		t.Errorf("state = %s, want committed", a.State)
	}
	if len(loaded) != 1 || loaded[0].ID != "table" {
		t.Errorf("committed id = %q, want default name unchanged", loaded[0].ID)
	}
	if !loaded[0].Anchored || loaded[0].CreatedBy != "user" {
		t.Errorf("anchored=%v createdBy=%q, want pinned user table", loaded[0].Anchored, loaded[0].CreatedBy)
	}
	if len(collab.loaded) != 1 || len(collab.semantic) != 1 {
		t.Errorf("collaborators: loaded=%d semantic=%d, want 1/1", len(collab.loaded), len(collab.semantic))
	}
}

// TestStagePaste_Guardrails verifies size ceiling and parse failure both
// reject before or at staging.
func TestStagePaste_Guardrails(t *testing.T) {
	t.Parallel()

	imp, _ := newTestImporter(t, Options{Limits: Limits{MaxPasteBytes: 10, MaxFileBytes: 10}})

	a, err := imp.StagePaste("x,y\n1,a\n2,b\n")
	if err == nil {
		t.Fatal("oversized paste: want error")
	}
	var sizeErr *table.SizeLimitError
	if !errors.As(err, &sizeErr) {
		t.Errorf("error = %T, want *table.SizeLimitError", err)
	}
	if a.State != StateRejected {
		t.Errorf("state = %s, want rejected", a.State)
	}

	imp2, _ := newTestImporter(t, Options{})
	a2, err := imp2.StagePaste("")
	if err == nil {
		t.Fatal("empty paste: want error")
	}
	var parseErr *table.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("error = %T, want *table.ParseError", err)
	}
	if a2.State != StateRejected {
		t.Errorf("state = %s, want rejected", a2.State)
	}
}

// TestStagePaste_JSON verifies pasted JSON routes through the object-array
// normalizer.
func TestStagePaste_JSON(t *testing.T) {
	t.Parallel()

	imp, _ := newTestImporter(t, Options{})
	a, err := imp.StagePaste(`[{"a": 1, "b": 2}, {"a": 3, "c": 4}]`)
	if err != nil {
		t.Fatalf("StagePaste() error: %v", err)
	}
	staged := a.Staged[0]
	if staged.Format != FormatJSON {
		t.Errorf("format = %s, want json", staged.Format)
	}
	if got := staged.Table.Names; len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("names = %v, want union [a b c]", got)
	}
}

// TestStageFile verifies extension dispatch and the upload guardrails.
func TestStageFile(t *testing.T) {
	t.Parallel()

	imp, _ := newTestImporter(t, Options{})

	a, err := imp.StageFile("sales report.csv", []byte("id,amount\n1,9.50\n"))
	if err != nil {
		t.Fatalf("StageFile() error: %v", err)
	}
	staged := a.Staged[0]
	if staged.SuggestedName != "sales_report" {
		t.Errorf("suggested name = %q, want sales_report", staged.SuggestedName)
	}
	if staged.Source.Type != table.SourceFile {
		t.Errorf("source type = %s, want file", staged.Source.Type)
	}
	if staged.Table.Metadata["amount"].Type != table.Number {
		t.Errorf("amount type = %s, want number", staged.Table.Metadata["amount"].Type)
	}
}

func TestStageFile_Rejections(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		limits := testLimits()
		limits.DisableFileUpload = true
		imp, _ := newTestImporter(t, Options{Limits: limits})
		a, err := imp.StageFile("a.csv", []byte("x\n1\n"))
		if err == nil || a.State != StateRejected {
			t.Fatal("disabled upload: want rejection")
		}
		if !strings.Contains(err.Error(), "disabled") {
			t.Errorf("error %q should explain the disable flag", err)
		}
	})

	t.Run("unknown extension", func(t *testing.T) {
		t.Parallel()
		imp, _ := newTestImporter(t, Options{})
		_, err := imp.StageFile("notes.txt", []byte("x\n1\n"))
		var formatErr *table.UnsupportedFormatError
		if !errors.As(err, &formatErr) {
			t.Fatalf("error = %T, want *table.UnsupportedFormatError", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		t.Parallel()
		limits := testLimits()
		limits.MaxFileBytes = 4
		imp, _ := newTestImporter(t, Options{Limits: limits})
		_, err := imp.StageFile("a.csv", []byte("x\n1\n2\n"))
		var sizeErr *table.SizeLimitError
		if !errors.As(err, &sizeErr) {
			t.Fatalf("error = %T, want *table.SizeLimitError", err)
		}
	})
}

// TestStageURL verifies suffix-driven format selection and fetch failure
// handling.
func TestStageURL(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://example.com/cities.csv": "city,pop\nParis,2100000\n",
	}}
	imp, _ := newTestImporter(t, Options{Fetcher: fetcher})

	a, err := imp.StageURL(context.Background(), "https://example.com/cities.csv")
	if err != nil {
		t.Fatalf("StageURL() error: %v", err)
	}
	staged := a.Staged[0]
	if staged.SuggestedName != "cities" {
		t.Errorf("suggested name = %q, want cities", staged.SuggestedName)
	}
	if staged.Source.Type != table.SourceURL || staged.Source.URL != "https://example.com/cities.csv" {
		t.Errorf("source = %+v, want url source", staged.Source)
	}
}

func TestStageURL_HTML(t *testing.T) {
	t.Parallel()

	page := `<html><body><table>
<tr><th>city</th><th>pop</th></tr>
<tr><td>Paris</td><td>2100000</td></tr>
</table></body></html>`
	fetcher := &fakeFetcher{
		bodies:      map[string]string{"https://example.com/stats": page},
		contentType: "text/html; charset=utf-8",
	}
	imp, _ := newTestImporter(t, Options{Fetcher: fetcher})

	a, err := imp.StageURL(context.Background(), "https://example.com/stats")
	if err != nil {
		t.Fatalf("StageURL() error: %v", err)
	}
	if a.Staged[0].Format != FormatHTML {
		t.Errorf("format = %s, want html", a.Staged[0].Format)
	}
	if got := a.Staged[0].Table.Names; len(got) != 2 || got[0] != "city" {
		t.Errorf("names = %v", got)
	}
}

func TestStageURL_FetchFailure(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{err: &table.NetworkError{URL: "https://down.example.com", Err: errors.New("refused")}}
	imp, _ := newTestImporter(t, Options{Fetcher: fetcher})

	a, err := imp.StageURL(context.Background(), "https://down.example.com")
	if err == nil || a.State != StateRejected {
		t.Fatal("fetch failure: want rejection")
	}
	var netErr *table.NetworkError
	if !errors.As(err, &netErr) {
		t.Errorf("error = %T, want *table.NetworkError", err)
	}
}

// TestStageDatabase verifies selection handling and the database source
// tag.
func TestStageDatabase(t *testing.T) {
	t.Parallel()

	db := &fakeDB{
		columns: map[string][]string{"orders": {"order_id", "amount"}},
		rows: map[string][]table.Row{
			"orders": {{"order_id": int64(1), "amount": 9.5}},
		},
	}
	imp, _ := newTestImporter(t, Options{Database: db})

	a, err := imp.StageDatabase(context.Background(), map[string]table.ImportDirective{
		"orders":  {Mode: table.ImportFull},
		"skipped": {Mode: table.ImportNone},
	})
	if err != nil {
		t.Fatalf("StageDatabase() error: %v", err)
	}
	if len(a.Staged) != 1 {
		t.Fatalf("staged %d tables, want 1 (none-mode skipped)", len(a.Staged))
	}
	staged := a.Staged[0]
	if staged.Source.Type != table.SourceDatabase || staged.Source.DatabaseTable != "orders" {
		t.Errorf("source = %+v, want database source for orders", staged.Source)
	}
	if !staged.Source.CanRefresh {
		t.Error("database source should be refreshable")
	}
	if staged.Directive.Mode != table.ImportFull {
		t.Errorf("directive = %+v, want full", staged.Directive)
	}
}

func TestStageDatabase_Rejections(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		limits := testLimits()
		limits.DisableDatabase = true
		imp, _ := newTestImporter(t, Options{Limits: limits, Database: &fakeDB{}})
		_, err := imp.StageDatabase(context.Background(), map[string]table.ImportDirective{"t": {Mode: table.ImportFull}})
		if err == nil || !strings.Contains(err.Error(), "disabled") {
			t.Fatalf("disabled database: err = %v", err)
		}
	})

	t.Run("nothing selected", func(t *testing.T) {
		t.Parallel()
		imp, _ := newTestImporter(t, Options{Database: &fakeDB{}})
		_, err := imp.StageDatabase(context.Background(), map[string]table.ImportDirective{"t": {Mode: table.ImportNone}})
		if err == nil {
			t.Fatal("all-none selection: want error")
		}
	})
}

// fakeIngestor records submitted ingest requests.
type fakeIngestor struct {
	mu       sync.Mutex
	requests []ingest.Request
	err      error
}

func (f *fakeIngestor) Submit(_ context.Context, r ingest.Request) (*ingest.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)
	if f.err != nil {
		return nil, f.err
	}
	return &ingest.Response{Status: "success", TableName: r.TableName}, nil
}

// TestCommit_DatabaseIngest verifies committed database tables reach the
// ingest collaborator with their import directive, and other sources do
// not.
func TestCommit_DatabaseIngest(t *testing.T) {
	t.Parallel()

	db := &fakeDB{
		columns: map[string][]string{"orders": {"a"}},
		rows:    map[string][]table.Row{"orders": {{"a": int64(1)}}},
	}
	ing := &fakeIngestor{}
	imp, _ := newTestImporter(t, Options{Database: db, Ingest: ing})

	a, err := imp.StageDatabase(context.Background(), map[string]table.ImportDirective{
		"orders": {Mode: table.ImportSubset, RowLimit: 50, SortColumns: []string{"a"}, SortOrder: "asc"},
	})
	if err != nil {
		t.Fatalf("StageDatabase() error: %v", err)
	}
	if _, err := imp.Commit(context.Background(), a); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}

	if len(ing.requests) != 1 {
		t.Fatalf("ingest received %d requests, want 1", len(ing.requests))
	}
	req := ing.requests[0]
	if req.DataLoaderType != "database" || req.TableName != "orders" {
		t.Errorf("request = %+v", req)
	}
	if req.ImportOptions == nil || req.ImportOptions.RowLimit != 50 {
		t.Errorf("ImportOptions = %+v, want subset directive carried", req.ImportOptions)
	}

	// A paste commit must not touch the ingest collaborator.
	a2, _ := imp.StagePaste("x\n1\n")
	if _, err := imp.Commit(context.Background(), a2); err != nil {
		t.Fatalf("Commit(paste) error: %v", err)
	}
	if len(ing.requests) != 1 {
		t.Errorf("ingest received %d requests after paste commit, want still 1", len(ing.requests))
	}
}

// TestCommit_IngestFailure verifies a failed ingest call counts against the
// table like a load failure.
func TestCommit_IngestFailure(t *testing.T) {
	t.Parallel()

	db := &fakeDB{
		columns: map[string][]string{"orders": {"a"}},
		rows:    map[string][]table.Row{"orders": {{"a": int64(1)}}},
	}
	ing := &fakeIngestor{err: errors.New("engine down")}
	imp, collab := newTestImporter(t, Options{Database: db, Ingest: ing})

	a, _ := imp.StageDatabase(context.Background(), map[string]table.ImportDirective{
		"orders": {Mode: table.ImportFull},
	})
	_, err := imp.Commit(context.Background(), a)
	var batchErr *table.PartialBatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("error = %T, want *table.PartialBatchError", err)
	}
	if a.State != StateRejected {
		t.Errorf("state = %s, want rejected when the only table fails ingest", a.State)
	}
	// The load itself succeeded, so the table stays with the collaborator;
	// Failed reports it as not ingested, not as unloaded.
	if len(collab.loaded) != 1 || collab.loaded[0].ID != "orders" {
		t.Errorf("loaded = %v, want orders retained after ingest failure", collab.loaded)
	}
	if _, ok := batchErr.Failed["orders"]; !ok {
		t.Errorf("Failed = %v, want entry for orders", batchErr.Failed)
	}
}

// TestCommit_LiveIDSet verifies identifiers resolve against the live set at
// commit time and within-batch siblings never collide.
func TestCommit_LiveIDSet(t *testing.T) {
	t.Parallel()

	existing := map[string]struct{}{"table": {}, "table_1": {}}
	imp, _ := newTestImporter(t, Options{
		ExistingIDs: func() map[string]struct{} {
			out := make(map[string]struct{}, len(existing))
			for k := range existing {
				out[k] = struct{}{}
			}
			return out
		},
	})

	a, err := imp.StagePaste("x\n1\n")
	if err != nil {
		t.Fatalf("StagePaste() error: %v", err)
	}
	loaded, err := imp.Commit(context.Background(), a)
	if err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if loaded[0].ID != "table_2" {
		t.Errorf("id = %q, want table_2", loaded[0].ID)
	}
}

// TestCommit_PartialBatch verifies per-table batch semantics: loaded
// siblings stay committed, the error aggregates both sides.
func TestCommit_PartialBatch(t *testing.T) {
	t.Parallel()

	collab := &fakeCollab{failIDs: map[string]bool{"b": true}}
	imp, _ := newTestImporter(t, Options{Collaborators: collab})

	a, err := imp.StagePaste("x\n1\n")
	if err != nil {
		t.Fatalf("StagePaste() error: %v", err)
	}
	// Stage a second table by hand so the batch has two members.
	second := &table.Table{
		Names:    []string{"x"},
		Metadata: map[string]table.ColumnMeta{"x": {Type: table.Integer}},
		Rows:     []table.Row{{"x": "2"}},
	}
	a.Staged = append(a.Staged, &Staged{
		Table: second, SuggestedName: "b", Format: FormatCSV,
		Source: table.Source{Type: table.SourcePaste}, Selected: true,
	})

	loaded, err := imp.Commit(context.Background(), a)
	if a.State != StateCommitted {
		t.Fatalf("state = %s, want committed despite partial failure", a.State)
	}
	var batchErr *table.PartialBatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("error = %T, want *table.PartialBatchError", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "table" {
		t.Errorf("loaded = %v, want the surviving table", loaded)
	}
	if _, ok := batchErr.Failed["b"]; !ok {
		t.Errorf("Failed = %v, want entry for b", batchErr.Failed)
	}
}

func TestCommit_AllFail(t *testing.T) {
	t.Parallel()

	collab := &fakeCollab{loadError: errors.New("backend down")}
	imp, _ := newTestImporter(t, Options{Collaborators: collab})

	a, err := imp.StagePaste("x\n1\n")
	if err != nil {
		t.Fatalf("StagePaste() error: %v", err)
	}
	if _, err := imp.Commit(context.Background(), a); err == nil {
		t.Fatal("Commit() with failing backend: want error")
	}
	if a.State != StateRejected {
		t.Errorf("state = %s, want rejected when nothing loads", a.State)
	}
}

func TestCommit_Preconditions(t *testing.T) {
	t.Parallel()

	imp, _ := newTestImporter(t, Options{})

	if _, err := imp.Commit(context.Background(), &Attempt{State: StateIdle}); err == nil {
		t.Error("committing an idle attempt: want error")
	}

	a, _ := imp.StagePaste("x\n1\n")
	a.Staged[0].Selected = false
	if _, err := imp.Commit(context.Background(), a); err == nil {
		t.Error("committing with nothing selected: want error")
	}
	if a.State != StateRejected {
		t.Errorf("state = %s, want rejected", a.State)
	}
}

// TestRefresh_Stream verifies the stream refresh path: re-fetch, validate,
// whole replacement, refresh stamp.
func TestRefresh_Stream(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://example.com/feed.csv": "a,b\n10,20\n30,40\n",
	}}
	stamp := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	imp, _ := newTestImporter(t, Options{
		Fetcher: fetcher,
		now:     func() time.Time { return stamp },
	})

	tab := &table.Table{
		ID:       "feed",
		Names:    []string{"a", "b"},
		Metadata: map[string]table.ColumnMeta{"a": {Type: table.Integer}, "b": {Type: table.Integer}},
		Rows:     []table.Row{{"a": "1", "b": "2"}},
		Source: table.Source{
			Type: table.SourceStream,
			URL:  "https://example.com/feed.csv",
		},
	}

	if err := imp.Refresh(context.Background(), tab); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if len(tab.Rows) != 2 {
		t.Errorf("rows = %d, want full replacement with 2", len(tab.Rows))
	}
	if !tab.Source.LastRefreshed.Equal(stamp) {
		t.Errorf("LastRefreshed = %v, want %v", tab.Source.LastRefreshed, stamp)
	}
}

func TestRefresh_SchemaMismatch(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://example.com/feed.csv": "a,c\n1,2\n",
	}}
	imp, _ := newTestImporter(t, Options{Fetcher: fetcher})

	tab := &table.Table{
		ID:       "feed",
		Names:    []string{"a", "b"},
		Metadata: map[string]table.ColumnMeta{"a": {Type: table.Integer}, "b": {Type: table.Integer}},
		Rows:     []table.Row{{"a": "1", "b": "2"}},
		Source:   table.Source{Type: table.SourceStream, URL: "https://example.com/feed.csv"},
	}

	err := imp.Refresh(context.Background(), tab)
	var mismatch *table.SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %T, want *table.SchemaMismatchError", err)
	}
	if len(tab.Rows) != 1 || tab.Rows[0]["a"] != "1" {
		t.Error("rows were mutated despite rejected refresh")
	}
}

func TestRefresh_NotRefreshable(t *testing.T) {
	t.Parallel()

	imp, _ := newTestImporter(t, Options{})
	tab := &table.Table{ID: "t", Source: table.Source{Type: table.SourcePaste}}
	if err := imp.Refresh(context.Background(), tab); err == nil {
		t.Fatal("refreshing a paste table: want error")
	}
}

// TestRefresh_Database verifies the database refresh path re-fetches in
// full mode.
func TestRefresh_Database(t *testing.T) {
	t.Parallel()

	db := &fakeDB{
		columns: map[string][]string{"orders": {"a", "b"}},
		rows: map[string][]table.Row{
			"orders": {{"a": int64(1), "b": int64(2)}, {"a": int64(3), "b": int64(4)}},
		},
	}
	imp, _ := newTestImporter(t, Options{Database: db})

	tab := &table.Table{
		ID:       "orders",
		Names:    []string{"a", "b"},
		Metadata: map[string]table.ColumnMeta{"a": {Type: table.Integer}, "b": {Type: table.Integer}},
		Rows:     []table.Row{{"a": int64(0), "b": int64(0)}},
		Source: table.Source{
			Type:          table.SourceDatabase,
			DatabaseTable: "orders",
			CanRefresh:    true,
		},
	}

	if err := imp.Refresh(context.Background(), tab); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if len(tab.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(tab.Rows))
	}
}

// TestCommit_StageStatusLabels verifies the commit stage-duration sample
// carries the batch outcome: ok only when every table committed, error for
// partial and all-fail batches.
func TestCommit_StageStatusLabels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		collab  *fakeCollab
		second  bool
		want    string
	}{
		{"clean commit", &fakeCollab{}, false, "ok"},
		{"partial batch", &fakeCollab{failIDs: map[string]bool{"b": true}}, true, "error"},
		{"all fail", &fakeCollab{loadError: errors.New("backend down")}, false, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &fakeMetrics{}
			imp, _ := newTestImporter(t, Options{Collaborators: tc.collab, Metrics: rec})

			a, err := imp.StagePaste("x\n1\n")
			if err != nil {
				t.Fatalf("StagePaste() error: %v", err)
			}
			if tc.second {
				a.Staged = append(a.Staged, &Staged{
					Table: &table.Table{
						Names:    []string{"x"},
						Metadata: map[string]table.ColumnMeta{"x": {Type: table.Integer}},
						Rows:     []table.Row{{"x": "2"}},
					},
					SuggestedName: "b", Format: FormatCSV,
					Source: table.Source{Type: table.SourcePaste}, Selected: true,
				})
			}
			_, _ = imp.Commit(context.Background(), a)

			if got := rec.stageStatus("commit"); got != tc.want {
				t.Errorf("commit stage status = %q, want %q", got, tc.want)
			}
		})
	}
}
