// Command import runs one import attempt from the command line and prints
// the committed table summary or the rejection reason.
//
// Exactly one input source must be given:
//
//   - -paste "<text>"          parse inline text (CSV/TSV/JSON sniffed)
//   - -file <path>             parse a local file (.csv .tsv .json .xlsx .xls)
//   - -url <url>               fetch and parse a URL (suffix/content sniffed)
//   - -tables <a,b,...>        import tables from the configured database
//
// Database imports need DATABASE_KIND and DATABASE_DSN (or the matching
// config.yaml keys); the -row-limit/-sort/-order flags apply a subset
// directive to every selected table.
//
// Watch mode (-watch, URL source only) tags the table as a stream source
// and keeps refreshing it on -interval until interrupted; each tick's
// outcome is logged and a failed tick does not stop the loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tableimport/internal/config"
	"tableimport/internal/dbsource"
	"tableimport/internal/fetch"
	"tableimport/internal/importer"
	"tableimport/internal/ingest"
	"tableimport/internal/logging"
	"tableimport/internal/metrics"
	"tableimport/internal/metrics/datadog"
	"tableimport/internal/registry"
	"tableimport/internal/table"

	_ "tableimport/internal/dbsource/mssql"
	_ "tableimport/internal/dbsource/postgres"
	_ "tableimport/internal/dbsource/sqlite"
)

func main() {
	var (
		// flagConfig points at the YAML config; environment variables
		// override its values and supply secrets.
		flagConfig = flag.String("config", "config.yaml", "Path to the YAML config file")

		// Input source selection. Exactly one of these must be set.
		flagPaste  = flag.String("paste", "", "Inline text to import")
		flagFile   = flag.String("file", "", "Path of a file to import")
		flagURL    = flag.String("url", "", "URL to fetch and import")
		flagTables = flag.String("tables", "", "Comma-separated database table names to import")

		// flagName overrides the suggested table name before commit.
		flagName = flag.String("name", "", "Desired table identifier (suffix-resolved on collision)")

		// flagFormat forces a parser instead of extension/content sniffing,
		// for files whose extension lies or is missing.
		flagFormat = flag.String("format", "", "Override format detection for -file: csv, tsv, or json")

		// Database connection overrides; the DSN normally arrives via the
		// DATABASE_DSN environment variable.
		flagDBKind = flag.String("db-kind", "", "Database backend (postgres, mssql, sqlite); overrides config")
		flagDBDSN  = flag.String("db-dsn", "", "Database DSN; overrides the DATABASE_DSN environment variable")

		// Subset directive for database imports. Zero row limit means a full
		// import.
		flagRowLimit = flag.Int("row-limit", 0, "Database subset import: row limit per table")
		flagSort     = flag.String("sort", "", "Database subset import: comma-separated sort columns")
		flagOrder    = flag.String("order", "", "Database subset import: sort order, asc or desc")

		// Watch mode repeats the fetch-validate-replace cycle for a URL
		// source until interrupted.
		flagWatch    = flag.Bool("watch", false, "Keep refreshing the imported URL table on an interval")
		flagInterval = flag.Duration("interval", 0, "Watch refresh interval; defaults to the configured watch default")
	)
	flag.Parse()

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	log := slog.Default()

	sources := 0
	for _, s := range []string{*flagPaste, *flagFile, *flagURL, *flagTables} {
		if strings.TrimSpace(s) != "" {
			sources++
		}
	}
	if sources != 1 {
		fmt.Fprintln(os.Stderr, "exactly one of -paste, -file, -url, -tables is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var backend metrics.Backend = metrics.Nop{}
	if cfg.Datadog.Enabled {
		dd, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    cfg.Datadog.JobName,
			Tags:       datadog.ParseTagsCSV(cfg.Datadog.Tags),
			FlushEvery: time.Duration(cfg.Datadog.FlushEverySeconds) * time.Second,
		})
		if err != nil {
			log.Error("datadog init failed, metrics disabled", "err", err.Error())
		} else {
			backend = dd
			defer func() { _ = dd.Close() }()
		}
	}

	reg := registry.New()

	if *flagDBKind != "" {
		cfg.DatabaseKind = *flagDBKind
	}
	if *flagDBDSN != "" {
		cfg.DatabaseDSN = *flagDBDSN
	}

	var db dbsource.Source
	if cfg.DatabaseKind != "" {
		db, err = dbsource.New(ctx, dbsource.Config{Kind: cfg.DatabaseKind, DSN: cfg.DatabaseDSN})
		if err != nil {
			log.Error("database connect failed", "kind", cfg.DatabaseKind, "err", err.Error())
			os.Exit(1)
		}
		defer db.Close()
	}

	imp := importer.New(importer.Options{
		Limits: importer.Limits{
			MaxPasteBytes:     cfg.Limits.MaxPasteBytes,
			MaxFileBytes:      cfg.Limits.MaxFileBytes,
			AllowedExtensions: cfg.AllowedExtensionList(),
			DisableFileUpload: cfg.Limits.DisableFileUpload,
			DisableDatabase:   cfg.Limits.DisableDatabase,
		},
		Collaborators: &localCollaborators{reg: reg, log: log},
		Fetcher: fetch.NewClient(fetch.Config{
			Timeout:            cfg.FetchTimeout(),
			MaxBytes:           cfg.Limits.MaxFileBytes,
			InsecureSkipVerify: cfg.Fetch.InsecureSkipVerify,
		}),
		Database: db,
		Ingest: ingest.NewClient(ingest.Config{
			BaseURL: cfg.Ingest.BaseURL,
			Timeout: cfg.IngestTimeout(),
		}),
		ExistingIDs: reg.ExistingIDs,
		Metrics:     backend,
		Logger:      log,
	})

	attempt, err := stageInput(ctx, imp, stageFlags{
		paste:    *flagPaste,
		file:     *flagFile,
		url:      *flagURL,
		tables:   *flagTables,
		format:   *flagFormat,
		rowLimit: *flagRowLimit,
		sort:     *flagSort,
		order:    *flagOrder,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "rejected: %v\n", err)
		os.Exit(1)
	}

	if *flagName != "" {
		for _, s := range attempt.Staged {
			s.SuggestedName = *flagName
		}
	}

	interval := *flagInterval
	if interval <= 0 {
		interval = cfg.WatchDefaultInterval()
	}
	if *flagWatch {
		if *flagURL == "" {
			fmt.Fprintln(os.Stderr, "-watch requires -url")
			os.Exit(2)
		}
		for _, s := range attempt.Staged {
			s.Source = table.Source{
				Type:                   table.SourceStream,
				URL:                    *flagURL,
				AutoRefresh:            true,
				RefreshIntervalSeconds: int(interval / time.Second),
			}
		}
	}

	loaded, err := imp.Commit(ctx, attempt)
	if err != nil {
		if len(loaded) == 0 {
			fmt.Fprintf(os.Stderr, "rejected: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "committed with warnings: %v\n", err)
	}

	for _, t := range loaded {
		printSummary(t)
	}

	if *flagWatch {
		log.Info("watching", "interval", interval.String())
		for _, t := range loaded {
			t := t
			go func() { _ = imp.Watch(ctx, t, interval) }()
		}
		<-ctx.Done()
	}
}

type stageFlags struct {
	paste, file, url, tables string
	format                   string
	rowLimit                 int
	sort, order              string
}

func stageInput(ctx context.Context, imp *importer.Importer, f stageFlags) (*importer.Attempt, error) {
	switch {
	case f.paste != "":
		return imp.StagePaste(f.paste)

	case f.file != "":
		data, err := os.ReadFile(f.file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.file, err)
		}
		name := f.file
		if f.format != "" {
			// Parser selection follows the extension, so a format override
			// restates it.
			name = strings.TrimSuffix(name, filepath.Ext(name)) + "." + strings.TrimPrefix(f.format, ".")
		}
		return imp.StageFile(name, data)

	case f.url != "":
		return imp.StageURL(ctx, f.url)

	default:
		directive := table.ImportDirective{Mode: table.ImportFull}
		if f.rowLimit > 0 {
			directive = table.ImportDirective{
				Mode:        table.ImportSubset,
				RowLimit:    f.rowLimit,
				SortColumns: splitList(f.sort),
				SortOrder:   f.order,
			}
		}
		selections := make(map[string]table.ImportDirective)
		for _, name := range splitList(f.tables) {
			selections[name] = directive
		}
		return imp.StageDatabase(ctx, selections)
	}
}

// localCollaborators keeps committed tables in the in-memory registry. The
// semantic-type collaborator is the backend's job; the CLI only records
// that the request point was reached.
type localCollaborators struct {
	reg *registry.Registry
	log *slog.Logger
}

func (c *localCollaborators) LoadTable(ctx context.Context, t *table.Table) error {
	return c.reg.LoadTable(ctx, t)
}

func (c *localCollaborators) FetchFieldSemanticType(_ context.Context, t *table.Table) {
	c.log.Debug("semantic type inference requested", "table", t.ID)
}

func printSummary(t *table.Table) {
	fmt.Printf("%s: %d rows, %d columns (source: %s)\n", t.ID, t.RowCount(), len(t.Names), t.Source.Type)
	for _, name := range t.Names {
		meta := t.Column(name)
		fmt.Printf("  %-24s %s\n", name, meta.Type)
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
