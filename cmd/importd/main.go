// Command importd serves the import pipeline over HTTP.
//
// Endpoints (all JSON):
//
//	GET  /healthz
//	GET  /api/tables                    list loaded tables
//	GET  /api/tables/{id}               full table, rows included
//	POST /api/tables/{id}/refresh       re-fetch a refreshable table
//	POST /api/import/paste              {"text": "...", "name": "..."}
//	POST /api/import/upload             multipart, field "file", optional "name"
//	POST /api/import/url                {"url": "...", "name": "..."}
//	POST /api/import/database           {"selections": {"orders": {"mode": "full"}}}
//
// Import endpoints stage and commit in one request. A partial multi-table
// failure still returns 200 with the per-table reasons in "failed".
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
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
	"tableimport/internal/server"
	"tableimport/internal/table"

	_ "tableimport/internal/dbsource/mssql"
	_ "tableimport/internal/dbsource/postgres"
	_ "tableimport/internal/dbsource/sqlite"
)

func main() {
	flagConfig := flag.String("config", "config.yaml", "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	log := slog.Default()

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

	var db dbsource.Source
	if cfg.DatabaseKind != "" {
		db, err = dbsource.New(ctx, dbsource.Config{Kind: cfg.DatabaseKind, DSN: cfg.DatabaseDSN})
		if err != nil {
			log.Error("database connect failed", "kind", cfg.DatabaseKind, "err", err.Error())
			os.Exit(1)
		}
		defer db.Close()
	}

	limits := importer.Limits{
		MaxPasteBytes:     cfg.Limits.MaxPasteBytes,
		MaxFileBytes:      cfg.Limits.MaxFileBytes,
		AllowedExtensions: cfg.AllowedExtensionList(),
		DisableFileUpload: cfg.Limits.DisableFileUpload,
		DisableDatabase:   cfg.Limits.DisableDatabase,
	}
	imp := importer.New(importer.Options{
		Limits:        limits,
		Collaborators: &registryCollaborators{reg: reg, log: log},
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

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.New(imp, reg, limits).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "err", err.Error())
		}
	}()

	log.Info("listening", "addr", cfg.Addr())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("serve", "err", err.Error())
		os.Exit(1)
	}
	log.Info("stopped")
}

// registryCollaborators wires committed tables into the in-process registry.
// Semantic typing has no local engine yet, so the callback only records that
// the handoff happened.
type registryCollaborators struct {
	reg *registry.Registry
	log *slog.Logger
}

func (c *registryCollaborators) LoadTable(ctx context.Context, t *table.Table) error {
	return c.reg.LoadTable(ctx, t)
}

func (c *registryCollaborators) FetchFieldSemanticType(_ context.Context, t *table.Table) {
	c.log.Debug("semantic type pass requested", "table", t.ID)
}
