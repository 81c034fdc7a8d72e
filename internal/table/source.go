package table

import (
	"fmt"
	"time"
)

// SourceType discriminates the provenance variants of a Table.
type SourceType string

const (
	SourceFile     SourceType = "file"
	SourcePaste    SourceType = "paste"
	SourceURL      SourceType = "url"
	SourceStream   SourceType = "stream"
	SourceDatabase SourceType = "database"
	SourceExample  SourceType = "example"
)

// Source describes where a table's data came from and whether it can be
// refreshed. It is a tagged variant: Type selects which of the remaining
// fields are meaningful.
//
//   - file, paste: no extra fields.
//   - url, example: URL.
//   - stream: URL plus the refresh knobs.
//   - database: DatabaseTable, CanRefresh, plus the refresh knobs.
type Source struct {
	Type SourceType `json:"type"`

	URL           string `json:"url,omitempty"`
	DatabaseTable string `json:"database_table,omitempty"`

	CanRefresh             bool      `json:"can_refresh,omitempty"`
	AutoRefresh            bool      `json:"auto_refresh,omitempty"`
	RefreshIntervalSeconds int       `json:"refresh_interval_seconds,omitempty"`
	LastRefreshed          time.Time `json:"last_refreshed,omitzero"`
}

// Refreshable reports whether this source supports the refresh/watch flows.
func (s Source) Refreshable() bool {
	switch s.Type {
	case SourceStream:
		return true
	case SourceDatabase:
		return s.CanRefresh
	default:
		return false
	}
}

// Validate checks the variant's internal consistency.
//
// Edge cases:
//   - AutoRefresh without a positive RefreshIntervalSeconds is invalid for
//     stream and refreshable database sources.
//   - An unknown Type is invalid.
func (s Source) Validate() error {
	switch s.Type {
	case SourceFile, SourcePaste, SourceURL, SourceStream, SourceDatabase, SourceExample:
	default:
		return fmt.Errorf("source: unknown type %q", s.Type)
	}
	if s.AutoRefresh && s.Refreshable() && s.RefreshIntervalSeconds <= 0 {
		return fmt.Errorf("source %s: auto_refresh requires a positive refresh interval", s.Type)
	}
	return nil
}

// Interval returns the refresh interval as a duration.
func (s Source) Interval() time.Duration {
	return time.Duration(s.RefreshIntervalSeconds) * time.Second
}

// ImportMode selects how much of a source table to ingest during a
// multi-table database/API import.
type ImportMode string

const (
	ImportNone   ImportMode = "none"
	ImportFull   ImportMode = "full"
	ImportSubset ImportMode = "subset"
)

// ImportDirective is the transient per-table choice made during a multi-table
// import session. It is consumed by the orchestrator when issuing the ingest
// request and discarded after.
type ImportDirective struct {
	Mode        ImportMode `json:"mode"`
	RowLimit    int        `json:"row_limit,omitempty"`
	SortColumns []string   `json:"sort_columns,omitempty"`
	SortOrder   string     `json:"sort_order,omitempty"`
}

// Validate rejects malformed directives before they reach an ingest call.
func (d ImportDirective) Validate() error {
	switch d.Mode {
	case ImportNone, ImportFull:
		return nil
	case ImportSubset:
		if d.RowLimit <= 0 {
			return fmt.Errorf("import directive: subset mode requires a positive row limit")
		}
		if d.SortOrder != "" && d.SortOrder != "asc" && d.SortOrder != "desc" {
			return fmt.Errorf("import directive: sort order must be asc or desc, got %q", d.SortOrder)
		}
		return nil
	default:
		return fmt.Errorf("import directive: unknown mode %q", d.Mode)
	}
}
