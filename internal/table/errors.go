package table

import (
	"fmt"
	"sort"
	"strings"
)

// The import error taxonomy. Every failure an import attempt can produce is
// one of these; all are recoverable and are caught at the orchestrator
// boundary, never propagated as faults.

// ParseError reports malformed or empty input.
type ParseError struct {
	Format string // "csv", "tsv", "json", "jsonl", "xlsx", "html"
	Line   int    // 0 when not line-addressable
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %s", e.Format, e.Line, e.Reason)
	}
	return fmt.Sprintf("parse %s: %s", e.Format, e.Reason)
}

// SizeLimitError reports a payload or file exceeding a configured ceiling.
// It is raised before any parser runs.
type SizeLimitError struct {
	What  string // "paste", "file", "fetch"
	Limit int64
	Size  int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("%s too large: %d bytes exceeds the %d byte limit", e.What, e.Size, e.Limit)
}

// UnsupportedFormatError reports an extension or content type outside the
// allow-list.
type UnsupportedFormatError struct {
	Name        string
	ContentType string
}

func (e *UnsupportedFormatError) Error() string {
	if e.ContentType != "" {
		return fmt.Sprintf("unsupported format: %s (%s)", e.Name, e.ContentType)
	}
	return fmt.Sprintf("unsupported format: %s", e.Name)
}

// SchemaMismatchError is produced by the refresh validator when candidate
// rows do not match the existing column set. Missing and Unexpected are
// sorted so the message is deterministic and actionable.
type SchemaMismatchError struct {
	Missing    []string
	Unexpected []string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		m := append([]string(nil), e.Missing...)
		sort.Strings(m)
		parts = append(parts, "missing columns: "+strings.Join(m, ", "))
	}
	if len(e.Unexpected) > 0 {
		u := append([]string(nil), e.Unexpected...)
		sort.Strings(u)
		parts = append(parts, "unexpected columns: "+strings.Join(u, ", "))
	}
	if len(parts) == 0 {
		return "schema mismatch"
	}
	return "schema mismatch: " + strings.Join(parts, "; ")
}

// NetworkError wraps a failed fetch or ingest call. One-shot imports do not
// retry it; watch-mode ticks retry naturally on the next tick.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// PartialBatchError aggregates per-table failures from a multi-table ingest.
// Tables in Loaded were still committed; this is a deliberate
// committed-with-warnings outcome, not a transaction rollback.
type PartialBatchError struct {
	Loaded []string
	Failed map[string]string // table name -> reason
}

func (e *PartialBatchError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for n := range e.Failed {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d tables failed:", len(e.Failed), len(e.Failed)+len(e.Loaded))
	for _, n := range names {
		fmt.Fprintf(&b, " %s (%s)", n, e.Failed[n])
	}
	return b.String()
}
