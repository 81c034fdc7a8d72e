package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tableimport/internal/importer"
	"tableimport/internal/table"
)

// TableSummary is the list-endpoint view of a loaded table.
type TableSummary struct {
	ID      string           `json:"id"`
	Display string           `json:"display"`
	Rows    int64            `json:"rows"`
	Columns []string         `json:"columns"`
	Source  table.SourceType `json:"source"`
}

// ImportResult reports a committed attempt. Failed is only present when some
// tables of a multi-table attempt could not be loaded.
type ImportResult struct {
	AttemptID string            `json:"attempt_id"`
	State     importer.State    `json:"state"`
	Tables    []TableSummary    `json:"tables"`
	Failed    map[string]string `json:"failed,omitempty"`
}

func summarize(t *table.Table) TableSummary {
	return TableSummary{
		ID:      t.ID,
		Display: t.Display(),
		Rows:    t.RowCount(),
		Columns: append([]string(nil), t.Names...),
		Source:  t.Source.Type,
	}
}

func (s *Server) handleListTables(w http.ResponseWriter, _ *http.Request) {
	tables := s.reg.List()
	out := make([]TableSummary, 0, len(tables))
	for _, t := range tables {
		out = append(out, summarize(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tableID")
	t, ok := s.reg.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("no table %q", id)})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tableID")
	t, ok := s.reg.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("no table %q", id)})
		return
	}
	if err := s.imp.Refresh(r.Context(), t); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(t))
}

type pasteRequest struct {
	Text string `json:"text"`
	Name string `json:"name,omitempty"`
}

func (s *Server) handleImportPaste(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.limits.MaxPasteBytes+4096)

	var req pasteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	attempt, err := s.imp.StagePaste(req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.commit(w, r, attempt, req.Name)
}

func (s *Server) handleImportUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.limits.MaxFileBytes+64*1024)
	if err := r.ParseMultipartForm(s.limits.MaxFileBytes); err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "upload too large or malformed: " + err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing form field \"file\""})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "reading upload: " + err.Error()})
		return
	}
	attempt, err := s.imp.StageFile(header.Filename, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.commit(w, r, attempt, r.FormValue("name"))
}

type urlRequest struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

func (s *Server) handleImportURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "url is required"})
		return
	}
	attempt, err := s.imp.StageURL(r.Context(), req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.commit(w, r, attempt, req.Name)
}

type databaseRequest struct {
	Selections map[string]table.ImportDirective `json:"selections"`
}

func (s *Server) handleImportDatabase(w http.ResponseWriter, r *http.Request) {
	var req databaseRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if len(req.Selections) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "selections is required"})
		return
	}
	attempt, err := s.imp.StageDatabase(r.Context(), req.Selections)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.commit(w, r, attempt, "")
}

// commit finishes a staged attempt and writes the result. A partial batch is
// still a success at the HTTP level: the committed tables are returned
// alongside the per-table failure reasons.
func (s *Server) commit(w http.ResponseWriter, r *http.Request, attempt *importer.Attempt, name string) {
	if name != "" {
		for _, st := range attempt.Staged {
			st.SuggestedName = name
		}
	}
	loaded, err := s.imp.Commit(r.Context(), attempt)

	var partial *table.PartialBatchError
	if err != nil && !errors.As(err, &partial) {
		writeError(w, r, err)
		return
	}

	out := ImportResult{AttemptID: attempt.ID, State: attempt.State}
	for _, t := range loaded {
		out.Tables = append(out.Tables, summarize(t))
	}
	if partial != nil {
		out.Failed = partial.Failed
	}
	if attempt.State == importer.StateRejected {
		writeJSON(w, http.StatusUnprocessableEntity, out)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
