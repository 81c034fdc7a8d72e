// Package ingest is the HTTP client for the downstream ingest collaborator.
//
// The collaborator owns durable storage of imported tables. This client only
// submits ingest requests and interprets the status envelope; it never
// retries, the orchestrator decides what a failed submission means for the
// batch.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tableimport/internal/table"
)

// ImportOptions mirrors the collaborator's subset-import contract.
type ImportOptions struct {
	RowLimit    int      `json:"row_limit,omitempty"`
	SortColumns []string `json:"sort_columns,omitempty"`
	SortOrder   string   `json:"sort_order,omitempty"`
}

// Request is one table submission.
type Request struct {
	DataLoaderType   string         `json:"data_loader_type"`
	DataLoaderParams map[string]any `json:"data_loader_params"`
	TableName        string         `json:"table_name"`
	ImportOptions    *ImportOptions `json:"import_options,omitempty"`
}

// Response is the collaborator's status envelope. Status is "success" on the
// happy path; anything else carries a human-readable Message.
type Response struct {
	Status    string `json:"status"`
	TableName string `json:"table_name,omitempty"`
	Message   string `json:"message,omitempty"`
}

// poster is the transport seam so tests can capture requests without a
// listening server.
type poster interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures the client.
type Config struct {
	// BaseURL is the collaborator root, e.g. "http://localhost:5000".
	BaseURL string

	// Timeout bounds one submission. Zero means 30 seconds.
	Timeout time.Duration
}

// Client submits ingest requests.
type Client struct {
	baseURL string
	http    poster
}

// NewClient builds a Client for the configured collaborator.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Submit posts one ingest request and returns the decoded envelope.
//
// Errors:
//   - table.NetworkError when the POST itself fails.
//   - A plain error when the collaborator answers non-2xx or with a
//     non-success status; the message includes the collaborator's Message
//     when present.
func (c *Client) Submit(ctx context.Context, r Request) (*Response, error) {
	if r.TableName == "" {
		return nil, fmt.Errorf("ingest: missing table name")
	}

	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("ingest: encode request: %w", err)
	}

	url := c.baseURL + "/ingest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ingest: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &table.NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &table.NetworkError{URL: url, Err: err}
	}

	var out Response
	if err := json.Unmarshal(payload, &out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("ingest %s: status %d", r.TableName, resp.StatusCode)
		}
		return nil, fmt.Errorf("ingest %s: decode response: %w", r.TableName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || out.Status != "success" {
		msg := out.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return &out, fmt.Errorf("ingest %s: %s", r.TableName, msg)
	}
	return &out, nil
}
