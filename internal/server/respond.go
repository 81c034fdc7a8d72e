package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"tableimport/internal/logging"
	"tableimport/internal/table"
)

// ErrorResponse is the JSON body returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an import failure onto an HTTP status using the error
// taxonomy, logs it with the request id, and writes the JSON body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := logging.FromContext(r.Context())
	log.Warn("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// statusFor picks the response code for a failure.
//
// Edge cases:
//   - guardrail rejections (size, format) map to 413 and 415 so clients can
//     distinguish them from malformed content,
//   - upstream fetch failures map to 502 rather than 500 because the fault
//     is the remote host's, not ours.
func statusFor(err error) int {
	var (
		sizeErr   *table.SizeLimitError
		formatErr *table.UnsupportedFormatError
		parseErr  *table.ParseError
		schemaErr *table.SchemaMismatchError
		netErr    *table.NetworkError
	)
	switch {
	case errors.As(err, &sizeErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &formatErr):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &parseErr), errors.As(err, &schemaErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &netErr):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
