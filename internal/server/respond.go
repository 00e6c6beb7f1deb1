// ABOUTME: JSON response helpers shared by all handlers
// ABOUTME: GET responses carry an xxhash ETag and honour If-None-Match

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/2389/airway-api/internal/validation"
)

// errorBody is the shape of every error response: {"detail": ...}. Detail is
// a string for most errors and a list of validation.Detail for 422s.
type errorBody struct {
	Detail any `json:"detail"`
}

// writeJSON marshals v and writes it with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err, "path", r.URL.Path)
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeBody(w, r, status, body)
}

// writeBody writes an encoded JSON body. Successful reads get an ETag and a
// matching If-None-Match short-circuits to 304.
func writeBody(w http.ResponseWriter, r *http.Request, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")

	if status == http.StatusOK && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
		w.Header().Set("ETag", etag)
		if etagMatches(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}

// etagMatches implements the weak comparison used by If-None-Match.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

// sendJSONError writes a {"detail": detail} error response.
func sendJSONError(w http.ResponseWriter, status int, detail any) {
	body, err := json.Marshal(errorBody{Detail: detail})
	if err != nil {
		body = []byte(`{"detail":"internal server error"}`)
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// invalidID is the 422 detail for a path id that is not an integer.
func invalidID(raw string) []validation.Detail {
	return []validation.Detail{{
		Loc:  []string{"path", "id"},
		Msg:  fmt.Sprintf("Input should be a valid integer, unable to parse string %q as an integer", raw),
		Type: "int_parsing",
	}}
}
