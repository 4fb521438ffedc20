// Package httpx writes API responses in the RFC 7807 problem-details shape
// and decodes request bodies with a hard size cap.
package httpx

import (
	"encoding/json"
	"net/http"
)

// maxBodyBytes caps request bodies; document payloads are small, so a
// runaway client fails fast instead of buffering.
const maxBodyBytes = 1 << 20

// ProblemDetail is the RFC 7807 error body returned by every handler.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON writes data as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem writes an RFC 7807 error response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{Title: title, Status: status, Detail: detail})
}

// DecodeJSON reads the request body into target, enforcing maxBodyBytes.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(target)
}
