// Package problem emits RFC 7807 problem documents carrying the request
// trace identifier.
package problem

import (
	"encoding/json"
	"net/http"
)

// ValidationTitle is the title used for request validation failures.
const ValidationTitle = "One or more validation errors occurred."

// Response represents an RFC 7807 problem document.
type Response struct {
	Type     string              `json:"type"`
	Title    string              `json:"title"`
	Status   int                 `json:"status"`
	Detail   string              `json:"detail,omitempty"`
	Instance string              `json:"instance,omitempty"`
	Errors   map[string][]string `json:"errors,omitempty"`
	TraceID  string              `json:"traceId,omitempty"`
}

// Write emits a problem+json response.
func Write(w http.ResponseWriter, status int, title, detail, traceID, instance string) {
	Encode(w, Response{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
		TraceID:  traceID,
	})
}

// WriteValidation emits a 400 problem listing field errors.
func WriteValidation(w http.ResponseWriter, errs map[string][]string, traceID, instance string) {
	Encode(w, Response{
		Type:     "https://tools.ietf.org/html/rfc9110#section-15.5.1",
		Title:    ValidationTitle,
		Status:   http.StatusBadRequest,
		Instance: instance,
		Errors:   errs,
		TraceID:  traceID,
	})
}

// Encode writes resp using its Status as the response code.
func Encode(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(resp)
}
