package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotFound is matched by an APIError with a 404 status.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx answer from the scheduling backend.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: backend returned %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: backend returned %d", e.Operation, e.StatusCode)
}

// Is lets errors.Is(err, ErrNotFound) match 404 answers.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Temporary reports a server-side failure worth retrying.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500
}

// ServerMessage returns the backend-supplied message of err, if it carries one.
func ServerMessage(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}

// StatusCode returns the backend status of err, or 0 for transport failures.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// parseErrorBody pulls a human message out of the common error envelopes.
func parseErrorBody(body []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		for _, m := range []string{env.Message, env.Error, env.Detail} {
			if strings.TrimSpace(m) != "" {
				return strings.TrimSpace(m)
			}
		}
		return ""
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}
