package tabsynth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrNotFound is matched by APIErrors for resources that do not exist
	// on the platform (HTTP 404).
	ErrNotFound = errors.New("tabsynth: not found")
	// ErrUnauthorized is matched by APIErrors for rejected credentials or
	// insufficient permissions (HTTP 401/403).
	ErrUnauthorized = errors.New("tabsynth: unauthorized")
	// ErrJobFailed is returned when a training or generation job reaches a
	// FAILED or CANCELED terminal status.
	ErrJobFailed = errors.New("tabsynth: job failed")
)

// APIError is an error response from the platform, decoded from its JSON
// error envelope. It supports errors.Is against ErrNotFound and
// ErrUnauthorized based on the HTTP status code.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tabsynth: api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("tabsynth: api error %d: %s", e.StatusCode, e.Message)
}

// Is maps HTTP status codes onto the package's sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// errorEnvelope is the platform's JSON error body.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeAPIError drains the response body and builds an APIError from it.
// Bodies that are not the expected envelope are used verbatim as the message.
func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Request-Id"),
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
	if err != nil {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}

	var envelope errorEnvelope
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
