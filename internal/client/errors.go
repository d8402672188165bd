package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/prosync/audit-task-api/internal/dto"
)

const codeVersionConflict = "VERSION_CONFLICT"

// ErrPendingSync is matched by a *SyncError: the outcome of a write could not
// be confirmed and the server does not show it yet.
var ErrPendingSync = errors.New("change pending sync")

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// SyncError reports a write whose outcome is unknown. LastKnown holds the
// task as last read from the server and is nil when the read failed too.
type SyncError struct {
	LastKnown *dto.TaskDTO
	Err       error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%v: %v", ErrPendingSync, e.Err)
}

func (e *SyncError) Unwrap() []error {
	return []error{ErrPendingSync, e.Err}
}

// transportError marks a request that never produced an HTTP response.
type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return "client: transport: " + e.err.Error()
}

func (e *transportError) Unwrap() error {
	return e.err
}
