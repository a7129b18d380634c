// Package runtime drives a compiled workflow graph to completion or
// suspension and exposes the transport-agnostic operations a caller uses to
// execute, resume, and inspect workflow executions.
package runtime

import "errors"

// Status values surfaced to callers of Execute/Resume.
const (
	StatusSuccess = "success"
	StatusPaused  = "paused"
	StatusError   = "error"
)

// ExecuteResult is the shared response shape of execute and resume.
type ExecuteResult struct {
	Status       string                 `json:"status"`
	ExecutionID  string                 `json:"execution_id"`
	Result       map[string]interface{} `json:"result"`
	PausedAtForm map[string]interface{} `json:"paused_at_form,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// Sentinel errors the API layer maps onto transport-specific signals:
// ErrExecutionNotFound/ErrMetricNotFound to a not-found response,
// ErrNotPaused to a bad-request response. Any other error is an infra
// failure that could not even be recorded and should surface as a server
// error.
var (
	ErrExecutionNotFound = errors.New("runtime: execution not found")
	ErrMetricNotFound    = errors.New("runtime: service metric not found")
	ErrNotPaused         = errors.New("runtime: execution is not paused")
)
