package ledger

import "time"

// ExecutionStatus is the lifecycle state of a workflow execution record.
type ExecutionStatus string

const (
	StatusRunning   ExecutionStatus = "running"
	StatusPaused    ExecutionStatus = "paused"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
)

// NodeStatus is the terminal state of one attempted node execution.
type NodeStatus string

const (
	NodeCompleted NodeStatus = "completed"
	NodeFailed    NodeStatus = "failed"
	NodePaused    NodeStatus = "paused"
)

// WorkflowExecution is one row of workflow_executions: the durable record of
// a top-level or nested run. StateData and GraphJSON are stored as
// serialized JSON text, mirroring the logical schema.
type WorkflowExecution struct {
	ID                 string
	WorkflowName       string
	Status             ExecutionStatus
	CurrentNodeID      *string
	StateData          string
	GraphJSON          string
	ParentExecutionID  *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NodeExecution is one row of node_executions. Append-only: once written, a
// node execution record is never updated.
type NodeExecution struct {
	ID                  string
	WorkflowExecutionID string
	NodeID              string
	NodeType            string
	NodeLabel           string
	Status              NodeStatus
	RequestData         *string
	ResponseData        *string
	ErrorMessage        *string
	ExecutionTimeMs     *int64
	StartedAt           time.Time
	CompletedAt         *time.Time
}

// FormResponse is one row of form_responses: one record per form submission.
type FormResponse struct {
	ID                  string
	WorkflowExecutionID string
	NodeID              string
	FormData            string
	SubmittedAt         time.Time
}

// ServiceMetric is one row of service_metrics, keyed by node_id and updated
// in place via incremental average on every service node invocation.
type ServiceMetric struct {
	NodeID      string
	TotalCalls  int64
	Successes   int64
	Failures    int64
	AvgTimeMs   float64
	LastCalled  *time.Time
}

// ExecutionSummary is the reduced projection returned by listRecentExecutions.
type ExecutionSummary struct {
	ID            string
	WorkflowName  string
	Status        ExecutionStatus
	CurrentNodeID *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
