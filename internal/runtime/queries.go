package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/lyzr/workflowengine/internal/ledger"
)

// ExecutionDetail is the response shape of GetExecution: the execution
// record plus every node execution recorded against it.
type ExecutionDetail struct {
	Execution      *ledger.WorkflowExecution `json:"execution"`
	NodeExecutions []*ledger.NodeExecution   `json:"node_executions"`
}

// GetExecution returns the execution record and its node executions.
// Returns ErrExecutionNotFound when id is absent.
func (it *Interpreter) GetExecution(ctx context.Context, id string) (*ExecutionDetail, error) {
	exec, err := it.Ledger.GetWorkflowExecution(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("failed to get workflow execution: %w", err)
	}

	nodeExecs, err := it.Ledger.ListNodeExecutions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list node executions: %w", err)
	}

	return &ExecutionDetail{Execution: exec, NodeExecutions: nodeExecs}, nil
}

// ListNodeExecutions returns every node execution for id ordered by
// started_at.
func (it *Interpreter) ListNodeExecutions(ctx context.Context, id string) ([]*ledger.NodeExecution, error) {
	execs, err := it.Ledger.ListNodeExecutions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list node executions: %w", err)
	}
	return execs, nil
}

// ListExecutions returns up to limit execution summaries, most recent
// first. limit <= 0 defaults to 50.
func (it *Interpreter) ListExecutions(ctx context.Context, limit int) ([]*ledger.ExecutionSummary, error) {
	summaries, err := it.Ledger.ListRecentExecutions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow executions: %w", err)
	}
	return summaries, nil
}

// GetServiceMetric returns the aggregate metric for nodeID. Returns
// ErrMetricNotFound when no calls have been recorded against it.
func (it *Interpreter) GetServiceMetric(ctx context.Context, nodeID string) (*ledger.ServiceMetric, error) {
	metric, err := it.Ledger.GetServiceMetric(ctx, nodeID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrMetricNotFound
		}
		return nil, fmt.Errorf("failed to get service metric: %w", err)
	}
	return metric, nil
}
