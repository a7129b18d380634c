package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UpsertWorkflowExecution inserts or replaces the record for exec.ID,
// stamping UpdatedAt at call time. Mirrors the Python original's
// "INSERT OR REPLACE" semantics: a workflow execution record is identified
// by id, and re-persisting the same id overwrites it in place.
func (s *Store) UpsertWorkflowExecution(ctx context.Context, exec *WorkflowExecution) error {
	now := time.Now().UTC()
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = now
	}
	exec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_executions
			(id, workflow_name, status, current_node_id, state_data, graph_json, parent_execution_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workflow_name = excluded.workflow_name,
			status = excluded.status,
			current_node_id = excluded.current_node_id,
			state_data = excluded.state_data,
			graph_json = excluded.graph_json,
			parent_execution_id = excluded.parent_execution_id,
			updated_at = excluded.updated_at
	`,
		exec.ID, exec.WorkflowName, string(exec.Status), exec.CurrentNodeID,
		exec.StateData, exec.GraphJSON, exec.ParentExecutionID, exec.CreatedAt, exec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert workflow execution: %w", err)
	}
	return nil
}

// GetWorkflowExecution retrieves a single execution record by id. Returns
// ErrNotFound (wrapped) when absent, letting callers translate it to a
// not-found signal.
func (s *Store) GetWorkflowExecution(ctx context.Context, id string) (*WorkflowExecution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workflow_name, status, current_node_id, state_data, graph_json, parent_execution_id, created_at, updated_at
		FROM workflow_executions WHERE id = ?
	`, id)

	exec := &WorkflowExecution{}
	err := row.Scan(
		&exec.ID, &exec.WorkflowName, &exec.Status, &exec.CurrentNodeID,
		&exec.StateData, &exec.GraphJSON, &exec.ParentExecutionID, &exec.CreatedAt, &exec.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("workflow execution %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get workflow execution: %w", err)
	}
	return exec, nil
}

// ListRecentExecutions returns up to limit execution summaries, most recent
// first by updated_at.
func (s *Store) ListRecentExecutions(ctx context.Context, limit int) ([]*ExecutionSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow_name, status, current_node_id, created_at, updated_at
		FROM workflow_executions
		ORDER BY updated_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var out []*ExecutionSummary
	for rows.Next() {
		sum := &ExecutionSummary{}
		if err := rows.Scan(&sum.ID, &sum.WorkflowName, &sum.Status, &sum.CurrentNodeID, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution summary: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}
	return out, nil
}
