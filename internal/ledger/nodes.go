package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendNodeExecution inserts a new, append-only node execution record and
// returns its generated id. CompletedAt is stamped only when status is
// NodeCompleted; a paused or failed node has no completion time.
func (s *Store) AppendNodeExecution(ctx context.Context, in *NodeExecution) (string, error) {
	id := uuid.NewString()
	startedAt := in.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	var completedAt *time.Time
	if in.Status == NodeCompleted {
		t := time.Now().UTC()
		completedAt = &t
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO node_executions
			(id, workflow_execution_id, node_id, node_type, node_label, status,
			 request_data, response_data, error_message, execution_time_ms, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id, in.WorkflowExecutionID, in.NodeID, in.NodeType, in.NodeLabel, string(in.Status),
		in.RequestData, in.ResponseData, in.ErrorMessage, in.ExecutionTimeMs, startedAt, completedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to append node execution: %w", err)
	}
	return id, nil
}

// ListNodeExecutions returns every node execution for execID ordered by
// started_at, the order the runtime appended them.
func (s *Store) ListNodeExecutions(ctx context.Context, execID string) ([]*NodeExecution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow_execution_id, node_id, node_type, node_label, status,
		       request_data, response_data, error_message, execution_time_ms, started_at, completed_at
		FROM node_executions
		WHERE workflow_execution_id = ?
		ORDER BY started_at ASC
	`, execID)
	if err != nil {
		return nil, fmt.Errorf("failed to list node executions: %w", err)
	}
	defer rows.Close()

	var out []*NodeExecution
	for rows.Next() {
		ne := &NodeExecution{}
		if err := rows.Scan(
			&ne.ID, &ne.WorkflowExecutionID, &ne.NodeID, &ne.NodeType, &ne.NodeLabel, &ne.Status,
			&ne.RequestData, &ne.ResponseData, &ne.ErrorMessage, &ne.ExecutionTimeMs, &ne.StartedAt, &ne.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan node execution: %w", err)
		}
		out = append(out, ne)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node executions: %w", err)
	}
	return out, nil
}
