package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendFormResponse records one form submission against a paused node and
// returns the generated response id.
func (s *Store) AppendFormResponse(ctx context.Context, workflowExecutionID, nodeID, formData string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO form_responses (id, workflow_execution_id, node_id, form_data, submitted_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, workflowExecutionID, nodeID, formData, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to append form response: %w", err)
	}
	return id, nil
}
