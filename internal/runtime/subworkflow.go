package runtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lyzr/workflowengine/internal/graph"
)

// Run implements nodes.SubworkflowRunner: it mints a child execution id,
// links it to parentExecutionID, and drives it synchronously to completion
// or suspension inside the caller's own goroutine — sub-workflows never run
// concurrently with their parent.
func (it *Interpreter) Run(ctx context.Context, parentExecutionID string, doc *graph.Document, initialState map[string]interface{}) (map[string]interface{}, string, error) {
	childID := uuid.NewString()
	inputs, _ := initialState["input"].(map[string]interface{})

	result, err := it.executeAs(ctx, doc, inputs, "", parentExecutionID, childID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to run sub-workflow: %w", err)
	}
	if result.Status == StatusError {
		return nil, "", fmt.Errorf("sub-workflow failed: %s", result.Error)
	}
	return result.Result, childID, nil
}
