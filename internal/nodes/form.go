package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lyzr/workflowengine/internal/graph"
	"github.com/lyzr/workflowengine/internal/ledger"
)

// FormDeps are the collaborators a form node executor needs.
type FormDeps struct {
	Ledger *ledger.Store
}

// NewFormFactory returns the executor factory for "form" nodes. A form node
// never produces a node result on its own: it records a paused node
// execution and marks state as suspended; the Runtime detects the
// "_paused_at_form" marker and halts traversal after this executor returns.
func NewFormFactory(deps FormDeps) graph.ExecutorFactory {
	return func(node *graph.Node, executionID string) (graph.NodeExecutor, error) {
		var cfg FormConfig
		if err := json.Unmarshal(node.Data, &cfg); err != nil {
			return nil, fmt.Errorf("invalid form node config for %q: %w", node.ID, err)
		}
		label := cfg.Label
		if label == "" {
			label = node.ID
		}

		return func(ctx context.Context, state map[string]interface{}) (map[string]interface{}, error) {
			schemaJSON, _ := json.Marshal(map[string]interface{}{"form_schema": cfg.Schema})
			reqStr := string(schemaJSON)
			zero := int64(0)

			if _, err := deps.Ledger.AppendNodeExecution(ctx, &ledger.NodeExecution{
				WorkflowExecutionID: executionID,
				NodeID:              node.ID,
				NodeType:            "form",
				NodeLabel:           label,
				Status:              ledger.NodePaused,
				RequestData:         &reqStr,
				ExecutionTimeMs:     &zero,
			}); err != nil {
				return nil, fmt.Errorf("failed to record form node execution: %w", err)
			}

			state["_paused_at_form"] = map[string]interface{}{
				"node_id":      node.ID,
				"execution_id": executionID,
				"form_schema":  cfg.Schema,
			}
			return state, nil
		}, nil
	}
}
