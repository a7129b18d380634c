package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lyzr/workflowengine/internal/graph"
	"github.com/lyzr/workflowengine/internal/ledger"
)

// SubworkflowRunner drives a child graph to completion (or suspension)
// synchronously inside the parent's control thread. Implemented by the
// runtime package and injected here so this package never imports it back.
type SubworkflowRunner interface {
	Run(ctx context.Context, parentExecutionID string, doc *graph.Document, initialState map[string]interface{}) (finalState map[string]interface{}, childExecutionID string, err error)
}

// SubworkflowDeps are the collaborators a subworkflow node executor needs.
type SubworkflowDeps struct {
	Ledger *ledger.Store
	Runner SubworkflowRunner
}

// NewSubworkflowFactory returns the executor factory for "subworkflow"
// nodes. The child graph may be given inline (data.graph) or by reference
// to a previously persisted execution's graph (data.graph_ref). A failure
// to resolve or run the child graph is recorded and folded into the
// parent's state as an error payload; it never aborts the parent.
func NewSubworkflowFactory(deps SubworkflowDeps) graph.ExecutorFactory {
	return func(node *graph.Node, executionID string) (graph.NodeExecutor, error) {
		var cfg SubworkflowConfig
		if err := json.Unmarshal(node.Data, &cfg); err != nil {
			return nil, fmt.Errorf("invalid subworkflow node config for %q: %w", node.ID, err)
		}
		label := cfg.Label
		if label == "" {
			label = node.ID
		}

		return func(ctx context.Context, state map[string]interface{}) (map[string]interface{}, error) {
			subgraph := cfg.Graph

			if subgraph == nil && cfg.GraphRef != "" {
				refExec, err := deps.Ledger.GetWorkflowExecution(ctx, cfg.GraphRef)
				if err != nil {
					return failSubworkflow(ctx, deps.Ledger, executionID, node.ID, label, state,
						"referenced workflow not found")
				}
				if err := json.Unmarshal([]byte(refExec.GraphJSON), &subgraph); err != nil {
					return failSubworkflow(ctx, deps.Ledger, executionID, node.ID, label, state,
						"referenced workflow graph is malformed")
				}
			}

			if subgraph == nil {
				return failSubworkflow(ctx, deps.Ledger, executionID, node.ID, label, state,
					"no subgraph provided")
			}

			docBytes, err := json.Marshal(subgraph)
			if err != nil {
				return failSubworkflow(ctx, deps.Ledger, executionID, node.ID, label, state,
					"subgraph is not serializable")
			}
			var doc graph.Document
			if err := json.Unmarshal(docBytes, &doc); err != nil {
				return failSubworkflow(ctx, deps.Ledger, executionID, node.ID, label, state,
					"subgraph does not match the workflow graph shape")
			}

			childInitial := map[string]interface{}{"input": state["input"]}

			finalState, childExecID, err := deps.Runner.Run(ctx, executionID, &doc, childInitial)
			if err != nil {
				return failSubworkflow(ctx, deps.Ledger, executionID, node.ID, label, state, err.Error())
			}

			reqJSON, _ := json.Marshal(map[string]interface{}{"sub_execution_id": childExecID})
			respJSON, _ := json.Marshal(finalState)
			reqStr, respStr := string(reqJSON), string(respJSON)
			zero := int64(0)

			if _, err := deps.Ledger.AppendNodeExecution(ctx, &ledger.NodeExecution{
				WorkflowExecutionID: executionID,
				NodeID:              node.ID,
				NodeType:            "subworkflow",
				NodeLabel:           label,
				Status:              ledger.NodeCompleted,
				RequestData:         &reqStr,
				ResponseData:        &respStr,
				ExecutionTimeMs:     &zero,
			}); err != nil {
				return nil, fmt.Errorf("failed to record subworkflow node execution: %w", err)
			}

			state[node.ID] = map[string]interface{}{
				"sub_execution_id": childExecID,
				"result":           finalState,
			}
			return state, nil
		}, nil
	}
}

func failSubworkflow(ctx context.Context, store *ledger.Store, executionID, nodeID, label string, state map[string]interface{}, reason string) (map[string]interface{}, error) {
	respJSON, _ := json.Marshal(map[string]interface{}{"error": reason})
	respStr := reason
	zero := int64(0)

	if _, err := store.AppendNodeExecution(ctx, &ledger.NodeExecution{
		WorkflowExecutionID: executionID,
		NodeID:              nodeID,
		NodeType:            "subworkflow",
		NodeLabel:           label,
		Status:              ledger.NodeFailed,
		ResponseData:        stringPtr(string(respJSON)),
		ErrorMessage:        &respStr,
		ExecutionTimeMs:     &zero,
	}); err != nil {
		return nil, fmt.Errorf("failed to record subworkflow failure: %w", err)
	}

	state[nodeID] = map[string]interface{}{"error": reason}
	return state, nil
}

func stringPtr(s string) *string { return &s }
