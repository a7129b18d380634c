package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/lyzr/workflowengine/internal/graph"
	"github.com/lyzr/workflowengine/internal/ledger"
)

// Resume rehydrates a paused execution, records the form submission,
// removes the suspension marker, merges formData into state.input (formData
// wins on key collision), and continues traversal past the form node.
func (it *Interpreter) Resume(ctx context.Context, executionID string, formData map[string]interface{}) (*ExecuteResult, error) {
	rec, err := it.Ledger.GetWorkflowExecution(ctx, executionID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("failed to load workflow execution: %w", err)
	}
	if rec.Status != ledger.StatusPaused {
		return nil, ErrNotPaused
	}

	var state map[string]interface{}
	if err := json.Unmarshal([]byte(rec.StateData), &state); err != nil {
		return nil, fmt.Errorf("failed to deserialize execution state: %w", err)
	}

	pauseInfo, ok := state["_paused_at_form"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("paused execution %s is missing its pause marker", executionID)
	}
	formNodeID, _ := pauseInfo["node_id"].(string)

	var doc graph.Document
	if err := json.Unmarshal([]byte(rec.GraphJSON), &doc); err != nil {
		return nil, fmt.Errorf("failed to deserialize workflow graph: %w", err)
	}

	compiled, err := graph.Compile(&doc, it.Registry, executionID)
	if err != nil {
		return it.finishAsFailed(ctx, rec, state, fmt.Errorf("compilation error: %w", err))
	}

	formDataJSON, err := json.Marshal(formData)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize form data: %w", err)
	}
	if _, err := it.Ledger.AppendFormResponse(ctx, executionID, formNodeID, string(formDataJSON)); err != nil {
		return nil, fmt.Errorf("failed to record form response: %w", err)
	}

	zero := int64(0)
	respStr := string(formDataJSON)
	if _, err := it.Ledger.AppendNodeExecution(ctx, &ledger.NodeExecution{
		WorkflowExecutionID: executionID,
		NodeID:              formNodeID,
		NodeType:            "form",
		NodeLabel:           compiled.NodeLabels[formNodeID],
		Status:              ledger.NodeCompleted,
		ResponseData:        &respStr,
		ExecutionTimeMs:     &zero,
	}); err != nil {
		return nil, fmt.Errorf("failed to record form completion: %w", err)
	}

	delete(state, "_paused_at_form")
	state[formNodeID] = map[string]interface{}{"form_data": formData}

	input, _ := state["input"].(map[string]interface{})
	merged := maps.Clone(input)
	if merged == nil {
		merged = map[string]interface{}{}
	}
	maps.Copy(merged, formData)
	state["input"] = merged

	rec.Status = ledger.StatusRunning
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize resumed state: %w", err)
	}
	rec.StateData = string(stateJSON)
	if err := it.Ledger.UpsertWorkflowExecution(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist resumed workflow execution: %w", err)
	}

	next, hasNext := compiled.Next(it.Conditions, formNodeID, state)
	if !hasNext {
		rec.Status = ledger.StatusCompleted
		if err := it.Ledger.UpsertWorkflowExecution(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to persist completed workflow execution: %w", err)
		}
		return &ExecuteResult{Status: StatusSuccess, ExecutionID: executionID, Result: state}, nil
	}

	return it.drive(ctx, rec, compiled, state, next)
}
