package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"

	"github.com/google/uuid"
	"github.com/lyzr/workflowengine/internal/exprlang"
	"github.com/lyzr/workflowengine/internal/graph"
	"github.com/lyzr/workflowengine/internal/ledger"
)

// Interpreter compiles and drives workflow graphs. It is stateless between
// calls apart from the ledger: every Execute or Resume call performs a
// fresh compile, by design.
type Interpreter struct {
	Ledger     *ledger.Store
	Conditions *exprlang.ConditionEvaluator
	Registry   graph.Registry
	MaxSteps   int
}

// New returns an Interpreter with DefaultMaxSteps as its step budget.
// Registry must already have its subworkflow factory wired to an
// Interpreter (typically this same one) satisfying nodes.SubworkflowRunner.
func New(store *ledger.Store, conditions *exprlang.ConditionEvaluator, registry graph.Registry) *Interpreter {
	return &Interpreter{
		Ledger:     store,
		Conditions: conditions,
		Registry:   registry,
		MaxSteps:   graph.DefaultMaxSteps,
	}
}

func (it *Interpreter) maxSteps() int {
	if it.MaxSteps <= 0 {
		return graph.DefaultMaxSteps
	}
	return it.MaxSteps
}

// Execute mints a new execution id, persists a running record, compiles doc,
// and drives it from its entry node. The returned error is non-nil only
// when the failure could not even be recorded in the ledger; domain-level
// failures (compile errors, step budget exhaustion) are reported via
// ExecuteResult.Status == StatusError instead.
func (it *Interpreter) Execute(ctx context.Context, doc *graph.Document, inputs map[string]interface{}, workflowName string) (*ExecuteResult, error) {
	return it.executeAs(ctx, doc, inputs, workflowName, "", uuid.NewString())
}

// executeAs runs doc as execID, optionally linked to parentExecutionID (used
// by subworkflow nodes to establish lineage). workflowName falls back to the
// id when empty.
func (it *Interpreter) executeAs(ctx context.Context, doc *graph.Document, inputs map[string]interface{}, workflowName, parentExecutionID, execID string) (*ExecuteResult, error) {
	if workflowName == "" {
		workflowName = execID
	}

	graphJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workflow graph: %w", err)
	}

	state := map[string]interface{}{"input": inputs}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize initial state: %w", err)
	}

	var parentPtr *string
	if parentExecutionID != "" {
		parentPtr = &parentExecutionID
	}

	rec := &ledger.WorkflowExecution{
		ID:                execID,
		WorkflowName:      workflowName,
		Status:            ledger.StatusRunning,
		CurrentNodeID:     firstNodeID(doc),
		StateData:         string(stateJSON),
		GraphJSON:         string(graphJSON),
		ParentExecutionID: parentPtr,
	}
	if err := it.Ledger.UpsertWorkflowExecution(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist new workflow execution: %w", err)
	}

	compiled, err := graph.Compile(doc, it.Registry, execID)
	if err != nil {
		return it.finishAsFailed(ctx, rec, state, fmt.Errorf("compilation error: %w", err))
	}

	return it.drive(ctx, rec, compiled, state, compiled.Entry)
}

// drive runs the compiled graph starting at startNode, persisting the
// terminal record and translating the outcome into an ExecuteResult.
func (it *Interpreter) drive(ctx context.Context, rec *ledger.WorkflowExecution, compiled *graph.Compiled, state map[string]interface{}, startNode string) (*ExecuteResult, error) {
	finalState, current, err := it.run(ctx, compiled, rec.ID, state, startNode)
	if err != nil {
		return it.finishAsFailed(ctx, rec, finalState, err)
	}

	rec.CurrentNodeID = &current
	stateJSON, err := json.Marshal(finalState)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize final state: %w", err)
	}
	rec.StateData = string(stateJSON)

	if pauseInfo, paused := finalState["_paused_at_form"].(map[string]interface{}); paused {
		rec.Status = ledger.StatusPaused
		if err := it.Ledger.UpsertWorkflowExecution(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to persist paused workflow execution: %w", err)
		}
		return &ExecuteResult{
			Status:       StatusPaused,
			ExecutionID:  rec.ID,
			Result:       finalState,
			PausedAtForm: pauseInfo,
		}, nil
	}

	rec.Status = ledger.StatusCompleted
	if err := it.Ledger.UpsertWorkflowExecution(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist completed workflow execution: %w", err)
	}
	return &ExecuteResult{
		Status:      StatusSuccess,
		ExecutionID: rec.ID,
		Result:      finalState,
	}, nil
}

// run traverses compiled, executing startNode and each resolved successor
// in turn, until a node pauses the workflow, no successor remains, or the
// step budget is exhausted.
func (it *Interpreter) run(ctx context.Context, compiled *graph.Compiled, execID string, state map[string]interface{}, startNode string) (map[string]interface{}, string, error) {
	current := startNode
	steps := 0
	for {
		if steps >= it.maxSteps() {
			return state, current, fmt.Errorf("exceeded maximum step budget of %d", it.maxSteps())
		}

		executor, ok := compiled.Executors[current]
		if !ok {
			return state, current, fmt.Errorf("no executor registered for node %q", current)
		}

		newState, err := executor(ctx, state)
		if err != nil {
			return state, current, fmt.Errorf("node %q invocation failed: %w", current, err)
		}
		state = newState

		if _, paused := state["_paused_at_form"]; paused {
			return state, current, nil
		}

		next, hasNext := compiled.Next(it.Conditions, current, state)
		if !hasNext {
			return state, current, nil
		}
		current = next
		steps++
	}
}

func (it *Interpreter) finishAsFailed(ctx context.Context, rec *ledger.WorkflowExecution, state map[string]interface{}, cause error) (*ExecuteResult, error) {
	if state == nil {
		state = map[string]interface{}{}
	}
	state = maps.Clone(state)
	state["error"] = cause.Error()

	stateJSON, err := json.Marshal(state)
	if err != nil {
		slog.Error("failed to serialize failed execution state", "execution_id", rec.ID, "error", err)
		return nil, fmt.Errorf("failed to serialize failed execution state: %w", err)
	}
	rec.Status = ledger.StatusFailed
	rec.StateData = string(stateJSON)

	if err := it.Ledger.UpsertWorkflowExecution(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist failed workflow execution: %w", err)
	}

	return &ExecuteResult{
		Status:      StatusError,
		ExecutionID: rec.ID,
		Result:      state,
		Error:       cause.Error(),
	}, nil
}

func firstNodeID(doc *graph.Document) *string {
	if len(doc.Nodes) == 0 {
		return nil
	}
	id := doc.Nodes[0].ID
	return &id
}
