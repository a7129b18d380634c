package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/lyzr/workflowengine/internal/exprlang"
	"github.com/lyzr/workflowengine/internal/graph"
	"github.com/lyzr/workflowengine/internal/ledger"
)

// DecisionDeps are the collaborators a decision node executor needs.
type DecisionDeps struct {
	Conditions *exprlang.ConditionEvaluator
	Scripts    *exprlang.ScriptRunner
	Ledger     *ledger.Store
}

// NewDecisionFactory returns the executor factory for "decision" nodes: a
// working copy of state is mutated by every rule whose condition is true
// (in order, last write wins across rules), then by an optional script.
// A decision node never fails the workflow — condition and script errors
// are logged and treated as no-ops.
func NewDecisionFactory(deps DecisionDeps) graph.ExecutorFactory {
	return func(node *graph.Node, executionID string) (graph.NodeExecutor, error) {
		var cfg DecisionConfig
		if err := json.Unmarshal(node.Data, &cfg); err != nil {
			return nil, fmt.Errorf("invalid decision node config for %q: %w", node.ID, err)
		}
		label := cfg.Label
		if label == "" {
			label = node.ID
		}

		return func(ctx context.Context, state map[string]interface{}) (map[string]interface{}, error) {
			start := time.Now()

			next := maps.Clone(state)
			input, _ := next["input"].(map[string]interface{})

			var actionsTaken []map[string]interface{}
			for _, rule := range cfg.Rules {
				ok, err := deps.Conditions.Evaluate(rule.Condition, next, input)
				if err != nil {
					slog.Warn("decision rule condition error", "node", node.ID, "condition", rule.Condition, "error", err)
					continue
				}
				if !ok {
					continue
				}
				for k, v := range rule.Action {
					next[k] = v
				}
				actionsTaken = append(actionsTaken, map[string]interface{}{
					"condition": rule.Condition,
					"action":    rule.Action,
				})
			}

			if cfg.Script != "" {
				if _, err := deps.Scripts.Run(cfg.Script, next, input); err != nil {
					slog.Warn("decision script error", "node", node.ID, "error", err)
				}
			}

			execMs := time.Since(start).Milliseconds()
			reqJSON, _ := json.Marshal(map[string]interface{}{"rules": cfg.Rules, "script": cfg.Script})
			respJSON, _ := json.Marshal(map[string]interface{}{"actions_taken": actionsTaken})
			reqStr, respStr := string(reqJSON), string(respJSON)

			if _, err := deps.Ledger.AppendNodeExecution(ctx, &ledger.NodeExecution{
				WorkflowExecutionID: executionID,
				NodeID:              node.ID,
				NodeType:            "decision",
				NodeLabel:           label,
				Status:              ledger.NodeCompleted,
				RequestData:         &reqStr,
				ResponseData:        &respStr,
				ExecutionTimeMs:     &execMs,
			}); err != nil {
				return nil, fmt.Errorf("failed to record decision node execution: %w", err)
			}

			return next, nil
		}, nil
	}
}
