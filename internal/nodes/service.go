package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lyzr/workflowengine/internal/graph"
	"github.com/lyzr/workflowengine/internal/httpclient"
	"github.com/lyzr/workflowengine/internal/ledger"
	"github.com/lyzr/workflowengine/internal/pathutil"
)

// ServiceDeps are the collaborators a service node executor needs: an
// outbound HTTP client and the ledger to append its execution record and
// fold its timing into the node's running metric.
type ServiceDeps struct {
	HTTP   *httpclient.Client
	Ledger *ledger.Store
}

// NewServiceFactory returns the executor factory for "service" nodes:
// render the request template against state, apply field mappings, call
// the configured URL, and record the outcome. A failed call never aborts
// the workflow — it is recorded and folded into state as an error payload.
func NewServiceFactory(deps ServiceDeps) graph.ExecutorFactory {
	return func(node *graph.Node, executionID string) (graph.NodeExecutor, error) {
		var cfg ServiceConfig
		if err := json.Unmarshal(node.Data, &cfg); err != nil {
			return nil, fmt.Errorf("invalid service node config for %q: %w", node.ID, err)
		}

		method := strings.ToUpper(cfg.Method)
		if method == "" {
			method = "POST"
		}
		label := cfg.Label
		if label == "" {
			label = node.ID
		}

		var template interface{}
		if len(cfg.Request) > 0 {
			if err := json.Unmarshal(cfg.Request, &template); err != nil {
				return nil, fmt.Errorf("invalid request template for %q: %w", node.ID, err)
			}
		}

		return func(ctx context.Context, state map[string]interface{}) (map[string]interface{}, error) {
			start := time.Now()

			rendered := pathutil.Render(cloneJSONValue(template), state)
			payload, ok := rendered.(map[string]interface{})
			if !ok {
				payload = map[string]interface{}{}
			}

			for _, m := range cfg.Mappings {
				val, found := pathutil.Get(state, m.Source)
				if !found {
					continue
				}
				setNestedField(payload, m.Target, applyTransform(val, m.Transform))
			}

			result := deps.HTTP.Do(ctx, method, cfg.URL, payload)
			execMs := time.Since(start).Milliseconds()

			var response interface{}
			var errMsg *string
			if result.Success {
				response = result.Body
			} else {
				response = map[string]interface{}{"error": result.ErrorText}
				e := result.ErrorText
				errMsg = &e
			}

			status := ledger.NodeCompleted
			if !result.Success {
				status = ledger.NodeFailed
			}

			reqJSON, _ := json.Marshal(payload)
			respJSON, _ := json.Marshal(response)
			reqStr, respStr := string(reqJSON), string(respJSON)

			if _, err := deps.Ledger.AppendNodeExecution(ctx, &ledger.NodeExecution{
				WorkflowExecutionID: executionID,
				NodeID:              node.ID,
				NodeType:            "service",
				NodeLabel:           label,
				Status:              status,
				RequestData:         &reqStr,
				ResponseData:        &respStr,
				ErrorMessage:        errMsg,
				ExecutionTimeMs:     &execMs,
			}); err != nil {
				return nil, fmt.Errorf("failed to record service node execution: %w", err)
			}

			if err := deps.Ledger.UpdateServiceMetric(ctx, node.ID, result.Success, &execMs); err != nil {
				return nil, fmt.Errorf("failed to update service metric: %w", err)
			}

			state[node.ID] = map[string]interface{}{
				"request":  payload,
				"response": response,
				"_metrics": map[string]interface{}{
					"last_exec_ms": execMs,
					"success":      result.Success,
				},
			}
			return state, nil
		}, nil
	}
}

func applyTransform(val interface{}, transform string) interface{} {
	switch transform {
	case "upper":
		return strings.ToUpper(fmt.Sprint(val))
	case "lower":
		return strings.ToLower(fmt.Sprint(val))
	case "strip":
		return strings.TrimSpace(fmt.Sprint(val))
	default:
		return val
	}
}

// setNestedField assigns val at a dotted target path within payload,
// creating intermediate maps as needed.
func setNestedField(payload map[string]interface{}, target string, val interface{}) {
	parts := strings.Split(target, ".")
	cur := payload
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = val
}

// cloneJSONValue deep-copies a JSON-compatible value via a marshal/unmarshal
// round trip, so rendering a request template never mutates the node's
// cached, parsed-once copy.
func cloneJSONValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
