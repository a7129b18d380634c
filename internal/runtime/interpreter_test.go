package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lyzr/workflowengine/internal/exprlang"
	"github.com/lyzr/workflowengine/internal/graph"
	"github.com/lyzr/workflowengine/internal/httpclient"
	"github.com/lyzr/workflowengine/internal/ledger"
	"github.com/lyzr/workflowengine/internal/nodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInterpreter(t *testing.T) *Interpreter {
	t.Helper()
	store, err := ledger.Open(context.Background(), "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	conditions := exprlang.NewConditionEvaluator()
	scripts := exprlang.NewScriptRunner()
	httpClient := httpclient.New(nil)

	it := &Interpreter{Ledger: store, Conditions: conditions, MaxSteps: graph.DefaultMaxSteps}
	registry := graph.Registry{
		"service":     nodes.NewServiceFactory(nodes.ServiceDeps{HTTP: httpClient, Ledger: store}),
		"decision":    nodes.NewDecisionFactory(nodes.DecisionDeps{Conditions: conditions, Scripts: scripts, Ledger: store}),
		"form":        nodes.NewFormFactory(nodes.FormDeps{Ledger: store}),
		"subworkflow": nodes.NewSubworkflowFactory(nodes.SubworkflowDeps{Ledger: store, Runner: it}),
	}
	it.Registry = registry
	return it
}

func docFrom(t *testing.T, v map[string]interface{}) *graph.Document {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var doc graph.Document
	require.NoError(t, json.Unmarshal(b, &doc))
	return &doc
}

func TestExecute_LinearServiceChainCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	it := newTestInterpreter(t)
	doc := docFrom(t, map[string]interface{}{
		"nodes": []map[string]interface{}{
			{"id": "a", "type": "service", "data": map[string]interface{}{"url": srv.URL}},
			{"id": "b", "type": "service", "data": map[string]interface{}{"url": srv.URL}},
		},
		"edges": []map[string]interface{}{{"source": "a", "target": "b"}},
	})

	res, err := it.Execute(context.Background(), doc, map[string]interface{}{"x": 1.0}, "linear")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.NotNil(t, res.Result["a"])
	assert.NotNil(t, res.Result["b"])
}

func TestExecute_ConditionalRoutingFirstTrueWins(t *testing.T) {
	it := newTestInterpreter(t)
	doc := docFrom(t, map[string]interface{}{
		"nodes": []map[string]interface{}{
			{"id": "decide", "type": "decision", "data": map[string]interface{}{}},
			{"id": "gold", "type": "decision", "data": map[string]interface{}{"rules": []map[string]interface{}{
				{"condition": "true", "action": map[string]interface{}{"path": "gold"}},
			}}},
			{"id": "silver", "type": "decision", "data": map[string]interface{}{"rules": []map[string]interface{}{
				{"condition": "true", "action": map[string]interface{}{"path": "silver"}},
			}}},
		},
		"edges": []map[string]interface{}{
			{"source": "decide", "target": "gold", "condition": "input.amount > 100.0"},
			{"source": "decide", "target": "silver"},
		},
	})

	res, err := it.Execute(context.Background(), doc, map[string]interface{}{"amount": 200.0}, "conditional")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "gold", res.Result["path"])
}

func TestExecute_FormNodePausesAndResumeContinues(t *testing.T) {
	it := newTestInterpreter(t)
	doc := docFrom(t, map[string]interface{}{
		"nodes": []map[string]interface{}{
			{"id": "approve", "type": "form", "data": map[string]interface{}{"schema": map[string]interface{}{"type": "object"}}},
			{"id": "after", "type": "decision", "data": map[string]interface{}{"rules": []map[string]interface{}{
				{"condition": "input.approved == true", "action": map[string]interface{}{"done": true}},
			}}},
		},
		"edges": []map[string]interface{}{{"source": "approve", "target": "after"}},
	})

	res, err := it.Execute(context.Background(), doc, map[string]interface{}{}, "pausable")
	require.NoError(t, err)
	require.Equal(t, StatusPaused, res.Status)
	require.NotEmpty(t, res.ExecutionID)

	resumed, err := it.Resume(context.Background(), res.ExecutionID, map[string]interface{}{"approved": true})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resumed.Status)
	assert.Equal(t, true, resumed.Result["done"])
}

func TestResume_NotPausedIsRejected(t *testing.T) {
	it := newTestInterpreter(t)
	doc := docFrom(t, map[string]interface{}{
		"nodes": []map[string]interface{}{{"id": "a", "type": "decision", "data": map[string]interface{}{}}},
	})
	res, err := it.Execute(context.Background(), doc, map[string]interface{}{}, "done-already")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, res.Status)

	_, err = it.Resume(context.Background(), res.ExecutionID, map[string]interface{}{})
	assert.ErrorIs(t, err, ErrNotPaused)
}

func TestResume_UnknownExecutionIsNotFound(t *testing.T) {
	it := newTestInterpreter(t)
	_, err := it.Resume(context.Background(), "does-not-exist", map[string]interface{}{})
	assert.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestExecute_ServiceFailureDoesNotAbortWorkflow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	it := newTestInterpreter(t)
	doc := docFrom(t, map[string]interface{}{
		"nodes": []map[string]interface{}{
			{"id": "a", "type": "service", "data": map[string]interface{}{"url": srv.URL}},
			{"id": "b", "type": "service", "data": map[string]interface{}{"url": srv.URL}},
		},
		"edges": []map[string]interface{}{{"source": "a", "target": "b"}},
	})

	res, err := it.Execute(context.Background(), doc, map[string]interface{}{}, "resilient")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.NotNil(t, res.Result["b"])
}

func TestExecute_SubworkflowLineageRecorded(t *testing.T) {
	it := newTestInterpreter(t)
	child := map[string]interface{}{
		"nodes": []map[string]interface{}{{"id": "only", "type": "decision", "data": map[string]interface{}{
			"rules": []map[string]interface{}{{"condition": "true", "action": map[string]interface{}{"reached": true}}},
		}}},
	}
	doc := docFrom(t, map[string]interface{}{
		"nodes": []map[string]interface{}{
			{"id": "spawn", "type": "subworkflow", "data": map[string]interface{}{"graph": child}},
		},
	})

	res, err := it.Execute(context.Background(), doc, map[string]interface{}{}, "parent")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, res.Status)

	spawnResult := res.Result["spawn"].(map[string]interface{})
	childID, _ := spawnResult["sub_execution_id"].(string)
	require.NotEmpty(t, childID)

	childRec, err := it.Ledger.GetWorkflowExecution(context.Background(), childID)
	require.NoError(t, err)
	require.NotNil(t, childRec.ParentExecutionID)
	assert.Equal(t, res.ExecutionID, *childRec.ParentExecutionID)
}

func TestExecute_StepBudgetExceededFailsCleanly(t *testing.T) {
	it := newTestInterpreter(t)
	it.MaxSteps = 3
	doc := docFrom(t, map[string]interface{}{
		"nodes": []map[string]interface{}{
			{"id": "a", "type": "decision", "data": map[string]interface{}{}},
			{"id": "b", "type": "decision", "data": map[string]interface{}{}},
		},
		"edges": []map[string]interface{}{
			{"source": "a", "target": "b"},
			{"source": "b", "target": "a"},
		},
	})

	res, err := it.Execute(context.Background(), doc, map[string]interface{}{}, "looping")
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "step budget")
}

func TestExecute_TemplateSubstitutionResilientToMissingPaths(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	it := newTestInterpreter(t)
	doc := docFrom(t, map[string]interface{}{
		"nodes": []map[string]interface{}{
			{"id": "a", "type": "service", "data": map[string]interface{}{
				"url":     srv.URL,
				"request": map[string]interface{}{"missing": "{input.nope}", "present": "{input.x}"},
			}},
		},
	})

	res, err := it.Execute(context.Background(), doc, map[string]interface{}{"x": "here"}, "templated")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "{input.nope}", received["missing"])
	assert.Equal(t, "here", received["present"])
}
