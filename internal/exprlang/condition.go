// Package exprlang evaluates the two expression surfaces a workflow graph
// can carry: restricted boolean conditions used for routing (via CEL) and
// trusted scripts that may mutate execution state (via expr-lang/expr).
package exprlang

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// ConditionEvaluator evaluates routing conditions. It is side-effect-free by
// construction: the CEL environment exposes only read bindings, so a
// condition can never mutate state, satisfying the restricted-language half
// of the expression surface.
type ConditionEvaluator struct {
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewConditionEvaluator returns a ConditionEvaluator with an empty program
// cache.
func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{cache: make(map[string]cel.Program)}
}

// Evaluate compiles (or reuses a cached compilation of) expr and runs it
// against state and input, both exposed as dynamically typed CEL variables.
// The expression must evaluate to a bool; any other result, or a compile or
// runtime error, is returned as an error rather than panicking.
func (e *ConditionEvaluator) Evaluate(expr string, state, input map[string]interface{}) (bool, error) {
	if expr == "" {
		return false, fmt.Errorf("empty condition expression")
	}

	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"state": state,
		"input": input,
	})
	if err != nil {
		return false, fmt.Errorf("condition evaluation error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not evaluate to a boolean, got %T", expr, out.Value())
	}
	return result, nil
}

func (e *ConditionEvaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.cache[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	prg, err := e.compile(expr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

func (e *ConditionEvaluator) compile(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("state", cel.DynType),
		cel.Variable("input", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create condition environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("condition compile error: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build condition program: %w", err)
	}
	return prg, nil
}

// ClearCache drops every compiled condition program.
func (e *ConditionEvaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]cel.Program)
}

// CacheSize reports how many distinct condition expressions are compiled.
func (e *ConditionEvaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
