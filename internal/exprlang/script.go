package exprlang

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ScriptRunner executes trusted script bodies attached to decision nodes.
// Unlike ConditionEvaluator, a script may mutate execution
// state: it is bound a "set" function that writes into the live state map,
// which the caller observes after Run returns. Running a script is
// equivalent to granting it full read/write access to state — it must never
// be reachable from untrusted graph input.
type ScriptRunner struct {
	mu           sync.RWMutex
	programCache map[string]*vm.Program
}

// NewScriptRunner returns a ScriptRunner with an empty compiled-program
// cache.
func NewScriptRunner() *ScriptRunner {
	return &ScriptRunner{programCache: make(map[string]*vm.Program)}
}

// Run compiles (or reuses a cached compilation of) source and executes it
// against state and input. The script observes state and input as "state"
// and "input", and may call set(path, value) to assign a top-level key of
// state; mutations are applied in place before Run returns. The script's
// own expression value, if any, is returned as the first result.
func (r *ScriptRunner) Run(source string, state, input map[string]interface{}) (interface{}, error) {
	if source == "" {
		return nil, fmt.Errorf("empty script source")
	}
	if state == nil {
		return nil, fmt.Errorf("script requires a non-nil state map")
	}

	env := r.buildEnv(state, input)

	program, err := r.program(source, env)
	if err != nil {
		return nil, err
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("script execution failed: %w", err)
	}
	return out, nil
}

func (r *ScriptRunner) program(source string, env map[string]interface{}) (*vm.Program, error) {
	r.mu.RLock()
	prg, ok := r.programCache[source]
	r.mu.RUnlock()
	if ok {
		return prg, nil
	}

	prg, err := expr.Compile(source, expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("script compilation failed: %w", err)
	}

	r.mu.Lock()
	r.programCache[source] = prg
	r.mu.Unlock()
	return prg, nil
}

func (r *ScriptRunner) buildEnv(state, input map[string]interface{}) map[string]interface{} {
	env := map[string]interface{}{
		"state": state,
		"input": input,
	}
	env["set"] = func(key string, value interface{}) bool {
		state[key] = value
		return true
	}
	env["get"] = func(key string) interface{} {
		return state[key]
	}
	return env
}

// ClearCache drops every compiled script program.
func (r *ScriptRunner) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programCache = make(map[string]*vm.Program)
}
