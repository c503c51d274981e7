package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// conditionEvaluator compiles and caches CEL step conditions. Conditions see
// two variables: steps (step id to output) and vars (substitution variables).
type conditionEvaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

func newConditionEvaluator() (*conditionEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("steps", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("vars", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &conditionEvaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

func (c *conditionEvaluator) program(expr string) (cel.Program, error) {
	c.mu.RLock()
	prg, hit := c.programs[expr]
	c.mu.RUnlock()
	if hit {
		return prg, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prg, hit = c.programs[expr]; hit {
		return prg, nil
	}
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	prg, err := c.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	c.programs[expr] = prg
	return prg, nil
}

// Eval reports whether expr holds. A non-boolean result is an error.
func (c *conditionEvaluator) Eval(ctx context.Context, expr string, steps map[string]any, vars map[string]string) (bool, error) {
	prg, err := c.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.ContextEval(ctx, map[string]any{
		"steps": steps,
		"vars":  vars,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition %q must evaluate to a bool, got %T", expr, out.Value())
	}
	return b, nil
}
