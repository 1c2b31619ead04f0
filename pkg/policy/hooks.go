package policy

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
)

// HookEvaluator compiles the profile's freeze hooks once and evaluates
// them per candidate. The CEL environment exposes only the candidate facts
// (no clock, no environment access), so evaluation is deterministic and a
// replayed verdict reproduces byte for byte.
type HookEvaluator struct {
	progs map[string]cel.Program
	order []string
}

// NewHookEvaluator compiles every hook. A hook that does not compile, or
// whose expression is not boolean, fails construction: a broken policy
// profile must be fixed, not half-applied.
func NewHookEvaluator(hooks []Hook) (*HookEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("candidate", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("policy: cel environment: %w", err)
	}

	e := &HookEvaluator{progs: make(map[string]cel.Program, len(hooks))}
	for _, h := range hooks {
		ast, issues := env.Compile(h.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("policy: hook %q compile: %w", h.Name, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("policy: hook %q must be a boolean expression, got %s", h.Name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("policy: hook %q program: %w", h.Name, err)
		}
		e.progs[h.Name] = prg
		e.order = append(e.order, h.Name)
	}
	return e, nil
}

// Fired evaluates every hook against the candidate facts and returns the
// names of hooks that evaluated true, in profile order. A hook whose
// evaluation errors (e.g. a fact it references is absent) does not fire;
// the errors are aggregated for the caller to log.
func (e *HookEvaluator) Fired(candidateFacts map[string]any) ([]string, error) {
	if e == nil || len(e.progs) == 0 {
		return nil, nil
	}

	input := map[string]any{"candidate": candidateFacts}

	var fired []string
	var errs []error
	for _, name := range e.order {
		out, _, err := e.progs[name].Eval(input)
		if err != nil {
			errs = append(errs, fmt.Errorf("hook %q: %w", name, err))
			continue
		}
		if b, ok := out.Value().(bool); ok && b {
			fired = append(fired, name)
		}
	}
	return fired, errors.Join(errs...)
}
