// Package celexpr compiles and evaluates the optional buy_condition /
// sell_condition expression strings CrossoverSignal nodes may carry instead
// of the canonical fast_period/slow_period encoding (Open Question i).
// Eval sees one row of OHLCV data plus any upstream indicator columns as CEL
// variables. Validate declares only open/high/low/close/volume, so an
// expression that names an indicator column fails validation.
package celexpr

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
)

// DefaultEvalTimeout bounds how long a single row evaluation may run when a
// caller passes timeout<=0, matching config.CELConfig's own default.
const DefaultEvalTimeout = 50 * time.Millisecond

var baseVars = []cel.EnvOption{
	cel.Variable("open", cel.DoubleType),
	cel.Variable("high", cel.DoubleType),
	cel.Variable("low", cel.DoubleType),
	cel.Variable("close", cel.DoubleType),
	cel.Variable("volume", cel.DoubleType),
}

func newEnv(extraColumns []string) (*cel.Env, error) {
	opts := append([]cel.EnvOption{}, baseVars...)
	seen := map[string]bool{"open": true, "high": true, "low": true, "close": true, "volume": true}
	for _, c := range extraColumns {
		if seen[c] {
			continue
		}
		seen[c] = true
		opts = append(opts, cel.Variable(c, cel.DoubleType))
	}
	return cel.NewEnv(opts...)
}

// Validate compiles expr against the base OHLCV variable set and reports a
// compile-time error, used by the Parameter Schema Validator to reject a
// malformed condition string before execution ever sees it.
func Validate(expr string) error {
	env, err := newEnv(nil)
	if err != nil {
		return fmt.Errorf("build cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return issues.Err()
	}
	if _, err := cel.AstToCheckedExpr(ast); err != nil {
		return err
	}
	outType := ast.OutputType()
	if outType != cel.BoolType {
		return fmt.Errorf("expression must evaluate to bool, got %s", outType)
	}
	return nil
}

// Row is one evaluation scope: OHLCV columns plus any upstream indicator
// columns, keyed by column name.
type Row map[string]float64

// Eval compiles and evaluates expr against row, used by the built-in runner
// for each bar of a CrossoverSignal node using the expression encoding.
// timeout bounds the evaluation per row (config.CELConfig.EvalTimeout);
// timeout<=0 falls back to DefaultEvalTimeout.
func Eval(expr string, row Row, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		timeout = DefaultEvalTimeout
	}
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	env, err := newEnv(cols)
	if err != nil {
		return false, fmt.Errorf("build cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, issues.Err()
	}
	prg, err := env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return false, fmt.Errorf("build cel program: %w", err)
	}

	vars := make(map[string]any, len(row))
	for k, v := range row {
		vars[k] = v
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out, _, err := prg.ContextEval(ctx, vars)
	if err != nil {
		if ctx.Err() != nil {
			return false, fmt.Errorf("expression evaluation exceeded %s", timeout)
		}
		return false, fmt.Errorf("evaluate expression: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		if rv, ok := out.(ref.Val); ok {
			return false, fmt.Errorf("expression did not return bool: %v", rv.Type())
		}
		return false, fmt.Errorf("expression did not return bool")
	}
	return b, nil
}
