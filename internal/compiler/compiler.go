// Package compiler wires the DSL Parser, Parameter Schema Validator,
// Dependency Analyzer, Contract Checker, and IR Emitter (components A-E)
// into the single compile() entry point described in spec section 6.
// Grounded on internal/domain/workflow.go's versioned-definition idiom for
// the emitted IR shape.
package compiler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nova-quant/pipeline/internal/contract"
	"github.com/nova-quant/pipeline/internal/dag"
	"github.com/nova-quant/pipeline/internal/domain"
	"github.com/nova-quant/pipeline/internal/metrics"
	"github.com/nova-quant/pipeline/internal/observability"
	"github.com/nova-quant/pipeline/internal/parser"
	"github.com/nova-quant/pipeline/internal/validate"
)

// CompilerVersion is stamped into every emitted IR's metadata.
const CompilerVersion = "pipeline-compiler/1"

// CompileTraced wraps Compile with an observability span and the
// compilations_total/compilation_duration_seconds metrics, for callers
// (the executor, cmd/pipelinectl) that want compile() visible in traces.
// Compile itself stays context-free since parsing/validation/analysis are
// pure and never block.
func CompileTraced(ctx context.Context, descriptionText string, registry domain.Registry) domain.CompilationResult {
	ctx, span := observability.StartSpan(ctx, "compiler.Compile")
	defer span.End()

	start := time.Now()
	result := Compile(descriptionText, registry)
	metrics.CompilationDuration.Observe(time.Since(start).Seconds())

	outcome := "success"
	if !result.Success {
		outcome = "failure"
		observability.SetSpanError(span, fmt.Errorf("%s", joinErrorTypes(result.Errors)))
	} else {
		observability.SetSpanOK(span)
	}
	metrics.CompilationsTotal.WithLabelValues(outcome).Inc()
	_ = ctx
	return result
}

func joinErrorTypes(errs []domain.CompilationError) string {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
	return msg
}

// Compile runs the full A-E pipeline over descriptionText. It never panics
// on malformed input; every failure becomes an entry in
// CompilationResult.Errors and Success=false.
func Compile(descriptionText string, registry domain.Registry) domain.CompilationResult {
	nodes, warnings, err := parser.Parse(descriptionText)
	if err != nil {
		return domain.CompilationResult{
			Success: false,
			Errors:  []domain.CompilationError{toWireError(err)},
		}
	}

	var result domain.CompilationResult
	result.Warnings = warnings

	// Parameter validation runs per node; nodes are independent of one
	// another at this stage, so the validator's per-node pass runs
	// concurrently. The Contract Checker below walks nodes sequentially.
	normalized := make([]domain.Node, len(nodes))
	normErrs := make([][]*domain.CompileError, len(nodes))
	{
		var g errgroup.Group
		for i, n := range nodes {
			i, n := i, n
			g.Go(func() error {
				out := validate.Node(n)
				nn := n
				nn.Params = out.Params
				normalized[i] = nn
				normErrs[i] = out.Violations
				return nil
			})
		}
		_ = g.Wait() // validate.Node never returns an error through errgroup
	}
	for _, errs := range normErrs {
		for _, e := range errs {
			result.Errors = append(result.Errors, toWireError(e))
		}
	}

	// Unknown non-built-in types must be checked against the registry so
	// S3 (unknown type) reports a semantic error before dependency/contract
	// analysis runs on a type nobody can execute.
	var nonBuiltin []string
	for _, n := range normalized {
		if !isBuiltin(n.Type) {
			nonBuiltin = append(nonBuiltin, n.Type)
		}
	}
	if len(nonBuiltin) > 0 && registry != nil {
		if valid, missing := registry.ValidateReferences(nonBuiltin); !valid {
			for _, typ := range missing {
				result.Errors = append(result.Errors, domain.CompilationError{
					Type:    string(domain.ErrorKindSemantic),
					Message: fmt.Sprintf("unknown node type %q", typ),
				})
			}
		}
	}

	depResult := dag.Analyze(normalized)
	for _, e := range depResult.Errors {
		result.Errors = append(result.Errors, toWireError(e))
	}
	if len(depResult.Errors) > 0 {
		return result
	}

	byID := make(map[string]domain.Node, len(normalized))
	for _, n := range normalized {
		byID[n.ID] = n
	}

	contractResult := contract.Check(depResult.Order, byID, registry)
	for _, e := range contractResult.Errors {
		result.Errors = append(result.Errors, toWireError(e))
	}

	if len(result.Errors) > 0 {
		result.Success = false
		return result
	}

	ir := emit(depResult.Order, byID, contractResult.OutputSchemas, registry)
	result.Success = true
	result.Pipeline = &ir
	return result
}

func isBuiltin(typ string) bool {
	switch typ {
	case domain.TypeDataLoader, domain.TypeIndicator, domain.TypeCrossoverSignal, domain.TypeBacktest:
		return true
	}
	return false
}

func emit(order []string, byID map[string]domain.Node, schemas map[string]domain.OutputSchema, registry domain.Registry) domain.IR {
	nodes := make([]domain.CompiledNode, 0, len(order))
	var deps []domain.IRDependency

	for _, id := range order {
		n := byID[id]
		cn := domain.CompiledNode{
			ID:           n.ID,
			Type:         n.Type,
			Runtime:      runtimeFor(n.Type, registry),
			Dependencies: append([]string{}, n.DependsOn...),
			Parameters:   n.Params,
			OutputSchema: schemas[id],
		}
		for _, dep := range n.DependsOn {
			cn.InputSchemas = append(cn.InputSchemas, schemas[dep])
			deps = append(deps, domain.IRDependency{From: dep, To: n.ID, Type: "data"})
		}
		nodes = append(nodes, cn)
	}

	return domain.IR{
		Version: "1",
		Metadata: domain.IRMetadata{
			TotalNodes: len(nodes),
			CompiledAt: time.Now(),
			Compiler:   CompilerVersion,
		},
		Nodes:          nodes,
		ExecutionOrder: order,
		Dependencies:   deps,
	}
}

func runtimeFor(typ string, registry domain.Registry) domain.RuntimeKind {
	if isBuiltin(typ) {
		return domain.RuntimeBuiltin
	}
	if registry != nil {
		if pair, ok := registry.Schemas(typ); ok {
			return pair.Runtime
		}
	}
	return domain.RuntimeBuiltin
}

func toWireError(err error) domain.CompilationError {
	ce, ok := err.(*domain.CompileError)
	if !ok {
		return domain.CompilationError{Type: "semantic", Message: err.Error()}
	}
	return domain.CompilationError{
		Type:    string(ce.Kind),
		Message: ce.Message,
		Node:    ce.Node,
		Field:   ce.Field,
		Line:    ce.Line,
		Column:  ce.Column,
	}
}
