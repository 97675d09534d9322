package dispatch

import (
	"context"

	"github.com/nova-quant/pipeline/internal/builtin"
	"github.com/nova-quant/pipeline/internal/domain"
	"github.com/nova-quant/pipeline/internal/sandbox"
)

// BuiltinAdapter lets *builtin.Runner, whose Execute signature has no
// context or sandbox.RunInput (it never blocks on I/O), satisfy the
// dispatch.Runner interface.
type BuiltinAdapter struct {
	Runner *builtin.Runner
}

func (a BuiltinAdapter) CanHandle(node *domain.CompiledNode) bool {
	return a.Runner.CanHandle(node)
}

func (a BuiltinAdapter) Execute(_ context.Context, node *domain.CompiledNode, in sandbox.RunInput) domain.ExecutionResult {
	return a.Runner.Execute(node, in.Inputs)
}

// CustomRunner handles any node type the registry marks custom (dispatch
// order's first match, per spec section 4.H), delegating the actual
// execution to whichever underlying runner matches the node's resolved
// runtime. It exists as its own pipeline stage because the dispatch order
// requires custom types to be claimed before the sandbox/builtin runners
// get a chance, even though the execution mechanism underneath is the same
// one those runners provide.
type CustomRunner struct {
	Registry domain.Registry
	HostA    *sandbox.Runner
	HostB    *sandbox.Runner
	Builtin  *builtin.Runner
}

func (c *CustomRunner) CanHandle(node *domain.CompiledNode) bool {
	return c.Registry != nil && c.Registry.IsCustom(node.Type)
}

func (c *CustomRunner) Execute(ctx context.Context, node *domain.CompiledNode, in sandbox.RunInput) domain.ExecutionResult {
	switch node.Runtime {
	case domain.RuntimeHostA:
		if c.HostA != nil {
			return c.HostA.Execute(ctx, node, in)
		}
	case domain.RuntimeHostB:
		if c.HostB != nil {
			return c.HostB.Execute(ctx, node, in)
		}
	case domain.RuntimeBuiltin:
		if c.Builtin != nil {
			return c.Builtin.Execute(node, in.Inputs)
		}
	}
	return domain.ExecutionResult{
		NodeID:  node.ID,
		Success: false,
		Error:   "internal: custom node runtime " + string(node.Runtime) + " has no registered executor",
	}
}

// Cancel forwards cancellation to whichever sandbox runtimes are wired in.
func (c *CustomRunner) Cancel(runID string) {
	if c.HostA != nil {
		c.HostA.Cancel(runID)
	}
	if c.HostB != nil {
		c.HostB.Cancel(runID)
	}
}
