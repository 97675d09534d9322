// Package dispatch implements the Runner Dispatcher (component H): an
// ordered list of runners, each able to report whether it handles a given
// node and to execute it. Grounded on internal/backend.Backend's interface
// shape, generalized from "one backend per VM technology" to "one runner
// per node-execution strategy".
package dispatch

import (
	"context"

	"github.com/nova-quant/pipeline/internal/domain"
	"github.com/nova-quant/pipeline/internal/sandbox"
)

// Runner is the strategy interface every dispatch target implements.
type Runner interface {
	// CanHandle reports whether this runner should execute node.
	CanHandle(node *domain.CompiledNode) bool
	// Execute runs node to completion and returns its result. It never
	// returns a Go error; all failure is captured into the result.
	Execute(ctx context.Context, node *domain.CompiledNode, in sandbox.RunInput) domain.ExecutionResult
}

// Cancellable is implemented by runners that track in-flight work by runId
// and can terminate it on demand (the design notes call this an "optional
// cancel hook").
type Cancellable interface {
	Cancel(runID string)
}

// Dispatcher holds the ordered runner list: custom-node runner first, then
// the two sandbox runtimes, then the built-in runner — first match wins,
// per spec section 4.H.
type Dispatcher struct {
	runners []Runner
}

// New builds a Dispatcher from runners in priority order.
func New(runners ...Runner) *Dispatcher {
	return &Dispatcher{runners: runners}
}

// Dispatch finds the first runner willing to handle node and executes it.
// If no runner claims the node, it returns an internal-error result rather
// than panicking — this indicates a Runner Dispatcher wiring bug, not a
// pipeline-authoring mistake (the compiler already rejected unknown types).
func (d *Dispatcher) Dispatch(ctx context.Context, node *domain.CompiledNode, in sandbox.RunInput) domain.ExecutionResult {
	for _, r := range d.runners {
		if r.CanHandle(node) {
			return r.Execute(ctx, node, in)
		}
	}
	return domain.ExecutionResult{
		NodeID:  node.ID,
		Success: false,
		Error:   "internal: no runner claims node type " + node.Type,
	}
}

// Cancel broadcasts cancellation to every runner exposing a Cancel hook.
func (d *Dispatcher) Cancel(runID string) {
	for _, r := range d.runners {
		if c, ok := r.(Cancellable); ok {
			c.Cancel(runID)
		}
	}
}
