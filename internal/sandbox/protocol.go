// Package sandbox implements the Sandbox Runner (component I): it spawns
// an isolated worker process per node invocation, enforces resource and
// wall-clock limits, and marshals node I/O through files per the protocol
// in spec section 6. Two distinct runtimes (hostA, hostB) share this one
// generic "isolated subprocess" implementation, parameterized by the
// executable each launches — the unification the design notes explicitly
// permit. Grounded on internal/docker/manager.go and internal/kata/manager.go,
// which solve the same "launch isolated worker, track handle for
// cancellation, tear down" lifecycle for two different container backends.
package sandbox

import "github.com/nova-quant/pipeline/internal/domain"

// InputDocument is the sandbox worker protocol's input file shape.
type InputDocument struct {
	NodeType string         `json:"nodeType"`
	Params   map[string]any `json:"params"`
	Inputs   map[string]any `json:"inputs"`
	Context  InputContext   `json:"context"`
}

// InputContext is the run-scoped metadata every worker receives.
type InputContext struct {
	RunID      string            `json:"runId"`
	PipelineID string            `json:"pipelineId"`
	Datasets   map[string]string `json:"datasets"`
}

// RunInput is what the Runner Dispatcher hands a runner for one node
// invocation: the resolved dependency outputs and run-scoped context.
type RunInput struct {
	RunID      string
	PipelineID string
	Datasets   map[string]string
	Inputs     map[string]domain.Output // keyed by dependency id
}
