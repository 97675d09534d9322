// Package executor orchestrates pipeline runs on behalf of callers that
// hold a pipeline id and a compiled (or compilable) description.
//
// # Execution pipeline
//
// Execute is the single entry point. The pipeline is:
//
//  1. Allocate a runId and register it with the Run State Store as active.
//  2. Compile the description text (components A-E); on failure, return
//     immediately with the joined compiler errors.
//  3. Create an ExecutionContext scoped to the run's working directory.
//  4. Walk the IR's executionOrder sequentially — there is no
//     intra-pipeline parallelism (spec section 5) — checking the
//     cancellation flag before every node.
//  5. For each node, build its input map from already-produced outputs,
//     dispatch to a runner (component H), and record the result.
//  6. On the first node failure, stop and report the aggregate failure;
//     completed results remain visible to the caller.
//  7. On normal completion, unregister the run and return success.
//
// # Concurrency
//
// Execute is safe for concurrent use: many runs may be in flight at once,
// each against its own runId and working directory. The Run State Store is
// the only state shared across concurrent runs, and it is required to
// tolerate concurrent access (spec section 5).
//
// # Cancellation
//
// CancelPipeline sets the run's cancellation flag in the store and
// broadcasts a cancel signal to every runner exposing a Cancellable hook.
// A cancelled run always returns with Cancelled=true; nodes that had
// already completed remain in Results.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/nova-quant/pipeline/internal/cancelbus"
	"github.com/nova-quant/pipeline/internal/compiler"
	"github.com/nova-quant/pipeline/internal/dispatch"
	"github.com/nova-quant/pipeline/internal/domain"
	"github.com/nova-quant/pipeline/internal/logging"
	"github.com/nova-quant/pipeline/internal/metrics"
	"github.com/nova-quant/pipeline/internal/observability"
	"github.com/nova-quant/pipeline/internal/runstate"
	"github.com/nova-quant/pipeline/internal/sandbox"
)

// Executor drives node execution over a compiled pipeline. The zero value
// is not usable; construct via New.
type Executor struct {
	registry   domain.Registry
	dispatcher *dispatch.Dispatcher
	runState   runstate.Store
	logs       *logging.RunLogStore
	runsDir    string
	cancelBus  *cancelbus.Bus
}

// Config wires an Executor's collaborators.
type Config struct {
	Registry   domain.Registry
	Dispatcher *dispatch.Dispatcher
	RunState   runstate.Store // defaults to runstate.NewMemStore() if nil
	Logs       *logging.RunLogStore
	RunsDir    string // defaults to "/runs"

	// CancelBus, if set, broadcasts CancelPipeline calls to every other
	// executor process sharing the same Redis channel, and applies
	// cancellations received from them to this process's RunState.
	CancelBus *cancelbus.Bus
}

// New constructs an Executor from cfg, applying defaults for any
// unspecified collaborator.
func New(cfg Config) *Executor {
	runState := cfg.RunState
	if runState == nil {
		runState = runstate.NewMemStore()
	}
	runsDir := cfg.RunsDir
	if runsDir == "" {
		runsDir = "/runs"
	}
	return &Executor{
		registry:   cfg.Registry,
		dispatcher: cfg.Dispatcher,
		runState:   runState,
		logs:       cfg.Logs,
		runsDir:    runsDir,
		cancelBus:  cfg.CancelBus,
	}
}

// ListenForRemoteCancellations subscribes to the Executor's cancel bus, if
// configured, and applies cancellations published by other executor
// processes to the local RunState. It blocks until ctx is cancelled, so
// callers should run it in its own goroutine for the life of the process.
func (e *Executor) ListenForRemoteCancellations(ctx context.Context) {
	if e.cancelBus == nil {
		return
	}
	e.cancelBus.Listen(ctx, func(runID string) {
		_ = e.runState.MarkCancelled(ctx, runID)
		if e.dispatcher != nil {
			e.dispatcher.Cancel(runID)
		}
	})
}

// Execute runs pipelineID's description to completion or failure, per the
// algorithm in spec section 4.G.
func (e *Executor) Execute(ctx context.Context, pipelineID, descriptionText string, datasets map[string]string) domain.PipelineExecutionResult {
	start := time.Now()
	runID := uuid.NewString()
	result := domain.PipelineExecutionResult{
		RunID:   runID,
		Results: make(map[string]domain.ExecutionResult),
	}

	ctx, span := observability.StartSpan(ctx, "executor.Execute",
		observability.AttrPipelineID.String(pipelineID),
		observability.AttrRunID.String(runID),
	)
	defer span.End()

	if err := e.runState.MarkActive(ctx, runID); err != nil {
		result.Error = fmt.Sprintf("internal: register run: %v", err)
		result.TotalExecutionTime = time.Since(start)
		observability.SetSpanError(span, err)
		return result
	}

	compiled := compiler.CompileTraced(ctx, descriptionText, e.registry)
	if !compiled.Success {
		result.Error = joinCompileErrors(compiled.Errors)
		result.TotalExecutionTime = time.Since(start)
		_ = e.runState.Unregister(ctx, runID)
		observability.SetSpanError(span, fmt.Errorf("%s", result.Error))
		return result
	}
	ir := compiled.Pipeline

	execCtx := domain.ExecutionContext{
		RunID:      runID,
		PipelineID: pipelineID,
		WorkingDir: filepath.Join(e.runsDir, runID),
		Datasets:   datasets,
	}

	metrics.RecordRunStarted()
	runLogger(span).Info("pipeline run started", "runId", runID, "pipelineId", pipelineID, "nodes", len(ir.Nodes))

	finalOutputs := make(map[string]domain.Output, len(ir.Nodes))
	byID := make(map[string]*domain.CompiledNode, len(ir.Nodes))
	for i := range ir.Nodes {
		byID[ir.Nodes[i].ID] = &ir.Nodes[i]
	}

	for _, nodeID := range ir.ExecutionOrder {
		cancelled, err := e.runState.IsCancelled(ctx, runID)
		if err == nil && cancelled {
			result.Cancelled = true
			break
		}

		node := byID[nodeID]
		inputs := make(map[string]domain.Output, len(node.Dependencies))
		for _, dep := range node.Dependencies {
			out, ok := finalOutputs[dep]
			if !ok {
				result.Error = fmt.Sprintf("internal: missing output for dependency %q of node %q", dep, nodeID)
				result.TotalExecutionTime = time.Since(start)
				_ = e.runState.Unregister(ctx, runID)
				observability.SetSpanError(span, fmt.Errorf("%s", result.Error))
				return result
			}
			inputs[dep] = out
		}

		in := sandbox.RunInput{
			RunID:      execCtx.RunID,
			PipelineID: execCtx.PipelineID,
			Datasets:   execCtx.Datasets,
			Inputs:     inputs,
		}

		nodeCtx, nodeSpan := observability.StartSpan(ctx, "executor.dispatchNode",
			observability.AttrNodeID.String(node.ID),
			observability.AttrNodeType.String(node.Type),
			observability.AttrRuntime.String(string(node.Runtime)),
		)
		nodeResult := e.dispatcher.Dispatch(nodeCtx, node, in)
		result.Results[nodeID] = nodeResult
		if e.logs != nil {
			e.logs.Append(runID, nodeResult.StructuredLogs...)
		}
		metrics.NodesExecuted.WithLabelValues(string(node.Runtime)).Inc()

		if !nodeResult.Success {
			observability.SetSpanError(nodeSpan, fmt.Errorf("%s", nodeResult.Error))
			nodeSpan.End()
			result.Error = fmt.Sprintf("node %q failed: %s", nodeID, nodeResult.Error)
			result.TotalExecutionTime = time.Since(start)
			_ = e.runState.Unregister(ctx, runID)
			metrics.RecordRunOutcome(false, false)
			runLogger(span).Error("pipeline run failed", "runId", runID, "pipelineId", pipelineID, "node", nodeID, "error", nodeResult.Error)
			observability.SetSpanError(span, fmt.Errorf("%s", result.Error))
			return result
		}
		observability.SetSpanOK(nodeSpan)
		nodeSpan.End()
		finalOutputs[nodeID] = nodeResult.Output
	}

	result.TotalExecutionTime = time.Since(start)
	_ = e.runState.Unregister(ctx, runID)

	if result.Cancelled {
		metrics.RecordRunOutcome(false, true)
		runLogger(span).Info("pipeline run cancelled", "runId", runID, "pipelineId", pipelineID)
		observability.SetSpanOK(span)
		return result
	}

	result.Success = true
	result.FinalOutputs = finalOutputs
	metrics.RecordRunOutcome(true, false)
	runLogger(span).Info("pipeline run succeeded", "runId", runID, "pipelineId", pipelineID, "durationMs", result.TotalExecutionTime.Milliseconds())
	observability.SetSpanOK(span)
	return result
}

// runLogger returns the operational logger, correlated with span's trace
// and span ids when span carries a real (non-no-op) context.
func runLogger(span trace.Span) *slog.Logger {
	sc := span.SpanContext()
	if !sc.IsValid() {
		return logging.Op()
	}
	return logging.OpWithTrace(sc.TraceID().String(), sc.SpanID().String())
}

// CancelPipeline marks runID cancelled and broadcasts the signal to every
// runner with a Cancellable hook. It is idempotent and returns false only
// when the underlying store reports an error.
func (e *Executor) CancelPipeline(ctx context.Context, runID string) bool {
	if err := e.runState.MarkCancelled(ctx, runID); err != nil {
		return false
	}
	if e.dispatcher != nil {
		e.dispatcher.Cancel(runID)
	}
	if e.cancelBus != nil {
		_ = e.cancelBus.Publish(ctx, runID)
	}
	return true
}

func joinCompileErrors(errs []domain.CompilationError) string {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
	return msg
}
