package dispatch

import (
	"context"
	"testing"

	"github.com/nova-quant/pipeline/internal/domain"
	"github.com/nova-quant/pipeline/internal/sandbox"
)

type fakeRunner struct {
	handles  string
	executed bool
	cancels  []string
}

func (f *fakeRunner) CanHandle(node *domain.CompiledNode) bool { return node.Type == f.handles }

func (f *fakeRunner) Execute(_ context.Context, node *domain.CompiledNode, _ sandbox.RunInput) domain.ExecutionResult {
	f.executed = true
	return domain.ExecutionResult{NodeID: node.ID, Success: true}
}

func (f *fakeRunner) Cancel(runID string) { f.cancels = append(f.cancels, runID) }

func TestDispatcher_FirstMatchWins(t *testing.T) {
	first := &fakeRunner{handles: "DataLoader"}
	second := &fakeRunner{handles: "DataLoader"}
	d := New(first, second)

	res := d.Dispatch(context.Background(), &domain.CompiledNode{ID: "n", Type: "DataLoader"}, sandbox.RunInput{})
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if !first.executed {
		t.Fatal("expected the first matching runner to execute the node")
	}
	if second.executed {
		t.Fatal("expected the second runner to never run once the first claimed the node")
	}
}

func TestDispatcher_NoRunnerClaimsNodeIsInternalError(t *testing.T) {
	d := New(&fakeRunner{handles: "DataLoader"})
	res := d.Dispatch(context.Background(), &domain.CompiledNode{ID: "n", Type: "Mystery"}, sandbox.RunInput{})
	if res.Success {
		t.Fatal("expected failure when no runner claims the node type")
	}
	if res.Error == "" {
		t.Fatal("expected a descriptive internal error")
	}
}

func TestDispatcher_CancelReachesOnlyCancellableRunners(t *testing.T) {
	cancellable := &fakeRunner{handles: "A"}
	d := New(cancellable, noCancelRunner{})

	d.Cancel("run-1")

	if len(cancellable.cancels) != 1 || cancellable.cancels[0] != "run-1" {
		t.Fatalf("expected Cancel to reach the cancellable runner, got %v", cancellable.cancels)
	}
}

// noCancelRunner implements Runner but not Cancellable, exercising the
// type-assertion guard in Dispatcher.Cancel.
type noCancelRunner struct{}

func (noCancelRunner) CanHandle(*domain.CompiledNode) bool { return false }
func (noCancelRunner) Execute(context.Context, *domain.CompiledNode, sandbox.RunInput) domain.ExecutionResult {
	return domain.ExecutionResult{}
}
