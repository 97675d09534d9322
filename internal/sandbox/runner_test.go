package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/nova-quant/pipeline/internal/domain"
)

// writeFakeWorker writes a tiny shell script implementing the sandbox worker
// protocol: read argv[1], write a fixed dataframe document to argv[2], log
// one INFO line. sleepSeconds, if > 0, makes it block past the wall clock.
func writeFakeWorker(t *testing.T, dir string, sleepSeconds int) string {
	t.Helper()
	path := filepath.Join(dir, "worker.sh")
	script := "#!/bin/sh\necho '[INFO] starting'\n"
	if sleepSeconds > 0 {
		script += "sleep " + strconv.Itoa(sleepSeconds) + "\n"
	}
	script += `echo '{"type":"dataframe","rows":[{"close":1}]}' > "$2"` + "\n"
	if err := os.WriteFile(path, []byte(script), 0o700); err != nil {
		t.Fatalf("write fake worker: %v", err)
	}
	return path
}

func TestRunner_ExecuteSuccess(t *testing.T) {
	dir := t.TempDir()
	worker := writeFakeWorker(t, dir, 0)
	r := New(Config{Name: "hostA", Executable: "/bin/sh", ExtraArgs: []string{worker}, WallClock: 5 * time.Second, BaseDir: dir})

	node := &domain.CompiledNode{ID: "n", Type: "SentimentScorer", Runtime: domain.RuntimeHostA}
	res := r.Execute(context.Background(), node, RunInput{RunID: "run-1", PipelineID: "p1"})

	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if res.Output["type"] != "dataframe" {
		t.Fatalf("expected dataframe output, got %v", res.Output)
	}
	found := false
	for _, l := range res.StructuredLogs {
		if l.Level == domain.LogInfo && l.Message == "starting" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an INFO log line to be captured, got %+v", res.StructuredLogs)
	}
}

func TestRunner_ExecuteTimeout(t *testing.T) {
	dir := t.TempDir()
	worker := writeFakeWorker(t, dir, 3)
	r := New(Config{Name: "hostA", Executable: "/bin/sh", ExtraArgs: []string{worker}, WallClock: 200 * time.Millisecond, BaseDir: dir})

	node := &domain.CompiledNode{ID: "n", Type: "SentimentScorer", Runtime: domain.RuntimeHostA}
	res := r.Execute(context.Background(), node, RunInput{RunID: "run-2"})

	if res.Success {
		t.Fatal("expected a timeout failure")
	}
	if res.Error != "timeout" {
		t.Fatalf("expected error=timeout, got %q", res.Error)
	}
}

func TestRunner_ExecuteMissingOutputIsFailure(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{Name: "hostA", Executable: "/bin/true", WallClock: 2 * time.Second, BaseDir: dir})

	node := &domain.CompiledNode{ID: "n", Type: "SentimentScorer", Runtime: domain.RuntimeHostA}
	res := r.Execute(context.Background(), node, RunInput{RunID: "run-3"})

	if res.Success {
		t.Fatal("expected failure when the worker writes no output file")
	}
}

func TestRunner_CancelIsIdempotentForUnknownRun(t *testing.T) {
	r := New(Config{Name: "hostA", Executable: "/bin/true"})
	r.Cancel("never-ran") // must not panic
}

func TestRunner_CanHandleMatchesRuntimeKind(t *testing.T) {
	r := New(Config{Name: "hostB", Executable: "/bin/true"})
	if r.RuntimeKind() != domain.RuntimeHostB {
		t.Fatalf("expected RuntimeHostB, got %v", r.RuntimeKind())
	}
	if !r.CanHandle(&domain.CompiledNode{Runtime: domain.RuntimeHostB}) {
		t.Fatal("expected CanHandle to match hostB nodes")
	}
	if r.CanHandle(&domain.CompiledNode{Runtime: domain.RuntimeHostA}) {
		t.Fatal("did not expect CanHandle to match hostA nodes")
	}
}
