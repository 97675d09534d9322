package compiler

import (
	"strings"
	"testing"

	"github.com/nova-quant/pipeline/internal/domain"
	"github.com/nova-quant/pipeline/internal/registry"
)

const validPipeline = `
pipeline:
  - id: prices
    type: DataLoader
    params:
      symbol: AAPL
      dataset: ohlcv
      timeframe: 1d
  - id: fast
    type: Indicator
    depends_on: [prices]
    params:
      indicator: SMA
      period: 10
  - id: slow
    type: Indicator
    depends_on: [prices]
    params:
      indicator: SMA
      period: 50
  - id: signal
    type: CrossoverSignal
    depends_on: [fast, slow]
    params:
      fast_period: 10
      slow_period: 50
      fast_ma_column: SMA
      slow_ma_column: SMA
  - id: result
    type: Backtest
    depends_on: [signal]
    params:
      initial_capital: 10000
`

func TestCompile_ValidPipelineEmitsIR(t *testing.T) {
	result := Compile(validPipeline, registry.New())
	if !result.Success {
		t.Fatalf("expected success, got errors: %+v", result.Errors)
	}
	if result.Pipeline == nil {
		t.Fatal("expected a non-nil IR")
	}
	if len(result.Pipeline.Nodes) != 5 {
		t.Fatalf("expected 5 compiled nodes, got %d", len(result.Pipeline.Nodes))
	}
	wantOrder := []string{"prices", "fast", "slow", "signal", "result"}
	gotOrder := strings.Join(result.Pipeline.ExecutionOrder, ",")
	// fast/slow are interchangeable in order, only check prices is first and result is last.
	if result.Pipeline.ExecutionOrder[0] != "prices" {
		t.Fatalf("expected prices first, got order %s", gotOrder)
	}
	if result.Pipeline.ExecutionOrder[len(result.Pipeline.ExecutionOrder)-1] != "result" {
		t.Fatalf("expected result last, got order %s", gotOrder)
	}
	if result.Pipeline.Metadata.TotalNodes != 5 {
		t.Fatalf("expected metadata.totalNodes=5, got %d", result.Pipeline.Metadata.TotalNodes)
	}
	_ = wantOrder
}

func TestCompile_CycleIsReported(t *testing.T) {
	doc := `
pipeline:
  - id: a
    type: DataLoader
    depends_on: [b]
  - id: b
    type: DataLoader
    depends_on: [a]
`
	result := Compile(doc, registry.New())
	if result.Success {
		t.Fatal("expected compilation to fail on a cycle")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e.Message, "cycle") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a cycle error, got %+v", result.Errors)
	}
}

func TestCompile_UnknownNodeTypeIsSemanticError(t *testing.T) {
	doc := `
pipeline:
  - id: x
    type: NotARealType
`
	result := Compile(doc, registry.New())
	if result.Success {
		t.Fatal("expected compilation to fail for an unknown node type")
	}
	found := false
	for _, e := range result.Errors {
		if e.Type == string(domain.ErrorKindSemantic) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a semantic error, got %+v", result.Errors)
	}
}

func TestCompile_EmptyDescriptionFails(t *testing.T) {
	result := Compile("", registry.New())
	if result.Success {
		t.Fatal("expected compilation to fail for empty input")
	}
}

func TestCompile_CustomNodeResolvesRuntimeFromRegistry(t *testing.T) {
	reg := registry.New()
	reg.Register("MyCustomNode", domain.SchemaPair{
		Runtime: domain.RuntimeHostB,
		Input:   domain.NullSchema(),
		Output:  domain.OutputSchema{Kind: domain.SchemaDataframe, Columns: []string{"x"}},
	})
	doc := `
pipeline:
  - id: c
    type: MyCustomNode
`
	result := Compile(doc, reg)
	if !result.Success {
		t.Fatalf("expected success, got errors: %+v", result.Errors)
	}
	if result.Pipeline.Nodes[0].Runtime != domain.RuntimeHostB {
		t.Fatalf("expected hostB runtime, got %s", result.Pipeline.Nodes[0].Runtime)
	}
}

func TestCompile_IdempotentModuloCompiledAt(t *testing.T) {
	r1 := Compile(validPipeline, registry.New())
	r2 := Compile(validPipeline, registry.New())
	if !r1.Success || !r2.Success {
		t.Fatalf("expected both compiles to succeed")
	}
	if strings.Join(r1.Pipeline.ExecutionOrder, ",") != strings.Join(r2.Pipeline.ExecutionOrder, ",") {
		t.Fatalf("expected identical execution order across repeat compiles")
	}
	if len(r1.Pipeline.Nodes) != len(r2.Pipeline.Nodes) {
		t.Fatalf("expected identical node count across repeat compiles")
	}
}
