package parser

import (
	"testing"
)

func TestParse_SimplePipeline(t *testing.T) {
	doc := `
pipeline:
  - id: prices
    type: DataLoader
    params:
      symbol: AAPL
      dataset: ohlcv
      timeframe: 1d
  - id: sma
    type: Indicator
    depends_on: [prices]
    params:
      name: SMA
      period: 20
      column: close
`
	nodes, warnings, err := Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].ID != "prices" || nodes[0].Type != "DataLoader" {
		t.Fatalf("unexpected first node: %+v", nodes[0])
	}
	if nodes[1].Params["period"] != 20 {
		t.Fatalf("expected period param 20, got %v", nodes[1].Params["period"])
	}
	if len(nodes[1].DependsOn) != 1 || nodes[1].DependsOn[0] != "prices" {
		t.Fatalf("unexpected depends_on: %v", nodes[1].DependsOn)
	}
}

func TestParse_EmptyInputIsAnError(t *testing.T) {
	if _, _, err := Parse(""); err == nil {
		t.Fatal("expected an error for empty input")
	}
	if _, _, err := Parse("   \n  "); err == nil {
		t.Fatal("expected an error for whitespace-only input")
	}
}

func TestParse_MissingPipelineRoot(t *testing.T) {
	if _, _, err := Parse("foo: bar\n"); err == nil {
		t.Fatal("expected an error for a document missing `pipeline`")
	}
}

func TestParse_NonSequencePipeline(t *testing.T) {
	if _, _, err := Parse("pipeline: not-a-list\n"); err == nil {
		t.Fatal("expected an error when `pipeline` is not a sequence")
	}
}

func TestParse_NodeMissingID(t *testing.T) {
	doc := "pipeline:\n  - type: DataLoader\n"
	if _, _, err := Parse(doc); err == nil {
		t.Fatal("expected an error for a node missing id")
	}
}

func TestParse_NodeMissingType(t *testing.T) {
	doc := "pipeline:\n  - id: a\n"
	if _, _, err := Parse(doc); err == nil {
		t.Fatal("expected an error for a node missing type")
	}
}

func TestParse_NodeIDMustMatchFormat(t *testing.T) {
	cases := []string{
		"pipeline:\n  - id: \"1-bad id!\"\n    type: DataLoader\n",
		"pipeline:\n  - id: \"foo bar\"\n    type: DataLoader\n",
		"pipeline:\n  - id: \"-leading-dash\"\n    type: DataLoader\n",
	}
	for _, doc := range cases {
		if _, _, err := Parse(doc); err == nil {
			t.Fatalf("expected an id-format error for doc: %s", doc)
		}
	}
}

func TestParse_NodeIDAcceptsLettersDigitsUnderscores(t *testing.T) {
	doc := "pipeline:\n  - id: fast_ma_2\n    type: DataLoader\n"
	nodes, _, err := Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nodes[0].ID != "fast_ma_2" {
		t.Fatalf("unexpected id: %q", nodes[0].ID)
	}
}

func TestParse_UnknownKeyBecomesWarning(t *testing.T) {
	doc := "pipeline:\n  - id: a\n    type: DataLoader\n    bogus: true\n"
	nodes, warnings, err := Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d: %v", len(warnings), warnings)
	}
}
