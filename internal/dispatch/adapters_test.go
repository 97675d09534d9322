package dispatch

import (
	"context"
	"testing"

	"github.com/nova-quant/pipeline/internal/builtin"
	"github.com/nova-quant/pipeline/internal/domain"
	"github.com/nova-quant/pipeline/internal/sandbox"
)

type stubRegistry struct {
	custom map[string]domain.SchemaPair
}

func (s stubRegistry) IsCustom(typ string) bool { _, ok := s.custom[typ]; return ok }
func (s stubRegistry) Schemas(typ string) (domain.SchemaPair, bool) {
	p, ok := s.custom[typ]
	return p, ok
}
func (s stubRegistry) ValidateReferences(types []string) (bool, []string) { return true, nil }

func TestBuiltinAdapter_DelegatesToRunner(t *testing.T) {
	bi := &builtin.Runner{}
	a := BuiltinAdapter{Runner: bi}

	node := &domain.CompiledNode{ID: "n", Type: domain.TypeDataLoader, Runtime: domain.RuntimeBuiltin}
	if !a.CanHandle(node) {
		t.Fatal("expected BuiltinAdapter to claim a built-in node type")
	}

	res := a.Execute(context.Background(), node, sandbox.RunInput{})
	// DataLoader with no Datasets func configured emits an empty frame; the
	// result must come from the builtin path rather than a panic or no-op.
	if res.NodeID != "n" {
		t.Fatalf("expected the result to be attributed to node n, got %q", res.NodeID)
	}
}

func TestCustomRunner_ClaimsOnlyRegisteredTypes(t *testing.T) {
	reg := stubRegistry{custom: map[string]domain.SchemaPair{"SentimentScorer": {Runtime: domain.RuntimeHostA}}}
	c := &CustomRunner{Registry: reg}

	if !c.CanHandle(&domain.CompiledNode{Type: "SentimentScorer"}) {
		t.Fatal("expected CustomRunner to claim a registered custom type")
	}
	if c.CanHandle(&domain.CompiledNode{Type: "DataLoader"}) {
		t.Fatal("did not expect CustomRunner to claim a built-in type")
	}
}

func TestCustomRunner_RoutesByResolvedRuntime(t *testing.T) {
	hostA := sandbox.New(sandbox.Config{Name: "hostA", Executable: "/bin/true"})
	c := &CustomRunner{HostA: hostA}

	node := &domain.CompiledNode{ID: "n", Type: "SentimentScorer", Runtime: domain.RuntimeHostB}
	res := c.Execute(context.Background(), node, sandbox.RunInput{RunID: "r1"})
	if res.Success {
		t.Fatal("expected failure: no HostB runner wired in")
	}
	if res.Error == "" {
		t.Fatal("expected a descriptive error naming the missing runtime")
	}
}
