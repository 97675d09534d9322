package registry

import (
	"testing"

	"github.com/nova-quant/pipeline/internal/domain"
)

func TestInMemory_RegisterAndLookup(t *testing.T) {
	r := New()
	pair := domain.SchemaPair{
		Runtime: domain.RuntimeHostA,
		Input:   domain.NullSchema(),
		Output:  domain.OutputSchema{Kind: domain.SchemaDataframe, Columns: []string{"score"}},
	}
	r.Register("SentimentScorer", pair)

	if !r.IsCustom("SentimentScorer") {
		t.Fatal("expected SentimentScorer to be registered")
	}
	if r.IsCustom("DataLoader") {
		t.Fatal("built-in type names should never be reported as custom")
	}

	got, ok := r.Schemas("SentimentScorer")
	if !ok {
		t.Fatal("expected Schemas to find the registered entry")
	}
	if got.Runtime != domain.RuntimeHostA {
		t.Fatalf("expected RuntimeHostA, got %v", got.Runtime)
	}
}

func TestInMemory_Unregister(t *testing.T) {
	r := New()
	r.Register("Foo", domain.SchemaPair{})
	r.Unregister("Foo")
	if r.IsCustom("Foo") {
		t.Fatal("expected Foo to no longer be registered")
	}
}

func TestInMemory_ValidateReferences(t *testing.T) {
	r := New()
	r.Register("Foo", domain.SchemaPair{})

	valid, missing := r.ValidateReferences([]string{"Foo"})
	if !valid || len(missing) != 0 {
		t.Fatalf("expected all-valid, got valid=%v missing=%v", valid, missing)
	}

	valid, missing = r.ValidateReferences([]string{"Foo", "Bar", "Bar", "Baz"})
	if valid {
		t.Fatal("expected validation to fail for unregistered types")
	}
	if len(missing) != 2 || missing[0] != "Bar" || missing[1] != "Baz" {
		t.Fatalf("expected deduplicated sorted missing=[Bar Baz], got %v", missing)
	}
}
