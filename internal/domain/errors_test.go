package domain

import (
	"errors"
	"testing"
)

func TestCompileError_UnwrapClassifiesByKind(t *testing.T) {
	cases := []struct {
		err    *CompileError
		target error
	}{
		{NewParseError("bad yaml", 3, 1), ErrParse},
		{NewSchemaError("n", "f", "missing"), ErrSchema},
		{NewSemanticError("duplicate id"), ErrSemantic},
		{NewContractError("n", "wrong arity"), ErrContract},
	}
	for _, c := range cases {
		if !errors.Is(c.err, c.target) {
			t.Fatalf("expected %v to be classified as %v", c.err, c.target)
		}
	}
}

func TestCompileError_MessageIncludesNodeFieldAndLine(t *testing.T) {
	err := NewSchemaError("prices", "period", "must be a positive integer")
	err.Line = 7
	got := err.Error()
	want := `node "prices": field "period": must be a positive integer (line 7)`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestJoinErrors_JoinsInOrder(t *testing.T) {
	errs := []*CompileError{
		NewSemanticError("first"),
		NewSemanticError("second"),
	}
	got := JoinErrors(errs)
	want := "first; second"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestOutputSchema_HasColumn(t *testing.T) {
	s := OutputSchema{
		Kind:            SchemaDataframe,
		Columns:         []string{"close"},
		RequiredColumns: []string{"timestamp"},
	}
	if !s.HasColumn("close") {
		t.Fatal("expected Columns entry to be found")
	}
	if !s.HasColumn("timestamp") {
		t.Fatal("expected RequiredColumns entry to be found")
	}
	if s.HasColumn("volume") {
		t.Fatal("did not expect an undeclared column to be found")
	}
}

func TestNullSchema_HasNullKindAndNoColumns(t *testing.T) {
	s := NullSchema()
	if s.Kind != SchemaNull {
		t.Fatalf("expected SchemaNull, got %v", s.Kind)
	}
	if s.HasColumn("anything") {
		t.Fatal("a null schema should never report a column present")
	}
}
