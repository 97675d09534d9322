package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind tags a compiler error with the taxonomy from the wire format's
// CompilationResult.errors[].type field.
type ErrorKind string

const (
	ErrorKindSyntax   ErrorKind = "syntax"
	ErrorKindSemantic ErrorKind = "semantic"
	ErrorKindSchema   ErrorKind = "schema"
	ErrorKindContract ErrorKind = "contract"
)

// sentinel kinds used with errors.Is; CompileError.Unwrap exposes one of
// these so callers can classify an error without string matching.
var (
	ErrParse    = errors.New("parse error")
	ErrSchema   = errors.New("schema error")
	ErrSemantic = errors.New("semantic error")
	ErrContract = errors.New("contract error")
	ErrInternal = errors.New("internal error")
)

// CompileError is a single accumulated compiler diagnostic. The compiler
// never stops at the first one (except ParseError, which aborts the whole
// pass since there is no AST to keep validating).
type CompileError struct {
	Kind    ErrorKind
	Message string
	Node    string // node id, if applicable
	Field   string // param field, if applicable
	Line    int    // 1-based, 0 if unknown
	Column  int    // 1-based, 0 if unknown
	cause   error
}

func (e *CompileError) Error() string {
	var b strings.Builder
	if e.Node != "" {
		fmt.Fprintf(&b, "node %q: ", e.Node)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, "field %q: ", e.Field)
	}
	b.WriteString(e.Message)
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	return b.String()
}

func (e *CompileError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	switch e.Kind {
	case ErrorKindSyntax:
		return ErrParse
	case ErrorKindSchema:
		return ErrSchema
	case ErrorKindSemantic:
		return ErrSemantic
	case ErrorKindContract:
		return ErrContract
	}
	return ErrInternal
}

// NewParseError builds a syntax-kind CompileError carrying source position.
func NewParseError(msg string, line, col int) *CompileError {
	return &CompileError{Kind: ErrorKindSyntax, Message: msg, Line: line, Column: col}
}

// NewSchemaError builds a schema-kind CompileError for a node/field pair.
func NewSchemaError(node, field, msg string) *CompileError {
	return &CompileError{Kind: ErrorKindSchema, Message: msg, Node: node, Field: field}
}

// NewSemanticError builds a semantic-kind CompileError.
func NewSemanticError(msg string) *CompileError {
	return &CompileError{Kind: ErrorKindSemantic, Message: msg}
}

// NewContractError builds a contract-kind CompileError for a node.
func NewContractError(node, msg string) *CompileError {
	return &CompileError{Kind: ErrorKindContract, Message: msg, Node: node}
}

// JoinErrors renders a slice of CompileErrors as a single human-readable
// string, used for PipelineExecutionResult.Error when compilation fails
// inside the executor.
func JoinErrors(errs []*CompileError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}
