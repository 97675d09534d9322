package domain

// Registry is the custom-node registry contract exposed to the compiler
// (component F). It is an external collaborator: the core never loads code
// through it, only type metadata. Per the design notes, an implementation
// may scan a directory at startup or accept explicit registration — the
// core does not care which.
type Registry interface {
	// IsCustom reports whether typ is a registered custom node type (as
	// opposed to one of the four built-ins).
	IsCustom(typ string) bool

	// Schemas returns the declared input/output schema pair for a custom
	// type, or ok=false if typ is not registered.
	Schemas(typ string) (entry SchemaPair, ok bool)

	// ValidateReferences checks a set of type names against the registry
	// and reports which, if any, are unknown to it. Built-in type names
	// are not passed through this check by callers.
	ValidateReferences(types []string) (valid bool, missing []string)
}

// SchemaPair is the (input, output) contract a custom node type declares to
// the registry.
type SchemaPair struct {
	Runtime RuntimeKind
	Input   OutputSchema // Kind=Null means "accepts no dependencies"
	Output  OutputSchema
}
