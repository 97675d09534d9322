// Package parser implements the DSL Parser (component A): it turns a
// pipeline description document into an in-memory list of domain.Node
// values. The one recognized encoding is YAML, decoded with yaml.v3 the
// same way the teacher's internal/spec package decodes function manifests,
// but here we decode into yaml.Node first so we can keep line/column info
// for downstream error reporting.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nova-quant/pipeline/internal/domain"
)

// idPattern is the required shape for a node id, per the pipeline
// description's node invariant: a letter followed by letters, digits, or
// underscores.
var idPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// document is the root shape: a mapping with a `pipeline` sequence.
type document struct {
	Pipeline []rawNode `yaml:"pipeline"`
}

type rawNode struct {
	ID        yaml.Node `yaml:"id"`
	Type      yaml.Node `yaml:"type"`
	DependsOn []string  `yaml:"depends_on"`
	Params    yaml.Node `yaml:"params"`
	Line      int       `yaml:"-"`
}

// Parse decodes descriptionText into a node list. It rejects empty input
// and malformed structure with a *domain.CompileError of kind syntax; it
// never returns a partial node list alongside an error.
func Parse(descriptionText string) ([]domain.Node, []string, error) {
	trimmed := strings.TrimSpace(descriptionText)
	if trimmed == "" {
		return nil, nil, domain.NewParseError("pipeline description is empty", 0, 0)
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(descriptionText), &root); err != nil {
		return nil, nil, domain.NewParseError(fmt.Sprintf("invalid yaml: %v", err), 0, 0)
	}
	if len(root.Content) == 0 {
		return nil, nil, domain.NewParseError("pipeline description is empty", 0, 0)
	}

	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, nil, domain.NewParseError("root document must be a mapping with a `pipeline` key", mapping.Line, mapping.Column)
	}

	pipelineNode := findKey(mapping, "pipeline")
	if pipelineNode == nil {
		return nil, nil, domain.NewParseError("missing `pipeline` root sequence", mapping.Line, mapping.Column)
	}
	if pipelineNode.Kind != yaml.SequenceNode {
		return nil, nil, domain.NewParseError("`pipeline` must be a sequence of nodes", pipelineNode.Line, pipelineNode.Column)
	}

	var nodes []domain.Node
	var warnings []string
	for _, item := range pipelineNode.Content {
		n, w, err := parseOne(item)
		if err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
		warnings = append(warnings, w...)
	}
	return nodes, warnings, nil
}

func parseOne(item *yaml.Node) (domain.Node, []string, error) {
	if item.Kind != yaml.MappingNode {
		return domain.Node{}, nil, domain.NewParseError("pipeline entries must be mappings", item.Line, item.Column)
	}

	idNode := findKey(item, "id")
	if idNode == nil || idNode.Kind != yaml.ScalarNode {
		return domain.Node{}, nil, domain.NewParseError("node missing string `id`", item.Line, item.Column)
	}
	typeNode := findKey(item, "type")
	if typeNode == nil || typeNode.Kind != yaml.ScalarNode {
		return domain.Node{}, nil, domain.NewParseError(fmt.Sprintf("node %q missing string `type`", idNode.Value), item.Line, item.Column)
	}
	if idNode.Tag != "!!str" {
		return domain.Node{}, nil, domain.NewParseError("node `id` must be a string", idNode.Line, idNode.Column)
	}
	if !idPattern.MatchString(idNode.Value) {
		return domain.Node{}, nil, domain.NewParseError(
			fmt.Sprintf("node id %q must match [A-Za-z][A-Za-z0-9_]*", idNode.Value), idNode.Line, idNode.Column)
	}

	n := domain.Node{
		ID:   idNode.Value,
		Type: typeNode.Value,
		Line: item.Line,
	}

	var warnings []string
	for i := 0; i < len(item.Content); i += 2 {
		key := item.Content[i]
		switch key.Value {
		case "id", "type":
			// already consumed
		case "depends_on":
			val := item.Content[i+1]
			if val.Kind != yaml.SequenceNode {
				return domain.Node{}, nil, domain.NewParseError(fmt.Sprintf("node %q: `depends_on` must be a sequence", n.ID), val.Line, val.Column)
			}
			for _, dep := range val.Content {
				n.DependsOn = append(n.DependsOn, dep.Value)
			}
		case "params":
			val := item.Content[i+1]
			params, err := decodeParams(val)
			if err != nil {
				return domain.Node{}, nil, domain.NewParseError(fmt.Sprintf("node %q: %v", n.ID, err), val.Line, val.Column)
			}
			n.Params = params
		default:
			warnings = append(warnings, fmt.Sprintf("node %q: ignoring unknown key %q", n.ID, key.Value))
		}
	}
	if n.Params == nil {
		n.Params = map[string]any{}
	}
	return n, warnings, nil
}

func decodeParams(val *yaml.Node) (map[string]any, error) {
	if val.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("`params` must be a mapping")
	}
	var out map[string]any
	if err := val.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func findKey(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}
