// Package dag implements the Dependency Analyzer (component C): duplicate
// id detection, missing-dependency detection, cycle detection via
// tri-color DFS, and a stable topological sort. Grounded on the teacher's
// internal/workflow/dag.go, which solves the same ordering problem with
// Kahn's algorithm; this implementation uses DFS instead because the spec
// requires the full cycle path on failure, which falls out naturally from
// the DFS parent stack and is awkward to recover from Kahn's in-degree
// queue.
package dag

import (
	"fmt"
	"strings"

	"github.com/nova-quant/pipeline/internal/domain"
)

// color marks a node's tri-color DFS state.
type color int

const (
	white color = iota // unvisited
	gray               // on the current DFS stack
	black              // fully explored
)

// Result is the analyzer's output: either a valid topological order, or a
// list of semantic errors (duplicate ids, missing deps, cycles — all
// accumulated, matching the compiler's "report everything in one pass"
// policy except that a cycle stops further cycle search once found).
type Result struct {
	Order  []string
	Errors []*domain.CompileError
}

// Analyze runs the full dependency analysis pass over a parsed node list.
func Analyze(nodes []domain.Node) Result {
	var res Result

	byID := make(map[string]domain.Node, len(nodes))
	var order []string
	duplicate := make(map[int]bool)
	for i, n := range nodes {
		if _, dup := byID[n.ID]; dup {
			res.Errors = append(res.Errors, domain.NewSemanticError(fmt.Sprintf("duplicate id %q", n.ID)))
			duplicate[i] = true
			continue
		}
		byID[n.ID] = n
		order = append(order, n.ID)
	}

	for i, n := range nodes {
		if duplicate[i] {
			continue // was a duplicate, already reported
		}
		for _, dep := range n.DependsOn {
			if _, ok := byID[dep]; !ok {
				res.Errors = append(res.Errors, domain.NewSemanticError(
					fmt.Sprintf("missing dependency %q referenced by %q", dep, n.ID)))
			}
		}
	}
	if len(res.Errors) > 0 {
		return res
	}

	colors := make(map[string]color, len(order))
	var stack []string
	var topo []string

	var visit func(id string) *domain.CompileError
	visit = func(id string) *domain.CompileError {
		colors[id] = gray
		stack = append(stack, id)

		for _, dep := range byID[id].DependsOn {
			switch colors[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case gray:
				path := cyclePath(stack, dep)
				return domain.NewSemanticError(fmt.Sprintf("cycle <%s>", strings.Join(path, " → ")))
			case black:
				// already fully explored via another path, fine
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = black
		topo = append(topo, id)
		return nil
	}

	for _, id := range order {
		if colors[id] != white {
			continue
		}
		if err := visit(id); err != nil {
			res.Errors = append(res.Errors, err)
			return res
		}
	}

	res.Order = topo
	return res
}

// cyclePath reconstructs the cycle a → b → ... → a from the DFS stack at
// the moment a back-edge to backTo was found.
func cyclePath(stack []string, backTo string) []string {
	start := 0
	for i, id := range stack {
		if id == backTo {
			start = i
			break
		}
	}
	path := append([]string{}, stack[start:]...)
	path = append(path, backTo)
	return path
}
