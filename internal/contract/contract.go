// Package contract implements the Contract Checker (component D): it walks
// nodes in topological order, validates each node's dependency arity and
// upstream output types against its built-in input contract, and computes
// each node's inferred output schema. Grounded on the same walking style as
// internal/workflow/dag.go (build a map, walk in order, accumulate state),
// generalized to schema inference instead of reachability.
package contract

import (
	"fmt"

	"github.com/nova-quant/pipeline/internal/domain"
)

// Result is the per-pipeline contract-check outcome.
type Result struct {
	// OutputSchemas is every node's computed output schema, keyed by id,
	// including nodes that failed (recorded as domain.NullSchema so
	// downstream errors stay about the original fault, not a cascade).
	OutputSchemas map[string]domain.OutputSchema
	Errors        []*domain.CompileError
}

// dataLoaderColumns is the fixed output shape spec section 4.D assigns to
// every DataLoader node.
var dataLoaderColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}
var dataLoaderRequired = []string{"timestamp", "close"}

// Check walks order (already topologically sorted) and computes
// contracts. byID maps each node id to its raw domain.Node (for DependsOn
// and Type), registry resolves custom-node I/O schemas.
func Check(order []string, byID map[string]domain.Node, registry domain.Registry) Result {
	res := Result{OutputSchemas: make(map[string]domain.OutputSchema, len(order))}

	for _, id := range order {
		n := byID[id]
		schema, errs := checkOne(n, res.OutputSchemas, registry)
		res.Errors = append(res.Errors, errs...)
		if len(errs) > 0 {
			res.OutputSchemas[id] = domain.NullSchema()
		} else {
			res.OutputSchemas[id] = schema
		}
	}
	return res
}

func checkOne(n domain.Node, outputs map[string]domain.OutputSchema, registry domain.Registry) (domain.OutputSchema, []*domain.CompileError) {
	switch n.Type {
	case domain.TypeDataLoader:
		return checkDataLoader(n)
	case domain.TypeIndicator:
		return checkIndicator(n, outputs)
	case domain.TypeCrossoverSignal:
		return checkCrossoverSignal(n, outputs)
	case domain.TypeBacktest:
		return checkBacktest(n, outputs)
	default:
		return checkCustom(n, outputs, registry)
	}
}

func checkDataLoader(n domain.Node) (domain.OutputSchema, []*domain.CompileError) {
	var errs []*domain.CompileError
	if len(n.DependsOn) > 0 {
		errs = append(errs, domain.NewContractError(n.ID, "DataLoader must have zero dependencies"))
	}
	return domain.OutputSchema{
		Kind:            domain.SchemaDataframe,
		Columns:         append([]string{}, dataLoaderColumns...),
		RequiredColumns: append([]string{}, dataLoaderRequired...),
	}, errs
}

func checkIndicator(n domain.Node, outputs map[string]domain.OutputSchema) (domain.OutputSchema, []*domain.CompileError) {
	var errs []*domain.CompileError
	if len(n.DependsOn) != 1 {
		errs = append(errs, domain.NewContractError(n.ID, fmt.Sprintf("Indicator requires exactly one dependency, got %d", len(n.DependsOn))))
		return domain.NullSchema(), errs
	}
	upstream := outputs[n.DependsOn[0]]
	if upstream.Kind != domain.SchemaDataframe {
		errs = append(errs, domain.NewContractError(n.ID, fmt.Sprintf("Indicator dependency %q must produce a dataframe", n.DependsOn[0])))
		return domain.NullSchema(), errs
	}

	indName, _ := n.Params["indicator"].(string)
	colName := indName
	if colName == "" {
		colName = "indicator"
	}
	out := domain.OutputSchema{
		Kind:            domain.SchemaDataframe,
		Columns:         append(append([]string{}, upstream.Columns...), colName),
		RequiredColumns: append([]string{}, upstream.RequiredColumns...),
		Extra:           map[string]string{"indicatorColumn": colName},
	}
	return out, errs
}

func checkCrossoverSignal(n domain.Node, outputs map[string]domain.OutputSchema) (domain.OutputSchema, []*domain.CompileError) {
	var errs []*domain.CompileError
	if len(n.DependsOn) < 1 {
		errs = append(errs, domain.NewContractError(n.ID, "CrossoverSignal requires at least one dependency"))
		return domain.NullSchema(), errs
	}
	var columns []string
	for _, dep := range n.DependsOn {
		upstream := outputs[dep]
		if upstream.Kind != domain.SchemaDataframe {
			errs = append(errs, domain.NewContractError(n.ID, fmt.Sprintf("CrossoverSignal dependency %q must produce a dataframe", dep)))
			continue
		}
		columns = mergeColumns(columns, upstream.Columns)
	}
	if len(errs) > 0 {
		return domain.NullSchema(), errs
	}

	signalCol, _ := n.Params["signal_column"].(string)
	if signalCol == "" {
		signalCol = "signal"
	}
	return domain.OutputSchema{
		Kind:    domain.SchemaDataframe,
		Columns: append(columns, signalCol),
		Extra:   map[string]string{"signalColumn": signalCol},
	}, nil
}

func checkBacktest(n domain.Node, outputs map[string]domain.OutputSchema) (domain.OutputSchema, []*domain.CompileError) {
	var errs []*domain.CompileError
	switch len(n.DependsOn) {
	case 1:
		upstream := outputs[n.DependsOn[0]]
		if upstream.Kind != domain.SchemaDataframe {
			errs = append(errs, domain.NewContractError(n.ID, "Backtest dependency must produce a dataframe"))
		} else if _, hasSignal := upstream.Extra["signalColumn"]; !hasSignal {
			errs = append(errs, domain.NewContractError(n.ID, fmt.Sprintf("Backtest dependency %q has no signal column", n.DependsOn[0])))
		}
	case 2:
		signals := outputs[n.DependsOn[0]]
		prices := outputs[n.DependsOn[1]]
		if signals.Kind != domain.SchemaDataframe {
			errs = append(errs, domain.NewContractError(n.ID, fmt.Sprintf("Backtest first dependency %q must produce a dataframe", n.DependsOn[0])))
		} else if _, hasSignal := signals.Extra["signalColumn"]; !hasSignal {
			errs = append(errs, domain.NewContractError(n.ID, fmt.Sprintf("Backtest first dependency %q has no signal column (legacy variant expects signals first)", n.DependsOn[0])))
		}
		if prices.Kind != domain.SchemaDataframe {
			errs = append(errs, domain.NewContractError(n.ID, fmt.Sprintf("Backtest second dependency %q must produce a price dataframe", n.DependsOn[1])))
		}
	default:
		errs = append(errs, domain.NewContractError(n.ID, fmt.Sprintf("Backtest requires one or two dependencies, got %d", len(n.DependsOn))))
	}
	if len(errs) > 0 {
		return domain.NullSchema(), errs
	}
	return domain.OutputSchema{
		Kind:     domain.SchemaBacktest,
		Metrics:  []string{"total_return", "sharpe_ratio", "max_drawdown", "win_rate"},
		TradeLog: true,
	}, nil
}

func checkCustom(n domain.Node, outputs map[string]domain.OutputSchema, registry domain.Registry) (domain.OutputSchema, []*domain.CompileError) {
	var errs []*domain.CompileError
	if registry == nil {
		errs = append(errs, domain.NewContractError(n.ID, fmt.Sprintf("unknown node type %q", n.Type)))
		return domain.NullSchema(), errs
	}
	pair, ok := registry.Schemas(n.Type)
	if !ok {
		errs = append(errs, domain.NewContractError(n.ID, fmt.Sprintf("unknown node type %q", n.Type)))
		return domain.NullSchema(), errs
	}

	if pair.Input.Kind == domain.SchemaNull {
		if len(n.DependsOn) > 0 {
			errs = append(errs, domain.NewContractError(n.ID, fmt.Sprintf("custom node %q accepts no dependencies", n.Type)))
		}
		return pair.Output, errs
	}

	if len(n.DependsOn) < 1 {
		errs = append(errs, domain.NewContractError(n.ID, fmt.Sprintf("custom node %q requires at least one dependency", n.Type)))
		return domain.NullSchema(), errs
	}
	for _, dep := range n.DependsOn {
		if _, known := outputs[dep]; !known {
			errs = append(errs, domain.NewContractError(n.ID, fmt.Sprintf("dependency %q has no known output schema", dep)))
		}
	}
	if len(errs) > 0 {
		return domain.NullSchema(), errs
	}
	return pair.Output, nil
}

func mergeColumns(acc, cols []string) []string {
	seen := make(map[string]bool, len(acc))
	for _, c := range acc {
		seen[c] = true
	}
	for _, c := range cols {
		if !seen[c] {
			seen[c] = true
			acc = append(acc, c)
		}
	}
	return acc
}
