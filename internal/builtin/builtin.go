// Package builtin implements the Built-in Runner (component J): in-process
// execution of the four built-in node types plus the deterministic
// reference indicator/signal/backtest math the core author trusts without
// sandboxing. Grounded on internal/workflow/engine.go's executeNode
// bookkeeping (timing, result shape, captured-panic-as-failure), minus the
// worker-pool machinery since this runner is always invoked synchronously
// by the orchestrator.
package builtin

import (
	"fmt"
	"time"

	"github.com/nova-quant/pipeline/internal/celexpr"
	"github.com/nova-quant/pipeline/internal/domain"
)

// Runner executes DataLoader, Indicator, CrossoverSignal, and Backtest
// nodes in-process.
type Runner struct {
	// Datasets resolves a dataset name to the rows a DataLoader node
	// should emit. Tests and callers without a real data source may leave
	// this nil; DataLoader then emits an empty, schema-conformant frame.
	Datasets func(symbol, dataset, timeframe string) ([]Bar, error)

	// CELEvalTimeout bounds how long a CrossoverSignal expression may run
	// per row (config.CELConfig.EvalTimeout). Zero falls back to
	// celexpr.DefaultEvalTimeout.
	CELEvalTimeout time.Duration
}

// Bar is one OHLCV row a DataLoader produces.
type Bar struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// CanHandle reports whether node's runtime is builtin.
func (r *Runner) CanHandle(node *domain.CompiledNode) bool {
	return node.Runtime == domain.RuntimeBuiltin
}

// Execute runs node synchronously. Any runtime failure (including a
// recovered panic) is captured and returned as success=false, never
// propagated to the caller, per spec section 4.J.
func (r *Runner) Execute(node *domain.CompiledNode, inputs map[string]domain.Output) (result domain.ExecutionResult) {
	start := time.Now()
	result.NodeID = node.ID

	defer func() {
		if p := recover(); p != nil {
			result.Success = false
			result.Error = fmt.Sprintf("internal: panic in built-in runner: %v", p)
			result.ExecutionTime = time.Since(start)
		}
	}()

	var out domain.Output
	var err error
	switch node.Type {
	case domain.TypeDataLoader:
		out, err = r.runDataLoader(node)
	case domain.TypeIndicator:
		out, err = r.runIndicator(node, inputs)
	case domain.TypeCrossoverSignal:
		out, err = r.runCrossoverSignal(node, inputs)
	case domain.TypeBacktest:
		out, err = r.runBacktest(node, inputs)
	default:
		err = fmt.Errorf("built-in runner has no implementation for type %q", node.Type)
	}

	result.ExecutionTime = time.Since(start)
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		return result
	}
	result.Success = true
	result.Output = out
	return result
}

func (r *Runner) runDataLoader(node *domain.CompiledNode) (domain.Output, error) {
	symbol, _ := node.Parameters["symbol"].(string)
	dataset, _ := node.Parameters["dataset"].(string)
	timeframe, _ := node.Parameters["timeframe"].(string)

	var bars []Bar
	if r.Datasets != nil {
		var err error
		bars, err = r.Datasets(symbol, dataset, timeframe)
		if err != nil {
			return nil, fmt.Errorf("load dataset %q: %w", dataset, err)
		}
	}

	rows := make([]map[string]any, len(bars))
	for i, b := range bars {
		rows[i] = map[string]any{
			"timestamp": b.Timestamp, "open": b.Open, "high": b.High,
			"low": b.Low, "close": b.Close, "volume": b.Volume,
		}
	}
	return domain.Output{
		"type":    "dataframe",
		"columns": []string{"timestamp", "open", "high", "low", "close", "volume"},
		"rows":    rows,
	}, nil
}

func (r *Runner) runIndicator(node *domain.CompiledNode, inputs map[string]domain.Output) (domain.Output, error) {
	if len(node.Dependencies) != 1 {
		return nil, fmt.Errorf("indicator %q expects exactly one dependency", node.ID)
	}
	upstream := inputs[node.Dependencies[0]]
	rows, _ := upstream["rows"].([]map[string]any)
	column, _ := node.Parameters["column"].(string)
	if column == "" {
		column = "close"
	}
	period, _ := node.Parameters["period"].(float64)
	indName, _ := node.Parameters["indicator"].(string)

	series := make([]float64, len(rows))
	for i, row := range rows {
		if v, ok := row[column].(float64); ok {
			series[i] = v
		}
	}
	values := simpleMovingAverage(series, int(period))

	outRows := make([]map[string]any, len(rows))
	for i, row := range rows {
		nr := make(map[string]any, len(row)+1)
		for k, v := range row {
			nr[k] = v
		}
		nr[indName] = values[i]
		outRows[i] = nr
	}

	columns, _ := upstream["columns"].([]string)
	return domain.Output{
		"type":    "dataframe",
		"columns": append(append([]string{}, columns...), indName),
		"rows":    outRows,
	}, nil
}

func simpleMovingAverage(series []float64, period int) []float64 {
	out := make([]float64, len(series))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range series {
		sum += v
		if i >= period {
			sum -= series[i-period]
		}
		window := period
		if i+1 < period {
			window = i + 1
		}
		out[i] = sum / float64(window)
	}
	return out
}

func (r *Runner) runCrossoverSignal(node *domain.CompiledNode, inputs map[string]domain.Output) (domain.Output, error) {
	if len(node.Dependencies) == 0 {
		return nil, fmt.Errorf("crossover signal %q expects at least one dependency", node.ID)
	}
	base := inputs[node.Dependencies[0]]
	rows, _ := base["rows"].([]map[string]any)
	signalCol, _ := node.Parameters["signal_column"].(string)
	if signalCol == "" {
		signalCol = "signal"
	}

	buyExpr, usesExpr := node.Parameters["buy_condition"].(string)
	sellExpr, _ := node.Parameters["sell_condition"].(string)

	var fastCol, slowCol string
	if !usesExpr {
		fastCol, _ = node.Parameters["fast_ma_column"].(string)
		slowCol, _ = node.Parameters["slow_ma_column"].(string)
	}

	outRows := make([]map[string]any, len(rows))
	for i, row := range rows {
		nr := make(map[string]any, len(row)+1)
		for k, v := range row {
			nr[k] = v
		}
		signal := "hold"
		if usesExpr {
			evalRow := toCelRow(row)
			if buyExpr != "" {
				if ok, err := celexpr.Eval(buyExpr, evalRow, r.CELEvalTimeout); err == nil && ok {
					signal = "buy"
				}
			}
			if signal == "hold" && sellExpr != "" {
				if ok, err := celexpr.Eval(sellExpr, evalRow, r.CELEvalTimeout); err == nil && ok {
					signal = "sell"
				}
			}
		} else {
			fast, _ := row[fastCol].(float64)
			slow, _ := row[slowCol].(float64)
			if fast > slow {
				signal = "buy"
			} else if fast < slow {
				signal = "sell"
			}
		}
		nr[signalCol] = signal
		outRows[i] = nr
	}

	columns, _ := base["columns"].([]string)
	return domain.Output{
		"type":    "dataframe",
		"columns": append(append([]string{}, columns...), signalCol),
		"rows":    outRows,
	}, nil
}

func toCelRow(row map[string]any) celexpr.Row {
	out := make(celexpr.Row, len(row))
	for k, v := range row {
		if f, ok := v.(float64); ok {
			out[k] = f
		}
	}
	return out
}

// runBacktest reports total_return, trades and final_equity. It does not
// compute the sharpe_ratio, max_drawdown or win_rate metrics that the
// Contract Checker lists in a Backtest node's output schema, and the
// tradeLog it returns is always empty.
func (r *Runner) runBacktest(node *domain.CompiledNode, inputs map[string]domain.Output) (domain.Output, error) {
	var signalRows []map[string]any
	switch len(node.Dependencies) {
	case 1:
		signalRows, _ = inputs[node.Dependencies[0]]["rows"].([]map[string]any)
	case 2:
		signalRows, _ = inputs[node.Dependencies[0]]["rows"].([]map[string]any)
	default:
		return nil, fmt.Errorf("backtest %q expects one or two dependencies", node.ID)
	}

	capital, _ := node.Parameters["initial_capital"].(float64)
	commission, _ := node.Parameters["commission"].(float64)
	positionSize, _ := node.Parameters["position_size"].(float64)

	equity := capital
	position := 0.0
	trades := 0
	for _, row := range signalRows {
		signal, _ := row["signal"].(string)
		price, _ := row["close"].(float64)
		if price <= 0 {
			continue
		}
		switch signal {
		case "buy":
			if position == 0 {
				spend := equity * positionSize
				position = spend / price * (1 - commission)
				equity -= spend
				trades++
			}
		case "sell":
			if position > 0 {
				equity += position * price * (1 - commission)
				position = 0
				trades++
			}
		}
	}
	if position > 0 && len(signalRows) > 0 {
		lastPrice, _ := signalRows[len(signalRows)-1]["close"].(float64)
		equity += position * lastPrice
	}

	totalReturn := 0.0
	if capital > 0 {
		totalReturn = (equity - capital) / capital
	}

	return domain.Output{
		"type": "backtest_results",
		"metrics": map[string]any{
			"total_return": totalReturn,
			"trades":       trades,
			"final_equity": equity,
		},
		"tradeLog": []map[string]any{},
	}, nil
}
