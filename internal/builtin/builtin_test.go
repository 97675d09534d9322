package builtin

import (
	"testing"

	"github.com/nova-quant/pipeline/internal/domain"
)

func TestExecute_DataLoaderEmitsDataframe(t *testing.T) {
	r := &Runner{
		Datasets: func(symbol, dataset, timeframe string) ([]Bar, error) {
			return []Bar{{Timestamp: 1, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100}}, nil
		},
	}
	node := &domain.CompiledNode{ID: "prices", Type: domain.TypeDataLoader, Runtime: domain.RuntimeBuiltin,
		Parameters: map[string]any{"symbol": "AAPL", "dataset": "ohlcv", "timeframe": "1d"}}

	res := r.Execute(node, nil)
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if res.Output["type"] != "dataframe" {
		t.Fatalf("expected dataframe output, got %v", res.Output["type"])
	}
	rows, _ := res.Output["rows"].([]map[string]any)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
}

func TestExecute_IndicatorAppendsColumn(t *testing.T) {
	upstream := domain.Output{
		"type":    "dataframe",
		"columns": []string{"close"},
		"rows": []map[string]any{
			{"close": 1.0}, {"close": 2.0}, {"close": 3.0},
		},
	}
	node := &domain.CompiledNode{
		ID: "sma", Type: domain.TypeIndicator, Runtime: domain.RuntimeBuiltin,
		Dependencies: []string{"prices"},
		Parameters:   map[string]any{"indicator": "SMA", "period": 2.0, "column": "close"},
	}
	r := &Runner{}
	res := r.Execute(node, map[string]domain.Output{"prices": upstream})
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	rows, _ := res.Output["rows"].([]map[string]any)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if _, ok := rows[2]["SMA"]; !ok {
		t.Fatalf("expected an SMA column in output rows: %+v", rows[2])
	}
}

func TestExecute_CrossoverSignalExpressionMode(t *testing.T) {
	upstream := domain.Output{
		"columns": []string{"close", "open"},
		"rows": []map[string]any{
			{"close": 10.0, "open": 5.0},
			{"close": 3.0, "open": 8.0},
		},
	}
	node := &domain.CompiledNode{
		ID: "signal", Type: domain.TypeCrossoverSignal, Runtime: domain.RuntimeBuiltin,
		Dependencies: []string{"prices"},
		Parameters: map[string]any{
			"buy_condition":  "close > open",
			"sell_condition": "close < open",
		},
	}
	r := &Runner{}
	res := r.Execute(node, map[string]domain.Output{"prices": upstream})
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	rows, _ := res.Output["rows"].([]map[string]any)
	if rows[0]["signal"] != "buy" {
		t.Fatalf("expected row 0 signal=buy, got %v", rows[0]["signal"])
	}
	if rows[1]["signal"] != "sell" {
		t.Fatalf("expected row 1 signal=sell, got %v", rows[1]["signal"])
	}
}

func TestExecute_BacktestComputesReturn(t *testing.T) {
	signalRows := domain.Output{
		"rows": []map[string]any{
			{"signal": "buy", "close": 10.0},
			{"signal": "sell", "close": 20.0},
		},
	}
	node := &domain.CompiledNode{
		ID: "bt", Type: domain.TypeBacktest, Runtime: domain.RuntimeBuiltin,
		Dependencies: []string{"signal"},
		Parameters:   map[string]any{"initial_capital": 1000.0, "commission": 0.0, "position_size": 1.0},
	}
	r := &Runner{}
	res := r.Execute(node, map[string]domain.Output{"signal": signalRows})
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	metrics, _ := res.Output["metrics"].(map[string]any)
	if metrics["total_return"].(float64) <= 0 {
		t.Fatalf("expected a positive return from a buy-then-sell-higher sequence, got %v", metrics["total_return"])
	}
}

func TestExecute_UnhandledTypeIsCapturedAsFailure(t *testing.T) {
	// A node type the runner's switch doesn't handle takes the default
	// branch, which returns an error; Execute must report it as
	// success=false rather than propagating it.
	node := &domain.CompiledNode{ID: "x", Type: "Unhandled", Runtime: domain.RuntimeBuiltin}
	r := &Runner{}
	res := r.Execute(node, nil)
	if res.Success {
		t.Fatal("expected failure for an unhandled node type")
	}
}
