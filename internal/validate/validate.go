// Package validate implements the Parameter Schema Validator (component B).
// Each built-in type's contract is expressed as a small pure function over
// a node's raw params map, modeled on the teacher's classifiedError /
// validationErrorf accumulation pattern from internal/service, except here
// violations are collected rather than returned on first failure — the
// validator never short-circuits within one node.
package validate

import (
	"fmt"

	"github.com/nova-quant/pipeline/internal/celexpr"
	"github.com/nova-quant/pipeline/internal/domain"
)

var timeframes = map[string]bool{
	"1m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "4h": true, "1d": true,
}

var indicators = map[string]bool{
	"SMA": true, "EMA": true, "RSI": true, "MACD": true,
	"BB": true, "STOCH": true, "ATR": true,
}

var priceColumns = map[string]bool{
	"open": true, "high": true, "low": true, "close": true, "volume": true,
}

// Normalized holds a node's params after defaulting, alongside any schema
// violations found. Violations are always []*domain.CompileError of kind
// schema; Normalized.Params is still returned (best-effort) even when
// Violations is non-empty, so callers can keep reporting downstream issues
// without re-deriving defaults.
type Normalized struct {
	Params     map[string]any
	Violations []*domain.CompileError
}

// Node validates one node's raw params against its built-in type's exact
// contract (spec section 4.B). Custom types are not validated here — the
// registry's I/O contract stands in for param validation per the Custom-Node
// Registry's opaque-metadata-only role (component F); see DESIGN.md.
func Node(n domain.Node) Normalized {
	switch n.Type {
	case domain.TypeDataLoader:
		return dataLoader(n)
	case domain.TypeIndicator:
		return indicator(n)
	case domain.TypeCrossoverSignal:
		return crossoverSignal(n)
	case domain.TypeBacktest:
		return backtest(n)
	default:
		return Normalized{Params: n.Params}
	}
}

func schemaErr(n domain.Node, field, msg string) *domain.CompileError {
	return domain.NewSchemaError(n.ID, field, msg)
}

func dataLoader(n domain.Node) Normalized {
	out := Normalized{Params: map[string]any{}}
	allowed := map[string]bool{"symbol": true, "timeframe": true, "dataset": true, "start_date": true, "end_date": true}

	if v := rejectExtraKeys(n, allowed); len(v) > 0 {
		out.Violations = append(out.Violations, v...)
	}

	symbol, ok := stringField(n, "symbol", true)
	if !ok {
		out.Violations = append(out.Violations, schemaErr(n, "symbol", "symbol is required and must be a non-empty string"))
	}
	out.Params["symbol"] = symbol

	tf, ok := stringField(n, "timeframe", true)
	if !ok {
		out.Violations = append(out.Violations, schemaErr(n, "timeframe", "timeframe is required"))
	} else if !timeframes[tf] {
		out.Violations = append(out.Violations, schemaErr(n, "timeframe", fmt.Sprintf("timeframe %q is not one of 1m,5m,15m,30m,1h,4h,1d", tf)))
	}
	out.Params["timeframe"] = tf

	dataset, ok := stringField(n, "dataset", true)
	if !ok {
		out.Violations = append(out.Violations, schemaErr(n, "dataset", "dataset is required and must be a non-empty string"))
	}
	out.Params["dataset"] = dataset

	if v, present := n.Params["start_date"]; present {
		s, ok := v.(string)
		if !ok {
			out.Violations = append(out.Violations, schemaErr(n, "start_date", "start_date must be a string"))
		}
		out.Params["start_date"] = s
	}
	if v, present := n.Params["end_date"]; present {
		s, ok := v.(string)
		if !ok {
			out.Violations = append(out.Violations, schemaErr(n, "end_date", "end_date must be a string"))
		}
		out.Params["end_date"] = s
	}
	return out
}

func indicator(n domain.Node) Normalized {
	out := Normalized{Params: map[string]any{}}
	allowed := map[string]bool{"indicator": true, "period": true, "column": true}
	out.Violations = append(out.Violations, rejectExtraKeys(n, allowed)...)

	ind, ok := stringField(n, "indicator", true)
	if !ok {
		out.Violations = append(out.Violations, schemaErr(n, "indicator", "indicator is required"))
	} else if !indicators[ind] {
		out.Violations = append(out.Violations, schemaErr(n, "indicator", fmt.Sprintf("indicator %q is not one of SMA,EMA,RSI,MACD,BB,STOCH,ATR", ind)))
	}
	out.Params["indicator"] = ind

	period, ok := positiveNumberField(n, "period", true, 0)
	if !ok {
		out.Violations = append(out.Violations, schemaErr(n, "period", "period must be a positive number"))
	}
	out.Params["period"] = period

	column, present := n.Params["column"]
	col := "close"
	if present {
		s, ok := column.(string)
		if !ok || !priceColumns[s] {
			out.Violations = append(out.Violations, schemaErr(n, "column", "column must be one of open,high,low,close,volume"))
		} else {
			col = s
		}
	}
	out.Params["column"] = col
	return out
}

func crossoverSignal(n domain.Node) Normalized {
	out := Normalized{Params: map[string]any{}}
	allowed := map[string]bool{
		"fast_period": true, "slow_period": true, "signal_column": true,
		"fast_ma_column": true, "slow_ma_column": true,
		"buy_threshold": true, "sell_threshold": true, "confirmation_periods": true,
		"buy_condition": true, "sell_condition": true,
	}
	out.Violations = append(out.Violations, rejectExtraKeys(n, allowed)...)

	_, hasBuyCond := n.Params["buy_condition"]
	_, hasSellCond := n.Params["sell_condition"]
	_, hasFast := n.Params["fast_period"]
	_, hasSlow := n.Params["slow_period"]
	usesExpr := hasBuyCond || hasSellCond

	if usesExpr && (hasFast || hasSlow) {
		out.Violations = append(out.Violations, schemaErr(n, "buy_condition",
			"buy_condition/sell_condition cannot be combined with fast_period/slow_period; pick one encoding"))
	}

	if usesExpr {
		if buy, ok := n.Params["buy_condition"].(string); ok {
			if err := celexpr.Validate(buy); err != nil {
				out.Violations = append(out.Violations, schemaErr(n, "buy_condition", fmt.Sprintf("invalid expression: %v", err)))
			}
			out.Params["buy_condition"] = buy
		} else if hasBuyCond {
			out.Violations = append(out.Violations, schemaErr(n, "buy_condition", "buy_condition must be a string"))
		}
		if sell, ok := n.Params["sell_condition"].(string); ok {
			if err := celexpr.Validate(sell); err != nil {
				out.Violations = append(out.Violations, schemaErr(n, "sell_condition", fmt.Sprintf("invalid expression: %v", err)))
			}
			out.Params["sell_condition"] = sell
		} else if hasSellCond {
			out.Violations = append(out.Violations, schemaErr(n, "sell_condition", "sell_condition must be a string"))
		}
	} else {
		fast, fastOK := positiveNumberField(n, "fast_period", true, 0)
		slow, slowOK := positiveNumberField(n, "slow_period", true, 0)
		if !fastOK {
			out.Violations = append(out.Violations, schemaErr(n, "fast_period", "fast_period must be a positive number"))
		}
		if !slowOK {
			out.Violations = append(out.Violations, schemaErr(n, "slow_period", "slow_period must be a positive number"))
		}
		if fastOK && slowOK && fast >= slow {
			out.Violations = append(out.Violations, schemaErr(n, "slow_period", "slow_period must be greater than fast_period"))
		}
		out.Params["fast_period"] = fast
		out.Params["slow_period"] = slow
	}

	signalCol := "signal"
	if v, present := n.Params["signal_column"]; present {
		s, ok := v.(string)
		if !ok {
			out.Violations = append(out.Violations, schemaErr(n, "signal_column", "signal_column must be a string"))
		} else {
			signalCol = s
		}
	}
	out.Params["signal_column"] = signalCol

	for _, optional := range []string{"fast_ma_column", "slow_ma_column"} {
		if v, present := n.Params[optional]; present {
			s, ok := v.(string)
			if !ok {
				out.Violations = append(out.Violations, schemaErr(n, optional, optional+" must be a string"))
			}
			out.Params[optional] = s
		}
	}

	buyT, ok := nonNegativeNumberField(n, "buy_threshold", false, 0)
	if !ok {
		out.Violations = append(out.Violations, schemaErr(n, "buy_threshold", "buy_threshold must be a non-negative number"))
	}
	out.Params["buy_threshold"] = buyT

	sellT, ok := nonNegativeNumberField(n, "sell_threshold", false, 0)
	if !ok {
		out.Violations = append(out.Violations, schemaErr(n, "sell_threshold", "sell_threshold must be a non-negative number"))
	}
	out.Params["sell_threshold"] = sellT

	confirm, ok := positiveNumberField(n, "confirmation_periods", false, 1)
	if !ok {
		out.Violations = append(out.Violations, schemaErr(n, "confirmation_periods", "confirmation_periods must be a positive number"))
	}
	out.Params["confirmation_periods"] = confirm

	return out
}

func backtest(n domain.Node) Normalized {
	out := Normalized{Params: map[string]any{}}
	allowed := map[string]bool{"initial_capital": true, "commission": true, "slippage": true, "position_size": true}
	out.Violations = append(out.Violations, rejectExtraKeys(n, allowed)...)

	capital, ok := positiveNumberField(n, "initial_capital", true, 0)
	if !ok {
		out.Violations = append(out.Violations, schemaErr(n, "initial_capital", "initial_capital must be a positive number"))
	}
	out.Params["initial_capital"] = capital

	for field, def := range map[string]float64{"commission": 0.001, "slippage": 0.001, "position_size": 1.0} {
		v, ok := unitIntervalField(n, field, def)
		if !ok {
			out.Violations = append(out.Violations, schemaErr(n, field, field+" must be a number in [0,1]"))
		}
		out.Params[field] = v
	}
	return out
}

func rejectExtraKeys(n domain.Node, allowed map[string]bool) []*domain.CompileError {
	var viol []*domain.CompileError
	for k := range n.Params {
		if !allowed[k] {
			viol = append(viol, schemaErr(n, k, fmt.Sprintf("unknown parameter %q", k)))
		}
	}
	return viol
}

func stringField(n domain.Node, name string, required bool) (string, bool) {
	v, present := n.Params[name]
	if !present {
		return "", !required
	}
	s, ok := v.(string)
	if !ok || (required && s == "") {
		return "", false
	}
	return s, true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func positiveNumberField(n domain.Node, name string, required bool, def float64) (float64, bool) {
	v, present := n.Params[name]
	if !present {
		if required {
			return 0, false
		}
		return def, true
	}
	f, ok := toFloat(v)
	if !ok || f <= 0 {
		return 0, false
	}
	return f, true
}

func nonNegativeNumberField(n domain.Node, name string, required bool, def float64) (float64, bool) {
	v, present := n.Params[name]
	if !present {
		if required {
			return 0, false
		}
		return def, true
	}
	f, ok := toFloat(v)
	if !ok || f < 0 {
		return 0, false
	}
	return f, true
}

func unitIntervalField(n domain.Node, name string, def float64) (float64, bool) {
	v, present := n.Params[name]
	if !present {
		return def, true
	}
	f, ok := toFloat(v)
	if !ok || f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}
