package query

import "fmt"

// compare evaluates a WHERE comparison between a bound property value and
// a literal from the query text. Numeric literals compare numerically
// regardless of the stored Go numeric type (int vs float); everything
// else falls back to string comparison, which covers "=" / "!=" on
// strings/bools/atoms and is a reasonable total order for ordering ops.
func compare(actual any, op comparisonOp, want any) bool {
	if af, aok := toFloat(actual); aok {
		if wf, wok := toFloat(want); wok {
			return numericCompare(af, op, wf)
		}
	}

	as := fmt.Sprintf("%v", actual)
	ws := fmt.Sprintf("%v", want)
	switch op {
	case opEq:
		return as == ws
	case opNeq:
		return as != ws
	case opGt:
		return as > ws
	case opLt:
		return as < ws
	case opGte:
		return as >= ws
	case opLte:
		return as <= ws
	}
	return false
}

func numericCompare(a float64, op comparisonOp, b float64) bool {
	switch op {
	case opEq:
		return a == b
	case opNeq:
		return a != b
	case opGt:
		return a > b
	case opLt:
		return a < b
	case opGte:
		return a >= b
	case opLte:
		return a <= b
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
