package alerts

import (
	"strconv"
	"strings"

	"github.com/delaycast/delaycast/server/internal/predict"
)

// evalCondition evaluates a rule condition string against service stats.
//
// Supported expressions (field operator value):
//
//	delay_rate > 60
//	reject_rate > 25
//	fallbacks > 0
//	requests < 1
//	flights >= 1000
//	trained == false
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, st predict.Stats) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if field == "trained" {
		want, err := strconv.ParseBool(rhs)
		if err != nil {
			return false, 0
		}
		v := 0.0
		if st.Trained {
			v = 1
		}
		switch op {
		case "==":
			return st.Trained == want, v
		case "!=":
			return st.Trained != want, v
		}
		return false, 0
	}

	v, ok := numericField(field, st)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value in the stats.
func numericField(field string, st predict.Stats) (float64, bool) {
	switch field {
	case "delay_rate":
		return st.DelayRate, true
	case "reject_rate":
		return st.RejectRate, true
	case "fallbacks":
		return float64(st.Fallbacks), true
	case "requests":
		return float64(st.Requests), true
	case "flights":
		return float64(st.Flights), true
	case "rejected":
		return float64(st.Rejected), true
	case "delays":
		return float64(st.Delays), true
	case "cache_hits":
		return float64(st.CacheHits), true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
