package api

import (
	"fmt"

	"github.com/delaycast/delaycast/server/internal/predict"
)

// DiagnosticHint is one human-readable insight about the serving model.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label (≤ 5 words).
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

// driftFactor is how far the served delay rate may move from the training
// delay rate, as a ratio, before it is flagged.
const driftFactor = 2.0

// computeDiagnostics derives hints from the service stats and model info.
// Hints follow a fixed check order; "All clear" leads when nothing is wrong.
func computeDiagnostics(st predict.Stats, info predict.ModelInfo) []DiagnosticHint {
	var hints []DiagnosticHint

	if !info.Trained {
		return append(hints, DiagnosticHint{
			Key:   "untrained",
			Level: "critical",
			Title: "Model not trained",
			Detail: "No model has been fitted, so every flight is answered with 0 (on time). " +
				"Check the startup logs for a dataset or training error.",
		})
	}

	if st.Fallbacks > 0 {
		v := float64(st.Fallbacks)
		hints = append(hints, DiagnosticHint{
			Key:   "fallbacks",
			Level: "warning",
			Title: "Fallback predictions served",
			Detail: fmt.Sprintf("%d flights were answered with the all-zero fallback "+
				"because the model was unavailable or the feature columns did not match.", st.Fallbacks),
			Value: &v,
		})
	}

	if st.Requests >= 10 && st.RejectRate >= 10 {
		v := st.RejectRate
		level := "info"
		if st.RejectRate >= 25 {
			level = "warning"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "reject_rate",
			Level: level,
			Title: fmt.Sprintf("%.0f%% requests rejected", st.RejectRate),
			Detail: fmt.Sprintf("%.1f%% of prediction requests failed validation. "+
				"Clients may be sending operators the model has never seen, "+
				"flight types other than N or I, or months outside 1..12.", st.RejectRate),
			Value: &v,
		})
	}

	if rep := info.Report; rep != nil && rep.DelayRate > 0 && st.Flights >= 100 {
		ratio := st.DelayRate / rep.DelayRate
		if ratio >= driftFactor || ratio <= 1/driftFactor {
			v := st.DelayRate
			hints = append(hints, DiagnosticHint{
				Key:   "delay_rate_drift",
				Level: "warning",
				Title: "Delay rate drift",
				Detail: fmt.Sprintf("%.1f%% of served flights are predicted late, against %.1f%% "+
					"late flights in the training data. The serving traffic may differ "+
					"from the historical mix.", st.DelayRate, rep.DelayRate),
				Value: &v,
			})
		}
	}

	if rep := info.Report; rep != nil && rep.Holdout != nil {
		v := rep.Holdout.Classes[1].Recall * 100
		hints = append(hints, DiagnosticHint{
			Key:   "holdout_recall",
			Level: "info",
			Title: fmt.Sprintf("%.0f%% delay recall", v),
			Detail: fmt.Sprintf("On %d held-out flights the model caught %.1f%% of actual delays "+
				"with %.1f%% precision.", rep.Holdout.Samples, v, rep.Holdout.Classes[1].Precision*100),
			Value: &v,
		})
	}

	if len(hints) == 0 || onlyInfo(hints) {
		hints = append([]DiagnosticHint{{
			Key:    "healthy",
			Level:  "ok",
			Title:  "All clear",
			Detail: fmt.Sprintf("The model is trained on %d operators and serving normally.", len(info.Operators)),
		}}, hints...)
	}
	return hints
}

func onlyInfo(hints []DiagnosticHint) bool {
	for _, h := range hints {
		if h.Level != "info" {
			return false
		}
	}
	return true
}
