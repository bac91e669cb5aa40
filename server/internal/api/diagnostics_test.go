package api

import (
	"testing"
	"time"

	"github.com/delaycast/delaycast/server/internal/evaluate"
	"github.com/delaycast/delaycast/server/internal/predict"
)

func keys(hints []DiagnosticHint) []string {
	out := make([]string, len(hints))
	for i, h := range hints {
		out[i] = h.Key
	}
	return out
}

func trainedInfo(rate float64) predict.ModelInfo {
	at := time.Now()
	return predict.ModelInfo{
		Trained:   true,
		Operators: []string{"A", "B"},
		TrainedAt: &at,
		Report:    &predict.TrainReport{DelayRate: rate},
	}
}

func TestComputeDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		st   predict.Stats
		info predict.ModelInfo
		want []string
	}{
		{"untrained", predict.Stats{}, predict.ModelInfo{}, []string{"untrained"}},
		{"all clear", predict.Stats{Requests: 5, Flights: 50}, trainedInfo(20), []string{"healthy"}},
		{"fallbacks", predict.Stats{Fallbacks: 3}, trainedInfo(20), []string{"fallbacks"}},
		{"reject info", predict.Stats{Requests: 20, RejectRate: 15}, trainedInfo(20), []string{"healthy", "reject_rate"}},
		{"reject warning", predict.Stats{Requests: 20, RejectRate: 40}, trainedInfo(20), []string{"reject_rate"}},
		{"few requests ignored", predict.Stats{Requests: 3, RejectRate: 100}, trainedInfo(20), []string{"healthy"}},
		{"drift up", predict.Stats{Flights: 200, DelayRate: 45}, trainedInfo(20), []string{"delay_rate_drift"}},
		{"drift down", predict.Stats{Flights: 200, DelayRate: 5}, trainedInfo(20), []string{"delay_rate_drift"}},
		{"no drift", predict.Stats{Flights: 200, DelayRate: 25}, trainedInfo(20), []string{"healthy"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := keys(computeDiagnostics(tc.st, tc.info))
			if len(got) != len(tc.want) {
				t.Fatalf("keys: got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("keys: got %v, want %v", got, tc.want)
					break
				}
			}
		})
	}
}

func TestComputeDiagnostics_HoldoutRecall(t *testing.T) {
	info := trainedInfo(20)
	rep := evaluate.Report{Samples: 100}
	rep.Classes[1] = evaluate.Output{Recall: 0.6, Precision: 0.25}
	info.Report.Holdout = &rep

	hints := computeDiagnostics(predict.Stats{}, info)
	if k := keys(hints); len(k) != 2 || k[0] != "healthy" || k[1] != "holdout_recall" {
		t.Fatalf("keys: got %v", k)
	}
	if v := *hints[1].Value; v < 59.99 || v > 60.01 {
		t.Errorf("recall value: got %v, want 60", v)
	}
}
