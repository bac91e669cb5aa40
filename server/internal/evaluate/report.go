package evaluate

import (
	"fmt"
	"math/rand"
)

// Report is the two-class evaluation of a set of predictions.
type Report struct {
	// Classes holds the scores with label 0 and label 1 treated as positive.
	Classes  [2]Output `json:"classes"`
	Accuracy float64   `json:"accuracy"`
	Samples  int       `json:"samples"`

	// Confusion is indexed [actual][predicted].
	Confusion [2][2]int `json:"confusion"`
}

// Confusion compares labels with preds and returns the report.
// It returns an error when the lengths differ or a value is not 0 or 1.
func Confusion(labels, preds []int) (Report, error) {
	if len(labels) != len(preds) {
		return Report{}, fmt.Errorf("evaluate: %d labels, %d predictions", len(labels), len(preds))
	}
	var r Report
	for i := range labels {
		y, p := labels[i], preds[i]
		if y&^1 != 0 || p&^1 != 0 {
			return Report{}, fmt.Errorf("evaluate: row %d: labels must be 0 or 1", i)
		}
		r.Confusion[y][p]++
	}
	r.Samples = len(labels)

	c := r.Confusion
	r.Classes[1] = Compute(Input{TP: c[1][1], FP: c[0][1], TN: c[0][0], FN: c[1][0]})
	r.Classes[0] = Compute(Input{TP: c[0][0], FP: c[1][0], TN: c[1][1], FN: c[0][1]})
	r.Accuracy = r.Classes[1].Accuracy
	return r, nil
}

// Summary flattens the report for logging.
func (r Report) Summary() map[string]float64 {
	return map[string]float64{
		"accuracy":    r.Accuracy,
		"precision_0": r.Classes[0].Precision,
		"recall_0":    r.Classes[0].Recall,
		"f1_0":        r.Classes[0].F1,
		"precision_1": r.Classes[1].Precision,
		"recall_1":    r.Classes[1].Recall,
		"f1_1":        r.Classes[1].F1,
	}
}

// Split partitions the indices 0..n-1 into train and test sets. The test set
// holds round(n·fraction) indices chosen by a seeded shuffle, so equal inputs
// always give equal splits. A fraction outside (0, 1) yields no test set.
func Split(n int, fraction float64, seed int64) (train, test []int) {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if fraction <= 0 || fraction >= 1 || n < 2 {
		return idx, []int{}
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	k := int(float64(n)*fraction + 0.5)
	if k == 0 {
		k = 1
	}
	if k >= n {
		k = n - 1
	}
	return idx[k:], idx[:k]
}
