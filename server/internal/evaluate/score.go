package evaluate

// Input is a confusion count for one class treated as positive.
type Input struct {
	TP, FP, TN, FN int
}

// Output holds the derived scores. All values are in the range 0–1.
type Output struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Accuracy  float64 `json:"accuracy"`

	// Support is the number of true members of the class (TP + FN).
	Support int `json:"support"`
}

// Compute derives the class scores from in.
//
//	precision = TP / (TP + FP)
//	recall    = TP / (TP + FN)
//	f1        = 2·P·R / (P + R)
//	accuracy  = (TP + TN) / total
//
// A ratio whose denominator is zero is reported as 0.
func Compute(in Input) Output {
	precision := ratio(in.TP, in.TP+in.FP)
	recall := ratio(in.TP, in.TP+in.FN)

	var f1 float64
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	return Output{
		Precision: precision,
		Recall:    recall,
		F1:        f1,
		Accuracy:  ratio(in.TP+in.TN, in.TP+in.FP+in.TN+in.FN),
		Support:   in.TP + in.FN,
	}
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
