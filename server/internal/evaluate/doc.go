// Package evaluate scores a trained classifier against held-out labels.
//
// score.go provides the pure Compute(Input) function that turns a confusion
// count into precision, recall, F1 and accuracy for one class.
//
// report.go builds the two-class report logged after training and the
// deterministic holdout split it is computed on.
package evaluate
