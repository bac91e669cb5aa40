package evaluate

import (
	"reflect"
	"sort"
	"testing"
)

func TestConfusion(t *testing.T) {
	labels := []int{1, 1, 0, 0, 0, 1}
	preds := []int{1, 0, 0, 1, 0, 1}

	r, err := Confusion(labels, preds)
	if err != nil {
		t.Fatal(err)
	}
	want := [2][2]int{{2, 1}, {1, 2}}
	if r.Confusion != want {
		t.Errorf("confusion = %v, want %v", r.Confusion, want)
	}
	if r.Samples != 6 {
		t.Errorf("samples = %d, want 6", r.Samples)
	}
	if !almostEqual(r.Accuracy, 4.0/6, 1e-9) {
		t.Errorf("accuracy = %v", r.Accuracy)
	}
	if r.Classes[1].Support != 3 || r.Classes[0].Support != 3 {
		t.Errorf("support = %d/%d, want 3/3", r.Classes[0].Support, r.Classes[1].Support)
	}
	if !almostEqual(r.Classes[1].Precision, 2.0/3, 1e-9) {
		t.Errorf("precision_1 = %v", r.Classes[1].Precision)
	}
	if s := r.Summary(); !almostEqual(s["recall_0"], 2.0/3, 1e-9) {
		t.Errorf("summary recall_0 = %v", s["recall_0"])
	}
}

func TestConfusion_Errors(t *testing.T) {
	if _, err := Confusion([]int{1}, []int{1, 0}); err == nil {
		t.Error("expected length mismatch error")
	}
	if _, err := Confusion([]int{2}, []int{1}); err == nil {
		t.Error("expected bad label error")
	}
	if _, err := Confusion([]int{1}, []int{-1}); err == nil {
		t.Error("expected bad prediction error")
	}
}

func TestSplit(t *testing.T) {
	train, test := Split(100, 0.33, 42)
	if len(test) != 33 || len(train) != 67 {
		t.Fatalf("sizes = %d/%d, want 67/33", len(train), len(test))
	}

	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	for i, v := range all {
		if v != i {
			t.Fatalf("split is not a partition: index %d holds %d", i, v)
		}
	}

	train2, test2 := Split(100, 0.33, 42)
	if !reflect.DeepEqual(test, test2) || !reflect.DeepEqual(train, train2) {
		t.Error("same seed produced different splits")
	}
	_, test3 := Split(100, 0.33, 7)
	if reflect.DeepEqual(test, test3) {
		t.Error("different seeds produced the same split")
	}
}

func TestSplit_Degenerate(t *testing.T) {
	tests := []struct {
		n        int
		fraction float64
		wantTest int
	}{
		{10, 0, 0},
		{10, 1, 0},
		{10, -0.2, 0},
		{1, 0.5, 0},
		{2, 0.01, 1},
		{3, 0.99, 2},
	}
	for _, tc := range tests {
		train, test := Split(tc.n, tc.fraction, 1)
		if len(test) != tc.wantTest || len(train)+len(test) != tc.n {
			t.Errorf("Split(%d, %v): train=%d test=%d, want test=%d", tc.n, tc.fraction, len(train), len(test), tc.wantTest)
		}
	}
}
