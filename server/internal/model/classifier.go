package model

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/delaycast/delaycast/server/internal/features"
)

// Defaults mirror the reference training setup.
const (
	DefaultMaxIter = 1000
	DefaultL2      = 1.0
	DefaultSeed    = 42

	ClassWeightBalanced = "balanced"
	ClassWeightNone     = "none"

	gradientThreshold = 1e-6
)

var (
	ErrEmpty          = errors.New("model: empty training set")
	ErrLengthMismatch = errors.New("model: features and labels differ in length")
	ErrSingleClass    = errors.New("model: labels contain a single class")
	ErrBadLabel       = errors.New("model: labels must be 0 or 1")
	ErrBadWidth       = errors.New("model: feature width does not match schema")
)

// Options configure training.
type Options struct {
	// MaxIter bounds the number of L-BFGS major iterations.
	MaxIter int
	// L2 is the ridge penalty on the coefficients (1/C); zero or negative
	// selects DefaultL2. The intercept is not penalised.
	L2 float64
	// Seed fixes the order in which training groups are visited.
	Seed int64
	// ClassWeight is "balanced" or "none".
	ClassWeight string
}

func (o Options) withDefaults() Options {
	if o.MaxIter <= 0 {
		o.MaxIter = DefaultMaxIter
	}
	if o.L2 <= 0 {
		o.L2 = DefaultL2
	}
	if o.ClassWeight == "" {
		o.ClassWeight = ClassWeightBalanced
	}
	return o
}

// DefaultOptions returns the options used by the service when unconfigured.
func DefaultOptions() Options {
	return Options{MaxIter: DefaultMaxIter, L2: DefaultL2, Seed: DefaultSeed, ClassWeight: ClassWeightBalanced}
}

// State is the fitted parameter set. It is never mutated after publication.
type State struct {
	SchemaVersion string
	Columns       []string
	Coefficients  []float64
	Intercept     float64
	// ClassWeights holds the sample weight applied to label 0 and label 1.
	ClassWeights [2]float64
	Samples      int
	Iterations   int
	Loss         float64
	Status       string
	Seed         int64
	TrainedAt    time.Time
}

// Classifier is a binary linear classifier over a fixed feature schema.
// Predict and Classify are safe for concurrent use with each other and with Fit.
type Classifier struct {
	schema features.Schema
	opts   Options
	state  atomic.Pointer[State]
	now    func() time.Time
}

// New returns an untrained Classifier for schema.
func New(schema features.Schema, opts Options) *Classifier {
	return &Classifier{schema: schema, opts: opts.withDefaults(), now: time.Now}
}

// Trained reports whether Fit has completed at least once.
func (c *Classifier) Trained() bool {
	return c.state.Load() != nil
}

// State returns a copy of the fitted parameters, or nil when untrained.
func (c *Classifier) State() *State {
	st := c.state.Load()
	if st == nil {
		return nil
	}
	cp := *st
	cp.Columns = append([]string(nil), st.Columns...)
	cp.Coefficients = append([]float64(nil), st.Coefficients...)
	return &cp
}

// Fit trains on m and labels and atomically replaces the stored state.
// On error the previous state (if any) is kept.
func (c *Classifier) Fit(m features.Matrix, labels []int) error {
	if m.Rows() == 0 {
		return ErrEmpty
	}
	if m.Rows() != len(labels) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrLengthMismatch, m.Rows(), len(labels))
	}
	if m.Width() != c.schema.Width() {
		return fmt.Errorf("%w: got %d, want %d", ErrBadWidth, m.Width(), c.schema.Width())
	}

	var counts [2]int
	for i, y := range labels {
		if y != 0 && y != 1 {
			return fmt.Errorf("%w: row %d has %d", ErrBadLabel, i, y)
		}
		counts[y]++
	}
	if counts[0] == 0 || counts[1] == 0 {
		return ErrSingleClass
	}

	weights := c.classWeights(counts, len(labels))
	groups := c.group(m, labels, weights)

	width := m.Width()
	obj := objective{groups: groups, width: width, l2: c.opts.L2}
	problem := optimize.Problem{Func: obj.loss, Grad: obj.grad}
	settings := &optimize.Settings{
		MajorIterations:   c.opts.MaxIter,
		GradientThreshold: gradientThreshold,
	}

	init := make([]float64, width+1)
	res, err := optimize.Minimize(problem, init, settings, &optimize.LBFGS{})
	if res == nil {
		return fmt.Errorf("model: optimize: %w", err)
	}
	if err != nil {
		// Line-search stalls near the optimum still leave a usable location.
		if !finite(res.X) {
			return fmt.Errorf("model: optimize: %w", err)
		}
		slog.Warn("model: solver stopped early", "status", res.Status.String(), "err", err)
	}

	st := &State{
		SchemaVersion: c.schema.Version(),
		Columns:       c.schema.Columns(),
		Coefficients:  append([]float64(nil), res.X[:width]...),
		Intercept:     res.X[width],
		ClassWeights:  weights,
		Samples:       len(labels),
		Iterations:    res.Stats.MajorIterations,
		Loss:          res.F,
		Status:        res.Status.String(),
		Seed:          c.opts.Seed,
		TrainedAt:     c.now().UTC(),
	}
	c.state.Store(st)

	slog.Info("model: fitted",
		"samples", st.Samples,
		"iterations", st.Iterations,
		"loss", st.Loss,
		"status", st.Status,
		"weight_0", weights[0],
		"weight_1", weights[1],
	)
	return nil
}

// Predict returns one 0/1 label per row. When the classifier is untrained or
// m does not match the schema it returns all zeros.
func (c *Classifier) Predict(m features.Matrix) []int {
	out, _ := c.Classify(m)
	return out
}

// Classify is Predict that also reports whether the all-zero fallback was used.
func (c *Classifier) Classify(m features.Matrix) (labels []int, fallback bool) {
	out := make([]int, m.Rows())
	st := c.state.Load()
	if st == nil || !st.accepts(m) {
		return out, true
	}
	for i, row := range m.Data {
		if st.decision(row) > 0 {
			out[i] = 1
		}
	}
	return out, false
}

// Probabilities returns P(delay) per row, or nil when untrained or mismatched.
func (c *Classifier) Probabilities(m features.Matrix) []float64 {
	st := c.state.Load()
	if st == nil || !st.accepts(m) {
		return nil
	}
	out := make([]float64, m.Rows())
	for i, row := range m.Data {
		out[i] = sigmoid(st.decision(row))
	}
	return out
}

func (st *State) accepts(m features.Matrix) bool {
	if m.Width() != len(st.Coefficients) {
		return false
	}
	for i, c := range m.Columns {
		if st.Columns[i] != c {
			return false
		}
	}
	return true
}

func (st *State) decision(row []float64) float64 {
	z := st.Intercept
	for j, w := range st.Coefficients {
		z += w * row[j]
	}
	return z
}

// classWeights returns the per-class sample weights. Balanced weighting is
// n / (2 · n_c), so the minority class counts as much as the majority.
func (c *Classifier) classWeights(counts [2]int, n int) [2]float64 {
	if c.opts.ClassWeight != ClassWeightBalanced {
		return [2]float64{1, 1}
	}
	return [2]float64{
		float64(n) / (2 * float64(counts[0])),
		float64(n) / (2 * float64(counts[1])),
	}
}

// group collapses identical rows into weighted groups. One-hot rows take few
// distinct values, so this shrinks the objective from n rows to at most a few
// dozen without changing its value.
func (c *Classifier) group(m features.Matrix, labels []int, weights [2]float64) []group {
	byKey := make(map[string]*group)
	for i, row := range m.Data {
		k := features.Key(row)
		g, ok := byKey[k]
		if !ok {
			g = &group{key: k, x: row}
			byKey[k] = g
		}
		g.w[labels[i]] += weights[labels[i]]
	}

	out := make([]group, 0, len(byKey))
	for _, g := range byKey {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })

	rng := rand.New(rand.NewSource(c.opts.Seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func finite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return len(xs) > 0
}
