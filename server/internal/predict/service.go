package predict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/delaycast/delaycast/pkg/types"
	"github.com/delaycast/delaycast/server/internal/evaluate"
	"github.com/delaycast/delaycast/server/internal/features"
	"github.com/delaycast/delaycast/server/internal/metrics"
	"github.com/delaycast/delaycast/server/internal/model"
	"github.com/delaycast/delaycast/server/internal/store"
	"github.com/delaycast/delaycast/server/internal/validate"
)

var tracer = otel.Tracer("delaycast.predict")

// DefaultTargetColumn names the label column Train uses when none is given.
const DefaultTargetColumn = "delay"

// ErrEmptyBatch is returned by PredictFlights when no flights are given.
var ErrEmptyBatch = errors.New("predict: empty flight batch")

// RejectedError reports the first flight of a batch that failed validation.
type RejectedError struct {
	Index int
	Errs  validate.ValidationErrors
}

func (e *RejectedError) Error() string { return e.Errs.Error() }

func (e *RejectedError) Unwrap() error { return e.Errs }

// HistorySink receives every served prediction. *store.History satisfies it.
type HistorySink interface {
	Append(ctx context.Context, records []store.Record) error
}

// Options configure a Service. Zero values select the defaults.
type Options struct {
	Schema features.Schema
	Model  model.Options

	// HoldoutFraction of the training batch is scored by a separate fit and
	// reported by Train. 0 disables evaluation.
	HoldoutFraction float64

	// CacheTTL bounds how long a label is memoised per encoded row.
	// 0 disables the cache.
	CacheTTL time.Duration

	Metrics *metrics.Metrics
	History HistorySink
}

// Service is the prediction core. Its exported methods are safe for
// concurrent use once Train has returned.
type Service struct {
	schema    features.Schema
	encoder   *features.Encoder
	clf       *model.Classifier
	modelOpts model.Options
	holdout   float64

	validator atomic.Pointer[validate.Validator]
	report    atomic.Pointer[TrainReport]

	cache   *store.Store
	gen     atomic.Uint64 // bumped on every successful Fit; prefixes cache keys
	metrics *metrics.Metrics
	history HistorySink
	stats   counters
}

// New returns an untrained Service.
func New(opts Options) *Service {
	schema := opts.Schema
	if schema.Width() == 0 {
		schema = features.Default
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New(nil)
	}
	s := &Service{
		schema:    schema,
		encoder:   features.NewEncoder(schema),
		clf:       model.New(schema, opts.Model),
		modelOpts: opts.Model,
		holdout:   opts.HoldoutFraction,
		metrics:   m,
		history:   opts.History,
	}
	if opts.CacheTTL > 0 {
		s.cache = store.New(opts.CacheTTL)
	}
	s.validator.Store(validate.New(validate.NewCatalog(nil)))
	return s
}

// Cache returns the prediction cache, or nil when caching is disabled.
func (s *Service) Cache() *store.Store { return s.cache }

// Metrics returns the collectors the service updates.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Preprocess encodes batch and, when targetColumn is set, derives its labels.
func (s *Service) Preprocess(batch types.Batch, targetColumn string) (features.Matrix, []int, error) {
	return s.encoder.Preprocess(batch, targetColumn)
}

// Fit trains the serving classifier on m and labels.
func (s *Service) Fit(m features.Matrix, labels []int) error {
	if err := s.clf.Fit(m, labels); err != nil {
		return err
	}
	s.gen.Add(1)
	if s.cache != nil {
		if n := s.cache.Reset(); n > 0 {
			slog.Debug("predict: cache cleared after fit", "entries", n)
		}
	}
	s.metrics.ModelTrained.Set(1)
	return nil
}

// Predict classifies an encoded matrix. Before Fit it returns all zeros.
func (s *Service) Predict(m features.Matrix) []int {
	out, fallback := s.clf.Classify(m)
	if fallback {
		s.metrics.Fallbacks.Add(float64(len(out)))
		s.stats.fallbacks.Add(uint64(len(out)))
	}
	return out
}

// Validate checks one record against the training catalog.
func (s *Service) Validate(r types.Record) (types.Record, error) {
	return s.validator.Load().Validate(r)
}

// Trained reports whether the serving classifier has been fitted.
func (s *Service) Trained() bool { return s.clf.Trained() }

// PredictFlights validates, encodes and classifies flights, returning one
// 0/1 label per flight in input order. The first invalid flight aborts the
// whole batch with a *RejectedError.
func (s *Service) PredictFlights(ctx context.Context, flights []types.Flight) ([]int, error) {
	ctx, span := tracer.Start(ctx, "predict.flights")
	defer span.End()
	span.SetAttributes(attribute.Int("flights", len(flights)))

	start := time.Now()
	defer func() { s.metrics.PredictDuration.Observe(time.Since(start).Seconds()) }()
	s.stats.requests.Add(1)

	if len(flights) == 0 {
		s.stats.empty.Add(1)
		s.metrics.Requests.WithLabelValues(metrics.OutcomeEmpty).Inc()
		span.SetStatus(codes.Error, ErrEmptyBatch.Error())
		return nil, ErrEmptyBatch
	}

	records := types.Records(flights)
	if idx, err := s.validator.Load().ValidateAll(records); err != nil {
		return nil, s.reject(span, idx, err)
	}

	m := s.encoder.Encode(records)
	labels, fallbacks, hits := s.classify(m)

	s.stats.flights.Add(uint64(len(labels)))
	s.metrics.Flights.Add(float64(len(labels)))
	var delays int
	for _, y := range labels {
		delays += y
		s.metrics.Predictions.WithLabelValues(strconv.Itoa(y)).Inc()
	}
	s.stats.delays.Add(uint64(delays))
	s.stats.fallbacks.Add(uint64(fallbacks))
	s.metrics.Fallbacks.Add(float64(fallbacks))
	s.stats.cacheHits.Add(uint64(hits))
	s.metrics.CacheHits.Add(float64(hits))
	s.metrics.Requests.WithLabelValues(metrics.OutcomeOK).Inc()

	span.SetAttributes(
		attribute.Int("delays", delays),
		attribute.Int("cache_hits", hits),
		attribute.Int("fallbacks", fallbacks),
	)

	if s.history != nil {
		s.record(ctx, records, labels, fallbacks > 0)
	}
	return labels, nil
}

// classify answers each row from the cache when possible and classifies the
// remaining rows in one pass. Fallback labels are never cached, and labels
// computed by a state that was replaced mid-request are not stored.
func (s *Service) classify(m features.Matrix) (labels []int, fallbacks, hits int) {
	gen := s.gen.Load()
	prefix := strconv.FormatUint(gen, 10) + ":"
	labels = make([]int, m.Rows())
	keys := make([]string, m.Rows())
	miss := features.Matrix{Columns: m.Columns}
	var missIdx []int

	for i, row := range m.Data {
		keys[i] = prefix + features.Key(row)
		if s.cache != nil {
			if y, ok := s.cache.Get(keys[i]); ok {
				labels[i] = y
				hits++
				continue
			}
		}
		miss.Data = append(miss.Data, row)
		missIdx = append(missIdx, i)
	}
	if len(missIdx) == 0 {
		return labels, 0, hits
	}

	out, fallback := s.clf.Classify(miss)
	cacheable := s.cache != nil && !fallback && s.gen.Load() == gen
	for j, i := range missIdx {
		labels[i] = out[j]
		if cacheable {
			s.cache.Put(keys[i], out[j])
		}
	}
	if fallback {
		fallbacks = len(missIdx)
	}
	return labels, fallbacks, hits
}

func (s *Service) reject(span trace.Span, idx int, err error) error {
	span.RecordError(err)

	var ves validate.ValidationErrors
	if !errors.As(err, &ves) {
		s.metrics.Requests.WithLabelValues(metrics.OutcomeError).Inc()
		span.SetStatus(codes.Error, "validator failed")
		return fmt.Errorf("predict: flight %d: %w", idx, err)
	}

	s.stats.rejected.Add(1)
	s.metrics.Requests.WithLabelValues(metrics.OutcomeRejected).Inc()
	span.SetStatus(codes.Error, "validation failed")
	for _, f := range ves.Fields() {
		s.metrics.ValidationFailures.WithLabelValues(f).Inc()
	}
	slog.Debug("predict: flight rejected", "index", idx, "reason", ves.Error())
	return &RejectedError{Index: idx, Errs: ves}
}

func (s *Service) record(ctx context.Context, records []types.Record, labels []int, fallback bool) {
	id := RequestIDFrom(ctx)
	now := time.Now().UTC()
	out := make([]store.Record, len(records))
	for i, r := range records {
		out[i] = store.Record{
			RequestID:  id,
			Operator:   r.Operator,
			FlightType: r.FlightType,
			Month:      r.Month,
			Label:      labels[i],
			Fallback:   fallback,
			CreatedAt:  now,
		}
	}
	if err := s.history.Append(ctx, out); err != nil {
		slog.Warn("predict: history append failed", "request_id", id, "err", err)
	}
}

// TrainReport summarises a Train call.
type TrainReport struct {
	Samples   int              `json:"samples"`
	Delays    int              `json:"delays"`
	DelayRate float64          `json:"delay_rate"`
	Operators int              `json:"operators"`
	Holdout   *evaluate.Report `json:"holdout,omitempty"`
	Duration  time.Duration    `json:"duration_ns"`
}

// Train derives labels, fits the serving classifier on the full batch and
// builds the operator catalog. When a holdout fraction is configured a
// separate classifier is first fitted on the remaining rows and scored on
// the holdout. On error the service is left as it was.
func (s *Service) Train(batch types.Batch, targetColumn string) (*TrainReport, error) {
	start := time.Now()
	if targetColumn == "" {
		targetColumn = DefaultTargetColumn
	}
	m, labels, err := s.Preprocess(batch, targetColumn)
	if err != nil {
		return nil, fmt.Errorf("predict: preprocess: %w", err)
	}

	var holdout *evaluate.Report
	if s.holdout > 0 {
		holdout, err = s.evaluate(m, labels)
		if err != nil {
			return nil, err
		}
	}

	if err := s.Fit(m, labels); err != nil {
		return nil, fmt.Errorf("predict: fit: %w", err)
	}
	catalog := validate.NewCatalog(batch.Records)
	s.validator.Store(validate.New(catalog))

	var delays int
	for _, y := range labels {
		delays += y
	}
	rep := &TrainReport{
		Samples:   len(labels),
		Delays:    delays,
		DelayRate: float64(delays) / float64(len(labels)) * 100,
		Operators: catalog.Len(),
		Holdout:   holdout,
		Duration:  time.Since(start),
	}
	s.report.Store(rep)

	attrs := []any{
		"samples", rep.Samples,
		"delay_rate", rep.DelayRate,
		"operators", rep.Operators,
		"duration", rep.Duration,
	}
	if holdout != nil {
		attrs = append(attrs, "holdout", holdout.Samples, "accuracy", holdout.Accuracy,
			"recall_1", holdout.Classes[1].Recall, "f1_1", holdout.Classes[1].F1)
	}
	slog.Info("predict: model trained", attrs...)
	return rep, nil
}

func (s *Service) evaluate(m features.Matrix, labels []int) (*evaluate.Report, error) {
	trainIdx, testIdx := evaluate.Split(len(labels), s.holdout, s.modelOpts.Seed)
	if len(testIdx) == 0 {
		return nil, nil
	}

	trainM, trainY := subset(m, labels, trainIdx)
	testM, testY := subset(m, labels, testIdx)

	clf := model.New(s.schema, s.modelOpts)
	if err := clf.Fit(trainM, trainY); err != nil {
		return nil, fmt.Errorf("predict: holdout fit: %w", err)
	}
	rep, err := evaluate.Confusion(testY, clf.Predict(testM))
	if err != nil {
		return nil, fmt.Errorf("predict: holdout: %w", err)
	}
	return &rep, nil
}

func subset(m features.Matrix, labels []int, idx []int) (features.Matrix, []int) {
	out := features.Matrix{Columns: m.Columns, Data: make([][]float64, len(idx))}
	ys := make([]int, len(idx))
	for j, i := range idx {
		out.Data[j] = m.Data[i]
		ys[j] = labels[i]
	}
	return out, ys
}
