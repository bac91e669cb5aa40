package predict

import (
	"context"
	"sync/atomic"
	"time"
)

type counters struct {
	requests  atomic.Uint64
	empty     atomic.Uint64
	rejected  atomic.Uint64
	flights   atomic.Uint64
	delays    atomic.Uint64
	fallbacks atomic.Uint64
	cacheHits atomic.Uint64
}

// Stats is a point-in-time view of the service counters.
type Stats struct {
	Requests  uint64 `json:"requests"`
	Empty     uint64 `json:"empty"`
	Rejected  uint64 `json:"rejected"`
	Flights   uint64 `json:"flights"`
	Delays    uint64 `json:"delays"`
	Fallbacks uint64 `json:"fallbacks"`
	CacheHits uint64 `json:"cache_hits"`

	// DelayRate is the percentage of classified flights labelled 1.
	DelayRate float64 `json:"delay_rate"`
	// RejectRate is the percentage of requests that failed validation.
	RejectRate float64 `json:"reject_rate"`

	Trained bool `json:"trained"`
}

// Stats returns the current counters.
func (s *Service) Stats() Stats {
	st := Stats{
		Requests:  s.stats.requests.Load(),
		Empty:     s.stats.empty.Load(),
		Rejected:  s.stats.rejected.Load(),
		Flights:   s.stats.flights.Load(),
		Delays:    s.stats.delays.Load(),
		Fallbacks: s.stats.fallbacks.Load(),
		CacheHits: s.stats.cacheHits.Load(),
		Trained:   s.clf.Trained(),
	}
	if st.Flights > 0 {
		st.DelayRate = float64(st.Delays) / float64(st.Flights) * 100
	}
	if st.Requests > 0 {
		st.RejectRate = float64(st.Rejected) / float64(st.Requests) * 100
	}
	return st
}

// ModelInfo describes the serving model.
type ModelInfo struct {
	Trained       bool         `json:"trained"`
	SchemaVersion string       `json:"schema_version"`
	Columns       []string     `json:"columns"`
	Coefficients  []float64    `json:"coefficients,omitempty"`
	Intercept     float64      `json:"intercept"`
	ClassWeights  [2]float64   `json:"class_weights"`
	Iterations    int          `json:"iterations"`
	Loss          float64      `json:"loss"`
	Status        string       `json:"status,omitempty"`
	Seed          int64        `json:"seed"`
	TrainedAt     *time.Time   `json:"trained_at,omitempty"`
	Operators     []string     `json:"operators"`
	Report        *TrainReport `json:"report,omitempty"`
}

// ModelInfo returns the schema, fitted parameters, catalog and training report.
func (s *Service) ModelInfo() ModelInfo {
	info := ModelInfo{
		SchemaVersion: s.schema.Version(),
		Columns:       s.schema.Columns(),
		Operators:     s.validator.Load().Catalog().Operators(),
		Report:        s.report.Load(),
	}
	st := s.clf.State()
	if st == nil {
		return info
	}
	at := st.TrainedAt
	info.Trained = true
	info.Coefficients = st.Coefficients
	info.Intercept = st.Intercept
	info.ClassWeights = st.ClassWeights
	info.Iterations = st.Iterations
	info.Loss = st.Loss
	info.Status = st.Status
	info.Seed = st.Seed
	info.TrainedAt = &at
	return info
}

type requestIDKey struct{}

// WithRequestID returns a context carrying id for history records.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request ID stored by WithRequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
