package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Series scraped from the server's /metrics endpoint.
const (
	seriesRequests    = "delaycast_requests_total"
	seriesFlights     = "delaycast_flights_total"
	seriesPredictions = "delaycast_predictions_total"
	seriesRejections  = "delaycast_validation_failures_total"
	seriesFallbacks   = "delaycast_fallback_predictions_total"
	seriesCacheHits   = "delaycast_cache_hits_total"
	seriesTrained     = "delaycast_model_trained"
)

// Status is a summary of a server's counters as exposed on /metrics.
// Counter values are totals since the server started.
type Status struct {
	Trained   bool
	Flights   float64
	Delays    float64
	Fallbacks float64
	CacheHits float64

	// Requests is keyed by outcome: ok, empty, rejected, error.
	Requests map[string]float64
	// Rejections is keyed by field: OPERA, TIPOVUELO, MES.
	Rejections map[string]float64
}

// DelayRate is the percentage of classified flights predicted late.
func (s Status) DelayRate() float64 {
	if s.Flights == 0 {
		return 0
	}
	return s.Delays / s.Flights * 100
}

// Outcomes returns the request outcome labels in sorted order.
func (s Status) Outcomes() []string {
	out := make([]string, 0, len(s.Requests))
	for k := range s.Requests {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func statusFrom(mfs map[string]*dto.MetricFamily) Status {
	return Status{
		Trained:    sumFamily(mfs[seriesTrained]) > 0,
		Flights:    sumFamily(mfs[seriesFlights]),
		Delays:     sumLabel(mfs[seriesPredictions], "label", "1"),
		Fallbacks:  sumFamily(mfs[seriesFallbacks]),
		CacheHits:  sumFamily(mfs[seriesCacheHits]),
		Requests:   byLabel(mfs[seriesRequests], "outcome"),
		Rejections: byLabel(mfs[seriesRejections], "field"),
	}
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a parse warning is still returned.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// value returns the sample of a counter, gauge or untyped metric.
func value(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}

// sumFamily adds up all values in mf. Returns 0 if mf is nil.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += value(m)
	}
	return total
}

// sumLabel adds up the values in mf whose label name equals want.
func sumLabel(mf *dto.MetricFamily, name, want string) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name && lp.GetValue() == want {
				total += value(m)
			}
		}
	}
	return total
}

// byLabel groups the values in mf by the value of label name.
func byLabel(mf *dto.MetricFamily, name string) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name {
				out[lp.GetValue()] += value(m)
			}
		}
	}
	return out
}
