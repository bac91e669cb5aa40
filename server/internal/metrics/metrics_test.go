package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Requests.WithLabelValues(OutcomeOK).Inc()
	m.Flights.Add(3)
	m.Predictions.WithLabelValues("1").Add(2)
	m.ValidationFailures.WithLabelValues("MES").Inc()
	m.ModelTrained.Set(1)

	if got := testutil.ToFloat64(m.Requests.WithLabelValues(OutcomeOK)); got != 1 {
		t.Errorf("requests_total{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Flights); got != 3 {
		t.Errorf("flights_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.Predictions.WithLabelValues("1")); got != 2 {
		t.Errorf("predictions_total{1} = %v, want 2", got)
	}

	n, err := testutil.GatherAndCount(reg, "delaycast_validation_failures_total", "delaycast_model_trained")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("gathered %d series, want 2", n)
	}
}

func TestNew_IsolatedRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := New(nil)
	b := New(nil)
	a.Fallbacks.Inc()
	if got := testutil.ToFloat64(b.Fallbacks); got != 0 {
		t.Errorf("second registry saw %v fallbacks, want 0", got)
	}
}

func TestHandler_Exposition(t *testing.T) {
	m := New(nil)
	m.CacheHits.Add(5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if !strings.Contains(string(body), "delaycast_cache_hits_total 5") {
		t.Errorf("exposition missing cache hits:\n%s", body)
	}
}
