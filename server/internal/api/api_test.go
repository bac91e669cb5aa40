package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/delaycast/delaycast/pkg/types"
	"github.com/delaycast/delaycast/server/internal/alerts"
	"github.com/delaycast/delaycast/server/internal/api"
	"github.com/delaycast/delaycast/server/internal/config"
	"github.com/delaycast/delaycast/server/internal/predict"
	"github.com/delaycast/delaycast/server/internal/store"
)

// --- test helpers -----------------------------------------------------------

var (
	trainOnce  sync.Once
	trainBatch types.Batch
)

// batch returns a small labelled training set with three flight profiles.
func batch() types.Batch {
	trainOnce.Do(func() {
		add := func(r types.Record, y, n int) {
			for i := 0; i < n; i++ {
				trainBatch.Records = append(trainBatch.Records, r)
				trainBatch.Labels = append(trainBatch.Labels, y)
			}
		}
		latam := types.Record{Operator: "Grupo LATAM", FlightType: "I", Month: 12}
		sky := types.Record{Operator: "Sky Airline", FlightType: "N", Month: 4}
		copa := types.Record{Operator: "Copa Air", FlightType: "N", Month: 7}
		add(latam, 1, 80)
		add(latam, 0, 20)
		add(sky, 1, 45)
		add(sky, 0, 855)
		add(copa, 1, 30)
		add(copa, 0, 70)
	})
	return trainBatch
}

func trainedService(t *testing.T) *predict.Service {
	t.Helper()
	svc := predict.New(predict.Options{})
	if _, err := svc.Train(batch(), "delay"); err != nil {
		t.Fatalf("Train: %v", err)
	}
	return svc
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

func detail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var e struct {
		Detail string `json:"detail"`
	}
	decode(t, rr, &e)
	return e.Detail
}

const validBody = `{"flights":[
	{"OPERA":"Grupo LATAM","TIPOVUELO":"I","MES":12},
	{"OPERA":"Sky Airline","TIPOVUELO":"N","MES":4},
	{"OPERA":"Copa Air","TIPOVUELO":"N","MES":7}
]}`

// --- /health ----------------------------------------------------------------

func TestHealth(t *testing.T) {
	h := api.New(predict.New(predict.Options{}), api.Options{})

	rr := get(t, h, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.Status != "OK" {
		t.Errorf("status: got %q, want OK", resp.Status)
	}

	if rr := post(t, h, "/health", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health: got %d, want 405", rr.Code)
	}
}

// --- /predict ---------------------------------------------------------------

func TestPredict_OK(t *testing.T) {
	h := api.New(trainedService(t), api.Options{})

	rr := post(t, h, "/predict", validBody)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var resp api.PredictResponse
	decode(t, rr, &resp)
	want := []int{1, 0, 1}
	if len(resp.Predict) != len(want) {
		t.Fatalf("predict: got %v, want %v", resp.Predict, want)
	}
	for i := range want {
		if resp.Predict[i] != want[i] {
			t.Errorf("predict[%d]: got %d, want %d", i, resp.Predict[i], want[i])
		}
	}
}

func TestPredict_BadRequests(t *testing.T) {
	h := api.New(trainedService(t), api.Options{})

	tests := []struct {
		name       string
		body       string
		wantDetail string
	}{
		{"empty flights", `{"flights":[]}`, "Empty 'flights' payload"},
		{"missing flights", `{}`, "Empty 'flights' payload"},
		{"unknown operator", `{"flights":[{"OPERA":"Aerolineas Argentinas","TIPOVUELO":"N","MES":3}]}`, "Invalid OPERA"},
		{"bad flight type", `{"flights":[{"OPERA":"Sky Airline","TIPOVUELO":"O","MES":3}]}`, "Invalid TIPOVUELO (must be 'N' or 'I')"},
		{"month 13", `{"flights":[{"OPERA":"Sky Airline","TIPOVUELO":"N","MES":13}]}`, "Invalid MES (must be 1..12)"},
		{"month 0", `{"flights":[{"OPERA":"Sky Airline","TIPOVUELO":"N","MES":0}]}`, "Invalid MES (must be 1..12)"},
		{"all fields", `{"flights":[{"OPERA":"X","TIPOVUELO":"O","MES":13}]}`,
			"Invalid OPERA, Invalid TIPOVUELO (must be 'N' or 'I'), Invalid MES (must be 1..12)"},
		{"second flight invalid", `{"flights":[{"OPERA":"Sky Airline","TIPOVUELO":"N","MES":3},{"OPERA":"Sky Airline","TIPOVUELO":"N","MES":99}]}`,
			"Invalid MES (must be 1..12)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(t, h, "/predict", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400", rr.Code)
			}
			if d := detail(t, rr); d != tc.wantDetail {
				t.Errorf("detail: got %q, want %q", d, tc.wantDetail)
			}
		})
	}
}

func TestPredict_MalformedJSON(t *testing.T) {
	h := api.New(trainedService(t), api.Options{})
	for _, body := range []string{`{"flights":`, `{"flights":[{"MES":"seven"}]}`, ``} {
		if rr := post(t, h, "/predict", body); rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: got %d, want 400", body, rr.Code)
		}
	}
}

func TestPredict_MethodNotAllowed(t *testing.T) {
	h := api.New(trainedService(t), api.Options{})
	if rr := get(t, h, "/predict"); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /predict: got %d, want 405", rr.Code)
	}
}

// --- middleware -------------------------------------------------------------

func TestRequestID(t *testing.T) {
	h := api.New(predict.New(predict.Options{}), api.Options{})

	rr := get(t, h, "/health")
	if id := rr.Header().Get(api.HeaderRequestID); len(id) != 36 {
		t.Errorf("generated request id: got %q, want a UUID", id)
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(api.HeaderRequestID, "abc-123")
	h.ServeHTTP(rr, req)
	if id := rr.Header().Get(api.HeaderRequestID); id != "abc-123" {
		t.Errorf("propagated request id: got %q, want abc-123", id)
	}
}

func TestAuth(t *testing.T) {
	h := api.New(trainedService(t), api.Options{AuthMode: "apikey", AuthKey: "secret"})

	if rr := post(t, h, "/predict", validBody); rr.Code != http.StatusUnauthorized {
		t.Errorf("no key: got %d, want 401", rr.Code)
	}
	if rr := get(t, h, "/health"); rr.Code != http.StatusOK {
		t.Errorf("/health without key: got %d, want 200", rr.Code)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(validBody))
	req.Header.Set("x-api-key", "secret")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("with key: got %d, want 200", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := api.New(trainedService(t), api.Options{RateLimit: 0.001, Burst: 1})

	if rr := post(t, h, "/predict", validBody); rr.Code != http.StatusOK {
		t.Fatalf("first request: got %d, want 200", rr.Code)
	}
	rr := post(t, h, "/predict", validBody)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("second request: got %d, want 429", rr.Code)
	}
	// Other routes are not limited.
	if rr := get(t, h, "/api/v1/stats"); rr.Code != http.StatusOK {
		t.Errorf("/api/v1/stats: got %d, want 200", rr.Code)
	}
}

// --- /api/v1/* --------------------------------------------------------------

func TestModel(t *testing.T) {
	h := api.New(trainedService(t), api.Options{})
	rr := get(t, h, "/api/v1/model")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var info predict.ModelInfo
	decode(t, rr, &info)
	if !info.Trained || len(info.Coefficients) != 10 || len(info.Operators) != 3 {
		t.Errorf("model info: got %+v", info)
	}
}

func TestStats(t *testing.T) {
	h := api.New(trainedService(t), api.Options{})
	post(t, h, "/predict", validBody)
	post(t, h, "/predict", `{"flights":[]}`)

	var st predict.Stats
	decode(t, get(t, h, "/api/v1/stats"), &st)
	if st.Requests != 2 || st.Flights != 3 || st.Delays != 2 || st.Empty != 1 {
		t.Errorf("stats: got %+v", st)
	}
}

func TestDiagnostics_Untrained(t *testing.T) {
	h := api.New(predict.New(predict.Options{}), api.Options{})
	var hints []api.DiagnosticHint
	decode(t, get(t, h, "/api/v1/diagnostics"), &hints)
	if len(hints) != 1 || hints[0].Key != "untrained" {
		t.Errorf("hints: got %+v", hints)
	}
}

func TestAlerts(t *testing.T) {
	svc := predict.New(predict.Options{})

	var empty []interface{}
	decode(t, get(t, api.New(svc, api.Options{}), "/api/v1/alerts"), &empty)
	if len(empty) != 0 {
		t.Errorf("alerts without engine: got %v", empty)
	}

	eng := alerts.New(config.AlertsConfig{Rules: []config.AlertRule{{Name: "untrained", Condition: "trained == false"}}})
	eng.Evaluate(svc.Stats())
	var got []alerts.Alert
	decode(t, get(t, api.New(svc, api.Options{Alerts: eng}), "/api/v1/alerts"), &got)
	if len(got) != 1 || got[0].RuleName != "untrained" {
		t.Errorf("alerts: got %+v", got)
	}
}

type fakeHistory struct {
	limit int
	err   error
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]store.Record, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []store.Record{{ID: 1, Operator: "Sky Airline", FlightType: "N", Month: 4, CreatedAt: time.Unix(0, 0)}}, nil
}

func TestHistory(t *testing.T) {
	svc := predict.New(predict.Options{})

	if rr := get(t, api.New(svc, api.Options{}), "/api/v1/history"); rr.Code != http.StatusNotFound {
		t.Errorf("without storage: got %d, want 404", rr.Code)
	}

	hist := &fakeHistory{}
	h := api.New(svc, api.Options{History: hist})

	var recs []store.Record
	decode(t, get(t, h, "/api/v1/history"), &recs)
	if len(recs) != 1 || hist.limit != 50 {
		t.Errorf("default: got %d records, limit %d", len(recs), hist.limit)
	}

	get(t, h, "/api/v1/history?limit=5000")
	if hist.limit != 1000 {
		t.Errorf("limit cap: got %d, want 1000", hist.limit)
	}

	if rr := get(t, h, "/api/v1/history?limit=-1"); rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit: got %d, want 400", rr.Code)
	}

	hist.err = errors.New("db locked")
	if rr := get(t, h, "/api/v1/history"); rr.Code != http.StatusInternalServerError {
		t.Errorf("reader error: got %d, want 500", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := api.New(trainedService(t), api.Options{})
	post(t, h, "/predict", validBody)

	rr := get(t, h, "/metrics")
	body, _ := io.ReadAll(rr.Body)
	for _, want := range []string{
		`delaycast_requests_total{outcome="ok"} 1`,
		`delaycast_flights_total 3`,
		`delaycast_model_trained 1`,
		`delaycast_http_request_duration_seconds_count{code="200",path="/predict"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestStreamMounted(t *testing.T) {
	called := false
	stream := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { called = true })
	h := api.New(predict.New(predict.Options{}), api.Options{Stream: stream})
	get(t, h, "/ws/stream")
	if !called {
		t.Error("stream handler not mounted at /ws/stream")
	}
}
