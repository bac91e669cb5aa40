package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/delaycast/delaycast/server/internal/alerts"
	"github.com/delaycast/delaycast/server/internal/auth"
	"github.com/delaycast/delaycast/server/internal/predict"
	"github.com/delaycast/delaycast/server/internal/store"
)

const (
	maxBodyBytes        = 1 << 20
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// AlertSource lists current alerts. *alerts.Engine satisfies it.
type AlertSource interface {
	Active() []*alerts.Alert
}

// HistoryReader reads served predictions. *store.History satisfies it.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]store.Record, error)
}

// Options wire the optional collaborators of the handler.
type Options struct {
	Alerts  AlertSource
	History HistoryReader

	// Stream is mounted at /ws/stream when set.
	Stream http.Handler

	AuthMode   string
	AuthHeader string
	AuthKey    string

	// RateLimit is requests per second on POST /predict; 0 disables it.
	RateLimit float64
	Burst     int
}

// Handler is the HTTP handler for all endpoints.
type Handler struct {
	svc     *predict.Service
	alerts  AlertSource
	history HistoryReader
	mux     *http.ServeMux
	chain   http.Handler
}

// New creates a Handler wired to svc and registers all routes.
func New(svc *predict.Service, opts Options) http.Handler {
	h := &Handler{
		svc:     svc,
		alerts:  opts.Alerts,
		history: opts.History,
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("/health", h.health)
	h.mux.Handle("/predict", rateLimit(opts.RateLimit, opts.Burst)(http.HandlerFunc(h.predict)))
	h.mux.HandleFunc("/api/v1/model", h.model)
	h.mux.HandleFunc("/api/v1/stats", h.stats)
	h.mux.HandleFunc("/api/v1/diagnostics", h.diagnostics)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/history", h.listHistory)
	h.mux.Handle("/metrics", svc.Metrics().Handler())
	if opts.Stream != nil {
		h.mux.Handle("/ws/stream", opts.Stream)
	}

	header := opts.AuthHeader
	if header == "" {
		header = "x-api-key"
	}
	h.chain = requestID(instrument(svc.Metrics(), auth.APIKeyMiddleware(opts.AuthMode, header, opts.AuthKey)(h.mux)))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.chain.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{Status: "OK"})
}

// predict handles POST /predict.
func (h *Handler) predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req PredictRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	labels, err := h.svc.PredictFlights(r.Context(), req.Flights)
	var rej *predict.RejectedError
	switch {
	case errors.Is(err, predict.ErrEmptyBatch):
		jsonErr(w, http.StatusBadRequest, "Empty 'flights' payload")
	case errors.As(err, &rej):
		jsonErr(w, http.StatusBadRequest, rej.Error())
	case err != nil:
		jsonErr(w, http.StatusInternalServerError, err.Error())
	default:
		jsonResp(w, http.StatusOK, PredictResponse{Predict: labels})
	}
}

// model returns GET /api/v1/model.
func (h *Handler) model(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.svc.ModelInfo())
}

// stats returns GET /api/v1/stats.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.svc.Stats())
}

// diagnostics returns GET /api/v1/diagnostics.
func (h *Handler) diagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, computeDiagnostics(h.svc.Stats(), h.svc.ModelInfo()))
}

// listAlerts returns GET /api/v1/alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []struct{}{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// listHistory returns GET /api/v1/history?limit=n.
func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.history == nil {
		jsonErr(w, http.StatusNotFound, "prediction history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	recs, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, recs)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Detail: msg})
}
