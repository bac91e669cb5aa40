package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// passHandler answers 200 "ok".
var passHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func call(t *testing.T, h http.Handler, path, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		key      string
		path     string
		sendKey  string
		wantCode int
	}{
		{"mode none passes through", "none", "secret", "/predict", "", http.StatusOK},
		{"empty key passes through", "apikey", "", "/predict", "", http.StatusOK},
		{"correct key", "apikey", "secret", "/predict", "secret", http.StatusOK},
		{"missing key", "apikey", "secret", "/predict", "", http.StatusUnauthorized},
		{"wrong key", "apikey", "secret", "/predict", "nope", http.StatusUnauthorized},
		{"prefix of key", "apikey", "secret", "/predict", "secre", http.StatusUnauthorized},
		{"health stays open", "apikey", "secret", "/health", "", http.StatusOK},
		{"metrics stay open", "apikey", "secret", "/metrics", "", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := APIKeyMiddleware(tc.mode, "x-api-key", tc.key)(passHandler)
			rec := call(t, h, tc.path, "x-api-key", tc.sendKey)
			if rec.Code != tc.wantCode {
				t.Errorf("status: got %d, want %d", rec.Code, tc.wantCode)
			}
			if tc.wantCode == http.StatusUnauthorized {
				if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type: got %q", ct)
				}
			}
		})
	}
}

func TestAPIKeyMiddleware_CustomHeader(t *testing.T) {
	h := APIKeyMiddleware("apikey", "x-delay-key", "secret")(passHandler)

	if rec := call(t, h, "/predict", "x-api-key", "secret"); rec.Code != http.StatusUnauthorized {
		t.Errorf("default header accepted: got %d, want 401", rec.Code)
	}
	if rec := call(t, h, "/predict", "X-Delay-Key", "secret"); rec.Code != http.StatusOK {
		t.Errorf("custom header (canonicalised): got %d, want 200", rec.Code)
	}
}
