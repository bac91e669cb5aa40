// Package client talks to a running delaycast server over HTTP.
//
// It wraps POST /predict, GET /api/v1/model and GET /health, and scrapes
// GET /metrics into a Status summary using the Prometheus text parser.
// Authentication headers are injected by a RoundTripper so every call
// carries the configured API key.
package client
