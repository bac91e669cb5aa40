// Package auth provides API key authentication for the HTTP API.
//
// APIKeyMiddleware wraps an http.Handler and rejects requests whose key
// header is missing or wrong with 401. Liveness and metrics endpoints stay open.
package auth
