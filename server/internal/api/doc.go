// Package api implements the HTTP surface of the prediction service.
//
// New(svc, opts) returns an http.Handler that serves:
//
//	GET  /health                liveness check: {"status":"OK"}
//	POST /predict               {"flights":[{OPERA,TIPOVUELO,MES}]} → {"predict":[0|1...]}
//	GET  /api/v1/model          schema, coefficients, catalog, training report
//	GET  /api/v1/stats          service counters and rates
//	GET  /api/v1/diagnostics    plain-language hints derived from the stats
//	GET  /api/v1/alerts         firing and recently resolved alerts
//	GET  /api/v1/history        recent predictions (?limit=n); 404 without storage
//	GET  /metrics               Prometheus exposition
//	GET  /ws/stream             live stats WebSocket, when a stream handler is set
//
// All JSON endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for unsupported methods
//   - Report errors as {"detail": "..."}
//
// Every request gets an X-Request-ID, passes API-key auth, and has its
// latency observed. POST /predict is additionally rate limited.
// JSON types are defined in types.go. No external HTTP framework is used.
package api
