// Package telemetry installs the OpenTelemetry TracerProvider used by the
// spans that predict opens around every batch.
//
// Exporters: none (spans are dropped), stdout (JSON to a writer, for local
// debugging) and otlp (gRPC to a collector such as Jaeger or Tempo).
package telemetry
