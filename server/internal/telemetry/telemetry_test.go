package telemetry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func restoreProvider(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestInit_None(t *testing.T) {
	restoreProvider(t)
	prev := otel.GetTracerProvider()

	for _, exp := range []string{"", ExporterNone} {
		shutdown, err := Init(context.Background(), Options{Exporter: exp})
		if err != nil {
			t.Fatalf("Init(%q): %v", exp, err)
		}
		if otel.GetTracerProvider() != prev {
			t.Errorf("Init(%q) replaced the global provider", exp)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	}
}

func TestInit_StdoutExportsSpans(t *testing.T) {
	restoreProvider(t)
	var buf bytes.Buffer

	shutdown, err := Init(context.Background(), Options{
		ServiceName: "delaycast",
		Exporter:    ExporterStdout,
		Writer:      &buf,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "predict.flights")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"Name":"predict.flights"`) {
		t.Errorf("exported spans missing predict.flights: %s", out)
	}
	if !strings.Contains(out, "delaycast") {
		t.Errorf("exported spans missing service name: %s", out)
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Options{Exporter: "zipkin"})
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("Init(zipkin): got %v, want ErrUnknownExporter", err)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tc := range tests {
		if got := sampler(tc.ratio).Description(); !strings.HasPrefix(got, tc.want) {
			t.Errorf("sampler(%v) = %q, want prefix %q", tc.ratio, got, tc.want)
		}
	}
}
