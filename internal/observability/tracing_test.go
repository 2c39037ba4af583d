package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/signalsfoundry/rf-link-engine/internal/logging"
)

func TestTracingConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("LINKENGINE_TRACING_ENABLED", "")
	t.Setenv("LINKENGINE_TRACING_EXPORTER", "")
	t.Setenv("LINKENGINE_TRACING_SERVICE_NAME", "")
	t.Setenv("LINKENGINE_TRACING_SAMPLE_RATIO", "")

	cfg := TracingConfigFromEnv()
	if cfg.Enabled {
		t.Fatalf("tracing should default to disabled")
	}
	if cfg.Exporter != "stdout" {
		t.Fatalf("Exporter = %q, want stdout", cfg.Exporter)
	}
	if cfg.ServiceName != "rf-link-engine" {
		t.Fatalf("ServiceName = %q, want rf-link-engine", cfg.ServiceName)
	}
	if cfg.SampleRatio != 1.0 {
		t.Fatalf("SampleRatio = %v, want 1", cfg.SampleRatio)
	}
}

func TestTracingConfigFromEnvIgnoresBadRatio(t *testing.T) {
	t.Setenv("LINKENGINE_TRACING_ENABLED", "TRUE")
	t.Setenv("LINKENGINE_TRACING_SAMPLE_RATIO", "7")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled {
		t.Fatalf("expected tracing enabled")
	}
	if cfg.SampleRatio != 1.0 {
		t.Fatalf("SampleRatio = %v, want fallback 1", cfg.SampleRatio)
	}
}

func TestInitTracingDisabledReturnsNoopShutdown(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, ok := otel.GetTracerProvider().(noop.TracerProvider); !ok {
		t.Fatalf("tracer provider = %T, want noop", otel.GetTracerProvider())
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}

func TestResourceAttributesDescribeEngine(t *testing.T) {
	cfg := TracingConfig{ServiceName: "rf-link-engine"}.WithEngine("/etc/linkengine/leo.yaml", 8)
	set := attribute.NewSet(resourceAttributes(cfg)...)

	if v, ok := set.Value(AttrScenario); !ok || v.AsString() != "leo.yaml" {
		t.Fatalf("scenario attribute = %v (present %v), want leo.yaml", v.AsString(), ok)
	}
	if v, ok := set.Value(AttrWorkers); !ok || v.AsInt64() != 8 {
		t.Fatalf("workers attribute = %v (present %v), want 8", v.AsInt64(), ok)
	}
	if v, _ := set.Value("service.name"); v.AsString() != "rf-link-engine" {
		t.Fatalf("service.name = %q", v.AsString())
	}
}

func TestResourceAttributesOmitUnsetEngineFields(t *testing.T) {
	set := attribute.NewSet(resourceAttributes(TracingConfig{ServiceName: "svc"})...)
	if set.HasValue(AttrScenario) || set.HasValue(AttrWorkers) {
		t.Fatalf("unexpected engine attributes: %v", set.ToSlice())
	}
}
