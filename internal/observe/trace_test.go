package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracing installs an in-memory tracer provider as the global one for
// the duration of the test.
func setupTracing(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })

	return exp
}

func TestCorrelationID(t *testing.T) {
	setupTracing(t)

	t.Run("no span", func(t *testing.T) {
		if got := CorrelationID(context.Background()); got != "" {
			t.Errorf("CorrelationID = %q, want empty", got)
		}
	})

	t.Run("inside span", func(t *testing.T) {
		ctx, span := StartSpan(context.Background(), "analyze")
		defer span.End()

		cid := CorrelationID(ctx)
		if len(cid) != 32 {
			t.Fatalf("CorrelationID length = %d, want 32 hex chars", len(cid))
		}
		if strings.Trim(cid, "0123456789abcdef") != "" {
			t.Errorf("CorrelationID = %q, not lowercase hex", cid)
		}
	})

	t.Run("distinct per trace", func(t *testing.T) {
		seen := make(map[string]struct{}, 50)
		for range 50 {
			ctx, span := StartSpan(context.Background(), "analyze")
			cid := CorrelationID(ctx)
			span.End()
			if _, dup := seen[cid]; dup {
				t.Fatalf("duplicate correlation ID %s", cid)
			}
			seen[cid] = struct{}{}
		}
	})
}

func TestStartSpan_RecordsNamedSpan(t *testing.T) {
	exp := setupTracing(t)

	_, span := StartSpan(context.Background(), "handle-message")
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "handle-message" {
		t.Errorf("span name = %q, want handle-message", spans[0].Name)
	}
}

func TestLogger_AttachesTraceInfo(t *testing.T) {
	setupTracing(t)

	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	ctx, span := StartSpan(context.Background(), "log-check")
	defer span.End()

	Logger(ctx).Info("inside span")
	if out := buf.String(); !strings.Contains(out, "trace_id=") || !strings.Contains(out, "span_id=") {
		t.Errorf("log output missing trace info: %s", out)
	}

	buf.Reset()
	Logger(context.Background()).Info("outside span")
	if out := buf.String(); strings.Contains(out, "trace_id") {
		t.Errorf("log output should carry no trace info without a span: %s", out)
	}
}

func TestTracer_NotNil(t *testing.T) {
	if Tracer() == nil {
		t.Fatal("Tracer() returned nil")
	}
}
