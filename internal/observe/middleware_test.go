package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// serveThrough runs one request through the middleware-wrapped handler and
// returns the recorder.
func serveThrough(t *testing.T, m *Metrics, inner http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	Middleware(m)(inner).ServeHTTP(rec, req)
	return rec
}

func newMiddlewareMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func TestMiddleware_CorrelationID(t *testing.T) {
	setupTracing(t)
	m, _ := newMiddlewareMetrics(t)

	var inHandler string
	rec := serveThrough(t, m, func(w http.ResponseWriter, r *http.Request) {
		inHandler = CorrelationID(r.Context())
	}, httptest.NewRequest("GET", "/api/sessions", nil))

	if len(inHandler) != 32 {
		t.Fatalf("correlation ID in handler = %q, want 32 hex chars", inHandler)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != inHandler {
		t.Errorf("X-Correlation-ID header = %q, want %q", got, inHandler)
	}
}

func TestMiddleware_SpanPerRequest(t *testing.T) {
	exp := setupTracing(t)
	m, _ := newMiddlewareMetrics(t)

	serveThrough(t, m, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, httptest.NewRequest("GET", "/api/sessions", nil))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "HTTP GET /api/sessions" {
		t.Errorf("span name = %q", spans[0].Name)
	}

	var status int64
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" {
			status = a.Value.AsInt64()
		}
	}
	if status != http.StatusNotFound {
		t.Errorf("span status attribute = %d, want 404", status)
	}
}

func TestMiddleware_RecordsRequestDuration(t *testing.T) {
	setupTracing(t)
	m, reader := newMiddlewareMetrics(t)

	serveThrough(t, m, func(w http.ResponseWriter, r *http.Request) {
	}, httptest.NewRequest("GET", "/api/dashboard", nil))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	met := findMetric(rm, "mindmate.http.request.duration")
	if met == nil {
		t.Fatal("request duration metric not recorded")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) == 0 {
		t.Fatal("metric is not a histogram with data points")
	}

	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("sample count = %d, want 1", dp.Count)
	}
	want := map[string]string{"method": "GET", "path": "/api/dashboard", "status": "200"}
	for _, kv := range dp.Attributes.ToSlice() {
		if expected, tracked := want[string(kv.Key)]; tracked {
			if kv.Value.AsString() != expected {
				t.Errorf("attribute %s = %q, want %q", kv.Key, kv.Value.AsString(), expected)
			}
			delete(want, string(kv.Key))
		}
	}
	for k := range want {
		t.Errorf("missing attribute %s", k)
	}
}

func TestMiddleware_WriterSupportsHijack(t *testing.T) {
	setupTracing(t)
	m, _ := newMiddlewareMetrics(t)

	// Connection upgrades (the chat WebSocket) reach the hijacker through
	// the wrapped writer's Unwrap chain.
	hijackErr := make(chan error, 1)
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, bufrw, err := http.NewResponseController(w).Hijack()
		hijackErr <- err
		if err != nil {
			return
		}
		bufrw.WriteString("HTTP/1.1 204 No Content\r\n\r\n")
		bufrw.Flush()
		conn.Close()
	}))

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err == nil {
		resp.Body.Close()
	}
	if err := <-hijackErr; err != nil {
		t.Fatalf("Hijack through the middleware writer: %v", err)
	}
}

func TestMiddleware_JoinsIncomingTrace(t *testing.T) {
	setupTracing(t)
	m, _ := newMiddlewareMetrics(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest("GET", "/api/dashboard", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")

	var inHandler string
	rec := serveThrough(t, m, func(w http.ResponseWriter, r *http.Request) {
		inHandler = CorrelationID(r.Context())
	}, req)

	if inHandler != traceID {
		t.Errorf("correlation ID = %q, want the incoming trace ID", inHandler)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID header = %q, want %q", got, traceID)
	}
}
