package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewControlCollector(reg)
	if err != nil {
		t.Fatalf("NewControlCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/riderunner.control.v1.GameControl/Start"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("GameControl", "Start", "OK")); got != 1 {
		t.Fatalf("riderunner_rpc_requests_total = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "riderunner_rpc_duration_seconds", map[string]string{
		"service": "GameControl",
		"method":  "Start",
	}); count != 1 {
		t.Fatalf("riderunner_rpc_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewControlCollector(reg)
	if err != nil {
		t.Fatalf("NewControlCollector: %v", err)
	}

	info := &grpc.UnaryServerInfo{FullMethod: "/riderunner.control.v1.GameControl/SetPlacementMode"}
	_, _ = collector.UnaryServerInterceptor()(context.Background(), struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.InvalidArgument, "boom")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("GameControl", "SetPlacementMode", "InvalidArgument")); got != 1 {
		t.Fatalf("error label = %v, want 1", got)
	}
}

func TestObserveHTTP(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewControlCollector(reg)
	if err != nil {
		t.Fatalf("NewControlCollector: %v", err)
	}
	collector.ObserveHTTP("/api/v1/zones", http.MethodPost, http.StatusUnprocessableEntity, 3*time.Millisecond)
	collector.ObserveHTTP("", http.MethodGet, http.StatusNotFound, time.Millisecond)

	if got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("/api/v1/zones", "POST", "422")); got != 1 {
		t.Fatalf("zones counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("unmatched", "GET", "404")); got != 1 {
		t.Fatalf("unmatched counter = %v, want 1", got)
	}
}

func TestGameCollectorStateIsExclusive(t *testing.T) {
	collector, err := NewGameCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewGameCollector: %v", err)
	}
	collector.SetGameState("playing")
	collector.SetGameState("paused")

	for _, s := range GameStates {
		want := 0.0
		if s == "paused" {
			want = 1
		}
		if got := testutil.ToFloat64(collector.State.WithLabelValues(s)); got != want {
			t.Fatalf("state %q = %v, want %v", s, got, want)
		}
	}
}

func TestGameCollectorRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewGameCollector(reg)
	if err != nil {
		t.Fatalf("NewGameCollector: %v", err)
	}
	collector.SetCountdown(87.5)
	collector.SetScore(3)
	collector.SetActiveRiders(12)
	collector.SetFatigue(0.97)
	collector.RecordPickup("high")
	collector.RecordDelivery("high", 86.67)
	collector.RecordGameOver()
	collector.RecordStalePlacement()
	collector.RecordSpeedWarning()
	collector.ObservePlacement("random", 20*time.Millisecond, 4)

	checks := map[string]float64{
		"countdown": testutil.ToFloat64(collector.Countdown),
		"score":     testutil.ToFloat64(collector.Score),
		"riders":    testutil.ToFloat64(collector.ActiveRiders),
		"pickups":   testutil.ToFloat64(collector.Pickups.WithLabelValues("high")),
		"delivered": testutil.ToFloat64(collector.Deliveries.WithLabelValues("high")),
		"stale":     testutil.ToFloat64(collector.StalePlacements),
		"placed":    testutil.ToFloat64(collector.PlacedRiders.WithLabelValues("random")),
	}
	want := map[string]float64{"countdown": 87.5, "score": 3, "riders": 12, "pickups": 1, "delivered": 1, "stale": 1, "placed": 4}
	for k, w := range want {
		if checks[k] != w {
			t.Fatalf("%s = %v, want %v", k, checks[k], w)
		}
	}
	if count := histogramSampleCount(t, reg, "riderunner_placement_duration_seconds", map[string]string{"mode": "random"}); count != 1 {
		t.Fatalf("placement histogram count = %d, want 1", count)
	}
}

func TestNilGameCollectorIsSafe(t *testing.T) {
	var c *GameCollector
	c.SetGameState("ready")
	c.SetCountdown(1)
	c.RecordDelivery("low", 10)
	c.ObservePlacement("smart", time.Second, 1)
}

func TestCollectorsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewGameCollector(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewGameCollector(reg)
	if err != nil {
		t.Fatalf("second registration should reuse collectors: %v", err)
	}
	first.SetScore(7)
	if got := testutil.ToFloat64(second.Score); got != 7 {
		t.Fatalf("shared score = %v, want 7", got)
	}
}

func TestMetricsHandlerExposesGameGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewGameCollector(reg)
	if err != nil {
		t.Fatalf("NewGameCollector: %v", err)
	}
	collector.SetCountdown(42)
	collector.SetGameState("playing")

	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{"riderunner_countdown_seconds 42", `riderunner_game_state{state="playing"} 1`} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output:\n%s", metric, body)
		}
	}
}

func TestSplitMethod(t *testing.T) {
	cases := map[string][2]string{
		"/riderunner.control.v1.GameControl/GetState": {"GameControl", "GetState"},
		"":        {"unknown", "unknown"},
		"/nope":   {"unknown", "unknown"},
		"/svc/":   {"svc", "unknown"},
	}
	for in, want := range cases {
		svc, m := SplitMethod(in)
		if svc != want[0] || m != want[1] {
			t.Fatalf("SplitMethod(%q) = %q,%q want %q,%q", in, svc, m, want[0], want[1])
		}
	}
}

func TestInitTracingStdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "riderunner-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "placement.select")
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	if !strings.Contains(buf.String(), "placement.select") {
		t.Fatalf("expected span name in exporter output, got %q", buf.String())
	}

	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: false}, nil); err != nil {
		t.Fatalf("disabled InitTracing: %v", err)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
