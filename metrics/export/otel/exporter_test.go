package otel

import (
	"context"
	"sync"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type mutableSource struct {
	mu       sync.RWMutex
	counters map[goSession.MetricID]uint64
	latency  []uint64
	dropped  uint64
}

func (s *mutableSource) MetricsSnapshot() goSession.MetricsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := goSession.MetricsSnapshot{
		Counters:   make(map[goSession.MetricID]uint64, len(s.counters)),
		Histograms: map[goSession.MetricID][]uint64{},
	}
	for k, v := range s.counters {
		out.Counters[k] = v
	}
	if s.latency != nil {
		out.Histograms[goSession.MetricRefreshLatency] = append([]uint64(nil), s.latency...)
	}
	return out
}

func (s *mutableSource) AuditDropped() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

func newMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	return rm
}

// point returns the value of the named instrument's data point whose key
// attribute equals value. An empty key matches the unlabeled point.
func point(rm metricdata.ResourceMetrics, name, key, value string) (int64, bool) {
	match := func(set attribute.Set) bool {
		if key == "" {
			return set.Len() == 0
		}
		v, ok := set.Value(attribute.Key(key))
		return ok && v.AsString() == value
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					if match(dp.Attributes) {
						return dp.Value, true
					}
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					if match(dp.Attributes) {
						return dp.Value, true
					}
				}
			}
		}
	}
	return 0, false
}

func TestExporterLabelsFamilies(t *testing.T) {
	reader, provider := newMeter()
	src := &mutableSource{
		counters: map[goSession.MetricID]uint64{
			goSession.MetricRefreshSuccess:         3,
			goSession.MetricRefreshDiscarded:       1,
			goSession.MetricRequestUnauthenticated: 5,
			goSession.MetricStorageFailure:         2,
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(provider.Meter("gosession-test"), src)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()

	rm := collect(t, reader)
	tests := []struct {
		name, key, value string
		want             int64
	}{
		{"gosession_refreshes_total", "outcome", "renewed", 3},
		{"gosession_refreshes_total", "outcome", "invalidated", 0},
		{"gosession_refreshes_total", "outcome", "discarded", 1},
		{"gosession_requests_total", "auth", "passthrough", 5},
		{"gosession_requests_total", "auth", "bearer", 0},
		{"gosession_storage_failures_total", "", "", 2},
		{"gosession_audit_dropped_total", "", "", 1},
	}
	for _, tc := range tests {
		got, ok := point(rm, tc.name, tc.key, tc.value)
		if !ok || got != tc.want {
			t.Fatalf("%s{%s=%q}: expected %d, got %d (found=%v)", tc.name, tc.key, tc.value, tc.want, got, ok)
		}
	}
	if _, ok := point(rm, "gosession_refresh_latency_seconds_count", "", ""); ok {
		t.Fatal("expected no latency points while histograms are disabled")
	}
}

func TestExporterReportsLatencyBuckets(t *testing.T) {
	reader, provider := newMeter()
	src := &mutableSource{
		counters: map[goSession.MetricID]uint64{},
		latency:  []uint64{1, 1, 1, 1, 1, 1, 1, 1},
	}

	exp, err := NewExporterFromSource(provider.Meter("gosession-test"), src)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	defer exp.Close()

	rm := collect(t, reader)
	if v, ok := point(rm, "gosession_refresh_latency_seconds_bucket", "le", "0.1"); !ok || v != 3 {
		t.Fatalf("expected le=0.1 bucket 3, got %d (found=%v)", v, ok)
	}
	if v, ok := point(rm, "gosession_refresh_latency_seconds_bucket", "le", "+Inf"); !ok || v != 8 {
		t.Fatalf("expected +Inf bucket 8, got %d (found=%v)", v, ok)
	}
	if v, ok := point(rm, "gosession_refresh_latency_seconds_count", "", ""); !ok || v != 8 {
		t.Fatalf("expected count 8, got %d (found=%v)", v, ok)
	}
}

func TestExporterObservesNothingWhenDisabled(t *testing.T) {
	reader, provider := newMeter()
	exp, err := NewExporterFromSource(provider.Meter("gosession-test"), &mutableSource{})
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	defer exp.Close()

	rm := collect(t, reader)
	if _, ok := point(rm, "gosession_logouts_total", "", ""); ok {
		t.Fatal("expected no data points for a disabled client")
	}
}

func TestExporterFromClient(t *testing.T) {
	client, err := goSession.New().
		WithBaseURL("http://127.0.0.1:1/api/v1/").
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer client.Close()
	client.Logout(context.Background())

	reader, provider := newMeter()
	exp, err := NewExporter(provider.Meter("gosession-test"), client)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	defer exp.Close()

	if v, ok := point(collect(t, reader), "gosession_logouts_total", "", ""); !ok || v != 1 {
		t.Fatalf("expected one logout, got %d (found=%v)", v, ok)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newMeter()
	meter := provider.Meter("gosession-test")

	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil client, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &mutableSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newMeter()
	src := &mutableSource{
		counters: map[goSession.MetricID]uint64{goSession.MetricRequestAuthenticated: 1},
		latency:  []uint64{1, 0, 0, 0, 0, 0, 0, 0},
	}

	exp, err := NewExporterFromSource(provider.Meter("gosession-test"), src)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[goSession.MetricRequestAuthenticated] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
