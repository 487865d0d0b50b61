package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	if m.ReqCounter == nil {
		t.Error("ReqCounter is nil")
	}
	if m.InputTokens == nil {
		t.Error("InputTokens is nil")
	}
	if m.OutputTokens == nil {
		t.Error("OutputTokens is nil")
	}
	if m.RequestDuration == nil {
		t.Error("RequestDuration is nil")
	}
	if m.ActiveRequests == nil {
		t.Error("ActiveRequests is nil")
	}
	if m.CacheHits == nil {
		t.Error("CacheHits is nil")
	}
	if m.CacheMisses == nil {
		t.Error("CacheMisses is nil")
	}
	if m.RateLimitRejects == nil {
		t.Error("RateLimitRejects is nil")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one metric family")
	}
}

func TestNewMetricsIncrement(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	m.ReqCounter.WithLabelValues("modelX", "200").Inc()
	m.InputTokens.WithLabelValues("alice", "modelX").Add(12)
	m.OutputTokens.WithLabelValues("alice", "modelX").Add(34)
	m.CacheHits.WithLabelValues("token").Inc()
	m.CacheMisses.WithLabelValues("token").Inc()
	m.ActiveRequests.Set(5)
	m.RequestDuration.WithLabelValues("modelX").Observe(0.123)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather after increment: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	want := []string{
		"burgonet_req_counter",
		"burgonet_input_tokens",
		"burgonet_output_tokens",
		"burgonet_cache_hits_total",
		"burgonet_cache_misses_total",
		"burgonet_active_requests",
		"burgonet_request_duration_seconds",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("missing metric %q in gathered families", name)
		}
	}
}

// SetupTracing is not unit-tested because it requires a gRPC connection
// to an OTLP collector, which is integration-test territory.
