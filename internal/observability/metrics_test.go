package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObservePassRecordsOutcomeAndDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}

	collector.ObservePass(OutcomeCommitted, 3*time.Millisecond)
	collector.ObservePass(OutcomeCommitted, 4*time.Millisecond)
	collector.ObservePass(OutcomeStale, time.Millisecond)

	if got := testutil.ToFloat64(collector.Passes.WithLabelValues(OutcomeCommitted)); got != 2 {
		t.Fatalf("linkengine_passes_total{committed} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Passes.WithLabelValues(OutcomeStale)); got != 1 {
		t.Fatalf("linkengine_passes_total{stale} = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "linkengine_pass_duration_seconds", nil); count != 3 {
		t.Fatalf("linkengine_pass_duration_seconds sample_count = %d, want 3", count)
	}
}

func TestObserveStageUsesStageLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}

	collector.ObserveStage("pathloss", time.Millisecond)
	collector.ObserveStage("pathloss", time.Millisecond)
	collector.ObserveStage("bitrate", time.Millisecond)

	if count := histogramSampleCount(t, reg, "linkengine_stage_duration_seconds", map[string]string{"stage": "pathloss"}); count != 2 {
		t.Fatalf("pathloss sample_count = %d, want 2", count)
	}
	if count := histogramSampleCount(t, reg, "linkengine_stage_duration_seconds", map[string]string{"stage": "bitrate"}); count != 1 {
		t.Fatalf("bitrate sample_count = %d, want 1", count)
	}
}

func TestNewEngineCollectorReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}
	second, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("second NewEngineCollector: %v", err)
	}

	first.ObservePass(OutcomeFailed, time.Millisecond)
	if got := testutil.ToFloat64(second.Passes.WithLabelValues(OutcomeFailed)); got != 1 {
		t.Fatalf("expected collectors to share the registered counter, got %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *EngineCollector
	c.ObservePass(OutcomeCommitted, time.Second)
	c.ObserveStage("x", time.Second)
	c.SetPassCounts(1, 2, 3)
	if c.Gatherer() != nil {
		t.Fatalf("nil collector should have nil gatherer")
	}
}

func TestMetricsHandlerExposesPassGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}
	collector.SetPassCounts(12, 34, 5)
	collector.ObservePass(OutcomeCommitted, time.Millisecond)
	collector.ObserveStage("noise", time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"linkengine_passes_total",
		"linkengine_pass_duration_seconds",
		"linkengine_stage_duration_seconds",
		"linkengine_candidates 34",
		"linkengine_valid_node_pairs 12",
		"linkengine_accepted_links 5",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output:\n%s", metric, body)
		}
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
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
