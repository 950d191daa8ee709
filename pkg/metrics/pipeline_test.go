package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPipelineExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipeline(reg)

	m.ObserveGeneration("enriched", "success", 1500*time.Millisecond)
	m.IncEnrichmentFallback("travel", "partial")
	m.IncEnrichmentFallback("travel", "partial")
	m.IncWebhookEvent("user.created", "")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "personacraft_generations_total", "path", "enriched"); err != nil {
		t.Fatalf("fetch generations: %v", err)
	} else if got != 1 {
		t.Fatalf("expected generations=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "personacraft_enrichment_fallbacks_total", "category", "travel"); err != nil {
		t.Fatalf("fetch fallbacks: %v", err)
	} else if got != 2 {
		t.Fatalf("expected fallbacks=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "personacraft_webhook_events_total", "outcome", "unknown"); err != nil {
		t.Fatalf("fetch webhook events: %v", err)
	} else if got != 1 {
		t.Fatalf("expected webhook events=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "personacraft_generation_duration_seconds", "path", "enriched"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got < 1.5 {
		t.Fatalf("expected duration sum >= 1.5, got %f", got)
	}
}

func TestNilPipelineIsNoop(t *testing.T) {
	var m *Pipeline
	m.ObserveGeneration("legacy", "error", time.Second)
	m.IncEnrichmentFallback("music", "critical")
	m.IncWebhookEvent("user.deleted", "success")

	unregistered := NewPipeline(nil)
	unregistered.ObserveGeneration("legacy", "error", time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
