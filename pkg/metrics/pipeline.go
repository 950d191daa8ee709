package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline records persona generation, enrichment and webhook outcomes.
// A nil *Pipeline is valid and records nothing.
type Pipeline struct {
	generationDuration *prometheus.HistogramVec
	generations        *prometheus.CounterVec
	enrichmentFallback *prometheus.CounterVec
	webhookEvents      *prometheus.CounterVec
}

// NewPipeline registers the pipeline metrics on the provided registerer.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	if reg == nil {
		return &Pipeline{}
	}
	generationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "personacraft",
		Name:      "generation_duration_seconds",
		Help:      "Duration of persona generation requests in seconds.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
	}, []string{"path"})
	generations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "personacraft",
		Name:      "generations_total",
		Help:      "Persona generation requests by path and outcome.",
	}, []string{"path", "outcome"})
	enrichmentFallback := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "personacraft",
		Name:      "enrichment_fallbacks_total",
		Help:      "Cultural categories served by the local generator, by severity.",
	}, []string{"category", "severity"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "personacraft",
		Name:      "webhook_events_total",
		Help:      "Auth provider webhook deliveries by event type and outcome.",
	}, []string{"type", "outcome"})
	reg.MustRegister(generationDuration, generations, enrichmentFallback, webhookEvents)
	return &Pipeline{
		generationDuration: generationDuration,
		generations:        generations,
		enrichmentFallback: enrichmentFallback,
		webhookEvents:      webhookEvents,
	}
}

// ObserveGeneration records one finished generation request.
func (p *Pipeline) ObserveGeneration(path, outcome string, duration time.Duration) {
	if p == nil || p.generations == nil {
		return
	}
	p.generations.WithLabelValues(normalizeLabel(path), normalizeLabel(outcome)).Inc()
	p.generationDuration.WithLabelValues(normalizeLabel(path)).Observe(duration.Seconds())
}

// IncEnrichmentFallback counts a category answered locally.
func (p *Pipeline) IncEnrichmentFallback(category, severity string) {
	if p == nil || p.enrichmentFallback == nil {
		return
	}
	p.enrichmentFallback.WithLabelValues(normalizeLabel(category), normalizeLabel(severity)).Inc()
}

// IncWebhookEvent counts a processed webhook delivery.
func (p *Pipeline) IncWebhookEvent(eventType, outcome string) {
	if p == nil || p.webhookEvents == nil {
		return
	}
	p.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
