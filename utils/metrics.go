package utils

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the exporter phases.
type Metrics struct {
	Registry         *prometheus.Registry
	PagesTotal       prometheus.Counter
	CardsTotal       prometheus.Counter
	FallbacksTotal   *prometheus.CounterVec
	RecoveriesTotal  *prometheus.CounterVec
	EnrichedTotal    prometheus.Counter
	DetailFetchTimes prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lc_pages_total",
		Help: "Library listing pages scraped.",
	})
	cards := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lc_cards_total",
		Help: "Library cards extracted into records.",
	})
	fallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lc_fallbacks_total",
			Help: "Fields filled by a non-primary extraction strategy.",
		},
		[]string{"field", "strategy"},
	)
	recoveries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lc_recoveries_total",
			Help: "Recovered failures by kind (not_found, timeout, navigation, panic).",
		},
		[]string{"kind"},
	)
	enriched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lc_records_enriched_total",
		Help: "Records processed by the detail enricher.",
	})
	fetchTimes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lc_detail_fetch_seconds",
		Help:    "Time spent loading and reading one detail page.",
		Buckets: prometheus.DefBuckets,
	})

	registry.MustRegister(pages, cards, fallbacks, recoveries, enriched, fetchTimes)

	return &Metrics{
		Registry:         registry,
		PagesTotal:       pages,
		CardsTotal:       cards,
		FallbacksTotal:   fallbacks,
		RecoveriesTotal:  recoveries,
		EnrichedTotal:    enriched,
		DetailFetchTimes: fetchTimes,
	}
}

func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

func (m *Metrics) IncCard() {
	if m == nil {
		return
	}
	m.CardsTotal.Inc()
}

// IncFallback records that field was resolved by strategy
func (m *Metrics) IncFallback(field, strategy string) {
	if m == nil {
		return
	}
	m.FallbacksTotal.WithLabelValues(field, strategy).Inc()
}

// IncRecovery records a recovered failure of the given kind
func (m *Metrics) IncRecovery(kind string) {
	if m == nil {
		return
	}
	m.RecoveriesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncEnriched() {
	if m == nil {
		return
	}
	m.EnrichedTotal.Inc()
}

func (m *Metrics) ObserveDetailFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.DetailFetchTimes.Observe(d.Seconds())
}
