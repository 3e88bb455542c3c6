package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the moderation counters. One instance is shared by the
// engines; the registry is private so tests can hold their own.
type Metrics struct {
	registry *prometheus.Registry

	SpamMutes        prometheus.Counter
	FilteredMessages prometheus.Counter
	Escalations      *prometheus.CounterVec
	RecordAppends    prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		SpamMutes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aegis_spam_mutes_total",
			Help: "Automatic mutes issued by the spam detector.",
		}),
		FilteredMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aegis_filtered_messages_total",
			Help: "Messages removed by the banned-word filter.",
		}),
		Escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_escalations_total",
			Help: "Automatic escalation actions applied, by action.",
		}, []string{"action"}),
		RecordAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aegis_moderation_records_total",
			Help: "Moderation records appended to the store.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aegis_settings_cache_hits_total",
			Help: "Guild settings served from cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aegis_settings_cache_misses_total",
			Help: "Guild settings fetched from the store.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		m.SpamMutes,
		m.FilteredMessages,
		m.Escalations,
		m.RecordAppends,
		m.CacheHits,
		m.CacheMisses,
	)
	return m
}

// Handler serves the registry for the health mux.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
