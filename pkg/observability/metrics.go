package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wattlebot/wattle/pkg/domain"
)

// Metrics is the engine's prometheus metric set.
type Metrics struct {
	turns          *prometheus.CounterVec
	blockVisits    *prometheus.CounterVec
	fallbacks      prometheus.Counter
	envelopes      prometheus.Counter
	pluginDuration *prometheus.HistogramVec
	pluginErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers the metric set with the given registerer.
// Pass prometheus.DefaultRegisterer for the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wattle_turns_total",
				Help: "Total number of processed conversation turns",
			},
			[]string{"matched"},
		),
		blockVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wattle_block_visits_total",
				Help: "Total number of block executions",
			},
			[]string{"block_id"},
		),
		fallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wattle_fallback_reasks_total",
				Help: "Total number of local fallback re-asks",
			},
		),
		envelopes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wattle_envelopes_total",
				Help: "Total number of produced envelopes",
			},
		),
		pluginDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wattle_plugin_duration_seconds",
				Help:    "Duration of plugin executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"plugin"},
		),
		pluginErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wattle_plugin_errors_total",
				Help: "Total number of failed plugin executions",
			},
			[]string{"plugin"},
		),
	}
	reg.MustRegister(m.turns, m.blockVisits, m.fallbacks, m.envelopes, m.pluginDuration, m.pluginErrors)
	return m
}

// Hooks returns lifecycle hooks that record the metric set.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnBlockEnter: func(_ context.Context, e *domain.BlockEvent) {
			m.blockVisits.WithLabelValues(e.BlockID).Inc()
			if e.Fallback {
				m.fallbacks.Inc()
			}
		},
		OnPluginReturn: func(_ context.Context, e *domain.PluginEvent) {
			m.pluginDuration.WithLabelValues(e.Plugin).Observe(e.Duration.Seconds())
			if e.IsError {
				m.pluginErrors.WithLabelValues(e.Plugin).Inc()
			}
		},
		OnTurnEnd: func(_ context.Context, e *domain.TurnEvent) {
			matched := "false"
			if e.Matched {
				matched = "true"
			}
			m.turns.WithLabelValues(matched).Inc()
			m.envelopes.Add(float64(e.Envelopes))
		},
	}
}

// Merge combines the metric hooks with other hooks so both run per event.
func (m *Metrics) Merge(other domain.LifecycleHooks) domain.LifecycleHooks {
	mine := m.Hooks()
	return domain.LifecycleHooks{
		OnBlockEnter: func(ctx context.Context, e *domain.BlockEvent) {
			mine.OnBlockEnter(ctx, e)
			if other.OnBlockEnter != nil {
				other.OnBlockEnter(ctx, e)
			}
		},
		OnBlockLeave: func(ctx context.Context, e *domain.BlockEvent) {
			if other.OnBlockLeave != nil {
				other.OnBlockLeave(ctx, e)
			}
		},
		OnPluginCall: func(ctx context.Context, e *domain.PluginEvent) {
			if other.OnPluginCall != nil {
				other.OnPluginCall(ctx, e)
			}
		},
		OnPluginReturn: func(ctx context.Context, e *domain.PluginEvent) {
			mine.OnPluginReturn(ctx, e)
			if other.OnPluginReturn != nil {
				other.OnPluginReturn(ctx, e)
			}
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			mine.OnTurnEnd(ctx, e)
			if other.OnTurnEnd != nil {
				other.OnTurnEnd(ctx, e)
			}
		},
	}
}
