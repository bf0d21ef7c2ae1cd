// Package metrics exports the service's Prometheus collectors and the
// exporter that bridges them to the domain observer interfaces.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
	"github.com/sonet/feed-realtime-service/internal/domain/registry"
)

var (
	ConnectedUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feed_connected_users",
		Help: "Users with at least one live connection",
	})
	OpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feed_open_connections",
		Help: "Live connections, including unauthenticated ones",
	})
	SuspectConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feed_suspect_connections",
		Help: "Connections queued for a liveness re-check",
	})
	ActiveTypingEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feed_active_typing_entries",
		Help: "Typing indicators currently live",
	})

	BroadcastDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_broadcast_deliveries_total",
		Help: "Per-recipient delivery outcomes by channel kind",
	}, []string{"kind", "outcome"})

	RankingRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_ranking_requests_total",
		Help: "Scoring passes by engine mode and fallback flag",
	}, []string{"mode", "fallback"})
	RankingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feed_ranking_duration_seconds",
		Help:    "Scoring pass latency by engine mode",
		Buckets: []float64{.001, .005, .01, .025, .05, .075, .1, .25, .5, 1},
	}, []string{"mode"})
)

// MustRegister registers every collector on the given registerer.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ConnectedUsers,
		OpenConnections,
		SuspectConnections,
		ActiveTypingEntries,
		BroadcastDeliveries,
		RankingRequests,
		RankingDuration,
	)
}

// Exporter adapts the collectors to the observer interfaces the service and
// ranking layers expose.
type Exporter struct{}

func NewExporter(registry *prometheus.Registry) *Exporter {
	MustRegister(registry)
	return &Exporter{}
}

func (e *Exporter) ObserveRegistry(stats registry.Stats) {
	ConnectedUsers.Set(float64(stats.Users))
	OpenConnections.Set(float64(stats.Connections))
	SuspectConnections.Set(float64(stats.Suspects))
}

func (e *Exporter) ObserveTyping(active int) {
	ActiveTypingEntries.Set(float64(active))
}

func (e *Exporter) ObserveDelivery(kind model.TopicKind, report model.DeliveryReport) {
	k := string(kind)
	BroadcastDeliveries.WithLabelValues(k, "delivered").Add(float64(report.Delivered))
	BroadcastDeliveries.WithLabelValues(k, "failed").Add(float64(report.Failed))
	BroadcastDeliveries.WithLabelValues(k, "filtered").Add(float64(report.Filtered))
}

func (e *Exporter) ObserveScore(mode string, fallback bool, duration time.Duration) {
	RankingRequests.WithLabelValues(mode, strconv.FormatBool(fallback)).Inc()
	RankingDuration.WithLabelValues(mode).Observe(duration.Seconds())
}
