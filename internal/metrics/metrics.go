// Package metrics exposes Prometheus collectors shared by the master, client
// and worker roles. Registration is optional: callers that never call
// Register get working no-op counters, matching provisr's metrics package.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	profileStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpd",
			Subsystem: "profile",
			Name:      "starts_total",
			Help:      "Number of spawn attempts performed by Profile.Start.",
		}, []string{"name"},
	)
	restartThrottled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpd",
			Subsystem: "profile",
			Name:      "restart_throttled_total",
			Help:      "Number of times a profile was pushed into ADMIN_notrestarted by the rate gate.",
		}, []string{"name"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpd",
			Subsystem: "profile",
			Name:      "state_transitions_total",
			Help:      "Number of state transitions between profile states.",
		}, []string{"name", "from", "to"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "dpd",
			Subsystem: "profile",
			Name:      "state",
			Help:      "Current state of a profile (1 = active state, 0 = inactive).",
		}, []string{"name", "state"},
	)
	publishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpd",
			Subsystem: "master",
			Name:      "publish_total",
			Help:      "Number of per-node manifest messages published by the master.",
		}, []string{"node"},
	)
	statsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpd",
			Subsystem: "master",
			Name:      "stats_received_total",
			Help:      "Number of stats messages drained from the master stats ingress.",
		}, []string{},
	)
)

// Register registers all collectors with r. It is safe to call multiple
// times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{profileStarts, restartThrottled, stateTransitions, currentState, publishTotal, statsReceivedTotal}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves Prometheus metrics for the DefaultGatherer. Each role
// launcher under cmd/ mounts it at /metrics when metrics are enabled in its
// startup configuration.
func Handler() http.Handler { return promhttp.Handler() }

func IncProfileStart(name string) {
	if regOK.Load() {
		profileStarts.WithLabelValues(name).Inc()
	}
}

func IncRestartThrottled(name string) {
	if regOK.Load() {
		restartThrottled.WithLabelValues(name).Inc()
	}
}

func RecordStateTransition(name, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(name, from, to).Inc()
	}
}

func SetCurrentState(name, state string, active bool) {
	if regOK.Load() {
		var v float64
		if active {
			v = 1
		}
		currentState.WithLabelValues(name, state).Set(v)
	}
}

func IncPublish(node string) {
	if regOK.Load() {
		publishTotal.WithLabelValues(node).Inc()
	}
}

func IncStatsReceived() {
	if regOK.Load() {
		statsReceivedTotal.WithLabelValues().Inc()
	}
}
