// Package metrics exposes Prometheus instrumentation for the daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderRequests counts provider calls by family and terminal outcome
	// (ok, error, cancelled, config_error).
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistantd_provider_requests_total",
		Help: "Provider calls by provider family and terminal outcome.",
	}, []string{"provider", "outcome"})

	// RelaySessions counts relay streaming sessions by terminal state.
	RelaySessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistantd_relay_sessions_total",
		Help: "Relay streaming sessions by terminal state (done, errored, cancelled).",
	}, []string{"state"})

	// RelayFragments counts text fragments forwarded across the relay.
	RelayFragments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistantd_relay_fragments_total",
		Help: "Text fragments forwarded across the relay.",
	})
)
