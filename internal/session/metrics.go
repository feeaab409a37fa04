// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package session

import "github.com/prometheus/client_golang/prometheus"

// SessionsCreated counts ids issued by MemoryStore.
var SessionsCreated = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "gatekeep_sessions_created_total",
		Help: "Total number of session ids issued",
	},
)

// SessionsExpired counts lookups that found a session past its TTL.
var SessionsExpired = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "gatekeep_sessions_expired_total",
		Help: "Total number of lookups rejected because the session expired",
	},
)

// StorageFailures counts durable record errors by operation.
var StorageFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeep_session_storage_failures_total",
		Help: "Total number of durable session record failures by operation",
	},
	[]string{"operation"},
)

// RegisterMetrics registers session metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(SessionsCreated)
	reg.MustRegister(SessionsExpired)
	reg.MustRegister(StorageFailures)
}

func recordCreated() { SessionsCreated.Inc() }

func recordExpired() { SessionsExpired.Inc() }

func recordStorageFailure(operation string) {
	StorageFailures.WithLabelValues(operation).Inc()
}
