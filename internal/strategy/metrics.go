// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package strategy

import "github.com/prometheus/client_golang/prometheus"

const (
	resultResolved = "resolved"
	resultAbsent   = "absent"
	resultError    = "error"
)

// Resolutions counts ResolveIdentity calls by strategy and result.
var Resolutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeep_identity_resolutions_total",
		Help: "Total number of identity resolutions by strategy and result",
	},
	[]string{"strategy", "result"},
)

// RegisterMetrics registers strategy metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Resolutions)
}

func recordResolve(kind Kind, result string) {
	Resolutions.WithLabelValues(string(kind), result).Inc()
}
