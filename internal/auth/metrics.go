// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for credential metrics.
const (
	OutcomeSuccess   = "success"
	OutcomeInvalid   = "invalid"
	OutcomeUnknown   = "unknown"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

// LoginAttempts counts VerifyLogin calls by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeep_login_attempts_total",
		Help: "Total number of credential verifications by outcome",
	},
	[]string{"outcome"},
)

// Registrations counts Register calls by outcome.
var Registrations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeep_registrations_total",
		Help: "Total number of registrations by outcome",
	},
	[]string{"outcome"},
)

// PasswordResets counts reset-token operations by stage and outcome.
var PasswordResets = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeep_password_resets_total",
		Help: "Total number of password reset operations by stage and outcome",
	},
	[]string{"stage", "outcome"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoginAttempts)
	reg.MustRegister(Registrations)
	reg.MustRegister(PasswordResets)
}

func recordLogin(outcome string) {
	LoginAttempts.WithLabelValues(outcome).Inc()
}

func recordRegistration(outcome string) {
	Registrations.WithLabelValues(outcome).Inc()
}

func recordReset(stage, outcome string) {
	PasswordResets.WithLabelValues(stage, outcome).Inc()
}
