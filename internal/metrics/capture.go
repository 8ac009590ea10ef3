// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics provides Prometheus metrics for the capture daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No session, schedule or URL labels: cardinality must stay bounded.

var (
	// SessionTransitionsTotal counts lifecycle transitions by target state and reason.
	SessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcap_session_transitions_total",
		Help: "Total number of session state transitions, by target state and reason.",
	}, []string{"to", "reason"})

	// SessionsActive tracks live (non-terminal) sessions by state.
	SessionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamcap_sessions_active",
		Help: "Current number of non-terminal sessions, by state.",
	}, []string{"state"})

	// AdmissionTotal counts launch admission decisions.
	AdmissionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcap_admission_total",
		Help: "Total number of launch admission decisions, by result and reason.",
	}, []string{"result", "reason"})

	// CandidatesTotal counts network candidates by classification outcome.
	CandidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcap_candidates_total",
		Help: "Total number of network candidates, by outcome (hls/dash/progressive/rejected).",
	}, []string{"outcome"})

	// EnrichmentTotal counts enrichment attempts by method and result.
	EnrichmentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcap_enrichment_total",
		Help: "Total number of stream enrichment attempts, by method and result.",
	}, []string{"method", "result"})

	// DetectionLatency observes the time from launch to first detected stream.
	DetectionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamcap_detection_latency_seconds",
		Help:    "Time from browser launch to the first detected stream.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})
)

// RecordTransition records a session transition.
func RecordTransition(from, to, reason string) {
	SessionTransitionsTotal.WithLabelValues(to, reason).Inc()
	if from != "" {
		SessionsActive.WithLabelValues(from).Dec()
	}
	if !isTerminalLabel(to) {
		SessionsActive.WithLabelValues(to).Inc()
	}
}

// RecordSessionCreated counts a new session entering its first state.
func RecordSessionCreated(state string) {
	SessionsActive.WithLabelValues(state).Inc()
}

// RecordAdmission records an admission decision.
func RecordAdmission(allowed bool, reason string) {
	result := "admit"
	if !allowed {
		result = "reject"
	}
	AdmissionTotal.WithLabelValues(result, reason).Inc()
}

// RecordCandidate records a classification outcome.
func RecordCandidate(outcome string) {
	CandidatesTotal.WithLabelValues(outcome).Inc()
}

// RecordEnrichment records an enrichment attempt.
func RecordEnrichment(method, result string) {
	EnrichmentTotal.WithLabelValues(method, result).Inc()
}

func isTerminalLabel(state string) bool {
	switch state {
	case "COMPLETED", "FAILED", "CANCELLED":
		return true
	}
	return false
}
