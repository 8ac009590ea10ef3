// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScheduleEvaluationsTotal counts evaluation ticks by result.
	ScheduleEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcap_schedule_evaluations_total",
		Help: "Total number of schedule evaluation passes, by result.",
	}, []string{"result"})

	// ScheduleTriggersTotal counts launch attempts made by the schedule engine.
	ScheduleTriggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcap_schedule_triggers_total",
		Help: "Total number of schedule-triggered launches, by window kind and result.",
	}, []string{"kind", "result"})

	// SchedulesByStatus tracks stored schedules by status after each evaluation.
	SchedulesByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamcap_schedules",
		Help: "Number of stored schedules, by status.",
	}, []string{"status"})

	// ScheduleEvaluationDuration observes evaluation pass latency.
	ScheduleEvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamcap_schedule_evaluation_duration_seconds",
		Help:    "Duration of one schedule evaluation pass.",
		Buckets: prometheus.DefBuckets,
	})
)

// RecordEvaluation records one evaluation pass.
func RecordEvaluation(result string, seconds float64) {
	ScheduleEvaluationsTotal.WithLabelValues(result).Inc()
	ScheduleEvaluationDuration.Observe(seconds)
}

// RecordTrigger records one schedule-triggered launch attempt.
func RecordTrigger(kind, result string) {
	ScheduleTriggersTotal.WithLabelValues(kind, result).Inc()
}

// SetScheduleCounts replaces the per-status gauge values.
func SetScheduleCounts(counts map[string]int, statuses []string) {
	for _, s := range statuses {
		SchedulesByStatus.WithLabelValues(s).Set(float64(counts[s]))
	}
}
