// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DownloadsTotal counts finished download jobs by final state.
	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcap_downloads_total",
		Help: "Total number of finished download jobs, by final state.",
	}, []string{"state"})

	// DownloadsRunning tracks running conversion processes.
	DownloadsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamcap_downloads_running",
		Help: "Current number of running conversion processes.",
	})

	// DownloadBytes observes the output size of finished jobs.
	DownloadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamcap_download_bytes",
		Help:    "Output size of finished download jobs.",
		Buckets: prometheus.ExponentialBuckets(1<<20, 4, 10),
	})

	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcap_proc_terminate_total",
		Help: "Signals sent while terminating process groups, by signal and outcome.",
	}, []string{"signal", "outcome"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcap_proc_wait_total",
		Help: "Process group exits observed during termination, by outcome.",
	}, []string{"outcome"})
)

// RecordDownloadStarted marks a conversion process as running.
func RecordDownloadStarted() { DownloadsRunning.Inc() }

// RecordDownloadFinished records the end of a job that was running.
func RecordDownloadFinished(state string, bytes int64, wasRunning bool) {
	if wasRunning {
		DownloadsRunning.Dec()
	}
	DownloadsTotal.WithLabelValues(state).Inc()
	if bytes > 0 {
		DownloadBytes.Observe(float64(bytes))
	}
}

// IncProcTerminate counts a termination signal.
func IncProcTerminate(signal, outcome string) {
	procTerminateTotal.WithLabelValues(signal, outcome).Inc()
}

// IncProcWait counts a termination wait outcome.
func IncProcWait(outcome string) {
	procWaitTotal.WithLabelValues(outcome).Inc()
}
