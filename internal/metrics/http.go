// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamcap_http_request_duration_seconds",
		Help:    "API request latencies, by method, route pattern and status class.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "route", "status"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamcap_http_requests_in_flight",
		Help: "Current number of API requests being served.",
	})

	HTTPResponseBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcap_http_response_bytes_total",
		Help: "Bytes written in API responses, by route pattern.",
	}, []string{"route"})
)

// RecordHTTP records one finished API request.
func RecordHTTP(method, route, status string, seconds float64, bytes int) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(seconds)
	if bytes > 0 {
		HTTPResponseBytes.WithLabelValues(route).Add(float64(bytes))
	}
}
