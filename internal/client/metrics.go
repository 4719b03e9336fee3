package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var backendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "storylens_backend_request_duration_seconds",
	Help: "Duration of requests to the story backend, partitioned by operation and outcome.",
	// Генерация истории занимает десятки секунд, поэтому верхние бакеты широкие.
	Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
}, []string{"operation", "outcome"})

func observeRequest(op string, seconds float64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	backendRequestDuration.WithLabelValues(op, outcome).Observe(seconds)
}
