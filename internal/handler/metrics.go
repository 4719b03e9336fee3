package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storylens_ws_connections",
		Help: "Open WebSocket connections receiving gallery invalidations.",
	})
	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storylens_upload_rate_limited_total",
		Help: "Total number of upload submissions rejected by the rate limiter.",
	})
)
