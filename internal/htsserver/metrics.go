package htsserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "htsget",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Requests by route and status.",
	}, []string{"route", "code"})
	requestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "htsget",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)
