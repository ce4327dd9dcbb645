package archive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "htsget",
		Subsystem: "archive",
		Name:      "fetched_bytes_total",
		Help:      "Bytes read from archived objects.",
	})
	fetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "htsget",
		Subsystem: "archive",
		Name:      "fetch_retries_total",
		Help:      "Archive fetches retried after a failure.",
	})
	fetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "htsget",
		Subsystem: "archive",
		Name:      "fetch_failures_total",
		Help:      "Archive fetches that exhausted their attempts.",
	})
)
