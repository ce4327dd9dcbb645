package pagecache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pageHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "htsget",
		Subsystem: "pagecache",
		Name:      "hits_total",
		Help:      "Page requests served from the cache.",
	})
	pageMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "htsget",
		Subsystem: "pagecache",
		Name:      "misses_total",
		Help:      "Page requests that needed a load.",
	})
	pageLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "htsget",
		Subsystem: "pagecache",
		Name:      "loads_total",
		Help:      "Page loads by result.",
	}, []string{"result"})
	staleServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "htsget",
		Subsystem: "pagecache",
		Name:      "stale_served_total",
		Help:      "Expired entries served because reloading failed.",
	}, []string{"cache"})
)
