package database

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	locationCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "locations",
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Total number of location cache lookups broken down by layer and hit/miss.",
	}, []string{"layer", "result"})

	locationCacheInvalidate = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "locations",
		Subsystem: "cache",
		Name:      "invalidate_total",
		Help:      "Total number of location cache invalidations broken down by reason.",
	}, []string{"reason"})
)

func recordCacheRequest(layer string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	locationCacheRequests.WithLabelValues(layer, result).Inc()
}

func recordCacheInvalidate(reason string) {
	if reason == "" {
		reason = "manual"
	}
	locationCacheInvalidate.WithLabelValues(reason).Inc()
}
