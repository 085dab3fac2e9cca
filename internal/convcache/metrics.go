package convcache

import "github.com/prometheus/client_golang/prometheus"

var (
	metricEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "modelmgrd",
		Subsystem: "convcache",
		Name:      "entries",
		Help:      "Conversation cache entries currently held",
	})

	metricHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelmgrd",
		Subsystem: "convcache",
		Name:      "hits_total",
		Help:      "Cache lookups that found an entry",
	})

	metricMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelmgrd",
		Subsystem: "convcache",
		Name:      "misses_total",
		Help:      "Cache lookups that found nothing",
	})

	metricEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modelmgrd",
		Subsystem: "convcache",
		Name:      "evictions_total",
		Help:      "Entries removed, by reason",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(metricEntries, metricHits, metricMisses, metricEvictions)
}
