package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	metricVRAMUsedMB = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "modelmgrd",
		Subsystem: "manager",
		Name:      "vram_used_mb",
		Help:      "VRAM attributed to online models in MB",
	})

	metricVRAMBudgetMB = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "modelmgrd",
		Subsystem: "manager",
		Name:      "vram_budget_mb",
		Help:      "Admission ceiling in MB (capacity * fraction - floor)",
	})

	metricModelsOnline = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "modelmgrd",
		Subsystem: "manager",
		Name:      "models_online",
		Help:      "Models currently online",
	})

	metricLoadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelmgrd",
		Subsystem: "manager",
		Name:      "loads_total",
		Help:      "Successful model loads",
	})

	metricLoadFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelmgrd",
		Subsystem: "manager",
		Name:      "load_failures_total",
		Help:      "Failed model loads",
	})

	metricUnloadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelmgrd",
		Subsystem: "manager",
		Name:      "unloads_total",
		Help:      "Successful model unloads",
	})

	metricEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelmgrd",
		Subsystem: "manager",
		Name:      "evictions_total",
		Help:      "Idle-reaper evictions",
	})

	metricPrefetchAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelmgrd",
		Subsystem: "manager",
		Name:      "prefetch_attempts_total",
		Help:      "Speculative load attempts by the prefetcher",
	})

	metricGenerationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modelmgrd",
		Subsystem: "manager",
		Name:      "generations_total",
		Help:      "Generation requests by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		metricVRAMUsedMB,
		metricVRAMBudgetMB,
		metricModelsOnline,
		metricLoadsTotal,
		metricLoadFailuresTotal,
		metricUnloadsTotal,
		metricEvictionsTotal,
		metricPrefetchAttemptsTotal,
		metricGenerationsTotal,
	)
}
