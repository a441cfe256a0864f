package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "governance",
		Subsystem: "approval",
		Name:      "decisions_total",
		Help:      "Total recorded approval decisions broken down by outcome.",
	}, []string{"decision"})

	chainResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "governance",
		Subsystem: "approval",
		Name:      "chain_resolutions_total",
		Help:      "Total approval chains reaching a terminal status.",
	}, []string{"status"})

	auditSinkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "governance",
		Subsystem: "approval",
		Name:      "audit_sink_failures_total",
		Help:      "Best-effort audit/timeline writes that failed and were swallowed.",
	}, []string{"sink"})

	writeConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "governance",
		Subsystem: "approval",
		Name:      "write_conflicts_total",
		Help:      "Persistence conflicts surfaced while recording decisions or materializing steps.",
	}, []string{"kind"})
)

func recordWriteConflict(kind string) {
	writeConflicts.WithLabelValues(kind).Inc()
}
