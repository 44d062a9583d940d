package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	executionsReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "testbench",
		Subsystem: "reconciler",
		Name:      "executions_total",
		Help:      "Executions touched by the reconciler broken down by action (provisioned, retired, restored, realigned, deleted).",
	}, []string{"action"})

	reconcileRaces = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "testbench",
		Subsystem: "reconciler",
		Name:      "races_total",
		Help:      "Execution inserts that lost to a concurrent insert of the same user and test case.",
	})

	executionCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "testbench",
		Subsystem: "workbench",
		Name:      "completions_total",
		Help:      "Executions completed through the workbench broken down by overall result.",
	}, []string{"result"})
)

func recordReconciled(action string, n int) {
	if n <= 0 {
		return
	}
	executionsReconciled.WithLabelValues(action).Add(float64(n))
}
