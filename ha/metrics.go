package ha

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	quorumTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_ha_quorum_transitions_total",
		Help: "Quorum state transitions, by direction (attained/lost).",
	}, []string{"state"})

	failovers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_ha_failovers_total",
		Help: "Failovers executed by this node, by result.",
	}, []string{"result"})

	redeployedWorkloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "haven_ha_redeployed_workloads_total",
		Help: "Workloads redeployed from failed nodes onto this node.",
	})

	pendingDeployments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "haven_ha_pending_deployments",
		Help: "Deployments currently waiting for a quorum.",
	})
)
