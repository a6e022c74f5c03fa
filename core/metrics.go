package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type engineMetrics struct {
	activeProposals   prometheus.Gauge
	createdProposals  prometheus.Counter
	votesCast         prometheus.Counter
	resolvedProposals *prometheus.CounterVec
	rejectedOps       *prometheus.CounterVec
}

func newEngineMetrics(reg prometheus.Registerer) *engineMetrics {
	factory := promauto.With(reg)
	return &engineMetrics{
		activeProposals: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cakedao_proposals_active",
			Help: "number of proposals occupying a slot",
		}),
		createdProposals: factory.NewCounter(prometheus.CounterOpts{
			Name: "cakedao_proposals_created_total",
			Help: "number of admitted proposals",
		}),
		votesCast: factory.NewCounter(prometheus.CounterOpts{
			Name: "cakedao_votes_cast_total",
			Help: "number of accepted vote calls",
		}),
		resolvedProposals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cakedao_proposals_resolved_total",
			Help: "number of proposals reaching a terminal state",
		}, []string{"state"}),
		rejectedOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cakedao_operations_rejected_total",
			Help: "number of rejected operations by operation and reason",
		}, []string{"op", "reason"}),
	}
}
