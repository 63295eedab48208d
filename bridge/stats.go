package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_queries_total",
		Help: "Queries asked through the bridge, by protocol and outcome.",
	}, []string{"protocol", "outcome"})

	droppedInvalidSlot = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_dropped_invalid_slot",
		Help: "Completions dropped because their slot was no longer valid.",
	})
	droppedRingFull = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_dropped_ring_full",
		Help: "Completions dropped because the event ring was full.",
	})
	droppedNoMemory = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_dropped_no_memory",
		Help: "Completions dropped because the arena could not hold the payload.",
	})
	ghostAnswers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_ghost_answers",
		Help: "Events that matched no pending query; surfaced as fetching errors.",
	})

	executions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_executions_total",
		Help: "Start/Finish spans run by the worker.",
	})
)
