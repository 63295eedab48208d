package pending

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	overwrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pending_query_overwrites",
		Help: "Queries saved over an id that was already parked.",
	})
	abandoned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pending_query_abandoned",
		Help: "Parked queries dropped by hard reset without being waited on.",
	})
)
