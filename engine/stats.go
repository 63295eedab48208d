package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var opened = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "engine_connections_opened",
	Help: "Connections opened, by protocol family.",
}, []string{"protocol"})
