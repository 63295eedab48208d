package assembler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var deadDrops = promauto.NewCounter(prometheus.CounterOpts{
	Name: "assembler_dead_drops",
	Help: "Fragments dropped because the asking execution was already gone.",
})
