package journal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var producerGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "journal_producer_msg",
	Help: "Stats about journal producer queues",
}, []string{"name", "metric"})

var deliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "journal_delivery_failures",
	Help: "Journal entries the broker refused.",
})
