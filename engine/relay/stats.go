package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_queries_sent",
		Help: "Envelopes sent out over relay streams.",
	})
	answers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_answers_received",
		Help: "Envelopes received back over relay streams.",
	})
	serverQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_server_queries",
		Help: "Queries handled by the relay server, by function.",
	}, []string{"function"})
	serverGhosts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_server_ghosts",
		Help: "Queries the handler chose to never answer.",
	})
)
