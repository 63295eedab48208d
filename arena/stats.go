package arena

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var poolStats = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "arena_pool_stats",
	Help: "Stats about the query arena pool",
}, []string{"metric"})

var softReclaims = promauto.NewCounter(prometheus.CounterOpts{
	Name: "arena_soft_reclaims_total",
	Help: "Soft reclaims that actually recycled the free index",
})

var hardReclaims = promauto.NewCounter(prometheus.CounterOpts{
	Name: "arena_hard_reclaims_total",
	Help: "Hard reclaims at execution teardown",
})

// RecordStats exports a pool snapshot; called from the bridge's reporting loop.
func RecordStats(p *Pool) {
	s := p.Stats()
	poolStats.WithLabelValues("pages").Set(float64(s.Pages))
	poolStats.WithLabelValues("free_blocks").Set(float64(s.FreeBlocks))
	poolStats.WithLabelValues("reserved_bytes").Set(float64(s.ReservedBytes))
	poolStats.WithLabelValues("used_bytes").Set(float64(s.UsedBytes))
	poolStats.WithLabelValues("free_bytes").Set(float64(s.FreeBytes))
	poolStats.WithLabelValues("generation").Set(float64(s.Generation))
}
