package pcache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// PCache is the process-level cache that outlives executions (the arena does
// not). It currently backs the prepared-statement cache of the sql engine
// driver. Safe for concurrent use.
type PCache struct {
	Cache *ristretto.Cache
}

// NewPCache creates a new instance of PCache.
// https://pkg.go.dev/github.com/dgraph-io/ristretto#Config
// onExit, when set, is called with every value leaving the cache (evicted,
// deleted, replaced, or rejected by admission) so the owner can release
// resources held by it, e.g. close a prepared statement.
func NewPCache(maxCost int64, averageItemCost int64, onExit func(value interface{})) (PCache, error) {
	expectedMaxItems := maxCost / averageItemCost
	config := &ristretto.Config{
		NumCounters: 10 * expectedMaxItems,
		MaxCost:     maxCost,
		// Ristretto recommends 64, but under bursty set traffic that drops a
		// large share of sets; 1024 keeps the drop rate visible in the
		// metrics instead of structural.
		BufferItems: 1 << 10,
		Metrics:     true,
		OnExit:      onExit,
	}
	if onExit != nil {
		config.OnReject = func(item *ristretto.Item) {
			onExit(item.Value)
		}
	}
	cache, err := ristretto.NewCache(config)
	if err != nil {
		return PCache{}, err
	}
	return PCache{
		Cache: cache,
	}, nil
}

func (pc *PCache) Set(key, value interface{}, cost int64) bool {
	return pc.Cache.Set(key, value, cost)
}

func (pc *PCache) SetWithTTL(key, value interface{}, cost int64, ttl time.Duration) bool {
	return pc.Cache.SetWithTTL(key, value, cost, ttl)
}

func (pc *PCache) Get(key interface{}) (interface{}, bool) {
	return pc.Cache.Get(key)
}

func (pc *PCache) GetTTL(key interface{}) (time.Duration, bool) {
	return pc.Cache.GetTTL(key)
}

func (pc *PCache) Delete(key interface{}) {
	pc.Cache.Del(key)
}
