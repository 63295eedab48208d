package test

import (
	"github.com/alicebob/miniredis/v2"

	"viaduct/engine/cache"
	"viaduct/resource"
)

func mockCache(scope resource.WorkerScope) (cache.Client, error) {
	mr, err := miniredis.Run()
	if err != nil {
		return cache.Client{}, err
	}
	rdb, err := cache.MiniRedisConfig{MiniRedis: mr}.Materialize(scope)
	if err != nil {
		return cache.Client{}, err
	}
	return rdb.(cache.Client), nil
}
