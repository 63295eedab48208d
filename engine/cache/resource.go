package cache

import (
	"crypto/tls"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"viaduct/resource"
)

// Client is the materialized cache resource. Worker scope only feeds the
// metrics naming; keys are shared across workers, so they are never
// prefixed.
type Client struct {
	scope  resource.Scope
	conf   resource.Config
	client *redis.Client
}

func (c Client) Type() resource.Type { return resource.CacheClient }

func (c Client) Close() error {
	err := c.client.Close()
	if err != nil {
		return err
	}
	if conf, ok := c.conf.(MiniRedisConfig); ok {
		conf.MiniRedis.Close()
	}
	return nil
}

var _ resource.Resource = Client{}

//=================================
// Cache client config
//=================================

type ClientConfig struct {
	Addr      string
	TLSConfig *tls.Config
}

var _ resource.Config = ClientConfig{}

func (conf ClientConfig) Materialize(scope resource.Scope) (resource.Resource, error) {
	return Client{scope, conf, redis.NewClient(&redis.Options{
		Addr:      conf.Addr,
		TLSConfig: conf.TLSConfig,
	})}, nil
}

//=================================
// MiniRedis client config, for tests
//=================================

type MiniRedisConfig struct {
	MiniRedis *miniredis.Miniredis
}

var _ resource.Config = MiniRedisConfig{}

func (conf MiniRedisConfig) Materialize(scope resource.Scope) (resource.Resource, error) {
	return Client{scope, conf, redis.NewClient(&redis.Options{
		Addr:      conf.MiniRedis.Addr(),
		TLSConfig: nil,
	})}, nil
}
