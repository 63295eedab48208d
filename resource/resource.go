package resource

/*
Resource represents any external collaborator (engine connection, journal
producer/consumer) that needs to be initialized and closed with some
dependency management. The way to define a new resource is to create a config
struct implementing Config; Materialize does all setup and returns the live
resource. Every resource is materialized under a Scope so that names visible
to the outside world (topics, client names, consumer groups) are prefixed per
worker and cannot collide across workers sharing a broker or store.
*/

type Type uint8

const (
	SqlConnection Type = 1
	CacheClient   Type = 2
	KafkaConsumer Type = 3
	KafkaProducer Type = 4
	RelayClient   Type = 5
)

type Config interface {
	Materialize(scope Scope) (Resource, error)
}

type Resource interface {
	Close() error
	Type() Type
}
