package bridge

import (
	"crypto/tls"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/raulk/clock"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"viaduct/arena"
	"viaduct/engine"
	"viaduct/engine/cache"
	"viaduct/engine/relay"
	"viaduct/engine/sqldb"
	"viaduct/journal"
	"viaduct/lib/ftypes"
	"viaduct/pending"
	"viaduct/resource"
	"viaduct/ringq"
	"viaduct/slot"
)

// Version is reported on the diagnostics surface.
const Version = "viaduct-0.4"

const (
	// maxNetErrorLen caps the remembered network error; longer messages are
	// truncated without any marker.
	maxNetErrorLen = 128

	// completionBuffer sizes the single driver-to-loop edge. Loopback
	// drivers deliver from the worker goroutine itself; the buffer is what
	// keeps that delivery from blocking.
	completionBuffer = 4096
)

type BridgeArgs struct {
	WorkerID uint32 `arg:"--worker-id,env:WORKER_ID" json:"worker_id,omitempty"`
	Dev      bool   `arg:"--dev" default:"true" json:"dev,omitempty"`

	CacheServer string `arg:"--cache-server,env:CACHE_SERVER_ADDRESS" json:"cache_server,omitempty"`

	MysqlHost     string `arg:"--mysql-host,env:MYSQL_SERVER_ADDRESS" json:"mysql_host,omitempty"`
	MysqlDB       string `arg:"--mysql-db,env:MYSQL_DATABASE_NAME" json:"mysql_db,omitempty"`
	MysqlUsername string `arg:"--mysql-user,env:MYSQL_USERNAME" json:"mysql_username,omitempty"`
	MysqlPassword string `arg:"--mysql-password,env:MYSQL_PASSWORD" json:"mysql_password,omitempty"`

	RelayTarget string `arg:"--relay-target,env:RELAY_TARGET" json:"relay_target,omitempty"`

	KafkaServer   string `arg:"--kafka-server,env:KAFKA_SERVER_ADDRESS" json:"kafka_server,omitempty"`
	KafkaUsername string `arg:"--kafka-user,env:KAFKA_USERNAME" json:"kafka_username,omitempty"`
	KafkaPassword string `arg:"--kafka-password,env:KAFKA_PASSWORD" json:"kafka_password,omitempty"`
	JournalTopic  string `arg:"--journal-topic,env:JOURNAL_TOPIC" default:"query_journal" json:"journal_topic,omitempty"`
}

func (args BridgeArgs) Valid() error {
	missingFields := make([]string, 0)
	if args.WorkerID == 0 {
		missingFields = append(missingFields, "WORKER_ID")
	}
	if args.MysqlHost != "" {
		if args.MysqlDB == "" {
			missingFields = append(missingFields, "MYSQL_DATABASE_NAME")
		}
		if args.MysqlUsername == "" {
			missingFields = append(missingFields, "MYSQL_USERNAME")
		}
		if args.MysqlPassword == "" {
			missingFields = append(missingFields, "MYSQL_PASSWORD")
		}
	}
	if args.KafkaServer != "" {
		if args.KafkaUsername == "" {
			missingFields = append(missingFields, "KAFKA_USERNAME")
		}
		if args.KafkaPassword == "" {
			missingFields = append(missingFields, "KAFKA_PASSWORD")
		}
	}
	if len(missingFields) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missingFields, ", "))
	}
	return nil
}

// JournalConsumerCreator builds a consumer on whatever broker the context's
// journal producer writes to, one offset group per caller.
type JournalConsumerCreator func(groupID string) (journal.Consumer, error)

// Context owns one worker's query bridge: the request-scoped structures the
// event loop mutates, the process-scoped engine connections, and the ambient
// clock, journal and logger. Every method must be called from the worker
// goroutine; drivers are the only other writers and they reach the context
// through the completion channel alone.
type Context struct {
	Args    BridgeArgs
	Scope   resource.WorkerScope
	Logger  *zap.Logger
	Clock   clock.Clock
	Journal journal.Producer
	Engines *engine.Registry

	NewJournalConsumer JournalConsumerCreator

	pool    *arena.Pool
	slots   *slot.Registry
	events  *ringq.Queue[Event]
	queries *ringq.Queue[NetQuery]
	pending *pending.Registry

	processing  pending.Processing
	completions chan engine.Completion

	// Assemblers and resolved rpc answers of the current execution, keyed by
	// slot and query id. A timed-out assembler stays keyed until Finish so a
	// late event finds a dead sink instead of a hole; done and errored ones
	// are removed when their query finalizes.
	asm      map[ftypes.SlotID]flavor
	resolved map[ftypes.QueryID]rpcAnswer

	acct       accounting
	lastNetErr string
	running    bool
	startedAt  time.Time

	// published is the stats snapshot readable off the worker goroutine.
	published atomic.Pointer[Stats]
}

// rpcAnswer parks one resolved rpc answer until WaitRPC collects it. data is
// an arena view; it dies with the execution.
type rpcAnswer struct {
	function string
	data     arena.Ref
	val      interface{}
	err      string
}

// Resources assembles a context from premade parts, mainly for tests. Zero
// fields get working defaults; a nil Journal gets a private mock broker.
type Resources struct {
	Scope    resource.WorkerScope
	Logger   *zap.Logger
	Clock    clock.Clock
	Journal  journal.Producer
	Engines  *engine.Registry
	EventCap int
	QueryCap int
}

func CreateFromResources(res Resources) *Context {
	if res.Logger == nil {
		res.Logger = zap.L()
	}
	if res.Clock == nil {
		res.Clock = clock.New()
	}
	if res.Engines == nil {
		res.Engines = engine.NewRegistry()
	}
	var consumerCreator JournalConsumerCreator
	if res.Journal == nil {
		broker := journal.NewMockBroker()
		p, err := journal.MockProducerConfig{Broker: &broker, Topic: "journal"}.Materialize(res.Scope)
		if err != nil {
			panic(err)
		}
		res.Journal = p.(journal.Producer)
		consumerCreator = func(groupID string) (journal.Consumer, error) {
			r, err := journal.MockConsumerConfig{Broker: &broker, Topic: "journal", GroupID: groupID}.Materialize(res.Scope)
			if err != nil {
				return nil, err
			}
			return r.(journal.Consumer), nil
		}
	}
	if res.EventCap == 0 {
		res.EventCap = ringq.DefaultCap
	}
	if res.QueryCap == 0 {
		res.QueryCap = ringq.DefaultCap
	}
	c := &Context{
		Scope:   res.Scope,
		Logger:  res.Logger,
		Clock:   res.Clock,
		Journal: res.Journal,
		Engines: res.Engines,

		NewJournalConsumer: consumerCreator,

		pool:        arena.NewPool(),
		slots:       slot.NewRegistry(),
		events:      ringq.New[Event](res.EventCap),
		queries:     ringq.New[NetQuery](res.QueryCap),
		pending:     pending.NewRegistry(),
		completions: make(chan engine.Completion, completionBuffer),
		asm:         make(map[ftypes.SlotID]flavor),
		resolved:    make(map[ftypes.QueryID]rpcAnswer),
	}
	c.startedAt = c.Clock.Now()
	c.publishStats()
	return c
}

// CreateFromArgs stands up a full worker bridge: logger, journal producer and
// one driver per configured backend. Backends with no address configured are
// simply not registered; asking over their protocol then fails per query.
func CreateFromArgs(args *BridgeArgs) (c *Context, err error) {
	if err = args.Valid(); err != nil {
		return nil, err
	}
	scope := resource.NewWorkerScope(ftypes.WorkerID(args.WorkerID))

	log.Print("Creating logger")
	var logger *zap.Logger
	if args.Dev {
		logger, err = zap.NewDevelopment()
	} else {
		config := zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
		logger, err = config.Build(
			zap.AddCaller(),
			zap.AddStacktrace(zap.ErrorLevel),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to construct logger: %v", err)
	}
	_ = zap.ReplaceGlobals(logger)
	logger = logger.With(zap.Uint32("worker_id", args.WorkerID))

	var producer journal.Producer
	var consumerCreator JournalConsumerCreator
	if args.KafkaServer != "" {
		logger.Info("Creating journal producer")
		res, err := journal.RemoteProducerConfig{
			Topic:           args.JournalTopic,
			BootstrapServer: args.KafkaServer,
			Username:        args.KafkaUsername,
			Password:        args.KafkaPassword,
		}.Materialize(scope)
		if err != nil {
			return nil, fmt.Errorf("failed to create journal producer: %v", err)
		}
		producer = res.(journal.Producer)

		logger.Info("Creating journal consumer factory")
		consumerCreator = func(groupID string) (journal.Consumer, error) {
			r, err := journal.RemoteConsumerConfig{
				Topic:           args.JournalTopic,
				BootstrapServer: args.KafkaServer,
				Username:        args.KafkaUsername,
				Password:        args.KafkaPassword,
				GroupID:         groupID,
				OffsetPolicy:    "latest",
			}.Materialize(scope)
			if err != nil {
				return nil, fmt.Errorf("failed to create journal consumer: %v", err)
			}
			return r.(journal.Consumer), nil
		}
	} else {
		logger.Warn("No kafka configured, journal entries stay in the process")
		broker := journal.NewMockBroker()
		res, err := journal.MockProducerConfig{Broker: &broker, Topic: args.JournalTopic}.Materialize(scope)
		if err != nil {
			return nil, fmt.Errorf("failed to create journal producer: %v", err)
		}
		producer = res.(journal.Producer)
		consumerCreator = func(groupID string) (journal.Consumer, error) {
			r, err := journal.MockConsumerConfig{Broker: &broker, Topic: args.JournalTopic, GroupID: groupID}.Materialize(scope)
			if err != nil {
				return nil, err
			}
			return r.(journal.Consumer), nil
		}
	}

	c = CreateFromResources(Resources{
		Scope:   scope,
		Logger:  logger,
		Clock:   clock.New(),
		Journal: producer,
	})
	c.Args = *args
	c.NewJournalConsumer = consumerCreator

	var cacheClient cache.Client
	var cacheConfigured bool
	if args.CacheServer != "" {
		logger.Info("Connecting to cache")
		res, err := cache.ClientConfig{
			Addr: args.CacheServer,
			TLSConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}.Materialize(scope)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache client: %v", err)
		}
		cacheClient = res.(cache.Client)
		cacheConfigured = true
		if err = c.Engines.Register(cache.NewDriver(cacheClient, c.Sink())); err != nil {
			return nil, err
		}
	}

	var sqlDriver *sqldb.Driver
	if args.MysqlHost != "" {
		logger.Info("Connecting to mysql")
		res, err := sqldb.MySQLConfig{
			Host:     args.MysqlHost,
			DBName:   args.MysqlDB,
			Username: args.MysqlUsername,
			Password: args.MysqlPassword,
		}.Materialize(scope)
		if err != nil {
			return nil, fmt.Errorf("failed to connect with mysql: %v", err)
		}
		sqlDriver, err = sqldb.NewDriver(res.(sqldb.Connection), c.Sink())
		if err != nil {
			return nil, fmt.Errorf("failed to create sql driver: %v", err)
		}
		if err = c.Engines.Register(sqlDriver); err != nil {
			return nil, err
		}
	}

	if args.RelayTarget != "" {
		logger.Info("Connecting to relay")
		res, err := relay.ClientConfig{Target: args.RelayTarget}.Materialize(scope)
		if err != nil {
			return nil, fmt.Errorf("failed to create relay client: %v", err)
		}
		if err = c.Engines.Register(relay.NewDriver(res.(relay.Client), c.Sink())); err != nil {
			return nil, err
		}
	}

	// Periodically record resource-level stats.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for ; true; <-ticker.C {
			arena.RecordStats(c.pool)
			if cacheConfigured {
				cache.RecordConnectionStats("cache", cacheClient)
			}
			if sqlDriver != nil {
				sqldb.RecordConnectionStats(sqlDriver.DB(), 0)
				sqlDriver.RecordStats()
			}
		}
	}()

	return c, nil
}

// Sink is the delivery edge handed to drivers. It only writes to the
// completion channel; the loop absorbs from the other side.
func (c *Context) Sink() engine.Sink {
	return engine.SinkFunc(func(comp engine.Completion) {
		c.completions <- comp
	})
}

// Processing exposes the per-query error channels raised while fetching and
// storing answers.
func (c *Context) Processing() *pending.Processing {
	return &c.processing
}

func (c *Context) saveLastNetError(msg string) {
	if msg == "" {
		return
	}
	if len(msg) > maxNetErrorLen {
		msg = msg[:maxNetErrorLen]
	}
	c.lastNetErr = msg
}

// LastNetError reports the most recent network-level failure, truncated to
// maxNetErrorLen bytes.
func (c *Context) LastNetError() string {
	return c.lastNetErr
}

// Close tears the worker down. A still-running execution is finished first
// so arena storage is reclaimed before the drivers go away.
func (c *Context) Close() error {
	if c.running {
		c.Finish()
	}
	err := c.Engines.Close()
	if jerr := c.Journal.Close(); jerr != nil && err == nil {
		err = jerr
	}
	return err
}
