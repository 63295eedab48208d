package inspector

import (
	"container/ring"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/buger/jsonparser"
	"github.com/gorilla/mux"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"viaduct/bridge"
	"viaduct/journal"
)

// The inspector tails the journal topic into a ring buffer of the last N
// entries and serves them, together with a live snapshot of the bridge,
// over HTTP. It reads the whole topic and discards everything that falls
// out of the ring; for the journal volumes one worker produces that is
// cheaper than managing offsets on demand.

type InspectorArgs struct {
	NumRecent  uint `arg:"--num-recent,env:INSPECTOR_NUM_RECENT" default:"64" json:"num_recent,omitempty"`
	MaxBacklog int  `arg:"--max-backlog,env:INSPECTOR_MAX_BACKLOG" default:"100000" json:"max_backlog,omitempty"`
}

const pollInterval = time.Second

type entry struct {
	msg []byte
	at  int64
}

type Inspector struct {
	args     InspectorArgs
	bctx     *bridge.Context
	consumer journal.Consumer
	logger   *zap.Logger

	mu sync.Mutex
	r  *ring.Ring

	stop context.CancelFunc
	done chan struct{}
}

// New starts the journal tailer immediately; the inspector serves entries
// read from consumer plus live state of bctx.
func New(bctx *bridge.Context, consumer journal.Consumer, args InspectorArgs) *Inspector {
	if args.NumRecent == 0 {
		args.NumRecent = 64
	}
	in := &Inspector{
		args:     args,
		bctx:     bctx,
		consumer: consumer,
		logger:   bctx.Logger,
		r:        ring.New(int(args.NumRecent)),
		done:     make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	in.stop = cancel
	go in.tail(ctx)
	return in
}

// Close stops the tailer and releases the consumer.
func (in *Inspector) Close() error {
	in.stop()
	<-in.done
	return in.consumer.Close()
}

func (in *Inspector) tail(ctx context.Context) {
	defer close(in.done)
	for ctx.Err() == nil {
		msgs, err := in.consumer.ReadBatch(ctx, 1000, pollInterval)
		if err != nil {
			in.logger.Error("journal read failed", zap.Error(err))
			time.Sleep(pollInterval)
			continue
		}
		if len(msgs) > 0 {
			in.absorb(msgs)
			if err := in.consumer.Commit(); err != nil {
				in.logger.Warn("journal commit failed", zap.Error(err))
			}
		}
	}
}

func (in *Inspector) absorb(msgs [][]byte) {
	// Keep only the messages that can fit in the ring.
	retained := len(msgs) % in.r.Len()
	if retained == 0 {
		retained = in.r.Len()
	}
	msgs = msgs[len(msgs)-retained:]

	in.mu.Lock()
	defer in.mu.Unlock()
	for _, msg := range msgs {
		at, err := jsonparser.GetInt(msg, "at")
		if err != nil {
			at = time.Now().UnixMicro()
		}
		in.r = in.r.Next()
		in.r.Value = entry{msg: msg, at: at}
	}
}

// recent returns the ring's entries, newest first by their own timestamps.
func (in *Inspector) recent() []entry {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.r.Value == nil {
		return nil
	}
	entries := []entry{in.r.Value.(entry)}
	curr := in.r
	for i := 1; i < in.r.Len(); i++ {
		curr = curr.Prev()
		if curr.Value == nil {
			break
		}
		entries = append(entries, curr.Value.(entry))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].at > entries[j].at
	})
	return entries
}

// SetHandlers mounts the diagnostic surface on router.
func (in *Inspector) SetHandlers(router *mux.Router) {
	router.HandleFunc("/debug/bridge", in.getBridgeState)
	router.HandleFunc("/debug/journal/recent", in.getRecentEntries)
	router.Handle("/metrics", promhttp.Handler())

	health := healthcheck.NewHandler()
	health.AddReadinessCheck("journal-backlog", in.backlogBound)
	router.HandleFunc("/live", health.LiveEndpoint)
	router.HandleFunc("/ready", health.ReadyEndpoint)
}

// Start serves the diagnostic surface on addr until ctx is cancelled.
func (in *Inspector) Start(ctx context.Context, addr string) error {
	router := mux.NewRouter()
	in.SetHandlers(router)
	srv := &http.Server{Addr: addr, Handler: router}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-ctx.Done()
		return srv.Close()
	})
	return g.Wait()
}

func (in *Inspector) backlogBound() error {
	n, err := in.consumer.Backlog()
	if err != nil {
		return err
	}
	if n > in.args.MaxBacklog {
		return fmt.Errorf("journal backlog %d above limit %d", n, in.args.MaxBacklog)
	}
	return nil
}

type bridgeState struct {
	Version string       `json:"version"`
	Worker  uint32       `json:"worker"`
	Stats   bridge.Stats `json:"stats"`
}

func (in *Inspector) getBridgeState(w http.ResponseWriter, _ *http.Request) {
	state := bridgeState{
		Version: bridge.Version,
		Worker:  in.bctx.Scope.ID().Value(),
		Stats:   in.bctx.Stats(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		in.logger.Error("error writing to client", zap.Error(err))
	}
}

func (in *Inspector) getRecentEntries(w http.ResponseWriter, req *http.Request) {
	entries := in.recent()
	if kind := req.URL.Query().Get("kind"); kind != "" {
		entries = lo.Filter(entries, func(e entry, _ int) bool {
			k, err := jsonparser.GetString(e.msg, "kind")
			return err == nil && k == kind
		})
	}
	// Entries are already JSON; the response is a hand-joined array of them.
	var body []byte
	body = append(body, '[')
	for i, e := range entries {
		if i > 0 {
			body = append(body, ',')
		}
		body = append(body, e.msg...)
	}
	body = append(body, ']')
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(body); err != nil {
		in.logger.Error("error writing to client", zap.Error(err))
	}
}
