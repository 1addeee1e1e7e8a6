// Package monitor is the observing side: it accepts relay messages from
// any transport, validates them, keeps them in the in-memory event store,
// and optionally mirrors them into the archive.
package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/broadcastmonitor/internal/eventstore"
	"github.com/runnerr0/broadcastmonitor/internal/intent"
	"github.com/runnerr0/broadcastmonitor/internal/metrics"
	"github.com/runnerr0/broadcastmonitor/internal/relay"
	"github.com/runnerr0/broadcastmonitor/internal/storage"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256

	archiveTimeout = 5 * time.Second
)

// Archive persists accepted events. *storage.SQLiteStore satisfies it.
type Archive interface {
	AddEvent(ctx context.Context, event *storage.Event) error
}

// Config sizes an Observer. Zero values select the defaults.
type Config struct {
	Capacity  int
	Workers   int
	QueueSize int
}

// Observer owns the process's event store.
type Observer struct {
	store    *eventstore.Store
	receiver *relay.Receiver
	queue    chan *intent.Intent
	workers  int
	archive  Archive
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures an Observer.
type Option func(*Observer)

// WithArchive mirrors every accepted event into a.
func WithArchive(a Archive) Option {
	return func(o *Observer) { o.archive = a }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Observer) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics sink. The store size gauge tracks every
// change to the store.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Observer) { o.metrics = m }
}

// New returns an Observer with an empty store.
func New(cfg Config, opts ...Option) *Observer {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	o := &Observer{
		store:   eventstore.New(cfg.Capacity),
		queue:   make(chan *intent.Intent, cfg.QueueSize),
		workers: cfg.Workers,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.receiver = relay.NewReceiver(o.logger, o.metrics)
	if o.metrics != nil {
		o.store.OnChange(func(s eventstore.Snapshot) { o.metrics.SetStoreEvents(len(s.Events)) })
	}
	return o
}

// Store returns the event store.
func (o *Observer) Store() *eventstore.Store {
	return o.store
}

// Deliver enqueues msg for processing. It never blocks; when the queue is
// full the message is dropped and counted. Deliver is a relay.Handler.
func (o *Observer) Deliver(msg *intent.Intent) {
	select {
	case o.queue <- msg:
	default:
		o.metrics.Dropped()
		o.logger.Warn("observer queue full, dropping message")
	}
}

// Run processes queued messages until ctx is cancelled, then drains what
// is already queued and returns.
func (o *Observer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < o.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case msg := <-o.queue:
					o.process(gctx, msg)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for {
		select {
		case msg := <-o.queue:
			o.process(ctx, msg)
		default:
			return nil
		}
	}
}

// Serve runs the observer and every listener until ctx is cancelled or a
// listener fails.
func (o *Observer) Serve(ctx context.Context, listeners ...relay.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.Run(gctx) })
	for _, l := range listeners {
		l := l
		g.Go(func() error {
			if err := l.Listen(gctx, o.Deliver); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (o *Observer) process(ctx context.Context, msg *intent.Intent) {
	ev, ok := o.receiver.Receive(msg)
	if !ok {
		return
	}
	o.store.Append(ev)

	if o.archive == nil {
		return
	}
	// Archive writes outlive shutdown so the drain can persist the tail.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	if err := o.archive.AddEvent(actx, storage.FromBroadcast(ev)); err != nil {
		o.logger.Warn("archive event", "action", ev.Action, "error", err)
	}
}
