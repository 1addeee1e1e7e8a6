// Package relay carries classified broadcast events from the intercepting
// process to the observing process. Every message is an intent with the
// reserved type broadcast.DataAction, restricted to the observer's package,
// and carrying the event's seven fields as extras.
//
// Delivery is at most once: a send that fails is logged and dropped.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/runnerr0/broadcastmonitor/internal/broadcast"
	"github.com/runnerr0/broadcastmonitor/internal/intent"
	"github.com/runnerr0/broadcastmonitor/internal/metrics"
)

// Wire keys. These are the message contract between processes.
const (
	KeyTimestamp   = "timestamp"
	KeyAction      = "action"
	KeySource      = "source"
	KeyPackageName = "packageName"
	KeyExtras      = "extras"
	KeyCategory    = "category"
	KeyPriority    = "priority"
)

const defaultSendTimeout = 2 * time.Second

var (
	ErrNotRelayMessage = errors.New("not a relay message")
	ErrMissingField    = errors.New("missing mandatory field")
	ErrQueueFull       = errors.New("receiver queue full")
	ErrNotAddressed    = errors.New("no receiver for package")
	ErrNoChannel       = errors.New("relay channel not initialized")
)

// Channel delivers a message to whichever receivers its package allows.
type Channel interface {
	Broadcast(ctx context.Context, msg *intent.Intent) error
}

// Handler consumes a delivered message. It must not block.
type Handler func(msg *intent.Intent)

// Listener feeds incoming messages to a handler until ctx is cancelled.
type Listener interface {
	Listen(ctx context.Context, h Handler) error
}

// Encode packs ev into a relay message addressed to target.
func Encode(ev broadcast.Event, target string) *intent.Intent {
	msg := intent.New(broadcast.DataAction).SetPackage(target)
	msg.Extras.PutString(KeyTimestamp, ev.Timestamp)
	msg.Extras.PutString(KeyAction, ev.Action)
	msg.Extras.PutString(KeySource, ev.Source)
	msg.Extras.PutString(KeyPackageName, ev.PackageName)
	msg.Extras.PutString(KeyExtras, ev.Extras)
	msg.Extras.PutString(KeyCategory, ev.Category)
	msg.Extras.PutInt(KeyPriority, ev.Priority)
	return msg
}

// Decode unpacks a relay message. The sender's timestamp must parse under
// broadcast.TimestampLayout and is then replaced with now; missing optional
// fields fall back to local defaults.
func Decode(msg *intent.Intent, now time.Time) (broadcast.Event, error) {
	if msg == nil || msg.Action != broadcast.DataAction {
		return broadcast.Event{}, ErrNotRelayMessage
	}

	var mandatory [4]string
	for i, key := range []string{KeyTimestamp, KeyAction, KeySource, KeyPackageName} {
		v, ok := msg.Extras.GetString(key)
		if !ok {
			return broadcast.Event{}, fmt.Errorf("%w: %s", ErrMissingField, key)
		}
		mandatory[i] = v
	}
	if _, err := broadcast.ParseTimestamp(mandatory[0]); err != nil {
		return broadcast.Event{}, fmt.Errorf("%w: %s: %v", ErrMissingField, KeyTimestamp, err)
	}

	extras, ok := msg.Extras.GetString(KeyExtras)
	if !ok {
		extras = broadcast.NoExtras
	}
	category, ok := msg.Extras.GetString(KeyCategory)
	if !ok {
		category = broadcast.DefaultCategory
	}

	return broadcast.Event{
		Timestamp:   broadcast.Timestamp(now),
		Action:      mandatory[1],
		Source:      mandatory[2],
		PackageName: mandatory[3],
		Extras:      extras,
		Category:    category,
		Priority:    msg.Extras.GetInt(KeyPriority, broadcast.DefaultPriority),
	}, nil
}

// Relay sends events asynchronously over a Channel.
type Relay struct {
	channel Channel
	target  string
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	wg sync.WaitGroup
}

// Option configures a Relay.
type Option func(*Relay)

// WithTarget sets the package messages are restricted to.
func WithTarget(pkg string) Option { return func(r *Relay) { r.target = pkg } }

// WithTimeout bounds each send.
func WithTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Relay) { r.metrics = m } }

// New returns a Relay over channel addressed to broadcast.PackageName.
func New(channel Channel, opts ...Option) *Relay {
	r := &Relay{
		channel: channel,
		target:  broadcast.PackageName,
		timeout: defaultSendTimeout,
		logger:  discardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send packages ev and hands it to the channel on a separate goroutine.
// It never blocks on delivery and never reports failure to the caller.
func (r *Relay) Send(ev broadcast.Event) {
	if r.channel == nil {
		r.logger.Error("send broadcast data", "error", ErrNoChannel, "action", ev.Action)
		r.metrics.RelayFailed()
		return
	}
	msg := Encode(ev, r.target)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("send broadcast data panicked", "panic", p, "action", ev.Action)
				r.metrics.RelayFailed()
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.channel.Broadcast(ctx, msg); err != nil {
			r.logger.Warn("send broadcast data", "error", err, "action", ev.Action)
			r.metrics.RelayFailed()
			return
		}
		r.metrics.RelaySent()
		r.logger.Debug("broadcast data sent", "action", ev.Action)
	}()
}

// Wait blocks until every in-flight send has finished.
func (r *Relay) Wait() {
	r.wg.Wait()
}

// Receiver validates and unpacks relay messages in the observing process.
type Receiver struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewReceiver returns a Receiver. A nil logger discards output.
func NewReceiver(logger *slog.Logger, m *metrics.Metrics) *Receiver {
	if logger == nil {
		logger = discardLogger()
	}
	return &Receiver{logger: logger, metrics: m, now: time.Now}
}

// Receive returns the event carried by msg. Messages of another type are
// ignored; malformed relay messages are logged and dropped.
func (r *Receiver) Receive(msg *intent.Intent) (broadcast.Event, bool) {
	ev, err := Decode(msg, r.now())
	switch {
	case err == nil:
		r.metrics.Received()
		r.logger.Debug("received broadcast data", "action", ev.Action)
		return ev, true
	case errors.Is(err, ErrNotRelayMessage):
		return broadcast.Event{}, false
	default:
		r.logger.Warn("discarding relay message", "error", err)
		r.metrics.Discarded()
		return broadcast.Event{}, false
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
