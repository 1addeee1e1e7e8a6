package hook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/runnerr0/broadcastmonitor/internal/broadcast"
	"github.com/runnerr0/broadcastmonitor/internal/metrics"
	"github.com/runnerr0/broadcastmonitor/internal/normalize"
	"github.com/runnerr0/broadcastmonitor/internal/taxonomy"
)

// ErrMethodNotFound is returned by an Installer when the requested method
// does not exist in the target process.
var ErrMethodNotFound = errors.New("method not found")

// Callback runs before the hooked method with the method's arguments.
type Callback func(args []any)

// Installer attaches a callback ahead of a method. arity is AnyArity to
// hook every overload.
type Installer interface {
	InstallBeforeHook(className, methodName string, arity int, cb Callback) error
}

// Sender hands a classified event to the observing process. It must not
// block the caller. *relay.Relay satisfies it.
type Sender interface {
	Send(ev broadcast.Event)
}

// Interceptor turns intercepted calls into events.
type Interceptor struct {
	sender  Sender
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithLogger sets the logger. The record block is logged at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(i *Interceptor) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Interceptor) { i.metrics = m }
}

// WithClock overrides the clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(i *Interceptor) {
		if now != nil {
			i.now = now
		}
	}
}

// NewInterceptor returns an Interceptor that forwards accepted events to
// sender.
func NewInterceptor(sender Sender, opts ...Option) *Interceptor {
	i := &Interceptor{
		sender: sender,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install hooks every enabled point of role. A point that cannot be
// installed is logged and skipped. It returns the number of points
// installed.
func (i *Interceptor) Install(inst Installer, role Role) int {
	i.logger.Debug("setting up broadcast hooks", "role", role)
	installed := 0
	for _, p := range Points(role) {
		if err := i.installPoint(inst, p); err != nil {
			i.logger.Warn("hook setup failed", "point", p.String(), "source", p.Source, "error", err)
			continue
		}
		installed++
		i.logger.Debug("hook setup completed", "source", p.Source)
	}
	return installed
}

func (i *Interceptor) installPoint(inst Installer, p Point) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("installer panicked: %v", r)
		}
	}()
	return inst.InstallBeforeHook(p.Class, p.Method, p.Arity, i.Callback(p.Source))
}

// Callback returns the before-callback for a point labeled source. It
// never panics.
func (i *Interceptor) Callback(source string) Callback {
	return func(args []any) {
		defer func() {
			if r := recover(); r != nil {
				i.logger.Error("handle broadcast intent", "source", source, "panic", r)
			}
		}()
		i.Handle(source, args)
	}
}

// Handle processes one intercepted call. Calls without an intent argument,
// the monitor's own relay traffic and filtered actions are ignored.
func (i *Interceptor) Handle(source string, args []any) {
	rec, ok := normalize.Extract(args)
	if !ok {
		return
	}
	i.metrics.Intercepted()

	if rec.Action == broadcast.DataAction {
		return
	}
	if !taxonomy.ShouldLog(rec.Action, rec.PackageName) {
		i.metrics.Filtered()
		i.logger.Debug("broadcast filtered out", "action", rec.Action)
		return
	}

	category := taxonomy.Categorize(rec.Action)
	priority := taxonomy.Priority(rec.Action)
	timestamp := broadcast.Timestamp(i.now())
	tagged := normalize.Tag(source, rec.Action)

	if i.logger.Enabled(context.Background(), slog.LevelDebug) {
		i.logger.Debug(recordBlock(timestamp, category, priority, tagged, rec))
	}

	src, action := normalize.SplitTag(tagged)
	if i.sender == nil {
		return
	}
	i.sender.Send(broadcast.Event{
		Timestamp:   timestamp,
		Action:      action,
		Source:      src,
		PackageName: rec.PackageName,
		Extras:      rec.Extras,
		Category:    category,
		Priority:    priority,
	})
}

func recordBlock(timestamp, category string, priority int, action string, rec normalize.Record) string {
	var b strings.Builder
	b.WriteString("========== Broadcast Record ==========\n")
	fmt.Fprintf(&b, "Time: %s\n", timestamp)
	fmt.Fprintf(&b, "Category: %s (Priority: %d)\n", category, priority)
	fmt.Fprintf(&b, "Action: %s\n", action)
	fmt.Fprintf(&b, "Package: %s\n", rec.PackageName)
	fmt.Fprintf(&b, "Component: %s\n", rec.Component)
	fmt.Fprintf(&b, "Categories: %s\n", rec.Categories)
	fmt.Fprintf(&b, "Data: %s\n", rec.Data)
	fmt.Fprintf(&b, "Type: %s\n", rec.Type)
	fmt.Fprintf(&b, "Flags: %s\n", rec.Flags)
	fmt.Fprintf(&b, "Extras:\n%s\n", rec.Extras)
	b.WriteString("==============================")
	return b.String()
}
