package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/runnerr0/broadcastmonitor/internal/broadcast"
	"github.com/runnerr0/broadcastmonitor/internal/config"
	"github.com/runnerr0/broadcastmonitor/internal/hook"
	"github.com/runnerr0/broadcastmonitor/internal/intent"
	"github.com/runnerr0/broadcastmonitor/internal/monitor"
	"github.com/runnerr0/broadcastmonitor/internal/relay"
)

const (
	defaultPoint    = "ContextImpl-sendBroadcast"
	loopbackTimeout = 2 * time.Second
)

// Execute implements the go-flags Commander interface for TestCommand.
func (c *TestCommand) Execute(args []string) error {
	cfg, logger, err := setup(c.globals)
	if err != nil {
		return err
	}
	return c.executeWith(cfg, logger, os.Stdout)
}

func (c *TestCommand) executeWith(cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	rc, err := overrideTransport(cfg, c.Transport)
	if err != nil {
		return err
	}
	return sendThroughHook(cfg, rc, logger, out, testBroadcast(time.Now()), defaultPoint, jsonOutput(c.globals))
}

// testBroadcast builds the synthetic broadcast used to check the relay path.
func testBroadcast(now time.Time) *intent.Intent {
	in := intent.New(broadcast.TestAction)
	in.PutExtra("test_key", "test_value")
	in.PutExtra("timestamp", now.UnixMilli())
	in.PutExtra("test_message", "Broadcast monitor test")
	in.PutExtra("sender", "bcastmon")
	return in
}

// Execute implements the go-flags Commander interface for SendCommand.
func (c *SendCommand) Execute(args []string) error {
	if c.Action == "" {
		return fmt.Errorf("--action is required for send command")
	}
	cfg, logger, err := setup(c.globals)
	if err != nil {
		return err
	}
	return c.executeWith(cfg, logger, os.Stdout)
}

func (c *SendCommand) executeWith(cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	if c.Action == "" {
		return fmt.Errorf("--action is required for send command")
	}
	rc, err := overrideTransport(cfg, c.Transport)
	if err != nil {
		return err
	}

	in := intent.New(c.Action).SetPackage(c.Package)
	keys := make([]string, 0, len(c.Extras))
	for k := range c.Extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		in.PutExtra(k, c.Extras[k])
	}

	point := c.Point
	if point == "" {
		point = defaultPoint
	}
	return sendThroughHook(cfg, rc, logger, out, in, point, jsonOutput(c.globals))
}

func jsonOutput(globals *GlobalFlags) bool {
	return globals != nil && globals.JSON
}

// recordingChannel remembers what was handed to the transport and whether
// it was accepted.
type recordingChannel struct {
	relay.Channel

	mu     sync.Mutex
	sent   []*intent.Intent
	failed []error
}

func (c *recordingChannel) Broadcast(ctx context.Context, msg *intent.Intent) error {
	err := c.Channel.Broadcast(ctx, msg)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failed = append(c.failed, err)
	} else {
		c.sent = append(c.sent, msg)
	}
	return err
}

// sendThroughHook calls the method behind point on a simulated app process
// with the interceptor installed, so in takes the same path as any
// intercepted broadcast.
func sendThroughHook(cfg *config.Config, rc config.RelayConfig, logger *slog.Logger, out io.Writer, in *intent.Intent, pointSource string, asJSON bool) error {
	point, ok := hook.FindPoint(hook.RoleApp, pointSource)
	if !ok {
		return fmt.Errorf("unknown interception point %q (see bcastmon points --all)", pointSource)
	}
	method, ok := platformMethod(point)
	if !ok {
		return fmt.Errorf("no platform method for %s", point)
	}

	bus := relay.NewBus()
	var obs *monitor.Observer
	if rc.Transport == config.TransportLoopback {
		listener, closeListener, err := openListener(rc, cfg.Monitor.Package, cfg.Monitor.QueueSize, bus, logger)
		if err != nil {
			return err
		}
		defer closeListener()

		obs = monitor.New(monitor.Config{Capacity: cfg.Monitor.Capacity, Workers: 1, QueueSize: cfg.Monitor.QueueSize}, monitor.WithLogger(logger))
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- obs.Serve(ctx, listener) }()
		defer func() {
			cancel()
			<-done
		}()
	}

	ch, closeChannel, err := openChannel(rc, bus)
	if err != nil {
		return err
	}
	defer closeChannel()

	rec := &recordingChannel{Channel: ch}
	r := relay.New(rec,
		relay.WithTarget(cfg.Monitor.Package),
		relay.WithTimeout(sendTimeout(rc)),
		relay.WithLogger(logger),
	)

	host := hook.NewHost(hook.PlatformMethods(hook.RoleApp)...)
	interceptor := hook.NewInterceptor(r, hook.WithLogger(logger))
	interceptor.Install(host, hook.RoleApp)
	if host.Hooked(method.Class, method.Name, method.Arity) == 0 {
		return fmt.Errorf("interception point %s is disabled", point.Source)
	}

	if err := host.Call(method.Class, method.Name, method.Args(in)...); err != nil {
		return err
	}
	r.Wait()

	rec.mu.Lock()
	sent, failed := rec.sent, rec.failed
	rec.mu.Unlock()

	if len(failed) > 0 {
		return fmt.Errorf("relay %s: %w", rc.Transport, errors.Join(failed...))
	}
	if len(sent) == 0 {
		fmt.Fprintf(out, "%s was intercepted but not logged (filtered)\n", in.Action)
		return nil
	}

	printer := monitor.NewPrinter(out, asJSON, true)
	if obs != nil {
		if !waitForEvents(obs, len(sent), loopbackTimeout) {
			return errors.New("loopback observer did not receive the broadcast")
		}
		snap := obs.Store().Snapshot()
		for i := len(snap.Events) - 1; i >= 0; i-- {
			if err := printer.Print(snap.Events[i]); err != nil {
				return err
			}
		}
		return nil
	}

	for _, msg := range sent {
		ev, err := relay.Decode(msg, time.Now())
		if err != nil {
			return err
		}
		if !asJSON {
			fmt.Fprintf(out, "sent via %s:\n", rc.Transport)
		}
		if err := printer.Print(ev); err != nil {
			return err
		}
	}
	return nil
}

// platformMethod returns the concrete method a point hooks. Points that
// match every overload resolve to the platform's single declared arity.
func platformMethod(p hook.Point) (hook.Method, bool) {
	for _, m := range hook.PlatformMethods(hook.RoleApp) {
		if m.Class != p.Class || m.Name != p.Method {
			continue
		}
		if p.Arity == hook.AnyArity || m.Arity == p.Arity {
			return m, true
		}
	}
	return hook.Method{}, false
}

func waitForEvents(obs *monitor.Observer, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if obs.Store().Count() >= n {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return obs.Store().Count() >= n
}
