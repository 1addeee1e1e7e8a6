package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/runnerr0/broadcastmonitor/internal/config"
	"github.com/runnerr0/broadcastmonitor/internal/relay"
)

// overrideTransport returns cfg.Relay with the transport replaced when a
// command flag sets one.
func overrideTransport(cfg *config.Config, flag string) (config.RelayConfig, error) {
	rc := cfg.Relay
	if flag == "" {
		return rc, nil
	}
	switch flag {
	case config.TransportGRPC, config.TransportSpool, config.TransportLoopback:
		rc.Transport = flag
		return rc, nil
	}
	return rc, fmt.Errorf("%w: %q (use grpc, spool, or loopback)", config.ErrInvalidTransport, flag)
}

func sendTimeout(rc config.RelayConfig) time.Duration {
	return time.Duration(rc.SendTimeoutMS) * time.Millisecond
}

// openChannel returns the sending end of the transport. Loopback sends on
// bus, which the caller must listen on in the same process.
func openChannel(rc config.RelayConfig, bus *relay.Bus) (relay.Channel, func(), error) {
	switch rc.Transport {
	case config.TransportGRPC:
		path, err := config.ExpandPath(rc.Socket)
		if err != nil {
			return nil, nil, err
		}
		ch, err := relay.DialUnix(path)
		if err != nil {
			return nil, nil, err
		}
		return ch, func() { _ = ch.Close() }, nil
	case config.TransportSpool:
		dir, err := config.ExpandPath(rc.SpoolDir)
		if err != nil {
			return nil, nil, err
		}
		ch, err := relay.NewSpoolChannel(dir)
		if err != nil {
			return nil, nil, err
		}
		return ch, func() {}, nil
	case config.TransportLoopback:
		return bus, func() {}, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidTransport, rc.Transport)
}

// openListener returns the receiving end of the transport for pkg.
func openListener(rc config.RelayConfig, pkg string, queue int, bus *relay.Bus, logger *slog.Logger) (relay.Listener, func(), error) {
	switch rc.Transport {
	case config.TransportGRPC:
		path, err := config.ExpandPath(rc.Socket)
		if err != nil {
			return nil, nil, err
		}
		srv, err := relay.ListenUnix(path, pkg, logger)
		if err != nil {
			return nil, nil, err
		}
		return srv, srv.Close, nil
	case config.TransportSpool:
		dir, err := config.ExpandPath(rc.SpoolDir)
		if err != nil {
			return nil, nil, err
		}
		l, err := relay.NewSpoolListener(dir, pkg, logger)
		if err != nil {
			return nil, nil, err
		}
		return l, func() {}, nil
	case config.TransportLoopback:
		inbox := bus.Subscribe(pkg, queue)
		return inbox, inbox.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidTransport, rc.Transport)
}
