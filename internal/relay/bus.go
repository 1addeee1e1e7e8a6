package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/runnerr0/broadcastmonitor/internal/intent"
)

// Bus is an in-process Channel. Receivers register per package and each
// owns a bounded queue; a full queue drops the message.
type Bus struct {
	mu      sync.RWMutex
	inboxes map[*Inbox]struct{}
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{inboxes: make(map[*Inbox]struct{})}
}

// Inbox is one registered receiver on a Bus.
type Inbox struct {
	bus   *Bus
	pkg   string
	queue chan *intent.Intent
	once  sync.Once
}

// Subscribe registers a receiver for pkg with room for buffer messages.
func (b *Bus) Subscribe(pkg string, buffer int) *Inbox {
	if buffer <= 0 {
		buffer = 1
	}
	in := &Inbox{bus: b, pkg: pkg, queue: make(chan *intent.Intent, buffer)}
	b.mu.Lock()
	b.inboxes[in] = struct{}{}
	b.mu.Unlock()
	return in
}

// Broadcast delivers msg to every inbox whose package matches. An empty
// msg.Package reaches every inbox.
func (b *Bus) Broadcast(ctx context.Context, msg *intent.Intent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	matched := 0
	dropped := 0
	for in := range b.inboxes {
		if msg.Package != "" && msg.Package != in.pkg {
			continue
		}
		matched++
		select {
		case in.queue <- msg:
		default:
			dropped++
		}
	}

	switch {
	case matched == 0:
		return fmt.Errorf("%w: %s", ErrNotAddressed, msg.Package)
	case dropped > 0:
		return fmt.Errorf("%w: %d of %d receivers", ErrQueueFull, dropped, matched)
	}
	return nil
}

// C returns the inbox's queue. It is closed by Close.
func (in *Inbox) C() <-chan *intent.Intent {
	return in.queue
}

// Listen hands queued messages to h until ctx is cancelled or the inbox is
// closed.
func (in *Inbox) Listen(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-in.queue:
			if !ok {
				return nil
			}
			h(msg)
		}
	}
}

// Close unregisters the inbox and closes its queue.
func (in *Inbox) Close() {
	in.once.Do(func() {
		in.bus.mu.Lock()
		delete(in.bus.inboxes, in)
		in.bus.mu.Unlock()
		close(in.queue)
	})
}
