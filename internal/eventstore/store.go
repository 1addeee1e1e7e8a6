// Package eventstore holds the observing process's bounded, newest-first
// log of broadcast events and publishes a snapshot after every change.
package eventstore

import (
	"context"
	"sync"

	"github.com/runnerr0/broadcastmonitor/internal/broadcast"
)

// Snapshot is an immutable view of the store. Events is newest first and
// must not be modified. Appended counts appends since the last clear and
// Clears counts clears, so a subscriber can tell what changed since its
// previous view.
type Snapshot struct {
	Events   []broadcast.Event
	Appended uint64
	Clears   uint64
}

// Store is safe for concurrent use. Build one per process with New and
// release subscribers with Close.
type Store struct {
	capacity int

	mu       sync.Mutex
	current  Snapshot
	subs     map[*subscription]struct{}
	closed   bool
	onChange func(Snapshot)
}

type subscription struct {
	ch   chan Snapshot
	stop func() bool
}

// New returns an empty store holding at most capacity events. A capacity
// outside (0, broadcast.MaxEvents] is replaced with broadcast.MaxEvents.
func New(capacity int) *Store {
	if capacity <= 0 || capacity > broadcast.MaxEvents {
		capacity = broadcast.MaxEvents
	}
	return &Store{
		capacity: capacity,
		current:  Snapshot{Events: []broadcast.Event{}},
		subs:     make(map[*subscription]struct{}),
	}
}

// OnChange registers fn to run, under the store lock, with every published
// snapshot. fn must be fast and must not call back into the store.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Capacity returns the maximum number of events kept.
func (s *Store) Capacity() int {
	return s.capacity
}

// Append inserts ev as the newest event, evicting the oldest ones beyond
// capacity, and publishes the new snapshot.
func (s *Store) Append(ev broadcast.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	keep := len(s.current.Events)
	if keep > s.capacity-1 {
		keep = s.capacity - 1
	}
	events := make([]broadcast.Event, 0, keep+1)
	events = append(events, ev)
	events = append(events, s.current.Events[:keep]...)

	s.publishLocked(Snapshot{
		Events:   events,
		Appended: s.current.Appended + 1,
		Clears:   s.current.Clears,
	})
}

// Clear removes every event and publishes an empty snapshot.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.publishLocked(Snapshot{Events: []broadcast.Event{}, Clears: s.current.Clears + 1})
}

// Count returns the number of events currently held.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.current.Events)
}

// List returns a copy of the events, newest first.
func (s *Store) List() []broadcast.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]broadcast.Event, len(s.current.Events))
	copy(out, s.current.Events)
	return out
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe returns a channel that immediately yields the current snapshot
// and then each later one. A slow reader only ever sees the latest
// snapshot; intermediate ones are replaced, never queued. The channel is
// closed when ctx is done or the store is closed. A subscription holds no
// goroutine while it waits; one with a context that is never cancelled
// stays registered until Close.
func (s *Store) Subscribe(ctx context.Context) <-chan Snapshot {
	sub := &subscription{ch: make(chan Snapshot, 1)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(sub.ch)
		return sub.ch
	}
	sub.ch <- s.current
	s.subs[sub] = struct{}{}
	sub.stop = context.AfterFunc(ctx, func() { s.unsubscribe(sub) })
	return sub.ch
}


// Close closes every subscription. Later appends and clears are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for sub := range s.subs {
		delete(s.subs, sub)
		sub.stop()
		close(sub.ch)
	}
}

func (s *Store) unsubscribe(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub]; !ok {
		return
	}
	delete(s.subs, sub)
	close(sub.ch)
}

// publishLocked swaps in snap and offers it to every subscriber, replacing
// any snapshot the subscriber has not read yet. Only publishLocked sends on
// subscriber channels and it holds s.mu, so the send never blocks.
func (s *Store) publishLocked(snap Snapshot) {
	s.current = snap
	for sub := range s.subs {
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- snap
	}
	if s.onChange != nil {
		s.onChange(snap)
	}
}
