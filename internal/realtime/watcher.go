package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Watcher is one live subscriber.  Events are queued on a bounded buffer;
// when the buffer is full the hub drops the watcher and closes its channel.
type Watcher struct {
	ID      string
	PartyID string

	mu     sync.Mutex
	send   chan Event
	closed bool
}

// NewWatcher returns a watcher for partyID with room for buffer pending
// events.  partyID may be empty for anonymous viewers.
func NewWatcher(partyID string, buffer int) *Watcher {
	if buffer < 1 {
		buffer = 1
	}
	return &Watcher{
		ID:      uuid.NewString(),
		PartyID: partyID,
		send:    make(chan Event, buffer),
	}
}

// Events is closed once the watcher has been unsubscribed or dropped.
func (w *Watcher) Events() <-chan Event { return w.send }

// Closed reports whether the watcher no longer receives events.
func (w *Watcher) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// offer queues ev without blocking and reports whether it fit.
func (w *Watcher) offer(ev Event) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	select {
	case w.send <- ev:
		return true
	default:
		return false
	}
}

// Reply queues a direct message such as an ack.  It never blocks.
func (w *Watcher) Reply(ev Event) bool { return w.offer(ev) }

func (w *Watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.send)
	}
}
