package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-realtime/internal/model"
)

// SnapshotSource loads the current seats of a showing.
type SnapshotSource interface {
	SeatsForShowing(ctx context.Context, showingID uint64) ([]model.Seat, error)
}

// ReleaseFunc releases every hold of a party.  The hub calls it when a
// watcher of that party unsubscribes.
type ReleaseFunc func(ctx context.Context, partyID string)

// ErrSlowWatcher is returned by Subscribe when the snapshot does not fit
// into the watcher's buffer.
var ErrSlowWatcher = errors.New("watcher buffer full")

// group is the set of watchers of one showing.  mu orders everything that
// happens to the showing: mutations with their publish, and subscriptions
// with their snapshot.
type group struct {
	mu       sync.Mutex
	seq      uint64
	watchers map[string]*Watcher
}

// Hub keeps the per-showing watcher groups.
type Hub struct {
	log    *zap.Logger
	source SnapshotSource

	mu         sync.RWMutex
	groups     map[uint64]*group
	membership map[string]map[uint64]struct{}
	release    ReleaseFunc
}

// NewHub returns a hub that reads snapshots from source.
func NewHub(source SnapshotSource, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:        log.Named("hub"),
		source:     source,
		groups:     make(map[uint64]*group),
		membership: make(map[string]map[uint64]struct{}),
	}
}

// SetReleaseHook installs the function called on unsubscribe.
func (h *Hub) SetReleaseHook(fn ReleaseFunc) {
	h.mu.Lock()
	h.release = fn
	h.mu.Unlock()
}

func (h *Hub) group(showingID uint64) *group {
	h.mu.RLock()
	g, ok := h.groups[showingID]
	h.mu.RUnlock()
	if ok {
		return g
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if g, ok = h.groups[showingID]; !ok {
		g = &group{watchers: make(map[string]*Watcher)}
		h.groups[showingID] = g
	}
	return g
}

// Serialize runs fn while holding the ordering lock of the showing.  Events
// passed to publish are delivered in call order before the lock is
// released, so watchers observe them in the order the mutations committed.
// publish returns the sequence number assigned to the event.
func (h *Hub) Serialize(showingID uint64, fn func(publish func(Event) uint64) error) error {
	g := h.group(showingID)
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(func(ev Event) uint64 { return h.deliverLocked(showingID, g, ev) })
}

// Publish delivers ev to every watcher of the showing except ev.Origin and
// returns its sequence number.
func (h *Hub) Publish(showingID uint64, ev Event) uint64 {
	var seq uint64
	_ = h.Serialize(showingID, func(publish func(Event) uint64) error {
		seq = publish(ev)
		return nil
	})
	return seq
}

// deliverLocked stamps ev and offers it to every watcher.  g.mu must be held.
// A watcher whose buffer is full is dropped from the group and closed; the
// transport notices the closed channel and unsubscribes it.
func (h *Hub) deliverLocked(showingID uint64, g *group, ev Event) uint64 {
	g.seq++
	ev.Seq = g.seq
	ev.ShowingID = showingID
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	for id, w := range g.watchers {
		if id == ev.Origin {
			continue
		}
		if w.offer(ev) {
			continue
		}
		delete(g.watchers, id)
		h.forget(w.ID, showingID)
		w.close()
		h.log.Warn("watcher dropped",
			zap.String("watcher_id", w.ID),
			zap.Uint64("showing_id", showingID),
			zap.String("event", string(ev.Type)),
		)
	}
	return ev.Seq
}

func (h *Hub) forget(watcherID string, showingID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.membership[watcherID]; ok {
		delete(set, showingID)
		if len(set) == 0 {
			delete(h.membership, watcherID)
		}
	}
}

// Subscribe adds w to the showing and sends it a snapshot.  Both happen
// under the showing's ordering lock, so the first event w receives after the
// snapshot is the first change the snapshot does not contain.
func (h *Hub) Subscribe(ctx context.Context, w *Watcher, showingID uint64) error {
	g := h.group(showingID)
	g.mu.Lock()
	defer g.mu.Unlock()

	seats, err := h.source.SeatsForShowing(ctx, showingID)
	if err != nil {
		return err
	}
	snap := Event{
		Type:      EventSnapshot,
		ShowingID: showingID,
		Seq:       g.seq,
		Seats:     seats,
		At:        time.Now().UTC(),
	}
	if !w.offer(snap) {
		return ErrSlowWatcher
	}
	g.watchers[w.ID] = w

	h.mu.Lock()
	set, ok := h.membership[w.ID]
	if !ok {
		set = make(map[uint64]struct{})
		h.membership[w.ID] = set
	}
	set[showingID] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("watcher subscribed",
		zap.String("watcher_id", w.ID),
		zap.String("party_id", w.PartyID),
		zap.Uint64("showing_id", showingID),
	)
	return nil
}

// Unsubscribe releases the holds of the watcher's party, then removes the
// watcher from every group and closes it.  It is safe to call more than once;
// only the first call on a subscribed watcher runs the release hook.
func (h *Hub) Unsubscribe(ctx context.Context, w *Watcher) {
	h.mu.RLock()
	release := h.release
	_, member := h.membership[w.ID]
	h.mu.RUnlock()
	if release != nil && member && w.PartyID != "" {
		release(ctx, w.PartyID)
	}

	h.mu.Lock()
	showings := h.membership[w.ID]
	delete(h.membership, w.ID)
	h.mu.Unlock()

	for showingID := range showings {
		g := h.group(showingID)
		g.mu.Lock()
		delete(g.watchers, w.ID)
		g.mu.Unlock()
	}
	w.close()
}

// Watchers returns how many watchers are subscribed to the showing.
func (h *Hub) Watchers(showingID uint64) int {
	h.mu.RLock()
	g, ok := h.groups[showingID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.watchers)
}

// Close detaches every watcher, releases the holds of their parties, then
// closes them.  It is used on shutdown and returns once all releases have
// run, so the store may be closed afterwards.  Transports see their channels
// closed and unsubscribe as usual without releasing a second time.
func (h *Hub) Close(ctx context.Context) {
	h.mu.Lock()
	release := h.release
	dropped := h.groups
	h.groups = make(map[uint64]*group)
	h.membership = make(map[string]map[uint64]struct{})
	h.mu.Unlock()

	var watchers []*Watcher
	parties := make(map[string]struct{})
	for _, g := range dropped {
		g.mu.Lock()
		for id, w := range g.watchers {
			delete(g.watchers, id)
			watchers = append(watchers, w)
			if w.PartyID != "" {
				parties[w.PartyID] = struct{}{}
			}
		}
		g.mu.Unlock()
	}
	if release != nil {
		for partyID := range parties {
			release(ctx, partyID)
		}
	}
	for _, w := range watchers {
		w.close()
	}
	h.log.Info("hub closed", zap.Int("parties_released", len(parties)))
}
