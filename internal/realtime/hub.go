// Package realtime fans item snapshots out to the subscribers of each user.
package realtime

import (
	"sync"

	"github.com/at-ishikawa/mindbank/internal/item"
)

// Snapshot is the full, sorted item set of one user.
type Snapshot []item.Item

// Hub keeps the live subscriptions per user. Publishing never blocks: each
// subscription holds only the newest snapshot it has not read yet.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscription receives snapshots for one user until it is closed.
type Subscription struct {
	hub     *Hub
	userID  string
	updates chan Snapshot
	done    chan struct{}
	once    sync.Once
}

// Subscribe registers a new subscription for the user.
func (h *Hub) Subscribe(userID string) *Subscription {
	sub := &Subscription{
		hub:     h,
		userID:  userID,
		updates: make(chan Snapshot, 1),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.closeChannels()
		return sub
	}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	return sub
}

// Publish delivers the snapshot to every subscriber of the user, replacing
// any snapshot they have not consumed yet.
func (h *Hub) Publish(userID string, snapshot Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[userID] {
		sub.offer(snapshot)
	}
}

// Subscribers returns the number of live subscriptions for the user.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// CloseUser ends every subscription of the user, as on sign-out.
func (h *Hub) CloseUser(userID string) {
	h.mu.Lock()
	subs := h.subs[userID]
	delete(h.subs, userID)
	h.mu.Unlock()

	for sub := range subs {
		sub.closeChannels()
	}
}

// Close ends every subscription. Later subscriptions are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[*Subscription]struct{})
	h.closed = true
	h.mu.Unlock()

	for _, subs := range all {
		for sub := range subs {
			sub.closeChannels()
		}
	}
}

// Updates yields snapshots. The channel is never closed; select on Done.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

// Done is closed once the subscription has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unregisters the subscription.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	if subs, ok := s.hub.subs[s.userID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.hub.subs, s.userID)
		}
	}
	s.hub.mu.Unlock()
	s.closeChannels()
}

// offer must be called with the hub lock held.
func (s *Subscription) offer(snapshot Snapshot) {
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- snapshot:
	default:
	}
}

func (s *Subscription) closeChannels() {
	s.once.Do(func() {
		close(s.done)
	})
}
