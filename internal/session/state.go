// Package session holds the per-user application state: the live item list,
// the capture pipeline, the translation overlay and the active playback.
package session

import (
	"context"
	"sync"

	"github.com/at-ishikawa/mindbank/internal/bookshelf"
	"github.com/at-ishikawa/mindbank/internal/capture"
	"github.com/at-ishikawa/mindbank/internal/collection"
	"github.com/at-ishikawa/mindbank/internal/item"
	"github.com/at-ishikawa/mindbank/internal/realtime"
	"github.com/at-ishikawa/mindbank/internal/speech"
	"github.com/at-ishikawa/mindbank/internal/translation"
)

// State is one signed-in user. The item list is only ever replaced by a
// subscription snapshot; it never contains the draft.
type State struct {
	UserID   string
	Pipeline *capture.Pipeline
	Overlay  *translation.Overlay
	Player   *speech.Player

	mu      sync.RWMutex
	items   []item.Item
	version uint64

	subscription *realtime.Subscription
	cancel       context.CancelFunc
	done         chan struct{}
}

// Items returns the latest item snapshot, newest first.
func (s *State) Items() []item.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]item.Item(nil), s.items...)
}

// Version counts the snapshots applied so far.
func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *State) Views() collection.Views {
	return collection.BuildViews(s.Items())
}

func (s *State) Books() []bookshelf.Book {
	return bookshelf.Aggregate(s.Items())
}

func (s *State) Book(title string) (bookshelf.Book, bool) {
	return bookshelf.Find(s.Books(), title)
}

// Find returns a live item by id.
func (s *State) Find(id string) (item.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.ID == id {
			return it, true
		}
	}
	return item.Item{}, false
}

// Done is closed once the subscription feeding the state has ended.
func (s *State) Done() <-chan struct{} {
	return s.done
}

func (s *State) apply(snapshot realtime.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]item.Item(nil), snapshot...)
	item.SortNewestFirst(s.items)
	s.version++
}

func (s *State) run() {
	defer close(s.done)
	for {
		select {
		case snapshot := <-s.subscription.Updates():
			s.apply(snapshot)
		case <-s.subscription.Done():
			return
		}
	}
}

func (s *State) close() {
	s.cancel()
	s.subscription.Close()
	<-s.done
	s.Pipeline.Close()
	s.Overlay.ClearAll()
	s.Player.Stop()
}
