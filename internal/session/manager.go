package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/at-ishikawa/mindbank/internal/capture"
	"github.com/at-ishikawa/mindbank/internal/collection"
	"github.com/at-ishikawa/mindbank/internal/speech"
	"github.com/at-ishikawa/mindbank/internal/translation"
)

var ErrNotSignedIn = errors.New("user is not signed in")

// Manager creates a State on sign-in and tears it down on sign-out.
type Manager struct {
	collections     *collection.Service
	captureDeps     capture.Dependencies
	translator      translation.Translator
	defaultLanguage string

	mu       sync.Mutex
	sessions map[string]*State
}

func NewManager(collections *collection.Service, captureDeps capture.Dependencies, translator translation.Translator, defaultLanguage string) *Manager {
	if captureDeps.Committer == nil {
		captureDeps.Committer = collections
	}
	return &Manager{
		collections:     collections,
		captureDeps:     captureDeps,
		translator:      translator,
		defaultLanguage: defaultLanguage,
		sessions:        make(map[string]*State),
	}
}

// SignIn returns the user's state, building it and its subscription on the
// first call. The initial item set is loaded before SignIn returns.
func (m *Manager) SignIn(ctx context.Context, userID string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.sessions[userID]; ok {
		select {
		case <-state.Done():
			// The subscription was lost; build a fresh state below.
			state.close()
			delete(m.sessions, userID)
		default:
			return state, nil
		}
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub, err := m.collections.Subscribe(subCtx, userID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe to items of %s: %w", userID, err)
	}

	state := &State{
		UserID:       userID,
		Pipeline:     capture.NewPipeline(userID, m.captureDeps),
		Overlay:      translation.NewOverlay(m.translator, m.defaultLanguage),
		Player:       &speech.Player{},
		subscription: sub,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	select {
	case snapshot := <-sub.Updates():
		state.apply(snapshot)
	case <-ctx.Done():
		cancel()
		sub.Close()
		return nil, ctx.Err()
	}
	go state.run()

	m.sessions[userID] = state
	slog.Default().Info("signed in", "user_id", userID, "items", len(state.items))
	return state, nil
}

func (m *Manager) Get(userID string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNotSignedIn
	}
	return state, nil
}

// SignOut ends the user's subscriptions and drops the session, including any
// draft or translation in it.
func (m *Manager) SignOut(userID string) {
	m.mu.Lock()
	state, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	m.collections.Unsubscribe(userID)
	if ok {
		state.close()
		slog.Default().Info("signed out", "user_id", userID)
	}
}

func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close signs every user out.
func (m *Manager) Close() {
	m.mu.Lock()
	userIDs := make([]string, 0, len(m.sessions))
	for userID := range m.sessions {
		userIDs = append(userIDs, userID)
	}
	m.mu.Unlock()

	for _, userID := range userIDs {
		m.SignOut(userID)
	}
}
