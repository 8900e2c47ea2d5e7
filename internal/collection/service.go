// Package collection owns every write to a user's items and keeps the
// realtime subscribers of that user in sync.
package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/at-ishikawa/mindbank/internal/item"
	"github.com/at-ishikawa/mindbank/internal/metrics"
	"github.com/at-ishikawa/mindbank/internal/realtime"
)

var (
	ErrInvalidItem          = errors.New("invalid item")
	ErrNotFavoritable       = errors.New("only quotes can be added to the quotebook")
	ErrConfirmationRequired = errors.New("bulk clear requires confirmation")
)

// PersistenceError is a store operation the store rejected.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Service is the collection state machine.
type Service struct {
	repo     item.Repository
	hub      *realtime.Hub
	recorder metrics.Recorder

	// publishLocks serializes reading and publishing per user, so a snapshot
	// read earlier is never delivered after a newer one.
	mu           sync.Mutex
	publishLocks map[string]*sync.Mutex
}

func NewService(repo item.Repository, hub *realtime.Hub, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{repo: repo, hub: hub, recorder: recorder, publishLocks: make(map[string]*sync.Mutex)}
}

// List returns the user's items, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]item.Item, error) {
	items, err := s.repo.FindAll(ctx, userID)
	if err != nil {
		return nil, s.persistenceError("list", err)
	}
	item.SortNewestFirst(items)
	return items, nil
}

// Create persists a new item for the user. Items that cannot be favorited are
// always stored outside the quotebook.
func (s *Service) Create(ctx context.Context, userID string, draft item.Item) (item.Item, error) {
	it, err := prepare(userID, draft)
	if err != nil {
		return item.Item{}, err
	}

	created, err := s.repo.Create(ctx, it)
	if err != nil {
		return item.Item{}, s.persistenceError("create", err)
	}
	slog.Default().Debug("item created", "user_id", userID, "item_id", created.ID, "type", created.Type)
	s.publish(ctx, userID)
	return created, nil
}

func prepare(userID string, draft item.Item) (item.Item, error) {
	it := draft
	it.ID = ""
	it.UserID = userID
	it.Text = strings.TrimSpace(it.Text)
	it.Source = strings.TrimSpace(it.Source)
	it.Author = strings.TrimSpace(it.Author)
	it.Analysis.Tags = item.NormalizeTags(it.Analysis.Tags)

	if !it.Type.Valid() {
		return item.Item{}, fmt.Errorf("%w: unknown type %q", ErrInvalidItem, it.Type)
	}
	if it.Text == "" {
		return item.Item{}, fmt.Errorf("%w: text is empty", ErrInvalidItem)
	}
	if it.Type.RequiresSource() && !it.HasSource() {
		return item.Item{}, fmt.Errorf("%w: a %s needs a source", ErrInvalidItem, it.Type)
	}
	if !it.Type.CanFavorite() {
		it.InQuotebook = false
	}
	return it, nil
}

// Update merges the patch into the item. Putting a non-quote in the quotebook
// or removing the source of a note or insight is rejected.
func (s *Service) Update(ctx context.Context, userID, id string, patch item.Patch) (item.Item, error) {
	if patch.Source != nil {
		trimmed := strings.TrimSpace(*patch.Source)
		patch.Source = &trimmed
	}
	if patch.Author != nil {
		trimmed := strings.TrimSpace(*patch.Author)
		patch.Author = &trimmed
	}

	if (patch.InQuotebook != nil && *patch.InQuotebook) || (patch.Source != nil && *patch.Source == "") {
		current, err := s.repo.Find(ctx, userID, id)
		if err != nil {
			return item.Item{}, s.persistenceError("update", err)
		}
		if patch.InQuotebook != nil && *patch.InQuotebook && !current.Type.CanFavorite() {
			return item.Item{}, ErrNotFavoritable
		}
		if patch.Source != nil && *patch.Source == "" && current.Type.RequiresSource() {
			return item.Item{}, fmt.Errorf("%w: a %s needs a source", ErrInvalidItem, current.Type)
		}
	}

	updated, err := s.repo.Update(ctx, userID, id, patch)
	if err != nil {
		return item.Item{}, s.persistenceError("update", err)
	}
	s.publish(ctx, userID)
	return updated, nil
}

// ToggleFavorite sets whether the item is in the quotebook.
func (s *Service) ToggleFavorite(ctx context.Context, userID, id string, desired bool) (item.Item, error) {
	return s.Update(ctx, userID, id, item.Patch{InQuotebook: &desired})
}

// Delete removes the item permanently. Books are derived, so nothing else
// needs cleaning up.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return s.persistenceError("delete", err)
	}
	s.recorder.RecordItemsDeleted(1)
	s.publish(ctx, userID)
	return nil
}

// ClearPreview returns how many items a bulk clear would delete.
func (s *Service) ClearPreview(ctx context.Context, userID string) (int, error) {
	items, err := s.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(BuildViews(items).Inbox), nil
}

// BulkClear deletes every inbox item one by one. It is not transactional: on
// partial failure the remaining items stay and one aggregate error is returned.
func (s *Service) BulkClear(ctx context.Context, userID string, confirmed bool) (int, error) {
	if !confirmed {
		return 0, ErrConfirmationRequired
	}

	items, err := s.List(ctx, userID)
	if err != nil {
		return 0, err
	}

	var errs []error
	deleted := 0
	for _, it := range BuildViews(items).Inbox {
		if err := s.repo.Delete(ctx, userID, it.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", it.ID, err))
			continue
		}
		deleted++
	}
	s.recorder.RecordItemsDeleted(deleted)
	if deleted > 0 {
		s.publish(ctx, userID)
	}

	if len(errs) > 0 {
		slog.Default().Warn("bulk clear partially failed", "user_id", userID, "deleted", deleted, "failed", len(errs))
		return deleted, s.persistenceError("bulk clear", errors.Join(errs...))
	}
	return deleted, nil
}

// Subscribe opens a realtime subscription and immediately publishes the
// current item set. The subscription ends with ctx, on Close, or on sign-out.
func (s *Service) Subscribe(ctx context.Context, userID string) (*realtime.Subscription, error) {
	sub := s.hub.Subscribe(userID)
	s.recorder.AddSubscriptions(1)
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.Done():
		}
		s.recorder.AddSubscriptions(-1)
	}()

	unlock := s.lockPublish(userID)
	defer unlock()
	items, err := s.List(ctx, userID)
	if err != nil {
		sub.Close()
		return nil, err
	}
	s.hub.Publish(userID, items)
	return sub, nil
}

// Unsubscribe ends every subscription of the user.
func (s *Service) Unsubscribe(userID string) {
	s.hub.CloseUser(userID)
}

func (s *Service) lockPublish(userID string) func() {
	s.mu.Lock()
	l, ok := s.publishLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.publishLocks[userID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) publish(ctx context.Context, userID string) {
	unlock := s.lockPublish(userID)
	defer unlock()
	items, err := s.List(ctx, userID)
	if err != nil {
		slog.Default().Warn("failed to load items for subscribers", "user_id", userID, "error", err)
		return
	}
	s.hub.Publish(userID, items)
}

func (s *Service) persistenceError(op string, err error) error {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	s.recorder.RecordPersistenceFailure(op)
	return &PersistenceError{Op: op, Err: err}
}
