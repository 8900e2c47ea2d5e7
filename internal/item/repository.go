package item

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -source=repository.go -destination=../mocks/item/mock_repository.go -package=mock_item

var (
	ErrNotFound = errors.New("item not found")
	// ErrIDTaken is returned by Restore when an id already belongs to
	// another user.
	ErrIDTaken = errors.New("item id belongs to another user")
)

// Repository is the per-user document store. Create assigns the identifier
// and the creation timestamp; updates and deletes are unconditional.
type Repository interface {
	FindAll(ctx context.Context, userID string) ([]Item, error)
	Find(ctx context.Context, userID, id string) (Item, error)
	Create(ctx context.Context, it Item) (Item, error)
	Update(ctx context.Context, userID, id string, patch Patch) (Item, error)
	Delete(ctx context.Context, userID, id string) error
	// Restore writes items as they are, keeping their ids and timestamps.
	Restore(ctx context.Context, items []Item) error
}

// monotonicClock hands out strictly increasing timestamps.
type monotonicClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newMonotonicClock(now func() time.Time) *monotonicClock {
	if now == nil {
		now = time.Now
	}
	return &monotonicClock{now: now}
}

func (c *monotonicClock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// MemoryRepository keeps items in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]map[string]Item
	clock *monotonicClock
	newID func() string
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users: make(map[string]map[string]Item),
		clock: newMonotonicClock(nil),
		newID: uuid.NewString,
	}
}

func (r *MemoryRepository) FindAll(ctx context.Context, userID string) ([]Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]Item, 0, len(r.users[userID]))
	for _, it := range r.users[userID] {
		items = append(items, it)
	}
	SortNewestFirst(items)
	return items, nil
}

func (r *MemoryRepository) Find(ctx context.Context, userID, id string) (Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.users[userID][id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (r *MemoryRepository) Create(ctx context.Context, it Item) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	it.ID = r.newID()
	it.CreatedAt = r.clock.next()
	if r.users[it.UserID] == nil {
		r.users[it.UserID] = make(map[string]Item)
	}
	r.users[it.UserID][it.ID] = it
	return it, nil
}

func (r *MemoryRepository) Update(ctx context.Context, userID, id string, patch Patch) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.users[userID][id]
	if !ok {
		return Item{}, ErrNotFound
	}
	it = patch.Apply(it)
	r.users[userID][id] = it
	return it, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID][id]; !ok {
		return ErrNotFound
	}
	delete(r.users[userID], id)
	return nil
}

func (r *MemoryRepository) Restore(ctx context.Context, items []Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, it := range items {
		for userID, owned := range r.users {
			if _, ok := owned[it.ID]; ok && userID != it.UserID {
				return fmt.Errorf("%w: %s", ErrIDTaken, it.ID)
			}
		}
	}
	for _, it := range items {
		if r.users[it.UserID] == nil {
			r.users[it.UserID] = make(map[string]Item)
		}
		r.users[it.UserID][it.ID] = it
	}
	return nil
}
