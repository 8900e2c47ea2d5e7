// Package translation keeps the ephemeral translations shown over items.
// Nothing here is cached across requests or persisted.
package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/at-ishikawa/mindbank/internal/inference"
	"github.com/at-ishikawa/mindbank/internal/item"
)

// ErrSuperseded is returned to a request whose item was translated again, or
// cleared, before it finished.
var ErrSuperseded = errors.New("translation superseded by a newer request")

type Translator interface {
	Translate(ctx context.Context, req inference.TranslateRequest) (inference.Translation, error)
}

// Overlay holds at most one translation per item. The latest request for an
// item wins; older responses arriving later are dropped.
type Overlay struct {
	translator      Translator
	defaultLanguage string

	mu      sync.Mutex
	counter uint64
	latest  map[string]uint64
	entries map[string]inference.Translation
}

func NewOverlay(translator Translator, defaultLanguage string) *Overlay {
	return &Overlay{
		translator:      translator,
		defaultLanguage: defaultLanguage,
		latest:          make(map[string]uint64),
		entries:         make(map[string]inference.Translation),
	}
}

// Translate translates the item into targetLanguage, or the default language
// when it is empty. A failure keeps the previous translation of the item.
func (o *Overlay) Translate(ctx context.Context, it item.Item, targetLanguage string) (inference.Translation, error) {
	targetLanguage = strings.TrimSpace(targetLanguage)
	if targetLanguage == "" {
		targetLanguage = o.defaultLanguage
	}

	o.mu.Lock()
	o.counter++
	seq := o.counter
	o.latest[it.ID] = seq
	o.mu.Unlock()

	translation, err := o.translator.Translate(ctx, inference.TranslateRequest{
		Text:           it.Text,
		Definition:     it.Analysis.Definition,
		IsWord:         it.Type == item.TypeWord,
		TargetLanguage: targetLanguage,
	})

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.latest[it.ID] != seq {
		return inference.Translation{}, ErrSuperseded
	}
	if err != nil {
		var translationErr *inference.TranslationError
		if !errors.As(err, &translationErr) {
			err = &inference.TranslationError{Reason: "request failed", Err: err}
		}
		return inference.Translation{}, fmt.Errorf("translate item %s: %w", it.ID, err)
	}
	o.entries[it.ID] = translation
	return translation, nil
}

func (o *Overlay) Get(itemID string) (inference.Translation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	translation, ok := o.entries[itemID]
	return translation, ok
}

// Clear drops the item's translation. A request still in flight for it is
// dropped as well.
func (o *Overlay) Clear(itemID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.entries, itemID)
	delete(o.latest, itemID)
}

func (o *Overlay) ClearAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = make(map[string]inference.Translation)
	o.latest = make(map[string]uint64)
}
