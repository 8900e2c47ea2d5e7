// Package capture turns raw captured text into a reviewable draft and
// commits it to the collection.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/at-ishikawa/mindbank/internal/inference"
	"github.com/at-ishikawa/mindbank/internal/item"
	"github.com/at-ishikawa/mindbank/internal/metrics"
)

type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StatePreviewing State = "previewing"
)

var (
	ErrBusy         = errors.New("a capture is already in progress")
	ErrInvalidState = errors.New("operation not allowed in the current capture state")
	ErrEmptyInput   = errors.New("nothing to capture")
	ErrNotAQuote    = errors.New("book metadata can only be attached to quotes")
	ErrDiscarded    = errors.New("capture was discarded")
)

type Classifier interface {
	Classify(ctx context.Context, params inference.ClassifyRequest) (inference.Classification, error)
}

type Committer interface {
	Create(ctx context.Context, userID string, draft item.Item) (item.Item, error)
}

type Sanitizer interface {
	Sanitize(raw string) string
}

type Dependencies struct {
	Classifier Classifier
	Committer  Committer
	Sanitizer  Sanitizer
	Recorder   metrics.Recorder
	// Timeout bounds the Processing state. Zero means no bound.
	Timeout time.Duration
}

// Snapshot is a copy of the pipeline state for clients.
type Snapshot struct {
	State       State                  `json:"state"`
	Input       string                 `json:"input"`
	Draft       *item.Item             `json:"draft,omitempty"`
	BookContext *inference.BookContext `json:"bookContext,omitempty"`
	Recording   bool                   `json:"recording"`
	LastError   string                 `json:"lastError,omitempty"`
}

// Pipeline is the capture state machine of one user session.
// Idle -> Processing -> Previewing -> Idle. At most one classification is in
// flight; a second StartCapture while Processing fails with ErrBusy.
type Pipeline struct {
	mu   sync.Mutex
	deps Dependencies

	userID      string
	state       State
	input       string
	draft       *item.Item
	bookContext *inference.BookContext
	lastErr     string
	committing  bool
	dictation   Dictation

	// generation identifies the current classification. A result whose
	// generation is stale belongs to a discarded capture and is dropped.
	generation uint64
	cancel     context.CancelFunc
}

func NewPipeline(userID string, deps Dependencies) *Pipeline {
	if deps.Recorder == nil {
		deps.Recorder = metrics.Nop{}
	}
	return &Pipeline{
		deps:   deps,
		userID: userID,
		state:  StateIdle,
	}
}

// SetInput replaces the pending input buffer.
func (p *Pipeline) SetInput(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input = text
}

// SetBookContext makes later captures attribute to the book, or clears it
// when book is nil.
func (p *Pipeline) SetBookContext(book *inference.BookContext) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if book == nil {
		p.bookContext = nil
		return
	}
	copied := *book
	p.bookContext = &copied
}

// StartCapture classifies text, or the pending input when text is empty, and
// blocks until the draft is ready. On failure the pipeline returns to Idle
// with the input kept for a retry.
func (p *Pipeline) StartCapture(ctx context.Context, text string) (item.Item, error) {
	p.mu.Lock()
	switch p.state {
	case StateIdle:
	case StateProcessing:
		p.mu.Unlock()
		return item.Item{}, ErrBusy
	default:
		p.mu.Unlock()
		return item.Item{}, fmt.Errorf("%w: start capture while %s", ErrInvalidState, p.state)
	}

	if strings.TrimSpace(text) != "" {
		p.input = text
	}
	raw := strings.TrimSpace(p.input)
	if p.deps.Sanitizer != nil {
		raw = p.deps.Sanitizer.Sanitize(raw)
	}
	if raw == "" {
		p.mu.Unlock()
		return item.Item{}, ErrEmptyInput
	}

	var bookContext *inference.BookContext
	if p.bookContext != nil {
		copied := *p.bookContext
		bookContext = &copied
	}

	var classifyCtx context.Context
	var cancel context.CancelFunc
	if p.deps.Timeout > 0 {
		classifyCtx, cancel = context.WithTimeout(ctx, p.deps.Timeout)
	} else {
		classifyCtx, cancel = context.WithCancel(ctx)
	}
	p.state = StateProcessing
	p.lastErr = ""
	p.generation++
	generation := p.generation
	p.cancel = cancel
	p.mu.Unlock()

	result, err := p.deps.Classifier.Classify(classifyCtx, inference.ClassifyRequest{Text: raw, Context: bookContext})
	timedOut := errors.Is(classifyCtx.Err(), context.DeadlineExceeded)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.generation != generation || p.state != StateProcessing {
		slog.Default().Debug("dropping classification of a discarded capture", "user_id", p.userID)
		return item.Item{}, ErrDiscarded
	}
	p.cancel = nil

	if err != nil {
		var classificationErr *inference.ClassificationError
		if !errors.As(err, &classificationErr) {
			err = &inference.ClassificationError{Reason: "request failed", Err: err}
		}
		if timedOut {
			err = &inference.ClassificationError{Reason: "timed out", Err: err}
		}
		p.state = StateIdle
		p.lastErr = err.Error()
		p.deps.Recorder.RecordCapture(metrics.CaptureFailed)
		slog.Default().Warn("capture classification failed", "user_id", p.userID, "error", err)
		return item.Item{}, err
	}

	draft := newDraft(p.userID, raw, result, bookContext)
	p.draft = &draft
	p.state = StatePreviewing
	p.input = ""
	p.deps.Recorder.RecordCapture(metrics.CaptureClassified)
	return draft, nil
}

func newDraft(userID, raw string, result inference.Classification, bookContext *inference.BookContext) item.Item {
	draft := item.Item{
		ID:     item.DraftID,
		UserID: userID,
		Type:   item.Type(result.Type),
		Text:   strings.TrimSpace(result.CleanedText),
		Analysis: item.Analysis{
			Definition:   result.Definition,
			PartOfSpeech: result.PartOfSpeech,
			Example:      result.Example,
			Meaning:      result.Meaning,
			Tags:         item.NormalizeTags(result.Tags),
		},
		Author: strings.TrimSpace(result.Author),
		Source: strings.TrimSpace(result.Source),
	}
	if draft.Text == "" {
		draft.Text = raw
	}
	if bookContext != nil {
		draft.CoverURL = bookContext.CoverURL
		draft.BookID = bookContext.BookID
	}
	return draft
}

// DraftPatch edits a draft under review. Nil fields are left untouched.
type DraftPatch struct {
	Text     *string        `json:"text,omitempty"`
	Author   *string        `json:"author,omitempty"`
	Source   *string        `json:"source,omitempty"`
	CoverURL *string        `json:"coverUrl,omitempty"`
	BookID   *string        `json:"bookId,omitempty"`
	Analysis *item.Analysis `json:"analysis,omitempty"`
}

// EditDraft merges the patch into the draft. Type and id never change.
func (p *Pipeline) EditDraft(patch DraftPatch) (item.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requirePreviewing("edit draft"); err != nil {
		return item.Item{}, err
	}

	draft := *p.draft
	if patch.Text != nil {
		draft.Text = *patch.Text
	}
	if patch.Author != nil {
		draft.Author = *patch.Author
	}
	if patch.Source != nil {
		draft.Source = *patch.Source
	}
	if patch.CoverURL != nil {
		draft.CoverURL = *patch.CoverURL
	}
	if patch.BookID != nil {
		draft.BookID = *patch.BookID
	}
	if patch.Analysis != nil {
		draft.Analysis = *patch.Analysis
		draft.Analysis.Tags = item.NormalizeTags(draft.Analysis.Tags)
	}
	p.draft = &draft
	return draft, nil
}

// AttachBookMetadata overwrites the attribution of a quote draft with the
// canonical values of a selected book.
func (p *Pipeline) AttachBookMetadata(book item.Attribution) (item.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requirePreviewing("attach book"); err != nil {
		return item.Item{}, err
	}
	if p.draft.Type != item.TypeQuote {
		return item.Item{}, ErrNotAQuote
	}

	draft := item.AttributionPatch(book).Apply(*p.draft)
	p.draft = &draft
	return draft, nil
}

// Commit persists the draft. Only quotes keep asFavorite; everything else is
// stored outside the quotebook. A failed commit leaves the draft in review.
func (p *Pipeline) Commit(ctx context.Context, asFavorite bool) (item.Item, error) {
	p.mu.Lock()
	if err := p.requirePreviewing("commit"); err != nil {
		p.mu.Unlock()
		return item.Item{}, err
	}
	draft := *p.draft
	draft.InQuotebook = asFavorite && draft.Type.CanFavorite()
	p.committing = true
	p.mu.Unlock()

	created, err := p.deps.Committer.Create(ctx, p.userID, draft)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.committing = false
	if err != nil {
		p.lastErr = err.Error()
		return item.Item{}, err
	}
	p.state = StateIdle
	p.draft = nil
	p.lastErr = ""
	p.deps.Recorder.RecordCapture(metrics.CaptureCommitted)
	return created, nil
}

// Discard drops the draft without persisting it. While Processing it cancels
// the classification; its result is ignored when it arrives.
func (p *Pipeline) Discard() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.committing:
		return ErrBusy
	case p.state == StatePreviewing:
		p.draft = nil
	case p.state == StateProcessing:
		p.cancelInFlight()
	default:
		return fmt.Errorf("%w: discard while %s", ErrInvalidState, p.state)
	}
	p.state = StateIdle
	p.lastErr = ""
	p.deps.Recorder.RecordCapture(metrics.CaptureDiscarded)
	return nil
}

// Close cancels any in-flight classification and resets the pipeline.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelInFlight()
	p.state = StateIdle
	p.draft = nil
	p.dictation.recording = false
}

// Snapshot returns a copy of the current state.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := Snapshot{
		State:     p.state,
		Input:     p.input,
		Recording: p.dictation.recording,
		LastError: p.lastErr,
	}
	if p.draft != nil {
		draft := *p.draft
		snapshot.Draft = &draft
	}
	if p.bookContext != nil {
		book := *p.bookContext
		snapshot.BookContext = &book
	}
	return snapshot
}

func (p *Pipeline) requirePreviewing(op string) error {
	if p.committing {
		return ErrBusy
	}
	if p.state != StatePreviewing || p.draft == nil {
		return fmt.Errorf("%w: %s while %s", ErrInvalidState, op, p.state)
	}
	return nil
}

// cancelInFlight must be called with the lock held.
func (p *Pipeline) cancelInFlight() {
	p.generation++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
