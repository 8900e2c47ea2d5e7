// Package server provides the Connect RPC handlers of the MindBank service
// and the plain HTTP endpoints next to them.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/at-ishikawa/mindbank/internal/auth"
	"github.com/at-ishikawa/mindbank/internal/books"
	"github.com/at-ishikawa/mindbank/internal/bookshelf"
	"github.com/at-ishikawa/mindbank/internal/capture"
	"github.com/at-ishikawa/mindbank/internal/collection"
	"github.com/at-ishikawa/mindbank/internal/dictionary/rapidapi"
	"github.com/at-ishikawa/mindbank/internal/item"
	"github.com/at-ishikawa/mindbank/internal/security"
	"github.com/at-ishikawa/mindbank/internal/session"
	"github.com/at-ishikawa/mindbank/internal/share"
	"github.com/at-ishikawa/mindbank/internal/speech"
)

//go:generate mockgen -source=handler.go -destination=../mocks/server/mock_handler.go -package=mock_server

// BookSearcher finds book metadata candidates. books.Client implements it.
type BookSearcher interface {
	Search(ctx context.Context, query string) ([]books.Candidate, error)
}

// WordLookup returns dictionary entries. dictionary.Reader implements it.
type WordLookup interface {
	Lookup(ctx context.Context, word string) (rapidapi.Response, error)
}

// CoverFetcher downloads cover images. security.CoverFetcher implements it.
type CoverFetcher interface {
	Fetch(ctx context.Context, rawURL string) (security.Cover, error)
}

type Dependencies struct {
	Issuer      *auth.Issuer
	Sessions    *session.Manager
	Collections *collection.Service
	Bookshelf   *bookshelf.Service
	Speech      *speech.Cache
	Books       BookSearcher
	Dictionary  WordLookup
	Covers      CoverFetcher
}

// Handler implements every procedure of the MindBank service.
type Handler struct {
	issuer      *auth.Issuer
	sessions    *session.Manager
	collections *collection.Service
	bookshelf   *bookshelf.Service
	speech      *speech.Cache
	books       BookSearcher
	dictionary  WordLookup
	covers      CoverFetcher
	validator   *requestValidator
}

func NewHandler(deps Dependencies) (*Handler, error) {
	v, err := newRequestValidator()
	if err != nil {
		return nil, fmt.Errorf("newRequestValidator() > %w", err)
	}
	return &Handler{
		issuer:      deps.Issuer,
		sessions:    deps.Sessions,
		collections: deps.Collections,
		bookshelf:   deps.Bookshelf,
		speech:      deps.Speech,
		books:       deps.Books,
		dictionary:  deps.Dictionary,
		covers:      deps.Covers,
		validator:   v,
	}, nil
}

// state returns the session of the caller, signing them in when the server
// has no session for a valid token yet.
func (h *Handler) state(ctx context.Context) (*session.State, error) {
	identity, ok := auth.FromContext(ctx)
	if !ok {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	state, err := h.sessions.SignIn(ctx, identity.UserID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return state, nil
}

func (h *Handler) SignInAnonymously(
	ctx context.Context,
	req *connect.Request[SignInAnonymouslyRequest],
) (*connect.Response[SignInAnonymouslyResponse], error) {
	token, identity, err := h.issuer.SignInAnonymously()
	if err != nil {
		return nil, toConnectError(err)
	}
	if _, err := h.sessions.SignIn(ctx, identity.UserID); err != nil {
		return nil, toConnectError(err)
	}
	slog.Default().Info("anonymous sign-in", "user_id", identity.UserID)

	return connect.NewResponse(&SignInAnonymouslyResponse{
		Token:     token,
		UserID:    identity.UserID,
		ExpiresAt: identity.ExpiresAt,
	}), nil
}

func (h *Handler) SignOut(
	ctx context.Context,
	req *connect.Request[SignOutRequest],
) (*connect.Response[SignOutResponse], error) {
	identity, ok := auth.FromContext(ctx)
	if !ok {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	h.sessions.SignOut(identity.UserID)
	return connect.NewResponse(&SignOutResponse{}), nil
}

func newLibrary(items []item.Item) *LibraryResponse {
	views := collection.BuildViews(items)
	return &LibraryResponse{
		Inbox:     nonNil(views.Inbox),
		Quotebook: nonNil(views.Quotebook),
		Lexicon:   nonNil(views.Lexicon),
		Counts:    views.Counts(),
		Books:     len(bookshelf.Aggregate(items)),
	}
}

func nonNil(items []item.Item) []item.Item {
	if items == nil {
		return []item.Item{}
	}
	return items
}

func (h *Handler) GetLibrary(
	ctx context.Context,
	req *connect.Request[GetLibraryRequest],
) (*connect.Response[LibraryResponse], error) {
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(newLibrary(state.Items())), nil
}

// Subscribe streams the library on open and after every change. The stream
// ends with Unavailable when the subscription is lost, for example on
// sign-out; clients resubscribe themselves.
func (h *Handler) Subscribe(
	ctx context.Context,
	req *connect.Request[SubscribeRequest],
	stream *connect.ServerStream[LibraryResponse],
) error {
	identity, ok := auth.FromContext(ctx)
	if !ok {
		return connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	sub, err := h.collections.Subscribe(ctx, identity.UserID)
	if err != nil {
		return toConnectError(err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return connect.NewError(connect.CodeUnavailable, fmt.Errorf("subscription of %s ended", identity.UserID))
		case snapshot := <-sub.Updates():
			if err := stream.Send(newLibrary(snapshot)); err != nil {
				return fmt.Errorf("stream.Send > %w", err)
			}
		}
	}
}

func captureResponse(state *session.State) *connect.Response[CaptureResponse] {
	return connect.NewResponse(&CaptureResponse{Capture: state.Pipeline.Snapshot()})
}

// StartCapture classifies the text and waits for the draft. A failed
// classification returns the error; the pipeline is back in Idle with the
// input kept.
func (h *Handler) StartCapture(
	ctx context.Context,
	req *connect.Request[StartCaptureRequest],
) (*connect.Response[CaptureResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}

	state.Pipeline.SetBookContext(req.Msg.Book)
	if _, err := state.Pipeline.StartCapture(ctx, req.Msg.Text); err != nil {
		return nil, toConnectError(err)
	}
	return captureResponse(state), nil
}

func (h *Handler) SetInput(
	ctx context.Context,
	req *connect.Request[SetInputRequest],
) (*connect.Response[CaptureResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	state.Pipeline.SetInput(req.Msg.Text)
	return captureResponse(state), nil
}

func (h *Handler) ToggleDictation(
	ctx context.Context,
	req *connect.Request[ToggleDictationRequest],
) (*connect.Response[CaptureResponse], error) {
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	state.Pipeline.ToggleDictation()
	return captureResponse(state), nil
}

func (h *Handler) AppendTranscript(
	ctx context.Context,
	req *connect.Request[AppendTranscriptRequest],
) (*connect.Response[CaptureResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	state.Pipeline.AppendTranscript(req.Msg.Fragment, req.Msg.Final)
	return captureResponse(state), nil
}

func (h *Handler) EditDraft(
	ctx context.Context,
	req *connect.Request[EditDraftRequest],
) (*connect.Response[CaptureResponse], error) {
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := state.Pipeline.EditDraft(req.Msg.Patch); err != nil {
		return nil, toConnectError(err)
	}
	return captureResponse(state), nil
}

func (h *Handler) AttachBook(
	ctx context.Context,
	req *connect.Request[AttachBookRequest],
) (*connect.Response[CaptureResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := state.Pipeline.AttachBookMetadata(item.Attribution{
		Source:   req.Msg.Source,
		Author:   req.Msg.Author,
		CoverURL: req.Msg.CoverURL,
		BookID:   req.Msg.BookID,
	}); err != nil {
		return nil, toConnectError(err)
	}
	return captureResponse(state), nil
}

func (h *Handler) CommitDraft(
	ctx context.Context,
	req *connect.Request[CommitDraftRequest],
) (*connect.Response[CommitDraftResponse], error) {
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	created, err := state.Pipeline.Commit(ctx, req.Msg.AsFavorite)
	if err != nil {
		return nil, toConnectError(err)
	}
	state.Overlay.Clear(item.DraftID)
	return connect.NewResponse(&CommitDraftResponse{
		Item:    created,
		Capture: state.Pipeline.Snapshot(),
	}), nil
}

func (h *Handler) DiscardDraft(
	ctx context.Context,
	req *connect.Request[DiscardDraftRequest],
) (*connect.Response[CaptureResponse], error) {
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	if err := state.Pipeline.Discard(); err != nil {
		return nil, toConnectError(err)
	}
	state.Overlay.Clear(item.DraftID)
	return captureResponse(state), nil
}

func (h *Handler) GetCapture(
	ctx context.Context,
	req *connect.Request[GetCaptureRequest],
) (*connect.Response[CaptureResponse], error) {
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	return captureResponse(state), nil
}

func (h *Handler) UpdateItem(
	ctx context.Context,
	req *connect.Request[UpdateItemRequest],
) (*connect.Response[ItemResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	updated, err := h.collections.Update(ctx, state.UserID, req.Msg.ID, req.Msg.Patch)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ItemResponse{Item: updated}), nil
}

func (h *Handler) ToggleFavorite(
	ctx context.Context,
	req *connect.Request[ToggleFavoriteRequest],
) (*connect.Response[ItemResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	updated, err := h.collections.ToggleFavorite(ctx, state.UserID, req.Msg.ID, req.Msg.Favorite)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ItemResponse{Item: updated}), nil
}

func (h *Handler) DeleteItem(
	ctx context.Context,
	req *connect.Request[DeleteItemRequest],
) (*connect.Response[DeleteItemResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.collections.Delete(ctx, state.UserID, req.Msg.ID); err != nil {
		return nil, toConnectError(err)
	}
	state.Overlay.Clear(req.Msg.ID)
	return connect.NewResponse(&DeleteItemResponse{}), nil
}

func (h *Handler) BulkClear(
	ctx context.Context,
	req *connect.Request[BulkClearRequest],
) (*connect.Response[BulkClearResponse], error) {
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}

	if req.Msg.Preview {
		pending, err := h.collections.ClearPreview(ctx, state.UserID)
		if err != nil {
			return nil, toConnectError(err)
		}
		return connect.NewResponse(&BulkClearResponse{Pending: pending}), nil
	}

	deleted, err := h.collections.BulkClear(ctx, state.UserID, req.Msg.Confirmed)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&BulkClearResponse{Deleted: deleted}), nil
}

func (h *Handler) ListBooks(
	ctx context.Context,
	req *connect.Request[ListBooksRequest],
) (*connect.Response[ListBooksResponse], error) {
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	shelf := state.Books()
	views := make([]BookView, 0, len(shelf))
	for _, book := range shelf {
		views = append(views, BookView{Book: book, Palette: book.Palette()})
	}
	return connect.NewResponse(&ListBooksResponse{Books: views}), nil
}

// findBook aggregates the stored items, so a book is found right after the
// write that created it.
func (h *Handler) findBook(ctx context.Context, userID, title string) (bookshelf.Book, error) {
	items, err := h.collections.List(ctx, userID)
	if err != nil {
		return bookshelf.Book{}, err
	}
	book, ok := bookshelf.Find(bookshelf.Aggregate(items), title)
	if !ok {
		return bookshelf.Book{}, fmt.Errorf("%w: %q", errBookNotFound, title)
	}
	return book, nil
}

func (h *Handler) AddNote(
	ctx context.Context,
	req *connect.Request[AddNoteRequest],
) (*connect.Response[ItemResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	book, err := h.findBook(ctx, state.UserID, req.Msg.Book)
	if err != nil {
		return nil, toConnectError(err)
	}
	created, err := h.bookshelf.AddNote(ctx, state.UserID, book, req.Msg.Text)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ItemResponse{Item: created}), nil
}

func (h *Handler) GenerateInsight(
	ctx context.Context,
	req *connect.Request[GenerateInsightRequest],
) (*connect.Response[ItemResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	book, err := h.findBook(ctx, state.UserID, req.Msg.Book)
	if err != nil {
		return nil, toConnectError(err)
	}
	created, err := h.bookshelf.GenerateInsight(ctx, state.UserID, book)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ItemResponse{Item: created}), nil
}

func (h *Handler) SearchBooks(
	ctx context.Context,
	req *connect.Request[SearchBooksRequest],
) (*connect.Response[SearchBooksResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	candidates, err := h.books.Search(ctx, req.Msg.Query)
	if err != nil {
		return nil, toConnectError(err)
	}
	if candidates == nil {
		candidates = []books.Candidate{}
	}
	return connect.NewResponse(&SearchBooksResponse{Candidates: candidates}), nil
}

// findItem resolves the draft under review or a live item. The store is read
// when the session has not caught up with a recent write yet.
func (h *Handler) findItem(ctx context.Context, state *session.State, id string) (item.Item, error) {
	if id == item.DraftID {
		snapshot := state.Pipeline.Snapshot()
		if snapshot.Draft == nil {
			return item.Item{}, fmt.Errorf("%w: no draft under review", capture.ErrInvalidState)
		}
		return *snapshot.Draft, nil
	}
	if it, ok := state.Find(id); ok {
		return it, nil
	}

	items, err := h.collections.List(ctx, state.UserID)
	if err != nil {
		return item.Item{}, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, nil
		}
	}
	return item.Item{}, fmt.Errorf("%w: %s", errItemNotFound, id)
}

func (h *Handler) Translate(
	ctx context.Context,
	req *connect.Request[TranslateRequest],
) (*connect.Response[TranslateResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	it, err := h.findItem(ctx, state, req.Msg.ItemID)
	if err != nil {
		return nil, toConnectError(err)
	}
	translation, err := state.Overlay.Translate(ctx, it, req.Msg.Language)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&TranslateResponse{
		ItemID:      it.ID,
		Translation: translation,
	}), nil
}

func (h *Handler) ClearTranslation(
	ctx context.Context,
	req *connect.Request[ClearTranslationRequest],
) (*connect.Response[ClearTranslationResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	state.Overlay.Clear(req.Msg.ItemID)
	return connect.NewResponse(&ClearTranslationResponse{}), nil
}

// Speak makes the audio the active playback of the session. Clients fetch
// the bytes from AudioURL.
func (h *Handler) Speak(
	ctx context.Context,
	req *connect.Request[SpeakRequest],
) (*connect.Response[SpeakResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	handle, err := h.speech.Speak(ctx, req.Msg.Text, req.Msg.Voice)
	if err != nil {
		return nil, toConnectError(err)
	}
	state.Player.Play(handle)
	return connect.NewResponse(&SpeakResponse{
		Handle:   handle,
		AudioURL: audioPath(handle.Key),
	}), nil
}

func (h *Handler) StopSpeaking(
	ctx context.Context,
	req *connect.Request[StopSpeakingRequest],
) (*connect.Response[StopSpeakingResponse], error) {
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&StopSpeakingResponse{Stopped: state.Player.Stop()}), nil
}

func (h *Handler) LookupWord(
	ctx context.Context,
	req *connect.Request[LookupWordRequest],
) (*connect.Response[LookupWordResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	entry, err := h.dictionary.Lookup(ctx, req.Msg.Word)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&LookupWordResponse{
		Entry:     entry,
		Formatted: entry.Format(),
	}), nil
}

func (h *Handler) ShareItem(
	ctx context.Context,
	req *connect.Request[ShareItemRequest],
) (*connect.Response[ShareItemResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	it, err := h.findItem(ctx, state, req.Msg.ItemID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ShareItemResponse{Text: share.Text(it)}), nil
}
