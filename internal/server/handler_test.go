package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/genproto/googleapis/rpc/errdetails"

	"github.com/at-ishikawa/mindbank/internal/auth"
	"github.com/at-ishikawa/mindbank/internal/books"
	"github.com/at-ishikawa/mindbank/internal/bookshelf"
	"github.com/at-ishikawa/mindbank/internal/capture"
	"github.com/at-ishikawa/mindbank/internal/collection"
	"github.com/at-ishikawa/mindbank/internal/config"
	"github.com/at-ishikawa/mindbank/internal/dictionary"
	"github.com/at-ishikawa/mindbank/internal/dictionary/rapidapi"
	"github.com/at-ishikawa/mindbank/internal/inference"
	"github.com/at-ishikawa/mindbank/internal/item"
	mock_inference "github.com/at-ishikawa/mindbank/internal/mocks/inference"
	mock_server "github.com/at-ishikawa/mindbank/internal/mocks/server"
	mock_speech "github.com/at-ishikawa/mindbank/internal/mocks/speech"
	"github.com/at-ishikawa/mindbank/internal/realtime"
	"github.com/at-ishikawa/mindbank/internal/security"
	"github.com/at-ishikawa/mindbank/internal/session"
	"github.com/at-ishikawa/mindbank/internal/speech"
)

type testEnv struct {
	server      *httptest.Server
	collections *collection.Service
	inference   *mock_inference.MockClient
	synthesizer *mock_speech.MockSynthesizer
	books       *mock_server.MockBookSearcher
	dictionary  *mock_server.MockWordLookup
	covers      *mock_server.MockCoverFetcher
}

func newTestEnv(t *testing.T, rateLimit config.RateLimitConfig) *testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)

	collections := collection.NewService(item.NewMemoryRepository(), realtime.NewHub(), nil)
	inf := mock_inference.NewMockClient(ctrl)
	sanitizer := security.NewTextSanitizer()
	sessions := session.NewManager(collections, capture.Dependencies{
		Classifier: inf,
		Sanitizer:  sanitizer,
		Timeout:    5 * time.Second,
	}, inf, "Spanish")

	synthesizer := mock_speech.NewMockSynthesizer(ctrl)
	audioCache, err := speech.NewCache(synthesizer, speech.Options{Size: 8})
	require.NoError(t, err)

	issuer, err := auth.NewIssuer(config.AuthConfig{JWTSecret: "test-secret", Issuer: "mindbank", TokenTTL: time.Hour})
	require.NoError(t, err)

	env := &testEnv{
		collections: collections,
		inference:   inf,
		synthesizer: synthesizer,
		books:       mock_server.NewMockBookSearcher(ctrl),
		dictionary:  mock_server.NewMockWordLookup(ctrl),
		covers:      mock_server.NewMockCoverFetcher(ctrl),
	}

	handler, err := NewHandler(Dependencies{
		Issuer:      issuer,
		Sessions:    sessions,
		Collections: collections,
		Bookshelf:   bookshelf.NewService(collections, inf, sanitizer),
		Speech:      audioCache,
		Books:       env.books,
		Dictionary:  env.dictionary,
		Covers:      env.covers,
	})
	require.NoError(t, err)

	router := NewRouter(handler, RouterOptions{
		CORS:      config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
		RateLimit: rateLimit,
	})
	env.server = httptest.NewServer(router)
	t.Cleanup(func() {
		env.server.Close()
		router.RateLimiter.Stop()
		sessions.Close()
	})
	return env
}

var defaultRateLimit = config.RateLimitConfig{RequestsPerMinute: 600, Burst: 100}

func call[Req, Res any](t *testing.T, env *testEnv, token, method string, msg *Req) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](env.server.Client(), env.server.URL+Procedure(method), connect.WithCodec(jsonCodec{}))
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func signIn(t *testing.T, env *testEnv) *SignInAnonymouslyResponse {
	t.Helper()
	resp, err := call[SignInAnonymouslyRequest, SignInAnonymouslyResponse](t, env, "", "SignInAnonymously", &SignInAnonymouslyRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.NotEmpty(t, resp.UserID)
	return resp
}

func requireCode(t *testing.T, err error, want connect.Code) *connect.Error {
	t.Helper()
	require.Error(t, err)
	var connectErr *connect.Error
	require.True(t, errors.As(err, &connectErr), "got %T: %v", err, err)
	assert.Equal(t, want, connectErr.Code(), connectErr.Message())
	return connectErr
}

var socrates = inference.Classification{
	Type:        "quote",
	CleanedText: "The unexamined life is not worth living.",
	Meaning:     "Reflect on your life.",
	Author:      "Socrates",
	Tags:        []string{"philosophy", "life", "reflection"},
}

func TestHandler_Authentication(t *testing.T) {
	env := newTestEnv(t, defaultRateLimit)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "garbage token", token: "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call[GetLibraryRequest, LibraryResponse](t, env, tt.token, "GetLibrary", &GetLibraryRequest{})
			requireCode(t, err, connect.CodeUnauthenticated)
		})
	}

	t.Run("signed-in user gets an empty library", func(t *testing.T) {
		user := signIn(t, env)
		library, err := call[GetLibraryRequest, LibraryResponse](t, env, user.Token, "GetLibrary", &GetLibraryRequest{})
		require.NoError(t, err)
		assert.Empty(t, library.Inbox)
		assert.Empty(t, library.Quotebook)
		assert.Empty(t, library.Lexicon)
		assert.Equal(t, collection.Counts{}, library.Counts)
	})
}

func TestHandler_CaptureAndCommit(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		result        inference.Classification
		asFavorite    bool
		wantQuotebook bool
		wantType      item.Type
	}{
		{
			name:          "favorited quote goes to the quotebook",
			input:         "The unexamined life is not worth living by Socrates",
			result:        socrates,
			asFavorite:    true,
			wantQuotebook: true,
			wantType:      item.TypeQuote,
		},
		{
			name:  "word is never favorited",
			input: "serendipity",
			result: inference.Classification{
				Type:         "word",
				CleanedText:  "serendipity",
				Definition:   "finding good things by chance",
				PartOfSpeech: "noun",
			},
			asFavorite:    true,
			wantQuotebook: false,
			wantType:      item.TypeWord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, defaultRateLimit)
			user := signIn(t, env)

			env.inference.EXPECT().
				Classify(gomock.Any(), inference.ClassifyRequest{Text: tt.input}).
				Return(tt.result, nil)

			captured, err := call[StartCaptureRequest, CaptureResponse](t, env, user.Token, "StartCapture", &StartCaptureRequest{Text: tt.input})
			require.NoError(t, err)
			assert.Equal(t, capture.StatePreviewing, captured.Capture.State)
			require.NotNil(t, captured.Capture.Draft)
			assert.Equal(t, item.DraftID, captured.Capture.Draft.ID)
			assert.Equal(t, tt.wantType, captured.Capture.Draft.Type)

			committed, err := call[CommitDraftRequest, CommitDraftResponse](t, env, user.Token, "CommitDraft", &CommitDraftRequest{AsFavorite: tt.asFavorite})
			require.NoError(t, err)
			assert.NotEqual(t, item.DraftID, committed.Item.ID)
			assert.Equal(t, tt.wantQuotebook, committed.Item.InQuotebook)
			assert.Equal(t, capture.StateIdle, committed.Capture.State)
			assert.Nil(t, committed.Capture.Draft)

			require.Eventually(t, func() bool {
				library, err := call[GetLibraryRequest, LibraryResponse](t, env, user.Token, "GetLibrary", &GetLibraryRequest{})
				return err == nil && library.Counts.Inbox+library.Counts.Quotebook+library.Counts.Lexicon == 1
			}, time.Second, 10*time.Millisecond)
		})
	}
}

func TestHandler_CaptureErrors(t *testing.T) {
	env := newTestEnv(t, defaultRateLimit)
	user := signIn(t, env)

	t.Run("empty input", func(t *testing.T) {
		_, err := call[StartCaptureRequest, CaptureResponse](t, env, user.Token, "StartCapture", &StartCaptureRequest{Text: "   "})
		requireCode(t, err, connect.CodeInvalidArgument)
	})

	t.Run("classification failure keeps the input", func(t *testing.T) {
		env.inference.EXPECT().
			Classify(gomock.Any(), gomock.Any()).
			Return(inference.Classification{}, &inference.ClassificationError{Reason: "malformed response"})

		_, err := call[StartCaptureRequest, CaptureResponse](t, env, user.Token, "StartCapture", &StartCaptureRequest{Text: "carpe diem"})
		requireCode(t, err, connect.CodeUnavailable)

		state, err := call[GetCaptureRequest, CaptureResponse](t, env, user.Token, "GetCapture", &GetCaptureRequest{})
		require.NoError(t, err)
		assert.Equal(t, capture.StateIdle, state.Capture.State)
		assert.Equal(t, "carpe diem", state.Capture.Input)
		assert.Contains(t, state.Capture.LastError, "malformed response")
	})

	t.Run("commit without a draft", func(t *testing.T) {
		_, err := call[CommitDraftRequest, CommitDraftResponse](t, env, user.Token, "CommitDraft", &CommitDraftRequest{})
		requireCode(t, err, connect.CodeFailedPrecondition)
	})

	t.Run("attach book to a word draft", func(t *testing.T) {
		env.inference.EXPECT().
			Classify(gomock.Any(), gomock.Any()).
			Return(inference.Classification{Type: "word", CleanedText: "ephemeral"}, nil)
		_, err := call[StartCaptureRequest, CaptureResponse](t, env, user.Token, "StartCapture", &StartCaptureRequest{Text: "ephemeral"})
		require.NoError(t, err)

		_, err = call[AttachBookRequest, CaptureResponse](t, env, user.Token, "AttachBook", &AttachBookRequest{Source: "Meditations"})
		requireCode(t, err, connect.CodeInvalidArgument)

		discarded, err := call[DiscardDraftRequest, CaptureResponse](t, env, user.Token, "DiscardDraft", &DiscardDraftRequest{})
		require.NoError(t, err)
		assert.Equal(t, capture.StateIdle, discarded.Capture.State)
	})
}

func TestHandler_DraftReview(t *testing.T) {
	env := newTestEnv(t, defaultRateLimit)
	user := signIn(t, env)

	env.inference.EXPECT().
		Classify(gomock.Any(), inference.ClassifyRequest{
			Text:    "The unexamined life is not worth living",
			Context: &inference.BookContext{Title: "Apology", Author: "Plato"},
		}).
		Return(socrates, nil)

	_, err := call[StartCaptureRequest, CaptureResponse](t, env, user.Token, "StartCapture", &StartCaptureRequest{
		Text: "The unexamined life is not worth living",
		Book: &inference.BookContext{Title: "Apology", Author: "Plato"},
	})
	require.NoError(t, err)

	author := "Socrates"
	edited, err := call[EditDraftRequest, CaptureResponse](t, env, user.Token, "EditDraft", &EditDraftRequest{
		Patch: capture.DraftPatch{Author: &author},
	})
	require.NoError(t, err)
	assert.Equal(t, "Socrates", edited.Capture.Draft.Author)

	attached, err := call[AttachBookRequest, CaptureResponse](t, env, user.Token, "AttachBook", &AttachBookRequest{
		Source:   "The Apology",
		Author:   "Plato",
		CoverURL: "https://books.example.com/apology.jpg",
		BookID:   "vol-1",
	})
	require.NoError(t, err)
	draft := attached.Capture.Draft
	require.NotNil(t, draft)
	assert.Equal(t, "The Apology", draft.Source)
	assert.Equal(t, "Plato", draft.Author)
	assert.Equal(t, "https://books.example.com/apology.jpg", draft.CoverURL)
	assert.Equal(t, "vol-1", draft.BookID)
	assert.Equal(t, item.TypeQuote, draft.Type)

	env.inference.EXPECT().
		Translate(gomock.Any(), inference.TranslateRequest{Text: socrates.CleanedText, TargetLanguage: "French"}).
		Return(inference.Translation{Text: "Une vie sans examen ne vaut pas d'être vécue.", Lang: "French"}, nil)
	translated, err := call[TranslateRequest, TranslateResponse](t, env, user.Token, "Translate", &TranslateRequest{ItemID: item.DraftID, Language: "French"})
	require.NoError(t, err)
	assert.Equal(t, item.DraftID, translated.ItemID)
	assert.Equal(t, "French", translated.Translation.Lang)
}

func TestHandler_Dictation(t *testing.T) {
	env := newTestEnv(t, defaultRateLimit)
	user := signIn(t, env)

	_, err := call[AppendTranscriptRequest, CaptureResponse](t, env, user.Token, "AppendTranscript", &AppendTranscriptRequest{Fragment: "ignored", Final: true})
	require.NoError(t, err)

	toggled, err := call[ToggleDictationRequest, CaptureResponse](t, env, user.Token, "ToggleDictation", &ToggleDictationRequest{})
	require.NoError(t, err)
	assert.True(t, toggled.Capture.Recording)

	fragments := []AppendTranscriptRequest{
		{Fragment: "to be", Final: true},
		{Fragment: "or not", Final: false},
		{Fragment: "or not to be", Final: true},
	}
	var last *CaptureResponse
	for _, f := range fragments {
		last, err = call[AppendTranscriptRequest, CaptureResponse](t, env, user.Token, "AppendTranscript", &f)
		require.NoError(t, err)
	}
	assert.Equal(t, "to be or not to be", last.Capture.Input)
	assert.Equal(t, capture.StateIdle, last.Capture.State)

	set, err := call[SetInputRequest, CaptureResponse](t, env, user.Token, "SetInput", &SetInputRequest{Text: "typed instead"})
	require.NoError(t, err)
	assert.Equal(t, "typed instead", set.Capture.Input)
}

func TestHandler_Validation(t *testing.T) {
	env := newTestEnv(t, defaultRateLimit)
	user := signIn(t, env)

	_, err := call[AppendTranscriptRequest, CaptureResponse](t, env, user.Token, "AppendTranscript", &AppendTranscriptRequest{Final: true})
	connectErr := requireCode(t, err, connect.CodeInvalidArgument)

	require.Len(t, connectErr.Details(), 1)
	value, err := connectErr.Details()[0].Value()
	require.NoError(t, err)
	badRequest, ok := value.(*errdetails.BadRequest)
	require.True(t, ok)
	require.Len(t, badRequest.GetFieldViolations(), 1)
	assert.Equal(t, "fragment", badRequest.GetFieldViolations()[0].GetField())
	assert.NotEmpty(t, badRequest.GetFieldViolations()[0].GetDescription())

	_, err = call[SpeakRequest, SpeakResponse](t, env, user.Token, "Speak", &SpeakRequest{Text: "hello", Voice: "robot"})
	requireCode(t, err, connect.CodeInvalidArgument)
}

func seed(t *testing.T, env *testEnv, userID string, items ...item.Item) []item.Item {
	t.Helper()
	created := make([]item.Item, 0, len(items))
	for _, it := range items {
		c, err := env.collections.Create(context.Background(), userID, it)
		require.NoError(t, err)
		created = append(created, c)
	}
	return created
}

func TestHandler_BulkClear(t *testing.T) {
	env := newTestEnv(t, defaultRateLimit)
	user := signIn(t, env)
	seed(t, env, user.UserID,
		item.Item{Type: item.TypeQuote, Text: "one"},
		item.Item{Type: item.TypeQuote, Text: "two"},
		item.Item{Type: item.TypeQuote, Text: "three"},
		item.Item{Type: item.TypeQuote, Text: "kept", InQuotebook: true},
		item.Item{Type: item.TypeWord, Text: "kept too"},
	)

	_, err := call[BulkClearRequest, BulkClearResponse](t, env, user.Token, "BulkClear", &BulkClearRequest{})
	requireCode(t, err, connect.CodeFailedPrecondition)

	preview, err := call[BulkClearRequest, BulkClearResponse](t, env, user.Token, "BulkClear", &BulkClearRequest{Preview: true})
	require.NoError(t, err)
	assert.Equal(t, 3, preview.Pending)

	cleared, err := call[BulkClearRequest, BulkClearResponse](t, env, user.Token, "BulkClear", &BulkClearRequest{Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, 3, cleared.Deleted)

	remaining, err := env.collections.List(context.Background(), user.UserID)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestHandler_ItemMutations(t *testing.T) {
	env := newTestEnv(t, defaultRateLimit)
	user := signIn(t, env)
	items := seed(t, env, user.UserID,
		item.Item{Type: item.TypeQuote, Text: "Know thyself.", Author: "Socrates", Analysis: item.Analysis{Tags: []string{"wisdom"}}},
		item.Item{Type: item.TypeWord, Text: "ephemeral", Analysis: item.Analysis{Definition: "lasting a short time", PartOfSpeech: "adjective"}},
	)
	quote, word := items[0], items[1]

	t.Run("toggle favorite on a quote", func(t *testing.T) {
		resp, err := call[ToggleFavoriteRequest, ItemResponse](t, env, user.Token, "ToggleFavorite", &ToggleFavoriteRequest{ID: quote.ID, Favorite: true})
		require.NoError(t, err)
		assert.True(t, resp.Item.InQuotebook)
	})

	t.Run("toggle favorite on a word", func(t *testing.T) {
		_, err := call[ToggleFavoriteRequest, ItemResponse](t, env, user.Token, "ToggleFavorite", &ToggleFavoriteRequest{ID: word.ID, Favorite: true})
		requireCode(t, err, connect.CodeInvalidArgument)
	})

	t.Run("update source", func(t *testing.T) {
		source := "Meditations"
		resp, err := call[UpdateItemRequest, ItemResponse](t, env, user.Token, "UpdateItem", &UpdateItemRequest{ID: quote.ID, Patch: item.Patch{Source: &source}})
		require.NoError(t, err)
		assert.Equal(t, "Meditations", resp.Item.Source)
	})

	t.Run("share a quote", func(t *testing.T) {
		resp, err := call[ShareItemRequest, ShareItemResponse](t, env, user.Token, "ShareItem", &ShareItemRequest{ItemID: quote.ID})
		require.NoError(t, err)
		assert.Contains(t, resp.Text, "“Know thyself.”")
		assert.Contains(t, resp.Text, "#wisdom")
	})

	t.Run("delete unknown item", func(t *testing.T) {
		_, err := call[DeleteItemRequest, DeleteItemResponse](t, env, user.Token, "DeleteItem", &DeleteItemRequest{ID: "missing"})
		requireCode(t, err, connect.CodeNotFound)
	})

	t.Run("delete a word", func(t *testing.T) {
		_, err := call[DeleteItemRequest, DeleteItemResponse](t, env, user.Token, "DeleteItem", &DeleteItemRequest{ID: word.ID})
		require.NoError(t, err)
		_, err = call[ShareItemRequest, ShareItemResponse](t, env, user.Token, "ShareItem", &ShareItemRequest{ItemID: word.ID})
		requireCode(t, err, connect.CodeNotFound)
	})
}

func TestHandler_Bookshelf(t *testing.T) {
	env := newTestEnv(t, defaultRateLimit)
	user := signIn(t, env)
	seed(t, env, user.UserID,
		item.Item{Type: item.TypeQuote, Text: "You have power over your mind.", Author: "Marcus Aurelius", Source: "Meditations", CoverURL: "https://covers.example.com/m.jpg"},
		item.Item{Type: item.TypeQuote, Text: "Waste no more time arguing.", Author: "Marcus Aurelius", Source: "Meditations", CoverURL: "https://covers.example.com/m.jpg"},
		item.Item{Type: item.TypeWord, Text: "stoic", Source: "Meditations"},
	)

	t.Run("unknown book", func(t *testing.T) {
		_, err := call[GenerateInsightRequest, ItemResponse](t, env, user.Token, "GenerateInsight", &GenerateInsightRequest{Book: "Unknown"})
		requireCode(t, err, connect.CodeNotFound)
	})

	t.Run("generate insight", func(t *testing.T) {
		env.inference.EXPECT().
			GenerateInsight(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, req inference.InsightRequest) (inference.Insight, error) {
				assert.Equal(t, "Meditations", req.Title)
				assert.Len(t, req.Quotes, 2)
				return inference.Insight{Summary: "Control what you can.", Tags: []string{"stoicism"}}, nil
			})

		resp, err := call[GenerateInsightRequest, ItemResponse](t, env, user.Token, "GenerateInsight", &GenerateInsightRequest{Book: "Meditations"})
		require.NoError(t, err)
		assert.Equal(t, item.TypeInsight, resp.Item.Type)
		assert.Equal(t, "Meditations", resp.Item.Source)
		assert.Equal(t, "https://covers.example.com/m.jpg", resp.Item.CoverURL)
	})

	t.Run("add note", func(t *testing.T) {
		resp, err := call[AddNoteRequest, ItemResponse](t, env, user.Token, "AddNote", &AddNoteRequest{Book: "Meditations", Text: "Reread book 4"})
		require.NoError(t, err)
		assert.Equal(t, item.TypeNote, resp.Item.Type)
		assert.Equal(t, "Marcus Aurelius", resp.Item.Author)
	})

	t.Run("list books", func(t *testing.T) {
		require.Eventually(t, func() bool {
			resp, err := call[ListBooksRequest, ListBooksResponse](t, env, user.Token, "ListBooks", &ListBooksRequest{})
			if err != nil || len(resp.Books) != 1 {
				return false
			}
			book := resp.Books[0]
			return book.Title == "Meditations" &&
				len(book.Quotes) == 2 &&
				len(book.Notes) == 1 &&
				len(book.Insights) == 1 &&
				book.Palette == len("Meditations")%6
		}, time.Second, 10*time.Millisecond)
	})
}

func TestHandler_Speech(t *testing.T) {
	env := newTestEnv(t, defaultRateLimit)
	user := signIn(t, env)

	env.synthesizer.EXPECT().
		Synthesize(gomock.Any(), "Know thyself.", "nova").
		Return([]byte("mp3-bytes"), nil).
		Times(1)

	first, err := call[SpeakRequest, SpeakResponse](t, env, user.Token, "Speak", &SpeakRequest{Text: "Know thyself.", Voice: "nova"})
	require.NoError(t, err)
	assert.False(t, first.Handle.Cached)

	second, err := call[SpeakRequest, SpeakResponse](t, env, user.Token, "Speak", &SpeakRequest{Text: " Know thyself. ", Voice: "nova"})
	require.NoError(t, err)
	assert.True(t, second.Handle.Cached)
	assert.Equal(t, first.Handle.Key, second.Handle.Key)
	assert.NotEqual(t, first.Handle.ID, second.Handle.ID)

	resp, err := env.server.Client().Get(env.server.URL + second.AudioURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, speech.ContentType, resp.Header.Get("Content-Type"))

	stopped, err := call[StopSpeakingRequest, StopSpeakingResponse](t, env, user.Token, "StopSpeaking", &StopSpeakingRequest{})
	require.NoError(t, err)
	assert.True(t, stopped.Stopped)

	stopped, err = call[StopSpeakingRequest, StopSpeakingResponse](t, env, user.Token, "StopSpeaking", &StopSpeakingRequest{})
	require.NoError(t, err)
	assert.False(t, stopped.Stopped)

	missing, err := env.server.Client().Get(env.server.URL + audioPath("unknown"))
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestHandler_ExternalLookups(t *testing.T) {
	env := newTestEnv(t, defaultRateLimit)
	user := signIn(t, env)

	t.Run("search books", func(t *testing.T) {
		env.books.EXPECT().
			Search(gomock.Any(), "meditations").
			Return([]books.Candidate{{Title: "Meditations", Authors: []string{"Marcus Aurelius"}, Identifier: "vol-1"}}, nil)

		resp, err := call[SearchBooksRequest, SearchBooksResponse](t, env, user.Token, "SearchBooks", &SearchBooksRequest{Query: "meditations"})
		require.NoError(t, err)
		require.Len(t, resp.Candidates, 1)
		assert.Equal(t, "vol-1", resp.Candidates[0].Identifier)
	})

	t.Run("search failure", func(t *testing.T) {
		env.books.EXPECT().
			Search(gomock.Any(), "broken").
			Return(nil, &books.MetadataSearchError{Query: "broken", Reason: "request failed"})

		_, err := call[SearchBooksRequest, SearchBooksResponse](t, env, user.Token, "SearchBooks", &SearchBooksRequest{Query: "broken"})
		requireCode(t, err, connect.CodeUnavailable)
	})

	t.Run("look up a word", func(t *testing.T) {
		env.dictionary.EXPECT().
			Lookup(gomock.Any(), "stoic").
			Return(rapidapi.Response{Word: "stoic", Results: []rapidapi.Result{{Definition: "seeming unaffected by pleasure or pain", PartOfSpeech: "adjective"}}}, nil)

		resp, err := call[LookupWordRequest, LookupWordResponse](t, env, user.Token, "LookupWord", &LookupWordRequest{Word: "stoic"})
		require.NoError(t, err)
		assert.Equal(t, "stoic", resp.Entry.Word)
		assert.Contains(t, resp.Formatted, "seeming unaffected")
	})

	t.Run("unknown word", func(t *testing.T) {
		env.dictionary.EXPECT().
			Lookup(gomock.Any(), "qwzx").
			Return(rapidapi.Response{}, dictionary.ErrWordNotFound)

		_, err := call[LookupWordRequest, LookupWordResponse](t, env, user.Token, "LookupWord", &LookupWordRequest{Word: "qwzx"})
		requireCode(t, err, connect.CodeNotFound)
	})
}

func TestHandler_RateLimit(t *testing.T) {
	env := newTestEnv(t, config.RateLimitConfig{RequestsPerMinute: 1, Burst: 1})
	user := signIn(t, env)

	env.synthesizer.EXPECT().Synthesize(gomock.Any(), "hello", speech.DefaultVoice).Return([]byte("audio"), nil)

	_, err := call[SpeakRequest, SpeakResponse](t, env, user.Token, "Speak", &SpeakRequest{Text: "hello"})
	require.NoError(t, err)

	_, err = call[SpeakRequest, SpeakResponse](t, env, user.Token, "Speak", &SpeakRequest{Text: "hello"})
	connectErr := requireCode(t, err, connect.CodeResourceExhausted)
	assert.Equal(t, "60", connectErr.Meta().Get("Retry-After"))

	// Procedures without AI calls are not limited.
	for range 3 {
		_, err := call[GetCaptureRequest, CaptureResponse](t, env, user.Token, "GetCapture", &GetCaptureRequest{})
		require.NoError(t, err)
	}
}

func TestHandler_Subscribe(t *testing.T) {
	env := newTestEnv(t, defaultRateLimit)
	user := signIn(t, env)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := connect.NewClient[SubscribeRequest, LibraryResponse](env.server.Client(), env.server.URL+Procedure("Subscribe"), connect.WithCodec(jsonCodec{}))
	req := connect.NewRequest(&SubscribeRequest{})
	req.Header().Set("Authorization", "Bearer "+user.Token)
	stream, err := client.CallServerStream(ctx, req)
	require.NoError(t, err)
	defer stream.Close()

	require.True(t, stream.Receive(), "initial snapshot: %v", stream.Err())
	assert.Empty(t, stream.Msg().Inbox)

	seed(t, env, user.UserID, item.Item{Type: item.TypeQuote, Text: "Memento mori.", Source: "Meditations"})

	require.True(t, stream.Receive(), "update: %v", stream.Err())
	assert.Len(t, stream.Msg().Inbox, 1)
	assert.Equal(t, 1, stream.Msg().Books)

	_, err = call[SignOutRequest, SignOutResponse](t, env, user.Token, "SignOut", &SignOutRequest{})
	require.NoError(t, err)

	assert.False(t, stream.Receive())
	requireCode(t, stream.Err(), connect.CodeUnavailable)
}

func TestHandler_Covers(t *testing.T) {
	env := newTestEnv(t, defaultRateLimit)

	tests := []struct {
		name       string
		url        string
		cover      security.Cover
		err        error
		wantStatus int
	}{
		{
			name:       "proxied image",
			url:        "https://covers.example.com/a.jpg",
			cover:      security.Cover{Data: []byte("jpeg"), ContentType: "image/jpeg"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "blocked address",
			url:        "http://127.0.0.1/a.jpg",
			err:        security.ErrBlockedURL,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not an image",
			url:        "https://covers.example.com/a.html",
			err:        security.ErrNotAnImage,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "upstream failure",
			url:        "https://covers.example.com/down.jpg",
			err:        errors.New("fetch cover: status 500"),
			wantStatus: http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.covers.EXPECT().Fetch(gomock.Any(), tt.url).Return(tt.cover, tt.err)

			req, err := http.NewRequest(http.MethodGet, env.server.URL+"/covers", nil)
			require.NoError(t, err)
			q := req.URL.Query()
			q.Set("url", tt.url)
			req.URL.RawQuery = q.Encode()

			resp, err := env.server.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
			}
		})
	}
}
