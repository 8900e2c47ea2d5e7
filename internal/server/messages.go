package server

import (
	"time"

	"github.com/at-ishikawa/mindbank/internal/books"
	"github.com/at-ishikawa/mindbank/internal/bookshelf"
	"github.com/at-ishikawa/mindbank/internal/capture"
	"github.com/at-ishikawa/mindbank/internal/collection"
	"github.com/at-ishikawa/mindbank/internal/dictionary/rapidapi"
	"github.com/at-ishikawa/mindbank/internal/inference"
	"github.com/at-ishikawa/mindbank/internal/item"
	"github.com/at-ishikawa/mindbank/internal/speech"
)

type SignInAnonymouslyRequest struct{}

type SignInAnonymouslyResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SignOutRequest struct{}

type SignOutResponse struct{}

type GetLibraryRequest struct{}

type SubscribeRequest struct{}

// LibraryResponse is the full collection of a user split into views. It is
// returned by GetLibrary and sent on every Subscribe update.
type LibraryResponse struct {
	Inbox     []item.Item       `json:"inbox"`
	Quotebook []item.Item       `json:"quotebook"`
	Lexicon   []item.Item       `json:"lexicon"`
	Counts    collection.Counts `json:"counts"`
	Books     int               `json:"books"`
}

// CaptureResponse carries the capture pipeline state after an operation.
type CaptureResponse struct {
	Capture capture.Snapshot `json:"capture"`
}

type StartCaptureRequest struct {
	Text string `json:"text" validate:"max=5000"`
	// Book attributes the capture to a book. Nil captures outside any book.
	Book *inference.BookContext `json:"book,omitempty"`
}

type SetInputRequest struct {
	Text string `json:"text" validate:"max=5000"`
}

type ToggleDictationRequest struct{}

type AppendTranscriptRequest struct {
	Fragment string `json:"fragment" validate:"required,max=5000"`
	Final    bool   `json:"final"`
}

type EditDraftRequest struct {
	Patch capture.DraftPatch `json:"patch"`
}

type AttachBookRequest struct {
	Source   string `json:"source" validate:"required"`
	Author   string `json:"author"`
	CoverURL string `json:"coverUrl" validate:"omitempty,url"`
	BookID   string `json:"bookId"`
}

type CommitDraftRequest struct {
	AsFavorite bool `json:"asFavorite"`
}

type CommitDraftResponse struct {
	Item    item.Item        `json:"item"`
	Capture capture.Snapshot `json:"capture"`
}

type DiscardDraftRequest struct{}

type GetCaptureRequest struct{}

type ItemResponse struct {
	Item item.Item `json:"item"`
}

type UpdateItemRequest struct {
	ID    string     `json:"id" validate:"required"`
	Patch item.Patch `json:"patch"`
}

type ToggleFavoriteRequest struct {
	ID       string `json:"id" validate:"required"`
	Favorite bool   `json:"favorite"`
}

type DeleteItemRequest struct {
	ID string `json:"id" validate:"required"`
}

type DeleteItemResponse struct{}

// BulkClearRequest deletes the whole inbox when Confirmed. With Preview it
// only reports how many items would be deleted.
type BulkClearRequest struct {
	Confirmed bool `json:"confirmed"`
	Preview   bool `json:"preview"`
}

type BulkClearResponse struct {
	Deleted int `json:"deleted"`
	Pending int `json:"pending"`
}

type ListBooksRequest struct{}

// BookView is a book with the placeholder palette index clients use when it
// has no cover.
type BookView struct {
	bookshelf.Book
	Palette int `json:"palette"`
}

type ListBooksResponse struct {
	Books []BookView `json:"books"`
}

type AddNoteRequest struct {
	Book string `json:"book" validate:"required"`
	Text string `json:"text" validate:"required,max=5000"`
}

type GenerateInsightRequest struct {
	Book string `json:"book" validate:"required"`
}

type SearchBooksRequest struct {
	Query string `json:"query" validate:"required,max=300"`
}

type SearchBooksResponse struct {
	Candidates []books.Candidate `json:"candidates"`
}

// TranslateRequest translates a live item or, with the id "draft", the draft
// under review. An empty language means the configured default.
type TranslateRequest struct {
	ItemID   string `json:"itemId" validate:"required"`
	Language string `json:"language" validate:"max=50"`
}

type TranslateResponse struct {
	ItemID      string                `json:"itemId"`
	Translation inference.Translation `json:"translation"`
}

type ClearTranslationRequest struct {
	ItemID string `json:"itemId" validate:"required"`
}

type ClearTranslationResponse struct{}

type SpeakRequest struct {
	Text  string `json:"text" validate:"required,max=4096"`
	Voice string `json:"voice" validate:"omitempty,oneof=alloy echo fable onyx nova shimmer"`
}

type SpeakResponse struct {
	Handle   speech.Handle `json:"handle"`
	AudioURL string        `json:"audioUrl"`
}

type StopSpeakingRequest struct{}

type StopSpeakingResponse struct {
	Stopped bool `json:"stopped"`
}

type LookupWordRequest struct {
	Word string `json:"word" validate:"required,max=100"`
}

type LookupWordResponse struct {
	Entry     rapidapi.Response `json:"entry"`
	Formatted string            `json:"formatted"`
}

type ShareItemRequest struct {
	ItemID string `json:"itemId" validate:"required"`
}

type ShareItemResponse struct {
	Text string `json:"text"`
}
