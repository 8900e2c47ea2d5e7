package inference

import (
	"context"
)

//go:generate mockgen -source=interface.go -destination=../mocks/inference/mock_client.go -package=mock_inference

// Client interface defines the methods for AI inference operations
type Client interface {
	Classify(ctx context.Context, params ClassifyRequest) (Classification, error)
	Translate(ctx context.Context, params TranslateRequest) (Translation, error)
	GenerateInsight(ctx context.Context, params InsightRequest) (Insight, error)
}

// BookContext is the book a capture happens in. When set, its title and
// author are the attribution regardless of what the model infers.
type BookContext struct {
	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
	CoverURL string `json:"coverUrl,omitempty"`
	BookID   string `json:"bookId,omitempty"`
}

type ClassifyRequest struct {
	Text    string       `json:"text"`
	Context *BookContext `json:"context,omitempty"`
}

// Classification is the model's verdict on captured text.
type Classification struct {
	Type         string   `json:"type"`
	CleanedText  string   `json:"cleaned_text"`
	Definition   string   `json:"definition,omitempty"`
	PartOfSpeech string   `json:"partOfSpeech,omitempty"`
	Example      string   `json:"example,omitempty"`
	Meaning      string   `json:"meaning,omitempty"`
	Author       string   `json:"author,omitempty"`
	Source       string   `json:"source,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

type TranslateRequest struct {
	Text           string `json:"text"`
	Definition     string `json:"definition,omitempty"`
	IsWord         bool   `json:"is_word"`
	TargetLanguage string `json:"target_language"`
}

// Translation is text for quotes, word and definition for words.
type Translation struct {
	Text       string `json:"text,omitempty"`
	Word       string `json:"word,omitempty"`
	Definition string `json:"definition,omitempty"`
	Lang       string `json:"lang"`
}

type InsightRequest struct {
	Title  string   `json:"title"`
	Author string   `json:"author,omitempty"`
	Quotes []string `json:"quotes"`
}

type Insight struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags,omitempty"`
}
