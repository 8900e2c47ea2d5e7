package bookshelf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/at-ishikawa/mindbank/internal/inference"
	"github.com/at-ishikawa/mindbank/internal/item"
)

var (
	ErrNothingToSummarize = errors.New("the book has no quotes to summarize")
	ErrEmptyNote          = errors.New("note is empty")
)

// Creator persists new items. collection.Service implements it.
type Creator interface {
	Create(ctx context.Context, userID string, draft item.Item) (item.Item, error)
}

type InsightGenerator interface {
	GenerateInsight(ctx context.Context, req inference.InsightRequest) (inference.Insight, error)
}

type Sanitizer interface {
	Sanitize(raw string) string
}

// Service writes the per-book content: notes and generated insights.
type Service struct {
	creator   Creator
	generator InsightGenerator
	sanitizer Sanitizer
}

func NewService(creator Creator, generator InsightGenerator, sanitizer Sanitizer) *Service {
	return &Service{
		creator:   creator,
		generator: generator,
		sanitizer: sanitizer,
	}
}

// GenerateInsight summarizes the book's quotes and stores the summary as an
// insight of the book.
func (s *Service) GenerateInsight(ctx context.Context, userID string, book Book) (item.Item, error) {
	if len(book.Quotes) == 0 {
		return item.Item{}, ErrNothingToSummarize
	}

	insight, err := s.generator.GenerateInsight(ctx, inference.InsightRequest{
		Title:  book.Title,
		Author: book.Author,
		Quotes: book.QuoteTexts(),
	})
	if err != nil {
		return item.Item{}, fmt.Errorf("generate insight for %q: %w", book.Title, err)
	}

	created, err := s.creator.Create(ctx, userID, bookItem(book, item.TypeInsight, insight.Summary, insight.Tags))
	if err != nil {
		return item.Item{}, fmt.Errorf("save insight for %q: %w", book.Title, err)
	}
	slog.Default().Debug("insight generated", "user_id", userID, "book", book.Title, "quotes", len(book.Quotes))
	return created, nil
}

// AddNote stores free-form user text as a note of the book.
func (s *Service) AddNote(ctx context.Context, userID string, book Book, text string) (item.Item, error) {
	if s.sanitizer != nil {
		text = s.sanitizer.Sanitize(text)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return item.Item{}, ErrEmptyNote
	}

	created, err := s.creator.Create(ctx, userID, bookItem(book, item.TypeNote, text, nil))
	if err != nil {
		return item.Item{}, fmt.Errorf("save note for %q: %w", book.Title, err)
	}
	return created, nil
}

func bookItem(book Book, t item.Type, text string, tags []string) item.Item {
	return item.Item{
		Type:     t,
		Text:     text,
		Analysis: item.Analysis{Tags: tags},
		Source:   book.Title,
		Author:   book.Author,
		CoverURL: book.CoverURL,
	}
}
