// Package bookshelf derives virtual books from the items that carry a source.
package bookshelf

import (
	"sort"

	"github.com/at-ishikawa/mindbank/internal/item"
)

// paletteSize is the number of placeholder colors clients cycle through for
// books without a cover.
const paletteSize = 6

// Book is every shelved item sharing one source.
type Book struct {
	Title    string      `json:"title"`
	Author   string      `json:"author,omitempty"`
	CoverURL string      `json:"coverUrl,omitempty"`
	Quotes   []item.Item `json:"quotes"`
	Notes    []item.Item `json:"notes"`
	Insights []item.Item `json:"insights"`
}

// Palette is a stable placeholder color index for the book.
func (b Book) Palette() int {
	return len(b.Title) % paletteSize
}

func (b Book) Size() int {
	return len(b.Quotes) + len(b.Notes) + len(b.Insights)
}

// QuoteTexts returns the text of every quote, in shelf order.
func (b Book) QuoteTexts() []string {
	texts := make([]string, 0, len(b.Quotes))
	for _, q := range b.Quotes {
		texts = append(texts, q.Text)
	}
	return texts
}

// Aggregate groups items by their trimmed source. Author and cover come from
// the first item seen for a source. Books are ordered by quote count,
// descending, and ties keep the order in which the source first appeared.
func Aggregate(items []item.Item) []Book {
	index := make(map[string]int)
	var books []Book
	for _, it := range items {
		if !item.OnBookshelf(it) {
			continue
		}
		key := it.SourceKey()
		i, ok := index[key]
		if !ok {
			i = len(books)
			index[key] = i
			books = append(books, Book{
				Title:    key,
				Author:   it.Author,
				CoverURL: it.CoverURL,
			})
		}

		switch it.Type {
		case item.TypeQuote:
			books[i].Quotes = append(books[i].Quotes, it)
		case item.TypeNote:
			books[i].Notes = append(books[i].Notes, it)
		case item.TypeInsight:
			books[i].Insights = append(books[i].Insights, it)
		}
	}

	sort.SliceStable(books, func(i, j int) bool {
		return len(books[i].Quotes) > len(books[j].Quotes)
	})
	return books
}

// Find returns the book whose title is exactly title.
func Find(books []Book, title string) (Book, bool) {
	for _, b := range books {
		if b.Title == title {
			return b, true
		}
	}
	return Book{}, false
}
