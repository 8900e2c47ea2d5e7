package share

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/mindbank/internal/bookshelf"
	"github.com/at-ishikawa/mindbank/internal/item"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		item item.Item
		want string
	}{
		{
			name: "quote with author, source and tags",
			item: item.Item{
				Type:     item.TypeQuote,
				Text:     "The unexamined life is not worth living.",
				Author:   "Socrates",
				Source:   "Apology",
				Analysis: item.Analysis{Tags: []string{"philosophy", "Self Knowledge"}},
			},
			want: "“The unexamined life is not worth living.” — Socrates, Apology\n\n#philosophy #selfknowledge",
		},
		{
			name: "quote without attribution",
			item: item.Item{Type: item.TypeQuote, Text: "Carpe diem."},
			want: "“Carpe diem.”",
		},
		{
			name: "source only",
			item: item.Item{Type: item.TypeInsight, Text: "Themes of control.", Source: " Meditations "},
			want: "“Themes of control.” — Meditations",
		},
		{
			name: "word",
			item: item.Item{
				Type: item.TypeWord,
				Text: "serendipity",
				Analysis: item.Analysis{
					PartOfSpeech: "noun",
					Definition:   "a happy accident",
					Example:      "It was pure serendipity.",
				},
			},
			want: "serendipity (noun): a happy accident\n\n\"It was pure serendipity.\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.item))
		})
	}
}

func TestQuotebookMarkdown(t *testing.T) {
	assert.Contains(t, QuotebookMarkdown(nil), "_No quotes yet._")

	got := QuotebookMarkdown([]item.Item{
		{
			Type:     item.TypeQuote,
			Text:     "Know *thyself*",
			Author:   "Socrates",
			Analysis: item.Analysis{Meaning: "Reflect.", Tags: []string{"wisdom"}},
		},
	})
	assert.Contains(t, got, "# Quotebook")
	assert.Contains(t, got, `> Know \*thyself\*`)
	assert.Contains(t, got, "> — Socrates")
	assert.Contains(t, got, "Reflect.")
	assert.Contains(t, got, "`#wisdom`")
}

func TestBookMarkdown(t *testing.T) {
	book := bookshelf.Book{
		Title:    "Meditations",
		Author:   "Marcus Aurelius",
		Quotes:   []item.Item{{Type: item.TypeQuote, Text: "You have power over your mind."}},
		Notes:    []item.Item{{Type: item.TypeNote, Text: "Reread book 4."}},
		Insights: []item.Item{{Type: item.TypeInsight, Text: "Self-mastery."}},
	}

	got := BookMarkdown(book)
	assert.Contains(t, got, "# Meditations")
	assert.Contains(t, got, "_Marcus Aurelius_")
	assert.Contains(t, got, "## Insights\n\nSelf-mastery.")
	assert.Contains(t, got, "## Quotes (1)")
	assert.Contains(t, got, "> You have power over your mind.")
	assert.Contains(t, got, "## Notes\n\n- Reread book 4.")
}

func TestWritePDF(t *testing.T) {
	t.Run("renders a pdf", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "exports", "quotebook.pdf")

		got, err := WritePDF(QuotebookMarkdown([]item.Item{{Type: item.TypeQuote, Text: "Carpe diem."}}), path)
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got))

		data, err := os.ReadFile(got)
		require.NoError(t, err)
		assert.Equal(t, "%PDF", string(data[:4]))
	})

	t.Run("rejects other extensions", func(t *testing.T) {
		_, err := WritePDF("# x", filepath.Join(t.TempDir(), "quotebook.md"))
		assert.Error(t, err)
	})
}

func TestRenderPDF(t *testing.T) {
	data, err := RenderPDF(BookMarkdown(bookshelf.Book{Title: "Dune"}))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}
