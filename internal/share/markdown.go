package share

import (
	"fmt"
	"strings"

	"github.com/at-ishikawa/mindbank/internal/bookshelf"
	"github.com/at-ishikawa/mindbank/internal/item"
)

// QuotebookMarkdown renders the favorited quotes as a markdown document.
func QuotebookMarkdown(quotes []item.Item) string {
	var b strings.Builder
	b.WriteString("# Quotebook\n\n")
	if len(quotes) == 0 {
		b.WriteString("_No quotes yet._\n")
		return b.String()
	}
	for _, q := range quotes {
		writeQuote(&b, q, true)
	}
	return b.String()
}

// BookMarkdown renders a book with its quotes, notes and insights.
func BookMarkdown(book bookshelf.Book) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escape(book.Title))
	if book.Author != "" {
		fmt.Fprintf(&b, "_%s_\n\n", escape(book.Author))
	}

	if len(book.Insights) > 0 {
		b.WriteString("## Insights\n\n")
		for _, insight := range book.Insights {
			fmt.Fprintf(&b, "%s\n\n", escape(insight.Text))
		}
	}

	fmt.Fprintf(&b, "## Quotes (%d)\n\n", len(book.Quotes))
	for _, q := range book.Quotes {
		writeQuote(&b, q, false)
	}

	if len(book.Notes) > 0 {
		b.WriteString("## Notes\n\n")
		for _, note := range book.Notes {
			fmt.Fprintf(&b, "- %s\n", escape(note.Text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeQuote(b *strings.Builder, q item.Item, withAttribution bool) {
	fmt.Fprintf(b, "> %s\n", escape(q.Text))
	if withAttribution {
		if a := attribution(q); a != "" {
			fmt.Fprintf(b, ">\n> — %s\n", escape(a))
		}
	}
	b.WriteString("\n")
	if q.Analysis.Meaning != "" {
		fmt.Fprintf(b, "%s\n\n", escape(q.Analysis.Meaning))
	}
	if tags := hashtags(q.Analysis.Tags); tags != "" {
		fmt.Fprintf(b, "`%s`\n\n", tags)
	}
}

var markdownEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"*", "\\*",
	"_", "\\_",
	"`", "\\`",
	"#", "\\#",
	"\n", " ",
)

func escape(s string) string {
	return markdownEscaper.Replace(strings.TrimSpace(s))
}
