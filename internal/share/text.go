// Package share renders items for sharing outside the app: plain text for a
// single item and PDF documents for the quotebook or a book.
package share

import (
	"fmt"
	"strings"

	"github.com/at-ishikawa/mindbank/internal/item"
)

// Text renders one item as shareable plain text.
func Text(it item.Item) string {
	var b strings.Builder
	var tags []string
	switch v := it.Variant().(type) {
	case item.Word:
		b.WriteString(v.Text)
		if v.PartOfSpeech != "" {
			fmt.Fprintf(&b, " (%s)", v.PartOfSpeech)
		}
		if v.Definition != "" {
			fmt.Fprintf(&b, ": %s", v.Definition)
		}
		if v.Example != "" {
			fmt.Fprintf(&b, "\n\n%q", v.Example)
		}
		tags = v.Tags
	case item.Quote:
		writeCited(&b, v.Text, v.Author, v.Source)
		tags = v.Tags
	case item.Insight:
		writeCited(&b, v.Text, v.Author, v.Source)
		tags = v.Tags
	case item.Note:
		writeCited(&b, v.Text, v.Author, v.Source)
	default:
		writeCited(&b, it.Text, it.Author, it.Source)
	}

	if tags := hashtags(tags); tags != "" {
		b.WriteString("\n\n")
		b.WriteString(tags)
	}
	return b.String()
}

func writeCited(b *strings.Builder, text, author, source string) {
	fmt.Fprintf(b, "“%s”", text)
	if a := joinAttribution(author, source); a != "" {
		fmt.Fprintf(b, " — %s", a)
	}
}

func attribution(it item.Item) string {
	return joinAttribution(it.Author, it.Source)
}

func joinAttribution(author, source string) string {
	parts := make([]string, 0, 2)
	if author = strings.TrimSpace(author); author != "" {
		parts = append(parts, author)
	}
	if source = strings.TrimSpace(source); source != "" {
		parts = append(parts, source)
	}
	return strings.Join(parts, ", ")
}

func hashtags(tags []string) string {
	tags = item.NormalizeTags(tags)
	for i, tag := range tags {
		tags[i] = "#" + strings.ReplaceAll(tag, " ", "")
	}
	return strings.Join(tags, " ")
}
