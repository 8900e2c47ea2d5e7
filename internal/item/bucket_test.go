package item

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want Membership
	}{
		{
			name: "plain quote is in the inbox",
			item: Item{Type: TypeQuote},
			want: Membership{Bucket: BucketInbox},
		},
		{
			name: "favorited quote is in the quotebook",
			item: Item{Type: TypeQuote, InQuotebook: true},
			want: Membership{Bucket: BucketQuotebook},
		},
		{
			name: "quote with a source is also on the shelf",
			item: Item{Type: TypeQuote, Source: "Meditations"},
			want: Membership{Bucket: BucketInbox, OnShelf: true},
		},
		{
			name: "favorited quote with a source is in the quotebook and on the shelf",
			item: Item{Type: TypeQuote, Source: "Meditations", InQuotebook: true},
			want: Membership{Bucket: BucketQuotebook, OnShelf: true},
		},
		{
			name: "word is in the lexicon",
			item: Item{Type: TypeWord},
			want: Membership{Bucket: BucketLexicon},
		},
		{
			name: "word with a source never goes on the shelf",
			item: Item{Type: TypeWord, Source: "Meditations"},
			want: Membership{Bucket: BucketLexicon},
		},
		{
			name: "note lives only on the shelf",
			item: Item{Type: TypeNote, Source: "Meditations"},
			want: Membership{Bucket: BucketShelf, OnShelf: true},
		},
		{
			name: "insight lives only on the shelf",
			item: Item{Type: TypeInsight, Source: "Meditations"},
			want: Membership{Bucket: BucketShelf, OnShelf: true},
		},
		{
			name: "whitespace source counts as unknown",
			item: Item{Type: TypeQuote, Source: "   "},
			want: Membership{Bucket: BucketInbox},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.item))
		})
	}
}

func TestBucketPredicatesAreMutuallyExclusive(t *testing.T) {
	for _, typ := range allTypes {
		for _, fav := range []bool{false, true} {
			for _, source := range []string{"", "Walden"} {
				it := Item{Type: typ, InQuotebook: fav, Source: source}
				count := 0
				for _, pred := range []func(Item) bool{InInbox, InQuotebook, InLexicon} {
					if pred(it) {
						count++
					}
				}
				assert.LessOrEqual(t, count, 1, "type=%s favorite=%v source=%q", typ, fav, source)
			}
		}
	}
}

func TestInQuotebook(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want bool
	}{
		{name: "favorited quote", item: Item{Type: TypeQuote, InQuotebook: true}, want: true},
		{name: "quote", item: Item{Type: TypeQuote}, want: false},
		{name: "word stored as favorite", item: Item{Type: TypeWord, InQuotebook: true}, want: false},
		{name: "note stored as favorite", item: Item{Type: TypeNote, InQuotebook: true, Source: "Walden"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InQuotebook(tt.item))
		})
	}
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []Item{
		{ID: "a", CreatedAt: base},
		{ID: "b", CreatedAt: base.Add(2 * time.Second)},
		{ID: "c", CreatedAt: base.Add(time.Second)},
		{ID: "d", CreatedAt: base.Add(time.Second)},
	}

	SortNewestFirst(items)

	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"b", "c", "d", "a"}, ids)
}
