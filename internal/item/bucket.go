package item

import "sort"

// Bucket is a predicate-defined view over the live item set.
type Bucket string

const (
	BucketInbox     Bucket = "inbox"
	BucketQuotebook Bucket = "quotebook"
	BucketLexicon   Bucket = "lexicon"
	// BucketShelf holds notes and insights, which only appear inside a book.
	BucketShelf Bucket = "shelf"
)

// Membership is where an item shows up. Bucket is exclusive; OnShelf is an
// independent axis.
type Membership struct {
	Bucket  Bucket
	OnShelf bool
}

func InInbox(it Item) bool {
	return it.Type != TypeWord && !it.InQuotebook && it.Type != TypeNote && it.Type != TypeInsight
}

func InQuotebook(it Item) bool {
	return it.InQuotebook && it.Type.CanFavorite()
}

func InLexicon(it Item) bool {
	return it.Type == TypeWord
}

func OnBookshelf(it Item) bool {
	return it.HasSource() && it.Type.Shelvable()
}

// Classify is the one place bucket membership is decided.
func Classify(it Item) Membership {
	m := Membership{OnShelf: OnBookshelf(it)}
	switch {
	case InLexicon(it):
		m.Bucket = BucketLexicon
	case InQuotebook(it):
		m.Bucket = BucketQuotebook
	case InInbox(it):
		m.Bucket = BucketInbox
	default:
		m.Bucket = BucketShelf
	}
	return m
}

// SortNewestFirst orders items by CreatedAt descending, keeping the relative
// order of equal timestamps.
func SortNewestFirst(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
