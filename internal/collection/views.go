package collection

import "github.com/at-ishikawa/mindbank/internal/item"

// Views splits an item list into the inbox, quotebook and lexicon buckets.
// Each list keeps the order of the input.
type Views struct {
	Inbox     []item.Item `json:"inbox"`
	Quotebook []item.Item `json:"quotebook"`
	Lexicon   []item.Item `json:"lexicon"`
}

func BuildViews(items []item.Item) Views {
	views := Views{
		Inbox:     []item.Item{},
		Quotebook: []item.Item{},
		Lexicon:   []item.Item{},
	}
	for _, it := range items {
		switch item.Classify(it).Bucket {
		case item.BucketInbox:
			views.Inbox = append(views.Inbox, it)
		case item.BucketQuotebook:
			views.Quotebook = append(views.Quotebook, it)
		case item.BucketLexicon:
			views.Lexicon = append(views.Lexicon, it)
		}
	}
	return views
}

// Counts is the "N items" figure of each view.
type Counts struct {
	Inbox     int `json:"inbox"`
	Quotebook int `json:"quotebook"`
	Lexicon   int `json:"lexicon"`
}

func (v Views) Counts() Counts {
	return Counts{Inbox: len(v.Inbox), Quotebook: len(v.Quotebook), Lexicon: len(v.Lexicon)}
}
