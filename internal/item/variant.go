package item

// Variant is the typed view of an item: exactly one of Word, Quote, Note or
// Insight, each carrying only the fields that matter for it.
type Variant interface {
	Kind() Type
	ItemID() string
}

type Word struct {
	ID           string
	Text         string
	Definition   string
	PartOfSpeech string
	Example      string
	Tags         []string
}

type Quote struct {
	ID          string
	Text        string
	Meaning     string
	Tags        []string
	Author      string
	Source      string
	CoverURL    string
	InQuotebook bool
}

type Note struct {
	ID       string
	Text     string
	Source   string
	Author   string
	CoverURL string
}

type Insight struct {
	ID       string
	Text     string
	Tags     []string
	Source   string
	Author   string
	CoverURL string
}

func (Word) Kind() Type    { return TypeWord }
func (Quote) Kind() Type   { return TypeQuote }
func (Note) Kind() Type    { return TypeNote }
func (Insight) Kind() Type { return TypeInsight }

func (w Word) ItemID() string    { return w.ID }
func (q Quote) ItemID() string   { return q.ID }
func (n Note) ItemID() string    { return n.ID }
func (i Insight) ItemID() string { return i.ID }

// Variant returns the typed view of the item, or nil for an unknown type.
func (i Item) Variant() Variant {
	switch i.Type {
	case TypeWord:
		return Word{
			ID:           i.ID,
			Text:         i.Text,
			Definition:   i.Analysis.Definition,
			PartOfSpeech: i.Analysis.PartOfSpeech,
			Example:      i.Analysis.Example,
			Tags:         i.Analysis.Tags,
		}
	case TypeQuote:
		return Quote{
			ID:          i.ID,
			Text:        i.Text,
			Meaning:     i.Analysis.Meaning,
			Tags:        i.Analysis.Tags,
			Author:      i.Author,
			Source:      i.Source,
			CoverURL:    i.CoverURL,
			InQuotebook: i.InQuotebook,
		}
	case TypeNote:
		return Note{
			ID:       i.ID,
			Text:     i.Text,
			Source:   i.Source,
			Author:   i.Author,
			CoverURL: i.CoverURL,
		}
	case TypeInsight:
		return Insight{
			ID:       i.ID,
			Text:     i.Text,
			Tags:     i.Analysis.Tags,
			Source:   i.Source,
			Author:   i.Author,
			CoverURL: i.CoverURL,
		}
	}
	return nil
}
