// Package item defines the single persisted record of MindBank and the rules
// that decide which collection view an item belongs to.
package item

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Type is the kind of an item. It never changes after creation.
type Type string

const (
	TypeWord    Type = "word"
	TypeQuote   Type = "quote"
	TypeNote    Type = "note"
	TypeInsight Type = "insight"
)

var allTypes = []Type{TypeWord, TypeQuote, TypeNote, TypeInsight}

// DraftID is the identifier every unpersisted capture carries.
const DraftID = "draft"

// ParseType converts a string into a Type.
func ParseType(s string) (Type, error) {
	for _, t := range allTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown item type %q", s)
}

func (t Type) Valid() bool {
	_, err := ParseType(string(t))
	return err == nil
}

// CanFavorite reports whether items of this type may be put in the quotebook.
func (t Type) CanFavorite() bool {
	return t == TypeQuote
}

// Shelvable reports whether items of this type can belong to a book.
func (t Type) Shelvable() bool {
	return t == TypeQuote || t == TypeNote || t == TypeInsight
}

// RequiresSource reports whether items of this type only exist inside a book.
func (t Type) RequiresSource() bool {
	return t == TypeNote || t == TypeInsight
}

// Analysis is the structured annotation produced at classification time.
// Words use Definition, PartOfSpeech and Example; quotes and insights use
// Meaning and Tags.
type Analysis struct {
	Definition   string   `json:"definition,omitempty" yaml:"definition,omitempty"`
	PartOfSpeech string   `json:"partOfSpeech,omitempty" yaml:"part_of_speech,omitempty"`
	Example      string   `json:"example,omitempty" yaml:"example,omitempty"`
	Meaning      string   `json:"meaning,omitempty" yaml:"meaning,omitempty"`
	Tags         []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Value stores the analysis as a JSON column.
func (a Analysis) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal(analysis) > %w", err)
	}
	return string(b), nil
}

// Scan reads the analysis from a JSON column.
func (a *Analysis) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*a = Analysis{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported analysis column type %T", src)
	}
	if len(data) == 0 {
		*a = Analysis{}
		return nil
	}
	if err := json.Unmarshal(data, a); err != nil {
		return fmt.Errorf("json.Unmarshal(analysis) > %w", err)
	}
	return nil
}

// NormalizeTags lowercases and trims tags, dropping empty ones.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#")))
		if tag == "" {
			continue
		}
		result = append(result, tag)
	}
	return result
}

// Item is the persisted record. Drafts use DraftID and are never stored.
type Item struct {
	ID          string    `json:"id" db:"id" yaml:"id"`
	UserID      string    `json:"-" db:"user_id" yaml:"-"`
	Type        Type      `json:"type" db:"type" yaml:"type"`
	Text        string    `json:"text" db:"text" yaml:"text"`
	Analysis    Analysis  `json:"analysis" db:"analysis" yaml:"analysis"`
	Author      string    `json:"author,omitempty" db:"author" yaml:"author,omitempty"`
	Source      string    `json:"source,omitempty" db:"source" yaml:"source,omitempty"`
	CoverURL    string    `json:"coverUrl,omitempty" db:"cover_url" yaml:"cover_url,omitempty"`
	BookID      string    `json:"bookId,omitempty" db:"book_id" yaml:"book_id,omitempty"`
	InQuotebook bool      `json:"inQuotebook" db:"in_quotebook" yaml:"in_quotebook"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at" yaml:"created_at"`
}

func (i Item) IsDraft() bool {
	return i.ID == DraftID
}

// SourceKey is the bookshelf grouping key: the trimmed source.
func (i Item) SourceKey() string {
	return strings.TrimSpace(i.Source)
}

func (i Item) HasSource() bool {
	return i.SourceKey() != ""
}

// Attribution is the canonical book metadata attached to an item.
type Attribution struct {
	Source   string `json:"source"`
	Author   string `json:"author"`
	CoverURL string `json:"coverUrl"`
	BookID   string `json:"bookId"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Author      *string `json:"author,omitempty"`
	Source      *string `json:"source,omitempty"`
	CoverURL    *string `json:"coverUrl,omitempty"`
	BookID      *string `json:"bookId,omitempty"`
	InQuotebook *bool   `json:"inQuotebook,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return p.Author == nil && p.Source == nil && p.CoverURL == nil && p.BookID == nil && p.InQuotebook == nil
}

// Apply returns a copy of it with the patch merged in. Type and ID are never
// touched.
func (p Patch) Apply(it Item) Item {
	if p.Author != nil {
		it.Author = *p.Author
	}
	if p.Source != nil {
		it.Source = *p.Source
	}
	if p.CoverURL != nil {
		it.CoverURL = *p.CoverURL
	}
	if p.BookID != nil {
		it.BookID = *p.BookID
	}
	if p.InQuotebook != nil {
		it.InQuotebook = *p.InQuotebook
	}
	return it
}

// AttributionPatch overwrites source, author, cover and book id at once.
func AttributionPatch(a Attribution) Patch {
	return Patch{
		Source:   &a.Source,
		Author:   &a.Author,
		CoverURL: &a.CoverURL,
		BookID:   &a.BookID,
	}
}
