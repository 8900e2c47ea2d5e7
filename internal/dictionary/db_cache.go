package dictionary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const sourceRapidAPI = "rapidapi"

// Entry is a cached dictionary response row.
type Entry struct {
	Word       string          `db:"word"`
	SourceType string          `db:"source_type"`
	Response   json.RawMessage `db:"response"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

// DBCache keeps dictionary responses in the dictionary_entries table, shared
// by every server instance.
type DBCache struct {
	db *sqlx.DB
}

func NewDBCache(db *sqlx.DB) *DBCache {
	return &DBCache{db: db}
}

func (c *DBCache) Load(ctx context.Context, word string) ([]byte, bool, error) {
	var entry Entry
	err := c.db.GetContext(ctx, &entry,
		"SELECT word, source_type, response, created_at, updated_at FROM dictionary_entries WHERE word = ? AND source_type = ?",
		word, sourceRapidAPI)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("db.GetContext(dictionary_entries) > %w", err)
	}
	return entry.Response, true, nil
}

func (c *DBCache) Store(ctx context.Context, word string, contents []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO dictionary_entries (word, source_type, response)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE response = VALUES(response)`,
		word, sourceRapidAPI, json.RawMessage(contents))
	if err != nil {
		return fmt.Errorf("db.ExecContext(upsert dictionary_entries) > %w", err)
	}
	return nil
}
