package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/mindbank/internal/database"
)

const itemColumns = "id, user_id, type, text, analysis, author, source, cover_url, book_id, in_quotebook, created_at"

// DBRepository implements Repository using MySQL.
type DBRepository struct {
	db    *sqlx.DB
	clock *monotonicClock
	newID func() string
}

// NewDBRepository creates a new DBRepository.
func NewDBRepository(db *sqlx.DB) *DBRepository {
	return &DBRepository{
		db:    db,
		clock: newMonotonicClock(nil),
		newID: uuid.NewString,
	}
}

// FindAll returns every item of the user, newest first.
func (r *DBRepository) FindAll(ctx context.Context, userID string) ([]Item, error) {
	var items []Item
	query := "SELECT " + itemColumns + " FROM items WHERE user_id = ? ORDER BY created_at DESC"
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	return items, nil
}

// Find returns one item of the user.
func (r *DBRepository) Find(ctx context.Context, userID, id string) (Item, error) {
	return findItem(ctx, r.db, userID, id, false)
}

// Create inserts the item with a fresh id and creation timestamp.
func (r *DBRepository) Create(ctx context.Context, it Item) (Item, error) {
	it.ID = r.newID()
	it.CreatedAt = r.clock.next()

	query := "INSERT INTO items (" + itemColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query,
		it.ID, it.UserID, it.Type, it.Text, it.Analysis,
		it.Author, it.Source, it.CoverURL, it.BookID, it.InQuotebook, it.CreatedAt,
	); err != nil {
		return Item{}, fmt.Errorf("insert item: %w", err)
	}
	return it, nil
}

// Update merges the patch into the stored row.
func (r *DBRepository) Update(ctx context.Context, userID, id string, patch Patch) (Item, error) {
	var updated Item
	err := database.RunInTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
		current, err := findItem(ctx, tx, userID, id, true)
		if err != nil {
			return err
		}
		updated = patch.Apply(current)
		if patch.IsEmpty() {
			return nil
		}

		sets, args := patchAssignments(patch)
		args = append(args, time.Now().UTC(), id, userID)
		query := fmt.Sprintf("UPDATE items SET %s, updated_at = ? WHERE id = ? AND user_id = ?", strings.Join(sets, ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	return updated, nil
}

// Delete removes the item permanently.
func (r *DBRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM items WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Restore inserts items in one statement, keeping ids and timestamps. Rows
// that already exist for the same user are overwritten. An id stored for
// another user fails with ErrIDTaken.
func (r *DBRepository) Restore(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	query := database.BuildMultiRowInsert("items", strings.Split(itemColumns, ", "), len(items)) +
		" ON DUPLICATE KEY UPDATE text = VALUES(text), analysis = VALUES(analysis), author = VALUES(author)," +
		" source = VALUES(source), cover_url = VALUES(cover_url), book_id = VALUES(book_id), in_quotebook = VALUES(in_quotebook)"
	args := make([]any, 0, len(items)*11)
	for _, it := range items {
		args = append(args,
			it.ID, it.UserID, it.Type, it.Text, it.Analysis,
			it.Author, it.Source, it.CoverURL, it.BookID, it.InQuotebook, it.CreatedAt.UTC(),
		)
	}
	return database.RunInTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := checkOwnership(ctx, tx, items); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("restore items: %w", err)
		}
		return nil
	})
}

// checkOwnership rejects items whose id is already stored for another user.
func checkOwnership(ctx context.Context, tx *sqlx.Tx, items []Item) error {
	owners := make(map[string]string, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		owners[it.ID] = it.UserID
		ids = append(ids, it.ID)
	}
	query, args, err := sqlx.In("SELECT id, user_id FROM items WHERE id IN (?) FOR UPDATE", ids)
	if err != nil {
		return fmt.Errorf("build ownership query: %w", err)
	}
	var stored []struct {
		ID     string `db:"id"`
		UserID string `db:"user_id"`
	}
	if err := sqlx.SelectContext(ctx, tx, &stored, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("select item owners: %w", err)
	}
	for _, row := range stored {
		if row.UserID != owners[row.ID] {
			return fmt.Errorf("%w: %s", ErrIDTaken, row.ID)
		}
	}
	return nil
}

func findItem(ctx context.Context, q sqlx.QueryerContext, userID, id string, forUpdate bool) (Item, error) {
	query := "SELECT " + itemColumns + " FROM items WHERE id = ? AND user_id = ?"
	if forUpdate {
		query += " FOR UPDATE"
	}
	var it Item
	if err := sqlx.GetContext(ctx, q, &it, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("select item: %w", err)
	}
	return it, nil
}

func patchAssignments(patch Patch) ([]string, []any) {
	var sets []string
	var args []any
	if patch.Author != nil {
		sets = append(sets, "author = ?")
		args = append(args, *patch.Author)
	}
	if patch.Source != nil {
		sets = append(sets, "source = ?")
		args = append(args, *patch.Source)
	}
	if patch.CoverURL != nil {
		sets = append(sets, "cover_url = ?")
		args = append(args, *patch.CoverURL)
	}
	if patch.BookID != nil {
		sets = append(sets, "book_id = ?")
		args = append(args, *patch.BookID)
	}
	if patch.InQuotebook != nil {
		sets = append(sets, "in_quotebook = ?")
		args = append(args, *patch.InQuotebook)
	}
	return sets, args
}
