package item

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var itemColumnNames = []string{
	"id", "user_id", "type", "text", "analysis", "author", "source", "cover_url", "book_id", "in_quotebook", "created_at",
}

func newTestDBRepository(t *testing.T) (*DBRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewDBRepository(sqlx.NewDb(db, "mysql"))
	repo.newID = func() string { return "id-1" }
	return repo, mock
}

func TestDBRepository_FindAll(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantLen   int
		wantErr   bool
	}{
		{
			name: "returns the user's items",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(itemColumnNames).
					AddRow("2", "u1", "word", "serendipity", `{"definition":"luck"}`, "", "", "", "", false, now.Add(time.Second)).
					AddRow("1", "u1", "quote", "To be", `{"meaning":"m","tags":["life"]}`, "Shakespeare", "Hamlet", "", "", true, now)
				mock.ExpectQuery("SELECT (.+) FROM items WHERE user_id = \\? ORDER BY created_at DESC").
					WithArgs("u1").
					WillReturnRows(rows)
			},
			wantLen: 2,
		},
		{
			name: "db error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM items").WillReturnError(fmt.Errorf("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newTestDBRepository(t)
			tt.setupMock(mock)

			got, err := repo.FindAll(context.Background(), "u1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, tt.wantLen)
			assert.Equal(t, TypeWord, got[0].Type)
			assert.Equal(t, "luck", got[0].Analysis.Definition)
			assert.Equal(t, []string{"life"}, got[1].Analysis.Tags)
			assert.True(t, got[1].InQuotebook)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDBRepository_Create(t *testing.T) {
	repo, mock := newTestDBRepository(t)
	mock.ExpectExec("INSERT INTO items \\(id, user_id, type, text, analysis, author, source, cover_url, book_id, in_quotebook, created_at\\)").
		WithArgs("id-1", "u1", TypeQuote, "To be", sqlmock.AnyArg(), "", "", "", "", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(context.Background(), Item{UserID: "u1", Type: TypeQuote, Text: "To be"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.False(t, got.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBRepository_Update(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fav := true

	tests := []struct {
		name      string
		patch     Patch
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   error
	}{
		{
			name:  "updates the given fields",
			patch: Patch{InQuotebook: &fav},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT (.+) FROM items WHERE id = \\? AND user_id = \\? FOR UPDATE").
					WithArgs("1", "u1").
					WillReturnRows(sqlmock.NewRows(itemColumnNames).
						AddRow("1", "u1", "quote", "To be", nil, "", "", "", "", false, now))
				mock.ExpectExec("UPDATE items SET in_quotebook = \\?, updated_at = \\? WHERE id = \\? AND user_id = \\?").
					WithArgs(true, sqlmock.AnyArg(), "1", "u1").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name:  "missing item",
			patch: Patch{InQuotebook: &fav},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT (.+) FROM items").
					WillReturnRows(sqlmock.NewRows(itemColumnNames))
				mock.ExpectRollback()
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newTestDBRepository(t)
			tt.setupMock(mock)

			got, err := repo.Update(context.Background(), "u1", "1", tt.patch)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.InQuotebook)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDBRepository_Delete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "deletes the row", affected: 1},
		{name: "missing row", affected: 0, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newTestDBRepository(t)
			mock.ExpectExec("DELETE FROM items WHERE id = \\? AND user_id = \\?").
				WithArgs("1", "u1").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.Delete(context.Background(), "u1", "1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDBRepository_Restore(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo, mock := newTestDBRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, user_id FROM items WHERE id IN \\(\\?, \\?\\) FOR UPDATE").
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow("a", "u1"))
	mock.ExpectExec("INSERT INTO items (.+) VALUES \\(\\?, \\?, \\?, \\?, \\?, \\?, \\?, \\?, \\?, \\?, \\?\\), \\(\\?, \\?, \\?, \\?, \\?, \\?, \\?, \\?, \\?, \\?, \\?\\) ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := repo.Restore(context.Background(), []Item{
		{ID: "a", UserID: "u1", Type: TypeQuote, Text: "one", CreatedAt: now},
		{ID: "b", UserID: "u1", Type: TypeWord, Text: "two", CreatedAt: now},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.NoError(t, repo.Restore(context.Background(), nil))
}

func TestDBRepository_RestoreRejectsAnotherUsersID(t *testing.T) {
	repo, mock := newTestDBRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, user_id FROM items WHERE id IN").
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow("a", "u2"))
	mock.ExpectRollback()

	err := repo.Restore(context.Background(), []Item{
		{ID: "a", UserID: "u1", Type: TypeQuote, Text: "one", CreatedAt: time.Now()},
	})
	assert.ErrorIs(t, err, ErrIDTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}
