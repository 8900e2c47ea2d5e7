package datasync

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/at-ishikawa/mindbank/internal/item"
	mock_item "github.com/at-ishikawa/mindbank/internal/mocks/item"
)

var (
	createdAt = time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	exportAt  = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
)

func TestExporter_Export(t *testing.T) {
	tests := []struct {
		name  string
		setup func(repo *mock_item.MockRepository)
		want  *Backup
	}{
		{
			name: "exports items newest first",
			setup: func(repo *mock_item.MockRepository) {
				repo.EXPECT().FindAll(gomock.Any(), "u1").Return([]item.Item{
					{ID: "a", Type: item.TypeQuote, Text: "older", CreatedAt: createdAt},
					{ID: "b", Type: item.TypeWord, Text: "newer", CreatedAt: createdAt.Add(time.Hour)},
				}, nil)
			},
			want: &Backup{
				Version:    1,
				ExportedAt: exportAt,
				Items: []item.Item{
					{ID: "b", Type: item.TypeWord, Text: "newer", CreatedAt: createdAt.Add(time.Hour)},
					{ID: "a", Type: item.TypeQuote, Text: "older", CreatedAt: createdAt},
				},
			},
		},
		{
			name: "returns empty data when the store is empty",
			setup: func(repo *mock_item.MockRepository) {
				repo.EXPECT().FindAll(gomock.Any(), "u1").Return(nil, nil)
			},
			want: &Backup{Version: 1, ExportedAt: exportAt, Items: []item.Item{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := mock_item.NewMockRepository(ctrl)
			tt.setup(repo)

			exporter := NewExporter(repo)
			exporter.now = func() time.Time { return exportAt }
			got, err := exporter.Export(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExporter_ExportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_item.NewMockRepository(ctrl)
	repo.EXPECT().FindAll(gomock.Any(), "u1").Return(nil, errors.New("connection refused"))

	_, err := NewExporter(repo).Export(context.Background(), "u1")
	assert.ErrorContains(t, err, "connection refused")
}

func TestYAMLRoundTrip(t *testing.T) {
	backup := &Backup{
		Version:    1,
		ExportedAt: exportAt,
		Items: []item.Item{
			{
				ID:          "q1",
				Type:        item.TypeQuote,
				Text:        "Know thyself.",
				Author:      "Socrates",
				Source:      "Apology",
				InQuotebook: true,
				Analysis:    item.Analysis{Meaning: "Reflect.", Tags: []string{"wisdom"}},
				CreatedAt:   createdAt,
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, backup))
	assert.Contains(t, buf.String(), "in_quotebook: true")
	assert.NotContains(t, buf.String(), "user_id")

	got, err := ReadYAML(&buf)
	require.NoError(t, err)
	assert.Equal(t, backup, got)
}

func TestReadYAML_UnsupportedVersion(t *testing.T) {
	_, err := ReadYAML(bytes.NewBufferString("version: 9\nitems: []\n"))
	assert.ErrorContains(t, err, "unsupported backup version 9")
}

func TestImporter_Import(t *testing.T) {
	backup := &Backup{
		Version: 1,
		Items: []item.Item{
			{ID: "q1", Type: item.TypeQuote, Text: "Know thyself.", CreatedAt: createdAt},
			{ID: "w1", Type: item.TypeWord, Text: "serendipity", InQuotebook: true, CreatedAt: createdAt},
			{ID: "n1", Type: item.TypeNote, Text: "orphan note"},
			{ID: item.DraftID, Type: item.TypeQuote, Text: "draft"},
		},
	}

	tests := []struct {
		name  string
		opts  ImportOptions
		setup func(repo *mock_item.MockRepository)
		want  *ImportResult
	}{
		{
			name: "restores new items and warns about invalid ones",
			setup: func(repo *mock_item.MockRepository) {
				repo.EXPECT().FindAll(gomock.Any(), "u1").Return(nil, nil)
				repo.EXPECT().Restore(gomock.Any(), []item.Item{
					{ID: "q1", UserID: "u1", Type: item.TypeQuote, Text: "Know thyself.", CreatedAt: createdAt},
					{ID: "w1", UserID: "u1", Type: item.TypeWord, Text: "serendipity", CreatedAt: createdAt},
				}).Return(nil)
			},
			want: &ImportResult{New: 2, Warnings: 2},
		},
		{
			name: "skips existing items",
			setup: func(repo *mock_item.MockRepository) {
				repo.EXPECT().FindAll(gomock.Any(), "u1").Return([]item.Item{{ID: "q1"}}, nil)
				repo.EXPECT().Restore(gomock.Any(), gomock.Len(1)).Return(nil)
			},
			want: &ImportResult{New: 1, Skipped: 1, Warnings: 2},
		},
		{
			name: "updates existing items when asked",
			opts: ImportOptions{UpdateExisting: true},
			setup: func(repo *mock_item.MockRepository) {
				repo.EXPECT().FindAll(gomock.Any(), "u1").Return([]item.Item{{ID: "q1"}}, nil)
				repo.EXPECT().Restore(gomock.Any(), gomock.Len(2)).Return(nil)
			},
			want: &ImportResult{New: 1, Updated: 1, Warnings: 2},
		},
		{
			name: "dry run writes nothing",
			opts: ImportOptions{DryRun: true},
			setup: func(repo *mock_item.MockRepository) {
				repo.EXPECT().FindAll(gomock.Any(), "u1").Return(nil, nil)
			},
			want: &ImportResult{New: 2, Warnings: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := mock_item.NewMockRepository(ctrl)
			tt.setup(repo)

			var buf bytes.Buffer
			got, err := NewImporter(repo, &buf).Import(context.Background(), "u1", backup, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, buf.String(), `[WARN]  "orphan note": a note needs a source`)
		})
	}
}

func TestImporter_ImportAssignsMissingIDs(t *testing.T) {
	repo := item.NewMemoryRepository()
	importer := NewImporter(repo, &bytes.Buffer{})
	importer.now = func() time.Time { return createdAt }

	_, err := importer.Import(context.Background(), "u1", &Backup{
		Version: 1,
		Items:   []item.Item{{Type: item.TypeQuote, Text: " hand written "}},
	}, ImportOptions{})
	require.NoError(t, err)

	items, err := repo.FindAll(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ID)
	assert.Equal(t, "hand written", items[0].Text)
	assert.Equal(t, createdAt, items[0].CreatedAt)
}
