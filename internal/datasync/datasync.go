// Package datasync backs a user's items up to YAML and restores them.
package datasync

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/mindbank/internal/item"
)

const BackupVersion = 1

// Backup is the YAML document of one user's items.
type Backup struct {
	Version    int         `yaml:"version"`
	ExportedAt time.Time   `yaml:"exported_at"`
	Items      []item.Item `yaml:"items"`
}

// ImportResult tracks counts for each import operation.
type ImportResult struct {
	New      int
	Skipped  int
	Updated  int
	Warnings int
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun         bool
	UpdateExisting bool
}

// Exporter reads a user's items from the store.
type Exporter struct {
	repo item.Repository
	now  func() time.Time
}

func NewExporter(repo item.Repository) *Exporter {
	return &Exporter{repo: repo, now: time.Now}
}

// Export returns every item of the user, newest first.
func (e *Exporter) Export(ctx context.Context, userID string) (*Backup, error) {
	items, err := e.repo.FindAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("repo.FindAll() > %w", err)
	}
	item.SortNewestFirst(items)
	if items == nil {
		items = []item.Item{}
	}
	return &Backup{
		Version:    BackupVersion,
		ExportedAt: e.now().UTC(),
		Items:      items,
	}, nil
}

func WriteYAML(w io.Writer, backup *Backup) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("yaml.Encode() > %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encoder.Close() > %w", err)
	}
	return nil
}

func ReadYAML(r io.Reader) (*Backup, error) {
	var backup Backup
	if err := yaml.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("yaml.Decode() > %w", err)
	}
	if backup.Version != BackupVersion {
		return nil, fmt.Errorf("unsupported backup version %d", backup.Version)
	}
	return &backup, nil
}

// Importer writes backed up items into the store under a user.
type Importer struct {
	repo   item.Repository
	writer io.Writer
	now    func() time.Time
}

func NewImporter(repo item.Repository, writer io.Writer) *Importer {
	return &Importer{repo: repo, writer: writer, now: time.Now}
}

// Import restores the backup's items for the user. Items keep their ids and
// timestamps so a backup can be imported more than once.
func (imp *Importer) Import(ctx context.Context, userID string, backup *Backup, opts ImportOptions) (*ImportResult, error) {
	var result ImportResult

	existing, err := imp.repo.FindAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("repo.FindAll() > %w", err)
	}
	existingIDs := make(map[string]bool, len(existing))
	for _, it := range existing {
		existingIDs[it.ID] = true
	}

	restore := make([]item.Item, 0, len(backup.Items))
	for _, it := range backup.Items {
		it.UserID = userID
		it.Text = strings.TrimSpace(it.Text)
		it.Analysis.Tags = item.NormalizeTags(it.Analysis.Tags)

		if reason := invalidReason(it); reason != "" {
			fmt.Fprintf(imp.writer, "  [WARN]  %q: %s\n", it.Text, reason)
			result.Warnings++
			continue
		}
		if !it.Type.CanFavorite() {
			it.InQuotebook = false
		}
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		if it.CreatedAt.IsZero() {
			it.CreatedAt = imp.now().UTC()
		}

		if existingIDs[it.ID] {
			if !opts.UpdateExisting {
				fmt.Fprintf(imp.writer, "  [SKIP]  %q (%s)\n", it.Text, it.Type)
				result.Skipped++
				continue
			}
			fmt.Fprintf(imp.writer, "  [UPDATE]  %q (%s)\n", it.Text, it.Type)
			result.Updated++
		} else {
			fmt.Fprintf(imp.writer, "  [NEW]  %q (%s)\n", it.Text, it.Type)
			result.New++
		}
		restore = append(restore, it)
	}

	if opts.DryRun || len(restore) == 0 {
		return &result, nil
	}
	if err := imp.repo.Restore(ctx, restore); err != nil {
		return nil, fmt.Errorf("repo.Restore() > %w", err)
	}
	return &result, nil
}

func invalidReason(it item.Item) string {
	switch {
	case it.IsDraft():
		return "drafts cannot be imported"
	case !it.Type.Valid():
		return fmt.Sprintf("unknown type %q", it.Type)
	case it.Text == "":
		return "text is empty"
	case it.Type.RequiresSource() && !it.HasSource():
		return fmt.Sprintf("a %s needs a source", it.Type)
	}
	return ""
}
