package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/mindbank/internal/bookshelf"
	"github.com/at-ishikawa/mindbank/internal/collection"
	"github.com/at-ishikawa/mindbank/internal/config"
	"github.com/at-ishikawa/mindbank/internal/database"
	"github.com/at-ishikawa/mindbank/internal/datasync"
	"github.com/at-ishikawa/mindbank/internal/item"
	"github.com/at-ishikawa/mindbank/internal/share"
)

var errMemoryStorage = errors.New("storage.driver is memory; export and import need the mysql driver")

// openRepository connects to the configured database. The caller closes the
// returned connection.
func openRepository(ctx context.Context, cfg *config.Config) (item.Repository, *sqlx.DB, error) {
	if cfg.Storage.Driver != "mysql" {
		return nil, nil, errMemoryStorage
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("database.Open() > %w", err)
	}
	if err := database.WaitReady(ctx, db, cfg.Database.ReadyAttempts); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("database.WaitReady() > %w", err)
	}
	return item.NewDBRepository(db), db, nil
}

func newExportCommand() *cobra.Command {
	var userID, output string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's items",
	}
	exportCmd.PersistentFlags().StringVar(&userID, "user", "", "User ID to export")
	exportCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output file (default: a file in outputs.export_directory)")
	_ = exportCmd.MarkPersistentFlagRequired("user")

	exportCmd.AddCommand(&cobra.Command{
		Use:   "yaml",
		Short: "Export every item as a YAML backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			repo, db, err := openRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			backup, err := datasync.NewExporter(repo).Export(ctx, userID)
			if err != nil {
				return fmt.Errorf("exporter.Export() > %w", err)
			}
			path := exportPath(cfg, output, userID+".yml")
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("os.MkdirAll() > %w", err)
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("os.Create(%s) > %w", path, err)
			}
			defer func() {
				_ = f.Close()
			}()
			if err := datasync.WriteYAML(f, backup); err != nil {
				return fmt.Errorf("datasync.WriteYAML() > %w", err)
			}
			color.Green("exported %d items to %s", len(backup.Items), path)
			return nil
		},
	})

	var bookTitle string
	pdfCmd := &cobra.Command{
		Use:   "pdf",
		Short: "Export the quotebook, or one book with --book, as a PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			repo, db, err := openRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			items, err := repo.FindAll(ctx, userID)
			if err != nil {
				return fmt.Errorf("repo.FindAll() > %w", err)
			}
			markdown, name, err := exportMarkdown(items, bookTitle)
			if err != nil {
				return err
			}
			path, err := share.WritePDF(markdown, exportPath(cfg, output, name))
			if err != nil {
				return fmt.Errorf("share.WritePDF() > %w", err)
			}
			color.Green("exported %s", path)
			return nil
		},
	}
	pdfCmd.Flags().StringVar(&bookTitle, "book", "", "Export only the quotes and notes of this book")
	exportCmd.AddCommand(pdfCmd)
	return exportCmd
}

// exportMarkdown returns the markdown document and a default file name.
func exportMarkdown(items []item.Item, bookTitle string) (string, string, error) {
	if bookTitle == "" {
		return share.QuotebookMarkdown(collection.BuildViews(items).Quotebook), "quotebook.pdf", nil
	}
	book, ok := bookshelf.Find(bookshelf.Aggregate(items), bookTitle)
	if !ok {
		return "", "", fmt.Errorf("book %q is not on the bookshelf", bookTitle)
	}
	return share.BookMarkdown(book), bookFileName(book.Title) + ".pdf", nil
}

func bookFileName(title string) string {
	name := make([]rune, 0, len(title))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			name = append(name, r)
		default:
			if len(name) > 0 && name[len(name)-1] != '-' {
				name = append(name, '-')
			}
		}
	}
	if len(name) > 0 && name[len(name)-1] == '-' {
		name = name[:len(name)-1]
	}
	if len(name) == 0 {
		return "book"
	}
	return string(name)
}

func exportPath(cfg *config.Config, output, defaultName string) string {
	if output != "" {
		return output
	}
	return filepath.Join(cfg.Outputs.ExportDirectory, defaultName)
}

func newImportCommand() *cobra.Command {
	var userID string
	var dryRun bool
	var updateExisting bool

	cmd := &cobra.Command{
		Use:   "import <backup.yml>",
		Short: "Import a YAML backup into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("os.Open(%s) > %w", args[0], err)
			}
			defer func() {
				_ = f.Close()
			}()
			backup, err := datasync.ReadYAML(f)
			if err != nil {
				return fmt.Errorf("datasync.ReadYAML() > %w", err)
			}

			repo, db, err := openRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			opts := datasync.ImportOptions{
				DryRun:         dryRun,
				UpdateExisting: updateExisting,
			}
			result, err := datasync.NewImporter(repo, cmd.OutOrStdout()).Import(ctx, userID, backup, opts)
			if err != nil {
				return fmt.Errorf("importer.Import() > %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "\nImport Summary:")
			if opts.DryRun {
				fmt.Fprintln(out, "  (dry-run mode, no changes made)")
			}
			fmt.Fprintf(out, "  Items: %d new, %d skipped, %d updated, %d warnings\n", result.New, result.Skipped, result.Updated, result.Warnings)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID that receives the items")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview changes without modifying the database")
	cmd.Flags().BoolVar(&updateExisting, "update-existing", false, "Update existing records with new data")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
