package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/mindbank/internal/books"
	"github.com/at-ishikawa/mindbank/internal/metrics"
)

func newBooksCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "books",
		Short: "Book metadata commands",
	}
	rootCommand.AddCommand(&cobra.Command{
		Use:   "search <query>",
		Short: "Search book metadata by title or author",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := books.NewClient(cfg.Books, metrics.Nop{})
			candidates, err := client.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("client.Search() > %w", err)
			}
			printCandidates(cmd.OutOrStdout(), candidates)
			return nil
		},
	})
	return rootCommand
}

func printCandidates(w io.Writer, candidates []books.Candidate) {
	if len(candidates) == 0 {
		fmt.Fprintln(w, "no books found")
		return
	}
	title := color.New(color.FgGreen, color.Bold)
	for i, c := range candidates {
		_, _ = title.Fprintf(w, "%d. %s\n", i+1, c.Title)
		if len(c.Authors) > 0 {
			fmt.Fprintf(w, "   by %s\n", strings.Join(c.Authors, ", "))
		}
		if c.ThumbnailURL != "" {
			fmt.Fprintf(w, "   cover: %s\n", c.ThumbnailURL)
		}
	}
}
