package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/mindbank/internal/inference"
	"github.com/at-ishikawa/mindbank/internal/inference/openai"
	"github.com/at-ishikawa/mindbank/internal/security"
)

func newClassifyCommand() *cobra.Command {
	var book inference.BookContext
	cmd := &cobra.Command{
		Use:   "classify <text>",
		Short: "Classify text as a word or a quote without saving it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.OpenAI.APIKey == "" {
				return fmt.Errorf("OPENAI_API_KEY environment variable is required")
			}
			client := openai.NewClient(cfg.OpenAI, nil)
			defer func() {
				_ = client.Close()
			}()

			req := inference.ClassifyRequest{
				Text: security.NewTextSanitizer().Sanitize(strings.Join(args, " ")),
			}
			if book.Title != "" {
				req.Context = &book
			}
			result, err := client.Classify(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("client.Classify() > %w", err)
			}
			printClassification(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&book.Title, "book", "", "Title of the book being read")
	cmd.Flags().StringVar(&book.Author, "author", "", "Author of the book being read")
	return cmd
}

func printClassification(w io.Writer, c inference.Classification) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "%s ", strings.ToUpper(c.Type))
	fmt.Fprintln(w, c.CleanedText)

	label := color.New(color.FgCyan)
	field := func(name, value string) {
		if value == "" {
			return
		}
		_, _ = label.Fprintf(w, "  %s: ", name)
		fmt.Fprintln(w, value)
	}
	field("part of speech", c.PartOfSpeech)
	field("definition", c.Definition)
	field("example", c.Example)
	field("meaning", c.Meaning)
	field("author", c.Author)
	field("source", c.Source)
	if len(c.Tags) > 0 {
		field("tags", strings.Join(c.Tags, ", "))
	}
}
