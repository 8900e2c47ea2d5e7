package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/at-ishikawa/mindbank/internal/dictionary"
)

type OutputFormat string

func (f *OutputFormat) Set(val string) error {
	for _, format := range allOutputFormats {
		if val == string(format) {
			*f = format
			return nil
		}
	}
	return fmt.Errorf("invalid output format: %s", val)
}

func (f OutputFormat) String() string {
	return string(f)
}

func (f *OutputFormat) Type() string {
	return "OutputFormat"
}

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

var (
	_                pflag.Value = (*OutputFormat)(nil)
	allOutputFormats             = []OutputFormat{OutputFormatText, OutputFormatJSON}
)

func newDictionaryCommand() *cobra.Command {
	rootCommand := cobra.Command{
		Use:   "dictionary",
		Short: "Dictionary commands",
	}
	flags := rootCommand.PersistentFlags()

	format := OutputFormatText
	flags.Var(&format, "output", fmt.Sprintf("Output format. Possible values are %v", allOutputFormats))

	rootCommand.AddCommand(&cobra.Command{
		Use:   "lookup <word>",
		Short: "Look up a word, reading the local cache first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			reader := dictionary.NewReader(cfg.Dictionaries.RapidAPI, dictionary.NewFileCache(cfg.Dictionaries.RapidAPI.CacheDirectory))
			response, err := reader.Lookup(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("reader.Lookup() > %w", err)
			}

			switch format {
			case OutputFormatJSON:
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(response); err != nil {
					return fmt.Errorf("encoder.Encode() > %w", err)
				}
			default:
				fmt.Fprint(cmd.OutOrStdout(), response.Format())
			}
			return nil
		},
	})
	return &rootCommand
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("os.WriteFile(%s) > %w", path, err)
	}
	return nil
}
