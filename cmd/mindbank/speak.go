package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/at-ishikawa/mindbank/internal/inference/openai"
	"github.com/at-ishikawa/mindbank/internal/speech"
)

type Voice string

func (v *Voice) Set(val string) error {
	if !speech.ValidVoice(val) {
		return fmt.Errorf("invalid voice: %s", val)
	}
	*v = Voice(val)
	return nil
}

func (v Voice) String() string {
	return string(v)
}

func (v *Voice) Type() string {
	return "Voice"
}

var _ pflag.Value = (*Voice)(nil)

func newSpeakCommand() *cobra.Command {
	var output string
	voice := Voice(speech.DefaultVoice)
	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: "Synthesize speech for text and save it as MP3",
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

			cache, err := speech.NewCache(client, speech.Options{
				Size:         1,
				DefaultVoice: cfg.Speech.DefaultVoice,
				Timeout:      cfg.Speech.Timeout,
			})
			if err != nil {
				return fmt.Errorf("speech.NewCache() > %w", err)
			}
			handle, err := cache.Speak(cmd.Context(), strings.Join(args, " "), voice.String())
			if err != nil {
				return fmt.Errorf("cache.Speak() > %w", err)
			}
			audio, ok := cache.Lookup(handle.Key)
			if !ok {
				return fmt.Errorf("audio %s was evicted before it could be saved", handle.Key)
			}
			if err := writeFile(output, audio.Data); err != nil {
				return err
			}
			color.Green("saved %s (%s, %d bytes)", output, handle.Voice, len(audio.Data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "speech.mp3", "Output file")
	cmd.Flags().Var(&voice, "voice", fmt.Sprintf("Voice to use. Possible values are %v", speech.Voices))
	return cmd
}
