package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/at-ishikawa/mindbank/internal/metrics"
)

var ErrMissingAPIKey = errors.New("missing OpenAI API key")

type SpeechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize returns mp3 audio of text spoken with voice.
func (client *Client) Synthesize(ctx context.Context, text, voice string) (audio []byte, err error) {
	if !client.hasAPIKey {
		return nil, ErrMissingAPIKey
	}

	start := time.Now()
	defer func() {
		metrics.Since(client.metricsRecorder(), "openai_speech", start, err)
	}()

	response, err := client.httpClient.R().
		SetContext(ctx).
		SetBody(SpeechRequest{
			Model:          client.speechModel,
			Input:          text,
			Voice:          voice,
			ResponseFormat: "mp3",
		}).
		Post("/audio/speech")
	if err != nil {
		return nil, fmt.Errorf("httpClient.Post > %w", err)
	}
	if response.IsError() {
		return nil, fmt.Errorf("response error %d: %s", response.StatusCode(), response.String())
	}

	audio = response.Bytes()
	if len(audio) == 0 {
		return nil, errors.New("empty audio response")
	}
	return audio, nil
}
