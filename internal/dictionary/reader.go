// Package dictionary looks up words in WordsAPI and caches the responses.
package dictionary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/at-ishikawa/mindbank/internal/config"
	"github.com/at-ishikawa/mindbank/internal/dictionary/rapidapi"
)

var (
	ErrNotConfigured = errors.New("dictionary API is not configured")
	ErrWordNotFound  = errors.New("word not found")
	ErrInvalidWord   = errors.New("invalid word")
)

var wordPattern = regexp.MustCompile(`^[\p{L}][\p{L}' -]*$`)

type Reader struct {
	client     *resty.Client
	configured bool
	cache      Cache
}

func NewReader(cfg config.RapidAPIConfig, cache Cache) *Reader {
	client := resty.New().
		SetBaseURL(fmt.Sprintf("https://%s", cfg.Host)).
		SetHeader("x-rapidapi-host", cfg.Host).
		SetHeader("x-rapidapi-key", cfg.Key).
		SetTimeout(10 * time.Second)
	return &Reader{
		client:     client,
		configured: cfg.Host != "" && cfg.Key != "",
		cache:      cache,
	}
}

// NormalizeWord lowercases and trims word and rejects anything that is not a
// plain word or short phrase.
func NormalizeWord(word string) (string, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if !wordPattern.MatchString(word) {
		return "", fmt.Errorf("%w: %q", ErrInvalidWord, word)
	}
	return word, nil
}

func (r *Reader) lookupAPI(ctx context.Context, word string) ([]byte, error) {
	if !r.configured {
		return nil, ErrNotConfigured
	}

	res, err := r.client.R().
		SetContext(ctx).
		SetPathParam("word", word).
		Get("/words/{word}")
	if err != nil {
		return nil, fmt.Errorf("client.R.Get > %w", err)
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrWordNotFound, word)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("status code: %d, body: %s", res.StatusCode(), string(res.Body()))
	}
	return res.Body(), nil
}

func (r *Reader) Lookup(ctx context.Context, word string) (rapidapi.Response, error) {
	var resp rapidapi.Response
	word, err := NormalizeWord(word)
	if err != nil {
		return resp, err
	}

	contents, ok, err := r.cache.Load(ctx, word)
	if err != nil {
		slog.Default().Warn("dictionary cache is unavailable", "word", word, "error", err)
	}
	if !ok {
		contents, err = r.lookupAPI(ctx, word)
		if err != nil {
			return resp, fmt.Errorf("r.lookupAPI > %w", err)
		}
		if err := r.cache.Store(ctx, word, contents); err != nil {
			slog.Default().Warn("failed to cache a dictionary response", "word", word, "error", err)
		}
	}

	if err := json.Unmarshal(contents, &resp); err != nil {
		return resp, fmt.Errorf("json.Unmarshal > %w", err)
	}
	return resp, nil
}
