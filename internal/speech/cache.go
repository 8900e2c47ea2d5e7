// Package speech memoizes synthesized speech by voice and text.
package speech

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/at-ishikawa/mindbank/internal/metrics"
)

const (
	DefaultVoice     = "alloy"
	DefaultCacheSize = 128
	ContentType      = "audio/mpeg"
)

// Voices are the voices the synthesis endpoint accepts.
var Voices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

func ValidVoice(voice string) bool {
	return slices.Contains(Voices, voice)
}

// Audio is a synthesized clip shared by every handle of the same key.
type Audio struct {
	Key         string
	Voice       string
	Text        string
	Data        []byte
	ContentType string
}

// Handle is one playback of an audio clip.
type Handle struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Voice  string `json:"voice"`
	Cached bool   `json:"cached"`
	audio  *Audio
}

func (h Handle) Audio() *Audio {
	return h.audio
}

// Key identifies the audio of text spoken by voice. Surrounding whitespace
// of text does not matter. Keys are keyed by the cache secret, so a key
// cannot be derived from a guessed text.
func (c *Cache) Key(text, voice string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(voice + "\x00" + strings.TrimSpace(text)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Cache is a bounded LRU of synthesized audio. Concurrent misses on the same
// key share one synthesis call.
type Cache struct {
	synthesizer  Synthesizer
	entries      *lru.Cache[string, *Audio]
	group        singleflight.Group
	defaultVoice string
	timeout      time.Duration
	recorder     metrics.Recorder
	secret       []byte
}

type Options struct {
	Size         int
	DefaultVoice string
	Timeout      time.Duration
	Recorder     metrics.Recorder
	// Secret keys audio keys. A random secret is generated when empty.
	Secret []byte
}

func NewCache(synthesizer Synthesizer, opts Options) (*Cache, error) {
	if opts.Size <= 0 {
		opts.Size = DefaultCacheSize
	}
	if opts.DefaultVoice == "" {
		opts.DefaultVoice = DefaultVoice
	}
	if !ValidVoice(opts.DefaultVoice) {
		return nil, fmt.Errorf("unknown default voice %q", opts.DefaultVoice)
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.Nop{}
	}

	secret := opts.Secret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("rand.Read: %w", err)
		}
	}

	entries, err := lru.New[string, *Audio](opts.Size)
	if err != nil {
		return nil, fmt.Errorf("lru.New: %w", err)
	}
	return &Cache{
		synthesizer:  synthesizer,
		entries:      entries,
		defaultVoice: opts.DefaultVoice,
		timeout:      opts.Timeout,
		recorder:     opts.Recorder,
		secret:       secret,
	}, nil
}

// Speak returns a new handle for text in voice, synthesizing it only when it
// is not cached yet. An empty voice means the default voice.
func (c *Cache) Speak(ctx context.Context, text, voice string) (Handle, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Handle{}, &SynthesisError{Reason: "text is empty"}
	}
	if voice == "" {
		voice = c.defaultVoice
	}
	if !ValidVoice(voice) {
		return Handle{}, &SynthesisError{Reason: fmt.Sprintf("unknown voice %q", voice)}
	}

	key := c.Key(text, voice)
	if audio, ok := c.entries.Get(key); ok {
		c.recorder.RecordAudioCache(true)
		return newHandle(audio, true), nil
	}
	c.recorder.RecordAudioCache(false)

	result := c.group.DoChan(key, func() (any, error) {
		if audio, ok := c.entries.Get(key); ok {
			return audio, nil
		}
		audio, err := c.synthesize(context.WithoutCancel(ctx), key, text, voice)
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, audio)
		return audio, nil
	})

	select {
	case <-ctx.Done():
		return Handle{}, &SynthesisError{Reason: "request canceled", Err: ctx.Err()}
	case r := <-result:
		if r.Err != nil {
			return Handle{}, r.Err
		}
		return newHandle(r.Val.(*Audio), false), nil
	}
}

func (c *Cache) synthesize(ctx context.Context, key, text, voice string) (*Audio, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	data, err := c.synthesizer.Synthesize(ctx, text, voice)
	if err != nil {
		reason := "request failed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timed out"
		}
		slog.Default().Warn("speech synthesis failed", "voice", voice, "error", err, "elapsed", time.Since(start))
		return nil, &SynthesisError{Reason: reason, Err: err}
	}
	if len(data) == 0 {
		return nil, &SynthesisError{Reason: "empty audio"}
	}
	return &Audio{
		Key:         key,
		Voice:       voice,
		Text:        text,
		Data:        data,
		ContentType: ContentType,
	}, nil
}

// Lookup returns cached audio by key without touching its recency.
func (c *Cache) Lookup(key string) (*Audio, bool) {
	return c.entries.Peek(key)
}

func (c *Cache) Len() int {
	return c.entries.Len()
}

func newHandle(audio *Audio, cached bool) Handle {
	return Handle{
		ID:     uuid.NewString(),
		Key:    audio.Key,
		Voice:  audio.Voice,
		Cached: cached,
		audio:  audio,
	}
}
