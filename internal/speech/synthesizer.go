package speech

import (
	"context"
	"fmt"
)

//go:generate mockgen -source=synthesizer.go -destination=../mocks/speech/mock_synthesizer.go -package=mock_speech

// Synthesizer turns text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// SynthesisError is a failed or rejected speech request.
type SynthesisError struct {
	Reason string
	Err    error
}

func (e *SynthesisError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("speech synthesis: %s", e.Reason)
	}
	return fmt.Sprintf("speech synthesis: %s: %v", e.Reason, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
