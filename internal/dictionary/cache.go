package dictionary

import "context"

// Cache stores raw dictionary responses by word.
type Cache interface {
	Load(ctx context.Context, word string) ([]byte, bool, error)
	Store(ctx context.Context, word string, contents []byte) error
}
