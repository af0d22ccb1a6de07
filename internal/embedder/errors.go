package embedder

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by any call made after Close.
	ErrClosed = errors.New("embedder: closed")

	// ErrNoEmbedding is returned when a backend answers without vectors.
	ErrNoEmbedding = errors.New("embedder: no embedding returned")
)

// AuthenticationError reports that a backend rejected the caller's
// credentials. It is the only failure the adapters reclassify; everything else
// is returned as the backend reported it.
type AuthenticationError struct {
	// Provider names the backend, e.g. "graphwise" or "openai".
	Provider string
	// Hint is the user-facing remedy.
	Hint string
	// Err is the underlying transport error.
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %s", e.Provider, e.Hint)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// IsAuthentication reports whether err is, or wraps, an AuthenticationError.
func IsAuthentication(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// ErrCGORequired is returned by the local embedder in builds without cgo.
var ErrCGORequired = errors.New("local embedder requires cgo; build with CGO_ENABLED=1")
