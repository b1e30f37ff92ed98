// Package provider holds the chat backends and the resolver that picks
// between them.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/charlahq/charla/internal"
)

// ChatProvider is a backend that can turn conversation history into a reply.
// The history already includes the latest user message.
type ChatProvider interface {
	// Name identifies the backend ("local", "openai", "gemini", "fallback").
	Name() string

	// Model returns the model identifier the backend generates with.
	Model() string

	// Available reports whether the backend can serve requests. It is
	// called once at startup; a non-nil error excludes the backend from
	// the preference list.
	Available(ctx context.Context) error

	Reply(ctx context.Context, history []internal.Message) (string, error)
}

// ErrUnavailable marks a backend that cannot serve at all, typically for a
// missing credential. Wrapped errors carry the detail.
var ErrUnavailable = errors.New("provider unavailable")

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("upstream status %d", e.Code)
}

// IsTransient reports whether an error is worth retrying: timeouts,
// rate limits and server-side failures. Everything else (bad credential,
// malformed request) will not get better on its own.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
