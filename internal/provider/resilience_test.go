package provider

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlahq/charla/internal"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsedTime:  20 * time.Millisecond,
	}
}

// flakyProvider fails with a transient error a fixed number of times before
// succeeding.
type flakyProvider struct {
	fakeProvider
	failures int
}

func (f *flakyProvider) Reply(ctx context.Context, history []internal.Message) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", &StatusError{Code: 503, Message: "overloaded"}
	}
	return f.replyText, nil
}

func TestResilienceRetriesTransientErrors(t *testing.T) {
	inner := &flakyProvider{failures: 2}
	inner.name = "openai"
	inner.replyText = "recovered"

	p := WithResilience(inner, fastRetry(), zerolog.Nop())
	text, err := p.Reply(context.Background(), userTurn("hi"))

	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 3, inner.calls)
}

func TestResilienceDoesNotRetryPermanentErrors(t *testing.T) {
	inner := &fakeProvider{name: "openai", replyErr: &StatusError{Code: 401, Message: "bad key"}}

	p := WithResilience(inner, fastRetry(), zerolog.Nop())
	_, err := p.Reply(context.Background(), userTurn("hi"))

	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 401, se.Code)
	assert.Equal(t, 1, inner.calls)
}

func TestResiliencePassesThroughMetadata(t *testing.T) {
	inner := &fakeProvider{name: "gemini", model: "gemini-test", availableErr: ErrUnavailable}
	p := WithResilience(inner, fastRetry(), zerolog.Nop())

	assert.Equal(t, "gemini", p.Name())
	assert.Equal(t, "gemini-test", p.Model())
	assert.ErrorIs(t, p.Available(context.Background()), ErrUnavailable)
}

func TestResilienceBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeProvider{name: "openai", replyErr: &StatusError{Code: 401, Message: "bad key"}}
	p := WithResilience(inner, fastRetry(), zerolog.Nop())

	for i := 0; i < 5; i++ {
		_, err := p.Reply(context.Background(), userTurn("hi"))
		require.Error(t, err)
	}
	assert.Equal(t, 5, inner.calls)

	// Breaker is now open: the backend is no longer called at all.
	_, err := p.Reply(context.Background(), userTurn("hi"))
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 5, inner.calls)
}

func TestResolverTreatsOpenBreakerAsFailedBackend(t *testing.T) {
	broken := &fakeProvider{name: "openai", replyErr: &StatusError{Code: 401}}
	wrapped := WithResilience(broken, fastRetry(), zerolog.Nop())
	healthy := &fakeProvider{name: "gemini", model: "gemini-test", replyText: "OK"}

	r := NewResolver(context.Background(), []ChatProvider{wrapped, healthy}, zerolog.Nop())

	// Trip the breaker, then confirm requests still get served.
	for i := 0; i < 6; i++ {
		reply, name, _ := r.GenerateReply(context.Background(), userTurn("hi"))
		assert.Equal(t, "OK", reply)
		assert.Equal(t, "gemini", name)
	}
}
