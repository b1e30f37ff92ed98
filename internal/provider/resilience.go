package provider

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/charlahq/charla/internal"
)

// RetryConfig bounds the retry loop around a remote backend call.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetry keeps retries short: the resolver has other backends to try,
// so a struggling provider should not hold the request for long.
func DefaultRetry() RetryConfig {
	return RetryConfig{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

// resilientProvider wraps a remote backend with bounded exponential retry
// for transient errors and a circuit breaker so a provider that keeps
// failing is skipped cheaply. An open breaker surfaces as an ordinary
// backend failure; the resolver falls through to the next provider.
type resilientProvider struct {
	inner ChatProvider
	cb    *gobreaker.CircuitBreaker
	retry RetryConfig
	log   zerolog.Logger
}

// WithResilience decorates a backend. Availability probing passes through
// untouched; only Reply goes through the breaker.
func WithResilience(inner ChatProvider, retry RetryConfig, log zerolog.Logger) ChatProvider {
	lg := log.With().Str("provider", inner.Name()).Str("component", "resilience").Logger()
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	return &resilientProvider{inner: inner, cb: cb, retry: retry, log: lg}
}

func (p *resilientProvider) Name() string  { return p.inner.Name() }
func (p *resilientProvider) Model() string { return p.inner.Model() }

func (p *resilientProvider) Available(ctx context.Context) error {
	return p.inner.Available(ctx)
}

func (p *resilientProvider) Reply(ctx context.Context, history []internal.Message) (string, error) {
	out, err := p.cb.Execute(func() (interface{}, error) {
		return p.replyWithRetry(ctx, history)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (p *resilientProvider) replyWithRetry(ctx context.Context, history []internal.Message) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.retry.InitialInterval
	bo.MaxInterval = p.retry.MaxInterval
	bo.MaxElapsedTime = p.retry.MaxElapsedTime

	var text string
	op := func() error {
		var err error
		text, err = p.inner.Reply(ctx, history)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		p.log.Debug().Err(err).Msg("transient failure, retrying")
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", err
	}
	return text, nil
}
