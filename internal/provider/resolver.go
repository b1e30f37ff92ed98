package provider

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/charlahq/charla/internal"
	"github.com/charlahq/charla/internal/config"
)

// CapabilitySet records, per provider name, whether the backend was usable
// at startup. Computed once; immutable afterwards.
type CapabilitySet map[string]bool

// Resolver owns the ordered preference list of available backends and the
// per-request fallback walk. It has no mutable state after construction.
type Resolver struct {
	providers []ChatProvider
	caps      CapabilitySet
	fallback  FallbackProvider
	log       zerolog.Logger
}

// NewResolver probes the candidate backends, in order, and keeps the ones
// that answer. Unavailable backends are excluded outright rather than
// deprioritized.
func NewResolver(ctx context.Context, candidates []ChatProvider, log zerolog.Logger) *Resolver {
	r := &Resolver{
		caps: make(CapabilitySet, len(candidates)),
		log:  log.With().Str("component", "resolver").Logger(),
	}
	for _, p := range candidates {
		if err := p.Available(ctx); err != nil {
			r.caps[p.Name()] = false
			r.log.Info().Str("provider", p.Name()).Err(err).Msg("backend unavailable, excluded")
			continue
		}
		r.caps[p.Name()] = true
		r.providers = append(r.providers, p)
		r.log.Info().Str("provider", p.Name()).Str("model", p.Model()).Msg("backend available")
	}
	if len(r.providers) == 0 {
		r.log.Warn().Msg("no backends available, every reply will be canned")
	}
	return r
}

// FromConfig builds the production candidate list in the configured
// preference order, with the remote backends wrapped in retry + breaker.
func FromConfig(ctx context.Context, cfg config.Config, log zerolog.Logger) *Resolver {
	var candidates []ChatProvider
	for _, name := range cfg.ProviderOrder {
		switch name {
		case config.ProviderLocal:
			candidates = append(candidates,
				NewLocalProvider(cfg.OllamaHost, cfg.LocalModel, cfg.MaxNewTokens, cfg.HistoryCharBudget, log))
		case config.ProviderOpenAI:
			candidates = append(candidates,
				WithResilience(NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIModel, log), DefaultRetry(), log))
		case config.ProviderGemini:
			candidates = append(candidates,
				WithResilience(NewGeminiProvider(cfg.GeminiKey, cfg.GeminiModel, log), DefaultRetry(), log))
		}
	}
	return NewResolver(ctx, candidates, log)
}

// Capabilities returns the startup availability map.
func (r *Resolver) Capabilities() CapabilitySet { return r.caps }

// Active returns the names of the backends in preference order.
func (r *Resolver) Active() []string {
	names := make([]string, 0, len(r.providers)+1)
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return append(names, r.fallback.Name())
}

// GenerateReply walks the preference list and returns the first successful
// reply. It never fails and never returns an empty string: when every
// backend errors (or none is configured), the canned responder answers.
// Alongside the text it reports which provider and model served the turn.
func (r *Resolver) GenerateReply(ctx context.Context, history []internal.Message) (reply, providerName, model string) {
	for _, p := range r.providers {
		start := time.Now()
		text, err := p.Reply(ctx, history)
		requestsTotal.WithLabelValues(p.Name()).Inc()
		if err != nil {
			failuresTotal.WithLabelValues(p.Name()).Inc()
			r.log.Warn().
				Str("provider", p.Name()).
				Dur("elapsed", time.Since(start)).
				Err(err).
				Msg("backend failed, trying next")
			continue
		}
		if text == "" {
			failuresTotal.WithLabelValues(p.Name()).Inc()
			r.log.Warn().Str("provider", p.Name()).Msg("backend returned empty text, trying next")
			continue
		}
		r.log.Debug().
			Str("provider", p.Name()).
			Dur("elapsed", time.Since(start)).
			Msg("reply generated")
		return text, p.Name(), p.Model()
	}
	fallbackTotal.Inc()
	return r.fallback.Respond(history), r.fallback.Name(), r.fallback.Model()
}
