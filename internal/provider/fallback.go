package provider

import (
	"context"
	"strings"

	"github.com/charlahq/charla/internal"
)

// FallbackProvider is the last-resort responder. It needs no network, no
// credentials and no model, and by construction never fails and never
// returns an empty string.
type FallbackProvider struct{}

func (FallbackProvider) Name() string  { return "fallback" }
func (FallbackProvider) Model() string { return "canned-rules" }

func (FallbackProvider) Available(ctx context.Context) error { return nil }

func (f FallbackProvider) Reply(ctx context.Context, history []internal.Message) (string, error) {
	return f.Respond(history), nil
}

// Respond applies a few keyword rules to the last user message and falls
// back to a deterministic echo. Exposed separately so callers that must not
// handle errors at all can skip the ChatProvider signature.
func (FallbackProvider) Respond(history []internal.Message) string {
	last := lastUserMessage(history)
	text := strings.ToLower(strings.TrimSpace(last))

	switch {
	case text == "":
		return "Hello! Ask me anything and I'll do my best."
	case containsAny(text, "hello", "hi ", "hey", "hola", "good morning", "good evening"),
		text == "hi":
		return "Hello! How can I help you today?"
	case containsAny(text, "thank", "gracias"):
		return "You're welcome!"
	case containsAny(text, "bye", "goodbye", "see you", "adios"):
		return "Goodbye! Come back anytime."
	case containsAny(text, "how are you"):
		return "I'm doing fine, thanks for asking. What can I do for you?"
	case strings.HasSuffix(text, "?"):
		return "That's a good question. I can't reach a language model right now, but feel free to ask again later."
	default:
		return "I heard you say: \"" + strings.TrimSpace(last) + "\". My language models are offline at the moment, but I'm still listening."
	}
}

func lastUserMessage(history []internal.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == internal.RoleUser {
			return history[i].Content
		}
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
