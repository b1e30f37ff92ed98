package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/charlahq/charla/internal"
)

// LocalProvider generates replies with a model served by a local Ollama
// instance. Availability is a live probe: if no server answers on the
// configured host at startup, the backend is excluded.
type LocalProvider struct {
	host         string
	model        string
	maxNewTokens int
	charBudget   int
	client       *http.Client
	log          zerolog.Logger
}

func NewLocalProvider(host, model string, maxNewTokens, charBudget int, log zerolog.Logger) *LocalProvider {
	return &LocalProvider{
		host:         strings.TrimRight(host, "/"),
		model:        model,
		maxNewTokens: maxNewTokens,
		charBudget:   charBudget,
		client:       &http.Client{Timeout: 120 * time.Second},
		log:          log.With().Str("provider", "local").Logger(),
	}
}

func (p *LocalProvider) Name() string  { return "local" }
func (p *LocalProvider) Model() string { return p.model }

// Available checks that an Ollama server answers on the configured host.
func (p *LocalProvider) Available(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.host+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: no model server at %s: %v", ErrUnavailable, p.host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: model server at %s answered %d", ErrUnavailable, p.host, resp.StatusCode)
	}
	return nil
}

func (p *LocalProvider) Reply(ctx context.Context, history []internal.Message) (string, error) {
	msgs := trimToBudget(history, p.charBudget)
	if len(msgs) < len(history) {
		p.log.Debug().Int("kept", len(msgs)).Int("total", len(history)).Msg("history trimmed to context budget")
	}

	type chatMsg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	payload := struct {
		Model    string         `json:"model"`
		Messages []chatMsg      `json:"messages"`
		Stream   bool           `json:"stream"`
		Options  map[string]any `json:"options,omitempty"`
	}{
		Model:    p.model,
		Messages: make([]chatMsg, 0, len(msgs)),
		Stream:   false,
	}
	if p.maxNewTokens > 0 {
		payload.Options = map[string]any{"num_predict": p.maxNewTokens}
	}
	for _, m := range msgs {
		payload.Messages = append(payload.Messages, chatMsg{Role: string(m.Role), Content: m.Content})
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/chat", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return "", &StatusError{Code: resp.StatusCode, Message: e.Error}
	}

	var out struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	text := strings.TrimSpace(out.Message.Content)
	if text == "" {
		return "", fmt.Errorf("local model returned an empty message")
	}
	return text, nil
}

// trimToBudget drops the oldest turns until the total content size fits the
// budget. The most recent message is always kept, even if it alone exceeds
// the budget.
func trimToBudget(history []internal.Message, budget int) []internal.Message {
	if budget <= 0 || len(history) == 0 {
		return history
	}
	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		total += len(history[i].Content)
		if total > budget && start < len(history) {
			break
		}
		start = i
	}
	return history[start:]
}
