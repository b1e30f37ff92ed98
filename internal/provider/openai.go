package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/charlahq/charla/internal"
)

const systemPrompt = "You are a concise, friendly chat assistant."

// OpenAIProvider talks to the OpenAI API over plain HTTP. Because the call
// shape has changed across API generations, Reply tries an ordered set of
// request adapters: the Responses API first, then classic chat completions.
// A structural mismatch (404, unknown-field rejection, empty payload) moves
// on to the next adapter; auth, quota and server errors abort immediately.
type OpenAIProvider struct {
	apiKey   string
	model    string
	baseURL  string
	client   *http.Client
	adapters []requestAdapter
	log      zerolog.Logger
}

type requestAdapter struct {
	name string
	call func(ctx context.Context, history []internal.Message) (string, error)
}

func NewOpenAIProvider(apiKey, model string, log zerolog.Logger) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.openai.com",
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     log.With().Str("provider", "openai").Logger(),
	}
	p.adapters = []requestAdapter{
		{name: "responses", call: p.callResponses},
		{name: "chat_completions", call: p.callChatCompletions},
	}
	return p
}

func (p *OpenAIProvider) Name() string  { return "openai" }
func (p *OpenAIProvider) Model() string { return p.model }

func (p *OpenAIProvider) Available(ctx context.Context) error {
	if p.apiKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY not set", ErrUnavailable)
	}
	return nil
}

func (p *OpenAIProvider) Reply(ctx context.Context, history []internal.Message) (string, error) {
	var lastErr error
	for _, a := range p.adapters {
		text, err := a.call(ctx, history)
		if err == nil {
			return text, nil
		}
		if !isShapeMismatch(err) {
			return "", err
		}
		p.log.Debug().Str("adapter", a.name).Err(err).Msg("call shape rejected, trying next")
		lastErr = err
	}
	return "", fmt.Errorf("no supported call shape: %w", lastErr)
}

// isShapeMismatch separates "this endpoint/shape does not exist here" from
// real failures. 404 and 400 mean the adapter's shape is wrong for this API
// surface; anything else is a genuine error.
func isShapeMismatch(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusNotFound || se.Code == http.StatusBadRequest
	}
	return errors.Is(err, errEmptyCompletion)
}

var errEmptyCompletion = errors.New("empty completion payload")

type chatItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (p *OpenAIProvider) items(history []internal.Message) []chatItem {
	items := make([]chatItem, 0, len(history)+1)
	items = append(items, chatItem{Role: "system", Content: systemPrompt})
	for _, m := range history {
		items = append(items, chatItem{Role: string(m.Role), Content: m.Content})
	}
	return items
}

// callResponses posts to the Responses API:
// POST {base}/v1/responses {"model": ..., "input": [{role, content}, ...]}
func (p *OpenAIProvider) callResponses(ctx context.Context, history []internal.Message) (string, error) {
	payload := struct {
		Model string     `json:"model"`
		Input []chatItem `json:"input"`
	}{Model: p.model, Input: p.items(history)}

	var out struct {
		Output []struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := p.post(ctx, "/v1/responses", payload, &out); err != nil {
		return "", err
	}
	if len(out.Output) > 0 && len(out.Output[0].Content) > 0 {
		if text := out.Output[0].Content[0].Text; text != "" {
			return text, nil
		}
	}
	return "", errEmptyCompletion
}

// callChatCompletions posts the older chat-completions shape.
func (p *OpenAIProvider) callChatCompletions(ctx context.Context, history []internal.Message) (string, error) {
	payload := struct {
		Model    string     `json:"model"`
		Messages []chatItem `json:"messages"`
	}{Model: p.model, Messages: p.items(history)}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := p.post(ctx, "/v1/chat/completions", payload, &out); err != nil {
		return "", err
	}
	if len(out.Choices) > 0 {
		if text := strings.TrimSpace(out.Choices[0].Message.Content); text != "" {
			return text, nil
		}
	}
	return "", errEmptyCompletion
}

func (p *OpenAIProvider) post(ctx context.Context, path string, payload, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{Code: resp.StatusCode, Message: e.Error.Message}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
