package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAI(t *testing.T, handler http.Handler) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewOpenAIProvider("test-key", "gpt-test", zerolog.Nop())
	p.baseURL = srv.URL
	return p
}

func TestOpenAIUnavailableWithoutKey(t *testing.T) {
	p := NewOpenAIProvider("", "gpt-test", zerolog.Nop())
	err := p.Available(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)

	p = NewOpenAIProvider("k", "gpt-test", zerolog.Nop())
	assert.NoError(t, p.Available(context.Background()))
}

func TestOpenAIResponsesShape(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	p := newTestOpenAI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/responses", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": []map[string]any{
				{"content": []map[string]any{{"text": "Hi there!"}}},
			},
		})
	}))

	text, err := p.Reply(context.Background(), userTurn("hi"))
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", text)
	assert.Equal(t, "Bearer test-key", gotAuth)

	// system prompt plus the forwarded history
	input := gotBody["input"].([]any)
	require.Len(t, input, 2)
	assert.Equal(t, "system", input[0].(map[string]any)["role"])
	assert.Equal(t, "hi", input[1].(map[string]any)["content"])
}

func TestOpenAIFallsBackToChatCompletions(t *testing.T) {
	p := newTestOpenAI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/responses":
			w.WriteHeader(http.StatusNotFound)
		case "/v1/chat/completions":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]any{"content": "from completions"}},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	text, err := p.Reply(context.Background(), userTurn("hi"))
	require.NoError(t, err)
	assert.Equal(t, "from completions", text)
}

func TestOpenAIAuthErrorAbortsAdapters(t *testing.T) {
	calls := 0
	p := newTestOpenAI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "bad key"},
		})
	}))

	_, err := p.Reply(context.Background(), userTurn("hi"))
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, 1, calls, "auth failure must not try the next call shape")
}

func TestOpenAIAdapterExhaustionIsRuntimeFailure(t *testing.T) {
	p := newTestOpenAI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := p.Reply(context.Background(), userTurn("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no supported call shape")
}

func TestOpenAIEmptyPayloadMovesToNextAdapter(t *testing.T) {
	p := newTestOpenAI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/responses":
			_ = json.NewEncoder(w).Encode(map[string]any{"output": []any{}})
		case "/v1/chat/completions":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]any{"content": "recovered"}},
				},
			})
		}
	}))

	text, err := p.Reply(context.Background(), userTurn("hi"))
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
}
