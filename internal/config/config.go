// Package config loads the process configuration from the environment.
// The resulting Config is immutable after startup and passed by value.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Provider names accepted in PROVIDER_ORDER.
const (
	ProviderLocal  = "local"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// DefaultOrder is the provider preference used when PROVIDER_ORDER is unset.
// The local model comes first; the remote APIs are tried only when it is
// missing or failing.
var DefaultOrder = []string{ProviderLocal, ProviderOpenAI, ProviderGemini}

type Config struct {
	Port string

	OpenAIKey   string
	OpenAIModel string

	GeminiKey   string
	GeminiModel string

	OllamaHost string
	LocalModel string

	// ProviderOrder is the resolved preference order. Names unknown to the
	// resolver have already been dropped.
	ProviderOrder []string

	// MaxNewTokens caps generation length on backends that support it.
	MaxNewTokens int

	// HistoryCharBudget bounds how much history (in bytes of content) is
	// sent to the local model; oldest turns are dropped first.
	HistoryCharBudget int
}

// FromEnv reads the configuration from the current environment. It never
// fails: absent variables fall back to defaults, and a missing credential
// simply leaves that provider unconfigured.
func FromEnv() Config {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       getenv("OPENAI_MODEL", "gpt-4.1-mini"),
		GeminiKey:         firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"),
		GeminiModel:       getenv("GEMINI_MODEL", "gemini-2.0-flash"),
		OllamaHost:        getenv("OLLAMA_HOST", "http://localhost:11434"),
		LocalModel:        getenv("LOCAL_MODEL", "llama3.2"),
		MaxNewTokens:      getenvInt("MAX_NEW_TOKENS", 50),
		HistoryCharBudget: getenvInt("HISTORY_CHAR_BUDGET", 8*1024),
	}
	cfg.ProviderOrder = ParseOrder(os.Getenv("PROVIDER_ORDER"))
	return cfg
}

// ParseOrder turns a comma-separated provider list into a preference order.
// Unknown names and duplicates are dropped; an empty or all-invalid value
// yields DefaultOrder.
func ParseOrder(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), DefaultOrder...)
	}
	seen := make(map[string]bool, 3)
	var order []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		switch name {
		case ProviderLocal, ProviderOpenAI, ProviderGemini:
			if !seen[name] {
				seen[name] = true
				order = append(order, name)
			}
		}
	}
	if len(order) == 0 {
		return append([]string(nil), DefaultOrder...)
	}
	return order
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
