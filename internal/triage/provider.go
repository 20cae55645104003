package triage

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultMaxTokens = 1024

// Request holds the parameters for an LLM completion call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// Response holds the result of an LLM completion call.
type Response struct {
	Content string
	Model   string
}

// Provider is the interface for LLM completion backends.
type Provider interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// NewProvider parses a "provider:model" string and returns the matching
// Provider.
// Example: "anthropic:claude-3-5-haiku-latest".
func NewProvider(providerModel, apiKey string, client *http.Client) (Provider, error) {
	parts := strings.SplitN(providerModel, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid model format %q: expected provider:model (e.g. anthropic:claude-3-5-haiku-latest)", providerModel)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no api key configured for %s", parts[0])
	}
	if client == nil {
		client = &http.Client{Timeout: time.Minute}
	}
	switch parts[0] {
	case "anthropic":
		return &anthropicProvider{
			model:  parts[1],
			apiKey: apiKey,
			url:    defaultAnthropicURL,
			client: client,
		}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q: supported providers are anthropic", parts[0])
	}
}

// truncate limits a string to maxLen runes, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
