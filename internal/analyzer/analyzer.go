// Package analyzer sends an incident to an LLM and turns the reply into a
// structured patch solution.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/debugops/debugops/internal/incidents"
)

// Provider names accepted in Config.Provider
const (
	ProviderGoogle    = "google"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var defaultModels = map[string]string{
	ProviderGoogle:    "gemini-2.5-flash",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-sonnet-4-5",
}

var (
	// ErrMissingAPIKey is returned by an analyzer that has no credentials
	ErrMissingAPIKey = errors.New("LLM API key is missing")

	// ErrMalformedResponse is returned when the model reply is not a complete patch solution
	ErrMalformedResponse = errors.New("malformed analysis response")

	// ErrEmptyResponse is returned when the model produced no text
	ErrEmptyResponse = errors.New("empty analysis response")
)

// Client analyzes one incident
type Client interface {
	// Name is a human readable engine label, e.g. "Gemini (gemini-2.5-flash)"
	Name() string
	Analyze(ctx context.Context, message, detail, sourceLabel string) (*incidents.PatchSolution, error)
}

// Config selects and configures a provider
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// DefaultModel returns the model used for a provider when none is configured
func DefaultModel(provider string) string {
	return defaultModels[strings.ToLower(provider)]
}

// New returns the client for cfg.Provider. Without an API key it returns an
// Unconfigured client so analysis runs fail instead of the server refusing to start.
func New(ctx context.Context, cfg Config) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderGoogle
	}
	if _, ok := defaultModels[provider]; !ok {
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModels[provider]
	}

	if cfg.APIKey == "" {
		return &Unconfigured{provider: provider, model: cfg.Model}, nil
	}

	switch provider {
	case ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	case ProviderAnthropic:
		return newAnthropicClient(cfg), nil
	default:
		return newGeminiClient(ctx, cfg)
	}
}

// IsConfigured reports whether c can reach a provider
func IsConfigured(c Client) bool {
	_, unconfigured := c.(*Unconfigured)
	return c != nil && !unconfigured
}

// Unconfigured fails every analysis with ErrMissingAPIKey
type Unconfigured struct {
	provider string
	model    string
}

func (u *Unconfigured) Name() string {
	return engineName(u.provider, u.model)
}

func (u *Unconfigured) Analyze(ctx context.Context, message, detail, sourceLabel string) (*incidents.PatchSolution, error) {
	return nil, ErrMissingAPIKey
}

func engineName(provider, model string) string {
	label := map[string]string{
		ProviderGoogle:    "Gemini",
		ProviderOpenAI:    "OpenAI",
		ProviderAnthropic: "Claude",
	}[provider]
	if label == "" {
		label = provider
	}
	return fmt.Sprintf("%s (%s)", label, model)
}
