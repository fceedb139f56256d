package ai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"smartsurvey/internal/config"
)

// CompletionRequest is one prompt sent to a model
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Provider turns a prompt into raw model text. JSON output is always requested.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

var errNotConfigured = errors.New("ai provider not configured")

type disabledProvider struct{}

func (disabledProvider) Name() string { return "disabled" }

func (disabledProvider) Complete(context.Context, CompletionRequest) (string, error) {
	return "", errNotConfigured
}

// NewProvider picks the provider named in cfg. Without an API key every call
// fails, which sends callers down their fallback paths.
func NewProvider(cfg *config.AIConfig, client *http.Client) Provider {
	if !cfg.IsEnabled() {
		return disabledProvider{}
	}
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond}
	}
	switch cfg.Provider {
	case config.ProviderGemini:
		return newGeminiProvider(cfg, client)
	default:
		return newOpenAIProvider(cfg, client)
	}
}
