package chartsignal

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Provider names.
const (
	ProviderGateway   = "gateway"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

const (
	defaultGatewayBaseURL   = "https://ai.gateway.lovable.dev/v1"
	defaultGatewayModel     = "google/gemini-2.5-flash"
	defaultGeminiBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel      = "gemini-2.5-flash"
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-sonnet-4-5"

	maxOutputTokens = 4096
	temperature     = 0.2
)

// Invoker sends one prompt to an inference service and returns its raw text.
// Implementations make exactly one attempt.
type Invoker interface {
	Invoke(ctx context.Context, prompt Prompt) (string, error)
}

// ProviderConfig selects and configures an Invoker.
type ProviderConfig struct {
	Name    string
	BaseURL string
	Model   string
	APIKey  string
	// Timeout bounds each call when positive.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Providers returns the supported provider names.
func Providers() []string {
	return []string{ProviderGateway, ProviderGemini, ProviderAnthropic}
}

// IsKnownProvider reports whether name selects a supported provider.
func IsKnownProvider(name string) bool {
	normalized := normalizeProviderName(name)
	for _, p := range Providers() {
		if p == normalized {
			return true
		}
	}
	return false
}

func normalizeProviderName(name string) string {
	value := strings.ToLower(strings.TrimSpace(name))
	if value == "" {
		return ProviderGateway
	}
	return value
}

// NewInvoker builds the Invoker named by cfg.Name. A missing credential or an
// unknown provider is reported as ErrCodeConfiguration.
func NewInvoker(cfg ProviderConfig) (Invoker, error) {
	cfg.Name = normalizeProviderName(cfg.Name)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	if !IsKnownProvider(cfg.Name) {
		return nil, NewError(ErrCodeConfiguration, fmt.Sprintf("unknown provider %q, expected one of: %s", cfg.Name, strings.Join(Providers(), ", ")))
	}
	if cfg.APIKey == "" {
		return nil, NewError(ErrCodeConfiguration, fmt.Sprintf("%s provider credential is not configured", cfg.Name))
	}

	switch cfg.Name {
	case ProviderGemini:
		return newGeminiInvoker(cfg)
	case ProviderAnthropic:
		return newAnthropicInvoker(cfg), nil
	default:
		return newGatewayInvoker(cfg)
	}
}

func withCallTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func unavailable(provider string, err error) error {
	return WrapError(ErrCodeUnavailable, provider+" request failed", err)
}

func withTrailingSlash(baseURL string) string {
	if baseURL == "" || strings.HasSuffix(baseURL, "/") {
		return baseURL
	}
	return baseURL + "/"
}
