package chartsignal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicInvoker calls the Anthropic Messages API. There is no strict JSON
// mode, so the system prompt alone carries the output contract.
type anthropicInvoker struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
}

func newAnthropicInvoker(cfg ProviderConfig) *anthropicInvoker {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(withTrailingSlash(baseURL)),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &anthropicInvoker{
		client:  anthropic.NewClient(opts...),
		model:   model,
		timeout: cfg.Timeout,
	}
}

func (a *anthropicInvoker) Invoke(ctx context.Context, prompt Prompt) (string, error) {
	ctx, cancel := withCallTimeout(ctx, a.timeout)
	defer cancel()

	blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+2*len(prompt.Images))
	blocks = append(blocks, anthropic.NewTextBlock(prompt.Task))
	for _, img := range prompt.Images {
		blocks = append(blocks,
			anthropic.NewTextBlock(img.Label),
			anthropic.NewImageBlockBase64(img.Image.MediaType, img.Image.Base64()),
		)
	}

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   maxOutputTokens,
		Temperature: anthropic.Float(temperature),
		System:      []anthropic.TextBlockParam{{Text: prompt.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", unavailable(ProviderAnthropic, fmt.Errorf("status %d: %w", apiErr.StatusCode, err))
		}
		return "", unavailable(ProviderAnthropic, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}
