package chartsignal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// gatewayInvoker talks to an OpenAI-compatible chat completions endpoint.
type gatewayInvoker struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func newGatewayInvoker(cfg ProviderConfig) (*gatewayInvoker, error) {
	baseURL, err := normalizeGatewayBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, WrapError(ErrCodeConfiguration, "invalid gateway base url", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGatewayModel
	}

	opts := []option.RequestOption{
		option.WithBaseURL(withTrailingSlash(baseURL)),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &gatewayInvoker{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: cfg.Timeout,
	}, nil
}

// normalizeGatewayBaseURL accepts a bare host, an API root or a full
// endpoint URL and returns the API root the SDK appends paths to.
func normalizeGatewayBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultGatewayBaseURL, nil
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("invalid base_url scheme: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid base_url host")
	}

	path := strings.TrimRight(parsed.Path, "/")
	for _, suffix := range []string{"/chat/completions", "/responses"} {
		if strings.HasSuffix(path, suffix) {
			path = strings.TrimSuffix(path, suffix)
			parsed.Path = path
			parsed.RawQuery = ""
			return strings.TrimRight(parsed.String(), "/"), nil
		}
	}
	if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	parsed.Path = path
	parsed.RawQuery = ""
	return parsed.String(), nil
}

func (g *gatewayInvoker) Invoke(ctx context.Context, prompt Prompt) (string, error) {
	ctx, cancel := withCallTimeout(ctx, g.timeout)
	defer cancel()

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, 1+2*len(prompt.Images))
	parts = append(parts, openai.TextContentPart(prompt.Task))
	for _, img := range prompt.Images {
		parts = append(parts,
			openai.TextContentPart(img.Label),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: img.Image.DataURI(),
			}),
		)
	}

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(parts),
		},
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxOutputTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", unavailable(ProviderGateway, fmt.Errorf("status %d: %w", apiErr.StatusCode, err))
		}
		return "", unavailable(ProviderGateway, err)
	}
	if len(completion.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
