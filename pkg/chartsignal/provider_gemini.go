package chartsignal

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"google.golang.org/genai"
)

// geminiInvoker calls the Gemini native generateContent API.
type geminiInvoker struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func newGeminiInvoker(cfg ProviderConfig) (*geminiInvoker, error) {
	clientConfig, err := buildGeminiClientConfig(cfg)
	if err != nil {
		return nil, WrapError(ErrCodeConfiguration, "invalid gemini base url", err)
	}
	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, WrapError(ErrCodeConfiguration, "create gemini client failed", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &geminiInvoker{client: client, model: model, timeout: cfg.Timeout}, nil
}

func (g *geminiInvoker) Invoke(ctx context.Context, prompt Prompt) (string, error) {
	ctx, cancel := withCallTimeout(ctx, g.timeout)
	defer cancel()

	parts := make([]*genai.Part, 0, 1+2*len(prompt.Images))
	parts = append(parts, &genai.Part{Text: prompt.Task})
	for _, img := range prompt.Images {
		parts = append(parts,
			&genai.Part{Text: img.Label},
			&genai.Part{InlineData: &genai.Blob{MIMEType: img.Image.MediaType, Data: img.Image.Data}},
		)
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	requestConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: prompt.System}},
		},
		Temperature:      genai.Ptr(float32(temperature)),
		MaxOutputTokens:  maxOutputTokens,
		ResponseMIMEType: "application/json",
	}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, requestConfig)
	if err != nil {
		return "", unavailable(ProviderGemini, fmt.Errorf("gemini generate content failed: %w", err))
	}
	return strings.TrimSpace(response.Text()), nil
}

func buildGeminiClientConfig(cfg ProviderConfig) (*genai.ClientConfig, error) {
	baseURL, apiVersion, err := parseGeminiBaseURLAndVersion(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	return &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    baseURL,
			APIVersion: apiVersion,
		},
	}, nil
}

// parseGeminiBaseURLAndVersion splits ".../v1beta" style endpoints into the
// base URL and API version genai expects separately.
func parseGeminiBaseURLAndVersion(endpoint string) (string, string, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		trimmed = defaultGeminiBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", "", fmt.Errorf("invalid gemini endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", "", fmt.Errorf("invalid gemini endpoint scheme: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("invalid gemini endpoint host")
	}

	segments := []string{}
	if path := strings.Trim(parsed.Path, "/"); path != "" {
		segments = strings.Split(path, "/")
	}

	apiVersion := "v1beta"
	prefix := segments
	for idx, segment := range segments {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(segment)), "v1") {
			apiVersion = segment
			prefix = segments[:idx]
			break
		}
	}

	// genai joins BaseURL and APIVersion with "/", so no trailing slash here.
	baseURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	if basePath := strings.Trim(strings.Join(prefix, "/"), "/"); basePath != "" {
		baseURL += "/" + basePath
	}
	return baseURL, apiVersion, nil
}
