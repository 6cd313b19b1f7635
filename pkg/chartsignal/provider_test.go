package chartsignal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func samplePrompt() Prompt {
	return BuildPrompt(ValidatedRequest{
		Images: []ImagePayload{
			{MediaType: "image/png", Data: []byte("higher")},
			{MediaType: "image/jpeg", Data: []byte("lower")},
		},
		Strategy: StrategyDay,
	})
}

func TestNewInvokerConfigurationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantErr string
	}{
		{name: "missing credential", cfg: ProviderConfig{Name: "gateway"}, wantErr: "gateway provider credential is not configured"},
		{name: "blank credential", cfg: ProviderConfig{Name: "anthropic", APIKey: "   "}, wantErr: "anthropic provider credential is not configured"},
		{name: "unknown provider", cfg: ProviderConfig{Name: "mystery", APIKey: "k"}, wantErr: `unknown provider "mystery"`},
		{name: "invalid gateway scheme", cfg: ProviderConfig{Name: "gateway", APIKey: "k", BaseURL: "ftp://example.com"}, wantErr: "invalid base_url scheme"},
		{name: "invalid gemini scheme", cfg: ProviderConfig{Name: "gemini", APIKey: "k", BaseURL: "ftp://example.com"}, wantErr: "invalid gemini endpoint scheme"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewInvoker(tc.cfg)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
			if !IsErrorCode(err, ErrCodeConfiguration) {
				t.Fatalf("expected configuration code, got %v", err)
			}
		})
	}
}

func TestNormalizeGatewayBaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{name: "empty uses default", input: "", want: "https://ai.gateway.lovable.dev/v1"},
		{name: "base without v1", input: "https://example.com", want: "https://example.com/v1"},
		{name: "base with v1", input: "https://example.com/v1/", want: "https://example.com/v1"},
		{name: "chat completions suffix", input: "https://ai.gateway.lovable.dev/v1/chat/completions", want: "https://ai.gateway.lovable.dev/v1"},
		{name: "chat completions suffix without v1", input: "https://example.com/chat/completions", want: "https://example.com"},
		{name: "missing scheme", input: "example.com/api", want: "https://example.com/api/v1"},
		{name: "invalid scheme", input: "ftp://example.com", wantErr: "invalid base_url scheme"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := normalizeGatewayBaseURL(tc.input)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error contains %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestParseGeminiBaseURLAndVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input       string
		wantBase    string
		wantVersion string
	}{
		{input: "", wantBase: "https://generativelanguage.googleapis.com", wantVersion: "v1beta"},
		{input: "https://generativelanguage.googleapis.com/v1", wantBase: "https://generativelanguage.googleapis.com", wantVersion: "v1"},
		{input: "proxy.example.com/gemini/v1beta/models", wantBase: "https://proxy.example.com/gemini", wantVersion: "v1beta"},
		{input: "http://127.0.0.1:9000", wantBase: "http://127.0.0.1:9000", wantVersion: "v1beta"},
	}
	for _, tc := range tests {
		base, version, err := parseGeminiBaseURLAndVersion(tc.input)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.input, err)
		}
		if base != tc.wantBase || version != tc.wantVersion {
			t.Fatalf("parse %q = (%q, %q), want (%q, %q)", tc.input, base, version, tc.wantBase, tc.wantVersion)
		}
	}
}

func TestGatewayInvoker(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"google/gemini-2.5-flash","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":" {\"pattern\":\"Double Bottom\"} "}}]}`))
	}))
	defer server.Close()

	invoker, err := NewInvoker(ProviderConfig{Name: "gateway", BaseURL: server.URL + "/v1", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewInvoker: %v", err)
	}

	raw, err := invoker.Invoke(context.Background(), samplePrompt())
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if raw != `{"pattern":"Double Bottom"}` {
		t.Fatalf("unexpected raw text %q", raw)
	}

	if gotBody["model"] != "google/gemini-2.5-flash" {
		t.Fatalf("unexpected model: %v", gotBody["model"])
	}
	format, _ := gotBody["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", gotBody["response_format"])
	}
	messages, _ := gotBody["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(messages))
	}
	user, _ := messages[1].(map[string]any)
	parts, _ := user["content"].([]any)
	if len(parts) != 5 {
		t.Fatalf("expected task + 2x(label, image) parts, got %d", len(parts))
	}
	image, _ := parts[2].(map[string]any)
	imageURL, _ := image["image_url"].(map[string]any)
	if url, _ := imageURL["url"].(string); !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("expected first image as png data uri, got %v", image)
	}
}

func TestGatewayInvokerNonSuccessIsUnavailable(t *testing.T) {
	t.Parallel()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer server.Close()

	invoker, err := NewInvoker(ProviderConfig{Name: "gateway", BaseURL: server.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewInvoker: %v", err)
	}

	_, err = invoker.Invoke(context.Background(), samplePrompt())
	if !errors.Is(err, ErrAnalysisUnavailable) {
		t.Fatalf("expected ErrAnalysisUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 503") {
		t.Fatalf("expected status detail in error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one call, got %d", calls)
	}
}

func TestGeminiInvoker(t *testing.T) {
	t.Parallel()

	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.5-flash:generateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "gemini-key" {
			t.Errorf("unexpected api key header: %q", got)
		}
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"pattern\":\"Rising Wedge\"}"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	invoker, err := NewInvoker(ProviderConfig{Name: "gemini", BaseURL: server.URL, APIKey: "gemini-key"})
	if err != nil {
		t.Fatalf("NewInvoker: %v", err)
	}

	raw, err := invoker.Invoke(context.Background(), samplePrompt())
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if raw != `{"pattern":"Rising Wedge"}` {
		t.Fatalf("unexpected raw text %q", raw)
	}
	for _, want := range []string{"inlineData", "image/jpeg", "application/json", "systemInstruction", "Chart 1 of 2 (highest timeframe)"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected request body to contain %q, got %s", want, body)
		}
	}
}

func TestGeminiInvokerRequestPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		suffix   string
		wantPath string
	}{
		{name: "bare host", suffix: "", wantPath: "/v1beta/models/gemini-2.5-flash:generateContent"},
		{name: "host with version", suffix: "/v1beta", wantPath: "/v1beta/models/gemini-2.5-flash:generateContent"},
		{name: "trailing slash", suffix: "/v1beta/", wantPath: "/v1beta/models/gemini-2.5-flash:generateContent"},
		{name: "proxy prefix", suffix: "/gemini/v1", wantPath: "/gemini/v1/models/gemini-2.5-flash:generateContent"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var gotPath string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{}"}]},"finishReason":"STOP"}]}`))
			}))
			defer server.Close()

			invoker, err := NewInvoker(ProviderConfig{Name: "gemini", BaseURL: server.URL + tc.suffix, APIKey: "gemini-key"})
			if err != nil {
				t.Fatalf("NewInvoker: %v", err)
			}
			if _, err := invoker.Invoke(context.Background(), samplePrompt()); err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			if gotPath != tc.wantPath {
				t.Fatalf("request path = %q, want %q", gotPath, tc.wantPath)
			}
		})
	}
}

func TestGeminiInvokerFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	invoker, err := NewInvoker(ProviderConfig{Name: "gemini", BaseURL: server.URL, APIKey: "gemini-key"})
	if err != nil {
		t.Fatalf("NewInvoker: %v", err)
	}
	if _, err := invoker.Invoke(context.Background(), samplePrompt()); !errors.Is(err, ErrAnalysisUnavailable) {
		t.Fatalf("expected ErrAnalysisUnavailable, got %v", err)
	}
}

func TestAnthropicInvoker(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "anthropic-key" {
			t.Errorf("unexpected api key header: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[{"type":"text","text":"{\"pattern\":\"Bear Flag\"}"}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer server.Close()

	invoker, err := NewInvoker(ProviderConfig{Name: "anthropic", BaseURL: server.URL, APIKey: "anthropic-key"})
	if err != nil {
		t.Fatalf("NewInvoker: %v", err)
	}

	raw, err := invoker.Invoke(context.Background(), samplePrompt())
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if raw != `{"pattern":"Bear Flag"}` {
		t.Fatalf("unexpected raw text %q", raw)
	}

	system, _ := gotBody["system"].([]any)
	if len(system) != 1 {
		t.Fatalf("expected one system block, got %v", gotBody["system"])
	}
	messages, _ := gotBody["messages"].([]any)
	user, _ := messages[0].(map[string]any)
	blocks, _ := user["content"].([]any)
	if len(blocks) != 5 {
		t.Fatalf("expected 5 content blocks, got %d", len(blocks))
	}
	image, _ := blocks[4].(map[string]any)
	source, _ := image["source"].(map[string]any)
	if image["type"] != "image" || source["media_type"] != "image/jpeg" || source["type"] != "base64" {
		t.Fatalf("unexpected image block: %v", image)
	}
}

func TestAnthropicInvokerFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	invoker, err := NewInvoker(ProviderConfig{Name: "anthropic", BaseURL: server.URL, APIKey: "bad"})
	if err != nil {
		t.Fatalf("NewInvoker: %v", err)
	}
	_, err = invoker.Invoke(context.Background(), samplePrompt())
	if !errors.Is(err, ErrAnalysisUnavailable) || !strings.Contains(err.Error(), "status 401") {
		t.Fatalf("expected unavailable with status, got %v", err)
	}
}
