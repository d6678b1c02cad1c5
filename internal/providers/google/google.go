// Package google provides the Gemini adapter. Chat completions go through
// Google's OpenAI-compatible endpoint, so request and response translation
// is a restricted passthrough; model listing uses the native API, which is
// the only place the two schemas diverge.
package google

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harbz07/mindbridge-router/config"
	"github.com/harbz07/mindbridge-router/internal/core"
	"github.com/harbz07/mindbridge-router/internal/llmclient"
	"github.com/harbz07/mindbridge-router/internal/providers"
)

func init() {
	providers.Register("google", New)
}

const (
	defaultBaseURL   = "https://generativelanguage.googleapis.com/v1beta/openai"
	defaultModelsURL = "https://generativelanguage.googleapis.com/v1beta"
)

// catalog is the enumeration fallback used when the native listing fails.
var catalog = []string{
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-1.5-pro",
	"gemini-1.5-flash",
	"gemini-1.5-flash-8b",
}

// Provider implements core.Provider for Google Gemini.
type Provider struct {
	client *llmclient.Client
	// modelsClient targets the native API root, which lives one path
	// segment above the OpenAI-compatible endpoint.
	modelsClient *llmclient.Client
	apiKey       string
	desc         core.Descriptor
}

// New creates a Gemini adapter from configuration.
func New(cfg config.ProviderConfig, opts providers.Options) (core.Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	p := &Provider{
		apiKey: cfg.APIKey,
		desc: core.Descriptor{
			Tag:               cfg.Tag,
			Type:              "google",
			BaseURL:           baseURL,
			SupportsStreaming: true,
			SupportsTools:     false,
			Catalog:           catalog,
		},
	}
	p.client = llmclient.New(llmclient.Config{
		ProviderTag: cfg.Tag,
		BaseURL:     baseURL,
		Timeout:     opts.UpstreamTimeout,
		Hooks:       opts.Hooks,
	}, p.setHeaders)
	p.modelsClient = llmclient.New(llmclient.Config{
		ProviderTag: cfg.Tag,
		BaseURL:     modelsURL(baseURL),
		Timeout:     opts.UpstreamTimeout,
		Hooks:       opts.Hooks,
	}, nil)
	return p, nil
}

// NewWithHTTPClient creates an adapter with a caller-supplied HTTP client.
// Used by tests to point the adapter at an httptest server; both the chat
// and the models client target the same base URL.
func NewWithHTTPClient(tag, apiKey, baseURL string, httpClient *http.Client) *Provider {
	p := &Provider{
		apiKey: apiKey,
		desc: core.Descriptor{
			Tag:               tag,
			Type:              "google",
			BaseURL:           baseURL,
			SupportsStreaming: true,
			SupportsTools:     false,
			Catalog:           catalog,
		},
	}
	p.client = llmclient.NewWithHTTPClient(httpClient, llmclient.Config{
		ProviderTag: tag,
		BaseURL:     baseURL,
	}, p.setHeaders)
	p.modelsClient = llmclient.NewWithHTTPClient(httpClient, llmclient.Config{
		ProviderTag: tag,
		BaseURL:     baseURL,
	}, nil)
	return p
}

// modelsURL derives the native API root from the OpenAI-compatible base URL.
func modelsURL(baseURL string) string {
	if trimmed, ok := strings.CutSuffix(baseURL, "/openai"); ok {
		return trimmed
	}
	return defaultModelsURL
}

// Tag returns the configured provider tag.
func (p *Provider) Tag() string { return p.desc.Tag }

// Descriptor returns the adapter's immutable metadata.
func (p *Provider) Descriptor() core.Descriptor { return p.desc }

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
}

// googleChatRequest is the body sent to the OpenAI-compatible endpoint. It
// carries only the parameters that endpoint honors; everything else is
// rejected up front in checkRequest.
type googleChatRequest struct {
	Model       string         `json:"model"`
	Messages    []core.Message `json:"messages"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   *int           `json:"max_tokens,omitempty"`
	TopP        *float64       `json:"top_p,omitempty"`
	Stop        []string       `json:"stop,omitempty"`
	Stream      bool           `json:"stream,omitempty"`
}

// checkRequest rejects parameters the compatibility endpoint does not
// honor, so nothing is silently dropped.
func (p *Provider) checkRequest(req *core.ChatRequest) (*googleChatRequest, error) {
	switch {
	case req.FrequencyPenalty != nil:
		return nil, core.NewUnsupportedParameterError(p.desc.Tag, "frequency_penalty")
	case req.PresencePenalty != nil:
		return nil, core.NewUnsupportedParameterError(p.desc.Tag, "presence_penalty")
	case len(req.Tools) > 0:
		return nil, core.NewUnsupportedParameterError(p.desc.Tag, "tools")
	case len(req.ToolChoice) > 0:
		return nil, core.NewUnsupportedParameterError(p.desc.Tag, "tool_choice")
	case req.ReasoningEffort != "":
		return nil, core.NewUnsupportedParameterError(p.desc.Tag, "reasoning_effort")
	}
	return &googleChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      req.Stream,
	}, nil
}

// ChatCompletion sends a buffered chat completion request to Gemini.
func (p *Provider) ChatCompletion(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	body, err := p.checkRequest(req)
	if err != nil {
		return nil, err
	}

	var resp core.ChatResponse
	if err := p.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     body,
	}, &resp); err != nil {
		return nil, err
	}
	resp.Provider = p.desc.Tag
	if resp.Model == "" {
		resp.Model = req.Model
	}
	for i := range resp.Choices {
		if resp.Choices[i].FinishReason == "" {
			resp.Choices[i].FinishReason = core.FinishReasonUnknown
		}
	}
	return &resp, nil
}

// StreamChatCompletion opens a streaming completion. The compatibility
// endpoint already emits OpenAI chunks, so the body is relayed as-is.
func (p *Provider) StreamChatCompletion(ctx context.Context, req *core.ChatRequest) (io.ReadCloser, error) {
	body, err := p.checkRequest(req.WithStreaming())
	if err != nil {
		return nil, err
	}
	return p.client.DoStream(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     body,
	})
}

// googleModel is one entry in the native models listing.
type googleModel struct {
	Name             string   `json:"name"`
	DisplayName      string   `json:"displayName"`
	SupportedMethods []string `json:"supportedGenerationMethods"`
}

type googleModelsResponse struct {
	Models []googleModel `json:"models"`
}

// Models fetches the native listing and keeps the chat-capable gemini
// models. The native API wants the key as a query parameter.
func (p *Provider) Models(ctx context.Context) ([]core.Model, error) {
	var resp googleModelsResponse
	err := p.modelsClient.Do(ctx, llmclient.Request{
		Method:   http.MethodGet,
		Endpoint: "/models",
		Query:    map[string]string{"key": p.apiKey},
	}, &resp)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	models := make([]core.Model, 0, len(resp.Models))
	for _, gm := range resp.Models {
		id := strings.TrimPrefix(gm.Name, "models/")
		if !strings.HasPrefix(id, "gemini-") {
			continue
		}
		if !supportsGenerate(gm.SupportedMethods) {
			continue
		}
		models = append(models, core.Model{
			ID:      id,
			Object:  "model",
			OwnedBy: p.desc.Tag,
			Created: now,
		})
	}
	return models, nil
}

func supportsGenerate(methods []string) bool {
	for _, m := range methods {
		if m == "generateContent" || m == "streamGenerateContent" {
			return true
		}
	}
	return false
}
