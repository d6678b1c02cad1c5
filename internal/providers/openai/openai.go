// Package openai provides the OpenAI adapter. The gateway's uniform schema
// is already OpenAI-shaped, so translation is mostly passthrough; the one
// exception is the o-series reasoning models, which reject max_tokens and
// temperature.
package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/harbz07/mindbridge-router/config"
	"github.com/harbz07/mindbridge-router/internal/core"
	"github.com/harbz07/mindbridge-router/internal/llmclient"
	"github.com/harbz07/mindbridge-router/internal/providers"
)

func init() {
	providers.Register("openai", New)
}

const defaultBaseURL = "https://api.openai.com/v1"

// catalog is the enumeration fallback used when the live /models call fails.
var catalog = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4-turbo",
	"gpt-4",
	"gpt-3.5-turbo",
	"o1",
	"o1-mini",
	"o3-mini",
}

// Provider implements core.Provider for OpenAI.
type Provider struct {
	client *llmclient.Client
	apiKey string
	desc   core.Descriptor
}

// New creates an OpenAI adapter from configuration.
func New(cfg config.ProviderConfig, opts providers.Options) (core.Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	p := &Provider{
		apiKey: cfg.APIKey,
		desc: core.Descriptor{
			Tag:               cfg.Tag,
			Type:              "openai",
			BaseURL:           baseURL,
			SupportsStreaming: true,
			SupportsTools:     true,
			Catalog:           catalog,
		},
	}
	p.client = llmclient.New(llmclient.Config{
		ProviderTag: cfg.Tag,
		BaseURL:     baseURL,
		Timeout:     opts.UpstreamTimeout,
		Hooks:       opts.Hooks,
	}, p.setHeaders)
	return p, nil
}

// NewWithHTTPClient creates an adapter with a caller-supplied HTTP client.
// Used by tests to point the adapter at an httptest server.
func NewWithHTTPClient(tag, apiKey, baseURL string, httpClient *http.Client) *Provider {
	p := &Provider{
		apiKey: apiKey,
		desc: core.Descriptor{
			Tag:               tag,
			Type:              "openai",
			BaseURL:           baseURL,
			SupportsStreaming: true,
			SupportsTools:     true,
			Catalog:           catalog,
		},
	}
	p.client = llmclient.NewWithHTTPClient(httpClient, llmclient.Config{
		ProviderTag: tag,
		BaseURL:     baseURL,
	}, p.setHeaders)
	return p
}

// Tag returns the configured provider tag.
func (p *Provider) Tag() string { return p.desc.Tag }

// Descriptor returns the adapter's immutable metadata.
func (p *Provider) Descriptor() core.Descriptor { return p.desc }

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
}

// isOSeriesModel reports whether the model is an o-series reasoning model
// (o1, o3, o4, ...). Those reject max_tokens in favor of
// max_completion_tokens and do not accept temperature. Non-reasoning models
// like gpt-4o start with "gpt-", not "o".
func isOSeriesModel(model string) bool {
	m := strings.ToLower(model)
	return len(m) >= 2 && m[0] == 'o' && m[1] >= '0' && m[1] <= '9'
}

// oSeriesChatRequest is the JSON body sent for o-series models. Temperature
// and the penalty knobs are intentionally absent.
type oSeriesChatRequest struct {
	Model               string          `json:"model"`
	Messages            []core.Message  `json:"messages"`
	Stream              bool            `json:"stream,omitempty"`
	MaxCompletionTokens *int            `json:"max_completion_tokens,omitempty"`
	ReasoningEffort     string          `json:"reasoning_effort,omitempty"`
	TopP                *float64        `json:"top_p,omitempty"`
	Stop                []string        `json:"stop,omitempty"`
	Tools               []core.Tool     `json:"tools,omitempty"`
	ToolChoice          json.RawMessage `json:"tool_choice,omitempty"`
}

// chatRequestBody returns the JSON body for the model. o-series models get
// parameter adaptation; everything else passes through unchanged.
func chatRequestBody(req *core.ChatRequest) any {
	if !isOSeriesModel(req.Model) {
		return req
	}
	return &oSeriesChatRequest{
		Model:               req.Model,
		Messages:            req.Messages,
		Stream:              req.Stream,
		MaxCompletionTokens: req.MaxTokens,
		ReasoningEffort:     req.ReasoningEffort,
		TopP:                req.TopP,
		Stop:                req.Stop,
		Tools:               req.Tools,
		ToolChoice:          req.ToolChoice,
	}
}

// ChatCompletion sends a buffered chat completion request to OpenAI.
func (p *Provider) ChatCompletion(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	var resp core.ChatResponse
	err := p.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     chatRequestBody(req),
	}, &resp)
	if err != nil {
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

// StreamChatCompletion opens a streaming completion. OpenAI's SSE format is
// the gateway's wire format, so the body is relayed as-is.
func (p *Provider) StreamChatCompletion(ctx context.Context, req *core.ChatRequest) (io.ReadCloser, error) {
	return p.client.DoStream(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     chatRequestBody(req.WithStreaming()),
	})
}

// Models fetches the live model list from OpenAI.
func (p *Provider) Models(ctx context.Context) ([]core.Model, error) {
	var resp core.ModelsResponse
	err := p.client.Do(ctx, llmclient.Request{
		Method:   http.MethodGet,
		Endpoint: "/models",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}
