// Package anthropic provides the Anthropic adapter: it translates the
// uniform chat schema to the Messages API and back, including an SSE
// converter that re-emits Anthropic stream events as OpenAI chunks.
package anthropic

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/harbz07/mindbridge-router/config"
	"github.com/harbz07/mindbridge-router/internal/core"
	"github.com/harbz07/mindbridge-router/internal/llmclient"
	"github.com/harbz07/mindbridge-router/internal/providers"
)

func init() {
	providers.Register("anthropic", New)
}

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
)

// catalog lists the models served by /v1/models. The Messages API has no
// public listing endpoint, so enumeration is always static.
var catalog = []string{
	"claude-opus-4-5",
	"claude-sonnet-4-5",
	"claude-haiku-4-5",
	"claude-3-7-sonnet-20250219",
	"claude-3-5-sonnet-20241022",
	"claude-3-5-haiku-20241022",
	"claude-3-opus-20240229",
	"claude-3-haiku-20240307",
}

// Provider implements core.Provider for Anthropic.
type Provider struct {
	client *llmclient.Client
	apiKey string
	desc   core.Descriptor
}

// New creates an Anthropic adapter from configuration.
func New(cfg config.ProviderConfig, opts providers.Options) (core.Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	p := &Provider{
		apiKey: cfg.APIKey,
		desc: core.Descriptor{
			Tag:               cfg.Tag,
			Type:              "anthropic",
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
	return p, nil
}

// NewWithHTTPClient creates an adapter with a caller-supplied HTTP client.
// Used by tests to point the adapter at an httptest server.
func NewWithHTTPClient(tag, apiKey, baseURL string, httpClient *http.Client) *Provider {
	p := &Provider{
		apiKey: apiKey,
		desc: core.Descriptor{
			Tag:               tag,
			Type:              "anthropic",
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
	return p
}

// Tag returns the configured provider tag.
func (p *Provider) Tag() string { return p.desc.Tag }

// Descriptor returns the adapter's immutable metadata.
func (p *Provider) Descriptor() core.Descriptor { return p.desc }

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
}

// anthropicRequest is the Messages API request body.
type anthropicRequest struct {
	Model         string             `json:"model"`
	Messages      []anthropicMessage `json:"messages"`
	MaxTokens     int                `json:"max_tokens"`
	System        string             `json:"system,omitempty"`
	Temperature   *float64           `json:"temperature,omitempty"`
	TopP          *float64           `json:"top_p,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the Messages API response body.
type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// convertRequest translates the uniform request into the Messages API
// shape. Parameters the Messages API has no equivalent for are rejected
// rather than dropped, so callers never get silently degraded behavior.
func (p *Provider) convertRequest(req *core.ChatRequest) (*anthropicRequest, error) {
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

	out := &anthropicRequest{
		Model:         req.Model,
		Messages:      make([]anthropicMessage, 0, len(req.Messages)),
		MaxTokens:     defaultMaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
		Stream:        req.Stream,
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}

	// System messages move to the top-level system field. Multiple system
	// messages are concatenated in order.
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			if out.System != "" {
				out.System += "\n\n"
			}
			out.System += msg.Content
			continue
		}
		out.Messages = append(out.Messages, anthropicMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return out, nil
}

// mapStopReason translates a Messages API stop reason into the uniform
// finish reason vocabulary. Unrecognized reasons pass through verbatim.
func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	case "":
		return core.FinishReasonUnknown
	}
	return reason
}

// convertResponse translates a Messages API response into the uniform shape.
func (p *Provider) convertResponse(resp *anthropicResponse) *core.ChatResponse {
	content := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &core.ChatResponse{
		ID:       resp.ID,
		Object:   "chat.completion",
		Model:    resp.Model,
		Provider: p.desc.Tag,
		Created:  time.Now().Unix(),
		Choices: []core.Choice{
			{
				Index: 0,
				Message: core.Message{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: mapStopReason(resp.StopReason),
			},
		},
		Usage: core.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}

// ChatCompletion sends a buffered chat completion request to Anthropic.
func (p *Provider) ChatCompletion(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	body, err := p.convertRequest(req)
	if err != nil {
		return nil, err
	}

	var resp anthropicResponse
	if err := p.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/messages",
		Body:     body,
	}, &resp); err != nil {
		return nil, err
	}
	return p.convertResponse(&resp), nil
}

// StreamChatCompletion opens a streaming completion. The returned reader
// re-emits Anthropic stream events as OpenAI chat.completion.chunk events
// and terminates with a single data: [DONE] sentinel.
func (p *Provider) StreamChatCompletion(ctx context.Context, req *core.ChatRequest) (io.ReadCloser, error) {
	body, err := p.convertRequest(req.WithStreaming())
	if err != nil {
		return nil, err
	}

	upstream, err := p.client.DoStream(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/messages",
		Body:     body,
	})
	if err != nil {
		return nil, err
	}
	return newStreamConverter(upstream, p.desc.Tag, req.Model), nil
}

// Models serves the static catalog; Anthropic exposes no listing endpoint
// the gateway can enumerate.
func (p *Provider) Models(ctx context.Context) ([]core.Model, error) {
	models := make([]core.Model, 0, len(catalog))
	for _, id := range catalog {
		models = append(models, core.Model{
			ID:      id,
			Object:  "model",
			OwnedBy: p.desc.Tag,
		})
	}
	return models, nil
}
