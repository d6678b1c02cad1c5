package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harbz07/mindbridge-router/internal/core"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestConvertRequest(t *testing.T) {
	p := &Provider{desc: core.Descriptor{Tag: "anthropic"}}

	req := &core.ChatRequest{
		Model:       "claude-sonnet-4-5",
		Temperature: floatPtr(0.7),
		MaxTokens:   intPtr(1000),
		Stop:        []string{"END"},
		Messages: []core.Message{
			{Role: "system", Content: "You are terse."},
			{Role: "user", Content: "Hi"},
			{Role: "system", Content: "Answer in English."},
			{Role: "assistant", Content: "Hello"},
		},
	}

	out, err := p.convertRequest(req)
	if err != nil {
		t.Fatalf("convertRequest: %v", err)
	}
	if out.System != "You are terse.\n\nAnswer in English." {
		t.Errorf("system = %q", out.System)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("messages = %+v", out.Messages)
	}
	if out.Messages[0].Role != "user" || out.Messages[1].Role != "assistant" {
		t.Errorf("message roles wrong: %+v", out.Messages)
	}
	if out.MaxTokens != 1000 {
		t.Errorf("max_tokens = %d", out.MaxTokens)
	}
	if len(out.StopSequences) != 1 || out.StopSequences[0] != "END" {
		t.Errorf("stop_sequences = %v", out.StopSequences)
	}
}

func TestConvertRequestDefaultMaxTokens(t *testing.T) {
	p := &Provider{desc: core.Descriptor{Tag: "anthropic"}}
	out, err := p.convertRequest(&core.ChatRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []core.Message{{Role: "user", Content: "Hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.MaxTokens != defaultMaxTokens {
		t.Errorf("max_tokens = %d, want %d", out.MaxTokens, defaultMaxTokens)
	}
}

func TestConvertRequestRejectsUnsupported(t *testing.T) {
	p := &Provider{desc: core.Descriptor{Tag: "anthropic"}}

	tests := []struct {
		name string
		req  *core.ChatRequest
	}{
		{"frequency_penalty", &core.ChatRequest{FrequencyPenalty: floatPtr(0.5)}},
		{"presence_penalty", &core.ChatRequest{PresencePenalty: floatPtr(0.5)}},
		{"tools", &core.ChatRequest{Tools: []core.Tool{{Type: "function"}}}},
		{"tool_choice", &core.ChatRequest{ToolChoice: json.RawMessage(`"auto"`)}},
		{"reasoning_effort", &core.ChatRequest{ReasoningEffort: "high"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.convertRequest(tt.req)
			var gerr *core.GatewayError
			if !errors.As(err, &gerr) || gerr.Kind != core.KindUnsupportedParameter {
				t.Fatalf("expected unsupported_parameter error, got %v", err)
			}
		})
	}
}

func TestMapStopReason(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"end_turn", "stop"},
		{"stop_sequence", "stop"},
		{"max_tokens", "length"},
		{"tool_use", "tool_calls"},
		{"", core.FinishReasonUnknown},
		{"refusal", "refusal"},
	}
	for _, tt := range tests {
		if got := mapStopReason(tt.in); got != tt.want {
			t.Errorf("mapStopReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChatCompletion(t *testing.T) {
	var gotReq anthropicRequest
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(anthropicResponse{
			ID:    "msg_01",
			Type:  "message",
			Role:  "assistant",
			Model: "claude-sonnet-4-5",
			Content: []anthropicContent{
				{Type: "text", Text: "Hello "},
				{Type: "text", Text: "there"},
			},
			StopReason: "end_turn",
			Usage:      anthropicUsage{InputTokens: 12, OutputTokens: 4},
		})
	}))
	defer srv.Close()

	p := NewWithHTTPClient("anthropic", "sk-test", srv.URL, srv.Client())
	resp, err := p.ChatCompletion(context.Background(), &core.ChatRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []core.Message{{Role: "user", Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}

	if gotHeaders.Get("x-api-key") != "sk-test" {
		t.Errorf("x-api-key = %q", gotHeaders.Get("x-api-key"))
	}
	if gotHeaders.Get("anthropic-version") != apiVersion {
		t.Errorf("anthropic-version = %q", gotHeaders.Get("anthropic-version"))
	}
	if gotReq.Model != "claude-sonnet-4-5" {
		t.Errorf("upstream model = %q", gotReq.Model)
	}

	if resp.Choices[0].Message.Content != "Hello there" {
		t.Errorf("content = %q", resp.Choices[0].Message.Content)
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("finish_reason = %q", resp.Choices[0].FinishReason)
	}
	if resp.Usage.TotalTokens != 16 {
		t.Errorf("total_tokens = %d", resp.Usage.TotalTokens)
	}
	if resp.Provider != "anthropic" {
		t.Errorf("provider = %q", resp.Provider)
	}
}

func TestChatCompletionUpstreamAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	p := NewWithHTTPClient("anthropic", "bad", srv.URL, srv.Client())
	_, err := p.ChatCompletion(context.Background(), &core.ChatRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []core.Message{{Role: "user", Content: "Hi"}},
	})

	var gerr *core.GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gerr.Kind != core.KindUpstreamAuth {
		t.Errorf("kind = %s, want %s", gerr.Kind, core.KindUpstreamAuth)
	}
	if gerr.Message != "invalid x-api-key" {
		t.Errorf("message = %q", gerr.Message)
	}
}

func TestModelsServesCatalog(t *testing.T) {
	p := &Provider{desc: core.Descriptor{Tag: "anthropic", Catalog: catalog}}
	models, err := p.Models(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != len(catalog) {
		t.Fatalf("got %d models, want %d", len(models), len(catalog))
	}
	for i, m := range models {
		if m.ID != catalog[i] {
			t.Errorf("model %d = %q, want %q", i, m.ID, catalog[i])
		}
		if m.OwnedBy != "anthropic" {
			t.Errorf("owned_by = %q", m.OwnedBy)
		}
	}
}
