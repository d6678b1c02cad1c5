package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want int
	}{
		{KindInvalidModelIdentifier, http.StatusBadRequest},
		{KindUnknownProvider, http.StatusBadRequest},
		{KindUnsupportedParameter, http.StatusBadRequest},
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindUpstreamRateLimited, http.StatusTooManyRequests},
		{KindUpstreamUnavailable, http.StatusServiceUnavailable},
		{KindUpstreamAuth, http.StatusBadGateway},
		{KindUpstream, http.StatusBadGateway},
		{ErrorKind("something_new"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := &GatewayError{Kind: tt.kind, Message: "x"}
			if got := err.HTTPStatusCode(); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseUpstreamError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
		wantMsg  string
	}{
		{
			name:     "openai style envelope",
			status:   400,
			body:     `{"error": {"message": "invalid model", "type": "invalid_request_error"}}`,
			wantKind: KindUpstream,
			wantMsg:  "invalid model",
		},
		{
			name:     "string error field",
			status:   500,
			body:     `{"error": "boom"}`,
			wantKind: KindUpstream,
			wantMsg:  "boom",
		},
		{
			name:     "anthropic auth failure",
			status:   401,
			body:     `{"type": "error", "error": {"type": "authentication_error", "message": "invalid x-api-key"}}`,
			wantKind: KindUpstreamAuth,
			wantMsg:  "invalid x-api-key",
		},
		{
			name:     "forbidden maps to auth",
			status:   403,
			body:     `{"message": "forbidden"}`,
			wantKind: KindUpstreamAuth,
			wantMsg:  "forbidden",
		},
		{
			name:     "rate limited",
			status:   429,
			body:     `{"error": {"message": "slow down"}}`,
			wantKind: KindUpstreamRateLimited,
			wantMsg:  "slow down",
		},
		{
			name:     "non-json body",
			status:   502,
			body:     "Bad Gateway",
			wantKind: KindUpstream,
			wantMsg:  "Bad Gateway",
		},
		{
			name:     "empty body falls back to status",
			status:   503,
			body:     "",
			wantKind: KindUpstream,
			wantMsg:  "provider returned HTTP 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gerr := ParseUpstreamError("openai", tt.status, []byte(tt.body))
			if gerr.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", gerr.Kind, tt.wantKind)
			}
			if gerr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", gerr.Message, tt.wantMsg)
			}
			if gerr.Provider != "openai" {
				t.Errorf("provider = %q, want openai", gerr.Provider)
			}
			if gerr.UpstreamStatus != tt.status {
				t.Errorf("upstream status = %d, want %d", gerr.UpstreamStatus, tt.status)
			}
		})
	}
}

func TestClassifyTransportError(t *testing.T) {
	gerr := ClassifyTransportError("google", fmt.Errorf("dial: %w", context.DeadlineExceeded))
	if gerr.Kind != KindUpstreamUnavailable {
		t.Errorf("kind = %s, want %s", gerr.Kind, KindUpstreamUnavailable)
	}
	if gerr.Message != "provider request timed out" {
		t.Errorf("message = %q", gerr.Message)
	}

	gerr = ClassifyTransportError("google", errors.New("connection refused"))
	if gerr.Kind != KindUpstreamUnavailable {
		t.Errorf("kind = %s, want %s", gerr.Kind, KindUpstreamUnavailable)
	}
}

func TestToJSONEnvelope(t *testing.T) {
	gerr := NewUnsupportedParameterError("anthropic", "tools")
	envelope := gerr.ToJSON()

	inner, ok := envelope["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("envelope missing error object: %#v", envelope)
	}
	if inner["type"] != "invalid_request_error" {
		t.Errorf("type = %v", inner["type"])
	}
	if inner["code"] != string(KindUnsupportedParameter) {
		t.Errorf("code = %v", inner["code"])
	}
	if inner["message"] == "" {
		t.Error("message is empty")
	}
}

func TestAsGatewayErrorWrapsUnknown(t *testing.T) {
	plain := errors.New("kaboom")
	gerr := AsGatewayError(plain)
	if gerr.Kind != KindUpstream {
		t.Errorf("kind = %s, want %s", gerr.Kind, KindUpstream)
	}
	if !errors.Is(gerr, plain) {
		t.Error("wrapped cause is not preserved")
	}

	orig := NewUnauthenticatedError("no")
	if got := AsGatewayError(fmt.Errorf("wrap: %w", orig)); got != orig {
		t.Error("existing GatewayError should unwrap, not re-wrap")
	}
}
