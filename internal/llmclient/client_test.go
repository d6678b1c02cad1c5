package llmclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/harbz07/mindbridge-router/internal/core"
)

type recordingHooks struct {
	mu           sync.Mutex
	observations []observation
}

type observation struct {
	provider string
	endpoint string
	status   int
}

func (r *recordingHooks) ObserveUpstreamRequest(provider, endpoint string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observations = append(r.observations, observation{provider, endpoint, status})
}

func newTestClient(srv *httptest.Server, hooks Hooks) *Client {
	return NewWithHTTPClient(srv.Client(), Config{
		ProviderTag: "testprov",
		BaseURL:     srv.URL,
		Hooks:       hooks,
	}, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer k")
	})
}

func TestDoUnmarshalsAndSetsHeaders(t *testing.T) {
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		_, _ = io.WriteString(w, `{"ok": true}`)
	}))
	defer srv.Close()

	var result struct {
		OK bool `json:"ok"`
	}
	c := newTestClient(srv, nil)
	err := c.Do(context.Background(), Request{
		Method:   http.MethodPost,
		Endpoint: "/x",
		Body:     map[string]string{"a": "b"},
	}, &result)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if !result.OK {
		t.Error("result not unmarshaled")
	}
	if gotAuth != "Bearer k" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
}

func TestDoRawNormalizesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": {"message": "bad key"}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv, nil)
	_, err := c.DoRaw(context.Background(), Request{Method: http.MethodGet, Endpoint: "/x"})

	var gerr *core.GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gerr.Kind != core.KindUpstreamAuth {
		t.Errorf("kind = %s", gerr.Kind)
	}
	if gerr.Provider != "testprov" {
		t.Errorf("provider = %q", gerr.Provider)
	}
}

func TestDoStreamErrorReadsLimitedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error": {"message": "slow down"}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv, nil)
	_, err := c.DoStream(context.Background(), Request{Method: http.MethodPost, Endpoint: "/x"})

	var gerr *core.GatewayError
	if !errors.As(err, &gerr) || gerr.Kind != core.KindUpstreamRateLimited {
		t.Fatalf("expected upstream_rate_limited, got %v", err)
	}
	if gerr.Message != "slow down" {
		t.Errorf("message = %q", gerr.Message)
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	hooks := &recordingHooks{}
	c := newTestClient(srv, hooks)
	_, err := c.DoRaw(context.Background(), Request{Method: http.MethodGet, Endpoint: "/x"})

	var gerr *core.GatewayError
	if !errors.As(err, &gerr) || gerr.Kind != core.KindUpstreamUnavailable {
		t.Fatalf("expected upstream_unavailable, got %v", err)
	}

	if len(hooks.observations) != 1 {
		t.Fatalf("observations = %+v", hooks.observations)
	}
	if hooks.observations[0].status != 0 {
		t.Errorf("transport failure status = %d, want 0", hooks.observations[0].status)
	}
}

func TestHooksObserveStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	hooks := &recordingHooks{}
	c := newTestClient(srv, hooks)
	if err := c.Do(context.Background(), Request{Method: http.MethodGet, Endpoint: "/models"}, nil); err != nil {
		t.Fatal(err)
	}

	if len(hooks.observations) != 1 {
		t.Fatalf("observations = %+v", hooks.observations)
	}
	obs := hooks.observations[0]
	if obs.provider != "testprov" || obs.endpoint != "/models" || obs.status != http.StatusOK {
		t.Errorf("observation = %+v", obs)
	}
}

func TestQueryParameters(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("key")
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := newTestClient(srv, nil)
	err := c.Do(context.Background(), Request{
		Method:   http.MethodGet,
		Endpoint: "/models",
		Query:    map[string]string{"key": "abc"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "abc" {
		t.Errorf("key = %q", gotQuery)
	}
}
