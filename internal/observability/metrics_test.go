package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveUpstreamRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	hooks := NewPrometheusHooksWithRegisterer(reg)

	hooks.ObserveUpstreamRequest("openai", "/chat/completions", 200, 120*time.Millisecond)
	hooks.ObserveUpstreamRequest("openai", "/chat/completions", 200, 80*time.Millisecond)
	hooks.ObserveUpstreamRequest("anthropic", "/messages", 429, 10*time.Millisecond)
	hooks.ObserveUpstreamRequest("google", "/chat/completions", 0, time.Second)

	got := testutil.ToFloat64(hooks.requests.WithLabelValues("openai", "/chat/completions", "200"))
	if got != 2 {
		t.Errorf("openai 200 count = %v, want 2", got)
	}

	got = testutil.ToFloat64(hooks.requests.WithLabelValues("anthropic", "/messages", "429"))
	if got != 1 {
		t.Errorf("anthropic 429 count = %v, want 1", got)
	}

	// Transport failures are labeled "error", not "0".
	got = testutil.ToFloat64(hooks.requests.WithLabelValues("google", "/chat/completions", "error"))
	if got != 1 {
		t.Errorf("google error count = %v, want 1", got)
	}
}
