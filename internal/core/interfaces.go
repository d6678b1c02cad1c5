package core

import (
	"context"
	"io"
)

// Descriptor is the immutable per-adapter metadata built once at startup
// from configuration and read concurrently without locking thereafter.
type Descriptor struct {
	// Tag is the provider segment of external model identifiers.
	Tag string
	// Type is the adapter implementation ("openai", "anthropic", "google").
	Type string
	// BaseURL is the upstream endpoint requests are sent to.
	BaseURL string
	// SupportsStreaming reports whether the adapter can relay SSE deltas.
	SupportsStreaming bool
	// SupportsTools reports whether the adapter can express tool calling.
	SupportsTools bool
	// Catalog is the static model list used for enumeration fallback.
	Catalog []string
}

// Provider is the adapter interface implemented once per backend. Each
// implementation owns all knowledge of its provider's native schema: it
// translates the uniform request out, the native response (or stream) back,
// and maps native failures into the shared error taxonomy.
type Provider interface {
	// Tag returns the provider tag this adapter is registered under.
	Tag() string

	// Descriptor returns the adapter's immutable metadata.
	Descriptor() Descriptor

	// ChatCompletion executes a buffered chat completion. The request's
	// Model field carries the upstream model name (prefix already stripped).
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// StreamChatCompletion opens an upstream stream and returns a reader
	// emitting OpenAI-format SSE chunks, one content delta per event, with
	// exactly one terminal event. The caller must close it; closing
	// releases the upstream connection.
	StreamChatCompletion(ctx context.Context, req *ChatRequest) (io.ReadCloser, error)

	// Models returns the upstream model names this adapter exposes,
	// unprefixed. Implementations may fetch live or serve a static catalog.
	Models(ctx context.Context) ([]Model, error)
}
