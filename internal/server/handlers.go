package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/harbz07/mindbridge-router/internal/core"
	"github.com/harbz07/mindbridge-router/internal/providers"
	"github.com/harbz07/mindbridge-router/internal/version"
)

// Handler holds the HTTP handlers.
type Handler struct {
	registry          *providers.Registry
	streamIdleTimeout time.Duration
}

// NewHandler creates a handler backed by the given registry.
func NewHandler(registry *providers.Registry, streamIdleTimeout time.Duration) *Handler {
	return &Handler{
		registry:          registry,
		streamIdleTimeout: streamIdleTimeout,
	}
}

// ChatCompletion handles POST /v1/chat/completions.
func (h *Handler) ChatCompletion(c echo.Context) error {
	var req core.ChatRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidModelError("invalid request body: "+err.Error()))
	}
	if len(req.Messages) == 0 {
		return c.JSON(http.StatusBadRequest, errorEnvelope("messages must not be empty", "invalid_request_error", "invalid_request"))
	}

	modelID, err := core.ParseModelID(req.Model)
	if err != nil {
		return handleError(c, err)
	}

	provider, err := h.registry.Resolve(modelID.Provider)
	if err != nil {
		return handleError(c, err)
	}

	upstreamReq := req.ForUpstream(modelID.UpstreamModel)

	if req.Stream {
		if !provider.Descriptor().SupportsStreaming {
			return handleError(c, core.NewUnsupportedParameterError(modelID.Provider, "stream"))
		}
		stream, err := provider.StreamChatCompletion(c.Request().Context(), upstreamReq)
		if err != nil {
			return handleError(c, err)
		}
		return h.relayStream(c, stream, modelID.Provider)
	}

	resp, err := provider.ChatCompletion(c.Request().Context(), upstreamReq)
	if err != nil {
		return handleError(c, err)
	}

	// Callers address models by their external identifier, so the response
	// echoes that identifier back.
	resp.Model = req.Model
	if resp.ID == "" {
		resp.ID = "chatcmpl-" + uuid.NewString()
	}
	if resp.Created == 0 {
		resp.Created = time.Now().Unix()
	}
	if resp.Object == "" {
		resp.Object = "chat.completion"
	}
	return c.JSON(http.StatusOK, resp)
}

// ListModels handles GET /v1/models.
func (h *Handler) ListModels(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.ListModels(c.Request().Context()))
}

// Health handles GET /health.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"providers": h.registry.Tags(),
	})
}

// Root handles GET / with basic service identity.
func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"name":    "mindbridge-router",
		"version": version.Version,
		"endpoints": []string{
			"/v1/chat/completions",
			"/v1/models",
			"/providers",
			"/health",
		},
	})
}

// Providers handles GET /providers: a diagnostic view of the registered
// adapters and the models each one exposes.
func (h *Handler) Providers(c echo.Context) error {
	models := h.registry.ModelsByProvider(c.Request().Context())

	out := make(map[string]interface{})
	for _, desc := range h.registry.Descriptors() {
		out[desc.Tag] = map[string]interface{}{
			"type":               desc.Type,
			"base_url":           desc.BaseURL,
			"supports_streaming": desc.SupportsStreaming,
			"supports_tools":     desc.SupportsTools,
			"models":             models[desc.Tag],
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"providers": out})
}

// handleError renders a gateway error as the uniform envelope. Anything
// that is not a GatewayError is masked as an internal error so raw causes
// never reach the caller.
func handleError(c echo.Context, err error) error {
	var gerr *core.GatewayError
	if errors.As(err, &gerr) {
		return c.JSON(gerr.HTTPStatusCode(), gerr.ToJSON())
	}
	return c.JSON(http.StatusInternalServerError, errorEnvelope("an unexpected error occurred", "internal_error", "internal_error"))
}

func errorEnvelope(message, envType, code string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    envType,
			"code":    code,
		},
	}
}
