// Package core provides the uniform types, provider interface and error
// taxonomy for the gateway.
package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrorKind classifies a gateway failure. The set is closed: every failure
// the gateway can produce maps to exactly one kind, and every kind maps to
// exactly one HTTP status. Raw upstream payloads never reach the caller.
type ErrorKind string

const (
	// KindInvalidModelIdentifier indicates a malformed external model string.
	KindInvalidModelIdentifier ErrorKind = "invalid_model_identifier"
	// KindUnknownProvider indicates a provider tag with no registered adapter.
	KindUnknownProvider ErrorKind = "unknown_provider"
	// KindUnauthenticated indicates a missing or invalid gateway bearer token.
	KindUnauthenticated ErrorKind = "unauthenticated"
	// KindUnsupportedParameter indicates a request capability the selected
	// adapter does not implement.
	KindUnsupportedParameter ErrorKind = "unsupported_parameter"
	// KindUpstreamAuth indicates the provider rejected the gateway's credential.
	KindUpstreamAuth ErrorKind = "upstream_auth_error"
	// KindUpstreamRateLimited indicates the provider signalled throttling.
	KindUpstreamRateLimited ErrorKind = "upstream_rate_limited"
	// KindUpstreamUnavailable indicates a connection failure or timeout.
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	// KindUpstream is the catch-all for upstream failures the adapter could
	// not classify further.
	KindUpstream ErrorKind = "upstream_error"
)

// GatewayError is the normalized error carried through the gateway and
// rendered as the OpenAI-compatible error envelope at the HTTP boundary.
type GatewayError struct {
	Kind     ErrorKind
	Message  string
	Provider string
	// UpstreamStatus is the raw HTTP status reported by the provider, when
	// the failure originated upstream.
	UpstreamStatus int
	// Err is the wrapped cause, kept for logging only.
	Err error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements the error unwrapping interface.
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the HTTP status for this error. The mapping is
// total: an unrecognized kind is treated as an unclassified upstream
// failure (502) rather than leaking anything else.
func (e *GatewayError) HTTPStatusCode() int {
	switch e.Kind {
	case KindInvalidModelIdentifier, KindUnknownProvider, KindUnsupportedParameter:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUpstreamRateLimited:
		return http.StatusTooManyRequests
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstreamAuth, KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

// EnvelopeType returns the OpenAI-style error type for the envelope's
// "type" field.
func (e *GatewayError) EnvelopeType() string {
	switch e.Kind {
	case KindInvalidModelIdentifier, KindUnknownProvider, KindUnsupportedParameter:
		return "invalid_request_error"
	case KindUnauthenticated:
		return "authentication_error"
	case KindUpstreamRateLimited:
		return "rate_limit_error"
	default:
		return "provider_error"
	}
}

// ToJSON renders the error as the uniform envelope {error: {message, type, code}}.
func (e *GatewayError) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"message": e.Message,
			"type":    e.EnvelopeType(),
			"code":    string(e.Kind),
		},
	}
}

// NewInvalidModelError creates an error for a malformed model identifier.
func NewInvalidModelError(message string) *GatewayError {
	return &GatewayError{Kind: KindInvalidModelIdentifier, Message: message}
}

// NewUnknownProviderError creates an error for an unregistered provider tag.
func NewUnknownProviderError(tag string, registered []string) *GatewayError {
	return &GatewayError{
		Kind:    KindUnknownProvider,
		Message: fmt.Sprintf("provider '%s' is not configured; available providers: %s", tag, strings.Join(registered, ", ")),
	}
}

// NewUnauthenticatedError creates an error for a missing or invalid bearer token.
func NewUnauthenticatedError(message string) *GatewayError {
	return &GatewayError{Kind: KindUnauthenticated, Message: message}
}

// NewUnsupportedParameterError creates an error for a capability the
// selected adapter does not implement.
func NewUnsupportedParameterError(provider, param string) *GatewayError {
	return &GatewayError{
		Kind:     KindUnsupportedParameter,
		Message:  fmt.Sprintf("parameter '%s' is not supported by provider '%s'", param, provider),
		Provider: provider,
	}
}

// NewUpstreamUnavailableError creates an error for a connection failure or
// timeout reaching the provider.
func NewUpstreamUnavailableError(provider, message string, err error) *GatewayError {
	return &GatewayError{Kind: KindUpstreamUnavailable, Message: message, Provider: provider, Err: err}
}

// NewUpstreamError creates an unclassified upstream failure.
func NewUpstreamError(provider string, upstreamStatus int, message string, err error) *GatewayError {
	return &GatewayError{Kind: KindUpstream, Message: message, Provider: provider, UpstreamStatus: upstreamStatus, Err: err}
}

// errorBodyLimit caps how much of an upstream error body is inspected.
const errorBodyLimit = 4096

// upstreamErrorMessage extracts a human-readable message from a provider
// error payload. Providers disagree on the shape ({"error":{"message":...}},
// {"error":"..."}, {"message":...}), so this probes the common spots.
func upstreamErrorMessage(body []byte) string {
	if len(body) > errorBodyLimit {
		body = body[:errorBodyLimit]
	}
	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}
	for _, path := range []string{"error.message", "error", "message", "detail"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return strings.TrimSpace(string(body))
}

// ParseUpstreamError normalizes a non-2xx provider response into a
// GatewayError using the shared taxonomy: 401/403 become upstream auth
// failures, 429 becomes rate limiting, everything else is an unclassified
// upstream failure carrying the raw status for diagnostics.
func ParseUpstreamError(provider string, statusCode int, body []byte) *GatewayError {
	message := upstreamErrorMessage(body)
	if message == "" {
		message = fmt.Sprintf("provider returned HTTP %d", statusCode)
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &GatewayError{Kind: KindUpstreamAuth, Message: message, Provider: provider, UpstreamStatus: statusCode}
	case statusCode == http.StatusTooManyRequests:
		return &GatewayError{Kind: KindUpstreamRateLimited, Message: message, Provider: provider, UpstreamStatus: statusCode}
	default:
		return &GatewayError{Kind: KindUpstream, Message: message, Provider: provider, UpstreamStatus: statusCode}
	}
}

// ClassifyTransportError normalizes a transport-level failure (connection
// refused, DNS failure, timeout, caller disconnect) into a GatewayError.
func ClassifyTransportError(provider string, err error) *GatewayError {
	message := "failed to reach provider"
	if errors.Is(err, context.DeadlineExceeded) {
		message = "provider request timed out"
	} else if errors.Is(err, context.Canceled) {
		message = "provider request canceled"
	}
	return NewUpstreamUnavailableError(provider, message, err)
}

// AsGatewayError unwraps err into a *GatewayError, or wraps it as an
// unclassified upstream failure so the mapping at the boundary stays total.
func AsGatewayError(err error) *GatewayError {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge
	}
	return NewUpstreamError("", 0, "an unexpected error occurred", err)
}
