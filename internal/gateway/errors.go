// ABOUTME: Uniform error taxonomy and the mapping from internal failures to it.
// ABOUTME: Every failure in the core maps to exactly one stable client-facing code.

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prismgate/prism-gateway/internal/provider"
)

// Stable error codes of the gateway taxonomy, independent of any transport's
// status-code vocabulary.
const (
	codeProviderRequired      = "provider_required"
	codeProviderNotConfigured = "provider_not_configured"
	codeUpstreamAuthError     = "upstream_auth_error"
	codeUpstreamRateLimited   = "upstream_rate_limited"
	codeUpstreamUnavailable   = "upstream_unavailable"
	codeProviderError         = "provider_error"
	codeBodyTooLarge          = "body_too_large"
	codeInputTooLarge         = "input_too_large"
	codeInvalidRequest        = "invalid_request"
	codeInternalError         = "internal_error"
)

// apiError is the uniform client-facing error. It doubles as a Go error so
// guard checks deep in the request path can surface directly.
type apiError struct {
	HTTPStatus        int    `json:"-"`
	Message           string `json:"message"`
	Code              string `json:"code"`
	Provider          string `json:"provider,omitempty"`
	UpstreamStatus    int    `json:"upstream_status,omitempty"`
	ProviderRequestID string `json:"provider_request_id,omitempty"`
}

func (e *apiError) Error() string {
	return e.Message
}

func validationError(message string) *apiError {
	return &apiError{
		HTTPStatus: http.StatusUnprocessableEntity,
		Message:    message,
		Code:       codeInvalidRequest,
	}
}

// mapError converts any failure into the taxonomy. The mapping is total:
// unrecognized errors land on internal_error rather than propagating
// unmapped to the transport boundary.
func mapError(err error, providerName string) *apiError {
	var mapped *apiError
	if errors.As(err, &mapped) {
		if mapped.Provider == "" {
			mapped.Provider = providerName
		}
		return mapped
	}

	var notConfigured *provider.NotConfiguredError
	if errors.As(err, &notConfigured) {
		return &apiError{
			HTTPStatus: http.StatusFailedDependency,
			Message:    notConfigured.Error(),
			Code:       codeProviderNotConfigured,
			Provider:   providerName,
		}
	}

	var provErr *provider.Error
	if errors.As(err, &provErr) {
		code := codeProviderError
		httpStatus := http.StatusBadGateway
		switch {
		case provErr.StatusCode == http.StatusUnauthorized || provErr.StatusCode == http.StatusForbidden:
			code = codeUpstreamAuthError
		case provErr.StatusCode == http.StatusTooManyRequests:
			code = codeUpstreamRateLimited
			httpStatus = http.StatusTooManyRequests
		case provErr.StatusCode >= 500:
			code = codeUpstreamUnavailable
		}
		return &apiError{
			HTTPStatus:        httpStatus,
			Message:           provErr.Message,
			Code:              code,
			Provider:          providerName,
			UpstreamStatus:    provErr.StatusCode,
			ProviderRequestID: provErr.ProviderRequestID,
		}
	}

	return &apiError{
		HTTPStatus: http.StatusInternalServerError,
		Message:    err.Error(),
		Code:       codeInternalError,
		Provider:   providerName,
	}
}

// errorEnvelope is the wire shape for every failure response.
type errorEnvelope struct {
	Error *apiError `json:"error"`
}

// writeError emits the uniform JSON error shape. No internal stack detail is
// exposed beyond the human-readable message.
func (g *Gateway) writeError(w http.ResponseWriter, apiErr *apiError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus)
	if err := json.NewEncoder(w).Encode(errorEnvelope{Error: apiErr}); err != nil {
		g.logger.Error("failed to encode error response", "error", err)
	}
}
