package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// RequestError is a terminal transport-level failure from a provider call.
// Message holds the human-readable text extracted from the provider's error
// envelope (or the status line when no envelope was present).
type RequestError struct {
	Provider   ProviderType
	StatusCode int
	Message    string
	// Original error for debugging, not exposed to callers.
	Err error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("[%s] status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Provider, e.Message)
}

// Unwrap implements the error unwrapping interface.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError creates a new transport error for the given provider.
func NewRequestError(provider ProviderType, statusCode int, message string, err error) *RequestError {
	return &RequestError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// ParseErrorBody extracts the nested error.message string from a provider
// error envelope. All three provider families use the same convention:
//
//	{"error": {"message": "..."}}
//
// When the body is not parseable as that shape, the transport status text is
// used instead.
func ParseErrorBody(provider ProviderType, statusCode int, body []byte) *RequestError {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	message := http.StatusText(statusCode)
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	return &RequestError{Provider: provider, StatusCode: statusCode, Message: message}
}

// ConfigError reports a dispatch-time configuration problem, such as an empty
// credential pool. Reported synchronously, never retried.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// NewNoAPIKeyError is the configuration error for an empty credential pool.
func NewNoAPIKeyError(provider string) *ConfigError {
	return &ConfigError{Message: "No API key found for " + provider}
}

// IsCancellation reports whether err represents a cooperative cancellation
// rather than a failure. Adapters surface an aborted network read as the
// request context's error, so this reduces to a context.Canceled check.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

// ErrorMessage returns the user-facing message for a failed result: the
// provider envelope message for transport errors, the configuration message
// for dispatch errors, and the plain error text otherwise. Empty when the
// result did not fail.
func (r StreamResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	var reqErr *RequestError
	if errors.As(r.Err, &reqErr) {
		return reqErr.Message
	}
	var cfgErr *ConfigError
	if errors.As(r.Err, &cfgErr) {
		return cfgErr.Message
	}
	return r.Err.Error()
}
