package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestParseErrorBody(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		want       string
	}{
		{"envelope message", 401, `{"error":{"message":"bad key"}}`, "bad key"},
		{"envelope with extras", 429, `{"error":{"type":"rate_limit","message":"slow down"}}`, "slow down"},
		{"empty body", 503, ``, "Service Unavailable"},
		{"non-json body", 502, `<html>bad gateway</html>`, "Bad Gateway"},
		{"envelope without message", 500, `{"error":{}}`, "Internal Server Error"},
		{"wrong shape", 404, `{"message":"top level"}`, "Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseErrorBody(ProviderOpenAI, tt.statusCode, []byte(tt.body))
			if err.Message != tt.want {
				t.Errorf("expected message %q, got %q", tt.want, err.Message)
			}
			if err.StatusCode != tt.statusCode {
				t.Errorf("expected status %d, got %d", tt.statusCode, err.StatusCode)
			}
		})
	}
}

func TestProviderType_Normalize(t *testing.T) {
	tests := []struct {
		in   ProviderType
		want ProviderType
	}{
		{ProviderGoogle, ProviderGoogle},
		{ProviderAnthropic, ProviderAnthropic},
		{ProviderOpenAI, ProviderOpenAI},
		{"groq", ProviderOpenAI},
		{"together", ProviderOpenAI},
		{"", ProviderOpenAI},
	}

	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsCancellation(t *testing.T) {
	if !IsCancellation(context.Canceled) {
		t.Error("expected context.Canceled to be a cancellation")
	}
	wrapped := fmt.Errorf("read aborted: %w", context.Canceled)
	if !IsCancellation(wrapped) {
		t.Error("expected wrapped context.Canceled to be a cancellation")
	}
	if IsCancellation(errors.New("connection reset")) {
		t.Error("expected plain error not to be a cancellation")
	}
	if IsCancellation(nil) {
		t.Error("expected nil not to be a cancellation")
	}
}

func TestStreamResult_ErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		res  StreamResult
		want string
	}{
		{"success", StreamResult{Text: "hi"}, ""},
		{"request error", StreamResult{Err: NewRequestError(ProviderOpenAI, 401, "bad key", nil)}, "bad key"},
		{"config error", StreamResult{Err: NewNoAPIKeyError("openai")}, "No API key found for openai"},
		{"wrapped request error", StreamResult{Err: fmt.Errorf("call failed: %w",
			NewRequestError(ProviderGoogle, 400, "API key not valid", nil))}, "API key not valid"},
		{"plain error", StreamResult{Err: errors.New("boom")}, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.ErrorMessage(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
