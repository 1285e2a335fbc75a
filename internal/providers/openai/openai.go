// Package openai implements the OpenAI-compatible wire family. It also backs
// every unknown or custom provider, which is folded into this family by the
// dispatcher.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/lifebow/assistantd/internal/core"
	"github.com/lifebow/assistantd/internal/framing"
	"github.com/lifebow/assistantd/internal/httpclient"
	"github.com/lifebow/assistantd/internal/providers"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Adapter implements core.Adapter for OpenAI-compatible APIs.
type Adapter struct {
	httpClient *http.Client
}

// New creates a new OpenAI-compatible adapter. If client is nil, a default
// streaming-friendly client is used.
func New(client *http.Client) *Adapter {
	if client == nil {
		client = httpclient.New(nil)
	}
	return &Adapter{httpClient: client}
}

// chatRequest is the JSON body for POST {base}/chat/completions.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

// chatMessage carries either a plain string content or, when an image is
// attached, an array of typed content parts.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// convertMessages maps the normalized message list to the OpenAI shape.
// Roles pass through unchanged; an inline image becomes an image_url content
// part carrying a data URL.
func convertMessages(msgs []core.ChatMessage) []chatMessage {
	out := make([]chatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Image == nil {
			out = append(out, chatMessage{Role: string(m.Role), Content: m.Content})
			continue
		}
		parts := []contentPart{
			{Type: "text", Text: m.Content},
			{Type: "image_url", ImageURL: &imageURL{
				URL: "data:" + m.Image.MimeType + ";base64," + m.Image.Data,
			}},
		}
		out = append(out, chatMessage{Role: string(m.Role), Content: parts})
	}
	return out
}

func baseURL(creds core.Credentials) string {
	if creds.BaseURL != "" {
		return creds.BaseURL
	}
	return defaultBaseURL
}

// newChatRequest builds the outbound HTTP request for a completion call.
func (a *Adapter) newChatRequest(ctx context.Context, msgs []core.ChatMessage, creds core.Credentials, stream bool) (*http.Request, error) {
	body, err := json.Marshal(chatRequest{
		Model:    creds.Model,
		Messages: convertMessages(msgs),
		Stream:   stream,
	})
	if err != nil {
		return nil, core.NewRequestError(creds.Provider, 0, "failed to marshal request: "+err.Error(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL(creds)+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, core.NewRequestError(creds.Provider, 0, "failed to create request: "+err.Error(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)
	return req, nil
}

// Complete sends a non-streaming chat completion request.
func (a *Adapter) Complete(ctx context.Context, msgs []core.ChatMessage, creds core.Credentials) (string, error) {
	req, err := a.newChatRequest(ctx, msgs, creds, false)
	if err != nil {
		return "", err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", core.NewRequestError(creds.Provider, 0, "failed to send request: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", core.NewRequestError(creds.Provider, 0, "failed to read response: "+err.Error(), err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", core.ParseErrorBody(creds.Provider, resp.StatusCode, respBody)
	}

	return gjson.GetBytes(respBody, "choices.0.message.content").String(), nil
}

// Stream sends a streaming chat completion request, forwarding each fragment
// to sink as it is decoded.
func (a *Adapter) Stream(ctx context.Context, msgs []core.ChatMessage, creds core.Credentials, sink core.FragmentSink) (string, error) {
	req, err := a.newChatRequest(ctx, msgs, creds, true)
	if err != nil {
		return "", err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", core.NewRequestError(creds.Provider, 0, "failed to send request: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			respBody = nil
		}
		return "", core.ParseErrorBody(creds.Provider, resp.StatusCode, respBody)
	}

	return providers.PumpStream(ctx, creds.Provider, resp.Body, &framing.LineDecoder{}, ExtractDelta, sink)
}

// ListModels retrieves the identifiers of available models.
func (a *Adapter) ListModels(ctx context.Context, creds core.Credentials) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL(creds)+"/models", nil)
	if err != nil {
		return nil, core.NewRequestError(creds.Provider, 0, "failed to create request: "+err.Error(), err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, core.NewRequestError(creds.Provider, 0, "failed to send request: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewRequestError(creds.Provider, 0, "failed to read response: "+err.Error(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.ParseErrorBody(creds.Provider, resp.StatusCode, respBody)
	}

	var models []string
	for _, m := range gjson.GetBytes(respBody, "data.#.id").Array() {
		models = append(models, m.String())
	}
	return models, nil
}
