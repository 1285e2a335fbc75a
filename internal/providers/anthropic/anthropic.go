// Package anthropic implements the Anthropic messages wire family.
package anthropic

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

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"

	// The messages API requires max_tokens; this matches the ceiling the
	// upstream application used.
	defaultMaxTokens = 4096
)

// Adapter implements core.Adapter for the Anthropic API.
type Adapter struct {
	httpClient *http.Client
}

// New creates a new Anthropic adapter. If client is nil, a default
// streaming-friendly client is used.
func New(client *http.Client) *Adapter {
	if client == nil {
		client = httpclient.New(nil)
	}
	return &Adapter{httpClient: client}
}

// messagesRequest is the JSON body for POST {base}/messages.
type messagesRequest struct {
	Model     string        `json:"model"`
	Messages  []wireMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Stream    bool          `json:"stream,omitempty"`
}

// wireMessage carries either a plain string or, when an image is attached, an
// array of typed content blocks.
type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// convertRequest maps the normalized message list to the Anthropic shape.
// The system message is lifted into the top-level system field; the API
// rejects it in the messages array.
func convertRequest(msgs []core.ChatMessage, creds core.Credentials, stream bool) *messagesRequest {
	req := &messagesRequest{
		Model:     creds.Model,
		Messages:  make([]wireMessage, 0, len(msgs)),
		MaxTokens: defaultMaxTokens,
		Stream:    stream,
	}

	for _, m := range msgs {
		if m.Role == core.RoleSystem {
			req.System = m.Content
			continue
		}
		if m.Image == nil {
			req.Messages = append(req.Messages, wireMessage{Role: string(m.Role), Content: m.Content})
			continue
		}
		blocks := []contentBlock{
			{Type: "image", Source: &imageSource{
				Type:      "base64",
				MediaType: m.Image.MimeType,
				Data:      m.Image.Data,
			}},
			{Type: "text", Text: m.Content},
		}
		req.Messages = append(req.Messages, wireMessage{Role: string(m.Role), Content: blocks})
	}

	return req
}

func baseURL(creds core.Credentials) string {
	if creds.BaseURL != "" {
		return creds.BaseURL
	}
	return defaultBaseURL
}

func (a *Adapter) newMessagesRequest(ctx context.Context, msgs []core.ChatMessage, creds core.Credentials, stream bool) (*http.Request, error) {
	body, err := json.Marshal(convertRequest(msgs, creds, stream))
	if err != nil {
		return nil, core.NewRequestError(creds.Provider, 0, "failed to marshal request: "+err.Error(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL(creds)+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, core.NewRequestError(creds.Provider, 0, "failed to create request: "+err.Error(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", creds.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
	return req, nil
}

// Complete sends a non-streaming messages request.
func (a *Adapter) Complete(ctx context.Context, msgs []core.ChatMessage, creds core.Credentials) (string, error) {
	req, err := a.newMessagesRequest(ctx, msgs, creds, false)
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

	return gjson.GetBytes(respBody, "content.0.text").String(), nil
}

// Stream sends a streaming messages request, forwarding each fragment to sink
// as it is decoded.
func (a *Adapter) Stream(ctx context.Context, msgs []core.ChatMessage, creds core.Credentials, sink core.FragmentSink) (string, error) {
	req, err := a.newMessagesRequest(ctx, msgs, creds, true)
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
	req.Header.Set("x-api-key", creds.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

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
