// Package google implements the native Google generative language wire
// family. Its stream is not SSE: the response is one unterminated JSON array
// of candidate objects, framed by balanced-brace scanning.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lifebow/assistantd/internal/core"
	"github.com/lifebow/assistantd/internal/framing"
	"github.com/lifebow/assistantd/internal/httpclient"
	"github.com/lifebow/assistantd/internal/providers"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Adapter implements core.Adapter for the Google API.
type Adapter struct {
	httpClient *http.Client
}

// New creates a new Google adapter. If client is nil, a default
// streaming-friendly client is used.
func New(client *http.Client) *Adapter {
	if client == nil {
		client = httpclient.New(nil)
	}
	return &Adapter{httpClient: client}
}

// generateRequest is the JSON body for the generateContent endpoints.
type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// convertRequest maps the normalized message list to the Google shape:
// assistant renames to model, the system message is lifted into
// systemInstruction, and inline images become inline_data parts.
func convertRequest(msgs []core.ChatMessage) *generateRequest {
	req := &generateRequest{Contents: make([]content, 0, len(msgs))}

	for _, m := range msgs {
		if m.Role == core.RoleSystem {
			req.SystemInstruction = &content{Parts: []part{{Text: m.Content}}}
			continue
		}
		role := "user"
		if m.Role == core.RoleAssistant {
			role = "model"
		}
		parts := []part{{Text: m.Content}}
		if m.Image != nil {
			parts = append(parts, part{InlineData: &inlineData{
				MimeType: m.Image.MimeType,
				Data:     m.Image.Data,
			}})
		}
		req.Contents = append(req.Contents, content{Role: role, Parts: parts})
	}

	return req
}

func baseURL(creds core.Credentials) string {
	if creds.BaseURL != "" {
		return creds.BaseURL
	}
	return defaultBaseURL
}

// endpoint builds the method URL. The API key travels as a query parameter;
// that is the native API's auth convention, there is no header alternative.
func endpoint(creds core.Credentials, method string) string {
	return baseURL(creds) + "/models/" + creds.Model + ":" + method + "?key=" + url.QueryEscape(creds.APIKey)
}

func (a *Adapter) newGenerateRequest(ctx context.Context, msgs []core.ChatMessage, creds core.Credentials, method string) (*http.Request, error) {
	body, err := json.Marshal(convertRequest(msgs))
	if err != nil {
		return nil, core.NewRequestError(creds.Provider, 0, "failed to marshal request: "+err.Error(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(creds, method), bytes.NewReader(body))
	if err != nil {
		return nil, core.NewRequestError(creds.Provider, 0, "failed to create request: "+err.Error(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Complete sends a non-streaming generateContent request.
func (a *Adapter) Complete(ctx context.Context, msgs []core.ChatMessage, creds core.Credentials) (string, error) {
	req, err := a.newGenerateRequest(ctx, msgs, creds, "generateContent")
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

	return gjson.GetBytes(respBody, "candidates.0.content.parts.0.text").String(), nil
}

// Stream sends a streamGenerateContent request, forwarding each fragment to
// sink as it is decoded from the brace-framed array.
func (a *Adapter) Stream(ctx context.Context, msgs []core.ChatMessage, creds core.Credentials, sink core.FragmentSink) (string, error) {
	req, err := a.newGenerateRequest(ctx, msgs, creds, "streamGenerateContent")
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

	return providers.PumpStream(ctx, creds.Provider, resp.Body, framing.NewBraceDecoder(), ExtractDelta, sink)
}

// ListModels retrieves the identifiers of available models from the native
// models endpoint, trimming the "models/" name prefix.
func (a *Adapter) ListModels(ctx context.Context, creds core.Credentials) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL(creds)+"/models?key="+url.QueryEscape(creds.APIKey), nil)
	if err != nil {
		return nil, core.NewRequestError(creds.Provider, 0, "failed to create request: "+err.Error(), err)
	}

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
	for _, m := range gjson.GetBytes(respBody, "models.#.name").Array() {
		models = append(models, strings.TrimPrefix(m.String(), "models/"))
	}
	return models, nil
}
