package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lifebow/assistantd/internal/chat"
	"github.com/lifebow/assistantd/internal/core"
	"github.com/lifebow/assistantd/internal/dispatch"
)

// ChatRequest is the REST chat request body.
type ChatRequest struct {
	Config   dispatch.Config    `json:"config"`
	Messages []core.ChatMessage `json:"messages"`
	Stream   bool               `json:"stream"`
}

// ChatResponse is the non-streaming REST chat response body.
type ChatResponse struct {
	Text string `json:"text"`
}

// Handler holds the HTTP handlers.
type Handler struct {
	completer chat.Completer
}

// NewHandler creates a handler backed by the given completer.
func NewHandler(completer chat.Completer) *Handler {
	return &Handler{completer: completer}
}

// Health handles GET /healthz.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Chat handles POST /v1/chat. With stream set, the response is a text/event-stream
// of data frames each carrying one fragment, ending with a [DONE] sentinel.
func (h *Handler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if len(req.Messages) == 0 {
		return errorJSON(c, http.StatusBadRequest, "messages must not be empty")
	}

	ctx := c.Request().Context()

	if !req.Stream {
		res := h.completer.Complete(ctx, req.Messages, req.Config)
		if res.Cancelled {
			return nil
		}
		if res.Err != nil {
			return handleError(c, res)
		}
		return c.JSON(http.StatusOK, ChatResponse{Text: res.Text})
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	res := h.completer.Stream(ctx, req.Messages, req.Config, func(text string) {
		payload, _ := json.Marshal(map[string]string{"text": text}) //nolint:errcheck
		_, _ = c.Response().Write([]byte("data: " + string(payload) + "\n\n"))
		c.Response().Flush()
	})
	if res.Cancelled {
		return nil
	}
	if res.Err != nil {
		// Headers are out; surface the failure as a terminal stream event.
		payload, _ := json.Marshal(map[string]string{"error": res.ErrorMessage()}) //nolint:errcheck
		_, _ = c.Response().Write([]byte("data: " + string(payload) + "\n\n"))
		c.Response().Flush()
		return nil
	}
	_, _ = c.Response().Write([]byte("data: [DONE]\n\n"))
	c.Response().Flush()
	return nil
}

// ListModels handles GET /v1/models?provider=name. The credential pool comes
// from a comma-separated keys query param.
func (h *Handler) ListModels(c echo.Context) error {
	cfg := dispatch.Config{
		Provider: c.QueryParam("provider"),
		APIKeys:  splitQueryKeys(c.QueryParam("keys")),
		BaseURL:  c.QueryParam("base_url"),
	}

	models, err := h.completer.ListModels(c.Request().Context(), cfg)
	if err != nil {
		return handleError(c, core.StreamResult{Err: err})
	}
	return c.JSON(http.StatusOK, map[string][]string{"models": models})
}

func splitQueryKeys(s string) []string {
	if s == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// errorJSON writes an error response using the shared provider envelope shape.
func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]any{
		"error": map[string]string{"message": msg},
	})
}

// handleError maps a failed result onto an HTTP error response, reusing the
// provider envelope convention so clients parse one error shape everywhere.
func handleError(c echo.Context, res core.StreamResult) error {
	status := http.StatusBadGateway
	var reqErr *core.RequestError
	var cfgErr *core.ConfigError
	switch {
	case errors.As(res.Err, &reqErr):
		if reqErr.StatusCode != 0 {
			status = reqErr.StatusCode
		}
	case errors.As(res.Err, &cfgErr):
		status = http.StatusBadRequest
	}
	return c.JSON(status, map[string]any{
		"error": map[string]string{"message": res.ErrorMessage()},
	})
}
