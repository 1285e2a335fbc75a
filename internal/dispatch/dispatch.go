// Package dispatch selects the provider adapter and one credential from the
// configured pool for each request, and exposes the uniform streaming /
// single-shot contract the rest of the system consumes.
package dispatch

import (
	"context"
	"math/rand/v2"

	"github.com/lifebow/assistantd/internal/core"
	"github.com/lifebow/assistantd/internal/httpclient"
	"github.com/lifebow/assistantd/internal/metrics"
	"github.com/lifebow/assistantd/internal/providers/anthropic"
	"github.com/lifebow/assistantd/internal/providers/google"
	"github.com/lifebow/assistantd/internal/providers/openai"
)

// Config is the per-request configuration. It is what crosses the relay in a
// session initiation message, so every field is JSON-tagged.
type Config struct {
	Provider string   `json:"provider"`
	APIKeys  []string `json:"apiKeys"`
	BaseURL  string   `json:"baseUrl,omitempty"`
	Model    string   `json:"model"`
}

// Dispatcher routes requests to the adapter for the configured provider
// family. The mapping is a closed set: google and anthropic have dedicated
// adapters, every other provider value folds into the OpenAI-compatible one.
type Dispatcher struct {
	google    core.Adapter
	anthropic core.Adapter
	openai    core.Adapter
}

// New creates a dispatcher with the three family adapters sharing one HTTP
// client.
func New() *Dispatcher {
	hc := httpclient.New(nil)
	return &Dispatcher{
		google:    google.New(hc),
		anthropic: anthropic.New(hc),
		openai:    openai.New(hc),
	}
}

// NewWithAdapters creates a dispatcher with explicit adapters, for tests.
func NewWithAdapters(googleA, anthropicA, openaiA core.Adapter) *Dispatcher {
	return &Dispatcher{google: googleA, anthropic: anthropicA, openai: openaiA}
}

func (d *Dispatcher) adapterFor(p core.ProviderType) core.Adapter {
	switch p.Normalize() {
	case core.ProviderGoogle:
		return d.google
	case core.ProviderAnthropic:
		return d.anthropic
	default:
		return d.openai
	}
}

// credentials picks one API key uniformly at random from the pool. No state
// is carried between calls, and no retry with a different key happens on
// failure. An empty pool is a configuration error reported before any
// network activity.
func credentials(cfg Config) (core.Credentials, error) {
	if len(cfg.APIKeys) == 0 {
		return core.Credentials{}, core.NewNoAPIKeyError(cfg.Provider)
	}
	return core.Credentials{
		Provider: core.ProviderType(cfg.Provider),
		APIKey:   cfg.APIKeys[rand.IntN(len(cfg.APIKeys))],
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
	}, nil
}

// Stream runs one streaming completion, forwarding fragments to sink in
// decode order and returning the three-way outcome.
func (d *Dispatcher) Stream(ctx context.Context, messages []core.ChatMessage, cfg Config, sink core.FragmentSink) core.StreamResult {
	creds, err := credentials(cfg)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(cfg.Provider, "config_error").Inc()
		return core.StreamResult{Err: err}
	}
	text, err := d.adapterFor(creds.Provider).Stream(ctx, messages, creds, sink)
	return d.finish(cfg.Provider, text, err)
}

// Complete runs one single-shot completion.
func (d *Dispatcher) Complete(ctx context.Context, messages []core.ChatMessage, cfg Config) core.StreamResult {
	creds, err := credentials(cfg)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(cfg.Provider, "config_error").Inc()
		return core.StreamResult{Err: err}
	}
	text, err := d.adapterFor(creds.Provider).Complete(ctx, messages, creds)
	return d.finish(cfg.Provider, text, err)
}

// ListModels lists the models the configured provider offers.
func (d *Dispatcher) ListModels(ctx context.Context, cfg Config) ([]string, error) {
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	return d.adapterFor(creds.Provider).ListModels(ctx, creds)
}

// finish maps an adapter return into the three-way result. A cancelled read
// is a first-class outcome, not an error; text produced before cancellation
// is discarded because the caller's sink already received every fragment.
func (d *Dispatcher) finish(provider, text string, err error) core.StreamResult {
	switch {
	case err == nil:
		metrics.ProviderRequests.WithLabelValues(provider, "ok").Inc()
		return core.StreamResult{Text: text}
	case core.IsCancellation(err):
		metrics.ProviderRequests.WithLabelValues(provider, "cancelled").Inc()
		return core.StreamResult{Cancelled: true}
	default:
		metrics.ProviderRequests.WithLabelValues(provider, "error").Inc()
		return core.StreamResult{Err: err}
	}
}
